// Package tracking persists experiment runs: parameters, metrics and model
// artifacts grouped under named experiments.
//
// A Store is opened from a URI whose scheme picks the backend:
//
//	sqlite:///mlflow.db      relative file
//	sqlite:////var/runs.db   absolute file
//	sqlite://:memory:        private in-memory database
//	postgres://user:pw@host/db?sslmode=disable
//	mongodb://host:27017/firearea
//
// Every call to CreateRun starts a new run, so recording the same experiment
// twice keeps both results.
package tracking

import (
	"context"
	"net/url"
	"strings"
	"time"

	fireErrors "github.com/ezoic/firearea/pkg/errors"
)

// ErrRunNotFound is returned when a run id is unknown to the store.
var ErrRunNotFound = fireErrors.New("run not found")

// RunStatus is the lifecycle state of a run.
type RunStatus string

const (
	StatusRunning  RunStatus = "RUNNING"
	StatusFinished RunStatus = "FINISHED"
	StatusFailed   RunStatus = "FAILED"
)

// Experiment groups runs under a human-readable name.
type Experiment struct {
	ID        string    `json:"id" bson:"_id"`
	Name      string    `json:"name" bson:"name"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

// Artifact is a logged model: a JSON envelope plus the input example used for
// schema inference.
type Artifact struct {
	Name         string `json:"name" bson:"name"`
	Envelope     []byte `json:"envelope" bson:"envelope"`
	InputExample []byte `json:"input_example,omitempty" bson:"input_example,omitempty"`
}

// Run is one recorded execution of an experiment.
type Run struct {
	ID             string             `json:"id" bson:"_id"`
	ExperimentID   string             `json:"experiment_id" bson:"experiment_id"`
	ExperimentName string             `json:"experiment_name" bson:"experiment_name"`
	Name           string             `json:"name" bson:"name"`
	Status         RunStatus          `json:"status" bson:"status"`
	StartTime      time.Time          `json:"start_time" bson:"start_time"`
	EndTime        time.Time          `json:"end_time,omitempty" bson:"end_time,omitempty"`
	Params         map[string]string  `json:"params" bson:"params"`
	Metrics        map[string]float64 `json:"metrics" bson:"metrics"`
	Artifacts      []Artifact         `json:"artifacts,omitempty" bson:"artifacts,omitempty"`
}

// Store is a tracking backend.
type Store interface {
	// GetOrCreateExperiment returns the experiment called name, creating it on first use.
	GetOrCreateExperiment(ctx context.Context, name string) (*Experiment, error)
	// CreateRun starts a new RUNNING run under the experiment.
	CreateRun(ctx context.Context, experimentID, runName string) (*Run, error)
	LogParams(ctx context.Context, runID string, params map[string]string) error
	LogMetrics(ctx context.Context, runID string, metrics map[string]float64) error
	LogModel(ctx context.Context, runID string, artifact Artifact) error
	FinishRun(ctx context.Context, runID string, status RunStatus) error
	// ListRuns returns the runs of the named experiment, oldest first.
	ListRuns(ctx context.Context, experimentName string) ([]*Run, error)
	GetRun(ctx context.Context, runID string) (*Run, error)
	Close() error
}

var (
	_ Store = (*SQLStore)(nil)
	_ Store = (*MongoStore)(nil)
)

// Open connects to the store named by uri.
func Open(ctx context.Context, uri string) (Store, error) {
	scheme, _, ok := strings.Cut(uri, "://")
	if !ok {
		return nil, fireErrors.NewValidationError("tracking_uri", "missing scheme", uri)
	}
	var (
		store Store
		err   error
	)
	switch strings.ToLower(scheme) {
	case "sqlite":
		store, err = OpenSQLite(ctx, sqlitePath(uri))
	case "postgres", "postgresql":
		store, err = OpenPostgres(ctx, uri)
	case "mongodb", "mongodb+srv":
		store, err = OpenMongo(ctx, uri, mongoDatabase(uri))
	default:
		return nil, fireErrors.NewValidationError("tracking_uri", "unsupported scheme", scheme)
	}
	if err != nil {
		return nil, err
	}
	return store, nil
}

// sqlitePath follows the sqlite:///relative and sqlite:////absolute convention.
func sqlitePath(uri string) string {
	rest := strings.TrimPrefix(uri[strings.Index(uri, "://")+3:], "/")
	if rest == "" {
		return ":memory:"
	}
	return rest
}

func mongoDatabase(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return defaultMongoDatabase
	}
	if db := strings.Trim(u.Path, "/"); db != "" {
		return db
	}
	return defaultMongoDatabase
}

func newRun(exp *Experiment, id, runName string, now time.Time) *Run {
	return &Run{
		ID:             id,
		ExperimentID:   exp.ID,
		ExperimentName: exp.Name,
		Name:           runName,
		Status:         StatusRunning,
		StartTime:      now,
		Params:         map[string]string{},
		Metrics:        map[string]float64{},
	}
}
