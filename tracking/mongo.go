package tracking

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	fireErrors "github.com/ezoic/firearea/pkg/errors"
	"github.com/ezoic/firearea/pkg/log"
)

const defaultMongoDatabase = "firearea"

// MongoStore keeps experiments and runs in two collections. Params, metrics
// and artifacts are embedded in the run document.
type MongoStore struct {
	client      *mongo.Client
	experiments *mongo.Collection
	runs        *mongo.Collection
	logger      log.Logger
}

// OpenMongo connects to uri and uses the named database.
func OpenMongo(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fireErrors.Wrap(err, "connect mongo")
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fireErrors.Wrap(err, "ping mongo")
	}

	db := client.Database(database)
	s := &MongoStore{
		client:      client,
		experiments: db.Collection("experiments"),
		runs:        db.Collection("runs"),
		logger:      log.GetLoggerWithName("tracking.mongo"),
	}

	if _, err := s.experiments.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "name", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fireErrors.Wrap(err, "index experiments")
	}
	if _, err := s.runs.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "experiment_name", Value: 1}, {Key: "start_time", Value: 1}},
	}); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fireErrors.Wrap(err, "index runs")
	}
	return s, nil
}

func (s *MongoStore) GetOrCreateExperiment(ctx context.Context, name string) (*Experiment, error) {
	if name == "" {
		return nil, fireErrors.NewValueError("GetOrCreateExperiment", "empty experiment name")
	}
	var exp Experiment
	err := s.experiments.FindOneAndUpdate(ctx,
		bson.M{"name": name},
		bson.M{"$setOnInsert": bson.M{"_id": uuid.NewString(), "created_at": time.Now().UTC()}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&exp)
	if err != nil {
		return nil, fireErrors.Wrapf(err, "get or create experiment %q", name)
	}
	return &exp, nil
}

func (s *MongoStore) CreateRun(ctx context.Context, experimentID, runName string) (*Run, error) {
	var exp Experiment
	if err := s.experiments.FindOne(ctx, bson.M{"_id": experimentID}).Decode(&exp); err != nil {
		if fireErrors.Is(err, mongo.ErrNoDocuments) {
			return nil, fireErrors.Newf("experiment %q does not exist", experimentID)
		}
		return nil, fireErrors.Wrap(err, "look up experiment")
	}

	run := newRun(&exp, uuid.NewString(), runName, time.Now().UTC())
	if _, err := s.runs.InsertOne(ctx, run); err != nil {
		return nil, fireErrors.Wrap(err, "insert run")
	}
	s.logger.Debug("Run created", log.RunIDKey, run.ID, log.ExperimentKey, exp.Name)
	return run, nil
}

func (s *MongoStore) LogParams(ctx context.Context, runID string, params map[string]string) error {
	set := bson.M{}
	for k, v := range params {
		set["params."+k] = v
	}
	return s.update(ctx, runID, "log params", bson.M{"$set": set})
}

func (s *MongoStore) LogMetrics(ctx context.Context, runID string, metrics map[string]float64) error {
	set := bson.M{}
	for k, v := range metrics {
		set["metrics."+k] = v
	}
	return s.update(ctx, runID, "log metrics", bson.M{"$set": set})
}

func (s *MongoStore) LogModel(ctx context.Context, runID string, artifact Artifact) error {
	if artifact.Name == "" || len(artifact.Envelope) == 0 {
		return fireErrors.NewValueError("LogModel", "artifact needs a name and an envelope")
	}
	return s.update(ctx, runID, "log model", bson.M{"$push": bson.M{"artifacts": artifact}})
}

func (s *MongoStore) FinishRun(ctx context.Context, runID string, status RunStatus) error {
	return s.update(ctx, runID, "finish run", bson.M{"$set": bson.M{"status": status, "end_time": time.Now().UTC()}})
}

func (s *MongoStore) ListRuns(ctx context.Context, experimentName string) ([]*Run, error) {
	cur, err := s.runs.Find(ctx,
		bson.M{"experiment_name": experimentName},
		options.Find().SetSort(bson.D{{Key: "start_time", Value: 1}, {Key: "_id", Value: 1}}),
	)
	if err != nil {
		return nil, fireErrors.Wrapf(err, "list runs of %q", experimentName)
	}
	defer cur.Close(ctx)

	var runs []*Run
	if err := cur.All(ctx, &runs); err != nil {
		return nil, fireErrors.Wrap(err, "decode runs")
	}
	return runs, nil
}

func (s *MongoStore) GetRun(ctx context.Context, runID string) (*Run, error) {
	var run Run
	if err := s.runs.FindOne(ctx, bson.M{"_id": runID}).Decode(&run); err != nil {
		if fireErrors.Is(err, mongo.ErrNoDocuments) {
			return nil, fireErrors.Wrapf(ErrRunNotFound, "get run %s", runID)
		}
		return nil, fireErrors.Wrap(err, "get run")
	}
	return &run, nil
}

// Close disconnects the client.
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) update(ctx context.Context, runID, what string, update bson.M) error {
	res, err := s.runs.UpdateByID(ctx, runID, update)
	if err != nil {
		return fireErrors.Wrap(err, what)
	}
	if res.MatchedCount == 0 {
		return fireErrors.Wrapf(ErrRunNotFound, "%s: run %s", what, runID)
	}
	return nil
}
