package experiment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	fireErrors "github.com/ezoic/firearea/pkg/errors"
	"github.com/ezoic/firearea/pkg/log"
	"github.com/ezoic/firearea/sklearn/neural_network"
	"github.com/ezoic/firearea/tracking"
)

// ModelArtifactName is the artifact name runs are logged under.
const ModelArtifactName = "Neural Network Regressor"

// Recorder writes experiment results to a tracking store.
type Recorder struct {
	store  tracking.Store
	logger log.Logger
}

// NewRecorder creates a Recorder on store. The caller owns and closes store.
func NewRecorder(store tracking.Store) *Recorder {
	return &Recorder{store: store, logger: log.GetLoggerWithName("Recorder")}
}

// Record stores params, metrics and the model under a new run of the
// experiment called title and returns the run id. inputExample is one or more
// feature rows attached to the model for schema inference.
//
// Every call creates a new run; earlier runs with the same title are kept.
// Store failures are returned wrapped so errors.Is(err, ErrTrackingStore)
// holds, and the run is marked FAILED when possible.
func (r *Recorder) Record(
	ctx context.Context,
	title string,
	hp HyperParams,
	record MetricRecord,
	m *neural_network.MLPRegressor,
	inputExample [][]float64,
) (runID string, err error) {
	if title == "" {
		return "", fireErrors.NewValidationError("title", "must not be empty", title)
	}

	var envelope bytes.Buffer
	if err := m.Export(&envelope, inputExample, hp.Features); err != nil {
		return "", fireErrors.Wrap(err, "export model")
	}
	example, err := json.Marshal(inputExample)
	if err != nil {
		return "", fireErrors.Wrap(err, "encode input example")
	}

	exp, err := r.store.GetOrCreateExperiment(ctx, title)
	if err != nil {
		return "", storeError(err, "get or create experiment %q", title)
	}
	run, err := r.store.CreateRun(ctx, exp.ID, hp.Title)
	if err != nil {
		return "", storeError(err, "create run in %q", title)
	}
	defer func() {
		if err != nil {
			if ferr := r.store.FinishRun(context.WithoutCancel(ctx), run.ID, tracking.StatusFailed); ferr != nil {
				r.logger.Warn("Could not mark run failed", log.RunIDKey, run.ID, "error", ferr.Error())
			}
		}
	}()

	if err = r.store.LogParams(ctx, run.ID, hp.Params()); err != nil {
		return "", storeError(err, "log params of run %s", run.ID)
	}
	if err = r.store.LogMetrics(ctx, run.ID, record); err != nil {
		return "", storeError(err, "log metrics of run %s", run.ID)
	}
	artifact := tracking.Artifact{
		Name:         ModelArtifactName,
		Envelope:     envelope.Bytes(),
		InputExample: example,
	}
	if err = r.store.LogModel(ctx, run.ID, artifact); err != nil {
		return "", storeError(err, "log model of run %s", run.ID)
	}
	if err = r.store.FinishRun(ctx, run.ID, tracking.StatusFinished); err != nil {
		return "", storeError(err, "finish run %s", run.ID)
	}

	r.logger.Info("Run recorded",
		log.OperationKey, log.OperationRecord,
		log.ExperimentKey, title,
		log.RunIDKey, run.ID,
	)
	return run.ID, nil
}

func storeError(err error, format string, args ...interface{}) error {
	return fireErrors.Wrapf(fmt.Errorf("%w: %w", fireErrors.ErrTrackingStore, err), format, args...)
}
