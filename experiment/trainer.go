package experiment

import (
	"context"
	"time"

	"gonum.org/v1/gonum/mat"

	fireErrors "github.com/ezoic/firearea/pkg/errors"
	"github.com/ezoic/firearea/pkg/log"
	"github.com/ezoic/firearea/sklearn/neural_network"
)

// Artifact is the output of one training run. It is never shared between
// experiments.
type Artifact struct {
	HyperParams HyperParams
	Model       *neural_network.MLPRegressor
	History     neural_network.History
}

// Trainer builds and fits a new network for every call.
type Trainer struct {
	// Callbacks are attached to every network the trainer builds.
	Callbacks []neural_network.Callback
	logger    log.Logger
}

// NewTrainer creates a Trainer.
func NewTrainer(callbacks ...neural_network.Callback) *Trainer {
	return &Trainer{Callbacks: callbacks, logger: log.GetLoggerWithName("Trainer")}
}

// Train validates hp and fits a fresh MLPRegressor on X (n×len(hp.Features))
// and y (n×1, log-space target).
//
// Errors:
//   - ErrInvalidConfig: if hp is invalid; nothing is trained
//   - *DimensionError: if X does not have one column per feature
//   - whatever MLPRegressor.FitContext returns
func (t *Trainer) Train(ctx context.Context, hp HyperParams, X, y mat.Matrix) (*Artifact, error) {
	hp = hp.Clone()
	if err := hp.Validate(); err != nil {
		return nil, err
	}
	if _, c := X.Dims(); c != len(hp.Features) {
		return nil, fireErrors.NewDimensionError("Trainer.Train", len(hp.Features), c, 1)
	}

	opts := hp.options()
	if len(t.Callbacks) > 0 {
		opts = append(opts, neural_network.WithCallbacks(t.Callbacks...))
	}
	reg := neural_network.NewMLPRegressor(opts...)

	start := time.Now()
	if err := reg.FitContext(ctx, X, y); err != nil {
		return nil, fireErrors.Wrapf(err, "train %q", hp.Title)
	}

	h := reg.History
	t.logger.Info("Training completed",
		log.ExperimentKey, hp.Title,
		log.EpochsKey, h.Len(),
		log.LossKey, h.Loss[len(h.Loss)-1],
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return &Artifact{HyperParams: hp, Model: reg, History: h}, nil
}
