package neural_network

import (
	"math"

	fireErrors "github.com/ezoic/firearea/pkg/errors"
	"github.com/ezoic/firearea/pkg/log"
)

// History records per-epoch training metrics.
type History struct {
	Loss    []float64 `json:"loss"`
	ValLoss []float64 `json:"val_loss,omitempty"`
	MAE     []float64 `json:"mae"`
	ValMAE  []float64 `json:"val_mae,omitempty"`
}

// Metric returns the series for "loss", "val_loss", "mae" or "val_mae".
func (h *History) Metric(name string) ([]float64, bool) {
	switch name {
	case "loss":
		return h.Loss, true
	case "val_loss":
		return h.ValLoss, true
	case "mae":
		return h.MAE, true
	case "val_mae":
		return h.ValMAE, true
	}
	return nil, false
}

// Final returns the last value of a series.
func (h *History) Final(name string) (float64, error) {
	series, ok := h.Metric(name)
	if !ok {
		return 0, fireErrors.NewValueError("History.Final", "unknown metric "+name)
	}
	if len(series) == 0 {
		return 0, fireErrors.NewModelError("History.Final", "no epochs recorded for "+name, fireErrors.ErrEmptyData)
	}
	return series[len(series)-1], nil
}

// Len is the number of completed epochs.
func (h *History) Len() int {
	return len(h.Loss)
}

// CallbackEnv is passed to callbacks during training.
type CallbackEnv struct {
	Epoch   int // zero-based index of the epoch just finished
	Epochs  int
	History *History
	Model   *MLPRegressor

	// StopTraining ends training after the current epoch when set by a callback.
	StopTraining bool
}

// Callback hooks into the MLPRegressor training loop.
type Callback interface {
	Init(env *CallbackEnv) error
	AfterEpoch(env *CallbackEnv) error
	Finalize(env *CallbackEnv) error
}

// EarlyStoppingCallback stops training when the monitored metric has not
// improved by at least MinDelta for Patience epochs.
type EarlyStoppingCallback struct {
	Monitor  string
	Patience int
	MinDelta float64

	best      float64
	wait      int
	StoppedAt int
}

// NewEarlyStoppingCallback monitors val_loss.
func NewEarlyStoppingCallback(patience int, minDelta float64) *EarlyStoppingCallback {
	return &EarlyStoppingCallback{Monitor: "val_loss", Patience: patience, MinDelta: minDelta, StoppedAt: -1}
}

func (c *EarlyStoppingCallback) Init(env *CallbackEnv) error {
	if _, ok := env.History.Metric(c.Monitor); !ok {
		return fireErrors.NewValueError("EarlyStoppingCallback.Init", "unknown metric "+c.Monitor)
	}
	c.best = math.Inf(1)
	c.wait = 0
	c.StoppedAt = -1
	return nil
}

func (c *EarlyStoppingCallback) AfterEpoch(env *CallbackEnv) error {
	current, err := env.History.Final(c.Monitor)
	if err != nil {
		return err
	}
	if current < c.best-c.MinDelta {
		c.best = current
		c.wait = 0
		return nil
	}
	c.wait++
	if c.wait >= c.Patience {
		env.StopTraining = true
		c.StoppedAt = env.Epoch
	}
	return nil
}

func (c *EarlyStoppingCallback) Finalize(*CallbackEnv) error { return nil }

// LogEvaluationCallback logs the epoch metrics every Period epochs and on the
// final epoch.
type LogEvaluationCallback struct {
	Period int
	logger log.Logger
}

// NewLogEvaluationCallback logs through the named "MLPRegressor" logger.
func NewLogEvaluationCallback(period int) *LogEvaluationCallback {
	if period < 1 {
		period = 1
	}
	return &LogEvaluationCallback{Period: period, logger: log.GetLoggerWithName("MLPRegressor")}
}

func (c *LogEvaluationCallback) Init(env *CallbackEnv) error {
	c.logger.Debug("Training started", log.EpochsKey, env.Epochs)
	return nil
}

func (c *LogEvaluationCallback) AfterEpoch(env *CallbackEnv) error {
	if (env.Epoch+1)%c.Period != 0 && env.Epoch+1 != env.Epochs {
		return nil
	}
	h := env.History
	fields := []interface{}{log.EpochKey, env.Epoch + 1, log.LossKey, h.Loss[len(h.Loss)-1]}
	if len(h.ValLoss) > 0 {
		fields = append(fields, log.ValLossKey, h.ValLoss[len(h.ValLoss)-1])
	}
	c.logger.Debug("Epoch finished", fields...)
	return nil
}

func (c *LogEvaluationCallback) Finalize(env *CallbackEnv) error {
	c.logger.Debug("Training finished", log.EpochsKey, env.History.Len())
	return nil
}
