package neural_network

import (
	"bytes"
	"context"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/firearea/core/model"
	fireErrors "github.com/ezoic/firearea/pkg/errors"
)

func linearData(n int, seed uint64) (*mat.Dense, *mat.Dense) {
	rng := rand.New(rand.NewPCG(seed, seed))
	X := mat.NewDense(n, 2, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		a, b := rng.Float64(), rng.Float64()
		X.SetRow(i, []float64{a, b})
		y.Set(i, 0, 2*a-b+0.5)
	}
	return X, y
}

func TestMLPRegressor_LearnsLinearTarget(t *testing.T) {
	X, y := linearData(200, 1)

	reg := NewMLPRegressor(
		WithHiddenLayerSizes(16),
		WithBatchSize(16),
		WithEpochs(150),
		WithLearningRate(0.01),
		WithRandomState(42),
	)
	require.NoError(t, reg.Fit(X, y))

	h := reg.History
	require.Equal(t, 150, h.Len())
	assert.Len(t, h.ValLoss, 150)
	assert.Len(t, h.MAE, 150)
	assert.Len(t, h.ValMAE, 150)
	assert.Less(t, h.Loss[149], 0.1*h.Loss[0])
	assert.Less(t, h.ValLoss[149], 0.05)

	loss, mae, err := reg.Evaluate(X, y)
	require.NoError(t, err)
	assert.Less(t, loss, 0.05)
	assert.Less(t, mae, 0.2)
}

func TestMLPRegressor_SeedIsReproducible(t *testing.T) {
	X, y := linearData(60, 2)
	fit := func() *MLPRegressor {
		reg := NewMLPRegressor(WithHiddenLayerSizes(8, 4), WithBatchSize(8), WithEpochs(10), WithRandomState(7))
		require.NoError(t, reg.Fit(X, y))
		return reg
	}

	a, b := fit(), fit()
	assert.Equal(t, a.History, b.History)

	pa, err := a.Predict(X)
	require.NoError(t, err)
	pb, err := b.Predict(X)
	require.NoError(t, err)
	assert.True(t, mat.Equal(pa, pb))

	c := NewMLPRegressor(WithHiddenLayerSizes(8, 4), WithBatchSize(8), WithEpochs(10), WithRandomState(8))
	require.NoError(t, c.Fit(X, y))
	assert.NotEqual(t, a.History.Loss, c.History.Loss)
}

// A longer run with the same seed follows the shorter run's trajectory, so
// its final training loss can be compared epoch for epoch.
func TestMLPRegressor_MoreEpochsExtendTrajectory(t *testing.T) {
	X, y := linearData(64, 3)
	train := func(epochs int) History {
		reg := NewMLPRegressor(
			WithHiddenLayerSizes(8),
			WithOptimizer(OptimizerSGD),
			WithLearningRate(0.01),
			WithBatchSize(64),
			WithEpochs(epochs),
			WithValidationSplit(0),
			WithRandomState(5),
		)
		require.NoError(t, reg.Fit(X, y))
		return reg.History
	}

	short, long := train(50), train(100)
	assert.Equal(t, short.Loss, long.Loss[:50])
	assert.LessOrEqual(t, long.Loss[99], short.Loss[49])
	assert.Empty(t, long.ValLoss)
}

func TestMLPRegressor_ValidationSplitTakesLastRows(t *testing.T) {
	X, y := linearData(10, 4)
	// Poison the last two rows; they must only affect validation metrics.
	y.Set(8, 0, 1000)
	y.Set(9, 0, -1000)

	reg := NewMLPRegressor(WithHiddenLayerSizes(4), WithBatchSize(4), WithEpochs(3), WithRandomState(1))
	require.NoError(t, reg.Fit(X, y))

	_, nSamples := reg.State.Dimensions()
	assert.Equal(t, 8, nSamples)
	for i := range reg.History.Loss {
		assert.Less(t, reg.History.Loss[i], 100.0)
		assert.Greater(t, reg.History.ValLoss[i], 1e5)
	}
}

func TestMLPRegressor_Optimizers(t *testing.T) {
	X, y := linearData(80, 5)
	for _, name := range []string{OptimizerAdam, OptimizerSGD, OptimizerRMSprop} {
		t.Run(name, func(t *testing.T) {
			reg := NewMLPRegressor(WithHiddenLayerSizes(8), WithOptimizer(name), WithEpochs(30), WithBatchSize(8), WithRandomState(3))
			require.NoError(t, reg.Fit(X, y))
			for _, v := range reg.History.Loss {
				assert.False(t, math.IsNaN(v) || math.IsInf(v, 0))
			}
			assert.Less(t, reg.History.Loss[29], reg.History.Loss[0])
		})
	}
}

func TestMLPRegressor_InvalidConfig(t *testing.T) {
	X, y := linearData(20, 6)
	tests := []struct {
		name string
		opts []Option
	}{
		{"no hidden layers", []Option{WithHiddenLayerSizes()}},
		{"zero width", []Option{WithHiddenLayerSizes(4, 0)}},
		{"zero batch", []Option{WithBatchSize(0)}},
		{"zero epochs", []Option{WithEpochs(0)}},
		{"split one", []Option{WithValidationSplit(1)}},
		{"negative split", []Option{WithValidationSplit(-0.1)}},
		{"unknown optimizer", []Option{WithOptimizer("adagrad")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewMLPRegressor(tt.opts...).Fit(X, y)
			assert.ErrorIs(t, err, fireErrors.ErrInvalidConfig)
		})
	}
}

func TestMLPRegressor_InputErrors(t *testing.T) {
	reg := NewMLPRegressor(WithEpochs(1))

	_, err := reg.Predict(mat.NewDense(1, 2, nil))
	var nf *fireErrors.NotFittedError
	require.ErrorAs(t, err, &nf)

	err = reg.Fit(mat.NewDense(4, 2, nil), mat.NewDense(3, 1, nil))
	var de *fireErrors.DimensionError
	require.ErrorAs(t, err, &de)

	X, y := linearData(10, 7)
	y.Set(3, 0, math.NaN())
	assert.ErrorIs(t, reg.Fit(X, y), fireErrors.ErrInvalidValue)

	X, y = linearData(10, 7)
	require.NoError(t, reg.Fit(X, y))
	_, err = reg.Predict(mat.NewDense(1, 3, nil))
	assert.ErrorAs(t, err, &de)
}

func TestMLPRegressor_ContextCancelled(t *testing.T) {
	X, y := linearData(10, 8)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewMLPRegressor().FitContext(ctx, X, y)
	assert.ErrorIs(t, err, context.Canceled)
}

type stopAfter struct {
	n                     int
	inits, epochs, finals int
}

func (s *stopAfter) Init(*CallbackEnv) error { s.inits++; return nil }

func (s *stopAfter) AfterEpoch(env *CallbackEnv) error {
	s.epochs++
	if env.Epoch+1 >= s.n {
		env.StopTraining = true
	}
	return nil
}

func (s *stopAfter) Finalize(*CallbackEnv) error { s.finals++; return nil }

func TestMLPRegressor_Callbacks(t *testing.T) {
	X, y := linearData(30, 9)
	cb := &stopAfter{n: 3}
	reg := NewMLPRegressor(WithEpochs(20), WithCallbacks(cb, NewLogEvaluationCallback(1)), WithRandomState(1))
	require.NoError(t, reg.Fit(X, y))

	assert.Equal(t, 3, reg.History.Len())
	assert.Equal(t, 1, cb.inits)
	assert.Equal(t, 3, cb.epochs)
	assert.Equal(t, 1, cb.finals)
	assert.True(t, reg.IsFitted())
}

func TestEarlyStoppingCallback(t *testing.T) {
	es := NewEarlyStoppingCallback(2, 0)
	h := &History{}
	env := &CallbackEnv{History: h, Epochs: 10}
	require.NoError(t, es.Init(env))

	for epoch, v := range []float64{1.0, 0.5, 0.6, 0.7, 0.4} {
		h.Loss = append(h.Loss, v)
		h.ValLoss = append(h.ValLoss, v)
		env.Epoch = epoch
		require.NoError(t, es.AfterEpoch(env))
		if env.StopTraining {
			break
		}
	}
	assert.True(t, env.StopTraining)
	assert.Equal(t, 3, es.StoppedAt)
}

func TestMLPRegressor_GobRoundTrip(t *testing.T) {
	X, y := linearData(40, 10)
	reg := NewMLPRegressor(WithHiddenLayerSizes(6, 3), WithEpochs(5), WithRandomState(2))
	require.NoError(t, reg.Fit(X, y))

	var buf bytes.Buffer
	require.NoError(t, model.SaveModelToWriter(reg, &buf))

	var loaded MLPRegressor
	require.NoError(t, model.LoadModelFromReader(&loaded, &buf))
	assert.True(t, loaded.IsFitted())
	assert.Equal(t, reg.History, loaded.History)

	want, err := reg.Predict(X)
	require.NoError(t, err)
	got, err := loaded.Predict(X)
	require.NoError(t, err)
	assert.True(t, mat.Equal(want, got))
}

func TestMLPRegressor_ExportImport(t *testing.T) {
	X, y := linearData(40, 11)
	reg := NewMLPRegressor(WithHiddenLayerSizes(5), WithEpochs(5), WithRandomState(3))
	require.NoError(t, reg.Fit(X, y))

	var buf bytes.Buffer
	require.NoError(t, reg.Export(&buf, [][]float64{mat.Row(nil, 0, X)}, []string{"temp", "RH"}))

	imported, err := Import(&buf)
	require.NoError(t, err)
	assert.Equal(t, 2, imported.NFeatures())

	want, err := reg.Predict(X)
	require.NoError(t, err)
	got, err := imported.Predict(X)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(want, got, 1e-12))
}
