package ensemble_test

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/firearea/metrics"
	fireErrors "github.com/ezoic/firearea/pkg/errors"
	"github.com/ezoic/firearea/sklearn/ensemble"
)

// signalData has one informative column (0), one weak column (1) and pure noise (2).
func signalData(n int, seed uint64) (*mat.Dense, *mat.Dense) {
	rng := rand.New(rand.NewPCG(seed, seed))
	X := mat.NewDense(n, 3, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		a, b, c := rng.Float64(), rng.Float64(), rng.Float64()
		X.SetRow(i, []float64{a, b, c})
		y.Set(i, 0, 10*a+3*b+0.1*rng.NormFloat64())
	}
	return X, y
}

func TestRandomForestRegressor_ImportancesRankSignal(t *testing.T) {
	X, y := signalData(300, 1)

	rf := ensemble.NewRandomForestRegressor(ensemble.WithNEstimators(30), ensemble.WithRandomState(42))
	require.NoError(t, rf.Fit(X, y))

	imp := rf.FeatureImportances()
	require.Len(t, imp, 3)
	assert.Greater(t, imp[0], imp[1])
	assert.Greater(t, imp[1], imp[2])
	assert.InDelta(t, 1.0, imp[0]+imp[1]+imp[2], 1e-9)
}

func TestRandomForestRegressor_Deterministic(t *testing.T) {
	X, y := signalData(120, 2)

	fit := func(jobs int) []float64 {
		rf := ensemble.NewRandomForestRegressor(
			ensemble.WithNEstimators(20),
			ensemble.WithRandomState(7),
			ensemble.WithNJobs(jobs),
		)
		require.NoError(t, rf.Fit(X, y))
		return rf.FeatureImportances()
	}

	assert.Equal(t, fit(1), fit(4))
}

func TestRandomForestRegressor_Predicts(t *testing.T) {
	X, y := signalData(400, 3)
	Xt, yt := signalData(100, 4)

	rf := ensemble.NewRandomForestRegressor(ensemble.WithNEstimators(25), ensemble.WithRandomState(1))
	require.NoError(t, rf.Fit(X, y))

	pred, err := rf.Predict(Xt)
	require.NoError(t, err)

	r2, err := metrics.R2Score(mat.VecDenseCopyOf(yt.ColView(0)), mat.VecDenseCopyOf(pred.(*mat.Dense).ColView(0)))
	require.NoError(t, err)
	assert.Greater(t, r2, 0.8)
}

func TestRandomForestRegressor_Errors(t *testing.T) {
	rf := ensemble.NewRandomForestRegressor()
	_, err := rf.Predict(mat.NewDense(1, 3, nil))
	var nf *fireErrors.NotFittedError
	assert.ErrorAs(t, err, &nf)

	X, y := signalData(10, 5)
	err = ensemble.NewRandomForestRegressor(ensemble.WithNEstimators(0)).Fit(X, y)
	assert.ErrorIs(t, err, fireErrors.ErrInvalidValue)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = ensemble.NewRandomForestRegressor(ensemble.WithNEstimators(5)).FitContext(ctx, X, y)
	assert.ErrorIs(t, err, context.Canceled)
}
