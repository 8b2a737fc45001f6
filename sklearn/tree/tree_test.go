package tree

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	fireErrors "github.com/ezoic/firearea/pkg/errors"
)

func stepData(n int, seed uint64) (*mat.Dense, *mat.Dense) {
	rng := rand.New(rand.NewPCG(seed, seed))
	X := mat.NewDense(n, 3, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		x0 := rng.Float64()
		X.Set(i, 0, x0)
		X.Set(i, 1, rng.Float64())
		X.Set(i, 2, rng.Float64())
		v := 1.0
		if x0 > 0.5 {
			v = 5.0
		}
		y.Set(i, 0, v)
	}
	return X, y
}

func TestDecisionTreeRegressor_LearnsStep(t *testing.T) {
	X, y := stepData(200, 1)

	dt := NewDecisionTreeRegressor(WithMaxDepth(1))
	require.NoError(t, dt.Fit(X, y))

	assert.Equal(t, 0, dt.root.Feature)
	assert.InDelta(t, 0.5, dt.root.Threshold, 0.05)
	assert.Equal(t, 2, dt.GetNLeaves())
	assert.Equal(t, 1, dt.GetDepth())

	pred, err := dt.Predict(mat.NewDense(2, 3, []float64{0.1, 0.9, 0.9, 0.9, 0.1, 0.1}))
	require.NoError(t, err)
	assert.Equal(t, 1.0, pred.At(0, 0))
	assert.Equal(t, 5.0, pred.At(1, 0))

	imp := dt.FeatureImportances()
	assert.InDelta(t, 1.0, imp[0], 1e-12)
	assert.Equal(t, 0.0, imp[1])
	assert.Equal(t, 0.0, imp[2])
}

func TestDecisionTreeRegressor_FullyGrownInterpolatesTraining(t *testing.T) {
	rng := rand.New(rand.NewPCG(2, 2))
	n := 60
	X := mat.NewDense(n, 2, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		a, b := rng.Float64(), rng.Float64()
		X.Set(i, 0, a)
		X.Set(i, 1, b)
		y.Set(i, 0, math.Sin(6*a)+b*b)
	}

	dt := NewDecisionTreeRegressor()
	require.NoError(t, dt.Fit(X, y))

	pred, err := dt.Predict(X)
	require.NoError(t, err)
	for i := 0; i < n; i++ {
		assert.InDelta(t, y.At(i, 0), pred.At(i, 0), 1e-12)
	}

	sum := 0.0
	for _, v := range dt.FeatureImportances() {
		assert.GreaterOrEqual(t, v, 0.0)
		sum += v
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestDecisionTreeRegressor_FitSampleUsesRepeats(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{0, 1, 2, 3})
	y := mat.NewDense(4, 1, []float64{0, 0, 10, 10})

	dt := NewDecisionTreeRegressor(WithMaxDepth(0))
	require.NoError(t, dt.FitSample(X, y, []int{0, 0, 0, 2}))

	assert.Equal(t, 4, dt.root.NSamples)
	assert.InDelta(t, 2.5, dt.root.Value, 1e-12)
	assert.InDelta(t, 1.0, dt.root.Threshold, 1e-12)
}

func TestDecisionTreeRegressor_ConstantTargetIsLeaf(t *testing.T) {
	X, _ := stepData(20, 3)
	y := mat.NewDense(20, 1, nil)
	for i := 0; i < 20; i++ {
		y.Set(i, 0, 7)
	}

	dt := NewDecisionTreeRegressor()
	require.NoError(t, dt.Fit(X, y))
	assert.Equal(t, 1, dt.GetNLeaves())
	assert.Equal(t, []float64{0, 0, 0}, dt.FeatureImportances())
}

func TestDecisionTreeRegressor_MinSamplesLeaf(t *testing.T) {
	X, y := stepData(100, 4)
	dt := NewDecisionTreeRegressor(WithMinSamplesLeaf(10))
	require.NoError(t, dt.Fit(X, y))

	var walk func(*TreeNode)
	walk = func(n *TreeNode) {
		if n.IsLeaf {
			assert.GreaterOrEqual(t, n.NSamples, 10)
			return
		}
		walk(n.Left)
		walk(n.Right)
	}
	walk(dt.root)
}

func TestDecisionTreeRegressor_Errors(t *testing.T) {
	dt := NewDecisionTreeRegressor()
	_, err := dt.Predict(mat.NewDense(1, 1, nil))
	var nf *fireErrors.NotFittedError
	require.ErrorAs(t, err, &nf)

	err = dt.Fit(mat.NewDense(3, 1, nil), mat.NewDense(2, 1, nil))
	var de *fireErrors.DimensionError
	require.ErrorAs(t, err, &de)

	X, y := stepData(10, 5)
	require.NoError(t, dt.Fit(X, y))
	_, err = dt.Predict(mat.NewDense(1, 2, nil))
	assert.ErrorAs(t, err, &de)
}
