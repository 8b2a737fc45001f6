package metrics_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/firearea/metrics"
	fireErrors "github.com/ezoic/firearea/pkg/errors"
)

func TestRegressionMetrics(t *testing.T) {
	yTrue := mat.NewVecDense(5, []float64{0, 1, 2, 3, 4})
	yPred := mat.NewVecDense(5, []float64{0, 1, 2, 3, 6})

	mse, err := metrics.MSE(yTrue, yPred)
	require.NoError(t, err)
	assert.InDelta(t, 0.8, mse, 1e-12)

	rmse, err := metrics.RMSE(yTrue, yPred)
	require.NoError(t, err)
	assert.InDelta(t, 0.894427190999916, rmse, 1e-12)

	mae, err := metrics.MAE(yTrue, yPred)
	require.NoError(t, err)
	assert.InDelta(t, 0.4, mae, 1e-12)

	r2, err := metrics.R2Score(yTrue, yPred)
	require.NoError(t, err)
	assert.InDelta(t, 0.6, r2, 1e-12)

	mseM, err := metrics.MSEMatrix(mat.NewDense(5, 1, yTrue.RawVector().Data), mat.NewDense(5, 1, yPred.RawVector().Data))
	require.NoError(t, err)
	assert.Equal(t, mse, mseM)
}

func TestR2Score_NegativeIsReturned(t *testing.T) {
	yTrue := mat.NewVecDense(3, []float64{1, 2, 3})
	yPred := mat.NewVecDense(3, []float64{3, 2, 1})

	r2, err := metrics.R2Score(yTrue, yPred)
	require.NoError(t, err)
	assert.InDelta(t, -3.0, r2, 1e-12)
}

func TestR2Score_ConstantTarget(t *testing.T) {
	y := mat.NewVecDense(3, []float64{2, 2, 2})
	r2, err := metrics.R2Score(y, y)
	require.NoError(t, err)
	assert.Equal(t, 1.0, r2)

	r2, err = metrics.R2Score(y, mat.NewVecDense(3, []float64{2, 3, 1}))
	require.NoError(t, err)
	assert.Equal(t, 0.0, r2)
}

func TestAdjustedR2(t *testing.T) {
	tests := []struct {
		name    string
		r2      float64
		n, p    int
		want    float64
		wantErr error
	}{
		{name: "two predictors", r2: 0.5, n: 77, p: 2, want: 1 - 0.5*76.0/74.0},
		{name: "perfect fit", r2: 1, n: 10, p: 3, want: 1},
		{name: "negative r2 stays negative", r2: -0.2, n: 50, p: 2, want: 1 - 1.2*49.0/47.0},
		{name: "zero dof", r2: 0.5, n: 3, p: 2, wantErr: fireErrors.ErrUndefinedMetric},
		{name: "negative dof", r2: 0.5, n: 2, p: 4, wantErr: fireErrors.ErrUndefinedMetric},
		{name: "no samples", r2: 0.5, n: 0, p: 1, wantErr: fireErrors.ErrEmptyData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := metrics.AdjustedR2(tt.r2, tt.n, tt.p)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestMetrics_InputErrors(t *testing.T) {
	_, err := metrics.MSE(mat.NewVecDense(2, nil), mat.NewVecDense(3, nil))
	var de *fireErrors.DimensionError
	assert.ErrorAs(t, err, &de)

	_, err = metrics.MSEMatrix(mat.NewDense(2, 2, nil), mat.NewDense(2, 2, nil))
	assert.ErrorIs(t, err, fireErrors.ErrInvalidValue)
}
