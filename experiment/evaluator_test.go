package experiment

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	fireErrors "github.com/ezoic/firearea/pkg/errors"
	"github.com/ezoic/firearea/sklearn/neural_network"
)

// fixedModel predicts a fixed log-space vector regardless of input.
type fixedModel struct {
	pred []float64
}

func (m fixedModel) Predict(X mat.Matrix) (mat.Matrix, error) {
	return mat.NewDense(len(m.pred), 1, append([]float64(nil), m.pred...)), nil
}

func (m fixedModel) Evaluate(X, y mat.Matrix) (loss, mae float64, err error) {
	for i, p := range m.pred {
		d := p - y.At(i, 0)
		loss += d * d
		mae += math.Abs(d)
	}
	n := float64(len(m.pred))
	return loss / n, mae / n, nil
}

func logColumn(vals ...float64) *mat.Dense {
	out := mat.NewDense(len(vals), 1, nil)
	for i, v := range vals {
		out.Set(i, 0, math.Log1p(v))
	}
	return out
}

func logVector(vals ...float64) []float64 {
	out := make([]float64, len(vals))
	for i, v := range vals {
		out[i] = math.Log1p(v)
	}
	return out
}

var someHistory = neural_network.History{
	Loss:    []float64{2, 1.5, 1.25},
	ValLoss: []float64{2.5, 2, 1.75},
	MAE:     []float64{1, 0.9, 0.8},
	ValMAE:  []float64{1.1, 1, 0.95},
}

func TestEvaluator_MetricsInOriginalUnits(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{0.1, 0.2, 0.3, 0.4})
	y := logColumn(0, 1, 3, 7)
	m := fixedModel{pred: logVector(1, 1, 3, 5)}

	eval, err := NewEvaluator().Evaluate(m, X, y, someHistory)
	require.NoError(t, err)

	rec := eval.Record
	require.Len(t, rec, len(MetricKeys))
	for _, k := range MetricKeys {
		assert.Contains(t, rec, k)
	}
	assert.InDelta(t, math.Sqrt(1.25), rec[MetricRMSE], 1e-9)
	assert.InDelta(t, 1-5/28.75, rec[MetricR2], 1e-9)
	assert.InDelta(t, 1-(5/28.75)*3/2, rec[MetricAdjustedR2], 1e-9)
	assert.Equal(t, 1.25, rec[MetricFinalTrainingLoss])
	assert.Equal(t, 1.75, rec[MetricFinalValidationLoss])

	assert.InDeltaSlice(t, []float64{1, 1, 3, 5}, eval.Predictions, 1e-9)
	assert.InDeltaSlice(t, []float64{0, 1, 3, 7}, eval.Actual, 1e-9)
	assert.Greater(t, eval.RawLoss, 0.0)
	assert.Greater(t, eval.RawMAE, 0.0)
}

func TestEvaluator_NegativeR2IsReported(t *testing.T) {
	X := mat.NewDense(5, 2, nil)
	y := logColumn(0, 0, 0, 10, 20)
	m := fixedModel{pred: logVector(30, 30, 30, 0, 0)}

	eval, err := NewEvaluator().Evaluate(m, X, y, someHistory)
	require.NoError(t, err)
	assert.Less(t, eval.Record[MetricR2], 0.0)
	assert.Less(t, eval.Record[MetricAdjustedR2], eval.Record[MetricR2])
}

func TestEvaluator_UndefinedAdjustedR2(t *testing.T) {
	// n=3, p=2 leaves n-p-1 = 0 degrees of freedom.
	X := mat.NewDense(3, 2, nil)
	y := logColumn(0, 1, 2)
	m := fixedModel{pred: logVector(0, 1, 1)}

	_, err := NewEvaluator().Evaluate(m, X, y, someHistory)
	require.ErrorIs(t, err, fireErrors.ErrUndefinedMetric)
	assert.Contains(t, err.Error(), "non-positive degrees of freedom")
}

func TestEvaluator_Errors(t *testing.T) {
	X := mat.NewDense(4, 1, nil)
	y := logColumn(0, 1, 3, 7)
	m := fixedModel{pred: logVector(1, 1, 3, 5)}
	e := NewEvaluator()

	_, err := e.Evaluate(m, X, y, neural_network.History{Loss: []float64{1}})
	assert.ErrorIs(t, err, fireErrors.ErrEmptyData)

	_, err = e.Evaluate(m, X, logColumn(1, 2), someHistory)
	var de *fireErrors.DimensionError
	assert.ErrorAs(t, err, &de)

}

func TestEvaluator_ConstantTargetScoresZero(t *testing.T) {
	X := mat.NewDense(4, 1, nil)
	eval, err := NewEvaluator().Evaluate(fixedModel{pred: logVector(1, 1, 1, 1)}, X, logColumn(2, 2, 2, 2), someHistory)
	require.NoError(t, err)
	assert.Equal(t, 0.0, eval.Record[MetricR2])
	assert.InDelta(t, -0.5, eval.Record[MetricAdjustedR2], 1e-12)
	assert.InDelta(t, 1.0, eval.Record[MetricRMSE], 1e-9)
}

func TestMetricRecord_Format(t *testing.T) {
	rec := MetricRecord{
		MetricRMSE:                12.345678,
		MetricR2:                  -0.14049,
		MetricAdjustedR2:          -0.17142,
		MetricFinalTrainingLoss:   1.9,
		MetricFinalValidationLoss: 2.00004,
	}
	got := rec.Format()
	assert.Equal(t,
		"RMSE: 12.3457, R²: -0.1405, Adjusted R²: -0.1714, final_training_loss: 1.9000, final_validation_loss: 2.0000",
		got)
	assert.Equal(t, 5, strings.Count(got, ":"))
}
