package experiment

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/firearea/metrics"
	fireErrors "github.com/ezoic/firearea/pkg/errors"
	"github.com/ezoic/firearea/pkg/log"
	"github.com/ezoic/firearea/preprocessing"
	"github.com/ezoic/firearea/sklearn/neural_network"
)

// Metric record keys.
const (
	MetricRMSE                = "RMSE"
	MetricR2                  = "R²"
	MetricAdjustedR2          = "Adjusted R²"
	MetricFinalTrainingLoss   = "final_training_loss"
	MetricFinalValidationLoss = "final_validation_loss"
)

// MetricKeys lists the record keys in display order.
var MetricKeys = []string{
	MetricRMSE, MetricR2, MetricAdjustedR2, MetricFinalTrainingLoss, MetricFinalValidationLoss,
}

// MetricRecord holds exactly the MetricKeys. RMSE and the R² scores are in
// original area units; the losses are the last history entries.
type MetricRecord map[string]float64

// Format renders every metric with four decimals in MetricKeys order.
func (r MetricRecord) Format() string {
	parts := make([]string, 0, len(MetricKeys))
	for _, k := range MetricKeys {
		if v, ok := r[k]; ok {
			parts = append(parts, fmt.Sprintf("%s: %.4f", k, v))
		}
	}
	return strings.Join(parts, ", ")
}

// Model is what the evaluator needs from a fitted network.
type Model interface {
	Predict(X mat.Matrix) (mat.Matrix, error)
	Evaluate(X, y mat.Matrix) (loss, mae float64, err error)
}

// Evaluation is the result of evaluating a model on one split.
type Evaluation struct {
	// RawLoss and RawMAE are the network's own MSE and MAE in log space.
	RawLoss float64
	RawMAE  float64
	// Predictions are in original units, aligned with Actual.
	Predictions []float64
	Actual      []float64
	Record      MetricRecord
}

// Evaluator computes metric records on held-out splits.
type Evaluator struct {
	logger log.Logger
}

// NewEvaluator creates an Evaluator.
func NewEvaluator() *Evaluator {
	return &Evaluator{logger: log.GetLoggerWithName("Evaluator")}
}

// Evaluate scores m on (X, yLog). Predictions and targets are mapped back
// with exp(v)-1 before RMSE, R² and adjusted R² are computed; p is the number
// of columns of X.
//
// Errors:
//   - ErrUndefinedMetric: if n-p-1 <= 0 (adjusted R²)
//   - ErrEmptyData: if history lacks training or validation loss
//   - ErrInvalidValue: if any metric comes out non-finite
func (e *Evaluator) Evaluate(m Model, X, yLog mat.Matrix, history neural_network.History) (*Evaluation, error) {
	n, p := X.Dims()
	if yr, yc := yLog.Dims(); yr != n || yc != 1 {
		return nil, fireErrors.NewDimensionError("Evaluator.Evaluate", n, yr, 0)
	}
	finalLoss, err := history.Final("loss")
	if err != nil {
		return nil, err
	}
	finalValLoss, err := history.Final("val_loss")
	if err != nil {
		return nil, err
	}

	rawLoss, rawMAE, err := m.Evaluate(X, yLog)
	if err != nil {
		return nil, err
	}
	pred, err := m.Predict(X)
	if err != nil {
		return nil, err
	}

	predOrig := preprocessing.Expm1Slice(mat.Col(nil, 0, pred))
	actOrig := preprocessing.Expm1Slice(mat.Col(nil, 0, yLog))
	yTrue := mat.NewVecDense(n, actOrig)
	yPred := mat.NewVecDense(n, predOrig)

	rmse, err := metrics.RMSE(yTrue, yPred)
	if err != nil {
		return nil, err
	}
	r2, err := metrics.R2Score(yTrue, yPred)
	if err != nil {
		return nil, err
	}
	adj, err := metrics.AdjustedR2(r2, n, p)
	if err != nil {
		return nil, err
	}

	record := MetricRecord{
		MetricRMSE:                rmse,
		MetricR2:                  r2,
		MetricAdjustedR2:          adj,
		MetricFinalTrainingLoss:   finalLoss,
		MetricFinalValidationLoss: finalValLoss,
	}
	for _, k := range MetricKeys {
		if v := record[k]; math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fireErrors.NewValueError("Evaluator.Evaluate", fmt.Sprintf("%s is not finite", k))
		}
	}

	e.logger.Debug("Evaluation completed",
		log.OperationKey, log.OperationEvaluate,
		log.SamplesKey, n,
		log.FeaturesKey, p,
		log.RMSEKey, rmse,
		log.R2ScoreKey, r2,
	)
	return &Evaluation{
		RawLoss:     rawLoss,
		RawMAE:      rawMAE,
		Predictions: predOrig,
		Actual:      actOrig,
		Record:      record,
	}, nil
}
