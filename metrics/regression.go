// Package metrics provides the regression metrics used to score burned-area
// predictions.
//
// Regression Metrics:
//   - MSE: Mean Squared Error
//   - RMSE: Root Mean Squared Error (square root of MSE)
//   - MAE: Mean Absolute Error
//   - R2Score: coefficient of determination, may be negative
//   - AdjustedR2: R² penalised for the number of predictors
//
// Example usage:
//
//	rmse, err := metrics.RMSE(yTrue, yPred)
//	r2, err := metrics.R2Score(yTrue, yPred)
//	adj, err := metrics.AdjustedR2(r2, yTrue.Len(), len(features))
package metrics

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	fireErrors "github.com/ezoic/firearea/pkg/errors"
)

func checkPair(op string, yTrue, yPred *mat.VecDense) (int, error) {
	n := yTrue.Len()
	if n == 0 {
		return 0, fireErrors.NewModelError(op, "empty vector", fireErrors.ErrEmptyData)
	}
	if yPred.Len() != n {
		return 0, fireErrors.NewDimensionError(op, n, yPred.Len(), 0)
	}
	return n, nil
}

// MSE calculates the Mean Squared Error between true and predicted values.
//
// Errors:
//   - ErrEmptyData: if input vectors are empty
//   - *DimensionError: if yTrue and yPred have different lengths
//
// Example:
//
//	mse, err := metrics.MSE(yTrue, yPred)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("MSE: %.4f\n", mse)
func MSE(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("MSE", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	var sum float64
	for i := 0; i < n; i++ {
		diff := yTrue.AtVec(i) - yPred.AtVec(i)
		sum += diff * diff
	}
	return sum / float64(n), nil
}

// MSEMatrix calculates MSE for n×1 column matrices.
func MSEMatrix(yTrue, yPred mat.Matrix) (float64, error) {
	t, p, err := columnPair("MSEMatrix", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return MSE(t, p)
}

// RMSE is the square root of MSE, in the units of the target.
func RMSE(yTrue, yPred *mat.VecDense) (float64, error) {
	mse, err := MSE(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}

// MAE calculates the Mean Absolute Error between true and predicted values.
func MAE(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("MAE", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	var sum float64
	for i := 0; i < n; i++ {
		sum += math.Abs(yTrue.AtVec(i) - yPred.AtVec(i))
	}
	return sum / float64(n), nil
}

// R2Score calculates the coefficient of determination.
//
// R² = 1 - RSS/TSS. It is 1 for perfect predictions, 0 for predicting the
// mean, and negative when the model does worse than the mean. Negative values
// are returned as-is.
//
// Errors:
//   - ErrEmptyData: if input vectors are empty
//   - *DimensionError: if yTrue and yPred have different lengths
//
// A constant yTrue scores 1 when predicted exactly and 0 otherwise.
func R2Score(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("R2Score", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	var yMean float64
	for i := 0; i < n; i++ {
		yMean += yTrue.AtVec(i)
	}
	yMean /= float64(n)

	var tss, rss float64
	for i := 0; i < n; i++ {
		t := yTrue.AtVec(i)
		d := t - yPred.AtVec(i)
		tss += (t - yMean) * (t - yMean)
		rss += d * d
	}

	if tss == 0 {
		if rss == 0 {
			return 1, nil
		}
		return 0, nil
	}
	return 1 - rss/tss, nil
}

// AdjustedR2 corrects r2 for p predictors fitted on n samples:
//
//	1 - (1 - r2) * (n - 1) / (n - p - 1)
//
// The correction is undefined when n - p - 1 <= 0, which is reported as
// ErrUndefinedMetric rather than returning Inf or NaN.
//
// Example:
//
//	adj, err := metrics.AdjustedR2(0.42, 77, 2)
func AdjustedR2(r2 float64, n, p int) (float64, error) {
	if n <= 0 {
		return 0, fireErrors.NewModelError("AdjustedR2", "no samples", fireErrors.ErrEmptyData)
	}
	if p < 0 {
		return 0, fireErrors.NewValueError("AdjustedR2", fmt.Sprintf("negative predictor count %d", p))
	}
	dof := n - p - 1
	if dof <= 0 {
		return 0, fireErrors.NewModelError("AdjustedR2", "non-positive degrees of freedom", fireErrors.ErrUndefinedMetric)
	}
	return 1 - (1-r2)*float64(n-1)/float64(dof), nil
}

func columnPair(op string, yTrue, yPred mat.Matrix) (*mat.VecDense, *mat.VecDense, error) {
	rTrue, cTrue := yTrue.Dims()
	rPred, cPred := yPred.Dims()
	if rTrue == 0 || cTrue == 0 {
		return nil, nil, fireErrors.NewModelError(op, "empty matrix", fireErrors.ErrEmptyData)
	}
	if rTrue != rPred || cTrue != cPred {
		return nil, nil, fireErrors.NewDimensionError(op, rTrue, rPred, 0)
	}
	if cTrue != 1 {
		return nil, nil, fireErrors.NewValueError(op, "must be a column vector (n×1 matrix)")
	}
	t := mat.NewVecDense(rTrue, nil)
	p := mat.NewVecDense(rPred, nil)
	for i := 0; i < rTrue; i++ {
		t.SetVec(i, yTrue.At(i, 0))
		p.SetVec(i, yPred.At(i, 0))
	}
	return t, p, nil
}
