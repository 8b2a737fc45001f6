package metrics_test

import (
	"fmt"
	"log/slog"

	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/firearea/metrics"
)

// ExampleMSE demonstrates Mean Squared Error calculation
func ExampleMSE() {
	yTrue := mat.NewVecDense(4, []float64{1.0, 2.0, 3.0, 4.0})
	yPred := mat.NewVecDense(4, []float64{1.1, 1.9, 3.2, 3.8})

	mse, err := metrics.MSE(yTrue, yPred)
	if err != nil {
		slog.Error("Test failed", "error", err)
		return
	}

	fmt.Printf("MSE: %.3f\n", mse)

	// Output: MSE: 0.025
}

// ExampleRMSE demonstrates Root Mean Squared Error calculation
func ExampleRMSE() {
	yTrue := mat.NewVecDense(3, []float64{10.0, 20.0, 30.0})
	yPred := mat.NewVecDense(3, []float64{12.0, 18.0, 32.0})

	rmse, err := metrics.RMSE(yTrue, yPred)
	if err != nil {
		slog.Error("Test failed", "error", err)
		return
	}

	fmt.Printf("RMSE: %.2f\n", rmse)

	// Output: RMSE: 2.00
}

func ExampleR2Score() {
	yTrue := mat.NewVecDense(4, []float64{3.0, -0.5, 2.0, 7.0})
	yPred := mat.NewVecDense(4, []float64{2.5, 0.0, 2.0, 8.0})

	r2, err := metrics.R2Score(yTrue, yPred)
	if err != nil {
		slog.Error("Test failed", "error", err)
		return
	}

	fmt.Printf("R²: %.4f\n", r2)

	// Output: R²: 0.9486
}

// ExampleAdjustedR2 shows the penalty for extra predictors.
func ExampleAdjustedR2() {
	for _, p := range []int{1, 2, 5} {
		adj, err := metrics.AdjustedR2(0.5, 21, p)
		if err != nil {
			fmt.Println(err)
			continue
		}
		fmt.Printf("p=%d: %.4f\n", p, adj)
	}

	_, err := metrics.AdjustedR2(0.5, 3, 2)
	fmt.Println(err)

	// Output:
	// p=1: 0.4737
	// p=2: 0.4444
	// p=5: 0.3333
	// firearea: AdjustedR2: non-positive degrees of freedom: undefined metric
}
