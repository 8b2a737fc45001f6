package preprocessing

import (
	"fmt"
	"math"

	fireErrors "github.com/ezoic/firearea/pkg/errors"
)

// Log1p returns ln(x+1). x must be finite and greater than -1.
func Log1p(x float64) (float64, error) {
	if math.IsNaN(x) || math.IsInf(x, 0) || x <= -1 {
		return 0, fireErrors.NewValueError("preprocessing.Log1p", fmt.Sprintf("log1p undefined for %v", x))
	}
	return math.Log1p(x), nil
}

// Expm1 is the inverse of Log1p: exp(v) - 1.
func Expm1(v float64) float64 {
	return math.Expm1(v)
}

// Log1pSlice applies Log1p to every element, failing on the first invalid value.
func Log1pSlice(xs []float64) ([]float64, error) {
	out := make([]float64, len(xs))
	for i, x := range xs {
		v, err := Log1p(x)
		if err != nil {
			return nil, fireErrors.Wrapf(err, "element %d", i)
		}
		out[i] = v
	}
	return out, nil
}

// Expm1Slice inverts Log1pSlice.
func Expm1Slice(vs []float64) []float64 {
	out := make([]float64, len(vs))
	for i, v := range vs {
		out[i] = math.Expm1(v)
	}
	return out
}
