// Package preprocessing provides the column transforms applied to forest-fire
// observations before modelling.
//
// Components:
//
//   - MinMaxScaler: rescales each column to a target range, [0, 1] by default
//   - StandardScaler: removes the mean and scales to unit variance
//   - LabelEncoder: maps categories to dense integer codes in lexicographic order
//   - Log1p: the ln(x+1) target transform and its inverse
//   - Preprocessor: the fitted composition of the above for Observation tables
//
// Every component follows the Fit / Transform / FitTransform pattern and keeps
// its fitted parameters so the exact same mapping can be replayed at inference
// time.
//
// Example usage:
//
//	scaler := preprocessing.NewMinMaxScalerDefault()
//	scaled, err := scaler.FitTransform(trainX)
//	if err != nil {
//		log.Fatal(err)
//	}
//	scaledTest, err := scaler.Transform(testX)
package preprocessing

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/firearea/core/model"
	fireErrors "github.com/ezoic/firearea/pkg/errors"
)

// constantTolerance is the range below which a column counts as constant.
const constantTolerance = 1e-12

// MinMaxScaler rescales each column independently into FeatureRange using the
// per-column minimum and maximum observed during Fit.
type MinMaxScaler struct {
	model.BaseEstimator

	// DataMin is the per-column minimum seen in Fit
	DataMin []float64

	// DataMax is the per-column maximum seen in Fit
	DataMax []float64

	// Scale is max-min per column, or 1 for constant columns
	Scale []float64

	// NFeatures is the column count seen in Fit
	NFeatures int

	// FeatureRange is the output range [low, high]
	FeatureRange [2]float64
}

// NewMinMaxScaler creates a MinMaxScaler mapping columns into featureRange.
//
// The transformation is X_scaled = (X - min) / (max - min) * (high - low) + low.
// A constant column has max == min; it is mapped to low instead of dividing by zero.
func NewMinMaxScaler(featureRange [2]float64) *MinMaxScaler {
	s := &MinMaxScaler{FeatureRange: featureRange}
	s.ModelType = "MinMaxScaler"
	return s
}

// NewMinMaxScalerDefault creates a MinMaxScaler for the [0, 1] range.
func NewMinMaxScalerDefault() *MinMaxScaler {
	return NewMinMaxScaler([2]float64{0.0, 1.0})
}

// Fit records per-column minimum and maximum.
//
// Errors:
//   - ErrEmptyData: if X has no rows or columns
//   - ErrInvalidValue: if FeatureRange is not increasing or X holds NaN/Inf
func (m *MinMaxScaler) Fit(X mat.Matrix) (err error) {
	defer fireErrors.Recover(&err, "MinMaxScaler.Fit")
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return fireErrors.NewModelError("MinMaxScaler.Fit", "empty data", fireErrors.ErrEmptyData)
	}
	if m.FeatureRange[1] <= m.FeatureRange[0] {
		return fireErrors.NewValueError("MinMaxScaler.Fit",
			fmt.Sprintf("feature range must be increasing, got %v", m.FeatureRange))
	}

	m.NFeatures = c
	m.DataMin = make([]float64, c)
	m.DataMax = make([]float64, c)
	m.Scale = make([]float64, c)

	for j := 0; j < c; j++ {
		lo, hi := math.Inf(1), math.Inf(-1)
		for i := 0; i < r; i++ {
			v := X.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fireErrors.NewValueError("MinMaxScaler.Fit",
					fmt.Sprintf("non-finite value at row %d column %d", i, j))
			}
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
		m.DataMin[j] = lo
		m.DataMax[j] = hi

		if hi-lo < constantTolerance {
			m.Scale[j] = 1.0
		} else {
			m.Scale[j] = hi - lo
		}
	}

	m.SetFitted()
	m.LogDebug("MinMaxScaler fitted", "data.samples", r, "data.features", c)
	return nil
}

// Transform scales X with the fitted minimum and range. Values outside the
// fitted range map outside FeatureRange; they are not clipped.
func (m *MinMaxScaler) Transform(X mat.Matrix) (_ mat.Matrix, err error) {
	defer fireErrors.Recover(&err, "MinMaxScaler.Transform")
	if !m.IsFitted() {
		return nil, fireErrors.NewNotFittedError("MinMaxScaler", "Transform")
	}

	r, c := X.Dims()
	if c != m.NFeatures {
		return nil, fireErrors.NewDimensionError("MinMaxScaler.Transform", m.NFeatures, c, 1)
	}

	result := mat.NewDense(r, c, nil)
	span := m.FeatureRange[1] - m.FeatureRange[0]
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			std := (X.At(i, j) - m.DataMin[j]) / m.Scale[j]
			result.Set(i, j, std*span+m.FeatureRange[0])
		}
	}

	return result, nil
}

// FitTransform fits on X and returns X scaled.
func (m *MinMaxScaler) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := m.Fit(X); err != nil {
		return nil, err
	}
	return m.Transform(X)
}

// InverseTransform maps scaled values back to original units.
func (m *MinMaxScaler) InverseTransform(X mat.Matrix) (_ mat.Matrix, err error) {
	defer fireErrors.Recover(&err, "MinMaxScaler.InverseTransform")
	if !m.IsFitted() {
		return nil, fireErrors.NewNotFittedError("MinMaxScaler", "InverseTransform")
	}

	r, c := X.Dims()
	if c != m.NFeatures {
		return nil, fireErrors.NewDimensionError("MinMaxScaler.InverseTransform", m.NFeatures, c, 1)
	}

	result := mat.NewDense(r, c, nil)
	span := m.FeatureRange[1] - m.FeatureRange[0]
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			std := (X.At(i, j) - m.FeatureRange[0]) / span
			result.Set(i, j, std*m.Scale[j]+m.DataMin[j])
		}
	}

	return result, nil
}

// String returns a short description.
func (m *MinMaxScaler) String() string {
	if !m.IsFitted() {
		return fmt.Sprintf("MinMaxScaler(feature_range=[%.1f, %.1f])", m.FeatureRange[0], m.FeatureRange[1])
	}
	return fmt.Sprintf("MinMaxScaler(feature_range=[%.1f, %.1f], n_features=%d)",
		m.FeatureRange[0], m.FeatureRange[1], m.NFeatures)
}

// StandardScaler standardises columns to zero mean and unit variance.
// It is the alternative numeric scaler selectable in the experiment config.
type StandardScaler struct {
	model.BaseEstimator

	Mean      []float64
	Scale     []float64
	NFeatures int
	WithMean  bool
	WithStd   bool
}

// NewStandardScaler creates a StandardScaler.
func NewStandardScaler(withMean, withStd bool) *StandardScaler {
	s := &StandardScaler{WithMean: withMean, WithStd: withStd}
	s.ModelType = "StandardScaler"
	return s
}

// NewStandardScalerDefault centres and scales.
func NewStandardScalerDefault() *StandardScaler {
	return NewStandardScaler(true, true)
}

// Fit computes population mean and standard deviation per column. Columns with
// zero variance get scale 1.
func (s *StandardScaler) Fit(X mat.Matrix) (err error) {
	defer fireErrors.Recover(&err, "StandardScaler.Fit")
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return fireErrors.NewModelError("StandardScaler.Fit", "empty data", fireErrors.ErrEmptyData)
	}

	s.NFeatures = c
	s.Mean = make([]float64, c)
	s.Scale = make([]float64, c)

	for j := 0; j < c; j++ {
		if s.WithMean {
			sum := 0.0
			for i := 0; i < r; i++ {
				sum += X.At(i, j)
			}
			s.Mean[j] = sum / float64(r)
		}

		s.Scale[j] = 1.0
		if s.WithStd {
			mean := 0.0
			for i := 0; i < r; i++ {
				mean += X.At(i, j)
			}
			mean /= float64(r)
			ss := 0.0
			for i := 0; i < r; i++ {
				d := X.At(i, j) - mean
				ss += d * d
			}
			if sd := math.Sqrt(ss / float64(r)); sd > constantTolerance {
				s.Scale[j] = sd
			}
		}
	}

	s.SetFitted()
	return nil
}

// Transform applies (X - mean) / scale.
func (s *StandardScaler) Transform(X mat.Matrix) (_ mat.Matrix, err error) {
	defer fireErrors.Recover(&err, "StandardScaler.Transform")
	if !s.IsFitted() {
		return nil, fireErrors.NewNotFittedError("StandardScaler", "Transform")
	}

	r, c := X.Dims()
	if c != s.NFeatures {
		return nil, fireErrors.NewDimensionError("StandardScaler.Transform", s.NFeatures, c, 1)
	}

	result := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			result.Set(i, j, (X.At(i, j)-s.Mean[j])/s.Scale[j])
		}
	}
	return result, nil
}

// FitTransform fits on X and returns X standardised.
func (s *StandardScaler) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}

// InverseTransform applies X * scale + mean.
func (s *StandardScaler) InverseTransform(X mat.Matrix) (_ mat.Matrix, err error) {
	defer fireErrors.Recover(&err, "StandardScaler.InverseTransform")
	if !s.IsFitted() {
		return nil, fireErrors.NewNotFittedError("StandardScaler", "InverseTransform")
	}

	r, c := X.Dims()
	if c != s.NFeatures {
		return nil, fireErrors.NewDimensionError("StandardScaler.InverseTransform", s.NFeatures, c, 1)
	}

	result := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			result.Set(i, j, X.At(i, j)*s.Scale[j]+s.Mean[j])
		}
	}
	return result, nil
}

// String returns a short description.
func (s *StandardScaler) String() string {
	return fmt.Sprintf("StandardScaler(with_mean=%t, with_std=%t)", s.WithMean, s.WithStd)
}

var (
	_ model.InverseTransformer = (*MinMaxScaler)(nil)
	_ model.InverseTransformer = (*StandardScaler)(nil)
)
