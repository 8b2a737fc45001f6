package model

import "gonum.org/v1/gonum/mat"

// Transformer is an interface for column-wise data transformation
type Transformer interface {
	// Fit learns parameters necessary for transformation
	Fit(X mat.Matrix) error

	// Transform transforms data
	Transform(X mat.Matrix) (mat.Matrix, error)

	// FitTransform executes Fit and Transform simultaneously
	FitTransform(X mat.Matrix) (mat.Matrix, error)
}

// InverseTransformer can map transformed values back to the original space.
type InverseTransformer interface {
	Transformer
	InverseTransform(X mat.Matrix) (mat.Matrix, error)
}

// Regressor is a supervised estimator with a real-valued output.
type Regressor interface {
	Fit(X, y mat.Matrix) error
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// FeatureImportancer exposes per-feature importance scores after fitting.
type FeatureImportancer interface {
	FeatureImportances() []float64
}
