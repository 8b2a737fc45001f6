package preprocessing

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/firearea/core/model"
	fireErrors "github.com/ezoic/firearea/pkg/errors"
)

// LabelEncoder maps the distinct values of one categorical column to the
// integer codes 0..k-1. Codes follow lexicographic order of the category
// strings, so the mapping depends only on the set of values seen, never on
// row order.
type LabelEncoder struct {
	model.BaseEstimator

	// Classes holds the sorted categories; the code of Classes[i] is i.
	Classes []string

	// ClassToCode is the reverse lookup of Classes.
	ClassToCode map[string]int
}

// NewLabelEncoder creates an unfitted LabelEncoder.
//
// Example:
//
//	enc := preprocessing.NewLabelEncoder()
//	codes, err := enc.FitTransform([]string{"mar", "oct", "aug"})
//	// codes: [1 2 0]
func NewLabelEncoder() *LabelEncoder {
	e := &LabelEncoder{}
	e.ModelType = "LabelEncoder"
	return e
}

// Fit learns the sorted set of categories.
//
// Errors:
//   - ErrEmptyData: if values is empty
//   - ErrInvalidValue: if any value is the empty string
func (e *LabelEncoder) Fit(values []string) (err error) {
	defer fireErrors.Recover(&err, "LabelEncoder.Fit")
	if len(values) == 0 {
		return fireErrors.NewModelError("LabelEncoder.Fit", "empty data", fireErrors.ErrEmptyData)
	}

	seen := make(map[string]struct{})
	for i, v := range values {
		if v == "" {
			return fireErrors.NewValueError("LabelEncoder.Fit", fmt.Sprintf("empty category at index %d", i))
		}
		seen[v] = struct{}{}
	}

	classes := make([]string, 0, len(seen))
	for v := range seen {
		classes = append(classes, v)
	}
	sort.Strings(classes)

	e.Classes = classes
	e.ClassToCode = make(map[string]int, len(classes))
	for code, c := range classes {
		e.ClassToCode[c] = code
	}

	e.SetFitted()
	e.LogDebug("LabelEncoder fitted", "data.samples", len(values), "n_classes", len(classes))
	return nil
}

// Transform returns the code of each value. A category not seen during Fit
// is an error.
func (e *LabelEncoder) Transform(values []string) (_ []int, err error) {
	defer fireErrors.Recover(&err, "LabelEncoder.Transform")
	if !e.IsFitted() {
		return nil, fireErrors.NewNotFittedError("LabelEncoder", "Transform")
	}

	codes := make([]int, len(values))
	for i, v := range values {
		code, ok := e.ClassToCode[v]
		if !ok {
			return nil, fireErrors.NewValueError("LabelEncoder.Transform",
				fmt.Sprintf("unknown category %q at index %d", v, i))
		}
		codes[i] = code
	}
	return codes, nil
}

// FitTransform fits on values and encodes them.
func (e *LabelEncoder) FitTransform(values []string) ([]int, error) {
	if err := e.Fit(values); err != nil {
		return nil, err
	}
	return e.Transform(values)
}

// Code returns the code for a single category.
func (e *LabelEncoder) Code(value string) (int, error) {
	if !e.IsFitted() {
		return 0, fireErrors.NewNotFittedError("LabelEncoder", "Code")
	}
	code, ok := e.ClassToCode[value]
	if !ok {
		return 0, fireErrors.NewValueError("LabelEncoder.Code", fmt.Sprintf("unknown category %q", value))
	}
	return code, nil
}

// InverseTransform maps codes back to categories.
func (e *LabelEncoder) InverseTransform(codes []int) ([]string, error) {
	if !e.IsFitted() {
		return nil, fireErrors.NewNotFittedError("LabelEncoder", "InverseTransform")
	}

	out := make([]string, len(codes))
	for i, code := range codes {
		if code < 0 || code >= len(e.Classes) {
			return nil, fireErrors.NewValueError("LabelEncoder.InverseTransform",
				fmt.Sprintf("code %d out of range [0, %d)", code, len(e.Classes)))
		}
		out[i] = e.Classes[code]
	}
	return out, nil
}

// TransformColumn encodes values into a single-column matrix.
func (e *LabelEncoder) TransformColumn(values []string) (mat.Matrix, error) {
	codes, err := e.Transform(values)
	if err != nil {
		return nil, err
	}
	out := mat.NewDense(len(codes), 1, nil)
	for i, c := range codes {
		out.Set(i, 0, float64(c))
	}
	return out, nil
}

// String returns a short description.
func (e *LabelEncoder) String() string {
	if !e.IsFitted() {
		return "LabelEncoder()"
	}
	return fmt.Sprintf("LabelEncoder(n_classes=%d)", len(e.Classes))
}
