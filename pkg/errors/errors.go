// Package errors provides the error taxonomy used across firearea.
//
// It builds on github.com/cockroachdb/errors so every error created here carries
// a stack trace (visible with %+v) while remaining compatible with the standard
// errors.Is / errors.As helpers.
//
// The taxonomy follows the failure classes of an offline experiment run:
//
//   - DataError: invalid input rows (missing cells, values outside the domain)
//   - ValueError / DimensionError: bad arguments to an estimator or metric
//   - NotFittedError: an estimator used before Fit
//   - ValidationError: rejected configuration, checked before training starts
//   - ModelError: an operation failure wrapping a sentinel cause
//
// Sentinels such as ErrUndefinedMetric and ErrTrackingStore let callers branch
// on the failure class without string matching.
package errors

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

// Sentinel causes. Typed errors wrap one of these so errors.Is works through
// any amount of wrapping.
var (
	ErrNotImplemented  = errors.New("not implemented")
	ErrEmptyData       = errors.New("empty data")
	ErrSingularMatrix  = errors.New("singular matrix")
	ErrMissingValue    = errors.New("missing value")
	ErrInvalidValue    = errors.New("invalid value")
	ErrUndefinedMetric = errors.New("undefined metric")
	ErrTrackingStore   = errors.New("tracking store failure")
	ErrInvalidConfig   = errors.New("invalid configuration")
	ErrAlreadyFitted   = errors.New("already fitted")
)

// Re-exported helpers so callers only import one errors package.
var (
	New    = errors.New
	Newf   = errors.Newf
	Wrap   = errors.Wrap
	Wrapf  = errors.Wrapf
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
)

// NotFittedError is returned when an estimator is used before Fit.
type NotFittedError struct {
	ModelName string
	Method    string
}

// NewNotFittedError creates a NotFittedError.
func NewNotFittedError(modelName, method string) error {
	return &NotFittedError{ModelName: modelName, Method: method}
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf("firearea: %s is not fitted yet. Call Fit before %s", e.ModelName, e.Method)
}

// DimensionError reports a shape mismatch along Axis (0 rows, 1 columns).
type DimensionError struct {
	Op       string
	Expected int
	Got      int
	Axis     int
}

// NewDimensionError creates a DimensionError.
func NewDimensionError(op string, expected, got, axis int) error {
	return &DimensionError{Op: op, Expected: expected, Got: got, Axis: axis}
}

func (e *DimensionError) Error() string {
	axis := "rows"
	if e.Axis == 1 {
		axis = "columns"
	}
	return fmt.Sprintf("firearea: %s: dimension mismatch in %s: expected %d, got %d", e.Op, axis, e.Expected, e.Got)
}

// ValueError reports an invalid argument value.
type ValueError struct {
	Op      string
	Message string
}

// NewValueError creates a ValueError.
func NewValueError(op, message string) error {
	return &ValueError{Op: op, Message: message}
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("firearea: %s: %s", e.Op, e.Message)
}

// Unwrap lets errors.Is(err, ErrInvalidValue) match value errors.
func (e *ValueError) Unwrap() error { return ErrInvalidValue }

// ModelError wraps an underlying cause with the failing operation.
type ModelError struct {
	Op   string
	Kind string
	Err  error
}

// NewModelError creates a ModelError.
func NewModelError(op, kind string, err error) error {
	return &ModelError{Op: op, Kind: kind, Err: err}
}

func (e *ModelError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("firearea: %s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("firearea: %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *ModelError) Unwrap() error { return e.Err }

// ValidationError reports a configuration value rejected before any work starts.
type ValidationError struct {
	ParamName string
	Reason    string
	Value     interface{}
}

// NewValidationError creates a ValidationError.
func NewValidationError(param, reason string, value interface{}) error {
	return &ValidationError{ParamName: param, Reason: reason, Value: value}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("firearea: invalid %s (%v): %s", e.ParamName, e.Value, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidConfig }

// Cell locates one offending value. Row is zero-based over data rows (header excluded).
type Cell struct {
	Row    int
	Column string
	Value  string
}

// DataError reports every input cell that failed validation.
type DataError struct {
	Op     string
	Reason string
	Cells  []Cell
	Err    error
}

// NewDataError creates a DataError. cause should be ErrMissingValue or ErrInvalidValue.
func NewDataError(op, reason string, cells []Cell, cause error) error {
	return &DataError{Op: op, Reason: reason, Cells: cells, Err: cause}
}

// maxReportedCells bounds the message length; Cells always holds all of them.
const maxReportedCells = 10

func (e *DataError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "firearea: %s: %s in %d cell(s)", e.Op, e.Reason, len(e.Cells))
	for i, c := range e.Cells {
		if i == maxReportedCells {
			fmt.Fprintf(&b, " ... and %d more", len(e.Cells)-maxReportedCells)
			break
		}
		if i == 0 {
			b.WriteString(": ")
		} else {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "row %d column %q", c.Row, c.Column)
	}
	return b.String()
}

func (e *DataError) Unwrap() error { return e.Err }

// Rows returns the distinct affected rows in first-seen order.
func (e *DataError) Rows() []int {
	seen := make(map[int]bool)
	var rows []int
	for _, c := range e.Cells {
		if !seen[c.Row] {
			seen[c.Row] = true
			rows = append(rows, c.Row)
		}
	}
	return rows
}

// Columns returns the distinct affected columns in first-seen order.
func (e *DataError) Columns() []string {
	seen := make(map[string]bool)
	var cols []string
	for _, c := range e.Cells {
		if !seen[c.Column] {
			seen[c.Column] = true
			cols = append(cols, c.Column)
		}
	}
	return cols
}

// Recover converts a panic raised inside op into an error assigned to *err.
// Use as: defer errors.Recover(&err, "MinMaxScaler.Fit").
func Recover(err *error, op string) {
	if r := recover(); r != nil {
		*err = errors.Newf("%s: recovered from panic: %v", op, r)
	}
}
