package dataset

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/firearea/pkg/errors"
)

// Frame is a dense table of named float64 columns.
type Frame struct {
	columns []string
	index   map[string]int
	data    *mat.Dense
}

// NewFrame wraps data with column names. len(columns) must equal data's column count.
func NewFrame(columns []string, data *mat.Dense) (*Frame, error) {
	_, c := data.Dims()
	if c != len(columns) {
		return nil, errors.NewDimensionError("dataset.NewFrame", len(columns), c, 1)
	}
	index := make(map[string]int, len(columns))
	for i, name := range columns {
		if _, dup := index[name]; dup {
			return nil, errors.NewValueError("dataset.NewFrame", fmt.Sprintf("duplicate column %q", name))
		}
		index[name] = i
	}
	return &Frame{columns: append([]string(nil), columns...), index: index, data: data}, nil
}

// Columns returns a copy of the column names.
func (f *Frame) Columns() []string {
	return append([]string(nil), f.columns...)
}

// Len is the row count.
func (f *Frame) Len() int {
	r, _ := f.data.Dims()
	return r
}

// Has reports whether the column exists.
func (f *Frame) Has(name string) bool {
	_, ok := f.index[name]
	return ok
}

// Data returns the backing matrix. Callers must not modify it.
func (f *Frame) Data() mat.Matrix {
	return f.data
}

// Column returns a copy of one column as a vector.
func (f *Frame) Column(name string) (*mat.VecDense, error) {
	j, ok := f.index[name]
	if !ok {
		return nil, errors.NewValueError("Frame.Column", fmt.Sprintf("unknown column %q", name))
	}
	r := f.Len()
	v := mat.NewVecDense(r, nil)
	for i := 0; i < r; i++ {
		v.SetVec(i, f.data.At(i, j))
	}
	return v, nil
}

// Select copies the named columns, in the given order, into a new matrix.
func (f *Frame) Select(names ...string) (*mat.Dense, error) {
	if len(names) == 0 {
		return nil, errors.NewValueError("Frame.Select", "no columns requested")
	}
	idx := make([]int, len(names))
	for k, name := range names {
		j, ok := f.index[name]
		if !ok {
			return nil, errors.NewValueError("Frame.Select", fmt.Sprintf("unknown column %q", name))
		}
		idx[k] = j
	}
	r := f.Len()
	out := mat.NewDense(r, len(names), nil)
	for i := 0; i < r; i++ {
		for k, j := range idx {
			out.Set(i, k, f.data.At(i, j))
		}
	}
	return out, nil
}

// Rows returns a new frame holding the given rows in order.
func (f *Frame) Rows(rows []int) (*Frame, error) {
	if len(rows) == 0 {
		return nil, errors.NewModelError("Frame.Rows", "no rows selected", errors.ErrEmptyData)
	}
	n := f.Len()
	_, c := f.data.Dims()
	out := mat.NewDense(len(rows), c, nil)
	for k, i := range rows {
		if i < 0 || i >= n {
			return nil, errors.NewValueError("Frame.Rows", fmt.Sprintf("row %d out of range [0, %d)", i, n))
		}
		out.SetRow(k, f.data.RawRowView(i))
	}
	return &Frame{columns: f.columns, index: f.index, data: out}, nil
}
