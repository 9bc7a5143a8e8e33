package matrix

import (
	"errors"
	"fmt"

	"github.com/chewxy/math32"

	"github.com/gogpu/cmt"
)

// ErrDimensionMismatch is returned when operand shapes are incompatible.
// It is always wrapped in a cmt.Error of cmt.KindPrecondition.
var ErrDimensionMismatch = errors.New("matrix: dimension mismatch")

// Matrix is a dense row-major float32 matrix.
type Matrix struct {
	Rows, Cols int
	Data       []float32
}

// New returns a zero rows x cols matrix.
func New(rows, cols int) *Matrix {
	return &Matrix{Rows: rows, Cols: cols, Data: make([]float32, rows*cols)}
}

// FromRows builds a matrix from equal-length rows.
func FromRows(rows [][]float32) (*Matrix, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, dimensionError("FromRows", "empty matrix")
	}
	m := New(len(rows), len(rows[0]))
	for r, row := range rows {
		if len(row) != m.Cols {
			return nil, dimensionError("FromRows", "row %d has %d columns, want %d", r, len(row), m.Cols)
		}
		copy(m.Data[r*m.Cols:], row)
	}
	return m, nil
}

// At returns the element at row r, column c.
func (m *Matrix) At(r, c int) float32 { return m.Data[r*m.Cols+c] }

// Set stores v at row r, column c.
func (m *Matrix) Set(r, c int, v float32) { m.Data[r*m.Cols+c] = v }

// Rows2D returns a copy of m as a slice of rows.
func (m *Matrix) Rows2D() [][]float32 {
	out := make([][]float32, m.Rows)
	for r := range out {
		out[r] = append([]float32(nil), m.Data[r*m.Cols:(r+1)*m.Cols]...)
	}
	return out
}

func (m *Matrix) String() string {
	return fmt.Sprintf("Matrix(%dx%d)", m.Rows, m.Cols)
}

func (m *Matrix) valid() bool {
	return m != nil && m.Rows > 0 && m.Cols > 0 && len(m.Data) == m.Rows*m.Cols
}

func dimensionError(op, format string, args ...any) error {
	return &cmt.Error{
		Kind:   cmt.KindPrecondition,
		Op:     "matrix." + op,
		Detail: fmt.Sprintf(format, args...),
		Err:    ErrDimensionMismatch,
	}
}

func checkAdd(op string, a, b *Matrix) error {
	if !a.valid() || !b.valid() {
		return dimensionError(op, "operand is empty or its data does not match its shape")
	}
	if a.Rows != b.Rows || a.Cols != b.Cols {
		return dimensionError(op, "%dx%d + %dx%d", a.Rows, a.Cols, b.Rows, b.Cols)
	}
	return nil
}

func checkMultiply(op string, a, b *Matrix) error {
	if !a.valid() || !b.valid() {
		return dimensionError(op, "operand is empty or its data does not match its shape")
	}
	if a.Cols != b.Rows {
		return dimensionError(op, "%dx%d * %dx%d", a.Rows, a.Cols, b.Rows, b.Cols)
	}
	return nil
}

// AddCPU returns a + b computed on the host.
func AddCPU(a, b *Matrix) (*Matrix, error) {
	if err := checkAdd("AddCPU", a, b); err != nil {
		return nil, err
	}
	c := New(a.Rows, a.Cols)
	for i := range c.Data {
		c.Data[i] = a.Data[i] + b.Data[i]
	}
	return c, nil
}

// MultiplyCPU returns a * b computed on the host with float32 accumulation
// in the same k order as the kernels.
func MultiplyCPU(a, b *Matrix) (*Matrix, error) {
	if err := checkMultiply("MultiplyCPU", a, b); err != nil {
		return nil, err
	}
	m, n, k := a.Rows, b.Cols, a.Cols
	c := New(m, n)
	for i := range m {
		rowA := a.Data[i*k : (i+1)*k]
		rowC := c.Data[i*n : (i+1)*n]
		for kk, av := range rowA {
			rowB := b.Data[kk*n : (kk+1)*n]
			for j, bv := range rowB {
				rowC[j] += av * bv
			}
		}
	}
	return c, nil
}

// MaxRelativeError returns the largest |got-want| / max(|want|, 1) over all
// elements, or +Inf when the shapes differ.
func MaxRelativeError(got, want *Matrix) float32 {
	if !got.valid() || !want.valid() || got.Rows != want.Rows || got.Cols != want.Cols {
		return math32.Inf(1)
	}
	var worst float32
	for i, w := range want.Data {
		d := math32.Abs(got.Data[i]-w) / math32.Max(math32.Abs(w), 1)
		if math32.IsNaN(d) {
			return math32.Inf(1)
		}
		worst = math32.Max(worst, d)
	}
	return worst
}

// ApproxEqual reports whether every element of m is within relative
// tolerance tol of o.
func (m *Matrix) ApproxEqual(o *Matrix, tol float32) bool {
	return MaxRelativeError(m, o) <= tol
}
