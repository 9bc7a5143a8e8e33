package matrix

import (
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/gogpu/cmt"
)

// openEngine opens the software device and an engine on it.
func openEngine(t *testing.T) *Engine {
	t.Helper()
	dev, err := cmt.OpenDefaultDevice(cmt.WithDriver("software"))
	if err != nil {
		t.Fatalf("OpenDefaultDevice() error = %v", err)
	}
	eng, err := NewEngine(dev)
	if err != nil {
		_ = dev.Release()
		t.Fatalf("NewEngine() error = %v", err)
	}
	t.Cleanup(func() {
		if err := eng.Close(); err != nil && !errors.Is(err, ErrClosed) {
			t.Errorf("Close() error = %v", err)
		}
		if err := dev.Release(); err != nil {
			t.Errorf("device Release() error = %v", err)
		}
	})
	return eng
}

func mustRows(t *testing.T, rows [][]float32) *Matrix {
	t.Helper()
	m, err := FromRows(rows)
	if err != nil {
		t.Fatalf("FromRows() error = %v", err)
	}
	return m
}

func randomMatrix(rng *rand.Rand, rows, cols int) *Matrix {
	m := New(rows, cols)
	for i := range m.Data {
		m.Data[i] = rng.Float32()*2 - 1
	}
	return m
}

// =============================================================================
// Host reference
// =============================================================================

func TestFromRows(t *testing.T) {
	m := mustRows(t, [][]float32{{1, 2, 3}, {4, 5, 6}})
	if m.Rows != 2 || m.Cols != 3 {
		t.Fatalf("shape = %dx%d, want 2x3", m.Rows, m.Cols)
	}
	if got := m.At(1, 2); got != 6 {
		t.Errorf("At(1, 2) = %v, want 6", got)
	}
	m.Set(0, 0, 9)
	if got := m.Rows2D()[0][0]; got != 9 {
		t.Errorf("Rows2D()[0][0] = %v, want 9", got)
	}

	for _, rows := range [][][]float32{nil, {{}}, {{1, 2}, {3}}} {
		if _, err := FromRows(rows); !errors.Is(err, ErrDimensionMismatch) {
			t.Errorf("FromRows(%v) error = %v, want ErrDimensionMismatch", rows, err)
		}
	}
}

func TestMultiplyCPU(t *testing.T) {
	a := mustRows(t, [][]float32{{1, 2}, {3, 4}, {5, 6}})
	b := mustRows(t, [][]float32{{1, 0, 1, 2}, {0, 1, 1, 2}})
	got, err := MultiplyCPU(a, b)
	if err != nil {
		t.Fatalf("MultiplyCPU() error = %v", err)
	}
	want := []float32{1, 2, 3, 6, 3, 4, 7, 14, 5, 6, 11, 22}
	for i, w := range want {
		if got.Data[i] != w {
			t.Fatalf("MultiplyCPU() = %v, want %v", got.Data, want)
		}
	}
}

func TestMaxRelativeError(t *testing.T) {
	tests := []struct {
		name      string
		got, want []float32
		tol       float32
		equal     bool
	}{
		{"identical", []float32{1, 2}, []float32{1, 2}, 0, true},
		{"within tolerance", []float32{100, 2}, []float32{100.001, 2}, 1e-4, true},
		{"outside tolerance", []float32{100, 2}, []float32{101, 2}, 1e-4, false},
		{"small values use absolute error", []float32{0.00001, 0}, []float32{0, 0}, 1e-4, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := &Matrix{Rows: 1, Cols: 2, Data: tt.got}
			w := &Matrix{Rows: 1, Cols: 2, Data: tt.want}
			if eq := g.ApproxEqual(w, tt.tol); eq != tt.equal {
				t.Errorf("ApproxEqual() = %v, want %v (error %v)", eq, tt.equal, MaxRelativeError(g, w))
			}
		})
	}

	if e := MaxRelativeError(New(1, 2), New(2, 1)); e <= 1 {
		t.Errorf("MaxRelativeError(shape mismatch) = %v, want +Inf", e)
	}
}

// =============================================================================
// Device kernels
// =============================================================================

func TestEngineAdd(t *testing.T) {
	eng := openEngine(t)

	a := mustRows(t, [][]float32{{1, 2}, {3, 4}})
	b := mustRows(t, [][]float32{{5, 6}, {7, 8}})
	c, err := eng.Add(a, b)
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	want := [][]float32{{6, 8}, {10, 12}}
	for r, row := range want {
		for col, w := range row {
			if got := c.At(r, col); got != w {
				t.Errorf("C[%d][%d] = %v, want %v", r, col, got, w)
			}
		}
	}
}

func TestEngineAddLarge(t *testing.T) {
	eng := openEngine(t)
	rng := rand.New(rand.NewPCG(1, 2))

	// 3x333 is not a multiple of the threadgroup width.
	a, b := randomMatrix(rng, 3, 333), randomMatrix(rng, 3, 333)
	got, err := eng.Add(a, b)
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	want, _ := AddCPU(a, b)
	if !got.ApproxEqual(want, 0) {
		t.Errorf("Add() max error %v, want exact", MaxRelativeError(got, want))
	}
}

func TestEngineMultiplySmall(t *testing.T) {
	eng := openEngine(t)
	rng := rand.New(rand.NewPCG(3, 4))

	tests := []struct{ m, k, n int }{
		{1, 1, 1},
		{2, 3, 4},
		{16, 16, 16},
		{17, 33, 5},
		{40, 8, 70},
	}
	for _, tt := range tests {
		a, b := randomMatrix(rng, tt.m, tt.k), randomMatrix(rng, tt.k, tt.n)
		got, err := eng.Multiply(a, b)
		if err != nil {
			t.Fatalf("Multiply(%dx%d, %dx%d) error = %v", tt.m, tt.k, tt.k, tt.n, err)
		}
		want, _ := MultiplyCPU(a, b)
		if e := MaxRelativeError(got, want); e >= 1e-4 {
			t.Errorf("Multiply(%dx%d, %dx%d) relative error = %v, want < 1e-4", tt.m, tt.k, tt.k, tt.n, e)
		}
	}
}

func TestEngineMultiplyLarge(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping 1024x1024 * 1024x512 multiply in short mode")
	}
	eng := openEngine(t)
	rng := rand.New(rand.NewPCG(5, 6))

	a, b := randomMatrix(rng, 1024, 1024), randomMatrix(rng, 1024, 512)
	got, err := eng.Multiply(a, b)
	if err != nil {
		t.Fatalf("Multiply() error = %v", err)
	}
	if got.Rows != 1024 || got.Cols != 512 {
		t.Fatalf("Multiply() shape = %dx%d, want 1024x512", got.Rows, got.Cols)
	}
	want, _ := MultiplyCPU(a, b)
	if e := MaxRelativeError(got, want); e >= 1e-4 {
		t.Errorf("Multiply() relative error = %v, want < 1e-4", e)
	}
}

func TestEngineDimensionMismatch(t *testing.T) {
	eng := openEngine(t)

	tests := []struct {
		name string
		run  func() error
	}{
		{"add shapes", func() error { _, err := eng.Add(New(2, 2), New(2, 3)); return err }},
		{"add nil", func() error { _, err := eng.Add(nil, New(2, 3)); return err }},
		{"multiply inner", func() error { _, err := eng.Multiply(New(2, 3), New(2, 3)); return err }},
		{"multiply short data", func() error {
			_, err := eng.Multiply(&Matrix{Rows: 2, Cols: 2, Data: make([]float32, 3)}, New(2, 2))
			return err
		}},
		{"cpu multiply", func() error { _, err := MultiplyCPU(New(1, 2), New(3, 1)); return err }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run()
			if !errors.Is(err, ErrDimensionMismatch) {
				t.Fatalf("error = %v, want ErrDimensionMismatch", err)
			}
			if !cmt.IsPrecondition(err) {
				t.Errorf("error = %v, want precondition kind", err)
			}
		})
	}
}

func TestEngineClosed(t *testing.T) {
	eng := openEngine(t)
	if err := eng.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, err := eng.Add(New(1, 1), New(1, 1)); !errors.Is(err, ErrClosed) {
		t.Errorf("Add() after Close error = %v, want ErrClosed", err)
	}
	if err := eng.Close(); !errors.Is(err, ErrClosed) {
		t.Errorf("second Close() error = %v, want ErrClosed", err)
	}
}
