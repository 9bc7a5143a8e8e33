package matrix

import (
	_ "embed"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/cmt"
	"github.com/gogpu/cmt/gpucore"
)

var (
	//go:embed kernels.wgsl
	wgslSource string

	//go:embed kernels.metal
	mslSource string
)

// Kernel entry points and binding indices shared by both sources.
const (
	addFunction      = "matrix_addition"
	multiplyFunction = "matrix_multiply"

	bindA    = 0
	bindB    = 1
	bindC    = 2
	bindDims = 3

	tileSize = 16
)

// ErrClosed is returned by operations on a closed Engine.
var ErrClosed = errors.New("matrix: engine closed")

// Engine runs matrix kernels on one device. Calls are serialized; an Engine
// may be shared between goroutines.
type Engine struct {
	mu     sync.Mutex
	dev    *cmt.Device
	queue  *cmt.CommandQueue
	add    *cmt.ComputePipelineState
	mul    *cmt.ComputePipelineState
	addTG  uint64
	closed bool
}

// NewEngine compiles the matrix kernels for dev. The engine holds its own
// references; the caller keeps ownership of dev.
func NewEngine(dev *cmt.Device) (*Engine, error) {
	src := wgslSource
	if dev.Info().Language == gpucore.LanguageMSL {
		src = mslSource
	}
	lib, err := dev.NewLibrary(src, nil)
	if err != nil {
		return nil, fmt.Errorf("matrix: compile kernels: %w", err)
	}
	defer lib.Release()

	e := &Engine{dev: dev}
	var addTG cmt.Size
	if e.add, addTG, err = newPipeline(dev, lib, addFunction); err != nil {
		return nil, err
	}
	if e.mul, _, err = newPipeline(dev, lib, multiplyFunction); err != nil {
		e.release()
		return nil, err
	}
	if e.queue, err = dev.NewCommandQueue(); err != nil {
		e.release()
		return nil, fmt.Errorf("matrix: %w", err)
	}
	e.queue.SetLabel("matrix")

	// MSL kernels declare no threadgroup size.
	e.addTG = addTG.Width
	if e.addTG == 0 {
		e.addTG = min(64, e.add.MaxTotalThreadsPerThreadgroup())
	}
	cmt.Logger().Debug("matrix: engine ready", "device", dev.Name(), "language", dev.Info().Language)
	return e, nil
}

func newPipeline(dev *cmt.Device, lib *cmt.Library, name string) (*cmt.ComputePipelineState, cmt.Size, error) {
	fn, err := lib.NewFunction(name)
	if err != nil {
		return nil, cmt.Size{}, fmt.Errorf("matrix: %w", err)
	}
	defer fn.Release()
	p, err := dev.NewComputePipelineState(fn)
	if err != nil {
		return nil, cmt.Size{}, fmt.Errorf("matrix: link %s: %w", name, err)
	}
	return p, fn.ThreadgroupSize(), nil
}

func (e *Engine) release() {
	if e.add != nil {
		_ = e.add.Release()
	}
	if e.mul != nil {
		_ = e.mul.Release()
	}
	if e.queue != nil {
		_ = e.queue.Release()
	}
}

// Close releases the engine's pipelines and queue.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	e.closed = true
	e.release()
	return nil
}

// Add returns a + b computed on the device.
func (e *Engine) Add(a, b *Matrix) (*Matrix, error) {
	if err := checkAdd("Engine.Add", a, b); err != nil {
		return nil, err
	}
	c := New(a.Rows, a.Cols)
	n := uint64(len(c.Data))
	err := e.run(e.add, a, b, c, dims(a.Rows, a.Cols, 0), func(enc *cmt.ComputeCommandEncoder) error {
		return enc.DispatchThreads(cmt.NewSize(n), cmt.NewSize(e.addTG))
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Multiply returns a * b computed on the device in 16x16 tiles.
func (e *Engine) Multiply(a, b *Matrix) (*Matrix, error) {
	if err := checkMultiply("Engine.Multiply", a, b); err != nil {
		return nil, err
	}
	c := New(a.Rows, b.Cols)
	groups := cmt.NewSize(ceilDiv(b.Cols, tileSize), ceilDiv(a.Rows, tileSize))
	err := e.run(e.mul, a, b, c, dims(a.Rows, b.Cols, a.Cols), func(enc *cmt.ComputeCommandEncoder) error {
		return enc.DispatchThreadgroups(groups, cmt.NewSize(tileSize, tileSize))
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// run uploads a and b, encodes one pass with dispatch, waits, and copies
// the result into c.
func (e *Engine) run(p *cmt.ComputePipelineState, a, b, c *Matrix, constants []byte, dispatch func(*cmt.ComputeCommandEncoder) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}

	bufA, err := e.upload(a)
	if err != nil {
		return err
	}
	defer bufA.Release()
	bufB, err := e.upload(b)
	if err != nil {
		return err
	}
	defer bufB.Release()
	bufC, err := e.dev.NewBuffer(uint64(len(c.Data))*4, cmt.StorageModeShared)
	if err != nil {
		return fmt.Errorf("matrix: allocate result: %w", err)
	}
	defer bufC.Release()

	cb, err := e.queue.NewCommandBuffer()
	if err != nil {
		return err
	}
	defer cb.Release()
	cb.SetLabel(p.FunctionName())

	if err := encode(cb, p, bufA, bufB, bufC, constants, dispatch); err != nil {
		return err
	}
	if err := cb.Commit(); err != nil {
		return err
	}
	if err := cb.WaitUntilCompleted(); err != nil {
		return err
	}
	if err := cb.Err(); err != nil {
		return err
	}

	out, err := cmt.View[float32](bufC)
	if err != nil {
		return err
	}
	copy(c.Data, out)
	return nil
}

func encode(cb *cmt.CommandBuffer, p *cmt.ComputePipelineState, a, b, c *cmt.Buffer, constants []byte, dispatch func(*cmt.ComputeCommandEncoder) error) error {
	enc, err := cb.ComputeCommandEncoder()
	if err != nil {
		return err
	}
	defer enc.Release()

	steps := []func() error{
		func() error { return enc.SetComputePipelineState(p) },
		func() error { return enc.SetBuffer(a, 0, bindA) },
		func() error { return enc.SetBuffer(b, 0, bindB) },
		func() error { return enc.SetBuffer(c, 0, bindC) },
		func() error { return enc.SetBytes(constants, bindDims) },
		func() error { return dispatch(enc) },
		enc.EndEncoding,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) upload(m *Matrix) (*cmt.Buffer, error) {
	buf, err := e.dev.NewBuffer(uint64(len(m.Data))*4, cmt.StorageModeShared)
	if err != nil {
		return nil, fmt.Errorf("matrix: allocate operand: %w", err)
	}
	data, err := cmt.View[float32](buf)
	if err != nil {
		_ = buf.Release()
		return nil, err
	}
	copy(data, m.Data)
	return buf, nil
}

// dims encodes the {M, N, K, 0} constant block. Buffer length limits keep
// every dimension far below 2^32.
func dims(m, n, k int) []byte {
	out := make([]byte, 16)
	for i, v := range []int{m, n, k} {
		binary.LittleEndian.PutUint32(out[i*4:], uint32(v)) //nolint:gosec // G115: bounded by MaxBufferLength
	}
	return out
}

func ceilDiv(a, b int) uint64 {
	return uint64((a + b - 1) / b) //nolint:gosec // G115: dimensions are positive
}
