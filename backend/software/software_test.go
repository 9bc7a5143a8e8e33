package software

import (
	"encoding/binary"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gogpu/cmt/gpucore"
)

const copyShader = `
@group(0) @binding(0) var<storage, read> src: array<u32>;
@group(0) @binding(1) var<storage, read_write> dst: array<u32>;

@compute @workgroup_size(64)
fn copy_buffer(@builtin(global_invocation_id) gid: vec3<u32>) {
    if (gid.x < arrayLength(&dst)) {
        dst[gid.x] = src[gid.x];
    }
}
`

func openTestDevice(t *testing.T, opts ...Option) *device {
	t.Helper()
	dev, err := NewDriver(opts...).Open()
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	d := dev.(*device)
	t.Cleanup(d.Destroy)
	return d
}

func newTestBuffer(t *testing.T, d *device, length uint64) *buffer {
	t.Helper()
	b, err := d.NewBuffer(length, gpucore.StorageModeShared)
	if err != nil {
		t.Fatalf("NewBuffer(%d) error = %v", length, err)
	}
	t.Cleanup(b.Destroy)
	return b.(*buffer)
}

func newTestPipeline(t *testing.T, d *device, src, entry string) gpucore.ComputePipeline {
	t.Helper()
	lib, err := d.NewLibrary(src, nil)
	if err != nil {
		t.Fatalf("NewLibrary() error = %v", err)
	}
	fn, ok := lib.Function(entry)
	if !ok {
		t.Fatalf("Function(%q) not found in %v", entry, lib.FunctionNames())
	}
	p, err := d.NewComputePipeline(fn)
	if err != nil {
		t.Fatalf("NewComputePipeline() error = %v", err)
	}
	return p
}

// submitAndWait submits b and blocks until the driver reports completion.
func submitAndWait(t *testing.T, q gpucore.Queue, b *gpucore.Batch) error {
	t.Helper()
	done := make(chan error, 1)
	if err := q.Submit(b, func(err error) { done <- err }); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	select {
	case err := <-done:
		return err
	case <-time.After(30 * time.Second):
		t.Fatal("batch did not complete")
		return nil
	}
}

// =============================================================================
// Memory
// =============================================================================

func TestBuffer_SharedZeroInitialised(t *testing.T) {
	d := openTestDevice(t)
	for _, n := range []uint64{1, 7, 4096, 1 << 20} {
		b := newTestBuffer(t, d, n)
		data := b.Contents()
		if uint64(len(data)) != n {
			t.Fatalf("len(Contents()) = %d, want %d", len(data), n)
		}
		for i, v := range data {
			if v != 0 {
				t.Fatalf("byte %d = %d, want 0", i, v)
			}
		}
	}
}

func TestBuffer_PrivateHasNoContents(t *testing.T) {
	d := openTestDevice(t)
	b, err := d.NewBuffer(64, gpucore.StorageModePrivate)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Destroy()
	if b.Contents() != nil {
		t.Error("Contents() of private buffer != nil")
	}
}

func TestMemory_BudgetExceeded(t *testing.T) {
	d := openTestDevice(t, WithMemoryBudget(MinMemoryMB))

	_, err := d.NewBuffer(uint64(MinMemoryMB)<<20+1, gpucore.StorageModeShared)
	if !errors.Is(err, ErrMemoryBudgetExceeded) {
		t.Errorf("NewBuffer() error = %v, want ErrMemoryBudgetExceeded", err)
	}
	if !errors.Is(err, gpucore.ErrOutOfMemory) {
		t.Errorf("NewBuffer() error = %v, want to wrap ErrOutOfMemory", err)
	}
}

func TestMemory_StatsAndResolve(t *testing.T) {
	d := openTestDevice(t)
	a := newTestBuffer(t, d, 100)
	b := newTestBuffer(t, d, 300)

	stats := d.MemoryStats()
	if stats.BufferCount != 2 || stats.UsedBytes != 400 {
		t.Errorf("Stats() = %v, want 2 buffers / 400 bytes", stats)
	}
	if a.GPUAddress()%addressAlignment != 0 || b.GPUAddress() <= a.GPUAddress()+a.Length() {
		t.Errorf("addresses a=%#x b=%#x overlap or are misaligned", a.GPUAddress(), b.GPUAddress())
	}

	a.Contents()[10] = 42
	got := d.mem.Resolve(a.GPUAddress() + 10)
	if len(got) != 90 || got[0] != 42 {
		t.Errorf("Resolve(a+10) = len %d first %v, want len 90 first 42", len(got), got)
	}
	if d.mem.Resolve(a.GPUAddress()+a.Length()) != nil {
		t.Error("Resolve(end of a) != nil")
	}
	if d.mem.Resolve(1) != nil {
		t.Error("Resolve(1) != nil")
	}
}

// =============================================================================
// Libraries and pipelines
// =============================================================================

func TestLibrary_Reflection(t *testing.T) {
	d := openTestDevice(t)
	lib, err := d.NewLibrary(copyShader, nil)
	if err != nil {
		t.Fatalf("NewLibrary() error = %v", err)
	}
	names := lib.FunctionNames()
	if len(names) != 1 || names[0] != "copy_buffer" {
		t.Errorf("FunctionNames() = %v, want [copy_buffer]", names)
	}
	fn, _ := lib.Function("copy_buffer")
	if got := fn.ThreadgroupSize(); got != gpucore.NewSize(64) {
		t.Errorf("ThreadgroupSize() = %v, want (64, 1, 1)", got)
	}
	if args := fn.Arguments(); len(args) != 2 || args[1].Access != gpucore.ArgumentAccessReadWrite {
		t.Errorf("Arguments() = %+v", args)
	}
	if _, ok := lib.Function("missing"); ok {
		t.Error("Function(missing) found")
	}
}

func TestLibrary_CompileError(t *testing.T) {
	d := openTestDevice(t)
	_, err := d.NewLibrary("fn broken( {", nil)
	var ce *gpucore.CompileError
	if !errors.As(err, &ce) {
		t.Fatalf("NewLibrary() error = %v, want *CompileError", err)
	}
	if ce.Domain == "" || ce.Description == "" {
		t.Errorf("CompileError = %+v, want domain and description", ce)
	}
}

func TestLibrary_PreprocessorMacros(t *testing.T) {
	d := openTestDevice(t)
	src := strings.Replace(copyShader, "@workgroup_size(64)", "@workgroup_size(GROUP)", 1)
	lib, err := d.NewLibrary(src, &gpucore.CompileOptions{
		PreprocessorMacros: map[string]string{"GROUP": "32"},
	})
	if err != nil {
		t.Fatalf("NewLibrary() error = %v", err)
	}
	fn, _ := lib.Function("copy_buffer")
	if got := fn.ThreadgroupSize(); got.Width != 32 {
		t.Errorf("ThreadgroupSize().Width = %d, want 32", got.Width)
	}
}

func TestPipeline_NoKernel(t *testing.T) {
	d := openTestDevice(t)
	lib, err := d.NewLibrary(`@compute @workgroup_size(1) fn not_registered_anywhere() {}`, nil)
	if err != nil {
		t.Fatalf("NewLibrary() error = %v", err)
	}
	fn, _ := lib.Function("not_registered_anywhere")
	_, err = d.NewComputePipeline(fn)
	var ce *gpucore.CompileError
	if !errors.As(err, &ce) || ce.Code != codeNoKernel {
		t.Errorf("NewComputePipeline() error = %v, want no-kernel CompileError", err)
	}
}

// =============================================================================
// Execution
// =============================================================================

func TestQueue_CopyRoundTrip(t *testing.T) {
	tests := []struct {
		name        string
		count       uint64
		threadgroup uint64
	}{
		{"exact groups", 256, 64},
		{"padded edge group", 1000, 64},
		{"single thread groups", 5, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := openTestDevice(t, WithWorkers(4))
			src := newTestBuffer(t, d, tt.count*4)
			dst := newTestBuffer(t, d, tt.count*4)
			in := viewAs[uint32](src.Contents())
			for i := range in {
				in[i] = uint32(i*7 + 1)
			}

			q, _ := d.NewQueue()
			defer q.Destroy()
			p := newTestPipeline(t, d, copyShader, "copy_buffer")

			err := submitAndWait(t, q, &gpucore.Batch{Passes: []gpucore.Pass{{
				Dispatches: []gpucore.Dispatch{{
					Pipeline:    p,
					Bindings:    []gpucore.Binding{{Index: 0, Buffer: src}, {Index: 1, Buffer: dst}},
					Mode:        gpucore.DispatchThreads,
					Grid:        gpucore.NewSize(tt.count),
					Threadgroup: gpucore.NewSize(tt.threadgroup),
				}},
			}}})
			if err != nil {
				t.Fatalf("batch error = %v", err)
			}
			out := viewAs[uint32](dst.Contents())
			for i := range out {
				if out[i] != in[i] {
					t.Fatalf("dst[%d] = %d, want %d", i, out[i], in[i])
				}
			}
		})
	}
}

func TestQueue_InlineBytesAndOffsets(t *testing.T) {
	d := openTestDevice(t)
	dst := newTestBuffer(t, d, 32)
	q, _ := d.NewQueue()
	defer q.Destroy()
	p := newTestPipeline(t, d, copyShader, "copy_buffer")

	payload := make([]byte, 16)
	for i := range 4 {
		binary.LittleEndian.PutUint32(payload[i*4:], uint32(100+i))
	}
	err := submitAndWait(t, q, &gpucore.Batch{Passes: []gpucore.Pass{{
		Dispatches: []gpucore.Dispatch{{
			Pipeline:    p,
			Bindings:    []gpucore.Binding{{Index: 0, Bytes: payload}, {Index: 1, Buffer: dst, Offset: 16}},
			Grid:        gpucore.NewSize(4),
			Threadgroup: gpucore.NewSize(4),
		}},
	}}})
	if err != nil {
		t.Fatalf("batch error = %v", err)
	}
	out := viewAs[uint32](dst.Contents())
	want := []uint32{0, 0, 0, 0, 100, 101, 102, 103}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("dst[%d] = %d, want %d", i, out[i], want[i])
		}
	}
}

func TestQueue_KernelPanicBecomesError(t *testing.T) {
	RegisterKernel("test_panics", func(*Threadgroup) error { panic("boom") })
	defer RegisterKernel("test_panics", nil)

	d := openTestDevice(t)
	p := newTestPipeline(t, d, `@compute @workgroup_size(1) fn test_panics() {}`, "test_panics")
	q, _ := d.NewQueue()
	defer q.Destroy()

	err := submitAndWait(t, q, &gpucore.Batch{Passes: []gpucore.Pass{{
		Dispatches: []gpucore.Dispatch{{Pipeline: p, Grid: gpucore.NewSize(1), Threadgroup: gpucore.NewSize(1)}},
	}}})
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Errorf("batch error = %v, want panic message", err)
	}
}

func TestQueue_SubmissionOrder(t *testing.T) {
	var (
		mu    sync.Mutex
		order []uint32
	)
	RegisterKernel("test_record", func(g *Threadgroup) error {
		mu.Lock()
		order = append(order, g.Uint32s(0)[0])
		mu.Unlock()
		return nil
	})
	defer RegisterKernel("test_record", nil)

	d := openTestDevice(t)
	p := newTestPipeline(t, d, `
@group(0) @binding(0) var<uniform> tag: u32;
@compute @workgroup_size(1) fn test_record() { let t = tag; }
`, "test_record")
	q, _ := d.NewQueue()
	defer q.Destroy()

	const n = 20
	var wg sync.WaitGroup
	wg.Add(n)
	for i := range n {
		tag := make([]byte, 4)
		binary.LittleEndian.PutUint32(tag, uint32(i))
		b := &gpucore.Batch{Passes: []gpucore.Pass{{Dispatches: []gpucore.Dispatch{{
			Pipeline:    p,
			Bindings:    []gpucore.Binding{{Index: 0, Bytes: tag}},
			Grid:        gpucore.NewSize(1),
			Threadgroup: gpucore.NewSize(1),
		}}}}}
		if err := q.Submit(b, func(error) { wg.Done() }); err != nil {
			t.Fatalf("Submit() error = %v", err)
		}
	}
	wg.Wait()

	for i, v := range order {
		if v != uint32(i) {
			t.Fatalf("order = %v, want ascending", order)
		}
	}
}

func TestQueue_SubmitAfterDestroy(t *testing.T) {
	d := openTestDevice(t)
	q, _ := d.NewQueue()
	q.Destroy()
	select {
	case <-q.(*queue).stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("queue goroutine did not stop")
	}
	if err := q.Submit(&gpucore.Batch{}, func(error) {}); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("Submit() after Destroy error = %v, want ErrQueueClosed", err)
	}
}

// =============================================================================
// Built-in kernels
// =============================================================================

func TestKernel_MatrixMultiplySmall(t *testing.T) {
	// A is 3x2, B is 2x4 with a 16x16 tile, exercising the padded edges.
	const m, n, k = 3, 4, 2
	a := []float32{1, 2, 3, 4, 5, 6}
	b := []float32{1, 0, 2, 1, 0, 1, 1, 3}
	out := make([]byte, m*n*4)
	dims := []uint32{m, n, k, 0}

	g := &Threadgroup{
		size: gpucore.NewSize(16, 16),
		grid: gpucore.NewSize(n, m),
		bindings: map[uint32][]byte{
			0: bytesOf(a), 1: bytesOf(b), 2: out, 3: bytesOf(dims),
		},
	}
	if err := matrixMultiply(g); err != nil {
		t.Fatalf("matrixMultiply() error = %v", err)
	}
	c := viewAs[float32](out)
	want := []float32{1, 2, 4, 7, 3, 4, 10, 15, 5, 6, 16, 23}
	for i := range want {
		if math.Abs(float64(c[i]-want[i])) > 1e-6 {
			t.Errorf("c[%d] = %v, want %v", i, c[i], want[i])
		}
	}
}

func TestKernel_MatrixMultiplyShortBinding(t *testing.T) {
	g := &Threadgroup{
		size: gpucore.NewSize(16, 16),
		bindings: map[uint32][]byte{
			0: bytesOf(make([]float32, 1)), 1: bytesOf(make([]float32, 4)),
			2: bytesOf(make([]float32, 4)), 3: bytesOf([]uint32{2, 2, 2, 0}),
		},
	}
	if err := matrixMultiply(g); err == nil {
		t.Error("matrixMultiply() with short A succeeded")
	}
}

func TestKernel_ArgumentCopy(t *testing.T) {
	d := openTestDevice(t)
	src := newTestBuffer(t, d, 64)
	dst := newTestBuffer(t, d, 64)
	args := newTestBuffer(t, d, 24)

	in := viewAs[uint32](src.Contents())
	for i := range in {
		in[i] = uint32(i + 1)
	}
	binary.LittleEndian.PutUint64(args.Contents()[0:], src.GPUAddress()+4)
	binary.LittleEndian.PutUint64(args.Contents()[8:], dst.GPUAddress())
	binary.LittleEndian.PutUint32(args.Contents()[16:], 3)

	q, _ := d.NewQueue()
	defer q.Destroy()
	p := newTestPipeline(t, d, `
alias BufferAddress = vec2<u32>;
struct CopyArgs { src: BufferAddress, dst: BufferAddress, count: u32 }
@group(0) @binding(0) var<storage, read> args: CopyArgs;
@compute @workgroup_size(64) fn argument_copy() { let n = args.count; }
`, "argument_copy")

	err := submitAndWait(t, q, &gpucore.Batch{Passes: []gpucore.Pass{{
		Dispatches: []gpucore.Dispatch{{
			Pipeline:    p,
			Bindings:    []gpucore.Binding{{Index: 0, Buffer: args}},
			Grid:        gpucore.NewSize(16),
			Threadgroup: gpucore.NewSize(16),
		}},
	}}})
	if err != nil {
		t.Fatalf("batch error = %v", err)
	}
	out := viewAs[uint32](dst.Contents())
	want := []uint32{2, 3, 4, 0}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("dst[%d] = %d, want %d", i, out[i], want[i])
		}
	}
}

func bytesOf[T float32 | uint32](s []T) []byte {
	out := make([]byte, len(s)*4)
	for i, v := range s {
		var u uint32
		switch x := any(v).(type) {
		case float32:
			u = math.Float32bits(x)
		case uint32:
			u = x
		}
		binary.LittleEndian.PutUint32(out[i*4:], u)
	}
	return out
}
