package cmt

import (
	"errors"
	"sync"
	"testing"

	"github.com/gogpu/cmt/backend"
	"github.com/gogpu/cmt/gpucore"
)

const mockDriverName = "mock"

// mockDriver is a gpucore driver that counts destroyed objects and records
// submitted batches.
type mockDriver struct {
	mu        sync.Mutex
	destroyed map[string]int
	submitted []string

	// submitErr makes Queue.Submit fail; execErr is reported to done.
	submitErr error
	execErr   error
}

func newMockDriver() *mockDriver {
	return &mockDriver{destroyed: make(map[string]int)}
}

func (d *mockDriver) Name() string                  { return mockDriverName }
func (d *mockDriver) Open() (gpucore.Device, error) { return &mockDevice{drv: d}, nil }

func (d *mockDriver) destroy(kind string) {
	d.mu.Lock()
	d.destroyed[kind]++
	d.mu.Unlock()
}

// Destroyed returns how many objects of kind were destroyed.
func (d *mockDriver) Destroyed(kind string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.destroyed[kind]
}

func (d *mockDriver) Submitted() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.submitted...)
}

type mockDevice struct {
	drv *mockDriver
}

func (m *mockDevice) Info() gpucore.DeviceInfo {
	return gpucore.DeviceInfo{Name: "Mock Device", Driver: mockDriverName, Language: gpucore.LanguageWGSL}
}

func (m *mockDevice) Limits() gpucore.Limits { return gpucore.DefaultLimits() }

func (m *mockDevice) NewQueue() (gpucore.Queue, error) { return &mockQueue{drv: m.drv}, nil }

func (m *mockDevice) NewBuffer(length uint64, mode gpucore.StorageMode) (gpucore.Buffer, error) {
	return &mockBuffer{drv: m.drv, data: make([]byte, length), mode: mode}, nil
}

func (m *mockDevice) NewLibrary(source string, _ *gpucore.CompileOptions) (gpucore.Library, error) {
	if source == "invalid" {
		return nil, &gpucore.CompileError{Domain: "mock", Code: 7, Description: "syntax error"}
	}
	return &mockLibrary{drv: m.drv}, nil
}

func (m *mockDevice) NewComputePipeline(fn gpucore.Function) (gpucore.ComputePipeline, error) {
	if fn.Name() == "unlinkable" {
		return nil, &gpucore.CompileError{Domain: "mock", Code: 9, Description: "link failed"}
	}
	return &mockPipeline{drv: m.drv, fn: fn}, nil
}

func (m *mockDevice) Destroy() { m.drv.destroy("device") }

type mockBuffer struct {
	drv  *mockDriver
	data []byte
	mode gpucore.StorageMode
}

func (b *mockBuffer) Length() uint64                   { return uint64(len(b.data)) }
func (b *mockBuffer) StorageMode() gpucore.StorageMode { return b.mode }
func (b *mockBuffer) GPUAddress() uint64               { return 0x1000 }
func (b *mockBuffer) Destroy()                         { b.drv.destroy("buffer") }

func (b *mockBuffer) Contents() []byte {
	if !b.mode.CPUAccessible() {
		return nil
	}
	return b.data
}

// mockArgs declares three buffer arguments at indices 0, 1 and 2.
func mockArgs() []gpucore.Argument {
	args := make([]gpucore.Argument, 3)
	for i := range args {
		args[i] = gpucore.Argument{
			Name:   string(rune('a' + i)),
			Index:  uint32(i),
			Kind:   gpucore.ArgumentBuffer,
			Access: gpucore.ArgumentAccessReadWrite,
			Type:   gpucore.NewPointerType(gpucore.NewScalarType(gpucore.DataTypeFloat, 0, 0), gpucore.ArgumentAccessReadWrite, 0, 0, false),
			Active: true,
		}
	}
	return args
}

type mockLibrary struct {
	drv *mockDriver
}

func (l *mockLibrary) FunctionNames() []string { return []string{"add", "noargs", "unlinkable"} }

func (l *mockLibrary) Function(name string) (gpucore.Function, bool) {
	switch name {
	case "add":
		return &mockFunction{name: name, args: mockArgs()}, true
	case "noargs", "unlinkable":
		return &mockFunction{name: name}, true
	}
	return nil, false
}

func (l *mockLibrary) Destroy() { l.drv.destroy("library") }

type mockFunction struct {
	name string
	args []gpucore.Argument
}

func (f *mockFunction) Name() string                  { return f.name }
func (f *mockFunction) Arguments() []gpucore.Argument { return f.args }
func (f *mockFunction) ThreadgroupSize() gpucore.Size { return gpucore.NewSize(64) }

type mockPipeline struct {
	drv *mockDriver
	fn  gpucore.Function
}

func (p *mockPipeline) Function() gpucore.Function            { return p.fn }
func (p *mockPipeline) Arguments() []gpucore.Argument         { return p.fn.Arguments() }
func (p *mockPipeline) MaxTotalThreadsPerThreadgroup() uint64 { return 256 }
func (p *mockPipeline) ThreadExecutionWidth() uint64          { return 32 }
func (p *mockPipeline) Destroy()                              { p.drv.destroy("pipeline") }

type mockQueue struct {
	drv *mockDriver
}

func (q *mockQueue) Submit(b *gpucore.Batch, done func(error)) error {
	q.drv.mu.Lock()
	submitErr, execErr := q.drv.submitErr, q.drv.execErr
	if submitErr == nil {
		q.drv.submitted = append(q.drv.submitted, b.Label)
	}
	q.drv.mu.Unlock()

	if submitErr != nil {
		return submitErr
	}
	go done(execErr)
	return nil
}

func (q *mockQueue) Destroy() { q.drv.destroy("queue") }

// openMock registers a fresh mock driver and opens a device on it. The
// device reference is released at cleanup unless the test released it.
func openMock(t *testing.T) (*Device, *mockDriver) {
	t.Helper()
	drv := newMockDriver()
	backend.Register(mockDriverName, func() gpucore.Driver { return drv })

	dev, err := OpenDefaultDevice(WithDriver(mockDriverName))
	if err != nil {
		t.Fatalf("OpenDefaultDevice() error = %v", err)
	}
	t.Cleanup(func() {
		backend.Unregister(mockDriverName)
		forceCloseDevice()
	})
	return dev, drv
}

// openSoftware opens the CPU reference device.
func openSoftware(t *testing.T) *Device {
	t.Helper()
	dev, err := OpenDefaultDevice(WithDriver("software"))
	if err != nil {
		t.Fatalf("OpenDefaultDevice(software) error = %v", err)
	}
	t.Cleanup(func() {
		if dev.RefCount() > 0 {
			_ = dev.Release()
		}
		forceCloseDevice()
	})
	return dev
}

// forceCloseDevice forgets the open device so a failed test cannot block
// the ones after it.
func forceCloseDevice() {
	openMu.Lock()
	openDevice = nil
	openMu.Unlock()
}

// mustOK fails the test on a non-nil error.
func mustOK(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}

// wantPrecondition checks that err is a precondition error matching target.
func wantPrecondition(t *testing.T, name string, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Errorf("%s error = %v, want %v", name, err, target)
		return
	}
	if !IsPrecondition(err) {
		t.Errorf("%s error = %v, want precondition kind", name, err)
	}
}
