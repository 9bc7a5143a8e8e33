package backend

import (
	"errors"
	"slices"
	"testing"

	"github.com/gogpu/cmt/gpucore"
)

// stubDriver is a driver whose Open result is fixed.
type stubDriver struct {
	name string
	dev  gpucore.Device
	err  error
}

func (d *stubDriver) Name() string                  { return d.name }
func (d *stubDriver) Open() (gpucore.Device, error) { return d.dev, d.err }

// stubDevice implements just enough of gpucore.Device for selection tests.
type stubDevice struct {
	gpucore.Device
	name string
}

func (d *stubDevice) Info() gpucore.DeviceInfo { return gpucore.DeviceInfo{Name: d.name} }

// withRegistry swaps the registry contents for the duration of a test.
func withRegistry(t *testing.T, factories map[string]DriverFactory) {
	t.Helper()
	registryMu.Lock()
	saved := drivers
	drivers = factories
	registryMu.Unlock()
	t.Cleanup(func() {
		registryMu.Lock()
		drivers = saved
		registryMu.Unlock()
	})
}

func factory(d gpucore.Driver) DriverFactory {
	return func() gpucore.Driver { return d }
}

func TestRegisterUnregister(t *testing.T) {
	withRegistry(t, map[string]DriverFactory{})

	Register("custom", factory(&stubDriver{name: "custom"}))
	if !IsRegistered("custom") {
		t.Fatal("IsRegistered(custom) = false after Register")
	}
	if d := Get("custom"); d == nil || d.Name() != "custom" {
		t.Errorf("Get(custom) = %v", d)
	}
	Unregister("custom")
	if IsRegistered("custom") {
		t.Error("IsRegistered(custom) = true after Unregister")
	}
	if d := Get("custom"); d != nil {
		t.Errorf("Get(custom) after Unregister = %v, want nil", d)
	}
}

func TestAvailable_PriorityOrder(t *testing.T) {
	withRegistry(t, map[string]DriverFactory{
		"zeta":          factory(&stubDriver{name: "zeta"}),
		BackendSoftware: factory(&stubDriver{name: BackendSoftware}),
		"alpha":         factory(&stubDriver{name: "alpha"}),
		BackendWGPU:     factory(&stubDriver{name: BackendWGPU}),
	})

	got := Available()
	want := []string{BackendWGPU, BackendSoftware, "alpha", "zeta"}
	if !slices.Equal(got, want) {
		t.Errorf("Available() = %v, want %v", got, want)
	}
}

func TestOpenDefault_FallsBack(t *testing.T) {
	withRegistry(t, map[string]DriverFactory{
		BackendWGPU:     factory(&stubDriver{name: BackendWGPU, err: gpucore.ErrNoDevice}),
		BackendSoftware: factory(&stubDriver{name: BackendSoftware, dev: &stubDevice{name: "cpu"}}),
	})

	dev, err := OpenDefault()
	if err != nil {
		t.Fatalf("OpenDefault() error = %v", err)
	}
	if dev.Info().Name != "cpu" {
		t.Errorf("OpenDefault() device = %q, want %q", dev.Info().Name, "cpu")
	}
}

func TestOpenDefault_AllFail(t *testing.T) {
	withRegistry(t, map[string]DriverFactory{
		BackendWGPU: factory(&stubDriver{name: BackendWGPU, err: gpucore.ErrNoDevice}),
	})

	_, err := OpenDefault()
	if !errors.Is(err, ErrNoDriver) {
		t.Errorf("OpenDefault() error = %v, want ErrNoDriver", err)
	}
	if !errors.Is(err, gpucore.ErrNoDevice) {
		t.Errorf("OpenDefault() error = %v, want to wrap ErrNoDevice", err)
	}
}

func TestOpenDefault_Empty(t *testing.T) {
	withRegistry(t, map[string]DriverFactory{})

	if _, err := OpenDefault(); !errors.Is(err, ErrNoDriver) {
		t.Errorf("OpenDefault() error = %v, want ErrNoDriver", err)
	}
}

func TestOpen_Unknown(t *testing.T) {
	withRegistry(t, map[string]DriverFactory{})

	if _, err := Open("missing"); !errors.Is(err, ErrBackendNotAvailable) {
		t.Errorf("Open(missing) error = %v, want ErrBackendNotAvailable", err)
	}
}
