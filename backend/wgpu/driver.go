//go:build !nogpu

package wgpu

import (
	"fmt"
	"time"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	_ "github.com/gogpu/wgpu/hal/vulkan" // default HAL backend

	"github.com/gogpu/cmt/backend"
	"github.com/gogpu/cmt/gpucore"
)

// DefaultFenceTimeout bounds the wait for one batch.
const DefaultFenceTimeout = 10 * time.Second

func init() {
	backend.Register(backend.BackendWGPU, func() gpucore.Driver {
		return NewDriver()
	})
}

// Option configures the wgpu driver.
type Option func(*options)

type options struct {
	backend      gputypes.Backend
	provider     gpucontext.DeviceProvider
	newInstance  func() (hal.Instance, error)
	fenceTimeout time.Duration
}

// WithBackend selects the HAL backend. The default is Vulkan.
func WithBackend(b gputypes.Backend) Option {
	return func(o *options) { o.backend = b }
}

// WithDeviceProvider shares the device of a host application instead of
// opening one. The provider must expose HalDevice() and HalQueue()
// returning hal.Device and hal.Queue. The device is not destroyed when cmt
// releases it.
func WithDeviceProvider(p gpucontext.DeviceProvider) Option {
	return func(o *options) { o.provider = p }
}

// WithFenceTimeout sets how long the queue waits for one batch before
// reporting it as failed.
func WithFenceTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.fenceTimeout = d
		}
	}
}

// withInstance replaces backend lookup; tests use it to open noop devices.
func withInstance(fn func() (hal.Instance, error)) Option {
	return func(o *options) { o.newInstance = fn }
}

// Driver opens wgpu HAL devices.
type Driver struct {
	opts options
}

// NewDriver creates a wgpu driver.
func NewDriver(opts ...Option) *Driver {
	d := &Driver{opts: options{
		backend:      gputypes.BackendVulkan,
		fenceTimeout: DefaultFenceTimeout,
	}}
	for _, opt := range opts {
		opt(&d.opts)
	}
	return d
}

// Name returns "wgpu".
func (d *Driver) Name() string { return backend.BackendWGPU }

// Open opens the first discrete or integrated adapter, falling back to the
// first adapter reported. It returns gpucore.ErrNoDevice when the backend
// is missing or reports no adapters.
func (d *Driver) Open() (gpucore.Device, error) {
	if d.opts.provider != nil {
		return d.openShared(d.opts.provider)
	}

	instance, err := d.instance()
	if err != nil {
		return nil, err
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, fmt.Errorf("wgpu: %w: no adapters", gpucore.ErrNoDevice)
	}

	selected := &adapters[0]
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}

	open, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("wgpu: open device: %w", err)
	}
	backend.Logger().Info("wgpu: device opened", "adapter", selected.Info.Name)
	return newDevice(d.opts, open.Device, open.Queue, instance, selected.Info.Name), nil
}

func (d *Driver) instance() (hal.Instance, error) {
	if d.opts.newInstance != nil {
		return d.opts.newInstance()
	}
	b, ok := hal.GetBackend(d.opts.backend)
	if !ok {
		return nil, fmt.Errorf("wgpu: %w: backend %v not available", gpucore.ErrNoDevice, d.opts.backend)
	}
	instance, err := b.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("wgpu: %w: create instance: %w", gpucore.ErrNoDevice, err)
	}
	return instance, nil
}

// openShared adopts the HAL device of a gpucontext provider.
func (d *Driver) openShared(p gpucontext.DeviceProvider) (gpucore.Device, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := p.(halProvider)
	if !ok {
		return nil, fmt.Errorf("wgpu: %w: provider does not expose HAL types", gpucore.ErrNoDevice)
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("wgpu: %w: provider HalDevice is not hal.Device", gpucore.ErrNoDevice)
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("wgpu: %w: provider HalQueue is not hal.Queue", gpucore.ErrNoDevice)
	}
	backend.Logger().Info("wgpu: using shared device")
	return newDevice(d.opts, device, queue, nil, "Shared WebGPU Device"), nil
}
