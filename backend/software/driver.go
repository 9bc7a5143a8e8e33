package software

import (
	"github.com/gogpu/cmt/backend"
	"github.com/gogpu/cmt/gpucore"
)

// init registers the software driver on package import.
func init() {
	backend.Register(backend.BackendSoftware, func() gpucore.Driver {
		return NewDriver()
	})
}

// Option configures the software driver.
type Option func(*options)

type options struct {
	workers     int
	maxMemoryMB int
}

// WithWorkers sets the number of threadgroup workers.
// Zero or negative uses GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithMemoryBudget sets the device memory budget in megabytes.
// Values below MinMemoryMB select DefaultMaxMemoryMB.
func WithMemoryBudget(mb int) Option {
	return func(o *options) { o.maxMemoryMB = mb }
}

// Driver opens software devices.
type Driver struct {
	opts options
}

// NewDriver creates a software driver.
func NewDriver(opts ...Option) *Driver {
	d := &Driver{}
	for _, opt := range opts {
		opt(&d.opts)
	}
	return d
}

// Name returns "software".
func (d *Driver) Name() string { return backend.BackendSoftware }

// Open creates a new software device. It never returns ErrNoDevice.
func (d *Driver) Open() (gpucore.Device, error) {
	return newDevice(d.opts), nil
}
