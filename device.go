package cmt

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/cmt/backend"
	"github.com/gogpu/cmt/gpucore"

	// The CPU reference driver is always available.
	_ "github.com/gogpu/cmt/backend/software"
)

// Only one device may be open at a time.
var (
	openMu     sync.Mutex
	openDevice *Device
)

// Device is an open compute device. Every object created from it holds a
// reference on it, so the driver device is destroyed only after the last
// buffer, queue, library or pipeline is released.
type Device struct {
	object

	dev    gpucore.Device
	info   gpucore.DeviceInfo
	limits gpucore.Limits
	label  string
}

// OpenDefaultDevice opens the first registered driver that has a usable
// device, in priority order metal, wgpu, software. The returned device has a
// reference count of one.
//
// Only one device may be open per process: a second call while a device is
// alive fails with ErrDeviceAlreadyOpen.
func OpenDefaultDevice(opts ...DeviceOption) (*Device, error) {
	const op = "OpenDefaultDevice"

	o := defaultDeviceOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.setValidation {
		SetValidationMode(o.validation)
	}

	openMu.Lock()
	defer openMu.Unlock()
	if openDevice != nil {
		return nil, precondition(op, ErrDeviceAlreadyOpen, "device %v is still alive", openDevice.h)
	}

	var (
		dev gpucore.Device
		err error
	)
	if o.driver != "" {
		dev, err = backend.Open(o.driver)
	} else {
		dev, err = backend.OpenDefault()
	}
	if err != nil {
		if errors.Is(err, gpucore.ErrNoDevice) || errors.Is(err, backend.ErrNoDriver) ||
			errors.Is(err, backend.ErrBackendNotAvailable) {
			return nil, &Error{Kind: KindNotFound, Op: op, Err: fmt.Errorf("%w: %w", ErrNoDevice, err)}
		}
		return nil, &Error{Kind: KindAllocation, Op: op, Err: err}
	}

	d := &Device{
		dev:    dev,
		info:   dev.Info(),
		limits: dev.Limits(),
		label:  o.label,
	}
	d.register(d, d.destroy)
	openDevice = d

	Logger().Info("cmt: device opened",
		"device", d.info.Name, "driver", d.info.Driver, "language", d.info.Language, "label", d.label)
	return d, nil
}

func (d *Device) destroy() {
	d.dev.Destroy()

	openMu.Lock()
	if openDevice == d {
		openDevice = nil
	}
	openMu.Unlock()
	Logger().Debug("cmt: device destroyed", "device", d.info.Name)
}

// Name returns the adapter name.
func (d *Device) Name() string { return d.info.Name }

// Info returns the driver's description of the device.
func (d *Device) Info() DeviceInfo { return d.info }

// Limits returns the limits encoders validate against.
func (d *Device) Limits() Limits { return d.limits }

// Label returns the label set with WithLabel.
func (d *Device) Label() string { return d.label }

// Driver returns the underlying driver device. It is meant for drivers'
// own extensions; objects created through it are not tracked by cmt.
func (d *Device) Driver() gpucore.Device { return d.dev }

// adopt takes the reference every child holds on its device.
func (d *Device) adopt(op string) error {
	if err := d.alive(op); err != nil {
		return err
	}
	return handleErr(op, d.retainInternal())
}

// owns reports a precondition error unless o was created by d.
func (d *Device) owns(op string, other *Device) error {
	if other != d {
		return precondition(op, ErrForeignObject, "")
	}
	return nil
}
