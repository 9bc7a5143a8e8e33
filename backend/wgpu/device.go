//go:build !nogpu

package wgpu

import (
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/cmt/backend"
	"github.com/gogpu/cmt/gpucore"
	"github.com/gogpu/cmt/internal/hostmem"
)

const (
	// maxStorageBinding is the WebGPU default maxStorageBufferBindingSize.
	maxStorageBinding = 128 << 20

	// bindingOffsetAlignment is the WebGPU default
	// minStorageBufferOffsetAlignment.
	bindingOffsetAlignment = 256

	// maxWorkgroupsPerDimension is the WebGPU default
	// maxComputeWorkgroupsPerDimension.
	maxWorkgroupsPerDimension = 65535

	addressBase      uint64 = 1 << 32
	addressAlignment uint64 = 256
)

// bufferUsage lets any buffer be bound as storage or uniform and copied
// in both directions.
const bufferUsage = gputypes.BufferUsageStorage | gputypes.BufferUsageUniform |
	gputypes.BufferUsageCopySrc | gputypes.BufferUsageCopyDst

// device wraps one HAL device and its queue. The HAL queue is shared by
// every cmt queue; submissions are serialized by submitMu.
type device struct {
	opts     options
	gpu      hal.Device
	queue    hal.Queue
	instance hal.Instance // nil for shared devices
	name     string
	limits   gpucore.Limits

	submitMu sync.Mutex

	addrMu   sync.Mutex
	nextAddr uint64

	mu        sync.Mutex
	destroyed bool
}

func newDevice(opts options, dev hal.Device, q hal.Queue, instance hal.Instance, name string) *device {
	limits := gpucore.DefaultLimits()
	limits.MaxBufferLength = maxStorageBinding
	return &device{
		opts:     opts,
		gpu:      dev,
		queue:    q,
		instance: instance,
		name:     name,
		limits:   limits,
		nextAddr: addressBase,
	}
}

func (d *device) Info() gpucore.DeviceInfo {
	return gpucore.DeviceInfo{
		Name:     d.name,
		Driver:   backend.BackendWGPU,
		Language: gpucore.LanguageWGSL,
	}
}

func (d *device) Limits() gpucore.Limits { return d.limits }

func (d *device) NewQueue() (gpucore.Queue, error) {
	return newQueue(d), nil
}

func (d *device) NewBuffer(length uint64, mode gpucore.StorageMode) (gpucore.Buffer, error) {
	if length == 0 {
		return nil, fmt.Errorf("wgpu: zero-length buffer")
	}
	if length > d.limits.MaxBufferLength {
		return nil, fmt.Errorf("wgpu: %w: %d bytes exceeds the %d byte binding limit",
			gpucore.ErrOutOfMemory, length, d.limits.MaxBufferLength)
	}

	size := gpucore.AlignUp(length, 4)
	hb, err := d.gpu.CreateBuffer(&hal.BufferDescriptor{
		Label: "cmt_buffer",
		Size:  size,
		Usage: bufferUsage,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: %w: %w", gpucore.ErrOutOfMemory, err)
	}

	b := &buffer{dev: d, buf: hb, length: length, size: size, mode: mode, addr: d.reserveAddress(size)}
	if mode.CPUAccessible() {
		if b.host, err = hostmem.Alloc(length); err != nil {
			d.gpu.DestroyBuffer(hb)
			return nil, fmt.Errorf("wgpu: %w: host mirror: %w", gpucore.ErrOutOfMemory, err)
		}
	}
	return b, nil
}

func (d *device) reserveAddress(size uint64) uint64 {
	d.addrMu.Lock()
	defer d.addrMu.Unlock()
	addr := d.nextAddr
	d.nextAddr += gpucore.AlignUp(size, addressAlignment) + addressAlignment
	return addr
}

// Destroy destroys the HAL device unless it belongs to a provider.
func (d *device) Destroy() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.destroyed {
		return
	}
	d.destroyed = true
	if d.instance == nil {
		backend.Logger().Debug("wgpu: shared device released")
		return
	}
	d.gpu.Destroy()
	d.instance.Destroy()
	backend.Logger().Debug("wgpu: device destroyed")
}
