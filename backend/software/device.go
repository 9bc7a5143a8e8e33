package software

import (
	"fmt"
	"sync"

	"github.com/gogpu/cmt/backend"
	"github.com/gogpu/cmt/gpucore"
	"github.com/gogpu/cmt/internal/parallel"
)

const deviceName = "Software Reference Device"

// device is a CPU device. Threadgroups of every queue share one pool.
type device struct {
	mem    *MemoryManager
	pool   *parallel.WorkerPool
	limits gpucore.Limits

	mu        sync.Mutex
	destroyed bool
}

func newDevice(opts options) *device {
	mem := NewMemoryManager(opts.maxMemoryMB)
	limits := gpucore.DefaultLimits()
	limits.MaxThreadsPerThreadgroup = 1024
	limits.MaxBufferLength = mem.Budget()

	d := &device{
		mem:    mem,
		pool:   parallel.NewWorkerPool(opts.workers),
		limits: limits,
	}
	backend.Logger().Debug("software: device created",
		"workers", d.pool.Workers(), "budget_mb", mem.Budget()>>20)
	return d
}

func (d *device) Info() gpucore.DeviceInfo {
	return gpucore.DeviceInfo{
		Name:          deviceName,
		Driver:        backend.BackendSoftware,
		Language:      gpucore.LanguageWGSL,
		UnifiedMemory: true,
	}
}

func (d *device) Limits() gpucore.Limits { return d.limits }

// MemoryStats returns the device memory statistics.
func (d *device) MemoryStats() MemoryStats { return d.mem.Stats() }

func (d *device) NewQueue() (gpucore.Queue, error) {
	return newQueue(d), nil
}

func (d *device) NewBuffer(length uint64, mode gpucore.StorageMode) (gpucore.Buffer, error) {
	if length == 0 {
		return nil, fmt.Errorf("software: zero-length buffer")
	}
	b, err := d.mem.Alloc(length, mode)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (d *device) Destroy() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.destroyed {
		return
	}
	d.destroyed = true
	d.pool.Close()
	d.mem.Close()
	backend.Logger().Debug("software: device destroyed")
}
