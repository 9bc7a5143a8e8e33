//go:build darwin && cgo

package metal

/*
#cgo CFLAGS: -fobjc-arc
#cgo LDFLAGS: -framework Metal -framework Foundation
#include <stdlib.h>
#include "bridge.h"
*/
import "C"

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/gogpu/cmt/backend"
	"github.com/gogpu/cmt/gpucore"
)

func init() {
	backend.Register(backend.BackendMetal, func() gpucore.Driver {
		return NewDriver()
	})
}

// Driver opens the system default Metal device.
type Driver struct{}

// NewDriver creates a Metal driver.
func NewDriver() *Driver { return &Driver{} }

// Name returns "metal".
func (d *Driver) Name() string { return backend.BackendMetal }

// Open opens the system default device. It returns gpucore.ErrNoDevice on
// machines without a Metal-capable GPU.
func (d *Driver) Open() (gpucore.Device, error) {
	var info C.cmt_mtl_device_info
	ref := C.cmt_mtl_device_open(&info)
	if ref == nil {
		return nil, fmt.Errorf("metal: %w", gpucore.ErrNoDevice)
	}
	name := C.GoString(info.name)
	C.free(unsafe.Pointer(info.name))

	limits := gpucore.DefaultLimits()
	if n := uint64(info.max_threads_per_threadgroup); n > 0 {
		limits.MaxThreadsPerThreadgroup = n
	}
	if n := uint64(info.max_buffer_length); n > 0 {
		limits.MaxBufferLength = n
	}
	backend.Logger().Info("metal: device opened", "name", name, "unified", bool(info.unified_memory))
	return &device{
		ref: ref,
		info: gpucore.DeviceInfo{
			Name:          name,
			Driver:        backend.BackendMetal,
			Language:      gpucore.LanguageMSL,
			UnifiedMemory: bool(info.unified_memory),
		},
		limits:  limits,
		buffers: make(map[*buffer]struct{}),
	}, nil
}

type device struct {
	ref    C.cmt_mtl_ref
	info   gpucore.DeviceInfo
	limits gpucore.Limits

	// buffers holds every live allocation so dispatches that read argument
	// buffers can make indirectly referenced memory resident.
	mu      sync.Mutex
	buffers map[*buffer]struct{}
}

func (d *device) Info() gpucore.DeviceInfo { return d.info }
func (d *device) Limits() gpucore.Limits   { return d.limits }

func (d *device) NewQueue() (gpucore.Queue, error) {
	ref := C.cmt_mtl_queue_new(d.ref)
	if ref == nil {
		return nil, fmt.Errorf("metal: create command queue: %w", gpucore.ErrOutOfMemory)
	}
	return &queue{dev: d, ref: ref}, nil
}

func (d *device) NewBuffer(length uint64, mode gpucore.StorageMode) (gpucore.Buffer, error) {
	ref := C.cmt_mtl_buffer_new(d.ref, C.uint64_t(length), C.bool(mode == gpucore.StorageModePrivate))
	if ref == nil {
		return nil, fmt.Errorf("metal: allocate %d bytes: %w", length, gpucore.ErrOutOfMemory)
	}
	b := &buffer{dev: d, ref: ref, length: length, mode: mode}
	if mode.CPUAccessible() {
		b.contents = unsafe.Slice((*byte)(C.cmt_mtl_buffer_contents(ref)), length)
	}
	d.mu.Lock()
	d.buffers[b] = struct{}{}
	d.mu.Unlock()
	return b, nil
}

// resident returns the bridge references of all live buffers.
func (d *device) resident() []C.cmt_mtl_ref {
	d.mu.Lock()
	defer d.mu.Unlock()
	refs := make([]C.cmt_mtl_ref, 0, len(d.buffers))
	for b := range d.buffers {
		refs = append(refs, b.ref)
	}
	return refs
}

func (d *device) Destroy() {
	C.cmt_mtl_release(d.ref)
	d.ref = nil
}

type buffer struct {
	dev      *device
	ref      C.cmt_mtl_ref
	length   uint64
	mode     gpucore.StorageMode
	contents []byte
}

func (b *buffer) Length() uint64                   { return b.length }
func (b *buffer) StorageMode() gpucore.StorageMode { return b.mode }
func (b *buffer) Contents() []byte                 { return b.contents }

func (b *buffer) GPUAddress() uint64 {
	return uint64(C.cmt_mtl_buffer_gpu_address(b.ref))
}

func (b *buffer) Destroy() {
	b.dev.mu.Lock()
	delete(b.dev.buffers, b)
	b.dev.mu.Unlock()
	b.contents = nil
	C.cmt_mtl_release(b.ref)
}

// compileError converts and frees a bridge error.
func compileError(e *C.cmt_mtl_error) *gpucore.CompileError {
	defer C.cmt_mtl_error_free(e)
	return &gpucore.CompileError{
		Domain:      C.GoString(e.domain),
		Code:        int(e.code),
		Description: C.GoString(e.description),
	}
}
