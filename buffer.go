package cmt

import (
	"fmt"
	"unsafe"

	"github.com/gogpu/cmt/gpucore"
)

// Buffer is a region of device memory. Binding a buffer to an encoder does
// not retain it; a command buffer retains the buffers it uses from Commit
// until it completes.
type Buffer struct {
	object

	device *Device
	buf    gpucore.Buffer
	length uint64
	mode   StorageMode
}

// NewBuffer allocates length bytes. Shared buffers start zero-filled.
func (d *Device) NewBuffer(length uint64, mode StorageMode) (*Buffer, error) {
	const op = "Device.NewBuffer"

	if err := d.alive(op); err != nil {
		return nil, err
	}
	if length == 0 {
		return nil, precondition(op, ErrInvalidLength, "zero-length buffer")
	}
	if mode != StorageModeShared && mode != StorageModePrivate {
		return nil, precondition(op, ErrInvalidState, "unknown storage mode %v", mode)
	}
	if length > d.limits.MaxBufferLength {
		return nil, &Error{Kind: KindAllocation, Op: op,
			Detail: fmt.Sprintf("%d bytes exceeds the device limit of %d", length, d.limits.MaxBufferLength),
			Err:    ErrAllocation}
	}

	buf, err := d.dev.NewBuffer(length, mode)
	if err != nil {
		return nil, &Error{Kind: KindAllocation, Op: op, Err: fmt.Errorf("%w: %w", ErrAllocation, err)}
	}
	if err := d.adopt(op); err != nil {
		buf.Destroy()
		return nil, err
	}

	b := &Buffer{device: d, buf: buf, length: length, mode: mode}
	b.register(b, b.destroy)
	return b, nil
}

// NewBufferWithBytes allocates a shared buffer holding a copy of data.
func (d *Device) NewBufferWithBytes(data []byte) (*Buffer, error) {
	b, err := d.NewBuffer(uint64(len(data)), StorageModeShared)
	if err != nil {
		return nil, err
	}
	copy(b.buf.Contents(), data)
	return b, nil
}

func (b *Buffer) destroy() {
	b.buf.Destroy()
	b.device.releaseInternal()
}

// Length returns the buffer size in bytes.
func (b *Buffer) Length() uint64 { return b.length }

// StorageMode returns the storage mode fixed at creation.
func (b *Buffer) StorageMode() StorageMode { return b.mode }

// Device returns the device that allocated the buffer.
func (b *Buffer) Device() *Device { return b.device }

// GPUAddress returns the address shaders use for the buffer inside an
// argument buffer.
func (b *Buffer) GPUAddress() uint64 { return b.buf.GPUAddress() }

// Contents returns the CPU mapping of a shared buffer, exactly Length bytes.
// The memory lives outside the Go heap and is valid until the buffer is
// destroyed. Accessing it while a committed command buffer writes the
// buffer is a data race.
func (b *Buffer) Contents() ([]byte, error) {
	const op = "Buffer.Contents"
	if err := b.alive(op); err != nil {
		return nil, err
	}
	if !b.mode.CPUAccessible() {
		return nil, precondition(op, ErrNotCPUAccessible, "%v buffer", b.mode)
	}
	return b.buf.Contents(), nil
}

// Numeric is the set of element types View accepts.
type Numeric interface {
	~int8 | ~uint8 | ~int16 | ~uint16 | ~int32 | ~uint32 | ~int64 | ~uint64 | ~float32 | ~float64
}

// View returns the contents of a shared buffer as a slice of T. Trailing
// bytes that do not fill a whole element are not included.
func View[T Numeric](b *Buffer) ([]T, error) {
	data, err := b.Contents()
	if err != nil {
		return nil, err
	}
	var zero T
	n := len(data) / int(unsafe.Sizeof(zero))
	if n == 0 {
		return nil, nil
	}
	return unsafe.Slice((*T)(unsafe.Pointer(&data[0])), n), nil
}
