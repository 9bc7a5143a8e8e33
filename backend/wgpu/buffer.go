//go:build !nogpu

package wgpu

import (
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/cmt/backend"
	"github.com/gogpu/cmt/gpucore"
	"github.com/gogpu/cmt/internal/hostmem"
)

// buffer is a HAL buffer. Shared buffers also own a host mirror that the
// queue synchronizes around each batch.
type buffer struct {
	dev    *device
	buf    hal.Buffer
	length uint64
	size   uint64 // length rounded up to the 4-byte copy granularity
	mode   gpucore.StorageMode
	host   *hostmem.Block
	addr   uint64
}

func (b *buffer) Length() uint64                   { return b.length }
func (b *buffer) StorageMode() gpucore.StorageMode { return b.mode }
func (b *buffer) GPUAddress() uint64               { return b.addr }

func (b *buffer) Contents() []byte {
	if b.host == nil {
		return nil
	}
	return b.host.Bytes()
}

// upload returns the mirror padded to the GPU allocation size.
func (b *buffer) upload() []byte {
	data := b.host.Bytes()
	if uint64(len(data)) == b.size {
		return data
	}
	padded := make([]byte, b.size)
	copy(padded, data)
	return padded
}

func (b *buffer) Destroy() {
	b.dev.gpu.DestroyBuffer(b.buf)
	if err := b.host.Free(); err != nil {
		backend.Logger().Warn("wgpu: host mirror free failed", "addr", b.addr, "err", err)
	}
}
