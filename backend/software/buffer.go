package software

import (
	"github.com/gogpu/cmt/backend"
	"github.com/gogpu/cmt/gpucore"
	"github.com/gogpu/cmt/internal/hostmem"
)

// buffer is a host-memory allocation tracked by a MemoryManager.
type buffer struct {
	mgr    *MemoryManager
	block  *hostmem.Block
	length uint64
	mode   gpucore.StorageMode
	addr   uint64
}

func (b *buffer) Length() uint64                   { return b.length }
func (b *buffer) StorageMode() gpucore.StorageMode { return b.mode }
func (b *buffer) GPUAddress() uint64               { return b.addr }

// Contents returns the mapped bytes of a shared buffer.
func (b *buffer) Contents() []byte {
	if !b.mode.CPUAccessible() {
		return nil
	}
	return b.block.Bytes()
}

// bytes returns the backing memory regardless of storage mode.
func (b *buffer) bytes() []byte { return b.block.Bytes() }

func (b *buffer) Destroy() {
	if err := b.mgr.free(b); err != nil {
		backend.Logger().Warn("software: buffer free failed", "addr", b.addr, "err", err)
	}
}
