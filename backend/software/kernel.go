package software

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/gogpu/cmt/gpucore"
)

// Kernel executes one threadgroup of a dispatch.
//
// Kernels see the padded threadgroup: when a DispatchThreads grid is not a
// multiple of the threadgroup size, edge groups contain threads outside
// Grid, and the kernel must skip them. A returned error (or a panic) marks
// the command buffer as failed.
type Kernel func(g *Threadgroup) error

var (
	kernelsMu sync.RWMutex
	kernels   = make(map[string]Kernel)
)

// RegisterKernel makes k the implementation of every WGSL entry point
// called name. Registering a name again replaces the previous kernel;
// pipelines already created keep the kernel they were linked with.
func RegisterKernel(name string, k Kernel) {
	kernelsMu.Lock()
	defer kernelsMu.Unlock()
	if k == nil {
		delete(kernels, name)
		return
	}
	kernels[name] = k
}

func lookupKernel(name string) (Kernel, bool) {
	kernelsMu.RLock()
	defer kernelsMu.RUnlock()
	k, ok := kernels[name]
	return k, ok
}

// Threadgroup is the view a kernel has of one threadgroup.
type Threadgroup struct {
	id       gpucore.Size
	size     gpucore.Size
	grid     gpucore.Size
	bindings map[uint32][]byte
	mem      *MemoryManager
}

// ID returns the position of the threadgroup in the group grid.
func (g *Threadgroup) ID() gpucore.Size { return g.id }

// Size returns the number of threads per threadgroup.
func (g *Threadgroup) Size() gpucore.Size { return g.size }

// Grid returns the thread extent of the dispatch. Threads at or beyond Grid
// in any dimension are padding.
func (g *Threadgroup) Grid() gpucore.Size { return g.grid }

// Origin returns the global position of the group's first thread.
func (g *Threadgroup) Origin() gpucore.Size { return g.id.Mul(g.size) }

// Buffer returns the bytes bound at index, starting at the bound offset, or
// nil if nothing is bound there.
func (g *Threadgroup) Buffer(index uint32) []byte { return g.bindings[index] }

// Float32s returns the binding at index viewed as float32 values.
func (g *Threadgroup) Float32s(index uint32) []float32 {
	return viewAs[float32](g.bindings[index])
}

// Uint32s returns the binding at index viewed as uint32 values.
func (g *Threadgroup) Uint32s(index uint32) []uint32 {
	return viewAs[uint32](g.bindings[index])
}

// Resolve returns the memory at a GPU address, up to the end of the buffer
// containing it, or nil if the address is not inside a live buffer.
func (g *Threadgroup) Resolve(addr uint64) []byte { return g.mem.Resolve(addr) }

// ForEachThread calls fn for every thread of the group that lies inside
// Grid, with its global and local positions.
func (g *Threadgroup) ForEachThread(fn func(global, local gpucore.Size)) {
	origin := g.Origin()
	for z := uint64(0); z < g.size.Depth; z++ {
		gz := origin.Depth + z
		if gz >= g.grid.Depth {
			break
		}
		for y := uint64(0); y < g.size.Height; y++ {
			gy := origin.Height + y
			if gy >= g.grid.Height {
				break
			}
			for x := uint64(0); x < g.size.Width; x++ {
				gx := origin.Width + x
				if gx >= g.grid.Width {
					break
				}
				fn(gpucore.Size{Width: gx, Height: gy, Depth: gz}, gpucore.Size{Width: x, Height: y, Depth: z})
			}
		}
	}
}

// viewAs reinterprets b as a slice of T, dropping trailing bytes.
func viewAs[T float32 | uint32 | int32](b []byte) []T {
	var zero T
	n := len(b) / int(unsafe.Sizeof(zero))
	if n == 0 {
		return nil
	}
	return unsafe.Slice((*T)(unsafe.Pointer(&b[0])), n)
}

// bindingError reports a kernel binding that is missing or too small.
func bindingError(kernel string, index uint32, need, have int) error {
	return fmt.Errorf("%s: binding %d holds %d bytes, need %d", kernel, index, have, need)
}
