package software

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/gogpu/cmt/gpucore"
)

func init() {
	RegisterKernel("copy_buffer", copyBuffer)
	RegisterKernel("matrix_addition", matrixAddition)
	RegisterKernel("matrix_multiply", matrixMultiply)
	RegisterKernel("argument_copy", argumentCopy)
}

// copyBuffer copies one u32 per thread from binding 0 to binding 1.
func copyBuffer(g *Threadgroup) error {
	src, dst := g.Uint32s(0), g.Uint32s(1)
	g.ForEachThread(func(gid, _ gpucore.Size) {
		i := gid.Width
		if i < uint64(len(src)) && i < uint64(len(dst)) {
			dst[i] = src[i]
		}
	})
	return nil
}

// matrixAddition writes a[i] + b[i] to c[i] for each thread i.
func matrixAddition(g *Threadgroup) error {
	a, b, c := g.Float32s(0), g.Float32s(1), g.Float32s(2)
	n := uint64(min(len(a), len(b), len(c)))
	g.ForEachThread(func(gid, _ gpucore.Size) {
		if i := gid.Width; i < n {
			c[i] = a[i] + b[i]
		}
	})
	return nil
}

// matrixMultiply computes one tile of C = A·B. Binding 3 holds the
// dimensions {M, N, K, _}; A is MxK, B is KxN, C is MxN, all row-major.
// The group loads square tiles of A and B the size of the threadgroup width
// and accumulates, as the shader does through workgroup memory.
func matrixMultiply(g *Threadgroup) error {
	a, b, c := g.Float32s(0), g.Float32s(1), g.Float32s(2)
	dims := g.Uint32s(3)
	if len(dims) < 3 {
		return bindingError("matrix_multiply", 3, 12, len(g.Buffer(3)))
	}
	m, n, k := int(dims[0]), int(dims[1]), int(dims[2])
	switch {
	case len(a) < m*k:
		return bindingError("matrix_multiply", 0, m*k*4, len(a)*4)
	case len(b) < k*n:
		return bindingError("matrix_multiply", 1, k*n*4, len(b)*4)
	case len(c) < m*n:
		return bindingError("matrix_multiply", 2, m*n*4, len(c)*4)
	}

	size := g.Size()
	if size.Width != size.Height {
		return fmt.Errorf("matrix_multiply: threadgroup %v is not square", size)
	}
	tile := int(size.Width)
	origin := g.Origin()
	row0, col0 := int(origin.Height), int(origin.Width)

	tileA := make([]float32, tile*tile)
	tileB := make([]float32, tile*tile)
	acc := make([]float32, tile*tile)

	for t := 0; t < k; t += tile {
		for ly := range tile {
			for lx := range tile {
				var va, vb float32
				if r, kk := row0+ly, t+lx; r < m && kk < k {
					va = a[r*k+kk]
				}
				if kk, cc := t+ly, col0+lx; kk < k && cc < n {
					vb = b[kk*n+cc]
				}
				tileA[ly*tile+lx] = va
				tileB[ly*tile+lx] = vb
			}
		}
		for ly := range tile {
			rowA := tileA[ly*tile : (ly+1)*tile]
			for lx := range tile {
				sum := acc[ly*tile+lx]
				for i, av := range rowA {
					sum += av * tileB[i*tile+lx]
				}
				acc[ly*tile+lx] = sum
			}
		}
	}

	for ly := range tile {
		r := row0 + ly
		if r >= m {
			break
		}
		for lx := range tile {
			cc := col0 + lx
			if cc >= n {
				break
			}
			c[r*n+cc] = acc[ly*tile+lx]
		}
	}
	return nil
}

// errUnresolvedAddress is returned when an argument buffer references memory
// that is not a live buffer of the device.
var errUnresolvedAddress = errors.New("software: argument buffer address does not resolve")

// argumentCopy reads {src, dst: address; count: u32} from the argument
// buffer at binding 0 and copies count u32 values.
func argumentCopy(g *Threadgroup) error {
	args := g.Buffer(0)
	if len(args) < 20 {
		return bindingError("argument_copy", 0, 20, len(args))
	}
	srcAddr := binary.LittleEndian.Uint64(args[0:8])
	dstAddr := binary.LittleEndian.Uint64(args[8:16])
	count := uint64(binary.LittleEndian.Uint32(args[16:20]))

	src, dst := viewAs[uint32](g.Resolve(srcAddr)), viewAs[uint32](g.Resolve(dstAddr))
	if src == nil || dst == nil {
		return fmt.Errorf("argument_copy: src %#x dst %#x: %w", srcAddr, dstAddr, errUnresolvedAddress)
	}
	count = min(count, uint64(len(src)), uint64(len(dst)))
	g.ForEachThread(func(gid, _ gpucore.Size) {
		if i := gid.Width; i < count {
			dst[i] = src[i]
		}
	})
	return nil
}
