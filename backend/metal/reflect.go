package metal

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/gogpu/cmt/gpucore"
)

// The bridge reports pipeline reflection as a little-endian stream:
//
//	arguments: u32 count, then count arguments
//	argument:  string name, u32 index, u8 kind, u8 access, u8 active, type
//	string:    u32 length, bytes
//	type:      u8 tag, then
//	  tagNone:    nothing
//	  tagScalar:  u32 data type, u64 size, u64 alignment
//	  tagStruct:  u32 count, then count of (string name, u64 offset, u32 argument index, type)
//	  tagArray:   u64 length, u64 stride, type
//	  tagPointer: u8 access, u64 alignment, u64 data size, u8 argument buffer, type
const (
	tagNone uint8 = iota
	tagScalar
	tagStruct
	tagArray
	tagPointer
)

// maxTypeDepth bounds nesting so a corrupt stream cannot recurse forever.
const maxTypeDepth = 32

var errReflection = errors.New("metal: malformed reflection data")

type decoder struct {
	data []byte
	err  error
}

func (d *decoder) take(n int) []byte {
	if d.err != nil {
		return nil
	}
	if n < 0 || len(d.data) < n {
		d.err = errReflection
		return nil
	}
	b := d.data[:n]
	d.data = d.data[n:]
	return b
}

func (d *decoder) u8() uint8 {
	if b := d.take(1); b != nil {
		return b[0]
	}
	return 0
}

func (d *decoder) u32() uint32 {
	if b := d.take(4); b != nil {
		return binary.LittleEndian.Uint32(b)
	}
	return 0
}

func (d *decoder) u64() uint64 {
	if b := d.take(8); b != nil {
		return binary.LittleEndian.Uint64(b)
	}
	return 0
}

func (d *decoder) str() string {
	n := d.u32()
	if n > uint32(len(d.data)) {
		d.err = errReflection
		return ""
	}
	return string(d.take(int(n)))
}

func (d *decoder) typ(depth int) gpucore.TypeDescriptor {
	if depth > maxTypeDepth {
		d.err = errReflection
	}
	if d.err != nil {
		return nil
	}
	switch tag := d.u8(); tag {
	case tagNone:
		return nil
	case tagScalar:
		kind := gpucore.DataType(d.u32())
		size, align := d.u64(), d.u64()
		return gpucore.NewScalarType(kind, size, align)
	case tagStruct:
		n := d.u32()
		if uint64(n) > uint64(len(d.data)) {
			d.err = errReflection
			return nil
		}
		members := make([]gpucore.StructMember, 0, n)
		for range n {
			m := gpucore.StructMember{Name: d.str(), Offset: d.u64(), ArgumentIndex: d.u32()}
			m.Type = d.typ(depth + 1)
			members = append(members, m)
		}
		return gpucore.NewStructType(members, 0, 0)
	case tagArray:
		length, stride := d.u64(), d.u64()
		return gpucore.NewArrayType(d.typ(depth+1), length, stride)
	case tagPointer:
		access := gpucore.ArgumentAccess(d.u8())
		align, size := d.u64(), d.u64()
		argBuffer := d.u8() != 0
		return gpucore.NewPointerType(d.typ(depth+1), access, align, size, argBuffer)
	default:
		d.err = fmt.Errorf("%w: unknown type tag %d", errReflection, tag)
		return nil
	}
}

// decodeArguments parses the reflection stream produced by the bridge.
func decodeArguments(data []byte) ([]gpucore.Argument, error) {
	d := &decoder{data: data}
	n := d.u32()
	if uint64(n) > uint64(len(d.data)) {
		return nil, errReflection
	}
	args := make([]gpucore.Argument, 0, n)
	for range n {
		a := gpucore.Argument{
			Name:   d.str(),
			Index:  d.u32(),
			Kind:   gpucore.ArgumentKind(d.u8()),
			Access: gpucore.ArgumentAccess(d.u8()),
			Active: d.u8() != 0,
		}
		a.Type = d.typ(0)
		if d.err != nil {
			return nil, d.err
		}
		args = append(args, a)
	}
	if d.err != nil {
		return nil, d.err
	}
	if len(d.data) != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", errReflection, len(d.data))
	}
	return args, nil
}

// readsArgumentBuffers reports whether any buffer argument holds device
// addresses, in which case every live buffer must be resident.
func readsArgumentBuffers(args []gpucore.Argument) bool {
	for _, a := range args {
		pt := a.Pointer()
		if pt == nil {
			continue
		}
		if pt.ElementIsArgumentBuffer() || holdsPointer(pt.Element(), 0) {
			return true
		}
	}
	return false
}

func holdsPointer(t gpucore.TypeDescriptor, depth int) bool {
	if depth > maxTypeDepth {
		return false
	}
	switch t := t.(type) {
	case *gpucore.PointerType:
		return true
	case *gpucore.StructType:
		for _, m := range t.Members() {
			if holdsPointer(m.Type, depth+1) {
				return true
			}
		}
	case *gpucore.ArrayType:
		return holdsPointer(t.Element(), depth+1)
	}
	return false
}
