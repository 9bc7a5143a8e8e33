package cmt

import (
	"encoding/binary"
	"slices"
	"sync"

	"github.com/gogpu/cmt/gpucore"
)

// ArgumentDescriptor describes one entry of an argument buffer.
type ArgumentDescriptor struct {
	// DataType of the entry. DataTypePointer entries hold a buffer address.
	DataType DataType

	// Index is the argument-buffer index used by SetBuffer and ConstantData.
	Index uint32

	// Access is the shader's access to the entry.
	Access ArgumentAccess

	// ArrayLength greater than zero makes the entry an array.
	ArrayLength uint64

	// ConstantBlockAlignment overrides the alignment of the entry when
	// larger than the natural alignment.
	ConstantBlockAlignment uint64

	// Elements describes the argument buffer a pointer entry points to.
	// Leave nil for plain buffer pointers.
	Elements []*ArgumentDescriptor
}

// NewArgumentDescriptor returns a blank descriptor.
func NewArgumentDescriptor() *ArgumentDescriptor {
	return &ArgumentDescriptor{}
}

// layoutArguments computes the argument buffer layout of descs, ordered by
// index. Nested argument buffers may share descriptors but must not contain
// themselves.
func layoutArguments(op string, descs []*ArgumentDescriptor) (*gpucore.StructType, error) {
	return layoutNested(op, descs, make(map[*ArgumentDescriptor]struct{}))
}

// layoutNested is layoutArguments with path holding the pointer entries
// being laid out above descs.
func layoutNested(op string, descs []*ArgumentDescriptor, path map[*ArgumentDescriptor]struct{}) (*gpucore.StructType, error) {
	if len(descs) == 0 {
		return nil, precondition(op, ErrInvalidDescriptor, "no descriptors")
	}
	sorted := slices.Clone(descs)
	for _, d := range sorted {
		if d == nil {
			return nil, precondition(op, ErrInvalidDescriptor, "nil descriptor")
		}
	}
	slices.SortStableFunc(sorted, func(a, b *ArgumentDescriptor) int {
		return int(a.Index) - int(b.Index)
	})

	members := make([]gpucore.StructMember, 0, len(sorted))
	var offset, align uint64 = 0, 1
	for i, d := range sorted {
		if i > 0 && sorted[i-1].Index == d.Index {
			return nil, precondition(op, ErrInvalidDescriptor, "duplicate index %d", d.Index)
		}
		t, err := descriptorType(op, d, path)
		if err != nil {
			return nil, err
		}
		size, a := gpucore.LayoutOf(t)
		a = max(a, d.ConstantBlockAlignment)
		offset = gpucore.AlignUp(offset, a)
		members = append(members, gpucore.StructMember{Offset: offset, ArgumentIndex: d.Index, Type: t})
		offset += size
		align = max(align, a)
	}
	return gpucore.NewStructType(members, gpucore.AlignUp(offset, align), align), nil
}

func descriptorType(op string, d *ArgumentDescriptor, path map[*ArgumentDescriptor]struct{}) (gpucore.TypeDescriptor, error) {
	var t gpucore.TypeDescriptor
	switch {
	case d.DataType == gpucore.DataTypePointer && len(d.Elements) > 0:
		if _, ok := path[d]; ok {
			return nil, precondition(op, ErrInvalidDescriptor, "index %d: cyclic elements", d.Index)
		}
		path[d] = struct{}{}
		nested, err := layoutNested(op, d.Elements, path)
		delete(path, d)
		if err != nil {
			return nil, err
		}
		t = gpucore.NewPointerType(nested, d.Access, 0, 0, true)
	case d.DataType == gpucore.DataTypePointer:
		t = gpucore.NewPointerType(nil, d.Access, 0, 0, false)
	case d.DataType.IsNumeric():
		t = gpucore.NewScalarType(d.DataType, 0, 0)
	default:
		return nil, precondition(op, ErrInvalidDescriptor, "index %d: unsupported data type %v", d.Index, d.DataType)
	}
	if d.ArrayLength > 0 {
		t = gpucore.NewArrayType(t, d.ArrayLength, 0)
	}
	return t, nil
}

// ArgumentEncoder writes buffer addresses and constants into an argument
// buffer laid out by a set of ArgumentDescriptors or by shader reflection.
type ArgumentEncoder struct {
	object

	device *Device
	layout *gpucore.StructType
	ptr    *gpucore.PointerType

	mu     sync.Mutex
	buf    *Buffer
	offset uint64
}

// NewArgumentEncoder creates an encoder for the layout described by descs.
// Entries are placed in index order with natural alignment; pointers take
// 8 bytes.
func (d *Device) NewArgumentEncoder(descs []*ArgumentDescriptor) (*ArgumentEncoder, error) {
	const op = "Device.NewArgumentEncoder"

	if err := d.alive(op); err != nil {
		return nil, err
	}
	layout, err := layoutArguments(op, descs)
	if err != nil {
		return nil, err
	}
	return d.newArgumentEncoder(op, layout)
}

// NewArgumentEncoderFromFunction creates an encoder for the argument buffer
// fn declares at buffer index.
func (d *Device) NewArgumentEncoderFromFunction(fn *Function, index uint32) (*ArgumentEncoder, error) {
	const op = "Device.NewArgumentEncoderFromFunction"

	if err := d.alive(op); err != nil {
		return nil, err
	}
	if err := fn.alive(op); err != nil {
		return nil, err
	}
	if err := d.owns(op, fn.library.device); err != nil {
		return nil, err
	}
	for _, a := range fn.fn.Arguments() {
		if a.Kind != gpucore.ArgumentBuffer || a.Group != 0 || a.Index != index {
			continue
		}
		pt := a.Pointer()
		if pt == nil || !pt.ElementIsArgumentBuffer() || pt.ElementStructType() == nil {
			return nil, precondition(op, ErrInvalidDescriptor, "%s argument %q is not an argument buffer", fn.Name(), a.Name)
		}
		return d.newArgumentEncoder(op, pt.ElementStructType())
	}
	return nil, precondition(op, ErrBindingIndex, "%s declares no buffer at index %d", fn.Name(), index)
}

func (d *Device) newArgumentEncoder(op string, layout *gpucore.StructType) (*ArgumentEncoder, error) {
	if err := d.adopt(op); err != nil {
		return nil, err
	}
	e := &ArgumentEncoder{
		device: d,
		layout: layout,
		ptr:    gpucore.NewPointerType(layout, gpucore.ArgumentAccessReadOnly, 0, 0, true),
	}
	e.register(e, e.destroy)
	return e, nil
}

func (e *ArgumentEncoder) destroy() {
	e.device.releaseInternal()
}

// EncodedLength returns the size of the argument buffer in bytes.
func (e *ArgumentEncoder) EncodedLength() uint64 { return e.layout.Size() }

// Alignment returns the required alignment of the argument buffer offset.
func (e *ArgumentEncoder) Alignment() uint64 { return e.layout.Alignment() }

// Layout returns the argument buffer layout.
func (e *ArgumentEncoder) Layout() *gpucore.StructType { return e.layout }

// PointerType describes a pointer to the encoded argument buffer.
func (e *ArgumentEncoder) PointerType() *gpucore.PointerType { return e.ptr }

// SetArgumentBuffer selects the shared buffer region the encoder writes to.
func (e *ArgumentEncoder) SetArgumentBuffer(buf *Buffer, offset uint64) error {
	const op = "ArgumentEncoder.SetArgumentBuffer"

	if err := e.alive(op); err != nil {
		return err
	}
	if err := buf.alive(op); err != nil {
		return err
	}
	if err := e.device.owns(op, buf.device); err != nil {
		return err
	}
	switch {
	case !buf.mode.CPUAccessible():
		return precondition(op, ErrNotCPUAccessible, "%v buffer", buf.mode)
	case offset%e.Alignment() != 0:
		return precondition(op, ErrMisalignedOffset, "offset %d, alignment %d", offset, e.Alignment())
	case offset > buf.length || buf.length-offset < e.EncodedLength():
		return precondition(op, ErrOffsetOutOfRange, "%d bytes at offset %d exceed buffer length %d",
			e.EncodedLength(), offset, buf.length)
	}

	e.mu.Lock()
	e.buf, e.offset = buf, offset
	e.mu.Unlock()
	return nil
}

// region returns the encoded bytes of the member at index.
func (e *ArgumentEncoder) region(op string, index uint32) ([]byte, gpucore.StructMember, error) {
	if err := e.alive(op); err != nil {
		return nil, gpucore.StructMember{}, err
	}
	m, ok := e.layout.MemberByIndex(index)
	if !ok {
		return nil, m, precondition(op, ErrBindingIndex, "no argument at index %d", index)
	}

	e.mu.Lock()
	buf, offset := e.buf, e.offset
	e.mu.Unlock()
	if buf == nil {
		return nil, m, precondition(op, ErrInvalidState, "no argument buffer set")
	}
	data, err := buf.Contents()
	if err != nil {
		return nil, m, err
	}
	size, _ := gpucore.LayoutOf(m.Type)
	start := offset + m.Offset
	return data[start : start+size], m, nil
}

// SetBuffer writes the GPU address of buf plus offset into the pointer
// entry at index.
func (e *ArgumentEncoder) SetBuffer(buf *Buffer, offset uint64, index uint32) error {
	const op = "ArgumentEncoder.SetBuffer"

	if err := buf.alive(op); err != nil {
		return err
	}
	if err := e.device.owns(op, buf.device); err != nil {
		return err
	}
	if offset >= buf.length {
		return precondition(op, ErrOffsetOutOfRange, "offset %d, buffer length %d", offset, buf.length)
	}
	dst, m, err := e.region(op, index)
	if err != nil {
		return err
	}
	if _, ok := m.Type.(*gpucore.PointerType); !ok {
		return precondition(op, ErrInvalidDescriptor, "argument %d is a %v, not a pointer", index, m.DataType())
	}
	binary.LittleEndian.PutUint64(dst, buf.GPUAddress()+offset)
	return nil
}

// ConstantData returns the bytes of the entry at index inside the argument
// buffer, for writing constants directly.
func (e *ArgumentEncoder) ConstantData(index uint32) ([]byte, error) {
	data, _, err := e.region("ArgumentEncoder.ConstantData", index)
	return data, err
}

// NewArgumentEncoderForBuffer returns an encoder for the nested argument
// buffer that the pointer entry at index points to.
func (e *ArgumentEncoder) NewArgumentEncoderForBuffer(index uint32) (*ArgumentEncoder, error) {
	const op = "ArgumentEncoder.NewArgumentEncoderForBuffer"

	if err := e.alive(op); err != nil {
		return nil, err
	}
	m, ok := e.layout.MemberByIndex(index)
	if !ok {
		return nil, precondition(op, ErrBindingIndex, "no argument at index %d", index)
	}
	pt, ok := m.Type.(*gpucore.PointerType)
	if !ok || !pt.ElementIsArgumentBuffer() || pt.ElementStructType() == nil {
		return nil, precondition(op, ErrInvalidDescriptor, "argument %d does not point to an argument buffer", index)
	}
	return e.device.newArgumentEncoder(op, pt.ElementStructType())
}
