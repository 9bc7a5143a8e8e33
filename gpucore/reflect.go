package gpucore

// TypeDescriptor is the reflection description of a shader type.
//
// The set of implementations is closed: *ScalarType, *PointerType,
// *StructType and *ArrayType. Switch on the concrete type to inspect one.
// Sizes and alignments are exposed by the concrete types; for a pointer they
// describe the pointee, while [LayoutOf] reports inline storage.
type TypeDescriptor interface {
	// DataType returns the tag of the described type.
	DataType() DataType

	// layout returns the size and alignment a value of the type occupies
	// when stored inline.
	layout() (size, align uint64)
}

// LayoutOf returns the inline size and alignment of t. Pointers occupy
// 8 bytes regardless of their pointee.
func LayoutOf(t TypeDescriptor) (size, align uint64) {
	if t == nil {
		return 0, 1
	}
	return t.layout()
}

// ScalarType describes a scalar, vector or matrix value.
type ScalarType struct {
	kind  DataType
	size  uint64
	align uint64
}

// NewScalarType returns a descriptor for kind. A zero size or alignment
// takes the Metal Shading Language default for kind.
func NewScalarType(kind DataType, size, align uint64) *ScalarType {
	if size == 0 {
		size = kind.Size()
	}
	if align == 0 {
		align = kind.Alignment()
	}
	return &ScalarType{kind: kind, size: size, align: align}
}

func (t *ScalarType) DataType() DataType           { return t.kind }
func (t *ScalarType) Size() uint64                 { return t.size }
func (t *ScalarType) Alignment() uint64            { return t.align }
func (t *ScalarType) layout() (size, align uint64) { return t.size, t.align }

// PointerType describes a pointer argument: a buffer binding, or a buffer
// address stored inside an argument buffer.
type PointerType struct {
	element   TypeDescriptor
	access    ArgumentAccess
	alignment uint64
	dataSize  uint64
	argBuffer bool
}

// NewPointerType returns a pointer to element. alignment and dataSize
// describe the pointee; zero values are taken from element. argBuffer marks
// the pointee as an argument buffer.
func NewPointerType(element TypeDescriptor, access ArgumentAccess, alignment, dataSize uint64, argBuffer bool) *PointerType {
	if element != nil {
		size, align := element.layout()
		if alignment == 0 {
			alignment = align
		}
		if dataSize == 0 {
			dataSize = size
		}
	}
	return &PointerType{
		element:   element,
		access:    access,
		alignment: alignment,
		dataSize:  dataSize,
		argBuffer: argBuffer,
	}
}

func (*PointerType) DataType() DataType { return DataTypePointer }

func (*PointerType) layout() (size, align uint64) {
	return DataTypePointer.Size(), DataTypePointer.Alignment()
}

// ElementType returns the data type of the pointee.
func (t *PointerType) ElementType() DataType {
	if t.element == nil {
		return DataTypeNone
	}
	return t.element.DataType()
}

// Access returns how the shader accesses the pointee.
func (t *PointerType) Access() ArgumentAccess { return t.access }

// Alignment returns the alignment of the pointee in bytes.
func (t *PointerType) Alignment() uint64 { return t.alignment }

// DataSize returns the size of the pointee in bytes. For runtime-sized
// arrays this is the size of one element.
func (t *PointerType) DataSize() uint64 { return t.dataSize }

// ElementIsArgumentBuffer reports whether the pointee is an argument buffer.
func (t *PointerType) ElementIsArgumentBuffer() bool { return t.argBuffer }

// ElementStructType returns the pointee layout when it is a struct, or nil.
func (t *PointerType) ElementStructType() *StructType {
	st, _ := t.element.(*StructType)
	return st
}

// ElementArrayType returns the pointee layout when it is an array, or nil.
func (t *PointerType) ElementArrayType() *ArrayType {
	at, _ := t.element.(*ArrayType)
	return at
}

// Element returns the pointee descriptor, which may be nil for opaque
// pointers.
func (t *PointerType) Element() TypeDescriptor { return t.element }

// StructMember is one member of a StructType.
type StructMember struct {
	// Name of the member as declared in the shader. Members synthesized
	// from argument descriptors have an empty name.
	Name string

	// Offset in bytes from the start of the struct.
	Offset uint64

	// ArgumentIndex is the argument-buffer index of the member; it equals the
	// member's position for shader-declared structs.
	ArgumentIndex uint32

	// Type describes the member.
	Type TypeDescriptor
}

// DataType returns the tag of the member's type.
func (m StructMember) DataType() DataType {
	if m.Type == nil {
		return DataTypeNone
	}
	return m.Type.DataType()
}

// StructType describes a struct layout.
type StructType struct {
	members []StructMember
	size    uint64
	align   uint64
}

// NewStructType returns a struct descriptor. A zero size or alignment is
// computed from the members.
func NewStructType(members []StructMember, size, align uint64) *StructType {
	if align == 0 {
		align = 1
		for _, m := range members {
			if _, a := LayoutOf(m.Type); a > align {
				align = a
			}
		}
	}
	if size == 0 {
		for _, m := range members {
			sz, _ := LayoutOf(m.Type)
			if end := m.Offset + sz; end > size {
				size = end
			}
		}
		size = AlignUp(size, align)
	}
	ms := make([]StructMember, len(members))
	copy(ms, members)
	return &StructType{members: ms, size: size, align: align}
}

func (*StructType) DataType() DataType             { return DataTypeStruct }
func (t *StructType) Size() uint64                 { return t.size }
func (t *StructType) Alignment() uint64            { return t.align }
func (t *StructType) layout() (size, align uint64) { return t.size, t.align }

// Members returns the struct members in declaration order.
func (t *StructType) Members() []StructMember {
	out := make([]StructMember, len(t.members))
	copy(out, t.members)
	return out
}

// NumMembers returns the number of members.
func (t *StructType) NumMembers() int { return len(t.members) }

// Member returns the i-th member.
func (t *StructType) Member(i int) StructMember { return t.members[i] }

// MemberByName returns the member called name.
func (t *StructType) MemberByName(name string) (StructMember, bool) {
	for _, m := range t.members {
		if m.Name == name {
			return m, true
		}
	}
	return StructMember{}, false
}

// MemberByIndex returns the member with the given argument index.
func (t *StructType) MemberByIndex(index uint32) (StructMember, bool) {
	for _, m := range t.members {
		if m.ArgumentIndex == index {
			return m, true
		}
	}
	return StructMember{}, false
}

// ArrayType describes a fixed or runtime-sized array.
type ArrayType struct {
	element TypeDescriptor
	length  uint64
	stride  uint64
}

// NewArrayType returns an array of length elements. A length of 0 denotes a
// runtime-sized array. A zero stride is the element size rounded up to the
// element alignment.
func NewArrayType(element TypeDescriptor, length, stride uint64) *ArrayType {
	if stride == 0 && element != nil {
		size, align := element.layout()
		stride = AlignUp(size, align)
	}
	return &ArrayType{element: element, length: length, stride: stride}
}

func (*ArrayType) DataType() DataType { return DataTypeArray }

// Size returns length*stride, or the stride of one element for a
// runtime-sized array.
func (t *ArrayType) Size() uint64 {
	if t.length == 0 {
		return t.stride
	}
	return t.length * t.stride
}

func (t *ArrayType) Alignment() uint64 {
	_, align := LayoutOf(t.element)
	return align
}

func (t *ArrayType) layout() (size, align uint64) { return t.Size(), t.Alignment() }

// ElementType returns the data type of the array element.
func (t *ArrayType) ElementType() DataType {
	if t.element == nil {
		return DataTypeNone
	}
	return t.element.DataType()
}

// ArrayLength returns the number of elements, 0 for runtime-sized arrays.
func (t *ArrayType) ArrayLength() uint64 { return t.length }

// Stride returns the distance in bytes between consecutive elements.
func (t *ArrayType) Stride() uint64 { return t.stride }

// Element returns the element descriptor.
func (t *ArrayType) Element() TypeDescriptor { return t.element }

// ElementStructType returns the element layout when it is a struct, or nil.
func (t *ArrayType) ElementStructType() *StructType {
	st, _ := t.element.(*StructType)
	return st
}

// ElementArrayType returns the element layout when it is an array, or nil.
func (t *ArrayType) ElementArrayType() *ArrayType {
	at, _ := t.element.(*ArrayType)
	return at
}

// ArgumentKind is the class of a kernel argument.
type ArgumentKind uint8

const (
	// ArgumentBuffer is a device or constant buffer.
	ArgumentBuffer ArgumentKind = iota

	// ArgumentThreadgroupMemory is threadgroup-local memory.
	ArgumentThreadgroupMemory
)

// Argument describes one argument of a kernel function.
type Argument struct {
	// Name as declared in the shader.
	Name string

	// Index is the buffer binding index.
	Index uint32

	// Group is the bind group. Only group 0 is addressed by encoders.
	Group uint32

	// Kind of the argument.
	Kind ArgumentKind

	// Access declared by the shader.
	Access ArgumentAccess

	// Constant marks the constant address space: a WGSL uniform or an MSL
	// constant reference.
	Constant bool

	// Type is a *PointerType for buffer arguments.
	Type TypeDescriptor

	// Active reports whether the function body uses the argument.
	Active bool
}

// Pointer returns the argument type as a PointerType, or nil.
func (a Argument) Pointer() *PointerType {
	pt, _ := a.Type.(*PointerType)
	return pt
}
