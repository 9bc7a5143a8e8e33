package capi

import (
	"errors"

	"github.com/gogpu/cmt"
	"github.com/gogpu/cmt/gpucore"
)

// argument is the handle value of a reflected kernel argument.
type argument struct {
	cmt.Argument
}

func argumentAt(args []cmt.Argument, i int) (Handle, Status) {
	if i < 0 || i >= len(args) {
		return 0, fail(&cmt.Error{Kind: cmt.KindPrecondition, Op: "Argument", Err: cmt.ErrBindingIndex})
	}
	return cmt.NewHandle(&argument{args[i]}), StatusOK
}

// optional registers t when it is non-nil and returns 0 otherwise.
func optional[T comparable](t T) Handle {
	var zero T
	if t == zero {
		return 0
	}
	return cmt.NewHandle(t)
}

// ArgumentName returns the argument name.
func ArgumentName(arg Handle) (string, Status) {
	a, st := lookup[*argument](arg)
	if st != StatusOK {
		return "", st
	}
	return a.Name, StatusOK
}

// ArgumentIndex returns the buffer binding index.
func ArgumentIndex(arg Handle) (uint32, Status) {
	a, st := lookup[*argument](arg)
	if st != StatusOK {
		return 0, st
	}
	return a.Index, StatusOK
}

// ArgumentAccess returns the shader's access to the argument.
func ArgumentAccess(arg Handle) (uint32, Status) {
	a, st := lookup[*argument](arg)
	if st != StatusOK {
		return 0, st
	}
	return uint32(a.Access), StatusOK
}

// ArgumentIsActive reports whether the function body uses the argument.
func ArgumentIsActive(arg Handle) (bool, Status) {
	a, st := lookup[*argument](arg)
	if st != StatusOK {
		return false, st
	}
	return a.Active, StatusOK
}

// ArgumentPointerType returns the pointer type of a buffer argument, or 0.
func ArgumentPointerType(arg Handle) (Handle, Status) {
	a, st := lookup[*argument](arg)
	if st != StatusOK {
		return 0, st
	}
	return optional(a.Pointer()), StatusOK
}

// PointerTypeElementType returns the pointee's data type.
func PointerTypeElementType(ptr Handle) (uint32, Status) {
	p, st := lookup[*gpucore.PointerType](ptr)
	if st != StatusOK {
		return 0, st
	}
	return uint32(p.ElementType()), StatusOK
}

// PointerTypeAccess returns the access qualifier of the pointer.
func PointerTypeAccess(ptr Handle) (uint32, Status) {
	p, st := lookup[*gpucore.PointerType](ptr)
	if st != StatusOK {
		return 0, st
	}
	return uint32(p.Access()), StatusOK
}

// PointerTypeAlignment returns the pointee's alignment in bytes.
func PointerTypeAlignment(ptr Handle) (uint64, Status) {
	p, st := lookup[*gpucore.PointerType](ptr)
	if st != StatusOK {
		return 0, st
	}
	return p.Alignment(), StatusOK
}

// PointerTypeDataSize returns the pointee's size in bytes.
func PointerTypeDataSize(ptr Handle) (uint64, Status) {
	p, st := lookup[*gpucore.PointerType](ptr)
	if st != StatusOK {
		return 0, st
	}
	return p.DataSize(), StatusOK
}

// PointerTypeElementIsArgumentBuffer reports whether the pointer refers to
// an argument buffer.
func PointerTypeElementIsArgumentBuffer(ptr Handle) (bool, Status) {
	p, st := lookup[*gpucore.PointerType](ptr)
	if st != StatusOK {
		return false, st
	}
	return p.ElementIsArgumentBuffer(), StatusOK
}

// PointerTypeElementStructType returns the pointee struct type, or 0.
func PointerTypeElementStructType(ptr Handle) (Handle, Status) {
	p, st := lookup[*gpucore.PointerType](ptr)
	if st != StatusOK {
		return 0, st
	}
	return optional(p.ElementStructType()), StatusOK
}

// PointerTypeElementArrayType returns the pointee array type, or 0.
func PointerTypeElementArrayType(ptr Handle) (Handle, Status) {
	p, st := lookup[*gpucore.PointerType](ptr)
	if st != StatusOK {
		return 0, st
	}
	return optional(p.ElementArrayType()), StatusOK
}

// StructTypeDataSize returns the struct size in bytes.
func StructTypeDataSize(s Handle) (uint64, Status) {
	t, st := lookup[*gpucore.StructType](s)
	if st != StatusOK {
		return 0, st
	}
	return t.Size(), StatusOK
}

// StructTypeAlignment returns the struct alignment in bytes.
func StructTypeAlignment(s Handle) (uint64, Status) {
	t, st := lookup[*gpucore.StructType](s)
	if st != StatusOK {
		return 0, st
	}
	return t.Alignment(), StatusOK
}

// StructTypeMemberCount returns the number of members.
func StructTypeMemberCount(s Handle) (int, Status) {
	t, st := lookup[*gpucore.StructType](s)
	if st != StatusOK {
		return 0, st
	}
	return t.NumMembers(), StatusOK
}

// StructMember is the C view of one struct member.
type StructMember struct {
	Name          string
	Offset        uint64
	ArgumentIndex uint32
	DataType      uint32
}

// StructTypeMember returns member i.
func StructTypeMember(s Handle, i int) (StructMember, Status) {
	m, st := member(s, i)
	if st != StatusOK {
		return StructMember{}, st
	}
	return StructMember{
		Name:          m.Name,
		Offset:        m.Offset,
		ArgumentIndex: m.ArgumentIndex,
		DataType:      uint32(m.DataType()),
	}, StatusOK
}

// StructTypeMemberPointerType returns the pointer type of member i, or 0.
func StructTypeMemberPointerType(s Handle, i int) (Handle, Status) {
	m, st := member(s, i)
	if st != StatusOK {
		return 0, st
	}
	pt, _ := m.Type.(*gpucore.PointerType)
	return optional(pt), StatusOK
}

// StructTypeMemberStructType returns the struct type of member i, or 0.
func StructTypeMemberStructType(s Handle, i int) (Handle, Status) {
	m, st := member(s, i)
	if st != StatusOK {
		return 0, st
	}
	t, _ := m.Type.(*gpucore.StructType)
	return optional(t), StatusOK
}

// StructTypeMemberArrayType returns the array type of member i, or 0.
func StructTypeMemberArrayType(s Handle, i int) (Handle, Status) {
	m, st := member(s, i)
	if st != StatusOK {
		return 0, st
	}
	t, _ := m.Type.(*gpucore.ArrayType)
	return optional(t), StatusOK
}

func member(s Handle, i int) (gpucore.StructMember, Status) {
	t, st := lookup[*gpucore.StructType](s)
	if st != StatusOK {
		return gpucore.StructMember{}, st
	}
	if i < 0 || i >= t.NumMembers() {
		return gpucore.StructMember{}, fail(&cmt.Error{Kind: cmt.KindPrecondition, Op: "StructType.Member", Err: cmt.ErrBindingIndex})
	}
	return t.Member(i), StatusOK
}

// ArrayTypeArrayLength returns the number of elements.
func ArrayTypeArrayLength(a Handle) (uint64, Status) {
	t, st := lookup[*gpucore.ArrayType](a)
	if st != StatusOK {
		return 0, st
	}
	return t.ArrayLength(), StatusOK
}

// ArrayTypeStride returns the distance between elements in bytes.
func ArrayTypeStride(a Handle) (uint64, Status) {
	t, st := lookup[*gpucore.ArrayType](a)
	if st != StatusOK {
		return 0, st
	}
	return t.Stride(), StatusOK
}

// ArrayTypeElementType returns the element data type.
func ArrayTypeElementType(a Handle) (uint32, Status) {
	t, st := lookup[*gpucore.ArrayType](a)
	if st != StatusOK {
		return 0, st
	}
	return uint32(t.ElementType()), StatusOK
}

// ArrayTypeElementStructType returns the element struct type, or 0.
func ArrayTypeElementStructType(a Handle) (Handle, Status) {
	t, st := lookup[*gpucore.ArrayType](a)
	if st != StatusOK {
		return 0, st
	}
	return optional(t.ElementStructType()), StatusOK
}

// ArrayTypeElementArrayType returns the element array type, or 0.
func ArrayTypeElementArrayType(a Handle) (Handle, Status) {
	t, st := lookup[*gpucore.ArrayType](a)
	if st != StatusOK {
		return 0, st
	}
	return optional(t.ElementArrayType()), StatusOK
}

// errorHandle registers err as an Error handle. Errors without a compiler
// report are described under the "cmt" domain with their status as code.
func errorHandle(err error) Handle {
	var ce *cmt.CompileError
	if !errors.As(err, &ce) {
		ce = &cmt.CompileError{Domain: "cmt", Code: int(StatusOf(err)), Description: err.Error()}
	}
	return cmt.NewHandle(ce)
}

// ErrorDomain returns the subsystem that reported the error.
func ErrorDomain(e Handle) (string, Status) {
	ce, st := lookup[*cmt.CompileError](e)
	if st != StatusOK {
		return "", st
	}
	return ce.Domain, StatusOK
}

// ErrorCode returns the subsystem-specific error code.
func ErrorCode(e Handle) (int, Status) {
	ce, st := lookup[*cmt.CompileError](e)
	if st != StatusOK {
		return 0, st
	}
	return ce.Code, StatusOK
}

// ErrorDescription returns the human-readable error text.
func ErrorDescription(e Handle) (string, Status) {
	ce, st := lookup[*cmt.CompileError](e)
	if st != StatusOK {
		return "", st
	}
	return ce.Description, StatusOK
}
