package capi

import "github.com/gogpu/cmt"

// NewArgumentDescriptor returns a handle to a blank argument descriptor.
func NewArgumentDescriptor() Handle {
	return cmt.NewHandle(cmt.NewArgumentDescriptor())
}

// ArgumentDescriptor is the C view of a descriptor's scalar fields.
type ArgumentDescriptor struct {
	DataType               uint32
	Index                  uint32
	Access                 uint32
	ArrayLength            uint64
	ConstantBlockAlignment uint64
}

// ArgumentDescriptorSet overwrites the scalar fields of desc.
func ArgumentDescriptorSet(desc Handle, v ArgumentDescriptor) Status {
	d, st := lookup[*cmt.ArgumentDescriptor](desc)
	if st != StatusOK {
		return st
	}
	d.DataType = cmt.DataType(v.DataType)
	d.Index = v.Index
	d.Access = cmt.ArgumentAccess(min(v.Access, 0xff))
	d.ArrayLength = v.ArrayLength
	d.ConstantBlockAlignment = v.ConstantBlockAlignment
	return StatusOK
}

// ArgumentDescriptorGet reads the scalar fields of desc.
func ArgumentDescriptorGet(desc Handle) (ArgumentDescriptor, Status) {
	d, st := lookup[*cmt.ArgumentDescriptor](desc)
	if st != StatusOK {
		return ArgumentDescriptor{}, st
	}
	return ArgumentDescriptor{
		DataType:               uint32(d.DataType),
		Index:                  d.Index,
		Access:                 uint32(d.Access),
		ArrayLength:            d.ArrayLength,
		ConstantBlockAlignment: d.ConstantBlockAlignment,
	}, StatusOK
}

// ArgumentDescriptorSetElements describes the nested argument buffer a
// pointer entry points to. desc shares the element descriptors, so later
// edits to them are seen through desc.
func ArgumentDescriptorSetElements(desc Handle, elems []Handle) Status {
	d, st := lookup[*cmt.ArgumentDescriptor](desc)
	if st != StatusOK {
		return st
	}
	descs, st := descriptors(elems)
	if st != StatusOK {
		return st
	}
	d.Elements = descs
	return StatusOK
}

func descriptors(hs []Handle) ([]*cmt.ArgumentDescriptor, Status) {
	descs := make([]*cmt.ArgumentDescriptor, len(hs))
	for i, h := range hs {
		d, st := lookup[*cmt.ArgumentDescriptor](h)
		if st != StatusOK {
			return nil, st
		}
		descs[i] = d
	}
	return descs, StatusOK
}

// DeviceNewArgumentEncoder creates an argument encoder for the layout the
// descriptors describe.
func DeviceNewArgumentEncoder(dev Handle, descs []Handle) (Handle, Status) {
	d, st := lookup[*cmt.Device](dev)
	if st != StatusOK {
		return 0, st
	}
	ds, st := descriptors(descs)
	if st != StatusOK {
		return 0, st
	}
	e, err := d.NewArgumentEncoder(ds)
	if err != nil {
		return 0, fail(err)
	}
	return e.Handle(), StatusOK
}

// FunctionNewArgumentEncoder creates an encoder for the argument buffer fn
// declares at buffer index.
func FunctionNewArgumentEncoder(fn Handle, index uint32) (Handle, Status) {
	f, st := lookup[*cmt.Function](fn)
	if st != StatusOK {
		return 0, st
	}
	e, err := f.Library().Device().NewArgumentEncoderFromFunction(f, index)
	if err != nil {
		return 0, fail(err)
	}
	return e.Handle(), StatusOK
}

// ArgumentEncoderEncodedLength returns the argument buffer size in bytes.
func ArgumentEncoderEncodedLength(enc Handle) (uint64, Status) {
	e, st := lookup[*cmt.ArgumentEncoder](enc)
	if st != StatusOK {
		return 0, st
	}
	return e.EncodedLength(), StatusOK
}

// ArgumentEncoderAlignment returns the argument buffer alignment in bytes.
func ArgumentEncoderAlignment(enc Handle) (uint64, Status) {
	e, st := lookup[*cmt.ArgumentEncoder](enc)
	if st != StatusOK {
		return 0, st
	}
	return e.Alignment(), StatusOK
}

// ArgumentEncoderPointerType returns the pointer type a kernel sees for the
// encoded buffer.
func ArgumentEncoderPointerType(enc Handle) (Handle, Status) {
	e, st := lookup[*cmt.ArgumentEncoder](enc)
	if st != StatusOK {
		return 0, st
	}
	return optional(e.PointerType()), StatusOK
}

// ArgumentEncoderSetArgumentBuffer selects the buffer region to encode into.
func ArgumentEncoderSetArgumentBuffer(enc, buf Handle, offset uint64) Status {
	e, st := lookup[*cmt.ArgumentEncoder](enc)
	if st != StatusOK {
		return st
	}
	b, st := lookup[*cmt.Buffer](buf)
	if st != StatusOK {
		return st
	}
	return fail(e.SetArgumentBuffer(b, offset))
}

// ArgumentEncoderSetBuffer writes the address of buf plus offset into the
// pointer entry at index.
func ArgumentEncoderSetBuffer(enc, buf Handle, offset uint64, index uint32) Status {
	e, st := lookup[*cmt.ArgumentEncoder](enc)
	if st != StatusOK {
		return st
	}
	b, st := lookup[*cmt.Buffer](buf)
	if st != StatusOK {
		return st
	}
	return fail(e.SetBuffer(b, offset, index))
}

// ArgumentEncoderConstantData returns the bytes of the entry at index.
func ArgumentEncoderConstantData(enc Handle, index uint32) ([]byte, Status) {
	e, st := lookup[*cmt.ArgumentEncoder](enc)
	if st != StatusOK {
		return nil, st
	}
	data, err := e.ConstantData(index)
	return data, fail(err)
}

// ArgumentEncoderNewArgumentEncoderForBuffer returns an encoder for the
// nested argument buffer referenced at index.
func ArgumentEncoderNewArgumentEncoderForBuffer(enc Handle, index uint32) (Handle, Status) {
	e, st := lookup[*cmt.ArgumentEncoder](enc)
	if st != StatusOK {
		return 0, st
	}
	n, err := e.NewArgumentEncoderForBuffer(index)
	if err != nil {
		return 0, fail(err)
	}
	return n.Handle(), StatusOK
}
