// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package wgsl

import (
	"fmt"
	"strings"

	"github.com/gogpu/cmt/gpucore"
)

// layouter resolves type expressions to descriptors using the WGSL
// host-shareable layout rules. Struct layouts are memoised by name.
type layouter struct {
	p       *parser
	structs map[string]*gpucore.StructType
	busy    map[string]bool
}

func (l *layouter) errorf(te typeExpr, format string, args ...any) error {
	return &ParseError{Line: te.line, Msg: fmt.Sprintf(format, args...)}
}

func (l *layouter) argument(g *globalDecl) (gpucore.Argument, error) {
	desc, err := l.resolve(g.typ)
	if err != nil {
		return gpucore.Argument{}, err
	}
	access := gpucore.ArgumentAccessReadOnly
	switch g.access {
	case "read_write":
		access = gpucore.ArgumentAccessReadWrite
	case "write":
		access = gpucore.ArgumentAccessWriteOnly
	}
	return gpucore.Argument{
		Name:     g.name,
		Index:    g.binding,
		Group:    g.group,
		Kind:     gpucore.ArgumentBuffer,
		Access:   access,
		Constant: g.space == "uniform",
		Type:     gpucore.NewPointerType(desc, access, 0, 0, isArgumentBuffer(desc)),
		Active:   true,
	}, nil
}

func isArgumentBuffer(desc gpucore.TypeDescriptor) bool {
	st, ok := desc.(*gpucore.StructType)
	if !ok {
		return false
	}
	for i := range st.NumMembers() {
		if st.Member(i).DataType() == gpucore.DataTypePointer {
			return true
		}
	}
	return false
}

type scalarInfo struct {
	size   uint64
	vector gpucore.DataType // DataType of the one-component form
	matrix gpucore.DataType // DataType of the 2x2 matrix form, or None
}

var scalars = map[string]scalarInfo{
	"f32":  {4, gpucore.DataTypeFloat, gpucore.DataTypeFloat2x2},
	"f16":  {2, gpucore.DataTypeHalf, gpucore.DataTypeHalf2x2},
	"i32":  {4, gpucore.DataTypeInt, gpucore.DataTypeNone},
	"u32":  {4, gpucore.DataTypeUInt, gpucore.DataTypeNone},
	"bool": {4, gpucore.DataTypeBool, gpucore.DataTypeNone},
}

var shorthandSuffix = map[byte]string{'f': "f32", 'h': "f16", 'i': "i32", 'u': "u32"}

func (l *layouter) resolve(te typeExpr) (gpucore.TypeDescriptor, error) {
	if te.name == AddressAlias {
		return gpucore.NewPointerType(nil, gpucore.ArgumentAccessReadWrite, 0, 0, false), nil
	}
	if target, ok := l.p.aliases[te.name]; ok {
		if l.busy["alias "+te.name] {
			return nil, l.errorf(te, "alias %s refers to itself", te.name)
		}
		l.busy["alias "+te.name] = true
		defer delete(l.busy, "alias "+te.name)
		return l.resolve(target)
	}

	if s, ok := scalars[te.name]; ok {
		return gpucore.NewScalarType(s.vector, s.size, s.size), nil
	}

	switch {
	case te.name == "atomic":
		if len(te.params) != 1 {
			return nil, l.errorf(te, "atomic expects one type parameter")
		}
		return l.resolve(te.params[0])

	case te.name == "array":
		return l.array(te)

	case len(te.name) >= 4 && strings.HasPrefix(te.name, "vec"):
		n := te.name[3] - '0'
		if n < 2 || n > 4 {
			break
		}
		elem, err := l.component(te, te.name[4:])
		if err != nil {
			return nil, err
		}
		return vector(elem, uint64(n)), nil

	case len(te.name) >= 6 && strings.HasPrefix(te.name, "mat") && te.name[4] == 'x':
		cols, rows := uint64(te.name[3]-'0'), uint64(te.name[5]-'0')
		if cols < 2 || cols > 4 || rows < 2 || rows > 4 {
			break
		}
		elem, err := l.component(te, te.name[6:])
		if err != nil {
			return nil, err
		}
		if elem.matrix == gpucore.DataTypeNone {
			return nil, l.errorf(te, "matrix of %v is not allowed", elem.vector)
		}
		col := vector(elem, rows)
		stride := gpucore.AlignUp(col.Size(), col.Alignment())
		dt := elem.matrix + gpucore.DataType((cols-2)*3+(rows-2))
		return gpucore.NewScalarType(dt, cols*stride, col.Alignment()), nil
	}

	if _, ok := l.p.structs[te.name]; ok {
		return l.structType(te)
	}
	return nil, l.errorf(te, "unknown type %s", te)
}

// component returns the element type of a vector or matrix, given either a
// type parameter or a shorthand suffix such as the f in vec4f.
func (l *layouter) component(te typeExpr, suffix string) (scalarInfo, error) {
	var name string
	switch {
	case suffix == "" && len(te.params) == 1:
		name = te.params[0].name
	case len(suffix) == 1 && len(te.params) == 0:
		name = shorthandSuffix[suffix[0]]
	}
	s, ok := scalars[name]
	if !ok {
		return scalarInfo{}, l.errorf(te, "invalid component type in %s", te)
	}
	return s, nil
}

func vector(s scalarInfo, n uint64) *gpucore.ScalarType {
	align := s.size * n
	if n == 3 {
		align = s.size * 4
	}
	return gpucore.NewScalarType(s.vector+gpucore.DataType(n-1), s.size*n, align)
}

func (l *layouter) array(te typeExpr) (gpucore.TypeDescriptor, error) {
	if len(te.params) < 1 || len(te.params) > 2 {
		return nil, l.errorf(te, "array expects an element type and optional count")
	}
	elem, err := l.resolve(te.params[0])
	if err != nil {
		return nil, err
	}
	var n uint64
	if len(te.params) == 2 {
		v, ok := l.p.evalUint(te.params[1].name)
		if !ok || v == 0 {
			return nil, l.errorf(te, "array count %s is not a positive constant", te.params[1].name)
		}
		n = v
	}
	return gpucore.NewArrayType(elem, n, 0), nil
}

func (l *layouter) structType(te typeExpr) (*gpucore.StructType, error) {
	if st, ok := l.structs[te.name]; ok {
		return st, nil
	}
	if l.busy[te.name] {
		return nil, l.errorf(te, "struct %s contains itself", te.name)
	}
	l.busy[te.name] = true
	defer delete(l.busy, te.name)

	sd := l.p.structs[te.name]
	members := make([]gpucore.StructMember, 0, len(sd.members))
	var offset, maxAlign uint64 = 0, 1
	for i, md := range sd.members {
		desc, err := l.resolve(md.typ)
		if err != nil {
			return nil, err
		}
		size, align := gpucore.LayoutOf(desc)
		if md.align != 0 {
			align = md.align
		}
		if md.size != 0 {
			size = md.size
		}
		offset = gpucore.AlignUp(offset, align)
		members = append(members, gpucore.StructMember{
			Name:          md.name,
			Offset:        offset,
			ArgumentIndex: uint32(i), //nolint:gosec // G115: member count is small
			Type:          desc,
		})
		offset += size
		if align > maxAlign {
			maxAlign = align
		}
	}
	st := gpucore.NewStructType(members, gpucore.AlignUp(offset, maxAlign), maxAlign)
	l.structs[te.name] = st
	return st, nil
}
