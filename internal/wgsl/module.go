// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package wgsl extracts kernel reflection from WGSL source: entry points,
// their workgroup sizes, and the buffer bindings each one uses, with struct
// layouts computed under WGSL host-shareable layout rules.
//
// The scanner reads module-scope declarations only. It does not validate
// function bodies; callers compile the source with naga for that.
//
// A struct member declared with the [AddressAlias] type is a 64-bit buffer
// address. Structs holding such members are reported as argument buffers.
//
//	alias BufferAddress = vec2<u32>;
//
//	struct CopyArgs {
//	    src: BufferAddress,
//	    dst: BufferAddress,
//	    count: u32,
//	}
package wgsl

import (
	"fmt"
	"sort"

	"github.com/gogpu/cmt/gpucore"
)

// AddressAlias is the alias name marking a member as a buffer address.
const AddressAlias = "BufferAddress"

// EntryPoint is a compute entry point.
type EntryPoint struct {
	Name string

	// WorkgroupSize from @workgroup_size; missing dimensions are 1.
	WorkgroupSize gpucore.Size

	// Arguments are the storage and uniform bindings the entry point uses,
	// sorted by group then binding.
	Arguments []gpucore.Argument
}

// Module is the reflected content of a WGSL source.
type Module struct {
	entries []*EntryPoint
	structs map[string]*gpucore.StructType
}

// Parse scans src and reflects every compute entry point.
func Parse(src string) (*Module, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{
		toks:    toks,
		structs: make(map[string]*structDecl),
		aliases: make(map[string]typeExpr),
		consts:  make(map[string]string),
	}
	if err := p.parseModule(); err != nil {
		return nil, err
	}

	l := &layouter{p: p, structs: make(map[string]*gpucore.StructType), busy: make(map[string]bool)}
	m := &Module{structs: l.structs}

	bindings := make(map[string]gpucore.Argument)
	for _, g := range p.globals {
		if g.space != "storage" && g.space != "uniform" {
			continue
		}
		if !g.bound {
			return nil, &ParseError{Line: g.line, Msg: fmt.Sprintf("var %s in address space %s has no @binding", g.name, g.space)}
		}
		arg, err := l.argument(g)
		if err != nil {
			return nil, err
		}
		bindings[g.name] = arg
	}

	fns := make(map[string]*fnDecl, len(p.fns))
	for _, fn := range p.fns {
		fns[fn.name] = fn
	}
	for _, fn := range p.fns {
		if _, ok := fn.attr("compute"); !ok {
			continue
		}
		ep, err := entryPoint(p, fn, fns, bindings)
		if err != nil {
			return nil, err
		}
		m.entries = append(m.entries, ep)
	}
	return m, nil
}

func entryPoint(p *parser, fn *fnDecl, fns map[string]*fnDecl, bindings map[string]gpucore.Argument) (*EntryPoint, error) {
	ep := &EntryPoint{Name: fn.name, WorkgroupSize: gpucore.NewSize()}
	if a, ok := fn.attr("workgroup_size"); ok {
		if len(a.args) == 0 || len(a.args) > 3 {
			return nil, &ParseError{Line: fn.line, Msg: "@workgroup_size expects 1 to 3 arguments"}
		}
		dims := make([]uint64, len(a.args))
		for i, s := range a.args {
			v, ok := p.evalUint(s)
			if !ok || v == 0 {
				return nil, &ParseError{Line: fn.line, Msg: fmt.Sprintf("@workgroup_size argument %q is not a positive constant", s)}
			}
			dims[i] = v
		}
		ep.WorkgroupSize = gpucore.NewSize(dims...)
	}

	// Transitive closure over called helper functions.
	used := make(map[string]struct{})
	visited := map[string]bool{fn.name: true}
	stack := []*fnDecl{fn}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for id := range cur.idents {
			used[id] = struct{}{}
			if callee, ok := fns[id]; ok && !visited[id] {
				visited[id] = true
				stack = append(stack, callee)
			}
		}
	}

	for name, arg := range bindings {
		if _, ok := used[name]; ok {
			ep.Arguments = append(ep.Arguments, arg)
		}
	}
	sort.Slice(ep.Arguments, func(i, j int) bool {
		a, b := ep.Arguments[i], ep.Arguments[j]
		if a.Group != b.Group {
			return a.Group < b.Group
		}
		return a.Index < b.Index
	})
	return ep, nil
}

// EntryPoints returns the compute entry points in declaration order.
func (m *Module) EntryPoints() []*EntryPoint {
	out := make([]*EntryPoint, len(m.entries))
	copy(out, m.entries)
	return out
}

// EntryPoint returns the entry point called name.
func (m *Module) EntryPoint(name string) (*EntryPoint, bool) {
	for _, ep := range m.entries {
		if ep.Name == name {
			return ep, true
		}
	}
	return nil, false
}

// Struct returns the layout of a struct that is reachable from a binding.
func (m *Module) Struct(name string) (*gpucore.StructType, bool) {
	st, ok := m.structs[name]
	return st, ok
}
