//go:build !nogpu

package wgpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/cmt/gpucore"
)

// threadExecutionWidth is the subgroup size reported to callers. WebGPU
// does not expose it without the subgroups feature.
const threadExecutionWidth = 32

type pipeline struct {
	dev      *device
	fn       *function
	bgLayout hal.BindGroupLayout
	layout   hal.PipelineLayout
	pipeline hal.ComputePipeline
	args     map[uint32]gpucore.Argument
}

func (d *device) NewComputePipeline(fn gpucore.Function) (gpucore.ComputePipeline, error) {
	f, ok := fn.(*function)
	if !ok || f.lib.dev != d {
		return nil, &gpucore.CompileError{Domain: "wgpu", Code: codeLink, Description: "function was not compiled by this device"}
	}

	entries, err := layoutEntries(f)
	if err != nil {
		return nil, err
	}

	p := &pipeline{dev: d, fn: f, args: make(map[uint32]gpucore.Argument, len(entries))}
	for _, a := range f.ep.Arguments {
		p.args[a.Index] = a
	}
	if err := p.create(entries); err != nil {
		p.Destroy()
		return nil, &gpucore.CompileError{Domain: "wgpu", Code: codeLink, Description: err.Error()}
	}
	return p, nil
}

// layoutEntries derives the group 0 bind group layout from reflection.
func layoutEntries(f *function) ([]gputypes.BindGroupLayoutEntry, error) {
	entries := make([]gputypes.BindGroupLayoutEntry, 0, len(f.ep.Arguments))
	for _, a := range f.ep.Arguments {
		if a.Group != 0 {
			return nil, &gpucore.CompileError{Domain: "wgpu", Code: codeUnsupported,
				Description: fmt.Sprintf("%s: argument %q is in bind group %d; only group 0 is addressable", f.ep.Name, a.Name, a.Group)}
		}
		if pt := a.Pointer(); pt != nil && pt.ElementIsArgumentBuffer() {
			return nil, &gpucore.CompileError{Domain: "wgpu", Code: codeUnsupported,
				Description: fmt.Sprintf("%s: argument %q is an argument buffer; WebGPU cannot dereference buffer addresses", f.ep.Name, a.Name)}
		}

		typ := gputypes.BufferBindingTypeStorage
		switch {
		case a.Constant:
			typ = gputypes.BufferBindingTypeUniform
		case a.Access == gpucore.ArgumentAccessReadOnly:
			typ = gputypes.BufferBindingTypeReadOnlyStorage
		}
		entries = append(entries, gputypes.BindGroupLayoutEntry{
			Binding:    a.Index,
			Visibility: gputypes.ShaderStageCompute,
			Buffer:     &gputypes.BufferBindingLayout{Type: typ},
		})
	}
	return entries, nil
}

func (p *pipeline) create(entries []gputypes.BindGroupLayoutEntry) error {
	name := p.fn.ep.Name
	var err error
	p.bgLayout, err = p.dev.gpu.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   name + "_layout",
		Entries: entries,
	})
	if err != nil {
		return fmt.Errorf("create bind group layout: %w", err)
	}
	p.layout, err = p.dev.gpu.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            name + "_pipeline_layout",
		BindGroupLayouts: []hal.BindGroupLayout{p.bgLayout},
	})
	if err != nil {
		return fmt.Errorf("create pipeline layout: %w", err)
	}
	p.pipeline, err = p.dev.gpu.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label:  name,
		Layout: p.layout,
		Compute: hal.ComputeState{
			Module:     p.fn.lib.module,
			EntryPoint: name,
		},
	})
	if err != nil {
		return fmt.Errorf("create compute pipeline: %w", err)
	}
	return nil
}

func (p *pipeline) Function() gpucore.Function    { return p.fn }
func (p *pipeline) Arguments() []gpucore.Argument { return p.fn.ep.Arguments }
func (p *pipeline) MaxTotalThreadsPerThreadgroup() uint64 {
	return p.dev.limits.MaxThreadsPerThreadgroup
}
func (p *pipeline) ThreadExecutionWidth() uint64 { return threadExecutionWidth }

// writable reports whether the kernel may write the binding at index.
func (p *pipeline) writable(index uint32) bool {
	a, ok := p.args[index]
	if !ok {
		return false
	}
	return !a.Constant && a.Access != gpucore.ArgumentAccessReadOnly
}

func (p *pipeline) Destroy() {
	if p.pipeline != nil {
		p.dev.gpu.DestroyComputePipeline(p.pipeline)
	}
	if p.layout != nil {
		p.dev.gpu.DestroyPipelineLayout(p.layout)
	}
	if p.bgLayout != nil {
		p.dev.gpu.DestroyBindGroupLayout(p.bgLayout)
	}
}
