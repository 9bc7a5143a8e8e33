package cmt

import (
	"errors"
	"slices"
	"time"

	"github.com/gogpu/cmt/gpucore"
)

// ComputePipelineState is a linked kernel. It is immutable and may be used
// by any number of encoders concurrently.
type ComputePipelineState struct {
	object

	device   *Device
	pipeline gpucore.ComputePipeline
	name     string
	args     []Argument
}

// NewComputePipelineState links fn. This is the slow path of the API:
// drivers may compile to machine code here. Link failures return an *Error
// of KindCompilation wrapping a *CompileError.
func (d *Device) NewComputePipelineState(fn *Function) (*ComputePipelineState, error) {
	const op = "Device.NewComputePipelineState"

	if err := d.alive(op); err != nil {
		return nil, err
	}
	if err := fn.alive(op); err != nil {
		return nil, err
	}
	if err := d.owns(op, fn.library.device); err != nil {
		return nil, err
	}

	start := time.Now()
	p, err := d.dev.NewComputePipeline(fn.fn)
	if err != nil {
		var ce *CompileError
		if !errors.As(err, &ce) {
			ce = &CompileError{Domain: d.info.Driver, Description: err.Error()}
		}
		return nil, &Error{Kind: KindCompilation, Op: op, Detail: fn.Name(), Err: ce}
	}
	Logger().Debug("cmt: compute pipeline created",
		"function", fn.Name(), "elapsed", time.Since(start),
		"max_threads", p.MaxTotalThreadsPerThreadgroup())

	if err := d.adopt(op); err != nil {
		p.Destroy()
		return nil, err
	}
	ps := &ComputePipelineState{
		device:   d,
		pipeline: p,
		name:     fn.Name(),
		args:     slices.Clone(p.Arguments()),
	}
	ps.register(ps, ps.destroy)
	return ps, nil
}

func (p *ComputePipelineState) destroy() {
	p.pipeline.Destroy()
	p.device.releaseInternal()
}

// Device returns the device the pipeline was linked on.
func (p *ComputePipelineState) Device() *Device { return p.device }

// FunctionName returns the name of the linked entry point.
func (p *ComputePipelineState) FunctionName() string { return p.name }

// Arguments returns the reflected buffer arguments of the kernel.
func (p *ComputePipelineState) Arguments() []Argument { return slices.Clone(p.args) }

// MaxTotalThreadsPerThreadgroup bounds the thread count of a threadgroup.
func (p *ComputePipelineState) MaxTotalThreadsPerThreadgroup() uint64 {
	return p.pipeline.MaxTotalThreadsPerThreadgroup()
}

// ThreadExecutionWidth returns the SIMD width of the device.
func (p *ComputePipelineState) ThreadExecutionWidth() uint64 {
	return p.pipeline.ThreadExecutionWidth()
}

// argument returns the buffer argument declared at index.
func (p *ComputePipelineState) argument(index uint32) (Argument, bool) {
	for _, a := range p.args {
		if a.Kind == gpucore.ArgumentBuffer && a.Group == 0 && a.Index == index {
			return a, true
		}
	}
	return Argument{}, false
}
