package software

import (
	"fmt"

	"github.com/gogpu/cmt/gpucore"
)

// pipeline binds a reflected entry point to its Go kernel.
type pipeline struct {
	fn         *function
	kernel     Kernel
	maxThreads uint64
}

func (d *device) NewComputePipeline(fn gpucore.Function) (gpucore.ComputePipeline, error) {
	f, ok := fn.(*function)
	if !ok {
		return nil, fmt.Errorf("software: function %q was not created by this driver", fn.Name())
	}
	k, ok := lookupKernel(f.Name())
	if !ok {
		return nil, &gpucore.CompileError{
			Domain:      "software",
			Code:        codeNoKernel,
			Description: fmt.Sprintf("no kernel registered for entry point %q", f.Name()),
		}
	}
	return &pipeline{fn: f, kernel: k, maxThreads: d.limits.MaxThreadsPerThreadgroup}, nil
}

func (p *pipeline) Function() gpucore.Function            { return p.fn }
func (p *pipeline) Arguments() []gpucore.Argument         { return p.fn.Arguments() }
func (p *pipeline) MaxTotalThreadsPerThreadgroup() uint64 { return p.maxThreads }
func (p *pipeline) ThreadExecutionWidth() uint64          { return 1 }
func (p *pipeline) Destroy()                              {}
