package software

import (
	"github.com/gogpu/cmt/gpucore"
	"github.com/gogpu/cmt/internal/wgsl"
)

// codeNoKernel is reported when an entry point has no registered Go kernel.
// Source and reflection failures use the wgsl codes.
const codeNoKernel = wgsl.CodeReflection + 1

// library is a validated WGSL module and its reflected entry points.
type library struct {
	functions []*function
}

func (d *device) NewLibrary(source string, opts *gpucore.CompileOptions) (gpucore.Library, error) {
	if opts != nil {
		source = wgsl.Preprocess(source, opts.PreprocessorMacros)
	}
	c, err := wgsl.Compile(source)
	if err != nil {
		return nil, err
	}

	lib := &library{}
	for _, ep := range c.Module.EntryPoints() {
		lib.functions = append(lib.functions, &function{ep: ep})
	}
	return lib, nil
}

func (l *library) FunctionNames() []string {
	names := make([]string, len(l.functions))
	for i, fn := range l.functions {
		names[i] = fn.ep.Name
	}
	return names
}

func (l *library) Function(name string) (gpucore.Function, bool) {
	for _, fn := range l.functions {
		if fn.ep.Name == name {
			return fn, true
		}
	}
	return nil, false
}

func (l *library) Destroy() {}

// function is a reflected WGSL entry point.
type function struct {
	ep *wgsl.EntryPoint
}

func (f *function) Name() string                  { return f.ep.Name }
func (f *function) Arguments() []gpucore.Argument { return f.ep.Arguments }
func (f *function) ThreadgroupSize() gpucore.Size { return f.ep.WorkgroupSize }
