//go:build !nogpu

package wgpu

import (
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/cmt/gpucore"
	"github.com/gogpu/cmt/internal/wgsl"
)

// Compile error codes reported in gpucore.CompileError.Code.
const (
	codeInvalidSource = wgsl.CodeInvalidSource
	codeReflection    = wgsl.CodeReflection
	codeShaderModule  = 3
	codeUnsupported   = 4
	codeLink          = 5
)

type library struct {
	dev       *device
	module    hal.ShaderModule
	functions []*function
}

// NewLibrary validates source and translates it to SPIR-V with naga, then
// reflects its entry points. Compiled modules are shared through the wgsl
// module cache; each library still owns its HAL shader module.
func (d *device) NewLibrary(source string, opts *gpucore.CompileOptions) (gpucore.Library, error) {
	if opts != nil {
		source = wgsl.Preprocess(source, opts.PreprocessorMacros)
	}
	c, err := wgsl.Compile(source)
	if err != nil {
		return nil, err
	}

	module, err := d.gpu.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "cmt_library",
		Source: hal.ShaderSource{SPIRV: spirvWords(c.SPIRV)},
	})
	if err != nil {
		return nil, &gpucore.CompileError{Domain: "wgpu", Code: codeShaderModule, Description: err.Error()}
	}

	lib := &library{dev: d, module: module}
	for _, ep := range c.Module.EntryPoints() {
		lib.functions = append(lib.functions, &function{lib: lib, ep: ep})
	}
	return lib, nil
}

// spirvWords converts naga's little-endian byte output to SPIR-V words.
func spirvWords(b []byte) []uint32 {
	words := make([]uint32, len(b)/4)
	for i := range words {
		words[i] = uint32(b[i*4]) |
			uint32(b[i*4+1])<<8 |
			uint32(b[i*4+2])<<16 |
			uint32(b[i*4+3])<<24
	}
	return words
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

func (l *library) Destroy() { l.dev.gpu.DestroyShaderModule(l.module) }

type function struct {
	lib *library
	ep  *wgsl.EntryPoint
}

func (f *function) Name() string                  { return f.ep.Name }
func (f *function) Arguments() []gpucore.Argument { return f.ep.Arguments }
func (f *function) ThreadgroupSize() gpucore.Size { return f.ep.WorkgroupSize }
