//go:build darwin && cgo

package metal

/*
#include <stdlib.h>
#include "bridge.h"
*/
import "C"

import (
	"runtime"
	"slices"
	"strings"
	"sync"
	"unsafe"

	"github.com/gogpu/cmt/gpucore"
)

type library struct {
	dev   *device
	ref   C.cmt_mtl_ref
	names []string
}

func (d *device) NewLibrary(source string, opts *gpucore.CompileOptions) (gpucore.Library, error) {
	if opts == nil {
		opts = &gpucore.CompileOptions{}
	}
	version, err := languageVersion(opts.LanguageVersion)
	if err != nil {
		return nil, &gpucore.CompileError{Domain: errorDomain, Code: codeOptions, Description: err.Error()}
	}

	csrc := C.CString(source)
	defer C.free(unsafe.Pointer(csrc))

	pairs := macroPairs(opts.PreprocessorMacros)
	var macros **C.char
	if len(pairs) > 0 {
		macros = (**C.char)(C.malloc(C.size_t(len(pairs)) * C.size_t(unsafe.Sizeof(uintptr(0)))))
		defer C.free(unsafe.Pointer(macros))
		strs := unsafe.Slice(macros, len(pairs))
		for i, s := range pairs {
			strs[i] = C.CString(s)
			defer C.free(unsafe.Pointer(strs[i]))
		}
	}

	var cerr C.cmt_mtl_error
	ref := C.cmt_mtl_library_new(d.ref, csrc, macros, C.size_t(len(pairs)/2),
		C.bool(opts.FastMathEnabled), C.uint32_t(version), &cerr)
	if ref == nil {
		return nil, compileError(&cerr)
	}

	names := C.cmt_mtl_library_function_names(ref)
	defer C.cmt_mtl_free(unsafe.Pointer(names))
	lib := &library{dev: d, ref: ref}
	if s := C.GoString(names); s != "" {
		lib.names = strings.Split(s, "\n")
	}
	// Metal does not report declaration order.
	slices.Sort(lib.names)
	return lib, nil
}

func (l *library) FunctionNames() []string { return slices.Clone(l.names) }

func (l *library) Function(name string) (gpucore.Function, bool) {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))
	ref := C.cmt_mtl_function_new(l.ref, cname)
	if ref == nil {
		return nil, false
	}
	fn := &function{lib: l, ref: ref, name: name}
	runtime.AddCleanup(fn, func(ref C.cmt_mtl_ref) { C.cmt_mtl_release(ref) }, ref)
	return fn, true
}

func (l *library) Destroy() { C.cmt_mtl_release(l.ref) }

// function has no Destroy in gpucore, so its Metal object is released by a
// cleanup once the function becomes unreachable.
type function struct {
	lib  *library
	ref  C.cmt_mtl_ref
	name string

	once sync.Once
	args []gpucore.Argument
}

func (f *function) Name() string                  { return f.name }
func (f *function) ThreadgroupSize() gpucore.Size { return gpucore.Size{} }

// Arguments reflects the function through a pipeline built for the purpose
// unless a pipeline has already been created from it.
func (f *function) Arguments() []gpucore.Argument {
	f.once.Do(func() {
		p, err := f.lib.dev.newPipeline(f)
		if err != nil {
			return
		}
		f.args = p.args
		p.Destroy()
	})
	return f.args
}

type pipeline struct {
	ref             C.cmt_mtl_ref
	fn              *function
	args            []gpucore.Argument
	maxThreads      uint64
	simdWidth       uint64
	argumentBuffers bool
}

func (d *device) NewComputePipeline(fn gpucore.Function) (gpucore.ComputePipeline, error) {
	f, ok := fn.(*function)
	if !ok || f.lib.dev != d {
		return nil, &gpucore.CompileError{Domain: errorDomain, Code: codeForeignFunction, Description: "function was not compiled by this device"}
	}
	p, err := d.newPipeline(f)
	if err != nil {
		return nil, err
	}
	f.once.Do(func() { f.args = p.args })
	return p, nil
}

func (d *device) newPipeline(f *function) (*pipeline, error) {
	var info C.cmt_mtl_pipeline_info
	var cerr C.cmt_mtl_error
	ref := C.cmt_mtl_pipeline_new(d.ref, f.ref, &info, &cerr)
	if ref == nil {
		return nil, compileError(&cerr)
	}
	data := C.GoBytes(unsafe.Pointer(info.reflection), C.int(info.reflection_length))
	C.cmt_mtl_free(unsafe.Pointer(info.reflection))

	args, err := decodeArguments(data)
	if err != nil {
		C.cmt_mtl_release(ref)
		return nil, &gpucore.CompileError{Domain: errorDomain, Code: codeReflection, Description: err.Error()}
	}
	return &pipeline{
		ref:             ref,
		fn:              f,
		args:            args,
		maxThreads:      uint64(info.max_total_threads_per_threadgroup),
		simdWidth:       uint64(info.thread_execution_width),
		argumentBuffers: readsArgumentBuffers(args),
	}, nil
}

func (p *pipeline) Function() gpucore.Function            { return p.fn }
func (p *pipeline) Arguments() []gpucore.Argument         { return p.args }
func (p *pipeline) MaxTotalThreadsPerThreadgroup() uint64 { return p.maxThreads }
func (p *pipeline) ThreadExecutionWidth() uint64          { return p.simdWidth }
func (p *pipeline) Destroy()                              { C.cmt_mtl_release(p.ref) }
