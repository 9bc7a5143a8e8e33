package cmt

import (
	"errors"
	"slices"

	"github.com/gogpu/cmt/gpucore"
)

// Library is a compiled shader module.
type Library struct {
	object

	device *Device
	lib    gpucore.Library
}

// NewLibrary compiles source in the device's shading language (see
// DeviceInfo.Language). Compilation failures return an *Error of
// KindCompilation wrapping the driver's *CompileError.
func (d *Device) NewLibrary(source string, opts *CompileOptions) (*Library, error) {
	const op = "Device.NewLibrary"

	if err := d.alive(op); err != nil {
		return nil, err
	}
	lib, err := d.dev.NewLibrary(source, opts)
	if err != nil {
		var ce *CompileError
		if !errors.As(err, &ce) {
			ce = &CompileError{Domain: d.info.Driver, Description: err.Error()}
		}
		Logger().Debug("cmt: library compilation failed", "err", ce)
		return nil, &Error{Kind: KindCompilation, Op: op, Err: ce}
	}
	if err := d.adopt(op); err != nil {
		lib.Destroy()
		return nil, err
	}

	l := &Library{device: d, lib: lib}
	l.register(l, l.destroy)
	return l, nil
}

func (l *Library) destroy() {
	l.lib.Destroy()
	l.device.releaseInternal()
}

// Device returns the device that compiled the library.
func (l *Library) Device() *Device { return l.device }

// FunctionNames lists the kernel entry points in declaration order.
func (l *Library) FunctionNames() []string {
	if l.alive("Library.FunctionNames") != nil {
		return nil
	}
	return slices.Clone(l.lib.FunctionNames())
}

// NewFunction returns the entry point called name. A missing name is
// reported as an *Error of KindNotFound wrapping ErrFunctionNotFound.
func (l *Library) NewFunction(name string) (*Function, error) {
	const op = "Library.NewFunction"

	if err := l.alive(op); err != nil {
		return nil, err
	}
	fn, ok := l.lib.Function(name)
	if !ok {
		return nil, &Error{Kind: KindNotFound, Op: op, Detail: name, Err: ErrFunctionNotFound}
	}
	if err := handleErr(op, l.retainInternal()); err != nil {
		return nil, err
	}

	f := &Function{library: l, fn: fn}
	f.register(f, f.destroy)
	return f, nil
}

// Function is a kernel entry point. It holds a reference on its library.
type Function struct {
	object

	library *Library
	fn      gpucore.Function
}

func (f *Function) destroy() {
	f.library.releaseInternal()
}

// Name returns the entry point name.
func (f *Function) Name() string { return f.fn.Name() }

// Library returns the library the function belongs to.
func (f *Function) Library() *Library { return f.library }

// Arguments returns the reflected buffer arguments. Drivers that reflect
// only at pipeline creation return nil; use ComputePipelineState.Arguments.
func (f *Function) Arguments() []Argument { return slices.Clone(f.fn.Arguments()) }

// ThreadgroupSize returns the threadgroup size declared in the source, or
// the zero Size when the language leaves it to the dispatch.
func (f *Function) ThreadgroupSize() Size { return f.fn.ThreadgroupSize() }
