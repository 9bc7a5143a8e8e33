package capi

import (
	"os"
	"strings"

	"github.com/gogpu/cmt"
)

// Environment variables read when the C library opens a device.
const (
	EnvDriver     = "CMT_DRIVER"
	EnvValidation = "CMT_VALIDATION"
)

// envOptions turns the environment into device options. Unknown validation
// values are logged and ignored.
func envOptions(getenv func(string) string) []cmt.DeviceOption {
	var opts []cmt.DeviceOption
	if name := strings.TrimSpace(getenv(EnvDriver)); name != "" {
		opts = append(opts, cmt.WithDriver(name))
	}
	switch v := strings.ToLower(strings.TrimSpace(getenv(EnvValidation))); v {
	case "":
	case "report", "0":
		opts = append(opts, cmt.WithValidation(cmt.ValidationReport))
	case "failfast", "fail-fast", "1":
		opts = append(opts, cmt.WithValidation(cmt.ValidationFailFast))
	default:
		cmt.Logger().Warn("capi: ignoring unknown validation mode", "env", EnvValidation, "value", v)
	}
	return opts
}

// DeviceOpenDefault opens the default device, honouring CMT_DRIVER and
// CMT_VALIDATION.
func DeviceOpenDefault() (Handle, Status) {
	return deviceOpen(os.Getenv)
}

func deviceOpen(getenv func(string) string) (Handle, Status) {
	dev, err := cmt.OpenDefaultDevice(envOptions(getenv)...)
	if err != nil {
		return 0, fail(err)
	}
	return dev.Handle(), StatusOK
}

// DeviceName returns the adapter name.
func DeviceName(dev Handle) (string, Status) {
	d, st := lookup[*cmt.Device](dev)
	if st != StatusOK {
		return "", st
	}
	return d.Name(), StatusOK
}

// DeviceDriver returns the name of the driver backing the device.
func DeviceDriver(dev Handle) (string, Status) {
	d, st := lookup[*cmt.Device](dev)
	if st != StatusOK {
		return "", st
	}
	return d.Info().Driver, StatusOK
}

// DeviceLanguage returns the shading language NewLibrary expects.
func DeviceLanguage(dev Handle) (string, Status) {
	d, st := lookup[*cmt.Device](dev)
	if st != StatusOK {
		return "", st
	}
	return d.Info().Language.String(), StatusOK
}

// DeviceNewBuffer allocates a buffer of length bytes.
func DeviceNewBuffer(dev Handle, length uint64, mode uint32) (Handle, Status) {
	d, st := lookup[*cmt.Device](dev)
	if st != StatusOK {
		return 0, st
	}
	b, err := d.NewBuffer(length, cmt.StorageMode(min(mode, 0xff)))
	if err != nil {
		return 0, fail(err)
	}
	return b.Handle(), StatusOK
}

// DeviceNewBufferWithBytes allocates a shared buffer holding a copy of data.
func DeviceNewBufferWithBytes(dev Handle, data []byte) (Handle, Status) {
	d, st := lookup[*cmt.Device](dev)
	if st != StatusOK {
		return 0, st
	}
	b, err := d.NewBufferWithBytes(data)
	if err != nil {
		return 0, fail(err)
	}
	return b.Handle(), StatusOK
}

// DeviceNewCommandQueue creates a command queue.
func DeviceNewCommandQueue(dev Handle) (Handle, Status) {
	d, st := lookup[*cmt.Device](dev)
	if st != StatusOK {
		return 0, st
	}
	q, err := d.NewCommandQueue()
	if err != nil {
		return 0, fail(err)
	}
	return q.Handle(), StatusOK
}

// DeviceNewLibrary compiles source. On a compilation failure errOut is an
// Error handle describing it; it is 0 for every other outcome.
func DeviceNewLibrary(dev Handle, source string) (lib, errOut Handle, st Status) {
	d, st := lookup[*cmt.Device](dev)
	if st != StatusOK {
		return 0, 0, st
	}
	l, err := d.NewLibrary(source, nil)
	if err != nil {
		return 0, errorHandle(err), fail(err)
	}
	return l.Handle(), 0, StatusOK
}

// DeviceNewComputePipelineState links fn. Link failures are reported through
// errOut like DeviceNewLibrary.
func DeviceNewComputePipelineState(dev, fn Handle) (pipeline, errOut Handle, st Status) {
	d, st := lookup[*cmt.Device](dev)
	if st != StatusOK {
		return 0, 0, st
	}
	f, st := lookup[*cmt.Function](fn)
	if st != StatusOK {
		return 0, 0, st
	}
	p, err := d.NewComputePipelineState(f)
	if err != nil {
		return 0, errorHandle(err), fail(err)
	}
	return p.Handle(), 0, StatusOK
}

// BufferLength returns the buffer size in bytes.
func BufferLength(buf Handle) (uint64, Status) {
	b, st := lookup[*cmt.Buffer](buf)
	if st != StatusOK {
		return 0, st
	}
	return b.Length(), StatusOK
}

// BufferContents returns the CPU mapping of a shared buffer. The memory is
// not on the Go heap, so its address may be handed to C.
func BufferContents(buf Handle) ([]byte, Status) {
	b, st := lookup[*cmt.Buffer](buf)
	if st != StatusOK {
		return nil, st
	}
	data, err := b.Contents()
	return data, fail(err)
}

// BufferGPUAddress returns the address used for the buffer in argument
// buffers.
func BufferGPUAddress(buf Handle) (uint64, Status) {
	b, st := lookup[*cmt.Buffer](buf)
	if st != StatusOK {
		return 0, st
	}
	return b.GPUAddress(), StatusOK
}

// LibraryFunctionNames lists the library's entry points.
func LibraryFunctionNames(lib Handle) ([]string, Status) {
	l, st := lookup[*cmt.Library](lib)
	if st != StatusOK {
		return nil, st
	}
	return l.FunctionNames(), StatusOK
}

// LibraryNewFunction returns the entry point called name.
func LibraryNewFunction(lib Handle, name string) (Handle, Status) {
	l, st := lookup[*cmt.Library](lib)
	if st != StatusOK {
		return 0, st
	}
	f, err := l.NewFunction(name)
	if err != nil {
		return 0, fail(err)
	}
	return f.Handle(), StatusOK
}

// FunctionName returns the entry point name.
func FunctionName(fn Handle) (string, Status) {
	f, st := lookup[*cmt.Function](fn)
	if st != StatusOK {
		return "", st
	}
	return f.Name(), StatusOK
}

// FunctionArgumentCount returns the number of arguments fn declares.
func FunctionArgumentCount(fn Handle) (int, Status) {
	f, st := lookup[*cmt.Function](fn)
	if st != StatusOK {
		return 0, st
	}
	return len(f.Arguments()), StatusOK
}

// FunctionArgument returns a handle to argument i of fn.
func FunctionArgument(fn Handle, i int) (Handle, Status) {
	f, st := lookup[*cmt.Function](fn)
	if st != StatusOK {
		return 0, st
	}
	return argumentAt(f.Arguments(), i)
}

// ComputePipelineStateMaxTotalThreadsPerThreadgroup returns the largest
// threadgroup the pipeline accepts.
func ComputePipelineStateMaxTotalThreadsPerThreadgroup(p Handle) (uint64, Status) {
	ps, st := lookup[*cmt.ComputePipelineState](p)
	if st != StatusOK {
		return 0, st
	}
	return ps.MaxTotalThreadsPerThreadgroup(), StatusOK
}

// ComputePipelineStateThreadExecutionWidth returns the SIMD width.
func ComputePipelineStateThreadExecutionWidth(p Handle) (uint64, Status) {
	ps, st := lookup[*cmt.ComputePipelineState](p)
	if st != StatusOK {
		return 0, st
	}
	return ps.ThreadExecutionWidth(), StatusOK
}

// ComputePipelineStateArgumentCount returns the number of pipeline arguments.
func ComputePipelineStateArgumentCount(p Handle) (int, Status) {
	ps, st := lookup[*cmt.ComputePipelineState](p)
	if st != StatusOK {
		return 0, st
	}
	return len(ps.Arguments()), StatusOK
}

// ComputePipelineStateArgument returns a handle to pipeline argument i.
func ComputePipelineStateArgument(p Handle, i int) (Handle, Status) {
	ps, st := lookup[*cmt.ComputePipelineState](p)
	if st != StatusOK {
		return 0, st
	}
	return argumentAt(ps.Arguments(), i)
}
