package gpucore

// Driver opens compute devices. Drivers register themselves with the
// backend package from an init function.
type Driver interface {
	// Name returns the registry name, e.g. "metal" or "software".
	Name() string

	// Open opens the driver's default compute device.
	// It returns ErrNoDevice when the driver has no usable device.
	Open() (Device, error)
}

// Device is an opened compute device.
//
// Device methods may be called concurrently. Objects created by a device
// must be destroyed before the device itself.
type Device interface {
	Info() DeviceInfo
	Limits() Limits

	// NewQueue creates a submission queue.
	NewQueue() (Queue, error)

	// NewBuffer allocates length bytes. Shared buffers are zero-initialised.
	NewBuffer(length uint64, mode StorageMode) (Buffer, error)

	// NewLibrary compiles source in the device's shading language.
	// Compilation failures are returned as *CompileError.
	NewLibrary(source string, opts *CompileOptions) (Library, error)

	// NewComputePipeline links fn into an executable pipeline.
	// Link failures are returned as *CompileError.
	NewComputePipeline(fn Function) (ComputePipeline, error)

	Destroy()
}

// Buffer is a device allocation.
type Buffer interface {
	Length() uint64
	StorageMode() StorageMode

	// Contents returns the CPU mapping of a shared buffer, exactly Length
	// bytes long, or nil for private buffers. The memory is not on the Go
	// heap and stays valid until Destroy.
	Contents() []byte

	// GPUAddress returns the address shaders use to reference the buffer
	// from an argument buffer.
	GPUAddress() uint64

	Destroy()
}

// Library is a compiled shader module.
type Library interface {
	// FunctionNames lists the kernel entry points in declaration order.
	FunctionNames() []string

	// Function looks up an entry point by name.
	Function(name string) (Function, bool)

	Destroy()
}

// Function is a kernel entry point of a Library.
type Function interface {
	Name() string

	// Arguments returns reflection for the function's buffer arguments.
	// Drivers that only reflect at pipeline creation return nil.
	Arguments() []Argument

	// ThreadgroupSize returns the size declared in the source, or the zero
	// Size when the language leaves it to the dispatch.
	ThreadgroupSize() Size
}

// ComputePipeline is a linked, immutable kernel.
type ComputePipeline interface {
	Function() Function

	// Arguments returns the reflected buffer arguments.
	Arguments() []Argument

	// MaxTotalThreadsPerThreadgroup bounds Volume of a dispatch threadgroup.
	MaxTotalThreadsPerThreadgroup() uint64

	// ThreadExecutionWidth is the SIMD width of the device.
	ThreadExecutionWidth() uint64

	Destroy()
}

// Queue executes batches in submission order.
type Queue interface {
	// Submit schedules b for execution. done is called exactly once from a
	// driver goroutine when execution finishes, with the execution error or
	// nil. A non-nil return means b was not scheduled and done is not called.
	Submit(b *Batch, done func(error)) error

	// Destroy releases the queue. All submitted batches have completed
	// before cmt calls Destroy.
	Destroy()
}
