// Package wgpu is the cmt driver for gogpu/wgpu HAL devices.
//
// The driver opens a Vulkan device by default. Other HAL backends are
// selected with WithBackend, and a host application that already owns a
// device shares it through WithDeviceProvider:
//
//	backend.Register(backend.BackendWGPU, func() gpucore.Driver {
//		return wgpu.NewDriver(wgpu.WithDeviceProvider(app))
//	})
//
// Kernels are WGSL. NewLibrary validates the source and translates it to
// SPIR-V with naga, and reflects entry points for bind group layouts.
// Encoder indices map to @binding numbers of @group(0).
//
// WebGPU buffers cannot be mapped persistently, so a shared buffer keeps a
// host mirror outside the Go heap. The queue uploads the mirrors of the
// shared buffers a batch binds before executing it and reads back the
// writable ones afterwards. Buffer GPU addresses are synthetic: kernels that
// dereference addresses stored in argument buffers are rejected when the
// pipeline is created.
//
// Import the package for its side effect to make the driver available to
// cmt.OpenDefaultDevice:
//
//	import _ "github.com/gogpu/cmt/backend/wgpu"
package wgpu
