// Package gpucore defines the boundary between cmt and the GPU drivers that
// execute its work.
//
// The package has no behaviour of its own. It holds the value types shared by
// every layer (storage modes, sizes, data types, reflection descriptors,
// compile errors) and the small set of interfaces a driver implements:
//
//	+-------------+      +------------------+
//	|     cmt     | ---> |  gpucore.Driver  |
//	| (handles,   |      |  gpucore.Device  |
//	|  encoders)  |      |  gpucore.Queue   |
//	+-------------+      +--------+---------+
//	                              |
//	         +--------------------+--------------------+
//	         |                    |                    |
//	+--------v--------+  +--------v--------+  +--------v--------+
//	| backend/metal   |  | backend/wgpu    |  | backend/software|
//	| (Metal, cgo)    |  | (gogpu/wgpu HAL)|  | (CPU reference) |
//	+-----------------+  +-----------------+  +-----------------+
//
// Drivers never see handles or reference counts. cmt validates every command
// before it reaches a driver, so drivers may assume well-formed input: a
// bound pipeline, all declared arguments bound, offsets within range.
//
// # Reflection
//
// Shader argument metadata is expressed as a closed set of descriptor types
// implementing [TypeDescriptor]: [ScalarType], [PointerType], [StructType]
// and [ArrayType]. Descriptors are immutable once returned by a driver.
package gpucore
