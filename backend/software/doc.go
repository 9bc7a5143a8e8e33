// Package software implements a CPU reference driver for cmt.
//
// The driver accepts WGSL libraries. Sources are validated by naga and
// reflected for their entry points and bindings; each entry point executes
// a Go [Kernel] registered under the same name. Threadgroups of a dispatch
// run concurrently on a work-stealing pool, while batches of one queue run
// strictly in submission order.
//
// Shared and private buffers both live in page-aligned host memory outside
// the Go heap. Every buffer receives a synthetic GPU address so argument
// buffers can reference it; kernels translate addresses back with
// [Threadgroup.Resolve].
//
// The driver registers itself as "software" on import:
//
//	import _ "github.com/gogpu/cmt/backend/software"
//
// Built-in kernels: copy_buffer, matrix_addition, matrix_multiply and
// argument_copy. Additional kernels are added with [RegisterKernel].
package software
