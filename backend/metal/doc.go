// Package metal is the cmt driver for Apple Metal devices.
//
// The driver talks to Metal through a small Objective-C bridge compiled by
// cgo, so it is only built on darwin with cgo enabled. On other platforms
// the package is empty and importing it registers nothing.
//
// Kernels are Metal Shading Language. Reflection comes from the pipeline
// reflection Metal reports when a pipeline is created; a function's
// arguments are reflected by building a throwaway pipeline the first time
// they are requested. Buffer GPU addresses are real, so argument buffers
// encoded by cmt can be dereferenced by kernels. Buffers referenced only
// through an argument buffer are made resident for every dispatch whose
// pipeline reads argument buffers.
//
//	import _ "github.com/gogpu/cmt/backend/metal"
package metal
