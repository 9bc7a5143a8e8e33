// Package cmt is a reference-counted GPU compute object model.
//
// # Overview
//
// cmt exposes devices, command queues, command buffers, compute encoders,
// pipeline states, buffers, shader libraries and argument-buffer reflection
// as handle-backed objects with explicit Retain and Release. The same object
// model is exported to C by cmd/libcmt.
//
// # Quick Start
//
//	dev, err := cmt.OpenDefaultDevice()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer dev.Release()
//
//	lib, err := dev.NewLibrary(source, nil)
//	fn, err := lib.NewFunction("copy_buffer")
//	pso, err := dev.NewComputePipelineState(fn)
//
//	queue, err := dev.NewCommandQueue()
//	cb, err := queue.NewCommandBuffer()
//	enc, err := cb.ComputeCommandEncoder()
//	enc.SetComputePipelineState(pso)
//	enc.SetBuffer(src, 0, 0)
//	enc.SetBuffer(dst, 0, 1)
//	enc.DispatchThreads(cmt.NewSize(n), cmt.NewSize(64))
//	enc.EndEncoding()
//	cb.Commit()
//	cb.WaitUntilCompleted()
//
// # Ownership
//
// Every constructor returns an object with a reference count of one, owned
// by the caller. Release drops a reference; the last release destroys the
// driver object exactly once. Children keep their parents alive: buffers,
// queues, libraries and pipelines hold their device, functions hold their
// library, command buffers hold their queue. Binding a buffer to an encoder
// does not retain it, but a committed command buffer retains what it uses
// until it completes.
//
// Using a released object is a precondition violation. By default it is
// reported as an *Error of KindPrecondition; with ValidationFailFast it
// panics.
//
// # Command buffer lifecycle
//
//	Created ⇄ Encoding → Committed → Completed | Error
//
// Only one encoder may be open on a command buffer. Commit fails while an
// encoder is open and when called twice; WaitUntilCompleted fails before
// Commit.
//
// # Drivers
//
// Drivers live under backend/ and register themselves on import. The CPU
// reference driver (backend/software) is always linked; import
// backend/wgpu or backend/metal for hardware devices.
package cmt
