// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Command libcmt builds the cmt C library:
//
//	go build -buildmode=c-shared -o libcmt.so ./cmd/libcmt
//
// Include include/cmt.h. Every entry point returns a cmtStatus; objects are
// returned through out-parameters as cmtHandle values the caller owns and
// releases with cmtRelease. Strings are copied into caller buffers: the
// full length is stored in *length and at most capacity-1 bytes plus a NUL
// are written.
//
// CMT_DRIVER selects a driver by name (metal, wgpu, software) and
// CMT_VALIDATION=failfast aborts on the first misuse instead of returning
// cmtStatusPrecondition.
package main

/*
#cgo CFLAGS: -I${SRCDIR}/include
#include "cmt_types.h"
*/
import "C"

import (
	"unsafe"

	"github.com/gogpu/cmt/internal/capi"

	_ "github.com/gogpu/cmt/backend/metal"
	_ "github.com/gogpu/cmt/backend/wgpu"
)

func main() {}

func status(st capi.Status) C.cmtStatus { return C.cmtStatus(st) }

func handle(h C.cmtHandle) capi.Handle { return capi.Handle(h) }

// store writes v through p when p is non-nil.
func store[T any](p *T, v T) {
	if p != nil {
		*p = v
	}
}

func putHandle(p *C.cmtHandle, h capi.Handle) { store(p, C.cmtHandle(h)) }

func putString(s string, buf *C.char, capacity C.size_t, length *C.size_t) {
	store(length, C.size_t(len(s)))
	if buf == nil || capacity == 0 {
		return
	}
	dst := unsafe.Slice((*byte)(unsafe.Pointer(buf)), int(capacity))
	n := copy(dst[:len(dst)-1], s)
	dst[n] = 0
}

func handles(p *C.cmtHandle, n C.size_t) []capi.Handle {
	if p == nil || n == 0 {
		return nil
	}
	src := unsafe.Slice(p, int(n))
	hs := make([]capi.Handle, len(src))
	for i, h := range src {
		hs[i] = handle(h)
	}
	return hs
}

func bytesOf(p unsafe.Pointer, n C.size_t) []byte {
	if p == nil || n == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(p), int(n))
}

//export cmtRetain
func cmtRetain(h C.cmtHandle) C.cmtStatus {
	return status(capi.Retain(handle(h)))
}

//export cmtRelease
func cmtRelease(h C.cmtHandle) C.cmtStatus {
	return status(capi.Release(handle(h)))
}

//export cmtLastError
func cmtLastError(buf *C.char, capacity C.size_t, length *C.size_t) {
	putString(capi.LastError(), buf, capacity, length)
}

//export cmtLiveObjects
func cmtLiveObjects() C.size_t {
	return C.size_t(capi.LiveObjects())
}

//export cmtDeviceOpenDefault
func cmtDeviceOpenDefault(device *C.cmtHandle) C.cmtStatus {
	h, st := capi.DeviceOpenDefault()
	putHandle(device, h)
	return status(st)
}

//export cmtDeviceName
func cmtDeviceName(device C.cmtHandle, buf *C.char, capacity C.size_t, length *C.size_t) C.cmtStatus {
	name, st := capi.DeviceName(handle(device))
	putString(name, buf, capacity, length)
	return status(st)
}

//export cmtDeviceDriver
func cmtDeviceDriver(device C.cmtHandle, buf *C.char, capacity C.size_t, length *C.size_t) C.cmtStatus {
	name, st := capi.DeviceDriver(handle(device))
	putString(name, buf, capacity, length)
	return status(st)
}

//export cmtDeviceLanguage
func cmtDeviceLanguage(device C.cmtHandle, buf *C.char, capacity C.size_t, length *C.size_t) C.cmtStatus {
	lang, st := capi.DeviceLanguage(handle(device))
	putString(lang, buf, capacity, length)
	return status(st)
}

//export cmtDeviceNewBuffer
func cmtDeviceNewBuffer(device C.cmtHandle, length C.uint64_t, mode C.uint32_t, buffer *C.cmtHandle) C.cmtStatus {
	h, st := capi.DeviceNewBuffer(handle(device), uint64(length), uint32(mode))
	putHandle(buffer, h)
	return status(st)
}

//export cmtDeviceNewBufferWithBytes
func cmtDeviceNewBufferWithBytes(device C.cmtHandle, bytes unsafe.Pointer, length C.size_t, buffer *C.cmtHandle) C.cmtStatus {
	h, st := capi.DeviceNewBufferWithBytes(handle(device), bytesOf(bytes, length))
	putHandle(buffer, h)
	return status(st)
}

//export cmtDeviceNewCommandQueue
func cmtDeviceNewCommandQueue(device C.cmtHandle, queue *C.cmtHandle) C.cmtStatus {
	h, st := capi.DeviceNewCommandQueue(handle(device))
	putHandle(queue, h)
	return status(st)
}

//export cmtDeviceNewLibrary
func cmtDeviceNewLibrary(device C.cmtHandle, source *C.char, library, errOut *C.cmtHandle) C.cmtStatus {
	if source == nil {
		return status(capi.StatusPrecondition)
	}
	lib, e, st := capi.DeviceNewLibrary(handle(device), C.GoString(source))
	putHandle(library, lib)
	putHandle(errOut, e)
	return status(st)
}

//export cmtDeviceNewComputePipelineState
func cmtDeviceNewComputePipelineState(device, function C.cmtHandle, pipeline, errOut *C.cmtHandle) C.cmtStatus {
	p, e, st := capi.DeviceNewComputePipelineState(handle(device), handle(function))
	putHandle(pipeline, p)
	putHandle(errOut, e)
	return status(st)
}

//export cmtBufferLength
func cmtBufferLength(buffer C.cmtHandle, length *C.uint64_t) C.cmtStatus {
	n, st := capi.BufferLength(handle(buffer))
	store(length, C.uint64_t(n))
	return status(st)
}

// The mapping of a shared buffer is allocated outside the Go heap, so its
// address stays valid for C until the buffer is destroyed.
//
//export cmtBufferContents
func cmtBufferContents(buffer C.cmtHandle, contents *unsafe.Pointer) C.cmtStatus {
	data, st := capi.BufferContents(handle(buffer))
	if st == capi.StatusOK && len(data) > 0 {
		store(contents, unsafe.Pointer(unsafe.SliceData(data)))
	}
	return status(st)
}

//export cmtBufferGPUAddress
func cmtBufferGPUAddress(buffer C.cmtHandle, address *C.uint64_t) C.cmtStatus {
	addr, st := capi.BufferGPUAddress(handle(buffer))
	store(address, C.uint64_t(addr))
	return status(st)
}

//export cmtLibraryFunctionCount
func cmtLibraryFunctionCount(library C.cmtHandle, count *C.size_t) C.cmtStatus {
	names, st := capi.LibraryFunctionNames(handle(library))
	store(count, C.size_t(len(names)))
	return status(st)
}

//export cmtLibraryFunctionName
func cmtLibraryFunctionName(library C.cmtHandle, index C.size_t, buf *C.char, capacity C.size_t, length *C.size_t) C.cmtStatus {
	names, st := capi.LibraryFunctionNames(handle(library))
	if st != capi.StatusOK {
		return status(st)
	}
	if int(index) >= len(names) {
		return status(capi.StatusPrecondition)
	}
	putString(names[index], buf, capacity, length)
	return status(capi.StatusOK)
}

//export cmtLibraryNewFunction
func cmtLibraryNewFunction(library C.cmtHandle, name *C.char, function *C.cmtHandle) C.cmtStatus {
	if name == nil {
		return status(capi.StatusPrecondition)
	}
	h, st := capi.LibraryNewFunction(handle(library), C.GoString(name))
	putHandle(function, h)
	return status(st)
}

//export cmtFunctionName
func cmtFunctionName(function C.cmtHandle, buf *C.char, capacity C.size_t, length *C.size_t) C.cmtStatus {
	name, st := capi.FunctionName(handle(function))
	putString(name, buf, capacity, length)
	return status(st)
}

//export cmtFunctionArgumentCount
func cmtFunctionArgumentCount(function C.cmtHandle, count *C.size_t) C.cmtStatus {
	n, st := capi.FunctionArgumentCount(handle(function))
	store(count, C.size_t(n))
	return status(st)
}

//export cmtFunctionArgument
func cmtFunctionArgument(function C.cmtHandle, index C.size_t, argument *C.cmtHandle) C.cmtStatus {
	h, st := capi.FunctionArgument(handle(function), int(index))
	putHandle(argument, h)
	return status(st)
}

//export cmtComputePipelineStateMaxTotalThreadsPerThreadgroup
func cmtComputePipelineStateMaxTotalThreadsPerThreadgroup(pipeline C.cmtHandle, n *C.uint64_t) C.cmtStatus {
	v, st := capi.ComputePipelineStateMaxTotalThreadsPerThreadgroup(handle(pipeline))
	store(n, C.uint64_t(v))
	return status(st)
}

//export cmtComputePipelineStateThreadExecutionWidth
func cmtComputePipelineStateThreadExecutionWidth(pipeline C.cmtHandle, width *C.uint64_t) C.cmtStatus {
	v, st := capi.ComputePipelineStateThreadExecutionWidth(handle(pipeline))
	store(width, C.uint64_t(v))
	return status(st)
}

//export cmtComputePipelineStateArgumentCount
func cmtComputePipelineStateArgumentCount(pipeline C.cmtHandle, count *C.size_t) C.cmtStatus {
	n, st := capi.ComputePipelineStateArgumentCount(handle(pipeline))
	store(count, C.size_t(n))
	return status(st)
}

//export cmtComputePipelineStateArgument
func cmtComputePipelineStateArgument(pipeline C.cmtHandle, index C.size_t, argument *C.cmtHandle) C.cmtStatus {
	h, st := capi.ComputePipelineStateArgument(handle(pipeline), int(index))
	putHandle(argument, h)
	return status(st)
}
