package main

/*
#include "cmt_types.h"
*/
import "C"

import (
	"unsafe"

	"github.com/gogpu/cmt/internal/capi"
)

func size(s *C.cmtSize) [3]uint64 {
	if s == nil {
		return [3]uint64{}
	}
	return [3]uint64{uint64(s.width), uint64(s.height), uint64(s.depth)}
}

//export cmtCommandQueueNewCommandBuffer
func cmtCommandQueueNewCommandBuffer(queue C.cmtHandle, commandBuffer *C.cmtHandle) C.cmtStatus {
	h, st := capi.CommandQueueNewCommandBuffer(handle(queue))
	putHandle(commandBuffer, h)
	return status(st)
}

//export cmtCommandQueueSetLabel
func cmtCommandQueueSetLabel(queue C.cmtHandle, label *C.char) C.cmtStatus {
	return status(capi.CommandQueueSetLabel(handle(queue), C.GoString(label)))
}

//export cmtCommandBufferComputeEncoder
func cmtCommandBufferComputeEncoder(commandBuffer C.cmtHandle, encoder *C.cmtHandle) C.cmtStatus {
	h, st := capi.CommandBufferComputeEncoder(handle(commandBuffer))
	putHandle(encoder, h)
	return status(st)
}

//export cmtCommandBufferSetLabel
func cmtCommandBufferSetLabel(commandBuffer C.cmtHandle, label *C.char) C.cmtStatus {
	return status(capi.CommandBufferSetLabel(handle(commandBuffer), C.GoString(label)))
}

//export cmtCommandBufferEnqueue
func cmtCommandBufferEnqueue(commandBuffer C.cmtHandle) C.cmtStatus {
	return status(capi.CommandBufferEnqueue(handle(commandBuffer)))
}

//export cmtCommandBufferCommit
func cmtCommandBufferCommit(commandBuffer C.cmtHandle) C.cmtStatus {
	return status(capi.CommandBufferCommit(handle(commandBuffer)))
}

//export cmtCommandBufferWaitUntilCompleted
func cmtCommandBufferWaitUntilCompleted(commandBuffer C.cmtHandle) C.cmtStatus {
	return status(capi.CommandBufferWaitUntilCompleted(handle(commandBuffer)))
}

//export cmtCommandBufferStatus
func cmtCommandBufferStatus(commandBuffer C.cmtHandle, state *C.uint32_t) C.cmtStatus {
	s, st := capi.CommandBufferStatus(handle(commandBuffer))
	store(state, C.uint32_t(s))
	return status(st)
}

//export cmtCommandBufferError
func cmtCommandBufferError(commandBuffer C.cmtHandle, errOut *C.cmtHandle) C.cmtStatus {
	h, st := capi.CommandBufferError(handle(commandBuffer))
	putHandle(errOut, h)
	return status(st)
}

//export cmtCommandBufferAddCompletedHandler
func cmtCommandBufferAddCompletedHandler(commandBuffer C.cmtHandle, fn C.cmtCompletedHandler, userData unsafe.Pointer) C.cmtStatus {
	return status(capi.CommandBufferAddCompletedHandler(handle(commandBuffer), completedHandler(fn, userData)))
}

//export cmtComputeEncoderSetLabel
func cmtComputeEncoderSetLabel(encoder C.cmtHandle, label *C.char) C.cmtStatus {
	return status(capi.ComputeEncoderSetLabel(handle(encoder), C.GoString(label)))
}

//export cmtComputeEncoderSetComputePipelineState
func cmtComputeEncoderSetComputePipelineState(encoder, pipeline C.cmtHandle) C.cmtStatus {
	return status(capi.ComputeEncoderSetComputePipelineState(handle(encoder), handle(pipeline)))
}

//export cmtComputeEncoderSetBuffer
func cmtComputeEncoderSetBuffer(encoder, buffer C.cmtHandle, offset C.uint64_t, index C.uint32_t) C.cmtStatus {
	return status(capi.ComputeEncoderSetBuffer(handle(encoder), handle(buffer), uint64(offset), uint32(index)))
}

//export cmtComputeEncoderSetBytes
func cmtComputeEncoderSetBytes(encoder C.cmtHandle, bytes unsafe.Pointer, length C.size_t, index C.uint32_t) C.cmtStatus {
	return status(capi.ComputeEncoderSetBytes(handle(encoder), bytesOf(bytes, length), uint32(index)))
}

//export cmtComputeEncoderDispatchThreads
func cmtComputeEncoderDispatchThreads(encoder C.cmtHandle, grid, threadgroup *C.cmtSize) C.cmtStatus {
	return status(capi.ComputeEncoderDispatchThreads(handle(encoder), size(grid), size(threadgroup)))
}

//export cmtComputeEncoderDispatchThreadgroups
func cmtComputeEncoderDispatchThreadgroups(encoder C.cmtHandle, groups, threadgroup *C.cmtSize) C.cmtStatus {
	return status(capi.ComputeEncoderDispatchThreadgroups(handle(encoder), size(groups), size(threadgroup)))
}

//export cmtComputeEncoderEndEncoding
func cmtComputeEncoderEndEncoding(encoder C.cmtHandle) C.cmtStatus {
	return status(capi.ComputeEncoderEndEncoding(handle(encoder)))
}
