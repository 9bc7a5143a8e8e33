package capi

import "github.com/gogpu/cmt"

// CommandQueueNewCommandBuffer creates a command buffer on the queue.
func CommandQueueNewCommandBuffer(queue Handle) (Handle, Status) {
	q, st := lookup[*cmt.CommandQueue](queue)
	if st != StatusOK {
		return 0, st
	}
	cb, err := q.NewCommandBuffer()
	if err != nil {
		return 0, fail(err)
	}
	return cb.Handle(), StatusOK
}

// CommandQueueSetLabel sets the queue's debug label.
func CommandQueueSetLabel(queue Handle, label string) Status {
	q, st := lookup[*cmt.CommandQueue](queue)
	if st != StatusOK {
		return st
	}
	q.SetLabel(label)
	return StatusOK
}

// CommandBufferComputeEncoder opens a compute encoder.
func CommandBufferComputeEncoder(cb Handle) (Handle, Status) {
	c, st := lookup[*cmt.CommandBuffer](cb)
	if st != StatusOK {
		return 0, st
	}
	e, err := c.ComputeCommandEncoder()
	if err != nil {
		return 0, fail(err)
	}
	return e.Handle(), StatusOK
}

// CommandBufferSetLabel sets the command buffer's debug label.
func CommandBufferSetLabel(cb Handle, label string) Status {
	c, st := lookup[*cmt.CommandBuffer](cb)
	if st != StatusOK {
		return st
	}
	c.SetLabel(label)
	return StatusOK
}

// CommandBufferEnqueue reserves the command buffer's place in its queue.
func CommandBufferEnqueue(cb Handle) Status {
	c, st := lookup[*cmt.CommandBuffer](cb)
	if st != StatusOK {
		return st
	}
	return fail(c.Enqueue())
}

// CommandBufferCommit submits the command buffer.
func CommandBufferCommit(cb Handle) Status {
	c, st := lookup[*cmt.CommandBuffer](cb)
	if st != StatusOK {
		return st
	}
	return fail(c.Commit())
}

// CommandBufferWaitUntilCompleted blocks until the command buffer finishes.
// StatusOK says nothing about execution; see CommandBufferStatus.
func CommandBufferWaitUntilCompleted(cb Handle) Status {
	c, st := lookup[*cmt.CommandBuffer](cb)
	if st != StatusOK {
		return st
	}
	return fail(c.WaitUntilCompleted())
}

// CommandBufferStatus returns the lifecycle state as its integer value.
func CommandBufferStatus(cb Handle) (uint32, Status) {
	c, st := lookup[*cmt.CommandBuffer](cb)
	if st != StatusOK {
		return 0, st
	}
	return uint32(c.Status()), StatusOK
}

// CommandBufferError returns an Error handle for the execution failure of a
// command buffer in the error state, or 0.
func CommandBufferError(cb Handle) (Handle, Status) {
	c, st := lookup[*cmt.CommandBuffer](cb)
	if st != StatusOK {
		return 0, st
	}
	err := c.Err()
	if err == nil {
		return 0, StatusOK
	}
	return errorHandle(err), StatusOK
}

// CommandBufferAddCompletedHandler registers fn to run with the command
// buffer's handle once it finishes. The handle is only valid for the
// duration of the call unless fn retains it.
func CommandBufferAddCompletedHandler(cb Handle, fn func(Handle)) Status {
	c, st := lookup[*cmt.CommandBuffer](cb)
	if st != StatusOK {
		return st
	}
	if fn == nil {
		return fail(c.AddCompletedHandler(nil))
	}
	return fail(c.AddCompletedHandler(func(done *cmt.CommandBuffer) {
		fn(done.Handle())
	}))
}

// ComputeEncoderSetLabel sets the encoder's debug label.
func ComputeEncoderSetLabel(enc Handle, label string) Status {
	e, st := lookup[*cmt.ComputeCommandEncoder](enc)
	if st != StatusOK {
		return st
	}
	e.SetLabel(label)
	return StatusOK
}

// ComputeEncoderSetComputePipelineState selects the pipeline for later
// dispatches.
func ComputeEncoderSetComputePipelineState(enc, pipeline Handle) Status {
	e, st := lookup[*cmt.ComputeCommandEncoder](enc)
	if st != StatusOK {
		return st
	}
	p, st := lookup[*cmt.ComputePipelineState](pipeline)
	if st != StatusOK {
		return st
	}
	return fail(e.SetComputePipelineState(p))
}

// ComputeEncoderSetBuffer binds buf at offset to argument index.
func ComputeEncoderSetBuffer(enc, buf Handle, offset uint64, index uint32) Status {
	e, st := lookup[*cmt.ComputeCommandEncoder](enc)
	if st != StatusOK {
		return st
	}
	b, st := lookup[*cmt.Buffer](buf)
	if st != StatusOK {
		return st
	}
	return fail(e.SetBuffer(b, offset, index))
}

// ComputeEncoderSetBytes binds a copy of data to argument index.
func ComputeEncoderSetBytes(enc Handle, data []byte, index uint32) Status {
	e, st := lookup[*cmt.ComputeCommandEncoder](enc)
	if st != StatusOK {
		return st
	}
	return fail(e.SetBytes(data, index))
}

// ComputeEncoderDispatchThreads dispatches a grid measured in threads.
func ComputeEncoderDispatchThreads(enc Handle, grid, threadgroup [3]uint64) Status {
	e, st := lookup[*cmt.ComputeCommandEncoder](enc)
	if st != StatusOK {
		return st
	}
	return fail(e.DispatchThreads(cmt.NewSize(grid[:]...), cmt.NewSize(threadgroup[:]...)))
}

// ComputeEncoderDispatchThreadgroups dispatches a grid measured in
// threadgroups.
func ComputeEncoderDispatchThreadgroups(enc Handle, groups, threadgroup [3]uint64) Status {
	e, st := lookup[*cmt.ComputeCommandEncoder](enc)
	if st != StatusOK {
		return st
	}
	return fail(e.DispatchThreadgroups(cmt.NewSize(groups[:]...), cmt.NewSize(threadgroup[:]...)))
}

// ComputeEncoderEndEncoding closes the encoder.
func ComputeEncoderEndEncoding(enc Handle) Status {
	e, st := lookup[*cmt.ComputeCommandEncoder](enc)
	if st != StatusOK {
		return st
	}
	return fail(e.EndEncoding())
}
