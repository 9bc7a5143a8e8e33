package cmt

import (
	"maps"
	"slices"
	"sync"

	"github.com/gogpu/cmt/gpucore"
)

// boundArgument is one SetBuffer or SetBytes binding.
type boundArgument struct {
	binding gpucore.Binding
	buffer  *Buffer

	// checked is set once the index was validated against a pipeline's
	// declared arguments.
	checked bool
}

// ComputeCommandEncoder records compute dispatches into a CommandBuffer.
//
// Encoder methods only record state; nothing executes before Commit. After
// EndEncoding every method fails with ErrEncoderEnded. The encoder holds a
// reference on its command buffer until EndEncoding; releasing an encoder
// that was never ended discards what it recorded.
type ComputeCommandEncoder struct {
	object

	cb     *CommandBuffer
	device *Device
	limits Limits

	mu         sync.Mutex
	ended      bool
	label      string
	pipeline   *ComputePipelineState
	bindings   map[uint32]boundArgument
	dispatches []gpucore.Dispatch
	resources  []*object
}

func (e *ComputeCommandEncoder) destroy() {
	e.mu.Lock()
	ended := e.ended
	e.ended = true
	e.mu.Unlock()

	if !ended {
		e.cb.abandon(e)
		e.cb.releaseInternal()
	}
}

// begin checks that the encoder can record and locks it. The caller must
// unlock e.mu when begin succeeds.
func (e *ComputeCommandEncoder) begin(op string) error {
	if err := e.alive(op); err != nil {
		return err
	}
	e.mu.Lock()
	if e.ended {
		e.mu.Unlock()
		return precondition(op, ErrEncoderEnded, "")
	}
	return nil
}

// CommandBuffer returns the command buffer the encoder records into.
func (e *ComputeCommandEncoder) CommandBuffer() *CommandBuffer { return e.cb }

// SetLabel sets the debug label of the pass.
func (e *ComputeCommandEncoder) SetLabel(label string) {
	e.mu.Lock()
	e.label = label
	e.mu.Unlock()
}

// SetComputePipelineState selects the kernel for subsequent dispatches.
// Bindings are kept across pipeline changes.
func (e *ComputeCommandEncoder) SetComputePipelineState(p *ComputePipelineState) error {
	const op = "ComputeCommandEncoder.SetComputePipelineState"

	if err := e.begin(op); err != nil {
		return err
	}
	defer e.mu.Unlock()

	if err := p.alive(op); err != nil {
		return err
	}
	if err := e.device.owns(op, p.device); err != nil {
		return err
	}
	if len(p.args) > 0 {
		for _, index := range slices.Sorted(maps.Keys(e.bindings)) {
			b := e.bindings[index]
			if b.checked {
				continue
			}
			if _, ok := p.argument(index); !ok {
				return precondition(op, ErrBindingIndex, "%s declares no buffer at index %d", p.name, index)
			}
			b.checked = true
			e.bindings[index] = b
		}
	}
	e.pipeline = p
	return nil
}

// checkIndex validates a binding index against the device limit and, when a
// pipeline is set, against the arguments it declares. It reports whether the
// pipeline check ran; bindings made before any pipeline are checked by
// SetComputePipelineState instead.
func (e *ComputeCommandEncoder) checkIndex(op string, index uint32) (bool, error) {
	if index >= e.limits.MaxBufferBindings {
		return false, precondition(op, ErrBindingIndex, "index %d exceeds the limit of %d bindings",
			index, e.limits.MaxBufferBindings)
	}
	p := e.pipeline
	if p == nil || len(p.args) == 0 {
		return false, nil
	}
	if _, ok := p.argument(index); !ok {
		return false, precondition(op, ErrBindingIndex, "%s declares no buffer at index %d", p.name, index)
	}
	return true, nil
}

// SetBuffer binds buf at index, starting offset bytes into the buffer.
// The offset must lie inside the buffer and be a multiple of 4. Binding
// does not retain buf.
func (e *ComputeCommandEncoder) SetBuffer(buf *Buffer, offset uint64, index uint32) error {
	const op = "ComputeCommandEncoder.SetBuffer"

	if err := e.begin(op); err != nil {
		return err
	}
	defer e.mu.Unlock()

	if err := buf.alive(op); err != nil {
		return err
	}
	if err := e.device.owns(op, buf.device); err != nil {
		return err
	}
	switch {
	case offset >= buf.length:
		return precondition(op, ErrOffsetOutOfRange, "offset %d, buffer length %d", offset, buf.length)
	case offset%4 != 0:
		return precondition(op, ErrMisalignedOffset, "offset %d is not a multiple of 4", offset)
	}
	checked, err := e.checkIndex(op, index)
	if err != nil {
		return err
	}
	e.bindings[index] = boundArgument{
		binding: gpucore.Binding{Index: index, Buffer: buf.buf, Offset: offset},
		buffer:  buf,
		checked: checked,
	}
	return nil
}

// SetBytes binds a copy of data at index. data must not be larger than
// Limits.MaxInlineBytes.
func (e *ComputeCommandEncoder) SetBytes(data []byte, index uint32) error {
	const op = "ComputeCommandEncoder.SetBytes"

	if err := e.begin(op); err != nil {
		return err
	}
	defer e.mu.Unlock()

	if len(data) == 0 || uint64(len(data)) > e.limits.MaxInlineBytes {
		return precondition(op, ErrInvalidLength, "%d bytes, limit %d", len(data), e.limits.MaxInlineBytes)
	}
	checked, err := e.checkIndex(op, index)
	if err != nil {
		return err
	}
	e.bindings[index] = boundArgument{
		binding: gpucore.Binding{Index: index, Bytes: slices.Clone(data)},
		checked: checked,
	}
	return nil
}

// DispatchThreads launches a grid of threads, padded up to whole
// threadgroups. Kernels must ignore threads outside grid.
func (e *ComputeCommandEncoder) DispatchThreads(grid, threadgroup Size) error {
	return e.dispatch("ComputeCommandEncoder.DispatchThreads", gpucore.DispatchThreads, grid, threadgroup)
}

// DispatchThreadgroups launches groups threadgroups of threadgroup threads.
func (e *ComputeCommandEncoder) DispatchThreadgroups(groups, threadgroup Size) error {
	return e.dispatch("ComputeCommandEncoder.DispatchThreadgroups", gpucore.DispatchThreadgroups, groups, threadgroup)
}

func (e *ComputeCommandEncoder) dispatch(op string, mode gpucore.DispatchMode, grid, threadgroup Size) error {
	if err := e.begin(op); err != nil {
		return err
	}
	defer e.mu.Unlock()

	p := e.pipeline
	if p == nil {
		return precondition(op, ErrNoPipeline, "")
	}
	if err := p.alive(op); err != nil {
		return err
	}
	if grid.IsZero() {
		return precondition(op, ErrEmptyGrid, "grid %v", grid)
	}
	if limit := p.MaxTotalThreadsPerThreadgroup(); threadgroup.IsZero() || threadgroup.Volume() > limit {
		return precondition(op, ErrThreadgroupSize, "threadgroup %v, pipeline allows %d threads", threadgroup, limit)
	}

	var bindings []gpucore.Binding
	resources := []*object{&p.object}
	use := func(b boundArgument) {
		bindings = append(bindings, b.binding)
		if b.buffer != nil {
			resources = append(resources, &b.buffer.object)
		}
	}

	if len(p.args) > 0 {
		for _, a := range p.args {
			if a.Kind != gpucore.ArgumentBuffer || a.Group != 0 {
				continue
			}
			b, ok := e.bindings[a.Index]
			if !ok {
				if !a.Active {
					continue
				}
				return precondition(op, ErrMissingBinding, "%s argument %q at index %d", p.name, a.Name, a.Index)
			}
			use(b)
		}
	} else {
		for _, index := range slices.Sorted(maps.Keys(e.bindings)) {
			use(e.bindings[index])
		}
	}

	e.dispatches = append(e.dispatches, gpucore.Dispatch{
		Pipeline:    p.pipeline,
		Bindings:    bindings,
		Mode:        mode,
		Grid:        grid,
		Threadgroup: threadgroup,
	})
	e.resources = append(e.resources, resources...)
	return nil
}

// EndEncoding finishes the pass. The command buffer returns to
// StatusCreated and accepts another encoder or Commit.
func (e *ComputeCommandEncoder) EndEncoding() error {
	const op = "ComputeCommandEncoder.EndEncoding"

	if err := e.begin(op); err != nil {
		return err
	}
	e.ended = true
	pass := gpucore.Pass{Label: e.label, Dispatches: e.dispatches}
	resources := e.resources
	e.dispatches, e.resources, e.bindings, e.pipeline = nil, nil, nil, nil
	e.mu.Unlock()

	e.cb.endPass(e, pass, resources)
	e.cb.releaseInternal()
	return nil
}
