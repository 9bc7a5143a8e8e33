package cmt

import (
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/cmt/gpucore"
)

// CommandBufferStatus is the lifecycle state of a CommandBuffer.
//
//	Created ⇄ Encoding → Committed → Completed | Error
//
// Once committed a command buffer only moves forward.
type CommandBufferStatus uint8

const (
	// StatusCreated accepts encoders, handlers and Commit.
	StatusCreated CommandBufferStatus = iota

	// StatusEncoding has an open encoder.
	StatusEncoding

	// StatusCommitted is submitted or waiting for earlier buffers.
	StatusCommitted

	// StatusCompleted finished without error.
	StatusCompleted

	// StatusError finished with an execution error; see Err.
	StatusError
)

// String returns the string representation of CommandBufferStatus.
func (s CommandBufferStatus) String() string {
	switch s {
	case StatusCreated:
		return "Created"
	case StatusEncoding:
		return "Encoding"
	case StatusCommitted:
		return "Committed"
	case StatusCompleted:
		return "Completed"
	case StatusError:
		return "Error"
	default:
		return fmt.Sprintf("CommandBufferStatus(%d)", int(s))
	}
}

// CommandBuffer is one batch of GPU work.
//
// From Commit until completion the command buffer keeps itself, its queue,
// and every buffer and pipeline it uses alive, so callers may release their
// references right after committing.
type CommandBuffer struct {
	object

	queue *CommandQueue

	mu        sync.Mutex
	status    CommandBufferStatus
	label     string
	enqueued  bool
	submitted bool
	encoder   *ComputeCommandEncoder
	passes    []gpucore.Pass
	resources map[*object]struct{}
	handlers  []func(*CommandBuffer)
	held      []*object
	err       error
	start     time.Time
	end       time.Time
	done      chan struct{}
}

func (cb *CommandBuffer) destroy() {
	cb.mu.Lock()
	pending := cb.enqueued && !cb.submitted
	cb.mu.Unlock()

	if pending {
		cb.queue.remove(cb)
	}
	cb.queue.releaseInternal()
}

// Queue returns the queue that created the command buffer.
func (cb *CommandBuffer) Queue() *CommandQueue { return cb.queue }

// Status returns the current state.
func (cb *CommandBuffer) Status() CommandBufferStatus {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.status
}

// Err returns the execution error of a command buffer in StatusError, as an
// *Error of KindSubmission, and nil otherwise.
func (cb *CommandBuffer) Err() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.err
}

// SetLabel sets a debug label, passed to the driver with the batch.
func (cb *CommandBuffer) SetLabel(label string) {
	cb.mu.Lock()
	cb.label = label
	cb.mu.Unlock()
}

// Label returns the debug label.
func (cb *CommandBuffer) Label() string {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.label
}

// GPUStartTime returns when the batch was handed to the driver, or the zero
// time before that.
func (cb *CommandBuffer) GPUStartTime() time.Time {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.start
}

// GPUEndTime returns when the driver reported completion, or the zero time
// before that.
func (cb *CommandBuffer) GPUEndTime() time.Time {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.end
}

// ComputeCommandEncoder opens an encoder. Only one encoder may be open at a
// time; the command buffer accepts further encoders after EndEncoding.
func (cb *CommandBuffer) ComputeCommandEncoder() (*ComputeCommandEncoder, error) {
	const op = "CommandBuffer.ComputeCommandEncoder"

	if err := cb.alive(op); err != nil {
		return nil, err
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch {
	case cb.status >= StatusCommitted:
		return nil, precondition(op, ErrInvalidState, "command buffer is %v", cb.status)
	case cb.encoder != nil:
		return nil, precondition(op, ErrEncoderActive, "")
	}
	if err := handleErr(op, cb.retainInternal()); err != nil {
		return nil, err
	}

	dev := cb.queue.device
	e := &ComputeCommandEncoder{
		cb:       cb,
		device:   dev,
		limits:   dev.limits,
		bindings: make(map[uint32]boundArgument),
	}
	e.register(e, e.destroy)
	cb.encoder = e
	cb.status = StatusEncoding
	return e, nil
}

// endPass records the work of an ended encoder.
func (cb *CommandBuffer) endPass(e *ComputeCommandEncoder, pass gpucore.Pass, resources []*object) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.encoder != e {
		return
	}
	cb.encoder = nil
	cb.status = StatusCreated
	if len(pass.Dispatches) == 0 {
		return
	}
	cb.passes = append(cb.passes, pass)
	if cb.resources == nil {
		cb.resources = make(map[*object]struct{})
	}
	for _, o := range resources {
		cb.resources[o] = struct{}{}
	}
}

// abandon drops the pass of an encoder released without EndEncoding.
func (cb *CommandBuffer) abandon(e *ComputeCommandEncoder) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.encoder == e {
		cb.encoder = nil
		cb.status = StatusCreated
	}
}

// AddCompletedHandler registers fn to run when the command buffer finishes,
// successfully or not. Handlers run on a driver goroutine, in registration
// order, before WaitUntilCompleted returns.
func (cb *CommandBuffer) AddCompletedHandler(fn func(*CommandBuffer)) error {
	const op = "CommandBuffer.AddCompletedHandler"

	if err := cb.alive(op); err != nil {
		return err
	}
	if fn == nil {
		return precondition(op, ErrNullHandle, "nil handler")
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.status >= StatusCommitted {
		return precondition(op, ErrAlreadyCommitted, "")
	}
	cb.handlers = append(cb.handlers, fn)
	return nil
}

// Enqueue reserves the command buffer's place in its queue without
// committing it. Enqueueing twice has no effect.
func (cb *CommandBuffer) Enqueue() error {
	const op = "CommandBuffer.Enqueue"

	if err := cb.alive(op); err != nil {
		return err
	}
	cb.mu.Lock()
	if cb.status >= StatusCommitted {
		cb.mu.Unlock()
		return precondition(op, ErrAlreadyCommitted, "")
	}
	if cb.enqueued {
		cb.mu.Unlock()
		return nil
	}
	cb.enqueued = true
	cb.mu.Unlock()

	cb.queue.enqueue(cb)
	return nil
}

// Commit submits the command buffer. It fails while an encoder is open,
// when called twice, or when a buffer used by the recorded work has been
// released.
func (cb *CommandBuffer) Commit() error {
	const op = "CommandBuffer.Commit"

	if err := cb.alive(op); err != nil {
		return err
	}
	cb.mu.Lock()
	switch {
	case cb.status >= StatusCommitted:
		cb.mu.Unlock()
		return precondition(op, ErrAlreadyCommitted, "")
	case cb.encoder != nil:
		cb.mu.Unlock()
		return precondition(op, ErrEncoderActive, "")
	}

	held := make([]*object, 0, len(cb.resources)+1)
	hold := func(o *object) bool {
		if o.retainInternal() != nil {
			return false
		}
		held = append(held, o)
		return true
	}
	ok := hold(&cb.object)
	var dead *object
	for o := range cb.resources {
		if !ok {
			break
		}
		if ok = hold(o); !ok {
			dead = o
		}
	}
	if !ok {
		cb.mu.Unlock()
		for _, o := range held {
			o.releaseInternal()
		}
		if dead != nil {
			return precondition(op, ErrReleased, "resource %v used by the command buffer", dead.h)
		}
		return precondition(op, ErrReleased, "")
	}

	cb.held = held
	cb.status = StatusCommitted
	wasEnqueued := cb.enqueued
	cb.enqueued = true
	cb.mu.Unlock()

	if !wasEnqueued {
		cb.queue.enqueue(cb)
	}
	cb.queue.flush()
	return nil
}

// takeBatch marks a committed command buffer as submitted and returns its
// work. It reports false when the buffer is not ready to submit.
func (cb *CommandBuffer) takeBatch() (*gpucore.Batch, bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.status != StatusCommitted || cb.submitted {
		return nil, false
	}
	cb.submitted = true
	cb.start = time.Now()
	return &gpucore.Batch{Label: cb.label, Passes: cb.passes}, true
}

// complete is the driver completion callback.
func (cb *CommandBuffer) complete(err error) {
	cb.mu.Lock()
	cb.end = time.Now()
	if err != nil {
		cb.status = StatusError
		cb.err = &Error{Kind: KindSubmission, Op: "CommandBuffer.Commit", Detail: cb.label, Err: err}
	} else {
		cb.status = StatusCompleted
	}
	handlers, held := cb.handlers, cb.held
	cb.handlers, cb.held = nil, nil
	cb.passes, cb.resources = nil, nil
	label, status, elapsed := cb.label, cb.status, cb.end.Sub(cb.start)
	cb.mu.Unlock()

	Logger().Debug("cmt: command buffer finished",
		"label", label, "status", status, "elapsed", elapsed, "err", err)

	for _, h := range handlers {
		h(cb)
	}
	for _, o := range held {
		o.releaseInternal()
	}
	close(cb.done)
}

// WaitUntilCompleted blocks until the command buffer reaches StatusCompleted
// or StatusError. It returns an error only for misuse: a command buffer
// that was never committed fails with ErrNotCommitted. Inspect Status and
// Err for the execution result.
func (cb *CommandBuffer) WaitUntilCompleted() error {
	const op = "CommandBuffer.WaitUntilCompleted"

	if err := cb.alive(op); err != nil {
		return err
	}
	cb.mu.Lock()
	status, done := cb.status, cb.done
	cb.mu.Unlock()
	if status < StatusCommitted {
		return precondition(op, ErrNotCommitted, "command buffer is %v", status)
	}
	<-done
	return nil
}
