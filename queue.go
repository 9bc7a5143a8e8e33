package cmt

import (
	"slices"
	"sync"

	"github.com/gogpu/cmt/gpucore"
)

// CommandQueue submits command buffers to a device in order.
//
// Command buffers reach the driver in the order they were enqueued; Commit
// enqueues implicitly. A buffer that is committed behind an enqueued but
// uncommitted buffer waits for it.
type CommandQueue struct {
	object

	device *Device
	q      gpucore.Queue

	// mu guards pending and serializes submission to the driver.
	mu      sync.Mutex
	pending []*CommandBuffer
	label   string
}

// NewCommandQueue creates a submission queue.
func (d *Device) NewCommandQueue() (*CommandQueue, error) {
	const op = "Device.NewCommandQueue"

	if err := d.alive(op); err != nil {
		return nil, err
	}
	q, err := d.dev.NewQueue()
	if err != nil {
		return nil, &Error{Kind: KindAllocation, Op: op, Err: err}
	}
	if err := d.adopt(op); err != nil {
		q.Destroy()
		return nil, err
	}

	cq := &CommandQueue{device: d, q: q}
	cq.register(cq, cq.destroy)
	return cq, nil
}

func (q *CommandQueue) destroy() {
	q.q.Destroy()
	q.device.releaseInternal()
}

// Device returns the device the queue submits to.
func (q *CommandQueue) Device() *Device { return q.device }

// SetLabel sets a debug label.
func (q *CommandQueue) SetLabel(label string) {
	q.mu.Lock()
	q.label = label
	q.mu.Unlock()
}

// Label returns the debug label.
func (q *CommandQueue) Label() string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.label
}

// NewCommandBuffer creates an empty command buffer in the Created state.
// The command buffer holds a reference on the queue.
func (q *CommandQueue) NewCommandBuffer() (*CommandBuffer, error) {
	const op = "CommandQueue.NewCommandBuffer"

	if err := q.alive(op); err != nil {
		return nil, err
	}
	if err := handleErr(op, q.retainInternal()); err != nil {
		return nil, err
	}
	cb := &CommandBuffer{
		queue: q,
		done:  make(chan struct{}),
	}
	cb.register(cb, cb.destroy)
	return cb, nil
}

// enqueue reserves cb's position in submission order.
func (q *CommandQueue) enqueue(cb *CommandBuffer) {
	q.mu.Lock()
	q.pending = append(q.pending, cb)
	q.mu.Unlock()
}

// remove drops an enqueued command buffer that will never be committed.
func (q *CommandQueue) remove(cb *CommandBuffer) {
	q.mu.Lock()
	if i := slices.Index(q.pending, cb); i >= 0 {
		q.pending = slices.Delete(q.pending, i, i+1)
	}
	q.mu.Unlock()
	q.flush()
}

type submitFailure struct {
	cb  *CommandBuffer
	err error
}

// flush submits committed buffers from the head of the pending list.
func (q *CommandQueue) flush() {
	var failed []submitFailure

	q.mu.Lock()
	for len(q.pending) > 0 {
		cb := q.pending[0]
		batch, ok := cb.takeBatch()
		if !ok {
			break
		}
		q.pending[0] = nil
		q.pending = q.pending[1:]

		Logger().Debug("cmt: submitting command buffer",
			"label", batch.Label, "passes", len(batch.Passes))
		if err := q.q.Submit(batch, cb.complete); err != nil {
			failed = append(failed, submitFailure{cb: cb, err: err})
		}
	}
	q.mu.Unlock()

	// Completing releases references, which may re-enter the queue.
	for _, f := range failed {
		f.cb.complete(f.err)
	}
}
