package software

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/cmt/backend"
	"github.com/gogpu/cmt/gpucore"
)

// ErrQueueClosed is returned by Submit after Destroy.
var ErrQueueClosed = errors.New("software: queue destroyed")

// maxGroups bounds the threadgroups of one dispatch.
const maxGroups = 1 << 31

type job struct {
	batch *gpucore.Batch
	done  func(error)
}

// queue executes batches one at a time on its own goroutine.
type queue struct {
	dev *device

	mu     sync.Mutex
	jobs   []job
	closed bool

	wake    chan struct{}
	stopped chan struct{}
}

func newQueue(d *device) *queue {
	q := &queue{
		dev:     d,
		wake:    make(chan struct{}, 1),
		stopped: make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *queue) Submit(b *gpucore.Batch, done func(error)) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	q.jobs = append(q.jobs, job{batch: b, done: done})
	q.mu.Unlock()
	q.signal()
	return nil
}

func (q *queue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *queue) run() {
	defer close(q.stopped)
	for {
		q.mu.Lock()
		if len(q.jobs) == 0 {
			closed := q.closed
			q.mu.Unlock()
			if closed {
				return
			}
			<-q.wake
			continue
		}
		j := q.jobs[0]
		q.jobs[0] = job{}
		q.jobs = q.jobs[1:]
		q.mu.Unlock()

		start := time.Now()
		err := q.execute(j.batch)
		backend.Logger().Debug("software: batch executed",
			"label", j.batch.Label, "passes", len(j.batch.Passes), "elapsed", time.Since(start), "err", err)
		j.done(err)
	}
}

// Destroy stops the queue goroutine once queued batches have finished.
// It does not wait: cmt may release the last queue reference from inside a
// completion callback, which runs on that goroutine.
func (q *queue) Destroy() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.signal()
}

func (q *queue) execute(b *gpucore.Batch) error {
	for pi := range b.Passes {
		pass := &b.Passes[pi]
		for di := range pass.Dispatches {
			if err := q.dispatch(&pass.Dispatches[di]); err != nil {
				return fmt.Errorf("pass %d dispatch %d: %w", pi, di, err)
			}
		}
	}
	return nil
}

func (q *queue) dispatch(d *gpucore.Dispatch) error {
	p, ok := d.Pipeline.(*pipeline)
	if !ok {
		return fmt.Errorf("software: pipeline was not created by this driver")
	}

	bindings := make(map[uint32][]byte, len(d.Bindings))
	for _, bind := range d.Bindings {
		if bind.Buffer == nil {
			bindings[bind.Index] = bind.Bytes
			continue
		}
		buf, ok := bind.Buffer.(*buffer)
		if !ok {
			return fmt.Errorf("software: buffer at index %d was not created by this driver", bind.Index)
		}
		bindings[bind.Index] = buf.bytes()[bind.Offset:]
	}

	groups := d.Groups()
	total := groups.Volume()
	if total >= maxGroups {
		return fmt.Errorf("software: %v threadgroups exceed the dispatch limit", groups)
	}
	grid := d.Threads()

	err := q.dev.pool.Run(int(total), func(i int) error {
		idx := uint64(i)
		id := gpucore.Size{
			Width:  idx % groups.Width,
			Height: (idx / groups.Width) % groups.Height,
			Depth:  idx / (groups.Width * groups.Height),
		}
		return p.kernel(&Threadgroup{
			id:       id,
			size:     d.Threadgroup,
			grid:     grid,
			bindings: bindings,
			mem:      q.dev.mem,
		})
	})
	if err != nil {
		return fmt.Errorf("%s: %w", p.fn.Name(), err)
	}
	return nil
}
