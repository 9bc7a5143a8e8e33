// Package parallel provides the worker pool the software driver uses to
// execute threadgroups concurrently.
package parallel

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
)

// ErrPoolClosed is returned by Run after Close.
var ErrPoolClosed = errors.New("parallel: worker pool is closed")

// WorkerPool is a fixed set of goroutines executing indexed work items.
//
// Every worker joins each Run and claims indices from a shared counter
// until none are left, so slow threadgroups never leave other workers
// idle. Runs from different goroutines are serviced in arrival order and
// may overlap. WorkerPool is safe for concurrent use; Run must not be
// called from inside a work item.
type WorkerPool struct {
	workers int
	runs    chan *run
	wg      sync.WaitGroup

	// mu guards closed against a concurrent send on runs.
	mu     sync.RWMutex
	closed bool

	active atomic.Int64
}

// run is one call to Run, shared by the workers servicing it.
type run struct {
	n    int
	fn   func(int) error
	next atomic.Int64
	wg   sync.WaitGroup

	mu       sync.Mutex
	firstIdx int
	firstErr error
}

// NewWorkerPool starts a pool of the given size. Zero or negative selects
// GOMAXPROCS.
func NewWorkerPool(workers int) *WorkerPool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	p := &WorkerPool{workers: workers, runs: make(chan *run, workers)}
	p.wg.Add(workers)
	for range workers {
		go p.worker()
	}
	return p
}

func (p *WorkerPool) worker() {
	defer p.wg.Done()
	for r := range p.runs {
		r.drain()
		r.wg.Done()
	}
}

// drain executes unclaimed indices until the run is exhausted.
func (r *run) drain() {
	for {
		i := int(r.next.Add(1) - 1)
		if i >= r.n {
			return
		}
		if err := r.call(i); err != nil {
			r.mu.Lock()
			if i < r.firstIdx {
				r.firstIdx, r.firstErr = i, err
			}
			r.mu.Unlock()
		}
	}
}

func (r *run) call(i int) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = panicError(v)
		}
	}()
	return r.fn(i)
}

func panicError(v any) error {
	if err, ok := v.(error); ok {
		return fmt.Errorf("panic: %w", err)
	}
	return fmt.Errorf("panic: %v", v)
}

// Run calls fn(i) for every i in [0, n) across the workers and waits for
// all calls to return. A panic inside fn is recovered and reported as an
// error. Run returns the error of the lowest failing index; items are not
// cancelled when one fails.
func (p *WorkerPool) Run(n int, fn func(i int) error) error {
	if n <= 0 {
		return nil
	}
	r := &run{n: n, fn: fn, firstIdx: n}
	helpers := min(p.workers, n)

	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return ErrPoolClosed
	}
	p.active.Add(1)
	r.wg.Add(helpers)
	for range helpers {
		p.runs <- r
	}
	p.mu.RUnlock()

	r.wg.Wait()
	p.active.Add(-1)
	return r.firstErr
}

// Close stops the workers once every accepted Run has finished. It is safe
// to call more than once.
func (p *WorkerPool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.runs)
	p.mu.Unlock()
	p.wg.Wait()
}

// Workers returns the number of worker goroutines.
func (p *WorkerPool) Workers() int { return p.workers }

// IsRunning reports whether the pool still accepts work.
func (p *WorkerPool) IsRunning() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return !p.closed
}

// Active returns the number of Run calls in progress.
func (p *WorkerPool) Active() int { return int(p.active.Load()) }
