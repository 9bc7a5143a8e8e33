// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package handle implements the reference-counted handle arena that backs
// every object exposed by cmt.
//
// A Handle packs a slot index and a generation counter. Slots are recycled
// through a free list; bumping the generation on every release means a
// handle that outlived its object is detected as stale instead of aliasing
// whatever object reuses the slot. Handle 0 is never issued.
package handle

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// Handle is an opaque identifier of an arena record.
type Handle uint64

// Null is the zero handle. It never refers to a live record.
const Null Handle = 0

// Arena errors.
var (
	// ErrNull is returned for operations on the Null handle.
	ErrNull = errors.New("handle: null handle")

	// ErrReleased is returned for handles whose record has been destroyed.
	ErrReleased = errors.New("handle: handle has been released")
)

func makeHandle(slot, gen uint32) Handle {
	return Handle(uint64(gen)<<32 | uint64(slot+1))
}

func (h Handle) slot() (uint32, bool) {
	lo := uint32(h)
	if lo == 0 {
		return 0, false
	}
	return lo - 1, true
}

func (h Handle) generation() uint32 { return uint32(h >> 32) }

// String returns the handle formatted as slot:generation.
func (h Handle) String() string {
	if h == Null {
		return "null"
	}
	s, _ := h.slot()
	return fmt.Sprintf("%d:%d", s, h.generation())
}

// record is one live object plus its reference count.
type record struct {
	value   any
	destroy func()
	refs    atomic.Int64
}

type slot struct {
	gen uint32
	rec *record
}

// Arena is a table of reference-counted records.
//
// Arena is safe for concurrent use. Destroy callbacks run outside the arena
// lock, so they may themselves release other handles.
type Arena struct {
	mu    sync.RWMutex
	slots []slot
	free  []uint32
	live  int
}

// New creates an empty arena.
func New() *Arena {
	return &Arena{}
}

// Insert stores value with a reference count of one and returns its handle.
// destroy runs exactly once, when the count drops to zero; it may be nil.
func (a *Arena) Insert(value any, destroy func()) Handle {
	rec := &record{value: value, destroy: destroy}
	rec.refs.Store(1)

	a.mu.Lock()
	defer a.mu.Unlock()

	var idx uint32
	if n := len(a.free); n > 0 {
		idx = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		//nolint:gosec // G115: slot count is bounded by addressable memory
		idx = uint32(len(a.slots))
		a.slots = append(a.slots, slot{gen: 1})
	}
	a.slots[idx].rec = rec
	a.live++
	return makeHandle(idx, a.slots[idx].gen)
}

// lookup resolves h to its record without touching the count.
func (a *Arena) lookup(h Handle) (*record, error) {
	idx, ok := h.slot()
	if !ok {
		return nil, ErrNull
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	if int(idx) >= len(a.slots) {
		return nil, ErrReleased
	}
	s := a.slots[idx]
	if s.gen != h.generation() || s.rec == nil {
		return nil, ErrReleased
	}
	return s.rec, nil
}

// Get returns the value stored under h.
func (a *Arena) Get(h Handle) (any, error) {
	rec, err := a.lookup(h)
	if err != nil {
		return nil, err
	}
	if rec.refs.Load() <= 0 {
		return nil, ErrReleased
	}
	return rec.value, nil
}

// Retain increments the reference count of h.
// A record whose count already reached zero cannot be revived.
func (a *Arena) Retain(h Handle) error {
	rec, err := a.lookup(h)
	if err != nil {
		return err
	}
	for {
		n := rec.refs.Load()
		if n <= 0 {
			return ErrReleased
		}
		if rec.refs.CompareAndSwap(n, n+1) {
			return nil
		}
	}
}

// Release decrements the reference count of h. When the count reaches zero
// the slot is recycled and the destroy callback runs; destroyed reports
// whether this call was the one that destroyed the record.
func (a *Arena) Release(h Handle) (destroyed bool, err error) {
	rec, err := a.lookup(h)
	if err != nil {
		return false, err
	}
	n := rec.refs.Add(-1)
	switch {
	case n > 0:
		return false, nil
	case n < 0:
		// Lost a race with the releasing call.
		return false, ErrReleased
	}

	idx, _ := h.slot()
	a.mu.Lock()
	if a.slots[idx].rec == rec {
		a.slots[idx].rec = nil
		a.slots[idx].gen++
		if a.slots[idx].gen == 0 {
			a.slots[idx].gen = 1
		}
		a.free = append(a.free, idx)
		a.live--
	}
	a.mu.Unlock()

	if rec.destroy != nil {
		rec.destroy()
	}
	return true, nil
}

// Count returns the current reference count of h, or 0 for a dead handle.
func (a *Arena) Count(h Handle) int64 {
	rec, err := a.lookup(h)
	if err != nil {
		return 0
	}
	if n := rec.refs.Load(); n > 0 {
		return n
	}
	return 0
}

// Len returns the number of live records.
func (a *Arena) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.live
}
