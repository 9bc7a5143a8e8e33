// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package handle

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

// =============================================================================
// Basic lifetime
// =============================================================================

func TestArena_InsertGet(t *testing.T) {
	a := New()
	h := a.Insert("value", nil)
	if h == Null {
		t.Fatal("Insert() returned Null")
	}
	v, err := a.Get(h)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if v != "value" {
		t.Errorf("Get() = %v, want %q", v, "value")
	}
	if got := a.Count(h); got != 1 {
		t.Errorf("Count() = %d, want 1", got)
	}
	if got := a.Len(); got != 1 {
		t.Errorf("Len() = %d, want 1", got)
	}
}

func TestArena_NullHandle(t *testing.T) {
	a := New()
	if _, err := a.Get(Null); !errors.Is(err, ErrNull) {
		t.Errorf("Get(Null) error = %v, want ErrNull", err)
	}
	if err := a.Retain(Null); !errors.Is(err, ErrNull) {
		t.Errorf("Retain(Null) error = %v, want ErrNull", err)
	}
	if _, err := a.Release(Null); !errors.Is(err, ErrNull) {
		t.Errorf("Release(Null) error = %v, want ErrNull", err)
	}
}

func TestArena_RetainReleaseDestroysOnce(t *testing.T) {
	tests := []struct {
		name    string
		retains int
	}{
		{"no retains", 0},
		{"one retain", 1},
		{"many retains", 17},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := New()
			var destroyed atomic.Int32
			h := a.Insert(struct{}{}, func() { destroyed.Add(1) })

			for range tt.retains {
				if err := a.Retain(h); err != nil {
					t.Fatalf("Retain() error = %v", err)
				}
			}
			for i := range tt.retains {
				done, err := a.Release(h)
				if err != nil {
					t.Fatalf("Release() #%d error = %v", i, err)
				}
				if done {
					t.Fatalf("Release() #%d destroyed early", i)
				}
				if destroyed.Load() != 0 {
					t.Fatalf("destroy ran after release #%d", i)
				}
			}

			done, err := a.Release(h)
			if err != nil || !done {
				t.Fatalf("final Release() = (%v, %v), want (true, nil)", done, err)
			}
			if got := destroyed.Load(); got != 1 {
				t.Errorf("destroy count = %d, want 1", got)
			}

			// N+1 release must fail without destroying again.
			if _, err := a.Release(h); !errors.Is(err, ErrReleased) {
				t.Errorf("extra Release() error = %v, want ErrReleased", err)
			}
			if got := destroyed.Load(); got != 1 {
				t.Errorf("destroy count after extra release = %d, want 1", got)
			}
			if _, err := a.Get(h); !errors.Is(err, ErrReleased) {
				t.Errorf("Get() after release error = %v, want ErrReleased", err)
			}
			if err := a.Retain(h); !errors.Is(err, ErrReleased) {
				t.Errorf("Retain() after release error = %v, want ErrReleased", err)
			}
		})
	}
}

func TestArena_StaleHandleAfterReuse(t *testing.T) {
	a := New()
	h1 := a.Insert(1, nil)
	if _, err := a.Release(h1); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	h2 := a.Insert(2, nil)
	if h1 == h2 {
		t.Fatalf("reused slot produced identical handle %v", h1)
	}
	if _, err := a.Get(h1); !errors.Is(err, ErrReleased) {
		t.Errorf("Get(stale) error = %v, want ErrReleased", err)
	}
	v, err := a.Get(h2)
	if err != nil || v != 2 {
		t.Errorf("Get(h2) = (%v, %v), want (2, nil)", v, err)
	}
}

func TestArena_DestroyMayReleaseOthers(t *testing.T) {
	a := New()
	var parentDestroyed bool
	parent := a.Insert("parent", func() { parentDestroyed = true })
	child := a.Insert("child", func() {
		if _, err := a.Release(parent); err != nil {
			t.Errorf("release parent from child destroy: %v", err)
		}
	})

	if _, err := a.Release(child); err != nil {
		t.Fatalf("Release(child) error = %v", err)
	}
	if !parentDestroyed {
		t.Error("parent was not destroyed through child destroy callback")
	}
	if a.Len() != 0 {
		t.Errorf("Len() = %d, want 0", a.Len())
	}
}

// =============================================================================
// Concurrency
// =============================================================================

func TestArena_ConcurrentRetainRelease(t *testing.T) {
	a := New()
	var destroyed atomic.Int32
	h := a.Insert(struct{}{}, func() { destroyed.Add(1) })

	const goroutines = 32
	const perGoroutine = 100

	var wg sync.WaitGroup
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perGoroutine {
				if err := a.Retain(h); err != nil {
					t.Errorf("Retain() error = %v", err)
					return
				}
				if _, err := a.Release(h); err != nil {
					t.Errorf("Release() error = %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	if destroyed.Load() != 0 {
		t.Fatal("object destroyed while a reference was still held")
	}
	if got := a.Count(h); got != 1 {
		t.Errorf("Count() = %d, want 1", got)
	}
	if _, err := a.Release(h); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if got := destroyed.Load(); got != 1 {
		t.Errorf("destroy count = %d, want 1", got)
	}
}

func TestArena_ConcurrentFinalRelease(t *testing.T) {
	a := New()
	var destroyed atomic.Int32
	h := a.Insert(struct{}{}, func() { destroyed.Add(1) })

	var wg sync.WaitGroup
	var successes atomic.Int32
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := a.Release(h); err == nil {
				successes.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := successes.Load(); got != 1 {
		t.Errorf("successful releases = %d, want 1", got)
	}
	if got := destroyed.Load(); got != 1 {
		t.Errorf("destroy count = %d, want 1", got)
	}
}

func TestHandle_String(t *testing.T) {
	if got := Null.String(); got != "null" {
		t.Errorf("Null.String() = %q, want %q", got, "null")
	}
	if got := makeHandle(3, 7).String(); got != "3:7" {
		t.Errorf("String() = %q, want %q", got, "3:7")
	}
}
