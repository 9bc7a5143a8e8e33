package cmt

import (
	"errors"

	"github.com/gogpu/cmt/internal/handle"
)

// Handle identifies a live cmt object. Handles are what the C library hands
// out; Go callers normally hold the typed object instead.
type Handle = handle.Handle

// objects holds every live cmt object.
var objects = handle.New()

// object is embedded in every cmt type. It ties the Go value to its arena
// record.
type object struct {
	h Handle
}

// register inserts o into the arena with a count of one.
func (o *object) register(value any, destroy func()) {
	o.h = objects.Insert(value, destroy)
}

// Handle returns the object's handle.
func (o *object) Handle() Handle { return o.h }

// RefCount returns the current reference count, or 0 once destroyed.
func (o *object) RefCount() int64 { return objects.Count(o.h) }

// Retain adds a reference. It fails once the object has been destroyed.
func (o *object) Retain() error {
	return handleErr("Retain", objects.Retain(o.h))
}

// Release drops a reference. The last release destroys the object and
// releases the references it held on its parents.
func (o *object) Release() error {
	_, err := objects.Release(o.h)
	return handleErr("Release", err)
}

// alive reports a precondition error when the object has been destroyed.
func (o *object) alive(op string) error {
	if o == nil {
		return precondition(op, ErrNullHandle, "")
	}
	_, err := objects.Get(o.h)
	return handleErr(op, err)
}

// retainInternal takes a reference on behalf of another object.
func (o *object) retainInternal() error { return objects.Retain(o.h) }

// releaseInternal drops a reference taken by retainInternal.
func (o *object) releaseInternal() {
	if _, err := objects.Release(o.h); err != nil {
		Logger().Warn("cmt: internal release failed", "handle", o.h, "err", err)
	}
}

func handleErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, handle.ErrNull):
		return precondition(op, ErrNullHandle, "")
	case errors.Is(err, handle.ErrReleased):
		return precondition(op, ErrReleased, "")
	default:
		return err
	}
}

// Lookup returns the object of type T behind h.
func Lookup[T any](h Handle) (T, error) {
	var zero T
	v, err := objects.Get(h)
	if err != nil {
		return zero, handleErr("Lookup", err)
	}
	t, ok := v.(T)
	if !ok {
		return zero, precondition("Lookup", ErrInvalidState, "handle %v is a %T, not a %T", h, v, zero)
	}
	return t, nil
}

// RetainHandle adds a reference to the object behind h.
func RetainHandle(h Handle) error {
	return handleErr("Retain", objects.Retain(h))
}

// ReleaseHandle drops a reference to the object behind h.
func ReleaseHandle(h Handle) error {
	_, err := objects.Release(h)
	return handleErr("Release", err)
}

// LiveObjects returns the number of live cmt objects.
func LiveObjects() int { return objects.Len() }

// NewHandle registers a plain value, such as a reflection type or an error,
// in the handle arena with a count of one. Nothing is destroyed when the
// count reaches zero; the value is simply forgotten.
func NewHandle(value any) Handle { return objects.Insert(value, nil) }
