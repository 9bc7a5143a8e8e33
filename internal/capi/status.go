// Package capi implements the C library entry points over handle numbers.
//
// Every function here is what a cmd/libcmt export calls after converting its
// C arguments. Keeping the logic on this side of the cgo boundary lets it be
// tested with plain Go tests.
//
// Results follow one convention: a Status is returned for every call, and
// objects come back as handles the caller owns and must release with
// Release. Reflection values and errors are handles too.
package capi

import (
	"errors"
	"sync/atomic"

	"github.com/gogpu/cmt"
)

// Handle is a cmt handle as seen by C.
type Handle = cmt.Handle

// Status is the integer result code of every entry point.
type Status int32

// Status codes. The values are part of the C ABI.
const (
	StatusOK            Status = 0
	StatusInvalidHandle Status = 1
	StatusPrecondition  Status = 2
	StatusAllocation    Status = 3
	StatusCompilation   Status = 4
	StatusSubmission    Status = 5
	StatusNotFound      Status = 6
	StatusInternal      Status = 7
)

// String returns the string representation of Status.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusInvalidHandle:
		return "InvalidHandle"
	case StatusPrecondition:
		return "Precondition"
	case StatusAllocation:
		return "Allocation"
	case StatusCompilation:
		return "Compilation"
	case StatusSubmission:
		return "Submission"
	case StatusNotFound:
		return "NotFound"
	default:
		return "Internal"
	}
}

// StatusOf maps an error returned by package cmt to its status code.
func StatusOf(err error) Status {
	if err == nil {
		return StatusOK
	}
	if errors.Is(err, cmt.ErrNullHandle) || errors.Is(err, cmt.ErrReleased) {
		return StatusInvalidHandle
	}
	var e *cmt.Error
	if !errors.As(err, &e) {
		return StatusInternal
	}
	switch e.Kind {
	case cmt.KindPrecondition:
		if errors.Is(err, cmt.ErrInvalidState) && e.Op == "Lookup" {
			return StatusInvalidHandle
		}
		return StatusPrecondition
	case cmt.KindAllocation:
		return StatusAllocation
	case cmt.KindCompilation:
		return StatusCompilation
	case cmt.KindSubmission:
		return StatusSubmission
	case cmt.KindNotFound:
		return StatusNotFound
	default:
		return StatusInternal
	}
}

var lastError atomic.Pointer[string]

// LastError returns the message of the most recent failed call in the
// process, or "" when nothing has failed yet.
func LastError() string {
	if p := lastError.Load(); p != nil {
		return *p
	}
	return ""
}

// fail records err as the last error and returns its status.
func fail(err error) Status {
	if err == nil {
		return StatusOK
	}
	msg := err.Error()
	lastError.Store(&msg)
	return StatusOf(err)
}

// lookup resolves h to a T, recording the failure.
func lookup[T any](h Handle) (T, Status) {
	v, err := cmt.Lookup[T](h)
	return v, fail(err)
}

// Retain adds a reference to any handle.
func Retain(h Handle) Status { return fail(cmt.RetainHandle(h)) }

// Release drops a reference to any handle.
func Release(h Handle) Status { return fail(cmt.ReleaseHandle(h)) }

// LiveObjects returns the number of live handles.
func LiveObjects() int { return cmt.LiveObjects() }
