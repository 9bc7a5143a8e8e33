package cmt

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// Kind classifies an Error.
type Kind uint8

const (
	// KindPrecondition is API misuse: a released handle, an operation in
	// the wrong state, a bad binding. The call had no effect.
	KindPrecondition Kind = iota + 1

	// KindAllocation is a failed buffer allocation.
	KindAllocation

	// KindCompilation is a shader compilation or pipeline link failure.
	// Err holds the driver's *CompileError.
	KindCompilation

	// KindSubmission is a command buffer that failed to execute.
	KindSubmission

	// KindNotFound is a lookup that found nothing, e.g. a missing function
	// name or no usable device. It is an expected outcome, not misuse.
	KindNotFound
)

// String returns the string representation of Kind.
func (k Kind) String() string {
	switch k {
	case KindPrecondition:
		return "Precondition"
	case KindAllocation:
		return "Allocation"
	case KindCompilation:
		return "Compilation"
	case KindSubmission:
		return "Submission"
	case KindNotFound:
		return "NotFound"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Error is the error type returned by every fallible cmt operation.
type Error struct {
	Kind Kind

	// Op names the failing operation, e.g. "CommandBuffer.Commit".
	Op string

	// Detail is optional context.
	Detail string

	// Err is the underlying sentinel or driver error.
	Err error
}

func (e *Error) Error() string {
	msg := "cmt: " + e.Op
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error carrying only a Kind equal to e's,
// so that errors.Is(err, &cmt.Error{Kind: cmt.KindAllocation}) matches by kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Err == nil && t.Detail == "" && t.Kind == e.Kind
}

// Sentinel errors. Match them with errors.Is.
var (
	ErrReleased          = errors.New("object has been released")
	ErrNullHandle        = errors.New("null handle")
	ErrEncoderActive     = errors.New("an encoder is still active on the command buffer")
	ErrEncoderEnded      = errors.New("encoder has ended encoding")
	ErrInvalidState      = errors.New("operation not valid in the current state")
	ErrAlreadyCommitted  = errors.New("command buffer already committed")
	ErrNotCommitted      = errors.New("command buffer not committed")
	ErrNoPipeline        = errors.New("no compute pipeline state set")
	ErrBindingIndex      = errors.New("binding index not declared")
	ErrMissingBinding    = errors.New("argument not bound")
	ErrOffsetOutOfRange  = errors.New("offset out of range")
	ErrMisalignedOffset  = errors.New("offset is misaligned")
	ErrThreadgroupSize   = errors.New("invalid threadgroup size")
	ErrEmptyGrid         = errors.New("dispatch grid is empty")
	ErrInvalidLength     = errors.New("invalid length")
	ErrInvalidDescriptor = errors.New("invalid argument descriptor")
	ErrForeignObject     = errors.New("object belongs to a different device")
	ErrDeviceAlreadyOpen = errors.New("a device is already open")
	ErrNotCPUAccessible  = errors.New("buffer storage is not CPU accessible")
	ErrFunctionNotFound  = errors.New("function not found")
	ErrNoDevice          = errors.New("no compute device available")
	ErrAllocation        = errors.New("allocation failed")
)

// IsPrecondition reports whether err is a precondition violation.
func IsPrecondition(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindPrecondition
}

// ValidationMode selects how precondition violations surface.
type ValidationMode uint32

const (
	// ValidationReport returns precondition violations as errors.
	ValidationReport ValidationMode = iota

	// ValidationFailFast panics with the *Error instead of returning it.
	ValidationFailFast
)

// String returns the string representation of ValidationMode.
func (m ValidationMode) String() string {
	switch m {
	case ValidationReport:
		return "Report"
	case ValidationFailFast:
		return "FailFast"
	default:
		return fmt.Sprintf("ValidationMode(%d)", int(m))
	}
}

var validation atomic.Uint32

// SetValidationMode sets the process-wide validation mode.
func SetValidationMode(m ValidationMode) { validation.Store(uint32(m)) }

// Validation returns the process-wide validation mode.
func Validation() ValidationMode { return ValidationMode(validation.Load()) }

// precondition builds a precondition error, logs it, and panics with it in
// fail-fast mode.
func precondition(op string, sentinel error, format string, args ...any) error {
	err := &Error{Kind: KindPrecondition, Op: op, Err: sentinel}
	if format != "" {
		err.Detail = fmt.Sprintf(format, args...)
	}
	Logger().Warn("cmt: precondition failed", "op", op, "err", err)
	if Validation() == ValidationFailFast {
		panic(err)
	}
	return err
}
