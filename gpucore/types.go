package gpucore

import (
	"errors"
	"fmt"
)

// Driver errors shared by all backends.
var (
	// ErrNoDevice is returned when a driver finds no usable compute device.
	ErrNoDevice = errors.New("gpucore: no compute device available")

	// ErrOutOfMemory is returned when a driver cannot satisfy an allocation.
	ErrOutOfMemory = errors.New("gpucore: out of device memory")

	// ErrUnsupported is returned for features a driver does not implement.
	ErrUnsupported = errors.New("gpucore: operation not supported by driver")
)

// StorageMode selects where a buffer's memory lives.
type StorageMode uint8

const (
	// StorageModeShared memory is visible to both CPU and GPU.
	StorageModeShared StorageMode = iota

	// StorageModePrivate memory is only accessible to the GPU.
	StorageModePrivate
)

// String returns the string representation of StorageMode.
func (m StorageMode) String() string {
	switch m {
	case StorageModeShared:
		return "Shared"
	case StorageModePrivate:
		return "Private"
	default:
		return fmt.Sprintf("StorageMode(%d)", int(m))
	}
}

// CPUAccessible reports whether the CPU may map buffers of this mode.
func (m StorageMode) CPUAccessible() bool { return m == StorageModeShared }

// Size is a three-dimensional extent, used for grids and threadgroups.
type Size struct {
	Width, Height, Depth uint64
}

// NewSize returns a Size. Missing dimensions are treated as 1.
func NewSize(dims ...uint64) Size {
	s := Size{Width: 1, Height: 1, Depth: 1}
	if len(dims) > 0 {
		s.Width = dims[0]
	}
	if len(dims) > 1 {
		s.Height = dims[1]
	}
	if len(dims) > 2 {
		s.Depth = dims[2]
	}
	return s
}

// Volume returns Width*Height*Depth.
func (s Size) Volume() uint64 { return s.Width * s.Height * s.Depth }

// IsZero reports whether any dimension is zero.
func (s Size) IsZero() bool { return s.Width == 0 || s.Height == 0 || s.Depth == 0 }

// CeilDiv returns the number of groups of size g needed to cover s.
func (s Size) CeilDiv(g Size) Size {
	return Size{
		Width:  ceilDiv(s.Width, g.Width),
		Height: ceilDiv(s.Height, g.Height),
		Depth:  ceilDiv(s.Depth, g.Depth),
	}
}

// Mul returns the component-wise product of s and o.
func (s Size) Mul(o Size) Size {
	return Size{Width: s.Width * o.Width, Height: s.Height * o.Height, Depth: s.Depth * o.Depth}
}

func (s Size) String() string {
	return fmt.Sprintf("(%d, %d, %d)", s.Width, s.Height, s.Depth)
}

func ceilDiv(a, b uint64) uint64 {
	if b == 0 {
		return 0
	}
	return (a + b - 1) / b
}

// Language is the shading language a device compiles.
type Language uint8

const (
	// LanguageWGSL is the WebGPU Shading Language.
	LanguageWGSL Language = iota

	// LanguageMSL is the Metal Shading Language.
	LanguageMSL
)

// String returns the string representation of Language.
func (l Language) String() string {
	switch l {
	case LanguageWGSL:
		return "WGSL"
	case LanguageMSL:
		return "MSL"
	default:
		return fmt.Sprintf("Language(%d)", int(l))
	}
}

// DeviceInfo describes an opened device.
type DeviceInfo struct {
	// Name is the adapter name reported by the driver.
	Name string

	// Driver is the registry name of the driver that opened the device.
	Driver string

	// Language is the shading language accepted by NewLibrary.
	Language Language

	// UnifiedMemory reports whether shared buffers need no copies.
	UnifiedMemory bool
}

// Limits are the device limits cmt validates against.
type Limits struct {
	// MaxThreadsPerThreadgroup bounds the product of a threadgroup size.
	MaxThreadsPerThreadgroup uint64

	// MaxBufferLength is the largest single allocation.
	MaxBufferLength uint64

	// MaxBufferBindings is the number of buffer argument slots.
	MaxBufferBindings uint32

	// MaxInlineBytes is the largest payload accepted by SetBytes.
	MaxInlineBytes uint64
}

// DefaultLimits returns conservative limits every driver can honour.
func DefaultLimits() Limits {
	return Limits{
		MaxThreadsPerThreadgroup: 256,
		MaxBufferLength:          256 << 20,
		MaxBufferBindings:        31,
		MaxInlineBytes:           4096,
	}
}

// CompileOptions configures shader compilation.
type CompileOptions struct {
	// PreprocessorMacros are substituted into the source before compiling.
	// Keys are identifiers; values replace whole-word occurrences.
	PreprocessorMacros map[string]string

	// FastMathEnabled permits floating-point optimisations that break
	// strict IEEE semantics.
	FastMathEnabled bool

	// LanguageVersion requests a language revision, e.g. "3.0" for MSL.
	// Empty selects the driver default.
	LanguageVersion string
}

// CompileError is the structured error reported by a shader compiler or
// pipeline linker.
type CompileError struct {
	// Domain identifies the reporting subsystem, e.g. "naga" or
	// "MTLLibraryErrorDomain".
	Domain string

	// Code is the subsystem-specific error code.
	Code int

	// Description is the human-readable compiler output.
	Description string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Domain, e.Code, e.Description)
}
