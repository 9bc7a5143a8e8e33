package backend

import (
	"errors"
)

// Common backend errors.
var (
	// ErrBackendNotAvailable is returned when a requested driver is not
	// registered.
	ErrBackendNotAvailable = errors.New("backend: not available")

	// ErrNoDriver is returned by OpenDefault when no registered driver
	// could open a device.
	ErrNoDriver = errors.New("backend: no driver could open a device")
)

// Driver name constants.
const (
	// BackendMetal is the name of the Metal driver (darwin, cgo).
	BackendMetal = "metal"
	// BackendWGPU is the name of the gogpu/wgpu HAL driver.
	BackendWGPU = "wgpu"
	// BackendSoftware is the name of the CPU reference driver.
	BackendSoftware = "software"
)
