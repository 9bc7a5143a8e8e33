package cmt

import "github.com/gogpu/cmt/gpucore"

// Types shared with the driver layer.
type (
	StorageMode    = gpucore.StorageMode
	Size           = gpucore.Size
	CompileOptions = gpucore.CompileOptions
	CompileError   = gpucore.CompileError
	DeviceInfo     = gpucore.DeviceInfo
	Limits         = gpucore.Limits
	Argument       = gpucore.Argument
	DataType       = gpucore.DataType
	ArgumentAccess = gpucore.ArgumentAccess
)

// Storage modes.
const (
	StorageModeShared  = gpucore.StorageModeShared
	StorageModePrivate = gpucore.StorageModePrivate
)

// NewSize returns a Size. Missing dimensions are 1.
func NewSize(dims ...uint64) Size { return gpucore.NewSize(dims...) }
