package gpucore

import "fmt"

// Batch is the recorded content of one committed command buffer.
type Batch struct {
	Label  string
	Passes []Pass
}

// Pass is the work recorded by one compute encoder.
type Pass struct {
	Label      string
	Dispatches []Dispatch
}

// DispatchMode selects how a dispatch grid is interpreted.
type DispatchMode uint8

const (
	// DispatchThreads means Grid counts threads. Threadgroups at the edge of
	// the grid are padded; kernels compare their position against Grid.
	DispatchThreads DispatchMode = iota

	// DispatchThreadgroups means Grid counts threadgroups.
	DispatchThreadgroups
)

// String returns the string representation of DispatchMode.
func (m DispatchMode) String() string {
	switch m {
	case DispatchThreads:
		return "Threads"
	case DispatchThreadgroups:
		return "Threadgroups"
	default:
		return fmt.Sprintf("DispatchMode(%d)", int(m))
	}
}

// Binding is one buffer or inline-bytes argument of a dispatch.
type Binding struct {
	// Index is the argument index the shader declares.
	Index uint32

	// Buffer and Offset bind a device buffer. Buffer is nil for inline bytes.
	Buffer Buffer
	Offset uint64

	// Bytes holds a copy of the data passed to SetBytes.
	Bytes []byte
}

// Dispatch is a single kernel launch.
type Dispatch struct {
	Pipeline    ComputePipeline
	Bindings    []Binding
	Mode        DispatchMode
	Grid        Size
	Threadgroup Size
}

// Groups returns the number of threadgroups the dispatch launches.
func (d *Dispatch) Groups() Size {
	if d.Mode == DispatchThreadgroups {
		return d.Grid
	}
	return d.Grid.CeilDiv(d.Threadgroup)
}

// Threads returns the extent kernels guard against: the exact thread grid
// for DispatchThreads, or the padded grid for DispatchThreadgroups.
func (d *Dispatch) Threads() Size {
	if d.Mode == DispatchThreads {
		return d.Grid
	}
	return d.Grid.Mul(d.Threadgroup)
}

// Binding returns the binding with the given index.
func (d *Dispatch) Binding(index uint32) (Binding, bool) {
	for _, b := range d.Bindings {
		if b.Index == index {
			return b, true
		}
	}
	return Binding{}, false
}
