package software

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/gogpu/cmt/gpucore"
	"github.com/gogpu/cmt/internal/hostmem"
)

// Memory management errors.
var (
	// ErrMemoryBudgetExceeded is returned when allocation would exceed budget.
	ErrMemoryBudgetExceeded = errors.New("software: memory budget exceeded")

	// ErrMemoryManagerClosed is returned when operating on a closed manager.
	ErrMemoryManagerClosed = errors.New("software: memory manager closed")
)

// Default memory limits.
const (
	// DefaultMaxMemoryMB is the default device memory budget (256 MB).
	DefaultMaxMemoryMB = 256

	// MinMemoryMB is the minimum allowed memory budget (16 MB).
	MinMemoryMB = 16

	// addressBase is the first synthetic GPU address.
	addressBase uint64 = 1 << 32

	// addressAlignment separates buffers in the address space.
	addressAlignment uint64 = 256
)

// MemoryStats contains device memory usage statistics.
type MemoryStats struct {
	// TotalBytes is the total memory budget in bytes.
	TotalBytes uint64

	// UsedBytes is the currently allocated memory in bytes.
	UsedBytes uint64

	// AvailableBytes is the remaining memory budget.
	AvailableBytes uint64

	// BufferCount is the number of live buffers.
	BufferCount int

	// Utilization is the percentage of budget used (0.0 to 1.0).
	Utilization float64
}

// String returns a human-readable string of memory stats.
func (s MemoryStats) String() string {
	return fmt.Sprintf("Memory[%.1f%% used, %d/%d MB, %d buffers]",
		s.Utilization*100,
		s.UsedBytes/(1024*1024),
		s.TotalBytes/(1024*1024),
		s.BufferCount)
}

// MemoryManager tracks buffer allocations against a budget and maps
// synthetic GPU addresses back to buffers.
//
// MemoryManager is safe for concurrent use.
type MemoryManager struct {
	mu sync.RWMutex

	budgetBytes uint64
	usedBytes   uint64

	// byAddr is sorted by address.
	byAddr   []*buffer
	nextAddr uint64

	closed bool
}

// NewMemoryManager creates a memory manager with a budget of maxMB
// megabytes. Values below MinMemoryMB select DefaultMaxMemoryMB.
func NewMemoryManager(maxMB int) *MemoryManager {
	if maxMB < MinMemoryMB {
		maxMB = DefaultMaxMemoryMB
	}
	//nolint:gosec // G115: maxMB is bounded by MinMemoryMB minimum
	return &MemoryManager{
		budgetBytes: uint64(maxMB) * 1024 * 1024,
		nextAddr:    addressBase,
	}
}

// Alloc allocates a zero-filled buffer of length bytes.
func (m *MemoryManager) Alloc(length uint64, mode gpucore.StorageMode) (*buffer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrMemoryManagerClosed
	}
	if length > m.budgetBytes-m.usedBytes {
		return nil, fmt.Errorf("%w: %d bytes requested, %d of %d bytes in use: %w",
			ErrMemoryBudgetExceeded, length, m.usedBytes, m.budgetBytes, gpucore.ErrOutOfMemory)
	}

	block, err := hostmem.Alloc(length)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", gpucore.ErrOutOfMemory, err)
	}

	b := &buffer{
		mgr:    m,
		block:  block,
		length: length,
		mode:   mode,
		addr:   m.nextAddr,
	}
	m.nextAddr += gpucore.AlignUp(length, addressAlignment) + addressAlignment
	m.usedBytes += length
	m.byAddr = append(m.byAddr, b)
	return b, nil
}

// free unregisters b and returns its memory.
func (m *MemoryManager) free(b *buffer) error {
	m.mu.Lock()
	i := sort.Search(len(m.byAddr), func(i int) bool { return m.byAddr[i].addr >= b.addr })
	if i < len(m.byAddr) && m.byAddr[i] == b {
		m.byAddr = append(m.byAddr[:i], m.byAddr[i+1:]...)
		m.usedBytes -= b.length
	}
	m.mu.Unlock()
	return b.block.Free()
}

// Resolve returns the bytes from addr to the end of the buffer containing
// it, or nil when addr is not inside a live buffer.
func (m *MemoryManager) Resolve(addr uint64) []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()

	i := sort.Search(len(m.byAddr), func(i int) bool { return m.byAddr[i].addr > addr })
	if i == 0 {
		return nil
	}
	b := m.byAddr[i-1]
	off := addr - b.addr
	if off >= b.length {
		return nil
	}
	return b.block.Bytes()[off:]
}

// Stats returns current memory usage statistics.
func (m *MemoryManager) Stats() MemoryStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var utilization float64
	if m.budgetBytes > 0 {
		utilization = float64(m.usedBytes) / float64(m.budgetBytes)
	}
	return MemoryStats{
		TotalBytes:     m.budgetBytes,
		UsedBytes:      m.usedBytes,
		AvailableBytes: m.budgetBytes - m.usedBytes,
		BufferCount:    len(m.byAddr),
		Utilization:    utilization,
	}
}

// Budget returns the memory budget in bytes.
func (m *MemoryManager) Budget() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.budgetBytes
}

// Close frees every remaining buffer. Further allocations fail.
func (m *MemoryManager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	remaining := m.byAddr
	m.byAddr = nil
	m.usedBytes = 0
	m.mu.Unlock()

	for _, b := range remaining {
		_ = b.block.Free()
	}
}
