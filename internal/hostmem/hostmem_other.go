//go:build !unix && !windows

package hostmem

// Platforms without an anonymous mapping API fall back to the Go heap. The
// package-level list keeps blocks reachable until Free.

import "sync"

var (
	heapMu     sync.Mutex
	heapBlocks = make(map[*byte][]byte)
)

func pageSize() int { return 4096 }

func mapAnon(n int) ([]byte, error) {
	b := make([]byte, n)
	heapMu.Lock()
	heapBlocks[&b[0]] = b
	heapMu.Unlock()
	return b, nil
}

func unmapAnon(b []byte) error {
	heapMu.Lock()
	delete(heapBlocks, &b[0])
	heapMu.Unlock()
	return nil
}
