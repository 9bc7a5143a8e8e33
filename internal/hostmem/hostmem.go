// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package hostmem allocates page-aligned, zero-filled memory outside the Go
// heap.
//
// Shared buffers are handed to C callers as raw pointers and may be read by
// driver goroutines while the owning Go object is unreachable, so their
// storage must not move or be collected. Memory returned by Alloc lives until
// Free is called.
package hostmem

import (
	"errors"
	"fmt"
)

// ErrZeroLength is returned when Alloc is asked for zero bytes.
var ErrZeroLength = errors.New("hostmem: zero-length allocation")

// Block is one allocation.
type Block struct {
	data []byte
	size int
}

// Alloc returns a zero-filled block of at least n bytes. Bytes returns
// exactly n bytes.
func Alloc(n uint64) (*Block, error) {
	if n == 0 {
		return nil, ErrZeroLength
	}
	if n > uint64(maxInt) {
		return nil, fmt.Errorf("hostmem: allocation of %d bytes exceeds address space", n)
	}
	size := int(n)
	rounded := roundToPage(size)
	data, err := mapAnon(rounded)
	if err != nil {
		return nil, fmt.Errorf("hostmem: allocate %d bytes: %w", n, err)
	}
	return &Block{data: data, size: size}, nil
}

// Bytes returns the usable bytes of b, or nil after Free.
func (b *Block) Bytes() []byte {
	if b == nil || b.data == nil {
		return nil
	}
	return b.data[:b.size:b.size]
}

// Len returns the requested size of b.
func (b *Block) Len() int { return b.size }

// Free returns the memory to the operating system. Free is idempotent.
func (b *Block) Free() error {
	if b == nil || b.data == nil {
		return nil
	}
	data := b.data
	b.data = nil
	return unmapAnon(data)
}

const maxInt = int(^uint(0) >> 1)

func roundToPage(n int) int {
	ps := pageSize()
	return (n + ps - 1) / ps * ps
}
