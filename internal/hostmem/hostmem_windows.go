//go:build windows

package hostmem

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

func pageSize() int { return 4096 }

func mapAnon(n int) ([]byte, error) {
	addr, err := windows.VirtualAlloc(0, uintptr(n), windows.MEM_COMMIT|windows.MEM_RESERVE, windows.PAGE_READWRITE)
	if err != nil {
		return nil, err
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), n), nil //nolint:govet // VirtualAlloc memory is not managed by the Go GC
}

func unmapAnon(b []byte) error {
	return windows.VirtualFree(uintptr(unsafe.Pointer(&b[0])), 0, windows.MEM_RELEASE)
}
