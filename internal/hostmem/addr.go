package hostmem

import "unsafe"

// Addr returns the address of the first byte of b, or 0 after Free.
func (b *Block) Addr() uintptr {
	return uintptrOf(b.Bytes())
}

func uintptrOf(p []byte) uintptr {
	if len(p) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&p[0]))
}
