package slab

import (
	"unsafe"

	"go.uber.org/zap"
)

// allocateLarge implements spec.md §4.4: any request exceeding the
// largest size class gets a dedicated mapping sized to the (16-byte
// rounded) request plus the page header, with the header's sizeIndex
// recording the raw byte size as a sentinel — any value >=
// numSizeClasses unambiguously means "large" (spec.md §3's invariant),
// which always holds here since a large request is by definition
// bigger than the largest class (2048) and therefore bigger than
// numSizeClasses (15).
func allocateLarge(os osPager, size int32) (unsafe.Pointer, error) {
	p, err := newLargePage(os, size)
	if err != nil {
		return nil, err
	}
	log.Debug("slab: mapped large object", zap.Int("bytes", int(size)))
	return p.largeBlock(), nil
}

// freeLarge releases a large object's dedicated mapping in full
// (spec.md §4.4: "on free, the mapping is released in full").
func freeLarge(os osPager, p *pageHeader) error {
	total := pageHeaderSize + uintptr(p.sizeIndex)
	return os.unmap(unsafe.Pointer(p), total)
}
