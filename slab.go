package slab

import (
	"sync"
	"unsafe"

	"go.uber.org/zap"
)

// initOnce guards the process-wide one-shot initialization spec.md
// §4.8 calls for. Go's zero-value sync.Mutex/atomic.Int32 need no
// explicit init the way spec.md's pthread-mutex lineage does, so
// there is nothing here that can produce spec.md §7's
// InitializationFailure; initErr exists to keep the shape available
// should a future backing store need one.
var (
	initOnce sync.Once
	initErr  error
)

func ensureInit() error {
	initOnce.Do(func() {
		ensureGlobalPoolInit()
		log.Info("slab: allocator initialized")
	})
	return initErr
}

// Allocate returns a pointer to at least size bytes of 16-byte-aligned
// storage, or nil if the backing OS mapping failed (spec.md §6,
// OutOfMemory in §7). Requests of 17 to 24 bytes are served from the
// 24-byte class, whose blocks are only guaranteed 8-byte alignment.
// size <= 0 is rounded up to the minimum block size like any other
// small request.
func Allocate(size int) unsafe.Pointer {
	if err := ensureInit(); err != nil {
		return nil
	}

	classIndex, large, largeSize := classify(size)
	if large {
		ptr, err := allocateLarge(defaultPager, largeSize)
		if err != nil {
			log.Warn("slab: large allocation failed", zap.Error(err))
			return nil
		}
		return ptr
	}

	c := acquireThreadCache(defaultPager)
	ptr, err := c.alloc(classIndex, defaultPager)
	if err != nil {
		log.Warn("slab: slab page allocation failed", zap.Error(err))
		return nil
	}
	return ptr
}

// Free releases a block previously returned by Allocate. A nil
// pointer is accepted as a no-op (spec.md §6). Freeing anything else —
// a non-allocator pointer, an already-freed block, or a pointer with a
// corrupted header — is a precondition violation spec.md §7 leaves as
// undefined behavior; this package does not attempt to detect it.
func Free(ptr unsafe.Pointer) {
	if ptr == nil {
		return
	}

	hdr := pageOf(ptr)
	if hdr.isLarge() {
		if err := freeLarge(defaultPager, hdr); err != nil {
			log.Warn("slab: munmap of large object failed", zap.Error(err))
		}
		return
	}

	tid := defaultPager.currentThreadID()
	if hdr.owner == tid {
		c := acquireThreadCache(defaultPager)
		c.freeLocal(hdr, ptr)
		return
	}
	freeRemote(hdr, ptr)
}

// Reallocate implements spec.md §4.7. If the class computed for
// newSize is the same class the existing block already belongs to,
// the pointer is returned unchanged (no copy, no reallocation) — this
// is a same-class test, not merely "big enough": spec.md §8 scenario 6
// shows a shrink from 200 (class 256) to 100 (class 128) reallocating
// even though class 256 could hold 100 bytes, precisely because the
// newly-computed class (128) differs from the current one (256).
// A nil ptr behaves like Allocate. A failed growth allocation leaves
// ptr untouched and returns nil.
func Reallocate(ptr unsafe.Pointer, newSize int) unsafe.Pointer {
	if ptr == nil {
		return Allocate(newSize)
	}

	hdr := pageOf(ptr)
	newClassIndex, newLarge, newLargeSize := classify(newSize)

	if hdr.isLarge() {
		if newLarge && newLargeSize == hdr.sizeIndex {
			return ptr
		}
	} else if !newLarge && newClassIndex == hdr.sizeIndex {
		return ptr
	}

	oldUsable := oldUsableSize(hdr)
	newPtr := Allocate(newSize)
	if newPtr == nil {
		return nil
	}

	copySize := oldUsable
	if newUsable := int(usableSizeFor(newClassIndex, newLarge, newLargeSize)); newUsable < copySize {
		copySize = newUsable
	}
	copyBytes(newPtr, ptr, copySize)
	Free(ptr)
	return newPtr
}

func oldUsableSize(hdr *pageHeader) int {
	if hdr.isLarge() {
		return int(hdr.sizeIndex)
	}
	return int(classSize(hdr.sizeIndex))
}

func usableSizeFor(classIndex int32, large bool, largeSize int32) int32 {
	if large {
		return largeSize
	}
	return classSize(classIndex)
}

func copyBytes(dst, src unsafe.Pointer, n int) {
	d := unsafe.Slice((*byte)(dst), n)
	s := unsafe.Slice((*byte)(src), n)
	copy(d, s)
}
