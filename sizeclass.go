// Package slab implements a segregated-fit slab allocator with
// thread-local caches and cross-thread remote-free support, backed by
// anonymous virtual memory pages obtained from the host OS.
//
// See malloc.go-era runtime design: page-based slabs, per-size-class
// free lists, a per-thread cache for the common allocation path, and a
// global pool of fully-empty pages available for adoption by any
// thread.
package slab

// Size classes. Computed once; a requested length is rounded up to
// the smallest class whose size is >= the request. A request larger
// than the biggest class is a large object served by a dedicated
// mapping (see large.go).
//
// This table wastes at most 33% per class (1024->1536 comes closest:
// a 1025-byte request leaves 511 of 1536 bytes unused);
// it is intentionally small and hand-picked rather than generated the
// way msize.go generates 67 classes for the real runtime allocator —
// this allocator only needs to cover small-object workloads, not every
// size up to 32KiB.
var sizeClasses = [...]int32{
	16, 24, 32, 48, 64, 96, 128, 192, 256, 384, 512, 768, 1024, 1536, 2048,
}

const numSizeClasses = len(sizeClasses)

const maxClassSize = int32(2048)

// blockHeaderSize is the floor on any request: a free block must be
// large enough to hold the doubly-linked free-list pointers used
// while it sits on a local or remote free list. Mirrors original_source's
// align() floor of sizeof(struct header).
const blockHeaderSize = int32(16) // two *freeBlock pointers, 8 bytes each

// blockAlignment is the alignment of every block returned to a caller
// (spec.md §3), except in the 24-byte class: its blocks sit at 24-byte
// strides after the 16-byte-aligned header, so every other one is only
// 8-byte aligned.
const blockAlignment = 16

// classify resolves a requested length to either a slab size-class
// index or a large-object byte size. large is true iff the request
// exceeds the largest size class (strictly greater than 2048 bytes);
// this resolves the "strictly-greater-than vs >=" ambiguity spec.md's
// design notes flag, taking the recommended strictly-greater-than
// reading so 2048-byte requests remain slab-served.
func classify(requested int) (classIndex int32, large bool, largeSize int32) {
	n := int32(requested)
	if n < blockHeaderSize {
		n = blockHeaderSize
	}
	if n <= maxClassSize {
		for i, sz := range sizeClasses {
			if sz >= n {
				return int32(i), false, 0
			}
		}
	}
	return -1, true, roundUp16(n)
}

// roundUp16 rounds n up to the next multiple of 16, matching
// original_source's align(): `(len + 15) & ~15`.
func roundUp16(n int32) int32 {
	return (n + 15) &^ 15
}

// classSize returns the block size in bytes for a slab class index.
func classSize(classIndex int32) int32 {
	return sizeClasses[classIndex]
}
