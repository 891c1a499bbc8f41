package slab

import (
	"sync"
	"sync/atomic"
	"unsafe"
)

// pageSize is the fixed backing-page size for slab pages (spec.md §3).
// Large objects use a dedicated mapping sized to the request instead.
const pageSize = 4096

// freeBlock overlays the first bytes of a free block with the
// doubly-linked free-list pointers. It is never read once the block
// has been handed to a caller. Mirrors the teacher's gclink/mlink
// overlay (src/runtime/mcache.go, mfixalloc.go), generalized to doubly
// linked per spec.md's data model.
type freeBlock struct {
	next, prev *freeBlock
}

func blockAt(ptr unsafe.Pointer) *freeBlock {
	return (*freeBlock)(ptr)
}

// pageHeader sits at offset 0 of every slab or large-object page. A
// pointer anywhere inside a slab page masks down to this header
// (pageOf below) — this is why slab pages must come from page-aligned
// mmap'd regions and must never be relocated (spec.md §4.1).
//
// Fields are grouped the way mcache.go groups its hot fields: the
// ones touched on every local allocate/free first, the remote-free
// state (shared across threads) kept separate and padded to its own
// cache line so owner-thread traffic never false-shares with a
// remote freer's writes.
type pageHeader struct {
	// list membership: exactly one of (some thread's local pageList
	// for its class) or (the global pageList for its class), per
	// spec.md's page-membership invariant.
	prev, next *pageHeader
	list       *pageList

	localFreeHead *freeBlock
	owner         int32 // OS thread id of the current local owner
	sizeIndex     int32 // class index for slab pages; raw byte size (> numSizeClasses) for large objects
	blocksUsed    int32
	totalBlocks   int32

	_ [24]byte // pad the hot fields out before the remote section

	remoteLock    sync.Mutex
	remoteFreeHead *freeBlock
	remoteFrees    atomic.Int32

	_ [32]byte // cache-line pad so remote traffic doesn't false-share the hot fields above
}

// pageHeaderSize is rounded up to a 16-byte boundary so the first
// block after the header keeps the required block alignment.
const pageHeaderSizeRaw = unsafe.Sizeof(pageHeader{})

var pageHeaderSize = roundUpUintptr16(pageHeaderSizeRaw)

func roundUpUintptr16(n uintptr) uintptr {
	return (n + 15) &^ 15
}

// pageOf recovers the page header for any pointer returned by
// allocate, by masking off the low bits of the address — the
// page-aligned-mmap trick spec.md §4.1 requires.
func pageOf(ptr unsafe.Pointer) *pageHeader {
	return (*pageHeader)(unsafe.Pointer(uintptr(ptr) &^ uintptr(pageSize-1)))
}

func (p *pageHeader) isLarge() bool {
	return int(p.sizeIndex) >= numSizeClasses
}

func (p *pageHeader) inList() bool {
	return p.list != nil
}

// blocksPerPage returns how many blocks of the given class fit after
// the header, matching spec.md §3's
// floor((4096 - sizeof(page_header)) / class_size).
func blocksPerPage(classIndex int32) int32 {
	usable := uintptr(pageSize) - pageHeaderSize
	return int32(usable / uintptr(classSize(classIndex)))
}

// newSlabPage maps a fresh 4096-byte page, advises the OS against
// transparent huge pages, and sweeps the region after the header into
// a doubly-linked local free list of blocks — the "fresh page" branch
// of spec.md §4.3 step 3, grounded on mcentral.go's grow() chaining
// and original_source's pre_populate().
func newSlabPage(os osPager, classIndex int32, owner int32) (*pageHeader, error) {
	mem, err := os.mapPage(pageSize)
	if err != nil {
		return nil, err
	}
	os.noHugePage(mem, pageSize)

	hdr := (*pageHeader)(mem)
	*hdr = pageHeader{}
	hdr.owner = owner
	hdr.sizeIndex = classIndex
	hdr.totalBlocks = blocksPerPage(classIndex)
	// The page's first block is handed to the caller as part of this
	// same construction (spec.md §4.3 step 3: "blocks_used = 1"), so
	// the header already reflects one outstanding block before the
	// free list is even built below.
	hdr.blocksUsed = 1

	size := uintptr(classSize(classIndex))
	base := uintptr(mem) + pageHeaderSize

	var head, tail *freeBlock
	for i := int32(0); i < hdr.totalBlocks; i++ {
		b := blockAt(unsafe.Pointer(base + uintptr(i)*size))
		b.prev = tail
		if tail != nil {
			tail.next = b
		} else {
			head = b
		}
		tail = b
	}
	hdr.localFreeHead = head
	return hdr, nil
}

// newLargePage maps a dedicated region for a large object: the header
// plus the (already 16-byte-rounded) requested size, per spec.md §4.4.
func newLargePage(os osPager, size int32) (*pageHeader, error) {
	mem, err := os.mapPage(pageHeaderSize + uintptr(size))
	if err != nil {
		return nil, err
	}
	hdr := (*pageHeader)(mem)
	*hdr = pageHeader{}
	hdr.sizeIndex = size
	return hdr, nil
}

func (p *pageHeader) largeBlock() unsafe.Pointer {
	return unsafe.Pointer(uintptr(unsafe.Pointer(p)) + pageHeaderSize)
}

// popLocalFree pops the head of the page's local free list. Callers
// must have already checked localFreeHead != nil.
func (p *pageHeader) popLocalFree() unsafe.Pointer {
	b := p.localFreeHead
	p.localFreeHead = b.next
	if p.localFreeHead != nil {
		p.localFreeHead.prev = nil
	}
	b.next, b.prev = nil, nil
	return unsafe.Pointer(b)
}

// pushLocalFree prepends a block to the page's local free list. Only
// ever called by the page's owning thread.
func (p *pageHeader) pushLocalFree(ptr unsafe.Pointer) {
	b := blockAt(ptr)
	b.next = p.localFreeHead
	b.prev = nil
	if p.localFreeHead != nil {
		p.localFreeHead.prev = b
	}
	p.localFreeHead = b
}

// drainRemoteLocked splices the entire remote free list onto the
// local free list and takes the drained blocks off blocksUsed. Caller
// must hold p.remoteLock.
func (p *pageHeader) drainRemoteLocked() {
	r := p.remoteFreeHead
	if r == nil {
		return
	}
	// Find the tail of the remote chain and re-point it at the
	// current local head, then adopt the remote chain as the new
	// local head — same splice shape as mcentral.go's freeSpan
	// reattaching a swept chain onto s.freelist.
	tail := r
	for tail.next != nil {
		tail = tail.next
	}
	tail.next = p.localFreeHead
	if p.localFreeHead != nil {
		p.localFreeHead.prev = tail
	}
	p.localFreeHead = r
	r.prev = nil

	// Remotely freed blocks stay counted in blocksUsed until here.
	p.blocksUsed -= p.remoteFrees.Load()
	p.remoteFreeHead = nil
	p.remoteFrees.Store(0)
}

// isWhollyUnused implements the corrected emptiness test from
// spec.md §9: blocksUsed - remoteFrees == 0. remoteFrees is read
// atomically so this needs no lock of its own; it is only a hint
// until the caller takes remoteLock and drains, which is the actual
// commit point (mirrors mcentral.go's pattern of reconciling ref
// counts only at a lock-protected commit point).
func (p *pageHeader) isWhollyUnused() bool {
	return p.blocksUsed == p.remoteFrees.Load()
}
