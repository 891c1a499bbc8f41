package slab

import (
	"runtime"
	"sync"
	"unsafe"

	"go.uber.org/zap"
)

// threadCache is the per-OS-thread array of page lists, one per size
// class (spec.md §2 item 3). Only its owning thread ever touches it —
// no locking needed, mirroring src/runtime/mcache.go's "per-P, so no
// locking needed" comment.
type threadCache struct {
	tid     int32
	classes [numSizeClasses]pageList
}

var (
	cacheRegistryMu sync.Mutex
	cacheRegistry   = map[int32]*threadCache{}
)

// acquireThreadCache returns the calling OS thread's cache, creating
// one on first use. The calling goroutine is pinned to its current OS
// thread with runtime.LockOSThread so the tid recorded as a page's
// owner (page.go's pageHeader.owner) stays valid for as long as that
// page remains in this thread's local lists — spec.md §9 flags owner
// identity as a "do not guess" open question; this resolves it by
// using a stable OS thread id instead of any Go-level address, at the
// cost of pinning the goroutine once it first calls into the
// allocator (the same trade the runtime itself makes between a g and
// its m for the lifetime of a P-bound mcache).
func acquireThreadCache(os osPager) *threadCache {
	runtime.LockOSThread()
	tid := os.currentThreadID()

	cacheRegistryMu.Lock()
	defer cacheRegistryMu.Unlock()
	if c, ok := cacheRegistry[tid]; ok {
		return c
	}
	c := &threadCache{tid: tid}
	cacheRegistry[tid] = c
	return c
}

// alloc implements the thread-local fast path, spec.md §4.3.
func (c *threadCache) alloc(classIndex int32, os osPager) (unsafe.Pointer, error) {
	// Step 1: scan local lists from classIndex upward. A larger class
	// satisfying the request is an intentional fallback — wasting
	// some bytes beats mapping a fresh page — but only on this local,
	// per-thread path; the global pool and fresh-page branches below
	// always honor the exact class (spec.md §4.3 tie-break note).
	for i := classIndex; i < numSizeClasses; i++ {
		for p := c.classes[i].first; p != nil; p = p.next {
			if p.localFreeHead != nil {
				ptr := p.popLocalFree()
				p.blocksUsed++
				return ptr, nil
			}
			if p.remoteFrees.Load() != 0 {
				p.remoteLock.Lock()
				p.drainRemoteLocked()
				p.remoteLock.Unlock()
				if p.localFreeHead != nil {
					ptr := p.popLocalFree()
					p.blocksUsed++
					return ptr, nil
				}
			}
		}
	}

	// Step 2: adopt a page of the exact class from the global pool.
	ensureGlobalPoolInit()
	if p := theGlobalPool.adopt(classIndex, c.tid); p != nil {
		c.classes[classIndex].insert(p)
		ptr := p.popLocalFree()
		log.Debug("slab: adopted page from global pool", zap.Int32("class", classIndex))
		return ptr, nil
	}

	// Step 3: map a fresh page of the exact class.
	p, err := newSlabPage(os, classIndex, c.tid)
	if err != nil {
		return nil, err
	}
	c.classes[classIndex].insert(p)
	ptr := p.popLocalFree()
	log.Debug("slab: mapped fresh slab page", zap.Int32("class", classIndex))
	return ptr, nil
}

// freeLocal implements spec.md §4.5: a block freed by the thread that
// currently owns its page.
func (c *threadCache) freeLocal(p *pageHeader, ptr unsafe.Pointer) {
	p.blocksUsed--
	p.pushLocalFree(ptr)

	if p.isWhollyUnused() {
		// Wholly unused: drain any remote frees that raced in,
		// unlink from this thread's local list, hand to the global
		// pool. Lock ordering per spec.md §5: remoteLock is released
		// before the global pool's per-class mutex is ever touched.
		p.remoteLock.Lock()
		p.drainRemoteLocked()
		p.remoteLock.Unlock()
		// blocksUsed tracked outstanding allocations from the
		// owner's point of view; every one of those has now been
		// accounted for as free, whether locally or remotely.
		p.blocksUsed = 0

		c.classes[p.sizeIndex].remove(p)
		ensureGlobalPoolInit()
		theGlobalPool.release(p)
	}
}
