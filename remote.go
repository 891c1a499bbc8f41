package slab

import (
	"runtime"
	"unsafe"
)

// freeRemote implements spec.md §4.6: a block freed by a thread that
// does not currently own its page. The block never touches the
// owner's local structures; it only ever goes onto the page's own
// remote free list, behind the page's own mutex, which is the one
// lock this path ever takes (spec.md §5's lock hierarchy: a thread
// never holds remoteLock while taking a global-pool lock, and this
// path never touches the global pool at all).
func freeRemote(p *pageHeader, ptr unsafe.Pointer) {
	p.remoteLock.Lock()
	b := blockAt(ptr)
	b.next = p.remoteFreeHead
	b.prev = nil
	if p.remoteFreeHead != nil {
		p.remoteFreeHead.prev = b
	}
	p.remoteFreeHead = b
	p.remoteFrees.Add(1)
	p.remoteLock.Unlock()
}

// WaitForRemoteFrees blocks until at least n of the blocks freed
// remotely from p's page have been observed by the counter the owner
// thread reconciles against (spec.md §5: "no real-time bound; the
// only bound is next time the owner touches that page"). This is not
// part of the allocation protocol itself — spec.md never requires a
// remote freer to wait for its free to be observed — it is a
// supplemental affordance (SPEC_FULL.md §8) used by the concurrency
// tests to make scenario 4 ("T1's next allocate ... observes the
// remote list") deterministic without a sleep loop, and is safe for
// production callers who want the same guarantee (e.g. a caller
// coordinating a handoff across a worker pool).
//
// ptr must be a pointer previously returned by Allocate and not yet
// reused. It exists purely to recover the page; it is not freed here.
func WaitForRemoteFrees(ptr unsafe.Pointer, n int32) {
	p := pageOf(ptr)
	for p.remoteFrees.Load() < n {
		runtime.Gosched()
	}
}
