package slab

import (
	"sync"

	"go.uber.org/zap"
)

// classPool is one size class's slice of the global free-page pool:
// fully-empty pages any thread may adopt, behind their own mutex.
// Mirrors src/runtime/mcentral.go's mcentral, generalized from its
// nonempty/empty split (which exists to support the runtime's
// concurrent GC sweep) down to a single list, since this allocator has
// no sweep phase — a page only ever enters this pool once it is
// wholly unused (spec.md §3's lifecycle).
type classPool struct {
	mu    sync.Mutex
	pages pageList
}

// globalPool is the process-wide array of per-class free-page pools
// (spec.md §2 item 4). Initialized exactly once via ensureGlobalPoolInit,
// spec.md §4.8's one-shot initializer, implemented with sync.Once —
// the stdlib primitive spec.md §6 lists as a consumed "one-shot
// initializer barrier."
type globalPool struct {
	classes [numSizeClasses]classPool
}

var (
	theGlobalPool     globalPool
	globalPoolInitOnce sync.Once
)

func ensureGlobalPoolInit() {
	globalPoolInitOnce.Do(func() {
		log.Debug("slab: global pool initialized")
	})
}

// adopt removes and returns the head page of the global pool's list
// for classIndex, or nil if empty. Clears the page's owner-specific
// state so the new owning thread starts from a clean slate (spec.md
// §4.3 step 2).
func (g *globalPool) adopt(classIndex int32, newOwner int32) *pageHeader {
	cp := &g.classes[classIndex]
	cp.mu.Lock()
	p := cp.pages.first
	if p != nil {
		cp.pages.remove(p)
	}
	cp.mu.Unlock()
	if p == nil {
		return nil
	}

	p.owner = newOwner
	p.remoteFreeHead = nil
	p.remoteFrees.Store(0)
	p.blocksUsed = 1
	return p
}

// release inserts a wholly-unused page into the global pool for its
// class, making it available for adoption by any thread (spec.md
// §4.5 step 3 / §3's local->global migration).
func (g *globalPool) release(p *pageHeader) {
	cp := &g.classes[p.sizeIndex]
	cp.mu.Lock()
	cp.pages.insert(p)
	cp.mu.Unlock()
	log.Debug("slab: page returned to global pool", zap.Int32("class", p.sizeIndex))
}
