package slab

// pageList is an intrusive doubly-linked list of pages, threaded
// through each page's own prev/next fields. Used both by a thread
// cache's per-class lists and by the global pool's per-class lists.
//
// Adapted directly from src/runtime/mheap.go's mSpanList
// (init/insert/insertBack/remove/isEmpty), replacing the runtime's
// throw() invariant checks with panics — this package has no
// equivalent of the runtime's fatal crash path, but the same
// "a page must belong to exactly one list" invariant (spec.md §3)
// still needs to be caught early rather than corrupt memory silently.
type pageList struct {
	first, last *pageHeader
}

func (l *pageList) isEmpty() bool {
	return l.first == nil
}

// insert adds p to the front of the list.
func (l *pageList) insert(p *pageHeader) {
	if p.next != nil || p.prev != nil || p.list != nil {
		panic("slab: insert of page already on a list")
	}
	p.next = l.first
	if l.first != nil {
		l.first.prev = p
	} else {
		l.last = p
	}
	l.first = p
	p.list = l
}

// insertBack adds p to the end of the list.
func (l *pageList) insertBack(p *pageHeader) {
	if p.next != nil || p.prev != nil || p.list != nil {
		panic("slab: insertBack of page already on a list")
	}
	p.prev = l.last
	if l.last != nil {
		l.last.next = p
	} else {
		l.first = p
	}
	l.last = p
	p.list = l
}

// remove unlinks p from the list it currently belongs to.
func (l *pageList) remove(p *pageHeader) {
	if p.list != l {
		panic("slab: remove of page not on this list")
	}
	if p.prev != nil {
		p.prev.next = p.next
	} else {
		l.first = p.next
	}
	if p.next != nil {
		p.next.prev = p.prev
	} else {
		l.last = p.prev
	}
	p.next, p.prev, p.list = nil, nil, nil
}
