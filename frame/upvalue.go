package frame

import "github.com/ember-lang/ember/value"

// Upvalue is the box described in spec §3 "Upvalue cell". While open,
// it aliases a slot in some coroutine's value stack by index (spec §9's
// design note: "(coroutine-id, slot-index) instead of a raw pointer");
// once closed, the value lives in own.
type Upvalue struct {
	value.Header

	stack *Stack // nil once closed
	index int    // valid only while stack != nil

	own value.Value

	// Intrusive links: the coroutine-local open-upvalue list (sorted by
	// descending index) and the VM-global open-upvalue list used by the
	// GC's atomic-step root marking (spec §4.4).
	nextInStack  *Upvalue
	nextInGlobal *Upvalue
	prevInGlobal *Upvalue
}

func (u *Upvalue) IsOpen() bool { return u.stack != nil }

func (u *Upvalue) Get() value.Value {
	if u.stack != nil {
		return u.stack.slots[u.index]
	}
	return u.own
}

func (u *Upvalue) Set(v value.Value) {
	if u.stack != nil {
		u.stack.slots[u.index] = v
		return
	}
	u.own = v
}

// FindOrCreateUpvalue implements spec §4.3 "Open-upvalue creation": the
// coroutine's open-upvalue list (sorted by descending slot index) is
// searched; if a cell already targets index, it's returned, else a
// fresh cell is inserted at the correct sorted position and also linked
// into globalList.
func (s *Stack) FindOrCreateUpvalue(index int, globalList *GlobalUpvalueList) *Upvalue {
	var prev *Upvalue
	cur := s.openUpvalsHead
	for cur != nil && cur.index > index {
		prev = cur
		cur = cur.nextInStack
	}
	if cur != nil && cur.index == index {
		return cur
	}
	fresh := &Upvalue{stack: s, index: index}
	fresh.nextInStack = cur
	if prev == nil {
		s.openUpvalsHead = fresh
	} else {
		prev.nextInStack = fresh
	}
	globalList.link(fresh)
	return fresh
}

// OpenUpvalues iterates the coroutine-local open-upvalue list in
// descending-index order, for GC traversal of a Thread (spec §4.4
// "Thread: mark every ... open upvalue").
func (s *Stack) OpenUpvalues(fn func(*Upvalue)) {
	for u := s.openUpvalsHead; u != nil; u = u.nextInStack {
		fn(u)
	}
}

// CloseUpvals implements spec §4.3 "Close-upvals(level)": for every open
// upvalue in this coroutine whose target index is at or above level,
// copy the slot into the cell's own storage, retarget, and unlink from
// both lists.
func (s *Stack) CloseUpvals(level int, globalList *GlobalUpvalueList) {
	cur := s.openUpvalsHead
	for cur != nil && cur.index >= level {
		next := cur.nextInStack
		cur.own = cur.stack.slots[cur.index]
		cur.stack = nil
		cur.index = 0
		globalList.unlink(cur)
		cur.nextInStack = nil
		cur = next
	}
	s.openUpvalsHead = cur
}

// GlobalUpvalueList is the VM-wide doubly-linked list of open upvalues
// used by gc's atomic step (spec §4.4 "walk the VM-global open-upvalue
// list and mark any still-gray cell's referenced stack value").
type GlobalUpvalueList struct {
	head *Upvalue
}

func (g *GlobalUpvalueList) link(u *Upvalue) {
	u.nextInGlobal = g.head
	if g.head != nil {
		g.head.prevInGlobal = u
	}
	u.prevInGlobal = nil
	g.head = u
}

func (g *GlobalUpvalueList) unlink(u *Upvalue) {
	if u.prevInGlobal != nil {
		u.prevInGlobal.nextInGlobal = u.nextInGlobal
	} else if g.head == u {
		g.head = u.nextInGlobal
	}
	if u.nextInGlobal != nil {
		u.nextInGlobal.prevInGlobal = u.prevInGlobal
	}
	u.nextInGlobal = nil
	u.prevInGlobal = nil
}

func (g *GlobalUpvalueList) Each(fn func(*Upvalue)) {
	for u := g.head; u != nil; u = u.nextInGlobal {
		fn(u)
	}
}
