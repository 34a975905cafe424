package gc

import "github.com/ember-lang/ember/value"

// ErrMemoryLimit is returned by Allocate when the configured memory
// limit is exceeded even after an emergency collection (spec §4.4
// "emergency" mode, §4.8 "memory-error").
type errMemoryLimit struct{}

func (errMemoryLimit) Error() string { return "not enough memory" }

var ErrMemoryLimit error = errMemoryLimit{}

// Register links a freshly constructed object into the all-objects
// list, colored with the current live white (spec §3 "Lifecycle").
// Every allocator in the VM calls this immediately after constructing
// an object's Go value.
func (c *Collector) Register(o value.Collectable, size int64) {
	h := o.Header()
	h.Color = c.liveWhite()
	h.Next = c.allObjects
	c.allObjects = o
	c.charge(size)
}

// charge implements spec §4.4 "Debt accounting": every allocation
// increments total bytes and debt.
func (c *Collector) charge(size int64) {
	c.totalBytes += size
	c.debt += size
}

// Allocate is the single allocator entry point described in spec §3
// "Lifecycle": (a) charges the byte counter, (b) may trigger a GC step,
// (c) links the object. newObj must construct and return the object (or
// nil under failure); Allocate does not retain a partially constructed
// object if newObj returns nil (spec §4.1 interner note, generalized to
// every allocation site).
func (c *Collector) Allocate(size int64, newObj func() value.Collectable) (value.Collectable, error) {
	if c.cfg.MemoryLimit > 0 && c.totalBytes+size > c.cfg.MemoryLimit {
		c.EmergencyFullGC()
		if c.totalBytes+size > c.cfg.MemoryLimit {
			return nil, ErrMemoryLimit
		}
	}
	c.charge(size)
	if c.phase != PhasePause || c.debt > 0 {
		c.Step()
	}
	o := newObj()
	if o == nil {
		return nil, nil
	}
	c.Register(o, 0)
	return o, nil
}

// ForwardBarrier implements spec §4.4's forward barrier: when a black
// object gains a reference to a white object, mark the white object
// reachable immediately. Used by closures, prototypes, userdata, and
// upvalues on mutation (spec §4.4 "Invariant").
func (c *Collector) ForwardBarrier(owner value.Collectable, target value.Value) {
	if c.phase == PhasePause || !target.IsCollectable() {
		return
	}
	if owner.Header().Color != value.ColorBlack {
		return
	}
	c.markValue(target)
}

// BackwardBarrier implements spec §4.4's backward barrier: tables, on
// mutation, are pushed back onto the gray list instead of marking the
// new target immediately, because re-traversing the whole table is
// cheaper than precisely marking one new entry for a container that
// mutates often (spec §4.4 "Invariant").
func (c *Collector) BackwardBarrier(owner Traceable) {
	if c.phase == PhasePause {
		return
	}
	h := owner.Header()
	if h.Color != value.ColorBlack {
		return
	}
	h.Color = value.ColorGray
	c.gray = append(c.gray, owner)
}

// MarkObj marks a bare Collectable reachable (used for roots and for
// non-Value references held by concrete object types, e.g. a Table's
// Metatable field).
func (c *Collector) MarkObj(o value.Collectable) {
	if o == nil {
		return
	}
	h := o.Header()
	if h.Color != c.liveWhite() {
		return
	}
	if t, ok := o.(Traceable); ok {
		h.Color = value.ColorGray
		c.gray = append(c.gray, t)
		return
	}
	// Leaf object (e.g. a Str) with no further outgoing references.
	h.Color = value.ColorBlack
}

// Mark is the public entry point GCTrace implementations call for each
// Value field they hold.
func (c *Collector) Mark(v value.Value) { c.markValue(v) }

func (c *Collector) markValue(v value.Value) {
	if !v.IsCollectable() {
		return
	}
	c.MarkObj(v.Object())
}
