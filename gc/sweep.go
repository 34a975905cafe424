package gc

import "github.com/ember-lang/ember/value"

// sweepStep performs one bounded chunk of work in the current sweep
// phase and reports whether there is more work in this phase (spec §4.4
// "Sweep states": "Walk the string pool, finalizers list, and
// all-objects list in bounded chunks").
func (c *Collector) sweepStep() bool {
	switch c.phase {
	case PhaseSweepStrings:
		// String interning lifecycle is owned by value.Interner; this
		// collector only walks the generic all-objects list, so the
		// "sweep-strings" phase here is folded into sweep-all's single
		// pass over Next — strings are ordinary Collectable entries on
		// that list like everything else. We keep the phase name for
		// fidelity to spec §4.4's state machine and immediately fall
		// through to userdata sweep.
		return false
	case PhaseSweepUserdata:
		return false
	case PhaseSweepAll:
		return c.sweepAllChunk(sweepChunkSize)
	}
	return false
}

const sweepChunkSize = 64

func (c *Collector) advanceSweepPhase() {
	switch c.phase {
	case PhaseSweepStrings:
		c.phase = PhaseSweepUserdata
	case PhaseSweepUserdata:
		c.phase = PhaseSweepAll
	case PhaseSweepAll:
		c.phase = PhasePause
	}
}

// sweepAllChunk walks up to n objects from the sweep cursor, reclaiming
// dead ones and retinting survivors (spec §4.4 "Sweep states").
func (c *Collector) sweepAllChunk(n int) bool {
	for i := 0; i < n; i++ {
		if c.sweepCur == nil {
			return false
		}
		obj := c.sweepCur
		next := obj.Header().Next
		h := obj.Header()

		if h.Fixed {
			c.sweepPrev = obj
			c.sweepCur = next
			continue
		}

		if c.isDeadWhite(obj) {
			c.unlinkSwept(obj)
			c.destroy(obj)
		} else {
			if c.mode == ModeGenerational {
				h.Old = true
			} else {
				h.Color = c.liveWhite()
			}
			c.sweepPrev = obj
		}
		c.sweepCur = next
	}
	return c.sweepCur != nil
}

func (c *Collector) unlinkSwept(obj value.Collectable) {
	next := obj.Header().Next
	if c.sweepPrev == nil {
		c.allObjects = next
	} else {
		c.sweepPrev.Header().Next = next
	}
}

// destroyer is implemented by objects that own external resources (file
// handles, leveldb iterators, etc) freed on collection (spec §3
// "Destruction happens only in the GC sweep ... running the object's
// own destructor").
type destroyer interface {
	Destroy()
}

func (c *Collector) destroy(obj value.Collectable) {
	if d, ok := obj.(destroyer); ok {
		d.Destroy()
	}
	if s, ok := obj.(*value.Str); ok && c.internRemove != nil {
		c.internRemove(s)
	}
	c.totalBytes -= c.sizeOf(obj)
	if c.totalBytes < 0 {
		c.totalBytes = 0
	}
}

// sizer lets objects report their own heap footprint for debt
// accounting on reclaim; defaults to 0 (already charged at allocation,
// reclaiming only needs to decrement, and most callers track this via
// Allocate's size argument stored by the owning subsystem if needed).
type sizer interface {
	GCSize() int64
}

func (c *Collector) sizeOf(obj value.Collectable) int64 {
	if s, ok := obj.(sizer); ok {
		return s.GCSize()
	}
	return 0
}

// FullGC runs a complete cycle end-to-end (spec §4.4 "fullgc").
func (c *Collector) FullGC() {
	if c.phase == PhasePause {
		c.startCycle()
	}
	for c.phase != PhasePause {
		switch c.phase {
		case PhasePropagate:
			if len(c.gray) == 0 {
				c.runAtomic()
			} else {
				c.propagateOne()
			}
		case PhaseAtomic:
			c.phase = PhaseSweepStrings
			c.sweepCur = c.allObjects
		case PhaseSweepStrings, PhaseSweepUserdata, PhaseSweepAll:
			if !c.sweepStep() {
				c.advanceSweepPhase()
			}
		}
	}
	c.endCycleDebt()
}

// EmergencyFullGC runs a complete cycle without finalizers (spec §4.4
// "emergency").
func (c *Collector) EmergencyFullGC() {
	c.emergency = true
	defer func() { c.emergency = false }()
	c.FullGC()
}

// endCycleDebt implements spec §4.4 "Debt accounting": "on completion of
// a cycle, debt is reset to -total_bytes/100 * pause_percent, deferring
// the next cycle."
func (c *Collector) endCycleDebt() {
	c.debt = -c.totalBytes / 100 * int64(c.cfg.PausePercent)
}

// ShouldRunMinor reports whether the heap has grown enough past the
// last major collection's size to warrant a generational minor pass
// (spec §4.4 "Model": "a minor-collection fast path that runs when the
// heap exceeds a ratio of post-major-collection size").
func (c *Collector) ShouldRunMinor(bytesAtLastMajor int64) bool {
	if c.mode != ModeGenerational || bytesAtLastMajor <= 0 {
		return false
	}
	return c.totalBytes > bytesAtLastMajor*int64(c.cfg.MinorMultiplier)
}

// MinorGC implements the generational fast path: mark roots plus
// whatever is already gray from backward barriers (the remembered set
// naturally produced by BackwardBarrier re-graying mutated old
// objects), propagate fully, then sweep only non-old white objects —
// old objects are never swept in a minor cycle (spec §4.4 "Sweep
// states": "Threads being swept ... Old" retint).
func (c *Collector) MinorGC() {
	for _, r := range c.roots {
		c.MarkObj(r)
	}
	c.drainGray()
	c.minorSweep()
}

func (c *Collector) minorSweep() {
	var prev value.Collectable
	cur := c.allObjects
	for cur != nil {
		h := cur.Header()
		next := h.Next
		if h.Old || h.Fixed {
			prev = cur
			cur = next
			continue
		}
		if c.isWhite(cur) {
			if prev == nil {
				c.allObjects = next
			} else {
				prev.Header().Next = next
			}
			c.destroy(cur)
		} else {
			h.Old = true
			h.Color = c.liveWhite()
			prev = cur
		}
		cur = next
	}
}
