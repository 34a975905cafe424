package gc

import "github.com/ember-lang/ember/value"

// Step performs bounded work proportional to cfg.StepMultiplier and
// either advances phase when the current list drains or repeats (spec
// §4.4 "States": "Each step performs bounded work proportional to a
// configurable granularity and either advances state when a list is
// drained or repeats").
func (c *Collector) Step() {
	work := c.debt
	if work <= 0 {
		work = 1
	}
	budget := work * int64(c.cfg.StepMultiplier) / 100
	if budget < 1 {
		budget = 1
	}
	done := int64(0)
	for done < budget {
		switch c.phase {
		case PhasePause:
			c.startCycle()
			done++
		case PhasePropagate:
			if len(c.gray) == 0 {
				c.runAtomic()
				done++
				continue
			}
			c.propagateOne()
			done++
		case PhaseAtomic:
			// Atomic already ran fully in runAtomic; this case exists so a
			// caller stepping one phase at a time (tests) sees it settle.
			c.phase = PhaseSweepStrings
			c.sweepCur = nil
			done++
		case PhaseSweepStrings, PhaseSweepUserdata, PhaseSweepAll:
			if !c.sweepStep() {
				c.advanceSweepPhase()
			}
			done++
		}
		if c.phase == PhasePause {
			c.endCycleDebt()
			break // a full cycle just completed
		}
	}
}

// startCycle implements spec §4.4 "pause": clear all gray lists; mark
// the main thread, the registry, each base-type metatable, each object
// already pending finalization, and every anchored object.
func (c *Collector) startCycle() {
	c.gray = c.gray[:0]
	c.grayAgain = c.grayAgain[:0]
	c.weak = c.weak[:0]
	c.ephemeron = c.ephemeron[:0]
	c.allWeak = c.allWeak[:0]

	for _, r := range c.roots {
		c.MarkObj(r)
	}
	for _, f := range c.toBeFinalized {
		c.MarkObj(f)
	}
	c.anchors.Each(func(o value.Collectable) bool {
		c.MarkObj(o)
		return false
	})
	c.phase = PhasePropagate
}

// propagateOne implements spec §4.4 "Propagate": pop one object from
// the gray list and traverse it, coloring it black unless its own
// GCTrace re-queues it (upvalue-open case keeps it gray, spec §4.4
// "Upvalue (open)").
func (c *Collector) propagateOne() {
	n := len(c.gray) - 1
	obj := c.gray[n]
	c.gray = c.gray[:n]
	h := obj.Header()
	if h.Color != value.ColorGray {
		return
	}
	h.Color = value.ColorBlack
	obj.GCTrace(c)
}

// PushGrayAgain is called by Table.GCTrace for strong-key/weak-value
// tables whose values may still die this cycle (spec §4.4 "if any
// values may later die ... else promote to grayagain").
func (c *Collector) PushGrayAgain(o value.Collectable) {
	o.Header().Color = value.ColorGray
	if t, ok := o.(Traceable); ok {
		c.grayAgain = append(c.grayAgain, t)
	}
}

func (c *Collector) PushWeak(o value.Collectable)      { c.weak = append(c.weak, o) }
func (c *Collector) PushEphemeron(o value.Collectable) { c.ephemeron = append(c.ephemeron, o) }
func (c *Collector) PushAllWeak(o value.Collectable)    { c.allWeak = append(c.allWeak, o) }

// KeepOpenUpvalueGray is called by Upvalue.GCTrace for an open upvalue:
// it is marked gray but left on a VM-wide chain; its value is re-marked
// in the atomic step (spec §4.4 "Upvalue (open)").
func (c *Collector) KeepOpenUpvalueGray(o value.Collectable) {
	o.Header().Color = value.ColorGray
}

// runAtomic implements spec §4.4 "Atomic step" as a single indivisible
// pass (this implementation runs it inside one Step() call with no
// intervening mutator access, which is the Go rendition's honest
// equivalent of "indivisible" for a single-threaded VM).
func (c *Collector) runAtomic() {
	c.phase = PhaseAtomic

	// Re-mark roots: they may have mutated during propagate.
	for _, r := range c.roots {
		c.MarkObj(r)
	}
	c.drainGray()

	// Re-traverse grayagain (strong/weak-value tables promoted earlier).
	for len(c.grayAgain) > 0 {
		n := len(c.grayAgain) - 1
		obj := c.grayAgain[n]
		c.grayAgain = c.grayAgain[:n]
		obj.Header().Color = value.ColorBlack
		obj.GCTrace(c)
		c.drainGray()
	}

	// Ephemeron convergence: repeat until a full pass marks nothing new
	// (spec §4.4, SPEC_FULL.md §E.2 — a fixed-point pass, not a linear
	// substitute).
	for {
		progressed := false
		pending := c.ephemeron
		c.ephemeron = c.ephemeron[:0]
		for _, o := range pending {
			wt, ok := o.(WeakTable)
			if !ok {
				continue
			}
			before := len(c.gray)
			if tr, ok := o.(Traceable); ok {
				tr.GCTrace(c)
			}
			if len(c.gray) > before {
				progressed = true
			}
			_ = wt
		}
		c.drainGray()
		if !progressed {
			break
		}
	}

	c.sweepWeakValues()
	c.processFinalizers()
	c.drainGray() // resurrected finalizer referents
	c.sweepEphemeronKeys()
	c.sweepAllWeak()

	c.sweepCur = c.allObjects
	c.sweepPrev = nil
	c.phase = PhaseSweepStrings

	// Swap live/dead white (spec §4.4 "Colors").
	if c.currentWhite == value.ColorWhite0 {
		c.currentWhite = value.ColorWhite1
	} else {
		c.currentWhite = value.ColorWhite0
	}
}

func (c *Collector) drainGray() {
	for len(c.gray) > 0 {
		c.propagateOne()
	}
}

func (c *Collector) sweepWeakValues() {
	for _, o := range c.weak {
		if wt, ok := o.(WeakTable); ok {
			wt.ClearWhiteValues(c.isWhite)
		}
	}
}

func (c *Collector) sweepEphemeronKeys() {
	for _, o := range c.ephemeron {
		if wt, ok := o.(WeakTable); ok {
			wt.ClearWhiteKeys(c.isWhite)
		}
	}
}

func (c *Collector) sweepAllWeak() {
	for _, o := range c.allWeak {
		if wt, ok := o.(WeakTable); ok {
			wt.ClearWhiteBoth(c.isWhite)
		}
	}
}
