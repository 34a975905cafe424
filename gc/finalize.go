package gc

import "github.com/ember-lang/ember/value"

// RegisterFinalizer adds o to the finalizers list; called when a
// metatable defining __gc is assigned to an object (spec §3
// "Lifecycle": "Finalizable objects ... are moved to a separate
// finalizers list").
func (c *Collector) RegisterFinalizer(o value.Collectable) {
	for _, f := range c.finalizers {
		if f == o {
			return
		}
	}
	c.finalizers = append(c.finalizers, o)
}

// processFinalizers implements spec §4.4 "Finalizers": after mark,
// every object in the finalizers list that is now dead is moved to the
// to-be-finalized list with the finalized flag set and returned to the
// main all-objects list (resurrected: marked live again and grayed).
func (c *Collector) processFinalizers() {
	if c.emergency {
		// Finalization is suppressed during emergency collection (spec
		// §4.4 "Finalizers": "Finalization is suppressed during emergency
		// collection").
		return
	}
	var survivors []value.Collectable
	for _, o := range c.finalizers {
		h := o.Header()
		if c.isWhite(o) {
			h.Finalized = true
			h.Color = c.liveWhite()
			c.toBeFinalized = append(c.toBeFinalized, o)
			c.MarkObj(o) // resurrect: re-root and gray
			continue
		}
		survivors = append(survivors, o)
	}
	c.finalizers = survivors
}

// RunPendingFinalizers invokes, in a bounded batch, the __gc metamethod
// of each object in the to-be-finalized list via a fresh protected call
// supplied by runFinalizer (owned by the VM, which knows how to invoke
// a metamethod). Errors propagate as a GCMetamethodError per spec
// §4.4/§4.8.
func (c *Collector) RunPendingFinalizers(batch int, runFinalizer func(value.Collectable) error) error {
	n := batch
	for n > 0 && len(c.toBeFinalized) > 0 {
		last := len(c.toBeFinalized) - 1
		obj := c.toBeFinalized[last]
		c.toBeFinalized = c.toBeFinalized[:last]
		if err := runFinalizer(obj); err != nil {
			return err
		}
		n--
	}
	return nil
}

func (c *Collector) PendingFinalizerCount() int { return len(c.toBeFinalized) }
