package xtable

import (
	"github.com/ember-lang/ember/gc"
	"github.com/ember-lang/ember/value"
)

// GCTrace implements gc.Traceable, dispatching on the table's weak mode
// exactly as spec §4.4 "Table traversal" describes: strong/strong tables
// traverse fully and mark both key and value; weak-key tables queue onto
// the ephemeron list instead of marking keys; weak-value tables mark
// keys only and queue onto the weak list; all-weak tables mark neither
// and queue onto the allweak list.
func (t *Table) GCTrace(c *gc.Collector) {
	c.MarkObj(t.Metatable)

	switch {
	case t.WeakKeys && t.WeakValues:
		c.PushAllWeak(t)
	case t.WeakKeys:
		c.PushEphemeron(t)
	case t.WeakValues:
		// Keys stay strong; values are left unmarked so ClearWhiteValues
		// can reclaim any that die this cycle. Array "keys" are plain
		// integers and never collectable, so only hash keys need marking.
		for i := range t.hash {
			n := &t.hash[i]
			if !n.key.IsNil() && !n.key.IsDeadKey() {
				c.Mark(n.key)
			}
		}
		c.PushWeak(t)
	default:
		t.Traverse(func(k, v value.Value) {
			c.Mark(k)
			c.Mark(v)
		})
		t.CleanDeadKeys(func(o value.Collectable) bool {
			return o.Header().Color == value.ColorWhite0 || o.Header().Color == value.ColorWhite1
		})
	}
}

// Barrier re-grays the table with c if it has already been colored
// black this cycle (spec §4.4's backward barrier for tables). Callers
// that mutate a table reachable from elsewhere than Set's own argument
// path — the vm package's SETTABLE family and capi's table-write
// entries — call this right after the mutation. It is a thin pass-
// through kept here (rather than folded silently into Set) because
// xtable has no collector reference of its own: the owning VM decides
// which collector a given table cycle belongs to.
func (t *Table) Barrier(c *gc.Collector) {
	c.BackwardBarrier(t)
}
