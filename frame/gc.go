package frame

import (
	"github.com/ember-lang/ember/gc"
	"github.com/ember-lang/ember/value"
)

// GCTrace implements gc.Traceable for Upvalue (spec §4.4 "Upvalue
// (open)": "keep gray ... value re-marked in the atomic step via the
// global list"; "Upvalue (closed): mark own.").
func (u *Upvalue) GCTrace(c *gc.Collector) {
	if u.stack != nil {
		c.KeepOpenUpvalueGray(u)
		return
	}
	c.Mark(u.own)
}

// Barrier applies the forward barrier after Set mutates a closed
// upvalue's own value: a black upvalue that just gained a reference to
// a white value must mark that value immediately, since an upvalue
// (unlike a table) is never re-traversed by the backward barrier (spec
// §4.4 "Invariant").
func (u *Upvalue) Barrier(c *gc.Collector) {
	if u.stack == nil {
		c.ForwardBarrier(u, u.own)
	}
}
