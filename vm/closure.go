package vm

import (
	"github.com/ember-lang/ember/gc"
	"github.com/ember-lang/ember/value"
)

// GoFunc is a host function bound into the language as a callable
// value (spec §3 "Host closure", §4.7). args are the call's argument
// values; the returned slice becomes the call's results.
type GoFunc func(rt *Runtime, th *Thread, args []value.Value) ([]value.Value, error)

// HostClosure wraps a GoFunc plus any upvalues it closed over when
// created via capi's closure-with-upvalues entry point (spec §4.7).
type HostClosure struct {
	value.Header

	Name string
	Fn   GoFunc
	Ups  []value.Value
}

func (h *HostClosure) GCTrace(c *gc.Collector) {
	for _, v := range h.Ups {
		c.Mark(v)
	}
}

// NewHostClosure registers fn as a callable value.
func (rt *Runtime) NewHostClosure(name string, fn GoFunc, ups ...value.Value) value.Value {
	hc := &HostClosure{Name: name, Fn: fn, Ups: ups}
	rt.GC.Register(hc, 16+int64(len(ups))*16)
	return value.FromObject(value.TagHostClosure, hc)
}
