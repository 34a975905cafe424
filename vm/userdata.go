package vm

import (
	"github.com/ember-lang/ember/gc"
	"github.com/ember-lang/ember/value"
	"github.com/ember-lang/ember/xtable"
)

// Userdata is the collectable opaque-data object capi creates (spec §3
// "Userdata", §4.7 "userdata creation: sized byte blob with optional
// metatable and environment table").
type Userdata struct {
	value.Header

	Bytes     []byte
	Metatable *xtable.Table
	Env       *xtable.Table

	rt        *Runtime
	finalizer bool
}

func (rt *Runtime) NewUserdata(size int) *Userdata {
	u := &Userdata{Bytes: make([]byte, size), rt: rt}
	rt.GC.Register(u, 32+int64(size))
	return u
}

func (u *Userdata) GCTrace(c *gc.Collector) {
	c.MarkObj(u.Metatable)
	c.MarkObj(u.Env)
}

// SetMetatable installs mt and recomputes whether __gc must run at
// collection time, computed once up front rather than probed lazily
// during sweep (spec §4.4 "Finalizers").
func (u *Userdata) SetMetatable(mt *xtable.Table) {
	u.Metatable = mt
	u.finalizer = mt != nil && !mt.GetStr(u.rt.InternString("__gc")).IsNil()
	if u.finalizer {
		u.rt.GC.RegisterFinalizer(u)
	}
}

// HasFinalizer and Finalize implement gc.Finalizable.
func (u *Userdata) HasFinalizer() bool { return u.finalizer }

func (u *Userdata) Finalize() error {
	if u.Metatable == nil {
		return nil
	}
	mm := u.Metatable.GetStr(u.rt.InternString("__gc"))
	if mm.IsNil() {
		return nil
	}
	_, err := u.rt.Call(u.rt.MainThread, mm, []value.Value{value.FromObject(value.TagUserdata, u)}, 0)
	return err
}
