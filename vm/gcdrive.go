package vm

import (
	"github.com/ember-lang/ember/gc"
	"github.com/ember-lang/ember/value"
)

// finalize adapts gc.Finalizable to the callback shape
// gc.RunPendingFinalizers expects.
func finalize(o value.Collectable) error {
	if f, ok := o.(gc.Finalizable); ok {
		return f.Finalize()
	}
	return nil
}

// stepGC implements spec §4.6's dispatch-loop step 1, "honor pending GC
// debt (may step GC)": one incremental slice of collector work plus
// draining at most one pending finalizer, run once per opcode so a
// long-running script never stalls either behind the other.
func (rt *Runtime) stepGC() {
	if rt.GCStopped {
		return
	}
	if rt.GC.Debt() > 0 {
		rt.GC.Step()
	}
	if rt.GC.PendingFinalizerCount() > 0 {
		_ = rt.GC.RunPendingFinalizers(1, finalize)
	}
}
