package code

import "github.com/ember-lang/ember/gc"

// InstantiateClosure implements spec §4.6 "Closure instantiation": the
// prototype's one-slot cache is reused when this instantiation would
// bind the same upvalue cells, otherwise a fresh closure is built and
// cached. bind is supplied by the vm package (it alone knows how to
// resolve each UpvalDesc against the current stack/enclosing closure).
func (p *Prototype) InstantiateClosure(c *gc.Collector, bind func(UpvalDesc) UpvalueCell) (cl *LuaClosure, fresh bool) {
	cells := make([]UpvalueCell, len(p.Upvalues))
	for i, d := range p.Upvalues {
		cells[i] = bind(d)
	}
	if p.cachedClosure != nil && sameBindings(p.cachedClosure.Upvalues, cells) {
		return p.cachedClosure, false
	}
	cl = &LuaClosure{Proto: p, Upvalues: cells}
	p.cachedClosure = cl
	if c != nil {
		c.BackwardBarrier(p)
	}
	return cl, true
}

func sameBindings(a, b []UpvalueCell) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
