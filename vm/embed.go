package vm

import "github.com/ember-lang/ember/value"

// Index and NewIndex re-export the metamethod-aware table access meta.go
// implements for CALL/GETTABLE, so capi can offer "get/set via key, with
// metamethods" without reaching into vm's unexported internals (spec
// §4.7).
func (rt *Runtime) Index(th *Thread, base, key value.Value) (value.Value, error) {
	return rt.index(th, base, key, 0)
}

func (rt *Runtime) NewIndex(th *Thread, base, key, val value.Value) error {
	return rt.newindex(th, base, key, val, 0)
}

// Length re-exports LEN's dispatch (raw length or __len) for capi.
func (rt *Runtime) Length(th *Thread, v value.Value) (value.Value, error) {
	return rt.length(th, v, 0)
}

// CallAt re-exports callAt for capi's lua_call/lua_pcall equivalents,
// which address the function and its arguments already staged on the
// stack rather than passing a Go slice (spec §4.7).
func (rt *Runtime) CallAt(th *Thread, funcIdx, nargs, nresults int) ([]value.Value, error) {
	return rt.callAt(th, funcIdx, nargs, nresults)
}
