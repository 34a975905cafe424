package xtable

import (
	"sync"

	"github.com/ember-lang/ember/value"
)

// identityHash assigns a stable hash to collectable objects that don't
// carry their own content hash (tables, closures, userdata, threads,
// prototypes, upvalues compare and hash by identity per spec §4.1).
// Go offers no portable "address of an interface's data word" operation,
// so identity is tracked via a side table keyed by the object itself
// (valid because Go map keys compare interface values by dynamic type
// + address/value, which for pointer-shaped Collectable implementations
// is exactly object identity).
var (
	idMu   sync.Mutex
	idNext uint64 = 1
	ids    = make(map[value.Collectable]uint64)
)

func identityHash(o value.Collectable) uint64 {
	idMu.Lock()
	defer idMu.Unlock()
	if h, ok := ids[o]; ok {
		return h * 2654435761
	}
	h := idNext
	idNext++
	ids[o] = h
	return h * 2654435761
}

// ForgetIdentity is called by the GC sweep phase when an object is
// collected, so the side table doesn't grow without bound.
func ForgetIdentity(o value.Collectable) {
	idMu.Lock()
	defer idMu.Unlock()
	delete(ids, o)
}
