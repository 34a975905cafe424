// Package xtable implements the hybrid array/hash associative container
// described in spec §4.2: a dense array part for positive integer keys
// 1..N plus an open-addressed hash part using Brent-variation chaining.
// The table itself never consults metatables (spec §4.2): __index,
// __newindex, and friends are the vm package's concern.
package xtable

import (
	"errors"
	"math"

	"github.com/ember-lang/ember/value"
)

// ErrBadKey is returned by Set when key is nil or NaN (spec §4.2).
var ErrBadKey = errors.New("xtable: table index is nil or NaN")

// ErrModified is returned by Next when the table was rehashed since the
// caller's key was obtained (SPEC_FULL.md §D.4).
var ErrModified = errors.New("xtable: table modified during iteration")

type node struct {
	key  value.Value
	val  value.Value
	next int // index+1 into hashPart, 0 means "no next"
}

// Table is the collectable table object (spec §3 "Table", §4.2).
type Table struct {
	value.Header

	array []value.Value // array part, array[i] holds key i+1
	hash  []node        // open-addressed hash part; hash[i].key == Nil means empty

	// freeCursor is the descending free-slot cursor used by Set's
	// collision-resolution step (spec §4.2 "set"; SPEC_FULL.md §E.1).
	freeCursor int

	Metatable *Table

	// Weak-mode flags derived from Metatable's __mode field; maintained by
	// the vm/gc packages whenever Metatable changes, not by this package.
	WeakKeys   bool
	WeakValues bool

	generation uint64 // bumped on every rehash; see SPEC_FULL.md §D.4
}

// New creates an empty table with the given size hints (spec §4.6
// NEWTABLE carries floor-log2 hints; callers translate those into exact
// counts before calling New).
func New(arraySize, hashSize int) *Table {
	t := &Table{}
	if arraySize > 0 {
		t.array = make([]value.Value, arraySize)
	}
	if hashSize > 0 {
		t.hash = make([]node, hashSize)
		t.freeCursor = len(t.hash) - 1
	}
	return t
}

func (t *Table) Generation() uint64 { return t.generation }

// mainPosition returns the bucket a key hashes to (spec glossary "Main
// position").
func (t *Table) mainPosition(k value.Value) int {
	if len(t.hash) == 0 {
		return -1
	}
	h := hashValue(k)
	return int(h % uint64(len(t.hash)))
}

func hashValue(v value.Value) uint64 {
	switch v.Tag() {
	case value.TagNumber:
		n := v.AsNumber()
		if i, ok := value.AsInt(v); ok {
			return uint64(i) * 2654435761
		}
		bits := math.Float64bits(n)
		return bits ^ (bits >> 33)
	case value.TagBool:
		if v.AsBool() {
			return 1
		}
		return 0
	case value.TagString:
		s := v.Object().(*value.Str)
		return uint64(s.Hash)
	default:
		// Collectable non-string values hash by identity (pointer value
		// via fmt-free arithmetic over the interface's data word is not
		// expressible portably in Go, so we hash through a stable id
		// assigned lazily). See identity.go.
		return identityHash(v.Object())
	}
}

// Get implements spec §4.2 "get": integer keys within the array range
// route directly; everything else walks the main-position hash chain.
func (t *Table) Get(k value.Value) value.Value {
	if i, ok := value.AsInt(k); ok && i >= 1 && int(i) <= len(t.array) {
		return t.array[i-1]
	}
	if len(t.hash) == 0 {
		return value.Nil
	}
	idx := t.mainPosition(k)
	if idx < 0 {
		return value.Nil
	}
	for {
		n := &t.hash[idx]
		if n.key.IsNil() {
			return value.Nil
		}
		if rawEqualKey(n.key, k) {
			return n.val
		}
		if n.next == 0 {
			return value.Nil
		}
		idx = n.next - 1
	}
}

func rawEqualKey(a, b value.Value) bool {
	if a.Tag() != b.Tag() {
		return false
	}
	return value.RawEqual(a, b)
}

// GetStr is a fast path for the extremely common string-key lookup
// (field access, GETTABUP/GETTABLE with a constant string operand).
func (t *Table) GetStr(s *value.Str) value.Value {
	return t.Get(value.FromObject(value.TagString, s))
}

// GetInt is a fast path for pure array access.
func (t *Table) GetInt(i int64) value.Value {
	if i >= 1 && int(i) <= len(t.array) {
		return t.array[i-1]
	}
	return t.Get(value.Number(float64(i)))
}

// Set implements spec §4.2 "set" including the full collision-resolution
// algorithm: overwrite in place; else install into a free main-position
// bucket; else, if the colliding occupant is not in its own main
// position, displace it to a free slot (taken from the descending
// cursor) and install the new entry at the main position; else take a
// free slot for the new entry and chain it off the occupant. Rehashes
// when no free slot remains.
func (t *Table) Set(k, v value.Value) error {
	if !value.IsValidKey(k) {
		return ErrBadKey
	}
	if i, ok := value.AsInt(k); ok && i >= 1 {
		if int(i) <= len(t.array) {
			t.array[i-1] = v
			return nil
		}
		if int(i) == len(t.array)+1 && !v.IsNil() {
			t.growArray(v)
			return nil
		}
	}
	if v.IsNil() {
		t.setHash(k, value.Nil, false)
		return nil
	}
	t.setHash(k, v, true)
	return nil
}

// growArray appends one element to the array part's end, the common case
// for `t[#t+1] = v`-style append loops, and then migrates any hash
// entries that now fall in range (spec §4.2 "rehash": "overflow from the
// old array goes into the hash part" runs in reverse here).
func (t *Table) growArray(v value.Value) {
	t.array = append(t.array, v)
	next := int64(len(t.array) + 1)
	for {
		hv := t.lookupHashRaw(value.Number(float64(next)))
		if hv.IsNil() {
			break
		}
		t.array = append(t.array, hv)
		t.deleteHash(value.Number(float64(next)))
		next++
	}
}

func (t *Table) lookupHashRaw(k value.Value) value.Value {
	if len(t.hash) == 0 {
		return value.Nil
	}
	idx := t.mainPosition(k)
	for {
		n := &t.hash[idx]
		if n.key.IsNil() {
			return value.Nil
		}
		if rawEqualKey(n.key, k) {
			return n.val
		}
		if n.next == 0 {
			return value.Nil
		}
		idx = n.next - 1
	}
}

func (t *Table) deleteHash(k value.Value) {
	if len(t.hash) == 0 {
		return
	}
	idx := t.mainPosition(k)
	var prevIdx = -1
	for {
		n := &t.hash[idx]
		if n.key.IsNil() {
			return
		}
		if rawEqualKey(n.key, k) {
			n.val = value.Nil
			if prevIdx < 0 {
				// head of chain: leave a dead-key tombstone if chained,
				// else clear entirely.
				if n.next != 0 {
					n.key = value.DeadKey()
				} else {
					n.key = value.Nil
				}
			} else {
				t.hash[prevIdx].next = n.next
				n.key = value.Nil
				n.next = 0
				if idx < t.freeCursor {
					t.freeCursor = idx
				}
			}
			return
		}
		if n.next == 0 {
			return
		}
		prevIdx = idx
		idx = n.next - 1
	}
}

func (t *Table) setHash(k, v value.Value, mustExist bool) {
	if len(t.hash) == 0 {
		if v.IsNil() {
			return
		}
		t.Rehash(len(t.array), 1)
	}
	for {
		idx := t.mainPosition(k)
		n := &t.hash[idx]
		if !n.key.IsNil() && rawEqualKey(n.key, k) {
			n.val = v
			return
		}
		if n.key.IsNil() {
			if v.IsNil() {
				return // deleting an absent key: no-op
			}
			n.key = k
			n.val = v
			n.next = 0
			return
		}
		// Walk existing chain in case the key is further along it.
		if found := t.walkChainFind(idx, k); found >= 0 {
			t.hash[found].val = v
			return
		}
		if v.IsNil() {
			return
		}
		// Collision: is the occupant of idx in its own main position?
		occupantMain := t.mainPosition(n.key)
		if occupantMain == idx {
			// Occupant belongs here; take a free slot for the new entry
			// and chain it after any existing chain tail from idx.
			free := t.takeFreeSlot()
			if free < 0 {
				t.growAndRetry()
				continue
			}
			tail := idx
			for t.hash[tail].next != 0 {
				tail = t.hash[tail].next - 1
			}
			t.hash[tail].next = free + 1
			t.hash[free] = node{key: k, val: v}
			return
		}
		// Occupant is not in its own main position: displace it.
		free := t.takeFreeSlot()
		if free < 0 {
			t.growAndRetry()
			continue
		}
		// Find the chain predecessor of idx within occupantMain's chain.
		prev := occupantMain
		for t.hash[prev].next-1 != idx {
			prev = t.hash[prev].next - 1
		}
		t.hash[free] = *n
		t.hash[prev].next = free + 1
		*n = node{key: k, val: v}
		return
	}
}

func (t *Table) walkChainFind(start int, k value.Value) int {
	idx := start
	first := true
	for {
		n := &t.hash[idx]
		if !first && rawEqualKey(n.key, k) {
			return idx
		}
		if n.next == 0 {
			return -1
		}
		idx = n.next - 1
		first = false
	}
}

// takeFreeSlot implements the descending free-slot cursor (spec §4.2,
// SPEC_FULL.md §E.1): scan from freeCursor downward for an empty (nil
// key, no chain predecessor implied) slot.
func (t *Table) takeFreeSlot() int {
	for t.freeCursor >= 0 {
		if t.hash[t.freeCursor].key.IsNil() {
			idx := t.freeCursor
			t.freeCursor--
			return idx
		}
		t.freeCursor--
	}
	return -1
}

func (t *Table) growAndRetry() {
	t.Rehash(len(t.array), maxInt(len(t.hash)*2, 4))
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Rehash implements spec §4.2 "rehash": allocate temporary new storage,
// swap, and re-insert survivors; overflow from the old array goes into
// the hash part.
func (t *Table) Rehash(newArraySize, newHashSize int) {
	oldArray := t.array
	oldHash := t.hash

	t.array = make([]value.Value, newArraySize)
	t.hash = make([]node, newHashSize)
	t.freeCursor = newHashSize - 1
	t.generation++

	n := minInt(len(oldArray), newArraySize)
	copy(t.array, oldArray[:n])
	for i := n; i < len(oldArray); i++ {
		if !oldArray[i].IsNil() {
			t.setHash(value.Number(float64(i+1)), oldArray[i], false)
		}
	}
	for _, e := range oldHash {
		if e.key.IsNil() || e.key.IsDeadKey() || e.val.IsNil() {
			continue
		}
		if i, ok := value.AsInt(e.key); ok && i >= 1 && int(i) <= len(t.array) {
			t.array[i-1] = e.val
			continue
		}
		t.setHash(e.key, e.val, false)
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// Length implements spec §4.2 "length": a border i such that t[i] is
// non-nil and t[i+1] is nil (or 0 if t[1] is nil).
func (t *Table) Length() int64 {
	n := len(t.array)
	if n > 0 && t.array[n-1].IsNil() {
		// Binary search within the array for a border.
		lo, hi := 0, n
		for hi-lo > 1 {
			mid := (lo + hi) / 2
			if t.array[mid-1].IsNil() {
				hi = mid
			} else {
				lo = mid
			}
		}
		return int64(lo)
	}
	if len(t.hash) == 0 || t.lookupHashRaw(value.Number(float64(n+1))).IsNil() {
		return int64(n)
	}
	// Binary search by doubling in the hash part (spec §4.2).
	i := int64(n + 1)
	j := i
	for !t.lookupHashRaw(value.Number(float64(j + 1))).IsNil() {
		i = j + 1
		if j > (1<<62)/2 {
			// pathological: fall back to linear scan
			for !t.lookupHashRaw(value.Number(float64(i + 1))).IsNil() {
				i++
			}
			return i
		}
		j *= 2
	}
	for j-i > 1 {
		mid := (i + j) / 2
		if t.lookupHashRaw(value.Number(float64(mid))).IsNil() {
			j = mid
		} else {
			i = mid
		}
	}
	return i
}
