package xtable

import "github.com/ember-lang/ember/value"

// Next implements spec §4.2 "next": array slots first in storage order,
// then hash slots in storage order; dead keys are skipped. key is Nil to
// start iteration. Returns ok=false when iteration is exhausted.
func (t *Table) Next(key value.Value, generation uint64) (k, v value.Value, ok bool, err error) {
	if generation != 0 && generation != t.generation {
		return value.Nil, value.Nil, false, ErrModified
	}
	if key.IsNil() {
		return t.nextFromArray(0)
	}
	if i, isInt := value.AsInt(key); isInt && i >= 1 && int(i) <= len(t.array) {
		return t.nextFromArray(int(i))
	}
	// Key must be in the hash part: find its slot, then continue from
	// the next storage slot (not the chain — spec §4.2 iterates hash
	// slots "in storage order", independent of chains).
	idx := t.findHashSlot(key)
	if idx < 0 {
		return value.Nil, value.Nil, false, ErrBadKey
	}
	return t.nextFromHash(idx + 1)
}

func (t *Table) nextFromArray(start int) (value.Value, value.Value, bool, error) {
	for i := start; i < len(t.array); i++ {
		if !t.array[i].IsNil() {
			return value.Number(float64(i + 1)), t.array[i], true, nil
		}
	}
	return t.nextFromHash(0)
}

func (t *Table) nextFromHash(start int) (value.Value, value.Value, bool, error) {
	for i := start; i < len(t.hash); i++ {
		n := t.hash[i]
		if n.key.IsNil() || n.key.IsDeadKey() {
			continue
		}
		return n.key, n.val, true, nil
	}
	return value.Nil, value.Nil, false, nil
}

func (t *Table) findHashSlot(key value.Value) int {
	for i := range t.hash {
		if !t.hash[i].key.IsNil() && !t.hash[i].key.IsDeadKey() && rawEqualKey(t.hash[i].key, key) {
			return i
		}
	}
	return -1
}

// ClearWhiteKeys, ClearWhiteValues, and ClearWhiteBoth implement spec
// §4.2's three weak-mode sweeping helpers, invoked by gc's atomic step
// for ephemeron / weak-value / all-weak tables respectively. isWhite
// reports whether a collectable value is still (dead-)white, i.e. not
// marked reachable this cycle.
func (t *Table) ClearWhiteKeys(isWhite func(value.Collectable) bool) {
	for i := range t.array {
		// Array keys are plain integers, never collectable; nothing to
		// clear here, but array values may die via ClearWhiteValues.
		_ = i
	}
	for i := range t.hash {
		n := &t.hash[i]
		if n.key.IsNil() || n.key.IsDeadKey() {
			continue
		}
		if n.key.IsCollectable() && isWhite(n.key.Object()) {
			n.key = value.DeadKey()
			n.val = value.Nil
		}
	}
}

func (t *Table) ClearWhiteValues(isWhite func(value.Collectable) bool) {
	for i := range t.array {
		if t.array[i].IsCollectable() && isWhite(t.array[i].Object()) {
			t.array[i] = value.Nil
		}
	}
	for i := range t.hash {
		n := &t.hash[i]
		if n.val.IsCollectable() && isWhite(n.val.Object()) {
			n.val = value.Nil
			if n.key.IsCollectable() {
				n.key = value.DeadKey()
			}
		}
	}
}

func (t *Table) ClearWhiteBoth(isWhite func(value.Collectable) bool) {
	t.ClearWhiteKeys(isWhite)
	t.ClearWhiteValues(isWhite)
}

// Traverse calls fn for every live (key, value) pair, used by gc's
// strong-traversal path. Dead-key cleanup (spec §4.4 propagate, "Table
// traversal": "if entry has nil value but key is still white, overwrite
// key with nil") is performed separately by calling CleanDeadKeys.
func (t *Table) Traverse(fn func(k, v value.Value)) {
	for i, v := range t.array {
		if !v.IsNil() {
			fn(value.Number(float64(i+1)), v)
		}
	}
	for i := range t.hash {
		n := &t.hash[i]
		if n.key.IsNil() || n.key.IsDeadKey() {
			continue
		}
		fn(n.key, n.val)
	}
}

// CleanDeadKeys implements the dead-key cleanup step of spec §4.4's
// strong/strong table traversal: any hash slot holding a nil value whose
// key is collectable and still white is converted to a dead-key
// tombstone so the key itself can be reclaimed.
func (t *Table) CleanDeadKeys(isWhite func(value.Collectable) bool) {
	for i := range t.hash {
		n := &t.hash[i]
		if n.key.IsNil() || n.key.IsDeadKey() || !n.val.IsNil() {
			continue
		}
		if n.key.IsCollectable() && isWhite(n.key.Object()) {
			n.key = value.DeadKey()
		}
	}
}

// EntryCount reports the live entries in both the array and hash parts.
func (t *Table) EntryCount() int {
	count := 0
	for _, v := range t.array {
		if !v.IsNil() {
			count++
		}
	}
	for _, n := range t.hash {
		if !n.key.IsNil() && !n.key.IsDeadKey() {
			count++
		}
	}
	return count
}
