package value

// Str is the collectable string object: an immutable byte array plus a
// precomputed hash and a Reserved field (spec §4.1, §4.5). Two equal
// strings interned through the same Interner share one Str.
type Str struct {
	Header
	Bytes    string // immutable; Go strings are already byte-immutable
	Hash     uint32
	Reserved int // Interner.Intern sets -1; see ReservedIndex for keywords
}

func (s *Str) Len() int { return len(s.Bytes) }

// hashBytes computes the seeded 32-bit hash used by the interner. Long
// strings are length-gated: beyond sampleThreshold we sample every
// stride'th byte, matching spec §4.1's "length-gated sampling for long
// strings is permitted".
const (
	hashSeed        uint32 = 0x9e3779b9
	sampleThreshold        = 32
)

func hashBytes(b string) uint32 {
	h := hashSeed ^ uint32(len(b))
	if len(b) <= sampleThreshold {
		for i := 0; i < len(b); i++ {
			h = (h << 5) + h + uint32(b[i])
		}
		return h
	}
	stride := (len(b) >> 5) + 1
	for i := len(b); i >= stride; i -= stride {
		h = (h << 5) + h + uint32(b[i-1])
	}
	return h
}

// Interner is a power-of-two-sized hash table of *Str with chained
// buckets (not open addressing), doubled and rehashed when the entry
// count exceeds internerLoadFactorLimit per bucket (spec §4.1).
type Interner struct {
	buckets []*strChain
	count   int
}

type strChain struct {
	s    *Str
	next *strChain
}

const internerLoadFactorLimit = 2 // entries per bucket before growth

func NewInterner() *Interner {
	return &Interner{buckets: make([]*strChain, 64)}
}

func (in *Interner) bucketIndex(hash uint32) int {
	return int(hash) & (len(in.buckets) - 1)
}

// Intern returns the canonical *Str for b, allocating a fresh one (via
// newObj, typically the GC's allocator) only on a miss. On a miss under
// memory pressure newObj may return nil; Intern must not retain a
// partially-constructed entry in that case (spec §4.1).
func (in *Interner) Intern(b string, newObj func(hash uint32) *Str) *Str {
	h := hashBytes(b)
	idx := in.bucketIndex(h)
	for c := in.buckets[idx]; c != nil; c = c.next {
		if c.s.Hash == h && c.s.Bytes == b {
			return c.s
		}
	}
	s := newObj(h)
	if s == nil {
		return nil
	}
	s.Bytes = b
	s.Hash = h
	s.Reserved = -1
	in.buckets[idx] = &strChain{s: s, next: in.buckets[idx]}
	in.count++
	if in.count > len(in.buckets)*internerLoadFactorLimit {
		in.rehash()
	}
	return s
}

// Remove is called by the GC sweep phase when a string is collected.
func (in *Interner) Remove(s *Str) {
	idx := in.bucketIndex(s.Hash)
	var prev *strChain
	for c := in.buckets[idx]; c != nil; c = c.next {
		if c.s == s {
			if prev == nil {
				in.buckets[idx] = c.next
			} else {
				prev.next = c.next
			}
			in.count--
			return
		}
		prev = c
	}
}

func (in *Interner) rehash() {
	newBuckets := make([]*strChain, len(in.buckets)*2)
	for _, head := range in.buckets {
		for c := head; c != nil; {
			next := c.next
			idx := int(c.s.Hash) & (len(newBuckets) - 1)
			c.next = newBuckets[idx]
			newBuckets[idx] = c
			c = next
		}
	}
	in.buckets = newBuckets
}

// Lookup finds an existing interned string without allocating.
func (in *Interner) Lookup(b string) (*Str, bool) {
	h := hashBytes(b)
	idx := in.bucketIndex(h)
	for c := in.buckets[idx]; c != nil; c = c.next {
		if c.s.Hash == h && c.s.Bytes == b {
			return c.s, true
		}
	}
	return nil, false
}

// ReservedWords lists the language's reserved identifiers in a fixed
// order; ReservedIndex returns a word's position in it, which the lexer
// uses to classify an identifier as a keyword. The index is not stored
// on interned Strs (spec §4.1, §4.5: "22 words").
var ReservedWords = [...]string{
	"and", "break", "do", "else", "elseif", "end", "false", "for",
	"function", "goto", "if", "in", "local", "nil", "not", "or",
	"repeat", "return", "then", "true", "until", "while",
}

func ReservedIndex(word string) int {
	for i, w := range ReservedWords {
		if w == word {
			return i
		}
	}
	return -1
}
