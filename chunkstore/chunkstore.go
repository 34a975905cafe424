// Package chunkstore is a domain-stack addition fronting the bytecode
// package's dump/load with a two-level cache: an in-memory LRU for hot
// chunks and an on-disk goleveldb database for everything else, keyed
// by a hash of the source text so re-running the same script never
// recompiles it.
package chunkstore

import (
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/syndtr/goleveldb/leveldb"

	"github.com/ember-lang/ember/bytecode"
	"github.com/ember-lang/ember/code"
	"github.com/ember-lang/ember/vm"
)

// Store is one chunkstore instance, bound to a single Runtime since
// Load's cache miss path must register recreated prototypes through
// that Runtime's collector.
type Store struct {
	rt    *vm.Runtime
	db    *leveldb.DB
	cache *lru.Cache[string, []byte]
}

// Open opens (creating if necessary) a goleveldb database at dir and
// wraps it with an in-memory LRU of cacheSize entries.
func Open(rt *vm.Runtime, dir string, cacheSize int) (*Store, error) {
	db, err := leveldb.OpenFile(dir, nil)
	if err != nil {
		return nil, err
	}
	cache, err := lru.New[string, []byte](cacheSize)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{rt: rt, db: db, cache: cache}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func sourceKey(source string) string {
	sum := sha256.Sum256([]byte(source))
	return hex.EncodeToString(sum[:])
}

// Load returns the compiled prototype for source, serving it from the
// LRU, then the on-disk store, and only calling compile on a total
// miss — in which case the freshly compiled prototype's dump is
// written through both cache layers for next time.
func (s *Store) Load(source string, compile func() (*code.Prototype, error)) (*code.Prototype, error) {
	key := sourceKey(source)

	if data, ok := s.cache.Get(key); ok {
		return bytecode.Load(data, s.rt)
	}

	if data, err := s.db.Get([]byte(key), nil); err == nil {
		s.cache.Add(key, data)
		return bytecode.Load(data, s.rt)
	}

	proto, err := compile()
	if err != nil {
		return nil, err
	}
	s.store(key, proto)
	return proto, nil
}

// store dumps proto and writes it through both cache layers, on a
// best-effort basis: a dump or disk-write failure must not prevent the
// caller from using the prototype it already has.
func (s *Store) store(key string, proto *code.Prototype) {
	data, err := bytecode.Dump(proto)
	if err != nil {
		s.rt.Log.Warn("chunkstore: dump failed, chunk will not be cached", "error", err)
		return
	}
	s.cache.Add(key, data)
	if err := s.db.Put([]byte(key), data, nil); err != nil {
		s.rt.Log.Warn("chunkstore: disk write failed", "error", err)
	}
}

// Invalidate drops source's cached entry from both layers, for callers
// that recompile a chunk under an unchanged name (e.g. a REPL redefining
// a function).
func (s *Store) Invalidate(source string) {
	key := sourceKey(source)
	s.cache.Remove(key)
	_ = s.db.Delete([]byte(key), nil)
}
