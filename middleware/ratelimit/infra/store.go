package infra

import (
	"sync"

	"admission-gateway/middleware/ratelimit/domain"

	"github.com/cespare/xxhash/v2"
)

const defaultShards = 32

// Store é o EntryStore em memória, particionado em shards por hash da chave.
//
// Cada shard tem seu próprio mutex: o read-modify-write de uma chave fica
// serializado, enquanto chaves em shards diferentes não disputam lock.
type Store struct {
	shards []*shard
}

type shard struct {
	mu      sync.Mutex
	entries map[domain.Key]*domain.Entry
}

type StoreOption func(*storeOptions)

type storeOptions struct {
	shards int
}

// WithShards define o número de shards (mínimo 1).
func WithShards(n int) StoreOption {
	return func(o *storeOptions) { o.shards = n }
}

func NewStore(opts ...StoreOption) *Store {
	o := storeOptions{shards: defaultShards}
	for _, opt := range opts {
		opt(&o)
	}
	if o.shards < 1 {
		o.shards = 1
	}

	s := &Store{shards: make([]*shard, o.shards)}
	for i := range s.shards {
		s.shards[i] = &shard{entries: make(map[domain.Key]*domain.Entry)}
	}
	return s
}

func (s *Store) shardFor(key domain.Key) *shard {
	if len(s.shards) == 1 {
		return s.shards[0]
	}
	return s.shards[xxhash.Sum64String(string(key))%uint64(len(s.shards))]
}

// Apply implementa domain.EntryStore.
func (s *Store) Apply(key domain.Key, fn func(cur *domain.Entry) *domain.Entry) {
	sh := s.shardFor(key)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	next := fn(sh.entries[key])
	if next == nil {
		delete(sh.entries, key)
		return
	}
	sh.entries[key] = next
}

func (s *Store) Delete(key domain.Key) bool {
	sh := s.shardFor(key)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	if _, ok := sh.entries[key]; !ok {
		return false
	}
	delete(sh.entries, key)
	return true
}

// Clear remove tudo e devolve quantas entradas existiam.
func (s *Store) Clear() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		n += len(sh.entries)
		sh.entries = make(map[domain.Key]*domain.Entry)
		sh.mu.Unlock()
	}
	return n
}

func (s *Store) Range(fn func(key domain.Key, e domain.Entry) bool) {
	for _, sh := range s.shards {
		sh.mu.Lock()
		for k, e := range sh.entries {
			if !fn(k, *e) {
				sh.mu.Unlock()
				return
			}
		}
		sh.mu.Unlock()
	}
}

// DeleteFunc trava um shard por vez, nunca a store inteira.
func (s *Store) DeleteFunc(pred func(key domain.Key, e domain.Entry) bool) int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		for k, e := range sh.entries {
			if pred(k, *e) {
				delete(sh.entries, k)
				n++
			}
		}
		sh.mu.Unlock()
	}
	return n
}

func (s *Store) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		n += len(sh.entries)
		sh.mu.Unlock()
	}
	return n
}
