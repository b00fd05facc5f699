package infra

import (
	"context"
	"sync"

	"admission-gateway/middleware/ratelimit/domain"
)

type Counters struct {
	Allowed int64 `json:"allowed"`
	Denied  int64 `json:"denied"`
	// Blocks conta as transições para bloqueio (não cada negação).
	Blocks int64 `json:"blocks"`
}

func (c *Counters) add(ev domain.StatsEvent) {
	if ev.Allowed {
		c.Allowed++
		return
	}
	c.Denied++
	if ev.BlockStarted {
		c.Blocks++
	}
}

// DefaultMaxTrackedKeys limita os contadores por chave de WithTrackKeys.
const DefaultMaxTrackedKeys = 10000

// MemoryStatsStore é uma implementação simples em memória.
// Útil para testes e desenvolvimento.
//
// O tamanho só depende do número de endpoints; os contadores por chave são
// diagnóstico, desligados por padrão e limitados a maxKeys chaves (as que
// chegam depois do limite entram só no total e no endpoint).
type MemoryStatsStore struct {
	mu         sync.Mutex
	total      Counters
	byEndpoint map[string]Counters
	byKey      map[string]Counters

	trackKeys bool
	maxKeys   int
}

type MemoryStatsOption func(*MemoryStatsStore)

func WithTrackKeys(track bool) MemoryStatsOption {
	return func(s *MemoryStatsStore) { s.trackKeys = track }
}

// WithMaxTrackedKeys troca o limite de chaves com contador próprio.
func WithMaxTrackedKeys(n int) MemoryStatsOption {
	return func(s *MemoryStatsStore) { s.maxKeys = n }
}

func NewMemoryStatsStore(opts ...MemoryStatsOption) *MemoryStatsStore {
	s := &MemoryStatsStore{
		byEndpoint: make(map[string]Counters),
		byKey:      make(map[string]Counters),
		maxKeys:    DefaultMaxTrackedKeys,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStatsStore) Record(_ context.Context, ev domain.StatsEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.total.add(ev)

	c := s.byEndpoint[ev.Endpoint]
	c.add(ev)
	s.byEndpoint[ev.Endpoint] = c

	if s.trackKeys {
		key := ev.Endpoint + "/" + string(ev.Key)
		k, ok := s.byKey[key]
		if ok || len(s.byKey) < s.maxKeys {
			k.add(ev)
			s.byKey[key] = k
		}
	}
	return nil
}

func (s *MemoryStatsStore) Total() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

func (s *MemoryStatsStore) ByEndpoint() map[string]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Counters, len(s.byEndpoint))
	for k, v := range s.byEndpoint {
		out[k] = v
	}
	return out
}

// ByKey usa "endpoint/chave" como índice. Vazio sem WithTrackKeys(true).
func (s *MemoryStatsStore) ByKey() map[string]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Counters, len(s.byKey))
	for k, v := range s.byKey {
		out[k] = v
	}
	return out
}
