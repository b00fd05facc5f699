package infra

import (
	"sync"
	"testing"
	"time"

	"admission-gateway/middleware/ratelimit/domain"
)

func put(s *Store, key string, e domain.Entry) {
	s.Apply(domain.Key(key), func(*domain.Entry) *domain.Entry { return &e })
}

func TestStore_ApplyCreatesAndMutatesInPlace(t *testing.T) {
	s := NewStore()

	s.Apply("k", func(cur *domain.Entry) *domain.Entry {
		if cur != nil {
			t.Fatalf("expected nil entry for unseen key")
		}
		return &domain.Entry{Count: 1}
	})
	s.Apply("k", func(cur *domain.Entry) *domain.Entry {
		if cur == nil {
			t.Fatalf("expected stored entry")
		}
		cur.Count++
		return cur
	})

	var got domain.Entry
	s.Range(func(_ domain.Key, e domain.Entry) bool { got = e; return true })
	if got.Count != 2 {
		t.Fatalf("expected count=2, got %d", got.Count)
	}
}

func TestStore_ApplyNilDeletes(t *testing.T) {
	s := NewStore()
	put(s, "k", domain.Entry{Count: 1})

	s.Apply("k", func(*domain.Entry) *domain.Entry { return nil })
	if s.Len() != 0 {
		t.Fatalf("expected entry to be removed, len=%d", s.Len())
	}
}

func TestStore_EmptyKeyIsTracked(t *testing.T) {
	s := NewStore()
	put(s, "", domain.Entry{Count: 1})
	if s.Len() != 1 {
		t.Fatalf("expected empty key to be stored, len=%d", s.Len())
	}
	if !s.Delete("") {
		t.Fatalf("expected Delete of empty key to report true")
	}
}

func TestStore_DeleteAndClear(t *testing.T) {
	s := NewStore(WithShards(4))
	for _, k := range []string{"a", "b", "c", "d", "e"} {
		put(s, k, domain.Entry{Count: 1})
	}

	if !s.Delete("a") {
		t.Fatalf("expected Delete to report existing key")
	}
	if s.Delete("a") {
		t.Fatalf("expected second Delete to report false")
	}
	if n := s.Clear(); n != 4 {
		t.Fatalf("expected Clear to report 4, got %d", n)
	}
	if s.Len() != 0 {
		t.Fatalf("expected empty store, len=%d", s.Len())
	}
}

func TestStore_DeleteFunc(t *testing.T) {
	s := NewStore()
	put(s, "keep", domain.Entry{Count: 1})
	put(s, "drop1", domain.Entry{Count: 0})
	put(s, "drop2", domain.Entry{Count: 0})

	n := s.DeleteFunc(func(_ domain.Key, e domain.Entry) bool { return e.Count == 0 })
	if n != 2 {
		t.Fatalf("expected 2 deletions, got %d", n)
	}
	if s.Len() != 1 {
		t.Fatalf("expected 1 remaining, got %d", s.Len())
	}
}

func TestStore_RangeStopsEarly(t *testing.T) {
	s := NewStore(WithShards(1))
	for _, k := range []string{"a", "b", "c"} {
		put(s, k, domain.Entry{})
	}
	seen := 0
	s.Range(func(domain.Key, domain.Entry) bool { seen++; return false })
	if seen != 1 {
		t.Fatalf("expected Range to stop after first entry, saw %d", seen)
	}
}

func TestStore_ConcurrentApplyOnSameKeyIsSerialized(t *testing.T) {
	s := NewStore()
	const workers, perWorker = 16, 200

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				s.Apply("hot", func(cur *domain.Entry) *domain.Entry {
					if cur == nil {
						cur = &domain.Entry{WindowStart: time.Now()}
					}
					cur.Count++
					return cur
				})
			}
		}()
	}
	wg.Wait()

	var got int
	s.Range(func(_ domain.Key, e domain.Entry) bool { got = e.Count; return true })
	if got != workers*perWorker {
		t.Fatalf("expected count=%d, got %d", workers*perWorker, got)
	}
}
