package infra

import (
	"context"
	"fmt"
	"testing"

	"admission-gateway/middleware/ratelimit/domain"
)

func TestMemoryStatsStore_CountsByEndpointAndBlocks(t *testing.T) {
	s := NewMemoryStatsStore(WithTrackKeys(true))
	ctx := context.Background()

	events := []domain.StatsEvent{
		{Endpoint: "auth", Key: "ip:1.1.1.1", Allowed: true},
		{Endpoint: "auth", Key: "ip:1.1.1.1", Allowed: false, Blocked: true, BlockStarted: true},
		{Endpoint: "auth", Key: "ip:1.1.1.1", Allowed: false, Blocked: true},
		{Endpoint: "api", Key: "user:u1", Allowed: true},
	}
	for _, ev := range events {
		if err := s.Record(ctx, ev); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	total := s.Total()
	if total.Allowed != 2 || total.Denied != 2 || total.Blocks != 1 {
		t.Fatalf("unexpected totals: %+v", total)
	}

	auth := s.ByEndpoint()["auth"]
	if auth.Allowed != 1 || auth.Denied != 2 || auth.Blocks != 1 {
		t.Fatalf("unexpected auth counters: %+v", auth)
	}

	if k := s.ByKey()["api/user:u1"]; k.Allowed != 1 {
		t.Fatalf("expected per-key tracking, got %+v", k)
	}
}

func TestMemoryStatsStore_NoKeyTrackingByDefault(t *testing.T) {
	s := NewMemoryStatsStore()
	_ = s.Record(context.Background(), domain.StatsEvent{Endpoint: "default", Key: "k", Allowed: true})
	if len(s.ByKey()) != 0 {
		t.Fatalf("expected no per-key counters without WithTrackKeys")
	}
}

func TestMemoryStatsStore_SizeDoesNotGrowWithDistinctKeys(t *testing.T) {
	ctx := context.Background()
	plain := NewMemoryStatsStore()
	tracked := NewMemoryStatsStore(WithTrackKeys(true), WithMaxTrackedKeys(100))

	for i := 0; i < 10000; i++ {
		ev := domain.StatsEvent{
			Endpoint:     "auth",
			Key:          domain.Key(fmt.Sprintf("ip:10.0.%d.%d", i/256, i%256)),
			Blocked:      true,
			BlockStarted: true,
		}
		_ = plain.Record(ctx, ev)
		_ = tracked.Record(ctx, ev)
	}

	if n := len(plain.byEndpoint) + len(plain.byKey); n != 1 {
		t.Fatalf("expected only the endpoint counter without key tracking, got %d map entries", n)
	}
	if n := len(tracked.ByKey()); n != 100 {
		t.Fatalf("expected per-key counters capped at 100, got %d", n)
	}
	if got := tracked.Total(); got.Denied != 10000 || got.Blocks != 10000 {
		t.Fatalf("expected every event in the totals, got %+v", got)
	}
}
