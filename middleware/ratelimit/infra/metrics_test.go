package infra

import (
	"strings"
	"testing"

	"admission-gateway/middleware/ratelimit/domain"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fixedStats domain.Stats

func (f fixedStats) Stats() domain.Stats { return domain.Stats(f) }

func TestStatsCollector_ExportsGaugesPerEndpoint(t *testing.T) {
	c := NewStatsCollector("gw", func() map[string]domain.StatsSource {
		return map[string]domain.StatsSource{
			"auth":    fixedStats{TotalEntries: 3, BlockedEntries: 1, ActiveEntries: 2},
			"default": fixedStats{TotalEntries: 5, ActiveEntries: 5},
		}
	})

	if n := testutil.CollectAndCount(c); n != 6 {
		t.Fatalf("expected 6 series, got %d", n)
	}

	expected := `
# HELP gw_ratelimit_blocked_entries Number of tracked admission keys in the blocked state.
# TYPE gw_ratelimit_blocked_entries gauge
gw_ratelimit_blocked_entries{endpoint="auth"} 1
gw_ratelimit_blocked_entries{endpoint="default"} 0
`
	if err := testutil.CollectAndCompare(c, strings.NewReader(expected), "gw_ratelimit_blocked_entries"); err != nil {
		t.Fatalf("unexpected metrics: %v", err)
	}
}

func TestStatsCollector_NilSources(t *testing.T) {
	c := NewStatsCollector("gw", nil)
	if n := testutil.CollectAndCount(c); n != 0 {
		t.Fatalf("expected no series, got %d", n)
	}
}
