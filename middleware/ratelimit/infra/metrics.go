package infra

import (
	"sort"

	"admission-gateway/middleware/ratelimit/domain"

	"github.com/prometheus/client_golang/prometheus"
)

// StatsCollector exporta o agregado de cada limiter como gauges do Prometheus.
//
// Os valores são lidos na hora da coleta (Stats() de cada fonte), então não há
// estado duplicado aqui.
type StatsCollector struct {
	sources func() map[string]domain.StatsSource

	total   *prometheus.Desc
	blocked *prometheus.Desc
	active  *prometheus.Desc
}

// NewStatsCollector recebe uma função que devolve as fontes por endpoint;
// ela é chamada a cada coleta porque os limiters são criados sob demanda.
func NewStatsCollector(namespace string, sources func() map[string]domain.StatsSource) *StatsCollector {
	labels := []string{"endpoint"}
	return &StatsCollector{
		sources: sources,
		total: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "ratelimit", "entries"),
			"Number of admission keys currently tracked.",
			labels, nil,
		),
		blocked: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "ratelimit", "blocked_entries"),
			"Number of tracked admission keys in the blocked state.",
			labels, nil,
		),
		active: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "ratelimit", "active_entries"),
			"Number of tracked admission keys that are not blocked.",
			labels, nil,
		),
	}
}

func (c *StatsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.total
	ch <- c.blocked
	ch <- c.active
}

func (c *StatsCollector) Collect(ch chan<- prometheus.Metric) {
	if c.sources == nil {
		return
	}
	sources := c.sources()
	names := make([]string, 0, len(sources))
	for name := range sources {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		st := sources[name].Stats()
		ch <- prometheus.MustNewConstMetric(c.total, prometheus.GaugeValue, float64(st.TotalEntries), name)
		ch <- prometheus.MustNewConstMetric(c.blocked, prometheus.GaugeValue, float64(st.BlockedEntries), name)
		ch <- prometheus.MustNewConstMetric(c.active, prometheus.GaugeValue, float64(st.ActiveEntries), name)
	}
}
