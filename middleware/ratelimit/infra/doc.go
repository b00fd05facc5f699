// Package infra contém implementações concretas (infraestrutura) para os contratos
// definidos no pacote domain.
//
// Exemplos:
//   - Store: EntryStore em memória particionado em shards (xxhash)
//   - Reaper: goroutine com ticker que remove entradas expiradas
//   - MemoryStatsStore / RedisStatsStore: sinks de eventos de decisão
//   - StatsCollector: gauges do Prometheus a partir de Stats()
package infra
