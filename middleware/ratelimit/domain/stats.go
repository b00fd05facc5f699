package domain

import (
	"context"
	"time"
)

// StatsEvent representa um evento de decisão do rate limit.
//
// Ele é propositalmente "agnóstico de HTTP": Endpoint/Method/Path são strings
// genéricas e podem ser usadas para web, gRPC, etc.
//
// Observação: cuidado com cardinalidade (ex.: salvar Key/Path sem controle pode
// explodir o número de séries/chaves em uma base como Redis/Prometheus).
type StatsEvent struct {
	Endpoint string
	Key      Key
	Allowed  bool
	Blocked  bool
	// BlockStarted: esta negação foi a que bloqueou a chave.
	BlockStarted bool

	Method string
	Path   string

	At time.Time
}

// StatsStore é a estratégia de persistência para eventos de decisão.
//
// Implementações podem armazenar em Redis, memória, etc.
// O middleware trata erro como best-effort (não derruba o request).
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}

// StatsSource é qualquer coisa que reporte o agregado do EntryStore.
type StatsSource interface {
	Stats() Stats
}
