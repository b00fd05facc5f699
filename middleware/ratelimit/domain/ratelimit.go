package domain

// Camada de domínio do rate limit.
//
// Regras e contratos (interfaces/tipos) sem dependência de net/http.

import (
	"errors"
	"fmt"
	"time"
)

type Key string

// ErrInvalidConfig indica uma Config rejeitada na construção do limiter.
var ErrInvalidConfig = errors.New("invalid rate limit config")

// Config é a configuração de uma instância de limiter (janela fixa + bloqueio).
//
// Os três campos são obrigatórios: não há merge com valores parciais.
type Config struct {
	Window        time.Duration
	MaxRequests   int
	BlockDuration time.Duration
}

func (c Config) Validate() error {
	if c.Window <= 0 {
		return fmt.Errorf("%w: window must be > 0, got %s", ErrInvalidConfig, c.Window)
	}
	if c.MaxRequests < 1 {
		return fmt.Errorf("%w: max requests must be >= 1, got %d", ErrInvalidConfig, c.MaxRequests)
	}
	if c.BlockDuration < 0 {
		return fmt.Errorf("%w: block duration must be >= 0, got %s", ErrInvalidConfig, c.BlockDuration)
	}
	return nil
}

// Entry é o estado de contagem/bloqueio de uma chave de admissão.
type Entry struct {
	Count        int
	WindowStart  time.Time
	ResetTime    time.Time
	Blocked      bool
	BlockedUntil time.Time
}

// WindowElapsed informa se a janela de contagem já terminou em now.
func (e Entry) WindowElapsed(now time.Time) bool {
	return !now.Before(e.ResetTime)
}

// BlockActive informa se o bloqueio ainda vale em now.
func (e Entry) BlockActive(now time.Time) bool {
	return e.Blocked && now.Before(e.BlockedUntil)
}

// Expired informa se a entrada pode ser removida pelo reaper:
// janela encerrada e (sem bloqueio ou bloqueio vencido).
func (e Entry) Expired(now time.Time) bool {
	return e.WindowElapsed(now) && !e.BlockActive(now)
}

// Decision é o resultado de Check para uma chave.
type Decision struct {
	Allowed   bool
	Remaining int
	// ResetTime é o fim da janela atual, ou o fim do bloqueio quando Blocked.
	ResetTime time.Time
	Blocked   bool
	// BlockStarted marca o Check que acabou de bloquear a chave.
	BlockStarted bool
}

// RetryAfter devolve quanto falta até ResetTime (0 se já passou).
func (d Decision) RetryAfter(now time.Time) time.Duration {
	if d.ResetTime.IsZero() || !now.Before(d.ResetTime) {
		return 0
	}
	return d.ResetTime.Sub(now)
}

type Stats struct {
	TotalEntries   int `json:"totalEntries"`
	BlockedEntries int `json:"blockedEntries"`
	ActiveEntries  int `json:"activeEntries"`
}

// EntryStore guarda as entradas por chave.
//
// Apply é a única operação de escrita por chave: fn roda com o lock da chave
// adquirido, recebe a entrada atual (nil se ausente) e devolve a entrada a ser
// gravada (nil remove). Isso garante read-modify-write atômico no Check.
type EntryStore interface {
	Apply(key Key, fn func(cur *Entry) *Entry)
	Delete(key Key) bool
	Clear() int
	// Range itera sobre cópias das entradas; parar quando fn devolver false.
	Range(fn func(key Key, e Entry) bool)
	// DeleteFunc remove as entradas para as quais pred devolver true.
	DeleteFunc(pred func(key Key, e Entry) bool) int
	Len() int
}

// Limiter é o contrato do motor de admissão consumido pelos adapters.
type Limiter interface {
	Check(key string) Decision
	Unblock(key string) bool
	Reset(key string)
	Clear()
	Stats() Stats
}
