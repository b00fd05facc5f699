package application

import (
	"fmt"
	"sync"
	"time"

	"admission-gateway/middleware/ratelimit/domain"
	"admission-gateway/middleware/ratelimit/infra"

	log "github.com/sirupsen/logrus"
)

// Limiter é o motor de admissão: janela fixa por chave com bloqueio escalonado.
//
// Ele não sabe nada sobre HTTP (headers/status), apenas decide. Cada instância
// tem sua própria store e seu próprio reaper; Close para o reaper.
type Limiter struct {
	cfg    domain.Config
	store  domain.EntryStore
	reaper *infra.Reaper
	logger log.FieldLogger
	now    func() time.Time

	closeOnce sync.Once
}

var _ domain.Limiter = (*Limiter)(nil)

type Option func(*limiterOptions)

type limiterOptions struct {
	logger       log.FieldLogger
	now          func() time.Time
	store        domain.EntryStore
	reapInterval time.Duration
}

// WithLogger injeta o destino dos eventos de observabilidade.
func WithLogger(l log.FieldLogger) Option {
	return func(o *limiterOptions) { o.logger = l }
}

// WithClock troca o relógio (testes).
func WithClock(now func() time.Time) Option {
	return func(o *limiterOptions) { o.now = now }
}

func WithStore(s domain.EntryStore) Option {
	return func(o *limiterOptions) { o.store = s }
}

// WithReapInterval define o intervalo do reaper; <= 0 desliga a limpeza
// e a store passa a crescer sem limite.
func WithReapInterval(d time.Duration) Option {
	return func(o *limiterOptions) { o.reapInterval = d }
}

func NewLimiter(cfg domain.Config, opts ...Option) (*Limiter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("new limiter: %w", err)
	}

	o := limiterOptions{reapInterval: infra.DefaultReapInterval}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = log.StandardLogger()
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.store == nil {
		o.store = infra.NewStore()
	}

	l := &Limiter{
		cfg:    cfg,
		store:  o.store,
		logger: o.logger,
		now:    o.now,
	}
	l.reaper = infra.NewReaper(l.store, o.reapInterval, l.now, l.logger)
	l.reaper.Start()
	return l, nil
}

func (l *Limiter) Config() domain.Config { return l.cfg }

// Check decide se a chave pode seguir e atualiza o estado dela.
//
// Exatamente MaxRequests passam por janela; o request seguinte bloqueia a
// chave por BlockDuration. BlockedUntil é fixado no momento do bloqueio e
// checks durante o bloqueio não o estendem.
func (l *Limiter) Check(key string) domain.Decision {
	now := l.now()
	var dec domain.Decision
	var blockedNow *domain.Entry

	l.store.Apply(domain.Key(key), func(e *domain.Entry) *domain.Entry {
		if e == nil || l.restartable(*e, now) {
			e = l.freshEntry(now)
			dec = domain.Decision{Allowed: true, Remaining: l.cfg.MaxRequests - 1, ResetTime: e.ResetTime}
			return e
		}

		if e.Blocked {
			dec = domain.Decision{Allowed: false, Remaining: 0, ResetTime: e.BlockedUntil, Blocked: true}
			return e
		}

		e.Count++
		if e.Count > l.cfg.MaxRequests {
			e.Blocked = true
			e.BlockedUntil = now.Add(l.cfg.BlockDuration)
			dec = domain.Decision{Allowed: false, Remaining: 0, ResetTime: e.BlockedUntil, Blocked: true, BlockStarted: true}
			snapshot := *e
			blockedNow = &snapshot
			return e
		}

		dec = domain.Decision{Allowed: true, Remaining: l.remaining(e.Count), ResetTime: e.ResetTime}
		return e
	})

	// log fora do lock do shard
	if blockedNow != nil {
		l.logger.WithFields(log.Fields{
			"key":           key,
			"count":         blockedNow.Count,
			"max_requests":  l.cfg.MaxRequests,
			"blocked_until": blockedNow.BlockedUntil,
		}).Warn("rate limit exceeded, key blocked")
	}
	return dec
}

// restartable: sem bloqueio com janela vencida, ou bloqueio já vencido.
func (l *Limiter) restartable(e domain.Entry, now time.Time) bool {
	if e.Blocked {
		return !now.Before(e.BlockedUntil)
	}
	return e.WindowElapsed(now)
}

func (l *Limiter) freshEntry(now time.Time) *domain.Entry {
	return &domain.Entry{
		Count:       1,
		WindowStart: now,
		ResetTime:   now.Add(l.cfg.Window),
	}
}

func (l *Limiter) remaining(count int) int {
	return max(0, l.cfg.MaxRequests-count)
}

// Unblock libera uma chave bloqueada. A janela é mantida, mas a contagem volta
// a zero para que o próximo Check passe. Devolve false (sem alterar nada) se a
// chave não existe ou não está bloqueada.
//
// Zerar Count é intencional: mantendo a contagem, o Check seguinte passaria de
// MaxRequests e bloquearia de novo na hora. Não "corrigir" para preservar Count.
func (l *Limiter) Unblock(key string) bool {
	unblocked := false
	l.store.Apply(domain.Key(key), func(e *domain.Entry) *domain.Entry {
		if e == nil || !e.Blocked {
			return e
		}
		e.Blocked = false
		e.BlockedUntil = time.Time{}
		e.Count = 0
		unblocked = true
		return e
	})
	if unblocked {
		l.logger.WithField("key", key).Info("rate limit: key unblocked")
	}
	return unblocked
}

// Refund desfaz a admissão dec de key. Serve ao adapter que só quer contar
// requests que falharam (SkipSuccessful). Só devolve se dec foi permitida e a
// entrada ainda está na mesma janela (ResetTime igual): um request que
// atravessou a virada da janela não desconta da janela nova. Nunca mexe em
// bloqueio e nunca cria entrada.
func (l *Limiter) Refund(key string, dec domain.Decision) bool {
	if !dec.Allowed {
		return false
	}
	now := l.now()
	refunded := false
	l.store.Apply(domain.Key(key), func(e *domain.Entry) *domain.Entry {
		if e == nil || e.Blocked || e.Count == 0 || e.WindowElapsed(now) || !e.ResetTime.Equal(dec.ResetTime) {
			return e
		}
		e.Count--
		refunded = true
		return e
	})
	return refunded
}

func (l *Limiter) Reset(key string) {
	l.store.Delete(domain.Key(key))
}

func (l *Limiter) Clear() {
	n := l.store.Clear()
	l.logger.WithField("cleared", n).Info("rate limit: all entries cleared")
}

func (l *Limiter) Stats() domain.Stats {
	var st domain.Stats
	l.store.Range(func(_ domain.Key, e domain.Entry) bool {
		st.TotalEntries++
		if e.Blocked {
			st.BlockedEntries++
		}
		return true
	})
	st.ActiveEntries = st.TotalEntries - st.BlockedEntries
	return st
}

// Sweep força uma varredura do reaper fora do agendamento.
func (l *Limiter) Sweep() int {
	return l.reaper.Sweep()
}

// Close para o reaper e espera a goroutine terminar. Idempotente.
func (l *Limiter) Close() error {
	l.closeOnce.Do(l.reaper.Stop)
	return nil
}
