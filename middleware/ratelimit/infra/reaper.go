package infra

import (
	"context"
	"sync"
	"time"

	"admission-gateway/middleware/ratelimit/domain"

	log "github.com/sirupsen/logrus"
)

const DefaultReapInterval = 60 * time.Second

// Reaper remove periodicamente as entradas expiradas de um EntryStore.
//
// Uma entrada só sai quando a janela terminou e o bloqueio (se houver) venceu:
// remover antes disso zeraria a cota do cliente antes da hora.
type Reaper struct {
	store    domain.EntryStore
	interval time.Duration
	now      func() time.Time
	logger   log.FieldLogger

	mu     sync.Mutex
	Cancel context.CancelFunc
	done   chan struct{}
}

func NewReaper(store domain.EntryStore, interval time.Duration, now func() time.Time, logger log.FieldLogger) *Reaper {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Reaper{
		store:    store,
		interval: interval,
		now:      now,
		logger:   logger,
	}
}

// Sweep executa uma varredura e devolve quantas entradas foram removidas.
func (r *Reaper) Sweep() int {
	now := r.now()
	purged := r.store.DeleteFunc(func(_ domain.Key, e domain.Entry) bool {
		return e.Expired(now)
	})
	fields := log.Fields{"purged": purged, "remaining": r.store.Len()}
	if purged > 0 {
		r.logger.WithFields(fields).Info("rate limit: expired entries purged")
	} else {
		r.logger.WithFields(fields).Debug("rate limit: reap sweep found nothing to purge")
	}
	return purged
}

// Start inicia a goroutine de limpeza. Com interval <= 0 não faz nada:
// nesse caso a store cresce sem limite (restrição operacional, não erro).
// Chamar Start duas vezes não cria uma segunda goroutine.
func (r *Reaper) Start() {
	if r.interval <= 0 {
		r.logger.WithField("interval", r.interval).Warn("rate limit: reaper disabled, entry store is unbounded")
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.Cancel = cancel
	r.done = make(chan struct{})

	t := time.NewTicker(r.interval)
	go func(done chan struct{}) {
		defer close(done)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				r.Sweep()
			}
		}
	}(r.done)
}

// Stop cancela a goroutine e espera ela terminar. Idempotente.
func (r *Reaper) Stop() {
	r.mu.Lock()
	cancel, done := r.Cancel, r.done
	r.Cancel, r.done = nil, nil
	r.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}
