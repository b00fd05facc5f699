package application

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"admission-gateway/middleware/ratelimit/domain"

	log "github.com/sirupsen/logrus"
)

// DefaultEndpoint é o nome da configuração usada por endpoints não registrados.
const DefaultEndpoint = "default"

var ErrMissingDefault = errors.New("endpoint configs: missing \"default\" entry")

// DefaultEndpoints devolve o mapa padrão de endpoints.
func DefaultEndpoints() map[string]domain.EndpointConfig {
	return map[string]domain.EndpointConfig{
		DefaultEndpoint: {
			Config:  domain.Config{Window: time.Minute, MaxRequests: 100, BlockDuration: time.Minute},
			KeyMode: domain.KeyByIP,
		},
		"auth": {
			Config:     domain.Config{Window: 15 * time.Minute, MaxRequests: 5, BlockDuration: 30 * time.Minute},
			KeyMode:    domain.KeyByIP,
			PathPrefix: "/api/auth",
		},
		"api": {
			Config:     domain.Config{Window: time.Minute, MaxRequests: 60, BlockDuration: 5 * time.Minute},
			KeyMode:    domain.KeyByIPAndUser,
			PathPrefix: "/api",
		},
		"orders": {
			Config:     domain.Config{Window: time.Minute, MaxRequests: 20, BlockDuration: 5 * time.Minute},
			KeyMode:    domain.KeyByUser,
			PathPrefix: "/api/orders",
		},
	}
}

// Registry mantém um Limiter por endpoint lógico, criado sob demanda.
//
// Endpoints desconhecidos usam o limiter de "default" (compartilhado).
type Registry struct {
	configs map[string]domain.EndpointConfig
	opts    []Option
	logger  log.FieldLogger

	mu       sync.Mutex
	limiters map[string]*Limiter
	closed   bool
}

// NewRegistry valida todas as configurações. As opções valem para todos os
// limiters; WithStore é ignorada porque cada endpoint tem sua própria store.
func NewRegistry(configs map[string]domain.EndpointConfig, opts ...Option) (*Registry, error) {
	if _, ok := configs[DefaultEndpoint]; !ok {
		return nil, ErrMissingDefault
	}

	cloned := make(map[string]domain.EndpointConfig, len(configs))
	for name, cfg := range configs {
		if strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("%w: empty endpoint name", domain.ErrInvalidConfig)
		}
		if cfg.KeyMode == "" {
			cfg.KeyMode = domain.KeyByIP
		}
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("endpoint %q: %w", name, err)
		}
		cloned[name] = cfg
	}

	o := limiterOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger
	if logger == nil {
		logger = log.StandardLogger()
	}

	return &Registry{
		configs:  cloned,
		opts:     opts,
		logger:   logger,
		limiters: make(map[string]*Limiter),
	}, nil
}

// Resolve devolve o nome efetivo e a configuração de um endpoint.
func (r *Registry) Resolve(endpoint string) (string, domain.EndpointConfig) {
	if cfg, ok := r.configs[endpoint]; ok {
		return endpoint, cfg
	}
	return DefaultEndpoint, r.configs[DefaultEndpoint]
}

// Has informa se o endpoint tem configuração própria.
func (r *Registry) Has(endpoint string) bool {
	_, ok := r.configs[endpoint]
	return ok
}

// Limiter devolve (criando se preciso) o limiter efetivo do endpoint.
// Depois de Close, limiters novos nascem sem reaper.
func (r *Registry) Limiter(endpoint string) (string, *Limiter) {
	name, cfg := r.Resolve(endpoint)

	r.mu.Lock()
	defer r.mu.Unlock()

	if l, ok := r.limiters[name]; ok {
		return name, l
	}

	opts := append(append([]Option{}, r.opts...),
		WithStore(nil),
		WithLogger(r.logger.WithField("endpoint", name)),
	)
	if r.closed {
		opts = append(opts, WithReapInterval(0))
	}
	l, err := NewLimiter(cfg.Config, opts...)
	if err != nil {
		// configs já foram validadas em NewRegistry
		panic(fmt.Sprintf("rate limit registry: endpoint %q: %v", name, err))
	}
	r.limiters[name] = l
	return name, l
}

// Endpoints devolve os nomes configurados em ordem.
func (r *Registry) Endpoints() []string {
	names := make([]string, 0, len(r.configs))
	for name := range r.configs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PathEndpoint escolhe o endpoint com o maior PathPrefix que casa com path.
func (r *Registry) PathEndpoint(path string) string {
	best, bestLen := DefaultEndpoint, -1
	for name, cfg := range r.configs {
		p := cfg.PathPrefix
		if p == "" || !matchPrefix(path, p) {
			continue
		}
		if len(p) > bestLen || (len(p) == bestLen && name < best) {
			best, bestLen = name, len(p)
		}
	}
	return best
}

// matchPrefix casa por segmento: "/api" casa "/api" e "/api/x", não "/apix".
func matchPrefix(path, prefix string) bool {
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	return len(path) == len(prefix) || strings.HasSuffix(prefix, "/") || path[len(prefix)] == '/'
}

// Sources expõe os limiters já criados como fontes de estatística.
func (r *Registry) Sources() map[string]domain.StatsSource {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]domain.StatsSource, len(r.limiters))
	for name, l := range r.limiters {
		out[name] = l
	}
	return out
}

func (r *Registry) Stats() map[string]domain.Stats {
	out := make(map[string]domain.Stats)
	for name, src := range r.Sources() {
		out[name] = src.Stats()
	}
	return out
}

// Close para o reaper de todos os limiters criados.
func (r *Registry) Close() error {
	r.mu.Lock()
	r.closed = true
	limiters := make([]*Limiter, 0, len(r.limiters))
	for _, l := range r.limiters {
		limiters = append(limiters, l)
	}
	r.mu.Unlock()

	var errs []error
	for _, l := range limiters {
		if err := l.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
