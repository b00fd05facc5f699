package ratelimit

import (
	"context"
	"net/http"
	"time"

	"admission-gateway/middleware/ratelimit/application"
	"admission-gateway/middleware/ratelimit/domain"

	log "github.com/sirupsen/logrus"
)

const (
	HeaderLimit     = "X-RateLimit-Limit"
	HeaderRemaining = "X-RateLimit-Remaining"
	HeaderReset     = "X-RateLimit-Reset"
	HeaderEndpoint  = "X-RateLimit-Endpoint"
)

// EndpointFunc escolhe o endpoint lógico de um request.
type EndpointFunc func(r *http.Request) string

type Options struct {
	Registry   *application.Registry
	Stats      domain.StatsStore
	EndpointFn EndpointFunc
	KeyFn      KeyFunc
	// UserHeader é o header com o id do usuário autenticado (padrão X-User-Id).
	UserHeader          string
	RejectStatus        int
	AddRateLimitHeaders bool
	Logger              log.FieldLogger
	// Now é usado só para Retry-After.
	Now func() time.Time
}

type decisionKey struct{}

// Admission é o que fica no contexto de um request admitido.
type Admission struct {
	Endpoint string
	Key      string
	Limit    int
	domain.Decision
}

// AdmissionFromContext devolve a decisão anexada pelo middleware.
func AdmissionFromContext(ctx context.Context) (Admission, bool) {
	a, ok := ctx.Value(decisionKey{}).(Admission)
	return a, ok
}

// Middleware aplica o limiter do endpoint a cada request.
//
// Bloqueado: responde RejectStatus (429) com X-RateLimit-Remaining: 0,
// X-RateLimit-Reset (epoch s do fim do bloqueio) e Retry-After.
// Permitido: repassa o request com X-RateLimit-Remaining e a Admission no contexto.
func Middleware(opts Options) func(next http.Handler) http.Handler {
	if opts.Registry == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusTooManyRequests
	}
	if opts.KeyFn == nil {
		opts.KeyFn = DefaultKeyFunc(opts.UserHeader)
	}
	if opts.EndpointFn == nil {
		reg := opts.Registry
		opts.EndpointFn = func(r *http.Request) string { return reg.PathEndpoint(r.URL.Path) }
	}
	if opts.Logger == nil {
		opts.Logger = log.StandardLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			name, cfg := opts.Registry.Resolve(opts.EndpointFn(r))
			_, lim := opts.Registry.Limiter(name)
			key := opts.KeyFn(r, cfg.KeyMode)

			dec := lim.Check(key)
			recordStats(r, opts, name, key, dec)

			if opts.AddRateLimitHeaders {
				w.Header().Set(HeaderEndpoint, name)
				w.Header().Set(HeaderLimit, formatInt(cfg.MaxRequests))
			}

			if !dec.Allowed {
				w.Header().Set(HeaderRemaining, "0")
				w.Header().Set(HeaderReset, formatUnix(dec.ResetTime))
				w.Header().Set("Retry-After", formatRetryAfter(dec.RetryAfter(opts.Now())))
				http.Error(w, http.StatusText(opts.RejectStatus), opts.RejectStatus)
				return
			}

			if opts.AddRateLimitHeaders {
				w.Header().Set(HeaderRemaining, formatInt(dec.Remaining))
				w.Header().Set(HeaderReset, formatUnix(dec.ResetTime))
			}

			r.Header.Set(HeaderRemaining, formatInt(dec.Remaining))
			ctx := context.WithValue(r.Context(), decisionKey{}, Admission{
				Endpoint: name,
				Key:      key,
				Limit:    cfg.MaxRequests,
				Decision: dec,
			})
			r = r.WithContext(ctx)

			if !cfg.SkipSuccessful {
				next.ServeHTTP(w, r)
				return
			}

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			if rec.status < http.StatusBadRequest {
				lim.Refund(key, dec)
			}
		})
	}
}

func recordStats(r *http.Request, opts Options, endpoint, key string, dec domain.Decision) {
	if opts.Stats == nil {
		return
	}
	err := opts.Stats.Record(r.Context(), domain.StatsEvent{
		Endpoint:     endpoint,
		Key:          domain.Key(key),
		Allowed:      dec.Allowed,
		Blocked:      dec.Blocked,
		BlockStarted: dec.BlockStarted,
		Method:       r.Method,
		Path:         r.URL.Path,
		At:           opts.Now(),
	})
	if err != nil {
		opts.Logger.WithError(err).WithField("endpoint", endpoint).Debug("rate limit: stats record failed")
	}
}

// statusRecorder guarda o status escrito pelo handler (SkipSuccessful).
type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (s *statusRecorder) WriteHeader(code int) {
	if !s.wroteHeader {
		s.status = code
		s.wroteHeader = true
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	s.wroteHeader = true
	return s.ResponseWriter.Write(b)
}

func (s *statusRecorder) Unwrap() http.ResponseWriter { return s.ResponseWriter }
