// Package ginlimit liga o motor de admissão às rotas de API servidas com gin.
//
// É o mesmo Registry usado pelo middleware de borda; a diferença é o formato
// da rejeição (JSON) e a leitura do usuário a partir do contexto do gin.
package ginlimit

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"admission-gateway/middleware/ratelimit"
	"admission-gateway/middleware/ratelimit/application"
	"admission-gateway/middleware/ratelimit/domain"

	"github.com/gin-gonic/gin"
)

// ContextRemaining é a chave do gin.Context com a cota restante do request.
const ContextRemaining = "ratelimit.remaining"

type config struct {
	userKey    string
	userHeader string
	now        func() time.Time
	stats      domain.StatsStore
}

type Option func(*config)

// WithUserContextKey define a chave do gin.Context onde o middleware de
// autenticação guarda o id do usuário (padrão "userID").
func WithUserContextKey(key string) Option {
	return func(c *config) { c.userKey = key }
}

func WithUserHeader(h string) Option {
	return func(c *config) { c.userHeader = h }
}

func WithNow(now func() time.Time) Option {
	return func(c *config) { c.now = now }
}

// WithStats registra cada decisão no sink (melhor esforço).
func WithStats(s domain.StatsStore) Option {
	return func(c *config) { c.stats = s }
}

// Middleware aplica o limiter do endpoint nomeado a um grupo de rotas.
func Middleware(reg *application.Registry, endpoint string, opts ...Option) gin.HandlerFunc {
	cfg := config{userKey: "userID", userHeader: domain.HeaderUserID, now: time.Now}
	for _, opt := range opts {
		opt(&cfg)
	}

	name, ecfg := reg.Resolve(endpoint)
	_, lim := reg.Limiter(name)

	return func(c *gin.Context) {
		key := domain.KeyFor(ecfg.KeyMode, userID(c, cfg), ratelimit.RequestIP(c.Request))
		dec := lim.Check(key)
		if cfg.stats != nil {
			_ = cfg.stats.Record(c.Request.Context(), domain.StatsEvent{
				Endpoint:     name,
				Key:          domain.Key(key),
				Allowed:      dec.Allowed,
				Blocked:      dec.Blocked,
				BlockStarted: dec.BlockStarted,
				Method:       c.Request.Method,
				Path:         c.FullPath(),
				At:           cfg.now(),
			})
		}

		c.Header(ratelimit.HeaderLimit, strconv.Itoa(ecfg.MaxRequests))
		c.Header(ratelimit.HeaderReset, strconv.FormatInt(dec.ResetTime.Unix(), 10))

		if !dec.Allowed {
			retry := ratelimit.RetryAfterSeconds(dec.RetryAfter(cfg.now()))
			c.Header(ratelimit.HeaderRemaining, "0")
			c.Header("Retry-After", strconv.FormatInt(retry, 10))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded",
				"retry_after": retry,
			})
			return
		}

		c.Header(ratelimit.HeaderRemaining, strconv.Itoa(dec.Remaining))
		c.Set(ContextRemaining, dec.Remaining)
		c.Next()

		if ecfg.SkipSuccessful && c.Writer.Status() < http.StatusBadRequest {
			lim.Refund(key, dec)
		}
	}
}

func userID(c *gin.Context, cfg config) string {
	if v, ok := c.Get(cfg.userKey); ok {
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return strings.TrimSpace(c.GetHeader(cfg.userHeader))
}
