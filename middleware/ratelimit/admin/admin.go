// Package admin expõe as operações administrativas do Registry via HTTP.
//
//	GET    /stats                         agregado de todos os endpoints
//	GET    /{endpoint}/stats              agregado de um endpoint
//	POST   /{endpoint}/keys/{key}/unblock libera uma chave bloqueada
//	DELETE /{endpoint}/keys/{key}         remove a entrada de uma chave
//	DELETE /{endpoint}/keys               remove todas as entradas do endpoint
//
// Não tem autenticação própria: monte em um listener interno.
package admin

import (
	"encoding/json"
	"net/http"
	"net/url"

	"admission-gateway/middleware/ratelimit/application"
	"admission-gateway/middleware/ratelimit/domain"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"
)

type handler struct {
	reg    *application.Registry
	logger log.FieldLogger
}

func NewRouter(reg *application.Registry, logger log.FieldLogger) http.Handler {
	if logger == nil {
		logger = log.StandardLogger()
	}
	h := &handler{reg: reg, logger: logger}

	r := chi.NewRouter()
	r.Get("/stats", h.allStats)
	r.Route("/{endpoint}", func(r chi.Router) {
		r.Use(h.requireEndpoint)
		r.Get("/stats", h.endpointStats)
		r.Post("/keys/{key}/unblock", h.unblock)
		r.Delete("/keys/{key}", h.reset)
		r.Delete("/keys", h.clear)
	})
	return r
}

func (h *handler) requireEndpoint(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.reg.Has(chi.URLParam(r, "endpoint")) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown endpoint"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *handler) allStats(w http.ResponseWriter, _ *http.Request) {
	out := make(map[string]domain.Stats)
	for _, name := range h.reg.Endpoints() {
		out[name] = domain.Stats{}
	}
	for name, st := range h.reg.Stats() {
		out[name] = st
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) endpointStats(w http.ResponseWriter, r *http.Request) {
	_, lim := h.reg.Limiter(chi.URLParam(r, "endpoint"))
	writeJSON(w, http.StatusOK, lim.Stats())
}

func (h *handler) unblock(w http.ResponseWriter, r *http.Request) {
	endpoint := chi.URLParam(r, "endpoint")
	key := keyParam(r)
	_, lim := h.reg.Limiter(endpoint)

	ok := lim.Unblock(key)
	h.logger.WithFields(log.Fields{"endpoint": endpoint, "key": key, "unblocked": ok}).Info("admin: unblock requested")
	writeJSON(w, http.StatusOK, map[string]bool{"unblocked": ok})
}

func (h *handler) reset(w http.ResponseWriter, r *http.Request) {
	endpoint := chi.URLParam(r, "endpoint")
	key := keyParam(r)
	_, lim := h.reg.Limiter(endpoint)

	lim.Reset(key)
	h.logger.WithFields(log.Fields{"endpoint": endpoint, "key": key}).Info("admin: key reset")
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) clear(w http.ResponseWriter, r *http.Request) {
	_, lim := h.reg.Limiter(chi.URLParam(r, "endpoint"))
	lim.Clear()
	w.WriteHeader(http.StatusNoContent)
}

// keyParam desfaz o escape: chaves têm ':' e '|' ("ip:1.2.3.4|user:u1").
func keyParam(r *http.Request) string {
	raw := chi.URLParam(r, "key")
	if k, err := url.PathUnescape(raw); err == nil {
		return k
	}
	return raw
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
