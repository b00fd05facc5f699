package ratelimit

import (
	"net"
	"net/http"
	"strings"

	"admission-gateway/middleware/ratelimit/domain"
)

// KeyFunc deriva a chave de admissão de um request conforme o modo do endpoint.
type KeyFunc func(r *http.Request, mode domain.KeyMode) string

// DefaultKeyFunc usa a cadeia de headers de IP (X-Forwarded-For, X-Real-IP,
// CF-Connecting-IP) e o header de usuário. Sem nenhum header de IP, cai para
// o host de RemoteAddr (conexão direta, sem proxy na frente).
func DefaultKeyFunc(userHeader string) KeyFunc {
	if userHeader == "" {
		userHeader = domain.HeaderUserID
	}
	return func(r *http.Request, mode domain.KeyMode) string {
		userID := strings.TrimSpace(r.Header.Get(userHeader))
		return domain.KeyFor(mode, userID, RequestIP(r))
	}
}

// RequestIP é domain.ClientIP com fallback para RemoteAddr.
func RequestIP(r *http.Request) string {
	ip := domain.ClientIP(r.Header)
	if ip != domain.UnknownIP {
		return ip
	}

	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return domain.UnknownIP
}
