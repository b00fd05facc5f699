package domain

import (
	"errors"
	"fmt"
	"strings"
)

const (
	UnknownIP    = "unknown"
	AnonymousKey = "anonymous"
)

// Headers de identidade lidos do request (IP na ordem abaixo, depois usuário).
const (
	HeaderForwardedFor   = "X-Forwarded-For"
	HeaderRealIP         = "X-Real-IP"
	HeaderCFConnectingIP = "CF-Connecting-IP"
	HeaderUserID         = "X-User-Id"
)

var ErrUnknownKeyMode = errors.New("unknown key mode")

// HeaderGetter é satisfeito por http.Header e por Headers.
type HeaderGetter interface {
	Get(key string) string
}

// Headers é um mapa simples nome->valor com busca case-insensitive.
type Headers map[string]string

func (h Headers) Get(key string) string {
	if v, ok := h[key]; ok {
		return v
	}
	for k, v := range h {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

// ClientIP extrai o IP do cliente: X-Forwarded-For (primeiro valor),
// depois X-Real-IP, depois CF-Connecting-IP. A ordem é fixa.
func ClientIP(h HeaderGetter) string {
	if h == nil {
		return UnknownIP
	}
	if xff := h.Get(HeaderForwardedFor); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
		return UnknownIP
	}
	if v := strings.TrimSpace(h.Get(HeaderRealIP)); v != "" {
		return v
	}
	if v := strings.TrimSpace(h.Get(HeaderCFConnectingIP)); v != "" {
		return v
	}
	return UnknownIP
}

// CreateKey monta a chave de admissão: usuário autenticado sempre vence o IP.
func CreateKey(userID, ip string) string {
	if userID != "" {
		return "user:" + userID
	}
	if ip != "" {
		return "ip:" + ip
	}
	return AnonymousKey
}

// KeyMode define como o adapter de borda deriva a chave de um request.
type KeyMode string

const (
	KeyByIP        KeyMode = "ip"
	KeyByUser      KeyMode = "user"
	KeyByIPAndUser KeyMode = "ip+user"
)

func ParseKeyMode(s string) (KeyMode, error) {
	switch m := KeyMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return KeyByIP, nil
	case KeyByIP, KeyByUser, KeyByIPAndUser:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKeyMode, s)
	}
}

// KeyFor deriva a chave conforme o modo do endpoint.
// No modo user, requests anônimos caem para a chave por IP.
func KeyFor(mode KeyMode, userID, ip string) string {
	switch mode {
	case KeyByUser:
		return CreateKey(userID, ip)
	case KeyByIPAndUser:
		if userID == "" {
			return CreateKey("", ip)
		}
		return CreateKey("", ip) + "|" + CreateKey(userID, "")
	default:
		return CreateKey("", ip)
	}
}
