// utilitário pequeno para formatação rápida/consistente de valores numéricos em headers/logs.
//    Evita puxar fmt (que é mais “pesado” e genérico) só para formatação simples

package ratelimit

import (
	"strconv"
	"time"
)

func formatInt(v int) string { return strconv.Itoa(v) }

// formatUnix: segundos desde epoch, mesmo formato usado em X-RateLimit-Reset.
func formatUnix(t time.Time) string { return strconv.FormatInt(t.Unix(), 10) }

// RetryAfterSeconds arredonda para cima, com mínimo de 1: Retry-After: 0
// faria o cliente voltar antes do bloqueio acabar.
func RetryAfterSeconds(d time.Duration) int64 {
	secs := int64(d / time.Second)
	if d%time.Second != 0 {
		secs++
	}
	return max(secs, 1)
}

func formatRetryAfter(d time.Duration) string {
	return strconv.FormatInt(RetryAfterSeconds(d), 10)
}
