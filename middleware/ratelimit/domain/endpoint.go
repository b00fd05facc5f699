package domain

import (
	"fmt"
	"strings"
)

// EndpointConfig é a configuração por endpoint lógico do adapter de borda.
type EndpointConfig struct {
	Config
	KeyMode KeyMode
	// SkipSuccessful: só requests que falharam contam para a cota.
	// Não é avaliado pelo Limiter; o adapter devolve a admissão via Refund.
	SkipSuccessful bool
	// PathPrefix associa o endpoint a um prefixo de rota (opcional).
	PathPrefix string
}

func (c EndpointConfig) Validate() error {
	if err := c.Config.Validate(); err != nil {
		return err
	}
	if _, err := ParseKeyMode(string(c.KeyMode)); err != nil {
		return err
	}
	if c.PathPrefix != "" && !strings.HasPrefix(c.PathPrefix, "/") {
		return fmt.Errorf("%w: path prefix must start with '/', got %q", ErrInvalidConfig, c.PathPrefix)
	}
	return nil
}
