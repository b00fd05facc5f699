package ratelimit

import (
	"fmt"
	"os"
	"strings"
	"time"

	"admission-gateway/middleware/ratelimit/application"
	"admission-gateway/middleware/ratelimit/domain"

	"gopkg.in/yaml.v3"
)

// endpointFile é o formato YAML do mapa de endpoints:
//
//	endpoints:
//	  default: {window: 1m, max-requests: 100, block-duration: 1m}
//	  auth:    {window: 15m, max-requests: 5, block-duration: 30m, key: ip, prefix: /api/auth}
type endpointFile struct {
	Endpoints map[string]endpointEntry `yaml:"endpoints"`
}

type endpointEntry struct {
	Window         time.Duration `yaml:"window"`
	MaxRequests    int           `yaml:"max-requests"`
	BlockDuration  time.Duration `yaml:"block-duration"`
	Key            string        `yaml:"key"`
	SkipSuccessful bool          `yaml:"skip-successful"`
	Prefix         string        `yaml:"prefix"`
}

// LoadEndpoints lê o mapa de endpoints de um arquivo YAML.
func LoadEndpoints(path string) (map[string]domain.EndpointConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read endpoints file: %w", err)
	}
	return ParseEndpoints(data)
}

// ParseEndpoints converte o YAML e valida cada entrada. Sem "default" no
// arquivo, usa o default de application.DefaultEndpoints.
func ParseEndpoints(data []byte) (map[string]domain.EndpointConfig, error) {
	var f endpointFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse endpoints file: %w", err)
	}

	out := make(map[string]domain.EndpointConfig, len(f.Endpoints)+1)
	for name, e := range f.Endpoints {
		name = strings.TrimSpace(name)
		mode, err := domain.ParseKeyMode(e.Key)
		if err != nil {
			return nil, fmt.Errorf("endpoint %q: %w", name, err)
		}
		cfg := domain.EndpointConfig{
			Config: domain.Config{
				Window:        e.Window,
				MaxRequests:   e.MaxRequests,
				BlockDuration: e.BlockDuration,
			},
			KeyMode:        mode,
			SkipSuccessful: e.SkipSuccessful,
			PathPrefix:     strings.TrimSpace(e.Prefix),
		}
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("endpoint %q: %w", name, err)
		}
		out[name] = cfg
	}

	if _, ok := out[application.DefaultEndpoint]; !ok {
		out[application.DefaultEndpoint] = application.DefaultEndpoints()[application.DefaultEndpoint]
	}
	return out, nil
}
