package ratelimit

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"admission-gateway/middleware/ratelimit/application"
	"admission-gateway/middleware/ratelimit/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEndpoints_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "endpoints.yaml")
	data := []byte(`endpoints:
  default:
    window: 30s
    max-requests: 10
    block-duration: 1m
  auth:
    window: 15m
    max-requests: 5
    block-duration: 30m
    key: ip
    prefix: /api/auth
  checkout:
    window: 1m
    max-requests: 3
    block-duration: 5m
    key: ip+user
    skip-successful: true
`)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	cfgs, err := LoadEndpoints(path)
	require.NoError(t, err)
	require.Len(t, cfgs, 3)

	assert.Equal(t, domain.Config{Window: 30 * time.Second, MaxRequests: 10, BlockDuration: time.Minute}, cfgs["default"].Config)
	assert.Equal(t, domain.KeyByIP, cfgs["default"].KeyMode)
	assert.Equal(t, "/api/auth", cfgs["auth"].PathPrefix)
	assert.Equal(t, domain.KeyByIPAndUser, cfgs["checkout"].KeyMode)
	assert.True(t, cfgs["checkout"].SkipSuccessful)
}

func TestParseEndpoints_FillsMissingDefault(t *testing.T) {
	cfgs, err := ParseEndpoints([]byte(`endpoints:
  auth: {window: 1m, max-requests: 1, block-duration: 1m}
`))
	require.NoError(t, err)

	want := application.DefaultEndpoints()[application.DefaultEndpoint]
	assert.Equal(t, want, cfgs[application.DefaultEndpoint])
}

func TestParseEndpoints_Errors(t *testing.T) {
	_, err := ParseEndpoints([]byte(`endpoints:
  auth: {window: 1m, max-requests: 1, key: cookie}
`))
	assert.ErrorIs(t, err, domain.ErrUnknownKeyMode)

	_, err = ParseEndpoints([]byte(`endpoints:
  auth: {window: 0s, max-requests: 1}
`))
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)

	_, err = ParseEndpoints([]byte(`endpoints: [`))
	assert.Error(t, err)

	_, err = LoadEndpoints(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
