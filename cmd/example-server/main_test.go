package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"admission-gateway/middleware/ratelimit/application"
	"admission-gateway/middleware/ratelimit/infra"

	"github.com/gin-gonic/gin"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_LoginIsLimitedPerIP(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger, _ := logtest.NewNullLogger()
	reg, err := application.NewRegistry(application.DefaultEndpoints(),
		application.WithLogger(logger),
		application.WithReapInterval(time.Hour),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reg.Close() })

	e := newEngine(reg, infra.NewMemoryStatsStore())

	login := func(ip string) int {
		r := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		r.Header.Set("X-Real-IP", ip)
		w := httptest.NewRecorder()
		e.ServeHTTP(w, r)
		return w.Code
	}

	for i := 0; i < 5; i++ {
		require.Equal(t, http.StatusOK, login("10.1.1.1"), "attempt %d", i+1)
	}
	assert.Equal(t, http.StatusTooManyRequests, login("10.1.1.1"))
	assert.Equal(t, http.StatusOK, login("10.1.1.2"))
}

func TestEngine_OrdersKeyedByBearerUser(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger, _ := logtest.NewNullLogger()
	reg, err := application.NewRegistry(application.DefaultEndpoints(),
		application.WithLogger(logger),
		application.WithReapInterval(time.Hour),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reg.Close() })

	e := newEngine(reg, infra.NewMemoryStatsStore())

	r := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
	r.Header.Set("Authorization", "Bearer u1")
	w := httptest.NewRecorder()
	e.ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"orders":[],"remaining":19}`, w.Body.String())

	_, lim := reg.Limiter("orders")
	assert.Equal(t, 1, lim.Stats().TotalEntries)
	assert.False(t, lim.Unblock("user:u1"))
}
