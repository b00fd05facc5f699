package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"admission-gateway/middleware/ratelimit/application"
	"admission-gateway/middleware/ratelimit/domain"
	"admission-gateway/middleware/ratelimit/ginlimit"
	"admission-gateway/middleware/ratelimit/infra"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

func main() {
	// Exemplo: limiter dentro das rotas de API (sem proxy na frente)
	_ = godotenv.Load()

	if err := run(); err != nil {
		log.WithError(err).Error("example server stopped")
		os.Exit(1)
	}
}

func run() error {
	registry, err := application.NewRegistry(application.DefaultEndpoints(),
		application.WithLogger(log.WithField("component", "ratelimit")),
	)
	if err != nil {
		return fmt.Errorf("rate limit registry: %w", err)
	}
	defer func() { _ = registry.Close() }()

	stats := infra.NewMemoryStatsStore()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	addr := ":8081"
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		addr = v
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           newEngine(registry, stats),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.WithField("addr", addr).Info("example server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

func newEngine(registry *application.Registry, stats *infra.MemoryStatsStore) *gin.Engine {
	e := gin.New()
	e.Use(gin.Recovery())

	api := e.Group("/api")
	api.Use(fakeAuth)

	auth := api.Group("/auth", ginlimit.Middleware(registry, "auth", ginlimit.WithStats(stats)))
	auth.POST("/login", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"token": "example"})
	})

	orders := api.Group("/orders", ginlimit.Middleware(registry, "orders", ginlimit.WithStats(stats)))
	orders.GET("", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"orders":    []string{},
			"remaining": c.GetInt(ginlimit.ContextRemaining),
		})
	})

	api.GET("/ping", ginlimit.Middleware(registry, "api", ginlimit.WithStats(stats)), func(c *gin.Context) {
		c.String(http.StatusOK, "ok\n")
	})

	// sem autenticação nem limite: só para inspecionar o estado
	e.GET("/debug/ratelimit", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"entries":   registry.Stats(),
			"decisions": stats.ByEndpoint(),
			"total":     stats.Total(),
		})
	})
	return e
}

// fakeAuth faz o papel do middleware de autenticação: "Authorization: Bearer <id>"
// vira o userID do contexto.
func fakeAuth(c *gin.Context) {
	if token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer "); ok && token != "" {
		c.Set("userID", token)
	} else if id := c.GetHeader(domain.HeaderUserID); id != "" {
		c.Set("userID", id)
	}
	c.Next()
}
