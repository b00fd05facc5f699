package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"admission-gateway/middleware/ratelimit"
	"admission-gateway/middleware/ratelimit/admin"
	"admission-gateway/middleware/ratelimit/application"
	"admission-gateway/middleware/ratelimit/domain"
	"admission-gateway/middleware/ratelimit/infra"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

func main() {
	// .env é opcional; variáveis já exportadas têm precedência
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.WithError(err).Warn("failed to load .env")
	}

	// run não usa log.Fatal: os defers fecham registry e redis
	if err := run(); err != nil {
		log.WithError(err).Error("gateway stopped")
		os.Exit(1)
	}
}

func run() error {
	cfg, err := readConfig()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	setupLogging(cfg.logLevel, cfg.logFormat)

	target, err := url.Parse(cfg.upstreamURL)
	if err != nil {
		return fmt.Errorf("invalid UPSTREAM_URL: %w", err)
	}

	// upstream fora do ar gera um erro por request: loga só alguns
	proxyErrLog := rate.Sometimes{First: 3, Interval: 10 * time.Second}
	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		proxyErrLog.Do(func() {
			log.WithError(err).WithField("path", r.URL.Path).Error("proxy error")
		})
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}

	endpoints := application.DefaultEndpoints()
	if cfg.endpointsFile != "" {
		endpoints, err = ratelimit.LoadEndpoints(cfg.endpointsFile)
		if err != nil {
			return err
		}
	}

	registry, err := application.NewRegistry(endpoints,
		application.WithLogger(log.WithField("component", "ratelimit")),
		application.WithReapInterval(cfg.reapInterval),
	)
	if err != nil {
		return fmt.Errorf("rate limit registry: %w", err)
	}
	defer func() { _ = registry.Close() }()

	var statsStore domain.StatsStore
	if cfg.rateStatsEnabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.rateStatsRedisAddr,
			Password: cfg.rateStatsRedisPassword,
			DB:       cfg.rateStatsRedisDB,
		})
		defer func() { _ = rdb.Close() }()

		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_, err := rdb.Ping(pingCtx).Result()
		cancel()
		if err != nil {
			return fmt.Errorf("redis stats ping: %w", err)
		}

		statsStore = infra.NewRedisStatsStore(
			rdb,
			infra.WithStatsPrefix(cfg.rateStatsPrefix),
			infra.WithStatsTTL(cfg.rateStatsTTL),
			infra.WithStatsBucket(cfg.rateStatsBucket),
			infra.WithStatsTrackKeys(cfg.rateStatsTrackKeys),
		)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	h := http.Handler(proxy)
	if cfg.rateEnabled {
		h = ratelimit.Middleware(ratelimit.Options{
			Registry:            registry,
			Stats:               statsStore,
			UserHeader:          cfg.userHeader,
			RejectStatus:        http.StatusTooManyRequests,
			AddRateLimitHeaders: cfg.addHeaders,
			Logger:              log.WithField("component", "edge"),
		})(h)
	}

	srv := &http.Server{
		Addr:              cfg.listenAddr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	servers := []*http.Server{srv}
	if cfg.adminAddr != "" {
		adminSrv := &http.Server{
			Addr:              cfg.adminAddr,
			Handler:           adminHandler(registry),
			ReadHeaderTimeout: 10 * time.Second,
		}
		servers = append(servers, adminSrv)

		go func() {
			log.WithField("addr", cfg.adminAddr).Info("admin listening")
			if err := adminSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.WithError(err).Error("admin server error")
				cancel()
			}
		}()
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		for _, s := range servers {
			_ = s.Shutdown(shutdownCtx)
		}
	}()

	log.WithFields(log.Fields{
		"addr":     cfg.listenAddr,
		"upstream": target.String(),
	}).Info("gateway listening")
	log.WithFields(log.Fields{
		"enabled":       cfg.rateEnabled,
		"endpoints":     strings.Join(registry.Endpoints(), ","),
		"endpointsFile": cfg.endpointsFile,
		"reapInterval":  cfg.reapInterval,
	}).Info("rate")
	log.WithFields(log.Fields{
		"enabled":   cfg.rateStatsEnabled,
		"redisAddr": cfg.rateStatsRedisAddr,
		"bucket":    cfg.rateStatsBucket,
		"ttl":       cfg.rateStatsTTL,
		"trackKeys": cfg.rateStatsTrackKeys,
	}).Info("rate-stats")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

// adminHandler monta /_ratelimit e /metrics no listener interno.
func adminHandler(registry *application.Registry) http.Handler {
	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		infra.NewStatsCollector("gateway", registry.Sources),
	)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Mount("/_ratelimit", admin.NewRouter(registry, log.WithField("component", "admin")))
	r.Handle("/metrics", promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}))
	return r
}

func setupLogging(level, format string) {
	if lvl, err := log.ParseLevel(level); err == nil {
		log.SetLevel(lvl)
	} else {
		log.WithField("level", level).Warn("invalid LOG_LEVEL, using info")
		log.SetLevel(log.InfoLevel)
	}
	if strings.EqualFold(format, "json") {
		log.SetFormatter(&log.JSONFormatter{})
		return
	}
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
}

type config struct {
	listenAddr    string
	adminAddr     string
	upstreamURL   string
	rateEnabled   bool
	endpointsFile string
	reapInterval  time.Duration
	userHeader    string
	addHeaders    bool
	logLevel      string
	logFormat     string

	rateStatsEnabled       bool
	rateStatsRedisAddr     string
	rateStatsRedisPassword string
	rateStatsRedisDB       int
	rateStatsPrefix        string
	rateStatsTTL           time.Duration
	rateStatsBucket        string
	rateStatsTrackKeys     bool
}

func readConfig() (config, error) {
	cfg := config{}
	cfg.listenAddr = getenvDefault("LISTEN_ADDR", ":8080")
	cfg.adminAddr = getenvDefault("ADMIN_ADDR", "127.0.0.1:9090")
	cfg.upstreamURL = os.Getenv("UPSTREAM_URL")
	cfg.rateEnabled = getenvBoolDefault("RATE_ENABLED", true)
	cfg.endpointsFile = os.Getenv("RATE_ENDPOINTS_FILE")
	// <= 0 desliga o reaper: a memória cresce com o número de chaves
	cfg.reapInterval = getenvDurationDefault("RATE_REAP_INTERVAL", infra.DefaultReapInterval)
	cfg.userHeader = getenvDefault("RATE_USER_HEADER", domain.HeaderUserID)
	cfg.addHeaders = getenvBoolDefault("ADD_RATELIMIT_HEADERS", false)
	cfg.logLevel = getenvDefault("LOG_LEVEL", "info")
	cfg.logFormat = getenvDefault("LOG_FORMAT", "text")

	cfg.rateStatsEnabled = getenvBoolDefault("RATE_STATS_ENABLED", false)
	cfg.rateStatsRedisAddr = getenvDefault("RATE_STATS_REDIS_ADDR", "")
	cfg.rateStatsRedisPassword = os.Getenv("RATE_STATS_REDIS_PASSWORD")
	cfg.rateStatsRedisDB = getenvIntDefault("RATE_STATS_REDIS_DB", 0)
	cfg.rateStatsPrefix = getenvDefault("RATE_STATS_PREFIX", "ratelimit:stats")
	cfg.rateStatsTTL = getenvDurationDefault("RATE_STATS_TTL", 24*time.Hour)
	cfg.rateStatsBucket = getenvDefault("RATE_STATS_BUCKET", "minute")
	cfg.rateStatsTrackKeys = getenvBoolDefault("RATE_STATS_TRACK_KEYS", false)

	if cfg.rateStatsEnabled && strings.TrimSpace(cfg.rateStatsRedisAddr) == "" {
		return config{}, errors.New("RATE_STATS_REDIS_ADDR is required when RATE_STATS_ENABLED=true")
	}
	if cfg.upstreamURL == "" {
		return config{}, errors.New("UPSTREAM_URL is required")
	}
	return cfg, nil
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvIntDefault(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getenvBoolDefault(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getenvDurationDefault(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
