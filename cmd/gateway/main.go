package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/dnscache"
	"go.uber.org/zap"

	"playergate/internal/cache"
	"playergate/internal/config"
	"playergate/internal/fetch"
	"playergate/internal/handlers"
	"playergate/internal/httpserver"
	"playergate/internal/metrics"
	"playergate/internal/platform"
	"playergate/internal/ratelimit"
	"playergate/internal/synthetic"
	"playergate/pkg/logging/logging"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "path to YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		log.Fatalf("gateway exited with error: %v", err)
	}
}

func run(configPath string) error {
	// ----- Config -----
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	// ----- Logger -----
	logger, err := logging.NewLogger(logging.Options{Env: cfg.Log.Env, Level: cfg.Log.Level})
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	// ----- Metrics -----
	metrics.Register()

	logger.Info("loaded config",
		zap.String("config_file", configPath),
		zap.String("port", cfg.Server.Port),
		zap.String("cache_backend", cfg.Cache.Backend),
		zap.Bool("cache_coalesce", cfg.Cache.Coalesce),
		zap.Bool("auth_enabled", cfg.Auth.APIKey != ""),
		zap.Int64("rate_limit_rpm", cfg.RateLimit.RPM),
		zap.Bool("fallback_enabled", cfg.Fallback.Enabled),
		zap.Bool("dns_cache", cfg.Upstream.DNSCache),
	)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// ----- Redis client (only if needed) -----
	var redisClient *redis.Client
	if cfg.Cache.Backend == cache.BackendRedis {
		redisClient = redis.NewClient(&redis.Options{
			Addr: cfg.Redis.Addr,
		})
		defer redisClient.Close()
	}

	// ----- Cache -----
	store, err := cache.New(cache.Config{
		Backend:    cfg.Cache.Backend,
		DefaultTTL: fetch.DefaultTTL,
		MaxEntries: cfg.Cache.MaxEntries,
		Prefix:     "playergate",
	}, redisClient)
	if err != nil {
		return err
	}
	defer cache.Close(store)

	// Fail fast if Redis is misconfigured
	if err := cache.Ping(ctx, store); err != nil {
		logger.Error("cache connection failed", zap.Error(err))
		return err
	}
	if redisClient != nil {
		logger.Info("redis connection established",
			zap.String("addr", cfg.Redis.Addr),
		)
	}

	// ----- Fetch gateway -----
	fetchOpts := fetch.Options{Coalesce: cfg.Cache.Coalesce}
	if cfg.Upstream.DNSCache {
		resolver := &dnscache.Resolver{}
		fetchOpts.Resolver = resolver
		go refreshDNS(ctx, resolver, 5*time.Minute)
	}
	gateway := fetch.New(store, fetchOpts, logger)
	defer gateway.Close()

	// ----- Handlers -----
	api := handlers.NewAPIHandler(
		platform.NewClient(gateway, cfg.Upstream.Hosts()),
		synthetic.New(),
		cfg.Fallback.Enabled,
	)

	// ----- Rate limiter -----
	limiter := ratelimit.NewRegistry()
	go limiter.Run(ctx, time.Minute, 10*time.Minute)

	// ----- Router + middleware -----
	r := chi.NewRouter()
	httpserver.SetupRouter(r, logger, api, httpserver.Options{
		APIKey:       cfg.Auth.APIKey,
		RateLimitRPM: cfg.RateLimit.RPM,
		Limiter:      limiter,
	})

	// ----- HTTP server -----
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	logger.Info("starting gateway",
		zap.String("addr", srv.Addr),
		zap.String("cache_backend", cfg.Cache.Backend),
	)

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// ----- Graceful shutdown -----
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		logger.Error("server error", zap.Error(err))
		return err
	case s := <-sig:
		logger.Info("shutdown signal received", zap.String("signal", s.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
		return err
	}

	logger.Info("server shutdown complete")
	return nil
}

// refreshDNS re-resolves cached hosts and drops unused ones until ctx is done.
func refreshDNS(ctx context.Context, resolver *dnscache.Resolver, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			resolver.Refresh(true)
		}
	}
}
