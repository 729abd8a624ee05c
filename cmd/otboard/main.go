package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"otboard/internal/cache"
	"otboard/internal/config"
	"otboard/internal/handler"
	"otboard/internal/hub"
	"otboard/internal/meta"
	"otboard/internal/middleware"
	"otboard/internal/panel"
	"otboard/pkg/statsapi"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("starting otboard server",
		"log_level", cfg.LogLevel.String(),
		"http_addr", cfg.HTTPAddr,
		"stats_api", cfg.StatsAPIBaseURL,
		"redis_enabled", cfg.RedisEnabled,
	)

	apiClient := statsapi.New(cfg.StatsAPIBaseURL)
	metaStore := meta.NewStore()
	refresher := meta.NewRefresher(apiClient, metaStore, cfg.MetaRefreshInterval, logger)

	var redisCache *cache.RedisCache
	if cfg.RedisEnabled {
		redisCache, err = cache.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, logger)
		if err != nil {
			logger.Warn("redis unavailable, running without response cache", "error", err)
			redisCache = nil
		} else {
			defer redisCache.Close()
		}
	}

	wsHub := hub.NewHub(logger)
	fetcher := panel.NewFetcher(apiClient, redisCache, metaStore, cfg.CacheTTL, logger)

	dashHandler := handler.NewDashboardHandler(fetcher, metaStore, apiClient, wsHub, logger)
	wsHandler := handler.NewWSHandler(wsHub, fetcher, metaStore, logger)
	healthHandler := handler.NewHealthHandler(metaStore, wsHub)
	statsHandler := handler.NewStatsHandler(wsHub, fetcher, metaStore)

	api := http.NewServeMux()

	api.HandleFunc("GET /v1/metadata", dashHandler.GetMetadata)
	api.HandleFunc("GET /v1/kpi", dashHandler.GetKPI)
	api.HandleFunc("GET /v1/hourly", dashHandler.GetHourly)
	api.HandleFunc("GET /v1/weekday", dashHandler.GetWeekday)
	api.HandleFunc("GET /v1/stops", dashHandler.GetStops)
	api.HandleFunc("GET /v1/heatmap", dashHandler.GetHeatmap)
	api.HandleFunc("GET /v1/lines/{line}/stops", dashHandler.GetLineStops)
	api.HandleFunc("GET /v1/settings", dashHandler.GetSettings)
	api.HandleFunc("POST /v1/settings", dashHandler.SaveSettings)

	api.HandleFunc("GET /v1/server-stats", statsHandler.GetStats)
	api.HandleFunc("GET /healthz", healthHandler.Healthz)
	api.HandleFunc("GET /readyz", healthHandler.Readyz)

	// The WebSocket route stays outside the gzip wrapper; the upgrade
	// hijacks the connection.
	mux := http.NewServeMux()
	mux.Handle("/", handler.GzipMiddleware(api))
	mux.HandleFunc("/v1/ws", wsHandler.ServeWS)

	rateLimiter := middleware.NewRateLimiter(
		cfg.RateLimitPerWindow,
		cfg.RateLimitWindow,
		cfg.RateLimitWhitelist,
		handler.ServerStats.IncRateLimitBlocked,
		logger,
	)

	var root http.Handler = mux
	root = handler.CORSMiddleware(root)
	root = handler.CountRequests(root)
	root = rateLimiter.Middleware(root)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      root,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go wsHub.Run(ctx)

	go refresher.Run(ctx)

	if redisCache != nil && cfg.CacheWarmOnStart {
		warmer := panel.NewWarmer(fetcher, metaStore, logger)
		go warmer.WarmAll(ctx)
	}

	go func() {
		logger.Info("starting HTTP server", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			cancel()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}
