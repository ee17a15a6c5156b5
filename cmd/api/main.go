package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SergeiKhy/shortlink-registry/internal/clickdata"
	"github.com/SergeiKhy/shortlink-registry/internal/config"
	"github.com/SergeiKhy/shortlink-registry/internal/handler"
	applog "github.com/SergeiKhy/shortlink-registry/internal/logger"
	"github.com/SergeiKhy/shortlink-registry/internal/metrics"
	"github.com/SergeiKhy/shortlink-registry/internal/middleware"
	"github.com/SergeiKhy/shortlink-registry/internal/repository"
	"github.com/SergeiKhy/shortlink-registry/internal/service"
	"github.com/SergeiKhy/shortlink-registry/internal/shortcode"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	// Загрузка конфига
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Инициализация логгера
	logger, err := applog.New(applog.Config{
		Development: cfg.Log.Development,
		Level:       cfg.Log.Level,
		Encoding:    cfg.Log.Encoding,
	})
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer applog.Sync(logger)

	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()

	// Хранилище
	backend, err := repository.NewBackend(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to init storage backend", zap.String("driver", cfg.Storage.Driver), zap.Error(err))
	}
	defer backend.Close()
	logger.Info("Storage backend ready", zap.String("driver", cfg.Storage.Driver))

	store := repository.NewStore(backend, cfg.Storage.Key, logger)

	generator, err := shortcode.New(cfg.ShortCode.Generator, cfg.ShortCode.Length)
	if err != nil {
		logger.Fatal("Failed to init short code generator", zap.Error(err))
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	// Реестр ссылок
	registry := service.NewRegistry(ctx, store, generator, clickdata.NewMockProvider(), logger,
		service.WithBaseURL(cfg.App.BaseURL),
		service.WithMaxCodeAttempts(cfg.Registry.MaxCodeAttempts),
		service.WithMetrics(m),
	)

	// Периодическая очистка истёкших ссылок
	pruner := service.NewPruner(registry, cfg.Registry.PruneInterval, logger)
	pruner.Start()
	defer pruner.Stop()

	// Инициализация middleware
	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		BurstSize:         cfg.RateLimit.BurstSize,
		CleanupInterval:   time.Minute,
	})
	defer rateLimiter.Stop()

	var apiKeyMiddleware gin.HandlerFunc
	if len(cfg.Auth.APIKeys) > 0 {
		apiKeyMiddleware = middleware.RequireAPIKey(cfg.Auth.APIKeys, logger)
		logger.Info("API key authentication enabled", zap.Int("keys_count", len(cfg.Auth.APIKeys)))
	}

	var metricsHandler http.Handler
	if m != nil {
		metricsHandler = m.Handler()
	}

	// Настройка роутера
	router := handler.NewRouter(handler.RouterDeps{
		Registry:         registry,
		RateLimiter:      rateLimiter,
		APIKeyMiddleware: apiKeyMiddleware,
		MetricsHandler:   metricsHandler,
		RequestMetadata:  cfg.Registry.ClickMetadata == "request",
		Logger:           logger,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Запуск в горутине
	go func() {
		logger.Info("Server starting", zap.String("port", cfg.App.Port), zap.String("base_url", cfg.App.BaseURL))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
