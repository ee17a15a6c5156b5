package handler

import (
	"net/http"
	"time"

	applog "github.com/SergeiKhy/shortlink-registry/internal/logger"
	"github.com/SergeiKhy/shortlink-registry/internal/middleware"
	"github.com/SergeiKhy/shortlink-registry/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RouterDeps зависимости HTTP-слоя
type RouterDeps struct {
	Registry         service.LinkRegistry
	RateLimiter      *middleware.RateLimiter
	APIKeyMiddleware gin.HandlerFunc
	MetricsHandler   http.Handler
	RequestMetadata  bool
	Logger           *zap.Logger
}

func NewRouter(deps RouterDeps) *gin.Engine {
	logger := applog.OrNop(deps.Logger)

	router := gin.New()
	router.Use(gin.Recovery())

	// Middleware для логгирования
	router.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		}
		if client := middleware.KeyName(c); client != "" {
			fields = append(fields, zap.String("client", client))
		}
		logger.Info("Request", fields...)
	})

	linkHandler := NewLinkHandler(deps.Registry, deps.RequestMetadata, logger)

	// API v.1
	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", HealthCheck)

		// API key только для эндпоинтов управления
		if deps.APIKeyMiddleware != nil {
			v1.Use(deps.APIKeyMiddleware)
		}
		// Лимит на клиента по ключу, без ключа по IP
		if deps.RateLimiter != nil {
			v1.Use(deps.RateLimiter.MiddlewareWithKey(middleware.KeyName))
		}

		v1.POST("/links", linkHandler.CreateLinks)
		v1.GET("/links", linkHandler.ListLinks)
		v1.GET("/links/:code", linkHandler.GetLink)
		v1.POST("/links/:code/visit", linkHandler.Visit)
		v1.GET("/links/:code/clicks", linkHandler.GetClicks)
		v1.POST("/prune", linkHandler.Prune)
		v1.GET("/stats", linkHandler.GetStats)
	}

	if deps.MetricsHandler != nil {
		router.GET("/metrics", gin.WrapH(deps.MetricsHandler))
	}

	return router
}
