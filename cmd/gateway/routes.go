package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"

	"storefront-system/config"
	"storefront-system/internal/commerce"
	"storefront-system/internal/gateway/handlers"
	"storefront-system/internal/gateway/middleware"
	"storefront-system/internal/utils"
)

// healthCheck reports nil when the dependency answers.
type healthCheck func(ctx context.Context) error

func newRouter(cfg config.Config, svc handlers.StoreService, jwt *utils.JWTManager, checks map[string]healthCheck) (*gin.Engine, error) {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	limit, err := middleware.RateLimit(cfg.HTTP.RateLimit)
	if err != nil {
		return nil, err
	}

	r.Use(middleware.CORS(cfg.HTTP.AllowedOrigins))
	r.Use(requestLogger())
	r.Use(gin.Recovery())
	r.Use(limit)

	// --- Storefront API ---
	handlers.NewStoreHTTPHandler(svc).RegisterRoutes(r.Group("/api/v1"), middleware.JWTAuth(jwt))

	r.GET("/health", healthCheckHandler(checks))

	return r, nil
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		event := log.Info()
		if c.Writer.Status() >= http.StatusInternalServerError {
			event = log.Error()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("request")
	}
}

func healthChecks(store commerce.Store, rdb *redis.Client) map[string]healthCheck {
	checks := map[string]healthCheck{}
	if pinger, ok := store.(interface{ Ping(context.Context) error }); ok {
		checks["store"] = pinger.Ping
	}
	if rdb != nil {
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}
	return checks
}

func healthCheckHandler(checks map[string]healthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		status := "healthy"
		httpStatus := http.StatusOK
		services := map[string]string{}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				services[name] = "unavailable"
				status = "degraded"
				httpStatus = http.StatusServiceUnavailable
				continue
			}
			services[name] = "healthy"
		}

		c.JSON(httpStatus, gin.H{
			"status":    status,
			"services":  services,
			"timestamp": time.Now(),
		})
	}
}
