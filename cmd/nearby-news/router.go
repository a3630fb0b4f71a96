package main

import (
	"fmt"
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/nitesh/nearby_news/internal/api"
	"github.com/nitesh/nearby_news/internal/config"
	"github.com/nitesh/nearby_news/internal/logger"
	"github.com/nitesh/nearby_news/internal/metrics"
	"github.com/nitesh/nearby_news/internal/middleware"
)

// newRouter builds the HTTP router. Forwarding headers are honoured only from
// cfg.Http.TrustedProxies, so the rate limiter keys on the real peer otherwise.
func newRouter(cfg *config.Config, h *api.Handler, limiter *middleware.RateLimiter, log *slog.Logger) (*gin.Engine, error) {
	router := gin.New()
	if err := router.SetTrustedProxies(cfg.Http.TrustedProxies); err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}
	router.Use(gin.Recovery(), logger.AccessLog(log), middleware.Timeout(cfg.Http.RequestTimeout))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))
	api.RegisterRoutes(router, h, limiter.Middleware())
	return router, nil
}
