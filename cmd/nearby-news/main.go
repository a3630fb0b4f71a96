package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/nitesh/nearby_news/internal/api"
	"github.com/nitesh/nearby_news/internal/cache"
	"github.com/nitesh/nearby_news/internal/config"
	"github.com/nitesh/nearby_news/internal/logger"
	"github.com/nitesh/nearby_news/internal/middleware"
	"github.com/nitesh/nearby_news/internal/proximity"
	"github.com/nitesh/nearby_news/internal/retention"
	"github.com/nitesh/nearby_news/internal/service"
	"github.com/nitesh/nearby_news/internal/spatial"
	"github.com/nitesh/nearby_news/internal/store"
	"github.com/nitesh/nearby_news/internal/upload"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", slog.Any("error", err))
		os.Exit(1)
	}
	log := logger.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Error("store", slog.Any("error", err))
		os.Exit(1)
	}
	defer repo.Close() //nolint:errcheck

	var (
		rdb       *redis.Client
		pageCache service.PageCache
	)
	if cfg.Redis.Enabled() {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close() //nolint:errcheck

		pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := rdb.Ping(pctx).Err(); err != nil {
			log.Warn("redis ping failed, queries will bypass the cache until it recovers", slog.Any("error", err))
		}
		cancel()
		pageCache = cache.NewNearbyCache(rdb, cfg.Nearby.CacheTTL)
	} else {
		log.Info("REDIS_ADDR not set, nearby cache disabled")
	}

	blobs, err := upload.NewDiskStore(cfg.Upload.Dir, cfg.Upload.MaxBytes)
	if err != nil {
		log.Error("upload dir", slog.Any("error", err))
		os.Exit(1)
	}

	policy := retention.NewPolicy(cfg.Nearby.RetentionTTL)
	engine := proximity.NewEngine(spatial.NewIndex(repo, policy, 0), policy)
	svc := service.NewService(repo, engine, pageCache, blobs, log)

	sweeper := retention.NewSweeper(policy, repo, rdb, cfg.Nearby.SweepInterval, log)
	sweeper.OnSwept = svc.InvalidateCache
	go sweeper.Run(ctx)

	limiter := middleware.NewRateLimiter(cfg.Http.RateLimitRPS, cfg.Http.RateLimitBurst, 3*time.Minute, log)
	go limiter.Cleanup(ctx, time.Minute)

	gin.SetMode(cfg.GinMode)
	router, err := newRouter(cfg, api.NewHandler(svc, log, cfg.Upload.MaxBytes), limiter, log)
	if err != nil {
		log.Error("router", slog.Any("error", err))
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("listening", slog.String("addr", srv.Addr), slog.String("store", cfg.Store))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	sctx, cancel := context.WithTimeout(context.Background(), cfg.Http.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Error("shutdown", slog.Any("error", err))
	}
}

func openStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (store.Store, error) {
	if cfg.Store == config.DriverMemory {
		log.Warn("using in-memory store, data is lost on restart")
		return store.NewMemStore(), nil
	}

	db, err := sql.Open("postgres", cfg.Postgres.DSN())
	if err != nil {
		return nil, err
	}
	// the database may still be starting next to us
	for i := 0; i < cfg.Postgres.ConnectAttempts; i++ {
		pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = db.PingContext(pctx)
		cancel()
		if err == nil {
			break
		}
		log.Info("waiting for db", slog.Int("attempt", i+1), slog.Any("error", err))
		select {
		case <-ctx.Done():
			_ = db.Close()
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	if err := store.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store.NewPgStore(db), nil
}
