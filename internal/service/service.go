package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/nitesh/nearby_news/internal/geo"
	"github.com/nitesh/nearby_news/internal/metrics"
	"github.com/nitesh/nearby_news/internal/upload"
	"github.com/nitesh/nearby_news/internal/validate"
	"github.com/nitesh/nearby_news/pkg/models"
)

// ErrStorageFailure wraps every infrastructure error surfaced to callers.
var ErrStorageFailure = errors.New("storage failure")

type NewsStore interface {
	CreateNews(ctx context.Context, item *models.NewsItem) error
	UpsertPing(ctx context.Context, p *models.LocationPing) (bool, error)
	Ping(ctx context.Context) error
}

type QueryEngine interface {
	Execute(ctx context.Context, req models.QueryRequest) (*models.QueryResult, error)
}

// PageCache is optional; a nil cache disables caching.
type PageCache interface {
	Key(ctx context.Context, req models.QueryRequest) (string, error)
	Get(ctx context.Context, key string) (*models.QueryResult, bool, error)
	Set(ctx context.Context, key string, res *models.QueryResult, now time.Time) error
	Invalidate(ctx context.Context) error
}

type BlobStore interface {
	Put(ctx context.Context, r io.Reader, contentType string) (string, error)
	Delete(ctx context.Context, name string) error
	Path(name string) (string, error)
}

// Image is an uploaded file attached to a new item.
type Image struct {
	Body        io.Reader
	ContentType string
}

type Service struct {
	repo   NewsStore
	engine QueryEngine
	cache  PageCache
	blobs  BlobStore
	log    *slog.Logger
	now    func() time.Time

	// set when a write could not bump the cache generation; cache reads are
	// skipped until a later bump succeeds.
	cacheStale atomic.Bool
}

func NewService(repo NewsStore, engine QueryEngine, cache PageCache, blobs BlobStore, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{repo: repo, engine: engine, cache: cache, blobs: blobs, log: log, now: time.Now}
}

// Create validates and stores a new item. Once it returns, the item is
// visible to every subsequent nearby query.
func (s *Service) Create(ctx context.Context, raw validate.RawNews, img *Image) (*models.NewsItem, error) {
	in, err := validate.ParseNews(raw)
	if err != nil {
		return nil, s.rejected(err)
	}

	item := &models.NewsItem{
		ID:        uuid.New().String(),
		Content:   in.Content,
		Location:  in.Location,
		Geohash:   geo.Cell(in.Location),
		CreatedAt: s.now().UTC(),
	}

	if img != nil && s.blobs != nil {
		ref, err := s.blobs.Put(ctx, img.Body, img.ContentType)
		if err != nil {
			return nil, s.infra("store image", err)
		}
		item.ImageRef = ref
	}

	if err := s.repo.CreateNews(ctx, item); err != nil {
		if item.ImageRef != "" {
			if derr := s.blobs.Delete(context.WithoutCancel(ctx), item.ImageRef); derr != nil {
				s.log.Warn("orphaned image", slog.String("image", item.ImageRef), slog.Any("error", derr))
			}
		}
		return nil, s.infra("create news", err)
	}

	s.invalidate(ctx)
	metrics.NewsCreatedTotal.Inc()
	s.log.Debug("news created", slog.String("id", item.ID), slog.String("geohash", item.Geohash))
	return item, nil
}

// Nearby answers a nearby query, serving identical queries from the page
// cache while no write has happened in between.
func (s *Service) Nearby(ctx context.Context, raw validate.RawQuery) (*models.QueryResult, error) {
	req, err := validate.ParseQuery(raw)
	if err != nil {
		return nil, s.rejected(err)
	}

	start := time.Now()
	defer func() { metrics.NearbyQueryDuration.Observe(time.Since(start).Seconds()) }()
	metrics.NearbyQueriesTotal.WithLabelValues(string(req.Sort)).Inc()

	var key string
	if s.cacheUsable(ctx) {
		if key, err = s.cache.Key(ctx, req); err != nil {
			s.cacheError("key", err)
		} else if res, ok, err := s.cache.Get(ctx, key); err != nil {
			s.cacheError("get", err)
		} else if ok {
			metrics.NearbyCacheRequestsTotal.WithLabelValues("hit").Inc()
			return res, nil
		} else {
			metrics.NearbyCacheRequestsTotal.WithLabelValues("miss").Inc()
		}
	}

	res, err := s.engine.Execute(ctx, req)
	if err != nil {
		if _, ok := validate.KindOf(err); ok {
			return nil, s.rejected(err)
		}
		return nil, s.infra("nearby", err)
	}

	if key != "" {
		if err := s.cache.Set(ctx, key, res, s.now().UTC()); err != nil {
			s.cacheError("set", err)
		}
	}
	return res, nil
}

// UpdateLocation records a device position. created is false when an
// existing device record was updated.
func (s *Service) UpdateLocation(ctx context.Context, raw validate.RawPing) (*models.LocationPing, bool, error) {
	in, err := validate.ParsePing(raw)
	if err != nil {
		return nil, false, s.rejected(err)
	}

	ping := &models.LocationPing{
		ID:        uuid.New().String(),
		DeviceID:  in.DeviceID,
		Location:  in.Location,
		Geohash:   geo.Cell(in.Location),
		UpdatedAt: s.now().UTC(),
	}
	created, err := s.repo.UpsertPing(ctx, ping)
	if err != nil {
		return nil, false, s.infra("update location", err)
	}

	mode := "updated"
	if created {
		mode = "created"
	}
	metrics.LocationPingsTotal.WithLabelValues(mode).Inc()
	return ping, created, nil
}

// ImagePath resolves a stored image for serving.
func (s *Service) ImagePath(name string) (string, error) {
	if s.blobs == nil {
		return "", fmt.Errorf("images disabled: %w", ErrStorageFailure)
	}
	return s.blobs.Path(name)
}

// Health reports whether the store is reachable.
func (s *Service) Health(ctx context.Context) error {
	if err := s.repo.Ping(ctx); err != nil {
		return s.infra("health", err)
	}
	return nil
}

// InvalidateCache drops all cached pages, e.g. after a retention sweep.
func (s *Service) InvalidateCache(ctx context.Context) { s.invalidate(ctx) }

func (s *Service) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.cacheStale.Store(true)
		s.cacheError("invalidate", err)
		return
	}
	s.cacheStale.Store(false)
}

// cacheUsable reports whether cached pages may be served. After a failed
// invalidation it retries the bump and bypasses the cache until one lands.
func (s *Service) cacheUsable(ctx context.Context) bool {
	if s.cache == nil {
		return false
	}
	if !s.cacheStale.Load() {
		return true
	}
	s.invalidate(ctx)
	return !s.cacheStale.Load()
}

func (s *Service) rejected(err error) error {
	if kind, ok := validate.KindOf(err); ok {
		metrics.ValidationErrorsTotal.WithLabelValues(string(kind)).Inc()
	}
	return err
}

// infra passes upload rejections through and wraps everything else.
func (s *Service) infra(op string, err error) error {
	if isClientUploadError(err) {
		return err
	}
	s.log.Error(op+" failed", slog.Any("error", err))
	return fmt.Errorf("%s: %w: %w", op, ErrStorageFailure, err)
}

func isClientUploadError(err error) bool {
	return errors.Is(err, upload.ErrTooLarge) || errors.Is(err, upload.ErrUnsupportedType)
}

func (s *Service) cacheError(op string, err error) {
	metrics.NearbyCacheRequestsTotal.WithLabelValues("error").Inc()
	s.log.Warn("nearby cache "+op+" failed", slog.Any("error", err))
}
