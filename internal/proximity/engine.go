// Package proximity executes nearby queries: validate, collect candidates
// from the spatial index, rank them and cut out one page.
package proximity

import (
	"context"
	"sort"
	"time"

	"github.com/nitesh/nearby_news/internal/retention"
	"github.com/nitesh/nearby_news/internal/spatial"
	"github.com/nitesh/nearby_news/internal/validate"
	"github.com/nitesh/nearby_news/pkg/models"
)

// Finder is the read side of the spatial index.
type Finder interface {
	Within(ctx context.Context, p models.Location, radiusMeters float64, now time.Time) ([]spatial.Hit, error)
}

type Engine struct {
	index  Finder
	policy retention.Policy
	now    func() time.Time
}

type Option func(*Engine)

// WithClock replaces time.Now as the engine's notion of the current time.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(index Finder, policy retention.Policy, opts ...Option) *Engine {
	e := &Engine{index: index, policy: policy, now: time.Now}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Execute runs one query. Invalid requests fail with a *validate.Error before
// the index is touched; index failures are returned as is.
func (e *Engine) Execute(ctx context.Context, req models.QueryRequest) (*models.QueryResult, error) {
	if err := validate.Query(req); err != nil {
		return nil, err
	}
	if req.Sort != models.SortRecency {
		req.Sort = models.SortDistance
	}

	now := e.now().UTC()
	hits, err := e.index.Within(ctx, req.Point, req.RadiusMeters, now)
	if err != nil {
		return nil, err
	}

	rank(hits, req.Sort)

	total := len(hits)
	res := &models.QueryResult{
		TotalMatches: total,
		Page:         req.Page,
		Limit:        req.Limit,
		TotalPages:   (total + req.Limit - 1) / req.Limit,
		Data:         []models.NearbyNews{},
		ValidUntil:   e.validUntil(hits, now),
	}

	start := (req.Page - 1) * req.Limit
	if start >= total {
		return res, nil
	}
	end := start + req.Limit
	if end > total {
		end = total
	}
	for _, h := range hits[start:end] {
		res.Data = append(res.Data, models.NearbyNews{
			Content:    h.Item.Content,
			DistanceKm: h.DistanceMeters / 1000,
			CreatedAt:  h.Item.CreatedAt,
			ImageRef:   h.Item.ImageRef,
		})
	}
	res.Count = len(res.Data)
	return res, nil
}

// rank orders hits totally: the id tie-break makes pagination deterministic.
func rank(hits []spatial.Hit, key models.SortKey) {
	sort.Slice(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		if key == models.SortRecency {
			if !a.Item.CreatedAt.Equal(b.Item.CreatedAt) {
				return a.Item.CreatedAt.After(b.Item.CreatedAt)
			}
			if a.DistanceMeters != b.DistanceMeters {
				return a.DistanceMeters < b.DistanceMeters
			}
			return a.Item.ID < b.Item.ID
		}
		if a.DistanceMeters != b.DistanceMeters {
			return a.DistanceMeters < b.DistanceMeters
		}
		if !a.Item.CreatedAt.Equal(b.Item.CreatedAt) {
			return a.Item.CreatedAt.After(b.Item.CreatedAt)
		}
		return a.Item.ID < b.Item.ID
	})
}

// validUntil is the first instant at which one of the hits expires. The
// result set can only change through new writes before then.
func (e *Engine) validUntil(hits []spatial.Hit, now time.Time) time.Time {
	until := e.policy.ExpiresAt(now)
	for _, h := range hits {
		if t := e.policy.ExpiresAt(h.Item.CreatedAt); t.Before(until) {
			until = t
		}
	}
	return until
}
