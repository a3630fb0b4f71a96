// Package spatial answers "which live items lie within r metres of p". It
// narrows the search with geohash cell prefixes and then filters candidates
// by exact spherical distance, so results are both sound and complete.
package spatial

import (
	"context"
	"fmt"
	"time"

	"github.com/nitesh/nearby_news/internal/geo"
	"github.com/nitesh/nearby_news/internal/retention"
	"github.com/nitesh/nearby_news/pkg/models"
)

// Source returns every stored item whose geohash starts with one of
// prefixes and whose creation time is after notBefore.
type Source interface {
	ScanCells(ctx context.Context, prefixes []string, notBefore time.Time) ([]models.NewsItem, error)
}

// Hit is an item within the radius together with its distance.
type Hit struct {
	Item           models.NewsItem
	DistanceMeters float64
}

type Index struct {
	src      Source
	policy   retention.Policy
	maxCells int
}

func NewIndex(src Source, policy retention.Policy, maxCells int) *Index {
	if maxCells <= 0 {
		maxCells = geo.DefaultMaxCells
	}
	return &Index{src: src, policy: policy, maxCells: maxCells}
}

// Within returns the live items at distance <= radiusMeters from p, in no
// particular order.
func (x *Index) Within(ctx context.Context, p models.Location, radiusMeters float64, now time.Time) ([]Hit, error) {
	prefixes := geo.Cover(p, radiusMeters, x.maxCells)
	items, err := x.src.ScanCells(ctx, prefixes, x.policy.Cutoff(now))
	if err != nil {
		return nil, fmt.Errorf("spatial: scan %d cells: %w", len(prefixes), err)
	}

	hits := make([]Hit, 0, len(items))
	for _, it := range items {
		if x.policy.IsExpired(it.CreatedAt, now) {
			continue
		}
		d := geo.Distance(p, it.Location)
		if d > radiusMeters {
			continue
		}
		hits = append(hits, Hit{Item: it, DistanceMeters: d})
	}
	return hits, nil
}
