package proximity

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/nitesh/nearby_news/internal/geo"
	"github.com/nitesh/nearby_news/internal/retention"
	"github.com/nitesh/nearby_news/internal/spatial"
	"github.com/nitesh/nearby_news/internal/validate"
	"github.com/nitesh/nearby_news/pkg/models"
)

var now = time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

// memSource is an in-test spatial.Source over a fixed slice.
type memSource struct {
	items []models.NewsItem
	calls int
}

func (m *memSource) ScanCells(_ context.Context, _ []string, notBefore time.Time) ([]models.NewsItem, error) {
	m.calls++
	var out []models.NewsItem
	for _, it := range m.items {
		if it.CreatedAt.After(notBefore) {
			out = append(out, it)
		}
	}
	return out, nil
}

func newEngine(items ...models.NewsItem) (*Engine, *memSource) {
	src := &memSource{items: items}
	policy := retention.NewPolicy(0)
	e := NewEngine(spatial.NewIndex(src, policy, 0), policy, WithClock(func() time.Time { return now }))
	return e, src
}

func news(id string, lat, lng float64, age time.Duration) models.NewsItem {
	l := models.Location{Latitude: lat, Longitude: lng}
	return models.NewsItem{ID: id, Content: "content " + id, Location: l, Geohash: geo.Cell(l), CreatedAt: now.Add(-age)}
}

func query(lat, lng, radius float64, sort models.SortKey, page, limit int) models.QueryRequest {
	return models.QueryRequest{
		Point:        models.Location{Latitude: lat, Longitude: lng},
		RadiusMeters: radius,
		Sort:         sort,
		Page:         page,
		Limit:        limit,
	}
}

func TestExecute_SinglePostNearby(t *testing.T) {
	e, _ := newEngine(news("a", 40.001, -74.001, time.Minute))

	res, err := e.Execute(context.Background(), query(40, -74, 500, models.SortDistance, 1, 10))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.TotalMatches != 1 || res.TotalPages != 1 || res.Count != 1 {
		t.Fatalf("unexpected counts %+v", res)
	}
	if d := res.Data[0].DistanceKm; math.Abs(d-0.14) > 0.005 {
		t.Errorf("distanceKm = %.4f, want ≈0.14", d)
	}
}

func TestExecute_DistanceOrder(t *testing.T) {
	// ~800 m and ~200 m north of the query point
	far := news("far", 40+800/111195.0, -74, time.Hour)
	near := news("near", 40+200/111195.0, -74, 2*time.Hour)
	e, _ := newEngine(far, near)

	res, err := e.Execute(context.Background(), query(40, -74, 1000, models.SortDistance, 1, 10))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Count != 2 || res.Data[0].Content != "content near" || res.Data[1].Content != "content far" {
		t.Fatalf("unexpected order %+v", res.Data)
	}

	res, err = e.Execute(context.Background(), query(40, -74, 1000, models.SortRecency, 1, 10))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Data[0].Content != "content far" {
		t.Errorf("recency sort should put the newer item first, got %+v", res.Data)
	}
}

func TestExecute_TieBreaks(t *testing.T) {
	same := now.Add(-time.Hour)
	a := news("a", 40, -74, time.Hour)
	b := news("b", 40, -74, 2*time.Hour)
	c := news("c", 40, -74, time.Hour)
	a.CreatedAt, c.CreatedAt = same, same
	e, _ := newEngine(c, b, a)

	res, err := e.Execute(context.Background(), query(40, -74, 100, models.SortDistance, 1, 10))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	got := []string{res.Data[0].Content, res.Data[1].Content, res.Data[2].Content}
	want := []string{"content a", "content c", "content b"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("order = %v, want %v", got, want)
	}
}

func TestExecute_PaginationConcatenates(t *testing.T) {
	var items []models.NewsItem
	for i := 0; i < 23; i++ {
		items = append(items, news(fmt.Sprintf("n%02d", i), 40+float64(i%7)*0.0005, -74+float64(i%5)*0.0005, time.Duration(i%4)*time.Hour))
	}
	e, _ := newEngine(items...)

	for _, sortKey := range []models.SortKey{models.SortDistance, models.SortRecency} {
		all, err := e.Execute(context.Background(), query(40, -74, 5000, sortKey, 1, 100))
		if err != nil {
			t.Fatalf("Execute: %v", err)
		}
		if all.TotalMatches != 23 {
			t.Fatalf("total = %d, want 23", all.TotalMatches)
		}

		var paged []models.NearbyNews
		for page := 1; page <= 3; page++ {
			res, err := e.Execute(context.Background(), query(40, -74, 5000, sortKey, page, 10))
			if err != nil {
				t.Fatalf("Execute page %d: %v", page, err)
			}
			if res.TotalPages != 3 || res.TotalMatches != 23 {
				t.Fatalf("page %d: totals %d/%d", page, res.TotalPages, res.TotalMatches)
			}
			paged = append(paged, res.Data...)
		}
		if len(paged) != len(all.Data) {
			t.Fatalf("%s: paged %d items, want %d", sortKey, len(paged), len(all.Data))
		}
		for i := range paged {
			if paged[i] != all.Data[i] {
				t.Fatalf("%s: item %d differs: %+v vs %+v", sortKey, i, paged[i], all.Data[i])
			}
		}
	}
}

func TestExecute_StableAcrossCalls(t *testing.T) {
	e, _ := newEngine(news("x", 40, -74, time.Hour), news("y", 40, -74, time.Hour), news("z", 40.0001, -74, 0))
	first, err := e.Execute(context.Background(), query(40, -74, 100, models.SortDistance, 1, 10))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := e.Execute(context.Background(), query(40, -74, 100, models.SortDistance, 1, 10))
		if err != nil {
			t.Fatalf("Execute: %v", err)
		}
		if fmt.Sprint(again.Data) != fmt.Sprint(first.Data) {
			t.Fatalf("results changed between identical queries")
		}
	}
}

func TestExecute_PageBeyondEnd(t *testing.T) {
	e, _ := newEngine(news("a", 40, -74, 0))
	res, err := e.Execute(context.Background(), query(40, -74, 100, models.SortDistance, 5, 10))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.TotalMatches != 1 || res.TotalPages != 1 || res.Count != 0 || len(res.Data) != 0 {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestExecute_Empty(t *testing.T) {
	e, _ := newEngine()
	res, err := e.Execute(context.Background(), query(40, -74, 100, models.SortDistance, 1, 10))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.TotalMatches != 0 || res.TotalPages != 0 || res.Data == nil || len(res.Data) != 0 {
		t.Errorf("unexpected empty result %+v", res)
	}
	if want := now.Add(retention.DefaultTTL); !res.ValidUntil.Equal(want) {
		t.Errorf("empty ValidUntil = %v, want %v", res.ValidUntil, want)
	}
}

func TestExecute_Expiry(t *testing.T) {
	e, _ := newEngine(
		news("old", 40, -74, 8*24*time.Hour),
		news("fresh", 40, -74, 6*24*time.Hour),
		news("boundary", 40, -74, retention.DefaultTTL),
	)
	res, err := e.Execute(context.Background(), query(40, -74, 100, models.SortDistance, 1, 10))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.TotalMatches != 1 || res.Data[0].Content != "content fresh" {
		t.Fatalf("only the 6-day-old item should be visible, got %+v", res.Data)
	}
	if want := now.Add(24 * time.Hour); !res.ValidUntil.Equal(want) {
		t.Errorf("ValidUntil = %v, want %v", res.ValidUntil, want)
	}
}

func TestExecute_InvalidRadiusSkipsStore(t *testing.T) {
	e, src := newEngine(news("a", 40, -74, 0))
	_, err := e.Execute(context.Background(), query(40, -74, 100000, models.SortDistance, 1, 10))
	if k, ok := validate.KindOf(err); !ok || k != validate.RadiusOutOfRange {
		t.Fatalf("err = %v, want RadiusOutOfRange", err)
	}
	if src.calls != 0 {
		t.Errorf("store scanned %d times, want 0", src.calls)
	}
}

func TestExecute_ValidationPriority(t *testing.T) {
	e, _ := newEngine()
	_, err := e.Execute(context.Background(), query(95, 200, -1, models.SortDistance, 0, 0))
	if k, _ := validate.KindOf(err); k != validate.LatitudeOutOfRange {
		t.Errorf("kind = %v, want LatitudeOutOfRange", k)
	}
	_, err = e.Execute(context.Background(), query(0, 200, -1, models.SortDistance, 1, 10))
	if k, _ := validate.KindOf(err); k != validate.LongitudeOutOfRange {
		t.Errorf("kind = %v, want LongitudeOutOfRange", k)
	}
	_, err = e.Execute(context.Background(), query(0, 0, 10, models.SortDistance, 1, 0))
	if k, _ := validate.KindOf(err); k != validate.LimitOutOfRange {
		t.Errorf("kind = %v, want LimitOutOfRange", k)
	}
}

type failingFinder struct{ err error }

func (f failingFinder) Within(context.Context, models.Location, float64, time.Time) ([]spatial.Hit, error) {
	return nil, f.err
}

func TestExecute_IndexError(t *testing.T) {
	boom := errors.New("boom")
	e := NewEngine(failingFinder{boom}, retention.NewPolicy(0))
	if _, err := e.Execute(context.Background(), query(1, 1, 10, models.SortDistance, 1, 10)); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
}
