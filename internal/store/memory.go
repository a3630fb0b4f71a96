package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/nitesh/nearby_news/pkg/models"
)

// MemStore keeps everything in process. News items are additionally kept in
// a slice sorted by geohash, updated under the same lock as the map.
type MemStore struct {
	mu       sync.RWMutex
	news     map[string]models.NewsItem
	cells    []cellRef
	pings    map[string]models.LocationPing
	byDevice map[string]string
}

type cellRef struct {
	geohash string
	id      string
}

func NewMemStore() *MemStore {
	return &MemStore{
		news:     make(map[string]models.NewsItem),
		pings:    make(map[string]models.LocationPing),
		byDevice: make(map[string]string),
	}
}

func (m *MemStore) CreateNews(ctx context.Context, item *models.NewsItem) error {
	if err := ctx.Err(); err != nil {
		return wrap("store.CreateNews", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.news[item.ID]; ok {
		return wrap("store.CreateNews", ErrConflict)
	}
	m.news[item.ID] = *item

	ref := cellRef{geohash: item.Geohash, id: item.ID}
	i := sort.Search(len(m.cells), func(i int) bool { return !m.cells[i].less(ref) })
	m.cells = append(m.cells, cellRef{})
	copy(m.cells[i+1:], m.cells[i:])
	m.cells[i] = ref
	return nil
}

func (c cellRef) less(o cellRef) bool {
	if c.geohash != o.geohash {
		return c.geohash < o.geohash
	}
	return c.id < o.id
}

func (m *MemStore) ScanCells(ctx context.Context, prefixes []string, notBefore time.Time) ([]models.NewsItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, wrap("store.ScanCells", err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []models.NewsItem{}
	seen := make(map[string]struct{})
	for _, prefix := range prefixes {
		i := sort.Search(len(m.cells), func(i int) bool { return m.cells[i].geohash >= prefix })
		for ; i < len(m.cells) && strings.HasPrefix(m.cells[i].geohash, prefix); i++ {
			id := m.cells[i].id
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			it := m.news[id]
			if it.CreatedAt.After(notBefore) {
				out = append(out, it)
			}
		}
	}
	return out, nil
}

func (m *MemStore) UpsertPing(ctx context.Context, p *models.LocationPing) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, wrap("store.UpsertPing", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if p.DeviceID != "" {
		if id, ok := m.byDevice[p.DeviceID]; ok {
			p.ID = id
			m.pings[id] = *p
			return false, nil
		}
		m.byDevice[p.DeviceID] = p.ID
	}
	m.pings[p.ID] = *p
	return true, nil
}

func (m *MemStore) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, wrap("store.DeleteExpired", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var news, pings int64
	kept := m.cells[:0]
	for _, ref := range m.cells {
		if m.news[ref.id].CreatedAt.After(cutoff) {
			kept = append(kept, ref)
			continue
		}
		delete(m.news, ref.id)
		news++
	}
	m.cells = kept

	for id, p := range m.pings {
		if p.UpdatedAt.After(cutoff) {
			continue
		}
		delete(m.pings, id)
		if p.DeviceID != "" {
			delete(m.byDevice, p.DeviceID)
		}
		pings++
	}
	return news, pings, nil
}

// Len returns the number of stored news items and pings.
func (m *MemStore) Len() (news, pings int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.news), len(m.pings)
}

func (m *MemStore) Ping(ctx context.Context) error { return wrap("store.Ping", ctx.Err()) }

func (m *MemStore) Close() error { return nil }
