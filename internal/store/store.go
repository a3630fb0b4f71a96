package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/nitesh/nearby_news/pkg/models"
)

// Store persists news items and location pings. Items are indexed by their
// geohash in the same write, so a committed item is immediately scannable.
type Store interface {
	CreateNews(ctx context.Context, item *models.NewsItem) error
	ScanCells(ctx context.Context, prefixes []string, notBefore time.Time) ([]models.NewsItem, error)
	// UpsertPing stores p. With a device id the device's previous position is
	// replaced and p.ID is set to the existing record's id; created reports
	// whether a new record was written.
	UpsertPing(ctx context.Context, p *models.LocationPing) (created bool, err error)
	DeleteExpired(ctx context.Context, cutoff time.Time) (news, pings int64, err error)
	Ping(ctx context.Context) error
	Close() error
}

var (
	// ErrStorage marks every failure that originates in the storage layer.
	ErrStorage  = errors.New("storage failure")
	ErrConflict = fmt.Errorf("conflict: %w", ErrStorage)
	ErrTimeout  = fmt.Errorf("timeout: %w", ErrStorage)
)

// wrap tags err with op and classifies it under ErrStorage.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w: %w", op, ErrTimeout, err)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "23": // integrity_constraint_violation
			return fmt.Errorf("%s: pq %s: %w", op, pqErr.Code, ErrConflict)
		case "57": // operator_intervention, includes query_canceled
			return fmt.Errorf("%s: pq %s: %w", op, pqErr.Code, ErrTimeout)
		default:
			return fmt.Errorf("%s: pq %s %s: %w", op, pqErr.Code, pqErr.Message, ErrStorage)
		}
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
}
