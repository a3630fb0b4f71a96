package retention

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nitesh/nearby_news/internal/metrics"
)

const (
	DefaultSweepInterval = time.Minute
	lockKey              = "nearby:retention:lock"
)

// Purger deletes records at or before cutoff and reports how many went.
type Purger interface {
	DeleteExpired(ctx context.Context, cutoff time.Time) (news, pings int64, err error)
}

// Sweeper removes expired records on a fixed interval. Queries never depend
// on it having run: the query path filters expired items itself.
type Sweeper struct {
	policy   Policy
	purger   Purger
	rdb      *redis.Client
	interval time.Duration
	log      *slog.Logger
	now      func() time.Time

	// OnSwept runs after a sweep that deleted at least one record.
	OnSwept func(ctx context.Context)
}

// NewSweeper builds a sweeper. rdb may be nil; with a client, replicas share
// a lock so only one of them sweeps per interval.
func NewSweeper(policy Policy, purger Purger, rdb *redis.Client, interval time.Duration, log *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if log == nil {
		log = slog.Default()
	}
	return &Sweeper{
		policy:   policy,
		purger:   purger,
		rdb:      rdb,
		interval: interval,
		log:      log,
		now:      time.Now,
	}
}

// Run sweeps once immediately and then on every tick until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			s.log.Info("retention sweeper stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Sweeper) tick(ctx context.Context) {
	if _, _, err := s.SweepOnce(ctx); err != nil && ctx.Err() == nil {
		s.log.Warn("retention sweep failed", slog.Any("error", err))
	}
}

// SweepOnce deletes everything expired as of now. It returns zero counts and
// no error when another replica holds the sweep lock.
func (s *Sweeper) SweepOnce(ctx context.Context) (news, pings int64, err error) {
	if s.rdb != nil {
		ok, err := s.rdb.SetNX(ctx, lockKey, "1", s.lockTTL()).Result()
		if err != nil {
			// unreachable redis: sweep without the lock
			s.log.Debug("retention lock unavailable", slog.Any("error", err))
		} else if !ok {
			return 0, 0, nil
		}
	}

	cutoff := s.policy.Cutoff(s.now().UTC())
	news, pings, err = s.purger.DeleteExpired(ctx, cutoff)
	if err != nil {
		metrics.RetentionSweepFailuresTotal.Inc()
		return 0, 0, err
	}
	metrics.RetentionSweptTotal.WithLabelValues("news").Add(float64(news))
	metrics.RetentionSweptTotal.WithLabelValues("location_pings").Add(float64(pings))

	if news+pings > 0 {
		s.log.Info("retention sweep",
			slog.Int64("news", news),
			slog.Int64("pings", pings),
			slog.Time("cutoff", cutoff))
		if s.OnSwept != nil {
			s.OnSwept(ctx)
		}
	}
	return news, pings, nil
}

// lock lives slightly less than an interval so the next tick can take it.
func (s *Sweeper) lockTTL() time.Duration {
	ttl := s.interval - s.interval/10
	if ttl < time.Second {
		ttl = time.Second
	}
	return ttl
}
