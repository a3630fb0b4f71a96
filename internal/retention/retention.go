// Package retention decides when news items and location pings stop being
// visible and periodically purges them from storage.
package retention

import "time"

// DefaultTTL is how long an item stays visible after creation.
const DefaultTTL = 7 * 24 * time.Hour

// Policy is a fixed time-to-live measured from a record's creation (or last
// update, for pings).
type Policy struct {
	TTL time.Duration
}

func NewPolicy(ttl time.Duration) Policy {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return Policy{TTL: ttl}
}

// IsExpired reports whether a record created at createdAt is gone at now.
// A record is expired from the exact instant createdAt+TTL onwards.
func (p Policy) IsExpired(createdAt, now time.Time) bool {
	return !now.Before(p.ExpiresAt(createdAt))
}

// ExpiresAt is the first instant at which the record is expired.
func (p Policy) ExpiresAt(createdAt time.Time) time.Time {
	return createdAt.Add(p.ttl())
}

// Cutoff is the creation time at or before which records are expired.
// Live records satisfy createdAt > Cutoff(now).
func (p Policy) Cutoff(now time.Time) time.Time {
	return now.Add(-p.ttl())
}

func (p Policy) ttl() time.Duration {
	if p.TTL <= 0 {
		return DefaultTTL
	}
	return p.TTL
}
