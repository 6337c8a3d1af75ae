package panel

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Aggregator answers "what is the user-count breakdown for panel X". It
// prefers the panel's summary endpoint and falls back to paginating the
// full user list, caching results per (url, token) pair.
type Aggregator struct {
	cache    *StatsCache
	pageSize int
	logger   *zap.Logger
	now      func() time.Time
}

// NewAggregator creates an aggregator over the given cache.
func NewAggregator(cache *StatsCache, pageSize int, logger *zap.Logger) *Aggregator {
	if pageSize <= 0 {
		pageSize = 200
	}
	return &Aggregator{
		cache:    cache,
		pageSize: pageSize,
		logger:   logger,
		now:      time.Now,
	}
}

// UserStats returns the breakdown for the client's panel. With force set,
// the cache read is skipped but the fresh result is still stored. On a
// failed fallback tally the partial counts are returned alongside the
// error and nothing is cached: an all-zero result with a non-nil error
// means "unknown", not "confirmed empty".
func (a *Aggregator) UserStats(ctx context.Context, client *Client, force bool) (Stats, error) {
	key := client.CacheKey()

	if !force {
		if stats, ok := a.cache.Get(key); ok {
			return stats, nil
		}
	}

	stats, err := client.SummaryStats(ctx)
	if err != nil {
		a.logger.Warn("stats endpoint unavailable, falling back to pagination",
			zap.String("panel", client.BaseURL()), zap.Error(err))

		stats, err = a.tally(ctx, client)
		if err != nil {
			a.logger.Error("manual user tally failed",
				zap.String("panel", client.BaseURL()), zap.Error(err))
			return stats, err
		}
	}

	a.cache.Set(key, stats)
	return stats, nil
}

// tally pages through the full user list and classifies each user.
func (a *Aggregator) tally(ctx context.Context, client *Client) (Stats, error) {
	var stats Stats
	now := a.now().Unix()

	for offset := 0; ; offset += a.pageSize {
		users, err := client.ListUsers(ctx, offset, a.pageSize)
		if err != nil {
			return stats, err
		}
		if len(users) == 0 {
			break
		}

		stats.Total += len(users)
		for i := range users {
			classify(&users[i], now, &stats)
		}
	}

	return stats, nil
}

// classify buckets one user into the aggregate counts. At this level
// on_hold is tallied as inactive; the user model keeps it distinct.
func classify(u *User, now int64, stats *Stats) {
	switch u.Status {
	case StatusActive:
		stats.Active++
	case StatusDisabled, StatusOnHold:
		stats.Inactive++
	}
	if u.Expired(now) {
		stats.Expired++
	}
	if u.Exhausted() {
		stats.Limited++
	}
}
