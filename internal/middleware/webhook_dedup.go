package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"marzadmin/internal/config"
)

// Deduper remembers Telegram update IDs long enough to absorb webhook
// retries. Duplicate reports whether the ID was already recorded.
type Deduper interface {
	Duplicate(ctx context.Context, updateID int64) (bool, error)
}

type redisDeduper struct {
	rdb *redis.Client
	ttl time.Duration
}

func (d *redisDeduper) Duplicate(ctx context.Context, updateID int64) (bool, error) {
	key := "bot:update:" + strconv.FormatInt(updateID, 10)
	fresh, err := d.rdb.SetNX(ctx, key, "1", d.ttl).Result()
	if err != nil {
		return false, err
	}
	return !fresh, nil
}

// memoryDeduper is the single-instance fallback when Redis is not
// configured or unreachable. Expired entries are swept lazily.
type memoryDeduper struct {
	mu        sync.Mutex
	expiries  map[int64]time.Time
	ttl       time.Duration
	nextSweep time.Time
}

func newMemoryDeduper(ttl time.Duration) *memoryDeduper {
	return &memoryDeduper{
		expiries:  make(map[int64]time.Time),
		ttl:       ttl,
		nextSweep: time.Now().Add(ttl),
	}
}

func (d *memoryDeduper) Duplicate(_ context.Context, updateID int64) (bool, error) {
	now := time.Now()

	d.mu.Lock()
	defer d.mu.Unlock()

	if exp, ok := d.expiries[updateID]; ok && exp.After(now) {
		return true, nil
	}
	d.expiries[updateID] = now.Add(d.ttl)

	if now.After(d.nextSweep) {
		for id, exp := range d.expiries {
			if exp.Before(now) {
				delete(d.expiries, id)
			}
		}
		d.nextSweep = now.Add(d.ttl)
	}
	return false, nil
}

// NewDeduper builds a Redis-backed deduper from config, degrading to the
// in-memory one when no Redis address is set or the ping fails.
func NewDeduper(cfg *config.RedisConfig, ttl time.Duration, logger *zap.Logger) Deduper {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if cfg.Addr == "" {
		return newMemoryDeduper(ttl)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Pass,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unreachable, using in-memory update dedup",
			zap.String("addr", cfg.Addr), zap.Error(err))
		return newMemoryDeduper(ttl)
	}

	return &redisDeduper{rdb: rdb, ttl: ttl}
}

// DropDuplicateUpdates answers 200 to webhook deliveries whose update_id
// was already seen, so Telegram stops retrying without the bot handling
// the update twice. Unparseable bodies pass through untouched.
func DropDuplicateUpdates(deduper Deduper) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if deduper == nil || c.Request().Body == nil {
				return next(c)
			}

			req := c.Request()
			raw, err := io.ReadAll(req.Body)
			if err != nil {
				return next(c)
			}
			req.Body = io.NopCloser(bytes.NewReader(raw))

			var update struct {
				UpdateID int64 `json:"update_id"`
			}
			if err := json.Unmarshal(raw, &update); err != nil || update.UpdateID == 0 {
				return next(c)
			}

			dup, err := deduper.Duplicate(req.Context(), update.UpdateID)
			if err != nil {
				return next(c)
			}
			if dup {
				return c.NoContent(http.StatusOK)
			}
			return next(c)
		}
	}
}
