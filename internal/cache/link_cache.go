package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vadimbarashkov/redirector/internal/models"
)

const keyPrefix = "link:"

// LinkCache is a TTL read-through cache for link snapshots on the
// redirect hot path. It is a pure optimization: every operation has a
// defined behavior when the underlying store is absent or failing, and
// no failure ever propagates to the caller.
type LinkCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// New wraps the given redis client. A nil client disables the cache:
// Get always misses and Set/Invalidate are no-ops.
func New(client *redis.Client, ttl time.Duration, logger *slog.Logger) *LinkCache {
	return &LinkCache{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

// Enabled reports whether the cache is backed by a live store.
func (c *LinkCache) Enabled() bool {
	return c != nil && c.client != nil
}

// Get returns the cached snapshot for the code, or (nil, false) on
// disabled store, miss, expiry, or decode failure.
func (c *LinkCache) Get(ctx context.Context, code string) (*models.LinkSnapshot, bool) {
	if !c.Enabled() {
		return nil, false
	}

	data, err := c.client.Get(ctx, keyPrefix+code).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("link cache read failed", slog.String("code", code), slog.Any("err", err))
		}
		return nil, false
	}

	var snap models.LinkSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		c.logger.Warn("link cache decode failed", slog.String("code", code), slog.Any("err", err))
		return nil, false
	}

	return &snap, true
}

// Set stores a snapshot under the code with the configured TTL. Snapshots
// of password-protected or click-limited links are refused: those links
// need precise per-click state that a stale cached counter cannot
// guarantee. Failures are logged, never returned.
func (c *LinkCache) Set(ctx context.Context, code string, snap *models.LinkSnapshot) {
	if !c.Enabled() || snap == nil || !snap.CacheEligible() {
		return
	}

	data, err := json.Marshal(snap)
	if err != nil {
		c.logger.Warn("link cache encode failed", slog.String("code", code), slog.Any("err", err))
		return
	}

	if err := c.client.Set(ctx, keyPrefix+code, data, c.ttl).Err(); err != nil {
		c.logger.Warn("link cache write failed", slog.String("code", code), slog.Any("err", err))
	}
}

// Invalidate removes the cached snapshot for the code. Best-effort: a
// failed delete is logged and not retried, since the TTL bounds staleness
// anyway.
func (c *LinkCache) Invalidate(ctx context.Context, code string) {
	if !c.Enabled() {
		return
	}

	if err := c.client.Del(ctx, keyPrefix+code).Err(); err != nil {
		c.logger.Warn("link cache invalidation failed", slog.String("code", code), slog.Any("err", err))
	}
}
