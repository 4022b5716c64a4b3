package posts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const cacheVersionKey = "pressroom:posts:published:version"

// Cache stores rendered-ready pages of the published listing in Redis. Every
// post mutation bumps a version counter so stale pages are never read again.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
	group  singleflight.Group
}

// NewCache instantiates the cache helper. logger may be nil.
func NewCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{client: client, ttl: ttl, logger: logger}
}

// Version returns the current cache version, initialising when missing.
func (c *Cache) Version(ctx context.Context) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	ver, err := c.client.Get(ctx, cacheVersionKey).Int64()
	if errors.Is(err, redis.Nil) {
		if err := c.client.SetNX(ctx, cacheVersionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return c.client.Get(ctx, cacheVersionKey).Int64()
	}
	if err != nil {
		return 0, err
	}
	return ver, nil
}

// PageKey composes the cache key for one listing page.
func (c *Cache) PageKey(ctx context.Context, page, perPage int) (string, error) {
	ver, err := c.Version(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("pressroom:posts:published:v%d:%d:%d", ver, perPage, page), nil
}

// FetchPage returns the cached page for key or builds it with loader.
// Concurrent misses for the same key share one loader call. Redis failures
// degrade to an uncached read.
func (c *Cache) FetchPage(ctx context.Context, key string, loader func(context.Context) (Page, error)) (Page, error) {
	if c == nil || c.client == nil {
		return loader(ctx)
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var page Page
		if err := json.Unmarshal(payload, &page); err == nil {
			return page, nil
		}
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("posts cache read", slog.String("key", key), slog.Any("error", err))
		return loader(ctx)
	}

	ch := c.group.DoChan(key, func() (any, error) {
		// Other callers may be waiting on this load after ours gives up.
		loadCtx := context.WithoutCancel(ctx)
		page, err := loader(loadCtx)
		if err != nil {
			return Page{}, err
		}
		raw, err := json.Marshal(page)
		if err != nil {
			c.logger.Warn("posts cache encode", slog.String("key", key), slog.Any("error", err))
			return page, nil
		}
		if err := c.client.Set(loadCtx, key, raw, c.ttl).Err(); err != nil {
			c.logger.Warn("posts cache write", slog.String("key", key), slog.Any("error", err))
		}
		return page, nil
	})
	select {
	case <-ctx.Done():
		return Page{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Page{}, res.Err
		}
		return res.Val.(Page), nil
	}
}

// Bump invalidates every cached page.
func (c *Cache) Bump(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, cacheVersionKey).Err()
}
