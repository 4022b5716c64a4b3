package posts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, time.Minute, nil), mr
}

func onePost(context.Context) (Page, error) {
	return Page{Posts: []Post{{ID: 1}}}, nil
}

func TestPublishedListingIsCachedUntilMutation(t *testing.T) {
	repo := newMemoryRepo()
	cache, _ := newTestCache(t)
	svc := NewService(repo, cache, nil, nil, ServiceConfig{PerPage: 15})
	ctx := context.Background()

	p, err := svc.Create(ctx, alice, Input{Title: "Cached", Body: "b"})
	require.NoError(t, err)
	_, err = svc.Publish(ctx, alice, p.ID)
	require.NoError(t, err)

	first, err := svc.ListPublished(ctx, 1)
	require.NoError(t, err)
	require.Len(t, first.Posts, 1)
	second, err := svc.ListPublished(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, first.Posts[0].ID, second.Posts[0].ID)
	assert.Equal(t, 1, repo.calls["list_published"], "second read served from cache")

	_, err = svc.Unpublish(ctx, alice, p.ID)
	require.NoError(t, err)
	after, err := svc.ListPublished(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, after.Posts, "mutation invalidates cached pages")
	assert.Equal(t, 2, repo.calls["list_published"])
}

func TestCacheVersionStartsAtOneAndBumps(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	ver, err := cache.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), ver)

	require.NoError(t, cache.Bump(ctx))
	key, err := cache.PageKey(ctx, 3, 15)
	require.NoError(t, err)
	assert.Equal(t, "pressroom:posts:published:v2:15:3", key)
}

func TestNilCacheFallsThrough(t *testing.T) {
	var cache *Cache
	calls := 0
	page, err := cache.FetchPage(context.Background(), "k", func(context.Context) (Page, error) {
		calls++
		return Page{Posts: []Post{{ID: 1}}}, nil
	})
	require.NoError(t, err)
	assert.Len(t, page.Posts, 1)
	assert.Equal(t, 1, calls)
	assert.NoError(t, cache.Bump(context.Background()))
}

func TestFetchPageFallsBackWhenRedisReadFails(t *testing.T) {
	cache, mr := newTestCache(t)
	mr.SetError("ERR server unavailable")

	page, err := cache.FetchPage(context.Background(), "k", onePost)
	require.NoError(t, err)
	assert.Len(t, page.Posts, 1)
}

func TestFetchPageReturnsPageWhenRedisWriteFails(t *testing.T) {
	cache, mr := newTestCache(t)

	page, err := cache.FetchPage(context.Background(), "k", func(ctx context.Context) (Page, error) {
		mr.SetError("ERR write refused")
		return onePost(ctx)
	})
	require.NoError(t, err)
	assert.Len(t, page.Posts, 1)

	mr.SetError("")
	assert.False(t, mr.Exists("k"))
}

func TestFetchPageLoadOutlivesCancelledCaller(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx, cancel := context.WithCancel(context.Background())

	started := make(chan struct{})
	release := make(chan struct{})
	loadErr := make(chan error, 1)
	callerErr := make(chan error, 1)
	go func() {
		_, err := cache.FetchPage(ctx, "k", func(loadCtx context.Context) (Page, error) {
			close(started)
			<-release
			loadErr <- loadCtx.Err()
			return onePost(loadCtx)
		})
		callerErr <- err
	}()

	<-started
	cancel()
	require.True(t, errors.Is(<-callerErr, context.Canceled))

	close(release)
	require.NoError(t, <-loadErr)
	require.Eventually(t, func() bool { return mr.Exists("k") }, time.Second, 10*time.Millisecond)

	page, err := cache.FetchPage(context.Background(), "k", func(context.Context) (Page, error) {
		return Page{}, errors.New("loader must not run on a hit")
	})
	require.NoError(t, err)
	assert.Len(t, page.Posts, 1)
}
