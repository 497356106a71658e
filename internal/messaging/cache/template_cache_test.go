package cache

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/craftpress/messaging/internal/messaging/domain"
)

type countingTemplateRepo struct {
	calls    int
	template *domain.MessageTemplate
	err      error
}

func (r *countingTemplateRepo) GetActiveByKey(ctx context.Context, templateKey string) (*domain.MessageTemplate, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	return r.template, nil
}

func newTestCache(t *testing.T, inner domain.TemplateRepository, ttl time.Duration) (*CachedTemplateRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewCachedTemplateRepository(inner, rdb, ttl, logger), mr
}

func TestCachedTemplateRepository(t *testing.T) {
	tmpl := &domain.MessageTemplate{
		ID:          "tpl-1",
		TemplateKey: "order_shipped",
		Channels:    []domain.Channel{domain.ChannelEmail},
		EmailBody:   "<p>Hi {{.first_name}}</p>",
		IsActive:    true,
	}

	t.Run("second lookup is served from cache", func(t *testing.T) {
		inner := &countingTemplateRepo{template: tmpl}
		cached, _ := newTestCache(t, inner, time.Minute)

		first, err := cached.GetActiveByKey(context.Background(), "order_shipped")
		require.NoError(t, err)
		assert.Equal(t, "tpl-1", first.ID)
		assert.Equal(t, 1, inner.calls)

		second, err := cached.GetActiveByKey(context.Background(), "order_shipped")
		require.NoError(t, err)
		assert.Equal(t, first.TemplateKey, second.TemplateKey)
		assert.Equal(t, 1, inner.calls)
	})

	t.Run("expired entry refetches from store", func(t *testing.T) {
		inner := &countingTemplateRepo{template: tmpl}
		cached, mr := newTestCache(t, inner, time.Minute)

		_, err := cached.GetActiveByKey(context.Background(), "order_shipped")
		require.NoError(t, err)
		mr.FastForward(2 * time.Minute)

		_, err = cached.GetActiveByKey(context.Background(), "order_shipped")
		require.NoError(t, err)
		assert.Equal(t, 2, inner.calls)
	})

	t.Run("store errors pass through uncached", func(t *testing.T) {
		inner := &countingTemplateRepo{err: domain.ErrTemplateNotFound}
		cached, _ := newTestCache(t, inner, time.Minute)

		_, err := cached.GetActiveByKey(context.Background(), "missing")
		assert.ErrorIs(t, err, domain.ErrTemplateNotFound)

		_, err = cached.GetActiveByKey(context.Background(), "missing")
		assert.ErrorIs(t, err, domain.ErrTemplateNotFound)
		assert.Equal(t, 2, inner.calls)
	})

	t.Run("corrupt entry falls back to store and is overwritten", func(t *testing.T) {
		inner := &countingTemplateRepo{template: tmpl}
		cached, mr := newTestCache(t, inner, time.Minute)

		require.NoError(t, mr.Set("tmpl:order_shipped", "{not json"))

		got, err := cached.GetActiveByKey(context.Background(), "order_shipped")
		require.NoError(t, err)
		assert.Equal(t, "tpl-1", got.ID)
		assert.Equal(t, 1, inner.calls)

		// The overwrite serves the next lookup.
		_, err = cached.GetActiveByKey(context.Background(), "order_shipped")
		require.NoError(t, err)
		assert.Equal(t, 1, inner.calls)
	})

	t.Run("redis being down degrades to the store", func(t *testing.T) {
		inner := &countingTemplateRepo{template: tmpl}
		cached, mr := newTestCache(t, inner, time.Minute)
		mr.Close()

		got, err := cached.GetActiveByKey(context.Background(), "order_shipped")
		require.NoError(t, err)
		assert.Equal(t, "tpl-1", got.ID)
		assert.Equal(t, 1, inner.calls)
	})

	t.Run("invalidate drops the entry", func(t *testing.T) {
		inner := &countingTemplateRepo{template: tmpl}
		cached, mr := newTestCache(t, inner, time.Minute)

		_, err := cached.GetActiveByKey(context.Background(), "order_shipped")
		require.NoError(t, err)
		require.NoError(t, cached.Invalidate(context.Background(), "order_shipped"))
		assert.False(t, mr.Exists("tmpl:order_shipped"))
	})
}
