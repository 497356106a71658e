package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/craftpress/messaging/internal/messaging/domain"
)

// CachedTemplateRepository is a cache-aside decorator over a
// TemplateRepository. Template definitions change rarely and are read on
// every send, so a short Redis TTL removes most of the lookup load.
//
// Redis failures degrade to the underlying store: a send must never fail
// because the cache is down.
type CachedTemplateRepository struct {
	inner  domain.TemplateRepository
	rdb    *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewCachedTemplateRepository(inner domain.TemplateRepository, rdb *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedTemplateRepository {
	return &CachedTemplateRepository{
		inner:  inner,
		rdb:    rdb,
		ttl:    ttl,
		logger: logger.With("component", "template_cache"),
	}
}

func cacheKey(templateKey string) string {
	return "tmpl:" + templateKey
}

func (r *CachedTemplateRepository) GetActiveByKey(ctx context.Context, templateKey string) (*domain.MessageTemplate, error) {
	key := cacheKey(templateKey)

	cached, err := r.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var tmpl domain.MessageTemplate
		if unmarshalErr := json.Unmarshal(cached, &tmpl); unmarshalErr == nil {
			return &tmpl, nil
		}
		// Corrupt cache entry; fall through to the store and overwrite.
		r.logger.WarnContext(ctx, "discarding unparseable cache entry", "template_key", templateKey)
	} else if !errors.Is(err, redis.Nil) {
		r.logger.WarnContext(ctx, "template cache read failed, falling back to store", "error", err, "template_key", templateKey)
	}

	tmpl, err := r.inner.GetActiveByKey(ctx, templateKey)
	if err != nil {
		return nil, err
	}

	if encoded, marshalErr := json.Marshal(tmpl); marshalErr == nil {
		if setErr := r.rdb.Set(ctx, key, encoded, r.ttl).Err(); setErr != nil {
			r.logger.WarnContext(ctx, "template cache write failed", "error", setErr, "template_key", templateKey)
		}
	}
	return tmpl, nil
}

// Invalidate drops a cached template, for use by admin tooling after edits.
func (r *CachedTemplateRepository) Invalidate(ctx context.Context, templateKey string) error {
	return r.rdb.Del(ctx, cacheKey(templateKey)).Err()
}
