package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"streamshare/internal/domain/model"
	"streamshare/internal/domain/ports/repository"
	"streamshare/internal/infra/metrics"
	red "streamshare/internal/infra/redis"
)

var (
	_ repository.PlatformRepository = (*platformRepoCacheDecorator)(nil)
	_ repository.OfferRepository    = (*offerRepoCacheDecorator)(nil)
)

func platformKey(id string) string { return fmt.Sprintf("catalog:platform:%s", id) }
func offerKey(id string) string    { return fmt.Sprintf("catalog:offer:%s", id) }

// cacheGet reads a JSON value; any failure (miss, Redis error, bad payload) reports false.
func cacheGet(ctx context.Context, cache red.RedisClient, log *zerolog.Logger, name, key string, out interface{}) bool {
	val, err := cache.Get(ctx, key)
	if err != nil {
		if red.IsMiss(err) {
			metrics.ObserveCacheLookup(name, metrics.CacheMiss)
			return false
		}
		log.Warn().Err(err).Str("key", key).Msg("cache read failed")
		metrics.ObserveCacheLookup(name, metrics.CacheError)
		return false
	}
	if err := json.Unmarshal([]byte(val), out); err != nil {
		metrics.ObserveCacheLookup(name, metrics.CacheError)
		return false
	}
	metrics.ObserveCacheLookup(name, metrics.CacheHit)
	return true
}

func cachePut(ctx context.Context, cache red.RedisClient, log *zerolog.Logger, key string, v interface{}, ttl time.Duration) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := cache.Set(ctx, key, b, ttl); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
}

type platformRepoCacheDecorator struct {
	inner repository.PlatformRepository
	cache red.RedisClient
	ttl   time.Duration
	log   *zerolog.Logger
}

// NewPlatformRepoCacheDecorator caches single-platform lookups. Writes invalidate.
func NewPlatformRepoCacheDecorator(inner repository.PlatformRepository, cache red.RedisClient, ttl time.Duration, logger *zerolog.Logger) repository.PlatformRepository {
	l := logger.With().Str("component", "platformCache").Logger()
	return &platformRepoCacheDecorator{inner: inner, cache: cache, ttl: ttl, log: &l}
}

func (d *platformRepoCacheDecorator) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Platform, error) {
	// Inside a transaction the caller needs the row as the tx sees it.
	if tx != nil {
		return d.inner.FindByID(ctx, tx, id)
	}
	key := platformKey(id)
	var p model.Platform
	if cacheGet(ctx, d.cache, d.log, "platform", key, &p) {
		return &p, nil
	}
	found, err := d.inner.FindByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	cachePut(ctx, d.cache, d.log, key, found, d.ttl)
	return found, nil
}

func (d *platformRepoCacheDecorator) Save(ctx context.Context, tx repository.Tx, p *model.Platform) error {
	if err := d.inner.Save(ctx, tx, p); err != nil {
		return err
	}
	_ = d.cache.Del(ctx, platformKey(p.ID))
	return nil
}

func (d *platformRepoCacheDecorator) List(ctx context.Context, tx repository.Tx) ([]*model.Platform, error) {
	return d.inner.List(ctx, tx)
}

type offerRepoCacheDecorator struct {
	inner repository.OfferRepository
	cache red.RedisClient
	ttl   time.Duration
	log   *zerolog.Logger
}

// NewOfferRepoCacheDecorator caches offers by id. Offers are immutable once
// saved, so Save only clears a stale entry left under a reused id.
func NewOfferRepoCacheDecorator(inner repository.OfferRepository, cache red.RedisClient, ttl time.Duration, logger *zerolog.Logger) repository.OfferRepository {
	l := logger.With().Str("component", "offerCache").Logger()
	return &offerRepoCacheDecorator{inner: inner, cache: cache, ttl: ttl, log: &l}
}

func (d *offerRepoCacheDecorator) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Offer, error) {
	key := offerKey(id)
	var o model.Offer
	if cacheGet(ctx, d.cache, d.log, "offer", key, &o) {
		return &o, nil
	}
	found, err := d.inner.FindByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	cachePut(ctx, d.cache, d.log, key, found, d.ttl)
	return found, nil
}

func (d *offerRepoCacheDecorator) Save(ctx context.Context, tx repository.Tx, o *model.Offer) error {
	if err := d.inner.Save(ctx, tx, o); err != nil {
		return err
	}
	_ = d.cache.Del(ctx, offerKey(o.ID))
	return nil
}

func (d *offerRepoCacheDecorator) List(ctx context.Context, tx repository.Tx) ([]*model.Offer, error) {
	return d.inner.List(ctx, tx)
}
