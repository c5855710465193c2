//go:build !integration

package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"streamshare/internal/domain"
	"streamshare/internal/domain/model"
	"streamshare/internal/domain/ports/repository"
)

func TestPlatformRepoCacheDecorator(t *testing.T) {
	ctx := context.Background()
	logger := zerolog.Nop()
	platform := &model.Platform{ID: "pf-1", Slug: "netflix", Name: "Netflix"}
	platformJSON, _ := json.Marshal(platform)

	t.Run("FindByID should return from cache on hit", func(t *testing.T) {
		mockRedis := &mockRedisClient{
			GetFunc: func(ctx context.Context, key string) (string, error) {
				if key != "catalog:platform:pf-1" {
					t.Errorf("unexpected key %q", key)
				}
				return string(platformJSON), nil
			},
		}
		innerCalled := false
		inner := &mockInnerPlatformRepo{
			FindByIDFunc: func(ctx context.Context, tx repository.Tx, id string) (*model.Platform, error) {
				innerCalled = true
				return nil, nil
			},
		}

		got, err := NewPlatformRepoCacheDecorator(inner, mockRedis, time.Hour, &logger).FindByID(ctx, nil, "pf-1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if innerCalled {
			t.Error("inner repository should not be called on a cache hit")
		}
		if got == nil || got.Slug != "netflix" {
			t.Errorf("did not return the cached platform, got %+v", got)
		}
	})

	t.Run("FindByID should populate the cache on miss", func(t *testing.T) {
		var setKey string
		var setTTL time.Duration
		mockRedis := &mockRedisClient{
			GetFunc: func(ctx context.Context, key string) (string, error) { return "", goredis.Nil },
			SetFunc: func(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
				setKey, setTTL = key, ttl
				return nil
			},
		}
		inner := &mockInnerPlatformRepo{
			FindByIDFunc: func(ctx context.Context, tx repository.Tx, id string) (*model.Platform, error) {
				return platform, nil
			},
		}

		got, err := NewPlatformRepoCacheDecorator(inner, mockRedis, 5*time.Minute, &logger).FindByID(ctx, nil, "pf-1")
		if err != nil || got.ID != "pf-1" {
			t.Fatalf("expected platform pf-1, got %+v err=%v", got, err)
		}
		if setKey != "catalog:platform:pf-1" || setTTL != 5*time.Minute {
			t.Errorf("cache not populated as expected: key=%q ttl=%v", setKey, setTTL)
		}
	})

	t.Run("FindByID inside a transaction bypasses the cache", func(t *testing.T) {
		mockRedis := &mockRedisClient{
			GetFunc: func(ctx context.Context, key string) (string, error) {
				t.Error("cache must not be read inside a transaction")
				return "", goredis.Nil
			},
		}
		inner := &mockInnerPlatformRepo{
			FindByIDFunc: func(ctx context.Context, tx repository.Tx, id string) (*model.Platform, error) {
				return platform, nil
			},
		}
		if _, err := NewPlatformRepoCacheDecorator(inner, mockRedis, time.Hour, &logger).FindByID(ctx, struct{}{}, "pf-1"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})

	t.Run("Not found is not cached", func(t *testing.T) {
		mockRedis := &mockRedisClient{
			GetFunc: func(ctx context.Context, key string) (string, error) { return "", errors.New("connection reset") },
			SetFunc: func(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
				t.Error("a failed lookup must not be cached")
				return nil
			},
		}
		inner := &mockInnerPlatformRepo{
			FindByIDFunc: func(ctx context.Context, tx repository.Tx, id string) (*model.Platform, error) {
				return nil, domain.ErrPlatformNotFound
			},
		}
		_, err := NewPlatformRepoCacheDecorator(inner, mockRedis, time.Hour, &logger).FindByID(ctx, nil, "missing")
		if !errors.Is(err, domain.ErrPlatformNotFound) {
			t.Fatalf("expected ErrPlatformNotFound, got %v", err)
		}
	})

	t.Run("Save should invalidate the cache", func(t *testing.T) {
		var deleted []string
		mockRedis := &mockRedisClient{
			DelFunc: func(ctx context.Context, keys ...string) error {
				deleted = append(deleted, keys...)
				return nil
			},
		}
		inner := &mockInnerPlatformRepo{
			SaveFunc: func(ctx context.Context, tx repository.Tx, p *model.Platform) error { return nil },
		}
		if err := NewPlatformRepoCacheDecorator(inner, mockRedis, time.Hour, &logger).Save(ctx, nil, platform); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(deleted) != 1 || deleted[0] != "catalog:platform:pf-1" {
			t.Fatalf("expected platform key invalidated, got %v", deleted)
		}
	})
}

func TestOfferRepoCacheDecorator(t *testing.T) {
	ctx := context.Background()
	logger := zerolog.Nop()
	offer := &model.Offer{
		ID: "of-1", Name: "Duo", Price: decimal.RequireFromString("7.50"), Currency: "EUR",
		Duration: 1, DurationUnit: model.DurationMonth, MaxProfiles: 2,
		Platforms: []model.OfferPlatform{{PlatformID: "pf-1", ProfileCount: 2, IsDefault: true}},
	}
	offerJSON, _ := json.Marshal(offer)

	t.Run("FindByID round-trips decimals through the cache", func(t *testing.T) {
		mockRedis := &mockRedisClient{
			GetFunc: func(ctx context.Context, key string) (string, error) { return string(offerJSON), nil },
		}
		inner := &mockInnerOfferRepo{
			FindByIDFunc: func(ctx context.Context, tx repository.Tx, id string) (*model.Offer, error) {
				t.Error("inner repository should not be called on a cache hit")
				return nil, nil
			},
		}
		got, err := NewOfferRepoCacheDecorator(inner, mockRedis, time.Hour, &logger).FindByID(ctx, nil, "of-1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !got.Price.Equal(offer.Price) || len(got.Platforms) != 1 {
			t.Errorf("cached offer mismatch: %+v", got)
		}
	})

	t.Run("Save failure keeps the cache untouched", func(t *testing.T) {
		mockRedis := &mockRedisClient{
			DelFunc: func(ctx context.Context, keys ...string) error {
				t.Error("cache must not be invalidated when the write fails")
				return nil
			},
		}
		inner := &mockInnerOfferRepo{
			SaveFunc: func(ctx context.Context, tx repository.Tx, o *model.Offer) error { return domain.ErrAlreadyExists },
		}
		err := NewOfferRepoCacheDecorator(inner, mockRedis, time.Hour, &logger).Save(ctx, nil, offer)
		if !errors.Is(err, domain.ErrAlreadyExists) {
			t.Fatalf("expected ErrAlreadyExists, got %v", err)
		}
	})
}
