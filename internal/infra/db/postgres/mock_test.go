//go:build !integration

package postgres

import (
	"context"
	"time"

	"streamshare/internal/domain/model"
	"streamshare/internal/domain/ports/repository"
	red "streamshare/internal/infra/redis"
)

// mockInnerPlatformRepo mocks the database repository the platform decorator wraps.
type mockInnerPlatformRepo struct {
	SaveFunc     func(ctx context.Context, tx repository.Tx, p *model.Platform) error
	FindByIDFunc func(ctx context.Context, tx repository.Tx, id string) (*model.Platform, error)
	ListFunc     func(ctx context.Context, tx repository.Tx) ([]*model.Platform, error)
}

func (m *mockInnerPlatformRepo) Save(ctx context.Context, tx repository.Tx, p *model.Platform) error {
	return m.SaveFunc(ctx, tx, p)
}
func (m *mockInnerPlatformRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Platform, error) {
	return m.FindByIDFunc(ctx, tx, id)
}
func (m *mockInnerPlatformRepo) List(ctx context.Context, tx repository.Tx) ([]*model.Platform, error) {
	return m.ListFunc(ctx, tx)
}

type mockInnerOfferRepo struct {
	SaveFunc     func(ctx context.Context, tx repository.Tx, o *model.Offer) error
	FindByIDFunc func(ctx context.Context, tx repository.Tx, id string) (*model.Offer, error)
	ListFunc     func(ctx context.Context, tx repository.Tx) ([]*model.Offer, error)
}

func (m *mockInnerOfferRepo) Save(ctx context.Context, tx repository.Tx, o *model.Offer) error {
	return m.SaveFunc(ctx, tx, o)
}
func (m *mockInnerOfferRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Offer, error) {
	return m.FindByIDFunc(ctx, tx, id)
}
func (m *mockInnerOfferRepo) List(ctx context.Context, tx repository.Tx) ([]*model.Offer, error) {
	return m.ListFunc(ctx, tx)
}

// mockRedisClient mocks our Redis client wrapper.
type mockRedisClient struct {
	GetFunc    func(ctx context.Context, key string) (string, error)
	SetFunc    func(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	DelFunc    func(ctx context.Context, keys ...string) error
	PingFunc   func(ctx context.Context) error
	IncrFunc   func(ctx context.Context, key string) (int64, error)
	ExpireFunc func(ctx context.Context, key string, expiration time.Duration) error
	CloseFunc  func() error
}

var _ red.RedisClient = &mockRedisClient{}

func (m *mockRedisClient) Get(ctx context.Context, key string) (string, error) {
	return m.GetFunc(ctx, key)
}
func (m *mockRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if m.SetFunc == nil {
		return nil
	}
	return m.SetFunc(ctx, key, value, expiration)
}
func (m *mockRedisClient) Del(ctx context.Context, keys ...string) error {
	if m.DelFunc == nil {
		return nil
	}
	return m.DelFunc(ctx, keys...)
}
func (m *mockRedisClient) Ping(ctx context.Context) error { return m.PingFunc(ctx) }
func (m *mockRedisClient) Incr(ctx context.Context, key string) (int64, error) {
	return m.IncrFunc(ctx, key)
}
func (m *mockRedisClient) Expire(ctx context.Context, key string, expiration time.Duration) error {
	return m.ExpireFunc(ctx, key, expiration)
}
func (m *mockRedisClient) Close() error { return m.CloseFunc() }
