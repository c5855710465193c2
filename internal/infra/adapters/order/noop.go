package order

import (
	"context"
	"sync"

	"streamshare/internal/domain/ports/adapter"
)

var _ adapter.OrderCreator = (*NoopCreator)(nil)

// NoopCreator records requests in memory; used by the memory driver and tests.
type NoopCreator struct {
	mu       sync.Mutex
	requests []adapter.OrderRequest
}

func NewNoopCreator() *NoopCreator { return &NoopCreator{} }

func (n *NoopCreator) CreateRenewalOrder(ctx context.Context, req adapter.OrderRequest) error {
	n.mu.Lock()
	n.requests = append(n.requests, req)
	n.mu.Unlock()
	return nil
}

func (n *NoopCreator) Requests() []adapter.OrderRequest {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]adapter.OrderRequest(nil), n.requests...)
}
