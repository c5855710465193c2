package order

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"streamshare/internal/domain/ports/adapter"
	"streamshare/internal/infra/metrics"
	"streamshare/internal/infra/worker"
)

var _ adapter.OrderCreator = (*AsyncCreator)(nil)

// Submitter is the part of worker.Pool the async decorator needs.
type Submitter interface {
	Submit(task worker.Task) error
}

// AsyncCreator hands order creation to the worker pool so renewals return
// without waiting on billing. Failures are logged for reconciliation.
type AsyncCreator struct {
	inner   adapter.OrderCreator
	pool    Submitter
	timeout time.Duration
	log     *zerolog.Logger
}

func NewAsyncCreator(inner adapter.OrderCreator, pool Submitter, timeout time.Duration, logger *zerolog.Logger) *AsyncCreator {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	l := logger.With().Str("component", "asyncOrderCreator").Logger()
	return &AsyncCreator{inner: inner, pool: pool, timeout: timeout, log: &l}
}

// CreateRenewalOrder only fails when the pool refuses the job.
func (a *AsyncCreator) CreateRenewalOrder(ctx context.Context, req adapter.OrderRequest) error {
	err := a.pool.Submit(func(poolCtx context.Context) error {
		ctx, cancel := context.WithTimeout(poolCtx, a.timeout)
		defer cancel()
		if err := a.inner.CreateRenewalOrder(ctx, req); err != nil {
			metrics.IncOrder("failed")
			a.log.Error().Err(err).
				Str("subscription_id", req.SubscriptionID).
				Str("previous_id", req.PreviousID).
				Msg("renewal order failed; reconcile manually")
			return err
		}
		metrics.IncOrder("created")
		return nil
	})
	if err != nil {
		metrics.IncOrder("dropped")
		a.log.Error().Err(err).Str("subscription_id", req.SubscriptionID).Msg("renewal order not queued")
		return err
	}
	return nil
}
