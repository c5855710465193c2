package sched

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"streamshare/internal/config"
	"streamshare/internal/domain/model"
	"streamshare/internal/infra/logging"
	red "streamshare/internal/infra/redis"
)

const sweepLockKey = "lock:expiry-sweep"

type SubscriptionSweeper interface {
	ExpireDue(ctx context.Context) (int, error)
	CleanupExpired(ctx context.Context, limit int) (int, error)
}

type CardSweeper interface {
	ExpireStale(ctx context.Context) (int64, error)
}

type InventoryReporter interface {
	Inventory(ctx context.Context, platformID string) ([]model.SlotInventory, error)
}

// ExpiryWorker periodically expires due subscriptions and stale gift cards,
// optionally releases the slots of expired subscriptions and refreshes the
// slot gauges. With a Locker only one instance sweeps per tick.
type ExpiryWorker struct {
	cfg       config.SchedulerConfig
	subs      SubscriptionSweeper
	cards     CardSweeper
	inventory InventoryReporter
	locker    red.Locker // nil: single instance, no lock
	log       *zerolog.Logger
}

func NewExpiryWorker(cfg config.SchedulerConfig, subs SubscriptionSweeper, cards CardSweeper, inventory InventoryReporter, locker red.Locker, logger *zerolog.Logger) *ExpiryWorker {
	exprLog := logger.With().Str("component", "ExpiryWorker").Logger()
	return &ExpiryWorker{
		cfg:       cfg,
		subs:      subs,
		cards:     cards,
		inventory: inventory,
		locker:    locker,
		log:       &exprLog,
	}
}

func (w *ExpiryWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.cfg.ExpiryInterval).Msg("Starting expiry worker")
	ticker := time.NewTicker(w.cfg.ExpiryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping expiry worker")
			return ctx.Err()
		case <-ticker.C:
			if err := w.RunOnce(ctx); err != nil && !errors.Is(err, red.ErrLockHeld) {
				w.log.Error().Err(err).Msg("expiry sweep failed")
			}
		}
	}
}

// RunOnce performs a single sweep. It returns red.ErrLockHeld when another
// instance owns the sweep.
func (w *ExpiryWorker) RunOnce(ctx context.Context) error {
	defer logging.TraceDuration(w.log, "expiry sweep")()
	if w.locker != nil {
		token, err := w.locker.TryLock(ctx, sweepLockKey, w.cfg.LockTTL)
		if err != nil {
			if errors.Is(err, red.ErrLockHeld) {
				w.log.Debug().Msg("sweep lock held elsewhere; skipping tick")
			}
			return err
		}
		defer func() {
			if err := w.locker.Unlock(context.WithoutCancel(ctx), sweepLockKey, token); err != nil {
				w.log.Warn().Err(err).Msg("sweep unlock failed")
			}
		}()
	}

	var errs []error
	n, err := w.subs.ExpireDue(ctx)
	if err != nil {
		errs = append(errs, err)
	}
	if n > 0 {
		w.log.Info().Int("count", n).Msg("subscriptions expired")
	}

	if w.cards != nil {
		c, err := w.cards.ExpireStale(ctx)
		if err != nil {
			errs = append(errs, err)
		}
		if c > 0 {
			w.log.Info().Int64("count", c).Msg("gift cards expired")
		}
	}

	if w.cfg.ReleaseExpiredSlots {
		r, err := w.subs.CleanupExpired(ctx, w.cfg.CleanupBatch)
		if err != nil {
			errs = append(errs, err)
		}
		if r > 0 {
			w.log.Info().Int("count", r).Msg("expired subscriptions cleaned up")
		}
	}

	if w.inventory != nil {
		if _, err := w.inventory.Inventory(ctx, ""); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
