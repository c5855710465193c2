// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"streamshare/internal/application"
	"streamshare/internal/config"
	"streamshare/internal/domain"
	"streamshare/internal/infra/api"
	"streamshare/internal/infra/logging"
	"streamshare/internal/infra/metrics"
	"streamshare/internal/infra/sched"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("dev mode enabled")
	}

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ---- Engine ----
	engine, err := application.Build(ctx, cfg, domain.SystemClock{}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("build engine")
	}
	defer engine.Close()
	engine.Start(ctx)

	// ---- Admin API ----
	auth := api.NewAuthManager(cfg.Admin.JWTSecret, cfg.Admin.TokenTTL)
	var limiter api.Limiter
	if engine.RateLimiter != nil {
		limiter = engine.RateLimiter
	}
	srv := api.NewServer(api.UseCases{
		Subscriptions: engine.Subscriptions,
		Payments:      engine.Payments,
		Accounts:      engine.Accounts,
		Allocator:     engine.Allocator,
		GiftCards:     engine.GiftCards,
		Catalog:       engine.Catalog,
	}, auth, limiter, *cfg, engine.Health, logger)

	// ---- Expiry sweep ----
	sweeper := sched.NewExpiryWorker(cfg.Scheduler, engine.Subscriptions, engine.GiftCards, engine.Accounts, engine.Locker, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.ListenAndServe(gctx, cfg.Admin.Port) })
	g.Go(func() error { return sweeper.Run(gctx) })
	if engine.Pool != nil {
		g.Go(func() error {
			t := time.NewTicker(15 * time.Second)
			defer t.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-t.C:
					metrics.ObservePool(engine.Pool.Stat())
				}
			}
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("stopped with error")
		return
	}
	logger.Info().Msg("shutdown complete")
}
