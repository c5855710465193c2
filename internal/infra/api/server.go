package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"streamshare/internal/config"
	"streamshare/internal/usecase"
)

// Limiter bounds how often a key may hit a route within a window.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// UseCases bundles what the admin API drives.
type UseCases struct {
	Subscriptions usecase.SubscriptionUseCase
	Payments      usecase.PaymentUseCase
	Accounts      usecase.AccountUseCase
	Allocator     usecase.Allocator
	GiftCards     usecase.GiftCardUseCase
	Catalog       usecase.CatalogUseCase
}

type Server struct {
	uc          UseCases
	auth        *AuthManager
	limiter     Limiter // nil disables redeem rate limiting
	redeemLimit int
	timeout     time.Duration
	health      func(ctx context.Context) error
	log         *zerolog.Logger
}

func NewServer(uc UseCases, auth *AuthManager, limiter Limiter, cfg config.Config, health func(ctx context.Context) error, logger *zerolog.Logger) *Server {
	l := logger.With().Str("component", "adminAPI").Logger()
	return &Server{
		uc:          uc,
		auth:        auth,
		limiter:     limiter,
		redeemLimit: cfg.RateLimit.RedeemPerMinute,
		timeout:     cfg.Admin.RequestTimeout,
		health:      health,
		log:         &l,
	}
}

// Routes builds the full router: /health and /metrics are open, /api/v1 needs an admin token.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(TraceID(), RequestLog(s.log), Recover(s.log))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.auth.Guard(), Timeout(s.timeout))

		r.Post("/subscriptions", s.createSubscription)
		r.Get("/subscriptions/{id}", s.getSubscription)
		r.Post("/subscriptions/{id}/activate", s.activateSubscription)
		r.Post("/subscriptions/{id}/renew", s.renewSubscription)
		r.Post("/subscriptions/{id}/cleanup", s.cleanupSubscription)
		r.Post("/subscriptions/{id}/expire", s.expireSubscription)
		r.Put("/subscriptions/{id}/auto-renew", s.setAutoRenew)
		r.Get("/users/{id}/subscriptions", s.listUserSubscriptions)

		r.Post("/payments/confirm", s.confirmPayment)

		r.Post("/accounts", s.provisionAccount)
		r.Get("/accounts/{id}", s.getAccount)
		r.Get("/accounts/{id}/slots", s.accountSlots)
		r.Post("/accounts/{id}/redeem", s.redeem)
		r.Get("/inventory", s.inventory)

		r.Delete("/profiles/{id}", s.deleteProfile)

		r.Post("/gift-cards/import", s.importGiftCards)

		r.Get("/platforms", s.listPlatforms)
		r.Post("/platforms", s.createPlatform)
		r.Get("/platforms/{id}/provider-offers", s.listProviderOffers)
		r.Post("/provider-offers", s.createProviderOffer)
		r.Delete("/provider-offers/{id}", s.deleteProviderOffer)
		r.Get("/offers", s.listOffers)
		r.Post("/offers", s.createOffer)
		r.Get("/offers/{id}", s.getOffer)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health(r.Context()); err != nil {
			s.log.Warn().Err(err).Msg("health check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ListenAndServe serves until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", srv.Addr).Msg("admin API listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
