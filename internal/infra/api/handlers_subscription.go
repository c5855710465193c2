package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"streamshare/internal/infra/logging"
	"streamshare/internal/usecase"
)

type createSubscriptionRequest struct {
	UserID  string `json:"user_id"`
	OfferID string `json:"offer_id"`
}

func (s *Server) createSubscription(w http.ResponseWriter, r *http.Request) {
	var req createSubscriptionRequest
	if err := decode(w, r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	sub, err := s.uc.Subscriptions.Create(r.Context(), req.UserID, req.OfferID)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSubscription(sub))
}

func (s *Server) getSubscription(w http.ResponseWriter, r *http.Request) {
	sub, err := s.uc.Subscriptions.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toSubscription(sub))
}

func (s *Server) activateSubscription(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sub, err := s.uc.Subscriptions.Activate(logging.WithSubscriptionID(r.Context(), id), id)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toSubscription(sub))
}

func (s *Server) renewSubscription(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sub, err := s.uc.Subscriptions.Renew(logging.WithSubscriptionID(r.Context(), id), id)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSubscription(sub))
}

func (s *Server) cleanupSubscription(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	n, err := s.uc.Subscriptions.Cleanup(logging.WithSubscriptionID(r.Context(), id), id)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"released": n})
}

func (s *Server) expireSubscription(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sub, n, err := s.uc.Subscriptions.ForceExpire(logging.WithSubscriptionID(r.Context(), id), id)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Subscription subscriptionDTO `json:"subscription"`
		Released     int             `json:"released"`
	}{toSubscription(sub), n})
}

type autoRenewRequest struct {
	Enabled *bool `json:"enabled"`
}

func (s *Server) setAutoRenew(w http.ResponseWriter, r *http.Request) {
	var req autoRenewRequest
	if err := decode(w, r, &req); err != nil || req.Enabled == nil {
		badRequest(w, "enabled is required")
		return
	}
	sub, err := s.uc.Subscriptions.SetAutoRenew(r.Context(), chi.URLParam(r, "id"), *req.Enabled)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toSubscription(sub))
}

func (s *Server) listUserSubscriptions(w http.ResponseWriter, r *http.Request) {
	subs, err := s.uc.Subscriptions.ListByUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	out := make([]subscriptionDTO, 0, len(subs))
	for _, sub := range subs {
		out = append(out, toSubscription(sub))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": out})
}

type confirmPaymentRequest struct {
	SubscriptionID string          `json:"subscription_id"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	ProviderRef    string          `json:"provider_ref"`
}

func (s *Server) confirmPayment(w http.ResponseWriter, r *http.Request) {
	var req confirmPaymentRequest
	if err := decode(w, r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	ctx := logging.WithSubscriptionID(r.Context(), req.SubscriptionID)
	sub, err := s.uc.Payments.Confirm(ctx, usecase.PaymentConfirmation{
		SubscriptionID: req.SubscriptionID,
		Amount:         req.Amount,
		Currency:       req.Currency,
		ProviderRef:    req.ProviderRef,
	})
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toSubscription(sub))
}
