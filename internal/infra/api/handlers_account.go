package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"streamshare/internal/infra/logging"
	red "streamshare/internal/infra/redis"
	"streamshare/internal/usecase"
)

type provisionAccountRequest struct {
	PlatformID      string  `json:"platform_id"`
	ProviderOfferID *string `json:"provider_offer_id"`
	Label           string  `json:"label"`
	Login           string  `json:"login"`
	Secret          string  `json:"secret"`
	Slots           int     `json:"slots"`
}

func (s *Server) provisionAccount(w http.ResponseWriter, r *http.Request) {
	var req provisionAccountRequest
	if err := decode(w, r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	acc, profiles, err := s.uc.Accounts.ProvisionAccount(r.Context(), usecase.ProvisionInput{
		PlatformID:      req.PlatformID,
		ProviderOfferID: req.ProviderOfferID,
		Label:           req.Label,
		Login:           req.Login,
		Secret:          req.Secret,
		Slots:           req.Slots,
	})
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"account":  toAccount(acc),
		"profiles": toProfiles(profiles),
	})
}

func (s *Server) getAccount(w http.ResponseWriter, r *http.Request) {
	acc, err := s.uc.Accounts.GetAccount(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccount(acc))
}

func (s *Server) accountSlots(w http.ResponseWriter, r *http.Request) {
	free, err := s.uc.Accounts.ListAvailableSlots(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"free": toProfiles(free)})
}

func (s *Server) inventory(w http.ResponseWriter, r *http.Request) {
	inv, err := s.uc.Accounts.Inventory(r.Context(), r.URL.Query().Get("platform_id"))
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	type row struct {
		AccountID  string `json:"account_id"`
		PlatformID string `json:"platform_id"`
		Total      int    `json:"total"`
		Assigned   int    `json:"assigned"`
		Free       int    `json:"free"`
	}
	out := make([]row, 0, len(inv))
	for _, i := range inv {
		out = append(out, row{i.AccountID, i.PlatformID, i.Total, i.Assigned, i.Free()})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": out})
}

type redeemRequest struct {
	Codes []string `json:"codes"`
}

func (s *Server) redeem(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "id")
	ctx := logging.WithAccountID(r.Context(), accountID)

	if s.limiter != nil && s.redeemLimit > 0 {
		ok, err := s.limiter.Allow(ctx, red.RedeemScope(accountID), s.redeemLimit, time.Minute)
		if err != nil {
			// fail open: redemption stays available when Redis is down
			s.log.Warn().Err(err).Msg("rate limiter unavailable")
		} else if !ok {
			writeJSON(w, http.StatusTooManyRequests, errorBody{Code: "rate_limited", Message: "too many redemption attempts", Entity: accountID})
			return
		}
	}

	var req redeemRequest
	if err := decode(w, r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	res, err := s.uc.GiftCards.Redeem(ctx, accountID, req.Codes)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toRedeem(res))
}

func (s *Server) deleteProfile(w http.ResponseWriter, r *http.Request) {
	if err := s.uc.Allocator.DeleteProfile(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type importCardsRequest struct {
	PlatformID string `json:"platform_id"`
	Cards      []struct {
		Code      string          `json:"code"`
		Amount    decimal.Decimal `json:"amount"`
		Currency  string          `json:"currency"`
		ExpiresAt *time.Time      `json:"expires_at"`
	} `json:"cards"`
}

func (s *Server) importGiftCards(w http.ResponseWriter, r *http.Request) {
	var req importCardsRequest
	if err := decode(w, r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	in := make([]usecase.GiftCardInput, 0, len(req.Cards))
	for _, c := range req.Cards {
		in = append(in, usecase.GiftCardInput{Code: c.Code, Amount: c.Amount, Currency: c.Currency, ExpiresAt: c.ExpiresAt})
	}
	cards, err := s.uc.GiftCards.Import(r.Context(), req.PlatformID, in)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	out := make([]giftCardDTO, 0, len(cards))
	for _, c := range cards {
		out = append(out, giftCardDTO{
			ID:         c.ID,
			Code:       c.Code,
			Amount:     c.Amount,
			Currency:   c.Currency,
			PlatformID: c.PlatformID,
			Status:     string(c.Status),
			ExpiresAt:  c.ExpiresAt,
		})
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"imported": len(out), "cards": out})
}
