package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"streamshare/internal/domain/model"
	"streamshare/internal/usecase"
)

type platformRequest struct {
	ID                    string `json:"id"`
	Slug                  string `json:"slug"`
	Name                  string `json:"name"`
	MaxProfilesPerAccount *int   `json:"max_profiles_per_account"`
	HasProfiles           bool   `json:"has_profiles"`
	HasMultipleOffers     bool   `json:"has_multiple_offers"`
	HasGiftCards          bool   `json:"has_gift_cards"`
}

func (s *Server) createPlatform(w http.ResponseWriter, r *http.Request) {
	var req platformRequest
	if err := decode(w, r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	p, err := s.uc.Catalog.CreatePlatform(r.Context(), usecase.PlatformInput(req))
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPlatform(p))
}

func (s *Server) listPlatforms(w http.ResponseWriter, r *http.Request) {
	ps, err := s.uc.Catalog.ListPlatforms(r.Context())
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	out := make([]platformDTO, 0, len(ps))
	for _, p := range ps {
		out = append(out, toPlatform(p))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": out})
}

type providerOfferRequest struct {
	ID          string          `json:"id"`
	PlatformID  string          `json:"platform_id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Currency    string          `json:"currency"`
	DeviceCount int             `json:"device_count"`
}

func toProviderOffer(o *model.ProviderOffer) providerOfferDTO {
	return providerOfferDTO{ID: o.ID, PlatformID: o.PlatformID, Name: o.Name, Price: o.Price, Currency: o.Currency, DeviceCount: o.DeviceCount}
}

func (s *Server) createProviderOffer(w http.ResponseWriter, r *http.Request) {
	var req providerOfferRequest
	if err := decode(w, r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	o, err := s.uc.Catalog.CreateProviderOffer(r.Context(), usecase.ProviderOfferInput(req))
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProviderOffer(o))
}

func (s *Server) listProviderOffers(w http.ResponseWriter, r *http.Request) {
	items, err := s.uc.Catalog.ListProviderOffers(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	out := make([]providerOfferDTO, 0, len(items))
	for _, o := range items {
		out = append(out, toProviderOffer(o))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": out})
}

func (s *Server) deleteProviderOffer(w http.ResponseWriter, r *http.Request) {
	if err := s.uc.Catalog.DeleteProviderOffer(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type offerRequest struct {
	ID           string             `json:"id"`
	Name         string             `json:"name"`
	Price        decimal.Decimal    `json:"price"`
	Currency     string             `json:"currency"`
	Duration     int                `json:"duration"`
	DurationUnit string             `json:"duration_unit"`
	MaxProfiles  int                `json:"max_profiles"`
	Platforms    []offerPlatformDTO `json:"platforms"`
}

func (s *Server) createOffer(w http.ResponseWriter, r *http.Request) {
	var req offerRequest
	if err := decode(w, r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	unit, ok := model.ParseDurationUnit(req.DurationUnit)
	if !ok {
		badRequest(w, "duration_unit must be DAY, WEEK, MONTH or YEAR")
		return
	}
	ps := make([]model.OfferPlatform, 0, len(req.Platforms))
	for _, p := range req.Platforms {
		ps = append(ps, model.OfferPlatform{PlatformID: p.PlatformID, ProfileCount: p.ProfileCount, IsDefault: p.IsDefault})
	}
	o, err := s.uc.Catalog.CreateOffer(r.Context(), usecase.OfferInput{
		ID:           req.ID,
		Name:         req.Name,
		Price:        req.Price,
		Currency:     req.Currency,
		Duration:     req.Duration,
		DurationUnit: unit,
		MaxProfiles:  req.MaxProfiles,
		Platforms:    ps,
	})
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOffer(o))
}

func (s *Server) getOffer(w http.ResponseWriter, r *http.Request) {
	o, err := s.uc.Catalog.GetOffer(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toOffer(o))
}

func (s *Server) listOffers(w http.ResponseWriter, r *http.Request) {
	items, err := s.uc.Catalog.ListOffers(r.Context())
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	out := make([]offerDTO, 0, len(items))
	for _, o := range items {
		out = append(out, toOffer(o))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": out})
}
