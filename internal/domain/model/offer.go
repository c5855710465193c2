package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"streamshare/internal/domain"
)

// OfferPlatform is the per-platform part of a sellable Offer.
type OfferPlatform struct {
	PlatformID   string
	ProfileCount int
	IsDefault    bool
}

// Offer is a sellable plan. Offers referenced by subscriptions are never edited in place.
type Offer struct {
	ID           string
	Name         string
	Price        decimal.Decimal
	Currency     string
	Duration     int
	DurationUnit DurationUnit
	MaxProfiles  int
	Platforms    []OfferPlatform
	CreatedAt    time.Time
}

func NewOffer(id, name string, price decimal.Decimal, currency string, duration int, unit DurationUnit, maxProfiles int, platforms []OfferPlatform) (*Offer, error) {
	if strings.TrimSpace(name) == "" || duration <= 0 || maxProfiles <= 0 || len(platforms) == 0 {
		return nil, domain.ErrInvalidArgument
	}
	if _, ok := ParseDurationUnit(string(unit)); !ok {
		return nil, domain.ErrInvalidArgument
	}
	if price.IsNegative() || NormalizeCurrency(currency) == "" {
		return nil, domain.ErrInvalidArgument
	}
	seen := make(map[string]bool, len(platforms))
	total := 0
	for _, p := range platforms {
		if p.PlatformID == "" || p.ProfileCount <= 0 || seen[p.PlatformID] {
			return nil, domain.ErrInvalidArgument
		}
		seen[p.PlatformID] = true
		total += p.ProfileCount
	}
	if total > maxProfiles {
		return nil, domain.ErrInvalidArgument
	}
	if id == "" {
		id = uuid.NewString()
	}
	return &Offer{
		ID:           id,
		Name:         strings.TrimSpace(name),
		Price:        price,
		Currency:     NormalizeCurrency(currency),
		Duration:     duration,
		DurationUnit: unit,
		MaxProfiles:  maxProfiles,
		Platforms:    platforms,
		CreatedAt:    time.Now().UTC(),
	}, nil
}
