package api

import (
	"time"

	"github.com/shopspring/decimal"

	"streamshare/internal/domain/model"
	"streamshare/internal/usecase"
)

type subscriptionDTO struct {
	ID            string     `json:"id"`
	UserID        string     `json:"user_id"`
	OfferID       string     `json:"offer_id"`
	Status        string     `json:"status"`
	StartDate     time.Time  `json:"start_date"`
	EndDate       *time.Time `json:"end_date,omitempty"`
	AutoRenew     bool       `json:"auto_renew"`
	RenewedFromID *string    `json:"renewed_from_id,omitempty"`
	RenewedToID   *string    `json:"renewed_to_id,omitempty"`
}

func toSubscription(s *model.Subscription) subscriptionDTO {
	return subscriptionDTO{
		ID:            s.ID,
		UserID:        s.UserID,
		OfferID:       s.OfferID,
		Status:        string(s.Status),
		StartDate:     s.StartDate,
		EndDate:       s.EndDate,
		AutoRenew:     s.AutoRenew,
		RenewedFromID: s.RenewedFromID,
		RenewedToID:   s.RenewedToID,
	}
}

// accountDTO never carries the sealed secret.
type accountDTO struct {
	ID              string     `json:"id"`
	PlatformID      string     `json:"platform_id"`
	ProviderOfferID *string    `json:"provider_offer_id,omitempty"`
	Label           string     `json:"label"`
	Login           string     `json:"login"`
	Status          string     `json:"status"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
}

func toAccount(a *model.Account) accountDTO {
	return accountDTO{
		ID:              a.ID,
		PlatformID:      a.PlatformID,
		ProviderOfferID: a.ProviderOfferID,
		Label:           a.Label,
		Login:           a.Login,
		Status:          string(a.Status),
		ExpiresAt:       a.ExpiresAt,
	}
}

type profileDTO struct {
	ID             string  `json:"id"`
	SlotIndex      int     `json:"slot_index"`
	Name           string  `json:"name"`
	IsAssigned     bool    `json:"is_assigned"`
	SubscriptionID *string `json:"subscription_id,omitempty"`
}

func toProfiles(ps []*model.AccountProfile) []profileDTO {
	out := make([]profileDTO, 0, len(ps))
	for _, p := range ps {
		out = append(out, profileDTO{ID: p.ID, SlotIndex: p.SlotIndex, Name: p.Name, IsAssigned: p.IsAssigned, SubscriptionID: p.SubscriptionID})
	}
	return out
}

type redeemDTO struct {
	AccountID      string          `json:"account_id"`
	PreviousExpiry *time.Time      `json:"previous_expiry,omitempty"`
	NewExpiry      time.Time       `json:"new_expiry"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	Currency       string          `json:"currency"`
	DaysAdded      int             `json:"days_added"`
	Cards          []string        `json:"cards"`
}

func toRedeem(r *usecase.RedeemResult) redeemDTO {
	return redeemDTO{
		AccountID:      r.AccountID,
		PreviousExpiry: r.PreviousExpiry,
		NewExpiry:      r.NewExpiry,
		TotalAmount:    r.TotalAmount,
		Currency:       r.Currency,
		DaysAdded:      r.DaysAdded,
		Cards:          r.Cards,
	}
}

type giftCardDTO struct {
	ID         string          `json:"id"`
	Code       string          `json:"code"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
	PlatformID string          `json:"platform_id"`
	Status     string          `json:"status"`
	ExpiresAt  *time.Time      `json:"expires_at,omitempty"`
}

type platformDTO struct {
	ID                    string `json:"id"`
	Slug                  string `json:"slug"`
	Name                  string `json:"name"`
	MaxProfilesPerAccount *int   `json:"max_profiles_per_account,omitempty"`
	HasProfiles           bool   `json:"has_profiles"`
	HasMultipleOffers     bool   `json:"has_multiple_offers"`
	HasGiftCards          bool   `json:"has_gift_cards"`
}

func toPlatform(p *model.Platform) platformDTO {
	return platformDTO{
		ID:                    p.ID,
		Slug:                  p.Slug,
		Name:                  p.Name,
		MaxProfilesPerAccount: p.MaxProfilesPerAccount,
		HasProfiles:           p.HasProfiles,
		HasMultipleOffers:     p.HasMultipleOffers,
		HasGiftCards:          p.HasGiftCards,
	}
}

type providerOfferDTO struct {
	ID          string          `json:"id"`
	PlatformID  string          `json:"platform_id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Currency    string          `json:"currency"`
	DeviceCount int             `json:"device_count"`
}

type offerPlatformDTO struct {
	PlatformID   string `json:"platform_id"`
	ProfileCount int    `json:"profile_count"`
	IsDefault    bool   `json:"is_default"`
}

type offerDTO struct {
	ID           string             `json:"id"`
	Name         string             `json:"name"`
	Price        decimal.Decimal    `json:"price"`
	Currency     string             `json:"currency"`
	Duration     int                `json:"duration"`
	DurationUnit string             `json:"duration_unit"`
	MaxProfiles  int                `json:"max_profiles"`
	Platforms    []offerPlatformDTO `json:"platforms"`
}

func toOffer(o *model.Offer) offerDTO {
	ps := make([]offerPlatformDTO, 0, len(o.Platforms))
	for _, p := range o.Platforms {
		ps = append(ps, offerPlatformDTO{PlatformID: p.PlatformID, ProfileCount: p.ProfileCount, IsDefault: p.IsDefault})
	}
	return offerDTO{
		ID:           o.ID,
		Name:         o.Name,
		Price:        o.Price,
		Currency:     o.Currency,
		Duration:     o.Duration,
		DurationUnit: string(o.DurationUnit),
		MaxProfiles:  o.MaxProfiles,
		Platforms:    ps,
	}
}
