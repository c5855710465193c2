package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"streamshare/internal/domain"
)

// Platform is the static descriptor of an upstream service.
type Platform struct {
	ID   string
	Slug string
	Name string
	// MaxProfilesPerAccount is the slot capacity of one account; nil means unlimited.
	MaxProfilesPerAccount *int
	HasProfiles           bool
	HasMultipleOffers     bool
	HasGiftCards          bool
	CreatedAt             time.Time
}

func NewPlatform(id, slug, name string, maxProfiles *int, hasProfiles, multipleOffers, giftCards bool) (*Platform, error) {
	slug = strings.ToLower(strings.TrimSpace(slug))
	if slug == "" || strings.TrimSpace(name) == "" {
		return nil, domain.ErrInvalidArgument
	}
	if maxProfiles != nil && *maxProfiles <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	if id == "" {
		id = uuid.NewString()
	}
	return &Platform{
		ID:                    id,
		Slug:                  slug,
		Name:                  strings.TrimSpace(name),
		MaxProfilesPerAccount: maxProfiles,
		HasProfiles:           hasProfiles,
		HasMultipleOffers:     multipleOffers,
		HasGiftCards:          giftCards,
		CreatedAt:             time.Now().UTC(),
	}, nil
}

// SlotCapacity resolves how many profiles a freshly provisioned account gets.
// requested <= 0 means "use the platform default".
func (p *Platform) SlotCapacity(requested int) (int, error) {
	if !p.HasProfiles {
		if requested > 1 {
			return 0, domain.ErrInvalidArgument
		}
		return 1, nil
	}
	if requested <= 0 {
		if p.MaxProfilesPerAccount == nil {
			return 0, domain.ErrInvalidArgument
		}
		return *p.MaxProfilesPerAccount, nil
	}
	if p.MaxProfilesPerAccount != nil && requested > *p.MaxProfilesPerAccount {
		return 0, domain.ErrInvalidArgument
	}
	return requested, nil
}

// ProviderOffer is the upstream plan an account is paid with. Its Price is
// always read as the price of a 30-day period.
type ProviderOffer struct {
	ID           string
	PlatformID   string
	Name         string
	Price        decimal.Decimal
	Currency     string
	DeviceCount  int
	DurationDays int
	CreatedAt    time.Time
}

func NewProviderOffer(id, platformID, name string, price decimal.Decimal, currency string, devices int) (*ProviderOffer, error) {
	currency = NormalizeCurrency(currency)
	if platformID == "" || strings.TrimSpace(name) == "" || currency == "" || devices < 0 {
		return nil, domain.ErrInvalidArgument
	}
	if !price.IsPositive() {
		return nil, domain.ErrInvalidConversion.With(name)
	}
	if id == "" {
		id = uuid.NewString()
	}
	return &ProviderOffer{
		ID:           id,
		PlatformID:   platformID,
		Name:         strings.TrimSpace(name),
		Price:        price,
		Currency:     currency,
		DeviceCount:  devices,
		DurationDays: 30,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

func NormalizeCurrency(c string) string { return strings.ToUpper(strings.TrimSpace(c)) }
