package main

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"streamshare/internal/domain/model"
	"streamshare/internal/usecase"
)

type catalogFile struct {
	Platforms      []platformEntry      `yaml:"platforms"`
	ProviderOffers []providerOfferEntry `yaml:"provider_offers"`
	Offers         []offerEntry         `yaml:"offers"`
}

type platformEntry struct {
	ID                    string `yaml:"id"`
	Slug                  string `yaml:"slug"`
	Name                  string `yaml:"name"`
	MaxProfilesPerAccount *int   `yaml:"max_profiles_per_account"`
	HasProfiles           bool   `yaml:"has_profiles"`
	HasMultipleOffers     bool   `yaml:"has_multiple_offers"`
	HasGiftCards          bool   `yaml:"has_gift_cards"`
}

type providerOfferEntry struct {
	ID          string          `yaml:"id"`
	PlatformID  string          `yaml:"platform_id"`
	Name        string          `yaml:"name"`
	Price       decimal.Decimal `yaml:"price"`
	Currency    string          `yaml:"currency"`
	DeviceCount int             `yaml:"device_count"`
}

type offerEntry struct {
	ID           string          `yaml:"id"`
	Name         string          `yaml:"name"`
	Price        decimal.Decimal `yaml:"price"`
	Currency     string          `yaml:"currency"`
	Duration     int             `yaml:"duration"`
	DurationUnit string          `yaml:"duration_unit"`
	MaxProfiles  int             `yaml:"max_profiles"`
	Platforms    []struct {
		PlatformID   string `yaml:"platform_id"`
		ProfileCount int    `yaml:"profile_count"`
		IsDefault    bool   `yaml:"is_default"`
	} `yaml:"platforms"`
}

func loadCatalog(path string) (*catalogFile, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return parseCatalog(b)
}

// parseCatalog requires explicit ids so reruns can detect what already exists.
func parseCatalog(b []byte) (*catalogFile, error) {
	var c catalogFile
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	for _, p := range c.Platforms {
		if p.ID == "" {
			return nil, fmt.Errorf("platform %q: id is required", p.Slug)
		}
	}
	for _, po := range c.ProviderOffers {
		if po.ID == "" {
			return nil, fmt.Errorf("provider offer %q: id is required", po.Name)
		}
	}
	for _, o := range c.Offers {
		if o.ID == "" {
			return nil, fmt.Errorf("offer %q: id is required", o.Name)
		}
		if _, ok := model.ParseDurationUnit(o.DurationUnit); !ok {
			return nil, fmt.Errorf("offer %s: unknown duration unit %q", o.ID, o.DurationUnit)
		}
	}
	return &c, nil
}

func (p platformEntry) input() usecase.PlatformInput {
	return usecase.PlatformInput(p)
}

func (po providerOfferEntry) input() usecase.ProviderOfferInput {
	return usecase.ProviderOfferInput(po)
}

func (o offerEntry) input() usecase.OfferInput {
	unit, _ := model.ParseDurationUnit(o.DurationUnit)
	in := usecase.OfferInput{
		ID:           o.ID,
		Name:         o.Name,
		Price:        o.Price,
		Currency:     o.Currency,
		Duration:     o.Duration,
		DurationUnit: unit,
		MaxProfiles:  o.MaxProfiles,
	}
	for _, op := range o.Platforms {
		in.Platforms = append(in.Platforms, model.OfferPlatform{
			PlatformID:   op.PlatformID,
			ProfileCount: op.ProfileCount,
			IsDefault:    op.IsDefault,
		})
	}
	return in
}
