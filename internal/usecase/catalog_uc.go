package usecase

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"streamshare/internal/domain"
	"streamshare/internal/domain/entitlement"
	"streamshare/internal/domain/model"
	"streamshare/internal/domain/ports/repository"
	"streamshare/internal/infra/logging"
)

// Compile-time check
var _ CatalogUseCase = (*catalogUC)(nil)

// CatalogUseCase manages the administrative reference data: platforms, the
// provider offers used as cost basis and the sellable offers.
type CatalogUseCase interface {
	CreatePlatform(ctx context.Context, in PlatformInput) (*model.Platform, error)
	GetPlatform(ctx context.Context, id string) (*model.Platform, error)
	ListPlatforms(ctx context.Context) ([]*model.Platform, error)

	CreateProviderOffer(ctx context.Context, in ProviderOfferInput) (*model.ProviderOffer, error)
	ListProviderOffers(ctx context.Context, platformID string) ([]*model.ProviderOffer, error)
	DeleteProviderOffer(ctx context.Context, id string) error

	CreateOffer(ctx context.Context, in OfferInput) (*model.Offer, error)
	GetOffer(ctx context.Context, id string) (*model.Offer, error)
	ListOffers(ctx context.Context) ([]*model.Offer, error)
}

type PlatformInput struct {
	ID                    string
	Slug                  string
	Name                  string
	MaxProfilesPerAccount *int
	HasProfiles           bool
	HasMultipleOffers     bool
	HasGiftCards          bool
}

type ProviderOfferInput struct {
	ID          string
	PlatformID  string
	Name        string
	Price       decimal.Decimal
	Currency    string
	DeviceCount int
}

type OfferInput struct {
	ID           string
	Name         string
	Price        decimal.Decimal
	Currency     string
	Duration     int
	DurationUnit model.DurationUnit
	MaxProfiles  int
	Platforms    []model.OfferPlatform
}

type catalogUC struct {
	platforms      repository.PlatformRepository
	providerOffers repository.ProviderOfferRepository
	offers         repository.OfferRepository
	tm             repository.TransactionManager
	log            *zerolog.Logger
}

func NewCatalogUseCase(
	platforms repository.PlatformRepository,
	providerOffers repository.ProviderOfferRepository,
	offers repository.OfferRepository,
	tm repository.TransactionManager,
	logger *zerolog.Logger,
) *catalogUC {
	return &catalogUC{
		platforms:      platforms,
		providerOffers: providerOffers,
		offers:         offers,
		tm:             tm,
		log:            logging.Component(logger, "CatalogUC"),
	}
}

func (u *catalogUC) CreatePlatform(ctx context.Context, in PlatformInput) (*model.Platform, error) {
	p, err := model.NewPlatform(in.ID, in.Slug, in.Name, in.MaxProfilesPerAccount, in.HasProfiles, in.HasMultipleOffers, in.HasGiftCards)
	if err != nil {
		return nil, err
	}
	if err := u.platforms.Save(ctx, repository.NoTX, p); err != nil {
		return nil, err
	}
	u.log.Info().Str("platform_id", p.ID).Str("slug", p.Slug).Msg("platform created")
	return p, nil
}

func (u *catalogUC) GetPlatform(ctx context.Context, id string) (*model.Platform, error) {
	return u.platforms.FindByID(ctx, repository.NoTX, id)
}

func (u *catalogUC) ListPlatforms(ctx context.Context) ([]*model.Platform, error) {
	return u.platforms.List(ctx, repository.NoTX)
}

func (u *catalogUC) CreateProviderOffer(ctx context.Context, in ProviderOfferInput) (*model.ProviderOffer, error) {
	po, err := model.NewProviderOffer(in.ID, in.PlatformID, in.Name, in.Price, in.Currency, in.DeviceCount)
	if err != nil {
		return nil, err
	}
	err = u.tm.WithTx(ctx, repository.ReadCommitted, func(ctx context.Context, tx repository.Tx) error {
		p, err := u.platforms.FindByID(ctx, tx, in.PlatformID)
		if err != nil {
			return err
		}
		if !p.HasMultipleOffers {
			existing, err := u.providerOffers.ListByPlatform(ctx, tx, p.ID)
			if err != nil {
				return err
			}
			if len(existing) > 0 {
				return domain.ErrSingleProviderOffer.With(p.Slug)
			}
		}
		return u.providerOffers.Save(ctx, tx, po)
	})
	if err != nil {
		return nil, err
	}
	return po, nil
}

func (u *catalogUC) ListProviderOffers(ctx context.Context, platformID string) ([]*model.ProviderOffer, error) {
	return u.providerOffers.ListByPlatform(ctx, repository.NoTX, platformID)
}

func (u *catalogUC) DeleteProviderOffer(ctx context.Context, id string) error {
	if err := u.providerOffers.Delete(ctx, repository.NoTX, id); err != nil {
		return err
	}
	u.log.Info().Str("provider_offer_id", id).Msg("provider offer deleted")
	return nil
}

// CreateOffer validates the offer against the capacity of every platform it
// names: each platform's profile count must fit on a single account.
func (u *catalogUC) CreateOffer(ctx context.Context, in OfferInput) (*model.Offer, error) {
	o, err := model.NewOffer(in.ID, in.Name, in.Price, in.Currency, in.Duration, in.DurationUnit, in.MaxProfiles, in.Platforms)
	if err != nil {
		return nil, err
	}
	if _, err := entitlement.WindowDays(o.Duration, o.DurationUnit); err != nil {
		return nil, err
	}
	for _, op := range o.Platforms {
		p, err := u.platforms.FindByID(ctx, repository.NoTX, op.PlatformID)
		if err != nil {
			return nil, err
		}
		if _, err := p.SlotCapacity(op.ProfileCount); err != nil {
			return nil, domain.ErrOfferInvalid.With(p.Slug)
		}
	}
	if err := u.offers.Save(ctx, repository.NoTX, o); err != nil {
		return nil, err
	}
	u.log.Info().Str("offer_id", o.ID).Str("name", o.Name).Msg("offer created")
	return o, nil
}

func (u *catalogUC) GetOffer(ctx context.Context, id string) (*model.Offer, error) {
	return u.offers.FindByID(ctx, repository.NoTX, id)
}

func (u *catalogUC) ListOffers(ctx context.Context) ([]*model.Offer, error) {
	return u.offers.List(ctx, repository.NoTX)
}
