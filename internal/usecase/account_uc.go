package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"streamshare/internal/domain"
	"streamshare/internal/domain/model"
	"streamshare/internal/domain/ports/repository"
	"streamshare/internal/infra/logging"
	"streamshare/internal/infra/metrics"
)

// Compile-time check
var _ AccountUseCase = (*accountUC)(nil)

// AccountUseCase is the account pool: upstream logins, their expiry and their slot inventory.
type AccountUseCase interface {
	ProvisionAccount(ctx context.Context, in ProvisionInput) (*model.Account, []*model.AccountProfile, error)
	GetAccount(ctx context.Context, id string) (*model.Account, error)
	ListAvailableSlots(ctx context.Context, accountID string) ([]*model.AccountProfile, error)
	ExtendExpiry(ctx context.Context, accountID string, days int) (time.Time, error)
	SetStatus(ctx context.Context, accountID string, status model.AccountStatus) error
	Inventory(ctx context.Context, platformID string) ([]model.SlotInventory, error)
}

type ProvisionInput struct {
	PlatformID      string
	ProviderOfferID *string
	Label           string
	Login           string
	Secret          string
	Slots           int // 0 = platform default
}

// SecretSealer encrypts upstream credentials before they are stored.
type SecretSealer interface {
	Encrypt(plaintext string) (string, error)
}

type accountUC struct {
	accounts       repository.AccountRepository
	profiles       repository.ProfileRepository
	platforms      repository.PlatformRepository
	providerOffers repository.ProviderOfferRepository
	tm             repository.TransactionManager
	sealer         SecretSealer
	clock          domain.Clock
	log            *zerolog.Logger
}

func NewAccountUseCase(
	accounts repository.AccountRepository,
	profiles repository.ProfileRepository,
	platforms repository.PlatformRepository,
	providerOffers repository.ProviderOfferRepository,
	tm repository.TransactionManager,
	sealer SecretSealer,
	clock domain.Clock,
	logger *zerolog.Logger,
) *accountUC {
	return &accountUC{
		accounts:       accounts,
		profiles:       profiles,
		platforms:      platforms,
		providerOffers: providerOffers,
		tm:             tm,
		sealer:         sealer,
		clock:          clock,
		log:            logging.Component(logger, "AccountUC"),
	}
}

// ProvisionAccount creates the account and its fixed set of profile slots in one transaction.
func (u *accountUC) ProvisionAccount(ctx context.Context, in ProvisionInput) (*model.Account, []*model.AccountProfile, error) {
	defer logging.TraceDuration(u.log, "AccountUC.ProvisionAccount")()

	platform, err := u.platforms.FindByID(ctx, repository.NoTX, in.PlatformID)
	if err != nil {
		return nil, nil, err
	}
	slots, err := platform.SlotCapacity(in.Slots)
	if err != nil {
		return nil, nil, err
	}
	if in.ProviderOfferID != nil {
		po, err := u.providerOffers.FindByID(ctx, repository.NoTX, *in.ProviderOfferID)
		if err != nil {
			return nil, nil, err
		}
		if po.PlatformID != platform.ID {
			return nil, nil, domain.ErrPlatformMismatch.With(po.ID)
		}
	}
	sealed := ""
	if in.Secret != "" {
		if sealed, err = u.sealer.Encrypt(in.Secret); err != nil {
			return nil, nil, err
		}
	}

	now := u.clock.Now()
	acc, err := model.NewAccount("", platform.ID, in.ProviderOfferID, in.Label, in.Login, sealed, now)
	if err != nil {
		return nil, nil, err
	}
	profiles := model.NewProfiles(acc.ID, slots, now)

	err = u.tm.WithTx(ctx, repository.ReadCommitted, func(ctx context.Context, tx repository.Tx) error {
		if err := u.accounts.Save(ctx, tx, acc); err != nil {
			return err
		}
		return u.profiles.SaveBatch(ctx, tx, profiles)
	})
	if err != nil {
		return nil, nil, err
	}
	u.log.Info().
		Str("account_id", acc.ID).
		Str("platform", platform.Slug).
		Int("slots", slots).
		Str("login", logging.Redact(acc.Login, false)).
		Msg("account provisioned")
	return acc, profiles, nil
}

func (u *accountUC) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	return u.accounts.FindByID(ctx, repository.NoTX, id)
}

func (u *accountUC) ListAvailableSlots(ctx context.Context, accountID string) ([]*model.AccountProfile, error) {
	if _, err := u.accounts.FindByID(ctx, repository.NoTX, accountID); err != nil {
		return nil, err
	}
	return u.profiles.ListFree(ctx, repository.NoTX, accountID)
}

// ExtendExpiry is the administrative form of the extension redemption performs.
func (u *accountUC) ExtendExpiry(ctx context.Context, accountID string, days int) (time.Time, error) {
	if days <= 0 {
		return time.Time{}, domain.ErrInvalidArgument
	}
	return u.accounts.ExtendExpiry(ctx, repository.NoTX, accountID, days, u.clock.Now())
}

func (u *accountUC) SetStatus(ctx context.Context, accountID string, status model.AccountStatus) error {
	if !status.Valid() {
		return domain.ErrInvalidArgument
	}
	if err := u.accounts.SetStatus(ctx, repository.NoTX, accountID, status, u.clock.Now()); err != nil {
		return err
	}
	u.log.Info().Str("account_id", accountID).Str("status", string(status)).Msg("account status changed")
	return nil
}

// Inventory reports slot usage and refreshes the slots_free gauge for the platform.
func (u *accountUC) Inventory(ctx context.Context, platformID string) ([]model.SlotInventory, error) {
	inv, err := u.accounts.Inventory(ctx, repository.NoTX, platformID)
	if err != nil {
		return nil, err
	}
	free := make(map[string]int)
	for _, i := range inv {
		free[i.PlatformID] += i.Free()
	}
	for p, n := range free {
		metrics.SetSlotsFree(p, n)
	}
	return inv, nil
}
