package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"streamshare/internal/domain"
	"streamshare/internal/domain/entitlement"
	"streamshare/internal/domain/model"
	"streamshare/internal/domain/ports/repository"
	"streamshare/internal/infra/logging"
	"streamshare/internal/infra/metrics"
)

// Compile-time check
var _ GiftCardUseCase = (*giftCardUC)(nil)

// GiftCardUseCase converts prepaid card value into account time.
type GiftCardUseCase interface {
	Redeem(ctx context.Context, accountID string, codes []string) (*RedeemResult, error)
	Import(ctx context.Context, platformID string, cards []GiftCardInput) ([]*model.GiftCard, error)
	ExpireStale(ctx context.Context) (int64, error)
}

type RedeemResult struct {
	AccountID      string
	PreviousExpiry *time.Time
	NewExpiry      time.Time
	TotalAmount    decimal.Decimal
	Currency       string
	DaysAdded      int
	Cards          []string // codes, in request order
}

type GiftCardInput struct {
	Code      string
	Amount    decimal.Decimal
	Currency  string
	ExpiresAt *time.Time
}

type giftCardUC struct {
	cards          repository.GiftCardRepository
	redemptions    repository.RedemptionRepository
	accounts       repository.AccountRepository
	platforms      repository.PlatformRepository
	providerOffers repository.ProviderOfferRepository
	tm             repository.TransactionManager
	clock          domain.Clock
	log            *zerolog.Logger
	dev            bool
}

func NewGiftCardUseCase(
	cards repository.GiftCardRepository,
	redemptions repository.RedemptionRepository,
	accounts repository.AccountRepository,
	platforms repository.PlatformRepository,
	providerOffers repository.ProviderOfferRepository,
	tm repository.TransactionManager,
	clock domain.Clock,
	logger *zerolog.Logger,
	dev bool,
) *giftCardUC {
	return &giftCardUC{
		cards:          cards,
		redemptions:    redemptions,
		accounts:       accounts,
		platforms:      platforms,
		providerOffers: providerOffers,
		tm:             tm,
		clock:          clock,
		log:            logging.Component(logger, "GiftCardUC"),
		dev:            dev,
	}
}

// Redeem validates every code against the account and, only if all of them
// pass, consumes them and extends the account in one transaction.
func (u *giftCardUC) Redeem(ctx context.Context, accountID string, codes []string) (*RedeemResult, error) {
	defer logging.TraceDuration(u.log, "GiftCardUC.Redeem")()

	normalized, err := normalizeCodes(codes)
	if err != nil {
		metrics.IncRedemptionFailed("invalid_argument")
		return nil, err
	}

	var res *RedeemResult
	var platformSlug string
	err = retryOnConflict(u.log, "redeem", func() error {
		return u.tm.WithTx(ctx, repository.ReadCommitted, func(ctx context.Context, tx repository.Tx) error {
			var err error
			res, platformSlug, err = u.redeemTx(ctx, tx, accountID, normalized)
			return err
		})
	})
	log := logging.With(logging.WithAccountID(ctx, accountID), u.log)
	if err != nil {
		metrics.IncRedemptionFailed(errorCode(err))
		log.Warn().Err(err).Strs("codes", logging.RedactAll(normalized, u.dev)).Msg("redemption rejected")
		return nil, err
	}
	metrics.ObserveRedemption(platformSlug, len(res.Cards), res.DaysAdded)
	log.Info().
		Int("cards", len(res.Cards)).
		Int("days_added", res.DaysAdded).
		Time("new_expiry", res.NewExpiry).
		Msg("gift cards redeemed")
	return res, nil
}

func (u *giftCardUC) redeemTx(ctx context.Context, tx repository.Tx, accountID string, codes []string) (*RedeemResult, string, error) {
	now := u.clock.Now()

	acc, err := u.accounts.FindByIDForUpdate(ctx, tx, accountID)
	if err != nil {
		return nil, "", err
	}
	if acc.ProviderOfferID == nil {
		return nil, "", domain.ErrNoCostBasis.With(acc.ID)
	}
	platform, err := u.platforms.FindByID(ctx, tx, acc.PlatformID)
	if err != nil {
		return nil, "", err
	}
	if !platform.HasGiftCards {
		return nil, "", domain.ErrGiftCardsUnsupported.With(platform.Slug)
	}
	po, err := u.providerOffers.FindByID(ctx, tx, *acc.ProviderOfferID)
	if err != nil {
		return nil, "", err
	}

	found, err := u.cards.FindByCodesForUpdate(ctx, tx, codes)
	if err != nil {
		return nil, "", err
	}
	byCode := make(map[string]*model.GiftCard, len(found))
	for _, c := range found {
		byCode[c.Code] = c
	}
	var missing []string
	for _, code := range codes {
		if _, ok := byCode[code]; !ok {
			missing = append(missing, code)
		}
	}
	if len(missing) > 0 {
		return nil, "", domain.ErrCardsNotFound.With(strings.Join(missing, ","))
	}

	ids := make([]string, 0, len(codes))
	total := decimal.Zero
	currency := ""
	for _, code := range codes {
		c := byCode[code]
		if err := c.CheckRedeemable(acc.PlatformID, now); err != nil {
			return nil, "", err
		}
		if currency == "" {
			currency = c.Currency
		} else if c.Currency != currency {
			return nil, "", domain.ErrCurrencyMismatch.With(c.Code)
		}
		total = total.Add(c.Amount)
		ids = append(ids, c.ID)
	}
	if currency != po.Currency {
		return nil, "", domain.ErrCurrencyMismatch.With(po.ID)
	}

	days, err := entitlement.DaysFromAmount(total, po.Price)
	if err != nil {
		return nil, "", err
	}
	if days <= 0 {
		return nil, "", domain.ErrInsufficientAmount.With(total.String() + " " + currency)
	}

	n, err := u.cards.MarkUsed(ctx, tx, ids, acc.ID, now)
	if err != nil {
		return nil, "", err
	}
	if n != int64(len(ids)) {
		return nil, "", domain.ErrCardRace.With(acc.ID)
	}
	newExpiry, err := u.accounts.ExtendExpiry(ctx, tx, acc.ID, days, now)
	if err != nil {
		return nil, "", err
	}

	r := &model.Redemption{
		ID:             uuid.NewString(),
		AccountID:      acc.ID,
		CardIDs:        ids,
		TotalAmount:    total,
		Currency:       currency,
		DaysAdded:      days,
		PreviousExpiry: acc.ExpiresAt,
		NewExpiry:      newExpiry,
		CreatedAt:      now,
	}
	if err := u.redemptions.Save(ctx, tx, r); err != nil {
		return nil, "", err
	}
	return &RedeemResult{
		AccountID:      acc.ID,
		PreviousExpiry: acc.ExpiresAt,
		NewExpiry:      newExpiry,
		TotalAmount:    total,
		Currency:       currency,
		DaysAdded:      days,
		Cards:          codes,
	}, platform.Slug, nil
}

func normalizeCodes(codes []string) ([]string, error) {
	if len(codes) == 0 {
		return nil, fmt.Errorf("%w: no gift card codes", domain.ErrInvalidArgument)
	}
	out := make([]string, 0, len(codes))
	seen := make(map[string]bool, len(codes))
	for _, c := range codes {
		n := model.NormalizeCode(c)
		if n == "" {
			return nil, fmt.Errorf("%w: empty gift card code", domain.ErrInvalidArgument)
		}
		if seen[n] {
			return nil, fmt.Errorf("%w: duplicate gift card code %s", domain.ErrInvalidArgument, n)
		}
		seen[n] = true
		out = append(out, n)
	}
	return out, nil
}

// Import stores a batch of new ACTIVE cards for one platform, all or nothing.
func (u *giftCardUC) Import(ctx context.Context, platformID string, in []GiftCardInput) ([]*model.GiftCard, error) {
	if len(in) == 0 {
		return nil, domain.ErrInvalidArgument
	}
	platform, err := u.platforms.FindByID(ctx, repository.NoTX, platformID)
	if err != nil {
		return nil, err
	}
	if !platform.HasGiftCards {
		return nil, domain.ErrGiftCardsUnsupported.With(platform.Slug)
	}
	now := u.clock.Now()
	cards := make([]*model.GiftCard, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, c := range in {
		card, err := model.NewGiftCard(c.Code, c.Amount, c.Currency, platform.ID, c.ExpiresAt, now)
		if err != nil {
			return nil, fmt.Errorf("gift card %q: %w", c.Code, err)
		}
		if seen[card.Code] {
			return nil, fmt.Errorf("%w: gift card %s", domain.ErrAlreadyExists, card.Code)
		}
		seen[card.Code] = true
		cards = append(cards, card)
	}
	sort.Slice(cards, func(i, j int) bool { return cards[i].Code < cards[j].Code })

	err = u.tm.WithTx(ctx, repository.ReadCommitted, func(ctx context.Context, tx repository.Tx) error {
		return u.cards.SaveBatch(ctx, tx, cards)
	})
	if err != nil {
		return nil, err
	}
	u.log.Info().Str("platform", platform.Slug).Int("count", len(cards)).Msg("gift cards imported")
	return cards, nil
}

func (u *giftCardUC) ExpireStale(ctx context.Context) (int64, error) {
	n, err := u.cards.ExpireStale(ctx, repository.NoTX, u.clock.Now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		metrics.IncGiftCardsExpired(n)
		u.log.Info().Int64("count", n).Msg("stale gift cards expired")
	}
	return n, nil
}
