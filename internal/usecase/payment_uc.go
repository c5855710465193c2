// File: internal/usecase/payment_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"streamshare/internal/domain"
	"streamshare/internal/domain/model"
	"streamshare/internal/domain/ports/repository"
	"streamshare/internal/infra/logging"
	"streamshare/internal/infra/metrics"
)

// Compile-time check
var _ PaymentUseCase = (*paymentUC)(nil)

// PaymentUseCase receives confirmations from the external payment processor.
// The engine never authorizes or captures money itself.
type PaymentUseCase interface {
	Confirm(ctx context.Context, in PaymentConfirmation) (*model.Subscription, error)
}

type PaymentConfirmation struct {
	SubscriptionID string
	Amount         decimal.Decimal
	Currency       string
	ProviderRef    string
}

type paymentUC struct {
	payments repository.PaymentRepository
	subs     repository.SubscriptionRepository
	offers   repository.OfferRepository
	subUC    SubscriptionUseCase
	clock    domain.Clock
	log      *zerolog.Logger
}

func NewPaymentUseCase(
	payments repository.PaymentRepository,
	subs repository.SubscriptionRepository,
	offers repository.OfferRepository,
	subUC SubscriptionUseCase,
	clock domain.Clock,
	logger *zerolog.Logger,
) *paymentUC {
	return &paymentUC{
		payments: payments,
		subs:     subs,
		offers:   offers,
		subUC:    subUC,
		clock:    clock,
		log:      logging.Component(logger, "PaymentUC"),
	}
}

// Confirm records the confirmation once and activates the subscription.
// Repeated callbacks for an already active subscription return it unchanged.
func (u *paymentUC) Confirm(ctx context.Context, in PaymentConfirmation) (*model.Subscription, error) {
	ref := strings.TrimSpace(in.ProviderRef)
	if ref == "" || !in.Amount.IsPositive() {
		metrics.IncPaymentConfirmed("rejected")
		return nil, fmt.Errorf("%w: payment needs a positive amount and a provider reference", domain.ErrInvalidArgument)
	}
	sub, err := u.subs.FindByID(ctx, repository.NoTX, in.SubscriptionID)
	if err != nil {
		return nil, err
	}
	offer, err := u.offers.FindByID(ctx, repository.NoTX, sub.OfferID)
	if err != nil {
		return nil, err
	}
	if model.NormalizeCurrency(in.Currency) != offer.Currency {
		metrics.IncPaymentConfirmed("rejected")
		return nil, domain.ErrCurrencyMismatch.With(offer.ID)
	}

	p := &model.Payment{
		ID:             uuid.NewString(),
		SubscriptionID: sub.ID,
		Amount:         in.Amount,
		Currency:       offer.Currency,
		ProviderRef:    ref,
		ConfirmedAt:    u.clock.Now(),
	}
	log := logging.With(logging.WithSubscriptionID(ctx, sub.ID), u.log)
	switch err := u.payments.Save(ctx, repository.NoTX, p); {
	case errors.Is(err, domain.ErrAlreadyExists):
		metrics.IncPaymentConfirmed("duplicate")
		log.Info().Str("provider_ref", ref).Msg("payment confirmation replayed")
	case err != nil:
		return nil, err
	default:
		metrics.IncPaymentConfirmed("recorded")
		log.Info().Str("provider_ref", ref).Str("amount", in.Amount.String()).Msg("payment recorded")
	}

	if sub.Status == model.SubscriptionStatusActive {
		return sub, nil
	}
	activated, err := u.subUC.Activate(ctx, sub.ID)
	if errors.Is(err, domain.ErrBadTransition) {
		// a concurrent callback may have activated it first
		if cur, ferr := u.subs.FindByID(ctx, repository.NoTX, sub.ID); ferr == nil && cur.Status == model.SubscriptionStatusActive {
			return cur, nil
		}
	}
	return activated, err
}
