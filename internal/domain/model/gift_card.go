package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"streamshare/internal/domain"
)

type GiftCardStatus string

const (
	GiftCardStatusActive  GiftCardStatus = "ACTIVE"
	GiftCardStatusUsed    GiftCardStatus = "USED"
	GiftCardStatusExpired GiftCardStatus = "EXPIRED"
)

// GiftCard is a prepaid code whose value converts into account time.
type GiftCard struct {
	ID         string
	Code       string
	Amount     decimal.Decimal
	Currency   string
	PlatformID string
	Status     GiftCardStatus
	ExpiresAt  *time.Time
	UsedByID   *string // account id
	UsedAt     *time.Time
	CreatedAt  time.Time
}

func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func NewGiftCard(code string, amount decimal.Decimal, currency, platformID string, expiresAt *time.Time, now time.Time) (*GiftCard, error) {
	code = NormalizeCode(code)
	currency = NormalizeCurrency(currency)
	if code == "" || currency == "" || platformID == "" || !amount.IsPositive() {
		return nil, domain.ErrInvalidArgument
	}
	return &GiftCard{
		ID:         uuid.NewString(),
		Code:       code,
		Amount:     amount,
		Currency:   currency,
		PlatformID: platformID,
		Status:     GiftCardStatusActive,
		ExpiresAt:  expiresAt,
		CreatedAt:  now,
	}, nil
}

// CheckRedeemable validates the card for redemption on an account of platformID.
func (g *GiftCard) CheckRedeemable(platformID string, now time.Time) error {
	if g.Status != GiftCardStatusActive || g.UsedByID != nil || g.UsedAt != nil {
		return domain.ErrCardUnavailable.With(g.Code)
	}
	if g.PlatformID != platformID {
		return domain.ErrPlatformMismatch.With(g.Code)
	}
	if g.ExpiresAt != nil && g.ExpiresAt.Before(now) {
		return domain.ErrCardExpired.With(g.Code)
	}
	return nil
}

// Redemption is the audit trail of one successful batch redemption.
type Redemption struct {
	ID             string
	AccountID      string
	CardIDs        []string
	TotalAmount    decimal.Decimal
	Currency       string
	DaysAdded      int
	PreviousExpiry *time.Time
	NewExpiry      time.Time
	CreatedAt      time.Time
}
