package domain

import (
	"errors"
	"strings"
)

var (
	// Error kinds. Every specific failure below unwraps to exactly one of these.
	ErrNotFound             = errors.New("entity not found")
	ErrInsufficientCapacity = errors.New("insufficient capacity")
	ErrInvalidState         = errors.New("invalid state")
	ErrValidation           = errors.New("validation failed")
	ErrConversion           = errors.New("conversion failed")
	ErrConcurrencyConflict  = errors.New("concurrency conflict")

	// Common persistence / argument errors
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrOperationFailed    = errors.New("operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid execution context")
	ErrInUse              = errors.New("entity is still referenced")
)

// Error is a kind-tagged domain failure that can name the entity it is about.
// errors.Is matches both the specific error (by Code) and its Kind.
type Error struct {
	Kind   error
	Code   string
	Msg    string
	Entity string
	Err    error
}

func newError(kind error, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Msg: msg}
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Msg)
	if e.Entity != "" {
		b.WriteString(": ")
		b.WriteString(e.Entity)
	}
	if e.Err != nil {
		b.WriteString(" (")
		b.WriteString(e.Err.Error())
		b.WriteString(")")
	}
	return b.String()
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// With returns a copy naming the offending entity (a gift card code, an account id, ...).
func (e *Error) With(entity string) *Error {
	cp := *e
	cp.Entity = entity
	return &cp
}

// Wrap returns a copy carrying the underlying cause.
func (e *Error) Wrap(cause error) *Error {
	cp := *e
	cp.Err = cause
	return &cp
}

var (
	ErrAccountNotFound       = newError(ErrNotFound, "account_not_found", "account not found")
	ErrSubscriptionNotFound  = newError(ErrNotFound, "subscription_not_found", "subscription not found")
	ErrOfferNotFound         = newError(ErrNotFound, "offer_not_found", "offer not found")
	ErrPlatformNotFound      = newError(ErrNotFound, "platform_not_found", "platform not found")
	ErrProfileNotFound       = newError(ErrNotFound, "profile_not_found", "profile not found")
	ErrProviderOfferNotFound = newError(ErrNotFound, "provider_offer_not_found", "provider offer not found")
	ErrCardsNotFound         = newError(ErrNotFound, "cards_not_found", "gift cards not found")

	ErrNoCostBasis          = newError(ErrValidation, "no_cost_basis", "cannot compute conversion without a reference price")
	ErrCardUnavailable      = newError(ErrValidation, "card_unavailable", "gift card is not available")
	ErrPlatformMismatch     = newError(ErrValidation, "platform_mismatch", "gift card belongs to another platform")
	ErrCardExpired          = newError(ErrValidation, "card_expired", "gift card has expired")
	ErrCurrencyMismatch     = newError(ErrValidation, "currency_mismatch", "currencies do not match")
	ErrGiftCardsUnsupported = newError(ErrValidation, "gift_cards_unsupported", "platform does not accept gift cards")
	ErrSingleProviderOffer  = newError(ErrValidation, "single_provider_offer", "platform accepts a single provider offer")
	ErrOfferInvalid         = newError(ErrValidation, "offer_invalid", "offer cannot be served by its platforms")

	ErrInvalidConversion  = newError(ErrConversion, "invalid_conversion", "reference price must be positive")
	ErrInsufficientAmount = newError(ErrConversion, "insufficient_amount", "amount does not buy a single day")
	ErrAmountTooLarge     = newError(ErrConversion, "amount_too_large", "amount exceeds the longest allowed recharge")

	ErrSlotsUnavailable   = newError(ErrInsufficientCapacity, "insufficient_capacity", "not enough free profile slots")
	ErrAllocationFailed   = newError(ErrInsufficientCapacity, "allocation_failed", "could not allocate profile slots")
	ErrAllowanceExceeded  = newError(ErrInsufficientCapacity, "allowance_exceeded", "offer does not grant that many profiles")
	ErrLastSlotProtected  = newError(ErrInvalidState, "last_slot_protected", "cannot remove the last profile of an account")
	ErrSlotInUse          = newError(ErrInvalidState, "slot_in_use", "profile is assigned to a subscription")
	ErrNotRenewable       = newError(ErrInvalidState, "not_renewable", "subscription cannot be renewed")
	ErrBadTransition      = newError(ErrInvalidState, "bad_transition", "subscription state transition not allowed")
	ErrNotExpired         = newError(ErrInvalidState, "not_expired", "subscription is not expired")
	ErrAccountUnavailable = newError(ErrInvalidState, "account_unavailable", "account is not active")
	ErrSubscriptionClosed = newError(ErrInvalidState, "subscription_closed", "subscription is expired or superseded")

	ErrSlotRace = newError(ErrConcurrencyConflict, "slot_race", "lost the race for profile slots")
	ErrCardRace = newError(ErrConcurrencyConflict, "card_race", "gift card was consumed concurrently")
)
