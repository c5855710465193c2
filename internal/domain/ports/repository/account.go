package repository

import (
	"context"
	"time"

	"streamshare/internal/domain/model"
)

type AccountRepository interface {
	Save(ctx context.Context, tx Tx, a *model.Account) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Account, error)
	// FindByIDForUpdate locks the account row for the rest of tx.
	FindByIDForUpdate(ctx context.Context, tx Tx, id string) (*model.Account, error)
	SetStatus(ctx context.Context, tx Tx, id string, status model.AccountStatus, now time.Time) error

	// ExtendExpiry moves expires_at to max(expires_at, now) + days and flips the
	// account to ACTIVE in a single statement. It returns the new expiry.
	ExtendExpiry(ctx context.Context, tx Tx, id string, days int, now time.Time) (time.Time, error)

	// ListCandidates returns usable accounts of the platform with at least
	// minFree unassigned profiles, fewest free slots first, then by id.
	ListCandidates(ctx context.Context, tx Tx, platformID string, minFree int, now time.Time) ([]model.SlotInventory, error)
	// Inventory reports slot usage of every account of the platform ("" = all).
	Inventory(ctx context.Context, tx Tx, platformID string) ([]model.SlotInventory, error)
}

type ProfileRepository interface {
	SaveBatch(ctx context.Context, tx Tx, profiles []*model.AccountProfile) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.AccountProfile, error)
	ListFree(ctx context.Context, tx Tx, accountID string) ([]*model.AccountProfile, error)
	ListBySubscription(ctx context.Context, tx Tx, subscriptionID string) ([]*model.AccountProfile, error)
	CountByAccount(ctx context.Context, tx Tx, accountID string) (int, error)

	// Claim assigns exactly count free profiles of the account to the
	// subscription, lowest slot index first, or none at all. It fails with
	// domain.ErrSlotsUnavailable when the account lacks count free slots and
	// with domain.ErrSlotRace when the slots exist but were taken concurrently.
	Claim(ctx context.Context, tx Tx, accountID, subscriptionID string, count int, now time.Time) ([]*model.AccountProfile, error)
	// Release unassigns every profile the subscription holds on the account.
	Release(ctx context.Context, tx Tx, subscriptionID, accountID string, now time.Time) (int, error)
	// Reassign re-points every profile held by from to to, keeping them assigned.
	Reassign(ctx context.Context, tx Tx, from, to string, now time.Time) (int, error)
	// Delete removes an unassigned profile; an assigned one fails with domain.ErrSlotInUse.
	Delete(ctx context.Context, tx Tx, id string) error
}
