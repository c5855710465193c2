package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

// Tx is an opaque transaction handle. Its concrete type belongs to the storage
// adapter (pgx.Tx for Postgres, the arena snapshot for the in-memory store).
// Repositories MUST accept a nil Tx and fall back to a non-transactional path.
type Tx interface{}

var NoTX Tx

// TransactionManager runs fn inside one storage transaction. fn returning an
// error rolls everything back; nothing fn wrote is visible to other callers
// until WithTx returns nil.
//
//	tm.WithTx(ctx, repository.ReadCommitted, func(ctx context.Context, tx repository.Tx) error {
//		acc, err := accounts.FindByIDForUpdate(ctx, tx, id)
//		...
//	})
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}

// ReadCommitted is the isolation used by every engine mutation; correctness
// comes from row locks and conditional updates, not from the isolation level.
var ReadCommitted = pgx.TxOptions{IsoLevel: pgx.ReadCommitted}
