package postgres

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"streamshare/internal/domain"
	"streamshare/internal/domain/model"
	"streamshare/internal/domain/ports/repository"
)

var (
	_ repository.AccountRepository = (*accountRepo)(nil)
	_ repository.ProfileRepository = (*profileRepo)(nil)
)

type accountRepo struct{ pool *pgxpool.Pool }

func NewAccountRepo(pool *pgxpool.Pool) *accountRepo { return &accountRepo{pool: pool} }

const accountCols = `id, platform_id, provider_offer_id, label, login, secret_enc, status, expires_at, created_at, updated_at`

func scanAccount(row pgx.Row) (*model.Account, error) {
	a := &model.Account{}
	var status string
	if err := row.Scan(&a.ID, &a.PlatformID, &a.ProviderOfferID, &a.Label, &a.Login, &a.SecretEnc, &status, &a.ExpiresAt, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	a.Status = model.AccountStatus(status)
	return a, nil
}

func (r *accountRepo) Save(ctx context.Context, tx repository.Tx, a *model.Account) error {
	const q = `
INSERT INTO accounts (` + accountCols + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
ON CONFLICT (id) DO UPDATE SET
  provider_offer_id=$3, label=$4, login=$5, secret_enc=$6, status=$7, expires_at=$8, updated_at=$10;`
	_, err := execSQL(ctx, r.pool, tx, q, a.ID, a.PlatformID, a.ProviderOfferID, a.Label, a.Login, a.SecretEnc, string(a.Status), a.ExpiresAt, a.CreatedAt, a.UpdatedAt)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.ErrPlatformNotFound.With(a.PlatformID)
	}
	return err
}

func (r *accountRepo) find(ctx context.Context, tx repository.Tx, id string, lock bool) (*model.Account, error) {
	q := `SELECT ` + accountCols + ` FROM accounts WHERE id=$1`
	if lock && inTx(tx) {
		q += ` FOR UPDATE`
	}
	row, err := pickRow(ctx, r.pool, tx, q+`;`, id)
	if err != nil {
		return nil, err
	}
	a, err := scanAccount(row)
	if err != nil {
		return nil, scanErr(err, domain.ErrAccountNotFound, id)
	}
	return a, nil
}

func (r *accountRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Account, error) {
	return r.find(ctx, tx, id, false)
}

func (r *accountRepo) FindByIDForUpdate(ctx context.Context, tx repository.Tx, id string) (*model.Account, error) {
	return r.find(ctx, tx, id, true)
}

func (r *accountRepo) SetStatus(ctx context.Context, tx repository.Tx, id string, status model.AccountStatus, now time.Time) error {
	tag, err := execSQL(ctx, r.pool, tx, `UPDATE accounts SET status=$2, updated_at=$3 WHERE id=$1;`, id, string(status), now)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAccountNotFound.With(id)
	}
	return nil
}

// ExtendExpiry is a single UPDATE so concurrent extensions serialize on the row.
func (r *accountRepo) ExtendExpiry(ctx context.Context, tx repository.Tx, id string, days int, now time.Time) (time.Time, error) {
	const q = `
UPDATE accounts
   SET expires_at = GREATEST(COALESCE(expires_at, $3), $3) + make_interval(days => $2::int),
       status     = 'ACTIVE',
       updated_at = $3
 WHERE id = $1
RETURNING expires_at;`
	row, err := pickRow(ctx, r.pool, tx, q, id, days, now)
	if err != nil {
		return time.Time{}, err
	}
	var out time.Time
	if err := row.Scan(&out); err != nil {
		return time.Time{}, scanErr(err, domain.ErrAccountNotFound, id)
	}
	return out.UTC(), nil
}

const inventorySelect = `
SELECT a.id, a.platform_id,
       COUNT(p.id)                                 AS total,
       COUNT(p.id) FILTER (WHERE p.is_assigned)    AS assigned
  FROM accounts a
  LEFT JOIN account_profiles p ON p.account_id = a.id`

func scanInventory(row pgx.Row) (*model.SlotInventory, error) {
	i := &model.SlotInventory{}
	if err := row.Scan(&i.AccountID, &i.PlatformID, &i.Total, &i.Assigned); err != nil {
		return nil, err
	}
	return i, nil
}

func (r *accountRepo) ListCandidates(ctx context.Context, tx repository.Tx, platformID string, minFree int, now time.Time) ([]model.SlotInventory, error) {
	const q = inventorySelect + `
 WHERE a.platform_id = $1
   AND a.status = 'ACTIVE'
   AND (a.expires_at IS NULL OR a.expires_at > $3)
 GROUP BY a.id, a.platform_id
HAVING COUNT(p.id) FILTER (WHERE NOT p.is_assigned) >= $2
 ORDER BY COUNT(p.id) FILTER (WHERE NOT p.is_assigned), a.id;`
	rows, err := queryRows(ctx, r.pool, tx, q, platformID, minFree, now)
	if err != nil {
		return nil, err
	}
	return flatten(collect(rows, scanInventory))
}

func (r *accountRepo) Inventory(ctx context.Context, tx repository.Tx, platformID string) ([]model.SlotInventory, error) {
	const q = inventorySelect + `
 WHERE $1 = '' OR a.platform_id = $1
 GROUP BY a.id, a.platform_id
 ORDER BY a.id;`
	rows, err := queryRows(ctx, r.pool, tx, q, platformID)
	if err != nil {
		return nil, err
	}
	return flatten(collect(rows, scanInventory))
}

func flatten(in []*model.SlotInventory, err error) ([]model.SlotInventory, error) {
	if err != nil {
		return nil, err
	}
	out := make([]model.SlotInventory, 0, len(in))
	for _, i := range in {
		out = append(out, *i)
	}
	return out, nil
}

// ---- profiles ----

type profileRepo struct{ pool *pgxpool.Pool }

func NewProfileRepo(pool *pgxpool.Pool) *profileRepo { return &profileRepo{pool: pool} }

const profileCols = `id, account_id, slot_index, name, is_assigned, subscription_id, updated_at`

func scanProfile(row pgx.Row) (*model.AccountProfile, error) {
	p := &model.AccountProfile{}
	if err := row.Scan(&p.ID, &p.AccountID, &p.SlotIndex, &p.Name, &p.IsAssigned, &p.SubscriptionID, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *profileRepo) SaveBatch(ctx context.Context, tx repository.Tx, profiles []*model.AccountProfile) error {
	if len(profiles) == 0 {
		return nil
	}
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO account_profiles (` + profileCols + `)
VALUES ($1,$2,$3,$4,$5,$6,$7);`
	batch := &pgx.Batch{}
	for _, p := range profiles {
		batch.Queue(q, p.ID, p.AccountID, p.SlotIndex, p.Name, p.IsAssigned, p.SubscriptionID, p.UpdatedAt)
	}
	sender, ok := ex.(interface {
		SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	})
	if !ok {
		return domain.ErrInvalidExecContext
	}
	br := sender.SendBatch(ctx, batch)
	defer br.Close()
	for range profiles {
		if _, err := br.Exec(); err != nil {
			return mapError(err)
		}
	}
	return nil
}

func (r *profileRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.AccountProfile, error) {
	q := `SELECT ` + profileCols + ` FROM account_profiles WHERE id=$1`
	if inTx(tx) {
		q += ` FOR UPDATE`
	}
	row, err := pickRow(ctx, r.pool, tx, q+`;`, id)
	if err != nil {
		return nil, err
	}
	p, err := scanProfile(row)
	if err != nil {
		return nil, scanErr(err, domain.ErrProfileNotFound, id)
	}
	return p, nil
}

func (r *profileRepo) list(ctx context.Context, tx repository.Tx, where string, arg any) ([]*model.AccountProfile, error) {
	rows, err := queryRows(ctx, r.pool, tx, `SELECT `+profileCols+` FROM account_profiles WHERE `+where+` ORDER BY account_id, slot_index;`, arg)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanProfile)
}

func (r *profileRepo) ListFree(ctx context.Context, tx repository.Tx, accountID string) ([]*model.AccountProfile, error) {
	return r.list(ctx, tx, `account_id=$1 AND NOT is_assigned`, accountID)
}

func (r *profileRepo) ListBySubscription(ctx context.Context, tx repository.Tx, subscriptionID string) ([]*model.AccountProfile, error) {
	return r.list(ctx, tx, `subscription_id=$1`, subscriptionID)
}

func (r *profileRepo) CountByAccount(ctx context.Context, tx repository.Tx, accountID string) (int, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT COUNT(*) FROM account_profiles WHERE account_id=$1;`, accountID)
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, mapError(err)
	}
	return n, nil
}

// Claim locks the lowest free slots, skipping rows other transactions hold,
// and assigns them only when exactly count were obtained.
func (r *profileRepo) Claim(ctx context.Context, tx repository.Tx, accountID, subscriptionID string, count int, now time.Time) ([]*model.AccountProfile, error) {
	const q = `
WITH cand AS (
    SELECT id
      FROM account_profiles
     WHERE account_id = $1 AND NOT is_assigned
     ORDER BY slot_index
     LIMIT $3
       FOR UPDATE SKIP LOCKED
), enough AS (
    SELECT COUNT(*) = $3 AS ok FROM cand
)
UPDATE account_profiles p
   SET is_assigned = TRUE, subscription_id = $2, updated_at = $4
  FROM cand, enough
 WHERE p.id = cand.id AND enough.ok
RETURNING p.id, p.account_id, p.slot_index, p.name, p.is_assigned, p.subscription_id, p.updated_at;`
	rows, err := queryRows(ctx, r.pool, tx, q, accountID, subscriptionID, count, now)
	if err != nil {
		return nil, err
	}
	claimed, err := collect(rows, scanProfile)
	if err != nil {
		return nil, err
	}
	if len(claimed) == count {
		sortBySlot(claimed)
		return claimed, nil
	}

	// nothing was written; tell a real shortage from slots locked by a concurrent claim
	free, err := r.ListFree(ctx, tx, accountID)
	if err != nil {
		return nil, err
	}
	if len(free) < count {
		return nil, domain.ErrSlotsUnavailable.With(accountID)
	}
	return nil, domain.ErrSlotRace.With(accountID)
}

func sortBySlot(ps []*model.AccountProfile) {
	sort.Slice(ps, func(i, j int) bool { return ps[i].SlotIndex < ps[j].SlotIndex })
}

func (r *profileRepo) Release(ctx context.Context, tx repository.Tx, subscriptionID, accountID string, now time.Time) (int, error) {
	const q = `
UPDATE account_profiles
   SET is_assigned = FALSE, subscription_id = NULL, updated_at = $3
 WHERE subscription_id = $1 AND account_id = $2;`
	tag, err := execSQL(ctx, r.pool, tx, q, subscriptionID, accountID, now)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (r *profileRepo) Reassign(ctx context.Context, tx repository.Tx, from, to string, now time.Time) (int, error) {
	tag, err := execSQL(ctx, r.pool, tx, `UPDATE account_profiles SET subscription_id=$2, updated_at=$3 WHERE subscription_id=$1;`, from, to, now)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (r *profileRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	tag, err := execSQL(ctx, r.pool, tx, `DELETE FROM account_profiles WHERE id=$1 AND NOT is_assigned;`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	if _, err := r.FindByID(ctx, tx, id); err != nil {
		return err
	}
	return domain.ErrSlotInUse.With(id)
}
