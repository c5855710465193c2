package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"streamshare/internal/domain"
	"streamshare/internal/domain/model"
	"streamshare/internal/domain/ports/repository"
)

var (
	_ repository.PlatformRepository      = (*platformRepo)(nil)
	_ repository.ProviderOfferRepository = (*providerOfferRepo)(nil)
	_ repository.OfferRepository         = (*offerRepo)(nil)
)

// ---- platforms ----

type platformRepo struct{ pool *pgxpool.Pool }

func NewPlatformRepo(pool *pgxpool.Pool) *platformRepo { return &platformRepo{pool: pool} }

const platformCols = `id, slug, name, max_profiles_per_account, has_profiles, has_multiple_offers, has_gift_cards, created_at`

func scanPlatform(row pgx.Row) (*model.Platform, error) {
	p := &model.Platform{}
	if err := row.Scan(&p.ID, &p.Slug, &p.Name, &p.MaxProfilesPerAccount, &p.HasProfiles, &p.HasMultipleOffers, &p.HasGiftCards, &p.CreatedAt); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *platformRepo) Save(ctx context.Context, tx repository.Tx, p *model.Platform) error {
	const q = `
INSERT INTO platforms (` + platformCols + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (id) DO UPDATE SET
  slug=$2, name=$3, max_profiles_per_account=$4, has_profiles=$5, has_multiple_offers=$6, has_gift_cards=$7;`
	_, err := execSQL(ctx, r.pool, tx, q, p.ID, p.Slug, p.Name, p.MaxProfilesPerAccount, p.HasProfiles, p.HasMultipleOffers, p.HasGiftCards, p.CreatedAt)
	return err
}

func (r *platformRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Platform, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT `+platformCols+` FROM platforms WHERE id=$1;`, id)
	if err != nil {
		return nil, err
	}
	p, err := scanPlatform(row)
	if err != nil {
		return nil, scanErr(err, domain.ErrPlatformNotFound, id)
	}
	return p, nil
}

func (r *platformRepo) List(ctx context.Context, tx repository.Tx) ([]*model.Platform, error) {
	rows, err := queryRows(ctx, r.pool, tx, `SELECT `+platformCols+` FROM platforms ORDER BY slug;`)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanPlatform)
}

// ---- provider offers ----

type providerOfferRepo struct{ pool *pgxpool.Pool }

func NewProviderOfferRepo(pool *pgxpool.Pool) *providerOfferRepo {
	return &providerOfferRepo{pool: pool}
}

const providerOfferCols = `id, platform_id, name, price, currency, device_count, duration_days, created_at`

func scanProviderOffer(row pgx.Row) (*model.ProviderOffer, error) {
	o := &model.ProviderOffer{}
	if err := row.Scan(&o.ID, &o.PlatformID, &o.Name, &o.Price, &o.Currency, &o.DeviceCount, &o.DurationDays, &o.CreatedAt); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *providerOfferRepo) Save(ctx context.Context, tx repository.Tx, o *model.ProviderOffer) error {
	const q = `
INSERT INTO provider_offers (` + providerOfferCols + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (id) DO UPDATE SET
  name=$3, price=$4, currency=$5, device_count=$6, duration_days=$7;`
	_, err := execSQL(ctx, r.pool, tx, q, o.ID, o.PlatformID, o.Name, o.Price, o.Currency, o.DeviceCount, o.DurationDays, o.CreatedAt)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.ErrPlatformNotFound.With(o.PlatformID)
	}
	return err
}

func (r *providerOfferRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.ProviderOffer, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT `+providerOfferCols+` FROM provider_offers WHERE id=$1;`, id)
	if err != nil {
		return nil, err
	}
	o, err := scanProviderOffer(row)
	if err != nil {
		return nil, scanErr(err, domain.ErrProviderOfferNotFound, id)
	}
	return o, nil
}

func (r *providerOfferRepo) ListByPlatform(ctx context.Context, tx repository.Tx, platformID string) ([]*model.ProviderOffer, error) {
	q := `SELECT ` + providerOfferCols + ` FROM provider_offers WHERE platform_id=$1 ORDER BY price, id`
	if inTx(tx) {
		// serializes the single-offer check of concurrent creators
		q += ` FOR UPDATE`
	}
	rows, err := queryRows(ctx, r.pool, tx, q+`;`, platformID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanProviderOffer)
}

func (r *providerOfferRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	tag, err := ex.Exec(ctx, `DELETE FROM provider_offers WHERE id=$1;`, id)
	if err != nil {
		if pgCode(err) == codeForeignKeyViolation {
			return domain.ErrInUse
		}
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrProviderOfferNotFound.With(id)
	}
	return nil
}

// ---- offers ----

type offerRepo struct{ pool *pgxpool.Pool }

func NewOfferRepo(pool *pgxpool.Pool) *offerRepo { return &offerRepo{pool: pool} }

const offerCols = `id, name, price, currency, duration, duration_unit, max_profiles, created_at`

func scanOffer(row pgx.Row) (*model.Offer, error) {
	o := &model.Offer{}
	var unit string
	if err := row.Scan(&o.ID, &o.Name, &o.Price, &o.Currency, &o.Duration, &unit, &o.MaxProfiles, &o.CreatedAt); err != nil {
		return nil, err
	}
	o.DurationUnit = model.DurationUnit(unit)
	return o, nil
}

// Save writes the offer and its platform rows atomically, opening its own
// transaction when called outside one.
func (r *offerRepo) Save(ctx context.Context, tx repository.Tx, o *model.Offer) error {
	if inTx(tx) {
		return r.save(ctx, tx, o)
	}
	return NewTxManager(r.pool).WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		return r.save(ctx, tx, o)
	})
}

func (r *offerRepo) save(ctx context.Context, tx repository.Tx, o *model.Offer) error {
	const q = `
INSERT INTO offers (` + offerCols + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8);`
	if _, err := execSQL(ctx, r.pool, tx, q, o.ID, o.Name, o.Price, o.Currency, o.Duration, string(o.DurationUnit), o.MaxProfiles, o.CreatedAt); err != nil {
		return err
	}
	const qp = `
INSERT INTO offer_platforms (offer_id, platform_id, profile_count, is_default)
VALUES ($1,$2,$3,$4);`
	for _, p := range o.Platforms {
		if _, err := execSQL(ctx, r.pool, tx, qp, o.ID, p.PlatformID, p.ProfileCount, p.IsDefault); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.ErrPlatformNotFound.With(p.PlatformID)
			}
			return err
		}
	}
	return nil
}

func (r *offerRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Offer, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT `+offerCols+` FROM offers WHERE id=$1;`, id)
	if err != nil {
		return nil, err
	}
	o, err := scanOffer(row)
	if err != nil {
		return nil, scanErr(err, domain.ErrOfferNotFound, id)
	}
	platforms, err := r.platforms(ctx, tx, []string{id})
	if err != nil {
		return nil, err
	}
	o.Platforms = platforms[id]
	return o, nil
}

func (r *offerRepo) List(ctx context.Context, tx repository.Tx) ([]*model.Offer, error) {
	rows, err := queryRows(ctx, r.pool, tx, `SELECT `+offerCols+` FROM offers ORDER BY created_at, id;`)
	if err != nil {
		return nil, err
	}
	offers, err := collect(rows, scanOffer)
	if err != nil || len(offers) == 0 {
		return offers, err
	}
	ids := make([]string, 0, len(offers))
	for _, o := range offers {
		ids = append(ids, o.ID)
	}
	platforms, err := r.platforms(ctx, tx, ids)
	if err != nil {
		return nil, err
	}
	for _, o := range offers {
		o.Platforms = platforms[o.ID]
	}
	return offers, nil
}

func (r *offerRepo) platforms(ctx context.Context, tx repository.Tx, offerIDs []string) (map[string][]model.OfferPlatform, error) {
	const q = `
SELECT op.offer_id, op.platform_id, op.profile_count, op.is_default
  FROM offer_platforms op
  JOIN platforms p ON p.id = op.platform_id
 WHERE op.offer_id = ANY($1)
 ORDER BY op.offer_id, p.slug;`
	rows, err := queryRows(ctx, r.pool, tx, q, offerIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string][]model.OfferPlatform, len(offerIDs))
	for rows.Next() {
		var offerID string
		var p model.OfferPlatform
		if err := rows.Scan(&offerID, &p.PlatformID, &p.ProfileCount, &p.IsDefault); err != nil {
			return nil, scanErr(err, domain.ErrOfferNotFound, offerID)
		}
		out[offerID] = append(out[offerID], p)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return out, nil
}
