package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/deal-finder/internal/model"
)

// DealRepo encapsulates all database queries related to deals.
type DealRepo struct {
	db *sql.DB
}

// NewDealRepo constructs a DealRepo with the provided DB handle.
func NewDealRepo(db *sql.DB) *DealRepo { return &DealRepo{db: db} }

// dealSelect lists the deal columns in scan order.  The store name is always
// resolved through the join so renamed stores show up without a re-fetch.
const dealSelect = `SELECT
		d.deal_id, d.title, d.store_id, s.name, d.store_name_cache,
		d.sale_price, d.normal_price, d.deal_rating,
		d.metacritic_score, d.thumb, d.release_date, d.last_change,
		d.created_at, d.updated_at
	FROM deals d
	JOIN stores s ON s.store_id = d.store_id`

// defaultDealOrder is the listing order: best rated first, cheaper first on
// equal rating, deal_id as a stable tiebreaker for pagination.
const defaultDealOrder = "d.deal_rating DESC, d.sale_price ASC, d.deal_id ASC"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDeal(sc rowScanner) (model.Deal, error) {
	var (
		d          model.Deal
		metacritic sql.NullInt64
		thumb      sql.NullString
		release    sql.NullTime
		lastChange sql.NullTime
	)
	err := sc.Scan(
		&d.DealID, &d.Title, &d.StoreID, &d.StoreName, &d.StoreNameCache,
		&d.SalePrice, &d.NormalPrice, &d.DealRating,
		&metacritic, &thumb, &release, &lastChange,
		&d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return model.Deal{}, err
	}
	if metacritic.Valid {
		v := int(metacritic.Int64)
		d.MetacriticScore = &v
	}
	if thumb.Valid {
		v := thumb.String
		d.Thumb = &v
	}
	if release.Valid {
		v := release.Time.UTC()
		d.ReleaseDate = &v
	}
	if lastChange.Valid {
		v := lastChange.Time.UTC()
		d.LastChange = &v
	}
	return d, nil
}

func collectDeals(rows *sql.Rows, capHint int) ([]model.Deal, error) {
	defer rows.Close()
	out := make([]model.Deal, 0, capHint)
	for rows.Next() {
		d, err := scanDeal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Upsert inserts the deal or overwrites every mutable attribute of the row
// with the same deal_id.  created_at survives updates; updated_at is bumped
// on every write.  created reports whether a new row was inserted.
func (r *DealRepo) Upsert(ctx context.Context, d model.Deal) (created bool, err error) {
	const q = `INSERT INTO deals
	               (deal_id, title, store_id, store_name_cache, sale_price, normal_price,
	                deal_rating, metacritic_score, thumb, release_date, last_change)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	           ON DUPLICATE KEY UPDATE
	               title = VALUES(title),
	               store_id = VALUES(store_id),
	               store_name_cache = VALUES(store_name_cache),
	               sale_price = VALUES(sale_price),
	               normal_price = VALUES(normal_price),
	               deal_rating = VALUES(deal_rating),
	               metacritic_score = VALUES(metacritic_score),
	               thumb = VALUES(thumb),
	               release_date = VALUES(release_date),
	               last_change = VALUES(last_change),
	               updated_at = CURRENT_TIMESTAMP`
	res, err := r.db.ExecContext(ctx, q,
		d.DealID, d.Title, d.StoreID, d.StoreNameCache,
		d.SalePrice, d.NormalPrice, d.DealRating,
		nullableInt(d.MetacriticScore), nullableString(d.Thumb),
		nullableTime(d.ReleaseDate), nullableTime(d.LastChange),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// GetByID fetches a single deal.  It returns ErrDealNotFound when the id is
// unknown.
func (r *DealRepo) GetByID(ctx context.Context, dealID string) (model.Deal, error) {
	d, err := scanDeal(r.db.QueryRowContext(ctx, dealSelect+" WHERE d.deal_id = ?", dealID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Deal{}, ErrDealNotFound
		}
		return model.Deal{}, err
	}
	return d, nil
}

// Count returns the number of stored deals.
func (r *DealRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM deals").Scan(&n)
	return n, err
}

// ListPage returns one page of deals in the default listing order.
func (r *DealRepo) ListPage(ctx context.Context, limit, offset int) ([]model.Deal, error) {
	rows, err := r.db.QueryContext(ctx,
		dealSelect+" ORDER BY "+defaultDealOrder+" LIMIT ? OFFSET ?", limit, offset)
	if err != nil {
		return nil, err
	}
	return collectDeals(rows, limit)
}

// ListFirstPerStore returns, for every store, the deal that was created
// first (deal_id breaks ties).  Rows are ordered by store id.
func (r *DealRepo) ListFirstPerStore(ctx context.Context) ([]model.Deal, error) {
	const q = `SELECT
			x.deal_id, x.title, x.store_id, x.store_name, x.store_name_cache,
			x.sale_price, x.normal_price, x.deal_rating,
			x.metacritic_score, x.thumb, x.release_date, x.last_change,
			x.created_at, x.updated_at
		FROM (
			SELECT d.*, s.name AS store_name,
			       ROW_NUMBER() OVER (PARTITION BY d.store_id ORDER BY d.created_at ASC, d.deal_id ASC) AS rn
			FROM deals d
			JOIN stores s ON s.store_id = d.store_id
		) x
		WHERE x.rn = 1
		ORDER BY x.store_id ASC`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	return collectDeals(rows, 8)
}

// DistinctStoreNames returns the names of stores that currently carry deals,
// sorted alphabetically.
func (r *DealRepo) DistinctStoreNames(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT s.name
		FROM deals d JOIN stores s ON s.store_id = d.store_id
		ORDER BY s.name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// DistinctSalePrices returns every distinct sale price, ascending.
func (r *DealRepo) DistinctSalePrices(ctx context.Context) ([]decimal.Decimal, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT DISTINCT sale_price FROM deals ORDER BY sale_price ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []decimal.Decimal{}
	for rows.Next() {
		var p decimal.Decimal
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func nullableInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullableString(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullableTime(p *time.Time) any {
	if p == nil {
		return nil
	}
	return p.UTC()
}
