package repository

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/deal-finder/internal/model"
)

// DealSearchQuery defines filters, ordering & pagination for the filtered
// deal listing.  Ordering must satisfy IsDealOrdering; unknown keys fall
// back to DefaultDealOrdering.
type DealSearchQuery struct {
	Store    string           // exact store name, empty = any
	MinPrice *decimal.Decimal // inclusive lower bound on sale_price
	Ordering string
	Page     int
	PageSize int
}

// DefaultDealOrdering is applied when no (or an unknown) ordering is requested.
const DefaultDealOrdering = "-deal_rating"

// dealOrderings maps the public ordering keys to SQL.  Only these strings are
// ever concatenated into a query.  deal_id is appended so pages are stable.
var dealOrderings = map[string]string{
	"deal_rating":       "d.deal_rating ASC",
	"-deal_rating":      "d.deal_rating DESC",
	"sale_price":        "d.sale_price ASC",
	"-sale_price":       "d.sale_price DESC",
	"normal_price":      "d.normal_price ASC",
	"-normal_price":     "d.normal_price DESC",
	"title":             "d.title ASC",
	"-title":            "d.title DESC",
	"created_at":        "d.created_at ASC",
	"-created_at":       "d.created_at DESC",
	"metacritic_score":  "d.metacritic_score ASC",
	"-metacritic_score": "d.metacritic_score DESC",
}

// IsDealOrdering reports whether key is an accepted ordering.
func IsDealOrdering(key string) bool {
	_, ok := dealOrderings[key]
	return ok
}

// Search returns one page of deals matching q and the total number of
// matches across all pages.
func (r *DealRepo) Search(ctx context.Context, q DealSearchQuery) ([]model.Deal, int64, error) {
	where := []string{}
	args := []any{}

	if q.Store != "" {
		where = append(where, "s.name = ?")
		args = append(args, q.Store)
	}
	if q.MinPrice != nil {
		where = append(where, "d.sale_price >= ?")
		args = append(args, *q.MinPrice)
	}

	cond := "1=1"
	if len(where) > 0 {
		cond = strings.Join(where, " AND ")
	}

	var total int64
	countSQL := `SELECT COUNT(*)
		FROM deals d
		JOIN stores s ON s.store_id = d.store_id
		WHERE ` + cond
	if err := r.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	order, ok := dealOrderings[q.Ordering]
	if !ok {
		order = dealOrderings[DefaultDealOrdering]
	}

	limit := q.PageSize
	offset, ok := PageOffset(q.Page, limit, total)
	if !ok {
		return []model.Deal{}, total, nil
	}

	dataSQL := dealSelect + `
		WHERE ` + cond + `
		ORDER BY ` + order + `, d.deal_id ASC
		LIMIT ? OFFSET ?`
	argsData := append(append([]any{}, args...), limit, offset)

	rows, err := r.db.QueryContext(ctx, dataSQL, argsData...)
	if err != nil {
		return nil, 0, err
	}
	out, err := collectDeals(rows, limit)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// PageOffset returns the first row of a 1-based page of size rows.  ok is
// false when the page starts at or past total, so huge page numbers never
// reach the offset multiplication.
func PageOffset(page, size int, total int64) (offset int, ok bool) {
	if page < 1 || size < 1 || total <= 0 {
		return 0, false
	}
	pages := (total + int64(size) - 1) / int64(size)
	if int64(page-1) >= pages {
		return 0, false
	}
	return (page - 1) * size, true
}
