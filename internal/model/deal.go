package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Deal represents a normalized discount listing as stored in the `deals`
// table.  DealID is assigned by the pricing API and never changes once a
// row exists; every other attribute is replaced on each re-fetch.
//
// StoreNameCache is the store's name at the time of the last upsert.  Reads
// resolve StoreName through a join on `stores`, so a later store rename is
// visible immediately even before the deal is fetched again.
//
// Nullable columns are pointers: MetacriticScore, Thumb, ReleaseDate and
// LastChange are nil when the upstream value is absent, empty or "0".
type Deal struct {
	DealID          string          // deals.deal_id
	Title           string          // deals.title
	StoreID         int             // deals.store_id
	StoreName       string          // stores.name (joined on read)
	StoreNameCache  string          // deals.store_name_cache
	SalePrice       decimal.Decimal // deals.sale_price (2 dp)
	NormalPrice     decimal.Decimal // deals.normal_price (2 dp)
	DealRating      decimal.Decimal // deals.deal_rating (1 dp)
	MetacriticScore *int            // deals.metacritic_score
	Thumb           *string         // deals.thumb
	ReleaseDate     *time.Time      // deals.release_date
	LastChange      *time.Time      // deals.last_change
	CreatedAt       time.Time       // deals.created_at
	UpdatedAt       time.Time       // deals.updated_at
}
