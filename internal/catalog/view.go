package catalog

import (
	"time"

	"github.com/iliyamo/deal-finder/internal/model"
)

// PublicDeal is the restricted card view served to anonymous callers.
type PublicDeal struct {
	DealID      string  `json:"deal_id"`
	Title       string  `json:"title"`
	StoreName   string  `json:"store_name"`
	SalePrice   string  `json:"sale_price"`
	NormalPrice string  `json:"normal_price"`
	Thumb       *string `json:"thumb"`
}

// DealView is the full deal representation for authenticated callers.
// Amounts are fixed-point strings ("19.99", "8.5").
type DealView struct {
	DealID          string     `json:"deal_id"`
	Title           string     `json:"title"`
	StoreID         int        `json:"store"`
	StoreName       string     `json:"store_name"`
	SalePrice       string     `json:"sale_price"`
	NormalPrice     string     `json:"normal_price"`
	DealRating      string     `json:"deal_rating"`
	MetacriticScore *int       `json:"metacritic_score"`
	Thumb           *string    `json:"thumb"`
	ReleaseDate     *time.Time `json:"release_date"`
	LastChange      *time.Time `json:"last_change"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func publicView(d model.Deal) PublicDeal {
	return PublicDeal{
		DealID:      d.DealID,
		Title:       d.Title,
		StoreName:   d.StoreName,
		SalePrice:   d.SalePrice.StringFixed(2),
		NormalPrice: d.NormalPrice.StringFixed(2),
		Thumb:       d.Thumb,
	}
}

func fullView(d model.Deal) DealView {
	return DealView{
		DealID:          d.DealID,
		Title:           d.Title,
		StoreID:         d.StoreID,
		StoreName:       d.StoreName,
		SalePrice:       d.SalePrice.StringFixed(2),
		NormalPrice:     d.NormalPrice.StringFixed(2),
		DealRating:      d.DealRating.StringFixed(1),
		MetacriticScore: d.MetacriticScore,
		Thumb:           d.Thumb,
		ReleaseDate:     d.ReleaseDate,
		LastChange:      d.LastChange,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
}

func fullViews(ds []model.Deal) []DealView {
	out := make([]DealView, 0, len(ds))
	for _, d := range ds {
		out = append(out, fullView(d))
	}
	return out
}
