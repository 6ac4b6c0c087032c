// Package catalog is the read side of the deal store: listings for
// anonymous and authenticated callers, filtered search, single deal detail
// and the values used to build filter controls.
package catalog

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/deal-finder/internal/model"
	"github.com/iliyamo/deal-finder/internal/repository"
)

const (
	DefaultPageSize = 8
	MaxPageSize     = 50
)

var (
	// ErrInvalidPage is returned for non-numeric or non-positive page numbers.
	ErrInvalidPage = errors.New("invalid page parameter")
	// ErrInvalidMinPrice is returned for a min_price that is not a non-negative number.
	ErrInvalidMinPrice = errors.New("invalid min_price parameter")
	// ErrDealNotFound is returned by Detail for unknown deal ids.
	ErrDealNotFound = repository.ErrDealNotFound
)

// DealReader is the storage the catalog reads from.
type DealReader interface {
	ListFirstPerStore(ctx context.Context) ([]model.Deal, error)
	ListPage(ctx context.Context, limit, offset int) ([]model.Deal, error)
	Count(ctx context.Context) (int64, error)
	Search(ctx context.Context, q repository.DealSearchQuery) ([]model.Deal, int64, error)
	GetByID(ctx context.Context, dealID string) (model.Deal, error)
	DistinctStoreNames(ctx context.Context) ([]string, error)
	DistinctSalePrices(ctx context.Context) ([]decimal.Decimal, error)
}

type Service struct {
	deals DealReader
}

func New(deals DealReader) *Service { return &Service{deals: deals} }

// AnonymousList is the promotional listing: the first deal created for each
// store, card fields only.
type AnonymousList struct {
	Authenticated bool         `json:"authenticated"`
	Count         int          `json:"count"`
	Deals         []PublicDeal `json:"deals"`
}

// ListForAnonymous returns at most one deal per store.
func (s *Service) ListForAnonymous(ctx context.Context) (AnonymousList, error) {
	ds, err := s.deals.ListFirstPerStore(ctx)
	if err != nil {
		return AnonymousList{}, err
	}
	out := make([]PublicDeal, 0, len(ds))
	for _, d := range ds {
		out = append(out, publicView(d))
	}
	return AnonymousList{Count: len(out), Deals: out}, nil
}

// Page is one window of the default-ordered listing.
type Page struct {
	Authenticated bool       `json:"authenticated"`
	Count         int64      `json:"count"`
	Page          int        `json:"page"`
	PageSize      int        `json:"page_size"`
	HasNext       bool       `json:"has_next"`
	Deals         []DealView `json:"deals"`
}

// ListForAuthenticated returns rows [(page-1)*8, page*8) of the default
// ordering.  Pages past the end are empty.
func (s *Service) ListForAuthenticated(ctx context.Context, page int) (Page, error) {
	if page < 1 {
		return Page{}, ErrInvalidPage
	}
	total, err := s.deals.Count(ctx)
	if err != nil {
		return Page{}, err
	}
	ds := []model.Deal{}
	if offset, ok := repository.PageOffset(page, DefaultPageSize, total); ok {
		if ds, err = s.deals.ListPage(ctx, DefaultPageSize, offset); err != nil {
			return Page{}, err
		}
	}
	totalPages := (total + DefaultPageSize - 1) / DefaultPageSize
	return Page{
		Authenticated: true,
		Count:         total,
		Page:          page,
		PageSize:      DefaultPageSize,
		HasNext:       int64(page) < totalPages,
		Deals:         fullViews(ds),
	}, nil
}

// FilterParams are the filtered listing inputs.  Zero Page and PageSize take
// their defaults.
type FilterParams struct {
	Store    string
	MinPrice *decimal.Decimal
	Ordering string
	Page     int
	PageSize int
}

// AppliedFilters echoes the effective filters back to the caller.
type AppliedFilters struct {
	Store    *string `json:"store"`
	MinPrice *string `json:"min_price"`
	Ordering string  `json:"ordering"`
}

// FilteredPage is one window of the filtered listing.
type FilteredPage struct {
	Count       int64          `json:"count"`
	TotalPages  int64          `json:"total_pages"`
	Page        int            `json:"page"`
	PageSize    int            `json:"page_size"`
	HasNext     bool           `json:"has_next"`
	HasPrevious bool           `json:"has_previous"`
	Filters     AppliedFilters `json:"filters"`
	Deals       []DealView     `json:"deals"`
}

// ListFiltered applies the optional store and price filters.  An ordering
// outside the accepted set falls back to -deal_rating.
func (s *Service) ListFiltered(ctx context.Context, p FilterParams) (FilteredPage, error) {
	if p.Page == 0 {
		p.Page = 1
	}
	if p.Page < 1 {
		return FilteredPage{}, ErrInvalidPage
	}
	p.PageSize = clampPageSize(p.PageSize)
	if p.MinPrice != nil && p.MinPrice.IsNegative() {
		return FilteredPage{}, ErrInvalidMinPrice
	}
	ordering := strings.TrimSpace(p.Ordering)
	if !repository.IsDealOrdering(ordering) {
		ordering = repository.DefaultDealOrdering
	}

	ds, total, err := s.deals.Search(ctx, repository.DealSearchQuery{
		Store:    p.Store,
		MinPrice: p.MinPrice,
		Ordering: ordering,
		Page:     p.Page,
		PageSize: p.PageSize,
	})
	if err != nil {
		return FilteredPage{}, err
	}

	totalPages := (total + int64(p.PageSize) - 1) / int64(p.PageSize)
	applied := AppliedFilters{Ordering: ordering}
	if p.Store != "" {
		store := p.Store
		applied.Store = &store
	}
	if p.MinPrice != nil {
		mp := p.MinPrice.String()
		applied.MinPrice = &mp
	}
	return FilteredPage{
		Count:       total,
		TotalPages:  totalPages,
		Page:        p.Page,
		PageSize:    p.PageSize,
		HasNext:     int64(p.Page) < totalPages,
		HasPrevious: p.Page > 1,
		Filters:     applied,
		Deals:       fullViews(ds),
	}, nil
}

// Detail returns one deal or ErrDealNotFound.
func (s *Service) Detail(ctx context.Context, dealID string) (DealView, error) {
	d, err := s.deals.GetByID(ctx, dealID)
	if err != nil {
		return DealView{}, err
	}
	return fullView(d), nil
}

// Facets lists the distinct store names and sale prices present in the
// catalog, both sorted ascending.
type Facets struct {
	Stores []string `json:"stores"`
	Prices []string `json:"prices"`
}

func (s *Service) FilterFacets(ctx context.Context) (Facets, error) {
	names, err := s.deals.DistinctStoreNames(ctx)
	if err != nil {
		return Facets{}, err
	}
	prices, err := s.deals.DistinctSalePrices(ctx)
	if err != nil {
		return Facets{}, err
	}
	out := Facets{Stores: names, Prices: make([]string, 0, len(prices))}
	if out.Stores == nil {
		out.Stores = []string{}
	}
	for _, p := range prices {
		out.Prices = append(out.Prices, p.StringFixed(2))
	}
	return out, nil
}

// ParsePage reads a 1-indexed page number.  Empty means 1.
func ParsePage(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 1, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, ErrInvalidPage
	}
	return n, nil
}

// ParsePageSize reads page_size.  Missing, malformed or non-positive values
// use the default; large values are capped.
func ParsePageSize(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return DefaultPageSize
	}
	return clampPageSize(n)
}

// ParseMinPrice reads an optional non-negative min_price.
func ParseMinPrice(s string) (*decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return nil, ErrInvalidMinPrice
	}
	return &d, nil
}

func clampPageSize(n int) int {
	switch {
	case n < 1:
		return DefaultPageSize
	case n > MaxPageSize:
		return MaxPageSize
	default:
		return n
	}
}
