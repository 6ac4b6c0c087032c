package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/deal-finder/internal/model"
	"github.com/iliyamo/deal-finder/internal/repository"
)

// memDeals orders and pages in memory the way the SQL repository does.
type memDeals struct {
	rows      []model.Deal
	lastQuery repository.DealSearchQuery
	pageCalls int
}

func (m *memDeals) sorted() []model.Deal {
	out := append([]model.Deal(nil), m.rows...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.DealRating.Equal(b.DealRating) {
			return a.DealRating.GreaterThan(b.DealRating)
		}
		if !a.SalePrice.Equal(b.SalePrice) {
			return a.SalePrice.LessThan(b.SalePrice)
		}
		return a.DealID < b.DealID
	})
	return out
}

func window(ds []model.Deal, limit, offset int) []model.Deal {
	if offset >= len(ds) {
		return nil
	}
	end := offset + limit
	if end > len(ds) {
		end = len(ds)
	}
	return ds[offset:end]
}

func (m *memDeals) ListFirstPerStore(context.Context) ([]model.Deal, error) {
	first := map[int]model.Deal{}
	for _, d := range m.rows {
		cur, ok := first[d.StoreID]
		if !ok || d.CreatedAt.Before(cur.CreatedAt) {
			first[d.StoreID] = d
		}
	}
	out := []model.Deal{}
	for _, d := range first {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StoreID < out[j].StoreID })
	return out, nil
}

func (m *memDeals) ListPage(_ context.Context, limit, offset int) ([]model.Deal, error) {
	m.pageCalls++
	if offset < 0 {
		return nil, errors.New("negative offset")
	}
	return window(m.sorted(), limit, offset), nil
}

func (m *memDeals) Count(context.Context) (int64, error) { return int64(len(m.rows)), nil }

func (m *memDeals) Search(_ context.Context, q repository.DealSearchQuery) ([]model.Deal, int64, error) {
	m.lastQuery = q
	var hits []model.Deal
	for _, d := range m.sorted() {
		if q.Store != "" && d.StoreName != q.Store {
			continue
		}
		if q.MinPrice != nil && d.SalePrice.LessThan(*q.MinPrice) {
			continue
		}
		hits = append(hits, d)
	}
	offset, ok := repository.PageOffset(q.Page, q.PageSize, int64(len(hits)))
	if !ok {
		return []model.Deal{}, int64(len(hits)), nil
	}
	return window(hits, q.PageSize, offset), int64(len(hits)), nil
}

func (m *memDeals) GetByID(_ context.Context, id string) (model.Deal, error) {
	for _, d := range m.rows {
		if d.DealID == id {
			return d, nil
		}
	}
	return model.Deal{}, repository.ErrDealNotFound
}

func (m *memDeals) DistinctStoreNames(context.Context) ([]string, error) {
	seen := map[string]bool{}
	out := []string{}
	for _, d := range m.rows {
		if !seen[d.StoreName] {
			seen[d.StoreName] = true
			out = append(out, d.StoreName)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *memDeals) DistinctSalePrices(context.Context) ([]decimal.Decimal, error) {
	seen := map[string]bool{}
	out := []decimal.Decimal{}
	for _, d := range m.rows {
		if k := d.SalePrice.String(); !seen[k] {
			seen[k] = true
			out = append(out, d.SalePrice)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LessThan(out[j]) })
	return out, nil
}

// twentyDeals returns deals d01..d20 whose default order is d01, d02, ...
func twentyDeals() []model.Deal {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]model.Deal, 0, 20)
	for i := 1; i <= 20; i++ {
		score := 70 + i
		out = append(out, model.Deal{
			DealID:          fmt.Sprintf("d%02d", i),
			Title:           fmt.Sprintf("Game %d", i),
			StoreID:         1 + i%3,
			StoreName:       []string{"Steam", "GOG", "Humble"}[i%3],
			SalePrice:       decimal.NewFromInt(int64(i)),
			NormalPrice:     decimal.NewFromInt(int64(i * 2)),
			DealRating:      decimal.NewFromFloat(10 - float64(i)/4).Round(1),
			MetacriticScore: &score,
			CreatedAt:       base.Add(time.Duration(i) * time.Hour),
			UpdatedAt:       base,
		})
	}
	return out
}

func ids(vs []DealView) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.DealID
	}
	return out
}

func TestListForAuthenticated_Pagination(t *testing.T) {
	svc := New(&memDeals{rows: twentyDeals()})

	p2, err := svc.ListForAuthenticated(context.Background(), 2)
	if err != nil {
		t.Fatalf("page 2: %v", err)
	}
	if got := strings.Join(ids(p2.Deals), ","); got != "d09,d10,d11,d12,d13,d14,d15,d16" {
		t.Errorf("page 2 = %s", got)
	}
	if !p2.HasNext || p2.Count != 20 || p2.PageSize != 8 || !p2.Authenticated {
		t.Errorf("page 2 meta = %+v", p2)
	}

	p3, err := svc.ListForAuthenticated(context.Background(), 3)
	if err != nil {
		t.Fatalf("page 3: %v", err)
	}
	if got := strings.Join(ids(p3.Deals), ","); got != "d17,d18,d19,d20" {
		t.Errorf("page 3 = %s", got)
	}
	if p3.HasNext {
		t.Error("page 3 should be the last")
	}
}

func TestListForAuthenticated_PageFarPastEnd(t *testing.T) {
	mem := &memDeals{rows: twentyDeals()}
	svc := New(mem)

	// (page-1)*8 wraps to zero in int arithmetic.
	page, err := ParsePage("2305843009213693953")
	if err != nil {
		t.Fatalf("ParsePage: %v", err)
	}
	p, err := svc.ListForAuthenticated(context.Background(), page)
	if err != nil {
		t.Fatalf("far page: %v", err)
	}
	if len(p.Deals) != 0 || p.HasNext || p.Count != 20 || p.Page != page {
		t.Errorf("far page = %+v", p)
	}
	if p.Deals == nil {
		t.Error("deals should be an empty list, not null")
	}
	if mem.pageCalls != 0 {
		t.Errorf("ListPage called %d times for a page past the end", mem.pageCalls)
	}

	p4, err := svc.ListForAuthenticated(context.Background(), 4)
	if err != nil {
		t.Fatal(err)
	}
	if len(p4.Deals) != 0 || p4.HasNext {
		t.Errorf("page 4 = %+v", p4)
	}
}

func TestListFiltered_PageFarPastEnd(t *testing.T) {
	mem := &memDeals{rows: twentyDeals()}
	p, err := New(mem).ListFiltered(context.Background(), FilterParams{Page: math.MaxInt})
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Deals) != 0 || p.HasNext || !p.HasPrevious || p.Count != 20 || p.TotalPages != 3 {
		t.Errorf("far page = %+v", p)
	}
}

func TestListForAuthenticated_DefaultOrdering(t *testing.T) {
	rows := []model.Deal{
		{DealID: "a", DealRating: decimal.RequireFromString("8.0"), SalePrice: decimal.RequireFromString("5")},
		{DealID: "b", DealRating: decimal.RequireFromString("9.0"), SalePrice: decimal.RequireFromString("10")},
		{DealID: "c", DealRating: decimal.RequireFromString("9.0"), SalePrice: decimal.RequireFromString("2")},
	}
	p, err := New(&memDeals{rows: rows}).ListForAuthenticated(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(ids(p.Deals), ","); got != "c,b,a" {
		t.Errorf("order = %s, want c,b,a", got)
	}
}

func TestListForAuthenticated_InvalidPage(t *testing.T) {
	if _, err := New(&memDeals{}).ListForAuthenticated(context.Background(), 0); !errors.Is(err, ErrInvalidPage) {
		t.Fatalf("err = %v, want ErrInvalidPage", err)
	}
}

func TestListForAnonymous_FieldRestricted(t *testing.T) {
	svc := New(&memDeals{rows: twentyDeals()})
	list, err := svc.ListForAnonymous(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if list.Count != 3 || list.Authenticated {
		t.Fatalf("list = %+v", list)
	}
	// first created per store: d01 (store 2), d02 (store 3), d03 (store 1)
	if list.Deals[0].DealID != "d03" || list.Deals[1].DealID != "d01" || list.Deals[2].DealID != "d02" {
		t.Errorf("unexpected selection: %+v", list.Deals)
	}
	b, _ := json.Marshal(list)
	for _, hidden := range []string{"metacritic_score", "deal_rating", "release_date", "last_change"} {
		if strings.Contains(string(b), hidden) {
			t.Errorf("anonymous payload leaks %s: %s", hidden, b)
		}
	}
}

func TestListFiltered(t *testing.T) {
	mem := &memDeals{rows: twentyDeals()}
	minPrice := decimal.NewFromInt(5)
	page, err := New(mem).ListFiltered(context.Background(), FilterParams{
		Store: "GOG", MinPrice: &minPrice, Ordering: "sale_price", PageSize: 2, Page: 2,
	})
	if err != nil {
		t.Fatal(err)
	}
	// GOG carries i%3==1: 1,4,7,10,13,16,19 -> >=5: 7,10,13,16,19
	if page.Count != 5 || page.TotalPages != 3 || !page.HasNext || !page.HasPrevious {
		t.Errorf("meta = %+v", page)
	}
	if page.Filters.Store == nil || *page.Filters.Store != "GOG" || *page.Filters.MinPrice != "5" || page.Filters.Ordering != "sale_price" {
		t.Errorf("filters = %+v", page.Filters)
	}
	if mem.lastQuery.Ordering != "sale_price" {
		t.Errorf("ordering passed = %q", mem.lastQuery.Ordering)
	}
}

func TestListFiltered_OrderingFallback(t *testing.T) {
	mem := &memDeals{rows: twentyDeals()}
	page, err := New(mem).ListFiltered(context.Background(), FilterParams{Ordering: "nonsense"})
	if err != nil {
		t.Fatalf("unknown ordering must not fail: %v", err)
	}
	if page.Filters.Ordering != "-deal_rating" || mem.lastQuery.Ordering != "-deal_rating" {
		t.Errorf("ordering = %q / %q", page.Filters.Ordering, mem.lastQuery.Ordering)
	}
	if page.Page != 1 || page.PageSize != DefaultPageSize || page.HasPrevious {
		t.Errorf("defaults = %+v", page)
	}
	if page.Filters.Store != nil || page.Filters.MinPrice != nil {
		t.Errorf("no filters should be echoed as null: %+v", page.Filters)
	}
}

func TestListFiltered_PageSizeCap(t *testing.T) {
	mem := &memDeals{rows: twentyDeals()}
	page, err := New(mem).ListFiltered(context.Background(), FilterParams{PageSize: 500})
	if err != nil {
		t.Fatal(err)
	}
	if page.PageSize != MaxPageSize || len(page.Deals) != 20 || page.TotalPages != 1 {
		t.Errorf("page = %+v", page)
	}
}

func TestDetail(t *testing.T) {
	svc := New(&memDeals{rows: twentyDeals()})
	v, err := svc.Detail(context.Background(), "d05")
	if err != nil {
		t.Fatal(err)
	}
	if v.SalePrice != "5.00" || v.NormalPrice != "10.00" || v.DealRating != "8.8" {
		t.Errorf("view = %+v", v)
	}
	if _, err := svc.Detail(context.Background(), "nope"); !errors.Is(err, ErrDealNotFound) {
		t.Errorf("err = %v, want ErrDealNotFound", err)
	}
}

func TestFilterFacets(t *testing.T) {
	rows := []model.Deal{
		{DealID: "a", StoreName: "Steam", SalePrice: decimal.RequireFromString("4.99")},
		{DealID: "b", StoreName: "GOG", SalePrice: decimal.RequireFromString("0.5")},
		{DealID: "c", StoreName: "Steam", SalePrice: decimal.RequireFromString("4.99")},
	}
	f, err := New(&memDeals{rows: rows}).FilterFacets(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(f.Stores, ",") != "GOG,Steam" || strings.Join(f.Prices, ",") != "0.50,4.99" {
		t.Errorf("facets = %+v", f)
	}
}

func TestParsers(t *testing.T) {
	if n, err := ParsePage(""); err != nil || n != 1 {
		t.Errorf("ParsePage(\"\") = %d, %v", n, err)
	}
	for _, bad := range []string{"abc", "0", "-2", "1.5"} {
		if _, err := ParsePage(bad); !errors.Is(err, ErrInvalidPage) {
			t.Errorf("ParsePage(%q) err = %v", bad, err)
		}
	}
	for in, want := range map[string]int{"": 8, "x": 8, "0": 8, "20": 20, "51": 50} {
		if got := ParsePageSize(in); got != want {
			t.Errorf("ParsePageSize(%q) = %d, want %d", in, got, want)
		}
	}
	if p, err := ParseMinPrice("9.99"); err != nil || p.String() != "9.99" {
		t.Errorf("ParseMinPrice = %v, %v", p, err)
	}
	if p, err := ParseMinPrice(""); err != nil || p != nil {
		t.Errorf("empty min price = %v, %v", p, err)
	}
	for _, bad := range []string{"cheap", "-1"} {
		if _, err := ParseMinPrice(bad); !errors.Is(err, ErrInvalidMinPrice) {
			t.Errorf("ParseMinPrice(%q) err = %v", bad, err)
		}
	}
}
