package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/deal-finder/internal/catalog"
	"github.com/iliyamo/deal-finder/internal/middleware"
)

// DealCatalog is the read side served by DealHandler; catalog.Service
// implements it.
type DealCatalog interface {
	ListForAnonymous(ctx context.Context) (catalog.AnonymousList, error)
	ListForAuthenticated(ctx context.Context, page int) (catalog.Page, error)
	ListFiltered(ctx context.Context, p catalog.FilterParams) (catalog.FilteredPage, error)
	Detail(ctx context.Context, dealID string) (catalog.DealView, error)
	FilterFacets(ctx context.Context) (catalog.Facets, error)
}

// DealHandler serves the deal listings.  Anonymous callers only ever see
// the public card fields.
type DealHandler struct {
	Catalog DealCatalog
	Log     *slog.Logger
}

func NewDealHandler(cat DealCatalog, log *slog.Logger) *DealHandler {
	if log == nil {
		log = slog.Default()
	}
	return &DealHandler{Catalog: cat, Log: log}
}

// List serves GET /deals.  The response shape depends on whether the
// request carried a valid access token.
func (h *DealHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if !middleware.IsAuthenticated(c) {
		out, err := h.Catalog.ListForAnonymous(ctx)
		if err != nil {
			return h.dbError(c, "anonymous listing", err)
		}
		return c.JSON(http.StatusOK, out)
	}

	page, err := catalog.ParsePage(c.QueryParam("page"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": catalog.ErrInvalidPage.Error()})
	}
	out, err := h.Catalog.ListForAuthenticated(ctx, page)
	if err != nil {
		return h.dbError(c, "listing", err)
	}
	return c.JSON(http.StatusOK, out)
}

// Filtered serves GET /dealsFiltered?store=&min_price=&ordering=&page=&page_size=.
// A missing or zero page means the first page; an unknown ordering falls back
// to the default.
func (h *DealHandler) Filtered(c echo.Context) error {
	page := 0
	if raw := strings.TrimSpace(c.QueryParam("page")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": catalog.ErrInvalidPage.Error()})
		}
		page = n
	}
	minPrice, err := catalog.ParseMinPrice(c.QueryParam("min_price"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	out, err := h.Catalog.ListFiltered(ctx, catalog.FilterParams{
		Store:    strings.TrimSpace(c.QueryParam("store")),
		MinPrice: minPrice,
		Ordering: c.QueryParam("ordering"),
		Page:     page,
		PageSize: catalog.ParsePageSize(c.QueryParam("page_size")),
	})
	if err != nil {
		if errors.Is(err, catalog.ErrInvalidPage) || errors.Is(err, catalog.ErrInvalidMinPrice) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
		return h.dbError(c, "filtered listing", err)
	}
	return c.JSON(http.StatusOK, out)
}

// FiltersData serves GET /filtersData.
func (h *DealHandler) FiltersData(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	out, err := h.Catalog.FilterFacets(ctx)
	if err != nil {
		return h.dbError(c, "filter facets", err)
	}
	return c.JSON(http.StatusOK, out)
}

// Detail serves GET /dealDetail?deal_id=.
func (h *DealHandler) Detail(c echo.Context) error {
	id := strings.TrimSpace(c.QueryParam("deal_id"))
	if id == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "deal_id is required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	d, err := h.Catalog.Detail(ctx, id)
	if err != nil {
		if errors.Is(err, catalog.ErrDealNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "deal not found"})
		}
		return h.dbError(c, "deal detail", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"deal": d})
}

func (h *DealHandler) dbError(c echo.Context, what string, err error) error {
	h.Log.Error(what+" failed", "error", err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
}
