package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/deal-finder/internal/handler"
	"github.com/iliyamo/deal-finder/internal/middleware"
)

// RegisterDeals registers the deal listings.  /deals serves both audiences
// and picks the view from the optional token.  The filtered listing, the
// filter facets and the detail view require authentication; their payload
// does not depend on the caller, so they sit behind the response cache.
func RegisterDeals(g *echo.Group, h *handler.DealHandler, jwtSecret string, cache echo.MiddlewareFunc) {
	g.GET("/deals", h.List, middleware.OptionalJWT(jwtSecret))

	auth := middleware.JWTAuth(jwtSecret)
	g.GET("/dealsFiltered", h.Filtered, auth, cache)
	g.GET("/filtersData", h.FiltersData, auth, cache)
	g.GET("/dealDetail", h.Detail, auth, cache)
}
