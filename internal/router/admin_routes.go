package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/deal-finder/internal/handler"
	"github.com/iliyamo/deal-finder/internal/middleware"
	"github.com/iliyamo/deal-finder/internal/model"
)

// RegisterAdmin registers ingestion control and catalog administration.
// Any signed-in user may trigger a fetch; listing stored retailers is
// reserved for the administrator.
func RegisterAdmin(g *echo.Group, f *handler.FetchHandler, s *handler.StoreHandler, jwtSecret string) {
	g.POST("/trigger-fetch", f.Trigger, middleware.JWTAuth(jwtSecret))
	g.GET("/stores", s.List,
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin),
	)
}
