package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/deal-finder/internal/handler"
	"github.com/iliyamo/deal-finder/internal/middleware"
)

// RegisterAuth registers account and session routes.  Sign-on and sign-in
// pass through the rate limiter; sign-out and refresh only need the refresh
// token in the body.  Profile, account deletion and sign-out-all require a
// valid access token.
func RegisterAuth(g *echo.Group, a *handler.AuthHandler, jwtSecret string, limiter echo.MiddlewareFunc) {
	g.POST("/signon", a.Register, limiter)
	g.POST("/signin", a.Login, limiter)
	g.POST("/signout", a.Logout)
	g.POST("/token/refresh", a.Refresh)
	g.GET("/admin-exist", a.AdminExist)

	auth := middleware.JWTAuth(jwtSecret)
	g.GET("/profile", a.Me, auth)
	g.DELETE("/account", a.DeleteAccount, auth)
	g.POST("/signout-all", a.LogoutAll, auth)
}
