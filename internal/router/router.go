package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"                             // import the Echo web framework to handle routing
	"github.com/prometheus/client_golang/prometheus/promhttp" // Prometheus scrape endpoint

	"github.com/iliyamo/deal-finder/internal/handler" // import the handlers that implement business logic
)

// APIPrefix is the base path every client-facing endpoint lives under.
const APIPrefix = "/api"

// Deps collects what the route table needs.  Cache and RateLimit may be nil,
// in which case the routes are served without them.
type Deps struct {
	JWTSecret string
	Auth      *handler.AuthHandler
	Deals     *handler.DealHandler
	Fetch     *handler.FetchHandler
	Stores    *handler.StoreHandler
	DB        handler.Pinger
	Cache     echo.MiddlewareFunc // Redis response cache for the shared read endpoints
	RateLimit echo.MiddlewareFunc // token bucket in front of the credential endpoints
}

// Register mounts every route on e.
func Register(e *echo.Echo, d Deps) {
	RegisterRoutes(e, d.DB)
	api := e.Group(APIPrefix)
	RegisterAuth(api, d.Auth, d.JWTSecret, orPass(d.RateLimit))
	RegisterDeals(api, d.Deals, d.JWTSecret, orPass(d.Cache))
	RegisterAdmin(api, d.Fetch, d.Stores, d.JWTSecret)
}

// RegisterRoutes registers operational routes that do not require
// authentication: a health check for load balancers and the metrics scrape
// endpoint.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health(db))
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

func orPass(m echo.MiddlewareFunc) echo.MiddlewareFunc {
	if m == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return m
}
