package router // package router registers the HTTP routes of the API

import (
	"database/sql"
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/book-delivery/internal/config"
	"github.com/iliyamo/book-delivery/internal/handler"
	"github.com/iliyamo/book-delivery/internal/middleware"
	"github.com/iliyamo/book-delivery/internal/model"
)

// Handlers bundles the endpoint handlers mounted under /api/v1.
type Handlers struct {
	Auth       *handler.AuthHandler
	Books      *handler.BookHandler
	Orders     *handler.OrderHandler
	Statistics *handler.StatisticsHandler
}

// Deps carries the infrastructure the middleware chain needs.  Redis may be
// nil, in which case rate limiting and caching are disabled.
type Deps struct {
	Cfg       config.Config
	DB        *sql.DB
	Redis     *redis.Client
	Validator middleware.TokenValidator
	Log       *slog.Logger
}

// RegisterRoutes registers probes and the Prometheus scrape endpoint.
func RegisterRoutes(e *echo.Echo, db *sql.DB) {
	e.GET("/healthz", handler.Health)
	if db != nil {
		e.GET("/readyz", handler.Ready(db))
	}
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// RegisterAPI mounts the versioned API.  Auth endpoints are public; every
// other route requires a valid access token and the listed roles.  Access
// to a specific customer's data is decided again in the service layer.
func RegisterAPI(e *echo.Echo, h Handlers, d Deps) {
	apiLimit := middleware.NewTokenBucket(d.Cfg.RateLimit, middleware.PolicyAPI, d.Redis, d.Log)
	authLimit := middleware.NewTokenBucket(d.Cfg.RateLimit, middleware.PolicyAuth, d.Redis, d.Log)
	orderLimit := middleware.NewTokenBucket(d.Cfg.RateLimit, middleware.PolicyOrders, d.Redis, d.Log)
	cache := middleware.NewRedisCache(d.Cfg.Cache, d.Redis)
	invalidate := middleware.InvalidateCache(d.Cfg.Cache, d.Redis, d.Log)

	admin := middleware.RequireRole(model.RoleAdmin)
	customer := middleware.RequireRole(model.RoleCustomer)
	anyRole := middleware.RequireRole(model.RoleAdmin, model.RoleCustomer)

	pub := e.Group("/api/v1/auth", authLimit)
	pub.POST("/register", h.Auth.Register)
	pub.POST("/login", h.Auth.Login)
	pub.POST("/refreshtoken", h.Auth.RefreshToken)
	pub.POST("/logout", h.Auth.Logout)

	api := e.Group("/api/v1", middleware.JWTAuth(d.Validator), apiLimit)
	api.GET("/me", h.Auth.Me, anyRole)

	api.POST("/customers", h.Auth.CreateCustomer, admin)

	api.POST("/books", h.Books.Create, admin, invalidate)
	api.PUT("/books/stock-amount/:id", h.Books.UpdateStock, admin, invalidate)
	api.PUT("/books/:id", h.Books.Update, admin, invalidate)
	api.GET("/books/:id", h.Books.Get, anyRole, cache)
	api.GET("/books", h.Books.List, anyRole, cache)

	// placing an order changes stock, so the catalog cache is dropped too
	api.POST("/orders", h.Orders.Place, customer, orderLimit, invalidate)
	api.GET("/orders/between-dates", h.Orders.ListBetween, admin)
	api.GET("/orders/customer/:customerId", h.Orders.ListByCustomer, anyRole)
	api.GET("/orders/:id", h.Orders.Get, anyRole)

	api.GET("/statistics", h.Statistics.All, admin)
	api.GET("/statistics/:customerId", h.Statistics.Customer, anyRole)
}
