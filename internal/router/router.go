package router // package router wires handlers and middleware onto the Echo instance

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/ticket-booking/internal/config"
	"github.com/iliyamo/ticket-booking/internal/handler"
	"github.com/iliyamo/ticket-booking/internal/middleware"
	"github.com/iliyamo/ticket-booking/internal/model"
)

// Deps carries everything the routes need. Redis may be nil, in which case
// rate limiting and caching pass requests straight through.
type Deps struct {
	JWTSecret    string
	Redis        *redis.Client
	RateLimit    config.RateLimitConfig
	Cache        config.CacheConfig
	Log          *zap.Logger
	DB           handler.Pinger
	Auth         *handler.AuthHandler
	Events       *handler.EventHandler
	Reservations *handler.ReservationHandler
}

// Register installs the global middleware and every API route.
func Register(e *echo.Echo, d Deps) {
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(d.Log))

	// Health check for load balancers.
	e.GET("/healthz", handler.Health(d.DB))

	registerAuth(e, d)
	registerEvents(e, d)
	registerReservations(e, d)
}

// registerAuth maps the session endpoints. Only /user needs an access
// token; logout accepts either a refresh token or a bearer token.
func registerAuth(e *echo.Echo, d Deps) {
	g := e.Group("/v1/auth")
	g.POST("/register", d.Auth.Register)
	g.POST("/login", d.Auth.Login)
	g.POST("/refresh", d.Auth.Refresh) // rotates the refresh token
	g.POST("/refresh-access", d.Auth.RefreshAccess)
	g.POST("/logout", d.Auth.Logout)
	g.GET("/user", d.Auth.Me, middleware.JWTAuth(d.JWTSecret))
}

// registerEvents maps the catalogue. The list is cached briefly; the
// single-event read is not, since clients use it to refresh the version
// after a conflict.
func registerEvents(e *echo.Echo, d Deps) {
	g := e.Group("/v1/events", middleware.JWTAuth(d.JWTSecret))
	g.GET("", d.Events.List, middleware.NewRedisCache(d.Cache, d.Redis, d.Log))
	g.GET("/:id", d.Events.Get)
	g.POST("", d.Events.Create, middleware.RequireRole(model.RoleOrganizer))
}

// registerReservations maps the reservation endpoints. Writes go through
// the token bucket.
func registerReservations(e *echo.Echo, d Deps) {
	g := e.Group("/v1/reservations", middleware.JWTAuth(d.JWTSecret))
	limit := middleware.NewTokenBucket(d.RateLimit, d.Redis, d.Log)

	g.GET("/my-reservations", d.Reservations.Mine)
	g.GET("/:id", d.Reservations.Get)
	g.POST("", d.Reservations.Create, limit)
	g.PUT("/:id", d.Reservations.Update, limit)
	g.DELETE("/:id", d.Reservations.Cancel, limit)
}
