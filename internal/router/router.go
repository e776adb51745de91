package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/film-catalog/internal/config"
	"github.com/iliyamo/film-catalog/internal/handler"
	"github.com/iliyamo/film-catalog/internal/middleware"
)

// NewEcho returns an echo instance with the problem error handler and the
// server-wide middleware.  Recover sits innermost, so a panicking handler is
// still logged and counted as a 500.
func NewEcho(log *zap.SugaredLogger, metrics *middleware.Metrics) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handler.ErrorHandler(log)

	e.Use(middleware.RequestLogger(log))
	if metrics != nil {
		e.Use(metrics.Middleware())
	}
	panics := log.Named("recover")
	e.Use(echomw.RecoverWithConfig(echomw.RecoverConfig{
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			panics.Errorw("handler panicked", "request_id", middleware.RequestID(c), "error", err, "stack", string(stack))
			return err
		},
	}))
	return e
}

// Deps bundles everything RegisterRoutes wires into the route tree.
type Deps struct {
	Films   *handler.FilmHandler
	Ready   *handler.ReadyHandler
	Admin   *handler.AdminHandler
	Metrics *middleware.Metrics

	Redis     redis.UniversalClient // nil disables the cache and the rate limiter
	Cache     config.CacheConfig
	RateLimit config.RateLimitConfig
	JWTSecret string // empty leaves the admin routes unregistered

	Log *zap.SugaredLogger
}

// RegisterRoutes registers probes, metrics and the /api/v1 API.
//
// The public API group is rate limited first and cached second, so a
// throttled client never reads from the cache.  Admin endpoints require an
// HS256 JWT carrying role ADMIN.
func RegisterRoutes(e *echo.Echo, d Deps) {
	e.GET("/healthz", handler.Health)
	if d.Ready != nil {
		e.GET("/readyz", d.Ready.Ready)
	}
	if d.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(d.Metrics.Handler()))
	}

	api := e.Group("/api/v1",
		middleware.NewRateLimiter(d.RateLimit, d.Redis, d.Log),
		middleware.NewResponseCache(d.Cache, d.Redis, d.Log),
	)
	api.GET("/films", d.Films.GetFilms)

	if d.JWTSecret == "" || d.Admin == nil {
		return
	}
	admin := e.Group("/api/v1/admin",
		middleware.JWTAuth(d.JWTSecret),
		middleware.RequireRole("ADMIN"),
	)
	admin.DELETE("/cache", d.Admin.FlushCache)
}
