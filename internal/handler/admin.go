package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/film-catalog/internal/middleware"
	"github.com/iliyamo/film-catalog/internal/problem"
)

// AdminHandler exposes operational endpoints guarded by an ADMIN JWT.
type AdminHandler struct {
	Redis       redis.UniversalClient // nil when Redis is unavailable
	CachePrefix string
	Log         *zap.SugaredLogger
}

// FlushCache handles DELETE /api/v1/admin/cache.  It removes every cached
// response and reports how many entries were deleted.  Without Redis there
// is no cache to flush and the endpoint answers 503.
func (h *AdminHandler) FlushCache(c echo.Context) error {
	if h.Redis == nil {
		return problem.Write(c, problem.New(c, http.StatusServiceUnavailable, "", "", "response cache is disabled"))
	}
	n, err := middleware.FlushPrefix(c.Request().Context(), h.Redis, h.CachePrefix)
	if err != nil {
		return err
	}
	h.Log.Infow("response cache flushed", "prefix", h.CachePrefix, "deleted", n, "by", middleware.Subject(c))
	return c.JSON(http.StatusOK, echo.Map{"deleted": n})
}
