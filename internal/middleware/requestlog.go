package middleware

import (
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// RequestLogger assigns a request id (honoring an incoming X-Request-ID),
// echoes it in the response and logs one line per request.  Server errors
// log at error level, client errors at warn, the rest at info.
func RequestLogger(log *zap.SugaredLogger) echo.MiddlewareFunc {
	log = log.Named("http")
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			id := req.Header.Get(echo.HeaderXRequestID)
			if id == "" {
				id = uuid.NewString()
			}
			c.Set(ctxRequestID, id)
			c.Response().Header().Set(echo.HeaderXRequestID, id)

			start := time.Now()
			err := next(c)
			status := statusOf(c, err)

			fields := []any{
				"request_id", id,
				"method", req.Method,
				"path", req.URL.Path,
				"query", req.URL.RawQuery,
				"route", c.Path(),
				"status", status,
				"latency", time.Since(start),
				"remote_ip", c.RealIP(),
			}
			switch {
			case status >= 500:
				log.Errorw("request", fields...)
			case status >= 400:
				log.Warnw("request", fields...)
			default:
				log.Infow("request", fields...)
			}
			return err
		}
	}
}
