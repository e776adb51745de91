package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/iliyamo/film-catalog/internal/config"
	"github.com/iliyamo/film-catalog/internal/problem"
)

func TestRateKey(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/films?startsWith=A", nil)
	req.Header.Set(echo.HeaderXRealIP, "10.0.0.7")
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/api/v1/films")

	assert.Equal(t, "rl:ip:10.0.0.7", rateKey(config.RateLimitConfig{Prefix: "rl", KeyStrategy: config.RateKeyIP}, c))
	assert.Equal(t, "rl:ip:10.0.0.7:route:/api/v1/films", rateKey(config.RateLimitConfig{Prefix: "rl", KeyStrategy: config.RateKeyIPRoute}, c))
}

func TestParseRateDecision(t *testing.T) {
	d, err := parseRateDecision([]interface{}{int64(0), int64(0), int64(1500)})
	require.NoError(t, err)
	assert.False(t, d.allowed)
	assert.Equal(t, 1500*time.Millisecond, d.retry)

	_, err = parseRateDecision([]interface{}{int64(1)})
	assert.Error(t, err)
	_, err = parseRateDecision("OK")
	assert.Error(t, err)
}

func limitedServer(t *testing.T, cfg config.RateLimitConfig) *echo.Echo {
	t.Helper()
	_, rdb := newTestRedis(t)
	e := echo.New()
	e.Use(NewRateLimiter(cfg, rdb, zaptest.NewLogger(t).Sugar()))
	e.GET("/api/v1/films", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })
	return e
}

func getFrom(e *echo.Echo, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/films", nil)
	req.Header.Set(echo.HeaderXRealIP, ip)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestRateLimiterRejectsWithProblemAndRetryAfter(t *testing.T) {
	e := limitedServer(t, config.RateLimitConfig{
		Enabled: true, Capacity: 2, RefillTokens: 1, RefillInterval: time.Minute, Prefix: "films:rl",
	})

	first := getFrom(e, "10.0.0.1")
	assert.Equal(t, http.StatusNoContent, first.Code)
	assert.Equal(t, "2", first.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, http.StatusNoContent, getFrom(e, "10.0.0.1").Code)

	rec := getFrom(e, "10.0.0.1")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, problem.ContentType, rec.Header().Get(echo.HeaderContentType))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	var body problem.Details
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, problem.TypeRateLimited, body.Type)
	assert.Equal(t, http.StatusTooManyRequests, body.Status)
	require.NotNil(t, body.RetryAfter)
	assert.Equal(t, 60, *body.RetryAfter)

	assert.Equal(t, http.StatusNoContent, getFrom(e, "10.0.0.2").Code, "other clients keep their own budget")
}

func TestRateLimiterFailsOpenWhenRedisIsDown(t *testing.T) {
	mr, rdb := newTestRedis(t)
	mr.Close()

	e := echo.New()
	e.Use(NewRateLimiter(config.RateLimitConfig{Enabled: true, Capacity: 1, RefillTokens: 1, RefillInterval: time.Minute}, rdb, zaptest.NewLogger(t).Sugar()))
	e.GET("/api/v1/films", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })

	for i := 0; i < 3; i++ {
		rec := getFrom(e, "10.0.0.1")
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
	}
}

func TestRateLimiterDisabledPassesThrough(t *testing.T) {
	e := echo.New()
	e.Use(NewRateLimiter(config.RateLimitConfig{Enabled: false}, nil, zaptest.NewLogger(t).Sugar()))
	e.GET("/api/v1/films", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })

	rec := getFrom(e, "10.0.0.1")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
}
