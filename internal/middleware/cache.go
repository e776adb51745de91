package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/film-catalog/internal/config"
)

// Cache status header values.
const (
	headerCache = "X-Cache"
	cacheHit    = "HIT"
	cacheMiss   = "MISS"
)

// cachedResponse is what a cache entry holds.  Only the representation is
// kept; per-request headers (request id, rate limit budget) are always
// produced fresh by the middleware that owns them.
type cachedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// bodyRecorder tees the response body into a buffer while it is written to
// the client.  Once the body outgrows limit the copy is dropped.
type bodyRecorder struct {
	http.ResponseWriter
	status   int
	limit    int
	buf      bytes.Buffer
	overflow bool
}

func (r *bodyRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *bodyRecorder) Write(b []byte) (int, error) {
	if !r.overflow {
		if r.limit > 0 && r.buf.Len()+len(b) > r.limit {
			r.overflow = true
			r.buf.Reset()
		} else {
			r.buf.Write(b)
		}
	}
	return r.ResponseWriter.Write(b)
}

// cacheKey identifies a GET by path and its query parameters, re-encoded in
// sorted order so ?a=1&b=2 and ?b=2&a=1 share an entry.
func cacheKey(prefix string, c echo.Context) string {
	sum := sha256.Sum256([]byte(c.Request().URL.Path + "?" + c.QueryParams().Encode()))
	return prefix + ":" + hex.EncodeToString(sum[:16])
}

// NewResponseCache serves repeated GETs from Redis.  Only 200 responses are
// stored; errors and problem documents always reach the handler.  Redis
// failures are logged and the request is served uncached.  With caching
// disabled or no client it is a no-op.
func NewResponseCache(cfg config.CacheConfig, rdb redis.UniversalClient, log *zap.SugaredLogger) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return passThrough
	}
	log = log.Named("cache")

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().Method != http.MethodGet {
				return next(c)
			}
			ctx := c.Request().Context()
			key := cacheKey(cfg.Prefix, c)

			if cached, ok := lookup(ctx, rdb, key, log); ok {
				c.Response().Header().Set(headerCache, cacheHit)
				return c.Blob(cached.Status, cached.ContentType, cached.Body)
			}

			rec := &bodyRecorder{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: cfg.MaxBodyBytes}
			c.Response().Writer = rec
			c.Response().Header().Set(headerCache, cacheMiss)

			if err := next(c); err != nil {
				return err
			}
			if rec.status != http.StatusOK || rec.overflow {
				return nil
			}

			payload, err := json.Marshal(cachedResponse{
				Status:      rec.status,
				ContentType: c.Response().Header().Get(echo.HeaderContentType),
				Body:        rec.buf.Bytes(),
			})
			if err != nil {
				return nil
			}
			if err := rdb.Set(ctx, key, payload, cfg.TTL).Err(); err != nil {
				log.Warnw("cache store failed", "key", key, "error", err)
			}
			return nil
		}
	}
}

func lookup(ctx context.Context, rdb redis.UniversalClient, key string, log *zap.SugaredLogger) (cachedResponse, bool) {
	raw, err := rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Warnw("cache lookup failed", "key", key, "error", err)
		}
		return cachedResponse{}, false
	}
	var cached cachedResponse
	if err := json.Unmarshal(raw, &cached); err != nil || cached.Status == 0 {
		log.Warnw("discarding corrupt cache entry", "key", key)
		return cachedResponse{}, false
	}
	return cached, true
}

// FlushPrefix deletes every key under prefix using SCAN so Redis is never
// blocked by a KEYS call.  It returns the number of keys removed.
func FlushPrefix(ctx context.Context, rdb redis.UniversalClient, prefix string) (int64, error) {
	var (
		cursor  uint64
		deleted int64
	)
	for {
		keys, next, err := rdb.Scan(ctx, cursor, prefix+":*", 500).Result()
		if err != nil {
			return deleted, err
		}
		if len(keys) > 0 {
			n, err := rdb.Del(ctx, keys...).Result()
			if err != nil {
				return deleted, err
			}
			deleted += n
		}
		if next == 0 {
			return deleted, nil
		}
		cursor = next
	}
}

func passThrough(next echo.HandlerFunc) echo.HandlerFunc { return next }
