package middleware

import (
	"fmt"

	"github.com/labstack/echo/v4"
)

// Context keys written by JWTAuth and RequestLogger.
const (
	ctxSubject   = "subject"
	ctxRole      = "role"
	ctxRequestID = "request_id"
)

// Subject returns the "sub" claim stored by JWTAuth, or "anon" on routes
// without authentication.  Numeric subjects are formatted as strings.
func Subject(c echo.Context) string {
	switch v := c.Get(ctxSubject).(type) {
	case nil:
		return "anon"
	case string:
		if v == "" {
			return "anon"
		}
		return v
	default:
		return fmt.Sprint(v)
	}
}

// RequestID returns the id assigned to the current request by RequestLogger.
func RequestID(c echo.Context) string {
	if v, ok := c.Get(ctxRequestID).(string); ok {
		return v
	}
	return ""
}
