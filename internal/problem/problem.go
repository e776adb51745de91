// Package problem renders RFC 7807 problem details documents.
package problem

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// ContentType is the media type of every problem document.
const ContentType = "application/problem+json"

// Problem type URIs used by this service.
const (
	TypeInvalidParameter = "https://example.com/problems/invalid-parameter"
	TypeInternalError    = "https://example.com/problems/internal-error"
	TypeRateLimited      = "https://example.com/problems/rate-limited"
	TypeBlank            = "about:blank"
)

// Details is a problem document.  Timestamp and the optional extension
// members (ErrorID, RetryAfter) sit next to the standard RFC 7807 fields.
type Details struct {
	Type       string    `json:"type"`
	Title      string    `json:"title"`
	Status     int       `json:"status"`
	Detail     string    `json:"detail,omitempty"`
	Instance   string    `json:"instance,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	ErrorID    string    `json:"errorId,omitempty"`
	RetryAfter *int      `json:"retry_after,omitempty"`
}

// Now is the clock used for Timestamp.
var Now = func() time.Time { return time.Now().UTC() }

// New builds a problem for the request in c.  An empty title defaults to the
// status text and an empty type to about:blank.
func New(c echo.Context, status int, typ, title, detail string) Details {
	if typ == "" {
		typ = TypeBlank
	}
	if title == "" {
		title = http.StatusText(status)
	}
	return Details{
		Type:      typ,
		Title:     title,
		Status:    status,
		Detail:    detail,
		Instance:  c.Request().URL.Path,
		Timestamp: Now(),
	}
}

// Write sends d with its status and the problem content type.
func Write(c echo.Context, d Details) error {
	body, err := json.Marshal(d)
	if err != nil {
		return err
	}
	return c.Blob(d.Status, ContentType, body)
}

// InvalidParameter writes a 400 invalid-parameter problem.
func InvalidParameter(c echo.Context, detail string) error {
	return Write(c, New(c, http.StatusBadRequest, TypeInvalidParameter, "Invalid Parameter", detail))
}
