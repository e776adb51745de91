package handler

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/film-catalog/internal/middleware"
	"github.com/iliyamo/film-catalog/internal/problem"
)

const msgInternalError = "An unexpected error occurred while processing the request"

// ErrorHandler renders every error that reaches echo as a problem document.
//
// Client errors raised through echo.HTTPError (unknown route, wrong method)
// keep their status.  Anything else becomes a generic server error: the
// cause is logged together with a random errorId, and only the errorId is
// sent to the client.
func ErrorHandler(log *zap.SugaredLogger) echo.HTTPErrorHandler {
	log = log.Named("errors")
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var p problem.Details
		var he *echo.HTTPError
		if errors.As(err, &he) && he.Code < http.StatusInternalServerError {
			p = problem.New(c, he.Code, "", "", clientMessage(he))
		} else {
			status := http.StatusInternalServerError
			if he != nil {
				status = he.Code
			}
			id := uuid.NewString()
			log.Errorw("unhandled error",
				"error_id", id,
				"request_id", middleware.RequestID(c),
				"method", c.Request().Method,
				"path", c.Request().URL.Path,
				"error", err,
			)
			p = problem.New(c, status, problem.TypeInternalError, "Internal Server Error", msgInternalError)
			p.ErrorID = id
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(p.Status)
		} else {
			werr = problem.Write(c, p)
		}
		if werr != nil {
			log.Warnw("write error response failed", "error", werr)
		}
	}
}

// clientMessage returns he's message when it is a plain string that adds
// something beyond the status text.
func clientMessage(he *echo.HTTPError) string {
	msg, ok := he.Message.(string)
	if !ok || msg == http.StatusText(he.Code) {
		return ""
	}
	return msg
}
