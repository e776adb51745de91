package handler

import (
	"context"
	"net/http"
	"unicode"
	"unicode/utf8"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/film-catalog/internal/model"
	"github.com/iliyamo/film-catalog/internal/problem"
)

// Validation messages for the startsWith query parameter.
const (
	msgStartsWithEmpty        = "Parameter 'startsWith' cannot be empty"
	msgStartsWithSingleLetter = "Parameter 'startsWith' must be a single letter (A-Z)"
)

// FilmFinder is implemented by service.FilmService.
type FilmFinder interface {
	FindByStartingLetter(ctx context.Context, letter string) ([]model.Film, error)
}

// FilmHandler serves the film query API.
type FilmHandler struct {
	Films FilmFinder
}

// GetFilms handles GET /api/v1/films[?startsWith=<letter>].
//
// Without the parameter every film is returned.  When present, its trimmed
// value must be exactly one letter; anything else is a 400 problem.  The
// filter object echoes the parameter exactly as received.  Service errors
// are returned to the echo error handler, which renders a 500 problem.
func (h *FilmHandler) GetFilms(c echo.Context) error {
	raw, present := queryParam(c, model.FilterStartsWith)
	if present {
		if msg := validateStartsWith(raw); msg != "" {
			return problem.InvalidParameter(c, msg)
		}
	}

	films, err := h.Films.FindByStartingLetter(c.Request().Context(), raw)
	if err != nil {
		return err
	}

	filter := map[string]string{}
	if present && model.TrimFilter(raw) != "" {
		filter[model.FilterStartsWith] = raw
	}
	return c.JSON(http.StatusOK, model.NewFilmQueryResult(films, filter))
}

// validateStartsWith returns the problem detail for an invalid value, or ""
// when v is acceptable.  Only spaces and control characters are trimmed, so a
// letter padded with U+00A0 is rejected.
func validateStartsWith(v string) string {
	trimmed := model.TrimFilter(v)
	if trimmed == "" {
		return msgStartsWithEmpty
	}
	if utf8.RuneCountInString(trimmed) != 1 {
		return msgStartsWithSingleLetter
	}
	r, _ := utf8.DecodeRuneInString(trimmed)
	if !unicode.IsLetter(r) {
		return msgStartsWithSingleLetter
	}
	return ""
}

// queryParam distinguishes an absent parameter from an empty one, which
// c.QueryParam alone cannot do.
func queryParam(c echo.Context, name string) (string, bool) {
	vals, ok := c.QueryParams()[name]
	if !ok || len(vals) == 0 {
		return "", false
	}
	return vals[0], true
}
