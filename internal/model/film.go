package model

import "strings"

// Film represents a single row of the `film` table.  Rows are seeded by
// migrations and are only ever read by the service.
type Film struct {
	ID    int64  `db:"film_id" json:"film_id"` // film.film_id
	Title string `db:"title" json:"title"`     // film.title, upper-case in the Sakila data
}

// FilterStartsWith is the key used in FilmQueryResult.Filter when a
// starting-letter filter was applied.
const FilterStartsWith = "startsWith"

// TrimFilter strips leading and trailing spaces and ASCII control
// characters (every code point up to U+0020) from a filter value.  Other
// Unicode whitespace, such as U+00A0, is kept and makes the value invalid.
func TrimFilter(s string) string {
	return strings.TrimFunc(s, func(r rune) bool { return r <= ' ' })
}

// FilmQueryResult is the response envelope of the film query endpoint.
// Count always equals len(Films).  Filter is never nil so that it
// serializes as {} when no filter was applied.
type FilmQueryResult struct {
	Films  []Film            `json:"films"`
	Count  int               `json:"count"`
	Filter map[string]string `json:"filter"`
}

// NewFilmQueryResult builds the envelope.  A nil films slice is replaced by
// an empty one and a nil filter map by an empty map.
func NewFilmQueryResult(films []Film, filter map[string]string) FilmQueryResult {
	if films == nil {
		films = []Film{}
	}
	if filter == nil {
		filter = map[string]string{}
	}
	return FilmQueryResult{Films: films, Count: len(films), Filter: filter}
}
