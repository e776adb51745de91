// Package repository contains data access logic separated from HTTP handlers.
// This file defines the film repository.  Films are read-only: the table is
// populated by seed migrations and never modified at runtime.
package repository

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/film-catalog/internal/model"
)

// FilmRepo encapsulates all database queries related to films.  Queries are
// written with ? placeholders and rebound for the connection's driver, so the
// same statements run on PostgreSQL and MySQL.
type FilmRepo struct {
	db *sqlx.DB
}

// NewFilmRepo constructs a FilmRepo with the provided DB handle.
func NewFilmRepo(db *sqlx.DB) *FilmRepo {
	return &FilmRepo{db: db}
}

// ListAll returns every film ordered by title.
func (r *FilmRepo) ListAll(ctx context.Context) ([]model.Film, error) {
	const q = `SELECT film_id, title FROM film ORDER BY title`
	films := []model.Film{}
	if err := r.db.SelectContext(ctx, &films, q); err != nil {
		return nil, err
	}
	return films, nil
}

// ListByTitlePrefix returns films whose title starts with prefix, compared
// case-insensitively, ordered by title.  LIKE wildcards inside prefix match
// literally.
func (r *FilmRepo) ListByTitlePrefix(ctx context.Context, prefix string) ([]model.Film, error) {
	const q = `SELECT film_id, title FROM film WHERE UPPER(title) LIKE ? ORDER BY title`
	pattern := escapeLike(strings.ToUpper(prefix)) + "%"
	films := []model.Film{}
	if err := r.db.SelectContext(ctx, &films, r.db.Rebind(q), pattern); err != nil {
		return nil, err
	}
	return films, nil
}

// Ping reports whether the database is reachable.
func (r *FilmRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
