// Package service holds the business logic that sits between HTTP handlers
// and repositories.
package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/film-catalog/internal/model"
	"github.com/iliyamo/film-catalog/internal/queue"
)

// FilmStore is the read side of the film repository.
type FilmStore interface {
	ListAll(ctx context.Context) ([]model.Film, error)
	ListByTitlePrefix(ctx context.Context, prefix string) ([]model.Film, error)
}

// EventPublisher receives an event after every successful query.
type EventPublisher interface {
	PublishFilmsQueried(ctx context.Context, ev queue.FilmsQueriedEvent) error
}

// FilmService answers film queries.
type FilmService struct {
	store  FilmStore
	events EventPublisher
	log    *zap.SugaredLogger
	now    func() time.Time
}

// NewFilmService wires a FilmService.  A nil events publisher disables
// query events.
func NewFilmService(store FilmStore, events EventPublisher, log *zap.SugaredLogger) *FilmService {
	if events == nil {
		events = queue.NopPublisher{}
	}
	return &FilmService{store: store, events: events, log: log.Named("films"), now: time.Now}
}

// FindByStartingLetter returns films whose title starts with letter, or all
// films when letter is blank.  letter is trimmed before querying; validation
// of its shape is the caller's job.  Results are ordered by title and never
// nil.
func (s *FilmService) FindByStartingLetter(ctx context.Context, letter string) ([]model.Film, error) {
	start := s.now()
	prefix := model.TrimFilter(letter)

	var (
		films []model.Film
		err   error
	)
	if prefix == "" {
		s.log.Debug("retrieving all films")
		films, err = s.store.ListAll(ctx)
	} else {
		s.log.Debugw("searching films by starting letter", "letter", prefix)
		films, err = s.store.ListByTitlePrefix(ctx, prefix)
	}
	if errors.Is(err, sql.ErrNoRows) {
		s.log.Infow("no films found", "letter", prefix)
		films, err = nil, nil
	}
	if err != nil {
		s.log.Errorw("film query failed", "letter", prefix, "error", err)
		return nil, fmt.Errorf("query films: %w", err)
	}
	if films == nil {
		films = []model.Film{}
	}
	s.log.Debugw("film query done", "letter", prefix, "count", len(films))

	finished := s.now()
	ev := queue.FilmsQueriedEvent{
		Filter:     prefix,
		Count:      len(films),
		DurationMS: finished.Sub(start).Milliseconds(),
		QueriedAt:  finished.UTC().Format(time.RFC3339),
	}
	if err := s.events.PublishFilmsQueried(ctx, ev); err != nil {
		s.log.Warnw("publish query event failed", "error", err)
	}
	return films, nil
}
