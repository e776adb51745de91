package service

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/iliyamo/film-catalog/internal/model"
	"github.com/iliyamo/film-catalog/internal/queue"
)

type fakeStore struct {
	all       []model.Film
	byPrefix  map[string][]model.Film
	err       error
	gotPrefix string
	calls     []string
}

func (f *fakeStore) ListAll(context.Context) ([]model.Film, error) {
	f.calls = append(f.calls, "all")
	return f.all, f.err
}

func (f *fakeStore) ListByTitlePrefix(_ context.Context, prefix string) ([]model.Film, error) {
	f.calls = append(f.calls, "prefix")
	f.gotPrefix = prefix
	return f.byPrefix[prefix], f.err
}

type recordingPublisher struct {
	events []queue.FilmsQueriedEvent
	err    error
}

func (r *recordingPublisher) PublishFilmsQueried(_ context.Context, ev queue.FilmsQueriedEvent) error {
	r.events = append(r.events, ev)
	return r.err
}

func newService(t *testing.T, store FilmStore, pub EventPublisher) *FilmService {
	t.Helper()
	s := NewFilmService(store, pub, zaptest.NewLogger(t).Sugar())
	ts := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	s.now = func() time.Time { return ts }
	return s
}

func TestFindByStartingLetterBlankListsAll(t *testing.T) {
	all := []model.Film{{ID: 1, Title: "ACADEMY DINOSAUR"}, {ID: 1000, Title: "ZORRO ARK"}}
	for _, letter := range []string{"", "   "} {
		store := &fakeStore{all: all}
		films, err := newService(t, store, nil).FindByStartingLetter(context.Background(), letter)
		require.NoError(t, err)
		assert.Equal(t, all, films)
		assert.Equal(t, []string{"all"}, store.calls)
	}
}

func TestFindByStartingLetterTrimsPrefix(t *testing.T) {
	store := &fakeStore{byPrefix: map[string][]model.Film{"a": {{ID: 1, Title: "ACADEMY DINOSAUR"}}}}

	for _, letter := range []string{" a ", "\x01a\t"} {
		films, err := newService(t, store, nil).FindByStartingLetter(context.Background(), letter)
		require.NoError(t, err)
		assert.Equal(t, "a", store.gotPrefix)
		assert.Len(t, films, 1)
	}
}

func TestFindByStartingLetterNoMatchesReturnsEmptySlice(t *testing.T) {
	store := &fakeStore{byPrefix: map[string][]model.Film{}}

	films, err := newService(t, store, nil).FindByStartingLetter(context.Background(), "Q")
	require.NoError(t, err)
	assert.NotNil(t, films)
	assert.Empty(t, films)
}

func TestFindByStartingLetterNoRowsIsEmptyResult(t *testing.T) {
	store := &fakeStore{err: sql.ErrNoRows}

	films, err := newService(t, store, nil).FindByStartingLetter(context.Background(), "X")
	require.NoError(t, err)
	assert.Empty(t, films)
}

func TestFindByStartingLetterWrapsStoreErrors(t *testing.T) {
	boom := errors.New("connection refused")
	pub := &recordingPublisher{}

	_, err := newService(t, &fakeStore{err: boom}, pub).FindByStartingLetter(context.Background(), "A")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "query films")
	assert.Empty(t, pub.events, "failed queries publish nothing")
}

func TestFindByStartingLetterPublishesEvent(t *testing.T) {
	store := &fakeStore{byPrefix: map[string][]model.Film{"B": {{ID: 16, Title: "BADMAN DAWN"}}}}
	pub := &recordingPublisher{}

	_, err := newService(t, store, pub).FindByStartingLetter(context.Background(), "B")
	require.NoError(t, err)
	require.Len(t, pub.events, 1)
	assert.Equal(t, queue.FilmsQueriedEvent{
		Filter:     "B",
		Count:      1,
		DurationMS: 0,
		QueriedAt:  "2024-01-15T10:30:00Z",
	}, pub.events[0])
}

func TestFindByStartingLetterIgnoresPublishFailures(t *testing.T) {
	store := &fakeStore{all: []model.Film{{ID: 1, Title: "ACADEMY DINOSAUR"}}}
	pub := &recordingPublisher{err: errors.New("broker down")}

	films, err := newService(t, store, pub).FindByStartingLetter(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, films, 1)
}

// staticStore is safe for concurrent use.
type staticStore []model.Film

func (s staticStore) ListAll(context.Context) ([]model.Film, error) { return s, nil }

func (s staticStore) ListByTitlePrefix(context.Context, string) ([]model.Film, error) { return s, nil }

// silentBroker accepts TCP connections and never completes the AMQP handshake.
func silentBroker(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	var (
		mu    sync.Mutex
		conns []net.Conn
	)
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, c)
			mu.Unlock()
		}
	}()
	t.Cleanup(func() {
		_ = ln.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, c := range conns {
			_ = c.Close()
		}
	})
	return "amqp://guest:guest@" + ln.Addr().String() + "/"
}

func TestFindByStartingLetterNotDelayedByStalledBroker(t *testing.T) {
	log := zaptest.NewLogger(t).Sugar()
	pub := queue.NewPublisher(silentBroker(t), queue.DefaultBuffer, log)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		pub.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	svc := NewFilmService(staticStore{{ID: 1, Title: "ACADEMY DINOSAUR"}}, pub, log)

	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			films, err := svc.FindByStartingLetter(context.Background(), "")
			assert.NoError(t, err)
			assert.Len(t, films, 1)
		}()
	}
	wg.Wait()
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}
