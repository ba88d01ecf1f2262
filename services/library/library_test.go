package library

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cinevault-io/web-ui/services/api"
	"github.com/cinevault-io/web-ui/services/notification"
	"github.com/cinevault-io/web-ui/services/omdb"
	"github.com/cinevault-io/web-ui/services/reconcile"
)

// --- Mock implementations ---

type mockBackend struct {
	mu       sync.Mutex
	rows     []api.SavedMovie
	payloads []api.SavedMovie
	saveErr  error
	saveGate chan struct{}
	saveDone chan api.SavedMovie
	recs     *api.Recommendations
	recErr   error
}

func (m *mockBackend) MyMovies(_ context.Context, _ string) ([]api.SavedMovie, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := make([]api.SavedMovie, len(m.rows))
	copy(rows, m.rows)
	return rows, nil
}

func (m *mockBackend) SaveMovie(_ context.Context, _ string, movie api.SavedMovie) error {
	m.mu.Lock()
	gate := m.saveGate
	m.mu.Unlock()
	if gate != nil {
		<-gate
	}
	m.mu.Lock()
	m.payloads = append(m.payloads, movie)
	err := m.saveErr
	done := m.saveDone
	m.mu.Unlock()
	if done != nil {
		done <- movie
	}
	return err
}

func (m *mockBackend) Recommendations(_ context.Context, _ string) (*api.Recommendations, error) {
	return m.recs, m.recErr
}

type mockMeta struct {
	mu       sync.Mutex
	byID     map[string]*omdb.MovieRecord
	idErr    error
	idCalls  []string
	searches map[string][]omdb.MovieRecord
}

func (m *mockMeta) GetByID(_ context.Context, id string) (*omdb.MovieRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.idCalls = append(m.idCalls, id)
	if m.idErr != nil {
		return nil, m.idErr
	}
	return m.byID[id], nil
}

func (m *mockMeta) Search(_ context.Context, query string) ([]omdb.MovieRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.searches[query], nil
}

func (m *mockMeta) idCallCount(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.idCalls {
		if c == id {
			n++
		}
	}
	return n
}

type mockSink struct {
	ch chan notification.Event
}

func newMockSink() *mockSink {
	return &mockSink{ch: make(chan notification.Event, 16)}
}

func (m *mockSink) Notify(e notification.Event) {
	m.ch <- e
}

func (m *mockSink) wait(t *testing.T, level notification.Level) notification.Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case e := <-m.ch:
			if e.Level == level {
				return e
			}
		case <-deadline:
			t.Fatalf("no %v notification in time", level)
		}
	}
}

func waitSave(t *testing.T, done <-chan api.SavedMovie) api.SavedMovie {
	t.Helper()
	select {
	case m := <-done:
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("persistence call did not happen in time")
		return api.SavedMovie{}
	}
}

func newTestSession(b *mockBackend, m *mockMeta, sink notification.Sink, opts *Options) *Session {
	if opts == nil {
		opts = &Options{}
	}
	if opts.PersistTimeout == 0 {
		opts.PersistTimeout = time.Second
	}
	if opts.Debounce == 0 {
		opts.Debounce = 5 * time.Millisecond
	}
	return NewSession("token", b, m, sink, opts)
}

// --- Tests ---

func TestSession_FlagsAreMutuallyExclusive(t *testing.T) {
	b := &mockBackend{saveDone: make(chan api.SavedMovie, 16)}
	m := &mockMeta{}
	s := newTestSession(b, m, nil, nil)

	mv := reconcile.MovieView{ID: "tt1", Title: "Inception", Genre: "Sci-Fi"}

	toggles := []func(reconcile.MovieView) reconcile.MovieView{
		s.ToggleWatchlist,
		s.ToggleWatched,
		s.ToggleWatchlist,
		s.ToggleWatched,
		s.ToggleWatched,
		s.ToggleWatchlist,
	}
	for i, toggle := range toggles {
		mv = toggle(mv)
		if mv.OnWatchlist && mv.IsWatched {
			t.Fatalf("after call %d both flags are true", i)
		}
		payload := waitSave(t, b.saveDone)
		if payload.OnWatchlist && payload.IsWatched {
			t.Fatalf("after call %d persisted payload has both flags true", i)
		}
	}
}

func TestSession_ToggleWatchlistForcesWatchedOff(t *testing.T) {
	b := &mockBackend{
		rows:     []api.SavedMovie{{Title: "Heat", Genre: "Crime", IsWatched: true}},
		saveDone: make(chan api.SavedMovie, 1),
	}
	s := newTestSession(b, &mockMeta{}, nil, nil)
	if err := s.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}

	mv := s.ToggleWatchlist(reconcile.MovieView{ID: "tt2", Title: "Heat", Genre: "Crime", IsWatched: true})

	if !mv.OnWatchlist || mv.IsWatched {
		t.Errorf("flags = (%v, %v), want (true, false)", mv.OnWatchlist, mv.IsWatched)
	}
	payload := waitSave(t, b.saveDone)
	if !payload.OnWatchlist || payload.IsWatched {
		t.Errorf("payload flags = (%v, %v), want (true, false)", payload.OnWatchlist, payload.IsWatched)
	}
}

func TestSession_ToggleWatchedOffLeavesWatchlistAlone(t *testing.T) {
	b := &mockBackend{
		rows:     []api.SavedMovie{{Title: "Alien", IsWatched: true}},
		saveDone: make(chan api.SavedMovie, 1),
	}
	s := newTestSession(b, &mockMeta{}, nil, nil)
	if err := s.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}

	mv := s.ToggleWatched(reconcile.MovieView{ID: "tt3", Title: "Alien", IsWatched: true})

	if mv.IsWatched || mv.OnWatchlist {
		t.Errorf("flags = (%v, %v), want (false, false)", mv.OnWatchlist, mv.IsWatched)
	}
}

func TestSession_UnknownGenreResolvedBeforePersist(t *testing.T) {
	b := &mockBackend{saveDone: make(chan api.SavedMovie, 1)}
	m := &mockMeta{
		byID: map[string]*omdb.MovieRecord{
			"tt4": {ID: "tt4", Title: "Dune", Genre: "Adventure, Sci-Fi"},
		},
	}
	s := newTestSession(b, m, nil, nil)

	s.ToggleWatchlist(reconcile.MovieView{ID: "tt4", Title: "Dune", Genre: omdb.UnknownGenre})

	payload := waitSave(t, b.saveDone)
	if payload.Genre != "Adventure, Sci-Fi" {
		t.Errorf("payload genre = %q, want resolved genre", payload.Genre)
	}
	if got := m.idCallCount("tt4"); got != 1 {
		t.Errorf("metadata lookups = %d, want exactly 1", got)
	}
}

func TestSession_GenreLookupFailureSendsUnknown(t *testing.T) {
	b := &mockBackend{saveDone: make(chan api.SavedMovie, 1)}
	m := &mockMeta{idErr: context.DeadlineExceeded}
	s := newTestSession(b, m, nil, nil)

	s.ToggleWatchlist(reconcile.MovieView{ID: "tt5", Title: "Solaris", Genre: ""})

	payload := waitSave(t, b.saveDone)
	if payload.Genre != omdb.UnknownGenre {
		t.Errorf("payload genre = %q, want %q", payload.Genre, omdb.UnknownGenre)
	}
}

func TestSession_KnownGenreSkipsLookup(t *testing.T) {
	b := &mockBackend{saveDone: make(chan api.SavedMovie, 1)}
	m := &mockMeta{}
	s := newTestSession(b, m, nil, nil)

	s.ToggleWatchlist(reconcile.MovieView{ID: "tt6", Title: "Heat", Genre: "Crime"})

	waitSave(t, b.saveDone)
	if got := m.idCallCount("tt6"); got != 0 {
		t.Errorf("metadata lookups = %d, want 0", got)
	}
}

func TestSession_PersistFailureNotifiesAndDrifts(t *testing.T) {
	b := &mockBackend{
		saveErr:  context.DeadlineExceeded,
		saveDone: make(chan api.SavedMovie, 1),
	}
	sink := newMockSink()
	s := newTestSession(b, &mockMeta{}, sink, nil)

	s.ToggleWatchlist(reconcile.MovieView{ID: "tt7", Title: "Tenet", Genre: "Action"})

	waitSave(t, b.saveDone)
	e := sink.wait(t, notification.LevelError)
	if e.Title != "Tenet" {
		t.Errorf("event title = %q, want %q", e.Title, "Tenet")
	}

	// the optimistic flip stays under the default drift policy
	views := s.Watchlist()
	if len(views) != 1 || views[0].Title != "Tenet" {
		t.Errorf("optimistic state lost after failed persist: %+v", views)
	}
}

func TestSession_PersistFailureRollsBackUnderRollbackPolicy(t *testing.T) {
	b := &mockBackend{
		saveErr:  context.DeadlineExceeded,
		saveDone: make(chan api.SavedMovie, 1),
	}
	sink := newMockSink()
	s := newTestSession(b, &mockMeta{}, sink, &Options{Policy: PolicyRollback})

	s.ToggleWatchlist(reconcile.MovieView{ID: "tt8", Title: "Arrival", Genre: "Sci-Fi"})

	waitSave(t, b.saveDone)
	sink.wait(t, notification.LevelError)

	if views := s.Watchlist(); len(views) != 0 {
		t.Errorf("expected rollback, still on watchlist: %+v", views)
	}
}

func TestSession_RefreshKeepsPendingWrites(t *testing.T) {
	gate := make(chan struct{})
	b := &mockBackend{
		rows:     []api.SavedMovie{{Title: "Heat", OnWatchlist: false}},
		saveGate: gate,
		saveDone: make(chan api.SavedMovie, 1),
	}
	s := newTestSession(b, &mockMeta{}, nil, nil)
	if err := s.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}

	// optimistic write still in flight, backend snapshot is stale
	s.ToggleWatchlist(reconcile.MovieView{ID: "tt9", Title: "Heat", Genre: "Crime"})
	if err := s.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}

	views := s.Watchlist()
	if len(views) != 1 || views[0].Title != "Heat" {
		t.Fatalf("refresh reverted a pending optimistic write: %+v", views)
	}

	close(gate)
	waitSave(t, b.saveDone)
}

func TestSession_SetRatingKeepsLocalFlags(t *testing.T) {
	b := &mockBackend{
		rows:     []api.SavedMovie{{Title: "Heat", IsWatched: true, Rating: 0}},
		saveDone: make(chan api.SavedMovie, 1),
	}
	s := newTestSession(b, &mockMeta{}, nil, nil)
	if err := s.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}

	mv := s.SetRating(reconcile.MovieView{ID: "tt10", Title: "Heat", Genre: "Crime", IsWatched: true}, 8)

	if mv.UserRating != 8 {
		t.Errorf("UserRating = %d, want 8", mv.UserRating)
	}
	payload := waitSave(t, b.saveDone)
	if payload.Rating != 8 {
		t.Errorf("payload rating = %d, want 8", payload.Rating)
	}
	if !payload.IsWatched {
		t.Error("payload lost the watched flag")
	}
}

func TestSession_SetRatingClampsRange(t *testing.T) {
	b := &mockBackend{saveDone: make(chan api.SavedMovie, 2)}
	s := newTestSession(b, &mockMeta{}, nil, nil)

	mv := s.SetRating(reconcile.MovieView{ID: "tt11", Title: "Up", Genre: "Animation"}, 15)
	if mv.UserRating != 10 {
		t.Errorf("UserRating = %d, want 10", mv.UserRating)
	}
	waitSave(t, b.saveDone)

	mv = s.SetRating(mv, -3)
	if mv.UserRating != 0 {
		t.Errorf("UserRating = %d, want 0", mv.UserRating)
	}
	waitSave(t, b.saveDone)
}
