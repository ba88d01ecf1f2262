package library

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/cinevault-io/web-ui/services/api"
	"github.com/cinevault-io/web-ui/services/notification"
	"github.com/cinevault-io/web-ui/services/omdb"
	"github.com/cinevault-io/web-ui/services/reconcile"
	"github.com/cinevault-io/web-ui/services/search"
)

// Backend is the slice of the persisted-state client a session needs.
type Backend interface {
	MyMovies(ctx context.Context, token string) ([]api.SavedMovie, error)
	SaveMovie(ctx context.Context, token string, m api.SavedMovie) error
	Recommendations(ctx context.Context, token string) (*api.Recommendations, error)
}

var _ Backend = (*api.Client)(nil)

// Metadata is the slice of the catalog client a session needs.
type Metadata interface {
	GetByID(ctx context.Context, id string) (*omdb.MovieRecord, error)
	Search(ctx context.Context, query string) ([]omdb.MovieRecord, error)
}

var _ Metadata = (*omdb.Api)(nil)

// PersistPolicy decides what happens to optimistic local state when the
// persistence call behind it fails.
type PersistPolicy string

const (
	// PolicyDrift keeps the optimistic value and accepts that local
	// state may drift from the backend record.
	PolicyDrift PersistPolicy = "drift"
	// PolicyRollback restores the pre-mutation value unless a newer
	// mutation on the same title is still pending.
	PolicyRollback PersistPolicy = "rollback"
)

type Options struct {
	Key            reconcile.KeyStrategy
	Policy         PersistPolicy
	TopIDs         []string
	Debounce       time.Duration
	PersistTimeout time.Duration
}

// Session is the per-user state hub: the cached saved-state collection,
// the session-scoped catalog caches and the search debouncer. The saved
// collection is the source of truth for per-title flags; it is mutated
// only by a full refresh and by local optimistic mutations.
type Session struct {
	token          string
	backend        Backend
	meta           Metadata
	sink           notification.Sink
	key            reconcile.KeyStrategy
	policy         PersistPolicy
	topIDs         []string
	persistTimeout time.Duration

	deb *search.Debouncer

	mu        sync.RWMutex
	saved     []api.SavedMovie
	pending   map[string]int
	top       []omdb.MovieRecord
	topLoaded bool
	rec       []omdb.MovieRecord
	favGenre  string
}

func NewSession(token string, backend Backend, meta Metadata, sink notification.Sink, opts *Options) *Session {
	if opts == nil {
		opts = &Options{}
	}
	key := opts.Key
	if key == nil {
		key = reconcile.TitleKey{}
	}
	policy := opts.Policy
	if policy == "" {
		policy = PolicyDrift
	}
	debounce := opts.Debounce
	if debounce == 0 {
		debounce = 500 * time.Millisecond
	}
	persistTimeout := opts.PersistTimeout
	if persistTimeout == 0 {
		persistTimeout = 30 * time.Second
	}
	if sink == nil {
		sink = notification.Log{}
	}
	return &Session{
		token:          token,
		backend:        backend,
		meta:           meta,
		sink:           sink,
		key:            key,
		policy:         policy,
		topIDs:         opts.TopIDs,
		persistTimeout: persistTimeout,
		deb:            search.NewDebouncer(meta, debounce),
		pending:        map[string]int{},
	}
}

// Refresh replaces the cached saved-state collection with a fresh pull
// from the backend. A title with an unacknowledged optimistic write
// keeps its local row, so a refresh racing a pending persist cannot
// silently revert it.
func (s *Session) Refresh(ctx context.Context) error {
	rows, err := s.backend.MyMovies(ctx, s.token)
	if err != nil {
		return errors.Wrap(err, "failed to refresh saved movies")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	merged := make([]api.SavedMovie, 0, len(rows))
	seen := make(map[string]bool, len(rows))
	for _, r := range rows {
		if s.pending[r.Title] > 0 {
			if i := s.findLocked(r.Title); i >= 0 {
				r = s.saved[i]
			}
		}
		merged = append(merged, r)
		seen[r.Title] = true
	}
	for _, l := range s.saved {
		if s.pending[l.Title] > 0 && !seen[l.Title] {
			merged = append(merged, l)
		}
	}
	s.saved = merged
	return nil
}

// LoadTop fetches the curated top-picks records. The list is fetched
// once and kept for the whole session; it is never refetched while
// non-empty.
func (s *Session) LoadTop(ctx context.Context) {
	s.mu.RLock()
	loaded := len(s.top) > 0
	s.mu.RUnlock()
	if loaded {
		return
	}
	records := s.fetchByIDs(ctx, s.topIDs)
	s.mu.Lock()
	s.top = records
	s.topLoaded = true
	s.mu.Unlock()
}

// LoadRecommendations pulls the recommendation payload and resolves its
// ids through the catalog. Failures degrade to an empty list.
func (s *Session) LoadRecommendations(ctx context.Context) {
	rec, err := s.backend.Recommendations(ctx, s.token)
	if err != nil {
		log.WithError(err).Warn("failed to fetch recommendations")
		return
	}
	records := s.fetchByIDs(ctx, rec.MovieIDs)
	s.mu.Lock()
	s.favGenre = rec.Genre
	s.rec = records
	s.mu.Unlock()
}

func (s *Session) fetchByIDs(ctx context.Context, ids []string) []omdb.MovieRecord {
	found := make([]*omdb.MovieRecord, len(ids))
	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			m, err := s.meta.GetByID(ctx, id)
			if err != nil {
				log.WithError(err).WithField("id", id).Warn("failed to fetch movie")
				return
			}
			found[i] = m
		}(i, id)
	}
	wg.Wait()
	records := make([]omdb.MovieRecord, 0, len(ids))
	for _, m := range found {
		if m != nil {
			records = append(records, *m)
		}
	}
	return records
}

// ToggleWatchlist flips the watchlist flag of one movie. The local copy
// changes synchronously; turning the flag on forces the watched flag
// off. Persistence runs in the background and is never awaited.
func (s *Session) ToggleWatchlist(mv reconcile.MovieView) reconcile.MovieView {
	s.mu.Lock()
	row, prev := s.upsertLocked(mv)
	next := !row.OnWatchlist
	row.OnWatchlist = next
	if next {
		row.IsWatched = false
	}
	eff := *row
	s.pending[row.Title]++
	s.mu.Unlock()

	if next {
		s.sink.Notify(notification.NewEvent(notification.LevelSuccess, mv.Title, "Added to watchlist"))
	} else {
		s.sink.Notify(notification.NewEvent(notification.LevelInfo, mv.Title, "Removed from watchlist"))
	}
	go s.persist(mv.ID, eff, prev)
	return viewFromRow(mv, eff)
}

// ToggleWatched flips the watched flag; turning it on forces the
// watchlist flag off. Toggling it off leaves the watchlist flag alone.
func (s *Session) ToggleWatched(mv reconcile.MovieView) reconcile.MovieView {
	s.mu.Lock()
	row, prev := s.upsertLocked(mv)
	next := !row.IsWatched
	row.IsWatched = next
	if next {
		row.OnWatchlist = false
	}
	eff := *row
	s.pending[row.Title]++
	s.mu.Unlock()

	if next {
		s.sink.Notify(notification.NewEvent(notification.LevelSuccess, mv.Title, "Marked as watched"))
	}
	go s.persist(mv.ID, eff, prev)
	return viewFromRow(mv, eff)
}

// SetRating records the user's rating. Flags stay untouched; the
// persistence payload still carries them so the backend row stays
// consistent under its upsert-by-title contract.
func (s *Session) SetRating(mv reconcile.MovieView, value int) reconcile.MovieView {
	if value < 0 {
		value = 0
	}
	if value > 10 {
		value = 10
	}
	s.mu.Lock()
	row, prev := s.upsertLocked(mv)
	row.Rating = value
	eff := *row
	s.pending[row.Title]++
	s.mu.Unlock()

	go s.persist(mv.ID, eff, prev)
	return viewFromRow(mv, eff)
}

// upsertLocked finds the saved row for a view or creates one on first
// mutation. Returns the live row plus a pre-mutation snapshot.
func (s *Session) upsertLocked(mv reconcile.MovieView) (*api.SavedMovie, api.SavedMovie) {
	if i := s.findLocked(mv.Title); i >= 0 {
		return &s.saved[i], s.saved[i]
	}
	row := api.SavedMovie{
		Title:       mv.Title,
		PosterURL:   mv.PosterURL,
		Genre:       mv.Genre,
		OnWatchlist: mv.OnWatchlist,
		IsWatched:   mv.IsWatched,
		Rating:      mv.UserRating,
	}
	s.saved = append(s.saved, row)
	return &s.saved[len(s.saved)-1], row
}

func (s *Session) findLocked(title string) int {
	for i, m := range s.saved {
		if s.key.SameEntity(title, m.Title) {
			return i
		}
	}
	return -1
}

// persist sends the effective post-invariant row to the backend. An
// unknown genre is resolved by one catalog lookup first, falling back
// to the Unknown sentinel. The call is best effort: failure is surfaced
// only as a notification, and local state is rolled back only under
// PolicyRollback when no newer write on the title is pending.
func (s *Session) persist(externalID string, eff, prev api.SavedMovie) {
	ctx, cancel := context.WithTimeout(context.Background(), s.persistTimeout)
	defer cancel()
	if eff.Genre == "" || eff.Genre == omdb.UnknownGenre {
		eff.Genre = s.resolveGenre(ctx, externalID)
		s.mu.Lock()
		if i := s.findLocked(eff.Title); i >= 0 {
			s.saved[i].Genre = eff.Genre
		}
		s.mu.Unlock()
	}
	err := s.backend.SaveMovie(ctx, s.token, eff)
	s.mu.Lock()
	s.pending[eff.Title]--
	if s.pending[eff.Title] <= 0 {
		delete(s.pending, eff.Title)
	}
	if err != nil && s.policy == PolicyRollback && s.pending[eff.Title] == 0 {
		if i := s.findLocked(eff.Title); i >= 0 {
			s.saved[i] = prev
		}
	}
	s.mu.Unlock()
	if err != nil {
		log.WithError(err).WithField("title", eff.Title).Error("failed to persist movie state")
		s.sink.Notify(notification.NewEvent(notification.LevelError, eff.Title, "Failed to save!"))
	}
}

func (s *Session) resolveGenre(ctx context.Context, externalID string) string {
	if externalID == "" {
		return omdb.UnknownGenre
	}
	m, err := s.meta.GetByID(ctx, externalID)
	if err != nil || m == nil || m.Genre == "" {
		if err != nil {
			log.WithError(err).WithField("id", externalID).Warn("failed to resolve genre")
		}
		return omdb.UnknownGenre
	}
	return m.Genre
}

// SearchInput feeds one keystroke into the session's debouncer.
func (s *Session) SearchInput(query string) {
	s.deb.Input(query)
}

func viewFromRow(mv reconcile.MovieView, row api.SavedMovie) reconcile.MovieView {
	mv.Genre = row.Genre
	mv.OnWatchlist = row.OnWatchlist
	mv.IsWatched = row.IsWatched
	mv.UserRating = row.Rating
	return mv
}
