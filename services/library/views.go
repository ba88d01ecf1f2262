package library

import (
	"strconv"

	"github.com/cinevault-io/web-ui/services/api"
	"github.com/cinevault-io/web-ui/services/reconcile"
)

// EmptyHomeMessage is shown when everything worth suggesting has
// already been watched. An empty grid with no feedback is not allowed.
const EmptyHomeMessage = "Wow! You've seen all our top picks. Check back later for more!"

type HomeView struct {
	FavoriteGenre string                `json:"favoriteGenre,omitempty"`
	Recommended   []reconcile.MovieView `json:"recommended"`
	Top           []reconcile.MovieView `json:"top"`
	EmptyMessage  string                `json:"emptyMessage,omitempty"`
}

type SearchView struct {
	Query  string                `json:"query"`
	State  string                `json:"state"`
	Movies []reconcile.MovieView `json:"movies"`
}

// Home joins the curated and recommended records with the saved
// collection and hides everything already watched.
func (s *Session) Home() HomeView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	hv := HomeView{
		FavoriteGenre: s.favGenre,
		Recommended:   filterUnwatched(reconcile.Merge(s.rec, s.saved, s.key)),
		Top:           filterUnwatched(reconcile.Merge(s.top, s.saved, s.key)),
	}
	if s.topLoaded && len(s.top) > 0 && len(hv.Top) == 0 && len(hv.Recommended) == 0 {
		hv.EmptyMessage = EmptyHomeMessage
	}
	return hv
}

// Watchlist projects the saved rows flagged for the watchlist. No
// catalog join is needed, a saved row already carries poster, genre and
// rating.
func (s *Session) Watchlist() []reconcile.MovieView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var views []reconcile.MovieView
	for _, m := range s.saved {
		if !m.OnWatchlist {
			continue
		}
		views = append(views, viewFromSaved(m))
	}
	return views
}

// Watched projects the saved rows flagged as watched.
func (s *Session) Watched() []reconcile.MovieView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var views []reconcile.MovieView
	for _, m := range s.saved {
		if !m.IsWatched {
			continue
		}
		views = append(views, viewFromSaved(m))
	}
	return views
}

// SearchResults joins the latest settled search results with the saved
// collection.
func (s *Session) SearchResults() SearchView {
	last, state := s.deb.Last()
	s.mu.RLock()
	defer s.mu.RUnlock()
	return SearchView{
		Query:  last.Query,
		State:  state.String(),
		Movies: reconcile.Merge(last.Movies, s.saved, s.key),
	}
}

func filterUnwatched(views []reconcile.MovieView) []reconcile.MovieView {
	out := make([]reconcile.MovieView, 0, len(views))
	for _, v := range views {
		if v.IsWatched {
			continue
		}
		out = append(out, v)
	}
	return out
}

func viewFromSaved(m api.SavedMovie) reconcile.MovieView {
	return reconcile.MovieView{
		ID:          strconv.FormatInt(m.ID, 10),
		Title:       m.Title,
		PosterURL:   m.PosterURL,
		Rating:      strconv.Itoa(m.Rating),
		Genre:       m.Genre,
		OnWatchlist: m.OnWatchlist,
		IsWatched:   m.IsWatched,
		UserRating:  m.Rating,
	}
}
