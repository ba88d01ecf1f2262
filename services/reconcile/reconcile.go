package reconcile

import (
	"github.com/cinevault-io/web-ui/services/api"
	"github.com/cinevault-io/web-ui/services/omdb"
)

// MovieView is the unified per-movie shape every display surface
// consumes. Views are ephemeral and recomputed on every pass; they are
// a pure function of (catalog record, saved row or absent).
type MovieView struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	PosterURL   string `json:"posterUrl"`
	Rating      string `json:"rating"`
	Genre       string `json:"genre"`
	OnWatchlist bool   `json:"onWatchlist"`
	IsWatched   bool   `json:"isWatched"`
	UserRating  int    `json:"userRating"`
}

// KeyStrategy decides whether a catalog record and a saved row refer to
// the same movie. The backend keys rows by title, so the default is an
// exact title match. Known limitation: two distinct catalog entries with
// identical titles collapse into one entity under TitleKey; swapping in
// an id-based strategy is the intended hardening path.
type KeyStrategy interface {
	SameEntity(externalTitle, savedTitle string) bool
}

// TitleKey matches titles exactly, case-sensitively.
type TitleKey struct{}

func (TitleKey) SameEntity(externalTitle, savedTitle string) bool {
	return externalTitle == savedTitle
}

// Merge joins catalog records with the caller's saved rows. For each
// record the first matching row supplies the flags, user rating and
// genre (a saved genre wins over the raw catalog genre, it may have
// been resolved more precisely); absent a row the record falls back to
// unflagged defaults. Output order follows the input records. Merge has
// no side effects and is safe to call on every render.
func Merge(external []omdb.MovieRecord, saved []api.SavedMovie, key KeyStrategy) []MovieView {
	if key == nil {
		key = TitleKey{}
	}
	views := make([]MovieView, len(external))
	for i, m := range external {
		v := MovieView{
			ID:        m.ID,
			Title:     m.Title,
			PosterURL: m.PosterURL,
			Rating:    m.Rating,
			Genre:     m.Genre,
		}
		for _, s := range saved {
			if !key.SameEntity(m.Title, s.Title) {
				continue
			}
			v.Genre = s.Genre
			v.OnWatchlist = s.OnWatchlist
			v.IsWatched = s.IsWatched
			v.UserRating = s.Rating
			break
		}
		views[i] = v
	}
	return views
}
