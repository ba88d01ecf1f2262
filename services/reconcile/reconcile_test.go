package reconcile

import (
	"testing"

	"github.com/cinevault-io/web-ui/services/api"
	"github.com/cinevault-io/web-ui/services/omdb"
)

func TestMerge_CopiesSavedFlagsVerbatim(t *testing.T) {
	external := []omdb.MovieRecord{
		{ID: "tt1", Title: "Inception", Rating: "8.8", PosterURL: "p1", Genre: "Action, Sci-Fi"},
	}
	saved := []api.SavedMovie{
		{Title: "Inception", Genre: "Sci-Fi", OnWatchlist: true, IsWatched: false, Rating: 9},
	}

	views := Merge(external, saved, nil)

	if len(views) != 1 {
		t.Fatalf("expected 1 view, got %d", len(views))
	}
	v := views[0]
	if !v.OnWatchlist || v.IsWatched {
		t.Errorf("flags = (%v, %v), want (true, false)", v.OnWatchlist, v.IsWatched)
	}
	if v.UserRating != 9 {
		t.Errorf("UserRating = %d, want 9", v.UserRating)
	}
	if v.Genre != "Sci-Fi" {
		t.Errorf("Genre = %q, want saved genre %q", v.Genre, "Sci-Fi")
	}
	if v.Rating != "8.8" {
		t.Errorf("Rating = %q, want external rating %q", v.Rating, "8.8")
	}
}

func TestMerge_FallsBackWhenNoSavedRow(t *testing.T) {
	external := []omdb.MovieRecord{
		{ID: "tt2", Title: "Heat", Rating: "8.3", Genre: "Crime, Drama"},
	}

	views := Merge(external, nil, nil)

	v := views[0]
	if v.OnWatchlist || v.IsWatched {
		t.Errorf("flags = (%v, %v), want (false, false)", v.OnWatchlist, v.IsWatched)
	}
	if v.UserRating != 0 {
		t.Errorf("UserRating = %d, want 0", v.UserRating)
	}
	if v.Genre != "Crime, Drama" {
		t.Errorf("Genre = %q, want external genre", v.Genre)
	}
}

func TestMerge_TitleMatchIsCaseSensitive(t *testing.T) {
	external := []omdb.MovieRecord{
		{ID: "tt3", Title: "Alien"},
	}
	saved := []api.SavedMovie{
		{Title: "alien", OnWatchlist: true},
	}

	views := Merge(external, saved, nil)

	if views[0].OnWatchlist {
		t.Error("case-insensitive match applied, want exact title match")
	}
}

func TestMerge_OutputOrderFollowsExternalList(t *testing.T) {
	external := []omdb.MovieRecord{
		{ID: "tt4", Title: "C"},
		{ID: "tt5", Title: "A"},
		{ID: "tt6", Title: "B"},
	}

	views := Merge(external, nil, nil)

	want := []string{"C", "A", "B"}
	for i, v := range views {
		if v.Title != want[i] {
			t.Errorf("views[%d].Title = %q, want %q", i, v.Title, want[i])
		}
	}
}

type idSuffixKey struct{}

func (idSuffixKey) SameEntity(a, b string) bool {
	return a == b || a == b+" (remaster)"
}

func TestMerge_PluggableKeyStrategy(t *testing.T) {
	external := []omdb.MovieRecord{
		{ID: "tt7", Title: "Blade Runner (remaster)"},
	}
	saved := []api.SavedMovie{
		{Title: "Blade Runner", IsWatched: true},
	}

	views := Merge(external, saved, idSuffixKey{})

	if !views[0].IsWatched {
		t.Error("custom key strategy not applied")
	}
}
