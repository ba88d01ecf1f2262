package api

// SavedMovie is one per-title row of the caller's persisted state.
// The backend owns these rows; the client only holds a cached copy.
type SavedMovie struct {
	ID          int64  `json:"id,omitempty"`
	Title       string `json:"title"`
	PosterURL   string `json:"poster_url"`
	Genre       string `json:"genre"`
	OnWatchlist bool   `json:"on_watchlist"`
	IsWatched   bool   `json:"is_watched"`
	Rating      int    `json:"rating"`
}

// Recommendations is the payload of the backend recommendation endpoint:
// the caller's favorite genre plus a set of external catalog ids to show.
type Recommendations struct {
	Genre    string   `json:"genre"`
	MovieIDs []string `json:"movies"`
}

// TokenPair is issued by the backend on login.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}
