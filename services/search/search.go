package search

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/cinevault-io/web-ui/services/omdb"
)

// Searcher is the slice of the metadata client the debouncer needs.
type Searcher interface {
	Search(ctx context.Context, query string) ([]omdb.MovieRecord, error)
}

type State int

const (
	Idle State = iota
	Pending
	InFlight
	Settled
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case InFlight:
		return "in-flight"
	case Settled:
		return "settled"
	}
	return "idle"
}

// Results is the outcome of the most recently settled query.
type Results struct {
	Query  string             `json:"query"`
	Movies []omdb.MovieRecord `json:"movies"`
}

// Debouncer sequences free-text input into at most one catalog query
// per quiescence window. Every input restarts the delay timer, so only
// the last keystroke of a burst reaches the catalog. Each input gets a
// monotonically increasing sequence number and a response is accepted
// only if its number still matches the latest issued, so a superseded
// in-flight call can never overwrite newer results.
type Debouncer struct {
	mu       sync.Mutex
	searcher Searcher
	delay    time.Duration
	timeout  time.Duration
	timer    *time.Timer
	seq      uint64
	state    State
	last     Results
	onSettle func(Results)
}

func NewDebouncer(s Searcher, delay time.Duration) *Debouncer {
	return &Debouncer{
		searcher: s,
		delay:    delay,
		timeout:  10 * time.Second,
	}
}

// WithOnSettle registers a callback invoked after every settle, outside
// the debouncer lock.
func (d *Debouncer) WithOnSettle(fn func(Results)) *Debouncer {
	d.onSettle = fn
	return d
}

// Input registers a keystroke. Empty input settles immediately with an
// empty result set and never reaches the catalog.
func (d *Debouncer) Input(query string) {
	d.mu.Lock()
	d.seq++
	seq := d.seq
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	if query == "" {
		d.state = Settled
		d.last = Results{}
		cb := d.onSettle
		last := d.last
		d.mu.Unlock()
		if cb != nil {
			cb(last)
		}
		return
	}
	d.state = Pending
	d.timer = time.AfterFunc(d.delay, func() {
		d.fire(seq, query)
	})
	d.mu.Unlock()
}

func (d *Debouncer) fire(seq uint64, query string) {
	d.mu.Lock()
	if seq != d.seq {
		d.mu.Unlock()
		return
	}
	d.state = InFlight
	d.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	movies, err := d.searcher.Search(ctx, query)
	if err != nil {
		// transport failure degrades to "no results"
		log.WithError(err).WithField("query", query).Warn("search failed")
		movies = nil
	}

	d.mu.Lock()
	if seq != d.seq {
		// a newer keystroke superseded this call, discard
		d.mu.Unlock()
		return
	}
	d.state = Settled
	d.last = Results{Query: query, Movies: movies}
	cb := d.onSettle
	last := d.last
	d.mu.Unlock()
	if cb != nil {
		cb(last)
	}
}

// Last reports the latest settled results and the current state.
func (d *Debouncer) Last() (Results, State) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last, d.state
}
