package library

import (
	"strings"
	"sync"
	"time"

	"github.com/urfave/cli"

	"github.com/cinevault-io/web-ui/services/notification"
	"github.com/cinevault-io/web-ui/services/reconcile"
)

const (
	topMovieIDsFlag    = "top-movie-ids"
	persistPolicyFlag  = "persist-policy"
	searchDebounceFlag = "search-debounce"
)

func RegisterFlags(f []cli.Flag) []cli.Flag {
	return append(f,
		cli.StringFlag{
			Name:   topMovieIDsFlag,
			Usage:  "comma-separated catalog ids of the curated top picks",
			Value:  "tt0468569,tt1375666,tt0133093,tt0068646,tt0109830,tt0111161,tt0816692,tt0110912",
			EnvVar: "TOP_MOVIE_IDS",
		},
		cli.StringFlag{
			Name:   persistPolicyFlag,
			Usage:  "what to do with optimistic state when persistence fails (drift|rollback)",
			Value:  string(PolicyDrift),
			EnvVar: "PERSIST_POLICY",
		},
		cli.DurationFlag{
			Name:   searchDebounceFlag,
			Usage:  "search input quiescence window",
			Value:  500 * time.Millisecond,
			EnvVar: "SEARCH_DEBOUNCE",
		},
	)
}

// Sessions hands out one Session per access token. Each session gets
// its own notification buffer chained to the shared sink. Dropping a
// token tears its session state down (logout).
type Sessions struct {
	backend Backend
	meta    Metadata
	sink    notification.Sink
	opts    Options

	mu       sync.Mutex
	sessions map[string]*sessionEntry
}

type sessionEntry struct {
	sess *Session
	buf  *notification.Buffer
}

func NewSessions(c *cli.Context, backend Backend, meta Metadata, sink notification.Sink) *Sessions {
	var ids []string
	for _, id := range strings.Split(c.String(topMovieIDsFlag), ",") {
		id = strings.TrimSpace(id)
		if id != "" {
			ids = append(ids, id)
		}
	}
	return &Sessions{
		backend: backend,
		meta:    meta,
		sink:    sink,
		opts: Options{
			Key:      reconcile.TitleKey{},
			Policy:   PersistPolicy(c.String(persistPolicyFlag)),
			TopIDs:   ids,
			Debounce: c.Duration(searchDebounceFlag),
		},
		sessions: map[string]*sessionEntry{},
	}
}

func (s *Sessions) Get(token string) *Session {
	sess, _ := s.entry(token)
	return sess
}

// Notifications drains the pending events of the token's session.
func (s *Sessions) Notifications(token string) []notification.Event {
	_, buf := s.entry(token)
	return buf.Drain()
}

func (s *Sessions) entry(token string) (*Session, *notification.Buffer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.sessions[token]; ok {
		return e.sess, e.buf
	}
	buf := notification.NewBuffer(100, s.sink)
	opts := s.opts
	e := &sessionEntry{
		sess: NewSession(token, s.backend, s.meta, buf, &opts),
		buf:  buf,
	}
	s.sessions[token] = e
	return e.sess, e.buf
}

// Drop discards the token's session state.
func (s *Sessions) Drop(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
}
