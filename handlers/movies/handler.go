package movies

import (
	"net/http"
	"sync"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/cinevault-io/web-ui/services/auth"
	"github.com/cinevault-io/web-ui/services/library"
	"github.com/cinevault-io/web-ui/services/reconcile"
)

type Handler struct {
	sessions *library.Sessions
}

func RegisterHandler(r *gin.Engine, sessions *library.Sessions) {
	h := &Handler{
		sessions: sessions,
	}
	gr := r.Group("/api")
	gr.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST"},
		AllowHeaders:     []string{"Content-Type"},
		AllowCredentials: false,
	}))
	gr.GET("/home", h.home)
	gr.GET("/watchlist", h.watchlist)
	gr.GET("/watched", h.watched)
	gr.GET("/search", h.search)
	gr.POST("/movies/watchlist", h.toggleWatchlist)
	gr.POST("/movies/watched", h.toggleWatched)
	gr.POST("/movies/rating", h.setRating)
	gr.GET("/notifications", h.notifications)
}

func (s *Handler) session(c *gin.Context) *library.Session {
	u := auth.GetUserFromContext(c)
	if !u.HasAuth() {
		c.Status(http.StatusForbidden)
		return nil
	}
	return s.sessions.Get(u.Token)
}

// home refreshes the three independent data streams concurrently and
// returns the derived home view. Fetch failures degrade to whatever
// state the session already holds.
func (s *Handler) home(c *gin.Context) {
	sess := s.session(c)
	if sess == nil {
		return
	}
	ctx := c.Request.Context()
	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		if err := sess.Refresh(ctx); err != nil {
			log.WithError(err).Warn("failed to refresh saved movies")
		}
	}()
	go func() {
		defer wg.Done()
		sess.LoadTop(ctx)
	}()
	go func() {
		defer wg.Done()
		sess.LoadRecommendations(ctx)
	}()
	wg.Wait()
	c.JSON(http.StatusOK, sess.Home())
}

func (s *Handler) watchlist(c *gin.Context) {
	sess := s.session(c)
	if sess == nil {
		return
	}
	if err := sess.Refresh(c.Request.Context()); err != nil {
		log.WithError(err).Warn("failed to refresh saved movies")
	}
	c.JSON(http.StatusOK, sess.Watchlist())
}

func (s *Handler) watched(c *gin.Context) {
	sess := s.session(c)
	if sess == nil {
		return
	}
	if err := sess.Refresh(c.Request.Context()); err != nil {
		log.WithError(err).Warn("failed to refresh saved movies")
	}
	c.JSON(http.StatusOK, sess.Watched())
}

// search feeds the query into the session debouncer and reports the
// latest settled results. Clients poll until the state is settled.
func (s *Handler) search(c *gin.Context) {
	sess := s.session(c)
	if sess == nil {
		return
	}
	if q, ok := c.GetQuery("q"); ok {
		sess.SearchInput(q)
	}
	c.JSON(http.StatusOK, sess.SearchResults())
}

func (s *Handler) toggleWatchlist(c *gin.Context) {
	sess := s.session(c)
	if sess == nil {
		return
	}
	var mv reconcile.MovieView
	if err := c.ShouldBindJSON(&mv); err != nil || mv.Title == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "movie payload required"})
		return
	}
	c.JSON(http.StatusOK, sess.ToggleWatchlist(mv))
}

func (s *Handler) toggleWatched(c *gin.Context) {
	sess := s.session(c)
	if sess == nil {
		return
	}
	var mv reconcile.MovieView
	if err := c.ShouldBindJSON(&mv); err != nil || mv.Title == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "movie payload required"})
		return
	}
	c.JSON(http.StatusOK, sess.ToggleWatched(mv))
}

func (s *Handler) setRating(c *gin.Context) {
	sess := s.session(c)
	if sess == nil {
		return
	}
	var req struct {
		Movie  reconcile.MovieView `json:"movie"`
		Rating int                 `json:"rating"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Movie.Title == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "movie payload required"})
		return
	}
	c.JSON(http.StatusOK, sess.SetRating(req.Movie, req.Rating))
}

func (s *Handler) notifications(c *gin.Context) {
	u := auth.GetUserFromContext(c)
	if !u.HasAuth() {
		c.Status(http.StatusForbidden)
		return
	}
	c.JSON(http.StatusOK, s.sessions.Notifications(u.Token))
}
