package session

import (
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/cinevault-io/web-ui/services/api"
	"github.com/cinevault-io/web-ui/services/auth"
	"github.com/cinevault-io/web-ui/services/library"
)

type Handler struct {
	api      *api.Client
	sessions *library.Sessions
}

func RegisterHandler(r *gin.Engine, apiClient *api.Client, sessions *library.Sessions) {
	h := &Handler{
		api:      apiClient,
		sessions: sessions,
	}
	r.POST("/login", h.login)
	r.POST("/register", h.register)
	r.POST("/logout", h.logout)
}

type credentials struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (s *Handler) login(c *gin.Context) {
	var cr credentials
	if err := c.ShouldBindJSON(&cr); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "username and password required"})
		return
	}
	tp, err := s.api.Login(c.Request.Context(), cr.Username, cr.Password)
	if err != nil {
		log.WithError(err).Info("login failed")
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "invalid credentials"})
		return
	}
	if err := auth.StoreToken(c, tp.Access); err != nil {
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Handler) register(c *gin.Context) {
	var cr credentials
	if err := c.ShouldBindJSON(&cr); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "username and password required"})
		return
	}
	if err := s.api.Register(c.Request.Context(), cr.Username, cr.Password); err != nil {
		log.WithError(err).Info("registration failed")
		c.JSON(http.StatusBadRequest, gin.H{"detail": "registration failed"})
		return
	}
	c.Status(http.StatusCreated)
}

func (s *Handler) logout(c *gin.Context) {
	u := auth.GetUserFromContext(c)
	if u.Token != "" {
		s.sessions.Drop(u.Token)
	}
	if err := auth.ClearToken(c); err != nil {
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}
	c.Status(http.StatusNoContent)
}
