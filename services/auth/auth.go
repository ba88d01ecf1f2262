package auth

import (
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"github.com/cinevault-io/web-ui/services/common"
)

// User is the caller as seen by the handlers: at most a bearer token
// for the backend. No token means no session and no backend calls.
type User struct {
	Token   string
	Expired bool
}

func (s *User) HasAuth() bool {
	return s.Token != "" && !s.Expired
}

const userContextKey = "auth_user"

// RegisterHandler installs the middleware that restores the user from
// the cookie session on every request.
func RegisterHandler(r *gin.Engine) {
	r.Use(func(c *gin.Context) {
		c.Set(userContextKey, userFromSession(c))
		c.Next()
	})
}

func userFromSession(c *gin.Context) *User {
	u := &User{}
	sess := sessions.Default(c)
	token, ok := sess.Get(common.TokenSessionKey).(string)
	if !ok || token == "" {
		return u
	}
	u.Token = token
	u.Expired = expired(token)
	return u
}

// expired inspects the token's exp claim without verifying the
// signature. Verification is the backend's job; locally the claim only
// decides whether a session-restore is worth attempting.
func expired(token string) bool {
	claims := jwt.MapClaims{}
	parser := &jwt.Parser{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, ok := claims["exp"].(float64)
	if !ok {
		return false
	}
	return time.Unix(int64(exp), 0).Before(time.Now())
}

func GetUserFromContext(c *gin.Context) *User {
	if u, ok := c.Get(userContextKey); ok {
		if user, ok := u.(*User); ok {
			return user
		}
	}
	return &User{}
}

// StoreToken saves the backend token into the cookie session.
func StoreToken(c *gin.Context, token string) error {
	sess := sessions.Default(c)
	sess.Set(common.TokenSessionKey, token)
	return sess.Save()
}

// ClearToken drops the backend token from the cookie session.
func ClearToken(c *gin.Context) error {
	sess := sessions.Default(c)
	sess.Delete(common.TokenSessionKey)
	return sess.Save()
}
