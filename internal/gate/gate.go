// Package gate guards protected views behind a live session check.
package gate

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"filemanager/internal/session"

	"github.com/gin-gonic/gin"
)

// LoginPath is where unauthenticated users are sent
const LoginPath = "/login"

// Context keys set by Middleware
const (
	IdentityKey = "identity"
	EmailKey    = "email"
)

var ErrAccessDenied = errors.New("access denied: not authenticated")

// Session is what the gate needs from the session manager
type Session interface {
	IsAuthenticated(ctx context.Context) bool
	CurrentIdentity() (*session.Identity, bool)
}

// Navigator moves the user to another page
type Navigator interface {
	Navigate(path string)
}

// Gate allows protected content only while the session is valid. It keeps no
// state between checks.
type Gate struct {
	session   Session
	navigator Navigator
	loginPath string
	logger    *slog.Logger
}

// New creates a gate. navigator may be nil when only Middleware is used.
func New(s Session, navigator Navigator, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		session:   s,
		navigator: navigator,
		loginPath: LoginPath,
		logger:    logger,
	}
}

// Render runs content when the session is valid. Otherwise it redirects to
// the login page and returns ErrAccessDenied without running content.
func (g *Gate) Render(ctx context.Context, content func() error) error {
	if !g.session.IsAuthenticated(ctx) {
		if g.navigator != nil {
			g.navigator.Navigate(g.loginPath)
		}
		return ErrAccessDenied
	}
	return content()
}

// Middleware checks the session on every request into a guarded group.
// Page navigations are redirected to the login page, API calls get a 401.
func (g *Gate) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !g.session.IsAuthenticated(c.Request.Context()) {
			g.logger.Warn("Access denied",
				"path", c.Request.URL.Path,
				"request_id", c.GetString("request_id"),
			)

			if wantsHTML(c.Request) {
				c.Redirect(http.StatusFound, g.loginPath)
				c.Abort()
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":    "unauthorized: no valid session",
				"redirect": g.loginPath,
			})
			return
		}

		if id, ok := g.session.CurrentIdentity(); ok {
			c.Set(IdentityKey, id)
			c.Set(EmailKey, id.Email)
		}

		c.Next()
	}
}

// IdentityFrom returns the identity Middleware stored on the context
func IdentityFrom(c *gin.Context) (*session.Identity, bool) {
	v, ok := c.Get(IdentityKey)
	if !ok {
		return nil, false
	}
	id, ok := v.(*session.Identity)
	return id, ok
}

func wantsHTML(r *http.Request) bool {
	if r.Header.Get("X-Requested-With") == "XMLHttpRequest" {
		return false
	}
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}
