// Package web implements the local web client: JSON pages for login, sign-up
// and email verification, and a gated dashboard that forwards file calls to
// the backend with the session's token.
package web

import (
	"log/slog"

	"filemanager/internal/gate"

	"github.com/gin-gonic/gin"
)

const (
	filesPrefix    = "/dashboard/files"
	backendFileAPI = "/api/v1/files"
)

// Deps are the collaborators the router wires together
type Deps struct {
	Handler        *Handler
	Gate           *gate.Gate
	Files          *FileProxy
	AllowedOrigins []string
	Logger         *slog.Logger
}

// SetupRouter configures and returns the web client router
func SetupRouter(d Deps) *gin.Engine {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggingMiddleware(logger))
	r.Use(CORSMiddleware(d.AllowedOrigins))

	h := d.Handler

	r.GET("/health", h.Health)

	// Public pages
	r.GET("/", h.LoginPage)
	r.GET("/login", h.LoginPage)
	r.GET("/signup", h.SignupPage)

	auth := r.Group("/auth")
	{
		auth.POST("/login", h.Login)
		auth.POST("/register", h.Register)
		auth.POST("/logout", h.Logout)
		auth.GET("/me", h.Me)
	}

	verify := r.Group("/verify-email")
	{
		verify.GET("", h.OpenVerification)
		verify.GET("/:visit", h.GetVerification)
		verify.POST("/:visit/verify", h.VerifyNow)
		verify.POST("/:visit/resend", h.ResendVerification)
	}

	// Protected routes - require a live session on every request
	dashboard := r.Group("/dashboard")
	dashboard.Use(d.Gate.Middleware())
	{
		dashboard.GET("", h.Dashboard)
		dashboard.Any("/files", d.Files.Rewrite(filesPrefix, backendFileAPI))
		dashboard.Any("/files/*path", d.Files.Rewrite(filesPrefix, backendFileAPI))
	}

	return r
}
