package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"filemanager/internal/api"
	"filemanager/internal/forms"
	"filemanager/internal/gate"
	"filemanager/internal/notify"
	"filemanager/internal/session"

	"github.com/gin-gonic/gin"
)

const (
	dashboardPath = "/dashboard"
	recentFiles   = 5
)

const (
	msgLoggedIn           = "Logged in successfully"
	msgLoginFailed        = "Login failed. Please check your credentials."
	msgRegistered         = "Please check your email to verify your account before logging in."
	msgRegisterFailed     = "Registration failed. Please try again."
	msgStatsFailed        = "Failed to load statistics"
	titleRegistered       = "Registration Successful"
	registerRedirectDelay = 2000
)

// Sessions is the session manager as the handlers use it
type Sessions interface {
	Login(ctx context.Context, creds api.Credentials) (*session.Identity, error)
	Logout(ctx context.Context) error
	IsAuthenticated(ctx context.Context) bool
	CurrentIdentity() (*session.Identity, bool)
}

// Backend is the subset of the REST API the handlers call directly
type Backend interface {
	Register(ctx context.Context, reg api.Registration) (*api.MessageResponse, error)
	FileStats(ctx context.Context) (*api.FileStats, error)
	ListFiles(ctx context.Context, opts api.ListOptions) (*api.FilePage, error)
}

// Handler serves the web client's pages and auth endpoints
type Handler struct {
	sessions Sessions
	backend  Backend
	visits   *VisitRegistry
	logger   *slog.Logger
}

// NewHandler creates a new web handler
func NewHandler(sessions Sessions, backend Backend, visits *VisitRegistry, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		sessions: sessions,
		backend:  backend,
		visits:   visits,
		logger:   logger,
	}
}

// Health is the web client health check handler
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "filemanager-web",
	})
}

// LoginPage handles GET / and GET /login
func (h *Handler) LoginPage(c *gin.Context) {
	if h.signedIn(c.Request.Context()) {
		c.Redirect(http.StatusFound, dashboardPath)
		return
	}
	c.JSON(http.StatusOK, PageResponse{
		Page:   "login",
		Fields: []string{"email", "password"},
		Links:  map[string]string{"submit": "/auth/login", "signup": "/signup"},
	})
}

// SignupPage handles GET /signup
func (h *Handler) SignupPage(c *gin.Context) {
	if h.signedIn(c.Request.Context()) {
		c.Redirect(http.StatusFound, dashboardPath)
		return
	}
	c.JSON(http.StatusOK, PageResponse{
		Page:   "signup",
		Fields: []string{"name", "email", "password", "confirmPassword"},
		Links:  map[string]string{"submit": "/auth/register", "login": "/login"},
	})
}

// signedIn mirrors the login and sign-up pages: a live session and a known identity
func (h *Handler) signedIn(ctx context.Context) bool {
	if !h.sessions.IsAuthenticated(ctx) {
		return false
	}
	_, ok := h.sessions.CurrentIdentity()
	return ok
}

// Login handles POST /auth/login
// @Summary Log in
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Email and password"
// @Success 200 {object} AuthResponse
// @Failure 400 {object} map[string]any
// @Failure 401 {object} map[string]any
// @Router /auth/login [post]
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid login form", "fields": forms.Messages(err)})
		return
	}

	id, err := h.sessions.Login(c.Request.Context(), api.Credentials{Email: req.Email, Password: req.Password})
	if err != nil {
		status := loginFailureStatus(err)
		h.logger.Warn("Login failed", "email", req.Email, "status", status, "error", err)
		c.JSON(status, gin.H{
			"error":  api.Describe(err, msgLoginFailed),
			"notice": failureNotice(err, msgLoginFailed),
		})
		return
	}

	c.JSON(http.StatusOK, AuthResponse{
		Identity: id,
		Notice:   notify.Success("Success", msgLoggedIn),
		Redirect: dashboardPath,
	})
}

// Register handles POST /auth/register
// @Summary Create an account
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Registration form"
// @Success 201 {object} map[string]any
// @Failure 400 {object} map[string]any
// @Router /auth/register [post]
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid registration form", "fields": forms.Messages(err)})
		return
	}

	_, err := h.backend.Register(c.Request.Context(), api.Registration{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		status := api.StatusCode(err)
		if status == 0 {
			status = http.StatusBadGateway
		}
		h.logger.Warn("Registration failed", "email", req.Email, "status", status, "error", err)
		c.JSON(status, gin.H{
			"error":  api.Describe(err, msgRegisterFailed),
			"notice": failureNotice(err, msgRegisterFailed),
		})
		return
	}

	h.logger.Info("Registered account", "email", req.Email)
	c.JSON(http.StatusCreated, gin.H{
		"notice":            notify.Success(titleRegistered, msgRegistered),
		"redirect":          "/login",
		"redirect_after_ms": registerRedirectDelay,
	})
}

// Logout handles POST /auth/logout
func (h *Handler) Logout(c *gin.Context) {
	if err := h.sessions.Logout(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to clear session"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out", "redirect": "/login"})
}

// Me handles GET /auth/me
func (h *Handler) Me(c *gin.Context) {
	resp := MeResponse{Authenticated: h.sessions.IsAuthenticated(c.Request.Context())}
	if resp.Authenticated {
		if id, ok := h.sessions.CurrentIdentity(); ok {
			resp.Identity = id
		}
	}
	c.JSON(http.StatusOK, resp)
}

// Dashboard handles GET /dashboard behind the gate
func (h *Handler) Dashboard(c *gin.Context) {
	ctx := c.Request.Context()
	resp := DashboardResponse{RecentFiles: []api.File{}}
	resp.Identity, _ = gate.IdentityFrom(c)

	if stats, err := h.backend.FileStats(ctx); err != nil {
		h.logger.Warn("Failed to load stats", "error", err)
		resp.Notices = append(resp.Notices, notify.Error("Error", msgStatsFailed))
	} else {
		resp.Stats = *stats
	}

	opts := api.DefaultListOptions()
	opts.Size = recentFiles
	if page, err := h.backend.ListFiles(ctx, opts); err != nil {
		h.logger.Warn("Failed to load recent files", "error", err)
	} else if len(page.Content) > 0 {
		resp.RecentFiles = page.Content
		if len(resp.RecentFiles) > recentFiles {
			resp.RecentFiles = resp.RecentFiles[:recentFiles]
		}
	}

	c.JSON(http.StatusOK, resp)
}

// loginFailureStatus maps a login error to the status returned to the browser
func loginFailureStatus(err error) int {
	if errors.Is(err, session.ErrNoToken) {
		return http.StatusBadGateway
	}
	if status := api.StatusCode(err); status != 0 {
		return status
	}
	return http.StatusBadGateway
}

// failureNotice titles a backend failure with its status code when there is one
func failureNotice(err error, fallback string) notify.Notice {
	title := "Error"
	if status := api.StatusCode(err); status != 0 {
		title = strconv.Itoa(status)
	}
	return notify.Error(title, api.Describe(err, fallback))
}
