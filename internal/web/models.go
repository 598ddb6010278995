package web

import (
	"filemanager/internal/api"
	"filemanager/internal/forms"
	"filemanager/internal/notify"
	"filemanager/internal/session"
	"filemanager/internal/verification"
)

// LoginRequest is the login form
type LoginRequest = forms.Login

// RegisterRequest is the sign-up form
type RegisterRequest = forms.Registration

// VerifyRequest is a manual confirmation. An empty token falls back to the
// one the visit was opened with.
type VerifyRequest struct {
	Token string `json:"token"`
}

// ResendRequest asks for a new verification email
type ResendRequest struct {
	Email string `json:"email"`
}

// AuthResponse is returned after login
type AuthResponse struct {
	Identity *session.Identity `json:"identity"`
	Notice   notify.Notice     `json:"notice"`
	Redirect string            `json:"redirect"`
}

// MeResponse describes the current session
type MeResponse struct {
	Authenticated bool              `json:"authenticated"`
	Identity      *session.Identity `json:"identity,omitempty"`
}

// PageResponse is a page descriptor for the login and sign-up views
type PageResponse struct {
	Page   string            `json:"page"`
	Fields []string          `json:"fields"`
	Links  map[string]string `json:"links,omitempty"`
}

// DashboardResponse is the home view of a signed-in user
type DashboardResponse struct {
	Identity    *session.Identity `json:"identity,omitempty"`
	Stats       api.FileStats     `json:"stats"`
	RecentFiles []api.File        `json:"recentFiles"`
	Notices     []notify.Notice   `json:"notices,omitempty"`
}

// VisitResponse is the state of a verification page visit
type VisitResponse struct {
	Visit        string             `json:"visit"`
	State        verification.State `json:"state"`
	TokenPresent bool               `json:"tokenPresent"`
	Busy         bool               `json:"busy"`
	Notices      []notify.Notice    `json:"notices"`
	Redirect     string             `json:"redirect,omitempty"`
	Links        map[string]string  `json:"links"`
}
