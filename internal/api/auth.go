package api

import (
	"context"
	"net/http"
	"net/url"
)

// Credentials is the login payload
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Registration is the sign-up payload
type Registration struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ExchangeResult carries the token locations of a credential exchange.
// Backends differ on where they put the token, so both are kept.
type ExchangeResult struct {
	// BodyToken is the "token" field of the response body
	BodyToken string
	// HeaderToken is the raw Authorization response header
	HeaderToken string
}

// MessageResponse is the generic {"message": ...} acknowledgement
type MessageResponse struct {
	Message string `json:"message"`
}

// Via selects the request shape used to confirm an email
type Via string

const (
	// ViaQuery sends the token as a query parameter on a GET
	ViaQuery Via = "query"
	// ViaBody sends the token in a JSON body on a POST
	ViaBody Via = "body"
)

const (
	loginPath              = "/api/v1/auth/login"
	registerPath           = "/api/v1/auth/register"
	verifyEmailPath        = "/api/v1/auth/verify-email"
	resendVerificationPath = "/api/v1/auth/resend-verification"
)

// ExchangeCredentials logs in and returns wherever the backend put the token
func (c *Client) ExchangeCredentials(ctx context.Context, creds Credentials) (*ExchangeResult, error) {
	resp, err := c.do(ctx, request{method: http.MethodPost, path: loginPath, body: creds})
	if err != nil {
		return nil, err
	}

	result := &ExchangeResult{HeaderToken: resp.header.Get("Authorization")}

	// A body that is not JSON just carries no token
	var body struct {
		Token string `json:"token"`
	}
	if err := decode(resp, &body); err != nil {
		c.Logger.Debug("Login response body carries no token", "status", resp.status, "error", err)
		return result, nil
	}
	result.BodyToken = body.Token
	return result, nil
}

// Register creates an account; the backend then mails a verification link
func (c *Client) Register(ctx context.Context, reg Registration) (*MessageResponse, error) {
	resp, err := c.do(ctx, request{method: http.MethodPost, path: registerPath, body: reg})
	if err != nil {
		return nil, err
	}

	var msg MessageResponse
	if err := decode(resp, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// ConfirmEmail submits a verification token using the given request shape
func (c *Client) ConfirmEmail(ctx context.Context, token string, via Via) error {
	r := request{path: verifyEmailPath}
	switch via {
	case ViaBody:
		r.method = http.MethodPost
		r.body = map[string]string{"token": token}
	default:
		r.method = http.MethodGet
		r.query = url.Values{"token": []string{token}}
	}

	_, err := c.do(ctx, r)
	return err
}

// RequestVerificationResend asks the backend to mail a new verification link
func (c *Client) RequestVerificationResend(ctx context.Context, email string) error {
	_, err := c.do(ctx, request{
		method: http.MethodPost,
		path:   resendVerificationPath,
		body:   map[string]string{"email": email},
	})
	return err
}
