package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"filemanager/internal/api"
	"filemanager/internal/claims"

	"github.com/jonboulle/clockwork"
)

var (
	// ErrNoToken is returned by Login when the exchange succeeded but carried no usable token
	ErrNoToken = errors.New("login response carried no usable token")
)

// Exchanger trades credentials for a token
type Exchanger interface {
	ExchangeCredentials(ctx context.Context, creds api.Credentials) (*api.ExchangeResult, error)
}

// Manager owns the process-wide session. One Manager is built at startup and
// shared by every consumer.
type Manager struct {
	tokens    *TokenStore
	exchanger Exchanger
	order     []TokenExtractor
	clock     clockwork.Clock
	logger    *slog.Logger

	mu       sync.RWMutex
	identity *Identity
}

// Option configures a Manager
type Option func(*Manager)

// WithClock sets the clock used for expiry checks
func WithClock(c clockwork.Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// WithLogger sets the manager's logger
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithTokenOrder sets where Login looks for the token, in order
func WithTokenOrder(order []TokenExtractor) Option {
	return func(m *Manager) {
		if len(order) > 0 {
			m.order = order
		}
	}
}

// NewManager creates a session manager
func NewManager(tokens *TokenStore, exchanger Exchanger, opts ...Option) *Manager {
	m := &Manager{
		tokens:    tokens,
		exchanger: exchanger,
		order:     ExchangeOrder,
		clock:     clockwork.NewRealClock(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Bootstrap loads a previously persisted token. A token that does not decode
// is removed silently.
func (m *Manager) Bootstrap(ctx context.Context) {
	token, ok, err := m.tokens.Get(ctx)
	if err != nil {
		m.logger.Warn("Failed to read persisted session", "error", err)
		m.setIdentity(nil)
		return
	}
	if !ok {
		m.setIdentity(nil)
		return
	}

	c, err := claims.Decode(token)
	if err != nil {
		m.logger.Debug("Discarding undecodable persisted token", "error", err)
		if err := m.tokens.Clear(ctx); err != nil {
			m.logger.Warn("Failed to clear undecodable token", "error", err)
		}
		m.setIdentity(nil)
		return
	}

	m.setIdentity(identityFrom(c))
	m.logger.Debug("Session restored", "email", c.Subject)
}

// Login exchanges credentials and persists the returned token before
// returning, so IsAuthenticated observes it immediately. Exchange errors are
// returned unchanged and nothing is persisted.
func (m *Manager) Login(ctx context.Context, creds api.Credentials) (*Identity, error) {
	result, err := m.exchanger.ExchangeCredentials(ctx, creds)
	if err != nil {
		return nil, err
	}

	token, source := firstToken(result, m.order)
	if token == "" {
		return nil, ErrNoToken
	}

	c, err := claims.Decode(token)
	if err != nil {
		m.logger.Warn("Login returned an undecodable token", "source", source, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrNoToken, err)
	}

	if err := m.tokens.Set(ctx, token); err != nil {
		return nil, err
	}

	id := identityFrom(c)
	m.setIdentity(id)
	m.logger.Info("Logged in", "email", id.Email, "token_source", source)

	return id, nil
}

// Logout clears the persisted token and the cached identity. The identity is
// dropped even when the store cannot be cleared.
func (m *Manager) Logout(ctx context.Context) error {
	m.setIdentity(nil)
	if err := m.tokens.Clear(ctx); err != nil {
		m.logger.Warn("Failed to clear session", "error", err)
		return err
	}
	return nil
}

// IsAuthenticated re-reads and re-decodes the stored token on every call.
// Undecodable or expired tokens are logged out as a side effect.
func (m *Manager) IsAuthenticated(ctx context.Context) bool {
	token, ok, err := m.tokens.Get(ctx)
	if err != nil {
		m.logger.Warn("Failed to read session", "error", err)
		return false
	}
	if !ok {
		return false
	}

	c, err := claims.Decode(token)
	if err != nil {
		m.logger.Debug("Stored token is malformed, logging out", "error", err)
		_ = m.Logout(ctx)
		return false
	}

	if c.ExpiredAt(m.clock.Now().UnixMilli()) {
		m.logger.Info("Session expired, logging out", "email", c.Subject)
		_ = m.Logout(ctx)
		return false
	}

	return true
}

// CurrentIdentity returns the identity decoded by the last Bootstrap or
// Login. It is a cache and can outlive the token's expiry; use
// IsAuthenticated for a live answer.
func (m *Manager) CurrentIdentity() (*Identity, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.identity == nil {
		return nil, false
	}
	id := *m.identity
	id.Roles = append([]string(nil), m.identity.Roles...)
	return &id, true
}

// Token returns the persisted token for outgoing API calls
func (m *Manager) Token(ctx context.Context) (string, error) {
	return m.tokens.Token(ctx)
}

func (m *Manager) setIdentity(id *Identity) {
	m.mu.Lock()
	m.identity = id
	m.mu.Unlock()
}
