// Package verification drives the email confirmation page: automatic
// confirmation of a token found in the entry URL, manual retries, and the
// independent resend sub-flow.
package verification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"filemanager/internal/api"
	"filemanager/internal/notify"

	"github.com/jonboulle/clockwork"
)

// State of a verification visit
type State int

const (
	Idle State = iota
	AutoVerifying
	Verified
	Failed
	ResendPending
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AutoVerifying:
		return "auto_verifying"
	case Verified:
		return "verified"
	case Failed:
		return "failed"
	case ResendPending:
		return "resend_pending"
	default:
		return "unknown"
	}
}

// MarshalText renders the state by name in JSON responses
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

const (
	// LoginPath is where a verified user is sent
	LoginPath = "/login"
	// DefaultRedirectDelay leaves time to read the success notice
	DefaultRedirectDelay = 2 * time.Second
)

const (
	MsgVerified       = "Email verified successfully! You can now login."
	MsgVerifyFailed   = "Verification failed. The token may be invalid or expired."
	MsgTokenRequired  = "Verification token is required"
	MsgResent         = "Verification email sent! Please check your inbox."
	MsgResendFailed   = "Failed to resend verification email."
	MsgEmailRequired  = "Please enter your email address"
	TitleSuccess      = "Success"
	TitleError        = "Error"
	TitleVerifyFailed = "Verification Failed"
)

var (
	ErrTokenRequired      = errors.New("verification token is required")
	ErrEmailRequired      = errors.New("email is required")
	ErrAlreadyVerified    = errors.New("email already verified")
	ErrBusy               = errors.New("verification request already in progress")
	ErrVerificationFailed = errors.New("email verification failed")
)

// Verifier is the backend side of the confirmation protocol
type Verifier interface {
	ConfirmEmail(ctx context.Context, token string, via api.Via) error
	RequestVerificationResend(ctx context.Context, email string) error
}

// Navigator moves the user to another page
type Navigator interface {
	Navigate(path string)
}

// NavigatorFunc adapts a function to Navigator
type NavigatorFunc func(path string)

func (f NavigatorFunc) Navigate(path string) { f(path) }

// Flow is the state of one verification page visit
type Flow struct {
	verifier  Verifier
	notifier  notify.Notifier
	navigator Navigator
	clock     clockwork.Clock
	delay     time.Duration
	logger    *slog.Logger

	mu       sync.Mutex
	state    State
	started  bool
	inFlight bool
	token    string
	redirect clockwork.Timer
	// closed stops a later success from arming the redirect
	closed bool
}

// Option configures a Flow
type Option func(*Flow)

func WithClock(c clockwork.Clock) Option {
	return func(f *Flow) { f.clock = c }
}

func WithRedirectDelay(d time.Duration) Option {
	return func(f *Flow) {
		if d >= 0 {
			f.delay = d
		}
	}
}

func WithNotifier(n notify.Notifier) Option {
	return func(f *Flow) { f.notifier = n }
}

func WithNavigator(n Navigator) Option {
	return func(f *Flow) { f.navigator = n }
}

func WithLogger(l *slog.Logger) Option {
	return func(f *Flow) { f.logger = l }
}

// NewFlow creates a flow in the Idle state
func NewFlow(verifier Verifier, opts ...Option) *Flow {
	f := &Flow{
		verifier:  verifier,
		notifier:  notify.Discard,
		navigator: NavigatorFunc(func(string) {}),
		clock:     clockwork.NewRealClock(),
		delay:     DefaultRedirectDelay,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// State returns the current state
func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Token returns the token the visit was opened with
func (f *Flow) Token() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token
}

// Busy reports whether a backend call is in flight
func (f *Flow) Busy() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inFlight || f.state == AutoVerifying || f.state == ResendPending
}

// RunAutoVerify evaluates the entry URL token. Only the first call per flow
// does anything; later calls return the current state.
func (f *Flow) RunAutoVerify(ctx context.Context, tokenFromURL string) State {
	f.mu.Lock()
	if f.started {
		s := f.state
		f.mu.Unlock()
		return s
	}
	f.started = true

	token := strings.TrimSpace(tokenFromURL)
	f.token = token
	if token == "" {
		f.state = Idle
		f.mu.Unlock()
		return Idle
	}
	f.state = AutoVerifying
	f.mu.Unlock()

	f.logger.Debug("Auto-verifying email token")
	state, _ := f.confirm(ctx, token)
	return state
}

// VerifyNow is the user-triggered confirmation. It never enters AutoVerifying.
func (f *Flow) VerifyNow(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		f.notifier.Notify(ctx, notify.Error(TitleError, MsgTokenRequired))
		return ErrTokenRequired
	}

	f.mu.Lock()
	switch {
	case f.state == Verified:
		f.mu.Unlock()
		return ErrAlreadyVerified
	case f.inFlight || f.state == AutoVerifying || f.state == ResendPending:
		f.mu.Unlock()
		return ErrBusy
	}
	f.started = true
	f.inFlight = true
	f.mu.Unlock()

	_, err := f.confirm(ctx, token)
	return err
}

// confirm runs the confirmation protocol: query first, then one retry with a
// JSON body when the backend answers 405.
func (f *Flow) confirm(ctx context.Context, token string) (State, error) {
	err := f.verifier.ConfirmEmail(ctx, token, api.ViaQuery)
	if api.IsMethodNotAllowed(err) {
		f.logger.Debug("Confirmation via query not allowed, retrying with body")
		err = f.verifier.ConfirmEmail(ctx, token, api.ViaBody)
	}

	if err != nil {
		f.finish(Failed)
		f.logger.Warn("Email verification failed", "error", err, "status", api.StatusCode(err))
		f.notifier.Notify(ctx, notify.Error(TitleVerifyFailed, api.Describe(err, MsgVerifyFailed)))
		return Failed, fmt.Errorf("%w: %w", ErrVerificationFailed, err)
	}

	f.mu.Lock()
	f.state = Verified
	f.inFlight = false
	if !f.closed {
		f.redirect = f.clock.AfterFunc(f.delay, func() {
			f.navigator.Navigate(LoginPath)
		})
	}
	f.mu.Unlock()

	f.logger.Info("Email verified")
	f.notifier.Notify(ctx, notify.Success(TitleSuccess, MsgVerified))
	return Verified, nil
}

func (f *Flow) finish(s State) {
	f.mu.Lock()
	f.state = s
	f.inFlight = false
	f.mu.Unlock()
}

// Resend requests a new verification email. It is allowed from Idle and
// Failed and always returns to Idle.
func (f *Flow) Resend(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		f.notifier.Notify(ctx, notify.Error(TitleError, MsgEmailRequired))
		return ErrEmailRequired
	}

	f.mu.Lock()
	switch {
	case f.state == Verified:
		f.mu.Unlock()
		return ErrAlreadyVerified
	case f.inFlight || f.state == AutoVerifying || f.state == ResendPending:
		f.mu.Unlock()
		return ErrBusy
	}
	f.started = true
	f.state = ResendPending
	f.mu.Unlock()

	err := f.verifier.RequestVerificationResend(ctx, email)

	f.mu.Lock()
	f.state = Idle
	f.mu.Unlock()

	if err != nil {
		f.logger.Warn("Resend verification failed", "email", email, "error", err)
		f.notifier.Notify(ctx, notify.Error(TitleError, api.Describe(err, MsgResendFailed)))
		return err
	}

	f.logger.Info("Verification email resent", "email", email)
	f.notifier.Notify(ctx, notify.Success(TitleSuccess, MsgResent))
	return nil
}

// Close cancels a pending redirect, including one a confirmation still in
// flight would arm
func (f *Flow) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	if f.redirect != nil {
		f.redirect.Stop()
	}
}
