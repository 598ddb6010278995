package verification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"filemanager/internal/api"
	"filemanager/internal/notify"

	"github.com/jonboulle/clockwork"
)

type confirmCall struct {
	token string
	via   api.Via
}

type mockVerifier struct {
	mu           sync.Mutex
	confirmErrs  []error
	resendErr    error
	confirmCalls []confirmCall
	resendCalls  []string
	// observe runs inside RequestVerificationResend, while the request is in flight
	observe func()
	// onConfirm runs inside ConfirmEmail, while the request is in flight
	onConfirm func()
}

func (m *mockVerifier) ConfirmEmail(ctx context.Context, token string, via api.Via) error {
	if m.onConfirm != nil {
		m.onConfirm()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.confirmCalls = append(m.confirmCalls, confirmCall{token: token, via: via})
	if len(m.confirmErrs) == 0 {
		return nil
	}
	err := m.confirmErrs[0]
	m.confirmErrs = m.confirmErrs[1:]
	return err
}

func (m *mockVerifier) RequestVerificationResend(ctx context.Context, email string) error {
	if m.observe != nil {
		m.observe()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resendCalls = append(m.resendCalls, email)
	return m.resendErr
}

type recordingNavigator struct {
	paths chan string
}

func newRecordingNavigator() *recordingNavigator {
	return &recordingNavigator{paths: make(chan string, 4)}
}

func (n *recordingNavigator) Navigate(path string) {
	n.paths <- path
}

func newTestFlow(v Verifier) (*Flow, *notify.Recorder, *recordingNavigator, *clockwork.FakeClock) {
	rec := notify.NewRecorder()
	nav := newRecordingNavigator()
	clock := clockwork.NewFakeClock()
	f := NewFlow(v,
		WithClock(clock),
		WithNotifier(rec),
		WithNavigator(nav),
	)
	return f, rec, nav, clock
}

func TestRunAutoVerify_Success(t *testing.T) {
	v := &mockVerifier{}
	f, rec, nav, clock := newTestFlow(v)

	state := f.RunAutoVerify(context.Background(), "tok-1")
	if state != Verified {
		t.Fatalf("Expected Verified, got %s", state)
	}

	if len(v.confirmCalls) != 1 || v.confirmCalls[0].via != api.ViaQuery || v.confirmCalls[0].token != "tok-1" {
		t.Errorf("Expected one query confirmation, got %+v", v.confirmCalls)
	}

	last, _ := rec.Last()
	if last.Level != notify.LevelSuccess || last.Message != MsgVerified {
		t.Errorf("Unexpected notice %+v", last)
	}

	select {
	case p := <-nav.paths:
		t.Fatalf("Navigated to %s before the delay elapsed", p)
	default:
	}

	clock.Advance(DefaultRedirectDelay)

	select {
	case p := <-nav.paths:
		if p != LoginPath {
			t.Errorf("Expected navigation to %s, got %s", LoginPath, p)
		}
	case <-time.After(time.Second):
		t.Fatal("Expected navigation to login after the redirect delay")
	}
}

func TestRunAutoVerify_NoToken(t *testing.T) {
	v := &mockVerifier{}
	f, rec, _, _ := newTestFlow(v)

	if state := f.RunAutoVerify(context.Background(), "  "); state != Idle {
		t.Errorf("Expected Idle, got %s", state)
	}
	if len(v.confirmCalls) != 0 {
		t.Error("Expected no confirmation call without a token")
	}
	if len(rec.Notices()) != 0 {
		t.Error("Expected no notices without a token")
	}
}

func TestRunAutoVerify_OnlyOnce(t *testing.T) {
	v := &mockVerifier{confirmErrs: []error{&api.Error{StatusCode: 400, Message: "Invalid verification token"}}}
	f, _, _, _ := newTestFlow(v)
	ctx := context.Background()

	if state := f.RunAutoVerify(ctx, "tok"); state != Failed {
		t.Fatalf("Expected Failed, got %s", state)
	}
	if state := f.RunAutoVerify(ctx, "tok"); state != Failed {
		t.Errorf("Expected second call to return Failed, got %s", state)
	}
	if len(v.confirmCalls) != 1 {
		t.Errorf("Expected a single confirmation call, got %d", len(v.confirmCalls))
	}
}

func TestConfirm_MethodNotAllowedFallback(t *testing.T) {
	tests := []struct {
		name      string
		errs      []error
		wantState State
		wantCalls []api.Via
		wantMsg   string
	}{
		{
			name:      "fallback succeeds",
			errs:      []error{&api.Error{StatusCode: 405}},
			wantState: Verified,
			wantCalls: []api.Via{api.ViaQuery, api.ViaBody},
			wantMsg:   MsgVerified,
		},
		{
			name:      "fallback fails terminally",
			errs:      []error{&api.Error{StatusCode: 405}, &api.Error{StatusCode: 405}},
			wantState: Failed,
			wantCalls: []api.Via{api.ViaQuery, api.ViaBody},
			wantMsg:   "request failed with status code 405",
		},
		{
			name:      "fallback fails with server message",
			errs:      []error{&api.Error{StatusCode: 405}, &api.Error{StatusCode: 400, Message: "Verification token has expired"}},
			wantState: Failed,
			wantCalls: []api.Via{api.ViaQuery, api.ViaBody},
			wantMsg:   "Verification token has expired",
		},
		{
			name:      "non-405 failure does not fall back",
			errs:      []error{&api.Error{StatusCode: 404, ErrorField: "Not Found"}},
			wantState: Failed,
			wantCalls: []api.Via{api.ViaQuery},
			wantMsg:   "Not Found",
		},
		{
			name:      "transport error",
			errs:      []error{errors.New("connection refused")},
			wantState: Failed,
			wantCalls: []api.Via{api.ViaQuery},
			wantMsg:   "connection refused",
		},
		{
			name:      "empty transport text uses fallback",
			errs:      []error{errors.New("")},
			wantState: Failed,
			wantCalls: []api.Via{api.ViaQuery},
			wantMsg:   MsgVerifyFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &mockVerifier{confirmErrs: tt.errs}
			f, rec, _, _ := newTestFlow(v)

			if state := f.RunAutoVerify(context.Background(), "tok"); state != tt.wantState {
				t.Errorf("Expected %s, got %s", tt.wantState, state)
			}

			if len(v.confirmCalls) != len(tt.wantCalls) {
				t.Fatalf("Expected %d calls, got %d", len(tt.wantCalls), len(v.confirmCalls))
			}
			for i, via := range tt.wantCalls {
				if v.confirmCalls[i].via != via {
					t.Errorf("Call %d: expected %s, got %s", i, via, v.confirmCalls[i].via)
				}
			}

			last, _ := rec.Last()
			if last.Message != tt.wantMsg {
				t.Errorf("Expected notice %q, got %q", tt.wantMsg, last.Message)
			}
			if tt.wantState == Failed && last.Title != TitleVerifyFailed {
				t.Errorf("Expected title %q, got %q", TitleVerifyFailed, last.Title)
			}
		})
	}
}

func TestVerifyNow(t *testing.T) {
	ctx := context.Background()

	t.Run("empty token is local", func(t *testing.T) {
		v := &mockVerifier{}
		f, rec, _, _ := newTestFlow(v)

		if err := f.VerifyNow(ctx, ""); !errors.Is(err, ErrTokenRequired) {
			t.Errorf("Expected ErrTokenRequired, got %v", err)
		}
		if len(v.confirmCalls) != 0 {
			t.Error("Expected no network call")
		}
		if last, _ := rec.Last(); last.Message != MsgTokenRequired {
			t.Errorf("Expected %q notice, got %q", MsgTokenRequired, last.Message)
		}
	})

	t.Run("retry after failure", func(t *testing.T) {
		v := &mockVerifier{confirmErrs: []error{&api.Error{StatusCode: 400}}}
		f, _, _, _ := newTestFlow(v)

		f.RunAutoVerify(ctx, "tok")
		if f.State() != Failed {
			t.Fatalf("Expected Failed, got %s", f.State())
		}

		if err := f.VerifyNow(ctx, "tok"); err != nil {
			t.Fatalf("VerifyNow failed: %v", err)
		}
		if f.State() != Verified {
			t.Errorf("Expected Verified, got %s", f.State())
		}
	})

	t.Run("manual failure wraps the backend error", func(t *testing.T) {
		apiErr := &api.Error{StatusCode: 400, Message: "Invalid verification token"}
		v := &mockVerifier{confirmErrs: []error{apiErr}}
		f, _, _, _ := newTestFlow(v)

		err := f.VerifyNow(ctx, "tok")
		if !errors.Is(err, ErrVerificationFailed) {
			t.Errorf("Expected ErrVerificationFailed, got %v", err)
		}
		if api.Describe(err, "x") != "Invalid verification token" {
			t.Errorf("Expected backend message through the wrap, got %q", api.Describe(err, "x"))
		}
	})

	t.Run("rejected once verified", func(t *testing.T) {
		v := &mockVerifier{}
		f, _, _, _ := newTestFlow(v)

		f.RunAutoVerify(ctx, "tok")
		if err := f.VerifyNow(ctx, "tok"); !errors.Is(err, ErrAlreadyVerified) {
			t.Errorf("Expected ErrAlreadyVerified, got %v", err)
		}
		if len(v.confirmCalls) != 1 {
			t.Errorf("Expected no extra confirmation, got %d calls", len(v.confirmCalls))
		}
	})

	t.Run("never enters auto verifying", func(t *testing.T) {
		v := &mockVerifier{}
		f, _, _, _ := newTestFlow(v)

		if err := f.VerifyNow(ctx, "tok"); err != nil {
			t.Fatalf("VerifyNow failed: %v", err)
		}
		// the page load evaluation is spent once the user has acted
		if state := f.RunAutoVerify(ctx, "tok"); state != Verified {
			t.Errorf("Expected Verified, got %s", state)
		}
		if len(v.confirmCalls) != 1 {
			t.Errorf("Expected a single confirmation, got %d", len(v.confirmCalls))
		}
	})
}

func TestResend_FromIdle(t *testing.T) {
	ctx := context.Background()
	var f *Flow
	var during State
	v := &mockVerifier{observe: func() { during = f.State() }}
	f, rec, _, _ := newTestFlow(v)

	if state := f.RunAutoVerify(ctx, ""); state != Idle {
		t.Fatalf("Expected Idle, got %s", state)
	}

	if err := f.Resend(ctx, "a@x.com"); err != nil {
		t.Fatalf("Resend failed: %v", err)
	}

	if during != ResendPending {
		t.Errorf("Expected ResendPending while in flight, got %s", during)
	}
	if f.State() != Idle {
		t.Errorf("Expected Idle after resend, got %s", f.State())
	}
	if len(v.resendCalls) != 1 || v.resendCalls[0] != "a@x.com" {
		t.Errorf("Unexpected resend calls %v", v.resendCalls)
	}
	if last, _ := rec.Last(); last.Level != notify.LevelSuccess || last.Message != MsgResent {
		t.Errorf("Unexpected notice %+v", last)
	}

	// another resend is still allowed
	if err := f.Resend(ctx, "a@x.com"); err != nil {
		t.Errorf("Expected second resend to be allowed, got %v", err)
	}
}

func TestResend_Failures(t *testing.T) {
	ctx := context.Background()

	t.Run("empty email is local", func(t *testing.T) {
		v := &mockVerifier{}
		f, rec, _, _ := newTestFlow(v)

		if err := f.Resend(ctx, " "); !errors.Is(err, ErrEmailRequired) {
			t.Errorf("Expected ErrEmailRequired, got %v", err)
		}
		if len(v.resendCalls) != 0 {
			t.Error("Expected no network call")
		}
		if last, _ := rec.Last(); last.Message != MsgEmailRequired {
			t.Errorf("Expected %q, got %q", MsgEmailRequired, last.Message)
		}
	})

	t.Run("backend failure returns to idle", func(t *testing.T) {
		v := &mockVerifier{resendErr: &api.Error{StatusCode: 400, Message: "Email is already verified"}}
		f, rec, _, _ := newTestFlow(v)

		if err := f.Resend(ctx, "a@x.com"); err == nil {
			t.Fatal("Expected error")
		}
		if f.State() != Idle {
			t.Errorf("Expected Idle, got %s", f.State())
		}
		if last, _ := rec.Last(); last.Level != notify.LevelError || last.Message != "Email is already verified" {
			t.Errorf("Unexpected notice %+v", last)
		}
	})

	t.Run("fallback message", func(t *testing.T) {
		v := &mockVerifier{resendErr: &api.Error{StatusCode: 500}}
		f, rec, _, _ := newTestFlow(v)

		f.Resend(ctx, "a@x.com")
		if last, _ := rec.Last(); last.Message != "request failed with status code 500" {
			t.Errorf("Unexpected notice %q", last.Message)
		}
	})

	t.Run("allowed after failed verification", func(t *testing.T) {
		v := &mockVerifier{confirmErrs: []error{&api.Error{StatusCode: 400}}}
		f, _, _, _ := newTestFlow(v)

		f.RunAutoVerify(ctx, "tok")
		if err := f.Resend(ctx, "a@x.com"); err != nil {
			t.Errorf("Expected resend from Failed, got %v", err)
		}
		if f.State() != Idle {
			t.Errorf("Expected Idle, got %s", f.State())
		}
	})

	t.Run("rejected once verified", func(t *testing.T) {
		v := &mockVerifier{}
		f, _, _, _ := newTestFlow(v)

		f.RunAutoVerify(ctx, "tok")
		if err := f.Resend(ctx, "a@x.com"); !errors.Is(err, ErrAlreadyVerified) {
			t.Errorf("Expected ErrAlreadyVerified, got %v", err)
		}
	})
}

func TestClose_CancelsRedirect(t *testing.T) {
	f, _, nav, clock := newTestFlow(&mockVerifier{})

	f.RunAutoVerify(context.Background(), "tok")
	f.Close()
	clock.Advance(DefaultRedirectDelay * 2)

	select {
	case p := <-nav.paths:
		t.Errorf("Expected no navigation after Close, got %s", p)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestClose_DuringConfirmation(t *testing.T) {
	v := &mockVerifier{}
	f, _, nav, clock := newTestFlow(v)
	v.onConfirm = f.Close

	if state := f.RunAutoVerify(context.Background(), "tok"); state != Verified {
		t.Fatalf("Expected Verified, got %s", state)
	}
	clock.Advance(DefaultRedirectDelay * 2)

	select {
	case p := <-nav.paths:
		t.Errorf("Expected no navigation for a closed flow, got %s", p)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestStateString(t *testing.T) {
	if AutoVerifying.String() != "auto_verifying" || ResendPending.String() != "resend_pending" {
		t.Error("Unexpected state names")
	}
	if State(42).String() != "unknown" {
		t.Error("Expected unknown for out-of-range state")
	}
}
