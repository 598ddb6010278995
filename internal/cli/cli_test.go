package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"filemanager/internal/gate"
	"filemanager/internal/verification"

	"github.com/golang-jwt/jwt/v5"
)

const testPassword = "password123"

type testBackend struct {
	url   string
	token string
	// calls counts every request that reached the backend
	calls atomic.Int32
	// rejectGetVerify answers GET /verify-email with 405
	rejectGetVerify bool
	uploaded        atomic.Value
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// startTestBackend starts a fake file manager API and returns it
func startTestBackend(t *testing.T, rejectGetVerify bool) *testBackend {
	t.Helper()

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   "a@x.com",
		"roles": []string{"ROLE_USER"},
		"exp":   time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	b := &testBackend{token: token, rejectGetVerify: rejectGetVerify}

	authorized := func(w http.ResponseWriter, r *http.Request) bool {
		if r.Header.Get("Authorization") != "Bearer "+b.token {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
			return false
		}
		return true
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != testPassword {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid email or password"})
			return
		}
		// header-only backends are covered by the session tests
		w.Header().Set("Authorization", "Bearer "+b.token)
		writeJSON(w, http.StatusOK, map[string]string{"token": b.token})
	})
	mux.HandleFunc("POST /api/v1/auth/register", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "User registered"})
	})
	mux.HandleFunc("GET /api/v1/auth/verify-email", func(w http.ResponseWriter, r *http.Request) {
		if b.rejectGetVerify {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if r.URL.Query().Get("token") != "good-token" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Invalid verification token"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "verified"})
	})
	mux.HandleFunc("POST /api/v1/auth/verify-email", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["token"] != "good-token" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Invalid verification token"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "verified"})
	})
	mux.HandleFunc("POST /api/v1/auth/resend-verification", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "sent"})
	})
	mux.HandleFunc("GET /api/v1/files", func(w http.ResponseWriter, r *http.Request) {
		if !authorized(w, r) {
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"content": []map[string]any{
				{"id": 1, "originalFileName": "report.pdf", "fileSize": 2048, "createdAt": "2026-01-02T03:04:05.123"},
			},
			"totalElements": 21,
			"totalPages":    2,
			"number":        0,
			"size":          20,
		})
	})
	mux.HandleFunc("GET /api/v1/files/stats", func(w http.ResponseWriter, r *http.Request) {
		if !authorized(w, r) {
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"fileCount": 3, "totalSize": 1536})
	})
	mux.HandleFunc("GET /api/v1/files/{id}/download", func(w http.ResponseWriter, r *http.Request) {
		if !authorized(w, r) {
			return
		}
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": "report.pdf"}))
		w.Write([]byte("pdf-bytes"))
	})
	mux.HandleFunc("POST /api/v1/files", func(w http.ResponseWriter, r *http.Request) {
		if !authorized(w, r) {
			return
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "no file"})
			return
		}
		data, _ := io.ReadAll(f)
		b.uploaded.Store(string(data))
		writeJSON(w, http.StatusOK, map[string]any{"fileId": 9, "originalFileName": hdr.Filename, "fileSize": len(data)})
	})
	mux.HandleFunc("DELETE /api/v1/files/{id}", func(w http.ResponseWriter, r *http.Request) {
		if !authorized(w, r) {
			return
		}
		if r.PathValue("id") != "1" {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "File not found"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "File deleted successfully"})
	})

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.calls.Add(1)
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(ts.Close)
	b.url = ts.URL
	return b
}

type cliEnv struct {
	backend     *testBackend
	sessionFile string
}

func newCLIEnv(t *testing.T, rejectGetVerify bool) *cliEnv {
	t.Helper()
	t.Setenv("FILEMANAGER_CONFIG", "")
	t.Setenv("TOKEN_SOURCE_ORDER", "")
	return &cliEnv{
		backend:     startTestBackend(t, rejectGetVerify),
		sessionFile: filepath.Join(t.TempDir(), "session.json"),
	}
}

// run executes fmctl against the test backend with its own session file
func (e *cliEnv) run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	root := NewRootCmd()

	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{"--server", e.backend.url, "--session-file", e.sessionFile, "--log-level", "error"}, args...))

	err := root.Execute()
	return out.String(), errOut.String(), err
}

func (e *cliEnv) login(t *testing.T) {
	t.Helper()
	if _, errOut, err := e.run(t, "", "login", "--email", "a@x.com", "--password", testPassword); err != nil {
		t.Fatalf("login failed: %v\n%s", err, errOut)
	}
}

func TestLoginAndWhoami(t *testing.T) {
	env := newCLIEnv(t, false)

	out, _, err := env.run(t, "", "login", "--email", "a@x.com", "--password", testPassword)
	if err != nil {
		t.Fatalf("login error: %v", err)
	}
	if !strings.Contains(out, "Logged in successfully") || !strings.Contains(out, "Signed in as a@x.com") {
		t.Errorf("unexpected login output: %s", out)
	}

	// A fresh invocation restores the session from the file
	out, _, err = env.run(t, "", "whoami")
	if err != nil {
		t.Fatalf("whoami error: %v", err)
	}
	if !strings.Contains(out, "Email:   a@x.com") || !strings.Contains(out, "ROLE_USER") {
		t.Errorf("unexpected whoami output: %s", out)
	}

	info, err := os.Stat(env.sessionFile)
	if err != nil {
		t.Fatalf("session file missing: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("expected session file mode 0600, got %v", info.Mode().Perm())
	}
}

func TestLogin_PromptsForPassword(t *testing.T) {
	env := newCLIEnv(t, false)

	out, errOut, err := env.run(t, testPassword+"\n", "login", "--email", "a@x.com")
	if err != nil {
		t.Fatalf("login error: %v\n%s", err, errOut)
	}
	if !strings.Contains(errOut, "Password: ") {
		t.Errorf("expected password prompt, got %q", errOut)
	}
	if !strings.Contains(out, "Logged in successfully") {
		t.Errorf("unexpected output: %s", out)
	}
}

func TestLogin_InvalidForm(t *testing.T) {
	env := newCLIEnv(t, false)

	_, errOut, err := env.run(t, "", "login", "--email", "not-an-email", "--password", "short")
	if err == nil {
		t.Fatal("expected error for invalid form")
	}
	if !IsReported(err) {
		t.Errorf("expected form errors to be reported as notices, got %v", err)
	}
	if !strings.Contains(errOut, "Must be valid email") || !strings.Contains(errOut, "Password must be at least 8 characters") {
		t.Errorf("expected field messages, got %q", errOut)
	}
	if n := env.backend.calls.Load(); n != 0 {
		t.Errorf("expected no backend calls, got %d", n)
	}
}

func TestLogin_Rejected(t *testing.T) {
	env := newCLIEnv(t, false)

	_, errOut, err := env.run(t, "", "login", "--email", "a@x.com", "--password", "wrong-password")
	if err == nil {
		t.Fatal("expected login error")
	}
	if !strings.Contains(errOut, "401: Invalid email or password") {
		t.Errorf("expected server message, got %q", errOut)
	}

	if _, _, err := env.run(t, "", "whoami"); !errors.Is(err, errNotLoggedIn) {
		t.Errorf("expected not logged in after rejected login, got %v", err)
	}
}

func TestLogout(t *testing.T) {
	env := newCLIEnv(t, false)
	env.login(t)

	out, _, err := env.run(t, "", "logout")
	if err != nil {
		t.Fatalf("logout error: %v", err)
	}
	if !strings.Contains(out, "Logged out") {
		t.Errorf("unexpected output: %s", out)
	}

	if _, _, err := env.run(t, "", "whoami"); !errors.Is(err, errNotLoggedIn) {
		t.Errorf("expected not logged in, got %v", err)
	}
}

func TestRegister(t *testing.T) {
	env := newCLIEnv(t, false)

	out, _, err := env.run(t, "", "register",
		"--name", "Ann", "--email", "ann@x.com",
		"--password", testPassword, "--confirm-password", testPassword)
	if err != nil {
		t.Fatalf("register error: %v", err)
	}
	if !strings.Contains(out, "Please check your email") {
		t.Errorf("unexpected output: %s", out)
	}
}

func TestRegister_PasswordMismatch(t *testing.T) {
	env := newCLIEnv(t, false)

	_, errOut, err := env.run(t, "different1\n", "register",
		"--name", "Ann", "--email", "ann@x.com", "--password", testPassword)
	if err == nil {
		t.Fatal("expected mismatch error")
	}
	if !strings.Contains(errOut, "Passwords must match") {
		t.Errorf("expected mismatch message, got %q", errOut)
	}
	if n := env.backend.calls.Load(); n != 0 {
		t.Errorf("expected no backend calls, got %d", n)
	}
}

func TestVerify(t *testing.T) {
	tests := []struct {
		name            string
		rejectGetVerify bool
		args            []string
		wantErr         error
		wantOut         string
		wantErrOut      string
	}{
		{
			name:    "query accepted",
			args:    []string{"verify", "good-token"},
			wantOut: verification.MsgVerified,
		},
		{
			name:            "falls back to body on 405",
			rejectGetVerify: true,
			args:            []string{"verify", "good-token"},
			wantOut:         verification.MsgVerified,
		},
		{
			name:       "bad token",
			args:       []string{"verify", "stale-token"},
			wantErr:    verification.ErrVerificationFailed,
			wantErrOut: "Verification Failed: Invalid verification token",
		},
		{
			name:       "blank token",
			args:       []string{"verify", "  "},
			wantErr:    verification.ErrTokenRequired,
			wantErrOut: "Error: " + verification.MsgTokenRequired,
		},
		{
			name:       "no token",
			args:       []string{"verify"},
			wantErr:    verification.ErrTokenRequired,
			wantErrOut: "Error: " + verification.MsgTokenRequired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newCLIEnv(t, tt.rejectGetVerify)

			out, errOut, err := env.run(t, "", tt.args...)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("expected %v, got %v", tt.wantErr, err)
				}
				if !IsReported(err) {
					t.Error("expected the failure to be shown as a notice")
				}
				if !strings.Contains(errOut, tt.wantErrOut) {
					t.Errorf("expected %q in stderr, got %q", tt.wantErrOut, errOut)
				}
				return
			}
			if err != nil {
				t.Fatalf("verify error: %v\n%s", err, errOut)
			}
			if !strings.Contains(out, tt.wantOut) {
				t.Errorf("expected %q in output, got %q", tt.wantOut, out)
			}
		})
	}
}

func TestResend(t *testing.T) {
	env := newCLIEnv(t, false)

	out, _, err := env.run(t, "", "resend", "--email", "a@x.com")
	if err != nil {
		t.Fatalf("resend error: %v", err)
	}
	if !strings.Contains(out, verification.MsgResent) {
		t.Errorf("unexpected output: %s", out)
	}

	_, errOut, err := env.run(t, "", "resend")
	if !errors.Is(err, verification.ErrEmailRequired) {
		t.Errorf("expected ErrEmailRequired, got %v", err)
	}
	if !strings.Contains(errOut, verification.MsgEmailRequired) {
		t.Errorf("expected email prompt notice, got %q", errOut)
	}
}

func TestFiles_RequireLogin(t *testing.T) {
	env := newCLIEnv(t, false)

	_, errOut, err := env.run(t, "", "files", "list")
	if !errors.Is(err, gate.ErrAccessDenied) {
		t.Errorf("expected ErrAccessDenied, got %v", err)
	}
	if !strings.Contains(errOut, "Not logged in") {
		t.Errorf("expected login hint, got %q", errOut)
	}
	if n := env.backend.calls.Load(); n != 0 {
		t.Errorf("expected no backend calls, got %d", n)
	}
}

func TestFilesList(t *testing.T) {
	env := newCLIEnv(t, false)
	env.login(t)

	out, _, err := env.run(t, "", "files", "list")
	if err != nil {
		t.Fatalf("files list error: %v", err)
	}
	for _, want := range []string{"report.pdf", "2.0 KB", "2026-01-02 03:04", "(page 1 of 2, 21 files)"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output, got:\n%s", want, out)
		}
	}
}

func TestFilesStats(t *testing.T) {
	env := newCLIEnv(t, false)
	env.login(t)

	out, _, err := env.run(t, "", "files", "stats")
	if err != nil {
		t.Fatalf("files stats error: %v", err)
	}
	if !strings.Contains(out, "Files:      3") || !strings.Contains(out, "1.5 KB") {
		t.Errorf("unexpected output: %s", out)
	}
}

func TestFilesDownload(t *testing.T) {
	env := newCLIEnv(t, false)
	env.login(t)

	dest := filepath.Join(t.TempDir(), "out.pdf")
	out, _, err := env.run(t, "", "files", "download", "1", "-o", dest)
	if err != nil {
		t.Fatalf("download error: %v", err)
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read download: %v", err)
	}
	if string(data) != "pdf-bytes" {
		t.Errorf("unexpected contents %q", data)
	}
	if !strings.Contains(out, "Saved "+dest) {
		t.Errorf("unexpected output: %s", out)
	}
}

func TestFilesUpload(t *testing.T) {
	env := newCLIEnv(t, false)
	env.login(t)

	src := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(src, []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}

	out, _, err := env.run(t, "", "files", "upload", src)
	if err != nil {
		t.Fatalf("upload error: %v", err)
	}
	if !strings.Contains(out, "Uploaded notes.txt as file 9") {
		t.Errorf("unexpected output: %s", out)
	}
	if got, _ := env.backend.uploaded.Load().(string); got != "hello" {
		t.Errorf("expected uploaded contents hello, got %q", got)
	}
}

func TestFilesDelete(t *testing.T) {
	env := newCLIEnv(t, false)
	env.login(t)

	out, _, err := env.run(t, "", "files", "delete", "1")
	if err != nil {
		t.Fatalf("delete error: %v", err)
	}
	if !strings.Contains(out, "File deleted successfully") {
		t.Errorf("unexpected output: %s", out)
	}

	_, errOut, err := env.run(t, "", "files", "delete", "2")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !strings.Contains(errOut, "404: File not found") {
		t.Errorf("expected 404 notice, got %q", errOut)
	}

	if _, _, err := env.run(t, "", "files", "delete", "abc"); err == nil || IsReported(err) {
		t.Errorf("expected plain invalid id error, got %v", err)
	}
}
