// Package notify delivers short user-visible notices (toasts in the web
// client, printed lines in the CLI).
package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// Level is the severity of a notice
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notice is one message shown to the user
type Notice struct {
	Level   Level  `json:"level"`
	Title   string `json:"title,omitempty"`
	Message string `json:"message"`
}

// Success builds a success notice
func Success(title, message string) Notice {
	return Notice{Level: LevelSuccess, Title: title, Message: message}
}

// Error builds an error notice
func Error(title, message string) Notice {
	return Notice{Level: LevelError, Title: title, Message: message}
}

// Notifier shows notices to the user
type Notifier interface {
	Notify(ctx context.Context, n Notice)
}

// Discard drops every notice
var Discard Notifier = discard{}

type discard struct{}

func (discard) Notify(context.Context, Notice) {}

// Recorder keeps notices in memory until they are drained
type Recorder struct {
	mu      sync.Mutex
	notices []Notice
}

// NewRecorder creates an empty recorder
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Notify records n
func (r *Recorder) Notify(_ context.Context, n Notice) {
	r.mu.Lock()
	r.notices = append(r.notices, n)
	r.mu.Unlock()
}

// Notices returns a copy of the recorded notices
func (r *Recorder) Notices() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notice(nil), r.notices...)
}

// Last returns the most recent notice
func (r *Recorder) Last() (Notice, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.notices) == 0 {
		return Notice{}, false
	}
	return r.notices[len(r.notices)-1], true
}

// Drain returns the recorded notices and forgets them
func (r *Recorder) Drain() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.notices
	r.notices = nil
	return out
}

// Writer prints notices as single lines, errors to errOut
type Writer struct {
	out    io.Writer
	errOut io.Writer
}

// NewWriter creates a line-printing notifier
func NewWriter(out, errOut io.Writer) *Writer {
	return &Writer{out: out, errOut: errOut}
}

// Notify prints n
func (w *Writer) Notify(_ context.Context, n Notice) {
	if n.Level == LevelError {
		if n.Title != "" {
			fmt.Fprintf(w.errOut, "%s: %s\n", n.Title, n.Message)
			return
		}
		fmt.Fprintf(w.errOut, "Error: %s\n", n.Message)
		return
	}
	fmt.Fprintln(w.out, n.Message)
}

// Logged wraps next so every notice is also logged
func Logged(next Notifier, logger *slog.Logger) Notifier {
	return &logged{next: next, logger: logger}
}

type logged struct {
	next   Notifier
	logger *slog.Logger
}

func (l *logged) Notify(ctx context.Context, n Notice) {
	level := slog.LevelInfo
	if n.Level == LevelError {
		level = slog.LevelWarn
	}
	l.logger.Log(ctx, level, "User notice", "level", string(n.Level), "title", n.Title, "message", n.Message)
	l.next.Notify(ctx, n)
}
