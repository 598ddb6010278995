package web

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"filemanager/internal/notify"
	"filemanager/internal/verification"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// Visit is one open verification page. Its flow lives until the visit
// expires or is swept.
type Visit struct {
	ID        string
	Flow      *verification.Flow
	Notices   *notify.Recorder
	CreatedAt time.Time

	mu       sync.Mutex
	redirect string
}

// Redirect returns the page the flow navigated to, empty until it has
func (v *Visit) Redirect() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.redirect
}

func (v *Visit) navigate(path string) {
	v.mu.Lock()
	v.redirect = path
	v.mu.Unlock()
}

// VisitRegistry holds the open verification visits in memory
type VisitRegistry struct {
	verifier      verification.Verifier
	ttl           time.Duration
	redirectDelay time.Duration
	clock         clockwork.Clock
	logger        *slog.Logger

	mu     sync.Mutex
	visits map[string]*Visit
}

// NewVisitRegistry creates an empty registry
func NewVisitRegistry(verifier verification.Verifier, ttl, redirectDelay time.Duration, clock clockwork.Clock, logger *slog.Logger) *VisitRegistry {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &VisitRegistry{
		verifier:      verifier,
		ttl:           ttl,
		redirectDelay: redirectDelay,
		clock:         clock,
		logger:        logger,
		visits:        make(map[string]*Visit),
	}
}

// Open starts a new visit with a fresh flow
func (r *VisitRegistry) Open() *Visit {
	v := &Visit{
		ID:        uuid.New().String(),
		Notices:   notify.NewRecorder(),
		CreatedAt: r.clock.Now(),
	}
	v.Flow = verification.NewFlow(r.verifier,
		verification.WithClock(r.clock),
		verification.WithRedirectDelay(r.redirectDelay),
		verification.WithNotifier(notify.Logged(v.Notices, r.logger)),
		verification.WithNavigator(verification.NavigatorFunc(v.navigate)),
		verification.WithLogger(r.logger.With("visit_id", v.ID)),
	)

	r.mu.Lock()
	r.visits[v.ID] = v
	r.mu.Unlock()

	return v
}

// Get returns an unexpired visit
func (r *VisitRegistry) Get(id string) (*Visit, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.visits[id]
	if !ok {
		return nil, false
	}
	if r.expired(v) {
		r.remove(v)
		return nil, false
	}
	return v, true
}

// Len returns the number of tracked visits
func (r *VisitRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.visits)
}

// Sweep drops expired visits and returns how many were removed
func (r *VisitRegistry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for _, v := range r.visits {
		if r.expired(v) {
			r.remove(v)
			removed++
		}
	}
	return removed
}

// Run sweeps expired visits every interval until ctx is done
func (r *VisitRegistry) Run(ctx context.Context, interval time.Duration) {
	ticker := r.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if n := r.Sweep(); n > 0 {
				r.logger.Debug("Swept expired verification visits", "count", n)
			}
		}
	}
}

func (r *VisitRegistry) expired(v *Visit) bool {
	return r.clock.Since(v.CreatedAt) > r.ttl
}

// remove must be called with r.mu held
func (r *VisitRegistry) remove(v *Visit) {
	v.Flow.Close()
	delete(r.visits, v.ID)
}
