package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/harunnryd/parley/pkg/errorsx"
	"github.com/harunnryd/parley/pkg/frames"
	"github.com/harunnryd/parley/pkg/logging"
)

// Registry maps connection ids to live sessions. It is the only structure
// shared across connections.
type Registry struct {
	opts Options
	log  *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	draining bool
}

func NewRegistry(opts Options) *Registry {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	opts.Logger = logging.NewComponentLogger(log, "session")
	return &Registry{
		opts:     opts,
		log:      logging.NewComponentLogger(log, "registry"),
		sessions: make(map[string]*Session),
	}
}

// ErrDraining is returned by Register once Drain has started.
var ErrDraining = errors.New("registry draining")

// Register starts a session for conn and returns its id.
func (r *Registry) Register(conn Conn) (string, error) {
	r.mu.Lock()
	if r.draining {
		r.mu.Unlock()
		return "", ErrDraining
	}
	id := uuid.NewString()
	s := newSession(id, conn, r.opts, r.remove)
	r.sessions[id] = s
	count := len(r.sessions)
	r.mu.Unlock()

	s.start()
	r.log.Info("session_registered", slog.String("session_id", id), slog.Int("sessions", count))
	return id, nil
}

// Dispatch forwards a frame to the session; unknown ids are ignored.
func (r *Registry) Dispatch(id string, f frames.Frame) {
	if s := r.Lookup(id); s != nil {
		s.Dispatch(f)
	}
}

// Teardown closes the session for id. Safe to call repeatedly and from
// several goroutines.
func (r *Registry) Teardown(id string) {
	r.TeardownWithReason(id, errorsx.ReasonDisconnect)
}

func (r *Registry) TeardownWithReason(id string, reason errorsx.ReasonCode) {
	if s := r.Lookup(id); s != nil {
		s.Close(reason)
	}
}

func (r *Registry) Lookup(id string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[id]
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Drain refuses new sessions, closes every live one and waits for their
// goroutines until ctx is done.
func (r *Registry) Drain(ctx context.Context) error {
	r.mu.Lock()
	r.draining = true
	live := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		live = append(live, s)
	}
	r.mu.Unlock()

	r.log.Info("registry_draining", slog.Int("sessions", len(live)))
	for _, s := range live {
		s.Close(errorsx.ReasonShutdown)
	}
	var errs []error
	for _, s := range live {
		if err := s.Wait(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *Registry) remove(s *Session) {
	r.mu.Lock()
	if r.sessions[s.id] == s {
		delete(r.sessions, s.id)
	}
	count := len(r.sessions)
	r.mu.Unlock()
	r.log.Info("session_deregistered",
		slog.String("session_id", s.id),
		slog.String("reason_code", string(s.CloseReason())),
		slog.Int("sessions", count))
}
