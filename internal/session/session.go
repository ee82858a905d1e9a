package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mdms/backend/internal/draft"
	"github.com/mdms/backend/internal/live"
	"github.com/mdms/backend/internal/models"
	"github.com/mdms/backend/internal/remote"
	"github.com/mdms/backend/internal/service"
)

var ErrUnknownSession = errors.New("unknown session")

// Session is the explicit per-user context created at login and torn down
// at logout. Citizens get a draft and a live controller; inspectors and
// admins get a polled triage view.
type Session struct {
	Token     string         `json:"token"`
	Profile   models.Profile `json:"profile"`
	CreatedAt time.Time      `json:"created_at"`

	Draft  *draft.Draft        `json:"-"`
	Live   *live.Controller    `json:"-"`
	Triage *service.TriageView `json:"-"`

	poller *service.Poller
}

func (s *Session) IsCitizen() bool {
	return s.Profile.Role == models.RoleCitizen
}

type Deps struct {
	Detector        live.Detector
	Store           remote.TicketStore
	RefreshInterval time.Duration
	Clock           service.Clock
	Logger          zerolog.Logger
}

type Registry struct {
	deps Deps

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewRegistry(deps Deps) *Registry {
	if deps.Clock == nil {
		deps.Clock = service.SystemClock
	}
	return &Registry{deps: deps, sessions: map[string]*Session{}}
}

func (r *Registry) Create(profile models.Profile) *Session {
	s := &Session{
		Token:     uuid.NewString(),
		Profile:   profile,
		CreatedAt: r.deps.Clock().UTC(),
	}
	logger := r.deps.Logger.With().Str("session", s.Token[:8]).Str("role", profile.Role).Logger()

	if profile.Role == models.RoleCitizen {
		s.Draft = draft.New()
		s.Live = live.NewController(r.deps.Detector, s.Draft, logger)
	} else {
		s.Triage = service.NewTriageView(r.deps.Store, profile, r.deps.Clock, logger)
		s.poller = s.Triage.StartPolling(r.deps.RefreshInterval)
	}

	r.mu.Lock()
	r.sessions[s.Token] = s
	r.mu.Unlock()
	logger.Info().Str("name", profile.Name).Str("department", profile.Department).Msg("session created")
	return s
}

func (r *Registry) Get(token string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[token]
	return s, ok
}

// Close tears a session down: the poller stops and any live session is
// closed as a manual cancel.
func (r *Registry) Close(ctx context.Context, token string) error {
	r.mu.Lock()
	s, ok := r.sessions[token]
	delete(r.sessions, token)
	r.mu.Unlock()
	if !ok {
		return ErrUnknownSession
	}
	s.teardown(ctx)
	r.deps.Logger.Info().Str("session", token[:min(8, len(token))]).Msg("session closed")
	return nil
}

func (r *Registry) CloseAll(ctx context.Context) {
	r.mu.Lock()
	all := r.sessions
	r.sessions = map[string]*Session{}
	r.mu.Unlock()
	for _, s := range all {
		s.teardown(ctx)
	}
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (s *Session) teardown(ctx context.Context) {
	if s.poller != nil {
		s.poller.Stop()
	}
	if s.Live != nil {
		s.Live.Stop(ctx, true)
	}
}
