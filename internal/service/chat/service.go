package chat

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/umayarajkumar17/portfolio/backend/internal/logger"
	"github.com/umayarajkumar17/portfolio/backend/internal/model/chat"
)

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrTooManySessions  = errors.New("too many live sessions")
	ErrResponderMissing = errors.New("responder is required")
)

// Service owns the live conversations, one Machine per session key.
type Service struct {
	responder Responder
	opts      options

	mu       sync.RWMutex
	sessions map[string]*Machine
}

// NewService keeps every conversation in memory. Sessions never outlive the
// process.
func NewService(responder Responder, opts ...Option) (*Service, error) {
	if responder == nil {
		return nil, ErrResponderMissing
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	return &Service{
		responder: responder,
		opts:      o,
		sessions:  make(map[string]*Machine),
	}, nil
}

// CreateSession mints a fresh session key with an empty conversation.
func (s *Service) CreateSession(ctx context.Context) (*Machine, error) {
	s.mu.Lock()
	if s.opts.maxSessions > 0 && len(s.sessions) >= s.opts.maxSessions {
		s.mu.Unlock()
		return nil, ErrTooManySessions
	}
	m := newMachine(uuid.NewString(), s.responder, s.opts)
	s.sessions[m.ID()] = m
	s.mu.Unlock()

	ctx = logger.WithFields(ctx, logger.Fields{Component: "chat", SessionID: m.ID()})
	slog.DebugContext(ctx, "chat session created")
	return m, nil
}

// GetSession retrieves a live session by key.
func (s *Service) GetSession(_ context.Context, sessionID string) (*Machine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return m, nil
}

// Snapshot returns the current view of a session.
func (s *Service) Snapshot(ctx context.Context, sessionID string) (chat.Session, error) {
	m, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return chat.Session{}, err
	}
	return m.Snapshot(), nil
}

// DeleteSession discards a session and everything it holds.
func (s *Service) DeleteSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	m, ok := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	s.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	m.Discard()

	ctx = logger.WithFields(ctx, logger.Fields{Component: "chat", SessionID: sessionID})
	slog.DebugContext(ctx, "chat session discarded")
	return nil
}

// SweepIdle discards sessions without visitor activity for longer than ttl
// and returns how many were removed.
func (s *Service) SweepIdle(ctx context.Context, ttl time.Duration) int {
	if ttl <= 0 {
		return 0
	}
	cutoff := s.opts.clock.Now().Add(-ttl)

	s.mu.Lock()
	var stale []*Machine
	for id, m := range s.sessions {
		if m.LastActive().Before(cutoff) {
			stale = append(stale, m)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, m := range stale {
		m.Discard()
	}
	if len(stale) > 0 {
		slog.InfoContext(logger.WithFields(ctx, logger.Fields{Component: "chat"}),
			"idle chat sessions swept", "count", len(stale), "ttl", ttl.String())
	}
	return len(stale)
}

// Count reports the number of live sessions.
func (s *Service) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Close discards every session.
func (s *Service) Close() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*Machine)
	s.mu.Unlock()

	for _, m := range sessions {
		m.Discard()
	}
}
