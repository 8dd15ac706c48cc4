package eventlog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"

	"github.com/umayarajkumar17/portfolio/backend/internal/logger"
)

// Service validates and stores visitor events.
type Service struct {
	store Store
	node  *snowflake.Node
	now   func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithNow replaces the server clock.
func WithNow(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService stamps events with snowflake IDs generated by node nodeID.
func NewService(store Store, nodeID int64, opts ...Option) (*Service, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("create snowflake node: %w", err)
	}

	s := &Service{
		store: store,
		node:  node,
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Log stores one event. It returns ErrMissingFields for incomplete input.
func (s *Service) Log(ctx context.Context, in Input) (Event, error) {
	if err := in.Validate(); err != nil {
		return Event{}, err
	}

	e := Event{
		ID:        s.node.Generate().Int64(),
		SessionID: strings.TrimSpace(in.SessionID),
		EventType: strings.TrimSpace(in.EventType),
		Timestamp: clientTimestamp(in.Timestamp),
		UserAgent: in.UserAgent,
		Referrer:  in.Referrer,
		CreatedAt: s.now(),
	}

	ctx = logger.WithFields(ctx, logger.Fields{Component: "eventlog", SessionID: e.SessionID, EventType: e.EventType})
	if err := s.store.Append(ctx, e); err != nil {
		slog.ErrorContext(ctx, "failed to store event", "error", err)
		return Event{}, fmt.Errorf("store event: %w", err)
	}

	slog.DebugContext(ctx, "event logged", "event_id", e.ID)
	return e, nil
}

// List returns events created in [since, until).
func (s *Service) List(ctx context.Context, since, until time.Time) ([]Event, error) {
	return s.store.List(ctx, since, until)
}

// DailySummary aggregates the UTC day containing day.
func (s *Service) DailySummary(ctx context.Context, day time.Time) (Summary, error) {
	start := startOfDay(day)
	events, err := s.store.List(ctx, start, start.AddDate(0, 0, 1))
	if err != nil {
		return Summary{}, fmt.Errorf("list events: %w", err)
	}
	return Summarize(events, day), nil
}

// Close releases the store.
func (s *Service) Close() error {
	return s.store.Close()
}
