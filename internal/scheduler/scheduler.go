package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/umayarajkumar17/portfolio/backend/internal/config"
	"github.com/umayarajkumar17/portfolio/backend/internal/logger"
	"github.com/umayarajkumar17/portfolio/backend/internal/service/eventlog"
)

// Sweeper evicts idle chat sessions.
type Sweeper interface {
	SweepIdle(ctx context.Context, ttl time.Duration) int
}

// Digester summarizes one day of visitor events.
type Digester interface {
	DailySummary(ctx context.Context, day time.Time) (eventlog.Summary, error)
}

// Pruner drops expired bookkeeping such as per-client rate limiters.
type Pruner interface {
	Prune() int
}

// Scheduler runs the background jobs of the service.
type Scheduler struct {
	cron     *cron.Cron
	ctx      context.Context
	cancel   context.CancelFunc
	cfg      config.SchedulerConfig
	idleTTL  time.Duration
	sweeper  Sweeper
	digester Digester
	pruners  []Pruner
	now      func() time.Time
}

// New creates a scheduler. A nil digester disables the daily digest. Pruners
// run with every session sweep.
func New(cfg config.SchedulerConfig, idleTTL time.Duration, sweeper Sweeper, digester Digester, pruners ...Pruner) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	ctx = logger.WithFields(ctx, logger.Fields{Component: "scheduler"})

	cl := cronLogger{}
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		ctx:      ctx,
		cancel:   cancel,
		cfg:      cfg,
		idleTTL:  idleTTL,
		sweeper:  sweeper,
		digester: digester,
		pruners:  pruners,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Start registers the jobs and starts the cron loop.
func (s *Scheduler) Start() error {
	if s.sweeper != nil && s.cfg.SweepInterval > 0 && s.idleTTL > 0 {
		if _, err := s.cron.AddFunc("@every "+s.cfg.SweepInterval.String(), s.Sweep); err != nil {
			return fmt.Errorf("schedule session sweep: %w", err)
		}
	}
	if s.digester != nil && s.cfg.DigestSpec != "" {
		if _, err := s.cron.AddFunc(s.cfg.DigestSpec, s.Digest); err != nil {
			return fmt.Errorf("schedule event digest %q: %w", s.cfg.DigestSpec, err)
		}
	}

	s.cron.Start()
	slog.InfoContext(s.ctx, "scheduler started", "jobs", len(s.cron.Entries()),
		"sweep_interval", s.cfg.SweepInterval.String(), "digest_spec", s.cfg.DigestSpec)
	return nil
}

// Sweep evicts chat sessions idle longer than the TTL.
func (s *Scheduler) Sweep() {
	removed := s.sweeper.SweepIdle(s.ctx, s.idleTTL)
	pruned := 0
	for _, p := range s.pruners {
		pruned += p.Prune()
	}
	slog.DebugContext(s.ctx, "session sweep finished", "removed", removed, "pruned", pruned)
}

// Digest logs the summary of the previous UTC day.
func (s *Scheduler) Digest() {
	day := s.now().AddDate(0, 0, -1)
	sum, err := s.digester.DailySummary(s.ctx, day)
	if err != nil {
		slog.ErrorContext(s.ctx, "event digest failed", "error", err)
		return
	}
	slog.InfoContext(s.ctx, "daily event digest",
		"day", sum.Day,
		"total", sum.Total,
		"unique_sessions", sum.UniqueSessions,
		"by_type", sum.ByType,
		"top_referrers", sum.TopReferrers,
	)
}

// Stop waits for running jobs and stops the loop.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.cancel()
	slog.InfoContext(s.ctx, "scheduler stopped")
}

// IsRunning reports whether any job is registered.
func (s *Scheduler) IsRunning() bool {
	return len(s.cron.Entries()) > 0
}

// cronLogger routes cron's own messages to slog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	slog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	slog.Error("cron: "+msg, append([]any{"error", err}, keysAndValues...)...)
}
