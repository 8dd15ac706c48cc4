package eventlog

import (
	"context"
	"fmt"
	"time"

	"github.com/umayarajkumar17/portfolio/backend/internal/config"
)

// Store persists events.
type Store interface {
	Append(ctx context.Context, e Event) error
	// List returns events created in [since, until) ordered by creation.
	// Zero bounds are open.
	List(ctx context.Context, since, until time.Time) ([]Event, error)
	Close() error
}

// OpenStore builds the store selected by cfg.Driver.
func OpenStore(ctx context.Context, cfg config.EventsConfig) (Store, error) {
	switch cfg.Driver {
	case config.DriverMemory, "":
		return NewMemoryStoreWithCapacity(cfg.MemoryCapacity), nil
	case config.DriverFile:
		return NewFileStore(cfg.FilePath)
	case config.DriverSQLite:
		return NewSQLiteStore(ctx, cfg.SQLitePath)
	case config.DriverPostgres:
		return NewPostgresStore(ctx, cfg.DatabaseURL)
	case config.DriverRedis:
		return NewRedisStore(ctx, cfg.RedisURL, cfg.Stream)
	default:
		return nil, fmt.Errorf("unknown events driver %q", cfg.Driver)
	}
}
