// Package repo holds the History and Notification stores. Every backend
// (memory, redis, sqlite) satisfies the same contract; rows are only ever
// appended, and a notification's only mutable fields are its delivery ref
// and its acknowledgement flag.
package repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	errx "github.com/stock-monitor/server/internal/core/error"
	"github.com/stock-monitor/server/internal/stock/model"
)

const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
	DriverSQLite = "sqlite"

	defaultListLimit = 50
)

// Stores bundles the two stores of one backend.
type Stores struct {
	History       model.HistoryRepository
	Notifications model.NotificationRepository
}

// Backends carries the opened clients; only the one matching the driver is used.
type Backends struct {
	Redis  redis.Cmdable
	SQLite *sql.DB
}

// Open builds the stores for cfg.Driver.
func Open(ctx context.Context, cfg model.StoreConfig, b Backends, loc *time.Location, logger zerolog.Logger) (Stores, error) {
	switch cfg.Driver {
	case DriverMemory:
		return Stores{History: NewMemoryHistory(loc), Notifications: NewMemoryNotifications()}, nil
	case DriverRedis, "":
		if b.Redis == nil {
			return Stores{}, fmt.Errorf("redis driver selected but no redis client")
		}
		return Stores{
			History:       NewRedisHistory(b.Redis, cfg.KeyPrefix, loc, logger),
			Notifications: NewRedisNotifications(b.Redis, cfg.KeyPrefix, logger),
		}, nil
	case DriverSQLite:
		if b.SQLite == nil {
			return Stores{}, fmt.Errorf("sqlite driver selected but no database")
		}
		if err := Migrate(ctx, b.SQLite); err != nil {
			return Stores{}, err
		}
		return Stores{
			History:       NewSQLiteHistory(b.SQLite, loc, logger),
			Notifications: NewSQLiteNotifications(b.SQLite, logger),
		}, nil
	default:
		return Stores{}, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

func validateObservation(obs model.Observation) error {
	if !obs.Key().Valid() {
		return errx.InvalidArgument("observation needs product and store ids")
	}
	if obs.Quantity < 0 {
		return errx.InvalidArgument("observation quantity must be non-negative, got %d", obs.Quantity)
	}
	if obs.ObservedAt.IsZero() {
		return errx.InvalidArgument("observation needs a timestamp")
	}
	return nil
}

func validateNotification(n model.RestockNotification) error {
	if !n.Key().Valid() {
		return errx.InvalidArgument("notification needs product and store ids")
	}
	if n.Increase <= 0 || n.Increase != n.NewQuantity-n.OldQuantity {
		return errx.InvalidArgument("notification increase must be positive and equal new-old, got %d", n.Increase)
	}
	return nil
}

func listLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	return limit
}
