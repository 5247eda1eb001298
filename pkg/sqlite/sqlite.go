package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

type Config struct {
	Path        string `default:"stock.db"`
	BusyTimeout int    `split_words:"true" default:"5000"`
}

func (c *Config) dsn() string {
	return fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=%d&_foreign_keys=on", c.Path, c.BusyTimeout)
}

// Open opens the database file and verifies the connection. A single
// connection is kept so writers never contend on the file lock.
func (c *Config) Open(ctx context.Context) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", c.dsn())
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxIdleTime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return db, nil
}
