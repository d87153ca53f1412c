package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/m3rciful/leihbot/core/logger"
)

const (
	component      = "db"
	connectTimeout = 5 * time.Second
	readyPoll      = 2 * time.Second
)

// Connect opens and pings the database and sizes the pool.
func Connect(cfg Config) (*sqlx.DB, error) {
	if err := cfg.Normalize(); err != nil {
		return nil, fmt.Errorf("db config: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	start := time.Now()
	db, err := sqlx.ConnectContext(ctx, cfg.Driver, cfg.DSN())
	attrs := append(cfg.target(), slog.Duration("duration", logger.Took(start)))
	if err != nil {
		logger.Error(ctx, component, "db.connect", append(attrs,
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)...)
		return nil, fmt.Errorf("db connect: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxConnections)

	logger.Info(ctx, component, "db.connect", append(attrs,
		slog.String("status", "ok"),
		slog.Int("pool_open", cfg.MaxConnections),
	)...)
	return db, nil
}

// target names the database in log lines without credentials.
func (c Config) target() []slog.Attr {
	if c.Driver == DriverSQLite {
		return []slog.Attr{slog.String("driver", c.Driver), slog.String("db", c.Path)}
	}
	return []slog.Attr{
		slog.String("driver", c.Driver),
		slog.String("host", c.Host),
		slog.String("port", c.Port),
		slog.String("db", c.Name),
	}
}

// waitReady pings the server until it answers or ctx is done. A postgres
// container usually accepts connections a few seconds after it started.
func waitReady(ctx context.Context, cfg Config) error {
	db, err := sqlx.Open(cfg.Driver, cfg.DSN())
	if err != nil {
		return err
	}
	defer db.Close()

	ticker := time.NewTicker(readyPoll)
	defer ticker.Stop()
	for {
		err := db.PingContext(ctx)
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout reached waiting for database: %w", err)
		case <-ticker.C:
		}
	}
}
