package database

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/m3rciful/leihbot/core/logger"
)

const (
	migrateComponent = "db.migrate"
	readyTimeout     = 30 * time.Second
)

// migrationFile is one *.up.sql file of the migrations directory.
type migrationFile struct {
	version uint64
	name    string
}

// RunMigrations applies all pending up migrations for the configured driver.
// Postgres is awaited first; an up-to-date schema is not an error.
func RunMigrations(cfg Config) error {
	if err := cfg.Normalize(); err != nil {
		return fmt.Errorf("db config: %w", err)
	}
	ctx := logger.Background()
	fail := func(event string, err error) error {
		logger.Error(ctx, migrateComponent, event,
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		return err
	}

	if cfg.Driver == DriverPostgres {
		waitCtx, cancel := context.WithTimeout(ctx, readyTimeout)
		err := waitReady(waitCtx, cfg)
		cancel()
		if err != nil {
			return fail("db.ready", fmt.Errorf("database not ready: %w", err))
		}
	}

	dir, err := cfg.MigrationsPath()
	if err != nil {
		return fail("resolve", err)
	}
	files := listMigrations(dir)
	logger.Debug(ctx, migrateComponent, "resolve",
		slog.String("driver", cfg.Driver),
		slog.String("path", dir),
		slog.Int("count", len(files)),
		slog.String("payload", logger.Summarize(names(files), 6)),
	)

	m, err := migrate.New("file://"+dir, cfg.MigrationURL())
	if err != nil {
		return fail("init", fmt.Errorf("failed to initialize migrations: %w", err))
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			logger.Warn(ctx, migrateComponent, "close",
				slog.String("err", errors.Join(srcErr, dbErr).Error()))
		}
	}()

	from, _, _ := m.Version()
	start := time.Now()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fail("apply", fmt.Errorf("migration execution failed: %w", err))
	}
	to, _, _ := m.Version()

	applied := between(files, uint64(from), uint64(to))
	logger.Info(ctx, migrateComponent, "summary",
		slog.String("status", "ok"),
		slog.Uint64("from_ver", uint64(from)),
		slog.Uint64("to_ver", uint64(to)),
		slog.Int("count", len(applied)),
		slog.String("payload", logger.Summarize(names(applied), 6)),
		slog.Duration("duration", logger.Took(start)),
	)
	return nil
}

// listMigrations returns the up files of dir ordered by version.
func listMigrations(dir string) []migrationFile {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var files []migrationFile
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".up.sql") {
			continue
		}
		prefix, _, _ := strings.Cut(name, "_")
		v, err := strconv.ParseUint(prefix, 10, 64)
		if err != nil {
			continue
		}
		files = append(files, migrationFile{version: v, name: name})
	}
	slices.SortFunc(files, func(a, b migrationFile) int {
		return cmp.Compare(a.version, b.version)
	})
	return files
}

// between selects files with from < version <= to.
func between(files []migrationFile, from, to uint64) []migrationFile {
	var out []migrationFile
	for _, f := range files {
		if f.version > from && f.version <= to {
			out = append(out, f)
		}
	}
	return out
}

func names(files []migrationFile) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.name
	}
	return out
}
