// Package migrate applies the SQL schema in migrations/ with golang-migrate.
package migrate

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file" // file source for migrations
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// ErrDirty means a previous migration failed halfway and needs a manual fix
// (usually `migrate force`).
var ErrDirty = errors.New("database is in dirty state")

// Runner owns one database connection for the lifetime of a migration
// session. Close releases it.
type Runner struct {
	m      *migrate.Migrate
	logger *zap.Logger
}

func NewRunner(databaseURL, migrationsPath string, logger *zap.Logger) (*Runner, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create postgres driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://"+strings.TrimPrefix(migrationsPath, "file://"),
		"postgres",
		driver,
	)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = zapLogger{logger.Sugar()}

	return &Runner{m: m, logger: logger}, nil
}

// Up applies every pending migration and returns the resulting version.
func (r *Runner) Up() (uint, error) {
	if err := r.m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("failed to run migrations: %w", err)
	}
	return r.settled()
}

// Steps applies n migrations, rolling back when n is negative.
func (r *Runner) Steps(n int) (uint, error) {
	if n == 0 {
		return r.settled()
	}
	if err := r.m.Steps(n); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("failed to apply %d migration steps: %w", n, err)
	}
	return r.settled()
}

// Version returns the current migration version; 0 means no migration has
// been applied.
func (r *Runner) Version() (uint, bool, error) {
	version, dirty, err := r.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get version: %w", err)
	}
	return version, dirty, nil
}

func (r *Runner) Close() error {
	srcErr, dbErr := r.m.Close()
	return errors.Join(srcErr, dbErr)
}

func (r *Runner) settled() (uint, error) {
	version, dirty, err := r.Version()
	if err != nil {
		return 0, err
	}
	if dirty {
		return version, fmt.Errorf("%w at version %d", ErrDirty, version)
	}
	r.logger.Info("Database schema is up to date", zap.Uint("version", version))
	return version, nil
}

// zapLogger adapts zap to migrate.Logger.
type zapLogger struct {
	s *zap.SugaredLogger
}

func (l zapLogger) Printf(format string, v ...interface{}) {
	l.s.Debugf(strings.TrimSpace(format), v...)
}

func (l zapLogger) Verbose() bool { return false }
