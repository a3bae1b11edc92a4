// Package storage selects and opens the repository adapter named in config.
// It is the only place that knows which adapters exist.
package storage

import (
	"context"
	"io"
	"log/slog"

	"tasktimer/internal/adapter/memory"
	"tasktimer/internal/adapter/mysql"
	"tasktimer/internal/adapter/postgres"
	"tasktimer/internal/config"
	"tasktimer/internal/domain"

	"github.com/pkg/errors"
)

// Store bundles the repositories of one backend.
type Store struct {
	Driver   string
	Records  domain.TimeRecordRepository
	Users    domain.UserRepository
	Sessions domain.SessionRepository

	closer io.Closer
}

// Close releases the backend connection.
func (s *Store) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// Open builds the repositories for cfg.Driver.
func Open(ctx context.Context, cfg config.Store, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}
	switch cfg.Driver {
	case config.DriverMemory, "":
		db := memory.New()
		log.Warn("using in-memory store; records are lost on restart")
		return &Store{Driver: config.DriverMemory, Records: db, Users: db, Sessions: db.NewSessionRepo(), closer: db}, nil

	case config.DriverPostgres:
		db, err := postgres.Open(ctx, cfg.DSN, cfg.AutoMigrate)
		if err != nil {
			return nil, errors.Wrap(err, "open postgres store")
		}
		log.Info("postgres store ready", slog.Bool("auto_migrate", cfg.AutoMigrate))
		return &Store{Driver: cfg.Driver, Records: db, Users: db, Sessions: postgres.NewSessionRepo(db), closer: db}, nil

	case config.DriverMySQL:
		db, err := mysql.Open(ctx, cfg.DSN, cfg.AutoMigrate)
		if err != nil {
			return nil, errors.Wrap(err, "open mysql store")
		}
		log.Info("mysql store ready", slog.Bool("auto_migrate", cfg.AutoMigrate))
		return &Store{Driver: cfg.Driver, Records: db, Users: db, Sessions: mysql.NewSessionRepo(db), closer: db}, nil
	}
	return nil, errors.Errorf("unknown store driver %q", cfg.Driver)
}

type migrator interface {
	Migrate() error
	Close() error
}

// Migrate applies pending schema migrations for SQL drivers. It is a no-op
// for the memory driver.
func Migrate(ctx context.Context, cfg config.Store, log *slog.Logger) error {
	if log == nil {
		log = slog.Default()
	}
	var (
		db  migrator
		err error
	)
	switch cfg.Driver {
	case config.DriverMemory, "":
		log.Info("memory store has no schema; nothing to migrate")
		return nil
	case config.DriverPostgres:
		db, err = postgres.Open(ctx, cfg.DSN, false)
	case config.DriverMySQL:
		db, err = mysql.Open(ctx, cfg.DSN, false)
	default:
		return errors.Errorf("unknown store driver %q", cfg.Driver)
	}
	if err != nil {
		return errors.Wrapf(err, "open %s store", cfg.Driver)
	}
	defer db.Close() //nolint:errcheck

	if err := db.Migrate(); err != nil {
		return err
	}
	log.Info("migrations applied", slog.String("driver", cfg.Driver))
	return nil
}
