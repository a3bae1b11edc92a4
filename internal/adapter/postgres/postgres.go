// Package postgres implements the domain repositories using PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// DB wraps a *sql.DB and implements domain repository interfaces.
type DB struct {
	sql *sql.DB
}

// Open connects to PostgreSQL and pings it. Migrations run only when
// autoMigrate is set; otherwise use Migrate.
func Open(ctx context.Context, connStr string, autoMigrate bool) (*DB, error) {
	s, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, errors.Wrap(err, "postgres: open")
	}
	s.SetMaxOpenConns(10)
	s.SetMaxIdleConns(5)
	s.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.PingContext(pingCtx); err != nil {
		_ = s.Close()
		return nil, errors.Wrap(err, "postgres: ping")
	}

	d := &DB{sql: s}
	if autoMigrate {
		if err := d.Migrate(); err != nil {
			_ = s.Close()
			return nil, err
		}
	}
	return d, nil
}

// Close closes the underlying database connection.
func (d *DB) Close() error {
	return d.sql.Close()
}

// Migrate applies all pending embedded migrations.
func (d *DB) Migrate() error {
	src, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return errors.Wrap(err, "migrate: read migrations")
	}
	driver, err := migratepg.WithInstance(d.sql, &migratepg.Config{})
	if err != nil {
		return errors.Wrap(err, "migrate: postgres driver")
	}
	// m is not closed: closing it would close d.sql, which the caller owns.
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return errors.Wrap(err, "migrate: init")
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return errors.Wrap(err, "migrate: up")
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
