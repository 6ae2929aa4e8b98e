package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/geotagger/client/internal/migrations"
)

// SQLite persists profile slots in a libSQL file database.
type SQLite struct {
	db      *sql.DB
	profile string
}

// OpenDB creates a libSQL connection configured for WAL journaling, a 5 s
// busy timeout and foreign keys. The path ":memory:" opens a private
// in-memory database pinned to a single connection.
func OpenDB(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("libsql", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	// libSQL rejects Exec for PRAGMAs that return rows, so drain them through
	// QueryContext instead.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		rows, err := db.QueryContext(ctx, p)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("executing %s: %w", p, err)
		}
		rows.Close()
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return db, nil
}

// OpenSQLite opens the database at path, migrates it and scopes it to profile.
func OpenSQLite(ctx context.Context, path, profile string) (*SQLite, error) {
	db, err := OpenDB(ctx, path)
	if err != nil {
		return nil, err
	}
	s, err := newSQLiteFromDB(ctx, db, profile)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func newSQLiteFromDB(ctx context.Context, db *sql.DB, profile string) (*SQLite, error) {
	if err := migrations.Run(ctx, db); err != nil {
		return nil, err
	}
	return &SQLite{db: db, profile: profile}, nil
}

func (s *SQLite) Get(ctx context.Context, key string) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM profile_kv WHERE profile = ? AND key = ?`,
		s.profile, key,
	).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("reading %q: %w", key, err)
	}
	return v, nil
}

func (s *SQLite) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO profile_kv (profile, key, value, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (profile, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		s.profile, key, value, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("writing %q: %w", key, err)
	}
	return nil
}

func (s *SQLite) Remove(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM profile_kv WHERE profile = ? AND key = ?`,
		s.profile, key,
	)
	if err != nil {
		return fmt.Errorf("removing %q: %w", key, err)
	}
	return nil
}

func (s *SQLite) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLite) Close() error { return s.db.Close() }
