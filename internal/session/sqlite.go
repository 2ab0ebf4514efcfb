package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteSchema is the DDL applied by [OpenSQLite].
const SQLiteSchema = `
CREATE TABLE IF NOT EXISTS game_sessions (
    id         TEXT PRIMARY KEY,
    state      TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// SQLiteStore is a [Store] backed by a local SQLite file. It suits a single
// server instance that should keep game state across restarts without a
// database server. All access goes through one connection, so Update is
// serialised by its transaction.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens (creating if needed) the database at path and applies
// [SQLiteSchema].
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("session: open sqlite %q: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{`PRAGMA journal_mode=WAL`, `PRAGMA busy_timeout=5000`, SQLiteSchema} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("session: init sqlite %q: %w", path, err)
		}
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping checks that the database answers queries.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("session: ping: %w", err)
	}
	return nil
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// sqliteLoad returns the stored state of id, inserting the default state first
// when the session does not exist yet.
func sqliteLoad(ctx context.Context, q queryer, id string) (State, error) {
	var raw string
	err := q.QueryRowContext(ctx, `SELECT state FROM game_sessions WHERE id = ?`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		st := DefaultState()
		if err := sqlitePut(ctx, q, id, st); err != nil {
			return State{}, err
		}
		return st, nil
	}
	if err != nil {
		return State{}, fmt.Errorf("session: get %q: %w", id, err)
	}

	var st State
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return State{}, fmt.Errorf("session: unmarshal state of %q: %w", id, err)
	}
	return st, nil
}

func sqlitePut(ctx context.Context, q queryer, id string, st State) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("session: marshal state: %w", err)
	}
	const query = `
		INSERT INTO game_sessions (id, state) VALUES (?, ?)
		ON CONFLICT (id) DO UPDATE SET
			state      = excluded.state,
			updated_at = CURRENT_TIMESTAMP`
	if _, err := q.ExecContext(ctx, query, id, string(raw)); err != nil {
		return fmt.Errorf("session: put %q: %w", id, err)
	}
	return nil
}

// Get implements [Store].
func (s *SQLiteStore) Get(ctx context.Context, id string) (State, error) {
	return sqliteLoad(ctx, s.db, id)
}

// Put implements [Store].
func (s *SQLiteStore) Put(ctx context.Context, id string, st State) error {
	if id == "" {
		return fmt.Errorf("session: empty session id")
	}
	return sqlitePut(ctx, s.db, id, st)
}

// Update implements [Store].
func (s *SQLiteStore) Update(ctx context.Context, id string, fn func(*State)) (State, error) {
	if id == "" {
		return State{}, fmt.Errorf("session: empty session id")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return State{}, fmt.Errorf("session: update %q: %w", id, err)
	}
	defer tx.Rollback()

	st, err := sqliteLoad(ctx, tx, id)
	if err != nil {
		return State{}, err
	}
	fn(&st)
	if err := sqlitePut(ctx, tx, id, st); err != nil {
		return State{}, err
	}
	if err := tx.Commit(); err != nil {
		return State{}, fmt.Errorf("session: commit %q: %w", id, err)
	}
	return st, nil
}

// Clear implements [Store].
func (s *SQLiteStore) Clear(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM game_sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("session: clear %q: %w", id, err)
	}
	return nil
}
