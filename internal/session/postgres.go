package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Schema is the SQL DDL for the game_sessions table. Execute it via
// [PostgresStore.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS game_sessions (
    id         TEXT PRIMARY KEY,
    state      JSONB NOT NULL,
    version    BIGINT NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// maxUpdateAttempts bounds optimistic retries of [PostgresStore.Update].
const maxUpdateAttempts = 5

// ErrConflict is returned by [PostgresStore.Update] when concurrent writers
// kept winning for every attempt.
var ErrConflict = errors.New("session: concurrent update conflict")

// DB is the database interface used by [PostgresStore]. Both *pgxpool.Pool
// and *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore is a [Store] backed by PostgreSQL. Each session is one row
// holding the whole state as JSONB. Updates use a version column for
// optimistic concurrency.
type PostgresStore struct {
	db DB
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a new [PostgresStore] that uses the given database
// connection or pool. The caller is responsible for calling
// [PostgresStore.Migrate] to ensure the schema exists before issuing queries.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate executes the [Schema] DDL against the database.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("session: migrate: %w", err)
	}
	return nil
}

// Ping checks that the database answers queries.
func (s *PostgresStore) Ping(ctx context.Context) error {
	var one int
	if err := s.db.QueryRow(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("session: ping: %w", err)
	}
	return nil
}

// load returns the stored state and its version, inserting the default
// state first when the session does not exist yet.
func (s *PostgresStore) load(ctx context.Context, id string) (State, int64, error) {
	const selectQuery = `SELECT state, version FROM game_sessions WHERE id = $1`

	var (
		raw     []byte
		version int64
	)
	err := s.db.QueryRow(ctx, selectQuery, id).Scan(&raw, &version)
	if errors.Is(err, pgx.ErrNoRows) {
		def, merr := json.Marshal(DefaultState())
		if merr != nil {
			return State{}, 0, fmt.Errorf("session: marshal default state: %w", merr)
		}
		const insertQuery = `
			INSERT INTO game_sessions (id, state) VALUES ($1, $2)
			ON CONFLICT (id) DO NOTHING`
		if _, err := s.db.Exec(ctx, insertQuery, id, def); err != nil {
			return State{}, 0, fmt.Errorf("session: create %q: %w", id, err)
		}
		err = s.db.QueryRow(ctx, selectQuery, id).Scan(&raw, &version)
	}
	if err != nil {
		return State{}, 0, fmt.Errorf("session: get %q: %w", id, err)
	}

	var st State
	if err := json.Unmarshal(raw, &st); err != nil {
		return State{}, 0, fmt.Errorf("session: unmarshal state of %q: %w", id, err)
	}
	return st, version, nil
}

// Get implements [Store].
func (s *PostgresStore) Get(ctx context.Context, id string) (State, error) {
	st, _, err := s.load(ctx, id)
	return st, err
}

// Put implements [Store].
func (s *PostgresStore) Put(ctx context.Context, id string, st State) error {
	if id == "" {
		return fmt.Errorf("session: empty session id")
	}
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("session: marshal state: %w", err)
	}
	const query = `
		INSERT INTO game_sessions (id, state) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET
			state      = EXCLUDED.state,
			version    = game_sessions.version + 1,
			updated_at = now()`
	if _, err := s.db.Exec(ctx, query, id, raw); err != nil {
		return fmt.Errorf("session: put %q: %w", id, err)
	}
	return nil
}

// Update implements [Store]. It retries when another writer changed the row
// between read and write, and gives up with [ErrConflict] after a few
// attempts.
func (s *PostgresStore) Update(ctx context.Context, id string, fn func(*State)) (State, error) {
	if id == "" {
		return State{}, fmt.Errorf("session: empty session id")
	}
	const query = `
		UPDATE game_sessions
		SET state = $2, version = version + 1, updated_at = now()
		WHERE id = $1 AND version = $3`

	for range maxUpdateAttempts {
		st, version, err := s.load(ctx, id)
		if err != nil {
			return State{}, err
		}
		fn(&st)
		raw, err := json.Marshal(st)
		if err != nil {
			return State{}, fmt.Errorf("session: marshal state: %w", err)
		}
		tag, err := s.db.Exec(ctx, query, id, raw, version)
		if err != nil {
			return State{}, fmt.Errorf("session: update %q: %w", id, err)
		}
		if tag.RowsAffected() == 1 {
			return st, nil
		}
	}
	return State{}, fmt.Errorf("%w on %q", ErrConflict, id)
}

// Clear implements [Store].
func (s *PostgresStore) Clear(ctx context.Context, id string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM game_sessions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("session: clear %q: %w", id, err)
	}
	return nil
}
