package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/szaher/meemo/internal/tutor"
)

// PostgresClient is the interface for the Postgres operations the
// store needs. *pgxpool.Pool satisfies it; tests supply a fake.
type PostgresClient interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore is a durable session store. State snapshots are stored
// as JSON in a single table.
type PostgresStore struct {
	client PostgresClient
	table  string
}

// PostgresStoreOption configures a PostgresStore.
type PostgresStoreOption func(*PostgresStore)

// WithTable sets the table name.
func WithTable(table string) PostgresStoreOption {
	return func(s *PostgresStore) { s.table = table }
}

// NewPostgresStore creates a Postgres-backed session store.
func NewPostgresStore(client PostgresClient, opts ...PostgresStoreOption) *PostgresStore {
	s := &PostgresStore{
		client: client,
		table:  "meemo_sessions",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EnsureSchema creates the session table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.client.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id         TEXT PRIMARY KEY,
			state      JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, s.table))
	if err != nil {
		return fmt.Errorf("create session table: %w", err)
	}
	return nil
}

// Get retrieves the state for a session id.
func (s *PostgresStore) Get(ctx context.Context, id string) (*tutor.State, error) {
	var data []byte
	row := s.client.QueryRow(ctx,
		fmt.Sprintf("SELECT state FROM %s WHERE id = $1", s.table), id)
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query session: %w", err)
	}

	var st tutor.State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("unmarshal session state: %w", err)
	}
	return &st, nil
}

// Put stores the state snapshot for a session id.
func (s *PostgresStore) Put(ctx context.Context, id string, st *tutor.State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal session state: %w", err)
	}

	_, err = s.client.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s (id, state, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (id) DO UPDATE SET state = $2, updated_at = now()`, s.table),
		id, data)
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

// Delete removes a session.
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	_, err := s.client.Exec(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE id = $1", s.table), id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Sweep removes sessions idle longer than olderThan.
func (s *PostgresStore) Sweep(ctx context.Context, olderThan time.Duration) (int, error) {
	tag, err := s.client.Exec(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE updated_at < $1", s.table),
		time.Now().Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("sweep sessions: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
