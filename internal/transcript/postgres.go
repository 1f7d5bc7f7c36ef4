package transcript

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// schema creates the utterances table on first connect. Idempotent.
const schema = `
CREATE TABLE IF NOT EXISTS utterances (
    id           uuid PRIMARY KEY,
    session_id   uuid        NOT NULL,
    text         text        NOT NULL,
    committed_at timestamptz NOT NULL
);
CREATE INDEX IF NOT EXISTS utterances_session_time_idx
    ON utterances (session_id, committed_at);
`

// PostgresStore is the durable [Store] implementation backed by a PostgreSQL
// utterances table. All methods are safe for concurrent use.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// Ensure PostgresStore implements Store at compile time.
var _ Store = (*PostgresStore)(nil)

// NewPostgresStore connects to dsn, applies the schema, and returns the
// store. The caller must call Close when done.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("transcript: connect postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("transcript: apply schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Append implements [Store].
func (s *PostgresStore) Append(ctx context.Context, u Utterance) error {
	const q = `
		INSERT INTO utterances (id, session_id, text, committed_at)
		VALUES ($1, $2, $3, $4)`

	_, err := s.pool.Exec(ctx, q, u.ID, u.SessionID, u.Text, u.CommittedAt)
	if err != nil {
		return fmt.Errorf("transcript: append: %w", err)
	}
	return nil
}

// Recent implements [Store].
func (s *PostgresStore) Recent(ctx context.Context, sessionID uuid.UUID, limit int) ([]Utterance, error) {
	const q = `
		SELECT id, session_id, text, committed_at
		FROM   (SELECT id, session_id, text, committed_at
		        FROM   utterances
		        WHERE  session_id = $1
		        ORDER  BY committed_at DESC
		        LIMIT  $2) newest
		ORDER  BY committed_at`

	rows, err := s.pool.Query(ctx, q, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("transcript: recent: %w", err)
	}
	defer rows.Close()

	var out []Utterance
	for rows.Next() {
		var u Utterance
		if err := rows.Scan(&u.ID, &u.SessionID, &u.Text, &u.CommittedAt); err != nil {
			return nil, fmt.Errorf("transcript: scan: %w", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("transcript: rows: %w", err)
	}
	return out, nil
}

// Close implements [Store].
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
