package reservation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lunahq/posada/model"
)

// PgStore is a PostgreSQL-backed session store using pgx/v5. Session state
// lives in a jsonb column; only the fields the queries need are broken out.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore creates a PostgreSQL session store over an existing pool.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// Migrate creates the sessions table if it does not exist.
func (s *PgStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS reservation_sessions (
			id         TEXT PRIMARY KEY,
			status     TEXT NOT NULL,
			state      JSONB NOT NULL,
			version    INTEGER NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			expires_at TIMESTAMPTZ
		)`)
	if err != nil {
		return fmt.Errorf("create reservation_sessions table: %w", err)
	}
	return nil
}

// Create implements Store.
func (s *PgStore) Create(ctx context.Context, session *model.ReservationSession) error {
	stateJSON, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO reservation_sessions (id, status, state, version, created_at, updated_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		session.ID, session.Status, stateJSON, session.Version,
		session.CreatedAt, session.UpdatedAt, session.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// Get implements Store.
func (s *PgStore) Get(ctx context.Context, id string) (*model.ReservationSession, error) {
	var stateJSON []byte
	var version int

	err := s.pool.QueryRow(ctx, `
		SELECT state, version FROM reservation_sessions WHERE id = $1`,
		id,
	).Scan(&stateJSON, &version)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.NewSessionNotFoundError("no such session: " + id)
	}
	if err != nil {
		return nil, fmt.Errorf("query session: %w", err)
	}

	var session model.ReservationSession
	if err := json.Unmarshal(stateJSON, &session); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	session.Version = version
	return &session, nil
}

// Update implements Store with optimistic locking.
func (s *PgStore) Update(ctx context.Context, session *model.ReservationSession) error {
	now := time.Now().UTC()
	next := cloneSession(session)
	next.Version = session.Version + 1
	next.UpdatedAt = now

	stateJSON, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE reservation_sessions SET
			status = $1, state = $2, version = $3, updated_at = $4, expires_at = $5
		WHERE id = $6 AND version = $7`,
		next.Status, stateJSON, next.Version, now, next.ExpiresAt,
		session.ID, session.Version,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.NewConflictError("session was modified concurrently")
	}

	session.Version = next.Version
	session.UpdatedAt = now
	return nil
}

// Delete implements Store.
func (s *PgStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM reservation_sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.NewSessionNotFoundError("no such session: " + id)
	}
	return nil
}

// PurgeExpired implements Store.
func (s *PgStore) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM reservation_sessions
		WHERE expires_at IS NOT NULL AND expires_at < $1`,
		now,
	)
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// Ping implements Store.
func (s *PgStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close implements Store.
func (s *PgStore) Close() {
	s.pool.Close()
}
