// Package postgres provides a core.SessionStore backed by PostgreSQL.
//
// Messages and handoff records are stored as JSONB payloads ordered by a
// per-session sequence number; session state is a single JSONB document
// merged on every delta. One engine process serializes writes per session,
// so sequence numbers are assigned with a plain MAX(seq)+1 subquery;
// deployments with multiple writer processes per session must add their own
// coordination.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hupe1980/tunedesk/core"
)

// Store is the PostgreSQL session store.
type Store struct {
	db *pgxpool.Pool
}

// New wraps an existing connection pool.
func New(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

var _ core.SessionStore = (*Store)(nil)

// CreateSchema creates the session tables when they do not exist.
func (s *Store) CreateSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS td_sessions (
			id         TEXT PRIMARY KEY,
			state      JSONB NOT NULL DEFAULT '{}'::jsonb,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);

		CREATE TABLE IF NOT EXISTS td_messages (
			session_id TEXT NOT NULL REFERENCES td_sessions(id),
			seq        BIGINT NOT NULL,
			payload    JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (session_id, seq)
		);

		CREATE TABLE IF NOT EXISTS td_handoffs (
			session_id TEXT NOT NULL REFERENCES td_sessions(id),
			seq        BIGINT NOT NULL,
			payload    JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (session_id, seq)
		);
	`)
	if err != nil {
		return fmt.Errorf("postgres: create schema: %w", err)
	}

	return nil
}

// DropSchema drops the session tables.
func (s *Store) DropSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `
		DROP TABLE IF EXISTS td_messages;
		DROP TABLE IF EXISTS td_handoffs;
		DROP TABLE IF EXISTS td_sessions;
	`)
	if err != nil {
		return fmt.Errorf("postgres: drop schema: %w", err)
	}

	return nil
}

// Get reassembles the session from its state document, message log and
// handoff log, all ordered by sequence. Unseen ids yield an empty session.
func (s *Store) Get(ctx context.Context, id string) (*core.Session, error) {
	sess := core.NewSession(id)

	var state []byte

	err := s.db.QueryRow(ctx, `SELECT state FROM td_sessions WHERE id = $1`, id).Scan(&state)
	if errors.Is(err, pgx.ErrNoRows) {
		return sess, nil
	}

	if err != nil {
		return nil, fmt.Errorf("postgres: get session %s: %w", id, err)
	}

	if len(state) > 0 {
		var doc map[string]any
		if err := json.Unmarshal(state, &doc); err != nil {
			return nil, fmt.Errorf("postgres: decode session state: %w", err)
		}

		sess.ApplyStateDelta(doc)
	}

	if err := s.loadMessages(ctx, sess); err != nil {
		return nil, err
	}

	if err := s.loadHandoffs(ctx, sess); err != nil {
		return nil, err
	}

	return sess, nil
}

// AppendMessage stores the message at the next sequence number.
func (s *Store) AppendMessage(ctx context.Context, sessionID string, msg core.Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("postgres: encode message: %w", err)
	}

	if err := s.ensureSession(ctx, sessionID); err != nil {
		return err
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO td_messages (session_id, seq, payload)
		 VALUES ($1, COALESCE((SELECT MAX(seq) FROM td_messages WHERE session_id = $1), 0) + 1, $2)`,
		sessionID, payload,
	)
	if err != nil {
		return fmt.Errorf("postgres: append message: %w", err)
	}

	return nil
}

// AppendHandoff stores the routing record at the next sequence number.
func (s *Store) AppendHandoff(ctx context.Context, sessionID string, rec core.HandoffRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("postgres: encode handoff: %w", err)
	}

	if err := s.ensureSession(ctx, sessionID); err != nil {
		return err
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO td_handoffs (session_id, seq, payload)
		 VALUES ($1, COALESCE((SELECT MAX(seq) FROM td_handoffs WHERE session_id = $1), 0) + 1, $2)`,
		sessionID, payload,
	)
	if err != nil {
		return fmt.Errorf("postgres: append handoff: %w", err)
	}

	return nil
}

// ApplyDelta merges the delta into the session's state document.
func (s *Store) ApplyDelta(ctx context.Context, sessionID string, delta map[string]any) error {
	if len(delta) == 0 {
		return nil
	}

	payload, err := json.Marshal(delta)
	if err != nil {
		return fmt.Errorf("postgres: encode state delta: %w", err)
	}

	if err := s.ensureSession(ctx, sessionID); err != nil {
		return err
	}

	_, err = s.db.Exec(ctx,
		`UPDATE td_sessions SET state = state || $2::jsonb, updated_at = now() WHERE id = $1`,
		sessionID, payload,
	)
	if err != nil {
		return fmt.Errorf("postgres: apply state delta: %w", err)
	}

	return nil
}

func (s *Store) ensureSession(ctx context.Context, sessionID string) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO td_sessions (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`, sessionID)
	if err != nil {
		return fmt.Errorf("postgres: ensure session %s: %w", sessionID, err)
	}

	return nil
}

func (s *Store) loadMessages(ctx context.Context, sess *core.Session) error {
	rows, err := s.db.Query(ctx,
		`SELECT payload FROM td_messages WHERE session_id = $1 ORDER BY seq ASC`, sess.ID)
	if err != nil {
		return fmt.Errorf("postgres: list messages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return fmt.Errorf("postgres: scan message: %w", err)
		}

		var msg core.Message
		if err := json.Unmarshal(payload, &msg); err != nil {
			return fmt.Errorf("postgres: decode message: %w", err)
		}

		sess.AddMessage(msg)
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("postgres: list messages: %w", err)
	}

	return nil
}

func (s *Store) loadHandoffs(ctx context.Context, sess *core.Session) error {
	rows, err := s.db.Query(ctx,
		`SELECT payload FROM td_handoffs WHERE session_id = $1 ORDER BY seq ASC`, sess.ID)
	if err != nil {
		return fmt.Errorf("postgres: list handoffs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return fmt.Errorf("postgres: scan handoff: %w", err)
		}

		var rec core.HandoffRecord
		if err := json.Unmarshal(payload, &rec); err != nil {
			return fmt.Errorf("postgres: decode handoff: %w", err)
		}

		sess.AddHandoff(rec)
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("postgres: list handoffs: %w", err)
	}

	return nil
}
