package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"go-agent-chat/internal/model"
)

// SessionRepository persists agent session transcripts. Transcripts are
// append-only: prior turns are never rewritten or deleted.
type SessionRepository struct {
	pool *pgxpool.Pool
}

func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

func (r *SessionRepository) Create(ctx context.Context, sessionID string, userID int64, title string) (model.Session, error) {
	var (
		s   model.Session
		raw []byte
	)
	err := r.pool.QueryRow(ctx,
		`INSERT INTO agent_sessions (session_id, user_id, title)
		 VALUES ($1, $2, $3)
		 RETURNING session_id, user_id, title, memory, created_at, last_activity`,
		sessionID, userID, title).
		Scan(&s.SessionID, &s.UserID, &s.Title, &raw, &s.CreatedAt, &s.LastActivity)
	if err != nil {
		return model.Session{}, fmt.Errorf("create session: %w", err)
	}

	if err := json.Unmarshal(raw, &s.Messages); err != nil {
		return model.Session{}, fmt.Errorf("decode transcript: %w", err)
	}
	return s, nil
}

// Get loads a session scoped to its owner. A session id that exists but
// belongs to a different user reports ErrSessionNotFound, so ids do not
// leak existence across users.
func (r *SessionRepository) Get(ctx context.Context, sessionID string, userID int64) (model.Session, error) {
	var (
		s   model.Session
		raw []byte
	)
	err := r.pool.QueryRow(ctx,
		`SELECT session_id, user_id, title, memory, created_at, last_activity
		 FROM agent_sessions WHERE session_id = $1 AND user_id = $2`,
		sessionID, userID).
		Scan(&s.SessionID, &s.UserID, &s.Title, &raw, &s.CreatedAt, &s.LastActivity)

	if errors.Is(err, pgx.ErrNoRows) {
		return model.Session{}, model.ErrSessionNotFound
	}
	if err != nil {
		return model.Session{}, fmt.Errorf("get session: %w", err)
	}

	if err := json.Unmarshal(raw, &s.Messages); err != nil {
		return model.Session{}, fmt.Errorf("decode transcript: %w", err)
	}
	return s, nil
}

// AppendMessages appends turns to the transcript and bumps last_activity.
func (r *SessionRepository) AppendMessages(ctx context.Context, sessionID string, userID int64, messages []model.Message) error {
	raw, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("encode transcript turns: %w", err)
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE agent_sessions
		 SET memory = memory || $3::jsonb, last_activity = $4
		 WHERE session_id = $1 AND user_id = $2`,
		sessionID, userID, raw, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("append session messages: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrSessionNotFound
	}
	return nil
}

// ListByUser returns session summaries for one user, most recent first.
func (r *SessionRepository) ListByUser(ctx context.Context, userID int64) ([]model.SessionSummary, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT session_id, title, created_at, last_activity
		 FROM agent_sessions WHERE user_id = $1
		 ORDER BY last_activity DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	summaries := make([]model.SessionSummary, 0)
	for rows.Next() {
		var s model.SessionSummary
		if err := rows.Scan(&s.SessionID, &s.Title, &s.CreatedAt, &s.LastActivity); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}
