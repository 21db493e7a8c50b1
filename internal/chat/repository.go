package chat

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SessionRepository provides access to chat sessions and their messages.
type SessionRepository struct {
	db *sql.DB
}

// NewSessionRepository creates a new SessionRepository instance.
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Find loads a session with all of its messages. It returns nil, nil when the session
// does not exist or belongs to someone else.
func (r *SessionRepository) Find(ctx context.Context, sessionID, userID string) (*Session, error) {
	var s Session
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, title, created_at, updated_at FROM chat_sessions WHERE id = ? AND user_id = ?`,
		sessionID, userID,
	).Scan(&s.ID, &s.UserID, &s.Title, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query chat session %s: %w", sessionID, err)
	}

	s.Messages, err = r.messages(ctx, `
		SELECT id, session_id, role, content, topic, created_at
		FROM chat_messages WHERE session_id = ? ORDER BY id`, s.ID)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Latest returns the user's most recently active session without its messages, or nil.
func (r *SessionRepository) Latest(ctx context.Context, userID string) (*Session, error) {
	var s Session
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, title, created_at, updated_at
		FROM chat_sessions WHERE user_id = ?
		ORDER BY updated_at DESC LIMIT 1`,
		userID,
	).Scan(&s.ID, &s.UserID, &s.Title, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest chat session for user %s: %w", userID, err)
	}
	return &s, nil
}

// RecentMessages returns up to limit of the newest messages in the session, oldest first.
func (r *SessionRepository) RecentMessages(ctx context.Context, sessionID string, limit int) ([]Message, error) {
	return r.messages(ctx, `
		SELECT id, session_id, role, content, topic, created_at FROM (
			SELECT id, session_id, role, content, topic, created_at
			FROM chat_messages WHERE session_id = ?
			ORDER BY id DESC LIMIT ?
		) ORDER BY id`, sessionID, limit)
}

// ListForUser returns the user's sessions, most recently active first, with their messages.
func (r *SessionRepository) ListForUser(ctx context.Context, userID string, limit int) ([]Session, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, title, created_at, updated_at
		FROM chat_sessions WHERE user_id = ?
		ORDER BY updated_at DESC LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list chat sessions for user %s: %w", userID, err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var s Session
		if err := rows.Scan(&s.ID, &s.UserID, &s.Title, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chat session: %w", err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	for i := range sessions {
		sessions[i].Messages, err = r.messages(ctx, `
			SELECT id, session_id, role, content, topic, created_at
			FROM chat_messages WHERE session_id = ? ORDER BY id`, sessions[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return sessions, nil
}

// SaveExchange stores a user message and the assistant's reply in one transaction,
// creating the session on first use. A new session gets an id when it has none.
func (r *SessionRepository) SaveExchange(ctx context.Context, s *Session, question, answer Message) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO chat_sessions (id, user_id, title, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET updated_at = excluded.updated_at`,
		s.ID, s.UserID, s.Title, s.CreatedAt.UTC(), s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save chat session %s: %w", s.ID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chat_messages (session_id, role, content, topic, created_at)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare message insert: %w", err)
	}
	defer stmt.Close()

	for _, m := range []*Message{&question, &answer} {
		m.SessionID = s.ID
		m.CreatedAt = now
		res, err := stmt.ExecContext(ctx, m.SessionID, m.Role, m.Content, string(m.Topic), m.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to save %s message: %w", m.Role, err)
		}
		if m.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("failed to read message id: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit chat exchange: %w", err)
	}
	return nil
}

// Delete removes a session and its messages. It reports false when the user has no such session.
func (r *SessionRepository) Delete(ctx context.Context, sessionID, userID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM chat_sessions WHERE id = ? AND user_id = ?`, sessionID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to delete chat session %s: %w", sessionID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// CleanupIdle removes sessions with no activity in the last days and returns how many went.
func (r *SessionRepository) CleanupIdle(ctx context.Context, days int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	res, err := r.db.ExecContext(ctx, `DELETE FROM chat_sessions WHERE updated_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up chat sessions: %w", err)
	}
	return res.RowsAffected()
}

func (r *SessionRepository) messages(ctx context.Context, query string, args ...any) ([]Message, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query chat messages: %w", err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var (
			m     Message
			topic string
		)
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &topic, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chat message: %w", err)
		}
		m.Topic = Topic(topic)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
