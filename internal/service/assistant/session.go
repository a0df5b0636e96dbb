package assistant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"soilchat/internal/models"
	"soilchat/internal/storage"
)

var (
	ErrEmptySessionID = errors.New("session_id is required")
	ErrInvalidRole    = errors.New("invalid message role")
)

// CreateSession registers id. It reports false without error when the id
// already exists; the existing row is left untouched.
func (s *Service) CreateSession(ctx context.Context, id string) (bool, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return false, ErrEmptySessionID
	}
	now := s.now()
	res, err := s.db.ExecContext(ctx, s.insertSessionSQL(), id, now, now)
	if err != nil {
		return false, fmt.Errorf("create session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("session rows affected: %w", err)
	}
	return affected > 0, nil
}

// GetSession returns one session or sql.ErrNoRows.
func (s *Service) GetSession(ctx context.Context, id string) (*models.Session, error) {
	var session models.Session
	err := s.db.QueryRowContext(ctx,
		s.q(`SELECT session_id, created_at, last_activity FROM sessions WHERE session_id = ?`),
		id,
	).Scan(&session.ID, &session.CreatedAt, &session.LastActivity)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &session, nil
}

// ListSessions returns all sessions ordered by last activity, newest first.
func (s *Service) ListSessions(ctx context.Context) ([]models.Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, created_at, last_activity FROM sessions ORDER BY last_activity DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]models.Session, 0)
	for rows.Next() {
		var se models.Session
		if err := rows.Scan(&se.ID, &se.CreatedAt, &se.LastActivity); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, se)
	}
	return sessions, rows.Err()
}

// AddMessage appends one turn and touches the session's last activity. A
// session that was cleared is registered again so its token stays usable.
func (s *Service) AddMessage(ctx context.Context, sessionID string, role models.Role, content string) (*models.Message, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrEmptySessionID
	}
	if !role.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}

	now := s.now()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, s.insertSessionSQL(), sessionID, now, now); err != nil {
		return nil, fmt.Errorf("ensure session: %w", err)
	}

	var id int64
	if s.dialect == storage.DialectPostgres {
		err = tx.QueryRowContext(ctx,
			`INSERT INTO messages (session_id, role, content, timestamp) VALUES ($1, $2, $3, $4) RETURNING id`,
			sessionID, string(role), content, now,
		).Scan(&id)
		if err != nil {
			return nil, fmt.Errorf("insert message: %w", err)
		}
	} else {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO messages (session_id, role, content, timestamp) VALUES (?, ?, ?, ?)`,
			sessionID, string(role), content, now,
		)
		if err != nil {
			return nil, fmt.Errorf("insert message: %w", err)
		}
		if id, err = res.LastInsertId(); err != nil {
			return nil, fmt.Errorf("message id: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		s.q(`UPDATE sessions SET last_activity = ? WHERE session_id = ?`),
		now, sessionID,
	); err != nil {
		return nil, fmt.Errorf("touch session: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit message: %w", err)
	}

	s.cache.invalidate(ctx, sessionID)
	return &models.Message{
		ID:        id,
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		Timestamp: now,
	}, nil
}

// History returns the most recent limit messages in chronological order.
func (s *Service) History(ctx context.Context, sessionID string, limit int) ([]*models.Message, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if cached, ok := s.cache.load(ctx, sessionID, limit); ok {
		return cached, nil
	}

	return s.cache.fill(ctx, sessionID, limit, func() ([]*models.Message, error) {
		return s.queryHistory(ctx, sessionID, limit)
	})
}

func (s *Service) queryHistory(ctx context.Context, sessionID string, limit int) ([]*models.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		s.q(`SELECT id, session_id, role, content, timestamp FROM messages WHERE session_id = ? ORDER BY id DESC LIMIT ?`),
		sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	messages := make([]*models.Message, 0)
	for rows.Next() {
		m := new(models.Message)
		var role string
		if err := rows.Scan(&m.ID, &m.SessionID, &role, &m.Content, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Role = models.Role(role)
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	// rows came newest first
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// ClearSession deletes the session's messages and then the session itself.
// Clearing an unknown session is not an error.
func (s *Service) ClearSession(ctx context.Context, sessionID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM messages WHERE session_id = ?`), sessionID); err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}
	if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM sessions WHERE session_id = ?`), sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit clear session: %w", err)
	}
	s.cache.invalidate(ctx, sessionID)
	return nil
}
