package storage

import (
	"database/sql"
	"fmt"
	"time"
)

const timeLayout = time.RFC3339Nano

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}

// CreateSession inserts a new session row. Zero timestamps are set to now.
func (s *Store) CreateSession(sess Session) error {
	now := time.Now().UTC()
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = now
	}
	if sess.UpdatedAt.IsZero() {
		sess.UpdatedAt = sess.CreatedAt
	}
	_, err := s.db.Exec(`
		INSERT INTO sessions (id, title, requirements_json, architecture_json, preferred_architecture, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.Title, sess.RequirementsJSON, sess.ArchitectureJSON, sess.PreferredArchitecture,
		sess.CreatedAt.UTC().Format(timeLayout), sess.UpdatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting session %s: %w", sess.ID, err)
	}
	return nil
}

// GetSession returns a session by id.
func (s *Store) GetSession(id string) (Session, error) {
	var sess Session
	var createdAt, updatedAt string
	err := s.db.QueryRow(`
		SELECT id, title, requirements_json, architecture_json, preferred_architecture, created_at, updated_at
		FROM sessions WHERE id = ?`, id).Scan(
		&sess.ID, &sess.Title, &sess.RequirementsJSON, &sess.ArchitectureJSON, &sess.PreferredArchitecture,
		&createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, err
	}
	sess.CreatedAt = parseTime(createdAt)
	sess.UpdatedAt = parseTime(updatedAt)
	return sess, nil
}

// ListSessions returns up to limit sessions, most recently updated first.
func (s *Store) ListSessions(limit int) ([]Session, error) {
	rows, err := s.db.Query(`
		SELECT id, title, requirements_json, architecture_json, preferred_architecture, created_at, updated_at
		FROM sessions ORDER BY updated_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var sess Session
		var createdAt, updatedAt string
		if err := rows.Scan(&sess.ID, &sess.Title, &sess.RequirementsJSON, &sess.ArchitectureJSON,
			&sess.PreferredArchitecture, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		sess.CreatedAt = parseTime(createdAt)
		sess.UpdatedAt = parseTime(updatedAt)
		out = append(out, sess)
	}
	return out, rows.Err()
}

// SaveSessionState writes the session's mutable columns and appends msgs to
// its chat log in one transaction.
func (s *Store) SaveSessionState(sess Session, msgs []Message) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning session transaction: %w", err)
	}
	defer tx.Rollback()

	updatedAt := sess.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	res, err := tx.Exec(`
		UPDATE sessions SET title = ?, requirements_json = ?, architecture_json = ?, preferred_architecture = ?, updated_at = ?
		WHERE id = ?`,
		sess.Title, sess.RequirementsJSON, sess.ArchitectureJSON, sess.PreferredArchitecture,
		updatedAt.UTC().Format(timeLayout), sess.ID,
	)
	if err != nil {
		return fmt.Errorf("updating session %s: %w", sess.ID, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return ErrNotFound
	}

	for _, m := range msgs {
		if _, err := tx.Exec(`INSERT INTO messages (id, session_id, sender, content, created_at) VALUES (?, ?, ?, ?, ?)`,
			m.ID, sess.ID, m.Sender, m.Content, m.CreatedAt.UTC().Format(timeLayout)); err != nil {
			return fmt.Errorf("inserting message %s: %w", m.ID, err)
		}
	}
	return tx.Commit()
}

// ListMessages returns a session's chat log in insertion order.
func (s *Store) ListMessages(sessionID string) ([]Message, error) {
	rows, err := s.db.Query(`SELECT id, session_id, sender, content, created_at FROM messages WHERE session_id = ? ORDER BY rowid ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		var createdAt string
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Sender, &m.Content, &createdAt); err != nil {
			return nil, err
		}
		m.CreatedAt = parseTime(createdAt)
		out = append(out, m)
	}
	return out, rows.Err()
}

// DeleteSession removes a session together with its messages, uploads and
// their extraction jobs.
func (s *Store) DeleteSession(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning delete transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return ErrNotFound
	}
	if _, err := tx.Exec(`DELETE FROM messages WHERE session_id = ?`, id); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM jobs WHERE upload_id IN (SELECT id FROM uploads WHERE session_id = ?)`, id); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM uploads WHERE session_id = ?`, id); err != nil {
		return err
	}
	return tx.Commit()
}
