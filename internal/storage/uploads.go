package storage

import (
	"database/sql"
	"errors"
	"time"
)

const uploadColumns = `u.id, u.session_id, u.filename, u.content_type, u.size, u.status, u.error,
	COALESCE(j.attempts, 0), u.created_at, u.updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUpload(row rowScanner, extra ...any) (Upload, error) {
	var u Upload
	var createdAt, updatedAt string
	dest := []any{&u.ID, &u.SessionID, &u.Filename, &u.ContentType, &u.Size, &u.Status, &u.Error, &u.Attempts, &createdAt, &updatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return Upload{}, err
	}
	u.CreatedAt = parseTime(createdAt)
	u.UpdatedAt = parseTime(updatedAt)
	return u, nil
}

// GetUpload returns an upload including its content.
func (s *Store) GetUpload(id string) (Upload, error) {
	var data []byte
	u, err := scanUpload(s.db.QueryRow(`
		SELECT `+uploadColumns+`, u.data
		FROM uploads u LEFT JOIN jobs j ON j.upload_id = u.id
		WHERE u.id = ?`, id), &data)
	if errors.Is(err, sql.ErrNoRows) {
		return Upload{}, ErrNotFound
	}
	if err != nil {
		return Upload{}, err
	}
	u.Data = data
	return u, nil
}

// ListUploads returns a session's uploads without their content, oldest first.
func (s *Store) ListUploads(sessionID string) ([]Upload, error) {
	rows, err := s.db.Query(`
		SELECT `+uploadColumns+`
		FROM uploads u LEFT JOIN jobs j ON j.upload_id = u.id
		WHERE u.session_id = ? ORDER BY u.created_at ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Upload
	for rows.Next() {
		u, err := scanUpload(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func uploadTime(t time.Time) string { return t.UTC().Format(timeLayout) }
