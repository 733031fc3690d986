package storage

import (
	"cmp"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const defaultMaxAttempts = 3

// Job times are stored at second precision so run_after compares as text.
func jobTime(t time.Time) string { return t.UTC().Format(time.RFC3339) }

// QueueUpload stores an uploaded document and the job that extracts it.
// A zero job.RunAfter means now; a zero job.MaxAttempts means 3.
func (s *Store) QueueUpload(u Upload, job Job) error {
	now := time.Now()
	runAfter := now
	if !job.RunAfter.IsZero() {
		runAfter = job.RunAfter
	}
	return s.inTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`
			INSERT INTO uploads (id, session_id, filename, content_type, size, data, status, error, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, '', ?, ?)`,
			u.ID, u.SessionID, u.Filename, u.ContentType, len(u.Data), u.Data, UploadPending,
			uploadTime(now), uploadTime(now),
		); err != nil {
			return fmt.Errorf("inserting upload %s: %w", u.ID, err)
		}
		if _, err := tx.Exec(`
			INSERT INTO jobs (id, upload_id, status, attempts, max_attempts, run_after, created_at, updated_at)
			VALUES (?, ?, ?, 0, ?, ?, ?, ?)`,
			job.ID, u.ID, JobPending, cmp.Or(job.MaxAttempts, defaultMaxAttempts),
			jobTime(runAfter), jobTime(now), jobTime(now),
		); err != nil {
			return fmt.Errorf("queueing job for upload %s: %w", u.ID, err)
		}
		return nil
	})
}

// ClaimJob moves the oldest runnable job to running and its upload to
// processing. It returns nil, nil when nothing is runnable.
func (s *Store) ClaimJob() (*Job, error) {
	now := jobTime(time.Now())
	var claimed *Job
	err := s.inTx(func(tx *sql.Tx) error {
		var j Job
		var runAfter, createdAt string
		err := tx.QueryRow(`
			SELECT id, upload_id, attempts, max_attempts, run_after, last_error, created_at
			FROM jobs
			WHERE status = ? AND run_after <= ?
			ORDER BY run_after ASC, created_at ASC
			LIMIT 1`, JobPending, now).Scan(
			&j.ID, &j.UploadID, &j.Attempts, &j.MaxAttempts, &runAfter, &j.LastError, &createdAt,
		)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("selecting next job: %w", err)
		}

		if _, err := tx.Exec(`UPDATE jobs SET status = ?, updated_at = ? WHERE id = ?`, JobRunning, now, j.ID); err != nil {
			return fmt.Errorf("claiming job %s: %w", j.ID, err)
		}
		if err := setUploadStatus(tx, j.UploadID, UploadProcessing, ""); err != nil {
			return err
		}

		j.Status = JobRunning
		j.RunAfter, _ = time.Parse(time.RFC3339, runAfter)
		j.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		j.UpdatedAt, _ = time.Parse(time.RFC3339, now)
		claimed = &j
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// CompleteJob marks a job completed and its upload done.
func (s *Store) CompleteJob(id string) error {
	return s.settleJob(id, JobCompleted, UploadDone, "")
}

// AbandonJob fails a job without further attempts and records errMsg on
// its upload.
func (s *Store) AbandonJob(id, errMsg string) error {
	return s.settleJob(id, JobFailed, UploadFailed, errMsg)
}

// RetryJob records a failed attempt. While attempts remain the job returns
// to pending until runAfter and its upload to pending; otherwise both fail.
// It reports whether the job will run again.
func (s *Store) RetryJob(id, errMsg string, runAfter time.Time) (bool, error) {
	retry := false
	err := s.inTx(func(tx *sql.Tx) error {
		var uploadID string
		var attempts, maxAttempts int
		err := tx.QueryRow(`SELECT upload_id, attempts, max_attempts FROM jobs WHERE id = ?`, id).
			Scan(&uploadID, &attempts, &maxAttempts)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		attempts++
		retry = attempts < maxAttempts
		jobStatus, uploadStatus, uploadErr := JobFailed, UploadFailed, errMsg
		if retry {
			jobStatus, uploadStatus, uploadErr = JobPending, UploadPending, ""
		}
		if _, err := tx.Exec(`
			UPDATE jobs SET status = ?, attempts = ?, last_error = ?, run_after = ?, updated_at = ?
			WHERE id = ?`,
			jobStatus, attempts, errMsg, jobTime(runAfter), jobTime(time.Now()), id,
		); err != nil {
			return fmt.Errorf("recording attempt for job %s: %w", id, err)
		}
		return setUploadStatus(tx, uploadID, uploadStatus, uploadErr)
	})
	return retry, err
}

// RequeueRunningJobs returns jobs left running by a previous process, and
// their uploads, to pending. It returns the number of jobs reset.
func (s *Store) RequeueRunningJobs() (int, error) {
	now := time.Now()
	var n int64
	err := s.inTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`
			UPDATE uploads SET status = ?, updated_at = ?
			WHERE id IN (SELECT upload_id FROM jobs WHERE status = ?)`,
			UploadPending, uploadTime(now), JobRunning,
		); err != nil {
			return fmt.Errorf("requeueing uploads: %w", err)
		}
		res, err := tx.Exec(`UPDATE jobs SET status = ?, run_after = ?, updated_at = ? WHERE status = ?`,
			JobPending, jobTime(now), jobTime(now), JobRunning)
		if err != nil {
			return fmt.Errorf("requeueing running jobs: %w", err)
		}
		n, err = res.RowsAffected()
		return err
	})
	return int(n), err
}

func (s *Store) settleJob(id, jobStatus, uploadStatus, errMsg string) error {
	return s.inTx(func(tx *sql.Tx) error {
		var uploadID string
		err := tx.QueryRow(`SELECT upload_id FROM jobs WHERE id = ?`, id).Scan(&uploadID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if _, err := tx.Exec(`UPDATE jobs SET status = ?, last_error = ?, updated_at = ? WHERE id = ?`,
			jobStatus, errMsg, jobTime(time.Now()), id); err != nil {
			return fmt.Errorf("settling job %s: %w", id, err)
		}
		return setUploadStatus(tx, uploadID, uploadStatus, errMsg)
	})
}

// setUploadStatus updates an upload inside a job transition. A missing
// upload is not an error: the worker reports it when loading the content.
func setUploadStatus(tx *sql.Tx, id, status, errMsg string) error {
	if _, err := tx.Exec(`UPDATE uploads SET status = ?, error = ?, updated_at = ? WHERE id = ?`,
		status, errMsg, uploadTime(time.Now()), id); err != nil {
		return fmt.Errorf("updating upload %s: %w", id, err)
	}
	return nil
}
