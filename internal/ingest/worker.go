package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/kalambet/reqchat/internal/session"
	"github.com/kalambet/reqchat/internal/storage"
)

const maxRetryBackoff = 5 * time.Minute

// JobStore is the extraction queue. Each transition also moves the job's
// upload to the matching status. *storage.Store satisfies it.
type JobStore interface {
	ClaimJob() (*storage.Job, error)
	CompleteJob(id string) error
	AbandonJob(id, errMsg string) error
	RetryJob(id, errMsg string, runAfter time.Time) (bool, error)
	GetUpload(id string) (storage.Upload, error)
}

// DocumentSink feeds extracted document text into a session.
// *session.Manager satisfies it.
type DocumentSink interface {
	IngestDocument(ctx context.Context, sessionID, filename, text string) (session.Reply, error)
}

// Worker extracts queued uploads and feeds them to their sessions.
type Worker struct {
	store   JobStore
	sink    DocumentSink
	poll    time.Duration
	backoff func(attempt int) time.Duration
	logger  *slog.Logger
}

// NewWorker creates a Worker with the given dependencies.
// If pollInterval is <= 0, it defaults to 500ms.
func NewWorker(store JobStore, sink DocumentSink, pollInterval time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	return &Worker{
		store:   store,
		sink:    sink,
		poll:    pollInterval,
		backoff: retryBackoff,
		logger:  slog.Default(),
	}
}

// retryBackoff doubles per attempt: 2s, 4s, 8s, up to five minutes.
func retryBackoff(attempt int) time.Duration {
	return min(time.Duration(math.Pow(2, float64(attempt)))*time.Second, maxRetryBackoff)
}

// Run polls for jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		done, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error("worker iteration failed", "error", err)
		}
		if done {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.poll):
		}
	}
}

// RunOnce claims and processes a single extraction job.
// Returns true if a job was processed (regardless of success/failure).
//
// A busy or closed session and a cancelled context are retried with
// backoff. Any other failure is final: the session has already recorded
// the outcome, so the job is abandoned and the upload marked failed.
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.store.ClaimJob()
	if err != nil {
		return false, fmt.Errorf("claiming job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	err = w.processJob(ctx, job)
	switch {
	case err == nil:
		if err := w.store.CompleteJob(job.ID); err != nil {
			return true, fmt.Errorf("completing job %s: %w", job.ID, err)
		}
	case retryable(ctx, err):
		attempt := job.Attempts + 1
		again, rerr := w.store.RetryJob(job.ID, err.Error(), time.Now().Add(w.backoff(attempt)))
		if rerr != nil {
			return true, fmt.Errorf("recording attempt for job %s: %w", job.ID, rerr)
		}
		if again {
			w.logger.Warn("job failed, will retry", "job_id", job.ID, "upload_id", job.UploadID, "attempt", attempt, "error", err)
		} else {
			w.logger.Warn("job failed, giving up", "job_id", job.ID, "upload_id", job.UploadID, "attempts", attempt, "error", err)
		}
	default:
		w.logger.Warn("document extraction failed", "job_id", job.ID, "upload_id", job.UploadID, "error", err)
		if err := w.store.AbandonJob(job.ID, err.Error()); err != nil {
			return true, fmt.Errorf("abandoning job %s: %w", job.ID, err)
		}
	}
	return true, nil
}

func retryable(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, session.ErrBusy) || errors.Is(err, session.ErrClosed)
}

func (w *Worker) processJob(ctx context.Context, job *storage.Job) error {
	up, err := w.store.GetUpload(job.UploadID)
	if err != nil {
		return fmt.Errorf("loading upload %s: %w", job.UploadID, err)
	}

	text, err := ExtractText(up.Filename, up.ContentType, up.Data)
	if err != nil {
		return err
	}

	reply, err := w.sink.IngestDocument(ctx, up.SessionID, up.Filename, text)
	if err != nil {
		return fmt.Errorf("ingesting %s into session %s: %w", up.Filename, up.SessionID, err)
	}

	w.logger.Info("document ingested", "upload_id", up.ID, "session", up.SessionID, "added", reply.Added, "skipped", reply.Skipped)
	return nil
}
