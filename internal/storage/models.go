package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Session is the persisted state of one requirements conversation. The
// requirement store and architecture are kept as JSON text; an empty
// ArchitectureJSON means no architecture has been derived.
type Session struct {
	ID                    string
	Title                 string
	RequirementsJSON      string
	ArchitectureJSON      string
	PreferredArchitecture string
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

type Message struct {
	ID        string
	SessionID string
	Sender    string
	Content   string
	CreatedAt time.Time
}

// Upload statuses. An upload moves through them together with its
// extraction job.
const (
	UploadPending    = "pending"
	UploadProcessing = "processing"
	UploadDone       = "done"
	UploadFailed     = "failed"
)

// Job statuses.
const (
	JobPending   = "pending"
	JobRunning   = "running"
	JobCompleted = "completed"
	JobFailed    = "failed"
)

// Upload is a document attached to a session for background extraction.
// Attempts is read from its extraction job.
type Upload struct {
	ID          string
	SessionID   string
	Filename    string
	ContentType string
	Size        int64
	Data        []byte
	Status      string
	Error       string
	Attempts    int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Job is the queued extraction of one upload.
type Job struct {
	ID          string
	UploadID    string
	Status      string
	Attempts    int
	MaxAttempts int
	RunAfter    time.Time
	LastError   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
