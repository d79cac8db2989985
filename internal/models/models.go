package models

import (
	"time"
)

// Document statuses. Transitions are monotonic along
// pending_upload -> uploaded -> queued -> processing -> processed | failed,
// with failed allowed back into queued for a retry.
const (
	StatusPendingUpload = "pending_upload"
	StatusUploaded      = "uploaded"
	StatusQueued        = "queued"
	StatusProcessing    = "processing"
	StatusProcessed     = "processed"
	StatusFailed        = "failed"
)

// MaxErrorMessageLen bounds the error_message column on failed documents.
const MaxErrorMessageLen = 500

// User represents an authenticated user of the system.
type User struct {
	ID           string    `db:"id" json:"id"`
	FirstName    string    `db:"first_name" json:"first_name"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Document represents one user-owned uploaded file and its processing state.
// StoragePath stays empty until the upload target has been issued;
// ErrorMessage is set only while the document is failed.
type Document struct {
	ID           string     `db:"id" json:"id"`
	UserID       string     `db:"user_id" json:"user_id"`
	FileName     string     `db:"file_name" json:"file_name"`
	StoragePath  string     `db:"storage_path" json:"storage_path"`
	MimeType     string     `db:"mime_type" json:"mime_type"`
	FileSize     int64      `db:"file_size" json:"file_size"`
	Status       string     `db:"status" json:"status"`
	ErrorMessage string     `db:"error_message" json:"error_message,omitempty"`
	ProcessedAt  *time.Time `db:"processed_at" json:"processed_at,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// Segment is one chunk of a document's extracted text. Segment IDs are a
// deterministic function of (document id, position), so reprocessing an
// unchanged document reproduces identical IDs and upserts overwrite instead
// of duplicating.
type Segment struct {
	ID         string    `db:"id" json:"id"`
	DocumentID string    `db:"document_id" json:"document_id"`
	Position   int       `db:"position" json:"position"`
	Text       string    `db:"text" json:"text"`
	Embedding  []float32 `db:"embedding" json:"embedding"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// TruncateError bounds a failure message so it fits the error_message column.
func TruncateError(msg string) string {
	if len(msg) <= MaxErrorMessageLen {
		return msg
	}
	return msg[:MaxErrorMessageLen]
}
