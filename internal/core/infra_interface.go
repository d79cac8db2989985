package core

import (
	"context"
	"io"

	"github.com/oselabs/paperbase/internal/models"
)

// DbClient defines all persistence operations the services and the ingestion
// pipeline need. It abstracts Postgres so higher layers never depend on a
// specific DB.
type DbClient interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	DeleteUser(ctx context.Context, userID string) error

	CreateDocument(ctx context.Context, doc *models.Document) error
	GetDocumentByID(ctx context.Context, id string) (*models.Document, error)
	ListDocumentsByUser(ctx context.Context, userID string) ([]models.Document, error)
	ListDocumentsByIDs(ctx context.Context, userID string, ids []string) ([]models.Document, error)
	UpdateDocumentStatus(ctx context.Context, id string, status string) error

	// CompareAndSetStatus transitions the document to next only if its current
	// status is one of expected, and reports whether the update won. This is
	// the claim that gives one worker exclusive ownership of processing.
	CompareAndSetStatus(ctx context.Context, id string, expected []string, next string) (bool, error)

	// MarkProcessed sets status=processed and stamps processed_at.
	MarkProcessed(ctx context.Context, id string) error

	// MarkFailed sets status=failed with a bounded error message.
	MarkFailed(ctx context.Context, id string, errMsg string) error

	DeleteDocument(ctx context.Context, id string, userID string) error

	Close() error
}

// PartialResult reports which entries of a vector index write did not make it.
// An empty FailedIDs means the whole batch was written.
type PartialResult struct {
	FailedIDs []string
}

// Ok reports whether every entry was written.
func (r PartialResult) Ok() bool {
	return len(r.FailedIDs) == 0
}

// VectorIndex persists (segment, vector) tuples. Upsert is idempotent by
// segment id: writing the same id twice with the same vector leaves the index
// in the same observable state as writing it once.
type VectorIndex interface {
	Upsert(ctx context.Context, segments []models.Segment) (PartialResult, error)
	DeleteByDocument(ctx context.Context, documentID string) error
	ListByDocument(ctx context.Context, documentID string) ([]models.Segment, error)
}

// ObjectClient defines interactions with S3 or any object storage.
// It's abstract so AWS can be swapped for MinIO, GCP, etc. easily.
type ObjectClient interface {
	UploadFile(ctx context.Context, key string, data io.Reader, contentType string) error
	DeleteFile(ctx context.Context, key string) error
	DeletePrefix(ctx context.Context, prefix string) error
	GetFile(ctx context.Context, key string) ([]byte, error)
	GetObjectReader(ctx context.Context, key string) (io.ReadCloser, error)

	PresignUpload(ctx context.Context, key string, contentType string, expirySeconds int) (string, error)
	PresignDownload(ctx context.Context, key string, expirySeconds int) (string, error)
}
