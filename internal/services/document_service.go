package services

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/oselabs/paperbase/internal/core"
	"github.com/oselabs/paperbase/internal/models"
)

// SegmentPurger removes a document's segment rows and vector entries. The
// ingestion pipeline implements it; deletion flows call it to keep
// referential cleanliness.
type SegmentPurger interface {
	Purge(ctx context.Context, docID string) error
}

// Enqueuer schedules a document for ingestion.
type Enqueuer interface {
	Enqueue(ctx context.Context, docID string) error
}

type DocumentService struct {
	db      core.DbClient
	storage core.ObjectClient
	purger  SegmentPurger
	queue   Enqueuer
}

func NewDocumentService(db core.DbClient, storage core.ObjectClient, purger SegmentPurger, queue Enqueuer) *DocumentService {
	return &DocumentService{db: db, storage: storage, purger: purger, queue: queue}
}

// UploadTarget is what the client needs to PUT one file directly to storage.
type UploadTarget struct {
	DocumentID  string `json:"document_id"`
	StoragePath string `json:"storage_path"`
	UploadURL   string `json:"upload_url"`
}

// InitiateUpload reserves a document row per file and hands back presigned
// upload URLs. The id is issued up front so the row lands in one insert with
// its real storage path, no placeholder-then-update dance.
func (s *DocumentService) InitiateUpload(ctx context.Context, userID, filename, contentType string, size int64, expirySeconds int) (*UploadTarget, error) {
	filename = path.Base(strings.TrimSpace(filename))
	if filename == "" || filename == "." {
		return nil, errors.New("invalid file name")
	}
	if contentType == "" {
		contentType = "application/pdf"
	}

	docID := uuid.NewString()
	suffix := path.Ext(filename)
	if suffix == "" {
		suffix = ".pdf"
	}
	storagePath := fmt.Sprintf("%s/%s%s", userID, docID, suffix)

	doc := &models.Document{
		ID:          docID,
		UserID:      userID,
		FileName:    filename,
		StoragePath: storagePath,
		MimeType:    contentType,
		FileSize:    size,
		Status:      models.StatusPendingUpload,
	}
	if err := s.db.CreateDocument(ctx, doc); err != nil {
		return nil, err
	}

	url, err := s.storage.PresignUpload(ctx, storagePath, contentType, expirySeconds)
	if err != nil {
		return nil, err
	}

	return &UploadTarget{DocumentID: docID, StoragePath: storagePath, UploadURL: url}, nil
}

// ConfirmUpload flips pending_upload -> uploaded for the caller's documents
// and enqueues each confirmed one for ingestion. Returns the ids that were
// actually confirmed.
func (s *DocumentService) ConfirmUpload(ctx context.Context, userID string, docIDs []string) ([]string, error) {
	docs, err := s.db.ListDocumentsByIDs(ctx, userID, docIDs)
	if err != nil {
		return nil, err
	}

	confirmed := make([]string, 0, len(docs))
	for i := range docs {
		doc := &docs[i]
		ok, err := s.db.CompareAndSetStatus(ctx, doc.ID,
			[]string{models.StatusPendingUpload}, models.StatusUploaded)
		if err != nil {
			return confirmed, err
		}
		if !ok {
			continue
		}
		confirmed = append(confirmed, doc.ID)
		if err := s.queue.Enqueue(ctx, doc.ID); err != nil {
			log.Printf("enqueue %s failed: %v", doc.ID, err)
		}
	}
	return confirmed, nil
}

func (s *DocumentService) Get(ctx context.Context, userID, docID string) (*models.Document, error) {
	doc, err := s.db.GetDocumentByID(ctx, docID)
	if err != nil {
		return nil, err
	}
	if doc == nil || doc.UserID != userID {
		return nil, nil
	}
	return doc, nil
}

func (s *DocumentService) ListByUser(ctx context.Context, userID string) ([]models.Document, error) {
	return s.db.ListDocumentsByUser(ctx, userID)
}

// SignedDownloadURL generates a short-lived URL for viewing a document the
// caller owns.
func (s *DocumentService) SignedDownloadURL(ctx context.Context, userID, docID string, expirySeconds int) (string, error) {
	doc, err := s.Get(ctx, userID, docID)
	if err != nil {
		return "", err
	}
	if doc == nil || doc.StoragePath == "" {
		return "", nil
	}
	return s.storage.PresignDownload(ctx, doc.StoragePath, expirySeconds)
}

// Reprocess re-enqueues a failed document.
func (s *DocumentService) Reprocess(ctx context.Context, userID, docID string) error {
	doc, err := s.Get(ctx, userID, docID)
	if err != nil {
		return err
	}
	if doc == nil {
		return errors.New("document not found")
	}
	return s.queue.Enqueue(ctx, docID)
}

// Delete permanently removes a document: the storage object, its segment
// rows and vector entries, then the metadata row.
func (s *DocumentService) Delete(ctx context.Context, userID, docID string) error {
	doc, err := s.Get(ctx, userID, docID)
	if err != nil {
		return err
	}
	if doc == nil {
		return errors.New("document not found")
	}

	if doc.StoragePath != "" {
		if err := s.storage.DeleteFile(ctx, doc.StoragePath); err != nil {
			// The metadata row matters more than the orphaned object.
			log.Printf("WARN: failed to remove storage object %q: %v", doc.StoragePath, err)
		}
	}
	if err := s.purger.Purge(ctx, docID); err != nil {
		return err
	}
	return s.db.DeleteDocument(ctx, docID, userID)
}

// BulkDownload writes a ZIP of the caller's requested documents to w.
// Documents still waiting for their upload are skipped; duplicate names get
// a numeric suffix inside the archive.
func (s *DocumentService) BulkDownload(ctx context.Context, userID string, docIDs []string, w io.Writer) (int, error) {
	docs, err := s.db.ListDocumentsByIDs(ctx, userID, docIDs)
	if err != nil {
		return 0, err
	}
	if len(docs) == 0 {
		return 0, errors.New("no matching documents")
	}

	zw := zip.NewWriter(w)
	usedNames := map[string]int{}
	written := 0

	for i := range docs {
		doc := &docs[i]
		if doc.StoragePath == "" || doc.Status == models.StatusPendingUpload {
			continue
		}

		data, err := s.storage.GetFile(ctx, doc.StoragePath)
		if err != nil {
			log.Printf("WARN: bulk download skipping %q: %v", doc.FileName, err)
			continue
		}

		name := doc.FileName
		if n, dup := usedNames[name]; dup {
			usedNames[name] = n + 1
			ext := path.Ext(name)
			name = fmt.Sprintf("%s (%d)%s", strings.TrimSuffix(name, ext), n+1, ext)
		} else {
			usedNames[name] = 0
		}

		f, err := zw.Create(name)
		if err != nil {
			_ = zw.Close()
			return written, err
		}
		if _, err := f.Write(data); err != nil {
			_ = zw.Close()
			return written, err
		}
		written++
	}

	if err := zw.Close(); err != nil {
		return written, err
	}
	if written == 0 {
		return 0, errors.New("could not fetch any of the requested files")
	}
	return written, nil
}
