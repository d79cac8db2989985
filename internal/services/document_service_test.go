package services

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oselabs/paperbase/internal/models"
)

// testDB is an in-memory DbClient for service tests.
type testDB struct {
	mu    sync.Mutex
	users map[string]*models.User
	docs  map[string]*models.Document
}

func newTestDB() *testDB {
	return &testDB{users: map[string]*models.User{}, docs: map[string]*models.Document{}}
}

func (db *testDB) addDoc(d *models.Document) {
	db.mu.Lock()
	defer db.mu.Unlock()
	cp := *d
	db.docs[d.ID] = &cp
}

func (db *testDB) CreateUser(ctx context.Context, u *models.User) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	for _, existing := range db.users {
		if existing.Email == u.Email {
			return errors.New("email taken")
		}
	}
	cp := *u
	db.users[u.ID] = &cp
	return nil
}

func (db *testDB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	for _, u := range db.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (db *testDB) DeleteUser(ctx context.Context, userID string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	delete(db.users, userID)
	return nil
}

func (db *testDB) CreateDocument(ctx context.Context, doc *models.Document) error {
	db.addDoc(doc)
	return nil
}

func (db *testDB) GetDocumentByID(ctx context.Context, id string) (*models.Document, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	d, ok := db.docs[id]
	if !ok {
		return nil, nil
	}
	cp := *d
	return &cp, nil
}

func (db *testDB) ListDocumentsByUser(ctx context.Context, userID string) ([]models.Document, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	var out []models.Document
	for _, d := range db.docs {
		if d.UserID == userID {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (db *testDB) ListDocumentsByIDs(ctx context.Context, userID string, ids []string) ([]models.Document, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	var out []models.Document
	for _, id := range ids {
		if d, ok := db.docs[id]; ok && d.UserID == userID {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (db *testDB) UpdateDocumentStatus(ctx context.Context, id string, status string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if d, ok := db.docs[id]; ok {
		d.Status = status
	}
	return nil
}

func (db *testDB) CompareAndSetStatus(ctx context.Context, id string, expected []string, next string) (bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	d, ok := db.docs[id]
	if !ok {
		return false, nil
	}
	for _, e := range expected {
		if d.Status == e {
			d.Status = next
			return true, nil
		}
	}
	return false, nil
}

func (db *testDB) MarkProcessed(ctx context.Context, id string) error { return nil }
func (db *testDB) MarkFailed(ctx context.Context, id string, errMsg string) error {
	return nil
}

func (db *testDB) DeleteDocument(ctx context.Context, id string, userID string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	d, ok := db.docs[id]
	if !ok || d.UserID != userID {
		return errors.New("no such document")
	}
	delete(db.docs, id)
	return nil
}

func (db *testDB) Close() error { return nil }

// testStorage is an in-memory ObjectClient.
type testStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newTestStorage() *testStorage {
	return &testStorage{objects: map[string][]byte{}}
}

func (s *testStorage) UploadFile(ctx context.Context, key string, data io.Reader, contentType string) error {
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = b
	return nil
}

func (s *testStorage) DeleteFile(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *testStorage) DeletePrefix(ctx context.Context, prefix string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.objects {
		if strings.HasPrefix(k, prefix) {
			delete(s.objects, k)
		}
	}
	return nil
}

func (s *testStorage) GetFile(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, errors.New("no such key")
	}
	return data, nil
}

func (s *testStorage) GetObjectReader(ctx context.Context, key string) (io.ReadCloser, error) {
	data, err := s.GetFile(ctx, key)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *testStorage) PresignUpload(ctx context.Context, key string, contentType string, expirySeconds int) (string, error) {
	return "https://bucket.test/upload/" + key, nil
}

func (s *testStorage) PresignDownload(ctx context.Context, key string, expirySeconds int) (string, error) {
	return "https://bucket.test/download/" + key, nil
}

// testPurger records which documents had their segments purged.
type testPurger struct {
	mu     sync.Mutex
	purged []string
}

func (p *testPurger) Purge(ctx context.Context, docID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.purged = append(p.purged, docID)
	return nil
}

// testQueue records enqueued document ids.
type testQueue struct {
	mu       sync.Mutex
	enqueued []string
}

func (q *testQueue) Enqueue(ctx context.Context, docID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.enqueued = append(q.enqueued, docID)
	return nil
}

func newDocService() (*DocumentService, *testDB, *testStorage, *testPurger, *testQueue) {
	db := newTestDB()
	storage := newTestStorage()
	purger := &testPurger{}
	queue := &testQueue{}
	return NewDocumentService(db, storage, purger, queue), db, storage, purger, queue
}

func TestInitiateUpload(t *testing.T) {
	svc, db, _, _, queue := newDocService()

	target, err := svc.InitiateUpload(context.Background(), "user-1", "report.pdf", "application/pdf", 1234, 300)
	require.NoError(t, err)
	require.NotNil(t, target)

	assert.NotEmpty(t, target.DocumentID)
	assert.Equal(t, "user-1/"+target.DocumentID+".pdf", target.StoragePath)
	assert.Contains(t, target.UploadURL, target.StoragePath)

	doc, err := db.GetDocumentByID(context.Background(), target.DocumentID)
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, models.StatusPendingUpload, doc.Status)
	assert.Equal(t, "report.pdf", doc.FileName)
	assert.Equal(t, int64(1234), doc.FileSize)

	// Nothing is queued until the upload is confirmed.
	assert.Empty(t, queue.enqueued)
}

func TestInitiateUploadRejectsBadNames(t *testing.T) {
	svc, _, _, _, _ := newDocService()

	_, err := svc.InitiateUpload(context.Background(), "user-1", "  ", "application/pdf", 10, 300)
	assert.Error(t, err)
}

func TestConfirmUploadQueuesOnlyPendingDocs(t *testing.T) {
	svc, db, _, _, queue := newDocService()

	db.addDoc(&models.Document{ID: "a", UserID: "user-1", Status: models.StatusPendingUpload})
	db.addDoc(&models.Document{ID: "b", UserID: "user-1", Status: models.StatusProcessed})
	db.addDoc(&models.Document{ID: "c", UserID: "someone-else", Status: models.StatusPendingUpload})

	confirmed, err := svc.ConfirmUpload(context.Background(), "user-1", []string{"a", "b", "c"})
	require.NoError(t, err)

	// Only the caller's pending document flips; the processed one and the
	// foreign one are untouched.
	assert.Equal(t, []string{"a"}, confirmed)
	assert.Equal(t, []string{"a"}, queue.enqueued)

	doc, _ := db.GetDocumentByID(context.Background(), "a")
	assert.Equal(t, models.StatusUploaded, doc.Status)
	doc, _ = db.GetDocumentByID(context.Background(), "c")
	assert.Equal(t, models.StatusPendingUpload, doc.Status)
}

func TestSignedDownloadURL(t *testing.T) {
	svc, db, _, _, _ := newDocService()
	db.addDoc(&models.Document{ID: "a", UserID: "user-1", StoragePath: "user-1/a.pdf", Status: models.StatusProcessed})

	url, err := svc.SignedDownloadURL(context.Background(), "user-1", "a", 3600)
	require.NoError(t, err)
	assert.Contains(t, url, "user-1/a.pdf")

	// Unknown document and foreign document both come back empty.
	url, err = svc.SignedDownloadURL(context.Background(), "user-1", "ghost", 3600)
	require.NoError(t, err)
	assert.Empty(t, url)

	url, err = svc.SignedDownloadURL(context.Background(), "intruder", "a", 3600)
	require.NoError(t, err)
	assert.Empty(t, url)
}

func TestDeleteDocumentCascades(t *testing.T) {
	svc, db, storage, purger, _ := newDocService()
	db.addDoc(&models.Document{ID: "a", UserID: "user-1", StoragePath: "user-1/a.pdf", Status: models.StatusProcessed})
	storage.objects["user-1/a.pdf"] = []byte("pdf bytes")

	require.NoError(t, svc.Delete(context.Background(), "user-1", "a"))

	_, err := storage.GetFile(context.Background(), "user-1/a.pdf")
	assert.Error(t, err, "storage object must be gone")
	assert.Equal(t, []string{"a"}, purger.purged)
	doc, _ := db.GetDocumentByID(context.Background(), "a")
	assert.Nil(t, doc)
}

func TestDeleteDocumentChecksOwnership(t *testing.T) {
	svc, db, _, purger, _ := newDocService()
	db.addDoc(&models.Document{ID: "a", UserID: "user-1", Status: models.StatusProcessed})

	err := svc.Delete(context.Background(), "intruder", "a")
	assert.Error(t, err)
	assert.Empty(t, purger.purged)
	doc, _ := db.GetDocumentByID(context.Background(), "a")
	assert.NotNil(t, doc)
}

func TestBulkDownloadZipsOwnedDocuments(t *testing.T) {
	svc, db, storage, _, _ := newDocService()
	db.addDoc(&models.Document{ID: "a", UserID: "user-1", FileName: "report.pdf", StoragePath: "user-1/a.pdf", Status: models.StatusProcessed})
	db.addDoc(&models.Document{ID: "b", UserID: "user-1", FileName: "report.pdf", StoragePath: "user-1/b.pdf", Status: models.StatusProcessed})
	db.addDoc(&models.Document{ID: "c", UserID: "user-1", FileName: "notes.pdf", StoragePath: "user-1/c.pdf", Status: models.StatusPendingUpload})
	storage.objects["user-1/a.pdf"] = []byte("first")
	storage.objects["user-1/b.pdf"] = []byte("second")

	var buf bytes.Buffer
	written, err := svc.BulkDownload(context.Background(), "user-1", []string{"a", "b", "c"}, &buf)
	require.NoError(t, err)
	assert.Equal(t, 2, written)

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	require.Len(t, zr.File, 2)

	// Duplicate file names get a numeric suffix inside the archive; the
	// pending document is skipped entirely.
	names := map[string][]byte{}
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		names[f.Name] = data
	}
	assert.Equal(t, []byte("first"), names["report.pdf"])
	assert.Equal(t, []byte("second"), names["report (1).pdf"])
}

func TestBulkDownloadNothingToWrite(t *testing.T) {
	svc, db, _, _, _ := newDocService()
	db.addDoc(&models.Document{ID: "c", UserID: "user-1", FileName: "notes.pdf", StoragePath: "user-1/c.pdf", Status: models.StatusPendingUpload})

	var buf bytes.Buffer
	_, err := svc.BulkDownload(context.Background(), "user-1", []string{"c"}, &buf)
	assert.Error(t, err)

	_, err = svc.BulkDownload(context.Background(), "user-1", []string{"ghost"}, &buf)
	assert.Error(t, err)
}

func TestReprocess(t *testing.T) {
	svc, db, _, _, queue := newDocService()
	db.addDoc(&models.Document{ID: "a", UserID: "user-1", Status: models.StatusFailed})

	require.NoError(t, svc.Reprocess(context.Background(), "user-1", "a"))
	assert.Equal(t, []string{"a"}, queue.enqueued)

	assert.Error(t, svc.Reprocess(context.Background(), "user-1", "ghost"))
	assert.Error(t, svc.Reprocess(context.Background(), "intruder", "a"))
}
