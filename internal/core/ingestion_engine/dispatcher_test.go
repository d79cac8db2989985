package ingestion_engine

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oselabs/paperbase/internal/models"
)

func startDispatcher(t *testing.T, db *testDB, p *Pipeline) (*Dispatcher, context.Context) {
	t.Helper()
	d, err := NewDispatcher(db, p, 8, 2, quietLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		d.Release()
	})
	d.Start(ctx)
	return d, ctx
}

func TestDispatcherEnqueueToProcessed(t *testing.T) {
	doc := queuedDoc("doc-1")
	doc.Status = models.StatusUploaded
	db := newTestDB(doc)
	storage := &testStorage{objects: map[string][]byte{
		"user-1/doc-1.pdf": []byte(strings.Repeat("a", 5000)),
	}}
	index := newTestIndex()
	p := NewPipeline(db, storage, &testEmbedder{}, &testExtractor{}, index, testIngestConfig(), quietLogger())

	d, ctx := startDispatcher(t, db, p)
	require.NoError(t, d.Enqueue(ctx, "doc-1"))

	require.Eventually(t, func() bool {
		return db.status("doc-1") == models.StatusProcessed
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, 3, index.count())
}

func TestDispatcherRedeliversTransientFailure(t *testing.T) {
	doc := queuedDoc("doc-1")
	doc.Status = models.StatusUploaded
	db := newTestDB(doc)
	storage := &testStorage{
		objects:  map[string][]byte{"user-1/doc-1.pdf": []byte("recoverable text")},
		failures: 1,
	}
	p := NewPipeline(db, storage, &testEmbedder{}, &testExtractor{}, newTestIndex(), testIngestConfig(), quietLogger())

	d, ctx := startDispatcher(t, db, p)
	require.NoError(t, d.Enqueue(ctx, "doc-1"))

	// The first delivery fails on download; the dispatcher requeues and the
	// second delivery lands.
	require.Eventually(t, func() bool {
		return db.status("doc-1") == models.StatusProcessed
	}, 5*time.Second, 10*time.Millisecond)
}

func TestDispatcherLeavesTerminalFailureAlone(t *testing.T) {
	doc := queuedDoc("doc-1")
	doc.Status = models.StatusUploaded
	db := newTestDB(doc)
	storage := &testStorage{objects: map[string][]byte{"user-1/doc-1.pdf": {0x01}}}
	p := NewPipeline(db, storage, &testEmbedder{}, &testExtractor{malformed: true}, newTestIndex(), testIngestConfig(), quietLogger())

	d, ctx := startDispatcher(t, db, p)
	require.NoError(t, d.Enqueue(ctx, "doc-1"))

	require.Eventually(t, func() bool {
		return db.status("doc-1") == models.StatusFailed
	}, 5*time.Second, 10*time.Millisecond)

	// Give redelivery a chance to (wrongly) kick in, then confirm it did not.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, models.StatusFailed, db.status("doc-1"))
	doc, _ = db.GetDocumentByID(ctx, "doc-1")
	assert.NotEmpty(t, doc.ErrorMessage)
}

func TestDispatcherIgnoresIneligibleDocument(t *testing.T) {
	doc := queuedDoc("doc-1")
	doc.Status = models.StatusProcessed
	db := newTestDB(doc)
	p := NewPipeline(db, &testStorage{}, &testEmbedder{}, &testExtractor{}, newTestIndex(), testIngestConfig(), quietLogger())

	d, ctx := startDispatcher(t, db, p)

	// Enqueueing a processed document is a no-op, not an error.
	require.NoError(t, d.Enqueue(ctx, "doc-1"))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, models.StatusProcessed, db.status("doc-1"))
}

func TestDispatcherDuplicateEnqueue(t *testing.T) {
	doc := queuedDoc("doc-1")
	doc.Status = models.StatusUploaded
	db := newTestDB(doc)
	storage := &testStorage{objects: map[string][]byte{
		"user-1/doc-1.pdf": []byte("some text"),
	}}
	index := newTestIndex()
	p := NewPipeline(db, storage, &testEmbedder{}, &testExtractor{}, index, testIngestConfig(), quietLogger())

	// Enqueue twice before starting workers so both jobs sit in the queue;
	// the claim must collapse them into a single processing run.
	d, err := NewDispatcher(db, p, 8, 2, quietLogger())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		d.Release()
	})

	require.NoError(t, d.Enqueue(ctx, "doc-1"))
	require.NoError(t, d.Enqueue(ctx, "doc-1"))
	d.Start(ctx)

	require.Eventually(t, func() bool {
		return db.status("doc-1") == models.StatusProcessed
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, index.count())
}
