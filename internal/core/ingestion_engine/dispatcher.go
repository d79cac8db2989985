package ingestion_engine

import (
	"context"
	"log/slog"

	"github.com/panjf2000/ants/v2"

	"github.com/oselabs/paperbase/internal/core"
	"github.com/oselabs/paperbase/internal/models"
)

// enqueueable are the statuses a document may enter the queue from.
var enqueueable = []string{models.StatusUploaded, models.StatusFailed}

// job is one delivery attempt for a document.
type job struct {
	docID    string
	attempts int
}

// Dispatcher owns the in-memory job queue and the worker pool that drains
// it. Delivery is at-least-once with no ordering guarantee across documents;
// the pipeline's status claim absorbs duplicates. Retriable failures are
// redelivered a bounded number of times, then the document stays failed
// until something re-enqueues it.
type Dispatcher struct {
	db       core.DbClient
	pipeline *Pipeline
	jobs     chan job
	pool     *ants.Pool
	maxRetry int
	logger   *slog.Logger
}

// NewDispatcher builds a dispatcher with a bounded queue and a worker pool
// of the given size.
func NewDispatcher(db core.DbClient, p *Pipeline, queueSize, workers int, logger *slog.Logger) (*Dispatcher, error) {
	if queueSize < 1 {
		queueSize = 64
	}
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, err
	}
	return &Dispatcher{
		db:       db,
		pipeline: p,
		jobs:     make(chan job, queueSize),
		pool:     pool,
		maxRetry: p.cfg.MaxRetries,
		logger:   logger,
	}, nil
}

// Start drains the queue until ctx is done, handing each job to the pool.
func (d *Dispatcher) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				d.logger.Info("dispatcher shutting down")
				return
			case j := <-d.jobs:
				if err := d.pool.Submit(func() { d.deliver(ctx, j) }); err != nil {
					d.logger.Error("submit job", "document_id", j.docID, "error", err)
				}
			}
		}
	}()
}

// Enqueue transitions the document into queued and schedules it for
// processing. Re-enqueueing an already queued document is harmless; the
// claim keeps processing single-owner.
func (d *Dispatcher) Enqueue(ctx context.Context, docID string) error {
	queued, err := d.db.CompareAndSetStatus(ctx, docID, enqueueable, models.StatusQueued)
	if err != nil {
		return err
	}
	if !queued {
		doc, err := d.db.GetDocumentByID(ctx, docID)
		if err != nil {
			return err
		}
		// Only push when the row sits in queued already (a duplicate
		// enqueue); any other status means the document is not eligible.
		if doc == nil || doc.Status != models.StatusQueued {
			d.logger.Info("not enqueueing", "document_id", docID)
			return nil
		}
	}

	select {
	case d.jobs <- job{docID: docID}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// deliver runs one pipeline invocation and redelivers on retriable failure.
func (d *Dispatcher) deliver(ctx context.Context, j job) {
	outcome, err := d.pipeline.ProcessOne(ctx, j.docID)
	if err == nil {
		d.logger.Info("delivery done", "document_id", j.docID,
			"outcome", outcome.Kind.String(), "reason", outcome.Reason)
		return
	}

	if Retriable(err) && j.attempts < d.maxRetry {
		d.logger.Warn("redelivering after transient failure",
			"document_id", j.docID, "attempt", j.attempts+1, "error", err)
		// Failed documents are claimable again, so a plain requeue works.
		if _, cerr := d.db.CompareAndSetStatus(ctx, j.docID, enqueueable, models.StatusQueued); cerr != nil {
			d.logger.Error("requeue status flip", "document_id", j.docID, "error", cerr)
			return
		}
		select {
		case d.jobs <- job{docID: j.docID, attempts: j.attempts + 1}:
		case <-ctx.Done():
		}
		return
	}

	d.logger.Error("delivery failed", "document_id", j.docID,
		"reason", outcome.Reason, "error", err)
}

// Release tears down the worker pool.
func (d *Dispatcher) Release() {
	d.pool.Release()
}
