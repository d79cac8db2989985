package ingestion_engine

import (
	"context"
	"errors"
	"log/slog"

	"github.com/oselabs/paperbase/internal/core"
	"github.com/oselabs/paperbase/internal/models"
)

// OutcomeKind is the top-level result of one pipeline invocation.
type OutcomeKind int

const (
	OutcomeProcessed OutcomeKind = iota + 1
	OutcomeSkipped
	OutcomeFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeProcessed:
		return "processed"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Skip reasons. A duplicate delivery is silently absorbed with one of these,
// never an error, so at-least-once delivery stays safe.
const (
	SkipAlreadyProcessed = "already_processed"
	SkipInProgress       = "in_progress"
	SkipNotReady         = "not_ready"
)

// Outcome reports what one ProcessOne invocation did.
type Outcome struct {
	Kind   OutcomeKind
	Reason string
}

// Pipeline orchestrates document ingestion: download, extract, chunk, embed,
// index, finalize. It enforces the document status state machine, defends
// against duplicate delivery with a compare-and-swap claim, and classifies
// every failure so the dispatcher can decide about retries.
//
// All collaborators are passed in explicitly; the pipeline holds no global
// state and is safe to invoke concurrently for different document ids.
type Pipeline struct {
	db        core.DbClient
	obj       core.ObjectClient
	embedder  core.EmbeddingProvider
	extractor core.DocumentExtractor
	index     core.VectorIndex
	chunker   Chunker
	cfg       *IngestConfig
	logger    *slog.Logger
}

// NewPipeline wires the pipeline. A nil logger falls back to slog.Default.
func NewPipeline(
	db core.DbClient,
	obj core.ObjectClient,
	emb core.EmbeddingProvider,
	extractor core.DocumentExtractor,
	index core.VectorIndex,
	cfg *IngestConfig,
	logger *slog.Logger,
) *Pipeline {
	if cfg == nil {
		cfg = DefaultIngestConfig()
	}
	cfg.normalize()
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		db:        db,
		obj:       obj,
		embedder:  emb,
		extractor: extractor,
		index:     index,
		chunker:   NewChunker(cfg.ChunkSize, cfg.ChunkOverlap),
		cfg:       cfg,
		logger:    logger,
	}
}

// claimable are the statuses a worker may take ownership from.
var claimable = []string{models.StatusQueued, models.StatusFailed}

// ProcessOne runs the full ingestion pipeline for one document. It is safe
// under at-least-once delivery: a repeat invocation for a processed document
// returns Skipped, and two racing workers resolve through the status claim
// so only one proceeds. Every exit after the claim resolves the document to
// processed or failed; it is never left in processing.
func (p *Pipeline) ProcessOne(ctx context.Context, docID string) (Outcome, error) {
	log := p.logger.With("document_id", docID)

	doc, err := p.db.GetDocumentByID(ctx, docID)
	if err != nil {
		return Outcome{Kind: OutcomeFailed, Reason: KindTransientIO.String()},
			pipeErr(KindTransientIO, "load document: %w", err)
	}
	if doc == nil {
		return Outcome{Kind: OutcomeFailed, Reason: KindNotFound.String()},
			pipeErr(KindNotFound, "document %s not found", docID)
	}

	// Idempotency guard against duplicate delivery.
	if doc.Status == models.StatusProcessed {
		log.Info("skipping, already processed")
		return Outcome{Kind: OutcomeSkipped, Reason: SkipAlreadyProcessed}, nil
	}
	if doc.Status == models.StatusProcessing {
		log.Info("skipping, another worker is processing")
		return Outcome{Kind: OutcomeSkipped, Reason: SkipInProgress}, nil
	}

	// The claim: a single conditional status update. Losing the race means
	// another worker owns this document now.
	claimed, err := p.db.CompareAndSetStatus(ctx, docID, claimable, models.StatusProcessing)
	if err != nil {
		return Outcome{Kind: OutcomeFailed, Reason: KindTransientIO.String()},
			pipeErr(KindTransientIO, "claim document: %w", err)
	}
	if !claimed {
		return p.skipAfterLostClaim(ctx, docID, log)
	}

	log.Info("claimed document", "status_was", doc.Status)

	if perr := p.run(ctx, doc); perr != nil {
		log.Error("processing failed", "kind", perr.Kind.String(), "error", perr.Err)
		if dberr := p.db.MarkFailed(ctx, docID, models.TruncateError(perr.Error())); dberr != nil {
			log.Error("could not record failure", "error", dberr)
		}
		return Outcome{Kind: OutcomeFailed, Reason: perr.Kind.String()}, perr
	}

	if err := p.db.MarkProcessed(ctx, docID); err != nil {
		// Stages succeeded but the terminal write did not; surface as
		// retriable so a re-run can land the status (the re-run's stages
		// are idempotent).
		if dberr := p.db.MarkFailed(ctx, docID, models.TruncateError(err.Error())); dberr != nil {
			log.Error("could not record failure", "error", dberr)
		}
		return Outcome{Kind: OutcomeFailed, Reason: KindTransientIO.String()},
			pipeErr(KindTransientIO, "finalize: %w", err)
	}

	log.Info("document processed")
	return Outcome{Kind: OutcomeProcessed}, nil
}

// skipAfterLostClaim re-reads the row to report the precise skip reason.
func (p *Pipeline) skipAfterLostClaim(ctx context.Context, docID string, log *slog.Logger) (Outcome, error) {
	doc, err := p.db.GetDocumentByID(ctx, docID)
	if err != nil || doc == nil {
		log.Info("lost claim race")
		return Outcome{Kind: OutcomeSkipped, Reason: SkipInProgress}, nil
	}
	reason := SkipInProgress
	switch doc.Status {
	case models.StatusProcessed:
		reason = SkipAlreadyProcessed
	case models.StatusPendingUpload, models.StatusUploaded:
		// Delivered before the document was queued; nothing to do yet.
		reason = SkipNotReady
	}
	log.Info("lost claim race", "reason", reason)
	return Outcome{Kind: OutcomeSkipped, Reason: reason}, nil
}

// run executes the five stages for a claimed document. Stage order within a
// document is strictly sequential; only embedding batches fan out, and all
// of them complete or conclusively fail before indexing starts.
func (p *Pipeline) run(ctx context.Context, doc *models.Document) *PipelineError {
	// Stage 1: download raw bytes from the blob store.
	dctx, cancel := context.WithTimeout(ctx, p.cfg.StorageTimeout)
	data, err := p.obj.GetFile(dctx, doc.StoragePath)
	cancel()
	if err != nil {
		return pipeErr(KindTransientIO, "download %s: %w", doc.StoragePath, err)
	}

	// Stage 2: extract text. Unparseable bytes are terminal, not transient.
	text, err := p.extractor.ExtractText(ctx, data, doc.MimeType)
	if err != nil {
		if errors.Is(err, ErrMalformedInput) {
			return pipeErr(KindMalformedInput, "extract: %w", err)
		}
		return pipeErr(KindTransientIO, "extract: %w", err)
	}

	// Stage 3: chunk into segments with deterministic ids.
	segments := p.chunker.Segments(doc.ID, text)
	if len(segments) == 0 {
		return pipeErr(KindMalformedInput, "no text extracted from %s", doc.StoragePath)
	}
	p.logger.Info("chunked document", "document_id", doc.ID, "segments", len(segments))

	// Stage 4: embed in bounded-concurrency batches.
	if perr := p.embedSegments(ctx, segments); perr != nil {
		return perr
	}

	// Stage 5: full reprocessing regenerates segments from scratch, so drop
	// whatever an earlier run left behind, then upsert the fresh set.
	ictx, cancel := context.WithTimeout(ctx, p.cfg.IndexTimeout)
	err = p.index.DeleteByDocument(ictx, doc.ID)
	cancel()
	if err != nil {
		return pipeErr(KindTransientIO, "clear stale segments: %w", err)
	}
	return p.upsertSegments(ctx, segments)
}

// upsertSegments writes segments into the vector index, retrying only the
// failed subset when the adapter reports partial success.
func (p *Pipeline) upsertSegments(ctx context.Context, segments []models.Segment) *PipelineError {
	pending := segments
	var lastErr error

	for attempt := 0; attempt <= p.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepBackoff(ctx, p.cfg, attempt); err != nil {
				return pipeErr(KindTransientIO, "index retry interrupted: %w", err)
			}
		}

		ictx, cancel := context.WithTimeout(ctx, p.cfg.IndexTimeout)
		res, err := p.index.Upsert(ictx, pending)
		cancel()
		if err != nil {
			lastErr = err
			continue
		}
		if res.Ok() {
			return nil
		}

		// Retry only the entries the adapter could not write.
		failed := make(map[string]bool, len(res.FailedIDs))
		for _, id := range res.FailedIDs {
			failed[id] = true
		}
		retry := pending[:0:0]
		for _, s := range pending {
			if failed[s.ID] {
				retry = append(retry, s)
			}
		}
		pending = retry
		lastErr = pipeErr(KindTransientIO, "%d segments not written", len(pending))
	}

	return pipeErr(KindProviderExhausted, "index upsert after %d attempts: %w", p.cfg.MaxRetries+1, lastErr)
}

// Purge removes every segment row and vector entry for a document so the
// deletion collaborators can keep referential cleanliness. The document row
// itself belongs to them, not to the pipeline.
func (p *Pipeline) Purge(ctx context.Context, docID string) error {
	ictx, cancel := context.WithTimeout(ctx, p.cfg.IndexTimeout)
	defer cancel()
	if err := p.index.DeleteByDocument(ictx, docID); err != nil {
		return pipeErr(KindTransientIO, "purge segments for %s: %w", docID, err)
	}
	p.logger.Info("purged segments", "document_id", docID)
	return nil
}
