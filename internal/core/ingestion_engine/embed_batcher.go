package ingestion_engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/oselabs/paperbase/internal/models"
)

// embedSegments fills in the Embedding field of every segment, dispatching
// fixed-size batches with bounded parallelism. A batch that exhausts its
// retries fails the whole document with a terminal classification; every
// batch has either completed or conclusively failed by the time this
// returns.
func (p *Pipeline) embedSegments(ctx context.Context, segments []models.Segment) *PipelineError {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Concurrency)

	for start := 0; start < len(segments); start += p.cfg.BatchSize {
		end := start + p.cfg.BatchSize
		if end > len(segments) {
			end = len(segments)
		}
		batch := segments[start:end]
		g.Go(func() error {
			return p.embedBatch(gctx, batch)
		})
	}

	if err := g.Wait(); err != nil {
		var pe *PipelineError
		if errors.As(err, &pe) {
			return pe
		}
		return pipeErr(KindTransientIO, "embed: %w", err)
	}
	return nil
}

// embedBatch embeds one batch with exponential backoff on transient provider
// errors. Vectors are written straight into the shared segments slice.
func (p *Pipeline) embedBatch(ctx context.Context, batch []models.Segment) error {
	texts := make([]string, len(batch))
	for i := range batch {
		texts[i] = batch[i].Text
	}

	var lastErr error
	for attempt := 0; attempt <= p.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepBackoff(ctx, p.cfg, attempt); err != nil {
				return pipeErr(KindTransientIO, "embed retry interrupted: %w", err)
			}
			p.logger.Debug("retrying embed batch", "attempt", attempt, "batch_size", len(batch))
		}

		ectx, cancel := context.WithTimeout(ctx, p.cfg.EmbedTimeout)
		vecs, err := p.embedder.EmbedTexts(ectx, texts)
		cancel()
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return pipeErr(KindTransientIO, "embed: %w", ctx.Err())
			}
			continue
		}
		if len(vecs) != len(batch) {
			lastErr = fmt.Errorf("embed size mismatch: got %d want %d", len(vecs), len(batch))
			continue
		}

		for i := range batch {
			batch[i].Embedding = vecs[i]
		}
		return nil
	}

	return pipeErr(KindProviderExhausted, "embed batch after %d attempts: %w", p.cfg.MaxRetries+1, lastErr)
}

// sleepBackoff waits base*2^(attempt-1) capped at MaxBackoff, or returns
// early when the context is done.
func sleepBackoff(ctx context.Context, cfg *IngestConfig, attempt int) error {
	d := cfg.BaseBackoff << (attempt - 1)
	if d > cfg.MaxBackoff || d <= 0 {
		d = cfg.MaxBackoff
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
