package ingestion_engine

import (
	"time"
)

// IngestConfig tunes the ingestion pipeline.
//
// ChunkSize:      max runes per segment.
// ChunkOverlap:   runes shared between consecutive segments.
// BatchSize:      texts per embedding request.
// Concurrency:    embedding batches in flight at once.
// MaxRetries:     attempts per embedding/index batch before giving up.
// BaseBackoff:    first retry delay; doubles per attempt up to MaxBackoff.
// StorageTimeout, EmbedTimeout, IndexTimeout: per-call deadlines for the
// three external collaborators.
type IngestConfig struct {
	ChunkSize    int
	ChunkOverlap int
	BatchSize    int
	Concurrency  int
	MaxRetries   int
	BaseBackoff  time.Duration
	MaxBackoff   time.Duration

	StorageTimeout time.Duration
	EmbedTimeout   time.Duration
	IndexTimeout   time.Duration
}

// DefaultIngestConfig returns the tuning the service runs with unless the
// environment overrides it.
func DefaultIngestConfig() *IngestConfig {
	return &IngestConfig{
		ChunkSize:      2000,
		ChunkOverlap:   200,
		BatchSize:      16,
		Concurrency:    4,
		MaxRetries:     3,
		BaseBackoff:    500 * time.Millisecond,
		MaxBackoff:     8 * time.Second,
		StorageTimeout: 2 * time.Minute,
		EmbedTimeout:   60 * time.Second,
		IndexTimeout:   30 * time.Second,
	}
}

// normalize fills zero values so partially populated configs (tests, env
// overrides) still run.
func (c *IngestConfig) normalize() {
	d := DefaultIngestConfig()
	if c.ChunkSize <= 0 {
		c.ChunkSize = d.ChunkSize
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		c.ChunkOverlap = c.ChunkSize / 10
	}
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	if c.Concurrency <= 0 {
		c.Concurrency = d.Concurrency
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = d.MaxRetries
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = d.BaseBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = d.MaxBackoff
	}
	if c.StorageTimeout <= 0 {
		c.StorageTimeout = d.StorageTimeout
	}
	if c.EmbedTimeout <= 0 {
		c.EmbedTimeout = d.EmbedTimeout
	}
	if c.IndexTimeout <= 0 {
		c.IndexTimeout = d.IndexTimeout
	}
}
