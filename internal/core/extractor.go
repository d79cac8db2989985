package core

import "context"

// DocumentExtractor extracts plain text from raw document bytes. The
// contentType hint helps the extractor choose the right parsing strategy.
// Unparseable input is a terminal condition, not a transient one; extractors
// signal it with ingestion_engine.ErrMalformedInput.
type DocumentExtractor interface {
	ExtractText(ctx context.Context, data []byte, contentType string) (string, error)
}
