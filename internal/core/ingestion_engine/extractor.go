package ingestion_engine

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"code.sajari.com/docconv"

	"github.com/oselabs/paperbase/internal/core"
)

// DocconvExtractor implements core.DocumentExtractor using sajari/docconv.
type DocconvExtractor struct {
	useReadability bool
}

var _ core.DocumentExtractor = (*DocconvExtractor)(nil)

func NewDocconvExtractor(useReadability bool) *DocconvExtractor {
	return &DocconvExtractor{useReadability: useReadability}
}

// ExtractText converts the raw bytes into plain text based on content type.
// A conversion failure or an empty result means the bytes are unparseable
// and is reported as ErrMalformedInput, which the pipeline treats as
// terminal rather than retriable.
func (e *DocconvExtractor) ExtractText(ctx context.Context, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	res, err := docconv.Convert(bytes.NewReader(data), contentType, e.useReadability)
	if err != nil {
		return "", fmt.Errorf("%w: docconv %q: %v", ErrMalformedInput, contentType, err)
	}

	text := strings.TrimSpace(res.Body)
	if text == "" {
		return "", fmt.Errorf("%w: empty text for content type %q", ErrMalformedInput, contentType)
	}
	return text, nil
}
