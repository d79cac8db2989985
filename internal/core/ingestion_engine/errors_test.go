package ingestion_engine

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindNotFound, KindOf(pipeErr(KindNotFound, "gone")))
	assert.Equal(t, KindMalformedInput, KindOf(fmt.Errorf("extract: %w", ErrMalformedInput)))

	// Wrapped classified errors keep their kind through the chain.
	wrapped := fmt.Errorf("outer: %w", pipeErr(KindProviderExhausted, "inner"))
	assert.Equal(t, KindProviderExhausted, KindOf(wrapped))

	// Unknown errors default to transient so a dispatcher may retry them.
	assert.Equal(t, KindTransientIO, KindOf(errors.New("mystery")))
}

func TestRetriable(t *testing.T) {
	assert.False(t, Retriable(nil))
	assert.True(t, Retriable(pipeErr(KindTransientIO, "timeout")))
	assert.True(t, Retriable(errors.New("unclassified")))

	assert.False(t, Retriable(pipeErr(KindNotFound, "gone")))
	assert.False(t, Retriable(pipeErr(KindMalformedInput, "bad bytes")))
	assert.False(t, Retriable(pipeErr(KindProviderExhausted, "gave up")))
	assert.False(t, Retriable(pipeErr(KindConcurrentClaim, "someone else")))
}

func TestPipelineErrorUnwrap(t *testing.T) {
	inner := errors.New("disk on fire")
	pe := &PipelineError{Kind: KindTransientIO, Err: inner}

	assert.ErrorIs(t, pe, inner)
	assert.Contains(t, pe.Error(), "transient_io")
	assert.Contains(t, pe.Error(), "disk on fire")
}
