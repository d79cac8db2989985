package ingestion_engine

import (
	"errors"
	"fmt"
)

// Kind classifies a pipeline failure and drives retry eligibility.
// Transient I/O is the only kind worth a re-enqueue; everything else needs
// an explicit re-trigger or operator attention.
type Kind int

const (
	// KindNotFound means the referenced document does not exist. Terminal.
	KindNotFound Kind = iota + 1
	// KindTransientIO covers storage/network/provider timeouts and rate
	// limits. Retriable by re-enqueue.
	KindTransientIO
	// KindMalformedInput means the content cannot be parsed or extracted.
	// Terminal until the bytes change.
	KindMalformedInput
	// KindProviderExhausted means embedding or index calls failed after
	// bounded retries. Terminal for this invocation.
	KindProviderExhausted
	// KindConcurrentClaim means another worker already owns this document.
	// Not an error condition, reported as a Skipped outcome.
	KindConcurrentClaim
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindTransientIO:
		return "transient_io"
	case KindMalformedInput:
		return "malformed_input"
	case KindProviderExhausted:
		return "provider_exhausted"
	case KindConcurrentClaim:
		return "concurrent_claim"
	default:
		return "unknown"
	}
}

// ErrMalformedInput is the sentinel extractors wrap when bytes cannot be
// parsed, so the pipeline classifies the failure as terminal.
var ErrMalformedInput = errors.New("malformed input")

// PipelineError is a classified processing failure.
type PipelineError struct {
	Kind Kind
	Err  error
}

func (e *PipelineError) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

func pipeErr(kind Kind, format string, args ...any) *PipelineError {
	return &PipelineError{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// KindOf extracts the failure kind from an error chain; unknown errors are
// treated as transient so an external dispatcher may retry them.
func KindOf(err error) Kind {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	if errors.Is(err, ErrMalformedInput) {
		return KindMalformedInput
	}
	return KindTransientIO
}

// Retriable reports whether a re-enqueue of the same document may succeed
// without intervention.
func Retriable(err error) bool {
	if err == nil {
		return false
	}
	return KindOf(err) == KindTransientIO
}
