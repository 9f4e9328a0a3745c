package llm

import (
	"context"

	"github.com/ocrfield/docextract/internal/schema"
)

// MinInputLen is the minimum meaningful aggregated-text length worth a
// network round trip.
const MinInputLen = 20

// Request carries everything one extraction call needs. The credential is
// supplied per run by the caller and never stored.
type Request struct {
	Text       string
	Credential string
	Schema     schema.Schema
}

// Extractor is one remote-service backend: prompt in, raw response text
// out. Implementations classify service errors into the pipeline taxonomy;
// retries and preconditions live in Service, not here.
type Extractor interface {
	Extract(ctx context.Context, req Request) (string, error)
}
