// Package extract pulls identifiers and metadata hints out of raw text.
// It is the last-resort input for papers carrying no identifier at all:
// cached full text or citation text goes in, best-effort identifiers or
// metadata come out. Everything here is best-effort; "found nothing" is a
// normal result, not an error.
package extract

import (
	"context"

	"github.com/openshelf/bibsync-service/internal/identifiers"
)

// Identifiers is the best-effort identifier set extracted from raw text.
// Any or all fields may be empty.
type Identifiers struct {
	DOI     string
	ArxivID string
	Bibcode string
}

// Empty reports whether extraction produced nothing.
func (i Identifiers) Empty() bool {
	return i.DOI == "" && i.ArxivID == "" && i.Bibcode == ""
}

// Metadata is the best-effort bibliographic metadata proposed for raw text.
type Metadata struct {
	Title       string
	FirstAuthor string
	Year        int
	Journal     string
	DOI         string
	ArxivID     string
}

// ContentExtractor proposes identifiers for raw text.
type ContentExtractor interface {
	ExtractIdentifiers(ctx context.Context, text string) (Identifiers, error)
}

// MetadataInferrer proposes bibliographic metadata for raw text. An
// unavailable inferrer returns an empty Metadata, treated as "no data"
// rather than an error.
type MetadataInferrer interface {
	InferMetadata(ctx context.Context, text string) (Metadata, error)
}

// RegexExtractor implements ContentExtractor on the identifier strategy
// chain: pure pattern matching, no network.
type RegexExtractor struct {
	strategies []identifiers.Strategy
}

// Compile-time interface verification.
var _ ContentExtractor = (*RegexExtractor)(nil)

// NewRegexExtractor creates an extractor over the standard strategy chain.
func NewRegexExtractor() *RegexExtractor {
	return &RegexExtractor{strategies: identifiers.DefaultStrategies()}
}

// ExtractIdentifiers runs every strategy, keeping the first hit of each
// identifier kind. It never fails.
func (e *RegexExtractor) ExtractIdentifiers(_ context.Context, text string) (Identifiers, error) {
	var found Identifiers
	if text == "" {
		return found, nil
	}

	for _, strategy := range e.strategies {
		candidate, ok := strategy(text)
		if !ok {
			continue
		}
		switch candidate.Kind {
		case identifiers.KindDOI:
			if found.DOI == "" {
				found.DOI = candidate.Value
			}
		case identifiers.KindArxivID:
			if found.ArxivID == "" {
				found.ArxivID = identifiers.NormalizeArxivID(candidate.Value)
			}
		case identifiers.KindBibcode:
			if found.Bibcode == "" {
				found.Bibcode = candidate.Value
			}
		}
	}

	return found, nil
}
