// Package sources defines the remote lookup surface the reconciliation
// engine talks through, plus the shared HTTP plumbing (rate limiting,
// retries) concrete source adapters build on. Adapters translate their wire
// schemas into domain.RemotePaper and domain.Edge so everything downstream
// stays source-agnostic.
package sources

import (
	"context"

	"github.com/openshelf/bibsync-service/internal/domain"
)

// SmartSearchQuery carries the heuristic search terms built from a paper's
// local metadata when no identifier lookup succeeded.
type SmartSearchQuery struct {
	Title       string
	FirstAuthor string
	Year        int
	Journal     string
}

// LookupClient is the remote bibliographic lookup surface.
//
// Every method may fail with a *domain.ExternalAPIError (timeout, rate
// limit, malformed response); call sites catch these and degrade to
// not-found or failed, never an uncaught fault. Lookups that complete but
// match nothing return domain.ErrNotFound.
type LookupClient interface {
	// SourceName identifies the adapter ("ads").
	SourceName() string

	// Capabilities reports what this source can serve.
	Capabilities() domain.SourceCapabilities

	// BatchByBibcodes fetches canonical metadata for many bibcodes in one
	// remote call. Missing bibcodes are simply absent from the result.
	BatchByBibcodes(ctx context.Context, bibcodes []string) ([]*domain.RemotePaper, error)

	// GetByDOI fetches the paper registered under a DOI.
	GetByDOI(ctx context.Context, doi string) (*domain.RemotePaper, error)

	// GetByArxivID fetches the paper registered under an arXiv ID.
	GetByArxivID(ctx context.Context, arxivID string) (*domain.RemotePaper, error)

	// GetByBibcode fetches the paper registered under a bibcode.
	GetByBibcode(ctx context.Context, bibcode string) (*domain.RemotePaper, error)

	// SmartSearch runs the title/first-author/year/journal heuristic and
	// returns the single best match.
	SmartSearch(ctx context.Context, query SmartSearchQuery) (*domain.RemotePaper, error)

	// BulkCitationText exports formatted citation text for many bibcodes
	// in one call. The blob embeds each entry's canonical URL so callers
	// can partition it back per paper.
	BulkCitationText(ctx context.Context, bibcodes []string) (string, error)

	// References returns the works a paper cites.
	References(ctx context.Context, bibcode string) ([]*domain.Edge, error)

	// Citations returns the works citing a paper.
	Citations(ctx context.Context, bibcode string) ([]*domain.Edge, error)
}
