package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/openshelf/bibsync-service/internal/domain"
)

// EdgeRepository handles the cached citation graph. Each edge records one
// reference or citation of a paper, stamped with the plugin that produced it
// and the time the graph was fetched.
type EdgeRepository interface {
	// ReplaceEdges atomically replaces a paper's cached edges in one
	// direction with the given set. All inserted edges share the same
	// cached_at stamp and source plugin. The delete and inserts are sent as
	// a single batch; run inside a transaction for strict atomicity.
	ReplaceEdges(ctx context.Context, paperID uuid.UUID, direction domain.EdgeDirection, edges []*domain.Edge) error

	// GetEdges retrieves a paper's cached edges in one direction, ordered by
	// target year descending then target title.
	// Returns an empty slice, not an error, when no edges are cached.
	GetEdges(ctx context.Context, paperID uuid.UUID, direction domain.EdgeDirection) ([]*domain.Edge, error)

	// CachedAt returns the cache stamp for a paper's edges in one direction.
	// Returns domain.ErrNotFound when no edges are cached.
	CachedAt(ctx context.Context, paperID uuid.UUID, direction domain.EdgeDirection) (time.Time, error)

	// LinkEdges fills linked_paper_id on cached edges across the whole
	// graph whose target identifiers match the given paper. Matching goes
	// DOI first (case-insensitive), then arXiv ID, then bibcode.
	// Returns the number of edges linked.
	LinkEdges(ctx context.Context, paperID uuid.UUID) (int64, error)
}
