package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/openshelf/bibsync-service/internal/domain"
)

// SourceRepository handles per-source registrations attached to papers.
// Each row records that a paper is known to a remote source under a
// source-specific identifier, together with the source's capabilities
// and selection priority.
type SourceRepository interface {
	// Upsert inserts or updates a source registration keyed by
	// (paper_id, source). Metadata is merged at the service layer; this
	// method persists whatever it is given.
	// Returns domain.ErrNotFound if the paper does not exist.
	// Returns a *domain.DuplicateError if the (source, source_id) pair is
	// already registered to a different paper.
	Upsert(ctx context.Context, src *domain.PaperSource) (*domain.PaperSource, error)

	// ListByPaper retrieves all source registrations for a paper, ordered by
	// priority ascending then source name for a stable order.
	// Rows with undecodable metadata are returned with nil metadata rather
	// than failing the whole listing.
	ListByPaper(ctx context.Context, paperID uuid.UUID) ([]*domain.PaperSource, error)

	// FindBySourceID retrieves the registration owning a (source, source_id)
	// pair, regardless of which paper it is attached to.
	// Returns domain.ErrNotFound if no such registration exists.
	FindBySourceID(ctx context.Context, source, sourceID string) (*domain.PaperSource, error)

	// UpdateLastSynced stamps the registration's last_synced time.
	// Returns domain.ErrNotFound if the registration does not exist.
	UpdateLastSynced(ctx context.Context, id uuid.UUID) error
}
