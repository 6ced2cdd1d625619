package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/openshelf/bibsync-service/internal/domain"
)

// PaperRepository handles paper persistence and identifier lookups.
// It manages the central paper table with support for the three external
// identifier classes: DOI, arXiv ID, and bibcode.
type PaperRepository interface {
	// Create inserts a new paper.
	// Returns the created paper with its assigned ID and timestamps.
	// Returns domain.ErrAlreadyExists if another paper owns one of its identifiers.
	Create(ctx context.Context, paper *domain.Paper) (*domain.Paper, error)

	// Update persists changes to an existing paper.
	// Returns domain.ErrNotFound if the paper does not exist.
	Update(ctx context.Context, paper *domain.Paper) error

	// GetByID retrieves a paper by its internal UUID.
	// Returns domain.ErrNotFound if no matching paper exists.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Paper, error)

	// GetByDOI retrieves a paper by DOI. The comparison is case-insensitive;
	// callers should pass a cleaned DOI (see identifiers.CleanDOI).
	// Returns domain.ErrNotFound if no matching paper exists.
	GetByDOI(ctx context.Context, doi string) (*domain.Paper, error)

	// GetByArxivID retrieves a paper by arXiv ID. Callers should pass a
	// normalized ID (no version suffix, no arxiv: prefix); stored IDs are
	// normalized the same way, so variants of the same ID unify.
	// Returns domain.ErrNotFound if no matching paper exists.
	GetByArxivID(ctx context.Context, arxivID string) (*domain.Paper, error)

	// GetByBibcode retrieves a paper by bibcode. The comparison is
	// case-sensitive as bibcodes encode the first-author initial in case.
	// Returns domain.ErrNotFound if no matching paper exists.
	GetByBibcode(ctx context.Context, bibcode string) (*domain.Paper, error)

	// List retrieves papers matching the filter criteria.
	// Returns the matching papers and total count for pagination.
	// The total count reflects all matching records regardless of limit/offset.
	List(ctx context.Context, filter PaperFilter) ([]*domain.Paper, int64, error)

	// BulkUpsert creates or updates multiple papers in a single batch.
	// Papers with a non-nil ID are matched by ID for upsert behavior.
	//
	// Return contract:
	//   - Returned papers are in the same order as the input slice.
	//   - Database-generated fields (ID, CreatedAt, UpdatedAt) are populated on
	//     all returned papers.
	BulkUpsert(ctx context.Context, papers []*domain.Paper) ([]*domain.Paper, error)
}

// PaperFilter specifies criteria for listing papers.
type PaperFilter struct {
	// Year filters to papers published in a specific year (optional).
	Year *int

	// Journal filters to papers in a specific journal (optional, exact match).
	Journal *string

	// HasBibcode filters by bibcode presence (optional).
	// When true, only papers with a bibcode are returned.
	// When false, only papers without one are returned.
	// When nil, no filtering is applied.
	HasBibcode *bool

	// Search filters to papers whose title matches the term (optional,
	// case-insensitive substring).
	Search *string

	// Limit specifies maximum number of results (default: 100, max: 1000).
	Limit int

	// Offset specifies the starting position for pagination.
	Offset int
}

// Validate checks if the filter has valid values and sets defaults.
func (f *PaperFilter) Validate() error {
	applyPaginationDefaults(&f.Limit, &f.Offset)
	return nil
}
