package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/openshelf/bibsync-service/internal/domain"
)

// Compile-time interface verification.
var _ EdgeRepository = (*PgEdgeRepository)(nil)

// PgEdgeRepository is a PostgreSQL implementation of EdgeRepository.
type PgEdgeRepository struct {
	db DBTX
}

// NewPgEdgeRepository creates a new PostgreSQL edge repository.
func NewPgEdgeRepository(db DBTX) *PgEdgeRepository {
	return &PgEdgeRepository{db: db}
}

const edgeColumns = `id, paper_id, direction, target_doi, target_arxiv_id,
		target_bibcode, target_source_id, target_title, target_authors,
		target_year, source_plugin, cached_at, linked_paper_id`

// ReplaceEdges replaces a paper's cached edges in one direction.
// The delete and all inserts are queued into a single pgx.Batch so the
// refresh costs one network roundtrip regardless of edge count.
func (r *PgEdgeRepository) ReplaceEdges(ctx context.Context, paperID uuid.UUID, direction domain.EdgeDirection, edges []*domain.Edge) error {
	if paperID == uuid.Nil {
		return domain.NewValidationError("paper_id", "paper ID is required")
	}
	if !direction.Valid() {
		return domain.NewValidationError("direction", fmt.Sprintf("invalid edge direction: %s", direction))
	}

	insertQuery := `
		INSERT INTO citation_edges (
			id, paper_id, direction, target_doi, target_arxiv_id,
			target_bibcode, target_source_id, target_title, target_authors,
			target_year, source_plugin, cached_at, linked_paper_id
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
		)`

	batch := &pgx.Batch{}
	batch.Queue(`DELETE FROM citation_edges WHERE paper_id = $1 AND direction = $2`, paperID, direction)

	for i, edge := range edges {
		if edge == nil {
			return domain.NewValidationError("edge", fmt.Sprintf("edge at index %d is nil", i))
		}

		authorsJSON, err := json.Marshal(edge.TargetAuthors)
		if err != nil {
			return fmt.Errorf("failed to marshal target authors: %w", err)
		}

		if edge.ID == uuid.Nil {
			edge.ID = uuid.New()
		}
		edge.PaperID = paperID
		edge.Direction = direction

		batch.Queue(insertQuery,
			edge.ID,
			edge.PaperID,
			edge.Direction,
			edge.TargetDOI,
			edge.TargetArxivID,
			edge.TargetBibcode,
			edge.TargetSourceID,
			edge.TargetTitle,
			authorsJSON,
			edge.TargetYear,
			edge.SourcePlugin,
			edge.CachedAt,
			edge.LinkedPaperID,
		)
	}

	br := r.db.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to replace edges: %w", err)
		}
	}

	return nil
}

// GetEdges retrieves a paper's cached edges in one direction.
func (r *PgEdgeRepository) GetEdges(ctx context.Context, paperID uuid.UUID, direction domain.EdgeDirection) ([]*domain.Edge, error) {
	if !direction.Valid() {
		return nil, domain.NewValidationError("direction", fmt.Sprintf("invalid edge direction: %s", direction))
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM citation_edges
		WHERE paper_id = $1 AND direction = $2
		ORDER BY target_year DESC, target_title ASC`, edgeColumns)

	rows, err := r.db.Query(ctx, query, paperID, direction)
	if err != nil {
		return nil, fmt.Errorf("failed to get edges: %w", err)
	}
	defer rows.Close()

	edges := make([]*domain.Edge, 0)
	for rows.Next() {
		edge, err := scanEdgeFromRows(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		edges = append(edges, edge)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating edges: %w", err)
	}

	return edges, nil
}

// CachedAt returns the cache stamp for a paper's edges in one direction.
func (r *PgEdgeRepository) CachedAt(ctx context.Context, paperID uuid.UUID, direction domain.EdgeDirection) (time.Time, error) {
	if !direction.Valid() {
		return time.Time{}, domain.NewValidationError("direction", fmt.Sprintf("invalid edge direction: %s", direction))
	}

	query := `
		SELECT cached_at
		FROM citation_edges
		WHERE paper_id = $1 AND direction = $2
		ORDER BY cached_at DESC
		LIMIT 1`

	var cachedAt time.Time
	err := r.db.QueryRow(ctx, query, paperID, direction).Scan(&cachedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, domain.NewNotFoundError("citation_edges", paperID.String())
		}
		return time.Time{}, fmt.Errorf("failed to get edge cache stamp: %w", err)
	}

	return cachedAt, nil
}

// LinkEdges fills linked_paper_id on cached edges anywhere in the graph whose
// target identifiers match the given paper. Run after a paper is created so
// edges cached before it existed become navigable. Matching runs DOI first,
// then arXiv ID, then bibcode; each pass only touches edges still unlinked.
func (r *PgEdgeRepository) LinkEdges(ctx context.Context, paperID uuid.UUID) (int64, error) {
	passes := []string{
		`UPDATE citation_edges e
		SET linked_paper_id = p.id
		FROM papers p
		WHERE p.id = $1
			AND e.linked_paper_id IS NULL
			AND e.target_doi <> '' AND p.doi <> ''
			AND lower(e.target_doi) = lower(p.doi)`,
		`UPDATE citation_edges e
		SET linked_paper_id = p.id
		FROM papers p
		WHERE p.id = $1
			AND e.linked_paper_id IS NULL
			AND e.target_arxiv_id <> '' AND p.arxiv_id <> ''
			AND e.target_arxiv_id = p.arxiv_id`,
		`UPDATE citation_edges e
		SET linked_paper_id = p.id
		FROM papers p
		WHERE p.id = $1
			AND e.linked_paper_id IS NULL
			AND e.target_bibcode <> '' AND p.bibcode <> ''
			AND e.target_bibcode = p.bibcode`,
	}

	var linked int64
	for _, query := range passes {
		result, err := r.db.Exec(ctx, query, paperID)
		if err != nil {
			return linked, fmt.Errorf("failed to link edges: %w", err)
		}
		linked += result.RowsAffected()
	}

	return linked, nil
}

// edgeScanDest holds the destination pointers for scanning an Edge row.
type edgeScanDest struct {
	edge        domain.Edge
	authorsJSON []byte
}

func (d *edgeScanDest) destinations() []interface{} {
	return []interface{}{
		&d.edge.ID, &d.edge.PaperID, &d.edge.Direction, &d.edge.TargetDOI,
		&d.edge.TargetArxivID, &d.edge.TargetBibcode, &d.edge.TargetSourceID,
		&d.edge.TargetTitle, &d.authorsJSON, &d.edge.TargetYear,
		&d.edge.SourcePlugin, &d.edge.CachedAt, &d.edge.LinkedPaperID,
	}
}

func (d *edgeScanDest) finalize() (*domain.Edge, error) {
	if len(d.authorsJSON) > 0 {
		if err := json.Unmarshal(d.authorsJSON, &d.edge.TargetAuthors); err != nil {
			return nil, fmt.Errorf("failed to unmarshal target authors: %w", err)
		}
	}

	return &d.edge, nil
}

func scanEdgeFromRows(rows pgx.Rows) (*domain.Edge, error) {
	var dest edgeScanDest
	if err := rows.Scan(dest.destinations()...); err != nil {
		return nil, err
	}
	return dest.finalize()
}
