package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/openshelf/bibsync-service/internal/domain"
)

// Compile-time interface verification.
var _ SourceRepository = (*PgSourceRepository)(nil)

// PgSourceRepository is a PostgreSQL implementation of SourceRepository.
type PgSourceRepository struct {
	db DBTX
}

// NewPgSourceRepository creates a new PostgreSQL source repository.
func NewPgSourceRepository(db DBTX) *PgSourceRepository {
	return &PgSourceRepository{db: db}
}

const sourceColumns = `id, paper_id, source, source_id, metadata, capabilities,
		priority, is_primary, last_synced, created_at, updated_at`

// Upsert inserts or updates a source registration keyed by (paper_id, source).
func (r *PgSourceRepository) Upsert(ctx context.Context, src *domain.PaperSource) (*domain.PaperSource, error) {
	if src == nil {
		return nil, domain.NewValidationError("source", "source cannot be nil")
	}
	if src.Source == "" {
		return nil, domain.NewValidationError("source", "source name is required")
	}
	if src.PaperID == uuid.Nil {
		return nil, domain.NewValidationError("paper_id", "paper ID is required")
	}

	var metadataJSON []byte
	var err error
	if src.Metadata != nil {
		metadataJSON, err = json.Marshal(src.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal metadata: %w", err)
		}
	}

	capabilitiesJSON, err := json.Marshal(src.Capabilities)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal capabilities: %w", err)
	}

	now := time.Now().UTC()
	if src.ID == uuid.Nil {
		src.ID = uuid.New()
	}

	query := `
		INSERT INTO paper_sources (
			id, paper_id, source, source_id, metadata, capabilities,
			priority, is_primary, last_synced, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10
		)
		ON CONFLICT (paper_id, source) DO UPDATE SET
			source_id = EXCLUDED.source_id,
			metadata = COALESCE(EXCLUDED.metadata, paper_sources.metadata),
			capabilities = EXCLUDED.capabilities,
			priority = EXCLUDED.priority,
			is_primary = EXCLUDED.is_primary,
			last_synced = COALESCE(EXCLUDED.last_synced, paper_sources.last_synced),
			updated_at = NOW()
		RETURNING id, created_at, updated_at`

	err = r.db.QueryRow(ctx, query,
		src.ID,
		src.PaperID,
		src.Source,
		src.SourceID,
		metadataJSON,
		capabilitiesJSON,
		src.Priority,
		src.IsPrimary,
		src.LastSynced,
		now,
	).Scan(&src.ID, &src.CreatedAt, &src.UpdatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			// Foreign key violation: paper doesn't exist.
			if pgErr.Code == "23503" {
				return nil, domain.NewNotFoundError("paper", src.PaperID.String())
			}
			// Unique violation on (source, source_id): another paper owns this
			// remote identity.
			if pgErr.Code == "23505" {
				owner, findErr := r.FindBySourceID(ctx, src.Source, src.SourceID)
				if findErr == nil {
					return nil, &domain.DuplicateError{
						Bibcode:      src.SourceID,
						PaperID:      src.PaperID,
						OwnerPaperID: owner.PaperID,
					}
				}
				return nil, domain.NewAlreadyExistsError("paper_source", fmt.Sprintf("%s:%s", src.Source, src.SourceID))
			}
		}
		return nil, fmt.Errorf("failed to upsert paper source: %w", err)
	}

	return src, nil
}

// ListByPaper retrieves all source registrations for a paper.
func (r *PgSourceRepository) ListByPaper(ctx context.Context, paperID uuid.UUID) ([]*domain.PaperSource, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM paper_sources
		WHERE paper_id = $1
		ORDER BY priority ASC, source ASC`, sourceColumns)

	rows, err := r.db.Query(ctx, query, paperID)
	if err != nil {
		return nil, fmt.Errorf("failed to list paper sources: %w", err)
	}
	defer rows.Close()

	var sources []*domain.PaperSource
	for rows.Next() {
		src, err := scanSourceFromRows(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan paper source: %w", err)
		}
		sources = append(sources, src)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating paper sources: %w", err)
	}

	return sources, nil
}

// FindBySourceID retrieves the registration owning a (source, source_id) pair.
func (r *PgSourceRepository) FindBySourceID(ctx context.Context, source, sourceID string) (*domain.PaperSource, error) {
	if source == "" || sourceID == "" {
		return nil, domain.NewValidationError("source_id", "source and source ID are required")
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM paper_sources
		WHERE source = $1 AND source_id = $2`, sourceColumns)

	row := r.db.QueryRow(ctx, query, source, sourceID)
	src, err := scanSource(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("paper_source", fmt.Sprintf("%s:%s", source, sourceID))
		}
		return nil, fmt.Errorf("failed to find paper source: %w", err)
	}

	return src, nil
}

// UpdateLastSynced stamps the registration's last_synced time.
func (r *PgSourceRepository) UpdateLastSynced(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE paper_sources
		SET last_synced = $1, updated_at = $1
		WHERE id = $2`

	result, err := r.db.Exec(ctx, query, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update last synced: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("paper_source", id.String())
	}

	return nil
}

// sourceScanDest holds the destination pointers for scanning a PaperSource row.
type sourceScanDest struct {
	src              domain.PaperSource
	metadataJSON     []byte
	capabilitiesJSON []byte
}

func (d *sourceScanDest) destinations() []interface{} {
	return []interface{}{
		&d.src.ID, &d.src.PaperID, &d.src.Source, &d.src.SourceID,
		&d.metadataJSON, &d.capabilitiesJSON, &d.src.Priority, &d.src.IsPrimary,
		&d.src.LastSynced, &d.src.CreatedAt, &d.src.UpdatedAt,
	}
}

// finalize unmarshals JSON fields. Metadata that fails to decode is dropped
// rather than failing the row; capability decoding failures are fatal since
// the source selector depends on them.
func (d *sourceScanDest) finalize() (*domain.PaperSource, error) {
	if len(d.metadataJSON) > 0 {
		if err := json.Unmarshal(d.metadataJSON, &d.src.Metadata); err != nil {
			d.src.Metadata = nil
		}
	}

	if len(d.capabilitiesJSON) > 0 {
		if err := json.Unmarshal(d.capabilitiesJSON, &d.src.Capabilities); err != nil {
			return nil, fmt.Errorf("failed to unmarshal capabilities: %w", err)
		}
	}

	return &d.src, nil
}

func scanSource(row pgx.Row) (*domain.PaperSource, error) {
	var dest sourceScanDest
	if err := row.Scan(dest.destinations()...); err != nil {
		return nil, err
	}
	return dest.finalize()
}

func scanSourceFromRows(rows pgx.Rows) (*domain.PaperSource, error) {
	var dest sourceScanDest
	if err := rows.Scan(dest.destinations()...); err != nil {
		return nil, err
	}
	return dest.finalize()
}
