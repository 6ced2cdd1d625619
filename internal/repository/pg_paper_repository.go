package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/openshelf/bibsync-service/internal/domain"
)

// Compile-time interface verification.
var _ PaperRepository = (*PgPaperRepository)(nil)

// PgPaperRepository is a PostgreSQL implementation of PaperRepository.
type PgPaperRepository struct {
	db DBTX
}

// NewPgPaperRepository creates a new PostgreSQL paper repository.
func NewPgPaperRepository(db DBTX) *PgPaperRepository {
	return &PgPaperRepository{db: db}
}

const paperColumns = `id, doi, arxiv_id, bibcode, title, authors, year, journal,
		abstract, citation_count, citation_text, created_at, updated_at`

// Create inserts a new paper.
func (r *PgPaperRepository) Create(ctx context.Context, paper *domain.Paper) (*domain.Paper, error) {
	if paper == nil {
		return nil, domain.NewValidationError("paper", "paper cannot be nil")
	}
	if paper.Title == "" && !paper.HasIdentifier() {
		return nil, domain.NewValidationError("paper", "paper needs a title or an identifier")
	}

	authorsJSON, err := json.Marshal(paper.Authors)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal authors: %w", err)
	}

	now := time.Now().UTC()
	if paper.ID == uuid.Nil {
		paper.ID = uuid.New()
	}

	query := `
		INSERT INTO papers (
			id, doi, arxiv_id, bibcode, title, authors, year, journal,
			abstract, citation_count, citation_text, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
		)
		RETURNING id, created_at, updated_at`

	err = r.db.QueryRow(ctx, query,
		paper.ID,
		paper.DOI,
		paper.ArxivID,
		paper.Bibcode,
		paper.Title,
		authorsJSON,
		paper.Year,
		paper.Journal,
		paper.Abstract,
		paper.CitationCount,
		paper.CitationText,
		now,
		now,
	).Scan(&paper.ID, &paper.CreatedAt, &paper.UpdatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, domain.NewAlreadyExistsError("paper", paper.ID.String())
		}
		return nil, fmt.Errorf("failed to create paper: %w", err)
	}

	return paper, nil
}

// Update persists changes to an existing paper.
func (r *PgPaperRepository) Update(ctx context.Context, paper *domain.Paper) error {
	if paper == nil {
		return domain.NewValidationError("paper", "paper cannot be nil")
	}
	if paper.ID == uuid.Nil {
		return domain.NewValidationError("id", "paper ID is required")
	}

	authorsJSON, err := json.Marshal(paper.Authors)
	if err != nil {
		return fmt.Errorf("failed to marshal authors: %w", err)
	}

	query := `
		UPDATE papers SET
			doi = $2,
			arxiv_id = $3,
			bibcode = $4,
			title = $5,
			authors = $6,
			year = $7,
			journal = $8,
			abstract = $9,
			citation_count = $10,
			citation_text = $11,
			updated_at = $12
		WHERE id = $1`

	result, err := r.db.Exec(ctx, query,
		paper.ID,
		paper.DOI,
		paper.ArxivID,
		paper.Bibcode,
		paper.Title,
		authorsJSON,
		paper.Year,
		paper.Journal,
		paper.Abstract,
		paper.CitationCount,
		paper.CitationText,
		time.Now().UTC(),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.NewAlreadyExistsError("paper", paper.ID.String())
		}
		return fmt.Errorf("failed to update paper: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("paper", paper.ID.String())
	}

	return nil
}

// GetByID retrieves a paper by its UUID.
func (r *PgPaperRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Paper, error) {
	query := fmt.Sprintf(`SELECT %s FROM papers WHERE id = $1`, paperColumns)

	row := r.db.QueryRow(ctx, query, id)
	paper, err := scanPaper(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("paper", id.String())
		}
		return nil, fmt.Errorf("failed to get paper by ID: %w", err)
	}

	return paper, nil
}

// GetByDOI retrieves a paper by DOI, case-insensitively.
func (r *PgPaperRepository) GetByDOI(ctx context.Context, doi string) (*domain.Paper, error) {
	if doi == "" {
		return nil, domain.NewValidationError("doi", "DOI is required")
	}

	query := fmt.Sprintf(`SELECT %s FROM papers WHERE lower(doi) = lower($1) AND doi <> ''`, paperColumns)

	row := r.db.QueryRow(ctx, query, doi)
	paper, err := scanPaper(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("paper", doi)
		}
		return nil, fmt.Errorf("failed to get paper by DOI: %w", err)
	}

	return paper, nil
}

// GetByArxivID retrieves a paper by normalized arXiv ID.
func (r *PgPaperRepository) GetByArxivID(ctx context.Context, arxivID string) (*domain.Paper, error) {
	if arxivID == "" {
		return nil, domain.NewValidationError("arxiv_id", "arXiv ID is required")
	}

	query := fmt.Sprintf(`SELECT %s FROM papers WHERE arxiv_id = $1 AND arxiv_id <> ''`, paperColumns)

	row := r.db.QueryRow(ctx, query, arxivID)
	paper, err := scanPaper(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("paper", arxivID)
		}
		return nil, fmt.Errorf("failed to get paper by arXiv ID: %w", err)
	}

	return paper, nil
}

// GetByBibcode retrieves a paper by bibcode, case-sensitively.
func (r *PgPaperRepository) GetByBibcode(ctx context.Context, bibcode string) (*domain.Paper, error) {
	if bibcode == "" {
		return nil, domain.NewValidationError("bibcode", "bibcode is required")
	}

	query := fmt.Sprintf(`SELECT %s FROM papers WHERE bibcode = $1 AND bibcode <> ''`, paperColumns)

	row := r.db.QueryRow(ctx, query, bibcode)
	paper, err := scanPaper(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("paper", bibcode)
		}
		return nil, fmt.Errorf("failed to get paper by bibcode: %w", err)
	}

	return paper, nil
}

// List retrieves papers matching the filter criteria.
func (r *PgPaperRepository) List(ctx context.Context, filter PaperFilter) ([]*domain.Paper, int64, error) {
	if err := filter.Validate(); err != nil {
		return nil, 0, err
	}

	// Build dynamic WHERE clause
	var conditions []string
	var args []interface{}
	argIndex := 1

	if filter.Year != nil {
		conditions = append(conditions, fmt.Sprintf("p.year = $%d", argIndex))
		args = append(args, *filter.Year)
		argIndex++
	}

	if filter.Journal != nil {
		conditions = append(conditions, fmt.Sprintf("p.journal = $%d", argIndex))
		args = append(args, *filter.Journal)
		argIndex++
	}

	if filter.HasBibcode != nil {
		if *filter.HasBibcode {
			conditions = append(conditions, "p.bibcode <> ''")
		} else {
			conditions = append(conditions, "p.bibcode = ''")
		}
	}

	if filter.Search != nil {
		conditions = append(conditions, fmt.Sprintf("p.title ILIKE $%d", argIndex))
		args = append(args, "%"+*filter.Search+"%")
		argIndex++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	// Count total matching records
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM papers p %s", whereClause)
	var totalCount int64
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("failed to count papers: %w", err)
	}

	// Query with pagination
	selectQuery := fmt.Sprintf(`
		SELECT p.id, p.doi, p.arxiv_id, p.bibcode, p.title, p.authors, p.year,
			p.journal, p.abstract, p.citation_count, p.citation_text,
			p.created_at, p.updated_at
		FROM papers p
		%s
		ORDER BY p.created_at DESC
		LIMIT $%d OFFSET $%d`,
		whereClause, argIndex, argIndex+1)

	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.Query(ctx, selectQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list papers: %w", err)
	}
	defer rows.Close()

	papers := make([]*domain.Paper, 0, filter.Limit)
	for rows.Next() {
		paper, err := scanPaperFromRows(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan paper: %w", err)
		}
		papers = append(papers, paper)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating papers: %w", err)
	}

	return papers, totalCount, nil
}

// BulkUpsert creates or updates multiple papers in a single batch.
// Uses pgx.Batch to send all upserts in a single network roundtrip,
// dramatically reducing latency compared to individual queries.
func (r *PgPaperRepository) BulkUpsert(ctx context.Context, papers []*domain.Paper) ([]*domain.Paper, error) {
	if len(papers) == 0 {
		return []*domain.Paper{}, nil
	}

	for i, paper := range papers {
		if paper == nil {
			return nil, domain.NewValidationError("paper", fmt.Sprintf("paper at index %d is nil", i))
		}
	}

	query := `
		INSERT INTO papers (
			id, doi, arxiv_id, bibcode, title, authors, year, journal,
			abstract, citation_count, citation_text, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
		)
		ON CONFLICT (id) DO UPDATE SET
			doi = EXCLUDED.doi,
			arxiv_id = EXCLUDED.arxiv_id,
			bibcode = EXCLUDED.bibcode,
			title = EXCLUDED.title,
			authors = EXCLUDED.authors,
			year = EXCLUDED.year,
			journal = EXCLUDED.journal,
			abstract = EXCLUDED.abstract,
			citation_count = EXCLUDED.citation_count,
			citation_text = EXCLUDED.citation_text,
			updated_at = NOW()
		RETURNING id, created_at, updated_at`

	now := time.Now().UTC()
	batch := &pgx.Batch{}

	for _, paper := range papers {
		authorsJSON, err := json.Marshal(paper.Authors)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal authors: %w", err)
		}

		if paper.ID == uuid.Nil {
			paper.ID = uuid.New()
		}

		batch.Queue(query,
			paper.ID,
			paper.DOI,
			paper.ArxivID,
			paper.Bibcode,
			paper.Title,
			authorsJSON,
			paper.Year,
			paper.Journal,
			paper.Abstract,
			paper.CitationCount,
			paper.CitationText,
			now,
			now,
		)
	}

	br := r.db.SendBatch(ctx, batch)
	defer br.Close()

	results := make([]*domain.Paper, len(papers))
	for i, paper := range papers {
		err := br.QueryRow().Scan(&paper.ID, &paper.CreatedAt, &paper.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to upsert paper at index %d: %w", i, err)
		}
		results[i] = paper
	}

	return results, nil
}

// paperScanDest holds the destination pointers for scanning a Paper row.
type paperScanDest struct {
	paper       domain.Paper
	authorsJSON []byte
}

// destinations returns the slice of pointers for Scan operations.
func (d *paperScanDest) destinations() []interface{} {
	return []interface{}{
		&d.paper.ID, &d.paper.DOI, &d.paper.ArxivID, &d.paper.Bibcode,
		&d.paper.Title, &d.authorsJSON, &d.paper.Year, &d.paper.Journal,
		&d.paper.Abstract, &d.paper.CitationCount, &d.paper.CitationText,
		&d.paper.CreatedAt, &d.paper.UpdatedAt,
	}
}

// finalize performs post-scan processing: unmarshals JSON fields.
func (d *paperScanDest) finalize() (*domain.Paper, error) {
	if len(d.authorsJSON) > 0 {
		if err := json.Unmarshal(d.authorsJSON, &d.paper.Authors); err != nil {
			return nil, fmt.Errorf("failed to unmarshal authors: %w", err)
		}
	}

	return &d.paper, nil
}

// scanPaper scans a single row into a Paper.
func scanPaper(row pgx.Row) (*domain.Paper, error) {
	var dest paperScanDest
	if err := row.Scan(dest.destinations()...); err != nil {
		return nil, err
	}
	return dest.finalize()
}

// scanPaperFromRows scans the current row from pgx.Rows into a Paper.
func scanPaperFromRows(rows pgx.Rows) (*domain.Paper, error) {
	var dest paperScanDest
	if err := rows.Scan(dest.destinations()...); err != nil {
		return nil, err
	}
	return dest.finalize()
}
