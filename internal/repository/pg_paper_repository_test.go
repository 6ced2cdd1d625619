package repository

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openshelf/bibsync-service/internal/domain"
)

// Helper to create a valid paper for testing.
func newTestPaper() *domain.Paper {
	now := time.Now().UTC()
	return &domain.Paper{
		ID:      uuid.New(),
		DOI:     "10.3847/1538-4357/ab1422",
		ArxivID: "1904.05910",
		Bibcode: "2019ApJ...876...85R",
		Title:   "Large Magellanic Cloud Cepheid Standards",
		Authors: []domain.Author{
			{Name: "Riess, Adam G.", Affiliation: "Johns Hopkins University"},
			{Name: "Casertano, Stefano"},
		},
		Year:          2019,
		Journal:       "The Astrophysical Journal",
		Abstract:      "We present an improved determination of the Hubble constant.",
		CitationCount: 2547,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// paperRows builds a pgxmock row set matching the paper column order.
func paperRows(papers ...*domain.Paper) *pgxmock.Rows {
	rows := pgxmock.NewRows([]string{
		"id", "doi", "arxiv_id", "bibcode", "title", "authors", "year",
		"journal", "abstract", "citation_count", "citation_text",
		"created_at", "updated_at",
	})
	for _, p := range papers {
		authorsJSON, _ := json.Marshal(p.Authors)
		rows.AddRow(
			p.ID, p.DOI, p.ArxivID, p.Bibcode, p.Title, authorsJSON, p.Year,
			p.Journal, p.Abstract, p.CitationCount, p.CitationText,
			p.CreatedAt, p.UpdatedAt,
		)
	}
	return rows
}

func TestNewPgPaperRepository(t *testing.T) {
	t.Run("creates repository with nil db", func(t *testing.T) {
		repo := NewPgPaperRepository(nil)
		assert.NotNil(t, repo)
		assert.Nil(t, repo.db)
	})

	t.Run("creates repository with mock db", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgPaperRepository(mock)
		assert.NotNil(t, repo)
		assert.NotNil(t, repo.db)
	})
}

func TestPgPaperRepository_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("creates paper successfully", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgPaperRepository(mock)
		paper := newTestPaper()

		mock.ExpectQuery("INSERT INTO papers").
			WithArgs(
				pgxmock.AnyArg(), paper.DOI, paper.ArxivID, paper.Bibcode,
				paper.Title, pgxmock.AnyArg(), paper.Year, paper.Journal,
				paper.Abstract, paper.CitationCount, paper.CitationText,
				pgxmock.AnyArg(), pgxmock.AnyArg(),
			).
			WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).
				AddRow(paper.ID, paper.CreatedAt, paper.UpdatedAt))

		result, err := repo.Create(ctx, paper)
		require.NoError(t, err)
		assert.Equal(t, paper.ID, result.ID)
		assert.Equal(t, paper.DOI, result.DOI)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns validation error for nil paper", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgPaperRepository(mock)
		result, err := repo.Create(ctx, nil)

		assert.Nil(t, result)
		var validationErr *domain.ValidationError
		assert.True(t, errors.As(err, &validationErr))
		assert.Equal(t, "paper", validationErr.Field)
	})

	t.Run("returns validation error for paper with no title or identifier", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgPaperRepository(mock)
		result, err := repo.Create(ctx, &domain.Paper{})

		assert.Nil(t, result)
		var validationErr *domain.ValidationError
		assert.True(t, errors.As(err, &validationErr))
	})

	t.Run("returns already exists on unique violation", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgPaperRepository(mock)
		paper := newTestPaper()

		mock.ExpectQuery("INSERT INTO papers").
			WithArgs(
				pgxmock.AnyArg(), paper.DOI, paper.ArxivID, paper.Bibcode,
				paper.Title, pgxmock.AnyArg(), paper.Year, paper.Journal,
				paper.Abstract, paper.CitationCount, paper.CitationText,
				pgxmock.AnyArg(), pgxmock.AnyArg(),
			).
			WillReturnError(&pgconn.PgError{Code: "23505"})

		result, err := repo.Create(ctx, paper)
		assert.Nil(t, result)
		assert.True(t, errors.Is(err, domain.ErrAlreadyExists))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPgPaperRepository_Update(t *testing.T) {
	ctx := context.Background()

	t.Run("updates paper successfully", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgPaperRepository(mock)
		paper := newTestPaper()

		mock.ExpectExec("UPDATE papers SET").
			WithArgs(
				paper.ID, paper.DOI, paper.ArxivID, paper.Bibcode,
				paper.Title, pgxmock.AnyArg(), paper.Year, paper.Journal,
				paper.Abstract, paper.CitationCount, paper.CitationText,
				pgxmock.AnyArg(),
			).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		err = repo.Update(ctx, paper)
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns not found when paper missing", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgPaperRepository(mock)
		paper := newTestPaper()

		mock.ExpectExec("UPDATE papers SET").
			WithArgs(
				paper.ID, paper.DOI, paper.ArxivID, paper.Bibcode,
				paper.Title, pgxmock.AnyArg(), paper.Year, paper.Journal,
				paper.Abstract, paper.CitationCount, paper.CitationText,
				pgxmock.AnyArg(),
			).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err = repo.Update(ctx, paper)
		assert.True(t, errors.Is(err, domain.ErrNotFound))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns validation error for nil ID", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgPaperRepository(mock)
		paper := newTestPaper()
		paper.ID = uuid.Nil

		err = repo.Update(ctx, paper)
		var validationErr *domain.ValidationError
		assert.True(t, errors.As(err, &validationErr))
		assert.Equal(t, "id", validationErr.Field)
	})
}

func TestPgPaperRepository_GetByID(t *testing.T) {
	ctx := context.Background()

	t.Run("returns paper when found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgPaperRepository(mock)
		paper := newTestPaper()

		mock.ExpectQuery("SELECT .* FROM papers WHERE id = \\$1").
			WithArgs(paper.ID).
			WillReturnRows(paperRows(paper))

		result, err := repo.GetByID(ctx, paper.ID)
		require.NoError(t, err)
		assert.Equal(t, paper.ID, result.ID)
		assert.Equal(t, paper.Title, result.Title)
		assert.Len(t, result.Authors, 2)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns not found error when not exists", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgPaperRepository(mock)
		id := uuid.New()

		mock.ExpectQuery("SELECT .* FROM papers WHERE id = \\$1").
			WithArgs(id).
			WillReturnError(pgx.ErrNoRows)

		result, err := repo.GetByID(ctx, id)
		assert.Nil(t, result)
		assert.True(t, errors.Is(err, domain.ErrNotFound))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPgPaperRepository_GetByDOI(t *testing.T) {
	ctx := context.Background()

	t.Run("returns paper when found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgPaperRepository(mock)
		paper := newTestPaper()

		mock.ExpectQuery("SELECT .* FROM papers WHERE lower\\(doi\\) = lower\\(\\$1\\)").
			WithArgs(paper.DOI).
			WillReturnRows(paperRows(paper))

		result, err := repo.GetByDOI(ctx, paper.DOI)
		require.NoError(t, err)
		assert.Equal(t, paper.ID, result.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns validation error for empty DOI", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgPaperRepository(mock)
		result, err := repo.GetByDOI(ctx, "")

		assert.Nil(t, result)
		var validationErr *domain.ValidationError
		assert.True(t, errors.As(err, &validationErr))
		assert.Equal(t, "doi", validationErr.Field)
	})

	t.Run("returns not found error when not exists", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgPaperRepository(mock)

		mock.ExpectQuery("SELECT .* FROM papers WHERE lower\\(doi\\) = lower\\(\\$1\\)").
			WithArgs("10.9999/none").
			WillReturnError(pgx.ErrNoRows)

		result, err := repo.GetByDOI(ctx, "10.9999/none")
		assert.Nil(t, result)
		assert.True(t, errors.Is(err, domain.ErrNotFound))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPgPaperRepository_GetByArxivID(t *testing.T) {
	ctx := context.Background()

	t.Run("returns paper when found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgPaperRepository(mock)
		paper := newTestPaper()

		mock.ExpectQuery("SELECT .* FROM papers WHERE arxiv_id = \\$1").
			WithArgs(paper.ArxivID).
			WillReturnRows(paperRows(paper))

		result, err := repo.GetByArxivID(ctx, paper.ArxivID)
		require.NoError(t, err)
		assert.Equal(t, paper.ID, result.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns validation error for empty arXiv ID", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgPaperRepository(mock)
		result, err := repo.GetByArxivID(ctx, "")

		assert.Nil(t, result)
		var validationErr *domain.ValidationError
		assert.True(t, errors.As(err, &validationErr))
	})
}

func TestPgPaperRepository_GetByBibcode(t *testing.T) {
	ctx := context.Background()

	t.Run("returns paper when found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgPaperRepository(mock)
		paper := newTestPaper()

		mock.ExpectQuery("SELECT .* FROM papers WHERE bibcode = \\$1").
			WithArgs(paper.Bibcode).
			WillReturnRows(paperRows(paper))

		result, err := repo.GetByBibcode(ctx, paper.Bibcode)
		require.NoError(t, err)
		assert.Equal(t, paper.ID, result.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns not found error when not exists", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgPaperRepository(mock)

		mock.ExpectQuery("SELECT .* FROM papers WHERE bibcode = \\$1").
			WithArgs("2099ApJ...999...99X").
			WillReturnError(pgx.ErrNoRows)

		result, err := repo.GetByBibcode(ctx, "2099ApJ...999...99X")
		assert.Nil(t, result)
		assert.True(t, errors.Is(err, domain.ErrNotFound))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPgPaperRepository_List(t *testing.T) {
	ctx := context.Background()

	t.Run("lists papers with no filters", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgPaperRepository(mock)
		paper := newTestPaper()

		mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM papers").
			WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(1)))
		mock.ExpectQuery("SELECT .* FROM papers p").
			WithArgs(100, 0).
			WillReturnRows(paperRows(paper))

		papers, total, err := repo.List(ctx, PaperFilter{})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, papers, 1)
		assert.Equal(t, paper.ID, papers[0].ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("applies year and bibcode filters", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgPaperRepository(mock)
		year := 2019
		hasBibcode := true

		mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM papers").
			WithArgs(year).
			WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(0)))
		mock.ExpectQuery("SELECT .* FROM papers p").
			WithArgs(year, 100, 0).
			WillReturnRows(paperRows())

		papers, total, err := repo.List(ctx, PaperFilter{Year: &year, HasBibcode: &hasBibcode})
		require.NoError(t, err)
		assert.Equal(t, int64(0), total)
		assert.Empty(t, papers)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("clamps excessive limit", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgPaperRepository(mock)

		mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM papers").
			WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(0)))
		mock.ExpectQuery("SELECT .* FROM papers p").
			WithArgs(1000, 0).
			WillReturnRows(paperRows())

		_, _, err = repo.List(ctx, PaperFilter{Limit: 5000})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPgPaperRepository_BulkUpsert(t *testing.T) {
	ctx := context.Background()

	t.Run("returns empty slice for empty input", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgPaperRepository(mock)
		results, err := repo.BulkUpsert(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("returns validation error for nil paper", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgPaperRepository(mock)
		results, err := repo.BulkUpsert(ctx, []*domain.Paper{nil})
		assert.Nil(t, results)
		var validationErr *domain.ValidationError
		assert.True(t, errors.As(err, &validationErr))
	})

	t.Run("upserts papers in batch", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgPaperRepository(mock)
		p1 := newTestPaper()
		p2 := newTestPaper()
		p2.DOI = "10.1086/300499"
		p2.Bibcode = "1998AJ....116.1009R"

		batch := mock.ExpectBatch()
		batch.ExpectQuery("INSERT INTO papers").
			WithArgs(
				pgxmock.AnyArg(), p1.DOI, p1.ArxivID, p1.Bibcode, p1.Title,
				pgxmock.AnyArg(), p1.Year, p1.Journal, p1.Abstract,
				p1.CitationCount, p1.CitationText, pgxmock.AnyArg(), pgxmock.AnyArg(),
			).
			WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).
				AddRow(p1.ID, p1.CreatedAt, p1.UpdatedAt))
		batch.ExpectQuery("INSERT INTO papers").
			WithArgs(
				pgxmock.AnyArg(), p2.DOI, p2.ArxivID, p2.Bibcode, p2.Title,
				pgxmock.AnyArg(), p2.Year, p2.Journal, p2.Abstract,
				p2.CitationCount, p2.CitationText, pgxmock.AnyArg(), pgxmock.AnyArg(),
			).
			WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).
				AddRow(p2.ID, p2.CreatedAt, p2.UpdatedAt))

		results, err := repo.BulkUpsert(ctx, []*domain.Paper{p1, p2})
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, p1.ID, results[0].ID)
		assert.Equal(t, p2.ID, results[1].ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
