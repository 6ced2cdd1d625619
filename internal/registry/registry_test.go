package registry

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openshelf/bibsync-service/internal/domain"
	"github.com/openshelf/bibsync-service/internal/repository"
)

// fakePaperRepo implements repository.PaperRepository over an in-memory slice.
type fakePaperRepo struct {
	papers []*domain.Paper
	err    error
}

func (f *fakePaperRepo) Create(_ context.Context, paper *domain.Paper) (*domain.Paper, error) {
	f.papers = append(f.papers, paper)
	return paper, nil
}

func (f *fakePaperRepo) Update(_ context.Context, _ *domain.Paper) error { return nil }

func (f *fakePaperRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Paper, error) {
	for _, p := range f.papers {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, domain.NewNotFoundError("paper", id.String())
}

func (f *fakePaperRepo) GetByDOI(_ context.Context, doi string) (*domain.Paper, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, p := range f.papers {
		if p.DOI != "" && strings.EqualFold(p.DOI, doi) {
			return p, nil
		}
	}
	return nil, domain.NewNotFoundError("paper", doi)
}

func (f *fakePaperRepo) GetByArxivID(_ context.Context, arxivID string) (*domain.Paper, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, p := range f.papers {
		if p.ArxivID != "" && p.ArxivID == arxivID {
			return p, nil
		}
	}
	return nil, domain.NewNotFoundError("paper", arxivID)
}

func (f *fakePaperRepo) GetByBibcode(_ context.Context, bibcode string) (*domain.Paper, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, p := range f.papers {
		if p.Bibcode != "" && p.Bibcode == bibcode {
			return p, nil
		}
	}
	return nil, domain.NewNotFoundError("paper", bibcode)
}

func (f *fakePaperRepo) List(_ context.Context, _ repository.PaperFilter) ([]*domain.Paper, int64, error) {
	return f.papers, int64(len(f.papers)), nil
}

func (f *fakePaperRepo) BulkUpsert(_ context.Context, papers []*domain.Paper) ([]*domain.Paper, error) {
	return papers, nil
}

// fakeSourceRepo implements repository.SourceRepository, recording upserts.
type fakeSourceRepo struct {
	upserted  []*domain.PaperSource
	upsertErr error
	listed    []*domain.PaperSource
	listErr   error
}

func (f *fakeSourceRepo) Upsert(_ context.Context, src *domain.PaperSource) (*domain.PaperSource, error) {
	if f.upsertErr != nil {
		return nil, f.upsertErr
	}
	f.upserted = append(f.upserted, src)
	return src, nil
}

func (f *fakeSourceRepo) ListByPaper(_ context.Context, _ uuid.UUID) ([]*domain.PaperSource, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.listed, nil
}

func (f *fakeSourceRepo) FindBySourceID(_ context.Context, source, sourceID string) (*domain.PaperSource, error) {
	return nil, domain.NewNotFoundError("paper_source", source+":"+sourceID)
}

func (f *fakeSourceRepo) UpdateLastSynced(_ context.Context, _ uuid.UUID) error { return nil }

func newTestRegistry(papers *fakePaperRepo, sources *fakeSourceRepo) *Registry {
	return New(papers, sources, Config{
		SourcePriorities: map[string]int{"ads": 10, "semanticscholar": 30},
	}, zerolog.Nop())
}

func TestRegistry_FindOrCreatePaper_MatchByDOI(t *testing.T) {
	t.Parallel()

	existing := &domain.Paper{
		ID:    uuid.New(),
		DOI:   "10.3847/1538-4357/ab1422",
		Title: "Large Magellanic Cloud Cepheid Standards",
	}
	papers := &fakePaperRepo{papers: []*domain.Paper{existing}}
	sources := &fakeSourceRepo{}
	reg := newTestRegistry(papers, sources)

	// Candidate DOI differs in case and carries a resolver prefix.
	candidate := &domain.Paper{DOI: "https://doi.org/10.3847/1538-4357/AB1422"}
	result, err := reg.FindOrCreatePaper(context.Background(), candidate, "ads", "2019ApJ...876...85R", domain.SourceCapabilities{HasReferences: true})

	require.NoError(t, err)
	assert.False(t, result.IsNew)
	require.NotNil(t, result.Paper)
	assert.Equal(t, existing.ID, result.Paper.ID)

	// The registration lands on the matched paper with the configured priority.
	require.Len(t, sources.upserted, 1)
	assert.Equal(t, existing.ID, sources.upserted[0].PaperID)
	assert.Equal(t, "ads", sources.upserted[0].Source)
	assert.Equal(t, "2019ApJ...876...85R", sources.upserted[0].SourceID)
	assert.Equal(t, 10, sources.upserted[0].Priority)
	assert.True(t, sources.upserted[0].Capabilities.HasReferences)
}

func TestRegistry_FindOrCreatePaper_MatchByArxivID(t *testing.T) {
	t.Parallel()

	existing := &domain.Paper{ID: uuid.New(), ArxivID: "1904.05910"}
	papers := &fakePaperRepo{papers: []*domain.Paper{existing}}
	sources := &fakeSourceRepo{}
	reg := newTestRegistry(papers, sources)

	// Versioned, prefixed variants resolve to the same stored ID.
	candidate := &domain.Paper{ArxivID: "arXiv:1904.05910v2"}
	result, err := reg.FindOrCreatePaper(context.Background(), candidate, "arxiv", "1904.05910", domain.SourceCapabilities{})

	require.NoError(t, err)
	assert.False(t, result.IsNew)
	assert.Equal(t, existing.ID, result.Paper.ID)
}

func TestRegistry_FindOrCreatePaper_MatchByBibcode(t *testing.T) {
	t.Parallel()

	existing := &domain.Paper{ID: uuid.New(), Bibcode: "2019ApJ...876...85R"}
	papers := &fakePaperRepo{papers: []*domain.Paper{existing}}
	sources := &fakeSourceRepo{}
	reg := newTestRegistry(papers, sources)

	result, err := reg.FindOrCreatePaper(context.Background(), &domain.Paper{Bibcode: "2019ApJ...876...85R"}, "ads", "2019ApJ...876...85R", domain.SourceCapabilities{})

	require.NoError(t, err)
	assert.False(t, result.IsNew)
	assert.Equal(t, existing.ID, result.Paper.ID)
}

func TestRegistry_FindOrCreatePaper_BibcodeCaseSensitive(t *testing.T) {
	t.Parallel()

	existing := &domain.Paper{ID: uuid.New(), Bibcode: "2019ApJ...876...85R"}
	papers := &fakePaperRepo{papers: []*domain.Paper{existing}}
	sources := &fakeSourceRepo{}
	reg := newTestRegistry(papers, sources)

	// Bibcode case encodes the first-author initial; a case mismatch is a miss.
	result, err := reg.FindOrCreatePaper(context.Background(), &domain.Paper{Bibcode: "2019apj...876...85r"}, "ads", "x", domain.SourceCapabilities{})

	require.NoError(t, err)
	assert.True(t, result.IsNew)
	assert.Nil(t, result.Paper)
	assert.Empty(t, sources.upserted)
}

// Importing the same work twice through different identifiers must converge
// on one canonical paper carrying both source registrations.
func TestRegistry_FindOrCreatePaper_TwoImportsOnePaper(t *testing.T) {
	t.Parallel()

	papers := &fakePaperRepo{}
	sources := &fakeSourceRepo{}
	reg := newTestRegistry(papers, sources)
	ctx := context.Background()

	// First import arrives from ADS with only a bibcode.
	first, err := reg.FindOrCreatePaper(ctx, &domain.Paper{Bibcode: "1998AJ....116.1009R"}, "ads", "1998AJ....116.1009R", domain.SourceCapabilities{HasReferences: true})
	require.NoError(t, err)
	require.True(t, first.IsNew)

	created, err := papers.Create(ctx, &domain.Paper{
		ID:      uuid.New(),
		Bibcode: "1998AJ....116.1009R",
	})
	require.NoError(t, err)
	_, err = reg.AddPaperSource(ctx, &domain.PaperSource{
		PaperID:  created.ID,
		Source:   "ads",
		SourceID: "1998AJ....116.1009R",
	})
	require.NoError(t, err)

	// Second import of the same work arrives from Crossref keyed by DOI but
	// still carrying the bibcode, which is what links the two.
	second, err := reg.FindOrCreatePaper(ctx, &domain.Paper{
		DOI:     "10.1086/300499",
		Bibcode: "1998AJ....116.1009R",
	}, "crossref", "10.1086/300499", domain.SourceCapabilities{})
	require.NoError(t, err)
	assert.False(t, second.IsNew)
	require.NotNil(t, second.Paper)
	assert.Equal(t, created.ID, second.Paper.ID)

	// One paper, two registrations, both on it.
	assert.Len(t, papers.papers, 1)
	require.Len(t, sources.upserted, 2)
	assert.Equal(t, created.ID, sources.upserted[0].PaperID)
	assert.Equal(t, created.ID, sources.upserted[1].PaperID)
	assert.Equal(t, "ads", sources.upserted[0].Source)
	assert.Equal(t, "crossref", sources.upserted[1].Source)
}

func TestRegistry_FindOrCreatePaper_DOIPrecedence(t *testing.T) {
	t.Parallel()

	byDOI := &domain.Paper{ID: uuid.New(), DOI: "10.1086/300499"}
	byBibcode := &domain.Paper{ID: uuid.New(), Bibcode: "1998AJ....116.1009R"}
	papers := &fakePaperRepo{papers: []*domain.Paper{byBibcode, byDOI}}
	sources := &fakeSourceRepo{}
	reg := newTestRegistry(papers, sources)

	// When both identifiers match different papers, the DOI match wins.
	candidate := &domain.Paper{DOI: "10.1086/300499", Bibcode: "1998AJ....116.1009R"}
	result, err := reg.FindOrCreatePaper(context.Background(), candidate, "ads", "1998AJ....116.1009R", domain.SourceCapabilities{})

	require.NoError(t, err)
	assert.Equal(t, byDOI.ID, result.Paper.ID)
}

func TestRegistry_FindOrCreatePaper_MissCreatesNothing(t *testing.T) {
	t.Parallel()

	papers := &fakePaperRepo{}
	sources := &fakeSourceRepo{}
	reg := newTestRegistry(papers, sources)

	result, err := reg.FindOrCreatePaper(context.Background(), &domain.Paper{DOI: "10.9999/unknown"}, "ads", "x", domain.SourceCapabilities{})

	require.NoError(t, err)
	assert.True(t, result.IsNew)
	assert.Nil(t, result.Paper)
	assert.Empty(t, papers.papers)
	assert.Empty(t, sources.upserted)
}

func TestRegistry_FindOrCreatePaper_NilCandidate(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(&fakePaperRepo{}, &fakeSourceRepo{})
	result, err := reg.FindOrCreatePaper(context.Background(), nil, "ads", "x", domain.SourceCapabilities{})

	assert.Nil(t, result)
	var validationErr *domain.ValidationError
	assert.True(t, errors.As(err, &validationErr))
}

func TestRegistry_FindOrCreatePaper_LookupFailure(t *testing.T) {
	t.Parallel()

	papers := &fakePaperRepo{err: errors.New("connection refused")}
	reg := newTestRegistry(papers, &fakeSourceRepo{})

	result, err := reg.FindOrCreatePaper(context.Background(), &domain.Paper{DOI: "10.1086/300499"}, "ads", "x", domain.SourceCapabilities{})

	assert.Nil(t, result)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestRegistry_FindOrCreatePaper_DuplicateRegistration(t *testing.T) {
	t.Parallel()

	existing := &domain.Paper{ID: uuid.New(), DOI: "10.1086/300499"}
	ownerID := uuid.New()
	papers := &fakePaperRepo{papers: []*domain.Paper{existing}}
	sources := &fakeSourceRepo{
		upsertErr: &domain.DuplicateError{
			Bibcode:      "1998AJ....116.1009R",
			PaperID:      existing.ID,
			OwnerPaperID: ownerID,
		},
	}
	reg := newTestRegistry(papers, sources)

	result, err := reg.FindOrCreatePaper(context.Background(), &domain.Paper{DOI: "10.1086/300499"}, "ads", "1998AJ....116.1009R", domain.SourceCapabilities{})

	assert.Nil(t, result)
	var dupErr *domain.DuplicateError
	require.True(t, errors.As(err, &dupErr))
	assert.Equal(t, ownerID, dupErr.OwnerPaperID)
}

func TestRegistry_AddPaperSource_Priorities(t *testing.T) {
	t.Parallel()

	t.Run("configured source gets configured priority", func(t *testing.T) {
		sources := &fakeSourceRepo{}
		reg := newTestRegistry(&fakePaperRepo{}, sources)

		src, err := reg.AddPaperSource(context.Background(), &domain.PaperSource{
			PaperID: uuid.New(),
			Source:  "semanticscholar",
		})
		require.NoError(t, err)
		assert.Equal(t, 30, src.Priority)
	})

	t.Run("unconfigured source gets default priority", func(t *testing.T) {
		sources := &fakeSourceRepo{}
		reg := newTestRegistry(&fakePaperRepo{}, sources)

		src, err := reg.AddPaperSource(context.Background(), &domain.PaperSource{
			PaperID: uuid.New(),
			Source:  "crossref",
		})
		require.NoError(t, err)
		assert.Equal(t, domain.DefaultSourcePriority, src.Priority)
	})

	t.Run("explicit priority is kept", func(t *testing.T) {
		sources := &fakeSourceRepo{}
		reg := newTestRegistry(&fakePaperRepo{}, sources)

		src, err := reg.AddPaperSource(context.Background(), &domain.PaperSource{
			PaperID:  uuid.New(),
			Source:   "ads",
			Priority: 5,
		})
		require.NoError(t, err)
		assert.Equal(t, 5, src.Priority)
	})
}

func TestRegistry_PaperSources_MalformedMetadata(t *testing.T) {
	t.Parallel()

	sources := &fakeSourceRepo{
		listed: []*domain.PaperSource{
			{Source: "ads", Metadata: nil},
			{Source: "arxiv", Metadata: map[string]interface{}{"pub": "arXiv"}},
		},
	}
	reg := newTestRegistry(&fakePaperRepo{}, sources)

	result, err := reg.PaperSources(context.Background(), uuid.New())
	require.NoError(t, err)
	require.Len(t, result, 2)

	// Undecodable metadata comes back as an empty map, not nil.
	assert.NotNil(t, result[0].Metadata)
	assert.Empty(t, result[0].Metadata)
	assert.Equal(t, "arXiv", result[1].Metadata["pub"])
}

func TestRegistry_BestSourceForReferences(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(&fakePaperRepo{}, &fakeSourceRepo{})

	t.Run("filters by capability", func(t *testing.T) {
		noRefs := &domain.PaperSource{Source: "arxiv", Priority: 1}
		withRefs := &domain.PaperSource{Source: "ads", Priority: 99, Capabilities: domain.SourceCapabilities{HasReferences: true}}

		best := reg.BestSourceForReferences([]*domain.PaperSource{noRefs, withRefs})
		require.NotNil(t, best)
		assert.Equal(t, "ads", best.Source)
	})

	t.Run("primary beats lower priority", func(t *testing.T) {
		cheap := &domain.PaperSource{Source: "semanticscholar", Priority: 1, Capabilities: domain.SourceCapabilities{HasReferences: true}}
		primary := &domain.PaperSource{Source: "ads", Priority: 50, IsPrimary: true, Capabilities: domain.SourceCapabilities{HasReferences: true}}

		best := reg.BestSourceForReferences([]*domain.PaperSource{cheap, primary})
		require.NotNil(t, best)
		assert.Equal(t, "ads", best.Source)
	})

	t.Run("lowest priority wins among equals", func(t *testing.T) {
		a := &domain.PaperSource{Source: "ads", Priority: 10, Capabilities: domain.SourceCapabilities{HasReferences: true}}
		b := &domain.PaperSource{Source: "semanticscholar", Priority: 30, Capabilities: domain.SourceCapabilities{HasReferences: true}}

		best := reg.BestSourceForReferences([]*domain.PaperSource{b, a})
		require.NotNil(t, best)
		assert.Equal(t, "ads", best.Source)
	})

	t.Run("ties keep input order", func(t *testing.T) {
		first := &domain.PaperSource{Source: "ads", Priority: 50, Capabilities: domain.SourceCapabilities{HasReferences: true}}
		second := &domain.PaperSource{Source: "semanticscholar", Priority: 50, Capabilities: domain.SourceCapabilities{HasReferences: true}}

		best := reg.BestSourceForReferences([]*domain.PaperSource{first, second})
		require.NotNil(t, best)
		assert.Equal(t, "ads", best.Source)
	})

	t.Run("returns nil when nothing qualifies", func(t *testing.T) {
		src := &domain.PaperSource{Source: "arxiv", Priority: 1}
		assert.Nil(t, reg.BestSourceForReferences([]*domain.PaperSource{src}))
		assert.Nil(t, reg.BestSourceForReferences(nil))
	})
}

func TestRegistry_BestSourceForCitations(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(&fakePaperRepo{}, &fakeSourceRepo{})

	refsOnly := &domain.PaperSource{Source: "arxiv", Priority: 1, Capabilities: domain.SourceCapabilities{HasReferences: true}}
	cites := &domain.PaperSource{Source: "ads", Priority: 10, Capabilities: domain.SourceCapabilities{HasCitations: true}}

	best := reg.BestSourceForCitations([]*domain.PaperSource{refsOnly, cites})
	require.NotNil(t, best)
	assert.Equal(t, "ads", best.Source)
}

func TestRegistry_PriorityFor(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(&fakePaperRepo{}, &fakeSourceRepo{})

	assert.Equal(t, 10, reg.PriorityFor("ads"))
	assert.Equal(t, domain.DefaultSourcePriority, reg.PriorityFor("unknown"))
}
