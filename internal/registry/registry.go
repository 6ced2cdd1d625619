// Package registry guarantees one canonical paper per distinct work across
// remote sources. It resolves incoming candidates against the library by
// identifier, maintains the per-source registrations attached to each paper,
// and selects which registered source should serve reference and citation
// lookups.
package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/openshelf/bibsync-service/internal/domain"
	"github.com/openshelf/bibsync-service/internal/identifiers"
	"github.com/openshelf/bibsync-service/internal/repository"
)

// Config holds the configuration for the registry.
type Config struct {
	// SourcePriorities maps source names to their numeric priority.
	// Lower values win during source selection. Sources absent from the
	// map get domain.DefaultSourcePriority.
	SourcePriorities map[string]int
}

// MatchResult is the outcome of resolving a candidate against the library.
type MatchResult struct {
	// Paper is the canonical paper the candidate resolved to. Nil when IsNew.
	Paper *domain.Paper

	// IsNew indicates no existing paper matched any of the candidate's
	// identifiers. The registry performs no creation on this path;
	// canonical-record creation stays with the caller.
	IsNew bool
}

// Registry resolves papers to canonical records and manages their source
// registrations.
type Registry struct {
	papers  repository.PaperRepository
	sources repository.SourceRepository
	cfg     Config
	logger  zerolog.Logger
}

// New creates a new Registry with the given repositories and configuration.
func New(papers repository.PaperRepository, sources repository.SourceRepository, cfg Config, logger zerolog.Logger) *Registry {
	return &Registry{
		papers:  papers,
		sources: sources,
		cfg:     cfg,
		logger:  logger.With().Str("component", "registry").Logger(),
	}
}

// PriorityFor returns the configured priority for a source, falling back to
// domain.DefaultSourcePriority for sources without explicit configuration.
func (r *Registry) PriorityFor(source string) int {
	if p, ok := r.cfg.SourcePriorities[source]; ok {
		return p
	}
	return domain.DefaultSourcePriority
}

// FindOrCreatePaper resolves a candidate paper against the library.
//
// The method:
//  1. Looks up an existing paper by DOI (case-insensitive), else normalized
//     arXiv ID, else bibcode, in that order.
//  2. On a hit, attaches or refreshes the PaperSource registration for
//     (source, sourceID) on the matched paper and returns it with
//     IsNew=false. The matched paper's core metadata is never mutated here.
//  3. On a miss, returns IsNew=true without creating anything.
//
// A miss is the expected new-work path, not an error.
func (r *Registry) FindOrCreatePaper(ctx context.Context, candidate *domain.Paper, source, sourceID string, capabilities domain.SourceCapabilities) (*MatchResult, error) {
	if candidate == nil {
		return nil, domain.NewValidationError("candidate", "candidate cannot be nil")
	}
	if source == "" {
		return nil, domain.NewValidationError("source", "source name is required")
	}

	match, err := r.lookupByIdentifiers(ctx, candidate)
	if err != nil {
		return nil, err
	}
	if match == nil {
		return &MatchResult{IsNew: true}, nil
	}

	_, err = r.AddPaperSource(ctx, &domain.PaperSource{
		PaperID:      match.ID,
		Source:       source,
		SourceID:     sourceID,
		Capabilities: capabilities,
	})
	if err != nil {
		return nil, fmt.Errorf("attaching source %s to paper %s: %w", source, match.ID, err)
	}

	r.logger.Debug().
		Str("paper_id", match.ID.String()).
		Str("source", source).
		Str("source_id", sourceID).
		Msg("candidate resolved to existing paper")

	return &MatchResult{Paper: match, IsNew: false}, nil
}

// lookupByIdentifiers tries the candidate's identifiers in precedence order.
// Returns nil with no error when nothing matches.
func (r *Registry) lookupByIdentifiers(ctx context.Context, candidate *domain.Paper) (*domain.Paper, error) {
	if doi := identifiers.CleanDOI(candidate.DOI); doi != "" {
		paper, err := r.papers.GetByDOI(ctx, doi)
		if err == nil {
			return paper, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("looking up paper by DOI %s: %w", doi, err)
		}
	}

	if arxivID := identifiers.NormalizeArxivID(candidate.ArxivID); arxivID != "" {
		paper, err := r.papers.GetByArxivID(ctx, arxivID)
		if err == nil {
			return paper, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("looking up paper by arXiv ID %s: %w", arxivID, err)
		}
	}

	if candidate.Bibcode != "" {
		paper, err := r.papers.GetByBibcode(ctx, candidate.Bibcode)
		if err == nil {
			return paper, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("looking up paper by bibcode %s: %w", candidate.Bibcode, err)
		}
	}

	return nil, nil
}

// AddPaperSource registers or refreshes a source registration. The upsert is
// keyed by (paper, source); capabilities come from the calling source, not
// from selection logic, so new sources plug in without code changes here.
// A zero priority is replaced with the configured priority for the source.
func (r *Registry) AddPaperSource(ctx context.Context, src *domain.PaperSource) (*domain.PaperSource, error) {
	if src == nil {
		return nil, domain.NewValidationError("source", "source cannot be nil")
	}
	if src.Priority == 0 {
		src.Priority = r.PriorityFor(src.Source)
	}

	registered, err := r.sources.Upsert(ctx, src)
	if err != nil {
		// Duplicate registrations carry the owning paper and propagate
		// unwrapped so callers can report them.
		var dupErr *domain.DuplicateError
		if errors.As(err, &dupErr) {
			return nil, dupErr
		}
		return nil, err
	}

	return registered, nil
}

// PaperSources returns all source registrations for a paper, ordered by
// priority. Registrations with malformed stored metadata come back with an
// empty metadata map rather than failing the listing.
func (r *Registry) PaperSources(ctx context.Context, paperID uuid.UUID) ([]*domain.PaperSource, error) {
	sources, err := r.sources.ListByPaper(ctx, paperID)
	if err != nil {
		return nil, fmt.Errorf("listing sources for paper %s: %w", paperID, err)
	}

	for _, src := range sources {
		if src.Metadata == nil {
			src.Metadata = map[string]interface{}{}
		}
	}

	return sources, nil
}

// BestSourceForReferences selects the registration that should serve
// reference lookups. Among sources advertising the capability it prefers
// primary registrations, then the lowest numeric priority, keeping the first
// of any ties in input order. Returns nil if no source qualifies.
func (r *Registry) BestSourceForReferences(sources []*domain.PaperSource) *domain.PaperSource {
	return selectBest(sources, func(c domain.SourceCapabilities) bool {
		return c.HasReferences
	})
}

// BestSourceForCitations selects the registration that should serve citation
// lookups, with the same ordering as BestSourceForReferences.
func (r *Registry) BestSourceForCitations(sources []*domain.PaperSource) *domain.PaperSource {
	return selectBest(sources, func(c domain.SourceCapabilities) bool {
		return c.HasCitations
	})
}

// selectBest scans registrations in input order keeping the best qualifying
// candidate. Replacement only happens on a strict improvement, which makes
// the tie-break stable.
func selectBest(sources []*domain.PaperSource, qualifies func(domain.SourceCapabilities) bool) *domain.PaperSource {
	var best *domain.PaperSource
	for _, src := range sources {
		if src == nil || !qualifies(src.Capabilities) {
			continue
		}
		if best == nil || betterSource(src, best) {
			best = src
		}
	}
	return best
}

// betterSource reports whether a should displace b in source selection.
func betterSource(a, b *domain.PaperSource) bool {
	if a.IsPrimary != b.IsPrimary {
		return a.IsPrimary
	}
	return a.Priority < b.Priority
}
