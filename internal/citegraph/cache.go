// Package citegraph maintains the cached reference and citation graph.
// Each paper carries at most one cached edge set per direction; a refresh
// replaces the whole set atomically so rows from two fetch cycles or two
// source plugins never mix. Cached sets age out after a freshness window
// and are served with an explicit staleness flag rather than refetched
// implicitly.
package citegraph

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/openshelf/bibsync-service/internal/domain"
	"github.com/openshelf/bibsync-service/internal/identifiers"
	"github.com/openshelf/bibsync-service/internal/observability"
	"github.com/openshelf/bibsync-service/internal/repository"
)

// DefaultFreshnessWindow is how long a cached edge set is served as fresh.
const DefaultFreshnessWindow = 7 * 24 * time.Hour

// CachedGraph is one direction of a paper's cached edge set.
type CachedGraph struct {
	// Edges are the cached rows, possibly empty.
	Edges []*domain.Edge

	// SourcePlugin is the plugin that produced the set. Empty when nothing
	// is cached.
	SourcePlugin string

	// CachedAt is the shared stamp of the set. Zero when nothing is cached.
	CachedAt time.Time

	// IsStale reports whether the set is older than the freshness window.
	// An absent set is stale.
	IsStale bool
}

// Cache is the reference/citation cache service.
type Cache struct {
	edges     repository.EdgeRepository
	papers    repository.PaperRepository
	freshness time.Duration
	metrics   *observability.Metrics
	logger    zerolog.Logger

	now func() time.Time
}

// New creates a new Cache. A non-positive freshness window falls back to
// DefaultFreshnessWindow. Metrics may be nil.
func New(edges repository.EdgeRepository, papers repository.PaperRepository, freshness time.Duration, metrics *observability.Metrics, logger zerolog.Logger) *Cache {
	if freshness <= 0 {
		freshness = DefaultFreshnessWindow
	}
	return &Cache{
		edges:     edges,
		papers:    papers,
		freshness: freshness,
		metrics:   metrics,
		logger:    logger.With().Str("component", "citegraph").Logger(),
		now:       time.Now,
	}
}

// CacheReferences replaces a paper's cached references with a new set from
// the given source plugin.
func (c *Cache) CacheReferences(ctx context.Context, paperID uuid.UUID, edges []*domain.Edge, sourcePlugin string) error {
	return c.cacheEdges(ctx, paperID, domain.EdgeDirectionReference, edges, sourcePlugin)
}

// CacheCitations replaces a paper's cached citations with a new set from
// the given source plugin.
func (c *Cache) CacheCitations(ctx context.Context, paperID uuid.UUID, edges []*domain.Edge, sourcePlugin string) error {
	return c.cacheEdges(ctx, paperID, domain.EdgeDirectionCitation, edges, sourcePlugin)
}

// cacheEdges stamps, resolves, and stores one direction of a paper's graph.
//
// The method:
//  1. Stamps every edge with one shared cachedAt and the source plugin.
//  2. Resolves each edge against the library by DOI, then arXiv ID, then
//     bibcode. Unresolved edges keep a nil link; an edge with no
//     identifiers at all stays permanently unlinked, which is correct.
//  3. Replaces all prior edges for (paper, direction) in one shot.
func (c *Cache) cacheEdges(ctx context.Context, paperID uuid.UUID, direction domain.EdgeDirection, edges []*domain.Edge, sourcePlugin string) error {
	if paperID == uuid.Nil {
		return domain.NewValidationError("paper_id", "paper ID is required")
	}
	if sourcePlugin == "" {
		return domain.NewValidationError("source_plugin", "source plugin is required")
	}

	stamp := c.now().UTC()
	for i, edge := range edges {
		if edge == nil {
			return domain.NewValidationError("edge", fmt.Sprintf("edge at index %d is nil", i))
		}
		edge.SourcePlugin = sourcePlugin
		edge.CachedAt = stamp
		edge.LinkedPaperID = c.resolveTarget(ctx, edge)
	}

	if err := c.edges.ReplaceEdges(ctx, paperID, direction, edges); err != nil {
		return fmt.Errorf("replacing %s edges for paper %s: %w", direction, paperID, err)
	}

	if c.metrics != nil {
		c.metrics.RecordEdgesCached(string(direction), len(edges))
	}
	c.logger.Debug().
		Str("paper_id", paperID.String()).
		Str("direction", string(direction)).
		Str("source_plugin", sourcePlugin).
		Int("edges", len(edges)).
		Msg("edge cache replaced")

	return nil
}

// resolveTarget finds the library paper an edge points at, if any.
// Lookup failures degrade to an unresolved link rather than failing the
// cache write.
func (c *Cache) resolveTarget(ctx context.Context, edge *domain.Edge) *uuid.UUID {
	if doi := identifiers.CleanDOI(edge.TargetDOI); doi != "" {
		if paper, err := c.papers.GetByDOI(ctx, doi); err == nil {
			return &paper.ID
		}
	}
	if arxivID := identifiers.NormalizeArxivID(edge.TargetArxivID); arxivID != "" {
		if paper, err := c.papers.GetByArxivID(ctx, arxivID); err == nil {
			return &paper.ID
		}
	}
	if edge.TargetBibcode != "" {
		if paper, err := c.papers.GetByBibcode(ctx, edge.TargetBibcode); err == nil {
			return &paper.ID
		}
	}
	return nil
}

// CachedReferences returns a paper's cached references with staleness.
func (c *Cache) CachedReferences(ctx context.Context, paperID uuid.UUID) (*CachedGraph, error) {
	return c.cachedEdges(ctx, paperID, domain.EdgeDirectionReference)
}

// CachedCitations returns a paper's cached citations with staleness.
func (c *Cache) CachedCitations(ctx context.Context, paperID uuid.UUID) (*CachedGraph, error) {
	return c.cachedEdges(ctx, paperID, domain.EdgeDirectionCitation)
}

func (c *Cache) cachedEdges(ctx context.Context, paperID uuid.UUID, direction domain.EdgeDirection) (*CachedGraph, error) {
	edges, err := c.edges.GetEdges(ctx, paperID, direction)
	if err != nil {
		return nil, fmt.Errorf("getting %s edges for paper %s: %w", direction, paperID, err)
	}

	// No rows cached at all counts as stale.
	if len(edges) == 0 {
		if c.metrics != nil {
			c.metrics.RecordCacheStale(string(direction))
		}
		return &CachedGraph{Edges: edges, IsStale: true}, nil
	}

	graph := &CachedGraph{
		Edges:        edges,
		SourcePlugin: edges[0].SourcePlugin,
		CachedAt:     edges[0].CachedAt,
	}
	graph.IsStale = c.now().Sub(graph.CachedAt) > c.freshness

	if c.metrics != nil {
		if graph.IsStale {
			c.metrics.RecordCacheStale(string(direction))
		} else {
			c.metrics.RecordCacheHit(string(direction))
		}
	}

	return graph, nil
}

// Stale reports whether a paper's cached set in one direction needs a
// refresh, without loading the edges themselves.
func (c *Cache) Stale(ctx context.Context, paperID uuid.UUID, direction domain.EdgeDirection) (bool, error) {
	cachedAt, err := c.edges.CachedAt(ctx, paperID, direction)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return true, nil
		}
		return false, fmt.Errorf("getting cache stamp for paper %s: %w", paperID, err)
	}
	return c.now().Sub(cachedAt) > c.freshness, nil
}

// UpdateLibraryLinks backfills linked_paper_id on cached edges anywhere in
// the graph whose targets match the given paper. Call it after a paper is
// created so older cached graphs become navigable to it without refetching.
func (c *Cache) UpdateLibraryLinks(ctx context.Context, paperID uuid.UUID) (int64, error) {
	linked, err := c.edges.LinkEdges(ctx, paperID)
	if err != nil {
		return linked, fmt.Errorf("backfilling edge links for paper %s: %w", paperID, err)
	}

	if linked > 0 {
		c.logger.Debug().
			Str("paper_id", paperID.String()).
			Int64("linked", linked).
			Msg("cached edges backfilled")
	}

	return linked, nil
}
