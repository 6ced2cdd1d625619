// Package sync implements the batch reconciliation engine: it resolves a
// set of local papers against a remote bibliographic source, merges the
// canonical metadata back, refreshes stale citation graphs, and batches all
// writes into a single end-of-run flush.
//
// The engine owns an explicit run-state token (Idle, Running,
// CancelRequested) rather than ambient globals, so independent engine
// instances never collide. At most one run is active per engine; a second
// start is rejected synchronously with domain.ErrSyncBusy and no state
// change. Cancellation is cooperative: the token is polled at window and
// item boundaries, in-flight remote calls are allowed to finish, and the
// final outcome reports how far the run got.
package sync

import (
	"context"
	"errors"
	"fmt"
	stdsync "sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/openshelf/bibsync-service/internal/citegraph"
	"github.com/openshelf/bibsync-service/internal/domain"
	"github.com/openshelf/bibsync-service/internal/extract"
	"github.com/openshelf/bibsync-service/internal/identifiers"
	"github.com/openshelf/bibsync-service/internal/merge"
	"github.com/openshelf/bibsync-service/internal/observability"
	"github.com/openshelf/bibsync-service/internal/registry"
	"github.com/openshelf/bibsync-service/internal/repository"
	"github.com/openshelf/bibsync-service/internal/sources"
)

// Default values for the reconciliation engine.
const (
	DefaultWindowWidth = 10
	DefaultWindowDelay = 300 * time.Millisecond
	DefaultBatchSize   = 100
)

// Config holds tunables for a reconciliation run.
type Config struct {
	// WindowWidth caps concurrent per-paper work inside the bibcode bucket.
	WindowWidth int

	// WindowDelay is the fixed pause between concurrency windows, keeping
	// sustained request rates under the remote source's limits.
	WindowDelay time.Duration

	// BatchSize caps bibcodes per batch remote call.
	BatchSize int
}

// FulltextProvider supplies previously cached full text for a paper, used
// by the richest fallback chain when a paper carries no identifiers.
// Implementations return domain.ErrNotFound when nothing is cached.
type FulltextProvider interface {
	CachedFulltext(ctx context.Context, paperID uuid.UUID) (string, error)
}

// EventSink receives progress and completion events from a run. Methods
// must not block; the engine calls them inline.
type EventSink interface {
	SyncProgress(event domain.ProgressEvent)
	SyncCompleted(event domain.CompletionEvent)
}

// Deps bundles the engine's collaborators. Client, Papers, Registry and
// Graph are required; the rest may be nil and the corresponding behavior is
// skipped.
type Deps struct {
	Client    sources.LookupClient
	Papers    repository.PaperRepository
	Registry  *registry.Registry
	Graph     *citegraph.Cache
	Extractor extract.ContentExtractor
	Inferrer  extract.MetadataInferrer
	Fulltext  FulltextProvider
	Events    EventSink
	Metrics   *observability.Metrics
}

// Engine is the batch reconciliation orchestrator.
type Engine struct {
	deps   Deps
	cfg    Config
	logger zerolog.Logger

	mu          stdsync.Mutex
	state       domain.SyncState
	lastOutcome *domain.SyncOutcome
}

// New creates a reconciliation engine. Zero-value config fields fall back
// to defaults.
func New(deps Deps, cfg Config, logger zerolog.Logger) *Engine {
	if cfg.WindowWidth <= 0 {
		cfg.WindowWidth = DefaultWindowWidth
	}
	if cfg.WindowDelay <= 0 {
		cfg.WindowDelay = DefaultWindowDelay
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}

	return &Engine{
		deps:   deps,
		cfg:    cfg,
		logger: logger.With().Str("component", "sync").Logger(),
		state:  domain.SyncStateIdle,
	}
}

// State returns the engine's current run state.
func (e *Engine) State() domain.SyncState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// LastOutcome returns the outcome of the most recently finished run, or nil
// when no run has completed yet.
func (e *Engine) LastOutcome() *domain.SyncOutcome {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastOutcome
}

// Cancel requests cooperative cancellation of the active run. It reports
// whether a run was actually running; requesting cancellation while idle is
// a no-op.
func (e *Engine) Cancel() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != domain.SyncStateRunning {
		return false
	}
	e.state = domain.SyncStateCancelRequested
	return true
}

// cancelled reports whether the run should stop starting new work, either
// because cancellation was requested or the context is done.
func (e *Engine) cancelled(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state == domain.SyncStateCancelRequested
}

// tryAcquire claims the run state. It reports false, with no state change,
// when a run is already active.
func (e *Engine) tryAcquire() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != domain.SyncStateIdle {
		return false
	}
	e.state = domain.SyncStateRunning
	return true
}

// Run reconciles the given papers against the remote source.
//
// The input is partitioned into three disjoint buckets processed strictly
// in order: papers with a bibcode (batch lookups in fixed concurrency
// windows), papers with a DOI or arXiv ID (individual lookup cascade), and
// papers with neither (extraction and inference fallback chain). Every
// matched paper runs the same finishing routine and is queued; the queue is
// flushed once at the end of the run.
//
// A per-item failure never aborts the run. Run returns domain.ErrSyncBusy
// when another run is active.
func (e *Engine) Run(ctx context.Context, papers []*domain.Paper) (*domain.SyncOutcome, error) {
	if !e.tryAcquire() {
		if e.deps.Metrics != nil {
			e.deps.Metrics.RecordSyncRejected()
		}
		return nil, domain.ErrSyncBusy
	}
	return e.run(ctx, papers)
}

// Start begins a run in the background. The busy check happens
// synchronously before Start returns; the given context must outlive the
// run, not the caller's request. Outcomes are retrievable via LastOutcome
// and the event sink.
func (e *Engine) Start(ctx context.Context, papers []*domain.Paper) error {
	if !e.tryAcquire() {
		if e.deps.Metrics != nil {
			e.deps.Metrics.RecordSyncRejected()
		}
		return domain.ErrSyncBusy
	}
	go func() {
		if _, err := e.run(ctx, papers); err != nil {
			e.logger.Error().Err(err).Msg("background reconciliation run failed")
		}
	}()
	return nil
}

// run executes a reconciliation over papers. The caller must have claimed
// the run state; run releases it on every exit path.
func (e *Engine) run(ctx context.Context, papers []*domain.Paper) (*domain.SyncOutcome, error) {
	defer func() {
		e.mu.Lock()
		e.state = domain.SyncStateIdle
		e.mu.Unlock()
	}()

	started := time.Now()
	runID := uuid.New().String()
	ctx = observability.WithSyncRunID(ctx, runID)
	logger := observability.WithSyncContext(e.logger, runID, len(papers))

	if e.deps.Metrics != nil {
		e.deps.Metrics.RecordSyncStarted(len(papers))
	}

	withBibcode, withIdentifier, bare := partition(papers)
	logger.Info().
		Int("with_bibcode", len(withBibcode)).
		Int("with_identifier", len(withIdentifier)).
		Int("without_identifier", len(bare)).
		Msg("reconciliation run started")

	acc := newAccumulator(len(papers))

	e.runBibcodeBucket(ctx, withBibcode, acc, logger)
	e.runIdentifierBucket(ctx, withIdentifier, acc, logger)
	e.runFallbackBucket(ctx, bare, acc, logger)

	flushErr := e.flush(ctx, acc, logger)

	outcome := acc.result()
	outcome.Cancelled = e.cancelled(ctx)
	duration := time.Since(started)

	if e.deps.Metrics != nil {
		if outcome.Cancelled {
			e.deps.Metrics.RecordSyncCancelled(duration.Seconds())
		} else {
			e.deps.Metrics.RecordSyncCompleted(duration.Seconds())
		}
	}

	e.mu.Lock()
	e.lastOutcome = outcome
	e.mu.Unlock()

	if e.deps.Events != nil {
		e.deps.Events.SyncCompleted(domain.CompletionEvent{
			Outcome:   *outcome,
			Cancelled: outcome.Cancelled,
			Duration:  duration,
			StartedAt: started.UTC(),
			EndedAt:   started.Add(duration).UTC(),
		})
	}

	logger.Info().
		Int("updated", outcome.Updated).
		Int("failed", outcome.Failed).
		Int("skipped", outcome.Skipped).
		Bool("cancelled", outcome.Cancelled).
		Dur("duration", duration).
		Msg("reconciliation run finished")

	if flushErr != nil {
		return outcome, flushErr
	}
	return outcome, nil
}

// partition splits papers into the three reconciliation buckets. Bucket
// membership is fixed for the run and the buckets are disjoint.
func partition(papers []*domain.Paper) (withBibcode, withIdentifier, bare []*domain.Paper) {
	for _, p := range papers {
		if p == nil {
			continue
		}
		switch {
		case p.Bibcode != "":
			withBibcode = append(withBibcode, p)
		case p.DOI != "" || p.ArxivID != "":
			withIdentifier = append(withIdentifier, p)
		default:
			bare = append(bare, p)
		}
	}
	return withBibcode, withIdentifier, bare
}

// runBibcodeBucket reconciles all papers that already carry a bibcode.
//
// Metadata for the whole bucket comes from batch remote calls, indexed by
// exact bibcode and by the dot-stripped normalized form. Citation text is
// exported once in bulk and partitioned back per paper. Items are then
// processed in fixed-width concurrency windows with a fixed inter-window
// delay; a bibcode missing from the batch result falls back to an
// individual DOI lookup before the item is settled.
func (e *Engine) runBibcodeBucket(ctx context.Context, papers []*domain.Paper, acc *accumulator, logger zerolog.Logger) {
	if len(papers) == 0 || e.cancelled(ctx) {
		return
	}

	bibcodes := make([]string, 0, len(papers))
	for _, p := range papers {
		bibcodes = append(bibcodes, p.Bibcode)
	}

	index := make(map[string]*domain.RemotePaper, len(papers))
	var batchErr error
	for _, chunk := range chunkStrings(bibcodes, e.cfg.BatchSize) {
		remotes, err := e.deps.Client.BatchByBibcodes(ctx, chunk)
		if err != nil {
			batchErr = err
			logger.Warn().Err(err).Int("bibcodes", len(chunk)).Msg("batch bibcode lookup failed")
			continue
		}
		for _, remote := range remotes {
			if remote == nil || remote.Bibcode == "" {
				continue
			}
			index[remote.Bibcode] = remote
			index[identifiers.NormalizeBibcode(remote.Bibcode)] = remote
		}
	}

	citationText := map[string]string{}
	blob, err := e.deps.Client.BulkCitationText(ctx, bibcodes)
	if err != nil {
		logger.Warn().Err(err).Msg("bulk citation text export failed, continuing without it")
	} else {
		citationText = PartitionCitationText(blob, bibcodes)
	}

	windows := chunkPapers(papers, e.cfg.WindowWidth)
	for i, window := range windows {
		if e.cancelled(ctx) {
			return
		}

		var wg stdsync.WaitGroup
		for _, p := range window {
			wg.Add(1)
			go func(p *domain.Paper) {
				defer wg.Done()
				e.reconcileBibcodeItem(ctx, p, index, citationText[p.Bibcode], batchErr, acc, logger)
			}(p)
		}
		wg.Wait()

		if i < len(windows)-1 {
			if err := sleepCtx(ctx, e.cfg.WindowDelay); err != nil {
				return
			}
		}
	}
}

// reconcileBibcodeItem settles one bucket-(a) paper against the batch index.
func (e *Engine) reconcileBibcodeItem(ctx context.Context, p *domain.Paper, index map[string]*domain.RemotePaper, citationText string, batchErr error, acc *accumulator, logger zerolog.Logger) {
	remote, ok := index[p.Bibcode]
	if !ok {
		remote = index[identifiers.NormalizeBibcode(p.Bibcode)]
	}

	chain := &lookupChain{}
	if remote == nil && p.DOI != "" {
		remote = chain.try(e.deps.Client.GetByDOI(ctx, p.DOI))
	}
	if remote == nil && chain.lastErr == nil {
		chain.lastErr = batchErr
	}

	e.settleItem(ctx, p, remote, chain.lastErr, citationText, acc, logger)
}

// runIdentifierBucket reconciles papers with a DOI or arXiv ID but no
// bibcode, one item at a time: DOI lookup, then arXiv lookup, then the
// smart-search heuristic.
func (e *Engine) runIdentifierBucket(ctx context.Context, papers []*domain.Paper, acc *accumulator, logger zerolog.Logger) {
	for _, p := range papers {
		if e.cancelled(ctx) {
			return
		}

		chain := &lookupChain{}
		var remote *domain.RemotePaper
		if p.DOI != "" {
			remote = chain.try(e.deps.Client.GetByDOI(ctx, p.DOI))
		}
		if remote == nil && p.ArxivID != "" {
			remote = chain.try(e.deps.Client.GetByArxivID(ctx, p.ArxivID))
		}
		if remote == nil && p.Title != "" {
			remote = chain.try(e.deps.Client.SmartSearch(ctx, smartQuery(p, extract.Metadata{})))
		}

		e.settleItem(ctx, p, remote, chain.lastErr, "", acc, logger)
	}
}

// runFallbackBucket reconciles papers with no identifiers at all through the
// richest fallback chain: a bibcode embedded in a citation-text URL, then
// pattern extraction over cached full text, then optional metadata
// inference feeding the same smart search as the identifier bucket.
func (e *Engine) runFallbackBucket(ctx context.Context, papers []*domain.Paper, acc *accumulator, logger zerolog.Logger) {
	for _, p := range papers {
		if e.cancelled(ctx) {
			return
		}

		remote, lastErr := e.resolveWithoutIdentifiers(ctx, p, logger)
		e.settleItem(ctx, p, remote, lastErr, "", acc, logger)
	}
}

func (e *Engine) resolveWithoutIdentifiers(ctx context.Context, p *domain.Paper, logger zerolog.Logger) (*domain.RemotePaper, error) {
	chain := &lookupChain{}

	if p.CitationText != "" {
		if cand, ok := identifiers.BibcodeFromURL(p.CitationText); ok {
			if remote := chain.try(e.deps.Client.GetByBibcode(ctx, cand.Value)); remote != nil {
				return remote, nil
			}
		}
	}

	fulltext := e.cachedFulltext(ctx, p, logger)
	if fulltext != "" && e.deps.Extractor != nil {
		ids, err := e.deps.Extractor.ExtractIdentifiers(ctx, fulltext)
		if err != nil {
			logger.Debug().Err(err).Str("paper_id", p.ID.String()).Msg("fulltext extraction produced no identifiers")
		} else {
			if remote := e.lookupExtracted(ctx, ids, chain); remote != nil {
				return remote, nil
			}
		}
	}

	inferred := e.inferMetadata(ctx, p, fulltext, logger)
	if inferred.DOI != "" {
		if remote := chain.try(e.deps.Client.GetByDOI(ctx, inferred.DOI)); remote != nil {
			return remote, nil
		}
	}
	if inferred.ArxivID != "" {
		if remote := chain.try(e.deps.Client.GetByArxivID(ctx, inferred.ArxivID)); remote != nil {
			return remote, nil
		}
	}

	query := smartQuery(p, inferred)
	if query.Title != "" {
		if remote := chain.try(e.deps.Client.SmartSearch(ctx, query)); remote != nil {
			return remote, nil
		}
	}

	return nil, chain.lastErr
}

func (e *Engine) lookupExtracted(ctx context.Context, ids extract.Identifiers, chain *lookupChain) *domain.RemotePaper {
	if ids.DOI != "" {
		if remote := chain.try(e.deps.Client.GetByDOI(ctx, ids.DOI)); remote != nil {
			return remote
		}
	}
	if ids.ArxivID != "" {
		if remote := chain.try(e.deps.Client.GetByArxivID(ctx, ids.ArxivID)); remote != nil {
			return remote
		}
	}
	if ids.Bibcode != "" {
		if remote := chain.try(e.deps.Client.GetByBibcode(ctx, ids.Bibcode)); remote != nil {
			return remote
		}
	}
	return nil
}

// cachedFulltext fetches previously cached full text; any failure is
// treated as "no data from this strategy".
func (e *Engine) cachedFulltext(ctx context.Context, p *domain.Paper, logger zerolog.Logger) string {
	if e.deps.Fulltext == nil {
		return ""
	}
	text, err := e.deps.Fulltext.CachedFulltext(ctx, p.ID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			logger.Debug().Err(err).Str("paper_id", p.ID.String()).Msg("cached fulltext unavailable")
		}
		return ""
	}
	return text
}

// inferMetadata runs the optional metadata-inference assist over the best
// available text. Unavailability and failure both mean "no data".
func (e *Engine) inferMetadata(ctx context.Context, p *domain.Paper, fulltext string, logger zerolog.Logger) extract.Metadata {
	if e.deps.Inferrer == nil {
		return extract.Metadata{}
	}
	text := p.CitationText
	if text == "" {
		text = fulltext
	}
	if text == "" {
		return extract.Metadata{}
	}
	inferred, err := e.deps.Inferrer.InferMetadata(ctx, text)
	if err != nil {
		logger.Debug().Err(err).Str("paper_id", p.ID.String()).Msg("metadata inference unavailable")
		return extract.Metadata{}
	}
	return inferred
}

// smartQuery builds the heuristic search terms from the paper's local
// metadata, overlaid by inferred fields when present.
func smartQuery(p *domain.Paper, inferred extract.Metadata) sources.SmartSearchQuery {
	query := sources.SmartSearchQuery{
		Title:       p.Title,
		FirstAuthor: p.FirstAuthorSurname(),
		Year:        p.Year,
		Journal:     p.Journal,
	}
	if inferred.Title != "" {
		query.Title = inferred.Title
	}
	if inferred.FirstAuthor != "" {
		query.FirstAuthor = inferred.FirstAuthor
	}
	if inferred.Year != 0 {
		query.Year = inferred.Year
	}
	if inferred.Journal != "" {
		query.Journal = inferred.Journal
	}
	return query
}

// settleItem records the final disposition of one paper: matched papers run
// the finishing routine, a remote failure marks the item failed, and no
// match at all is a skip.
func (e *Engine) settleItem(ctx context.Context, p *domain.Paper, remote *domain.RemotePaper, remoteErr error, citationText string, acc *accumulator, logger zerolog.Logger) {
	switch {
	case remote != nil:
		e.finishMatch(ctx, p, remote, citationText, acc, logger)
	case remoteErr != nil:
		e.recordFailed(acc, p, remoteErr.Error())
	default:
		e.recordSkipped(acc, p)
	}
}

// finishMatch is the uniform finishing routine every successful match runs:
// duplicate guard, metadata merge, citation text attachment, source
// registration, opportunistic edge-cache refresh, and the queued write.
func (e *Engine) finishMatch(ctx context.Context, p *domain.Paper, remote *domain.RemotePaper, citationText string, acc *accumulator, logger zerolog.Logger) {
	if remote.Bibcode != "" && remote.Bibcode != p.Bibcode {
		owner, err := e.deps.Papers.GetByBibcode(ctx, remote.Bibcode)
		if err == nil && owner.ID != p.ID {
			e.recordDuplicate(acc, p, remote.Bibcode, owner.ID)
			return
		}
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			logger.Warn().Err(err).Str("bibcode", remote.Bibcode).Msg("duplicate ownership check failed, proceeding")
		}
	}

	if citationText != "" {
		remote.CitationText = citationText
	}
	merge.ApplyRemote(p, remote)

	_, err := e.deps.Registry.AddPaperSource(ctx, &domain.PaperSource{
		PaperID:      p.ID,
		Source:       e.deps.Client.SourceName(),
		SourceID:     remote.SourceID,
		Capabilities: e.deps.Client.Capabilities(),
	})
	if err != nil {
		var dup *domain.DuplicateError
		if errors.As(err, &dup) {
			e.recordDuplicate(acc, p, dup.Bibcode, dup.OwnerPaperID)
			return
		}
		e.recordFailed(acc, p, fmt.Sprintf("registering source: %v", err))
		return
	}

	e.refreshEdges(ctx, p, remote.Bibcode, logger)
	e.recordUpdated(acc, p)
}

// refreshEdges refreshes the paper's cached reference and citation graphs
// when the source can serve them and the cache is stale. Refresh failures
// never affect the item's outcome.
func (e *Engine) refreshEdges(ctx context.Context, p *domain.Paper, bibcode string, logger zerolog.Logger) {
	if e.deps.Graph == nil || bibcode == "" {
		return
	}

	caps := e.deps.Client.Capabilities()
	plugin := e.deps.Client.SourceName()

	if caps.HasReferences {
		if stale, err := e.deps.Graph.Stale(ctx, p.ID, domain.EdgeDirectionReference); err == nil && stale {
			if edges, err := e.deps.Client.References(ctx, bibcode); err != nil {
				logger.Debug().Err(err).Str("bibcode", bibcode).Msg("reference refresh failed")
			} else if err := e.deps.Graph.CacheReferences(ctx, p.ID, edges, plugin); err != nil {
				logger.Warn().Err(err).Str("paper_id", p.ID.String()).Msg("caching references failed")
			}
		}
	}

	if caps.HasCitations {
		if stale, err := e.deps.Graph.Stale(ctx, p.ID, domain.EdgeDirectionCitation); err == nil && stale {
			if edges, err := e.deps.Client.Citations(ctx, bibcode); err != nil {
				logger.Debug().Err(err).Str("bibcode", bibcode).Msg("citation refresh failed")
			} else if err := e.deps.Graph.CacheCitations(ctx, p.ID, edges, plugin); err != nil {
				logger.Warn().Err(err).Str("paper_id", p.ID.String()).Msg("caching citations failed")
			}
		}
	}
}

// flush writes every queued paper in one batched upsert.
func (e *Engine) flush(ctx context.Context, acc *accumulator, logger zerolog.Logger) error {
	queued := acc.queued()
	if len(queued) == 0 {
		return nil
	}
	if _, err := e.deps.Papers.BulkUpsert(ctx, queued); err != nil {
		logger.Error().Err(err).Int("papers", len(queued)).Msg("end-of-run flush failed")
		return fmt.Errorf("flushing %d papers: %w", len(queued), err)
	}
	logger.Debug().Int("papers", len(queued)).Msg("end-of-run flush complete")
	return nil
}

func (e *Engine) recordUpdated(acc *accumulator, p *domain.Paper) {
	settled := acc.updated(p)
	if e.deps.Metrics != nil {
		e.deps.Metrics.RecordPaperUpdated(e.deps.Client.SourceName())
	}
	e.reportProgress(settled, acc.total, displayName(p))
}

func (e *Engine) recordFailed(acc *accumulator, p *domain.Paper, reason string) {
	settled := acc.failed(p, reason)
	if e.deps.Metrics != nil {
		e.deps.Metrics.RecordPaperFailed("remote_failure")
	}
	e.reportProgress(settled, acc.total, displayName(p))
}

func (e *Engine) recordSkipped(acc *accumulator, p *domain.Paper) {
	settled := acc.skipped(p)
	if e.deps.Metrics != nil {
		e.deps.Metrics.RecordPaperSkipped()
	}
	e.reportProgress(settled, acc.total, displayName(p))
}

func (e *Engine) recordDuplicate(acc *accumulator, p *domain.Paper, bibcode string, owner uuid.UUID) {
	reason := fmt.Sprintf("bibcode %s already belongs to paper %s", bibcode, owner)
	settled := acc.duplicate(p, reason)
	if e.deps.Metrics != nil {
		e.deps.Metrics.RecordPaperDuplicate()
	}
	e.reportProgress(settled, acc.total, displayName(p))
}

func (e *Engine) reportProgress(current, total int, label string) {
	if e.deps.Events == nil {
		return
	}
	e.deps.Events.SyncProgress(domain.ProgressEvent{
		Current: current,
		Total:   total,
		Label:   label,
	})
}

func displayName(p *domain.Paper) string {
	switch {
	case p.Title != "":
		return p.Title
	case p.Bibcode != "":
		return p.Bibcode
	case p.DOI != "":
		return p.DOI
	default:
		return p.ID.String()
	}
}

// lookupChain tracks the last remote failure seen while walking a lookup
// cascade. Not-found results fall through to the next step silently.
type lookupChain struct {
	lastErr error
}

func (lc *lookupChain) try(remote *domain.RemotePaper, err error) *domain.RemotePaper {
	if err == nil {
		return remote
	}
	if !errors.Is(err, domain.ErrNotFound) {
		lc.lastErr = err
	}
	return nil
}

// accumulator is the run's append-only results collector. Items inside one
// concurrency window settle concurrently, so every mutation is guarded.
type accumulator struct {
	total int

	mu      stdsync.Mutex
	out     domain.SyncOutcome
	pending []*domain.Paper
}

func newAccumulator(total int) *accumulator {
	return &accumulator{total: total, out: domain.SyncOutcome{Total: total}}
}

func (a *accumulator) updated(p *domain.Paper) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.out.Updated++
	a.pending = append(a.pending, p)
	return a.settledLocked()
}

func (a *accumulator) failed(p *domain.Paper, reason string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.out.Failed++
	a.out.Errors = append(a.out.Errors, domain.SyncError{PaperID: p.ID, Title: p.Title, Reason: reason})
	return a.settledLocked()
}

func (a *accumulator) skipped(p *domain.Paper) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.out.Skipped++
	return a.settledLocked()
}

func (a *accumulator) duplicate(p *domain.Paper, reason string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.out.Skipped++
	a.out.Errors = append(a.out.Errors, domain.SyncError{PaperID: p.ID, Title: p.Title, Reason: reason})
	return a.settledLocked()
}

func (a *accumulator) settledLocked() int {
	return a.out.Updated + a.out.Failed + a.out.Skipped
}

func (a *accumulator) queued() []*domain.Paper {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*domain.Paper, len(a.pending))
	copy(out, a.pending)
	return out
}

func (a *accumulator) result() *domain.SyncOutcome {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := a.out
	out.Errors = append([]domain.SyncError(nil), a.out.Errors...)
	return &out
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
