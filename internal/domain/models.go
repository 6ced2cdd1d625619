// Package domain provides domain models and business logic for the
// bibliographic sync service.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// DefaultSourcePriority is the priority assigned to a PaperSource when the
// registering source does not supply one. Lower values are preferred.
const DefaultSourcePriority = 50

// SourceCapabilities describes what a source can supply for a paper.
// Capabilities are declared by the registering source, never hardcoded in
// selection logic, so new sources plug in without code changes.
type SourceCapabilities struct {
	HasReferences bool `json:"has_references"`
	HasCitations  bool `json:"has_citations"`
	HasPDF        bool `json:"has_pdf"`
	HasBibtex     bool `json:"has_bibtex"`
}

// PaperSource links a canonical Paper to one external source record.
// Unique per (paper_id, source) and per (source, source_id): one external
// item maps to exactly one Paper.
type PaperSource struct {
	ID           uuid.UUID
	PaperID      uuid.UUID
	Source       string
	SourceID     string
	Metadata     map[string]interface{}
	Capabilities SourceCapabilities
	Priority     int
	IsPrimary    bool
	LastSynced   *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// EdgeDirection distinguishes outbound reference edges from inbound
// citation edges in the cache. These values must match the database enum
// edge_direction.
type EdgeDirection string

const (
	// EdgeDirectionReference is an outbound edge: the owning paper cites the target.
	EdgeDirectionReference EdgeDirection = "reference"
	// EdgeDirectionCitation is an inbound edge: the target cites the owning paper.
	EdgeDirectionCitation EdgeDirection = "citation"
)

// Valid reports whether d is a known edge direction.
func (d EdgeDirection) Valid() bool {
	return d == EdgeDirectionReference || d == EdgeDirectionCitation
}

// Edge is one cached row of a paper's reference or citation graph.
// All edges for a given owning paper carry the same CachedAt and
// SourcePlugin after a refresh; partial refreshes are disallowed.
type Edge struct {
	ID             uuid.UUID
	PaperID        uuid.UUID
	Direction      EdgeDirection
	TargetDOI      string
	TargetArxivID  string
	TargetBibcode  string
	TargetSourceID string
	TargetTitle    string
	TargetAuthors  []Author
	TargetYear     int
	SourcePlugin   string
	CachedAt       time.Time
	LinkedPaperID  *uuid.UUID
}

// HasTargetIdentifier reports whether the edge carries any identifier that
// could ever resolve to a local paper. An edge lacking all three reports
// permanently unlinked, which is correct rather than a defect.
func (e *Edge) HasTargetIdentifier() bool {
	return e.TargetDOI != "" || e.TargetArxivID != "" || e.TargetBibcode != ""
}

// SyncState is the reconciliation engine's explicit run-state token.
type SyncState string

const (
	SyncStateIdle            SyncState = "idle"
	SyncStateRunning         SyncState = "running"
	SyncStateCancelRequested SyncState = "cancel_requested"
)

// SyncError records one per-item failure or skip notice from a run.
// Messages are retained verbatim for display.
type SyncError struct {
	PaperID uuid.UUID `json:"paper_id"`
	Title   string    `json:"title,omitempty"`
	Reason  string    `json:"reason"`
}

// SyncOutcome is the transient aggregate result of one reconciliation run.
// It is reported to the caller and the event surface but never persisted.
type SyncOutcome struct {
	Total     int         `json:"total"`
	Updated   int         `json:"updated"`
	Failed    int         `json:"failed"`
	Skipped   int         `json:"skipped"`
	Errors    []SyncError `json:"errors,omitempty"`
	Cancelled bool        `json:"cancelled"`
}

// RemotePaper is canonical metadata fetched from a remote source, prior to
// merging into a local Paper. Sources adapt their wire schemas to this one
// shape so merge and dedup logic stay source-agnostic.
type RemotePaper struct {
	SourceID      string
	DOI           string
	ArxivID       string
	Bibcode       string
	Title         string
	Authors       []Author
	Year          int
	Journal       string
	Abstract      string
	CitationCount int
	CitationText  string
	Raw           map[string]interface{}
}
