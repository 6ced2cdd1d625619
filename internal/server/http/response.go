package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/openshelf/bibsync-service/internal/citegraph"
	"github.com/openshelf/bibsync-service/internal/domain"
)

// Paper and graph response types for JSON serialization.

type authorResponse struct {
	Name        string `json:"name"`
	Affiliation string `json:"affiliation,omitempty"`
}

type paperResponse struct {
	ID            string           `json:"id"`
	DOI           string           `json:"doi,omitempty"`
	ArxivID       string           `json:"arxiv_id,omitempty"`
	Bibcode       string           `json:"bibcode,omitempty"`
	Title         string           `json:"title"`
	Authors       []authorResponse `json:"authors,omitempty"`
	Year          int              `json:"year,omitempty"`
	Journal       string           `json:"journal,omitempty"`
	Abstract      string           `json:"abstract,omitempty"`
	CitationCount int              `json:"citation_count"`
	CitationText  string           `json:"citation_text,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

type sourceResponse struct {
	Source       string                    `json:"source"`
	SourceID     string                    `json:"source_id"`
	Priority     int                       `json:"priority"`
	IsPrimary    bool                      `json:"is_primary"`
	Capabilities domain.SourceCapabilities `json:"capabilities"`
	LastSynced   *time.Time                `json:"last_synced,omitempty"`
}

type paperDetailResponse struct {
	paperResponse
	Sources []sourceResponse `json:"sources"`
}

type listPapersResponse struct {
	Papers     []paperResponse `json:"papers"`
	TotalCount int64           `json:"total_count"`
	Limit      int             `json:"limit"`
	Offset     int             `json:"offset"`
}

type edgeResponse struct {
	TargetDOI     string           `json:"target_doi,omitempty"`
	TargetArxivID string           `json:"target_arxiv_id,omitempty"`
	TargetBibcode string           `json:"target_bibcode,omitempty"`
	TargetTitle   string           `json:"target_title,omitempty"`
	TargetAuthors []authorResponse `json:"target_authors,omitempty"`
	TargetYear    int              `json:"target_year,omitempty"`
	LinkedPaperID string           `json:"linked_paper_id,omitempty"`
}

type graphResponse struct {
	Edges        []edgeResponse `json:"edges"`
	SourcePlugin string         `json:"source_plugin,omitempty"`
	CachedAt     *time.Time     `json:"cached_at,omitempty"`
	IsStale      bool           `json:"is_stale"`
}

type syncStatusResponse struct {
	State       domain.SyncState    `json:"state"`
	LastOutcome *domain.SyncOutcome `json:"last_outcome,omitempty"`
}

func toAuthorResponses(authors []domain.Author) []authorResponse {
	if len(authors) == 0 {
		return nil
	}
	out := make([]authorResponse, len(authors))
	for i, a := range authors {
		out[i] = authorResponse{Name: a.Name, Affiliation: a.Affiliation}
	}
	return out
}

func toPaperResponse(p *domain.Paper) paperResponse {
	return paperResponse{
		ID:            p.ID.String(),
		DOI:           p.DOI,
		ArxivID:       p.ArxivID,
		Bibcode:       p.Bibcode,
		Title:         p.Title,
		Authors:       toAuthorResponses(p.Authors),
		Year:          p.Year,
		Journal:       p.Journal,
		Abstract:      p.Abstract,
		CitationCount: p.CitationCount,
		CitationText:  p.CitationText,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

func toSourceResponses(sources []*domain.PaperSource) []sourceResponse {
	out := make([]sourceResponse, 0, len(sources))
	for _, src := range sources {
		out = append(out, sourceResponse{
			Source:       src.Source,
			SourceID:     src.SourceID,
			Priority:     src.Priority,
			IsPrimary:    src.IsPrimary,
			Capabilities: src.Capabilities,
			LastSynced:   src.LastSynced,
		})
	}
	return out
}

func toGraphResponse(graph *citegraph.CachedGraph) graphResponse {
	resp := graphResponse{
		Edges:        make([]edgeResponse, 0, len(graph.Edges)),
		SourcePlugin: graph.SourcePlugin,
		IsStale:      graph.IsStale,
	}
	if !graph.CachedAt.IsZero() {
		at := graph.CachedAt
		resp.CachedAt = &at
	}
	for _, edge := range graph.Edges {
		er := edgeResponse{
			TargetDOI:     edge.TargetDOI,
			TargetArxivID: edge.TargetArxivID,
			TargetBibcode: edge.TargetBibcode,
			TargetTitle:   edge.TargetTitle,
			TargetAuthors: toAuthorResponses(edge.TargetAuthors),
			TargetYear:    edge.TargetYear,
		}
		if edge.LinkedPaperID != nil {
			er.LinkedPaperID = edge.LinkedPaperID.String()
		}
		resp.Edges = append(resp.Edges, er)
	}
	return resp
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Best-effort; headers already sent.
		_ = err
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{
		"error": message,
	})
}

// writeDomainError maps domain errors to appropriate HTTP status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, domain.ErrSyncBusy):
		writeError(w, http.StatusConflict, "a sync run is already in progress")
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "resource not found")
	case errors.Is(err, domain.ErrInvalidInput):
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			writeError(w, http.StatusBadRequest, ve.Error())
		} else {
			writeError(w, http.StatusBadRequest, "invalid input")
		}
	case errors.Is(err, domain.ErrDuplicate):
		writeError(w, http.StatusConflict, "identifier already belongs to another paper")
	case errors.Is(err, domain.ErrAlreadyExists):
		writeError(w, http.StatusConflict, "resource already exists")
	case errors.Is(err, domain.ErrRemoteFailure):
		writeError(w, http.StatusBadGateway, "remote source failure")
	case errors.Is(err, domain.ErrCancelled):
		writeError(w, http.StatusConflict, "operation cancelled")
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
