package httpserver

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/openshelf/bibsync-service/internal/repository"
)

// listPapers handles GET /v1/papers with optional filters.
func (s *Server) listPapers(w http.ResponseWriter, r *http.Request) {
	filter, ok := parsePaperFilter(w, r)
	if !ok {
		return
	}

	papers, total, err := s.papers.List(r.Context(), filter)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := listPapersResponse{
		Papers:     make([]paperResponse, 0, len(papers)),
		TotalCount: total,
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	}
	for _, p := range papers {
		resp.Papers = append(resp.Papers, toPaperResponse(p))
	}
	writeJSON(w, http.StatusOK, resp)
}

// parsePaperFilter builds a repository filter from query parameters.
func parsePaperFilter(w http.ResponseWriter, r *http.Request) (repository.PaperFilter, bool) {
	var filter repository.PaperFilter
	q := r.URL.Query()

	if raw := q.Get("year"); raw != "" {
		year, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "year must be an integer")
			return filter, false
		}
		filter.Year = &year
	}
	if raw := q.Get("journal"); raw != "" {
		journal := raw
		filter.Journal = &journal
	}
	if raw := q.Get("has_bibcode"); raw != "" {
		has, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "has_bibcode must be a boolean")
			return filter, false
		}
		filter.HasBibcode = &has
	}
	if raw := strings.TrimSpace(q.Get("search")); raw != "" {
		search := raw
		filter.Search = &search
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return filter, false
		}
		filter.Limit = limit
	}
	if raw := q.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			writeError(w, http.StatusBadRequest, "offset must be a non-negative integer")
			return filter, false
		}
		filter.Offset = offset
	}

	if err := filter.Validate(); err != nil {
		writeDomainError(w, err)
		return filter, false
	}
	return filter, true
}

// getPaper handles GET /v1/papers/{paperID}, returning the paper with its
// source registrations.
func (s *Server) getPaper(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUID(w, chi.URLParam(r, "paperID"), "paper_id")
	if !ok {
		return
	}

	paper, err := s.papers.GetByID(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	sources, err := s.registry.PaperSources(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, paperDetailResponse{
		paperResponse: toPaperResponse(paper),
		Sources:       toSourceResponses(sources),
	})
}

// getReferences handles GET /v1/papers/{paperID}/references.
func (s *Server) getReferences(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUID(w, chi.URLParam(r, "paperID"), "paper_id")
	if !ok {
		return
	}

	if _, err := s.papers.GetByID(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}

	graph, err := s.graph.CachedReferences(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toGraphResponse(graph))
}

// getCitations handles GET /v1/papers/{paperID}/citations.
func (s *Server) getCitations(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUID(w, chi.URLParam(r, "paperID"), "paper_id")
	if !ok {
		return
	}

	if _, err := s.papers.GetByID(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}

	graph, err := s.graph.CachedCitations(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toGraphResponse(graph))
}

// parseUUID parses a UUID from a path parameter, writing a 400 on failure.
func parseUUID(w http.ResponseWriter, s, fieldName string) (uuid.UUID, bool) {
	id, err := uuid.Parse(s)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("%s must be a valid UUID", fieldName))
		return uuid.Nil, false
	}
	return id, true
}
