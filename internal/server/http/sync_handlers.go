package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/openshelf/bibsync-service/internal/domain"
	"github.com/openshelf/bibsync-service/internal/repository"
)

const maxRequestBodySize = 1 << 20

// startSyncRequest is the JSON request body for starting a reconciliation
// run. With no paper_ids the whole library is reconciled.
type startSyncRequest struct {
	PaperIDs []string `json:"paper_ids,omitempty" validate:"omitempty,max=10000,dive,uuid"`
}

// startSync handles POST /v1/sync. The busy check is synchronous; the run
// itself proceeds in the background.
func (s *Server) startSync(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	var req startSyncRequest
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON request body")
			return
		}
		if err := s.validate.Struct(req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
			return
		}
	}

	papers, err := s.selectPapers(r.Context(), req.PaperIDs)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if len(papers) == 0 {
		writeError(w, http.StatusBadRequest, "no papers to sync")
		return
	}

	// The run outlives the request; it must not inherit the request context.
	if err := s.engine.Start(context.Background(), papers); err != nil {
		writeDomainError(w, err)
		return
	}

	s.logger.Info().Int("papers", len(papers)).Msg("reconciliation run started")
	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"status": "started",
		"papers": len(papers),
	})
}

// selectPapers loads either the requested subset or the whole library.
func (s *Server) selectPapers(ctx context.Context, ids []string) ([]*domain.Paper, error) {
	if len(ids) > 0 {
		papers := make([]*domain.Paper, 0, len(ids))
		for _, raw := range ids {
			id, err := uuid.Parse(raw)
			if err != nil {
				return nil, domain.NewValidationError("paper_ids", "must contain valid UUIDs")
			}
			paper, err := s.papers.GetByID(ctx, id)
			if err != nil {
				return nil, fmt.Errorf("loading paper %s: %w", id, err)
			}
			papers = append(papers, paper)
		}
		return papers, nil
	}

	var papers []*domain.Paper
	offset := 0
	for {
		filter := repository.PaperFilter{Limit: 1000, Offset: offset}
		page, total, err := s.papers.List(ctx, filter)
		if err != nil {
			return nil, fmt.Errorf("listing library: %w", err)
		}
		papers = append(papers, page...)
		offset += len(page)
		if len(page) == 0 || int64(offset) >= total {
			return papers, nil
		}
	}
}

// cancelSync handles POST /v1/sync/cancel.
func (s *Server) cancelSync(w http.ResponseWriter, r *http.Request) {
	if !s.engine.Cancel() {
		writeError(w, http.StatusConflict, "no sync run in progress")
		return
	}
	s.logger.Info().Msg("reconciliation cancellation requested")
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "cancel_requested"})
}

// syncStatus handles GET /v1/sync/status: the engine state plus the last
// finished outcome including its per-item errors and duplicate notices.
func (s *Server) syncStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, syncStatusResponse{
		State:       s.engine.State(),
		LastOutcome: s.engine.LastOutcome(),
	})
}
