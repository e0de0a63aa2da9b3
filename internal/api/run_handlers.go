package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/terra-clan/dungeon-engine/internal/models"
	"github.com/terra-clan/dungeon-engine/internal/storage"
)

// Run history handlers

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	filters := models.RunFilters{
		CharacterID: r.URL.Query().Get("character_id"),
		TemplateID:  r.URL.Query().Get("template_id"),
		State:       models.SessionState(r.URL.Query().Get("state")),
		Limit:       storage.DefaultListLimit,
		Offset:      0,
	}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 {
			filters.Limit = limit
		}
	}

	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil && offset >= 0 {
			filters.Offset = offset
		}
	}

	runs, err := s.repo.ListRuns(r.Context(), filters)
	if err != nil {
		respondEngineError(w, err, "list runs")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  runs,
		"total": len(runs),
	})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	run, err := s.repo.GetRun(r.Context(), id)
	if err != nil {
		respondEngineError(w, err, "get run")
		return
	}

	respondJSON(w, http.StatusOK, run)
}
