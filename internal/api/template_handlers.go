package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/terra-clan/dungeon-engine/internal/dungeon"
)

// Template handlers

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	var views []templateView
	err := s.loop.Do(r.Context(), func() error {
		views = newTemplateViews(s.engine.GetAllTemplates())
		return nil
	})
	if err != nil {
		respondEngineError(w, err, "list templates")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"templates": views,
		"total":     len(views),
	})
}

func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var view templateView
	err := s.loop.Do(r.Context(), func() error {
		tmpl := s.engine.GetTemplate(id)
		if tmpl == nil {
			return dungeon.ErrTemplateNotFound
		}
		view = newTemplateView(tmpl)
		return nil
	})
	if err != nil {
		respondEngineError(w, err, "get template")
		return
	}

	respondJSON(w, http.StatusOK, view)
}

func (s *Server) handleUnlockTemplate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var view templateView
	err := s.loop.Do(r.Context(), func() error {
		if err := s.engine.UnlockDungeon(id); err != nil {
			return err
		}
		view = newTemplateView(s.engine.GetTemplate(id))
		return nil
	})
	if err != nil {
		respondEngineError(w, err, "unlock template")
		return
	}

	respondJSON(w, http.StatusOK, view)
}
