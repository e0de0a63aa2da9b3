package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/terra-clan/dungeon-engine/internal/models"
)

// Character handlers

func (s *Server) handleRegisterCharacter(w http.ResponseWriter, r *http.Request) {
	var req models.CharacterRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var view models.Character
	err := s.loop.Do(r.Context(), func() error {
		c, err := s.roster.Register(req)
		if err != nil {
			return err
		}
		view = copyCharacter(c)
		return nil
	})
	if err != nil {
		respondEngineError(w, err, "register character")
		return
	}

	respondJSON(w, http.StatusCreated, view)
}

func (s *Server) handleGetCharacter(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var view models.Character
	err := s.loop.Do(r.Context(), func() error {
		c, err := s.roster.Get(id)
		if err != nil {
			return err
		}
		view = copyCharacter(c)
		return nil
	})
	if err != nil {
		respondEngineError(w, err, "get character")
		return
	}

	respondJSON(w, http.StatusOK, view)
}

func (s *Server) handleAvailableDungeons(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var views []templateView
	err := s.loop.Do(r.Context(), func() error {
		c, err := s.roster.Get(id)
		if err != nil {
			return err
		}
		views = newTemplateViews(s.engine.GetAvailableDungeons(c))
		return nil
	})
	if err != nil {
		respondEngineError(w, err, "list available dungeons")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"templates": views,
		"total":     len(views),
	})
}

func (s *Server) handleCheckUnlocks(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	unlocked := []string{}
	err := s.loop.Do(r.Context(), func() error {
		c, err := s.roster.Get(id)
		if err != nil {
			return err
		}
		unlocked = append(unlocked, s.engine.CheckAndUnlockDungeons(c)...)
		return nil
	})
	if err != nil {
		respondEngineError(w, err, "check unlocks")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"unlocked": unlocked,
	})
}
