package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/terra-clan/dungeon-engine/internal/instance"
	"github.com/terra-clan/dungeon-engine/internal/models"
)

// sessionResponse pairs a session with the character it mutated
type sessionResponse struct {
	Session   models.SessionView `json:"session"`
	Character *models.Character  `json:"character,omitempty"`
}

func newSessionResponse(s *instance.Session) sessionResponse {
	resp := sessionResponse{Session: s.Snapshot()}
	if s.Character != nil {
		c := copyCharacter(s.Character)
		resp.Character = &c
	}
	return resp
}

// Dungeon session handlers

func (s *Server) handleEnterDungeon(w http.ResponseWriter, r *http.Request) {
	var req models.EnterRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if strings.TrimSpace(req.TemplateID) == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "template_id is required")
		return
	}
	if strings.TrimSpace(req.CharacterID) == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "character_id is required")
		return
	}
	difficulty, err := models.ParseDifficulty(req.Difficulty)
	if err != nil {
		respondError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	var resp sessionResponse
	err = s.loop.Do(r.Context(), func() error {
		c, err := s.roster.Get(req.CharacterID)
		if err != nil {
			return err
		}
		session, err := s.engine.Enter(req.TemplateID, c, difficulty)
		if err != nil {
			return err
		}
		resp = newSessionResponse(session)
		return nil
	})
	if err != nil {
		respondEngineError(w, err, "enter dungeon")
		return
	}

	respondJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	characterID := r.URL.Query().Get("character_id")

	views := []models.SessionView{}
	err := s.loop.Do(r.Context(), func() error {
		for _, session := range s.engine.Sessions() {
			if characterID != "" && (session.Character == nil || session.Character.ID != characterID) {
				continue
			}
			views = append(views, session.Snapshot())
		}
		return nil
	})
	if err != nil {
		respondEngineError(w, err, "list sessions")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"sessions": views,
		"total":    len(views),
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var view models.SessionView
	err := s.loop.Do(r.Context(), func() error {
		session, err := s.engine.Session(id)
		if err != nil {
			return err
		}
		view = session.Snapshot()
		return nil
	})
	if err != nil {
		respondEngineError(w, err, "get session")
		return
	}

	respondJSON(w, http.StatusOK, view)
}

func (s *Server) handleReportKills(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req models.KillReport
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Count == 0 {
		req.Count = 1
	}
	if req.Count < 0 {
		respondError(w, http.StatusBadRequest, "validation_error", "count must be positive")
		return
	}

	var resp sessionResponse
	accepted := 0
	err := s.loop.Do(r.Context(), func() error {
		session, n, err := s.engine.ReportKills(id, req.Count)
		if err != nil {
			return err
		}
		accepted = n
		resp = newSessionResponse(session)
		return nil
	})
	if err != nil {
		respondEngineError(w, err, "report kills")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"accepted":  accepted,
		"session":   resp.Session,
		"character": resp.Character,
	})
}

func (s *Server) handleReportDamage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req models.DamageReport
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Dealt < 0 || req.Taken < 0 {
		respondError(w, http.StatusBadRequest, "validation_error", "damage must not be negative")
		return
	}

	var view models.SessionView
	err := s.loop.Do(r.Context(), func() error {
		session, err := s.engine.ReportDamage(id, req.Dealt, req.Taken)
		if err != nil {
			return err
		}
		view = session.Snapshot()
		return nil
	})
	if err != nil {
		respondEngineError(w, err, "report damage")
		return
	}

	respondJSON(w, http.StatusOK, view)
}

func (s *Server) handleReportItems(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req models.ItemReport
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Count <= 0 {
		respondError(w, http.StatusBadRequest, "validation_error", "count must be positive")
		return
	}

	var view models.SessionView
	err := s.loop.Do(r.Context(), func() error {
		session, err := s.engine.ReportItems(id, req.Count)
		if err != nil {
			return err
		}
		view = session.Snapshot()
		return nil
	})
	if err != nil {
		respondEngineError(w, err, "report items")
		return
	}

	respondJSON(w, http.StatusOK, view)
}

func (s *Server) handleExitDungeon(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var resp sessionResponse
	err := s.loop.Do(r.Context(), func() error {
		session, err := s.engine.Session(id)
		if err != nil {
			return err
		}
		if err := s.engine.ExitDungeon(id); err != nil {
			return err
		}
		resp = newSessionResponse(session)
		return nil
	})
	if err != nil {
		respondEngineError(w, err, "exit dungeon")
		return
	}

	respondJSON(w, http.StatusOK, resp)
}
