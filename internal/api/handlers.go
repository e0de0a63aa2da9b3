package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/terra-clan/dungeon-engine/internal/catalog"
	"github.com/terra-clan/dungeon-engine/internal/dungeon"
	"github.com/terra-clan/dungeon-engine/internal/gameloop"
	"github.com/terra-clan/dungeon-engine/internal/roster"
	"github.com/terra-clan/dungeon-engine/internal/storage"
)

// Response helpers

type apiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *apiError   `json:"error,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := apiResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := apiResponse{
		Success: false,
		Error: &apiError{
			Code:    code,
			Message: message,
		},
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

// respondEngineError maps engine and storage errors to HTTP responses
func respondEngineError(w http.ResponseWriter, err error, action string) {
	switch {
	case errors.Is(err, dungeon.ErrTemplateNotFound):
		respondError(w, http.StatusNotFound, "template_not_found", err.Error())
	case errors.Is(err, dungeon.ErrSessionNotFound):
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
	case errors.Is(err, roster.ErrCharacterNotFound):
		respondError(w, http.StatusNotFound, "character_not_found", err.Error())
	case errors.Is(err, storage.ErrRunNotFound):
		respondError(w, http.StatusNotFound, "run_not_found", err.Error())
	case errors.Is(err, roster.ErrCharacterExists):
		respondError(w, http.StatusConflict, "character_exists", err.Error())
	case errors.Is(err, roster.ErrInvalidCharacter):
		respondError(w, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, catalog.ErrLocked):
		respondError(w, http.StatusConflict, "dungeon_locked", err.Error())
	case errors.Is(err, catalog.ErrDailyLimitReached):
		respondError(w, http.StatusConflict, "daily_limit_reached", err.Error())
	case errors.Is(err, catalog.ErrLevelTooLow):
		respondError(w, http.StatusUnprocessableEntity, "level_too_low", err.Error())
	case errors.Is(err, catalog.ErrUnsupportedDifficulty):
		respondError(w, http.StatusUnprocessableEntity, "unsupported_difficulty", err.Error())
	case errors.Is(err, catalog.ErrInsufficientGold):
		respondError(w, http.StatusUnprocessableEntity, "insufficient_gold", err.Error())
	case errors.Is(err, gameloop.ErrStopped):
		respondError(w, http.StatusServiceUnavailable, "unavailable", "engine is shutting down")
	default:
		slog.Error("request failed", "action", action, "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to "+action)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return false
	}
	return true
}

// Health handlers

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.repo.Ping(r.Context()); err != nil {
		slog.Warn("readiness check failed", "error", err)
		respondError(w, http.StatusServiceUnavailable, "not_ready", "service not ready")
		return
	}

	// The loop must still accept commands
	if err := s.loop.Do(r.Context(), func() error { return nil }); err != nil {
		respondError(w, http.StatusServiceUnavailable, "not_ready", "service not ready")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}
