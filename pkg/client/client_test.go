package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terra-clan/dungeon-engine/internal/models"
)

func writeEnvelope(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"success": status < 300, "data": data})
}

func TestEnter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/dungeons/enter", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req models.EnterRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "dark_mine", req.TemplateID)

		writeEnvelope(w, http.StatusCreated, map[string]interface{}{
			"session":   models.SessionView{ID: "s1", TemplateID: req.TemplateID, State: models.StateInProgress, CurrentWave: 1},
			"character": models.Character{ID: req.CharacterID, Gold: 950},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret")
	res, err := c.Enter(context.Background(), models.EnterRequest{TemplateID: "dark_mine", CharacterID: "c1"})
	require.NoError(t, err)
	assert.Equal(t, "s1", res.Session.ID)
	assert.Equal(t, models.StateInProgress, res.Session.State)
	require.NotNil(t, res.Character)
	assert.Equal(t, 950, res.Character.Gold)
}

func TestAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"success":false,"error":{"code":"insufficient_gold","message":"not enough gold"}}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "").Enter(context.Background(), models.EnterRequest{TemplateID: "dark_mine", CharacterID: "c1"})
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.Status)
	assert.Equal(t, "insufficient_gold", apiErr.Code)
}

func TestListRunsQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/runs", r.URL.Path)
		assert.Equal(t, "c1", r.URL.Query().Get("character_id"))
		assert.Equal(t, "completed", r.URL.Query().Get("state"))
		assert.Equal(t, "10", r.URL.Query().Get("limit"))
		assert.Empty(t, r.URL.Query().Get("offset"))

		writeEnvelope(w, http.StatusOK, map[string]interface{}{
			"runs":  []models.RunRecord{{ID: "r1", State: models.StateCompleted}},
			"total": 1,
		})
	}))
	defer srv.Close()

	runs, err := NewClient(srv.URL, "k").ListRuns(context.Background(), models.RunFilters{
		CharacterID: "c1",
		State:       models.StateCompleted,
		Limit:       10,
	})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "r1", runs[0].ID)
}

func TestReportKills(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/dungeons/s1/kills", r.URL.Path)

		var req models.KillReport
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 3, req.Count)

		writeEnvelope(w, http.StatusOK, map[string]interface{}{
			"accepted": 2,
			"session":  models.SessionView{ID: "s1", State: models.StateCompleted},
		})
	}))
	defer srv.Close()

	res, err := NewClient(srv.URL, "k").ReportKills(context.Background(), "s1", 3)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Accepted)
	assert.Equal(t, models.StateCompleted, res.Session.State)
}

func TestHealthFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	err := NewClient(srv.URL, "").Health(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 503")
}
