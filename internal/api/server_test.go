package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terra-clan/dungeon-engine/internal/catalog"
	"github.com/terra-clan/dungeon-engine/internal/config"
	"github.com/terra-clan/dungeon-engine/internal/dungeon"
	"github.com/terra-clan/dungeon-engine/internal/events"
	"github.com/terra-clan/dungeon-engine/internal/gameloop"
	"github.com/terra-clan/dungeon-engine/internal/instance"
	"github.com/terra-clan/dungeon-engine/internal/models"
	"github.com/terra-clan/dungeon-engine/internal/reward"
	"github.com/terra-clan/dungeon-engine/internal/roster"
	"github.com/terra-clan/dungeon-engine/internal/storage"
)

const (
	adminKey  = "admin-key-0001"
	playerKey = "player-key-0002"
	viewerKey = "viewer-key-0003"
)

type testEnv struct {
	server *Server
	repo   *storage.MemoryRepository
	bus    *events.Bus
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	loader := catalog.NewLoader()
	require.NoError(t, loader.Add(&catalog.Template{
		ID:           "dark_mine",
		Name:         "Dark Mine",
		MinLevel:     5,
		EntryCost:    50,
		DailyLimit:   3,
		Cooldown:     30 * time.Minute,
		TimeLimit:    10 * time.Minute,
		Difficulties: []models.Difficulty{models.DifficultyNormal},
		Waves: map[models.Difficulty][]models.WaveSpec{
			models.DifficultyNormal: {
				{Enemies: []models.EnemyGroup{{EnemyType: "goblin", Count: 2}}},
				{Enemies: []models.EnemyGroup{{EnemyType: "goblin_foreman", Count: 1}}, IsBossWave: true},
			},
		},
		Rewards: map[models.Difficulty]models.RewardSpec{
			models.DifficultyNormal: {Exp: 300, Gold: 120, BonusExp: 200, BonusGold: 100},
		},
	}))
	require.NoError(t, loader.Add(&catalog.Template{
		ID:           "dragon_lair",
		MinLevel:     30,
		Difficulties: []models.Difficulty{models.DifficultyNormal},
		Waves: map[models.Difficulty][]models.WaveSpec{
			models.DifficultyNormal: {{Enemies: []models.EnemyGroup{{EnemyType: "dragon", Count: 1}}}},
		},
		UnlockRule: &models.UnlockRule{MinLevel: 30},
	}))

	bus := events.NewBus()
	engine := dungeon.New(loader,
		dungeon.WithHooks(events.Hooks(bus)),
		dungeon.WithResolver(reward.NewSeededResolver(1)),
		dungeon.WithSessionOptions(instance.WithWaveDelay(0)),
	)
	loop := gameloop.New(engine, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		bus.Close()
	})
	loop.Start(ctx)

	repo := storage.NewMemoryRepository()
	go events.NewRecorder(repo).Run(ctx, bus.Subscribe(256, events.TerminalOnly))

	clients := []*models.ApiClient{
		models.NewApiClient("ops", adminKey, models.RoleAdmin),
		models.NewApiClient("game", playerKey, models.RolePlayer),
		models.NewApiClient("dashboard", viewerKey, models.RoleViewer),
	}

	server := NewServer(config.ServerConfig{Host: "127.0.0.1", Port: 0}, engine, roster.New(), loop, repo, bus, clients)
	return &testEnv{server: server, repo: repo, bus: bus}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *apiError       `json:"error"`
}

func (e *testEnv) do(t *testing.T, method, path, key string, body interface{}) (int, envelope) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	rec := httptest.NewRecorder()
	e.server.Router().ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") && rec.Body.Len() > 0 {
		_ = json.Unmarshal(rec.Body.Bytes(), &env)
	}
	return rec.Code, env
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func (e *testEnv) registerCharacter(t *testing.T, id string, level, gold int) {
	t.Helper()
	status, _ := e.do(t, http.MethodPost, "/api/v1/characters", playerKey, models.CharacterRequest{
		ID: id, Name: "Hero " + id, Level: level, Gold: gold,
	})
	require.Equal(t, http.StatusCreated, status)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	status, _ := env.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, status)

	status, body := env.do(t, http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, body.Success)
}

func TestAuthentication(t *testing.T) {
	env := newTestEnv(t)

	status, _ := env.do(t, http.MethodGet, "/api/v1/templates", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = env.do(t, http.MethodGet, "/api/v1/templates", "wrong-key-9999", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = env.do(t, http.MethodGet, "/api/v1/templates", viewerKey, nil)
	assert.Equal(t, http.StatusOK, status)

	status, _ = env.do(t, http.MethodPost, "/api/v1/dungeons/enter", viewerKey, models.EnterRequest{TemplateID: "dark_mine", CharacterID: "c1"})
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = env.do(t, http.MethodPost, "/api/v1/templates/dragon_lair/unlock", playerKey, nil)
	assert.Equal(t, http.StatusForbidden, status)
}

func TestTemplates(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(t, http.MethodGet, "/api/v1/templates", viewerKey, nil)
	require.Equal(t, http.StatusOK, status)
	list := decode[struct {
		Templates []templateView `json:"templates"`
		Total     int            `json:"total"`
	}](t, body.Data)
	require.Equal(t, 2, list.Total)
	assert.Equal(t, "dark_mine", list.Templates[0].ID)
	assert.Equal(t, 1800, list.Templates[0].CooldownSeconds)
	assert.True(t, list.Templates[0].Unlocked)
	assert.False(t, list.Templates[1].Unlocked)

	status, body = env.do(t, http.MethodGet, "/api/v1/templates/nope", viewerKey, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "template_not_found", body.Error.Code)

	status, body = env.do(t, http.MethodPost, "/api/v1/templates/dragon_lair/unlock", adminKey, nil)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, decode[templateView](t, body.Data).Unlocked)
}

func TestEnterDungeonCharges(t *testing.T) {
	env := newTestEnv(t)
	env.registerCharacter(t, "c1", 10, 1000)

	status, body := env.do(t, http.MethodPost, "/api/v1/dungeons/enter", playerKey, models.EnterRequest{
		TemplateID: "dark_mine", CharacterID: "c1",
	})
	require.Equal(t, http.StatusCreated, status)

	resp := decode[sessionResponse](t, body.Data)
	assert.Equal(t, models.StateInProgress, resp.Session.State)
	assert.Equal(t, models.DifficultyNormal, resp.Session.Difficulty)
	assert.Equal(t, 1, resp.Session.CurrentWave)
	require.NotNil(t, resp.Character)
	assert.Equal(t, 950, resp.Character.Gold)
	assert.Equal(t, 1, resp.Character.DungeonCounts["dark_mine"])

	status, body = env.do(t, http.MethodGet, "/api/v1/dungeons?character_id=c1", viewerKey, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1, decode[struct {
		Total int `json:"total"`
	}](t, body.Data).Total)
}

func TestEnterDungeonErrors(t *testing.T) {
	env := newTestEnv(t)
	env.registerCharacter(t, "poor", 10, 10)
	env.registerCharacter(t, "low", 1, 1000)

	tests := []struct {
		name   string
		req    models.EnterRequest
		status int
		code   string
	}{
		{"missing template", models.EnterRequest{CharacterID: "poor"}, http.StatusBadRequest, "validation_error"},
		{"bad difficulty", models.EnterRequest{TemplateID: "dark_mine", CharacterID: "poor", Difficulty: "legendary"}, http.StatusBadRequest, "validation_error"},
		{"unknown character", models.EnterRequest{TemplateID: "dark_mine", CharacterID: "ghost"}, http.StatusNotFound, "character_not_found"},
		{"unknown template", models.EnterRequest{TemplateID: "nope", CharacterID: "poor"}, http.StatusNotFound, "template_not_found"},
		{"locked", models.EnterRequest{TemplateID: "dragon_lair", CharacterID: "poor"}, http.StatusConflict, "dungeon_locked"},
		{"level too low", models.EnterRequest{TemplateID: "dark_mine", CharacterID: "low"}, http.StatusUnprocessableEntity, "level_too_low"},
		{"insufficient gold", models.EnterRequest{TemplateID: "dark_mine", CharacterID: "poor"}, http.StatusUnprocessableEntity, "insufficient_gold"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := env.do(t, http.MethodPost, "/api/v1/dungeons/enter", playerKey, tt.req)
			assert.Equal(t, tt.status, status)
			require.NotNil(t, body.Error)
			assert.Equal(t, tt.code, body.Error.Code)
		})
	}

	status, body := env.do(t, http.MethodGet, "/api/v1/characters/poor", viewerKey, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 10, decode[models.Character](t, body.Data).Gold)
}

func TestDungeonRunToCompletion(t *testing.T) {
	env := newTestEnv(t)
	env.registerCharacter(t, "c1", 10, 1000)

	_, body := env.do(t, http.MethodPost, "/api/v1/dungeons/enter", playerKey, models.EnterRequest{
		TemplateID: "dark_mine", CharacterID: "c1", Difficulty: "normal",
	})
	id := decode[sessionResponse](t, body.Data).Session.ID
	base := "/api/v1/dungeons/" + id

	status, _ := env.do(t, http.MethodPost, base+"/damage", playerKey, models.DamageReport{Dealt: 120, Taken: 30})
	require.Equal(t, http.StatusOK, status)
	status, _ = env.do(t, http.MethodPost, base+"/items", playerKey, models.ItemReport{Count: 2})
	require.Equal(t, http.StatusOK, status)

	status, body = env.do(t, http.MethodPost, base+"/kills", playerKey, models.KillReport{Count: 2})
	require.Equal(t, http.StatusOK, status)
	progress := decode[struct {
		Accepted int                `json:"accepted"`
		Session  models.SessionView `json:"session"`
	}](t, body.Data)
	assert.Equal(t, 2, progress.Accepted)
	assert.Equal(t, float64(50), progress.Session.Progress)

	status, body = env.do(t, http.MethodPost, base+"/kills", playerKey, models.KillReport{Count: 5})
	require.Equal(t, http.StatusOK, status)
	done := decode[struct {
		Accepted  int                `json:"accepted"`
		Session   models.SessionView `json:"session"`
		Character *models.Character  `json:"character"`
	}](t, body.Data)
	assert.Equal(t, 1, done.Accepted)
	assert.Equal(t, models.StateCompleted, done.Session.State)
	require.NotNil(t, done.Session.Rewards)
	assert.True(t, done.Session.Rewards.FirstClear)
	assert.Equal(t, 500, done.Character.Exp)
	assert.Equal(t, 950+220, done.Character.Gold)
	assert.Equal(t, models.SessionStats{EnemiesKilled: 3, DamageDealt: 120, DamageTaken: 30, ItemsCollected: 2}, done.Session.Stats)

	status, _ = env.do(t, http.MethodGet, base, viewerKey, nil)
	assert.Equal(t, http.StatusNotFound, status)

	require.Eventually(t, func() bool {
		_, err := env.repo.GetRun(context.Background(), id)
		return err == nil
	}, time.Second, 5*time.Millisecond)

	status, body = env.do(t, http.MethodGet, "/api/v1/runs/"+id, viewerKey, nil)
	require.Equal(t, http.StatusOK, status)
	run := decode[models.RunRecord](t, body.Data)
	assert.Equal(t, models.StateCompleted, run.State)
	assert.Equal(t, 2, run.WavesCleared)
	assert.Equal(t, 500, run.Rewards.Exp)

	status, body = env.do(t, http.MethodGet, "/api/v1/runs?character_id=c1&state=completed", viewerKey, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1, decode[struct {
		Total int `json:"total"`
	}](t, body.Data).Total)

	require.Eventually(t, func() bool {
		keys, _ := env.repo.ListFirstClears(context.Background())
		return len(keys) == 1 && keys[0] == "dark_mine_normal"
	}, time.Second, 5*time.Millisecond)
}

func TestExitDungeon(t *testing.T) {
	env := newTestEnv(t)
	env.registerCharacter(t, "c1", 10, 100)

	_, body := env.do(t, http.MethodPost, "/api/v1/dungeons/enter", playerKey, models.EnterRequest{
		TemplateID: "dark_mine", CharacterID: "c1",
	})
	id := decode[sessionResponse](t, body.Data).Session.ID

	status, body := env.do(t, http.MethodPost, "/api/v1/dungeons/"+id+"/exit", playerKey, nil)
	require.Equal(t, http.StatusOK, status)
	resp := decode[sessionResponse](t, body.Data)
	assert.Equal(t, models.StateFailed, resp.Session.State)
	assert.Equal(t, models.ReasonManualExit, resp.Session.FailReason)
	assert.Equal(t, 50, resp.Character.Gold, "no refund")

	status, body = env.do(t, http.MethodPost, "/api/v1/dungeons/"+id+"/exit", playerKey, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "session_not_found", body.Error.Code)

	status, _ = env.do(t, http.MethodPost, "/api/v1/dungeons/"+id+"/kills", playerKey, models.KillReport{Count: -1})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestRegisterCharacterTwiceKeepsDailyCount(t *testing.T) {
	env := newTestEnv(t)
	env.registerCharacter(t, "hero", 10, 1000)

	for i := 0; i < 3; i++ {
		status, _ := env.do(t, http.MethodPost, "/api/v1/dungeons/enter", playerKey, models.EnterRequest{
			TemplateID: "dark_mine", CharacterID: "hero",
		})
		require.Equal(t, http.StatusCreated, status)
	}

	status, body := env.do(t, http.MethodPost, "/api/v1/characters", playerKey, models.CharacterRequest{
		ID: "hero", Name: "Hero", Level: 10, Gold: 1000,
	})
	assert.Equal(t, http.StatusConflict, status)
	require.NotNil(t, body.Error)
	assert.Equal(t, "character_exists", body.Error.Code)

	status, body = env.do(t, http.MethodPost, "/api/v1/dungeons/enter", playerKey, models.EnterRequest{
		TemplateID: "dark_mine", CharacterID: "hero",
	})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "daily_limit_reached", body.Error.Code)

	status, body = env.do(t, http.MethodGet, "/api/v1/characters/hero", viewerKey, nil)
	require.Equal(t, http.StatusOK, status)
	hero := decode[models.Character](t, body.Data)
	assert.Equal(t, 3, hero.DungeonCounts["dark_mine"])
	assert.Equal(t, 850, hero.Gold)
}

func TestCharacterUnlocks(t *testing.T) {
	env := newTestEnv(t)
	env.registerCharacter(t, "vet", 35, 0)

	status, body := env.do(t, http.MethodGet, "/api/v1/characters/vet/available", viewerKey, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1, decode[struct {
		Total int `json:"total"`
	}](t, body.Data).Total)

	status, body = env.do(t, http.MethodPost, "/api/v1/characters/vet/unlocks", playerKey, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []string{"dragon_lair"}, decode[struct {
		Unlocked []string `json:"unlocked"`
	}](t, body.Data).Unlocked)

	status, body = env.do(t, http.MethodGet, "/api/v1/characters/vet/available", viewerKey, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 2, decode[struct {
		Total int `json:"total"`
	}](t, body.Data).Total)

	status, _ = env.do(t, http.MethodPost, "/api/v1/characters", playerKey, models.CharacterRequest{Name: "", Level: 1})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestEventStream(t *testing.T) {
	env := newTestEnv(t)
	env.registerCharacter(t, "c1", 10, 1000)

	srv := httptest.NewServer(env.server.Router())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/events/ws?api_key=" + viewerKey
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var hello StreamMessage
	require.NoError(t, conn.ReadJSON(&hello))
	assert.Equal(t, "connected", hello.Type)

	status, _ := env.do(t, http.MethodPost, "/api/v1/dungeons/enter", playerKey, models.EnterRequest{
		TemplateID: "dark_mine", CharacterID: "c1",
	})
	require.Equal(t, http.StatusCreated, status)

	var first StreamMessage
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, "event", first.Type)
	require.NotNil(t, first.Event)
	assert.Equal(t, events.KindDungeonEntered, first.Event.Kind)

	var second StreamMessage
	require.NoError(t, conn.ReadJSON(&second))
	require.NotNil(t, second.Event)
	assert.Equal(t, events.KindWaveStarted, second.Event.Kind)
	assert.Equal(t, 1, second.Event.Wave)
}
