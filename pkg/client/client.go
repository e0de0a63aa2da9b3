package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/terra-clan/dungeon-engine/internal/models"
)

// Client is a Go SDK for the dungeon-engine API
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Option configures the client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the client timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a new dungeon-engine client
func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError is an error reported by the server
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (HTTP %d): %s - %s", e.Status, e.Code, e.Message)
}

// Template is a dungeon template as served by the API
type Template struct {
	ID               string                                  `json:"id"`
	Name             string                                  `json:"name"`
	Description      string                                  `json:"description,omitempty"`
	MinLevel         int                                     `json:"min_level"`
	EntryCost        int                                     `json:"entry_cost"`
	DailyLimit       int                                     `json:"daily_limit"`
	CooldownSeconds  int                                     `json:"cooldown_seconds"`
	TimeLimitSeconds int                                     `json:"time_limit_seconds"`
	Difficulties     []models.Difficulty                     `json:"difficulties"`
	Waves            map[models.Difficulty][]models.WaveSpec `json:"waves"`
	Rewards          map[models.Difficulty]models.RewardSpec `json:"rewards"`
	Unlock           *models.UnlockRule                      `json:"unlock,omitempty"`
	Unlocked         bool                                    `json:"unlocked"`
}

// SessionResult is returned by calls that change a session and its character
type SessionResult struct {
	Session   models.SessionView `json:"session"`
	Character *models.Character  `json:"character,omitempty"`
}

// KillResult reports how many kills the session accepted
type KillResult struct {
	Accepted  int                `json:"accepted"`
	Session   models.SessionView `json:"session"`
	Character *models.Character  `json:"character,omitempty"`
}

type envelope[T any] struct {
	Success bool      `json:"success"`
	Data    T         `json:"data"`
	Error   *APIError `json:"error"`
}

// ListTemplates retrieves the whole catalog
func (c *Client) ListTemplates(ctx context.Context) ([]Template, error) {
	data, err := call[struct {
		Templates []Template `json:"templates"`
	}](ctx, c, http.MethodGet, "/api/v1/templates", nil)
	if err != nil {
		return nil, err
	}
	return data.Templates, nil
}

// GetTemplate retrieves one template
func (c *Client) GetTemplate(ctx context.Context, id string) (*Template, error) {
	return call[*Template](ctx, c, http.MethodGet, "/api/v1/templates/"+url.PathEscape(id), nil)
}

// UnlockTemplate opens a template for every character
func (c *Client) UnlockTemplate(ctx context.Context, id string) (*Template, error) {
	return call[*Template](ctx, c, http.MethodPost, "/api/v1/templates/"+url.PathEscape(id)+"/unlock", nil)
}

// RegisterCharacter adds or replaces a character on the server
func (c *Client) RegisterCharacter(ctx context.Context, req models.CharacterRequest) (*models.Character, error) {
	return call[*models.Character](ctx, c, http.MethodPost, "/api/v1/characters", req)
}

// GetCharacter retrieves a character
func (c *Client) GetCharacter(ctx context.Context, id string) (*models.Character, error) {
	return call[*models.Character](ctx, c, http.MethodGet, "/api/v1/characters/"+url.PathEscape(id), nil)
}

// AvailableDungeons lists the templates a character can currently see
func (c *Client) AvailableDungeons(ctx context.Context, characterID string) ([]Template, error) {
	data, err := call[struct {
		Templates []Template `json:"templates"`
	}](ctx, c, http.MethodGet, "/api/v1/characters/"+url.PathEscape(characterID)+"/available", nil)
	if err != nil {
		return nil, err
	}
	return data.Templates, nil
}

// CheckUnlocks applies level-based unlock rules for a character and returns the opened template ids
func (c *Client) CheckUnlocks(ctx context.Context, characterID string) ([]string, error) {
	data, err := call[struct {
		Unlocked []string `json:"unlocked"`
	}](ctx, c, http.MethodPost, "/api/v1/characters/"+url.PathEscape(characterID)+"/unlocks", nil)
	if err != nil {
		return nil, err
	}
	return data.Unlocked, nil
}

// Enter starts a dungeon run
func (c *Client) Enter(ctx context.Context, req models.EnterRequest) (*SessionResult, error) {
	return call[*SessionResult](ctx, c, http.MethodPost, "/api/v1/dungeons/enter", req)
}

// GetSession retrieves a live session
func (c *Client) GetSession(ctx context.Context, id string) (*models.SessionView, error) {
	return call[*models.SessionView](ctx, c, http.MethodGet, "/api/v1/dungeons/"+url.PathEscape(id), nil)
}

// ListSessions lists live sessions, optionally for one character
func (c *Client) ListSessions(ctx context.Context, characterID string) ([]models.SessionView, error) {
	path := "/api/v1/dungeons"
	if characterID != "" {
		path += "?character_id=" + url.QueryEscape(characterID)
	}
	data, err := call[struct {
		Sessions []models.SessionView `json:"sessions"`
	}](ctx, c, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	return data.Sessions, nil
}

// ReportKills reports count enemy kills in the active wave
func (c *Client) ReportKills(ctx context.Context, sessionID string, count int) (*KillResult, error) {
	return call[*KillResult](ctx, c, http.MethodPost, "/api/v1/dungeons/"+url.PathEscape(sessionID)+"/kills", models.KillReport{Count: count})
}

// ReportDamage adds damage dealt and taken to the session stats
func (c *Client) ReportDamage(ctx context.Context, sessionID string, dealt, taken int) (*models.SessionView, error) {
	return call[*models.SessionView](ctx, c, http.MethodPost, "/api/v1/dungeons/"+url.PathEscape(sessionID)+"/damage", models.DamageReport{Dealt: dealt, Taken: taken})
}

// ReportItems adds collected items to the session stats
func (c *Client) ReportItems(ctx context.Context, sessionID string, count int) (*models.SessionView, error) {
	return call[*models.SessionView](ctx, c, http.MethodPost, "/api/v1/dungeons/"+url.PathEscape(sessionID)+"/items", models.ItemReport{Count: count})
}

// Exit abandons a run. The entry cost is not refunded.
func (c *Client) Exit(ctx context.Context, sessionID string) (*SessionResult, error) {
	return call[*SessionResult](ctx, c, http.MethodPost, "/api/v1/dungeons/"+url.PathEscape(sessionID)+"/exit", nil)
}

// ListRuns retrieves finished runs
func (c *Client) ListRuns(ctx context.Context, filters models.RunFilters) ([]*models.RunRecord, error) {
	q := url.Values{}
	if filters.CharacterID != "" {
		q.Set("character_id", filters.CharacterID)
	}
	if filters.TemplateID != "" {
		q.Set("template_id", filters.TemplateID)
	}
	if filters.State != "" {
		q.Set("state", string(filters.State))
	}
	if filters.Limit > 0 {
		q.Set("limit", strconv.Itoa(filters.Limit))
	}
	if filters.Offset > 0 {
		q.Set("offset", strconv.Itoa(filters.Offset))
	}

	path := "/api/v1/runs"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	data, err := call[struct {
		Runs []*models.RunRecord `json:"runs"`
	}](ctx, c, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	return data.Runs, nil
}

// GetRun retrieves one finished run
func (c *Client) GetRun(ctx context.Context, id string) (*models.RunRecord, error) {
	return call[*models.RunRecord](ctx, c, http.MethodGet, "/api/v1/runs/"+url.PathEscape(id), nil)
}

// Health checks if the service is healthy
func (c *Client) Health(ctx context.Context) error {
	_, err := c.doRequest(ctx, http.MethodGet, "/health", nil)
	return err
}

// call performs a request and unwraps the response envelope
func call[T any](ctx context.Context, c *Client, method, path string, payload interface{}) (T, error) {
	var zero T

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return zero, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	resp, err := c.doRequest(ctx, method, path, body)
	if err != nil {
		return zero, err
	}

	var result envelope[T]
	if err := json.Unmarshal(resp, &result); err != nil {
		return zero, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return result.Data, nil
}

// doRequest performs an HTTP request
func (c *Client) doRequest(ctx context.Context, method, path string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var result envelope[json.RawMessage]
		if err := json.Unmarshal(respBody, &result); err == nil && result.Error != nil {
			result.Error.Status = resp.StatusCode
			return nil, result.Error
		}
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}
