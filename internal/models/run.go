package models

import (
	"time"
)

// RunRecord is the persisted outcome of a finished session
type RunRecord struct {
	ID           string       `json:"id"`
	TemplateID   string       `json:"template_id"`
	Difficulty   Difficulty   `json:"difficulty"`
	CharacterID  string       `json:"character_id"`
	State        SessionState `json:"state"`
	FailReason   string       `json:"fail_reason,omitempty"`
	FirstClear   bool         `json:"first_clear"`
	Rewards      RewardBundle `json:"rewards"`
	Stats        SessionStats `json:"stats"`
	WavesCleared int          `json:"waves_cleared"`
	TotalWaves   int          `json:"total_waves"`
	StartedAt    time.Time    `json:"started_at"`
	EndedAt      time.Time    `json:"ended_at"`
}

// Duration returns how long the run lasted
func (r *RunRecord) Duration() time.Duration {
	if r.EndedAt.Before(r.StartedAt) {
		return 0
	}
	return r.EndedAt.Sub(r.StartedAt)
}

// CompletionKey identifies a template+difficulty pair in the first-clear ledger
func CompletionKey(templateID string, difficulty Difficulty) string {
	return templateID + "_" + string(difficulty)
}

// RunFilters defines filters for listing run history
type RunFilters struct {
	CharacterID string
	TemplateID  string
	State       SessionState
	Limit       int
	Offset      int
}

// EnterRequest represents a request to enter a dungeon
type EnterRequest struct {
	TemplateID  string `json:"template_id"`
	CharacterID string `json:"character_id"`
	Difficulty  string `json:"difficulty"`
}

// KillReport reports defeated enemies for the active wave
type KillReport struct {
	Count int `json:"count"`
}

// DamageReport reports combat damage totals
type DamageReport struct {
	Dealt int `json:"dealt"`
	Taken int `json:"taken"`
}

// ItemReport reports picked-up items
type ItemReport struct {
	Count int `json:"count"`
}
