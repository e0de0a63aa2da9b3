package models

import "time"

// SessionState represents the lifecycle state of a dungeon session
type SessionState string

const (
	StateInProgress SessionState = "in_progress"
	StateCompleted  SessionState = "completed"
	StateFailed     SessionState = "failed"
)

// IsTerminal returns true if the state can no longer change
func (s SessionState) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Failure reasons reported with StateFailed
const (
	ReasonTimeExpired = "time_expired"
	ReasonManualExit  = "manual_exit"
)

// EnemyGroup is one entry of a wave roster
type EnemyGroup struct {
	EnemyType string `yaml:"type" json:"enemy_type"`
	Count     int    `yaml:"count" json:"count"`
	Level     int    `yaml:"level" json:"level"`
}

// WaveSpec describes one wave of a template
type WaveSpec struct {
	Enemies    []EnemyGroup `yaml:"enemies" json:"enemies"`
	IsBossWave bool         `yaml:"boss" json:"is_boss_wave"`
}

// TotalEnemies returns the number of kills required to clear the wave
func (w WaveSpec) TotalEnemies() int {
	total := 0
	for _, g := range w.Enemies {
		total += g.Count
	}
	return total
}

// ItemDrop is a probabilistic loot entry
type ItemDrop struct {
	ItemID   string  `yaml:"item_id" json:"item_id"`
	Quantity int     `yaml:"quantity" json:"quantity"`
	DropRate float64 `yaml:"drop_rate" json:"drop_rate"`
}

// ItemGrant is an item that was actually awarded
type ItemGrant struct {
	ItemID   string `yaml:"item_id" json:"item_id"`
	Quantity int    `yaml:"quantity" json:"quantity"`
}

// RewardSpec describes what a clear is worth. Bonus fields only apply on first clear.
type RewardSpec struct {
	Exp        int         `yaml:"exp" json:"exp"`
	Gold       int         `yaml:"gold" json:"gold"`
	Items      []ItemDrop  `yaml:"items" json:"items,omitempty"`
	BonusExp   int         `yaml:"bonus_exp" json:"bonus_exp"`
	BonusGold  int         `yaml:"bonus_gold" json:"bonus_gold"`
	BonusItems []ItemGrant `yaml:"bonus_items" json:"bonus_items,omitempty"`
}

// RewardBundle is a resolved reward
type RewardBundle struct {
	Exp        int         `json:"exp"`
	Gold       int         `json:"gold"`
	Items      []ItemGrant `json:"items"`
	FirstClear bool        `json:"first_clear"`
}

// UnlockRule gates a locked template behind a character level
type UnlockRule struct {
	MinLevel int `yaml:"min_level" json:"min_level"`
}

// SessionStats accumulates combat numbers reported during a session
type SessionStats struct {
	EnemiesKilled  int `json:"enemies_killed"`
	DamageTaken    int `json:"damage_taken"`
	DamageDealt    int `json:"damage_dealt"`
	ItemsCollected int `json:"items_collected"`
}

// WaveView is the read-only projection of a runtime wave
type WaveView struct {
	Number           int          `json:"number"`
	Enemies          []EnemyGroup `json:"enemies"`
	IsBossWave       bool         `json:"is_boss_wave"`
	RemainingEnemies int          `json:"remaining_enemies"`
	IsCompleted      bool         `json:"is_completed"`
}

// SessionView is the read-only projection of a session returned by the API
type SessionView struct {
	ID               string        `json:"id"`
	TemplateID       string        `json:"template_id"`
	Difficulty       Difficulty    `json:"difficulty"`
	CharacterID      string        `json:"character_id"`
	State            SessionState  `json:"state"`
	FailReason       string        `json:"fail_reason,omitempty"`
	CurrentWave      int           `json:"current_wave"`
	TotalWaves       int           `json:"total_waves"`
	Progress         float64       `json:"progress"`
	Waves            []WaveView    `json:"waves"`
	Stats            SessionStats  `json:"stats"`
	StartedAt        time.Time     `json:"started_at"`
	EndedAt          *time.Time    `json:"ended_at,omitempty"`
	TimeLimitSeconds int           `json:"time_limit_seconds"`
	RemainingSeconds float64       `json:"remaining_seconds"`
	Rewards          *RewardBundle `json:"rewards,omitempty"`
}
