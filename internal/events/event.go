// Package events turns orchestrator hooks into a stream of JSON events and fans
// them out to the websocket stream, Redis and the run history recorder.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/terra-clan/dungeon-engine/internal/instance"
	"github.com/terra-clan/dungeon-engine/internal/models"
)

// Kind names an event type
type Kind string

const (
	KindDungeonEntered   Kind = "dungeon.entered"
	KindWaveStarted      Kind = "wave.started"
	KindWaveCompleted    Kind = "wave.completed"
	KindDungeonCompleted Kind = "dungeon.completed"
	KindDungeonFailed    Kind = "dungeon.failed"
	KindDungeonExited    Kind = "dungeon.exited"
)

// Event is one session notification
type Event struct {
	ID          string               `json:"id"`
	Kind        Kind                 `json:"kind"`
	SessionID   string               `json:"session_id"`
	TemplateID  string               `json:"template_id"`
	CharacterID string               `json:"character_id,omitempty"`
	Difficulty  models.Difficulty    `json:"difficulty"`
	State       models.SessionState  `json:"state"`
	Wave        int                  `json:"wave,omitempty"`
	TotalWaves  int                  `json:"total_waves"`
	Cleared     int                  `json:"waves_cleared"`
	BossWave    bool                 `json:"boss_wave,omitempty"`
	Reason      string               `json:"reason,omitempty"`
	Rewards     *models.RewardBundle `json:"rewards,omitempty"`
	FirstClear  bool                 `json:"first_clear,omitempty"`
	Stats       models.SessionStats  `json:"stats"`
	Progress    float64              `json:"progress"`
	StartedAt   time.Time            `json:"started_at"`
	EndedAt     *time.Time           `json:"ended_at,omitempty"`
	At          time.Time            `json:"at"`
}

// Terminal reports whether the event ends a run
func (e Event) Terminal() bool {
	return e.Kind == KindDungeonCompleted || e.Kind == KindDungeonFailed
}

// FromSession builds an event of the given kind from the session's current state
func FromSession(kind Kind, s *instance.Session) Event {
	e := Event{
		ID:         uuid.NewString(),
		Kind:       kind,
		SessionID:  s.ID,
		TemplateID: s.TemplateID,
		Difficulty: s.Difficulty,
		State:      s.State,
		TotalWaves: len(s.Waves),
		Cleared:    s.CurrentWaveIndex,
		Stats:      s.Stats,
		Progress:   s.Progress(),
		StartedAt:  s.StartTime,
		Reason:     s.FailReason,
		Rewards:    s.Rewards,
		At:         time.Now().UTC(),
	}
	if s.Character != nil {
		e.CharacterID = s.Character.ID
	}
	if !s.EndTime.IsZero() {
		end := s.EndTime
		e.EndedAt = &end
	}
	return e
}

// RunRecord converts a terminal event into a history row
func (e Event) RunRecord() *models.RunRecord {
	run := &models.RunRecord{
		ID:           e.SessionID,
		TemplateID:   e.TemplateID,
		Difficulty:   e.Difficulty,
		CharacterID:  e.CharacterID,
		State:        e.State,
		FailReason:   e.Reason,
		FirstClear:   e.FirstClear,
		Stats:        e.Stats,
		WavesCleared: e.Cleared,
		TotalWaves:   e.TotalWaves,
		StartedAt:    e.StartedAt,
		EndedAt:      e.At,
	}
	if e.EndedAt != nil {
		run.EndedAt = *e.EndedAt
	}
	if e.Rewards != nil {
		run.Rewards = *e.Rewards
	}
	return run
}
