package api

import (
	"time"

	"github.com/terra-clan/dungeon-engine/internal/catalog"
	"github.com/terra-clan/dungeon-engine/internal/models"
)

// templateView is the JSON shape of a catalog template
type templateView struct {
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

func newTemplateView(t *catalog.Template) templateView {
	return templateView{
		ID:               t.ID,
		Name:             t.Name,
		Description:      t.Description,
		MinLevel:         t.MinLevel,
		EntryCost:        t.EntryCost,
		DailyLimit:       t.DailyLimit,
		CooldownSeconds:  int(t.Cooldown / time.Second),
		TimeLimitSeconds: int(t.TimeLimit / time.Second),
		Difficulties:     t.Difficulties,
		Waves:            t.Waves,
		Rewards:          t.Rewards,
		Unlock:           t.UnlockRule,
		Unlocked:         t.IsUnlocked(),
	}
}

func newTemplateViews(templates []*catalog.Template) []templateView {
	views := make([]templateView, 0, len(templates))
	for _, t := range templates {
		views = append(views, newTemplateView(t))
	}
	return views
}

// copyCharacter detaches a character from engine state so it can be encoded off the loop
func copyCharacter(c *models.Character) models.Character {
	cp := *c
	cp.DungeonCounts = make(map[string]int, len(c.DungeonCounts))
	for k, v := range c.DungeonCounts {
		cp.DungeonCounts[k] = v
	}
	return cp
}
