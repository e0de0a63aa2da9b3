package catalog

import (
	"errors"
	"fmt"
	"time"

	"github.com/terra-clan/dungeon-engine/internal/instance"
	"github.com/terra-clan/dungeon-engine/internal/models"
)

// Entry eligibility errors, returned by CanEnter in check order
var (
	ErrLocked                = errors.New("dungeon is locked")
	ErrLevelTooLow           = errors.New("character level too low")
	ErrUnsupportedDifficulty = errors.New("difficulty not supported")
	ErrInsufficientGold      = errors.New("not enough gold")
	ErrDailyLimitReached     = errors.New("daily entry limit reached")
)

// ErrInvalidTemplate wraps template validation failures
var ErrInvalidTemplate = errors.New("invalid template")

// Template is the static configuration of one dungeon.
// Everything except the unlocked flag is fixed after load.
type Template struct {
	ID           string                                  `json:"id"`
	Name         string                                  `json:"name"`
	Description  string                                  `json:"description"`
	MinLevel     int                                     `json:"min_level"`
	EntryCost    int                                     `json:"entry_cost"`
	DailyLimit   int                                     `json:"daily_limit"`
	Cooldown     time.Duration                           `json:"cooldown"`
	TimeLimit    time.Duration                           `json:"time_limit"`
	Difficulties []models.Difficulty                     `json:"difficulties"`
	Waves        map[models.Difficulty][]models.WaveSpec `json:"waves"`
	Rewards      map[models.Difficulty]models.RewardSpec `json:"rewards"`
	UnlockRule   *models.UnlockRule                      `json:"unlock,omitempty"`

	// Locked keeps a template without an unlock rule closed until an admin unlock
	Locked bool `json:"-"`

	unlocked bool
}

// Supports reports whether the difficulty is offered by the template
func (t *Template) Supports(d models.Difficulty) bool {
	for _, supported := range t.Difficulties {
		if supported == d {
			return true
		}
	}
	return false
}

// IsUnlocked reports whether characters may enter the template
func (t *Template) IsUnlocked() bool {
	return t.unlocked
}

// Unlock permanently opens the template. Calling it again has no effect.
func (t *Template) Unlock() {
	t.unlocked = true
}

// CanEnter checks whether the character may start a run on the given difficulty.
// It returns the first failing check and never mutates anything.
func (t *Template) CanEnter(c *models.Character, d models.Difficulty) error {
	if !t.unlocked {
		return fmt.Errorf("%w: %s", ErrLocked, t.ID)
	}
	if c.Level < t.MinLevel {
		return fmt.Errorf("%w: requires level %d, have %d", ErrLevelTooLow, t.MinLevel, c.Level)
	}
	if !t.Supports(d) {
		return fmt.Errorf("%w: %s", ErrUnsupportedDifficulty, d)
	}
	if t.EntryCost > 0 && c.Gold < t.EntryCost {
		return fmt.Errorf("%w: requires %d, have %d", ErrInsufficientGold, t.EntryCost, c.Gold)
	}
	if t.DailyLimit > 0 && c.DungeonCount(t.ID) >= t.DailyLimit {
		return fmt.Errorf("%w: %d/%d", ErrDailyLimitReached, c.DungeonCount(t.ID), t.DailyLimit)
	}
	return nil
}

// CreateInstance builds an idle session for the difficulty's wave list.
// It does not validate; call CanEnter first.
func (t *Template) CreateInstance(c *models.Character, d models.Difficulty, opts ...instance.Option) *instance.Session {
	return instance.New(t.ID, d, c, t.Waves[d], t.TimeLimit, opts...)
}

// GetReward returns the reward spec for the difficulty, falling back to
// normal and then to an empty spec
func (t *Template) GetReward(d models.Difficulty) models.RewardSpec {
	if spec, ok := t.Rewards[d]; ok {
		return spec
	}
	if spec, ok := t.Rewards[models.DifficultyNormal]; ok {
		return spec
	}
	return models.RewardSpec{}
}

// UnlockDue reports whether the unlock rule is satisfied for a locked template
func (t *Template) UnlockDue(c *models.Character) bool {
	return !t.unlocked && t.UnlockRule != nil && c.Level >= t.UnlockRule.MinLevel
}

// Validate checks the template's structural invariants
func (t *Template) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidTemplate)
	}
	if len(t.Difficulties) == 0 {
		return fmt.Errorf("%w: %s: at least one difficulty is required", ErrInvalidTemplate, t.ID)
	}
	for _, d := range t.Difficulties {
		if !d.IsValid() {
			return fmt.Errorf("%w: %s: unknown difficulty %q", ErrInvalidTemplate, t.ID, d)
		}
	}
	if t.MinLevel < 0 || t.EntryCost < 0 || t.DailyLimit < 0 || t.Cooldown < 0 || t.TimeLimit < 0 {
		return fmt.Errorf("%w: %s: numeric fields must not be negative", ErrInvalidTemplate, t.ID)
	}

	for _, d := range t.Difficulties {
		if len(t.Waves[d]) == 0 {
			return fmt.Errorf("%w: %s: no waves configured for %q", ErrInvalidTemplate, t.ID, d)
		}
	}

	for d, waves := range t.Waves {
		if !t.Supports(d) {
			return fmt.Errorf("%w: %s: waves configured for unsupported difficulty %q", ErrInvalidTemplate, t.ID, d)
		}
		for i, w := range waves {
			if w.TotalEnemies() <= 0 {
				return fmt.Errorf("%w: %s: %s wave %d has no enemies", ErrInvalidTemplate, t.ID, d, i+1)
			}
			for _, g := range w.Enemies {
				if g.Count < 0 {
					return fmt.Errorf("%w: %s: %s wave %d has a negative enemy count", ErrInvalidTemplate, t.ID, d, i+1)
				}
			}
		}
	}

	for d, spec := range t.Rewards {
		if !t.Supports(d) {
			return fmt.Errorf("%w: %s: rewards configured for unsupported difficulty %q", ErrInvalidTemplate, t.ID, d)
		}
		for _, item := range spec.Items {
			if item.DropRate < 0 || item.DropRate > 1 {
				return fmt.Errorf("%w: %s: drop rate %v of %s outside [0,1]", ErrInvalidTemplate, t.ID, item.DropRate, item.ItemID)
			}
		}
	}

	if t.UnlockRule != nil && t.UnlockRule.MinLevel < 0 {
		return fmt.Errorf("%w: %s: unlock level must not be negative", ErrInvalidTemplate, t.ID)
	}

	return nil
}
