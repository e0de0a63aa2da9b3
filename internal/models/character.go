package models

// Character is the externally owned player record the engine reads and mutates.
// DungeonCounts holds per-template entries for the current reset period.
type Character struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Level         int            `json:"level"`
	Gold          int            `json:"gold"`
	Exp           int            `json:"exp"`
	DungeonCounts map[string]int `json:"dungeon_counts"`
}

// NewCharacter creates a character with an empty counter map
func NewCharacter(id, name string, level, gold int) *Character {
	return &Character{
		ID:            id,
		Name:          name,
		Level:         level,
		Gold:          gold,
		DungeonCounts: make(map[string]int),
	}
}

// DungeonCount returns how many times the template was entered this period
func (c *Character) DungeonCount(templateID string) int {
	if c.DungeonCounts == nil {
		return 0
	}
	return c.DungeonCounts[templateID]
}

// IncrementDungeonCount records one more entry into the template
func (c *Character) IncrementDungeonCount(templateID string) {
	if c.DungeonCounts == nil {
		c.DungeonCounts = make(map[string]int)
	}
	c.DungeonCounts[templateID]++
}

// ResetDungeonCounts clears the per-period counters
func (c *Character) ResetDungeonCounts() {
	c.DungeonCounts = make(map[string]int)
}

// CharacterRequest registers a character with the host
type CharacterRequest struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Level int    `json:"level"`
	Gold  int    `json:"gold"`
	Exp   int    `json:"exp"`
}
