package models

import (
	"fmt"
	"strings"
)

// Difficulty selects which wave list and reward spec of a template apply
type Difficulty string

const (
	DifficultyEasy      Difficulty = "easy"
	DifficultyNormal    Difficulty = "normal"
	DifficultyHard      Difficulty = "hard"
	DifficultyNightmare Difficulty = "nightmare"
)

// Difficulties lists every known difficulty from easiest to hardest
var Difficulties = []Difficulty{
	DifficultyEasy,
	DifficultyNormal,
	DifficultyHard,
	DifficultyNightmare,
}

// IsValid returns true if d is one of the known difficulties
func (d Difficulty) IsValid() bool {
	for _, known := range Difficulties {
		if d == known {
			return true
		}
	}
	return false
}

// ParseDifficulty converts user input into a Difficulty.
// An empty string maps to normal.
func ParseDifficulty(s string) (Difficulty, error) {
	if s == "" {
		return DifficultyNormal, nil
	}
	d := Difficulty(strings.ToLower(strings.TrimSpace(s)))
	if !d.IsValid() {
		return "", fmt.Errorf("unknown difficulty %q", s)
	}
	return d, nil
}
