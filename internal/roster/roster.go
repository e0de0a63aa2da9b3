// Package roster keeps the characters known to a host in memory
package roster

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/terra-clan/dungeon-engine/internal/models"
)

// Common errors
var (
	ErrCharacterNotFound = errors.New("character not found")
	ErrInvalidCharacter  = errors.New("invalid character")
	ErrCharacterExists   = errors.New("character already registered")
)

// Roster is an in-memory character registry
type Roster struct {
	mu         sync.RWMutex
	characters map[string]*models.Character
}

// New creates an empty roster
func New() *Roster {
	return &Roster{
		characters: make(map[string]*models.Character),
	}
}

// Register adds a new character. An empty id gets a generated one.
// Registered characters cannot be replaced; their counters and live sessions
// depend on the record staying the same.
func (r *Roster) Register(req models.CharacterRequest) (*models.Character, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidCharacter)
	}
	if req.Level < 1 {
		return nil, fmt.Errorf("%w: level must be at least 1", ErrInvalidCharacter)
	}
	if req.Gold < 0 || req.Exp < 0 {
		return nil, fmt.Errorf("%w: gold and exp must not be negative", ErrInvalidCharacter)
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	c := models.NewCharacter(req.ID, req.Name, req.Level, req.Gold)
	c.Exp = req.Exp

	r.mu.Lock()
	if _, exists := r.characters[c.ID]; exists {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrCharacterExists, c.ID)
	}
	r.characters[c.ID] = c
	r.mu.Unlock()

	slog.Info("character registered", "character_id", c.ID, "level", c.Level)
	return c, nil
}

// Get returns a registered character
func (r *Roster) Get(id string) (*models.Character, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.characters[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCharacterNotFound, id)
	}
	return c, nil
}

// List returns all characters ordered by id
func (r *Roster) List() []*models.Character {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*models.Character, 0, len(r.characters))
	for _, c := range r.characters {
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// ResetDailyCounts clears the entry counters of every character and returns how many were reset
func (r *Roster) ResetDailyCounts() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range r.characters {
		c.ResetDungeonCounts()
	}
	slog.Info("daily dungeon counts reset", "characters", len(r.characters))
	return len(r.characters)
}
