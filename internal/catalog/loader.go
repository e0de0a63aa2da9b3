// Package catalog loads dungeon templates and answers eligibility questions about them.
package catalog

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/terra-clan/dungeon-engine/internal/models"
)

// Loader manages loading and caching of dungeon templates
type Loader struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

// NewLoader creates a new template loader
func NewLoader() *Loader {
	return &Loader{
		templates: make(map[string]*Template),
	}
}

// LoadFromDir loads all YAML templates from a directory and its direct subdirectories.
// Invalid files are skipped with a warning.
func (l *Loader) LoadFromDir(dir string) error {
	slog.Info("loading dungeon templates from directory", "dir", dir)

	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("failed to read catalog dir: %w", err)
	}

	patterns := []string{"*.yaml", "*.yml"}
	var files []string

	for _, pattern := range patterns {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			continue
		}
		files = append(files, matches...)

		// Also check subdirectories
		subMatches, err := filepath.Glob(filepath.Join(dir, "*", pattern))
		if err != nil {
			continue
		}
		files = append(files, subMatches...)
	}
	sort.Strings(files)

	loaded := 0
	for _, file := range files {
		if err := l.LoadFromFile(file); err != nil {
			slog.Warn("failed to load dungeon template", "file", file, "error", err)
			continue
		}
		loaded++
	}

	slog.Info("dungeon templates loaded", "count", loaded, "total_files", len(files))
	return nil
}

// LoadFromFile loads a single template from a YAML file
func (l *Loader) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	tmpl, err := Parse(data)
	if err != nil {
		return err
	}

	if err := l.Add(tmpl); err != nil {
		return err
	}

	slog.Info("dungeon template loaded",
		"id", tmpl.ID,
		"min_level", tmpl.MinLevel,
		"difficulties", tmpl.Difficulties,
		"unlocked", tmpl.IsUnlocked(),
	)
	return nil
}

// Parse decodes a YAML template document
func Parse(data []byte) (*Template, error) {
	var tf templateFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if tf.ID == "" {
		return nil, fmt.Errorf("%w: id is required", ErrInvalidTemplate)
	}

	cooldown, err := parseDuration(tf.Cooldown)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: cooldown: %v", ErrInvalidTemplate, tf.ID, err)
	}
	timeLimit, err := parseDuration(tf.TimeLimit)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: time_limit: %v", ErrInvalidTemplate, tf.ID, err)
	}

	name := tf.Name
	if name == "" {
		name = tf.ID
	}

	tmpl := &Template{
		ID:          tf.ID,
		Name:        name,
		Description: tf.Description,
		MinLevel:    tf.MinLevel,
		EntryCost:   tf.EntryCost,
		DailyLimit:  tf.DailyLimit,
		Cooldown:    cooldown,
		TimeLimit:   timeLimit,
		Waves:       make(map[models.Difficulty][]models.WaveSpec, len(tf.Waves)),
		Rewards:     make(map[models.Difficulty]models.RewardSpec, len(tf.Rewards)),
		UnlockRule:  tf.Unlock,
		Locked:      tf.Locked,
	}

	for _, raw := range tf.Difficulties {
		d, err := models.ParseDifficulty(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidTemplate, tf.ID, err)
		}
		tmpl.Difficulties = append(tmpl.Difficulties, d)
	}
	// Default to normal only
	if len(tmpl.Difficulties) == 0 {
		tmpl.Difficulties = []models.Difficulty{models.DifficultyNormal}
	}

	for raw, waves := range tf.Waves {
		d, err := models.ParseDifficulty(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: waves: %v", ErrInvalidTemplate, tf.ID, err)
		}
		tmpl.Waves[d] = waves
	}
	for raw, spec := range tf.Rewards {
		d, err := models.ParseDifficulty(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: rewards: %v", ErrInvalidTemplate, tf.ID, err)
		}
		tmpl.Rewards[d] = spec
	}

	return tmpl, nil
}

// parseDuration accepts Go duration strings and bare seconds
func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "0" {
		return 0, nil
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	return time.ParseDuration(s + "s")
}

// Add validates and registers a template. Templates without an unlock rule
// start unlocked unless marked locked.
func (l *Loader) Add(tmpl *Template) error {
	if err := tmpl.Validate(); err != nil {
		return err
	}
	tmpl.unlocked = !tmpl.Locked && tmpl.UnlockRule == nil

	l.mu.Lock()
	defer l.mu.Unlock()
	l.templates[tmpl.ID] = tmpl
	return nil
}

// Get retrieves a template by id
func (l *Loader) Get(id string) *Template {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.templates[id]
}

// List returns all loaded templates ordered by level gate, then id
func (l *Loader) List() []*Template {
	l.mu.RLock()
	defer l.mu.RUnlock()

	result := make([]*Template, 0, len(l.templates))
	for _, tmpl := range l.templates {
		result = append(result, tmpl)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].MinLevel != result[j].MinLevel {
			return result[i].MinLevel < result[j].MinLevel
		}
		return result[i].ID < result[j].ID
	})
	return result
}

// Len returns the number of loaded templates
func (l *Loader) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.templates)
}

// --- YAML file structs ---

// templateFile represents the YAML structure of a dungeon template file
type templateFile struct {
	ID           string                       `yaml:"id"`
	Name         string                       `yaml:"name"`
	Description  string                       `yaml:"description"`
	MinLevel     int                          `yaml:"min_level"`
	EntryCost    int                          `yaml:"entry_cost"`
	DailyLimit   int                          `yaml:"daily_limit"`
	Cooldown     string                       `yaml:"cooldown"`
	TimeLimit    string                       `yaml:"time_limit"`
	Difficulties []string                     `yaml:"difficulties"`
	Waves        map[string][]models.WaveSpec `yaml:"waves"`
	Rewards      map[string]models.RewardSpec `yaml:"rewards"`
	Unlock       *models.UnlockRule           `yaml:"unlock"`
	Locked       bool                         `yaml:"locked"`
}
