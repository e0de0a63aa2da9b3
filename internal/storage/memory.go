package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/terra-clan/dungeon-engine/internal/models"
)

// MemoryRepository keeps run history in process memory
type MemoryRepository struct {
	mu     sync.RWMutex
	runs   map[string]*models.RunRecord
	clears map[string]time.Time
}

// NewMemoryRepository creates an empty in-memory repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		runs:   make(map[string]*models.RunRecord),
		clears: make(map[string]time.Time),
	}
}

// RecordRun stores a copy of the run
func (r *MemoryRepository) RecordRun(ctx context.Context, run *models.RunRecord) error {
	if run.ID == "" {
		return fmt.Errorf("failed to record run: id is required")
	}

	cp := *run
	cp.Rewards.Items = append([]models.ItemGrant{}, run.Rewards.Items...)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[run.ID] = &cp
	return nil
}

// GetRun retrieves a run by id
func (r *MemoryRepository) GetRun(ctx context.Context, id string) (*models.RunRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	run, ok := r.runs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	cp := *run
	return &cp, nil
}

// ListRuns returns runs newest first
func (r *MemoryRepository) ListRuns(ctx context.Context, filters models.RunFilters) ([]*models.RunRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*models.RunRecord
	for _, run := range r.runs {
		if filters.CharacterID != "" && run.CharacterID != filters.CharacterID {
			continue
		}
		if filters.TemplateID != "" && run.TemplateID != filters.TemplateID {
			continue
		}
		if filters.State != "" && run.State != filters.State {
			continue
		}
		cp := *run
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].StartedAt.Equal(result[j].StartedAt) {
			return result[i].StartedAt.After(result[j].StartedAt)
		}
		return result[i].ID < result[j].ID
	})

	if filters.Offset > 0 {
		if filters.Offset >= len(result) {
			return []*models.RunRecord{}, nil
		}
		result = result[filters.Offset:]
	}
	if limit := normalizeLimit(filters.Limit); len(result) > limit {
		result = result[:limit]
	}
	if result == nil {
		result = []*models.RunRecord{}
	}
	return result, nil
}

// MarkFirstClear records the key once; later calls keep the first timestamp
func (r *MemoryRepository) MarkFirstClear(ctx context.Context, key, sessionID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.clears[key]; !ok {
		r.clears[key] = at
	}
	return nil
}

// ListFirstClears returns every recorded completion key, sorted
func (r *MemoryRepository) ListFirstClears(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, 0, len(r.clears))
	for k := range r.clears {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Ping always succeeds
func (r *MemoryRepository) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op
func (r *MemoryRepository) Close() error {
	return nil
}
