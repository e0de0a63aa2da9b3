package storage

import (
	"context"
	"errors"
	"time"

	"github.com/terra-clan/dungeon-engine/internal/models"
)

// ErrRunNotFound is returned when a run id is unknown
var ErrRunNotFound = errors.New("run not found")

// DefaultListLimit caps ListRuns when no limit is given
const DefaultListLimit = 50

// Repository defines the interface for run history persistence
type Repository interface {
	// Runs
	RecordRun(ctx context.Context, run *models.RunRecord) error
	GetRun(ctx context.Context, id string) (*models.RunRecord, error)
	ListRuns(ctx context.Context, filters models.RunFilters) ([]*models.RunRecord, error)

	// First clears
	MarkFirstClear(ctx context.Context, key, sessionID string, at time.Time) error
	ListFirstClears(ctx context.Context) ([]string, error)

	// Health
	Ping(ctx context.Context) error
	Close() error
}

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > 500 {
		return DefaultListLimit
	}
	return limit
}
