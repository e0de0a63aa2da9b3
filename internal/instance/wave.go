package instance

import "github.com/terra-clan/dungeon-engine/internal/models"

// Wave is the runtime counterpart of a WaveSpec
type Wave struct {
	Enemies          []models.EnemyGroup
	IsBossWave       bool
	RemainingEnemies int
	IsCompleted      bool

	started bool
}

// NewWave builds an unarmed wave from its spec
func NewWave(spec models.WaveSpec) *Wave {
	return &Wave{
		Enemies:    append([]models.EnemyGroup(nil), spec.Enemies...),
		IsBossWave: spec.IsBossWave,
	}
}

// TotalEnemyCount returns the number of kills the wave requires
func (w *Wave) TotalEnemyCount() int {
	total := 0
	for _, g := range w.Enemies {
		total += g.Count
	}
	return total
}

// Start arms the wave. Calling it again re-arms it.
func (w *Wave) Start() {
	w.RemainingEnemies = w.TotalEnemyCount()
	w.IsCompleted = false
	w.started = true
}

// Active reports whether the wave is armed and still waiting for kills
func (w *Wave) Active() bool {
	return w.started && !w.IsCompleted
}

// OnEnemyKilled counts one kill. The remaining count never drops below zero.
func (w *Wave) OnEnemyKilled() {
	if w.RemainingEnemies > 0 {
		w.RemainingEnemies--
	}
	if w.RemainingEnemies <= 0 {
		w.IsCompleted = true
	}
}
