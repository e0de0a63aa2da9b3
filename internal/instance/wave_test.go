package instance

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/terra-clan/dungeon-engine/internal/models"
)

func TestWaveCompletesAfterAllKills(t *testing.T) {
	w := NewWave(models.WaveSpec{Enemies: []models.EnemyGroup{
		{EnemyType: "goblin", Count: 3, Level: 1},
		{EnemyType: "wolf", Count: 2, Level: 2},
	}})

	assert.Equal(t, 5, w.TotalEnemyCount())
	assert.False(t, w.Active(), "wave is idle before Start")

	w.Start()
	assert.Equal(t, 5, w.RemainingEnemies)
	assert.True(t, w.Active())

	for i := 0; i < 4; i++ {
		w.OnEnemyKilled()
	}
	assert.False(t, w.IsCompleted, "4 of 5 kills must not complete the wave")
	assert.Equal(t, 1, w.RemainingEnemies)

	w.OnEnemyKilled()
	assert.True(t, w.IsCompleted)
	assert.False(t, w.Active())
}

func TestWaveClampsOverReportedKills(t *testing.T) {
	w := NewWave(models.WaveSpec{Enemies: []models.EnemyGroup{{EnemyType: "bat", Count: 1}}})
	w.Start()
	w.OnEnemyKilled()
	w.OnEnemyKilled()

	assert.Equal(t, 0, w.RemainingEnemies)
	assert.True(t, w.IsCompleted)
}

func TestWaveStartRearms(t *testing.T) {
	w := NewWave(models.WaveSpec{Enemies: []models.EnemyGroup{{EnemyType: "bat", Count: 2}}})
	w.Start()
	w.OnEnemyKilled()
	w.OnEnemyKilled()
	assert.True(t, w.IsCompleted)

	w.Start()
	assert.False(t, w.IsCompleted)
	assert.Equal(t, 2, w.RemainingEnemies)
}

func TestNewWaveCopiesRoster(t *testing.T) {
	spec := models.WaveSpec{Enemies: []models.EnemyGroup{{EnemyType: "bat", Count: 2}}, IsBossWave: true}
	w := NewWave(spec)
	spec.Enemies[0].Count = 99

	assert.Equal(t, 2, w.TotalEnemyCount())
	assert.True(t, w.IsBossWave)
}
