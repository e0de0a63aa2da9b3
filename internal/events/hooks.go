package events

import (
	"github.com/terra-clan/dungeon-engine/internal/dungeon"
	"github.com/terra-clan/dungeon-engine/internal/instance"
	"github.com/terra-clan/dungeon-engine/internal/models"
)

// Hooks publishes orchestrator notifications on the bus
func Hooks(bus *Bus) dungeon.Hooks {
	return dungeon.Hooks{
		OnDungeonEnter: func(s *instance.Session) {
			bus.Publish(FromSession(KindDungeonEntered, s))
		},
		OnDungeonExit: func(s *instance.Session) {
			bus.Publish(FromSession(KindDungeonExited, s))
		},
		OnRewardClaimed: func(s *instance.Session, bundle models.RewardBundle, firstClear bool) {
			e := FromSession(KindDungeonCompleted, s)
			e.Rewards = &bundle
			e.FirstClear = firstClear
			bus.Publish(e)
		},
		OnWaveStart: func(s *instance.Session, w *instance.Wave, number int) {
			e := FromSession(KindWaveStarted, s)
			e.Wave = number
			e.BossWave = w.IsBossWave
			bus.Publish(e)
		},
		OnWaveComplete: func(s *instance.Session, w *instance.Wave, number int) {
			e := FromSession(KindWaveCompleted, s)
			e.Wave = number
			e.BossWave = w.IsBossWave
			bus.Publish(e)
		},
		OnDungeonFail: func(s *instance.Session, reason string) {
			e := FromSession(KindDungeonFailed, s)
			e.Reason = reason
			bus.Publish(e)
		},
	}
}
