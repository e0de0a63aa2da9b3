// Package instance implements the runtime side of a dungeon run: waves and the
// session state machine that walks through them.
//
// A Session is driven entirely by its owner. Kills are reported through
// OnEnemyKilled and time only moves when Update is called, which also fires
// the deferred start of the next wave. Sessions are not safe for concurrent use.
package instance

import (
	"log/slog"
	"time"

	"github.com/terra-clan/dungeon-engine/internal/models"
)

// DefaultWaveDelay is the pause between a cleared wave and the next one
const DefaultWaveDelay = 2 * time.Second

// Events are the notifications a session emits. Nil handlers are skipped.
type Events struct {
	OnWaveStart       func(s *Session, w *Wave, number int)
	OnWaveComplete    func(s *Session, w *Wave, number int)
	OnDungeonComplete func(s *Session)
	OnDungeonFail     func(s *Session, reason string)
}

// Option configures a session
type Option func(*Session)

// WithWaveDelay overrides the pause between waves. Zero starts the next wave immediately.
func WithWaveDelay(d time.Duration) Option {
	return func(s *Session) {
		if d >= 0 {
			s.waveDelay = d
		}
	}
}

// WithClock sets the wall clock used for start and end timestamps
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

// Session is one attempt at a template by one character
type Session struct {
	ID               string
	TemplateID       string
	Difficulty       models.Difficulty
	Character        *models.Character
	State            models.SessionState
	CurrentWaveIndex int
	Waves            []*Wave
	StartTime        time.Time
	EndTime          time.Time
	TimeLimit        time.Duration
	Stats            models.SessionStats
	FailReason       string
	Rewards          *models.RewardBundle
	Events           Events

	now       func() time.Time
	waveDelay time.Duration
	elapsed   time.Duration
	pending   *task
}

// task is a deferred callback counted down by Update
type task struct {
	remaining time.Duration
	run       func()
}

// New creates a session with one wave per spec. The session is idle until Start.
func New(templateID string, difficulty models.Difficulty, character *models.Character, specs []models.WaveSpec, timeLimit time.Duration, opts ...Option) *Session {
	waves := make([]*Wave, 0, len(specs))
	for _, spec := range specs {
		waves = append(waves, NewWave(spec))
	}

	s := &Session{
		TemplateID: templateID,
		Difficulty: difficulty,
		Character:  character,
		Waves:      waves,
		TimeLimit:  timeLimit,
		now:        time.Now,
		waveDelay:  DefaultWaveDelay,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins the run and arms the first wave
func (s *Session) Start() {
	if s.State != "" {
		return
	}
	s.State = models.StateInProgress
	s.StartTime = s.now()
	s.elapsed = 0
	s.startNextWave()
}

func (s *Session) startNextWave() {
	if s.State != models.StateInProgress {
		return
	}
	if s.CurrentWaveIndex >= len(s.Waves) {
		s.Complete()
		return
	}

	w := s.Waves[s.CurrentWaveIndex]
	w.Start()
	if s.Events.OnWaveStart != nil {
		s.Events.OnWaveStart(s, w, s.CurrentWaveIndex+1)
	}
}

// CurrentWave returns the wave the index points at, or nil past the last wave
func (s *Session) CurrentWave() *Wave {
	if s.CurrentWaveIndex < 0 || s.CurrentWaveIndex >= len(s.Waves) {
		return nil
	}
	return s.Waves[s.CurrentWaveIndex]
}

// OnEnemyKilled records one kill against the active wave.
// It returns false when no wave is armed (between waves or after the run ended).
func (s *Session) OnEnemyKilled() bool {
	if s.State != models.StateInProgress {
		slog.Debug("kill ignored, session not in progress", "session_id", s.ID, "state", s.State)
		return false
	}

	w := s.CurrentWave()
	if w == nil || !w.Active() {
		slog.Debug("kill ignored, no active wave", "session_id", s.ID, "wave_index", s.CurrentWaveIndex)
		return false
	}

	s.Stats.EnemiesKilled++
	w.OnEnemyKilled()
	if !w.IsCompleted {
		return true
	}

	number := s.CurrentWaveIndex + 1
	if s.Events.OnWaveComplete != nil {
		s.Events.OnWaveComplete(s, w, number)
	}
	if s.State != models.StateInProgress {
		return true
	}

	s.CurrentWaveIndex++
	s.schedule(s.waveDelay, s.startNextWave)
	return true
}

// ReportDamage adds combat damage to the session stats
func (s *Session) ReportDamage(dealt, taken int) {
	if s.State != models.StateInProgress {
		return
	}
	if dealt > 0 {
		s.Stats.DamageDealt += dealt
	}
	if taken > 0 {
		s.Stats.DamageTaken += taken
	}
}

// ReportItemsCollected adds picked-up items to the session stats
func (s *Session) ReportItemsCollected(n int) {
	if s.State != models.StateInProgress || n <= 0 {
		return
	}
	s.Stats.ItemsCollected += n
}

// Update advances session time by delta. It fires a due wave start and fails
// the session once the time limit is used up. Sessions without a time limit
// never expire.
func (s *Session) Update(delta time.Duration) {
	if s.State != models.StateInProgress {
		return
	}
	if delta > 0 {
		s.elapsed += delta
	}

	s.runPending(delta)

	if s.State != models.StateInProgress || s.TimeLimit <= 0 {
		return
	}
	if s.RemainingTime() == 0 {
		s.Fail(models.ReasonTimeExpired)
	}
}

// Elapsed returns the session time accumulated through Update
func (s *Session) Elapsed() time.Duration {
	return s.elapsed
}

// RemainingTime returns the time left before expiry; zero for unlimited sessions
func (s *Session) RemainingTime() time.Duration {
	if s.TimeLimit <= 0 {
		return 0
	}
	remaining := s.TimeLimit - s.elapsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Complete ends the run successfully. Terminal sessions ignore it.
func (s *Session) Complete() {
	if s.State.IsTerminal() {
		return
	}
	s.cancelPending()
	s.State = models.StateCompleted
	s.EndTime = s.now()

	slog.Info("dungeon session completed",
		"session_id", s.ID,
		"template", s.TemplateID,
		"difficulty", s.Difficulty,
		"kills", s.Stats.EnemiesKilled,
	)

	if s.Events.OnDungeonComplete != nil {
		s.Events.OnDungeonComplete(s)
	}
}

// Fail ends the run unsuccessfully. Terminal sessions ignore it.
func (s *Session) Fail(reason string) {
	if s.State.IsTerminal() {
		return
	}
	s.cancelPending()
	s.State = models.StateFailed
	s.FailReason = reason
	s.EndTime = s.now()

	slog.Info("dungeon session failed",
		"session_id", s.ID,
		"template", s.TemplateID,
		"difficulty", s.Difficulty,
		"reason", reason,
	)

	if s.Events.OnDungeonFail != nil {
		s.Events.OnDungeonFail(s, reason)
	}
}

// Progress returns the percentage of cleared waves
func (s *Session) Progress() float64 {
	if len(s.Waves) == 0 {
		return 0
	}
	return float64(s.CurrentWaveIndex) / float64(len(s.Waves)) * 100
}

// WaveStartPending reports whether a next-wave start is scheduled
func (s *Session) WaveStartPending() bool {
	return s.pending != nil
}

func (s *Session) schedule(delay time.Duration, fn func()) {
	if delay <= 0 {
		fn()
		return
	}
	s.pending = &task{remaining: delay, run: fn}
}

func (s *Session) runPending(delta time.Duration) {
	if s.pending == nil {
		return
	}
	s.pending.remaining -= delta
	if s.pending.remaining > 0 {
		return
	}
	t := s.pending
	s.pending = nil
	t.run()
}

func (s *Session) cancelPending() {
	s.pending = nil
}

// Snapshot returns a read-only view of the session
func (s *Session) Snapshot() models.SessionView {
	view := models.SessionView{
		ID:               s.ID,
		TemplateID:       s.TemplateID,
		Difficulty:       s.Difficulty,
		State:            s.State,
		FailReason:       s.FailReason,
		CurrentWave:      s.CurrentWaveIndex + 1,
		TotalWaves:       len(s.Waves),
		Progress:         s.Progress(),
		Waves:            make([]models.WaveView, 0, len(s.Waves)),
		Stats:            s.Stats,
		StartedAt:        s.StartTime,
		TimeLimitSeconds: int(s.TimeLimit / time.Second),
		RemainingSeconds: s.RemainingTime().Seconds(),
		Rewards:          s.Rewards,
	}
	if view.CurrentWave > view.TotalWaves {
		view.CurrentWave = view.TotalWaves
	}
	if s.Character != nil {
		view.CharacterID = s.Character.ID
	}
	if !s.EndTime.IsZero() {
		end := s.EndTime
		view.EndedAt = &end
	}
	for i, w := range s.Waves {
		view.Waves = append(view.Waves, models.WaveView{
			Number:           i + 1,
			Enemies:          w.Enemies,
			IsBossWave:       w.IsBossWave,
			RemainingEnemies: w.RemainingEnemies,
			IsCompleted:      w.IsCompleted,
		})
	}
	return view
}
