// Package dungeon owns the live dungeon sessions of a host: it performs the
// entry transaction, routes session outcomes into character rewards and keeps
// the first-clear ledger.
//
// An Orchestrator is not safe for concurrent use. Hosts serialize access to it,
// normally through a single logic goroutine.
package dungeon

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/terra-clan/dungeon-engine/internal/catalog"
	"github.com/terra-clan/dungeon-engine/internal/instance"
	"github.com/terra-clan/dungeon-engine/internal/models"
	"github.com/terra-clan/dungeon-engine/internal/reward"
)

// Common errors
var (
	ErrTemplateNotFound = errors.New("template not found")
	ErrSessionNotFound  = errors.New("session not found")
)

// Hooks are notifications raised by the orchestrator. They run synchronously
// on the caller's goroutine; nil hooks are skipped.
type Hooks struct {
	OnDungeonEnter  func(s *instance.Session)
	OnDungeonExit   func(s *instance.Session)
	OnRewardClaimed func(s *instance.Session, bundle models.RewardBundle, firstClear bool)
	OnWaveStart     func(s *instance.Session, w *instance.Wave, number int)
	OnWaveComplete  func(s *instance.Session, w *instance.Wave, number int)
	OnDungeonFail   func(s *instance.Session, reason string)
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithResolver sets the reward resolver
func WithResolver(r *reward.Resolver) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.resolver = r
		}
	}
}

// WithHooks sets the orchestrator hooks
func WithHooks(h Hooks) Option {
	return func(o *Orchestrator) {
		o.hooks = h
	}
}

// WithIDGenerator overrides session id generation
func WithIDGenerator(fn func() string) Option {
	return func(o *Orchestrator) {
		if fn != nil {
			o.newID = fn
		}
	}
}

// WithSessionOptions applies options to every session created by Enter
func WithSessionOptions(opts ...instance.Option) Option {
	return func(o *Orchestrator) {
		o.sessionOpts = append(o.sessionOpts, opts...)
	}
}

// WithClearedKeys seeds the first-clear ledger, usually from run history
func WithClearedKeys(keys ...string) Option {
	return func(o *Orchestrator) {
		for _, k := range keys {
			o.cleared[k] = struct{}{}
		}
	}
}

// Orchestrator manages dungeon entry, live sessions and completion rewards
type Orchestrator struct {
	catalog     *catalog.Loader
	sessions    map[string]*instance.Session
	cleared     map[string]struct{}
	resolver    *reward.Resolver
	hooks       Hooks
	newID       func() string
	sessionOpts []instance.Option
}

// New creates an orchestrator over a loaded catalog
func New(cat *catalog.Loader, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		catalog:  cat,
		sessions: make(map[string]*instance.Session),
		cleared:  make(map[string]struct{}),
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.resolver == nil {
		o.resolver = reward.NewResolver(nil)
	}
	return o
}

// Enter validates entry, charges the character and starts a new session.
// When any check fails nothing is mutated.
func (o *Orchestrator) Enter(templateID string, c *models.Character, d models.Difficulty) (*instance.Session, error) {
	tmpl := o.catalog.Get(templateID)
	if tmpl == nil {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, templateID)
	}
	if err := tmpl.CanEnter(c, d); err != nil {
		return nil, err
	}

	if tmpl.EntryCost > 0 {
		c.Gold -= tmpl.EntryCost
	}
	c.IncrementDungeonCount(tmpl.ID)

	s := tmpl.CreateInstance(c, d, o.sessionOpts...)
	s.ID = o.newID()
	s.Events = instance.Events{
		OnWaveStart:       o.handleWaveStart,
		OnWaveComplete:    o.handleWaveComplete,
		OnDungeonComplete: o.handleDungeonComplete,
		OnDungeonFail:     o.handleDungeonFail,
	}
	o.sessions[s.ID] = s

	slog.Info("dungeon entered",
		"session_id", s.ID,
		"template", tmpl.ID,
		"difficulty", d,
		"character_id", c.ID,
		"entry_cost", tmpl.EntryCost,
		"daily_count", c.DungeonCount(tmpl.ID),
	)

	if o.hooks.OnDungeonEnter != nil {
		o.hooks.OnDungeonEnter(s)
	}
	s.Start()
	return s, nil
}

// ExitDungeon abandons a live session. Nothing is refunded.
func (o *Orchestrator) ExitDungeon(id string) error {
	s, ok := o.sessions[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	s.Fail(models.ReasonManualExit)
	delete(o.sessions, id)

	if o.hooks.OnDungeonExit != nil {
		o.hooks.OnDungeonExit(s)
	}
	return nil
}

// ReportKills forwards n kills to a live session and returns how many were accepted
func (o *Orchestrator) ReportKills(id string, n int) (*instance.Session, int, error) {
	s, ok := o.sessions[id]
	if !ok {
		return nil, 0, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	accepted := 0
	for i := 0; i < n; i++ {
		if !s.OnEnemyKilled() {
			break
		}
		accepted++
	}
	return s, accepted, nil
}

// ReportDamage adds damage totals to a live session
func (o *Orchestrator) ReportDamage(id string, dealt, taken int) (*instance.Session, error) {
	s, ok := o.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	s.ReportDamage(dealt, taken)
	return s, nil
}

// ReportItems adds collected items to a live session
func (o *Orchestrator) ReportItems(id string, n int) (*instance.Session, error) {
	s, ok := o.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	s.ReportItemsCollected(n)
	return s, nil
}

// Update advances every live session by delta
func (o *Orchestrator) Update(delta time.Duration) {
	// Sessions leave the registry while being updated
	for _, s := range o.Sessions() {
		s.Update(delta)
	}
}

// Session returns a live session
func (o *Orchestrator) Session(id string) (*instance.Session, error) {
	s, ok := o.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s, nil
}

// Sessions returns the live sessions ordered by start time
func (o *Orchestrator) Sessions() []*instance.Session {
	result := make([]*instance.Session, 0, len(o.sessions))
	for _, s := range o.sessions {
		result = append(result, s)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].StartTime.Equal(result[j].StartTime) {
			return result[i].StartTime.Before(result[j].StartTime)
		}
		return result[i].ID < result[j].ID
	})
	return result
}

// CheckAndUnlockDungeons unlocks every locked template whose unlock rule the
// character satisfies and returns their ids
func (o *Orchestrator) CheckAndUnlockDungeons(c *models.Character) []string {
	var unlocked []string
	for _, tmpl := range o.catalog.List() {
		if !tmpl.UnlockDue(c) {
			continue
		}
		tmpl.Unlock()
		unlocked = append(unlocked, tmpl.ID)
		slog.Info("dungeon unlocked", "template", tmpl.ID, "character_id", c.ID, "level", c.Level)
	}
	return unlocked
}

// GetTemplate returns a template by id, or nil
func (o *Orchestrator) GetTemplate(id string) *catalog.Template {
	return o.catalog.Get(id)
}

// GetAllTemplates returns the whole catalog
func (o *Orchestrator) GetAllTemplates() []*catalog.Template {
	return o.catalog.List()
}

// GetAvailableDungeons returns the unlocked templates the character meets the level gate for
func (o *Orchestrator) GetAvailableDungeons(c *models.Character) []*catalog.Template {
	var result []*catalog.Template
	for _, tmpl := range o.catalog.List() {
		if tmpl.IsUnlocked() && c.Level >= tmpl.MinLevel {
			result = append(result, tmpl)
		}
	}
	return result
}

// UnlockDungeon opens a template regardless of its unlock rule
func (o *Orchestrator) UnlockDungeon(id string) error {
	tmpl := o.catalog.Get(id)
	if tmpl == nil {
		return fmt.Errorf("%w: %s", ErrTemplateNotFound, id)
	}
	tmpl.Unlock()
	slog.Info("dungeon unlocked", "template", id)
	return nil
}

// HasCleared reports whether the template+difficulty pair was completed before
func (o *Orchestrator) HasCleared(templateID string, d models.Difficulty) bool {
	_, ok := o.cleared[models.CompletionKey(templateID, d)]
	return ok
}

// ClearedKeys returns the first-clear ledger, sorted
func (o *Orchestrator) ClearedKeys() []string {
	keys := make([]string, 0, len(o.cleared))
	for k := range o.cleared {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (o *Orchestrator) handleWaveStart(s *instance.Session, w *instance.Wave, number int) {
	slog.Debug("wave started", "session_id", s.ID, "wave", number, "enemies", w.TotalEnemyCount(), "boss", w.IsBossWave)
	if o.hooks.OnWaveStart != nil {
		o.hooks.OnWaveStart(s, w, number)
	}
}

func (o *Orchestrator) handleWaveComplete(s *instance.Session, w *instance.Wave, number int) {
	slog.Debug("wave completed", "session_id", s.ID, "wave", number)
	if o.hooks.OnWaveComplete != nil {
		o.hooks.OnWaveComplete(s, w, number)
	}
}

func (o *Orchestrator) handleDungeonComplete(s *instance.Session) {
	key := models.CompletionKey(s.TemplateID, s.Difficulty)
	_, seen := o.cleared[key]
	firstClear := !seen
	if firstClear {
		o.cleared[key] = struct{}{}
	}

	var spec models.RewardSpec
	if tmpl := o.catalog.Get(s.TemplateID); tmpl != nil {
		spec = tmpl.GetReward(s.Difficulty)
	}
	bundle := o.resolver.Calculate(spec, firstClear)

	if s.Character != nil {
		s.Character.Exp += bundle.Exp
		s.Character.Gold += bundle.Gold
	}
	s.Rewards = &bundle

	slog.Info("dungeon rewards granted",
		"session_id", s.ID,
		"template", s.TemplateID,
		"difficulty", s.Difficulty,
		"exp", bundle.Exp,
		"gold", bundle.Gold,
		"items", len(bundle.Items),
		"first_clear", firstClear,
	)

	if o.hooks.OnRewardClaimed != nil {
		o.hooks.OnRewardClaimed(s, bundle, firstClear)
	}
	delete(o.sessions, s.ID)
}

func (o *Orchestrator) handleDungeonFail(s *instance.Session, reason string) {
	if o.hooks.OnDungeonFail != nil {
		o.hooks.OnDungeonFail(s, reason)
	}
	delete(o.sessions, s.ID)
}
