package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/terra-clan/dungeon-engine/internal/models"
	"github.com/terra-clan/dungeon-engine/internal/storage"
)

// Recorder writes finished runs and first clears to a repository
type Recorder struct {
	repo storage.Repository
}

// NewRecorder creates a recorder over repo
func NewRecorder(repo storage.Repository) *Recorder {
	return &Recorder{repo: repo}
}

// Record persists a terminal event. Other events are ignored.
// A first clear is written before the history row so that a failed row cannot lose it.
func (r *Recorder) Record(ctx context.Context, e Event) error {
	if !e.Terminal() {
		return nil
	}

	run := e.RunRecord()

	var firstClearErr error
	if e.Kind == KindDungeonCompleted && e.FirstClear {
		key := models.CompletionKey(e.TemplateID, e.Difficulty)
		if err := r.repo.MarkFirstClear(ctx, key, e.SessionID, run.EndedAt); err != nil {
			firstClearErr = fmt.Errorf("mark first clear %s: %w", key, err)
		}
	}

	var runErr error
	if err := r.repo.RecordRun(ctx, run); err != nil {
		runErr = fmt.Errorf("record run: %w", err)
	}

	if err := errors.Join(firstClearErr, runErr); err != nil {
		return err
	}

	slog.Debug("run recorded", "session_id", e.SessionID, "state", e.State)
	return nil
}

// Run records terminal events of the subscription until it closes.
// Once ctx is done the subscription is closed and the events it already
// buffered are still recorded before Run returns.
func (r *Recorder) Run(ctx context.Context, sub *Subscription) {
	slog.Info("run recorder started")
	defer slog.Info("run recorder stopped")

	writeCtx := context.WithoutCancel(ctx)
	for {
		select {
		case <-ctx.Done():
			sub.Close()
			drained := 0
			for e := range sub.C {
				r.record(writeCtx, e)
				drained++
			}
			if drained > 0 {
				slog.Info("recorded buffered runs on shutdown", "count", drained)
			}
			return
		case e, ok := <-sub.C:
			if !ok {
				return
			}
			r.record(writeCtx, e)
		}
	}
}

func (r *Recorder) record(ctx context.Context, e Event) {
	if err := r.Record(ctx, e); err != nil {
		slog.Error("failed to record run", "session_id", e.SessionID, "error", err)
	}
}

// TerminalOnly is a subscription filter for Recorder
func TerminalOnly(e Event) bool {
	return e.Terminal()
}
