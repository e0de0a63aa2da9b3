package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/terra-clan/dungeon-engine/internal/models"
)

// Supported SQL drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// sqliteSchema is applied on open; Postgres uses the migrations directory instead
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS dungeon_runs (
	id TEXT PRIMARY KEY,
	template_id TEXT NOT NULL,
	difficulty TEXT NOT NULL,
	character_id TEXT NOT NULL,
	state TEXT NOT NULL,
	fail_reason TEXT NOT NULL DEFAULT '',
	first_clear BOOLEAN NOT NULL DEFAULT FALSE,
	reward_exp INTEGER NOT NULL DEFAULT 0,
	reward_gold INTEGER NOT NULL DEFAULT 0,
	reward_items TEXT NOT NULL DEFAULT '[]',
	enemies_killed INTEGER NOT NULL DEFAULT 0,
	damage_taken INTEGER NOT NULL DEFAULT 0,
	damage_dealt INTEGER NOT NULL DEFAULT 0,
	items_collected INTEGER NOT NULL DEFAULT 0,
	waves_cleared INTEGER NOT NULL DEFAULT 0,
	total_waves INTEGER NOT NULL DEFAULT 0,
	started_at_ms BIGINT NOT NULL,
	ended_at_ms BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_dungeon_runs_character ON dungeon_runs (character_id, started_at_ms);
CREATE INDEX IF NOT EXISTS idx_dungeon_runs_template ON dungeon_runs (template_id, started_at_ms);
CREATE TABLE IF NOT EXISTS first_clears (
	completion_key TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	cleared_at_ms BIGINT NOT NULL
);
`

const runColumns = `id, template_id, difficulty, character_id, state, fail_reason, first_clear,
	reward_exp, reward_gold, reward_items, enemies_killed, damage_taken, damage_dealt, items_collected,
	waves_cleared, total_waves, started_at_ms, ended_at_ms`

const insertRunQuery = `INSERT INTO dungeon_runs (` + runColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const getRunQuery = `SELECT ` + runColumns + ` FROM dungeon_runs WHERE id = ?`

const markFirstClearQuery = `INSERT INTO first_clears (completion_key, session_id, cleared_at_ms)
	VALUES (?, ?, ?) ON CONFLICT (completion_key) DO NOTHING`

const listFirstClearsQuery = `SELECT completion_key FROM first_clears ORDER BY completion_key`

func init() {
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// SQLRepository implements Repository on top of sqlx for Postgres and SQLite
type SQLRepository struct {
	db *sqlx.DB
}

// runRow is the column layout of dungeon_runs
type runRow struct {
	ID             string `db:"id"`
	TemplateID     string `db:"template_id"`
	Difficulty     string `db:"difficulty"`
	CharacterID    string `db:"character_id"`
	State          string `db:"state"`
	FailReason     string `db:"fail_reason"`
	FirstClear     bool   `db:"first_clear"`
	RewardExp      int    `db:"reward_exp"`
	RewardGold     int    `db:"reward_gold"`
	RewardItems    string `db:"reward_items"`
	EnemiesKilled  int    `db:"enemies_killed"`
	DamageTaken    int    `db:"damage_taken"`
	DamageDealt    int    `db:"damage_dealt"`
	ItemsCollected int    `db:"items_collected"`
	WavesCleared   int    `db:"waves_cleared"`
	TotalWaves     int    `db:"total_waves"`
	StartedAtMs    int64  `db:"started_at_ms"`
	EndedAtMs      int64  `db:"ended_at_ms"`
}

// Open connects to the database for driver. SQLite databases get their schema
// applied immediately; Postgres expects migrations to have run.
func Open(ctx context.Context, driver, dsn string) (*SQLRepository, error) {
	switch driver {
	case DriverSQLite:
		return openSQLite(ctx, dsn)
	case DriverPostgres:
		db, err := sqlx.Open(DriverPostgres, dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres: %w", err)
		}
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(30 * time.Minute)

		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}
		return NewSQLRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

func openSQLite(ctx context.Context, path string) (*SQLRepository, error) {
	dsn := path
	if !strings.HasPrefix(path, "file:") && path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	}

	db, err := sqlx.Open(DriverSQLite, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}
	return NewSQLRepository(db), nil
}

// NewSQLRepository wraps an open connection. Placeholders are rebound for the
// connection's driver name.
func NewSQLRepository(db *sqlx.DB) *SQLRepository {
	return &SQLRepository{db: db}
}

// Ping checks database connectivity
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// RecordRun inserts a finished run
func (r *SQLRepository) RecordRun(ctx context.Context, run *models.RunRecord) error {
	items := run.Rewards.Items
	if items == nil {
		items = []models.ItemGrant{}
	}
	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("failed to marshal reward items: %w", err)
	}

	_, err = r.db.ExecContext(ctx, r.db.Rebind(insertRunQuery),
		run.ID,
		run.TemplateID,
		string(run.Difficulty),
		run.CharacterID,
		string(run.State),
		run.FailReason,
		run.FirstClear,
		run.Rewards.Exp,
		run.Rewards.Gold,
		string(itemsJSON),
		run.Stats.EnemiesKilled,
		run.Stats.DamageTaken,
		run.Stats.DamageDealt,
		run.Stats.ItemsCollected,
		run.WavesCleared,
		run.TotalWaves,
		run.StartedAt.UnixMilli(),
		run.EndedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by id
func (r *SQLRepository) GetRun(ctx context.Context, id string) (*models.RunRecord, error) {
	var row runRow
	if err := r.db.GetContext(ctx, &row, r.db.Rebind(getRunQuery), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return row.toRecord()
}

// ListRuns returns runs matching the filters, newest first
func (r *SQLRepository) ListRuns(ctx context.Context, filters models.RunFilters) ([]*models.RunRecord, error) {
	query, args := buildListRunsQuery(filters)

	var rows []runRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	result := make([]*models.RunRecord, 0, len(rows))
	for i := range rows {
		run, err := rows[i].toRecord()
		if err != nil {
			return nil, err
		}
		result = append(result, run)
	}
	return result, nil
}

func buildListRunsQuery(filters models.RunFilters) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	if filters.CharacterID != "" {
		conditions = append(conditions, "character_id = ?")
		args = append(args, filters.CharacterID)
	}
	if filters.TemplateID != "" {
		conditions = append(conditions, "template_id = ?")
		args = append(args, filters.TemplateID)
	}
	if filters.State != "" {
		conditions = append(conditions, "state = ?")
		args = append(args, string(filters.State))
	}

	query := `SELECT ` + runColumns + ` FROM dungeon_runs`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY started_at_ms DESC, id LIMIT ? OFFSET ?"

	offset := filters.Offset
	if offset < 0 {
		offset = 0
	}
	args = append(args, normalizeLimit(filters.Limit), offset)
	return query, args
}

// MarkFirstClear records a completion key; existing keys are left untouched
func (r *SQLRepository) MarkFirstClear(ctx context.Context, key, sessionID string, at time.Time) error {
	if _, err := r.db.ExecContext(ctx, r.db.Rebind(markFirstClearQuery), key, sessionID, at.UnixMilli()); err != nil {
		return fmt.Errorf("failed to mark first clear: %w", err)
	}
	return nil
}

// ListFirstClears returns every recorded completion key, sorted
func (r *SQLRepository) ListFirstClears(ctx context.Context) ([]string, error) {
	keys := []string{}
	if err := r.db.SelectContext(ctx, &keys, listFirstClearsQuery); err != nil {
		return nil, fmt.Errorf("failed to list first clears: %w", err)
	}
	return keys, nil
}

func (row *runRow) toRecord() (*models.RunRecord, error) {
	run := &models.RunRecord{
		ID:          row.ID,
		TemplateID:  row.TemplateID,
		Difficulty:  models.Difficulty(row.Difficulty),
		CharacterID: row.CharacterID,
		State:       models.SessionState(row.State),
		FailReason:  row.FailReason,
		FirstClear:  row.FirstClear,
		Rewards: models.RewardBundle{
			Exp:        row.RewardExp,
			Gold:       row.RewardGold,
			FirstClear: row.FirstClear,
		},
		Stats: models.SessionStats{
			EnemiesKilled:  row.EnemiesKilled,
			DamageTaken:    row.DamageTaken,
			DamageDealt:    row.DamageDealt,
			ItemsCollected: row.ItemsCollected,
		},
		WavesCleared: row.WavesCleared,
		TotalWaves:   row.TotalWaves,
		StartedAt:    time.UnixMilli(row.StartedAtMs).UTC(),
		EndedAt:      time.UnixMilli(row.EndedAtMs).UTC(),
	}

	if err := json.Unmarshal([]byte(row.RewardItems), &run.Rewards.Items); err != nil {
		return nil, fmt.Errorf("failed to unmarshal reward items: %w", err)
	}
	if run.Rewards.Items == nil {
		run.Rewards.Items = []models.ItemGrant{}
	}
	return run, nil
}
