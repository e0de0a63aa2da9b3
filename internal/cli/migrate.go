package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/terra-clan/dungeon-engine/internal/config"
	"github.com/terra-clan/dungeon-engine/internal/storage"
)

// MigrateCommand creates the migrate command
func MigrateCommand() *cobra.Command {
	var (
		dsn    string
		dir    string
		status bool
	)

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply Postgres run history migrations",
		Long: `Apply the SQL migrations of the migrations directory to a Postgres database.

SQLite databases create their schema on open and need no migrations.

Examples:
  # Use DATABASE_DSN and DATABASE_MIGRATIONS_DIR from the environment
  dungeon-engine migrate

  # Show which migrations are applied
  dungeon-engine migrate --dsn postgres://localhost/dungeons --status`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if dsn == "" {
				if cfg.Database.Driver != storage.DriverPostgres {
					return fmt.Errorf("migrate requires a postgres DSN (driver is %q)", cfg.Database.Driver)
				}
				dsn = cfg.Database.DSN
			}
			if dir == "" {
				dir = cfg.Database.MigrationsDir
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()

			if status {
				return printMigrationStatus(ctx, cmd, dsn, dir)
			}

			applied, err := storage.MigrateFromDSN(ctx, dsn, dir)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) from %s\n", applied, dir)
			return nil
		},
	}

	cmd.Flags().StringVar(&dsn, "dsn", "", "Postgres connection string (overrides DATABASE_DSN)")
	cmd.Flags().StringVar(&dir, "dir", "", "Migrations directory (overrides DATABASE_MIGRATIONS_DIR)")
	cmd.Flags().BoolVar(&status, "status", false, "List migrations and whether they are applied")

	return cmd
}

func printMigrationStatus(ctx context.Context, cmd *cobra.Command, dsn, dir string) error {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	migrations, err := storage.MigrationStatus(ctx, pool, dir)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, m := range migrations {
		state := "pending"
		if m.Applied {
			state = "applied"
		}
		fmt.Fprintf(out, "%-8s %s\n", state, m.Name)
	}
	return nil
}
