package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// migration is a single schema change applied at most once per database.
type migration struct {
	name  string
	apply func(ctx context.Context, db *sql.DB) error
}

// migrations run in order after the base schema is created. Names are
// recorded in schema_migrations so re-opening a database skips them.
var migrations = []migration{
	{
		name:  "001_instance_id",
		apply: migrateInstanceID,
	},
}

// RunMigrations applies all unapplied migrations in order
func RunMigrations(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			name TEXT PRIMARY KEY,
			applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	for _, m := range migrations {
		var applied bool
		err := db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE name = ?)`, m.name).Scan(&applied)
		if err != nil {
			return fmt.Errorf("failed to check migration %s: %w", m.name, err)
		}
		if applied {
			continue
		}
		if err := m.apply(ctx, db); err != nil {
			return fmt.Errorf("migration %s failed: %w", m.name, err)
		}
		if _, err := db.ExecContext(ctx,
			`INSERT INTO schema_migrations (name) VALUES (?)`, m.name); err != nil {
			return fmt.Errorf("failed to record migration %s: %w", m.name, err)
		}
	}
	return nil
}

// migrateInstanceID stamps the database with a stable identity used in
// log lines and diagnostics.
func migrateInstanceID(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		INSERT OR IGNORE INTO metadata (key, value) VALUES ('instance_id', ?)
	`, uuid.NewString())
	return err
}
