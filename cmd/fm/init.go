package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/forgecrew/foreman/internal/config"
	"github.com/forgecrew/foreman/internal/storage/sqlite"
)

const sampleConfig = `# foreman workspace configuration
# db: path to the SQLite database (default: this directory's foreman.db)
# schema-file: note-schema YAML (default: this directory's schemas.yaml)
log:
  # file: foreman.log
  verbose: false
`

const sampleSchemas = `# Note schemas map item tags to required accountability notes.
# An item tagged "feature" cannot leave queue until a non-empty
# acceptance-criteria note exists.
schemas:
  feature:
    - key: acceptance-criteria
      role: queue
      required: true
      description: What done looks like, testable
    - key: review-notes
      role: review
      required: false
      description: Findings from review
`

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a foreman workspace in the current directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := config.WorkspaceDirName
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}

		configPath := filepath.Join(dir, "config.yaml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			if err := os.WriteFile(configPath, []byte(sampleConfig), 0o644); err != nil {
				return fmt.Errorf("failed to write config: %w", err)
			}
		}

		schemasPath := filepath.Join(dir, "schemas.yaml")
		if _, err := os.Stat(schemasPath); os.IsNotExist(err) {
			if err := os.WriteFile(schemasPath, []byte(sampleSchemas), 0o644); err != nil {
				return fmt.Errorf("failed to write schemas: %w", err)
			}
		}

		store, err := sqlite.New(context.Background(), filepath.Join(dir, "foreman.db"))
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		if err := store.Close(); err != nil {
			return err
		}

		fmt.Printf("Initialized foreman workspace in %s\n", dir)
		return nil
	},
}
