package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/forgecrew/foreman/internal/config"
	"github.com/forgecrew/foreman/internal/engine"
	"github.com/forgecrew/foreman/internal/lockfile"
	"github.com/forgecrew/foreman/internal/logging"
	"github.com/forgecrew/foreman/internal/mcp"
	"github.com/forgecrew/foreman/internal/schema"
	"github.com/forgecrew/foreman/internal/storage/sqlite"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the MCP tool interface on stdio",
	Long: `Starts the foreman MCP server. stdout carries the protocol stream,
so all logging goes to the workspace log file (or stderr with --verbose).
The workspace is locked against concurrent foreman processes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := logging.New(
			config.LogPath(),
			config.GetBool("log.verbose"),
			config.GetInt("log.max-size-mb"),
			config.GetInt("log.max-backups"),
			config.GetInt("log.max-age-days"),
		)

		dbPath := config.DBPath()
		lock, err := lockfile.Acquire(filepath.Dir(dbPath))
		if err != nil {
			return err
		}
		defer func() { _ = lock.Release() }()

		ctx := context.Background()
		store, err := sqlite.New(ctx, dbPath)
		if err != nil {
			return fmt.Errorf("failed to open database at %s: %w", dbPath, err)
		}
		defer func() { _ = store.Close() }()
		logger.Printf("database: %s", store.Path())

		var schemas engine.NoteSchemaService = engine.NoOpNoteSchemaService{}
		if schemaPath := config.SchemaPath(); schemaPath != "" {
			provider, err := schema.Load(schemaPath, logger)
			if err != nil {
				return fmt.Errorf("failed to load note schemas: %w", err)
			}
			if err := provider.Watch(); err != nil {
				logger.Printf("schema hot reload unavailable: %v", err)
			}
			defer func() { _ = provider.Close() }()
			schemas = provider
		}

		eng := engine.New(store, schemas, logger)
		return mcp.NewServer(eng, Version, logger).ServeStdio()
	},
}
