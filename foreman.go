// Package foreman provides a minimal public API for embedding the
// work-item orchestration engine in other Go programs.
//
// Most integrations should talk to the MCP server (cmd/fm serve) instead.
// This package exports only the storage constructor and the engine types
// needed to drive transitions programmatically.
package foreman

import (
	"context"

	"github.com/forgecrew/foreman/internal/engine"
	"github.com/forgecrew/foreman/internal/storage"
	"github.com/forgecrew/foreman/internal/storage/sqlite"
)

// Storage is the interface for work-item storage backends
type Storage = storage.Storage

// Transaction provides atomic multi-operation support within a database
// transaction. Use Storage.RunInTransaction() to obtain one.
type Transaction = storage.Transaction

// Engine evaluates and persists role transitions
type Engine = engine.Engine

// NoteSchemaService maps item tags to note-gate requirements
type NoteSchemaService = engine.NoteSchemaService

// NewSQLiteStorage creates a new SQLite storage instance at the given path
func NewSQLiteStorage(ctx context.Context, dbPath string) (Storage, error) {
	return sqlite.New(ctx, dbPath)
}

// NewEngine builds a transition engine over store. schemas may be nil for
// schema-free mode.
func NewEngine(store Storage, schemas NoteSchemaService) *Engine {
	return engine.New(store, schemas, nil)
}
