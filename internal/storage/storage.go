// Package storage defines the interface for work-item storage backends.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/forgecrew/foreman/internal/types"
)

// ErrDBNotInitialized is returned when attempting to use a storage feature
// before the database has been initialized.
var ErrDBNotInitialized = errors.New("database not initialized")

// Transaction exposes the subset of Storage methods that execute within a
// single database transaction. This enables atomic workflows where multiple
// operations must either all succeed or all fail (e.g., persisting a role
// change together with its audit record).
//
// Transaction semantics:
//   - All operations within the transaction share the same connection
//   - Changes are not visible to other connections until commit
//   - If the callback returns an error or panics, the transaction is rolled back
//   - On successful return from the callback, the transaction is committed
//
// SQLite specifics: BEGIN IMMEDIATE acquires the write lock early so that
// concurrent transactions serialize instead of deadlocking.
type Transaction interface {
	CreateItem(ctx context.Context, item *types.WorkItem) error
	CreateItems(ctx context.Context, items []*types.WorkItem) error
	UpdateItem(ctx context.Context, id string, updates map[string]interface{}) error
	DeleteItem(ctx context.Context, id string) error
	GetItem(ctx context.Context, id string) (*types.WorkItem, error) // read-your-writes within the transaction

	AddDependency(ctx context.Context, dep *types.Dependency) error
	RemoveDependency(ctx context.Context, fromItemID, toItemID string, depType types.DependencyType) error

	UpsertNote(ctx context.Context, note *types.Note) error
	DeleteNote(ctx context.Context, itemID, key string) error

	AddTransition(ctx context.Context, tr *types.RoleTransition) error
}

// Storage defines the interface for work-item storage backends
type Storage interface {
	// Work items
	CreateItem(ctx context.Context, item *types.WorkItem) error
	CreateItems(ctx context.Context, items []*types.WorkItem) error
	GetItem(ctx context.Context, id string) (*types.WorkItem, error)
	UpdateItem(ctx context.Context, id string, updates map[string]interface{}) error
	DeleteItem(ctx context.Context, id string) error
	ListItems(ctx context.Context, filter types.ItemFilter) ([]*types.WorkItem, error)

	// Hierarchy
	GetChildren(ctx context.Context, parentID string) ([]*types.WorkItem, error)
	GetChildRoleCounts(ctx context.Context, parentID string) (types.RoleCounts, error)
	GetDescendants(ctx context.Context, rootID string) ([]*types.WorkItem, error)

	// Dependencies
	AddDependency(ctx context.Context, dep *types.Dependency) error
	RemoveDependency(ctx context.Context, fromItemID, toItemID string, depType types.DependencyType) error
	GetDependencyRecords(ctx context.Context, itemID string) ([]*types.Dependency, error)
	// GetIncomingBlockers returns the normalized blocking edges gating
	// itemID: BLOCKS edges pointing at it plus IS_BLOCKED_BY edges leaving it.
	GetIncomingBlockers(ctx context.Context, itemID string) ([]*types.Dependency, error)
	// GetOutgoingBlocking returns the blocking edges whose blocker side is
	// itemID, i.e. the edges that gate downstream items.
	GetOutgoingBlocking(ctx context.Context, itemID string) ([]*types.Dependency, error)

	// Notes
	UpsertNote(ctx context.Context, note *types.Note) error
	DeleteNote(ctx context.Context, itemID, key string) error
	GetNote(ctx context.Context, itemID, key string) (*types.Note, error)
	ListNotes(ctx context.Context, filter types.NoteFilter) ([]*types.Note, error)

	// Role transitions (audit trail)
	GetTransitions(ctx context.Context, itemID string, limit int) ([]*types.RoleTransition, error)
	GetTransitionsSince(ctx context.Context, since time.Time, limit int) ([]*types.RoleTransition, error)

	// Ready work: non-terminal, non-blocked items with every incoming
	// blocker satisfied, sorted priority desc, complexity asc, created_at asc.
	GetReadyItems(ctx context.Context, parentID *string, priority *types.Priority, limit int) ([]*types.WorkItem, error)

	// Statistics
	GetStatistics(ctx context.Context) (*types.Statistics, error)

	// Metadata (internal state like schema version and instance identity)
	SetMetadata(ctx context.Context, key, value string) error
	GetMetadata(ctx context.Context, key string) (string, error)

	// RunInTransaction executes fn within a database transaction. If fn
	// returns nil the transaction is committed; on error or panic it is
	// rolled back.
	RunInTransaction(ctx context.Context, fn func(tx Transaction) error) error

	// Lifecycle
	Close() error
	Path() string

	// UnderlyingDB returns the underlying *sql.DB connection, for
	// extensions that need to create their own tables in the same
	// database. Direct access bypasses the storage layer.
	UnderlyingDB() *sql.DB
}
