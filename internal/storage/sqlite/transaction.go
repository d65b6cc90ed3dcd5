package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/forgecrew/foreman/internal/storage"
	"github.com/forgecrew/foreman/internal/types"
)

// Verify txStore implements storage.Transaction at compile time
var _ storage.Transaction = (*txStore)(nil)

// txStore implements the storage.Transaction interface. It wraps a
// dedicated database connection with an active transaction.
type txStore struct {
	conn *sql.Conn
}

// beginImmediateWithRetry starts an IMMEDIATE transaction, retrying with
// exponential backoff while the write lock is contended.
func beginImmediateWithRetry(ctx context.Context, conn *sql.Conn, attempts int, initialDelay time.Duration) error {
	delay := initialDelay
	var lastErr error
	for i := 0; i < attempts; i++ {
		_, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE")
		if err == nil {
			return nil
		}
		lastErr = err
		if !isBusyError(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return lastErr
}

func isBusyError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}

// RunInTransaction executes fn within a database transaction.
//
// The transaction uses BEGIN IMMEDIATE to acquire the write lock early,
// preventing deadlocks when multiple goroutines compete for it. On error
// or panic the transaction is rolled back; on success it is committed.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx storage.Transaction) error) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection for transaction: %w", err)
	}
	defer func() { _ = conn.Close() }()

	if err := beginImmediateWithRetry(ctx, conn, 5, 10*time.Millisecond); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			// Background context so rollback completes even if ctx is cancelled
			_, _ = conn.ExecContext(context.Background(), "ROLLBACK")
		}
	}()

	if err := fn(&txStore{conn: conn}); err != nil {
		return err
	}

	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	committed = true
	return nil
}

// CreateItem creates a work item within the transaction
func (t *txStore) CreateItem(ctx context.Context, item *types.WorkItem) error {
	return createItem(ctx, t.conn, item)
}

// CreateItems creates multiple work items within the transaction
func (t *txStore) CreateItems(ctx context.Context, items []*types.WorkItem) error {
	return createItems(ctx, t.conn, items)
}

// UpdateItem applies a field map within the transaction
func (t *txStore) UpdateItem(ctx context.Context, id string, updates map[string]interface{}) error {
	return updateItem(ctx, t.conn, id, updates)
}

// DeleteItem removes a work item within the transaction
func (t *txStore) DeleteItem(ctx context.Context, id string) error {
	return deleteItem(ctx, t.conn, id)
}

// GetItem retrieves an item within the transaction, enabling
// read-your-writes semantics.
func (t *txStore) GetItem(ctx context.Context, id string) (*types.WorkItem, error) {
	return getItem(ctx, t.conn, id)
}

// AddDependency adds a typed edge within the transaction
func (t *txStore) AddDependency(ctx context.Context, dep *types.Dependency) error {
	return addDependency(ctx, t.conn, dep)
}

// RemoveDependency removes a typed edge within the transaction
func (t *txStore) RemoveDependency(ctx context.Context, fromItemID, toItemID string, depType types.DependencyType) error {
	return removeDependency(ctx, t.conn, fromItemID, toItemID, depType)
}

// UpsertNote inserts or replaces a note within the transaction
func (t *txStore) UpsertNote(ctx context.Context, note *types.Note) error {
	return upsertNote(ctx, t.conn, note)
}

// DeleteNote removes a note within the transaction
func (t *txStore) DeleteNote(ctx context.Context, itemID, key string) error {
	return deleteNote(ctx, t.conn, itemID, key)
}

// AddTransition appends an audit record within the transaction
func (t *txStore) AddTransition(ctx context.Context, tr *types.RoleTransition) error {
	return addTransition(ctx, t.conn, tr)
}
