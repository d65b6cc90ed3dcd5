package mcp

import (
	"context"
	"io"
	"log"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgecrew/foreman/internal/engine"
	"github.com/forgecrew/foreman/internal/storage/sqlite"
	"github.com/forgecrew/foreman/internal/types"
)

func newHandlerEngine(t *testing.T) (*engine.Engine, *sqlite.Store) {
	t.Helper()
	store, err := sqlite.New(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return engine.New(store, nil, nil), store
}

func callTool(t *testing.T, handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]interface{}) map[string]interface{} {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	result, err := handler(context.Background(), req)
	require.NoError(t, err)
	return decodeEnvelope(t, result)
}

func TestManageItemsCreateBatch(t *testing.T) {
	eng, store := newHandlerEngine(t)
	handler := handleManageItems(eng, log.New(io.Discard, "", 0))

	payload := callTool(t, handler, map[string]interface{}{
		"operation": "create",
		"items": []interface{}{
			map[string]interface{}{"id": idA, "title": "epic"},
			map[string]interface{}{"title": "task", "parentId": idA},
		},
	})
	assert.Equal(t, true, payload["success"])
	data := payload["data"].(map[string]interface{})
	assert.Equal(t, float64(2), data["created"])

	items, err := store.ListItems(context.Background(), types.ItemFilter{})
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestManageItemsCreateBatchIsAtomic(t *testing.T) {
	eng, store := newHandlerEngine(t)
	handler := handleManageItems(eng, log.New(io.Discard, "", 0))

	payload := callTool(t, handler, map[string]interface{}{
		"operation": "create",
		"items": []interface{}{
			map[string]interface{}{"title": "good"},
			map[string]interface{}{"title": "bad tags", "tags": []interface{}{"Bad Tag"}},
		},
	})
	assert.Equal(t, false, payload["success"])
	envErr := payload["error"].(map[string]interface{})
	assert.Equal(t, "ValidationError", envErr["code"])

	items, err := store.ListItems(context.Background(), types.ItemFilter{})
	require.NoError(t, err)
	assert.Empty(t, items, "a failing entry leaves nothing behind")
}
