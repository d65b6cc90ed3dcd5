package mcp

import (
	"context"
	"fmt"
	"log"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/forgecrew/foreman/internal/engine"
	"github.com/forgecrew/foreman/internal/types"
)

// optionalString reads a parameter distinguishing "absent" (nil) from
// "present but empty", which matters for parent filters where the empty
// string selects root items.
func optionalString(request mcp.CallToolRequest, key string) *string {
	args := request.GetArguments()
	v, ok := args[key]
	if !ok {
		return nil
	}
	s, ok := v.(string)
	if !ok {
		return nil
	}
	return &s
}

// handleAdvanceItem implements the advance_item tool
func handleAdvanceItem(eng *engine.Engine, logger *log.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var params advanceItemParams
		if err := request.BindArguments(&params); err != nil {
			return failureResult(validationError("invalid parameters: %v", err))
		}
		if err := params.validate(); err != nil {
			return failureResult(err)
		}

		outcome, err := eng.AdvanceItems(ctx, params.Transitions)
		if err != nil {
			logger.Printf("advance_item failed: %v", err)
			return failureResult(err)
		}
		return successResult(outcome)
	}
}

// handleCompleteTree implements the complete_tree tool
func handleCompleteTree(eng *engine.Engine, logger *log.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var params completeTreeParams
		if err := request.BindArguments(&params); err != nil {
			return failureResult(validationError("invalid parameters: %v", err))
		}
		if err := params.validate(); err != nil {
			return failureResult(err)
		}

		outcome, err := eng.CompleteTree(ctx, engine.CompleteTreeRequest{
			RootID:  params.RootID,
			ItemIDs: params.ItemIDs,
			Trigger: params.Trigger,
			Summary: params.Summary,
		})
		if err != nil {
			logger.Printf("complete_tree failed: %v", err)
			return failureResult(err)
		}
		return successResult(outcome)
	}
}

// handleGetBlockedItems implements the get_blocked_items tool
func handleGetBlockedItems(eng *engine.Engine, logger *log.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		reports, err := eng.GetBlockedItems(ctx, engine.BlockedItemsQuery{
			ParentID:           optionalString(request, "parentId"),
			IncludeItemDetails: request.GetBool("includeItemDetails", false),
			IncludeAncestors:   request.GetBool("includeAncestors", false),
		})
		if err != nil {
			logger.Printf("get_blocked_items failed: %v", err)
			return failureResult(err)
		}
		return successResult(map[string]interface{}{
			"blockedItems": reports,
			"total":        len(reports),
		})
	}
}

// handleGetNextItem implements the get_next_item tool
func handleGetNextItem(eng *engine.Engine, logger *log.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var priority *types.Priority
		if s := request.GetString("priority", ""); s != "" {
			p, err := types.ParsePriority(s)
			if err != nil {
				return failureResult(validationError("priority: %v", err))
			}
			priority = &p
		}

		items, err := eng.GetNextItems(ctx,
			optionalString(request, "parentId"), priority, request.GetInt("limit", 5))
		if err != nil {
			logger.Printf("get_next_item failed: %v", err)
			return failureResult(err)
		}
		if items == nil {
			items = []*types.WorkItem{}
		}
		return successResult(map[string]interface{}{"recommendations": items})
	}
}

// handleGetNextStatus implements the get_next_status tool
func handleGetNextStatus(eng *engine.Engine, logger *log.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		itemID := request.GetString("itemId", "")
		if err := requireItemID("itemId", itemID); err != nil {
			return failureResult(err)
		}

		status, err := eng.GetNextStatus(ctx, itemID)
		if err != nil {
			logger.Printf("get_next_status failed: %v", err)
			return failureResult(err)
		}
		return successResult(status)
	}
}

// handleGetContext implements the get_context tool
func handleGetContext(eng *engine.Engine, logger *log.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query := engine.ContextQuery{
			ItemID: request.GetString("itemId", ""),
			Limit:  request.GetInt("limit", 0),
		}
		if query.ItemID != "" {
			if err := requireItemID("itemId", query.ItemID); err != nil {
				return failureResult(err)
			}
		}
		if s := request.GetString("since", ""); s != "" {
			t, err := parseSince("since", s)
			if err != nil {
				return failureResult(err)
			}
			query.Since = &t
		}

		report, err := eng.GetContext(ctx, query)
		if err != nil {
			logger.Printf("get_context failed: %v", err)
			return failureResult(err)
		}
		return successResult(report)
	}
}

// manageFailure records one failed entry of a delete batch
type manageFailure struct {
	ItemID string      `json:"itemId,omitempty"`
	Error  string      `json:"error"`
	Code   engine.Code `json:"code"`
}

// handleManageItems implements the manage_items tool
func handleManageItems(eng *engine.Engine, logger *log.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var params manageItemsParams
		if err := request.BindArguments(&params); err != nil {
			return failureResult(validationError("invalid parameters: %v", err))
		}

		switch params.Operation {
		case "create":
			return manageItemsCreate(ctx, eng, params)
		case "update":
			return manageItemsUpdate(ctx, eng, params)
		case "delete":
			return manageItemsDelete(ctx, eng, params)
		default:
			return failureResult(validationError(
				"operation must be create, update, or delete (got %q)", params.Operation))
		}
	}
}

// manageItemsCreate creates the whole batch in one transaction: a bad
// entry leaves nothing behind, so intra-batch parent references cannot
// dangle.
func manageItemsCreate(ctx context.Context, eng *engine.Engine, params manageItemsParams) (*mcp.CallToolResult, error) {
	if len(params.Items) == 0 {
		return failureResult(validationError("create: items is required"))
	}

	items := make([]*types.WorkItem, 0, len(params.Items))
	for i, entry := range params.Items {
		item, err := entry.toWorkItem(i)
		if err != nil {
			return failureResult(err)
		}
		items = append(items, item)
	}
	if err := eng.CreateItems(ctx, items); err != nil {
		return failureResult(err)
	}
	return successResult(map[string]interface{}{
		"items":   items,
		"created": len(items),
	})
}

func manageItemsUpdate(ctx context.Context, eng *engine.Engine, params manageItemsParams) (*mcp.CallToolResult, error) {
	if err := requireItemID("itemId", params.ItemID); err != nil {
		return failureResult(err)
	}
	if params.Updates == nil {
		return failureResult(validationError("update: updates is required"))
	}
	updates, err := params.Updates.toFieldMap()
	if err != nil {
		return failureResult(err)
	}

	item, err := eng.UpdateItem(ctx, params.ItemID, updates)
	if err != nil {
		return failureResult(err)
	}
	return successResult(map[string]interface{}{
		"items":   []*types.WorkItem{item},
		"updated": 1,
	})
}

func manageItemsDelete(ctx context.Context, eng *engine.Engine, params manageItemsParams) (*mcp.CallToolResult, error) {
	if len(params.ItemIDs) == 0 {
		return failureResult(validationError("delete: itemIds is required"))
	}
	for i, id := range params.ItemIDs {
		if err := requireItemID(fmt.Sprintf("itemIds[%d]", i), id); err != nil {
			return failureResult(err)
		}
	}

	deleted := []string{}
	failures := []manageFailure{}
	for _, id := range params.ItemIDs {
		if err := eng.DeleteItem(ctx, id); err != nil {
			coded := engine.AsError(err)
			failures = append(failures, manageFailure{
				ItemID: id, Error: coded.Message, Code: coded.Code,
			})
			continue
		}
		deleted = append(deleted, id)
	}
	return successResult(map[string]interface{}{
		"ids":      deleted,
		"deleted":  len(deleted),
		"failed":   len(failures),
		"failures": failures,
	})
}

// handleManageDependencies implements the manage_dependencies tool
func handleManageDependencies(eng *engine.Engine, logger *log.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var params manageDependenciesParams
		if err := request.BindArguments(&params); err != nil {
			return failureResult(validationError("invalid parameters: %v", err))
		}

		switch params.Operation {
		case "create":
			dep, err := params.dependencyParams.toDependency(-1)
			if err != nil {
				return failureResult(err)
			}
			if err := eng.AddDependency(ctx, dep); err != nil {
				return failureResult(err)
			}
			return successResult(map[string]interface{}{
				"dependency": dep,
				"created":    1,
			})

		case "createBatch":
			if len(params.Dependencies) == 0 {
				return failureResult(validationError("createBatch: dependencies is required"))
			}
			deps := make([]*types.Dependency, 0, len(params.Dependencies))
			for i := range params.Dependencies {
				dep, err := params.Dependencies[i].toDependency(i)
				if err != nil {
					return failureResult(err)
				}
				deps = append(deps, dep)
			}
			results := eng.AddDependencies(ctx, deps)
			created := 0
			for _, r := range results {
				if r.Created {
					created++
				}
			}
			return successResult(map[string]interface{}{
				"results": results,
				"created": created,
				"failed":  len(results) - created,
			})

		case "delete":
			if err := requireItemID("fromItemId", params.FromItemID); err != nil {
				return failureResult(err)
			}
			if err := requireItemID("toItemId", params.ToItemID); err != nil {
				return failureResult(err)
			}
			depType, err := types.ParseDependencyType(params.Type)
			if err != nil {
				return failureResult(validationError("type: %v", err))
			}
			if err := eng.RemoveDependency(ctx, params.FromItemID, params.ToItemID, depType); err != nil {
				return failureResult(err)
			}
			return successResult(map[string]interface{}{"deleted": 1})

		default:
			return failureResult(validationError(
				"operation must be create, createBatch, or delete (got %q)", params.Operation))
		}
	}
}

// handleManageNotes implements the manage_notes tool
func handleManageNotes(eng *engine.Engine, logger *log.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var params manageNotesParams
		if err := request.BindArguments(&params); err != nil {
			return failureResult(validationError("invalid parameters: %v", err))
		}
		if err := requireItemID("itemId", params.ItemID); err != nil {
			return failureResult(err)
		}
		if params.Key == "" {
			return failureResult(validationError("key is required"))
		}

		switch params.Operation {
		case "upsert":
			role := types.RoleWork
			if params.Role != "" {
				parsed, err := types.ParseRole(params.Role)
				if err != nil {
					return failureResult(validationError("role: %v", err))
				}
				role = parsed
			}
			note, err := eng.UpsertNote(ctx, &types.Note{
				ItemID: params.ItemID,
				Key:    params.Key,
				Role:   role,
				Body:   params.Body,
			})
			if err != nil {
				return failureResult(err)
			}
			return successResult(map[string]interface{}{"note": note})

		case "delete":
			if err := eng.DeleteNote(ctx, params.ItemID, params.Key); err != nil {
				return failureResult(err)
			}
			return successResult(map[string]interface{}{"deleted": 1})

		default:
			return failureResult(validationError(
				"operation must be upsert or delete (got %q)", params.Operation))
		}
	}
}

// handleQueryItems implements the query_items tool
func handleQueryItems(eng *engine.Engine, logger *log.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var params queryItemsParams
		if err := request.BindArguments(&params); err != nil {
			return failureResult(validationError("invalid parameters: %v", err))
		}

		if params.ItemID != "" {
			if err := requireItemID("itemId", params.ItemID); err != nil {
				return failureResult(err)
			}
			item, err := eng.Store().GetItem(ctx, params.ItemID)
			if err != nil {
				return failureResult(err)
			}
			data := map[string]interface{}{"item": item}
			if params.IncludeChildren {
				children, err := eng.Store().GetChildren(ctx, params.ItemID)
				if err != nil {
					return failureResult(err)
				}
				data["children"] = children
			}
			return successResult(data)
		}

		filter, err := params.toFilter()
		if err != nil {
			return failureResult(err)
		}
		items, err := eng.Store().ListItems(ctx, filter)
		if err != nil {
			return failureResult(err)
		}
		if items == nil {
			items = []*types.WorkItem{}
		}
		return successResult(map[string]interface{}{
			"items": items,
			"total": len(items),
		})
	}
}

// handleQueryNotes implements the query_notes tool
func handleQueryNotes(eng *engine.Engine, logger *log.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var params queryNotesParams
		if err := request.BindArguments(&params); err != nil {
			return failureResult(validationError("invalid parameters: %v", err))
		}
		filter, err := params.toFilter()
		if err != nil {
			return failureResult(err)
		}

		notes, err := eng.Store().ListNotes(ctx, filter)
		if err != nil {
			return failureResult(err)
		}
		if notes == nil {
			notes = []*types.Note{}
		}
		return successResult(map[string]interface{}{
			"notes": notes,
			"total": len(notes),
		})
	}
}
