package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// createAdvanceItemTool returns the advance_item tool definition
func createAdvanceItemTool() mcp.Tool {
	return mcp.NewTool("advance_item",
		mcp.WithDescription("Apply role transitions (start, complete, cancel, block, hold, resume) to a batch of work items. Entries are independent; each reports its own success or structured failure."),
		mcp.WithArray("transitions",
			mcp.Required(),
			mcp.Items(map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"itemId":       map[string]interface{}{"type": "string", "description": "Work item id"},
					"trigger":      map[string]interface{}{"type": "string", "description": "start, complete, cancel, block, hold, or resume"},
					"summary":      map[string]interface{}{"type": "string", "description": "Summary applied with the transition (satisfies the verification gate)"},
					"statusLabel":  map[string]interface{}{"type": "string", "description": "Label qualifying a terminal role, e.g. cancelled"},
					"applyCascade": map[string]interface{}{"type": "boolean", "description": "Auto-complete parents whose children are all terminal (default true)"},
				},
				"required": []string{"itemId", "trigger"},
			}),
			mcp.Description("Ordered transition requests"),
		),
	)
}

// createCompleteTreeTool returns the complete_tree tool definition
func createCompleteTreeTool() mcp.Tool {
	return mcp.NewTool("complete_tree",
		mcp.WithDescription("Drive a whole subtree (or an explicit item list) to terminal in dependency order. A gate failure skips its downstream cone without aborting the sweep."),
		mcp.WithString("rootId",
			mcp.Description("Complete every descendant of this item (mutually exclusive with itemIds)"),
		),
		mcp.WithArray("itemIds",
			mcp.WithStringItems(),
			mcp.Description("Explicit item ids to complete (mutually exclusive with rootId)"),
		),
		mcp.WithString("trigger",
			mcp.Required(),
			mcp.Description("complete or cancel"),
		),
		mcp.WithString("summary",
			mcp.Description("Summary applied to each completed item"),
		),
	)
}

// createGetBlockedItemsTool returns the get_blocked_items tool definition
func createGetBlockedItemsTool() mcp.Tool {
	return mcp.NewTool("get_blocked_items",
		mcp.WithDescription("List items that cannot advance: explicitly blocked items and ladder items gated by unsatisfied blockers, each with its blocker chain."),
		mcp.WithString("parentId",
			mcp.Description("Restrict to direct children of this item (empty string = root items)"),
		),
		mcp.WithBoolean("includeItemDetails",
			mcp.Description("Include the full item record on each entry"),
		),
		mcp.WithBoolean("includeAncestors",
			mcp.Description("Include the ancestor path of each entry"),
		),
	)
}

// createGetNextItemTool returns the get_next_item tool definition
func createGetNextItemTool() mcp.Tool {
	return mcp.NewTool("get_next_item",
		mcp.WithDescription("Recommend ready work: unblocked non-terminal items sorted by priority (high first), then complexity (low first), then age (oldest first)."),
		mcp.WithString("parentId",
			mcp.Description("Restrict to direct children of this item (empty string = root items)"),
		),
		mcp.WithString("priority",
			mcp.Description("Filter: high, medium, or low"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum recommendations (default 5)"),
		),
	)
}

// createGetNextStatusTool returns the get_next_status tool definition
func createGetNextStatusTool() mcp.Tool {
	return mcp.NewTool("get_next_status",
		mcp.WithDescription("Compute what should happen to one item next: Ready (with the trigger to use), Blocked (with the blocker chain), or Terminal."),
		mcp.WithString("itemId",
			mcp.Required(),
			mcp.Description("Work item id"),
		),
	)
}

// createGetContextTool returns the get_context tool definition
func createGetContextTool() mcp.Tool {
	return mcp.NewTool("get_context",
		mcp.WithDescription("Orientation context. With itemId: the item, its schema and gate status, blockers, notes, children, and history. With since: transitions and activity after that time. With neither: a workspace health check."),
		mcp.WithString("itemId",
			mcp.Description("Item mode: focus on this item"),
		),
		mcp.WithString("since",
			mcp.Description("Session-resume mode: RFC 3339, a date, or natural language like 'yesterday'"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Cap on listed items and transitions (default 20)"),
		),
	)
}

// createManageItemsTool returns the manage_items tool definition
func createManageItemsTool() mcp.Tool {
	return mcp.NewTool("manage_items",
		mcp.WithDescription("Create, update, or delete work items. Role changes are not accepted here; use advance_item."),
		mcp.WithString("operation",
			mcp.Required(),
			mcp.Description("create, update, or delete"),
		),
		mcp.WithArray("items",
			mcp.Items(map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"title":                map[string]interface{}{"type": "string"},
					"description":          map[string]interface{}{"type": "string"},
					"summary":              map[string]interface{}{"type": "string"},
					"parentId":             map[string]interface{}{"type": "string"},
					"priority":             map[string]interface{}{"type": "string", "description": "high, medium, or low (default medium)"},
					"complexity":           map[string]interface{}{"type": "integer", "description": "1-10 (default 5)"},
					"requiresVerification": map[string]interface{}{"type": "boolean"},
					"tags":                 map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
					"metadata":             map[string]interface{}{"type": "object"},
				},
				"required": []string{"title"},
			}),
			mcp.Description("create: items to create, in order; earlier entries may parent later ones"),
		),
		mcp.WithString("itemId",
			mcp.Description("update: the item to change"),
		),
		mcp.WithObject("updates",
			mcp.Description("update: fields to change (title, description, summary, statusLabel, priority, complexity, requiresVerification, tags, metadata, parentId)"),
		),
		mcp.WithArray("itemIds",
			mcp.WithStringItems(),
			mcp.Description("delete: item ids; each delete removes the whole subtree"),
		),
	)
}

// createManageDependenciesTool returns the manage_dependencies tool definition
func createManageDependenciesTool() mcp.Tool {
	return mcp.NewTool("manage_dependencies",
		mcp.WithDescription("Create or delete typed dependency edges (BLOCKS, IS_BLOCKED_BY, RELATES_TO). Blocking edges are cycle-checked."),
		mcp.WithString("operation",
			mcp.Required(),
			mcp.Description("create, createBatch, or delete"),
		),
		mcp.WithString("fromItemId",
			mcp.Description("create/delete: edge source"),
		),
		mcp.WithString("toItemId",
			mcp.Description("create/delete: edge target"),
		),
		mcp.WithString("type",
			mcp.Description("BLOCKS, IS_BLOCKED_BY, or RELATES_TO"),
		),
		mcp.WithString("unblockAt",
			mcp.Description("Role the blocker must reach to satisfy the edge (default terminal)"),
		),
		mcp.WithArray("dependencies",
			mcp.Items(map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"fromItemId": map[string]interface{}{"type": "string"},
					"toItemId":   map[string]interface{}{"type": "string"},
					"type":       map[string]interface{}{"type": "string"},
					"unblockAt":  map[string]interface{}{"type": "string"},
				},
				"required": []string{"fromItemId", "toItemId", "type"},
			}),
			mcp.Description("createBatch: edges to create; each reports its own outcome"),
		),
	)
}

// createManageNotesTool returns the manage_notes tool definition
func createManageNotesTool() mcp.Tool {
	return mcp.NewTool("manage_notes",
		mcp.WithDescription("Upsert or delete accountability notes keyed by (itemId, key). Notes satisfy note-schema gate requirements."),
		mcp.WithString("operation",
			mcp.Required(),
			mcp.Description("upsert or delete"),
		),
		mcp.WithString("itemId",
			mcp.Required(),
			mcp.Description("Owning work item id"),
		),
		mcp.WithString("key",
			mcp.Required(),
			mcp.Description("Note key, e.g. acceptance-criteria"),
		),
		mcp.WithString("role",
			mcp.Description("upsert: ladder phase the note belongs to (queue, work, or review)"),
		),
		mcp.WithString("body",
			mcp.Description("upsert: note content; must be non-empty to satisfy a gate"),
		),
	)
}

// createQueryItemsTool returns the query_items tool definition
func createQueryItemsTool() mcp.Tool {
	return mcp.NewTool("query_items",
		mcp.WithDescription("Fetch one item by id (optionally with children) or list items by filter."),
		mcp.WithString("itemId",
			mcp.Description("Fetch exactly this item"),
		),
		mcp.WithBoolean("includeChildren",
			mcp.Description("With itemId: include direct children"),
		),
		mcp.WithString("role",
			mcp.Description("Filter: queue, work, review, terminal, or blocked"),
		),
		mcp.WithString("priority",
			mcp.Description("Filter: high, medium, or low"),
		),
		mcp.WithString("parentId",
			mcp.Description("Filter: direct children of this item (empty string = root items)"),
		),
		mcp.WithString("tag",
			mcp.Description("Filter: items carrying this tag"),
		),
		mcp.WithString("titleContains",
			mcp.Description("Filter: substring match on title"),
		),
		mcp.WithArray("ids",
			mcp.WithStringItems(),
			mcp.Description("Filter: explicit id set"),
		),
		mcp.WithString("createdAfter",
			mcp.Description("Filter: created at or after this time"),
		),
		mcp.WithString("createdBefore",
			mcp.Description("Filter: created before this time"),
		),
		mcp.WithString("since",
			mcp.Description("Filter: modified at or after this time; natural language allowed"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum results"),
		),
	)
}

// createQueryNotesTool returns the query_notes tool definition
func createQueryNotesTool() mcp.Tool {
	return mcp.NewTool("query_notes",
		mcp.WithDescription("List notes filtered by item, role phase, or key."),
		mcp.WithString("itemId",
			mcp.Description("Filter: notes on this item"),
		),
		mcp.WithString("role",
			mcp.Description("Filter: queue, work, or review"),
		),
		mcp.WithString("key",
			mcp.Description("Filter: exact key match"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum results"),
		),
	)
}
