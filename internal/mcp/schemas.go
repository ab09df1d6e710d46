package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// filtersSchema is shared by the tools that accept history filters.
func filtersSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":        "object",
		"description": "Optional filters to narrow the history scan",
		"properties": map[string]interface{}{
			"workspace_id": map[string]interface{}{
				"type":        "string",
				"description": "Restrict to a single workspace",
			},
			"time_range": map[string]interface{}{
				"type":        "object",
				"description": "Half-open time window in Unix milliseconds [start, end)",
				"properties": map[string]interface{}{
					"start": map[string]interface{}{"type": "integer"},
					"end":   map[string]interface{}{"type": "integer"},
				},
			},
			"file_patterns": map[string]interface{}{
				"type":        "array",
				"description": "Glob patterns for file paths (e.g., '**/*.go'), ORed together",
				"items":       map[string]interface{}{"type": "string"},
			},
			"event_kinds": map[string]interface{}{
				"type":        "array",
				"description": "Filter by change type",
				"items": map[string]interface{}{
					"type": "string",
					"enum": []string{"create", "modify", "delete", "rename"},
				},
			},
		},
	}
}

// searchHistoryTool returns the tool definition for search_history
func searchHistoryTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_history",
		Description: "Search recorded edit history with natural language. Combines semantic and keyword retrieval; time expressions like 'yesterday' or '2 days ago' and language names in the query become filters automatically.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search query (natural language or keywords)",
				},
				"filters": filtersSchema(),
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return (1-100)",
					"default":     20,
					"minimum":     1,
					"maximum":     100,
				},
				"vector_weight": map[string]interface{}{
					"type":        "number",
					"description": "Relative weight of the semantic leg (>= 0)",
				},
				"keyword_weight": map[string]interface{}{
					"type":        "number",
					"description": "Relative weight of the keyword leg (>= 0)",
				},
			},
			Required: []string{"query"},
		},
	}
}

// findSimilarTool returns the tool definition for find_similar
func findSimilarTool() mcp.Tool {
	return mcp.Tool{
		Name:        "find_similar",
		Description: "Find recorded changes semantically similar to a given change",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"change_id": map[string]interface{}{
					"type":        "string",
					"description": "ID of the reference change record",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return (1-100)",
					"default":     10,
					"minimum":     1,
					"maximum":     100,
				},
			},
			Required: []string{"change_id"},
		},
	}
}

// fileTimelineTool returns the tool definition for file_timeline
func fileTimelineTool() mcp.Tool {
	return mcp.Tool{
		Name:        "file_timeline",
		Description: "Chronological history of changes to a single file, newest first",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"file_path": map[string]interface{}{
					"type":        "string",
					"description": "Workspace-relative file path",
				},
				"workspace_id": map[string]interface{}{
					"type":        "string",
					"description": "Restrict to a single workspace",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of entries (1-200)",
					"default":     50,
					"minimum":     1,
					"maximum":     200,
				},
			},
			Required: []string{"file_path"},
		},
	}
}

// symbolTimelineTool returns the tool definition for symbol_timeline
func symbolTimelineTool() mcp.Tool {
	return mcp.Tool{
		Name:        "symbol_timeline",
		Description: "Chronological history of changes touching a symbol (function, type, method), newest first",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"symbol": map[string]interface{}{
					"type":        "string",
					"description": "Symbol name to trace",
				},
				"workspace_id": map[string]interface{}{
					"type":        "string",
					"description": "Restrict to a single workspace",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of entries (1-200)",
					"default":     50,
					"minimum":     1,
					"maximum":     200,
				},
			},
			Required: []string{"symbol"},
		},
	}
}

// analyzePatternsTool returns the tool definition for analyze_patterns
func analyzePatternsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "analyze_patterns",
		Description: "Aggregate edit activity: most-edited files and symbols, activity by hour, change-type counts",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"workspace_id": map[string]interface{}{
					"type":        "string",
					"description": "Restrict to a single workspace",
				},
				"time_range": map[string]interface{}{
					"type":        "object",
					"description": "Half-open time window in Unix milliseconds [start, end)",
					"properties": map[string]interface{}{
						"start": map[string]interface{}{"type": "integer"},
						"end":   map[string]interface{}{"type": "integer"},
					},
				},
			},
		},
	}
}

// recordChangeTool returns the tool definition for record_change
func recordChangeTool() mcp.Tool {
	return mcp.Tool{
		Name:        "record_change",
		Description: "Record a file edit into the history store",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"workspace_id": map[string]interface{}{
					"type":        "string",
					"description": "Workspace the edit belongs to",
				},
				"file_path": map[string]interface{}{
					"type":        "string",
					"description": "Workspace-relative file path",
				},
				"kind": map[string]interface{}{
					"type":        "string",
					"description": "Change type",
					"enum":        []string{"create", "modify", "delete", "rename"},
					"default":     "modify",
				},
				"diff": map[string]interface{}{
					"type":        "string",
					"description": "Unified diff of the edit",
				},
				"language": map[string]interface{}{
					"type":        "string",
					"description": "Source language of the file",
				},
				"symbols": map[string]interface{}{
					"type":        "array",
					"description": "Symbols touched by the edit",
					"items":       map[string]interface{}{"type": "string"},
				},
				"summary": map[string]interface{}{
					"type":        "string",
					"description": "One-line description of the edit",
				},
				"timestamp": map[string]interface{}{
					"type":        "integer",
					"description": "Edit time in Unix milliseconds (default: now)",
				},
			},
			Required: []string{"workspace_id", "file_path"},
		},
	}
}

// historyStatsTool returns the tool definition for history_stats
func historyStatsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "history_stats",
		Description: "Report history store statistics: record counts, embedding coverage, time span",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"workspace_id": map[string]interface{}{
					"type":        "string",
					"description": "Restrict to a single workspace (default: all)",
				},
			},
		},
	}
}
