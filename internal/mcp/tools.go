package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/edittrail/edittrail/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams  = -32602 // Invalid method parameters
	ErrorCodeInternalError  = -32603 // Internal JSON-RPC error
	ErrorCodeChangeNotFound = -32001 // Referenced change record does not exist
	ErrorCodeNoEmbedding    = -32002 // Change has no stored embedding
	ErrorCodeEmptyQuery     = -32004 // Query parameter is empty
)

// handleSearchHistory handles the search_history tool invocation
func (s *Server) handleSearchHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query, ok := args["query"].(string)
	if !ok || query == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	limit := getIntDefault(args, "limit", s.defaults.ResultLimit)
	if limit < 1 || limit > 100 {
		return nil, newMCPError(ErrorCodeInvalidParams, "limit must be between 1 and 100", map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}

	params := s.defaults.HybridParams()
	params.ResultLimit = limit
	if w, ok := args["vector_weight"].(float64); ok {
		params.VectorWeight = w
	}
	if w, ok := args["keyword_weight"].(float64); ok {
		params.KeywordWeight = w
	}
	params = params.Normalized()

	filters, err := parseFilters(args["filters"])
	if err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid filters", map[string]interface{}{
			"param":  "filters",
			"reason": err.Error(),
		})
	}

	results, err := s.searcher.Search(ctx, query, filters, &params)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "search failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"query":   query,
		"count":   len(results),
		"results": resultPayloads(results),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleFindSimilar handles the find_similar tool invocation
func (s *Server) handleFindSimilar(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	changeID, ok := args["change_id"].(string)
	if !ok || changeID == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "change_id parameter is required", map[string]interface{}{
			"param":  "change_id",
			"reason": "missing or empty",
		})
	}
	limit := getIntDefault(args, "limit", 10)
	if limit < 1 || limit > 100 {
		return nil, newMCPError(ErrorCodeInvalidParams, "limit must be between 1 and 100", map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}

	results, err := s.searcher.FindSimilar(ctx, changeID, limit)
	if err != nil {
		switch {
		case errors.Is(err, types.ErrChangeNotFound):
			return nil, newMCPError(ErrorCodeChangeNotFound, "change not found", map[string]interface{}{
				"change_id": changeID,
			})
		case errors.Is(err, types.ErrNoEmbedding):
			return nil, newMCPError(ErrorCodeNoEmbedding, "change has no embedding yet", map[string]interface{}{
				"change_id": changeID,
			})
		default:
			return nil, newMCPError(ErrorCodeInternalError, "similarity search failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	response := map[string]interface{}{
		"change_id": changeID,
		"count":     len(results),
		"results":   resultPayloads(results),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleFileTimeline handles the file_timeline tool invocation
func (s *Server) handleFileTimeline(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	filePath, ok := args["file_path"].(string)
	if !ok || filePath == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "file_path parameter is required", map[string]interface{}{
			"param":  "file_path",
			"reason": "missing or empty",
		})
	}
	workspaceID := getStringDefault(args, "workspace_id", "")
	limit := getIntDefault(args, "limit", 50)
	if limit < 1 || limit > 200 {
		return nil, newMCPError(ErrorCodeInvalidParams, "limit must be between 1 and 200", map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}

	records, err := s.searcher.FileTimeline(ctx, workspaceID, filePath, limit)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "timeline lookup failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"file_path": filePath,
		"count":     len(records),
		"changes":   recordPayloads(records),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleSymbolTimeline handles the symbol_timeline tool invocation
func (s *Server) handleSymbolTimeline(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	symbol, ok := args["symbol"].(string)
	if !ok || symbol == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "symbol parameter is required", map[string]interface{}{
			"param":  "symbol",
			"reason": "missing or empty",
		})
	}
	workspaceID := getStringDefault(args, "workspace_id", "")
	limit := getIntDefault(args, "limit", 50)
	if limit < 1 || limit > 200 {
		return nil, newMCPError(ErrorCodeInvalidParams, "limit must be between 1 and 200", map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}

	records, err := s.searcher.SymbolTimeline(ctx, workspaceID, symbol, limit)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "timeline lookup failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"symbol":  symbol,
		"count":   len(records),
		"changes": recordPayloads(records),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleAnalyzePatterns handles the analyze_patterns tool invocation
func (s *Server) handleAnalyzePatterns(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})
	workspaceID := getStringDefault(args, "workspace_id", "")
	timeRange, err := parseTimeRangeArg(args["time_range"])
	if err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid time_range", map[string]interface{}{
			"param":  "time_range",
			"reason": err.Error(),
		})
	}

	report, err := s.searcher.AnalyzePatterns(ctx, workspaceID, timeRange)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "pattern analysis failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	files := make([]map[string]interface{}, 0, len(report.FrequentFiles))
	for _, f := range report.FrequentFiles {
		files = append(files, map[string]interface{}{"file_path": f.FilePath, "count": f.Count})
	}
	symbols := make([]map[string]interface{}, 0, len(report.FrequentSymbols))
	for _, sym := range report.FrequentSymbols {
		symbols = append(symbols, map[string]interface{}{"symbol": sym.Symbol, "count": sym.Count})
	}
	kinds := make(map[string]int, len(report.ChangeTypes))
	for kind, n := range report.ChangeTypes {
		kinds[string(kind)] = n
	}

	response := map[string]interface{}{
		"total_changes":    report.TotalChanges,
		"frequent_files":   files,
		"frequent_symbols": symbols,
		"activity_by_hour": report.ActivityByHour,
		"change_types":     kinds,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleRecordChange handles the record_change tool invocation
func (s *Server) handleRecordChange(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	workspaceID, ok := args["workspace_id"].(string)
	if !ok || workspaceID == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "workspace_id parameter is required", map[string]interface{}{
			"param":  "workspace_id",
			"reason": "missing or empty",
		})
	}
	filePath, ok := args["file_path"].(string)
	if !ok || filePath == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "file_path parameter is required", map[string]interface{}{
			"param":  "file_path",
			"reason": "missing or empty",
		})
	}

	kind := types.EventKind(getStringDefault(args, "kind", string(types.EventModify)))
	if !kind.Valid() {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid kind", map[string]interface{}{
			"param":   "kind",
			"value":   string(kind),
			"allowed": []string{"create", "modify", "delete", "rename"},
		})
	}

	rec := &types.ChangeRecord{
		WorkspaceID: workspaceID,
		FilePath:    filePath,
		Kind:        kind,
		Diff:        getStringDefault(args, "diff", ""),
		Language:    getStringDefault(args, "language", ""),
		Summary:     getStringDefault(args, "summary", ""),
		Symbols:     stringSlice(args["symbols"]),
		Timestamp:   int64(getIntDefault(args, "timestamp", 0)),
	}

	if err := s.processor.RecordChange(ctx, rec); err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "record failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"recorded":  true,
		"change_id": rec.ID,
		"timestamp": rec.Timestamp,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleHistoryStats handles the history_stats tool invocation
func (s *Server) handleHistoryStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})
	workspaceID := getStringDefault(args, "workspace_id", "")

	stats, err := s.storage.Stats(ctx, workspaceID)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "stats lookup failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"total_changes":    stats.TotalChanges,
		"embedded_changes": stats.EmbeddedChanges,
		"workspaces":       stats.Workspaces,
		"earliest_ts":      stats.EarliestTS,
		"latest_ts":        stats.LatestTS,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// parseFilters converts the filters argument into typed filters.
func parseFilters(raw interface{}) (*types.Filters, error) {
	if raw == nil {
		return nil, nil
	}
	m, ok := raw.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("filters must be an object")
	}
	f := &types.Filters{
		WorkspaceID:  getStringDefault(m, "workspace_id", ""),
		FilePatterns: stringSlice(m["file_patterns"]),
	}
	tr, err := parseTimeRangeArg(m["time_range"])
	if err != nil {
		return nil, err
	}
	f.TimeRange = tr
	for _, k := range stringSlice(m["event_kinds"]) {
		kind := types.EventKind(k)
		if !kind.Valid() {
			return nil, fmt.Errorf("unknown event kind %q", k)
		}
		f.EventKinds = append(f.EventKinds, kind)
	}
	return f, nil
}

func parseTimeRangeArg(raw interface{}) (*types.TimeRange, error) {
	if raw == nil {
		return nil, nil
	}
	m, ok := raw.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("time_range must be an object")
	}
	tr := &types.TimeRange{
		Start: int64(getIntDefault(m, "start", 0)),
		End:   int64(getIntDefault(m, "end", 0)),
	}
	if tr.End != 0 && tr.End <= tr.Start {
		return nil, fmt.Errorf("time_range end must be after start")
	}
	return tr, nil
}

func recordPayloads(records []*types.ChangeRecord) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(records))
	for _, rec := range records {
		out = append(out, recordPayload(rec))
	}
	return out
}

func recordPayload(rec *types.ChangeRecord) map[string]interface{} {
	payload := map[string]interface{}{
		"id":           rec.ID,
		"timestamp":    rec.Timestamp,
		"workspace_id": rec.WorkspaceID,
		"file_path":    rec.FilePath,
		"kind":         string(rec.Kind),
	}
	if rec.Language != "" {
		payload["language"] = rec.Language
	}
	if len(rec.Symbols) > 0 {
		payload["symbols"] = rec.Symbols
	}
	if rec.Summary != "" {
		payload["summary"] = rec.Summary
	}
	if rec.Diff != "" {
		payload["diff"] = rec.Diff
	}
	return payload
}

func resultPayloads(results []types.SearchResult) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(results))
	for _, r := range results {
		payload := recordPayload(r.Record)
		payload["score"] = r.Score
		if len(r.Highlights) > 0 {
			hs := make([]map[string]interface{}, 0, len(r.Highlights))
			for _, h := range r.Highlights {
				hs = append(hs, map[string]interface{}{
					"field":   h.Field,
					"snippet": h.Snippet,
					"terms":   h.Terms,
				})
			}
			payload["highlights"] = hs
		}
		out = append(out, payload)
	}
	return out
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if args == nil {
		return defaultValue
	}
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if args == nil {
		return defaultValue
	}
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}

// stringSlice converts a JSON array argument to []string, skipping
// non-string members.
func stringSlice(raw interface{}) []string {
	items, ok := raw.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
