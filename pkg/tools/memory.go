/*
Package tools exposes the memory operations as MCP tools. Each tool handler
translates its arguments into a dispatch request, runs it, and serializes the
resulting envelope as the tool output. Handlers never return a transport
error for an operation failure; failures ride inside the envelope.
*/
package tools

import (
	"context"
	"encoding/json"

	"github.com/charmbracelet/log"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/tidwall/gjson"

	"github.com/theapemachine/mem0-go/pkg/dispatch"
	"github.com/theapemachine/mem0-go/pkg/mem0"
	"github.com/theapemachine/mem0-go/pkg/utils"
)

// MemoryTools registers the memory tool set against an MCP server, routing
// every invocation through the injected dispatcher.
type MemoryTools struct {
	dispatcher *dispatch.Dispatcher
	logger     *log.Logger
}

// NewMemoryTools wires the tool set over a dispatcher.
func NewMemoryTools(d *dispatch.Dispatcher) *MemoryTools {
	return &MemoryTools{
		dispatcher: d,
		logger:     log.Default().WithPrefix("tools"),
	}
}

// Register adds all memory tools to the server.
func (mt *MemoryTools) Register(srv *server.MCPServer) {
	srv.AddTool(mt.addTool(), mt.handleAdd)
	srv.AddTool(mt.searchTool(), mt.handleSearch)
	srv.AddTool(mt.getTool(), mt.handleGet)
	srv.AddTool(mt.getAllTool(), mt.handleGetAll)
	srv.AddTool(mt.updateTool(), mt.handleUpdate)
	srv.AddTool(mt.deleteTool(), mt.handleDelete)
	srv.AddTool(mt.deleteAllTool(), mt.handleDeleteAll)
	srv.AddTool(mt.historyTool(), mt.handleHistory)
}

func scopeOptions() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("user_id", mcp.Description("User the memories belong to")),
		mcp.WithString("agent_id", mcp.Description("Agent the memories belong to")),
		mcp.WithString("app_id", mcp.Description("Application the memories belong to")),
		mcp.WithString("run_id", mcp.Description("Run or session the memories belong to")),
	}
}

func scopeFrom(req mcp.CallToolRequest) mem0.Scope {
	return mem0.Scope{
		UserID:  req.GetString("user_id", ""),
		AgentID: req.GetString("agent_id", ""),
		AppID:   req.GetString("app_id", ""),
		RunID:   req.GetString("run_id", ""),
	}
}

func filtersFrom(req mcp.CallToolRequest) json.RawMessage {
	raw := req.GetString("filters", "")
	if raw == "" {
		return nil
	}
	return json.RawMessage(raw)
}

// respond serializes the envelope as the tool's text content.
func (mt *MemoryTools) respond(env dispatch.Envelope) (*mcp.CallToolResult, error) {
	payload, err := json.Marshal(env)
	if err != nil {
		mt.logger.Error("envelope serialization failed", "error", err)
		return mcp.NewToolResultError("failed to serialize response"), nil
	}

	return mcp.NewToolResultText(string(payload)), nil
}

func (mt *MemoryTools) addTool() mcp.Tool {
	opts := []mcp.ToolOption{
		mcp.WithDescription("Store a piece of information as a long-term memory. The content is analyzed and only durable facts are kept."),
		mcp.WithString("content", mcp.Required(), mcp.Description("The information to remember")),
		mcp.WithString("metadata", mcp.Description("Optional JSON object with metadata to attach to the stored memories")),
		mcp.WithBoolean("infer", mcp.Description("When false, store the content verbatim instead of extracting facts")),
	}
	opts = append(opts, scopeOptions()...)
	return mcp.NewTool("add_memory", opts...)
}

func (mt *MemoryTools) handleAdd(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	r := dispatch.Request{
		Op:       dispatch.OpAdd,
		Messages: []mem0.Message{{Role: "user", Content: req.GetString("content", "")}},
		Scope:    scopeFrom(req),
	}

	if raw := req.GetString("metadata", ""); raw != "" {
		if !gjson.Valid(raw) {
			return mt.respond(dispatch.Errored(dispatch.OpAdd, "metadata must be a valid JSON object"))
		}

		var meta map[string]any
		if err := json.Unmarshal([]byte(raw), &meta); err != nil {
			return mt.respond(dispatch.Errored(dispatch.OpAdd, "metadata must be a JSON object"))
		}
		r.Metadata = meta
	}

	if args := req.GetArguments(); args != nil {
		if _, present := args["infer"]; present {
			infer := req.GetBool("infer", true)
			r.Infer = &infer
		}
	}

	return mt.respond(mt.dispatcher.Dispatch(ctx, r))
}

func (mt *MemoryTools) searchTool() mcp.Tool {
	opts := []mcp.ToolOption{
		mcp.WithDescription("Semantically search stored memories and return the most relevant ones."),
		mcp.WithString("query", mcp.Required(), mcp.Description("What to look for")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of results to return")),
		mcp.WithNumber("threshold", mcp.Description("Minimum similarity score for a result to be included")),
		mcp.WithString("filters", mcp.Description("Optional JSON filter tree narrowing the search")),
	}
	opts = append(opts, scopeOptions()...)
	return mcp.NewTool("search_memory", opts...)
}

func (mt *MemoryTools) handleSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()

	r := dispatch.Request{
		Op:      dispatch.OpSearch,
		Query:   req.GetString("query", ""),
		Scope:   scopeFrom(req),
		Limit:   utils.ToInt(args["limit"], 0),
		Filters: filtersFrom(req),
	}

	if raw, present := args["threshold"]; present {
		threshold := utils.ToFloat(raw, 0)
		r.Threshold = &threshold
	}

	return mt.respond(mt.dispatcher.Dispatch(ctx, r))
}

func (mt *MemoryTools) getTool() mcp.Tool {
	return mcp.NewTool("get_memory",
		mcp.WithDescription("Fetch a single memory by its id."),
		mcp.WithString("memory_id", mcp.Required(), mcp.Description("The id of the memory")),
	)
}

func (mt *MemoryTools) handleGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mt.respond(mt.dispatcher.Dispatch(ctx, dispatch.Request{
		Op:       dispatch.OpGet,
		MemoryID: req.GetString("memory_id", ""),
	}))
}

func (mt *MemoryTools) getAllTool() mcp.Tool {
	opts := []mcp.ToolOption{
		mcp.WithDescription("List all memories for a scope, optionally filtered."),
		mcp.WithNumber("limit", mcp.Description("Maximum number of memories to return")),
		mcp.WithString("filters", mcp.Description("Optional JSON filter tree narrowing the listing")),
	}
	opts = append(opts, scopeOptions()...)
	return mcp.NewTool("get_all_memories", opts...)
}

func (mt *MemoryTools) handleGetAll(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mt.respond(mt.dispatcher.Dispatch(ctx, dispatch.Request{
		Op:      dispatch.OpGetAll,
		Scope:   scopeFrom(req),
		Limit:   utils.ToInt(req.GetArguments()["limit"], 0),
		Filters: filtersFrom(req),
	}))
}

func (mt *MemoryTools) updateTool() mcp.Tool {
	return mcp.NewTool("update_memory",
		mcp.WithDescription("Replace the text of an existing memory."),
		mcp.WithString("memory_id", mcp.Required(), mcp.Description("The id of the memory to update")),
		mcp.WithString("text", mcp.Required(), mcp.Description("The new memory text")),
	)
}

func (mt *MemoryTools) handleUpdate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mt.respond(mt.dispatcher.Dispatch(ctx, dispatch.Request{
		Op:       dispatch.OpUpdate,
		MemoryID: req.GetString("memory_id", ""),
		Text:     req.GetString("text", ""),
	}))
}

func (mt *MemoryTools) deleteTool() mcp.Tool {
	return mcp.NewTool("delete_memory",
		mcp.WithDescription("Delete a single memory by its id."),
		mcp.WithString("memory_id", mcp.Required(), mcp.Description("The id of the memory to delete")),
	)
}

func (mt *MemoryTools) handleDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mt.respond(mt.dispatcher.Dispatch(ctx, dispatch.Request{
		Op:       dispatch.OpDelete,
		MemoryID: req.GetString("memory_id", ""),
	}))
}

func (mt *MemoryTools) deleteAllTool() mcp.Tool {
	opts := []mcp.ToolOption{
		mcp.WithDescription("Delete every memory in a scope. At least one scope identifier is required."),
	}
	opts = append(opts, scopeOptions()...)
	return mcp.NewTool("delete_all_memories", opts...)
}

func (mt *MemoryTools) handleDeleteAll(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mt.respond(mt.dispatcher.Dispatch(ctx, dispatch.Request{
		Op:    dispatch.OpDeleteAll,
		Scope: scopeFrom(req),
	}))
}

func (mt *MemoryTools) historyTool() mcp.Tool {
	return mcp.NewTool("get_memory_history",
		mcp.WithDescription("Retrieve the change history of a memory: additions, updates, and deletions."),
		mcp.WithString("memory_id", mcp.Required(), mcp.Description("The id of the memory")),
	)
}

func (mt *MemoryTools) handleHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mt.respond(mt.dispatcher.Dispatch(ctx, dispatch.Request{
		Op:       dispatch.OpHistory,
		MemoryID: req.GetString("memory_id", ""),
	}))
}
