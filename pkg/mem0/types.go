/*
Package mem0 wraps a self-hosted Mem0 memory server behind a uniform operation
surface: add, search, get, get_all, update, delete, delete_all, and history.
The wrapper hides the server's parameter shapes and normalizes its result
structures; it deliberately does not reimplement any memory or retrieval
logic, which stays on the server side.
*/
package mem0

import "encoding/json"

// Message is a single conversational turn submitted to Add. The server's
// inference layer decides which facts, if any, become memories.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Scope carries the entity identifiers that partition memories. Scoped
// operations require at least one of them.
type Scope struct {
	UserID  string `json:"user_id,omitempty"`
	AgentID string `json:"agent_id,omitempty"`
	AppID   string `json:"app_id,omitempty"`
	RunID   string `json:"run_id,omitempty"`
}

// Empty reports whether no entity identifier is set.
func (s Scope) Empty() bool {
	return s.UserID == "" && s.AgentID == "" && s.AppID == "" && s.RunID == ""
}

// Record is the normalized shape of a stored memory as returned by read
// operations.
type Record struct {
	ID        string         `json:"id"`
	Memory    string         `json:"memory"`
	Score     float64        `json:"score,omitempty"`
	Metadata  map[string]any `json:"metadata"`
	CreatedAt string         `json:"created_at"`
	UpdatedAt string         `json:"updated_at,omitempty"`
	UserID    string         `json:"user_id,omitempty"`
	AgentID   string         `json:"agent_id,omitempty"`
	RunID     string         `json:"run_id,omitempty"`
}

// HistoryEntry is one change event in a memory's audit trail.
type HistoryEntry struct {
	ID        string `json:"id"`
	MemoryID  string `json:"memory_id"`
	OldMemory string `json:"old_memory"`
	NewMemory string `json:"new_memory"`
	Event     string `json:"event"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at,omitempty"`
	IsDeleted bool   `json:"is_deleted"`
}

// AddEvent is one entry in an add result. The server may report ADD, UPDATE,
// DELETE, or NONE events for related memories, so a single Add call does not
// map 1:1 to a single created memory.
type AddEvent struct {
	ID     string `json:"id"`
	Memory string `json:"memory"`
	Event  string `json:"event"`
}

// AddResult is the outcome of an Add call, possibly including graph relations
// when the graph store is enabled.
type AddResult struct {
	Results   []AddEvent `json:"results"`
	Relations any        `json:"relations,omitempty"`
}

// AddRequest carries everything the server needs to ingest new messages.
type AddRequest struct {
	Messages []Message `json:"messages"`
	Scope
	Metadata       map[string]any `json:"metadata,omitempty"`
	Infer          *bool          `json:"infer,omitempty"`
	MemoryType     string         `json:"memory_type,omitempty"`
	Prompt         string         `json:"prompt,omitempty"`
	ExpirationDate string         `json:"expiration_date,omitempty"`
}

// SearchRequest is a semantic search over the scoped memories. Filters, when
// present, is a validated boolean filter tree forwarded verbatim.
type SearchRequest struct {
	Query string `json:"query"`
	Scope
	Limit     int             `json:"limit,omitempty"`
	Filters   json.RawMessage `json:"filters,omitempty"`
	Threshold *float64        `json:"threshold,omitempty"`
}

// GetAllRequest lists memories for a scope, optionally filtered and limited.
type GetAllRequest struct {
	Scope
	Limit   int             `json:"limit,omitempty"`
	Filters json.RawMessage `json:"filters,omitempty"`
}
