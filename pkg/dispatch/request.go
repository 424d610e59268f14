package dispatch

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/cohesivestack/valgo"

	"github.com/theapemachine/mem0-go/pkg/errors"
	"github.com/theapemachine/mem0-go/pkg/mem0"
)

// Operation names one of the memory operations the dispatcher routes.
type Operation string

const (
	OpAdd       Operation = "add"
	OpSearch    Operation = "search"
	OpGet       Operation = "get"
	OpGetAll    Operation = "get_all"
	OpUpdate    Operation = "update"
	OpDelete    Operation = "delete"
	OpDeleteAll Operation = "delete_all"
	OpHistory   Operation = "history"
)

// IsWrite reports whether the operation mutates the store. Writes are the
// ones that become fire-and-forget in async mode.
func (op Operation) IsWrite() bool {
	switch op {
	case OpAdd, OpUpdate, OpDelete, OpDeleteAll:
		return true
	}
	return false
}

// NeedsScope reports whether the operation requires at least one entity
// identifier.
func (op Operation) NeedsScope() bool {
	switch op {
	case OpAdd, OpSearch, OpGetAll, OpDeleteAll:
		return true
	}
	return false
}

// NeedsMemoryID reports whether the operation targets a single memory by id.
func (op Operation) NeedsMemoryID() bool {
	switch op {
	case OpGet, OpUpdate, OpDelete, OpHistory:
		return true
	}
	return false
}

// EmptyResult is the degraded default an ERROR envelope carries for this
// operation: an empty list for multi-record reads, null for everything else.
func (op Operation) EmptyResult() any {
	switch op {
	case OpSearch, OpGetAll, OpHistory:
		return []any{}
	}
	return nil
}

func (op Operation) acceptedMessage() string {
	switch op {
	case OpAdd:
		return "memory add accepted, processing in the background"
	case OpUpdate:
		return "memory update accepted, processing in the background"
	case OpDelete:
		return "memory delete accepted, processing in the background"
	case OpDeleteAll:
		return "scope-wide delete accepted, processing in the background"
	}
	return "operation accepted, processing in the background"
}

// Request is one operation invocation as handed over by the tool layer,
// before it is translated into a typed client call.
type Request struct {
	Op       Operation
	MemoryID string

	Messages []mem0.Message
	Query    string
	Text     string

	Scope     mem0.Scope
	Limit     int
	Filters   json.RawMessage
	Threshold *float64

	// Timeout overrides the operation's configured read timeout when > 0.
	Timeout time.Duration

	Metadata   map[string]any
	Infer      *bool
	MemoryType string
}

// Validate rejects a request before it reaches the loop: unknown operation,
// missing memory id, blank query or replacement text, missing scope, or a
// filter tree that does not parse.
func (r Request) Validate() error {
	switch r.Op {
	case OpAdd, OpSearch, OpGet, OpGetAll, OpUpdate, OpDelete, OpDeleteAll, OpHistory:
	default:
		return errors.NewValidation("operation", "unknown operation: "+string(r.Op))
	}

	v := valgo.Is(valgo.String(string(r.Op), "operation").Not().Blank())

	if r.Op.NeedsMemoryID() {
		v.Is(valgo.String(strings.TrimSpace(r.MemoryID), "memory_id").Not().Blank())
	}

	if r.Op == OpSearch {
		v.Is(valgo.String(strings.TrimSpace(r.Query), "query").Not().Blank())
	}

	if r.Op == OpUpdate {
		v.Is(valgo.String(strings.TrimSpace(r.Text), "text").Not().Blank())
	}

	if !v.Valid() {
		for field, valueErr := range v.Errors() {
			msgs := valueErr.Messages()
			if len(msgs) > 0 {
				return errors.NewValidation(field, msgs[0])
			}
			return errors.NewValidation(field, "invalid value")
		}
	}

	if r.Op.NeedsScope() && r.Scope.Empty() {
		return errors.NewValidation("scope", "at least one of user_id, agent_id, app_id, or run_id is required")
	}

	if len(r.Filters) > 0 {
		if err := ValidateFilters(r.Filters); err != nil {
			return err
		}
	}

	return nil
}

// HasContent reports whether an add request carries any non-blank message
// content. Blank adds are skipped before submission rather than wasting a
// round trip on the store's inference layer.
func (r Request) HasContent() bool {
	for _, msg := range r.Messages {
		if strings.TrimSpace(msg.Content) != "" {
			return true
		}
	}
	return false
}
