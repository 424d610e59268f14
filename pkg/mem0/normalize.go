package mem0

import (
	"github.com/tidwall/gjson"
)

// The server is not entirely consistent about result shapes: some endpoints
// return a bare array, others wrap it in {"results": [...]}, and older
// versions use alternate key names (memory_id/text/similarity/timestamp).
// Normalization smooths all of that into Record.

func normalizeRecord(r gjson.Result) Record {
	rec := Record{
		ID:        firstString(r, "id", "memory_id"),
		Memory:    firstString(r, "memory", "text"),
		Score:     firstFloat(r, "score", "similarity"),
		CreatedAt: firstString(r, "created_at", "timestamp"),
		UpdatedAt: r.Get("updated_at").String(),
		UserID:    r.Get("user_id").String(),
		AgentID:   r.Get("agent_id").String(),
		RunID:     r.Get("run_id").String(),
		Metadata:  map[string]any{},
	}

	if meta := r.Get("metadata"); meta.IsObject() {
		rec.Metadata = meta.Value().(map[string]any)
	}

	return rec
}

func normalizeRecords(body []byte) []Record {
	root := gjson.ParseBytes(body)

	items := root
	if wrapped := root.Get("results"); wrapped.Exists() {
		items = wrapped
	}

	records := make([]Record, 0)

	items.ForEach(func(_, r gjson.Result) bool {
		if r.IsObject() {
			records = append(records, normalizeRecord(r))
		}
		return true
	})

	return records
}

func normalizeHistory(body []byte) []HistoryEntry {
	root := gjson.ParseBytes(body)

	items := root
	if wrapped := root.Get("results"); wrapped.Exists() {
		items = wrapped
	}

	entries := make([]HistoryEntry, 0)

	items.ForEach(func(_, r gjson.Result) bool {
		if !r.IsObject() {
			return true
		}
		entries = append(entries, HistoryEntry{
			ID:        r.Get("id").String(),
			MemoryID:  r.Get("memory_id").String(),
			OldMemory: r.Get("old_memory").String(),
			NewMemory: r.Get("new_memory").String(),
			Event:     r.Get("event").String(),
			CreatedAt: r.Get("created_at").String(),
			UpdatedAt: r.Get("updated_at").String(),
			IsDeleted: r.Get("is_deleted").Bool(),
		})
		return true
	})

	return entries
}

func normalizeAddResult(body []byte) *AddResult {
	root := gjson.ParseBytes(body)

	out := &AddResult{Results: make([]AddEvent, 0)}

	items := root.Get("results")
	if !items.Exists() {
		items = root
	}

	items.ForEach(func(_, r gjson.Result) bool {
		if !r.IsObject() {
			return true
		}
		out.Results = append(out.Results, AddEvent{
			ID:     firstString(r, "id", "memory_id"),
			Memory: firstString(r, "memory", "text"),
			Event:  r.Get("event").String(),
		})
		return true
	})

	if relations := root.Get("relations"); relations.Exists() {
		out.Relations = relations.Value()
	}

	return out
}

func parseBody(body []byte) gjson.Result {
	return gjson.ParseBytes(body)
}

func firstString(r gjson.Result, keys ...string) string {
	for _, key := range keys {
		if v := r.Get(key); v.Exists() && v.String() != "" {
			return v.String()
		}
	}
	return ""
}

func firstFloat(r gjson.Result, keys ...string) float64 {
	for _, key := range keys {
		if v := r.Get(key); v.Exists() {
			return v.Float()
		}
	}
	return 0
}
