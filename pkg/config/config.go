/*
Package config turns the host-supplied credential map into a validated
configuration: the memory server endpoint, the execution mode, per-operation
timeout overrides, and the provider blocks (LLM, embedder, vector store,
optional graph store, optional reranker) that are forwarded to the server.
*/
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/theapemachine/mem0-go/pkg/errors"
)

// ProviderBlock is one provider configuration, e.g. {"provider": "openai",
// "config": {...}}. Raw keeps the original JSON for forwarding.
type ProviderBlock struct {
	Provider string
	Raw      json.RawMessage
}

// Timeouts carries the per-operation read timeouts plus the shutdown drain
// window.
type Timeouts struct {
	Search  time.Duration
	Get     time.Duration
	GetAll  time.Duration
	History time.Duration
	Drain   time.Duration
}

// Credentials is the parsed host configuration for one provider instance.
type Credentials struct {
	Endpoint string
	APIKey   string

	AsyncMode   bool
	EnableGraph bool

	LLM         *ProviderBlock
	Embedder    *ProviderBlock
	VectorStore *ProviderBlock
	GraphStore  *ProviderBlock
	Reranker    *ProviderBlock

	Timeouts    Timeouts
	MaxInFlight int

	source map[string]any
}

// FromMap parses and validates a credential map as handed over by the host.
// Provider blocks may arrive as JSON strings (possibly fenced in markdown
// code blocks) or as already-decoded maps.
func FromMap(creds map[string]any) (*Credentials, error) {
	endpoint, _ := creds["server_endpoint"].(string)
	if endpoint == "" {
		endpoint = viper.GetString("mem0.endpoint")
	}
	if endpoint == "" {
		return nil, errors.NewValidation("server_endpoint", "memory server endpoint is required")
	}

	cfg := &Credentials{
		Endpoint:    strings.TrimRight(endpoint, "/"),
		AsyncMode:   asBool(creds["async_mode"]),
		EnableGraph: asBool(creds["enable_graph"]),
		Timeouts:    timeoutsFrom(creds),
		MaxInFlight: DefaultMaxInFlight,
		source:      creds,
	}

	if key, ok := creds["api_key"].(string); ok {
		cfg.APIKey = key
	}

	if n, ok := creds["max_in_flight"]; ok {
		if parsed := asInt(n); parsed > 0 {
			cfg.MaxInFlight = parsed
		}
	}

	var err error

	if cfg.LLM, err = parseProviderBlock(creds["local_llm_json"], "local_llm_json"); err != nil {
		return nil, err
	}

	if cfg.Embedder, err = parseProviderBlock(creds["local_embedder_json"], "local_embedder_json"); err != nil {
		return nil, err
	}

	if cfg.VectorStore, err = parseProviderBlock(creds["local_vector_db_json"], "local_vector_db_json"); err != nil {
		return nil, err
	}

	if cfg.GraphStore, err = parseProviderBlock(creds["local_graph_db_json"], "local_graph_db_json"); err != nil {
		return nil, err
	}

	if cfg.Reranker, err = parseProviderBlock(creds["local_reranker_json"], "local_reranker_json"); err != nil {
		return nil, err
	}

	if cfg.EnableGraph && cfg.GraphStore == nil {
		return nil, errors.NewValidation("local_graph_db_json", "graph mode enabled but no graph store configured")
	}

	return cfg, nil
}

// Hash is a stable digest of the raw credential map, used as the client
// cache key. The digest is one-way and never logged.
func (cfg *Credentials) Hash() string {
	serialized, err := json.Marshal(cfg.source)
	if err != nil {
		return ""
	}

	sum := sha256.Sum256(serialized)
	return hex.EncodeToString(sum[:])
}

// ServerConfig assembles the /configure payload forwarded to the memory
// server.
func (cfg *Credentials) ServerConfig() ([]byte, error) {
	payload := []byte(`{"version":"v1.1"}`)

	var err error

	set := func(key string, block *ProviderBlock) {
		if err != nil || block == nil {
			return
		}
		payload, err = sjson.SetRawBytes(payload, key, block.Raw)
	}

	set("llm", cfg.LLM)
	set("embedder", cfg.Embedder)
	set("vector_store", cfg.VectorStore)
	set("graph_store", cfg.GraphStore)
	set("reranker", cfg.Reranker)

	if err != nil {
		return nil, fmt.Errorf("failed to assemble server config: %w", err)
	}

	if payload, err = sjson.SetBytes(payload, "custom_fact_extraction_prompt", FactExtractionPrompt); err != nil {
		return nil, fmt.Errorf("failed to assemble server config: %w", err)
	}

	return payload, nil
}

// parseProviderBlock accepts a JSON string or a decoded map and validates
// that it carries a provider name and a config object. A nil or blank value
// yields a nil block, which is fine for the optional providers.
func parseProviderBlock(raw any, field string) (*ProviderBlock, error) {
	var text string

	switch v := raw.(type) {
	case nil:
		return nil, nil
	case string:
		text = strings.TrimSpace(v)
		if text == "" {
			return nil, nil
		}
		text = stripCodeFence(text)
	case map[string]any:
		serialized, err := json.Marshal(v)
		if err != nil {
			return nil, errors.NewValidation(field, "not a serializable object")
		}
		text = string(serialized)
	default:
		return nil, errors.NewValidation(field, "must be a JSON object or JSON string")
	}

	if !gjson.Valid(text) {
		return nil, errors.NewValidation(field, "is not valid JSON")
	}

	parsed := gjson.Parse(text)
	if !parsed.IsObject() {
		return nil, errors.NewValidation(field, "must be a JSON object")
	}

	provider := parsed.Get("provider").String()
	if provider == "" || !parsed.Get("config").IsObject() {
		return nil, errors.NewValidation(field, "must include 'provider' and 'config' object")
	}

	return &ProviderBlock{Provider: provider, Raw: json.RawMessage(text)}, nil
}

// stripCodeFence removes markdown fences users tend to paste around JSON.
func stripCodeFence(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}

	lines := strings.Split(text, "\n")
	if len(lines) > 0 {
		lines = lines[1:]
	}
	if len(lines) > 0 && strings.HasPrefix(strings.TrimSpace(lines[len(lines)-1]), "```") {
		lines = lines[:len(lines)-1]
	}

	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func timeoutsFrom(creds map[string]any) Timeouts {
	timeouts := Timeouts{
		Search:  viper.GetDuration("timeouts.search"),
		Get:     viper.GetDuration("timeouts.get"),
		GetAll:  viper.GetDuration("timeouts.get_all"),
		History: viper.GetDuration("timeouts.history"),
		Drain:   viper.GetDuration("timeouts.drain"),
	}

	if timeouts.Search <= 0 {
		timeouts.Search = DefaultSearchTimeout
	}
	if timeouts.Get <= 0 {
		timeouts.Get = DefaultGetTimeout
	}
	if timeouts.GetAll <= 0 {
		timeouts.GetAll = DefaultGetAllTimeout
	}
	if timeouts.History <= 0 {
		timeouts.History = DefaultHistoryTimeout
	}
	if timeouts.Drain <= 0 {
		timeouts.Drain = DefaultDrainTimeout
	}

	// Per-credential overrides, in seconds.
	if v, ok := creds["search_timeout"]; ok {
		if secs := asInt(v); secs > 0 {
			timeouts.Search = time.Duration(secs) * time.Second
		}
	}
	if v, ok := creds["get_timeout"]; ok {
		if secs := asInt(v); secs > 0 {
			timeouts.Get = time.Duration(secs) * time.Second
		}
	}
	if v, ok := creds["get_all_timeout"]; ok {
		if secs := asInt(v); secs > 0 {
			timeouts.GetAll = time.Duration(secs) * time.Second
		}
	}
	if v, ok := creds["history_timeout"]; ok {
		if secs := asInt(v); secs > 0 {
			timeouts.History = time.Duration(secs) * time.Second
		}
	}

	return timeouts
}

func asBool(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		lowered := strings.ToLower(strings.TrimSpace(b))
		return lowered == "true" || lowered == "1" || lowered == "yes"
	case float64:
		return b != 0
	}
	return false
}

func asInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	case string:
		var parsed int
		if _, err := fmt.Sscanf(strings.TrimSpace(n), "%d", &parsed); err == nil {
			return parsed
		}
	}
	return 0
}
