package mem0

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/theapemachine/mem0-go/pkg/errors"
)

// RestClient talks to a self-hosted Mem0 server over HTTP. All persistence,
// inference, and filtering happens server-side; this client only shapes
// requests and normalizes responses.
type RestClient struct {
	Endpoint string // e.g. http://localhost:8888

	apiKey       string
	serverConfig []byte
	httpClient   *http.Client

	// configure is pushed to the server once, lazily, before the first
	// operation. Guarded so concurrent first calls configure exactly once.
	configMu   sync.Mutex
	configured bool
}

// RestOption customizes a RestClient.
type RestOption func(*RestClient)

// WithAPIKey sets a bearer token for servers that require one.
func WithAPIKey(key string) RestOption {
	return func(c *RestClient) { c.apiKey = key }
}

// WithServerConfig sets the provider configuration pushed to /configure
// before the first operation.
func WithServerConfig(payload []byte) RestOption {
	return func(c *RestClient) { c.serverConfig = payload }
}

// WithHTTPClient swaps the underlying http.Client, mainly for tests.
func WithHTTPClient(hc *http.Client) RestOption {
	return func(c *RestClient) { c.httpClient = hc }
}

// NewRestClient returns a client with sane defaults. The request timeout caps
// any single HTTP exchange; per-operation timeouts are enforced above this
// layer by the dispatcher.
func NewRestClient(endpoint string, opts ...RestOption) *RestClient {
	client := &RestClient{
		Endpoint:   endpoint,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// ensureConfigured pushes the provider configuration to the server exactly
// once. A failed push is retried on the next call rather than poisoning the
// client forever.
func (client *RestClient) ensureConfigured(ctx context.Context) error {
	if client.serverConfig == nil {
		return nil
	}

	client.configMu.Lock()
	defer client.configMu.Unlock()

	if client.configured {
		return nil
	}

	log.Debug("configuring memory server", "endpoint", client.Endpoint)

	if _, err := client.do(ctx, http.MethodPost, "/configure", client.serverConfig, nil); err != nil {
		return errors.NewClient("configure", err)
	}

	client.configured = true
	return nil
}

func (client *RestClient) do(ctx context.Context, method, path string, body []byte, query url.Values) ([]byte, error) {
	endpoint := client.Endpoint + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if client.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+client.apiKey)
	}

	resp, err := client.httpClient.Do(req)
	if err != nil {
		return nil, err
	}

	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 300 {
		return nil, &statusError{
			code: resp.StatusCode,
			msg:  fmt.Sprintf("mem0: %s %s status %s: %s", method, path, resp.Status, bytes.TrimSpace(payload)),
		}
	}

	return payload, nil
}

type statusError struct {
	code int
	msg  string
}

func (e *statusError) Error() string {
	return e.msg
}

// doOp runs a request after lazy configuration and maps transport failures
// into the client error taxonomy.
func (client *RestClient) doOp(ctx context.Context, op, method, path string, body []byte, query url.Values) ([]byte, error) {
	if err := client.ensureConfigured(ctx); err != nil {
		return nil, err
	}

	payload, err := client.do(ctx, method, path, body, query)
	if err == nil {
		return payload, nil
	}

	if isNotFoundStatus(err) {
		return nil, errors.NewNotFound(op, err)
	}

	return nil, errors.NewClient(op, err)
}

func isNotFoundStatus(err error) bool {
	var se *statusError
	return stderrors.As(err, &se) && se.code == http.StatusNotFound
}

// Add submits messages for ingestion. The server may create, update, or
// delete related memories as it sees fit.
func (client *RestClient) Add(ctx context.Context, req AddRequest) (*AddResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, errors.NewClient("add", err)
	}

	payload, err := client.doOp(ctx, "add", http.MethodPost, "/memories", body, nil)
	if err != nil {
		return nil, err
	}

	return normalizeAddResult(payload), nil
}

// Search runs a semantic query over the scoped memories.
func (client *RestClient) Search(ctx context.Context, req SearchRequest) ([]Record, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, errors.NewClient("search", err)
	}

	payload, err := client.doOp(ctx, "search", http.MethodPost, "/search", body, nil)
	if err != nil {
		return nil, err
	}

	return normalizeRecords(payload), nil
}

// Get retrieves a single memory by id.
func (client *RestClient) Get(ctx context.Context, memoryID string) (*Record, error) {
	payload, err := client.doOp(ctx, "get", http.MethodGet, "/memories/"+url.PathEscape(memoryID), nil, nil)
	if err != nil {
		return nil, err
	}

	record := normalizeRecord(parseBody(payload))
	return &record, nil
}

// GetAll lists memories for a scope.
func (client *RestClient) GetAll(ctx context.Context, req GetAllRequest) ([]Record, error) {
	query := scopeQuery(req.Scope)

	if req.Limit > 0 {
		query.Set("limit", strconv.Itoa(req.Limit))
	}

	if len(req.Filters) > 0 {
		query.Set("filters", string(req.Filters))
	}

	payload, err := client.doOp(ctx, "get_all", http.MethodGet, "/memories", nil, query)
	if err != nil {
		return nil, err
	}

	return normalizeRecords(payload), nil
}

// Update replaces a memory's text.
func (client *RestClient) Update(ctx context.Context, memoryID, text string) (*Record, error) {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, errors.NewClient("update", err)
	}

	payload, err := client.doOp(ctx, "update", http.MethodPut, "/memories/"+url.PathEscape(memoryID), body, nil)
	if err != nil {
		return nil, err
	}

	record := normalizeRecord(parseBody(payload))
	return &record, nil
}

// Delete removes a memory by id.
func (client *RestClient) Delete(ctx context.Context, memoryID string) error {
	_, err := client.doOp(ctx, "delete", http.MethodDelete, "/memories/"+url.PathEscape(memoryID), nil, nil)
	return err
}

// DeleteAll removes every memory matching the scope.
func (client *RestClient) DeleteAll(ctx context.Context, scope Scope) error {
	_, err := client.doOp(ctx, "delete_all", http.MethodDelete, "/memories", nil, scopeQuery(scope))
	return err
}

// History returns the change log for a memory.
func (client *RestClient) History(ctx context.Context, memoryID string) ([]HistoryEntry, error) {
	payload, err := client.doOp(ctx, "history", http.MethodGet, "/memories/"+url.PathEscape(memoryID)+"/history", nil, nil)
	if err != nil {
		return nil, err
	}

	return normalizeHistory(payload), nil
}

// Reset wipes the entire memory store, every scope included. Exposed for
// operational tooling only; no tool handler routes here.
func (client *RestClient) Reset(ctx context.Context) error {
	_, err := client.doOp(ctx, "reset", http.MethodPost, "/reset", nil, nil)
	return err
}

// Close drops idle connections. The server holds no per-client state worth
// tearing down explicitly.
func (client *RestClient) Close(ctx context.Context) error {
	client.httpClient.CloseIdleConnections()
	return nil
}

func scopeQuery(scope Scope) url.Values {
	query := url.Values{}

	if scope.UserID != "" {
		query.Set("user_id", scope.UserID)
	}
	if scope.AgentID != "" {
		query.Set("agent_id", scope.AgentID)
	}
	if scope.AppID != "" {
		query.Set("app_id", scope.AppID)
	}
	if scope.RunID != "" {
		query.Set("run_id", scope.RunID)
	}

	return query
}
