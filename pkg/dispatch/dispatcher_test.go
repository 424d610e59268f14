package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theapemachine/mem0-go/pkg/config"
	"github.com/theapemachine/mem0-go/pkg/errors"
	"github.com/theapemachine/mem0-go/pkg/loop"
	"github.com/theapemachine/mem0-go/pkg/mem0"
)

// fakeClient lets each test script the store's behavior per operation.
type fakeClient struct {
	addFn     func(ctx context.Context, req mem0.AddRequest) (*mem0.AddResult, error)
	searchFn  func(ctx context.Context, req mem0.SearchRequest) ([]mem0.Record, error)
	getFn     func(ctx context.Context, memoryID string) (*mem0.Record, error)
	getAllFn  func(ctx context.Context, req mem0.GetAllRequest) ([]mem0.Record, error)
	updateFn  func(ctx context.Context, memoryID, text string) (*mem0.Record, error)
	deleteFn  func(ctx context.Context, memoryID string) error
	deleteAll func(ctx context.Context, scope mem0.Scope) error
	historyFn func(ctx context.Context, memoryID string) ([]mem0.HistoryEntry, error)
}

func (f *fakeClient) Add(ctx context.Context, req mem0.AddRequest) (*mem0.AddResult, error) {
	if f.addFn == nil {
		return &mem0.AddResult{}, nil
	}
	return f.addFn(ctx, req)
}

func (f *fakeClient) Search(ctx context.Context, req mem0.SearchRequest) ([]mem0.Record, error) {
	if f.searchFn == nil {
		return nil, nil
	}
	return f.searchFn(ctx, req)
}

func (f *fakeClient) Get(ctx context.Context, memoryID string) (*mem0.Record, error) {
	if f.getFn == nil {
		return nil, nil
	}
	return f.getFn(ctx, memoryID)
}

func (f *fakeClient) GetAll(ctx context.Context, req mem0.GetAllRequest) ([]mem0.Record, error) {
	if f.getAllFn == nil {
		return nil, nil
	}
	return f.getAllFn(ctx, req)
}

func (f *fakeClient) Update(ctx context.Context, memoryID, text string) (*mem0.Record, error) {
	if f.updateFn == nil {
		return nil, nil
	}
	return f.updateFn(ctx, memoryID, text)
}

func (f *fakeClient) Delete(ctx context.Context, memoryID string) error {
	if f.deleteFn == nil {
		return nil
	}
	return f.deleteFn(ctx, memoryID)
}

func (f *fakeClient) DeleteAll(ctx context.Context, scope mem0.Scope) error {
	if f.deleteAll == nil {
		return nil
	}
	return f.deleteAll(ctx, scope)
}

func (f *fakeClient) History(ctx context.Context, memoryID string) ([]mem0.HistoryEntry, error) {
	if f.historyFn == nil {
		return nil, nil
	}
	return f.historyFn(ctx, memoryID)
}

func (f *fakeClient) Close(ctx context.Context) error { return nil }

func testCredentials(async bool) *config.Credentials {
	return &config.Credentials{
		Endpoint:  "http://localhost:8888",
		AsyncMode: async,
		Timeouts: config.Timeouts{
			Search:  config.DefaultSearchTimeout,
			Get:     config.DefaultGetTimeout,
			GetAll:  config.DefaultGetAllTimeout,
			History: config.DefaultHistoryTimeout,
			Drain:   config.DefaultDrainTimeout,
		},
		MaxInFlight: config.DefaultMaxInFlight,
	}
}

func newTestDispatcher(t *testing.T, client mem0.Client, async bool) (*Dispatcher, *loop.Manager) {
	t.Helper()

	mgr := loop.NewManager()
	t.Cleanup(func() { mgr.Shutdown(time.Second) })

	return New(client, mgr, testCredentials(async)), mgr
}

func TestSyncSearchSuccess(t *testing.T) {
	client := &fakeClient{
		searchFn: func(ctx context.Context, req mem0.SearchRequest) ([]mem0.Record, error) {
			assert.Equal(t, "favorite color", req.Query)
			assert.Equal(t, config.DefaultTopK, req.Limit)
			return []mem0.Record{
				{ID: "m1", Memory: "likes blue", Score: 0.9},
				{ID: "m2", Memory: "likes teal", Score: 0.7},
				{ID: "m3", Memory: "dislikes beige", Score: 0.4},
			}, nil
		},
	}

	d, _ := newTestDispatcher(t, client, false)

	env := d.Dispatch(context.Background(), Request{
		Op:    OpSearch,
		Query: "favorite color",
		Scope: mem0.Scope{UserID: "u1"},
	})

	assert.Equal(t, StatusSuccess, env.Status)
	records, ok := env.Results.([]mem0.Record)
	require.True(t, ok)
	require.Len(t, records, 3)
	assert.Equal(t, "likes blue", records[0].Memory)
}

func TestAsyncDeleteAllReturnsQuickly(t *testing.T) {
	slow := make(chan struct{})
	t.Cleanup(func() { close(slow) })

	client := &fakeClient{
		deleteAll: func(ctx context.Context, scope mem0.Scope) error {
			select {
			case <-slow:
			case <-ctx.Done():
			}
			return nil
		},
	}

	d, _ := newTestDispatcher(t, client, true)

	begin := time.Now()
	env := d.Dispatch(context.Background(), Request{
		Op:    OpDeleteAll,
		Scope: mem0.Scope{UserID: "u1"},
	})

	assert.Equal(t, StatusAccepted, env.Status)
	assert.Less(t, time.Since(begin), time.Second)
}

func TestSearchDegradesToEmptyListOnError(t *testing.T) {
	client := &fakeClient{
		searchFn: func(ctx context.Context, req mem0.SearchRequest) ([]mem0.Record, error) {
			return nil, errors.NewClient("search", errors.NewError("connection refused"))
		},
	}

	d, _ := newTestDispatcher(t, client, true)

	env := d.Dispatch(context.Background(), Request{
		Op:    OpSearch,
		Query: "anything",
		Scope: mem0.Scope{UserID: "u1"},
	})

	assert.Equal(t, StatusError, env.Status)
	assert.Equal(t, []any{}, env.Results)
	assert.Equal(t, int64(1), d.Metrics().TotalDegraded)
}

func TestGetDegradesToNull(t *testing.T) {
	client := &fakeClient{
		getFn: func(ctx context.Context, memoryID string) (*mem0.Record, error) {
			return nil, errors.NewClient("get", errors.NewError("boom"))
		},
	}

	d, _ := newTestDispatcher(t, client, true)

	env := d.Dispatch(context.Background(), Request{Op: OpGet, MemoryID: "m1"})

	assert.Equal(t, StatusError, env.Status)
	assert.Nil(t, env.Results)
}

func TestGetNotFoundIsCleanError(t *testing.T) {
	client := &fakeClient{
		getFn: func(ctx context.Context, memoryID string) (*mem0.Record, error) {
			return nil, errors.NewNotFound("get", errors.NewError("404"))
		},
	}

	d, _ := newTestDispatcher(t, client, true)

	env := d.Dispatch(context.Background(), Request{Op: OpGet, MemoryID: "gone"})

	assert.Equal(t, StatusError, env.Status)
	require.Len(t, env.Messages, 1)
	assert.Equal(t, "memory not found", env.Messages[0])
	// Not-found is a clean outcome, not a degradation.
	assert.Equal(t, int64(0), d.Metrics().TotalDegraded)
}

func TestAsyncAddIsAccepted(t *testing.T) {
	done := make(chan struct{})

	client := &fakeClient{
		addFn: func(ctx context.Context, req mem0.AddRequest) (*mem0.AddResult, error) {
			close(done)
			return &mem0.AddResult{}, nil
		},
	}

	d, _ := newTestDispatcher(t, client, true)

	env := d.Dispatch(context.Background(), Request{
		Op:       OpAdd,
		Messages: []mem0.Message{{Role: "user", Content: "I live in Lisbon"}},
		Scope:    mem0.Scope{UserID: "u1"},
	})

	assert.Equal(t, StatusAccepted, env.Status)
	assert.Equal(t, int64(1), d.Metrics().TotalAccepted)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("background add never executed")
	}
}

func TestSyncAddWaitsForResult(t *testing.T) {
	client := &fakeClient{
		addFn: func(ctx context.Context, req mem0.AddRequest) (*mem0.AddResult, error) {
			return &mem0.AddResult{Results: []mem0.AddEvent{{ID: "m1", Memory: "lives in Lisbon", Event: "ADD"}}}, nil
		},
	}

	d, _ := newTestDispatcher(t, client, false)

	env := d.Dispatch(context.Background(), Request{
		Op:       OpAdd,
		Messages: []mem0.Message{{Role: "user", Content: "I live in Lisbon"}},
		Scope:    mem0.Scope{UserID: "u1"},
	})

	assert.Equal(t, StatusSuccess, env.Status)
	result, ok := env.Results.(*mem0.AddResult)
	require.True(t, ok)
	require.Len(t, result.Results, 1)
	assert.Equal(t, "ADD", result.Results[0].Event)
}

func TestBlankAddIsSkippedBeforeSubmission(t *testing.T) {
	client := &fakeClient{
		addFn: func(ctx context.Context, req mem0.AddRequest) (*mem0.AddResult, error) {
			t.Fatal("blank add must never reach the client")
			return nil, nil
		},
	}

	d, _ := newTestDispatcher(t, client, true)

	env := d.Dispatch(context.Background(), Request{
		Op:       OpAdd,
		Messages: []mem0.Message{{Role: "user", Content: "   "}},
		Scope:    mem0.Scope{UserID: "u1"},
	})

	assert.Equal(t, StatusSkipped, env.Status)

	result, ok := env.Results.(*mem0.AddResult)
	require.True(t, ok)
	require.Len(t, result.Results, 1)
	assert.Equal(t, "SKIP", result.Results[0].Event)
	assert.Equal(t, int64(1), d.Metrics().TotalSkipped)
}

func TestReadTimeoutDegrades(t *testing.T) {
	client := &fakeClient{
		historyFn: func(ctx context.Context, memoryID string) ([]mem0.HistoryEntry, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}

	mgr := loop.NewManager()
	t.Cleanup(func() { mgr.Shutdown(time.Second) })

	cfg := testCredentials(true)
	cfg.Timeouts.History = 30 * time.Millisecond
	d := New(client, mgr, cfg)

	env := d.Dispatch(context.Background(), Request{Op: OpHistory, MemoryID: "m1"})

	assert.Equal(t, StatusError, env.Status)
	assert.Equal(t, []any{}, env.Results)
	assert.Equal(t, int64(1), d.Metrics().TotalTimedOut)
}

func TestPerRequestTimeoutOverride(t *testing.T) {
	client := &fakeClient{
		getFn: func(ctx context.Context, memoryID string) (*mem0.Record, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}

	d, _ := newTestDispatcher(t, client, true)

	begin := time.Now()
	env := d.Dispatch(context.Background(), Request{
		Op:       OpGet,
		MemoryID: "m1",
		Timeout:  30 * time.Millisecond,
	})

	assert.Equal(t, StatusError, env.Status)
	assert.Less(t, time.Since(begin), config.DefaultGetTimeout)
}

func TestValidationFailuresNeverReachClient(t *testing.T) {
	client := &fakeClient{
		getFn: func(ctx context.Context, memoryID string) (*mem0.Record, error) {
			t.Fatal("invalid request must never reach the client")
			return nil, nil
		},
	}

	d, _ := newTestDispatcher(t, client, false)

	for name, req := range map[string]Request{
		"missing memory id": {Op: OpGet},
		"blank query":       {Op: OpSearch, Query: "  ", Scope: mem0.Scope{UserID: "u1"}},
		"missing scope":     {Op: OpGetAll},
		"blank update text": {Op: OpUpdate, MemoryID: "m1", Text: ""},
		"unknown operation": {Op: Operation("drop_table")},
	} {
		env := d.Dispatch(context.Background(), req)
		assert.Equal(t, StatusError, env.Status, name)
		assert.NotEmpty(t, env.Messages, name)
	}
}

func TestDeleteAllRequiresScope(t *testing.T) {
	d, _ := newTestDispatcher(t, &fakeClient{}, false)

	env := d.Dispatch(context.Background(), Request{Op: OpDeleteAll})
	assert.Equal(t, StatusError, env.Status)

	env = d.Dispatch(context.Background(), Request{Op: OpDeleteAll, Scope: mem0.Scope{RunID: "r1"}})
	assert.Equal(t, StatusSuccess, env.Status)
}

func TestWriteAfterShutdownFailsCleanly(t *testing.T) {
	d, mgr := newTestDispatcher(t, &fakeClient{}, true)
	mgr.Shutdown(time.Second)

	env := d.Dispatch(context.Background(), Request{Op: OpDelete, MemoryID: "m1"})

	assert.Equal(t, StatusError, env.Status)
	assert.NotEmpty(t, env.Messages)
}
