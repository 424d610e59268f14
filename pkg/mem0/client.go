package mem0

import "context"

// Client is the uniform operation surface over the memory server. Both the
// sync path and tasks submitted to the background loop run through the same
// blocking, context-aware calls; cancellation travels via ctx.
type Client interface {
	Add(ctx context.Context, req AddRequest) (*AddResult, error)
	Search(ctx context.Context, req SearchRequest) ([]Record, error)
	Get(ctx context.Context, memoryID string) (*Record, error)
	GetAll(ctx context.Context, req GetAllRequest) ([]Record, error)
	Update(ctx context.Context, memoryID, text string) (*Record, error)
	Delete(ctx context.Context, memoryID string) error
	DeleteAll(ctx context.Context, scope Scope) error
	History(ctx context.Context, memoryID string) ([]HistoryEntry, error)

	// Close releases transport resources. Called once during process
	// shutdown, from the background loop's drain path.
	Close(ctx context.Context) error
}
