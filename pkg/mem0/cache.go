package mem0

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// Tool invocations are stateless, but rebuilding a client per call would
// throw away connection reuse. A process-level cache keyed by the credential
// hash keeps one client alive until the configuration changes.

var (
	cacheMu    sync.Mutex
	cached     Client
	cachedHash string
)

// CachedClient returns the cached client when the credential hash matches,
// otherwise builds a replacement via build and retires the old client.
func CachedClient(hash string, build func() (Client, error)) (Client, error) {
	cacheMu.Lock()
	defer cacheMu.Unlock()

	if cached != nil && cachedHash == hash {
		return cached, nil
	}

	if cached != nil {
		log.Debug("replacing memory client, configuration changed")
		closeClient(cached)
	}

	client, err := build()
	if err != nil {
		return nil, err
	}

	cached = client
	cachedHash = hash
	return cached, nil
}

// ResetCache drops the cached client, closing it if present. Used by tests
// and by the shutdown path.
func ResetCache() {
	cacheMu.Lock()
	defer cacheMu.Unlock()

	if cached != nil {
		closeClient(cached)
	}

	cached = nil
	cachedHash = ""
}

func closeClient(client Client) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Close(ctx); err != nil {
		log.Warn("failed to close memory client", "error", err)
	}
}
