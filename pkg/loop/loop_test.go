package loop

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theapemachine/mem0-go/pkg/errors"
)

func TestStartIdempotent(t *testing.T) {
	m := NewManager()
	defer m.Shutdown(time.Second)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, m.Start())
		}()
	}
	wg.Wait()

	assert.Equal(t, StateRunning, m.State())
}

func TestLazyStartOnFirstSubmit(t *testing.T) {
	m := NewManager()
	defer m.Shutdown(time.Second)

	require.Equal(t, StateUnstarted, m.State())

	value, err := m.SubmitAndWait(context.Background(), "probe", func(ctx context.Context) (any, error) {
		return "ok", nil
	}, time.Second)

	require.NoError(t, err)
	assert.Equal(t, "ok", value)
	assert.Equal(t, StateRunning, m.State())
}

func TestSubmitAndWaitReturnsTaskError(t *testing.T) {
	m := NewManager()
	defer m.Shutdown(time.Second)

	boom := errors.NewError("store unreachable")

	value, err := m.SubmitAndWait(context.Background(), "failing", func(ctx context.Context) (any, error) {
		return nil, boom
	}, time.Second)

	assert.Nil(t, value)
	assert.Equal(t, boom, err)
}

func TestTimeoutCancelsTask(t *testing.T) {
	m := NewManager()
	defer m.Shutdown(time.Second)

	started := make(chan struct{})
	observed := make(chan error, 1)

	value, err := m.SubmitAndWait(context.Background(), "slow", func(ctx context.Context) (any, error) {
		close(started)
		<-ctx.Done()
		observed <- ctx.Err()
		return "too late", nil
	}, 50*time.Millisecond)

	assert.Nil(t, value)
	require.Error(t, err)
	assert.True(t, errors.IsTimeout(err))

	<-started

	select {
	case cause := <-observed:
		assert.Equal(t, context.Canceled, cause)
	case <-time.After(time.Second):
		t.Fatal("task never observed cancellation")
	}
}

func TestOutcomeNeverDeliveredAfterCancel(t *testing.T) {
	m := NewManager()
	defer m.Shutdown(time.Second)

	release := make(chan struct{})

	_, err := m.SubmitAndWait(context.Background(), "straggler", func(ctx context.Context) (any, error) {
		<-release
		return "stale", nil
	}, 20*time.Millisecond)
	require.True(t, errors.IsTimeout(err))

	// Let the straggler finish after the caller already gave up; its result
	// must be dropped, not queued for anyone.
	close(release)
	time.Sleep(50 * time.Millisecond)

	value, err := m.SubmitAndWait(context.Background(), "fresh", func(ctx context.Context) (any, error) {
		return "fresh", nil
	}, time.Second)

	require.NoError(t, err)
	assert.Equal(t, "fresh", value)
}

func TestCallerContextCancellation(t *testing.T) {
	m := NewManager()
	defer m.Shutdown(time.Second)

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := m.SubmitAndWait(ctx, "abandoned", func(ctx context.Context) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}, time.Second)

	assert.ErrorIs(t, err, context.Canceled)
}

func TestMaxInFlightBound(t *testing.T) {
	m := NewManager(WithMaxInFlight(2))
	defer m.Shutdown(time.Second)

	var (
		mu      sync.Mutex
		current int
		peak    int
	)

	gate := make(chan struct{})
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.SubmitAndWait(context.Background(), "bounded", func(ctx context.Context) (any, error) {
				mu.Lock()
				current++
				if current > peak {
					peak = current
				}
				mu.Unlock()

				<-gate

				mu.Lock()
				current--
				mu.Unlock()
				return nil, nil
			}, 5*time.Second)
			assert.NoError(t, err)
		}()
	}

	time.Sleep(100 * time.Millisecond)
	close(gate)
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.LessOrEqual(t, peak, 2)
}

func TestSubmitNowaitRunsInBackground(t *testing.T) {
	m := NewManager()
	defer m.Shutdown(time.Second)

	done := make(chan struct{})

	err := m.SubmitNowait("write", func(ctx context.Context) (any, error) {
		close(done)
		return nil, nil
	})
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("background task never ran")
	}
}

func TestShutdownDrainsThenRefuses(t *testing.T) {
	m := NewManager()

	started := make(chan struct{})
	finished := make(chan struct{})
	require.NoError(t, m.SubmitNowait("in-flight", func(ctx context.Context) (any, error) {
		close(started)
		time.Sleep(50 * time.Millisecond)
		close(finished)
		return nil, nil
	}))

	<-started
	m.Shutdown(time.Second)

	select {
	case <-finished:
	default:
		t.Fatal("in-flight task was not drained")
	}

	assert.Equal(t, StateStopped, m.State())

	_, err := m.SubmitAndWait(context.Background(), "late", func(ctx context.Context) (any, error) {
		return nil, nil
	}, time.Second)
	assert.True(t, errors.IsLoopUnavailable(err))

	err = m.SubmitNowait("late-write", func(ctx context.Context) (any, error) {
		return nil, nil
	})
	assert.True(t, errors.IsLoopUnavailable(err))
}

func TestShutdownBoundedByDrainTimeout(t *testing.T) {
	m := NewManager()

	started := make(chan struct{})
	require.NoError(t, m.SubmitNowait("stuck", func(ctx context.Context) (any, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}))

	<-started

	begin := time.Now()
	m.Shutdown(100 * time.Millisecond)
	elapsed := time.Since(begin)

	assert.Less(t, elapsed, time.Second)
	assert.Equal(t, StateStopped, m.State())
}

func TestShutdownIdempotent(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.Start())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Shutdown(100 * time.Millisecond)
		}()
	}
	wg.Wait()

	assert.Equal(t, StateStopped, m.State())
}

func TestShutdownBeforeStart(t *testing.T) {
	m := NewManager()
	m.Shutdown(time.Second)
	assert.Equal(t, StateStopped, m.State())
}

func TestStats(t *testing.T) {
	m := NewManager(WithMaxInFlight(3))
	defer m.Shutdown(time.Second)

	require.NoError(t, m.Start())

	stats := m.Stats()
	assert.Equal(t, "running", stats["state"])
	assert.Equal(t, int64(3), stats["max_in_flight"])
}
