package metrics

import (
	"sync"
	"time"
)

// OperationMetrics tracks outcome counters for memory operations routed
// through the dispatcher and the background loop.
type OperationMetrics struct {
	mu sync.RWMutex

	// Submission metrics
	TotalSubmitted int64
	TotalAccepted  int64
	TotalSkipped   int64

	// Outcome metrics
	TotalCompleted int64
	TotalTimedOut  int64
	TotalDegraded  int64
	TotalWait      time.Duration
}

// NewOperationMetrics creates a new OperationMetrics instance.
func NewOperationMetrics() *OperationMetrics {
	return &OperationMetrics{}
}

// RecordSubmission records a waited submission and its eventual outcome.
func (m *OperationMetrics) RecordSubmission(success bool, wait time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.TotalSubmitted++
	if success {
		m.TotalCompleted++
	}
	m.TotalWait += wait
}

// RecordAccepted records a fire-and-forget write that returned immediately.
func (m *OperationMetrics) RecordAccepted() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.TotalSubmitted++
	m.TotalAccepted++
}

// RecordSkipped records an add that was rejected before submission because
// its content was blank.
func (m *OperationMetrics) RecordSkipped() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.TotalSkipped++
}

// RecordTimeout records a read that exceeded its allotted time.
func (m *OperationMetrics) RecordTimeout() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.TotalTimedOut++
	m.TotalDegraded++
}

// RecordDegraded records a read that failed for a non-timeout reason and fell
// back to its default result.
func (m *OperationMetrics) RecordDegraded() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.TotalDegraded++
}

// Snapshot returns a copy of the current counters for reporting.
func (m *OperationMetrics) Snapshot() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()

	avgWait := time.Duration(0)
	if m.TotalCompleted > 0 {
		avgWait = m.TotalWait / time.Duration(m.TotalCompleted)
	}

	return map[string]any{
		"total_submitted": m.TotalSubmitted,
		"total_accepted":  m.TotalAccepted,
		"total_skipped":   m.TotalSkipped,
		"total_completed": m.TotalCompleted,
		"total_timed_out": m.TotalTimedOut,
		"total_degraded":  m.TotalDegraded,
		"avg_wait":        avgWait.String(),
	}
}
