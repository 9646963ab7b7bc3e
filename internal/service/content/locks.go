package content

import (
	"sync"
	"time"

	"folio/internal/metrics"
)

// Lock names. Each operation kind queues behind its own guard.
const (
	LockPublish = "publish"
	LockRebuild = "rebuild"
)

// OperationLocks hands out one mutex per operation kind. The guard is held only around the
// compound write sequence of an operation, never around reads or whole cascades.
type OperationLocks struct {
	mu      sync.Mutex
	locks   map[string]*sync.Mutex
	metrics *metrics.Metrics
}

// NewOperationLocks creates an empty lock set. m may be nil.
func NewOperationLocks(m *metrics.Metrics) *OperationLocks {
	return &OperationLocks{
		locks:   make(map[string]*sync.Mutex),
		metrics: m,
	}
}

// Acquire blocks until the named guard is free and returns its release function
func (l *OperationLocks) Acquire(name string) (release func()) {
	l.mu.Lock()
	m, ok := l.locks[name]
	if !ok {
		m = &sync.Mutex{}
		l.locks[name] = m
	}
	l.mu.Unlock()

	start := time.Now()
	m.Lock()
	l.metrics.RecordLockWait(name, time.Since(start))
	return m.Unlock
}
