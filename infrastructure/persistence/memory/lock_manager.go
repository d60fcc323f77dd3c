package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/GTP-getaipro/FWIQ-sub012/application/ports"
)

// LockManager is the single-process per-profile deployment lock: a
// mutex-guarded set of in-flight keys. Acquire is non-blocking; contention
// reports failure immediately so callers can fail fast.
type LockManager struct {
	mu       sync.Mutex
	inFlight map[string]bool
}

// NewLockManager creates an in-memory lock manager
func NewLockManager() *LockManager {
	return &LockManager{inFlight: make(map[string]bool)}
}

var _ ports.LockManager = (*LockManager)(nil)

// Acquire takes the lock for a key or fails immediately when it is held.
// The returned release func is idempotent.
func (m *LockManager) Acquire(ctx context.Context, key string) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.inFlight[key] {
		return nil, fmt.Errorf("lock already held for %s", key)
	}
	m.inFlight[key] = true

	var once sync.Once
	release := func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.inFlight, key)
			m.mu.Unlock()
		})
	}
	return release, nil
}
