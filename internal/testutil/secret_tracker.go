package testutil

import (
	"context"
	"sync"

	"github.com/evergreen-ci/mskcreds"
)

// NoopSecretTracker is an implementation of mskcreds.SecretTracker that no-ops
// for all operations.
type NoopSecretTracker struct{}

// Put is a no-op.
func (t *NoopSecretTracker) Put(context.Context, mskcreds.SecretTrackerItem) error {
	return nil
}

// Delete is a no-op.
func (t *NoopSecretTracker) Delete(context.Context, string) error {
	return nil
}

// MemorySecretTracker is an implementation of mskcreds.SecretTracker that
// records items in memory.
type MemorySecretTracker struct {
	mu    sync.Mutex
	items map[string]mskcreds.SecretTrackerItem
}

// NewMemorySecretTracker returns a new empty in-memory secret tracker.
func NewMemorySecretTracker() *MemorySecretTracker {
	return &MemorySecretTracker{items: map[string]mskcreds.SecretTrackerItem{}}
}

// Put records the item.
func (t *MemorySecretTracker) Put(_ context.Context, item mskcreds.SecretTrackerItem) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.items[item.ID] = item
	return nil
}

// Delete removes the item with the given ID.
func (t *MemorySecretTracker) Delete(_ context.Context, id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.items, id)
	return nil
}

// Get returns the recorded item with the given ID.
func (t *MemorySecretTracker) Get(id string) (mskcreds.SecretTrackerItem, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	item, ok := t.items[id]
	return item, ok
}
