// Package dedup remembers which error names have already been reported.
//
// The boundary reports each error name at most once. MemorySeenSet scopes that
// promise to one boundary; RedisSeenSet extends it to every process sharing a
// Redis prefix and namespace.
package dedup

import (
	"context"
	"sync"
)

// SeenSet is a grow-only set of error names.
type SeenSet interface {
	// MarkSeen adds name and reports whether it was absent before.
	// A non-nil error describes a backend problem; first is still usable.
	MarkSeen(ctx context.Context, name string) (first bool, err error)

	// Seen reports whether name was added.
	Seen(ctx context.Context, name string) bool

	// Len returns how many names this instance has observed.
	Len() int
}

// MemorySeenSet is the default process-local SeenSet.
type MemorySeenSet struct {
	mu    sync.Mutex
	names map[string]struct{}
}

// NewMemorySeenSet returns an empty set.
func NewMemorySeenSet() *MemorySeenSet {
	return &MemorySeenSet{names: make(map[string]struct{})}
}

func (m *MemorySeenSet) MarkSeen(_ context.Context, name string) (bool, error) {
	return m.add(name), nil
}

func (m *MemorySeenSet) Seen(_ context.Context, name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.names[name]
	return ok
}

func (m *MemorySeenSet) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.names)
}

func (m *MemorySeenSet) add(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.names[name]; ok {
		return false
	}
	m.names[name] = struct{}{}
	return true
}
