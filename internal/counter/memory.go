package counter

import (
	"context"
	"sync"
)

// Memory holds the record in process memory.
type Memory struct {
	mu     sync.Mutex
	record string
	found  bool
}

// NewMemory returns an empty in-memory counter store.
func NewMemory() *Memory { return &Memory{} }

func (m *Memory) ReadRecord(context.Context) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.record, m.found, nil
}

func (m *Memory) WriteRecord(_ context.Context, record string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record, m.found = record, true
	return nil
}

func (m *Memory) CompareAndSwap(_ context.Context, old string, oldFound bool, next string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.found != oldFound || (oldFound && m.record != old) {
		return false, nil
	}
	m.record, m.found = next, true
	return true, nil
}

func (m *Memory) Close() error { return nil }
