package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

type memoryEntry struct {
	data     []byte
	modified time.Time
}

// Memory is a Store backed by process memory. Intended for tests and dry runs.
type Memory struct {
	mu         sync.RWMutex
	objs       map[string]memoryEntry
	containers map[string]bool
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		objs:       make(map[string]memoryEntry),
		containers: make(map[string]bool),
	}
}

func (m *Memory) Driver() Driver { return DriverMemory }

func (m *Memory) ReadArtifact(_ context.Context, p string) ([]byte, error) {
	key, err := cleanPath(p)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	obj, ok := m.objs[key]
	m.mu.RUnlock()
	if !ok {
		return nil, notFound(key)
	}
	return append([]byte(nil), obj.data...), nil
}

func (m *Memory) WriteArtifact(_ context.Context, p string, data []byte) error {
	key, err := cleanPath(p)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objs[key] = memoryEntry{data: append([]byte(nil), data...), modified: time.Now().UTC()}
	return nil
}

func (m *Memory) CreateArtifact(_ context.Context, p string, data []byte) error {
	key, err := cleanPath(p)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objs[key]; ok {
		return exists(key)
	}
	m.objs[key] = memoryEntry{data: append([]byte(nil), data...), modified: time.Now().UTC()}
	return nil
}

func (m *Memory) EnsureContainer(_ context.Context, p string) error {
	key, err := cleanPath(p)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.containers[key] = true
	m.mu.Unlock()
	return nil
}

// HasContainer reports whether EnsureContainer was called for p.
func (m *Memory) HasContainer(p string) bool {
	key, err := cleanPath(p)
	if err != nil {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.containers[key]
}

func (m *Memory) List(_ context.Context, prefix string) ([]Info, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var infos []Info
	for key, obj := range m.objs {
		if prefix == "" || strings.HasPrefix(key, prefix) {
			infos = append(infos, Info{Path: key, Size: int64(len(obj.data)), LastModified: obj.modified})
		}
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Path < infos[j].Path })
	return infos, nil
}
