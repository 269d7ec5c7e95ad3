package kv

import (
	"context"
	"sort"
	"strings"
	"sync"
)

type subscriber struct {
	prefix string
	ch     chan Change
}

// MemoryStore keeps everything in process. It backs unit tests and the
// single-instance demo mode.
type MemoryStore struct {
	mu     sync.RWMutex
	data   map[string]Entry
	subs   map[int]*subscriber
	nextID int
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]Entry),
		subs: make(map[int]*subscriber),
	}
}

// Get returns a copy of the entry at key
func (m *MemoryStore) Get(ctx context.Context, key string) (*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return &Entry{Key: key, Value: append([]byte(nil), e.Value...), Version: e.Version}, nil
}

// Put writes value when the version matches
func (m *MemoryStore) Put(ctx context.Context, key string, value []byte, expectedVersion int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current := m.data[key].Version
	if expectedVersion != AnyVersion && expectedVersion != current {
		return 0, ErrConflict
	}

	next := current + 1
	m.data[key] = Entry{Key: key, Value: append([]byte(nil), value...), Version: next}
	m.notify(Change{Key: key, Version: next})
	return next, nil
}

// Delete removes key
func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.data[key]; !ok {
		return nil
	}
	delete(m.data, key)
	m.notify(Change{Key: key, Deleted: true})
	return nil
}

// Keys lists keys with prefix in lexical order
func (m *MemoryStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var keys []string
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Subscribe registers a buffered channel for changes under prefix. Slow
// subscribers miss changes rather than block writers.
func (m *MemoryStore) Subscribe(ctx context.Context, prefix string) (<-chan Change, error) {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	sub := &subscriber{prefix: prefix, ch: make(chan Change, 64)}
	m.subs[id] = sub
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		delete(m.subs, id)
		close(sub.ch)
		m.mu.Unlock()
	}()

	return sub.ch, nil
}

// Close drops all data
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = make(map[string]Entry)
	return nil
}

// notify must be called with mu held
func (m *MemoryStore) notify(c Change) {
	for _, s := range m.subs {
		if !strings.HasPrefix(c.Key, s.prefix) {
			continue
		}
		select {
		case s.ch <- c:
		default:
		}
	}
}
