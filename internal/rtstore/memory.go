package rtstore

import (
	"context"
	"slices"
	"strings"
	"sync"
)

// Memory is an in-process Store. Writes notify listeners synchronously
// after the write is visible to readers.
type Memory struct {
	mu    sync.RWMutex
	nodes map[string]map[string][]byte
	feed  *Feed
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{nodes: make(map[string]map[string][]byte), feed: NewFeed()}
}

func (m *Memory) Get(_ context.Context, path string) ([]byte, bool, error) {
	parent, key, err := SplitLeaf(path)
	if err != nil {
		return nil, false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.nodes[parent][key]
	if !ok {
		return nil, false, nil
	}
	return slices.Clone(v), true, nil
}

func (m *Memory) Children(_ context.Context, path string) ([]Child, error) {
	p, err := Clean(path)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Child, 0, len(m.nodes[p]))
	for k, v := range m.nodes[p] {
		out = append(out, Child{Key: k, Value: slices.Clone(v)})
	}
	slices.SortFunc(out, func(a, b Child) int { return strings.Compare(a.Key, b.Key) })
	return out, nil
}

func (m *Memory) Set(ctx context.Context, path string, value []byte) error {
	parent, key, err := SplitLeaf(path)
	if err != nil {
		return err
	}
	m.mu.Lock()
	if m.nodes[parent] == nil {
		m.nodes[parent] = make(map[string][]byte)
	}
	_, existed := m.nodes[parent][key]
	m.nodes[parent][key] = slices.Clone(value)
	m.mu.Unlock()

	kind := ChildAdded
	if existed {
		kind = ChildChanged
	}
	return m.feed.Notify(ctx, Event{Kind: kind, Parent: parent, Key: key, Value: value})
}

func (m *Memory) Push(ctx context.Context, path string, value []byte) (string, error) {
	p, err := Clean(path)
	if err != nil {
		return "", err
	}
	key := NewKey()
	if err := m.Set(ctx, Join(p, key), value); err != nil {
		return "", err
	}
	return key, nil
}

func (m *Memory) Subscribe(ctx context.Context, path string, h Handler) (func(), error) {
	return SubscribeVia(ctx, m.feed, path, h)
}

// Ping always succeeds.
func (m *Memory) Ping(context.Context) error { return nil }
