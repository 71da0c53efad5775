package graph

import (
	"context"
	"fmt"
	"sort"
	"sync"

	apperrors "persinteret/backend/pkg/errors"
)

// MemoryStore is an in-process graph with the same contract as Repository.
// It backs GRAPH_BACKEND=memory and the tests of packages above this one.
type MemoryStore struct {
	mu    sync.RWMutex
	edges map[int64]map[int64]struct{}
}

// NewMemoryStore returns an empty graph
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{edges: make(map[int64]map[int64]struct{})}
}

func (m *MemoryStore) UpsertNode(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return apperrors.Classify(storeName, apperrors.StepSyncGraph, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.node(id)
	return nil
}

func (m *MemoryStore) UpsertEdge(ctx context.Context, a, b int64) error {
	if err := ctx.Err(); err != nil {
		return apperrors.Classify(storeName, apperrors.StepSyncGraph, err)
	}
	if a == b {
		return apperrors.NewInvalidArgument("edge", fmt.Sprintf("person %d cannot know itself", a))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.node(a)[b] = struct{}{}
	m.node(b)[a] = struct{}{}
	return nil
}

func (m *MemoryStore) DeleteEdge(ctx context.Context, a, b int64) error {
	if err := ctx.Err(); err != nil {
		return apperrors.Classify(storeName, apperrors.StepSyncGraph, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.edges[a], b)
	delete(m.edges[b], a)
	return nil
}

func (m *MemoryStore) Neighbors(ctx context.Context, id int64) ([]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Classify(storeName, apperrors.StepTraverse, err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]int64, 0, len(m.edges[id]))
	for n := range m.edges[id] {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (m *MemoryStore) DeleteNode(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return apperrors.Classify(storeName, apperrors.StepDeleteNode, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for n := range m.edges[id] {
		delete(m.edges[n], id)
	}
	delete(m.edges, id)
	return nil
}

func (m *MemoryStore) DeleteAll(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return apperrors.Classify(storeName, apperrors.StepDeleteNode, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.edges = make(map[int64]map[int64]struct{})
	return nil
}

// HasNode reports whether id has a node.
func (m *MemoryStore) HasNode(id int64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.edges[id]
	return ok
}

// EdgeCount returns the number of undirected connexions.
func (m *MemoryStore) EdgeCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	total := 0
	for _, ns := range m.edges {
		total += len(ns)
	}
	return total / 2
}

func (m *MemoryStore) node(id int64) map[int64]struct{} {
	ns, ok := m.edges[id]
	if !ok {
		ns = make(map[int64]struct{})
		m.edges[id] = ns
	}
	return ns
}
