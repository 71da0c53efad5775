package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Symmetry(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, m.UpsertEdge(ctx, 1, 2))
	require.NoError(t, m.UpsertEdge(ctx, 2, 1))
	require.NoError(t, m.UpsertEdge(ctx, 1, 3))

	n1, _ := m.Neighbors(ctx, 1)
	n2, _ := m.Neighbors(ctx, 2)
	assert.Equal(t, []int64{2, 3}, n1)
	assert.Equal(t, []int64{1}, n2)
	assert.Equal(t, 2, m.EdgeCount())
}

func TestMemoryStore_DeleteNode(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, m.UpsertEdge(ctx, 1, 2))
	require.NoError(t, m.DeleteNode(ctx, 1))

	assert.False(t, m.HasNode(1))
	assert.True(t, m.HasNode(2))
	n2, _ := m.Neighbors(ctx, 2)
	assert.Empty(t, n2)
}

func TestMemoryStore_SelfEdge(t *testing.T) {
	m := NewMemoryStore()
	assert.Error(t, m.UpsertEdge(context.Background(), 4, 4))
}
