package graph

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "persinteret/backend/pkg/errors"
)

// These tests require a running Neo4j instance.
// Set NEO4J_URI, NEO4J_USER, NEO4J_PASSWORD environment variables.

func TestRepository_EdgeSymmetry(t *testing.T) {
	repo, base := newTestRepository(t)
	ctx := context.Background()

	a, b := base, base+1
	require.NoError(t, repo.UpsertNode(ctx, a))
	require.NoError(t, repo.UpsertEdge(ctx, a, b))

	fromA, err := repo.Neighbors(ctx, a)
	require.NoError(t, err)
	fromB, err := repo.Neighbors(ctx, b)
	require.NoError(t, err)

	assert.Equal(t, []int64{b}, fromA)
	assert.Equal(t, []int64{a}, fromB)
}

func TestRepository_UpsertEdgeIdempotent(t *testing.T) {
	repo, base := newTestRepository(t)
	ctx := context.Background()

	a, b := base, base+1
	require.NoError(t, repo.UpsertEdge(ctx, a, b))
	require.NoError(t, repo.UpsertEdge(ctx, a, b))
	require.NoError(t, repo.UpsertEdge(ctx, b, a))

	session := repo.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)
	result, err := session.Run(ctx, `
		MATCH (:Personne {identification: $a})-[c:CONNEXION]-(:Personne {identification: $b})
		RETURN count(c) AS total
	`, map[string]interface{}{"a": a, "b": b})
	require.NoError(t, err)
	record, err := result.Single(ctx)
	require.NoError(t, err)

	total, ok := getInt64FromRecord(record, "total")
	require.True(t, ok)
	assert.Equal(t, int64(1), total)
}

func TestRepository_SelfEdgeRejected(t *testing.T) {
	repo, base := newTestRepository(t)

	err := repo.UpsertEdge(context.Background(), base, base)
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeInvalidArgument))
}

func TestRepository_DeleteNodeKeepsNeighbors(t *testing.T) {
	repo, base := newTestRepository(t)
	ctx := context.Background()

	a, b, c := base, base+1, base+2
	require.NoError(t, repo.UpsertEdge(ctx, a, b))
	require.NoError(t, repo.UpsertEdge(ctx, a, c))
	require.NoError(t, repo.DeleteNode(ctx, a))

	fromB, err := repo.Neighbors(ctx, b)
	require.NoError(t, err)
	assert.Empty(t, fromB)

	require.NoError(t, repo.UpsertEdge(ctx, b, c))
	fromC, err := repo.Neighbors(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, []int64{b}, fromC)
}

func TestRepository_DeleteEdge(t *testing.T) {
	repo, base := newTestRepository(t)
	ctx := context.Background()

	a, b := base, base+1
	require.NoError(t, repo.UpsertEdge(ctx, a, b))
	require.NoError(t, repo.DeleteEdge(ctx, b, a))

	fromA, err := repo.Neighbors(ctx, a)
	require.NoError(t, err)
	assert.Empty(t, fromA)
}

// newTestRepository returns a repository and a base identity far away from
// anything a real deployment would use. Nodes in [base, base+10) are removed
// after the test.
func newTestRepository(t *testing.T) (*Repository, int64) {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	ctx := context.Background()
	driver, err := createTestDriver()
	if err != nil {
		t.Skipf("Neo4j not reachable: %v", err)
	}

	base := int64(1_000_000_000) + time.Now().UnixNano()%1_000_000*10
	repo := NewRepository(driver, "")

	t.Cleanup(func() {
		session := driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
		_, _ = session.Run(ctx, `
			MATCH (p:Personne) WHERE p.identification >= $lo AND p.identification < $hi
			DETACH DELETE p
		`, map[string]interface{}{"lo": base, "hi": base + 10})
		session.Close(ctx)
		driver.Close(ctx)
	})

	return repo, base
}

func createTestDriver() (neo4j.DriverWithContext, error) {
	uri := envOr("NEO4J_URI", "bolt://localhost:7687")
	user := envOr("NEO4J_USER", "neo4j")
	password := envOr("NEO4J_PASSWORD", "password")

	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, err
	}

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(context.Background())
		return nil, err
	}

	return driver, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
