package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	apperrors "persinteret/backend/pkg/errors"
	"persinteret/backend/pkg/logger"
)

const storeName = "graph"

// Repository handles all Neo4j operations on person nodes and their
// CONNEXION relationships. A connexion is stored as a single directed arc
// and always matched without direction, so it reads as symmetric.
type Repository struct {
	driver   neo4j.DriverWithContext
	database string
	logger   *zap.Logger
}

// NewRepository creates a new graph repository. An empty database name uses
// the server default.
func NewRepository(driver neo4j.DriverWithContext, database string) *Repository {
	return &Repository{
		driver:   driver,
		database: database,
		logger:   logger.For("graph"),
	}
}

// Close closes the Neo4j driver connection
func (r *Repository) Close(ctx context.Context) error {
	return r.driver.Close(ctx)
}

func (r *Repository) session(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: mode, DatabaseName: r.database})
}

// run executes a write query and drains its result so server-side failures
// surface here rather than being dropped with the cursor.
func (r *Repository) run(ctx context.Context, step apperrors.Step, query string, params map[string]interface{}) error {
	session := r.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	result, err := session.Run(ctx, query, params)
	if err != nil {
		return apperrors.Classify(storeName, step, fmt.Errorf("failed to execute query: %w", err))
	}
	if _, err := result.Consume(ctx); err != nil {
		return apperrors.Classify(storeName, step, fmt.Errorf("failed to consume result: %w", err))
	}
	return nil
}

// EnsureSchema creates the uniqueness constraint on person identities.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE CONSTRAINT personne_identification IF NOT EXISTS
		FOR (p:Personne) REQUIRE p.identification IS UNIQUE
	`
	if err := r.run(ctx, apperrors.StepSyncGraph, query, nil); err != nil {
		return err
	}
	r.logger.Info("Graph schema ensured")
	return nil
}

// UpsertNode makes sure a node exists for id.
func (r *Repository) UpsertNode(ctx context.Context, id int64) error {
	query := `MERGE (p:Personne {identification: $id})`

	return r.run(ctx, apperrors.StepSyncGraph, query, map[string]interface{}{
		"id": id,
	})
}

// UpsertEdge links a and b, creating either node if it is missing. Running it
// again, in either argument order, leaves a single connexion.
func (r *Repository) UpsertEdge(ctx context.Context, a, b int64) error {
	if a == b {
		return apperrors.NewInvalidArgument("edge", fmt.Sprintf("person %d cannot know itself", a))
	}

	query := `
		MERGE (a:Personne {identification: $a})
		MERGE (b:Personne {identification: $b})
		MERGE (a)-[:CONNEXION]-(b)
	`

	if err := r.run(ctx, apperrors.StepSyncGraph, query, map[string]interface{}{
		"a": a,
		"b": b,
	}); err != nil {
		return err
	}

	r.logger.Debug("Connexion upserted", zap.Int64("from", a), zap.Int64("to", b))
	return nil
}

// DeleteEdge removes any connexion between a and b. Nodes are kept.
func (r *Repository) DeleteEdge(ctx context.Context, a, b int64) error {
	query := `
		MATCH (a:Personne {identification: $a})-[c:CONNEXION]-(b:Personne {identification: $b})
		DELETE c
	`

	return r.run(ctx, apperrors.StepSyncGraph, query, map[string]interface{}{
		"a": a,
		"b": b,
	})
}

// Neighbors returns the identities directly connected to id, ascending.
// An unknown id has no neighbors.
func (r *Repository) Neighbors(ctx context.Context, id int64) ([]int64, error) {
	session := r.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	query := `
		MATCH (p:Personne {identification: $id})-[:CONNEXION]-(n:Personne)
		RETURN DISTINCT n.identification AS id
		ORDER BY id
	`

	result, err := session.Run(ctx, query, map[string]interface{}{
		"id": id,
	})
	if err != nil {
		return nil, apperrors.Classify(storeName, apperrors.StepTraverse,
			fmt.Errorf("failed to query neighbors of %d: %w", id, err))
	}

	neighbors := []int64{}
	for result.Next(ctx) {
		if n, ok := getInt64FromRecord(result.Record(), "id"); ok {
			neighbors = append(neighbors, n)
		}
	}
	if err := result.Err(); err != nil {
		return nil, apperrors.Classify(storeName, apperrors.StepTraverse,
			fmt.Errorf("failed to read neighbors of %d: %w", id, err))
	}

	return neighbors, nil
}

// DeleteNode detaches and removes the node for id. Neighbor nodes stay.
func (r *Repository) DeleteNode(ctx context.Context, id int64) error {
	query := `
		MATCH (p:Personne {identification: $id})
		DETACH DELETE p
	`

	if err := r.run(ctx, apperrors.StepDeleteNode, query, map[string]interface{}{
		"id": id,
	}); err != nil {
		return err
	}

	r.logger.Debug("Person node deleted", zap.Int64("person_id", id))
	return nil
}

// DeleteAll removes every person node and connexion.
func (r *Repository) DeleteAll(ctx context.Context) error {
	query := `
		MATCH (p:Personne)
		DETACH DELETE p
	`
	return r.run(ctx, apperrors.StepDeleteNode, query, nil)
}
