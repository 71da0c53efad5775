package graph

import (
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// ============================================================================
// Helper Functions
// ============================================================================

func getInt64FromRecord(record *neo4j.Record, key string) (int64, bool) {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return 0, false
	}
	switch i := val.(type) {
	case int64:
		return i, true
	case int:
		return int64(i), true
	case float64:
		return int64(i), true
	}
	return 0, false
}
