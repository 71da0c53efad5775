package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	apperrors "persinteret/backend/pkg/errors"
)

// Config holds all application configuration
type Config struct {
	// App
	Port     string
	Env      string
	LogLevel string // overrides the env default when set

	// Neo4j (graph store)
	Neo4jURI      string
	Neo4jUser     string
	Neo4jPassword string
	Neo4jDatabase string

	// SQLite (record store)
	RecordDBPath string

	// Filesystem (blob store)
	BlobStoragePath string

	// Registry behaviour
	ListDefaultLimit int
	SyncPruneEdges   bool          // drop edges to connexions removed on a later save
	StoreTimeout     time.Duration // per-call deadline applied by the HTTP layer

	// GraphBackend selects the graph store: "neo4j" or "memory"
	GraphBackend string

	// HTTP
	CORSAllowedOrigins []string
}

const (
	GraphBackendNeo4j  = "neo4j"
	GraphBackendMemory = "memory"
)

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()

	cfg := &Config{
		Port:             getEnv("PORT", "8080"),
		Env:              getEnv("ENV", "development"),
		LogLevel:         getEnv("LOG_LEVEL", ""),
		Neo4jURI:         getEnv("NEO4J_URI", "bolt://localhost:7687"),
		Neo4jUser:        getEnv("NEO4J_USER", "neo4j"),
		Neo4jPassword:    getEnv("NEO4J_PASSWORD", "password"),
		Neo4jDatabase:    getEnv("NEO4J_DATABASE", ""),
		RecordDBPath:     getEnv("RECORD_DB_PATH", "persinteret.db"),
		BlobStoragePath:  getEnv("BLOB_STORAGE_PATH", "images"),
		ListDefaultLimit: getEnvInt("LIST_DEFAULT_LIMIT", 50),
		SyncPruneEdges:   getEnvBool("SYNC_PRUNE_EDGES", false),
		StoreTimeout:     time.Duration(getEnvInt("STORE_TIMEOUT_MS", 5000)) * time.Millisecond,
		GraphBackend:     getEnv("GRAPH_BACKEND", GraphBackendNeo4j),

		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration values are set
func (c *Config) Validate() error {
	switch c.GraphBackend {
	case "", GraphBackendNeo4j:
		if c.Neo4jURI == "" {
			return apperrors.NewConfigMissingRequired("NEO4J_URI")
		}
		if c.Neo4jUser == "" {
			return apperrors.NewConfigMissingRequired("NEO4J_USER")
		}
		if c.Neo4jPassword == "" {
			return apperrors.NewConfigMissingRequired("NEO4J_PASSWORD")
		}
	case GraphBackendMemory:
	default:
		return fmt.Errorf("GRAPH_BACKEND must be %q or %q, got %q", GraphBackendNeo4j, GraphBackendMemory, c.GraphBackend)
	}
	if c.RecordDBPath == "" {
		return apperrors.NewConfigMissingRequired("RECORD_DB_PATH")
	}
	if c.BlobStoragePath == "" {
		return apperrors.NewConfigMissingRequired("BLOB_STORAGE_PATH")
	}
	if c.ListDefaultLimit <= 0 {
		return fmt.Errorf("LIST_DEFAULT_LIMIT must be positive, got %d", c.ListDefaultLimit)
	}
	return nil
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// UsesNeo4j reports whether the graph store is the Neo4j server
func (c *Config) UsesNeo4j() bool {
	return c.GraphBackend == "" || c.GraphBackend == GraphBackendNeo4j
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if result, err := strconv.Atoi(value); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if result, err := strconv.ParseBool(value); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
