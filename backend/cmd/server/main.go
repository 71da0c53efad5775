package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"persinteret/backend/internal/api"
	"persinteret/backend/internal/blobs"
	"persinteret/backend/internal/graph"
	"persinteret/backend/internal/records"
	"persinteret/backend/internal/registry"
	"persinteret/backend/pkg/config"
	"persinteret/backend/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load configuration: %v", err))
	}

	// Initialize logger
	if err := logger.Init(logger.Options{Env: cfg.Env, Level: cfg.LogLevel}); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	log := logger.Get()
	log.Info("Starting case-file registry...",
		zap.String("env", cfg.Env),
		zap.String("graph_backend", cfg.GraphBackend),
	)

	ctx := context.Background()

	// Record store
	db, err := records.Open(records.Options{Path: cfg.RecordDBPath}, log)
	if err != nil {
		log.Fatal("Failed to open record store", zap.Error(err))
	}
	recordStore := records.NewStore(db)
	defer recordStore.Close()

	// Blob store
	blobStore, err := blobs.NewLocalStorage(cfg.BlobStoragePath)
	if err != nil {
		log.Fatal("Failed to open blob store", zap.Error(err))
	}

	// Graph store
	graphStore, closeGraph, err := openGraph(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to open graph store", zap.Error(err))
	}
	defer closeGraph()

	reg := registry.New(recordStore, blobStore, graphStore, registry.Options{
		PruneEdges: cfg.SyncPruneEdges,
	})

	// Setup Gin router
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	handler := api.NewServer(reg, api.Options{
		DefaultLimit:   cfg.ListDefaultLimit,
		StoreTimeout:   cfg.StoreTimeout,
		AllowedOrigins: cfg.CORSAllowedOrigins,
	}, log)

	// Start server
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	log.Info("Server started", zap.String("port", cfg.Port))

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited")
}

// openGraph connects the configured graph backend. The returned func releases it.
func openGraph(ctx context.Context, cfg *config.Config, log *zap.Logger) (registry.GraphStore, func(), error) {
	if !cfg.UsesNeo4j() {
		log.Warn("Using in-memory graph store; connexions are lost on restart")
		return graph.NewMemoryStore(), func() {}, nil
	}

	driver, err := neo4j.NewDriverWithContext(
		cfg.Neo4jURI,
		neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPassword, ""),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create Neo4j driver: %w", err)
	}

	// Verify Neo4j connection
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, nil, fmt.Errorf("failed to verify Neo4j connectivity: %w", err)
	}

	repo := graph.NewRepository(driver, cfg.Neo4jDatabase)
	if err := repo.EnsureSchema(ctx); err != nil {
		driver.Close(ctx)
		return nil, nil, fmt.Errorf("failed to ensure graph schema: %w", err)
	}

	return repo, func() { repo.Close(context.Background()) }, nil
}
