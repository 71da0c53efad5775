package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"persinteret/backend/internal/blobs"
	"persinteret/backend/internal/graph"
	"persinteret/backend/internal/person"
	"persinteret/backend/internal/records"
	"persinteret/backend/internal/registry"
	"persinteret/backend/pkg/config"
	apperrors "persinteret/backend/pkg/errors"
	"persinteret/backend/pkg/logger"
)

type sample struct {
	name       string
	codeName   string
	status     string
	born       string
	connexions []string
}

var samples = []sample{
	{"Harold Finch", "Admin", person.StatusFree, "1960-06-01", []string{"John Reese", "Root"}},
	{"John Reese", "Man in the Suit", person.StatusFree, "1970-11-11", []string{"Harold Finch", "Lionel Fusco", "Joss Carter"}},
	{"Sameen Shaw", "", person.StatusMissing, "1981-03-04", []string{"John Reese", "Root"}},
	{"Root", "Analog Interface", person.StatusDeceased, "1983-08-22", []string{"Harold Finch", "Sameen Shaw"}},
	{"Lionel Fusco", "", person.StatusFree, "1966-02-19", []string{"John Reese", "Joss Carter"}},
	{"Joss Carter", "", person.StatusDeceased, "1972-05-16", []string{"John Reese", "Lionel Fusco", "Carl Elias"}},
	{"Carl Elias", "", person.StatusFree, "1955-10-03", []string{"Joss Carter", "Anthony Marconi"}},
	{"Anthony Marconi", "Scarface", person.StatusDeceased, "1963-09-27", []string{"Carl Elias"}},
	{"John Greer", "", person.StatusDeceased, "1948-01-30", []string{"Root"}},
}

func main() {
	reset := flag.Bool("reset", false, "Delete every case file before seeding")
	skipConfirm := flag.Bool("y", false, "Skip confirmation prompt")
	flag.Parse()

	// Initialize logger
	if err := logger.Init(logger.Options{Env: "development", Level: os.Getenv("LOG_LEVEL")}); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	log := logger.Get()
	log.Info("Starting case-file seeding...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	if *reset && !*skipConfirm {
		log.Warn("This will DELETE ALL case files, photographs and connexions.")
		fmt.Print("Are you sure you want to continue? (yes/no): ")
		var response string
		fmt.Scanln(&response)
		if response != "yes" && response != "y" {
			log.Info("Aborted.")
			os.Exit(0)
		}
	}

	ctx := context.Background()

	db, err := records.Open(records.Options{Path: cfg.RecordDBPath}, log)
	if err != nil {
		log.Fatal("Failed to open record store", zap.Error(err))
	}
	recordStore := records.NewStore(db)
	defer recordStore.Close()

	blobStore, err := blobs.NewLocalStorage(cfg.BlobStoragePath)
	if err != nil {
		log.Fatal("Failed to open blob store", zap.Error(err))
	}

	if !cfg.UsesNeo4j() {
		log.Fatal("Seeding needs a persistent graph; set GRAPH_BACKEND=neo4j")
	}

	// Initialize Neo4j driver
	driver, err := neo4j.NewDriverWithContext(
		cfg.Neo4jURI,
		neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPassword, ""),
	)
	if err != nil {
		log.Fatal("Failed to create Neo4j driver", zap.Error(err))
	}
	defer driver.Close(context.Background())

	// Verify connection
	if err := driver.VerifyConnectivity(ctx); err != nil {
		log.Fatal("Failed to verify Neo4j connectivity", zap.Error(err))
	}

	repo := graph.NewRepository(driver, cfg.Neo4jDatabase)

	log.Info("Creating constraints...")
	if err := repo.EnsureSchema(ctx); err != nil {
		log.Warn("Failed to create graph constraint (may already exist)", zap.Error(err))
	}

	reg := registry.New(recordStore, blobStore, repo, registry.Options{})

	if *reset {
		log.Info("Deleting all case files...")
		if err := reg.DeleteAll(ctx); err != nil {
			log.Fatal("Failed to delete case files", zap.Error(err))
		}
	}

	// Connexions to persons saved later stay pending and are linked when
	// that person is saved.
	for _, s := range samples {
		dob, err := person.ParseDate(s.born)
		if err != nil {
			log.Fatal("Bad sample date", zap.String("name", s.name), zap.Error(err))
		}

		res, err := reg.Save(ctx, person.Person{
			Name:        s.name,
			CodeName:    s.codeName,
			Status:      s.status,
			DateOfBirth: dob,
			Connexions:  s.connexions,
		})
		if apperrors.IsErrorType(err, apperrors.ErrorTypeDuplicateName) {
			log.Info("Case file already exists, skipping", zap.String("name", s.name))
			continue
		}
		if err != nil {
			log.Fatal("Failed to save case file", zap.String("name", s.name), zap.Error(err))
		}

		log.Info("Case file created",
			zap.Int64("id", res.Person.IDValue()),
			zap.String("name", s.name),
			zap.Strings("pending", res.Skipped),
		)
	}

	stats, err := reg.GetStatistics(ctx)
	if err != nil {
		log.Fatal("Failed to verify seeding", zap.Error(err))
	}

	log.Info("Seed completed",
		zap.Int64("people", stats.PeopleCount),
		zap.Int("free_ratio", stats.FreeRatio),
		zap.String("youngest", stats.Youngest),
		zap.String("next_target", stats.NextTarget),
	)
}
