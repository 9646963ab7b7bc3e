package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/joho/godotenv"

	"folio/internal/app"
	"folio/internal/config"
	models "folio/internal/domain/models/content"
	"folio/internal/repository/postgres"
	"folio/internal/seed"
)

func main() {
	// Parse command-line flags
	file := flag.String("file", "seed/site.yaml", "YAML content tree to load")
	parentID := flag.Int64("parent", models.RootID, "node to create the tree under")
	migrate := flag.Bool("migrate", true, "ensure the schema exists before seeding")
	flag.Parse()

	// Load .env file
	_ = godotenv.Load()

	// Load configuration
	cfg := config.Load()

	// Setup logger
	logger, closeLog, err := cfg.NewLogger("seed")
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer closeLog()

	f, err := os.Open(*file)
	if err != nil {
		log.Fatalf("Failed to open seed file: %v", err)
	}
	defer f.Close()

	tree, err := seed.Parse(f)
	if err != nil {
		log.Fatalf("Failed to read seed file: %v", err)
	}

	ctx := context.Background()
	engine, err := app.Open(ctx, cfg, nil, logger)
	if err != nil {
		log.Fatalf("Failed to initialize content engine: %v", err)
	}
	defer engine.Close()

	if *migrate && engine.Pool != nil {
		if err := postgres.Migrate(ctx, engine.Pool, engine.Tables, logger); err != nil {
			log.Fatalf("Failed to run schema: %v", err)
		}
	}

	logger.Info("seeding content",
		"table_prefix", cfg.TablePrefix,
		"file", *file,
	)

	result, err := seed.NewSeeder(engine.Lifecycle, models.SystemActor, logger).Load(ctx, *parentID, tree)
	if err != nil {
		log.Fatalf("Seeding stopped after %d node(s): %v", result.Created, err)
	}
	logger.Info("seeding complete", "created", result.Created, "published", result.Published)
}
