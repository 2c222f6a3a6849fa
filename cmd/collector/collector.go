package main

import (
	"flag"
	"log"
	"os"

	"github.com/abelzeko/onewire-logger/internal/config"
	"github.com/abelzeko/onewire-logger/internal/integration"
	"github.com/abelzeko/onewire-logger/internal/repository"
	"github.com/abelzeko/onewire-logger/internal/usecases"
	"github.com/robfig/cron/v3"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML configuration (default $ONEWIRE_CONFIG or config.yaml)")
	flag.Parse()

	// Configure logging
	log.SetOutput(os.Stdout)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.Println("Starting 1-wire collector...")

	cfg, err := config.Load(config.Path(*configPath))
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize repository, creating the database on first run
	repo, err := repository.NewSQLiteReadingRepository(cfg.Database, true)
	if err != nil {
		log.Fatalf("Failed to initialize repository: %v", err)
	}
	defer repo.Close()

	// Initialize sensor reader
	reader := integration.NewOneWireReader(cfg.MountPath)

	// Initialize use case
	useCase := usecases.NewCollectUseCase(repo, reader, cfg.Descriptors())

	if cfg.Collect.Schedule == "" {
		if err := useCase.Collect(); err != nil {
			repo.Close()
			log.Fatalf("Collection failed: %v", err)
		}
		return
	}

	// Run use case immediately on startup
	if err := useCase.Collect(); err != nil {
		log.Printf("Initial collection failed: %v", err)
	}

	c := cron.New()
	_, err = c.AddFunc(cfg.Collect.Schedule, func() {
		if err := useCase.Collect(); err != nil {
			log.Printf("Scheduled collection failed: %v", err)
		}
	})
	if err != nil {
		log.Fatalf("Failed to set up cron job: %v", err)
	}

	log.Printf("Collector has been scheduled with %q", cfg.Collect.Schedule)
	c.Start()

	// Keep the program running
	select {}
}
