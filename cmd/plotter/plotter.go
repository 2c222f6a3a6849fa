package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/abelzeko/onewire-logger/internal/chart"
	"github.com/abelzeko/onewire-logger/internal/config"
	"github.com/abelzeko/onewire-logger/internal/entities"
	"github.com/abelzeko/onewire-logger/internal/repository"
	"github.com/abelzeko/onewire-logger/internal/usecases"
	"github.com/robfig/cron/v3"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML configuration (default $ONEWIRE_CONFIG or config.yaml)")
	sensor := flag.String("sensor", "", "plot only this sensor name")
	days := flag.Int("days", 0, "lookback window in days (default from configuration)")
	typeName := flag.String("type", "", "reading type: temperature or humidity (default from configuration)")
	list := flag.Bool("list", false, "list stored sensor names and exit")
	flag.Parse()

	// Configure logging
	log.SetOutput(os.Stdout)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.Println("Starting 1-wire plotter...")

	cfg, err := config.Load(config.Path(*configPath))
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *days != 0 {
		cfg.Plot.Days = *days
	}
	if *typeName != "" {
		typ, err := entities.ParseReadingType(*typeName)
		if err != nil {
			log.Fatalf("Invalid -type: %v", err)
		}
		cfg.Plot.Type = typ
	}
	if *sensor != "" {
		cfg.Plot.Sensors = []string{*sensor}
	}

	// The plotter never creates the database
	repo, err := repository.NewSQLiteReadingRepository(cfg.Database, false)
	if err != nil {
		log.Fatalf("Failed to initialize repository: %v", err)
	}
	defer repo.Close()

	useCase := usecases.NewPlotUseCase(repo, chart.NewRenderer(), cfg.OutputDir)

	if *list {
		names, err := useCase.GetSensorNames()
		if err != nil {
			repo.Close()
			log.Fatalf("Failed to list sensors: %v", err)
		}
		for _, name := range names {
			fmt.Println(name)
		}
		return
	}

	run := func() error {
		names, err := useCase.PlotNames(cfg.Plot.Sensors)
		if err != nil {
			return err
		}
		paths, err := useCase.PlotAll(names, cfg.Plot.Type, cfg.Plot.Days)
		log.Printf("Wrote %d of %d charts", len(paths), len(names))
		return err
	}

	if cfg.Plot.Schedule == "" {
		if err := run(); err != nil {
			repo.Close()
			log.Fatalf("Plotting failed: %v", err)
		}
		return
	}

	if err := run(); err != nil {
		log.Printf("Initial plotting failed: %v", err)
	}

	c := cron.New()
	_, err = c.AddFunc(cfg.Plot.Schedule, func() {
		if err := run(); err != nil {
			log.Printf("Scheduled plotting failed: %v", err)
		}
	})
	if err != nil {
		log.Fatalf("Failed to set up cron job: %v", err)
	}

	log.Printf("Plotter has been scheduled with %q", cfg.Plot.Schedule)
	c.Start()

	// Keep the program running
	select {}
}
