package main

import (
	"flag"
	"log"
	"os"

	"github.com/abelzeko/onewire-logger/internal/api"
	"github.com/abelzeko/onewire-logger/internal/chart"
	"github.com/abelzeko/onewire-logger/internal/config"
	"github.com/abelzeko/onewire-logger/internal/integration/openai"
	"github.com/abelzeko/onewire-logger/internal/repository"
	"github.com/abelzeko/onewire-logger/internal/usecases"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML configuration (default $ONEWIRE_CONFIG or config.yaml)")
	flag.Parse()

	// Configure logging
	log.SetOutput(os.Stdout)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.Println("Starting sensor bot...")

	cfg, err := config.Load(config.Path(*configPath))
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Free-text questions are optional
	var agent openai.OpenAIService
	if os.Getenv("OPENAI_API_KEY") != "" {
		agent, err = openai.NewOpenAIService()
		if err != nil {
			log.Fatalf("Failed to initialize OpenAI service: %v", err)
		}
	} else {
		log.Println("OPENAI_API_KEY not set, free-text questions are disabled")
	}

	// Initialize repository
	repo, err := repository.NewSQLiteReadingRepository(cfg.Database, false)
	if err != nil {
		log.Fatalf("Failed to initialize repository: %v", err)
	}
	defer repo.Close()

	useCase := usecases.NewPlotUseCase(repo, chart.NewRenderer(), cfg.OutputDir)

	// Get the bot token from environment variable
	botToken := os.Getenv("TELEGRAM_BOT_TOKEN")
	if botToken == "" {
		log.Fatal("TELEGRAM_BOT_TOKEN environment variable is not set")
	}

	// Initialize Telegram bot
	telegramBot, err := api.NewTelegramBot(botToken, useCase, agent, cfg.Plot.Days)
	if err != nil {
		log.Fatalf("Failed to initialize Telegram bot: %v", err)
	}

	// Start the bot
	telegramBot.Start()
}
