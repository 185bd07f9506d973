package main

import (
	"log"
	"os"

	"github.com/reyurquiza/retail-order-cancellation-tracker/internal/api"
	"github.com/reyurquiza/retail-order-cancellation-tracker/internal/cli"
	"github.com/reyurquiza/retail-order-cancellation-tracker/internal/config"
	"github.com/reyurquiza/retail-order-cancellation-tracker/internal/database"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := ensureDirs(cfg); err != nil {
		log.Fatalf("Failed to create data directories: %v", err)
	}

	db, err := database.Initialize(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// Any argument means a CLI invocation; no arguments starts the API
	// server with the background scan scheduler.
	if len(os.Args) > 1 {
		cli.Execute(db, cfg)
		return
	}

	router, authManager, err := api.SetupRouter(db, cfg)
	if err != nil {
		log.Fatalf("Failed to setup router: %v", err)
	}

	log.Printf("Starting order tracker on port %s", cfg.APIPort)
	log.Printf("Data directory: %s", cfg.DataDir)
	log.Printf("Output directory: %s", cfg.OutputDir)
	log.Printf("Database path: %s", cfg.DatabasePath)
	log.Printf("API Key: %s", authManager.APIKeyManager.GetCurrentKey())
	if err := router.Run(":" + cfg.APIPort); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// ensureDirs creates the data and output directories if missing
func ensureDirs(cfg *config.Config) error {
	for _, dir := range []string{cfg.DataDir, cfg.OutputDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}
