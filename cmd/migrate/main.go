package main

import (
	"log"

	"rag-chat-be/internal/config"
	"rag-chat-be/pkg/database"
)

func main() {
	// 1. Load database settings only
	cfg, err := config.LoadDatabase()
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	// 2. Connect using the configured driver
	db, err := database.Open(cfg.Driver, cfg.Path, cfg.Connection)
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	log.Printf("Running AutoMigrate for driver %s...", cfg.Driver)

	// 3. Chat tables, plus the vector extension and passage table on postgres
	if err := database.AutoMigrate(db, cfg.Driver); err != nil {
		log.Fatalf("Error: %v", err)
	}

	log.Println("Success: Database migration completed.")
}
