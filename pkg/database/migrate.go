package database

import (
	"fmt"

	"rag-chat-be/internal/model"

	"gorm.io/gorm"
)

// AutoMigrate creates or updates every table the service owns. The passage
// index needs pgvector and is only migrated on postgres.
func AutoMigrate(db *gorm.DB, driver string) error {
	models := []interface{}{
		&model.ChatSession{},
		&model.ChatTurn{},
	}

	if driver == DriverPostgres {
		if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS vector;`).Error; err != nil {
			return fmt.Errorf("create vector extension: %w", err)
		}
		models = append(models, &model.PassageEmbedding{})
	}

	if err := db.AutoMigrate(models...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
