package main

import (
	"log"
	"os"

	"rag-chat-be/internal/model"
	"rag-chat-be/pkg/database"

	"github.com/joho/godotenv"
)

func main() {
	// 1. Load Environment Variables
	if err := godotenv.Load(); err != nil {
		log.Println("Info: No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		log.Fatal("Error: DB_CONNECTION_STRING is not set")
	}

	db, err := database.NewGormDBFromDSN(dsn)
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	log.Println("Step 1: Setting up extensions...")
	setupSQL := []string{
		`CREATE EXTENSION IF NOT EXISTS vector;`,
	}
	for _, sql := range setupSQL {
		if err := db.Exec(sql).Error; err != nil {
			log.Printf("Warn: Failed to execute setup SQL: %v. Continuing...", err)
		}
	}

	log.Println("Step 2: Running AutoMigrate...")
	models := []interface{}{
		&model.ChatSession{},
		&model.ChatMessage{},
		&model.ReviewSession{},
		&model.KnowledgePassage{},
	}
	if err := db.AutoMigrate(models...); err != nil {
		log.Fatalf("Error: AutoMigrate failed: %v", err)
	}

	log.Println("Step 3: Creating search indexes...")
	postMigrationSQL := []string{
		// keyword mode ranks with ts_rank over this expression
		`CREATE INDEX IF NOT EXISTS idx_knowledge_passages_fts
		 ON knowledge_passages USING GIN (to_tsvector('english', content));`,
		`CREATE INDEX IF NOT EXISTS idx_knowledge_passages_embedding
		 ON knowledge_passages USING hnsw (embedding vector_cosine_ops);`,
	}
	for _, sql := range postMigrationSQL {
		if err := db.Exec(sql).Error; err != nil {
			log.Printf("Warn: Failed to execute post-migration SQL: %v", err)
		}
	}

	log.Println("✅ Success: Database migration completed successfully via GORM.")
}
