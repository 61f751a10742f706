package main

import (
	"log"
	"os"

	"virtualrag-be/internal/model"
	"virtualrag-be/pkg/database"

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

	// 2. Connect
	db, err := database.NewGormDBFromDSN(dsn)
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	// 3. Extension + tables
	log.Println("Running pgvector migration...")
	if err := database.Migrate(db, &model.Document{}, &model.DocumentChunk{}); err != nil {
		log.Fatalf("Error: %v", err)
	}

	// 4. Views
	postMigrationSQL := []string{
		`CREATE OR REPLACE VIEW document_overview AS
		 SELECT d.content_hash, d.filename, d.chunk_count, COUNT(c.id) AS stored_chunks, d.created_at
		 FROM documents d LEFT JOIN document_chunks c ON c.content_hash = d.content_hash
		 GROUP BY d.content_hash, d.filename, d.chunk_count, d.created_at;`,
	}
	for _, sql := range postMigrationSQL {
		if err := db.Exec(sql).Error; err != nil {
			log.Printf("Warn: Failed to execute post-migration SQL: %v", err)
		}
	}

	log.Println("✅ Success: Database migration completed successfully via GORM.")
}
