package main

import (
	"log"

	"ai-notetaking-pipeline/internal/config"
	"ai-notetaking-pipeline/internal/model"
	"ai-notetaking-pipeline/pkg/database"
)

func main() {
	cfg := config.Load()
	if cfg.Database.Connection == "" {
		log.Fatal("Error: DB_CONNECTION_STRING is not set")
	}

	db, err := database.NewGormDBFromDSN(cfg.Database.Connection, database.DefaultPoolConfig())
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	log.Println("Step 1: Setting up extensions...")
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS pgcrypto;`).Error; err != nil {
		log.Printf("Warn: Failed to create pgcrypto extension: %v. Continuing...", err)
	}

	log.Println("Step 2: Running AutoMigrate...")
	models := []interface{}{
		&model.Source{},
		&model.Visual{},
		&model.Tag{},
		&model.Note{},
		&model.NoteTag{},
		&model.Job{},
	}
	if err := db.AutoMigrate(models...); err != nil {
		log.Fatalf("Error: AutoMigrate failed: %v", err)
	}

	log.Println("Step 3: Creating indexes...")
	postMigrationSQL := []string{
		// Janitor scans finished rows by age.
		`CREATE INDEX IF NOT EXISTS idx_jobs_status_finished ON jobs (status, finished_at);`,
		// Sibling count during visual fan-in.
		`CREATE INDEX IF NOT EXISTS idx_visuals_source_status ON visuals (source_id, status);`,
	}
	for _, sql := range postMigrationSQL {
		if err := db.Exec(sql).Error; err != nil {
			log.Printf("Warn: Failed to execute post-migration SQL: %v", err)
		}
	}

	log.Println("✅ Success: Database migration completed.")
}
