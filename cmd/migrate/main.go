package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/ammachi-ai/backend/internal/database"
)

// Applies the schema to the configured database and exits. Deploys run this
// before starting the API so a schema failure is caught outside the serving
// path.
func main() {
	_ = godotenv.Load()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable is not set")
	}

	if _, err := database.Connect(dsn); err != nil {
		log.Fatalf("migration failed: %v", err)
	}
	log.Println("migration complete")
}
