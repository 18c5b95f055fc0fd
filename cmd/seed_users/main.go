package main

import (
	"context"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/ammachi-ai/backend/internal/database"
	"github.com/ammachi-ai/backend/internal/models"
	"github.com/ammachi-ai/backend/internal/store"
)

// Seeds demo farmer profiles for local development and UI work. Provider
// identities are not created, so these accounts cannot log in; they exist to
// fill profile and dashboard views.
func main() {
	_ = godotenv.Load()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable is not set")
	}

	db, err := database.Connect(dsn)
	if err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	userStore := store.NewPostgresStore(db)

	users := []models.User{
		{
			Email:        "ravi.farmer@example.com",
			DisplayName:  "Ravi Kumar",
			Language:     "ml",
			District:     "Ernakulam",
			State:        "Kerala",
			PhoneNumber:  "+919876543210",
			PrimaryCrops: models.StringList{"Rice", "Coconut"},
			Farms: models.FarmList{
				{Name: "Home paddy field", Acres: 2.5, Location: "Aluva", Crops: []string{"Rice"}},
			},
			FarmSize:   2.5,
			Experience: 12,
		},
		{
			Email:        "lakshmi.farmer@example.com",
			DisplayName:  "Lakshmi Menon",
			Language:     "en",
			District:     "Thrissur",
			State:        "Kerala",
			PrimaryCrops: models.StringList{"Banana", "Black Pepper"},
			FarmSize:     1.2,
			Experience:   5,
		},
	}

	ctx := context.Background()
	for i := range users {
		if err := userStore.Create(ctx, &users[i]); err != nil {
			if err == store.ErrDuplicateUser {
				log.Printf("skipping %s, already seeded", users[i].Email)
				continue
			}
			log.Fatalf("failed to seed %s: %v", users[i].Email, err)
		}
		log.Printf("seeded %s", users[i].Email)
	}
}
