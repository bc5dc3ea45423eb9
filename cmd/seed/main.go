package main

import (
	"context"
	"log"
	"os"
	"strings"

	"notification-hub-be/internal/repository/implementation"
	"notification-hub-be/pkg/database"

	"github.com/joho/godotenv"
)

func main() {
	// Load Environment Variables
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

	users := strings.Split(os.Getenv("SEED_USERS"), ",")
	if len(users) == 1 && users[0] == "" {
		users = []string{"user1", "user2"}
	}

	log.Println("Seeding demo notifications...")
	created, err := SeedNotifications(context.Background(), implementation.NewNotificationRepository(db), users)
	if err != nil {
		log.Fatalf("Error: seeding failed after %d notifications: %v", created, err)
	}
	log.Printf("Success: %d notifications seeded.", created)
}
