package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/joho/godotenv"

	"peer-review-api/config"
	"peer-review-api/models"
	"peer-review-api/services"
	"peer-review-api/storage/backend"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	var in services.CreateUserInput
	flag.StringVar(&in.Name, "name", "", "display name")
	flag.StringVar(&in.Email, "email", "", "login email")
	flag.StringVar(&in.Password, "password", "", "initial password (min 8 characters)")
	flag.StringVar(&in.Role, "role", models.RoleAuthor, "author, reviewer, editor or admin")
	flag.Parse()

	settings := config.Load()
	ctx := context.Background()
	store, closeStore, err := backend.Open(ctx, settings)
	if err != nil {
		log.Fatalf("open storage: %v", err)
	}
	defer closeStore()

	u, err := services.NewUserService(store).CreateUser(ctx, in)
	if err != nil {
		log.Fatalf("create user: %v", err)
	}
	fmt.Printf("Created %s %s (%s)\n", u.Role, u.Email, u.ID)
}
