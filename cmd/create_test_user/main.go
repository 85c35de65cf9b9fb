package main

import (
	"context"
	"log"
	"os"

	"minefield_webapp/internal/db"
	"minefield_webapp/internal/domain"
	"minefield_webapp/internal/repository"
	"minefield_webapp/internal/service"
)

func main() {
	// expects DATABASE_URL env var
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL not set")
	}

	pool := db.Connect(dsn)
	defer pool.Close()

	repo := repository.NewUserRepository(pool)
	ctx := context.Background()

	username := "testuser"
	if len(os.Args) > 1 {
		username = os.Args[1]
	}

	// try to find existing user
	u, err := repo.GetByUsername(ctx, username)
	if err != nil {
		log.Fatalf("get by username failed: %v", err)
	}
	if u != nil {
		log.Printf("user already exists id=%d\n", u.ID)
	} else {
		u = &domain.User{Username: username}
		if err := repo.Create(ctx, u); err != nil {
			log.Fatalf("create user failed: %v", err)
		}
		log.Printf("user created id=%d\n", u.ID)
	}

	// verify read
	u2, err := repo.GetByID(ctx, u.ID)
	if err != nil || u2 == nil {
		log.Fatalf("get by id failed: %v", err)
	}
	log.Printf("fetched user id=%d username=%s gems=%d created_at=%v\n", u2.ID, u2.Username, u2.Gems, u2.CreatedAt)

	// initialize JWT and print token
	service.InitJWT()
	token, err := service.GenerateJWT(u2.ID)
	if err != nil {
		log.Fatalf("failed to generate token: %v", err)
	}
	log.Printf("token=%s\n", token)
}
