// Command promote adds an existing user to the Moderator group.
//
//	go run ./cmd/promote -username jan
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/spendwise-app/spendwise-backend/internal/config"
	"github.com/spendwise-app/spendwise-backend/internal/users"
)

func main() {
	username := flag.String("username", "", "username to promote")
	flag.Parse()
	if *username == "" {
		log.Fatal("usage: promote -username <username>")
	}

	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("error creating pgx pool: %v", err)
	}
	defer pool.Close()

	repo := users.NewRepository(pool)
	u, err := repo.FindByUsername(ctx, *username)
	if err != nil {
		log.Fatalf("find user %q: %v", *username, err)
	}
	if err := repo.AddToGroup(ctx, u.ID, users.ModeratorGroup); err != nil {
		log.Fatalf("add to group: %v", err)
	}
	log.Printf("%s is now a moderator", u.Username)
}
