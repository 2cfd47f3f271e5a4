package main

import (
	"context"
	"errors"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/noah-isme/grocery-pos/internal/domain"
	"github.com/noah-isme/grocery-pos/internal/store"
	"github.com/noah-isme/grocery-pos/internal/store/postgres"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	if err := postgres.Migrate(dbURL); err != nil {
		log.Fatalf("Failed to migrate: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pg, err := postgres.New(ctx, postgres.Options{URL: dbURL, ApplicationName: "grocery-pos-seeder"})
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer pg.Close()

	if err := store.Seed(ctx, skipExisting{pg}); err != nil {
		log.Fatalf("Failed to seed: %v", err)
	}
	log.Println("Seeding completed successfully!")
}

// skipExisting keeps already registered coupon codes so the seeder can be rerun.
type skipExisting struct {
	*postgres.Store
}

func (s skipExisting) CreateCoupon(ctx context.Context, c domain.Coupon) (domain.Coupon, error) {
	created, err := s.Store.CreateCoupon(ctx, c)
	var conflict *domain.ConflictError
	if errors.As(err, &conflict) {
		log.Printf("Coupon %s already present, skipping", c.Code)
		return c, nil
	}
	return created, err
}
