package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/cloudcommerce/user-service/domain/entity"
	"github.com/cloudcommerce/user-service/infrastructure/config"
	"github.com/cloudcommerce/user-service/infrastructure/persistence/memory"
	"github.com/cloudcommerce/user-service/infrastructure/service/clock"
	"github.com/cloudcommerce/user-service/infrastructure/service/password"
)

// create_admin appends a hashed admin account to the seed file the server
// loads at startup.
func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	path := flag.String("file", cfg.SeedFile, "seed file to append to")
	email := flag.String("email", "", "admin email")
	userPassword := flag.String("password", "", "admin password")
	name := flag.String("name", "Administrator", "display name")
	flag.Parse()

	if *path == "" || *email == "" || *userPassword == "" {
		log.Fatalf("usage: create_admin -file seed.json -email admin@example.com -password secret [-name Name]")
	}

	records, err := memory.LoadSeedFile(*path)
	if err != nil {
		log.Fatalf("Failed to read seed file: %v", err)
	}

	// Replay the existing records so duplicates and id assignment follow the
	// same rules as server startup.
	repo := memory.NewUserRepository(clock.NewSystemClock())
	if err := repo.Seed(ctx, records); err != nil {
		log.Fatalf("Existing seed file is invalid: %v", err)
	}

	passwordService := password.NewBcryptPasswordService(cfg.BcryptCost)
	hashedPassword, err := passwordService.HashPassword(*userPassword)
	if err != nil {
		log.Fatalf("Failed to hash password: %v", err)
	}

	admin, err := repo.Create(ctx, entity.NewUser(*email, hashedPassword, *name, entity.RoleAdmin))
	if err != nil {
		log.Fatalf("Failed to create admin user: %v", err)
	}

	records = append(records, memory.SeedRecord{
		ID:           admin.ID,
		Email:        admin.Email,
		PasswordHash: admin.PasswordHash,
		Name:         admin.Name,
		Role:         string(admin.Role),
		CreatedAt:    admin.CreatedAt.Truncate(time.Second),
	})
	if err := memory.SaveSeedFile(*path, records); err != nil {
		log.Fatalf("Failed to write seed file: %v", err)
	}

	fmt.Printf("Admin user created\n")
	fmt.Printf("  ID:    %d\n", admin.ID)
	fmt.Printf("  Email: %s\n", admin.Email)
	fmt.Printf("  Name:  %s\n", admin.Name)
	fmt.Printf("  File:  %s\n", *path)
}
