package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/cloudcommerce/user-service/domain/entity"
	"github.com/cloudcommerce/user-service/infrastructure/persistence/memory"
	"github.com/cloudcommerce/user-service/infrastructure/service/clock"
	"github.com/cloudcommerce/user-service/infrastructure/service/password"
)

// seed writes the demo accounts to SEED_FILE, or upserts a single
// SEED_USER_* account when SEED_USER_EMAIL is set.
func main() {
	path := getenvDefault("SEED_FILE", "users.seed.json")
	passwordService := password.NewBcryptPasswordService(10)

	email := os.Getenv("SEED_USER_EMAIL")
	if email == "" {
		demo, err := memory.DemoUsers(passwordService)
		if err != nil {
			log.Fatalf("failed to build demo users: %v", err)
		}
		if err := memory.SaveSeedFile(path, demo); err != nil {
			log.Fatalf("failed to write seed file: %v", err)
		}
		fmt.Printf("Wrote %d demo users to %s\n", len(demo), path)
		return
	}

	userPassword := getenvDefault("SEED_USER_PASSWORD", "Demo1234!")
	role, ok := entity.ParseRole(getenvDefault("SEED_USER_ROLE", string(entity.RoleCustomer)))
	if !ok {
		log.Fatalf("SEED_USER_ROLE must be admin or customer")
	}

	records, err := memory.LoadSeedFile(path)
	if err != nil {
		log.Fatalf("failed to read seed file: %v", err)
	}

	hash, err := passwordService.HashPassword(userPassword)
	if err != nil {
		log.Fatalf("failed to hash password: %v", err)
	}

	// upsert by email, keeping the existing id
	for i := range records {
		if records[i].Email == email {
			records[i].PasswordHash = hash
			records[i].Role = string(role)
			if err := memory.SaveSeedFile(path, records); err != nil {
				log.Fatalf("failed to write seed file: %v", err)
			}
			fmt.Printf("Updated user: email=%s role=%s id=%d\n", email, role, records[i].ID)
			return
		}
	}

	repo := memory.NewUserRepository(clock.NewSystemClock())
	if err := repo.Seed(context.Background(), records); err != nil {
		log.Fatalf("existing seed file is invalid: %v", err)
	}
	user, err := repo.Create(context.Background(), entity.NewUser(email, hash, getenvDefault("SEED_USER_NAME", "Demo User"), role))
	if err != nil {
		log.Fatalf("failed to seed user: %v", err)
	}
	records = append(records, memory.SeedRecord{
		ID:           user.ID,
		Email:        user.Email,
		PasswordHash: user.PasswordHash,
		Name:         user.Name,
		Role:         string(user.Role),
		CreatedAt:    user.CreatedAt,
	})
	if err := memory.SaveSeedFile(path, records); err != nil {
		log.Fatalf("failed to write seed file: %v", err)
	}

	fmt.Printf("Seeded user: email=%s role=%s id=%d\n", email, role, user.ID)
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
