package memory

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/cloudcommerce/user-service/application/port/outbound"
	"github.com/cloudcommerce/user-service/domain/entity"
)

// SeedRecord is one user in a seed file. Credentials are stored hashed.
type SeedRecord struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"passwordHash"`
	Name         string    `json:"name"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
}

// LoadSeedFile reads a JSON array of SeedRecord. A missing file yields no
// records.
func LoadSeedFile(path string) ([]SeedRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}

	var records []SeedRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse seed file %s: %w", path, err)
	}
	return records, nil
}

// SaveSeedFile writes records as an indented JSON array.
func SaveSeedFile(path string, records []SeedRecord) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode seed file: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("failed to write seed file: %w", err)
	}
	return nil
}

// DemoUsers builds the two development accounts:
// admin@cloudcommerce.com / admin123 and user@cloudcommerce.com / user123.
func DemoUsers(passwords outbound.PasswordService) ([]SeedRecord, error) {
	demo := []struct {
		email, password, name string
		role                  entity.Role
	}{
		{"admin@cloudcommerce.com", "admin123", "Admin User", entity.RoleAdmin},
		{"user@cloudcommerce.com", "user123", "Regular User", entity.RoleCustomer},
	}

	records := make([]SeedRecord, 0, len(demo))
	for i, d := range demo {
		hash, err := passwords.HashPassword(d.password)
		if err != nil {
			return nil, fmt.Errorf("failed to hash demo password for %s: %w", d.email, err)
		}
		records = append(records, SeedRecord{
			ID:           int64(i + 1),
			Email:        d.email,
			PasswordHash: hash,
			Name:         d.name,
			Role:         string(d.role),
		})
	}
	return records, nil
}
