package password

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

var ErrEmptyPassword = errors.New("password cannot be empty")

type BcryptPasswordService struct {
	cost int

	dummyOnce sync.Once
	dummyHash []byte
}

func NewBcryptPasswordService(cost int) *BcryptPasswordService {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	return &BcryptPasswordService{
		cost: cost,
	}
}

// HashPassword returns a self-describing bcrypt hash ($2a$<cost>$<salt+digest>)
// with a fresh random salt.
func (s *BcryptPasswordService) HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	return string(hashedPassword), nil
}

// VerifyPassword compares in constant time. Empty input, a malformed hash
// and a mismatch all report false.
func (s *BcryptPasswordService) VerifyPassword(password, hash string) bool {
	if hash == "" || password == "" {
		return false
	}

	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// BurnCompare runs a full-cost comparison against a throwaway hash and
// discards the result, so the unknown-email path costs the same as a wrong
// password.
func (s *BcryptPasswordService) BurnCompare(password string) {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("unknown-user-placeholder"), s.cost)
	})
	_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
}

// Cost reports the cost embedded in hash.
func Cost(hash string) (int, error) {
	return bcrypt.Cost([]byte(hash))
}
