package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cloudcommerce/user-service/application/port/outbound"
	"github.com/cloudcommerce/user-service/domain/entity"
)

// UserRepository keeps users in process memory. All mutations take the write
// lock, so id assignment (max+1) and the duplicate-email check are atomic
// with the insert.
type UserRepository struct {
	mu      sync.RWMutex
	clock   outbound.Clock
	users   map[int64]*entity.User
	byEmail map[string]int64
	maxID   int64
}

func NewUserRepository(clock outbound.Clock) *UserRepository {
	return &UserRepository{
		clock:   clock,
		users:   make(map[int64]*entity.User),
		byEmail: make(map[string]int64),
	}
}

func (r *UserRepository) FindByID(ctx context.Context, id int64) (*entity.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[id]
	if !ok {
		return nil, outbound.ErrUserNotFound
	}
	return user.Clone(), nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return nil, outbound.ErrUserNotFound
	}
	return r.users[id].Clone(), nil
}

// Create stores a copy of user under the next id. Ids come from a counter
// that only grows, so the id of a deleted user is never handed out again,
// even when it was the highest.
func (r *UserRepository) Create(ctx context.Context, user *entity.User) (*entity.User, error) {
	if user == nil {
		return nil, fmt.Errorf("user cannot be nil")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byEmail[user.Email]; exists {
		return nil, outbound.ErrUserAlreadyExists
	}

	stored := user.Clone()
	r.maxID++
	stored.ID = r.maxID
	stored.CreatedAt = r.clock.Now().UTC()
	stored.LastLogin = nil

	r.users[stored.ID] = stored
	r.byEmail[stored.Email] = stored.ID

	return stored.Clone(), nil
}

func (r *UserRepository) RecordLogin(ctx context.Context, id int64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return outbound.ErrUserNotFound
	}
	lastLogin := at.UTC()
	user.LastLogin = &lastLogin
	return nil
}

// Delete removes a user. The auth flows never call it; it exists for admin
// tooling and for exercising tokens that outlive their user.
func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return outbound.ErrUserNotFound
	}
	delete(r.byEmail, user.Email)
	delete(r.users, id)
	return nil
}

// Count returns the number of stored users.
func (r *UserRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}

// Seed inserts pre-built records, keeping their ids. Records with an id of
// zero get the next free id.
func (r *UserRepository) Seed(ctx context.Context, records []SeedRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, rec := range records {
		role, ok := entity.ParseRole(rec.Role)
		if !ok {
			return fmt.Errorf("seed user %q: invalid role %q", rec.Email, rec.Role)
		}
		if rec.Email == "" || rec.PasswordHash == "" {
			return fmt.Errorf("seed user %d: email and passwordHash are required", rec.ID)
		}
		if _, exists := r.byEmail[rec.Email]; exists {
			return fmt.Errorf("seed user %q: %w", rec.Email, outbound.ErrUserAlreadyExists)
		}

		id := rec.ID
		if id == 0 {
			id = r.maxID + 1
		}
		if _, exists := r.users[id]; exists {
			return fmt.Errorf("seed user %q: duplicate id %d", rec.Email, id)
		}

		createdAt := rec.CreatedAt
		if createdAt.IsZero() {
			createdAt = r.clock.Now()
		}

		user := entity.NewUser(rec.Email, rec.PasswordHash, rec.Name, role)
		user.ID = id
		user.CreatedAt = createdAt.UTC()

		r.users[id] = user
		r.byEmail[user.Email] = id
		if id > r.maxID {
			r.maxID = id
		}
	}
	return nil
}
