package outbound

import (
	"context"
	"errors"
	"time"

	"github.com/cloudcommerce/user-service/domain/entity"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrUserAlreadyExists = errors.New("user already exists")
)

// UserRepository is the credential store. Implementations must serialize
// mutations so that id assignment never races.
type UserRepository interface {
	FindByID(ctx context.Context, id int64) (*entity.User, error)
	FindByEmail(ctx context.Context, email string) (*entity.User, error)
	// Create assigns the next id and creation time and returns the stored record.
	Create(ctx context.Context, user *entity.User) (*entity.User, error)
	RecordLogin(ctx context.Context, id int64, at time.Time) error
}
