package inbound

import (
	"context"
	"time"

	"github.com/cloudcommerce/user-service/domain/entity"
	"github.com/cloudcommerce/user-service/domain/valueobject"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
	// CallerID is the user id of an authenticated caller, zero when
	// anonymous. It is set by the HTTP layer, never decoded from the body.
	CallerID int64 `json:"-"`
}

type ValidateRequest struct {
	Token string `json:"token"`
}

type RefreshRequest struct {
	Token string `json:"token"`
}

type LogoutRequest struct {
	Token string `json:"token"`
}

// AuthResponse is returned by login, register and refresh.
type AuthResponse struct {
	Token     string          `json:"token"`
	ExpiresIn int             `json:"expiresIn"`
	ExpiresAt time.Time       `json:"expiresAt"`
	User      entity.UserView `json:"user"`
}

type ValidateResponse struct {
	Valid     bool                  `json:"valid"`
	User      entity.UserView       `json:"user"`
	TokenInfo valueobject.TokenInfo `json:"tokenInfo"`
}

type AuthUseCase interface {
	Login(ctx context.Context, req LoginRequest) (*AuthResponse, error)
	Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error)
	Validate(ctx context.Context, req ValidateRequest) (*ValidateResponse, error)
	Refresh(ctx context.Context, req RefreshRequest) (*AuthResponse, error)
	Logout(ctx context.Context, req LogoutRequest) error
	Me(ctx context.Context, userID int64) (*entity.UserView, error)
}
