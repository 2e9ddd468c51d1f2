package outbound

import (
	"errors"
	"time"

	"github.com/cloudcommerce/user-service/domain/entity"
)

var (
	ErrSignatureInvalid = errors.New("token signature invalid")
	ErrTokenExpired     = errors.New("token expired")
)

// TokenClaims is the identity payload embedded in a token.
type TokenClaims struct {
	UserID int64       `json:"userId"`
	Email  string      `json:"email"`
	Role   entity.Role `json:"role"`
}

// TokenInfo is a decoded token.
type TokenInfo struct {
	Claims    TokenClaims
	ID        string
	Issuer    string
	IssuedAt  time.Time
	ExpiresAt time.Time
	// AuthTime is when the credential-backed session started. It survives
	// refreshes.
	AuthTime time.Time
}

type MintOptions struct {
	AuthTime time.Time
}

type MintOption func(*MintOptions)

// WithAuthTime carries the original session start into a new token.
func WithAuthTime(at time.Time) MintOption {
	return func(o *MintOptions) {
		o.AuthTime = at
	}
}

type TokenService interface {
	Mint(claims TokenClaims, ttl time.Duration, issuer string, opts ...MintOption) (string, error)
	// Verify fails with ErrSignatureInvalid or ErrTokenExpired.
	Verify(token string) (*TokenInfo, error)
	// DecodeUnverified skips signature and expiry checks. Only call it on a
	// token Verify has classified as ErrTokenExpired.
	DecodeUnverified(token string) (*TokenInfo, error)
}
