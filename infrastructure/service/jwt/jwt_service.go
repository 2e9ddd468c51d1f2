package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/cloudcommerce/user-service/application/port/outbound"
	"github.com/cloudcommerce/user-service/domain/entity"
)

var (
	ErrInvalidToken = outbound.ErrSignatureInvalid
	ErrTokenExpired = outbound.ErrTokenExpired

	ErrEmptySecret = errors.New("jwt signing secret is empty")
)

// sessionClaims is the wire form of a session token.
type sessionClaims struct {
	UserID   int64            `json:"userId"`
	Email    string           `json:"email"`
	Role     string           `json:"role"`
	AuthTime *jwt.NumericDate `json:"auth_time,omitempty"`
	jwt.RegisteredClaims
}

// JWTService mints and verifies HS256 session tokens.
type JWTService struct {
	hmacSecret []byte
	issuer     string
	clock      outbound.Clock
}

func NewJWTService(secret, issuer string, clock outbound.Clock) (*JWTService, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	return &JWTService{
		hmacSecret: []byte(secret),
		issuer:     issuer,
		clock:      clock,
	}, nil
}

// Mint signs claims with iat=now and exp=now+ttl. The signature covers the
// claims, both timestamps and the issuer.
func (s *JWTService) Mint(claims outbound.TokenClaims, ttl time.Duration, issuer string, opts ...outbound.MintOption) (string, error) {
	var options outbound.MintOptions
	for _, opt := range opts {
		opt(&options)
	}

	now := s.clock.Now()
	authTime := options.AuthTime
	if authTime.IsZero() {
		authTime = now
	}

	tokenClaims := sessionClaims{
		UserID:   claims.UserID,
		Email:    claims.Email,
		Role:     string(claims.Role),
		AuthTime: jwt.NewNumericDate(authTime),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims)
	tokenString, err := token.SignedString(s.hmacSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// Verify succeeds only for an untampered token from this issuer with now < exp.
func (s *JWTService) Verify(tokenString string) (*outbound.TokenInfo, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(s.clock.Now),
	)

	var claims sessionClaims
	token, err := parser.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.hmacSecret, nil
	})
	if err != nil {
		return nil, s.handleValidationError(err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	return toTokenInfo(&claims)
}

// DecodeUnverified reads the claims without checking signature or expiry.
func (s *JWTService) DecodeUnverified(tokenString string) (*outbound.TokenInfo, error) {
	var claims sessionClaims
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, &claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return toTokenInfo(&claims)
}

// handleValidationError classifies parser failures. The parser checks the
// signature before any claim, so an expiry error implies a good signature.
// An expired token that also fails another claim check is still invalid.
func (s *JWTService) handleValidationError(err error) error {
	if errors.Is(err, jwt.ErrTokenExpired) &&
		!errors.Is(err, jwt.ErrTokenInvalidIssuer) &&
		!errors.Is(err, jwt.ErrTokenSignatureInvalid) {
		return fmt.Errorf("%w: %v", ErrTokenExpired, err)
	}
	return fmt.Errorf("%w: %v", ErrInvalidToken, err)
}

func toTokenInfo(claims *sessionClaims) (*outbound.TokenInfo, error) {
	if claims.UserID == 0 || claims.ExpiresAt == nil || claims.IssuedAt == nil {
		return nil, fmt.Errorf("%w: missing required claims", ErrInvalidToken)
	}

	info := &outbound.TokenInfo{
		Claims: outbound.TokenClaims{
			UserID: claims.UserID,
			Email:  claims.Email,
			Role:   entity.Role(claims.Role),
		},
		ID:        claims.ID,
		Issuer:    claims.Issuer,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if claims.AuthTime != nil {
		info.AuthTime = claims.AuthTime.Time
	} else {
		info.AuthTime = info.IssuedAt
	}
	return info, nil
}
