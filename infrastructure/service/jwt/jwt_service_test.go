package jwt

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudcommerce/user-service/application/port/outbound"
	"github.com/cloudcommerce/user-service/domain/entity"
	"github.com/cloudcommerce/user-service/infrastructure/service/clock"
)

const (
	testSecret = "test-secret"
	testIssuer = "cloudcommerce-user-service"
)

var testClaims = outbound.TokenClaims{UserID: 42, Email: "a@x.com", Role: entity.RoleCustomer}

func newTestService(t *testing.T) (*JWTService, *clock.FixedClock) {
	t.Helper()
	clk := clock.NewFixedClock(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	service, err := NewJWTService(testSecret, testIssuer, clk)
	require.NoError(t, err)
	return service, clk
}

func TestNewJWTService_RequiresSecret(t *testing.T) {
	_, err := NewJWTService("", testIssuer, clock.NewSystemClock())
	assert.ErrorIs(t, err, ErrEmptySecret)
}

func TestJWTService(t *testing.T) {
	service, clk := newTestService(t)

	t.Run("RoundTrip", func(t *testing.T) {
		token, err := service.Mint(testClaims, time.Hour, testIssuer)
		require.NoError(t, err)
		require.NotEmpty(t, token)

		info, err := service.Verify(token)
		require.NoError(t, err)
		assert.Equal(t, testClaims, info.Claims)
		assert.Equal(t, testIssuer, info.Issuer)
		assert.Equal(t, clk.Now(), info.IssuedAt.UTC())
		assert.Equal(t, clk.Now().Add(time.Hour), info.ExpiresAt.UTC())
		assert.Equal(t, info.IssuedAt, info.AuthTime)
		assert.NotEmpty(t, info.ID)
	})

	t.Run("TokensAreUnique", func(t *testing.T) {
		first, err := service.Mint(testClaims, time.Hour, testIssuer)
		require.NoError(t, err)
		second, err := service.Mint(testClaims, time.Hour, testIssuer)
		require.NoError(t, err)
		assert.NotEqual(t, first, second)
	})

	t.Run("AuthTimeIsCarried", func(t *testing.T) {
		started := clk.Now().Add(-72 * time.Hour)
		token, err := service.Mint(testClaims, time.Hour, testIssuer, outbound.WithAuthTime(started))
		require.NoError(t, err)

		info, err := service.Verify(token)
		require.NoError(t, err)
		assert.Equal(t, started, info.AuthTime.UTC())
	})

	t.Run("NegativeTTLIsExpired", func(t *testing.T) {
		token, err := service.Mint(testClaims, -time.Second, testIssuer)
		require.NoError(t, err)

		_, err = service.Verify(token)
		assert.ErrorIs(t, err, ErrTokenExpired)
		assert.NotErrorIs(t, err, ErrInvalidToken)

		info, err := service.DecodeUnverified(token)
		require.NoError(t, err)
		assert.Equal(t, testClaims, info.Claims)
	})

	t.Run("ZeroTTLIsExpired", func(t *testing.T) {
		token, err := service.Mint(testClaims, 0, testIssuer)
		require.NoError(t, err)

		_, err = service.Verify(token)
		assert.ErrorIs(t, err, ErrTokenExpired)
	})

	t.Run("ExpiresWhenClockPassesTTL", func(t *testing.T) {
		token, err := service.Mint(testClaims, time.Minute, testIssuer)
		require.NoError(t, err)

		clk.Advance(59 * time.Second)
		_, err = service.Verify(token)
		require.NoError(t, err)

		clk.Advance(time.Second)
		_, err = service.Verify(token)
		assert.ErrorIs(t, err, ErrTokenExpired)
	})

	t.Run("ValidateInvalidToken", func(t *testing.T) {
		_, err := service.Verify("invalid-token")
		assert.ErrorIs(t, err, ErrInvalidToken)

		_, err = service.DecodeUnverified("invalid-token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("WrongSecret", func(t *testing.T) {
		other, err := NewJWTService("another-secret", testIssuer, clk)
		require.NoError(t, err)
		token, err := other.Mint(testClaims, time.Hour, testIssuer)
		require.NoError(t, err)

		_, err = service.Verify(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("WrongSecretAndExpiredIsInvalid", func(t *testing.T) {
		other, err := NewJWTService("another-secret", testIssuer, clk)
		require.NoError(t, err)
		token, err := other.Mint(testClaims, -time.Hour, testIssuer)
		require.NoError(t, err)

		_, err = service.Verify(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
		assert.NotErrorIs(t, err, ErrTokenExpired)
	})

	t.Run("WrongIssuer", func(t *testing.T) {
		token, err := service.Mint(testClaims, time.Hour, "someone-else")
		require.NoError(t, err)

		_, err = service.Verify(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("AlgNoneRejected", func(t *testing.T) {
		unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
			"userId": 42,
			"iss":    testIssuer,
			"iat":    clk.Now().Unix(),
			"exp":    clk.Now().Add(time.Hour).Unix(),
		})
		token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = service.Verify(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestJWTService_TamperRejection(t *testing.T) {
	service, _ := newTestService(t)

	for name, ttl := range map[string]time.Duration{"live": time.Hour, "expired": -time.Hour} {
		t.Run(name, func(t *testing.T) {
			token, err := service.Mint(testClaims, ttl, testIssuer)
			require.NoError(t, err)

			for i := 0; i < len(token); i++ {
				replacement := byte('A')
				if token[i] == 'A' {
					replacement = 'B'
				}
				tampered := token[:i] + string(replacement) + token[i+1:]

				_, err := service.Verify(tampered)
				if !assert.ErrorIs(t, err, ErrInvalidToken, "byte %d", i) {
					continue
				}
				assert.NotErrorIs(t, err, ErrTokenExpired, "byte %d", i)
			}
		})
	}
}

func TestJWTService_TamperedPayloadKeepsSignatureInvalid(t *testing.T) {
	service, _ := newTestService(t)
	token, err := service.Mint(testClaims, time.Hour, testIssuer)
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)

	forged, err := service.Mint(outbound.TokenClaims{UserID: 1, Email: "admin@x.com", Role: entity.RoleAdmin}, time.Hour, testIssuer)
	require.NoError(t, err)
	forgedParts := strings.Split(forged, ".")

	// admin payload grafted onto a customer signature
	spliced := parts[0] + "." + forgedParts[1] + "." + parts[2]
	_, err = service.Verify(spliced)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
