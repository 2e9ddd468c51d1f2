package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudcommerce/user-service/application/port/inbound"
	"github.com/cloudcommerce/user-service/application/port/outbound"
	"github.com/cloudcommerce/user-service/application/usecase"
	"github.com/cloudcommerce/user-service/domain/entity"
	domainerr "github.com/cloudcommerce/user-service/domain/error"
	"github.com/cloudcommerce/user-service/infrastructure/persistence/memory"
	"github.com/cloudcommerce/user-service/infrastructure/service/clock"
	"github.com/cloudcommerce/user-service/infrastructure/service/jwt"
	"github.com/cloudcommerce/user-service/infrastructure/service/logger"
	"github.com/cloudcommerce/user-service/infrastructure/service/password"
	"github.com/cloudcommerce/user-service/infrastructure/service/ratelimit"
)

const testIssuer = "cloudcommerce-user-service"

type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Code    string          `json:"code"`
	Details string          `json:"details"`
}

type testServer struct {
	handler http.Handler
	clock   *clock.FixedClock
	tokens  *jwt.JWTService
	repo    *memory.UserRepository
}

func newTestServer(t *testing.T, mutate func(*ServerConfig, *Dependencies)) *testServer {
	t.Helper()
	clk := clock.NewFixedClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	tokens, err := jwt.NewJWTService("test-secret", testIssuer, clk)
	require.NoError(t, err)
	repo := memory.NewUserRepository(clk)
	passwords := password.NewBcryptPasswordService(4)
	log := logger.NewNopLogger()

	config := ServerConfig{
		Environment:          "test",
		CORSEnabled:          true,
		CORSAllowedOrigins:   []string{"http://localhost:3000"},
		CORSAllowCredentials: true,
		RateLimit:            100,
		RateLimitWindow:      15 * time.Minute,
	}
	deps := Dependencies{
		AuthUseCase: usecase.NewAuthUseCase(repo, tokens, passwords, clk, log, usecase.AuthConfig{
			TokenTTL: time.Hour,
			Issuer:   testIssuer,
		}),
		TokenService: tokens,
		RateLimiter:  ratelimit.NoopRateLimitService{},
		Clock:        clk,
		Logger:       log,
		Users:        repo,
	}
	if mutate != nil {
		mutate(&config, &deps)
	}

	return &testServer{handler: NewRouter(config, deps), clock: clk, tokens: tokens, repo: repo}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}, headers map[string]string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

func testClaims(id int64, role entity.Role) outbound.TokenClaims {
	return outbound.TokenClaims{UserID: id, Email: "admin@x.com", Role: role}
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func decodeData(t *testing.T, env envelope, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Data, dst))
}

func TestRouter_SessionLifecycle(t *testing.T) {
	s := newTestServer(t, nil)

	rec, env := s.do(t, http.MethodPost, "/api/auth/register", map[string]string{
		"name": "Carol", "email": "c@x.com", "password": "pw",
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.True(t, env.Status)
	var registered inbound.AuthResponse
	decodeData(t, env, &registered)
	assert.Equal(t, int64(1), registered.User.ID)
	assert.Equal(t, entity.RoleCustomer, registered.User.Role)
	assert.Equal(t, 3600, registered.ExpiresIn)
	assert.NotContains(t, rec.Body.String(), "passwordHash")

	rec, env = s.do(t, http.MethodPost, "/api/auth/login", map[string]string{"email": "c@x.com", "password": "pw"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Login successful", env.Message)
	var loggedIn inbound.AuthResponse
	decodeData(t, env, &loggedIn)
	require.NotNil(t, loggedIn.User.LastLogin)

	rec, env = s.do(t, http.MethodPost, "/api/auth/validate", map[string]string{"token": loggedIn.Token}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var validated inbound.ValidateResponse
	decodeData(t, env, &validated)
	assert.True(t, validated.Valid)
	assert.Equal(t, s.clock.Now().Add(time.Hour), validated.TokenInfo.ExpiresAt)

	rec, env = s.do(t, http.MethodGet, "/api/auth/me", nil, bearer(loggedIn.Token))
	require.Equal(t, http.StatusOK, rec.Code)
	var me struct {
		User entity.UserView `json:"user"`
	}
	decodeData(t, env, &me)
	assert.Equal(t, "c@x.com", me.User.Email)

	s.clock.Advance(2 * time.Hour)
	rec, env = s.do(t, http.MethodPost, "/api/auth/validate", map[string]string{"token": loggedIn.Token}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, string(domainerr.ErrCodeTokenExpired), env.Code)

	rec, env = s.do(t, http.MethodPost, "/api/auth/refresh", map[string]string{"token": loggedIn.Token}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var refreshed inbound.AuthResponse
	decodeData(t, env, &refreshed)
	assert.NotEqual(t, loggedIn.Token, refreshed.Token)

	rec, env = s.do(t, http.MethodPost, "/api/auth/logout", nil, bearer(refreshed.Token))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Logged out successfully", env.Message)
}

func TestRouter_ErrorStatusMapping(t *testing.T) {
	s := newTestServer(t, nil)
	s.do(t, http.MethodPost, "/api/auth/register", map[string]string{"name": "C", "email": "c@x.com", "password": "pw"}, nil)

	forger, err := jwt.NewJWTService("attacker", testIssuer, s.clock)
	require.NoError(t, err)

	cases := []struct {
		name   string
		method string
		path   string
		body   interface{}
		header map[string]string
		status int
		code   domainerr.ErrorCode
	}{
		{"WrongPassword", http.MethodPost, "/api/auth/login", map[string]string{"email": "c@x.com", "password": "bad"}, nil, http.StatusUnauthorized, domainerr.ErrCodeInvalidCredentials},
		{"UnknownEmail", http.MethodPost, "/api/auth/login", map[string]string{"email": "z@x.com", "password": "pw"}, nil, http.StatusUnauthorized, domainerr.ErrCodeInvalidCredentials},
		{"MissingPassword", http.MethodPost, "/api/auth/login", map[string]string{"email": "c@x.com"}, nil, http.StatusBadRequest, domainerr.ErrCodeMissingFields},
		{"EmptyBody", http.MethodPost, "/api/auth/login", nil, nil, http.StatusBadRequest, domainerr.ErrCodeMissingFields},
		{"MalformedJSON", http.MethodPost, "/api/auth/login", "{not json", nil, http.StatusBadRequest, domainerr.ErrCodeInvalidRequest},
		{"DuplicateEmail", http.MethodPost, "/api/auth/register", map[string]string{"name": "C", "email": "c@x.com", "password": "pw"}, nil, http.StatusConflict, domainerr.ErrCodeDuplicateEmail},
		{"InvalidRole", http.MethodPost, "/api/auth/register", map[string]string{"name": "C", "email": "d@x.com", "password": "pw", "role": "root"}, nil, http.StatusBadRequest, domainerr.ErrCodeInvalidRole},
		{"AdminSelfRegistration", http.MethodPost, "/api/auth/register", map[string]string{"name": "C", "email": "d@x.com", "password": "pw", "role": "admin"}, nil, http.StatusForbidden, domainerr.ErrCodeRoleForbidden},
		{"GarbageToken", http.MethodPost, "/api/auth/validate", map[string]string{"token": "garbage"}, nil, http.StatusUnauthorized, domainerr.ErrCodeSignatureInvalid},
		{"MissingToken", http.MethodPost, "/api/auth/refresh", map[string]string{}, nil, http.StatusBadRequest, domainerr.ErrCodeMissingFields},
		{"MeWithoutToken", http.MethodGet, "/api/auth/me", nil, nil, http.StatusBadRequest, domainerr.ErrCodeMissingFields},
		{"MeWithForgedToken", http.MethodGet, "/api/auth/me", nil, nil, http.StatusUnauthorized, domainerr.ErrCodeSignatureInvalid},
	}

	forged, err := forger.Mint(testClaims(1, entity.RoleAdmin), time.Hour, testIssuer)
	require.NoError(t, err)
	cases[len(cases)-1].header = bearer(forged)

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, env := s.do(t, tc.method, tc.path, tc.body, tc.header)
			assert.Equal(t, tc.status, rec.Code, rec.Body.String())
			assert.False(t, env.Status)
			assert.Equal(t, string(tc.code), env.Code)
			assert.NotEmpty(t, env.Message)
		})
	}
}

func TestRouter_AdminMayRegisterAdmin(t *testing.T) {
	s := newTestServer(t, nil)
	require.NoError(t, s.repo.Seed(context.Background(), []memory.SeedRecord{{
		ID: 1, Email: "admin@x.com", PasswordHash: "unused", Name: "Admin", Role: "admin",
	}}))
	adminToken, err := s.tokens.Mint(testClaims(1, entity.RoleAdmin), time.Hour, testIssuer)
	require.NoError(t, err)

	body := map[string]string{"name": "Second", "email": "second@x.com", "password": "pw", "role": "admin"}
	rec, env := s.do(t, http.MethodPost, "/api/auth/register", body, bearer(adminToken))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp inbound.AuthResponse
	decodeData(t, env, &resp)
	assert.Equal(t, entity.RoleAdmin, resp.User.Role)
	assert.Equal(t, int64(2), resp.User.ID)
}

func TestRouter_AdminGateUsesStoredRole(t *testing.T) {
	s := newTestServer(t, nil)
	require.NoError(t, s.repo.Seed(context.Background(), []memory.SeedRecord{{
		ID: 1, Email: "admin@x.com", PasswordHash: "unused", Name: "Demoted", Role: "customer",
	}}))
	// still signed and live, but the account is no longer an admin
	staleToken, err := s.tokens.Mint(testClaims(1, entity.RoleAdmin), time.Hour, testIssuer)
	require.NoError(t, err)

	body := map[string]string{"name": "Second", "email": "second@x.com", "password": "pw", "role": "admin"}
	rec, env := s.do(t, http.MethodPost, "/api/auth/register", body, bearer(staleToken))
	assert.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())
	assert.Equal(t, string(domainerr.ErrCodeRoleForbidden), env.Code)
	assert.Equal(t, 1, s.repo.Count())
}

func TestRouter_UnknownRoute(t *testing.T) {
	s := newTestServer(t, nil)

	rec, env := s.do(t, http.MethodGet, "/api/nope", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	var data map[string]string
	decodeData(t, env, &data)
	assert.Equal(t, "/api/nope", data["path"])
	assert.Equal(t, http.MethodGet, data["method"])

	rec, env = s.do(t, http.MethodGet, "/api/auth/login", nil, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, http.MethodPost, rec.Header().Get("Allow"))
	assert.False(t, env.Status)

	rec, _ = s.do(t, http.MethodPost, "/api/auth/me", nil, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, http.MethodGet, rec.Header().Get("Allow"))

	rec, _ = s.do(t, http.MethodDelete, "/api/auth/logout", nil, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRouter_CORSWithoutCredentials(t *testing.T) {
	s := newTestServer(t, func(config *ServerConfig, deps *Dependencies) {
		config.CORSAllowCredentials = false
	})

	rec, _ := s.do(t, http.MethodOptions, "/api/auth/login", nil, map[string]string{
		"Origin":                        "http://localhost:3000",
		"Access-Control-Request-Method": "POST",
	})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestRouter_HealthAndRoot(t *testing.T) {
	s := newTestServer(t, nil)

	rec, env := s.do(t, http.MethodGet, "/health", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var health map[string]interface{}
	decodeData(t, env, &health)
	assert.Equal(t, "healthy", health["status"])
	assert.EqualValues(t, 0, health["users"])

	rec, _ = s.do(t, http.MethodGet, "/", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestRouter_CorrelationAndCORS(t *testing.T) {
	s := newTestServer(t, nil)

	rec, _ := s.do(t, http.MethodGet, "/health", nil, map[string]string{"X-Correlation-ID": "cid-1"})
	assert.Equal(t, "cid-1", rec.Header().Get("X-Correlation-ID"))

	rec, _ = s.do(t, http.MethodGet, "/health", nil, nil)
	assert.NotEmpty(t, rec.Header().Get("X-Correlation-ID"))

	rec, _ = s.do(t, http.MethodOptions, "/api/auth/login", nil, map[string]string{
		"Origin":                        "http://localhost:3000",
		"Access-Control-Request-Method": "POST",
	})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	rec, _ = s.do(t, http.MethodGet, "/health", nil, map[string]string{"Origin": "http://evil.example"})
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_RateLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	s := newTestServer(t, func(config *ServerConfig, deps *Dependencies) {
		config.RateLimit = 2
		config.RateLimitWindow = time.Minute
		deps.RateLimiter = ratelimit.NewRedisRateLimitService(client, deps.Logger)
	})

	login := map[string]string{"email": "c@x.com", "password": "pw"}
	for i := 0; i < 2; i++ {
		rec, _ := s.do(t, http.MethodPost, "/api/auth/login", login, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}

	rec, env := s.do(t, http.MethodPost, "/api/auth/login", login, nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, string(domainerr.ErrCodeRateLimitExceeded), env.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	// outside /api/ is never limited
	rec, _ = s.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	mr.FastForward(time.Minute + time.Second)
	rec, _ = s.do(t, http.MethodPost, "/api/auth/login", login, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_RateLimitIgnoresSpoofedForwardedFor(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	s := newTestServer(t, func(config *ServerConfig, deps *Dependencies) {
		config.RateLimit = 2
		config.RateLimitWindow = time.Minute
		deps.RateLimiter = ratelimit.NewRedisRateLimitService(client, deps.Logger)
	})

	login := map[string]string{"email": "c@x.com", "password": "pw"}
	statuses := make([]int, 0, 10)
	for i := 0; i < 10; i++ {
		rec, _ := s.do(t, http.MethodPost, "/api/auth/login", login, map[string]string{
			"X-Forwarded-For": fmt.Sprintf("198.51.100.%d", i+1),
		})
		statuses = append(statuses, rec.Code)
	}

	assert.Equal(t, []int{http.StatusUnauthorized, http.StatusUnauthorized}, statuses[:2])
	for _, status := range statuses[2:] {
		assert.Equal(t, http.StatusTooManyRequests, status)
	}
}

func TestRouter_RateLimitBehindTrustedProxy(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	// httptest requests arrive from 192.0.2.1
	s := newTestServer(t, func(config *ServerConfig, deps *Dependencies) {
		config.RateLimit = 1
		config.RateLimitWindow = time.Minute
		config.TrustedProxies = []netip.Prefix{netip.MustParsePrefix("192.0.2.0/24")}
		deps.RateLimiter = ratelimit.NewRedisRateLimitService(client, deps.Logger)
	})

	login := map[string]string{"email": "c@x.com", "password": "pw"}
	alice := map[string]string{"X-Forwarded-For": "198.51.100.1"}
	bob := map[string]string{"X-Forwarded-For": "198.51.100.2"}

	rec, _ := s.do(t, http.MethodPost, "/api/auth/login", login, alice)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec, _ = s.do(t, http.MethodPost, "/api/auth/login", login, alice)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec, _ = s.do(t, http.MethodPost, "/api/auth/login", login, bob)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

type panickingAuthUseCase struct {
	inbound.AuthUseCase
}

func (panickingAuthUseCase) Login(ctx context.Context, req inbound.LoginRequest) (*inbound.AuthResponse, error) {
	panic("boom")
}

func TestRouter_RecoversPanics(t *testing.T) {
	s := newTestServer(t, func(config *ServerConfig, deps *Dependencies) {
		deps.AuthUseCase = panickingAuthUseCase{}
	})

	rec, env := s.do(t, http.MethodPost, "/api/auth/login", map[string]string{"email": "a@x.com", "password": "pw"}, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, string(domainerr.ErrCodeInternalServerError), env.Code)
	assert.Empty(t, env.Details)
}
