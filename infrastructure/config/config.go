package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	// DevJWTSecret is the insecure signing secret used only when ENV=development
	// and JWT_SECRET is unset.
	DevJWTSecret = "cloudcommerce-dev-secret"

	DefaultJWTIssuer = "cloudcommerce-user-service"
)

type Config struct {
	Environment string
	ServerHost  string
	ServerPort  string

	JWTSecret      string
	JWTIssuer      string
	TokenTTL       time.Duration
	MaxSessionAge  time.Duration
	UsingDevSecret bool
	BcryptCost     int

	AllowAdminSelfRegistration bool
	SeedDemoUsers              bool
	SeedFile                   string

	RedisURL         string
	RateLimitEnabled bool
	RateLimit        int
	RateLimitWindow  time.Duration

	LogLevel               string
	LogFormat              string
	LogCorrelationIDHeader string
	LogEnableRequestLog    bool

	CORSEnabled          bool
	CORSAllowedOrigins   []string
	CORSAllowCredentials bool

	TrustedProxies []netip.Prefix
}

var (
	ErrMissingJWTSecret = errors.New("JWT_SECRET is required outside development")
	ErrInvalidTokenTTL  = errors.New("invalid token TTL format")
	ErrInvalidEnv       = errors.New("invalid ENV value")
	ErrInvalidRateLimit = errors.New("RATE_LIMIT must be positive")
	ErrInvalidProxy     = errors.New("invalid TRUSTED_PROXIES entry")
)

// Load reads configuration from the environment, after loading a .env file
// if one exists.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds and validates a Config from the process environment only.
// An unset ENV is treated as production.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Environment: getEnvOrDefault("ENV", getEnvOrDefault("NODE_ENV", EnvProduction)),
		ServerHost:  getEnvOrDefault("SERVER_HOST", "0.0.0.0"),
		ServerPort:  getEnvOrDefault("SERVER_PORT", getEnvOrDefault("PORT", "3001")),

		JWTSecret:  os.Getenv("JWT_SECRET"),
		JWTIssuer:  getEnvOrDefault("JWT_ISSUER", DefaultJWTIssuer),
		BcryptCost: getEnvOrDefaultInt("BCRYPT_COST", 10),

		AllowAdminSelfRegistration: getEnvOrDefaultBool("ALLOW_ADMIN_SELF_REGISTRATION", false),
		SeedFile:                   os.Getenv("SEED_FILE"),

		RedisURL:         getEnvOrDefault("REDIS_URL", "redis://localhost:6379/0"),
		RateLimitEnabled: getEnvOrDefaultBool("RATE_LIMIT_ENABLED", false),
		RateLimit:        getEnvOrDefaultInt("RATE_LIMIT", 100),

		LogLevel:               getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:              getEnvOrDefault("LOG_FORMAT", "json"),
		LogCorrelationIDHeader: getEnvOrDefault("LOG_CORRELATION_ID_HEADER", "X-Correlation-ID"),
		LogEnableRequestLog:    getEnvOrDefaultBool("LOG_ENABLE_REQUEST_LOG", true),

		CORSEnabled:          getEnvOrDefaultBool("CORS_ENABLED", true),
		CORSAllowCredentials: getEnvOrDefaultBool("CORS_ALLOW_CREDENTIALS", true),
		CORSAllowedOrigins:   parseList(getEnvOrDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),
	}

	switch cfg.Environment {
	case EnvDevelopment, EnvProduction, "staging", "test":
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidEnv, cfg.Environment)
	}

	if cfg.JWTSecret == "" {
		if !cfg.IsDevelopment() {
			return nil, ErrMissingJWTSecret
		}
		cfg.JWTSecret = DevJWTSecret
		cfg.UsingDevSecret = true
	}

	// Demo accounts only ever exist in development.
	cfg.SeedDemoUsers = cfg.IsDevelopment() && getEnvOrDefaultBool("SEED_DEMO_USERS", true)

	tokenTTL, err := parseTokenTTL(getEnvOrDefault("JWT_EXPIRES_IN", "24h"))
	if err != nil || tokenTTL <= 0 {
		return nil, ErrInvalidTokenTTL
	}
	cfg.TokenTTL = tokenTTL

	maxSessionAge, err := parseTokenTTL(getEnvOrDefault("MAX_SESSION_AGE", "0"))
	if err != nil || maxSessionAge < 0 {
		return nil, ErrInvalidTokenTTL
	}
	cfg.MaxSessionAge = maxSessionAge

	window, err := parseTokenTTL(getEnvOrDefault("RATE_LIMIT_WINDOW", "15m"))
	if err != nil || window <= 0 {
		return nil, ErrInvalidTokenTTL
	}
	cfg.RateLimitWindow = window

	if cfg.RateLimitEnabled && cfg.RateLimit <= 0 {
		return nil, ErrInvalidRateLimit
	}

	proxies, err := parseTrustedProxies(os.Getenv("TRUSTED_PROXIES"))
	if err != nil {
		return nil, err
	}
	cfg.TrustedProxies = proxies

	return cfg, nil
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == EnvDevelopment
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%s", c.ServerHost, c.ServerPort)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvOrDefaultBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return defaultValue
		}
		return parsed
	}
	return defaultValue
}

func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return defaultValue
		}
		return parsed
	}
	return defaultValue
}

// parseTokenTTL accepts whole seconds ("900"), Go durations ("15m") and the
// day suffix ("7d").
func parseTokenTTL(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second, nil
	}
	if days, ok := strings.CutSuffix(value, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, err
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	return time.ParseDuration(value)
}

func parseList(value string) []string {
	if value == "" {
		return []string{}
	}
	parts := strings.Split(value, ",")
	res := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			res = append(res, trimmed)
		}
	}
	return res
}

// parseTrustedProxies accepts a comma separated list of addresses and CIDR
// ranges. A bare address becomes a single-host prefix.
func parseTrustedProxies(value string) ([]netip.Prefix, error) {
	entries := parseList(value)
	prefixes := make([]netip.Prefix, 0, len(entries))
	for _, entry := range entries {
		if strings.Contains(entry, "/") {
			prefix, err := netip.ParsePrefix(entry)
			if err != nil {
				return nil, fmt.Errorf("%w: %q", ErrInvalidProxy, entry)
			}
			prefixes = append(prefixes, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidProxy, entry)
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}
