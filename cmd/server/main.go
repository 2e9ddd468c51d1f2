package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudcommerce/user-service/application/port/outbound"
	"github.com/cloudcommerce/user-service/application/usecase"
	"github.com/cloudcommerce/user-service/infrastructure/config"
	httpserver "github.com/cloudcommerce/user-service/infrastructure/http"
	"github.com/cloudcommerce/user-service/infrastructure/persistence/memory"
	"github.com/cloudcommerce/user-service/infrastructure/service/clock"
	"github.com/cloudcommerce/user-service/infrastructure/service/jwt"
	"github.com/cloudcommerce/user-service/infrastructure/service/logger"
	"github.com/cloudcommerce/user-service/infrastructure/service/password"
	"github.com/cloudcommerce/user-service/infrastructure/service/ratelimit"
)

func main() {
	ctx := context.Background()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	structuredLogger := logger.NewStructuredLogger(logger.LoggerConfig{
		Level:       cfg.LogLevel,
		Format:      cfg.LogFormat,
		ServiceName: "user-service",
	})
	structuredLogger.Info(ctx, "Application starting", map[string]interface{}{
		"version": "1.0.0",
		"env":     cfg.Environment,
	})
	if cfg.UsingDevSecret {
		logger.LogSecurityEvent(ctx, structuredLogger, "insecure_dev_jwt_secret", "HIGH", map[string]interface{}{
			"hint": "set JWT_SECRET before deploying",
		})
	}

	systemClock := clock.NewSystemClock()
	passwordService := password.NewBcryptPasswordService(cfg.BcryptCost)

	tokenService, err := jwt.NewJWTService(cfg.JWTSecret, cfg.JWTIssuer, systemClock)
	if err != nil {
		log.Fatalf("Failed to initialize JWT service: %v", err)
	}

	userRepo := memory.NewUserRepository(systemClock)
	if err := seedUsers(ctx, cfg, userRepo, passwordService, structuredLogger); err != nil {
		log.Fatalf("Failed to seed users: %v", err)
	}

	rateLimitService, err := ratelimit.NewRateLimitService(ratelimit.RateLimitConfig{
		Enabled:  cfg.RateLimitEnabled,
		RedisURL: cfg.RedisURL,
		Limit:    cfg.RateLimit,
		Window:   cfg.RateLimitWindow,
	}, structuredLogger)
	if err != nil {
		// the API stays up without a limiter
		structuredLogger.Error(ctx, "Failed to initialize rate limit service", err, map[string]interface{}{
			"redis_url": cfg.RedisURL,
		})
		rateLimitService = ratelimit.NoopRateLimitService{}
	}

	authUseCase := usecase.NewAuthUseCase(
		userRepo,
		tokenService,
		passwordService,
		systemClock,
		structuredLogger,
		usecase.AuthConfig{
			TokenTTL:                   cfg.TokenTTL,
			Issuer:                     cfg.JWTIssuer,
			MaxSessionAge:              cfg.MaxSessionAge,
			AllowAdminSelfRegistration: cfg.AllowAdminSelfRegistration,
		},
	)

	server := httpserver.NewServer(httpserver.ServerConfig{
		Addr:                 cfg.Addr(),
		ReadTimeout:          15 * time.Second,
		WriteTimeout:         15 * time.Second,
		IdleTimeout:          60 * time.Second,
		Environment:          cfg.Environment,
		DevMode:              cfg.IsDevelopment(),
		CorrelationIDHeader:  cfg.LogCorrelationIDHeader,
		EnableRequestLog:     cfg.LogEnableRequestLog,
		CORSEnabled:          cfg.CORSEnabled,
		CORSAllowedOrigins:   cfg.CORSAllowedOrigins,
		CORSAllowCredentials: cfg.CORSAllowCredentials,
		RateLimit:            cfg.RateLimit,
		RateLimitWindow:      cfg.RateLimitWindow,
		TrustedProxies:       cfg.TrustedProxies,
	}, httpserver.Dependencies{
		AuthUseCase:  authUseCase,
		TokenService: tokenService,
		RateLimiter:  rateLimitService,
		Clock:        systemClock,
		Logger:       structuredLogger,
		Users:        userRepo,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		structuredLogger.Info(ctx, "Shutdown signal received", map[string]interface{}{"signal": sig.String()})
	case err := <-errCh:
		if err != nil {
			structuredLogger.Error(ctx, "Server failed", err, map[string]interface{}{"addr": cfg.Addr()})
			os.Exit(1)
		}
		return
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		structuredLogger.Error(ctx, "Server forced to shutdown", err, nil)
	}
	structuredLogger.Info(ctx, "Server exited", nil)
}

// seedUsers loads SEED_FILE, then adds the demo accounts that are not
// already present.
func seedUsers(ctx context.Context, cfg *config.Config, repo *memory.UserRepository, passwords outbound.PasswordService, log logger.Logger) error {
	if cfg.SeedFile != "" {
		records, err := memory.LoadSeedFile(cfg.SeedFile)
		if err != nil {
			return err
		}
		if err := repo.Seed(ctx, records); err != nil {
			return err
		}
		log.Info(ctx, "Seed file loaded", map[string]interface{}{
			"path":  cfg.SeedFile,
			"users": len(records),
		})
	}

	if !cfg.SeedDemoUsers {
		return nil
	}
	demo, err := memory.DemoUsers(passwords)
	if err != nil {
		return err
	}
	for _, rec := range demo {
		if _, err := repo.FindByEmail(ctx, rec.Email); err == nil {
			continue
		}
		rec.ID = 0
		if err := repo.Seed(ctx, []memory.SeedRecord{rec}); err != nil {
			return err
		}
	}
	log.Warn(ctx, "Demo users seeded", map[string]interface{}{
		"emails": []string{demo[0].Email, demo[1].Email},
	})
	return nil
}
