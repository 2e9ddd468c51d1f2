package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/cloudcommerce/user-service/application/port/inbound"
	"github.com/cloudcommerce/user-service/infrastructure/service/logger"
)

const (
	keyPrefix      = "ratelimit:"
	blockKeyPrefix = "ratelimit:blocked:"
)

type RateLimitConfig struct {
	Enabled  bool
	RedisURL string
	Limit    int
	Window   time.Duration
}

// redisRateLimitService counts attempts in fixed windows keyed by caller.
type redisRateLimitService struct {
	redisClient *redis.Client
	logger      logger.Logger
}

// NewRateLimitService returns a Redis-backed limiter, or a limiter that always
// allows when rate limiting is disabled.
func NewRateLimitService(config RateLimitConfig, log logger.Logger) (inbound.RateLimitService, error) {
	if !config.Enabled {
		log.Info(context.Background(), "Rate limiting disabled", nil)
		return NoopRateLimitService{}, nil
	}

	opt, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	redisClient := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		_ = redisClient.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Info(ctx, "Rate limiting service initialized", map[string]interface{}{
		"limit":  config.Limit,
		"window": config.Window.String(),
	})

	return NewRedisRateLimitService(redisClient, log), nil
}

func NewRedisRateLimitService(client *redis.Client, log logger.Logger) inbound.RateLimitService {
	return &redisRateLimitService{
		redisClient: client,
		logger:      log.WithFields(map[string]interface{}{"component": "ratelimit"}),
	}
}

// CheckLimit reports whether another attempt fits under limit.
func (s *redisRateLimitService) CheckLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	currentCount, err := s.GetAttempts(ctx, key)
	if err != nil {
		return false, err
	}

	underLimit := currentCount < limit
	s.logger.Debug(ctx, "Rate limit check", map[string]interface{}{
		"key":         key,
		"current":     currentCount,
		"limit":       limit,
		"under_limit": underLimit,
	})
	return underLimit, nil
}

// Increment bumps the counter; the window starts at the first attempt.
func (s *redisRateLimitService) Increment(ctx context.Context, key string, window time.Duration) error {
	count, err := s.redisClient.Incr(ctx, keyPrefix+key).Result()
	if err == nil && count == 1 {
		err = s.redisClient.Expire(ctx, keyPrefix+key, window).Err()
	}
	if err != nil {
		s.logger.Error(ctx, "Failed to increment rate limit counter", err, map[string]interface{}{"key": key})
		return fmt.Errorf("failed to increment rate limit: %w", err)
	}

	s.logger.Debug(ctx, "Rate limit incremented", map[string]interface{}{
		"key":   key,
		"count": count,
	})
	return nil
}

func (s *redisRateLimitService) Block(ctx context.Context, key string, duration time.Duration, reason string) error {
	blockKey := blockKeyPrefix + key
	blockData := map[string]interface{}{
		"reason":         reason,
		"blocked_at":     time.Now().Unix(),
		"duration":       int64(duration.Seconds()),
		"correlation_id": logger.CorrelationID(ctx),
	}

	pipeline := s.redisClient.TxPipeline()
	pipeline.HSet(ctx, blockKey, blockData)
	pipeline.Expire(ctx, blockKey, duration)
	if _, err := pipeline.Exec(ctx); err != nil {
		s.logger.Error(ctx, "Failed to block key", err, map[string]interface{}{"key": key})
		return fmt.Errorf("failed to block key: %w", err)
	}

	s.logger.Warn(ctx, "Key blocked due to rate limit exceeded", map[string]interface{}{
		"key":      key,
		"duration": duration.String(),
		"reason":   reason,
	})
	return nil
}

func (s *redisRateLimitService) IsBlocked(ctx context.Context, key string) (bool, error) {
	exists, err := s.redisClient.Exists(ctx, blockKeyPrefix+key).Result()
	if err != nil {
		s.logger.Error(ctx, "Failed to check block status", err, map[string]interface{}{"key": key})
		return false, fmt.Errorf("failed to check block status: %w", err)
	}
	return exists > 0, nil
}

func (s *redisRateLimitService) GetAttempts(ctx context.Context, key string) (int, error) {
	count, err := s.redisClient.Get(ctx, keyPrefix+key).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		s.logger.Error(ctx, "Failed to get attempts count", err, map[string]interface{}{"key": key})
		return 0, fmt.Errorf("failed to get attempts: %w", err)
	}
	return count, nil
}

// NoopRateLimitService allows everything.
type NoopRateLimitService struct{}

func (NoopRateLimitService) CheckLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	return true, nil
}

func (NoopRateLimitService) Increment(ctx context.Context, key string, window time.Duration) error {
	return nil
}

func (NoopRateLimitService) Block(ctx context.Context, key string, duration time.Duration, reason string) error {
	return nil
}

func (NoopRateLimitService) IsBlocked(ctx context.Context, key string) (bool, error) {
	return false, nil
}

func (NoopRateLimitService) GetAttempts(ctx context.Context, key string) (int, error) {
	return 0, nil
}
