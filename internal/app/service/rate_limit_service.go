package service

import (
	"context"
	"fmt"
	"time"

	"practice_mentor/internal/common"

	"github.com/redis/go-redis/v9"
)

// RateLimitService enforces fixed-window limits using Redis.
type RateLimitService struct {
	rdb          *redis.Client
	window       time.Duration
	redisTimeout time.Duration
}

func NewRateLimitService(rdb *redis.Client, window, redisTimeout time.Duration) *RateLimitService {
	if window <= 0 {
		window = time.Minute
	}
	if redisTimeout <= 0 {
		redisTimeout = time.Second
	}
	return &RateLimitService{rdb: rdb, window: window, redisTimeout: redisTimeout}
}

func (s *RateLimitService) Allow(ctx context.Context, key string, max int, window time.Duration) error {
	if max <= 0 {
		return nil
	}
	if s.rdb == nil {
		return fmt.Errorf("rate limit store is not configured: %w", common.ErrServiceUnavailable)
	}
	if window <= 0 {
		window = s.window
	}

	ctxCache, cancel := context.WithTimeout(ctx, s.redisTimeout)
	defer cancel()

	acquired, err := s.rdb.SetNX(ctxCache, key, 1, window).Result()
	if err != nil {
		return fmt.Errorf("rate limit check failed: %v: %w", err, common.ErrServiceUnavailable)
	}
	var count int64 = 1
	if !acquired {
		count, err = s.rdb.Incr(ctxCache, key).Result()
		if err != nil {
			return fmt.Errorf("rate limit check failed: %v: %w", err, common.ErrServiceUnavailable)
		}
		ttl, ttlErr := s.rdb.TTL(ctxCache, key).Result()
		if ttlErr == nil && ttl < 0 {
			_ = s.rdb.Expire(ctxCache, key, window).Err()
		}
	}
	if int(count) > max {
		return fmt.Errorf("rate limit exceeded for %s: %w", key, common.ErrTooManyRequests)
	}
	return nil
}
