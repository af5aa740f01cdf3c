package bootstrap

import (
	"context"
	"crypto/tls"
	"strings"

	"github.com/redis/go-redis/v9"

	appconfig "github.com/vibeproxy/vibeproxy-go/internal/config"
	"github.com/vibeproxy/vibeproxy-go/internal/http/middleware"
	"github.com/vibeproxy/vibeproxy-go/pkg/conversation"
	"github.com/vibeproxy/vibeproxy-go/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// BuildHistoryStore picks the session history backend. A redis backend that
// cannot be reached falls back to memory so the gateway still serves
// stateless completions. The returned close func is never nil.
func BuildHistoryStore(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (conversation.HistoryStore, func() error) {
	if logger == nil {
		logger = logging.Default()
	}
	noop := func() error { return nil }
	if cfg == nil || !cfg.UseRedis() {
		logger.Info("using in-memory session history")
		return conversation.NewMemoryHistory(), noop
	}

	client := BuildRedisClient(ctx, cfg, logger, true)
	if client == nil {
		logger.Warn("falling back to in-memory session history", "redis_addr", cfg.RedisAddr)
		return conversation.NewMemoryHistory(), noop
	}
	logger.Info("using redis session history", "redis_addr", cfg.RedisAddr, "ttl", cfg.SessionTTL)
	return conversation.NewRedisHistory(client, cfg.SessionTTL, nil), client.Close
}

// BuildRateLimiter returns nil when rate limiting is disabled.
func BuildRateLimiter(cfg *appconfig.Config) *middleware.RateLimiter {
	if cfg == nil || cfg.RateLimitRPS <= 0 {
		return nil
	}
	return middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
}
