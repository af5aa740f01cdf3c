package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vibeproxy/vibeproxy-go/pkg/vibeproxy"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultSessionTTL = 24 * time.Hour
	sessionKeyPrefix  = "vibeproxy:session:"
)

// RedisHistory stores each session as a JSON array under
// vibeproxy:session:<id>. Every Save refreshes the TTL.
type RedisHistory struct {
	redis  *redis.Client
	tracer trace.Tracer
	ttl    time.Duration
}

// NewRedisHistory panics on a nil client. A ttl <= 0 falls back to
// DefaultSessionTTL.
func NewRedisHistory(client *redis.Client, ttl time.Duration, tracer trace.Tracer) *RedisHistory {
	if client == nil {
		panic("conversation: redis client cannot be nil")
	}
	if tracer == nil {
		tracer = otel.Tracer("vibeproxy.pkg.conversation.history")
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &RedisHistory{redis: client, tracer: tracer, ttl: ttl}
}

func (s *RedisHistory) Save(ctx context.Context, sessionID string, history []vibeproxy.Message) error {
	ctx, span := s.tracer.Start(ctx, "conversation.save_history")
	defer span.End()
	span.SetAttributes(attribute.Int("conversation.messages", len(history)))

	if history == nil {
		history = []vibeproxy.Message{}
	}
	data, err := json.Marshal(history)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to marshal history: %w", err)
	}
	if err := s.redis.Set(ctx, sessionKey(sessionID), data, s.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to persist history: %w", err)
	}
	return nil
}

func (s *RedisHistory) Load(ctx context.Context, sessionID string) ([]vibeproxy.Message, error) {
	ctx, span := s.tracer.Start(ctx, "conversation.load_history")
	defer span.End()

	data, err := s.redis.Get(ctx, sessionKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []vibeproxy.Message{}, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: failed to load history: %w", err)
	}

	var history []vibeproxy.Message
	if err := json.Unmarshal(data, &history); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: failed to decode history: %w", err)
	}
	if history == nil {
		history = []vibeproxy.Message{}
	}
	return history, nil
}

func (s *RedisHistory) Delete(ctx context.Context, sessionID string) error {
	ctx, span := s.tracer.Start(ctx, "conversation.delete_history")
	defer span.End()

	if err := s.redis.Del(ctx, sessionKey(sessionID)).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to delete history: %w", err)
	}
	return nil
}

func sessionKey(id string) string {
	return sessionKeyPrefix + id
}
