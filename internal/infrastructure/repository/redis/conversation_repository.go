// Package redis keeps conversation turns in one Redis list per conversation.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kirillkom/notice-extractor/internal/core/domain"
)

var tracer = otel.Tracer("redis")

type ConversationRepository struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// NewClient dials and pings addr.
func NewClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return rdb, nil
}

// NewConversationRepository stores turns under "<prefix>:<conversationID>".
// Turns are only ever appended. A positive ttl is an operator retention
// policy enforced by redis and refreshed on every append; ttl <= 0 keeps
// turns until removed outside this service.
func NewConversationRepository(rdb *redis.Client, prefix string, ttl time.Duration) *ConversationRepository {
	if prefix == "" {
		prefix = "conversation"
	}
	return &ConversationRepository{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (r *ConversationRepository) key(conversationID string) string {
	return r.prefix + ":" + conversationID
}

func (r *ConversationRepository) AppendTurn(ctx context.Context, turn domain.ConversationTurn) error {
	ctx, span := tracer.Start(ctx, "redis.AppendTurn",
		trace.WithAttributes(attribute.String("conversation_id", turn.ConversationID)))
	defer span.End()

	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(turn)
	if err != nil {
		return domain.WrapError(domain.ErrConversationStore, "encode turn", err)
	}

	key := r.key(turn.ConversationID)
	_, err = r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, payload)
		if r.ttl > 0 {
			pipe.Expire(ctx, key, r.ttl)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "append failed")
		return domain.WrapError(domain.ErrConversationStore, "append turn", err)
	}
	return nil
}

func (r *ConversationRepository) LoadTurns(ctx context.Context, conversationID string, limit int) ([]domain.ConversationTurn, error) {
	ctx, span := tracer.Start(ctx, "redis.LoadTurns",
		trace.WithAttributes(
			attribute.String("conversation_id", conversationID),
			attribute.Int("limit", limit),
		))
	defer span.End()

	start := int64(0)
	if limit > 0 {
		start = -int64(limit)
	}
	raw, err := r.rdb.LRange(ctx, r.key(conversationID), start, -1).Result()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load failed")
		return nil, domain.WrapError(domain.ErrConversationStore, "load turns", err)
	}

	out := make([]domain.ConversationTurn, 0, len(raw))
	for i, item := range raw {
		var turn domain.ConversationTurn
		if err := json.Unmarshal([]byte(item), &turn); err != nil {
			return nil, domain.WrapError(domain.ErrConversationStore, "decode turn", fmt.Errorf("entry %d: %w", i, err))
		}
		out = append(out, turn)
	}
	return out, nil
}
