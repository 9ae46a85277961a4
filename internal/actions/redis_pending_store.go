package actions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// expiredPlanRetention keeps a plan readable past its expiry so a late reply
// gets ErrPlanExpired instead of ErrNoPendingPlan.
const expiredPlanRetention = time.Hour

// RedisPendingStore shares pending plans across API replicas.
type RedisPendingStore struct {
	redis  *redis.Client
	tracer trace.Tracer
}

func NewRedisPendingStore(client *redis.Client, tracer trace.Tracer) *RedisPendingStore {
	if client == nil {
		panic("actions: redis client cannot be nil")
	}
	if tracer == nil {
		tracer = otel.Tracer("realty.internal.actions.pending")
	}
	return &RedisPendingStore{redis: client, tracer: tracer}
}

func (s *RedisPendingStore) Put(ctx context.Context, sessionID string, plan ActionPlan) error {
	ctx, span := s.tracer.Start(ctx, "actions.pending.put", trace.WithAttributes(
		attribute.String("plan.id", plan.ID),
		attribute.String("plan.intent", string(plan.Intent)),
	))
	defer span.End()

	data, err := json.Marshal(plan)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("actions: marshal plan: %w", err)
	}
	ttl := plan.ExpiresAt.Sub(plan.CreatedAt) + expiredPlanRetention
	if err := s.redis.Set(ctx, pendingKey(sessionID), data, ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("actions: persist plan: %w", err)
	}
	return nil
}

func (s *RedisPendingStore) Get(ctx context.Context, sessionID string) (ActionPlan, bool, error) {
	ctx, span := s.tracer.Start(ctx, "actions.pending.get")
	defer span.End()
	data, err := s.redis.Get(ctx, pendingKey(sessionID)).Bytes()
	return s.decode(span, data, err)
}

func (s *RedisPendingStore) Take(ctx context.Context, sessionID string) (ActionPlan, bool, error) {
	ctx, span := s.tracer.Start(ctx, "actions.pending.take")
	defer span.End()
	data, err := s.redis.GetDel(ctx, pendingKey(sessionID)).Bytes()
	return s.decode(span, data, err)
}

func (s *RedisPendingStore) List(ctx context.Context, prefix string) (map[string]ActionPlan, error) {
	ctx, span := s.tracer.Start(ctx, "actions.pending.list")
	defer span.End()

	var keys []string
	iter := s.redis.Scan(ctx, 0, pendingKey(globEscaper.Replace(prefix))+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("actions: scan plans: %w", err)
	}
	out := make(map[string]ActionPlan, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	values, err := s.redis.MGet(ctx, keys...).Result()
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("actions: load plans: %w", err)
	}
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// expired or taken between SCAN and MGET
			continue
		}
		var plan ActionPlan
		if err := json.Unmarshal([]byte(raw), &plan); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("actions: decode plan %s: %w", keys[i], err)
		}
		out[strings.TrimPrefix(keys[i], pendingKeyPrefix)] = plan
	}
	span.SetAttributes(attribute.Int("plans.count", len(out)))
	return out, nil
}

func (s *RedisPendingStore) decode(span trace.Span, data []byte, err error) (ActionPlan, bool, error) {
	if errors.Is(err, redis.Nil) {
		return ActionPlan{}, false, nil
	}
	if err != nil {
		span.RecordError(err)
		return ActionPlan{}, false, fmt.Errorf("actions: load plan: %w", err)
	}
	var plan ActionPlan
	if err := json.Unmarshal(data, &plan); err != nil {
		span.RecordError(err)
		return ActionPlan{}, false, fmt.Errorf("actions: decode plan: %w", err)
	}
	return plan, true, nil
}

const pendingKeyPrefix = "actions:pending:"

var globEscaper = strings.NewReplacer(`\`, `\\`, "*", `\*`, "?", `\?`, "[", `\[`, "]", `\]`)

func pendingKey(key string) string {
	return pendingKeyPrefix + key
}
