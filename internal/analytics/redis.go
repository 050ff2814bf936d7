package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/djlord-it/easy-alarm/internal/domain"
)

// RedisSink records fired-alarm counts in Redis time buckets, keyed by
// conversation and delivery outcome.
type RedisSink struct {
	client *redis.Client
}

func NewRedisSink(client *redis.Client) *RedisSink {
	return &RedisSink{client: client}
}

func (s *RedisSink) Write(ctx context.Context, event domain.FiredEvent, config domain.AnalyticsConfig) error {
	if !config.Enabled {
		return nil
	}

	conversation := event.Alarm.ConversationID
	if conversation == "" {
		conversation = "direct"
	}

	key := buildKey(conversation, event.Delivered, event.FiredAt, config.Window)

	pipe := s.client.Pipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, config.Retention)

	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("redis pipeline: %w", err)
	}

	return nil
}

func buildKey(conversationID string, delivered bool, t time.Time, window time.Duration) string {
	outcome := "delivered"
	if !delivered {
		outcome = "failed"
	}
	bucket := truncateToBucket(t, window)
	return fmt.Sprintf("alarm:stats:%s:%s:%s", conversationID, outcome, bucket)
}

func truncateToBucket(t time.Time, window time.Duration) string {
	t = t.UTC()
	switch window {
	case time.Minute:
		return t.Format("200601021504")
	case 5 * time.Minute:
		minute := (t.Minute() / 5) * 5
		return t.Format("2006010215") + fmt.Sprintf("%02d", minute)
	case time.Hour:
		return t.Format("2006010215")
	default:
		return t.Format("200601021504")
	}
}
