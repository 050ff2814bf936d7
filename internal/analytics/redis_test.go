package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/djlord-it/easy-alarm/internal/domain"
)

func newTestSink(t *testing.T) (*RedisSink, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRedisSink(client), mr
}

func firedEvent(conversationID string, delivered bool, firedAt time.Time) domain.FiredEvent {
	return domain.FiredEvent{
		Alarm: domain.Alarm{
			Key:            "alarm:clock:1763668800:u-100:abc",
			SetterID:       "u-100",
			TargetID:       "u-200",
			ConversationID: conversationID,
			Content:        "standup",
			ScheduledAt:    firedAt,
		},
		ScheduledAt: firedAt,
		FiredAt:     firedAt,
		Delivered:   delivered,
	}
}

func TestWrite_Disabled_NoKeys(t *testing.T) {
	sink, mr := newTestSink(t)

	event := firedEvent("g-1", true, time.Now())
	config := domain.AnalyticsConfig{Enabled: false, Window: time.Minute, Retention: time.Hour}

	if err := sink.Write(context.Background(), event, config); err != nil {
		t.Fatalf("write: %v", err)
	}
	if keys := mr.Keys(); len(keys) != 0 {
		t.Errorf("expected no keys, got %v", keys)
	}
}

func TestWrite_IncrementsBucket(t *testing.T) {
	sink, mr := newTestSink(t)
	ctx := context.Background()

	firedAt := time.Date(2025, 11, 20, 20, 15, 30, 0, time.UTC)
	event := firedEvent("g-1", true, firedAt)
	config := domain.AnalyticsConfig{Enabled: true, Window: time.Minute, Retention: time.Hour}

	if err := sink.Write(ctx, event, config); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := sink.Write(ctx, event, config); err != nil {
		t.Fatalf("second write: %v", err)
	}

	key := "alarm:stats:g-1:delivered:202511202015"
	got, err := mr.Get(key)
	if err != nil {
		t.Fatalf("get %s: %v", key, err)
	}
	if got != "2" {
		t.Errorf("bucket = %s, want 2", got)
	}
	if ttl := mr.TTL(key); ttl != time.Hour {
		t.Errorf("ttl = %s, want 1h", ttl)
	}
}

func TestWrite_FailedOutcomeSeparateBucket(t *testing.T) {
	sink, mr := newTestSink(t)
	ctx := context.Background()

	firedAt := time.Date(2025, 11, 20, 20, 15, 0, 0, time.UTC)
	config := domain.AnalyticsConfig{Enabled: true, Window: time.Minute, Retention: time.Hour}

	if err := sink.Write(ctx, firedEvent("g-1", true, firedAt), config); err != nil {
		t.Fatalf("delivered write: %v", err)
	}
	if err := sink.Write(ctx, firedEvent("g-1", false, firedAt), config); err != nil {
		t.Fatalf("failed write: %v", err)
	}

	if got, err := mr.Get("alarm:stats:g-1:delivered:202511202015"); err != nil || got != "1" {
		t.Errorf("delivered bucket = %s (%v), want 1", got, err)
	}
	if got, err := mr.Get("alarm:stats:g-1:failed:202511202015"); err != nil || got != "1" {
		t.Errorf("failed bucket = %s (%v), want 1", got, err)
	}
}

func TestWrite_DirectMessageFallbackConversation(t *testing.T) {
	sink, mr := newTestSink(t)

	firedAt := time.Date(2025, 11, 20, 20, 15, 0, 0, time.UTC)
	config := domain.AnalyticsConfig{Enabled: true, Window: time.Minute, Retention: time.Hour}

	if err := sink.Write(context.Background(), firedEvent("", true, firedAt), config); err != nil {
		t.Fatalf("write: %v", err)
	}

	if !mr.Exists("alarm:stats:direct:delivered:202511202015") {
		t.Errorf("expected direct bucket, got keys %v", mr.Keys())
	}
}

func TestTruncateToBucket_Windows(t *testing.T) {
	at := time.Date(2025, 11, 20, 20, 17, 45, 0, time.UTC)

	tests := []struct {
		name   string
		window time.Duration
		want   string
	}{
		{"minute", time.Minute, "202511202017"},
		{"five minutes", 5 * time.Minute, "202511202015"},
		{"hour", time.Hour, "2025112020"},
		{"unknown falls back to minute", 30 * time.Second, "202511202017"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := truncateToBucket(at, tt.window); got != tt.want {
				t.Errorf("truncateToBucket = %s, want %s", got, tt.want)
			}
		})
	}
}
