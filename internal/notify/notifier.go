package notify

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/djlord-it/easy-alarm/internal/domain"
)

type WebhookSender interface {
	Send(ctx context.Context, req WebhookRequest) WebhookResult
}

// Breaker guards the delivery endpoint. A nil breaker means every
// delivery is attempted.
type Breaker interface {
	Allow() error
	RecordSuccess()
	RecordFailure()
}

type AnalyticsSink interface {
	Write(ctx context.Context, event domain.FiredEvent, config domain.AnalyticsConfig) error
}

// MetricsSink defines the interface for recording delivery metrics.
// All methods must be non-blocking and fire-and-forget.
type MetricsSink interface {
	DeliveryCompleted(statusClass string, duration time.Duration)
	DeliverySkipped()
}

type WebhookRequest struct {
	URL        string
	Secret     string
	Timeout    time.Duration
	Payload    WebhookPayload
	DeliveryID string
}

type WebhookPayload struct {
	Key            string `json:"key"`
	SetterID       string `json:"setter_id"`
	TargetID       string `json:"target_id"`
	ConversationID string `json:"conversation_id,omitempty"`
	Content        string `json:"content"`
	ScheduledAt    string `json:"scheduled_at"`
	FiredAt        string `json:"fired_at"`
}

type WebhookResult struct {
	StatusCode int
	Error      error
	Duration   time.Duration
}

func (r WebhookResult) IsSuccess() bool {
	return r.Error == nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// Config holds delivery endpoint settings.
type Config struct {
	URL     string
	Secret  string
	Timeout time.Duration
}

// Notifier delivers fired alarms to a webhook endpoint. Each alarm gets
// exactly one delivery attempt: a missed alarm is stale the moment it
// fires, so retrying later delivers the wrong thing.
type Notifier struct {
	config          Config
	sender          WebhookSender
	breaker         Breaker       // optional, nil = disabled
	analytics       AnalyticsSink // optional, nil = disabled
	analyticsConfig domain.AnalyticsConfig
	metrics         MetricsSink // optional, nil = disabled
	classify        func(statusCode int, err error) string
	clock           func() time.Time
}

func New(config Config, sender WebhookSender, classify func(statusCode int, err error) string) *Notifier {
	return &Notifier{
		config:   config,
		sender:   sender,
		classify: classify,
		clock:    time.Now,
	}
}

func (n *Notifier) WithBreaker(b Breaker) *Notifier {
	n.breaker = b
	return n
}

func (n *Notifier) WithAnalytics(sink AnalyticsSink, config domain.AnalyticsConfig) *Notifier {
	n.analytics = sink
	n.analyticsConfig = config
	return n
}

// WithMetrics attaches a metrics sink to the notifier.
func (n *Notifier) WithMetrics(sink MetricsSink) *Notifier {
	n.metrics = sink
	return n
}

// Deliver posts the fired alarm to the configured endpoint. A single
// attempt, success or failure is final.
func (n *Notifier) Deliver(ctx context.Context, a domain.Alarm) error {
	firedAt := n.clock()

	if n.breaker != nil {
		if err := n.breaker.Allow(); err != nil {
			if n.metrics != nil {
				n.metrics.DeliverySkipped()
			}
			n.writeAnalytics(ctx, a, firedAt, false)
			return fmt.Errorf("delivery skipped: %w", err)
		}
	}

	req := WebhookRequest{
		URL:        n.config.URL,
		Secret:     n.config.Secret,
		Timeout:    n.config.Timeout,
		DeliveryID: uuid.NewString(),
		Payload: WebhookPayload{
			Key:            a.Key,
			SetterID:       a.SetterID,
			TargetID:       a.TargetID,
			ConversationID: a.ConversationID,
			Content:        a.Content,
			ScheduledAt:    a.ScheduledAt.UTC().Format(time.RFC3339),
			FiredAt:        firedAt.UTC().Format(time.RFC3339),
		},
	}

	result := n.sender.Send(ctx, req)

	if n.metrics != nil {
		n.metrics.DeliveryCompleted(n.classify(result.StatusCode, result.Error), result.Duration)
	}

	if result.IsSuccess() {
		if n.breaker != nil {
			n.breaker.RecordSuccess()
		}
		n.writeAnalytics(ctx, a, firedAt, true)
		return nil
	}

	if n.breaker != nil {
		n.breaker.RecordFailure()
	}
	n.writeAnalytics(ctx, a, firedAt, false)

	if result.Error != nil {
		return fmt.Errorf("deliver %s: %w", a.Key, result.Error)
	}
	return fmt.Errorf("deliver %s: status %d", a.Key, result.StatusCode)
}

// writeAnalytics records the fire as a best-effort side-effect.
// Analytics never affects delivery correctness.
func (n *Notifier) writeAnalytics(ctx context.Context, a domain.Alarm, firedAt time.Time, delivered bool) {
	if n.analytics == nil || !n.analyticsConfig.Enabled {
		return
	}
	event := domain.FiredEvent{
		Alarm:       a,
		ScheduledAt: a.ScheduledAt,
		FiredAt:     firedAt,
		Delivered:   delivered,
	}
	if err := n.analytics.Write(ctx, event, n.analyticsConfig); err != nil {
		log.Printf("notify: analytics write failed: %v", err)
	}
}
