package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/djlord-it/easy-alarm/internal/domain"
	"github.com/djlord-it/easy-alarm/internal/metrics"
)

type mockSender struct {
	mu       sync.Mutex
	requests []WebhookRequest
	result   WebhookResult
}

func (s *mockSender) Send(ctx context.Context, req WebhookRequest) WebhookResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	return s.result
}

func (s *mockSender) sent() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

type mockBreaker struct {
	mu        sync.Mutex
	allowErr  error
	successes int
	failures  int
}

func (b *mockBreaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.allowErr
}

func (b *mockBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.successes++
}

func (b *mockBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
}

type mockAnalytics struct {
	mu     sync.Mutex
	events []domain.FiredEvent
	err    error
}

func (a *mockAnalytics) Write(ctx context.Context, event domain.FiredEvent, config domain.AnalyticsConfig) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, event)
	return a.err
}

type mockMetrics struct {
	mu        sync.Mutex
	completed []string
	skipped   int
}

func (m *mockMetrics) DeliveryCompleted(statusClass string, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completed = append(m.completed, statusClass)
}

func (m *mockMetrics) DeliverySkipped() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.skipped++
}

func testAlarm() domain.Alarm {
	return domain.Alarm{
		Key:            "alarm:clock:1763668800:u-100:abc",
		SetterID:       "u-100",
		TargetID:       "u-200",
		ConversationID: "g-1",
		Content:        "standup",
		ScheduledAt:    time.Date(2025, 11, 20, 20, 0, 0, 0, time.UTC),
	}
}

func newTestNotifier(sender *mockSender) *Notifier {
	return New(Config{URL: "http://hook.local", Secret: "s", Timeout: time.Second}, sender, metrics.ClassifyStatus)
}

func TestDeliver_Success(t *testing.T) {
	sender := &mockSender{result: WebhookResult{StatusCode: 200}}
	n := newTestNotifier(sender)

	if err := n.Deliver(context.Background(), testAlarm()); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if sender.sent() != 1 {
		t.Errorf("sent %d requests, want 1", sender.sent())
	}

	req := sender.requests[0]
	if req.URL != "http://hook.local" {
		t.Errorf("url = %q", req.URL)
	}
	if req.DeliveryID == "" {
		t.Error("missing delivery ID")
	}
	if req.Payload.Content != "standup" {
		t.Errorf("content = %q", req.Payload.Content)
	}
}

func TestDeliver_FailureIsSingleAttempt(t *testing.T) {
	sender := &mockSender{result: WebhookResult{StatusCode: 503}}
	n := newTestNotifier(sender)

	err := n.Deliver(context.Background(), testAlarm())
	if err == nil {
		t.Fatal("expected error on 503")
	}
	if sender.sent() != 1 {
		t.Errorf("sent %d requests, want exactly 1 (no retries)", sender.sent())
	}
}

func TestDeliver_TransportErrorIsSingleAttempt(t *testing.T) {
	sender := &mockSender{result: WebhookResult{Error: errors.New("connection refused")}}
	n := newTestNotifier(sender)

	err := n.Deliver(context.Background(), testAlarm())
	if err == nil {
		t.Fatal("expected error")
	}
	if sender.sent() != 1 {
		t.Errorf("sent %d requests, want exactly 1", sender.sent())
	}
}

func TestDeliver_BreakerOpenSkipsSend(t *testing.T) {
	sender := &mockSender{result: WebhookResult{StatusCode: 200}}
	breaker := &mockBreaker{allowErr: errors.New("circuit breaker is open")}
	sink := &mockMetrics{}
	n := newTestNotifier(sender).WithBreaker(breaker).WithMetrics(sink)

	err := n.Deliver(context.Background(), testAlarm())
	if err == nil {
		t.Fatal("expected error when breaker is open")
	}
	if sender.sent() != 0 {
		t.Errorf("sent %d requests through an open breaker", sender.sent())
	}
	if sink.skipped != 1 {
		t.Errorf("skipped metric = %d, want 1", sink.skipped)
	}
}

func TestDeliver_BreakerRecordsOutcomes(t *testing.T) {
	sender := &mockSender{result: WebhookResult{StatusCode: 200}}
	breaker := &mockBreaker{}
	n := newTestNotifier(sender).WithBreaker(breaker)

	if err := n.Deliver(context.Background(), testAlarm()); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if breaker.successes != 1 || breaker.failures != 0 {
		t.Errorf("breaker = %d successes %d failures, want 1/0", breaker.successes, breaker.failures)
	}

	sender.result = WebhookResult{StatusCode: 500}
	_ = n.Deliver(context.Background(), testAlarm())
	if breaker.failures != 1 {
		t.Errorf("breaker failures = %d, want 1", breaker.failures)
	}
}

func TestDeliver_AnalyticsRecordsOutcome(t *testing.T) {
	sender := &mockSender{result: WebhookResult{StatusCode: 200}}
	analytics := &mockAnalytics{}
	config := domain.AnalyticsConfig{Enabled: true, Window: time.Minute, Retention: time.Hour}
	n := newTestNotifier(sender).WithAnalytics(analytics, config)

	if err := n.Deliver(context.Background(), testAlarm()); err != nil {
		t.Fatalf("deliver: %v", err)
	}

	sender.result = WebhookResult{StatusCode: 500}
	_ = n.Deliver(context.Background(), testAlarm())

	if len(analytics.events) != 2 {
		t.Fatalf("got %d analytics events, want 2", len(analytics.events))
	}
	if !analytics.events[0].Delivered {
		t.Error("first event should be delivered")
	}
	if analytics.events[1].Delivered {
		t.Error("second event should be failed")
	}
}

func TestDeliver_AnalyticsDisabledByConfig(t *testing.T) {
	sender := &mockSender{result: WebhookResult{StatusCode: 200}}
	analytics := &mockAnalytics{}
	n := newTestNotifier(sender).WithAnalytics(analytics, domain.AnalyticsConfig{Enabled: false})

	if err := n.Deliver(context.Background(), testAlarm()); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if len(analytics.events) != 0 {
		t.Errorf("analytics written despite disabled config: %d events", len(analytics.events))
	}
}

func TestDeliver_AnalyticsErrorDoesNotFailDelivery(t *testing.T) {
	sender := &mockSender{result: WebhookResult{StatusCode: 200}}
	analytics := &mockAnalytics{err: errors.New("redis down")}
	config := domain.AnalyticsConfig{Enabled: true, Window: time.Minute, Retention: time.Hour}
	n := newTestNotifier(sender).WithAnalytics(analytics, config)

	if err := n.Deliver(context.Background(), testAlarm()); err != nil {
		t.Fatalf("analytics failure leaked into delivery result: %v", err)
	}
}

func TestDeliver_MetricsStatusClass(t *testing.T) {
	sender := &mockSender{result: WebhookResult{StatusCode: 200}}
	sink := &mockMetrics{}
	n := newTestNotifier(sender).WithMetrics(sink)

	if err := n.Deliver(context.Background(), testAlarm()); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if len(sink.completed) != 1 || sink.completed[0] != metrics.StatusClass2xx {
		t.Errorf("completed = %v, want [2xx]", sink.completed)
	}
}
