// Package alarm owns the full lifecycle of one-shot alarms: creation,
// durable persistence, in-memory timers, restart recovery, firing and
// cancellation.
//
// The Store is the single source of truth; the timer table is a derived,
// disposable cache rebuilt by Recover. Every operation that touches one
// view touches the other, and the delete path is idempotent so a fire
// and a cancel may race on the same key without double-delivering.
package alarm

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/djlord-it/easy-alarm/internal/domain"
)

var (
	// ErrPastTime rejects a record whose scheduled time is not strictly
	// in the future.
	ErrPastTime = errors.New("scheduled time is not in the future")

	// ErrNotFound is returned when no record exists for a key. The store
	// implementation returns the same sentinel from GetAlarm.
	ErrNotFound = errors.New("alarm not found")

	// ErrForbidden rejects a cancel by someone other than the setter
	// without the privileged flag.
	ErrForbidden = errors.New("requester does not own this alarm")

	// ErrNotRecovered is returned by every operation until Recover has
	// run once.
	ErrNotRecovered = errors.New("recovery has not run yet")

	// ErrAlreadyRecovered is returned by a second Recover call.
	ErrAlreadyRecovered = errors.New("recovery already ran")
)

// DefaultGraceWindow is added to a record's time-to-fire to form its
// store TTL, so orphaned records self-clean even without recovery.
const DefaultGraceWindow = 5 * time.Minute

// Store is the durable record map backing the manager.
type Store interface {
	PutAlarm(ctx context.Context, a domain.Alarm, ttl time.Duration) error
	// GetAlarm returns ErrNotFound when no record exists for key.
	GetAlarm(ctx context.Context, key string) (domain.Alarm, error)
	// DeleteAlarm must treat an absent key as success.
	DeleteAlarm(ctx context.Context, key string) error
	ListAlarms(ctx context.Context) ([]domain.Alarm, error)
}

// Deliverer is the delivery callback invoked when an alarm fires.
// Failures are logged and swallowed; a fire is never retried.
type Deliverer interface {
	Deliver(ctx context.Context, a domain.Alarm) error
}

// MetricsSink defines the interface for recording manager metrics.
// All methods must be non-blocking and fire-and-forget.
type MetricsSink interface {
	AlarmCreated()
	AlarmFired(drift time.Duration, delivered bool)
	AlarmCancelled()
	AlarmExpired()
	AlarmsPending(count int)
	RecoverCompleted(restored, purged int, duration time.Duration)
	StoreOpError(op string)
}

// Config holds manager configuration.
type Config struct {
	// GraceWindow extends the store TTL past the fire time.
	// Default: DefaultGraceWindow.
	GraceWindow time.Duration
}

// Manager schedules, recovers and cancels alarms. One instance owns the
// process's timer table; Recover must run before anything else.
type Manager struct {
	config    Config
	store     Store
	deliverer Deliverer
	metrics   MetricsSink // optional, nil = disabled
	clock     func() time.Time

	mu        sync.Mutex
	timers    map[string]*time.Timer
	recovered bool
}

// New creates a Manager. It accepts no operations until Recover has run.
func New(config Config, store Store, deliverer Deliverer) *Manager {
	if config.GraceWindow <= 0 {
		config.GraceWindow = DefaultGraceWindow
	}
	return &Manager{
		config:    config,
		store:     store,
		deliverer: deliverer,
		clock:     time.Now,
		timers:    make(map[string]*time.Timer),
	}
}

// WithMetrics attaches a metrics sink to the manager.
func (m *Manager) WithMetrics(sink MetricsSink) *Manager {
	m.metrics = sink
	return m
}

// Recover rebuilds the timer table from the Store. Each record still in
// the future is re-armed exactly as Create would arm it (without
// re-persisting); past-due records are purged without firing — a process
// that was down across a fire time does not retroactively deliver.
// Callable exactly once per Manager.
func (m *Manager) Recover(ctx context.Context) error {
	m.mu.Lock()
	if m.recovered {
		m.mu.Unlock()
		return ErrAlreadyRecovered
	}
	m.recovered = true
	m.mu.Unlock()

	start := m.clock()

	alarms, err := m.store.ListAlarms(ctx)
	if err != nil {
		return fmt.Errorf("list alarms: %w", err)
	}

	restored, purged := 0, 0
	for _, a := range alarms {
		if a.ScheduledAt.After(m.clock()) {
			m.arm(a)
			restored++
			log.Printf("alarm: restored %s (fires %s)", a.Key, a.ScheduledAt.Format(time.RFC3339))
			continue
		}

		// Expired while the process was down.
		if err := m.store.DeleteAlarm(ctx, a.Key); err != nil {
			log.Printf("alarm: failed to purge expired record %s: %v", a.Key, err)
			m.storeOpError("delete")
			continue
		}
		purged++
		if m.metrics != nil {
			m.metrics.AlarmExpired()
		}
	}

	if m.metrics != nil {
		m.metrics.RecoverCompleted(restored, purged, m.clock().Sub(start))
	}
	log.Printf("alarm: recovery complete (restored=%d, purged=%d)", restored, purged)
	return nil
}

// Create persists the record with TTL = time-to-fire + grace window,
// then arms its timer. The scheduled time must be strictly in the
// future.
func (m *Manager) Create(ctx context.Context, a domain.Alarm) error {
	if err := m.ready(); err != nil {
		return err
	}
	if err := a.Validate(); err != nil {
		return fmt.Errorf("invalid alarm: %w", err)
	}

	now := m.clock()
	if !a.ScheduledAt.After(now) {
		return ErrPastTime
	}

	ttl := a.ScheduledAt.Sub(now) + m.config.GraceWindow
	if err := m.store.PutAlarm(ctx, a, ttl); err != nil {
		m.storeOpError("put")
		return fmt.Errorf("persist alarm: %w", err)
	}

	m.arm(a)
	if m.metrics != nil {
		m.metrics.AlarmCreated()
	}
	log.Printf("alarm: created %s (fires %s, ttl=%s)", a.Key, a.ScheduledAt.Format(time.RFC3339), ttl)
	return nil
}

// List returns a point-in-time snapshot of live records, optionally
// filtered by conversation, ordered by scheduled time with the key
// string as tie-break.
func (m *Manager) List(ctx context.Context, conversationID string) ([]domain.Alarm, error) {
	if err := m.ready(); err != nil {
		return nil, err
	}

	alarms, err := m.store.ListAlarms(ctx)
	if err != nil {
		return nil, fmt.Errorf("list alarms: %w", err)
	}

	filtered := alarms[:0]
	for _, a := range alarms {
		if conversationID != "" && a.ConversationID != conversationID {
			continue
		}
		filtered = append(filtered, a)
	}

	sort.Slice(filtered, func(i, j int) bool {
		if !filtered[i].ScheduledAt.Equal(filtered[j].ScheduledAt) {
			return filtered[i].ScheduledAt.Before(filtered[j].ScheduledAt)
		}
		return filtered[i].Key < filtered[j].Key
	})
	return filtered, nil
}

// Cancel disarms and deletes the record for key. Only the setter may
// cancel, unless privileged. Cancelling a key whose fire has already
// started is a no-op on the delivery: the fire path deletes the record
// itself.
func (m *Manager) Cancel(ctx context.Context, key, requesterID string, privileged bool) error {
	if err := m.ready(); err != nil {
		return err
	}

	a, err := m.store.GetAlarm(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		m.storeOpError("get")
		return fmt.Errorf("get alarm: %w", err)
	}

	if !privileged && requesterID != a.SetterID {
		return ErrForbidden
	}

	m.disarm(key)
	if err := m.store.DeleteAlarm(ctx, key); err != nil {
		m.storeOpError("delete")
		return fmt.Errorf("delete alarm: %w", err)
	}

	if m.metrics != nil {
		m.metrics.AlarmCancelled()
	}
	log.Printf("alarm: cancelled %s (by %s, privileged=%v)", key, requesterID, privileged)
	return nil
}

// Resync reconciles the derived timer table against the Store: records
// whose timers were lost are re-armed, past-due records are purged.
// Safe to call repeatedly; used by the reconciler loop.
func (m *Manager) Resync(ctx context.Context) (restored, purged int, err error) {
	if err := m.ready(); err != nil {
		return 0, 0, err
	}

	alarms, err := m.store.ListAlarms(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("list alarms: %w", err)
	}

	for _, a := range alarms {
		if a.ScheduledAt.After(m.clock()) {
			if m.arm(a) {
				restored++
				log.Printf("alarm: resync re-armed lost timer %s", a.Key)
			}
			continue
		}

		m.disarm(a.Key)
		if err := m.store.DeleteAlarm(ctx, a.Key); err != nil {
			log.Printf("alarm: resync failed to purge %s: %v", a.Key, err)
			m.storeOpError("delete")
			continue
		}
		purged++
		if m.metrics != nil {
			m.metrics.AlarmExpired()
		}
	}
	return restored, purged, nil
}

// Pending returns the number of armed timers.
func (m *Manager) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timers)
}

func (m *Manager) ready() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.recovered {
		return ErrNotRecovered
	}
	return nil
}

// arm registers the in-memory timer for a record. Idempotent per key;
// reports whether a new timer was armed.
func (m *Manager) arm(a domain.Alarm) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.timers[a.Key]; exists {
		return false
	}

	d := a.ScheduledAt.Sub(m.clock())
	if d < 0 {
		d = 0
	}
	m.timers[a.Key] = time.AfterFunc(d, func() { m.fire(a) })
	m.updatePending()
	return true
}

// disarm stops and forgets the timer for key, if one is still armed.
// A timer that already fired is a no-op.
func (m *Manager) disarm(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if t, ok := m.timers[key]; ok {
		t.Stop()
		delete(m.timers, key)
		m.updatePending()
	}
}

// fire runs in the timer's own goroutine, so a slow delivery or store
// call never delays unrelated alarms. The record is deleted on every
// exit path: delivery is best-effort and never retried.
func (m *Manager) fire(a domain.Alarm) {
	m.mu.Lock()
	delete(m.timers, a.Key)
	m.updatePending()
	m.mu.Unlock()

	firedAt := m.clock()

	defer func() {
		if err := m.store.DeleteAlarm(context.Background(), a.Key); err != nil {
			log.Printf("alarm: failed to delete fired record %s: %v", a.Key, err)
			m.storeOpError("delete")
		}
	}()

	// No deadline imposed here: the callback owns its own timeout policy.
	err := m.deliverer.Deliver(context.Background(), a)
	if err != nil {
		log.Printf("alarm: delivery failed for %s: %v (not retried)", a.Key, err)
	} else {
		log.Printf("alarm: fired %s (scheduled %s)", a.Key, a.ScheduledAt.Format(time.RFC3339))
	}

	if m.metrics != nil {
		m.metrics.AlarmFired(firedAt.Sub(a.ScheduledAt), err == nil)
	}
}

// updatePending must be called with m.mu held.
func (m *Manager) updatePending() {
	if m.metrics != nil {
		m.metrics.AlarmsPending(len(m.timers))
	}
}

func (m *Manager) storeOpError(op string) {
	if m.metrics != nil {
		m.metrics.StoreOpError(op)
	}
}
