package metrics

import (
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusSink implements Sink using Prometheus client library.
// All methods are non-blocking and fire-and-forget.
// Registration errors are logged but never propagated.
type PrometheusSink struct {
	// Manager metrics
	createdTotal    prometheus.Counter
	firedTotal      *prometheus.CounterVec
	cancelledTotal  prometheus.Counter
	expiredTotal    prometheus.Counter
	pending         prometheus.Gauge
	fireDrift       prometheus.Histogram
	recoverDuration prometheus.Histogram
	recoverRestored prometheus.Counter
	recoverPurged   prometheus.Counter
	storeErrors     *prometheus.CounterVec

	// Delivery metrics
	deliveriesTotal  *prometheus.CounterVec
	deliveryDuration prometheus.Histogram
	skippedTotal     prometheus.Counter
	breakerChanges   *prometheus.CounterVec

	// Leader election metrics
	leaderStatus   prometheus.Gauge
	leaderAcquired prometheus.Counter
	leaderLost     *prometheus.CounterVec
}

// NewPrometheusSink creates a new Prometheus metrics sink.
// If registration fails, it logs a warning and returns a functional sink.
func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	s := &PrometheusSink{}
	s.initManagerMetrics(reg)
	s.initDeliveryMetrics(reg)
	s.initLeaderMetrics(reg)
	return s
}

func (s *PrometheusSink) initManagerMetrics(reg prometheus.Registerer) {
	s.createdTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "easyalarm_alarms_created_total",
		Help: "Total number of alarms accepted and persisted.",
	})
	s.firedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "easyalarm_alarms_fired_total",
		Help: "Total number of alarms fired, by delivery result.",
	}, []string{"delivered"})
	s.cancelledTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "easyalarm_alarms_cancelled_total",
		Help: "Total number of alarms cancelled before firing.",
	})
	s.expiredTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "easyalarm_alarms_expired_total",
		Help: "Total number of past-due alarms purged without firing.",
	})
	s.pending = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "easyalarm_alarms_pending",
		Help: "Number of alarms currently armed in memory.",
	})
	s.fireDrift = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "easyalarm_fire_drift_seconds",
		Help:    "Difference between actual fire time and scheduled time in seconds.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
	})
	s.recoverDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "easyalarm_recover_duration_seconds",
		Help:    "Duration of startup recovery in seconds.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
	})
	s.recoverRestored = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "easyalarm_recover_restored_total",
		Help: "Total number of alarms re-armed during recovery.",
	})
	s.recoverPurged = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "easyalarm_recover_purged_total",
		Help: "Total number of past-due alarms purged during recovery.",
	})
	s.storeErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "easyalarm_store_errors_total",
		Help: "Total number of store operation failures, by operation.",
	}, []string{"op"})

	s.register(reg, s.createdTotal, "easyalarm_alarms_created_total")
	s.register(reg, s.firedTotal, "easyalarm_alarms_fired_total")
	s.register(reg, s.cancelledTotal, "easyalarm_alarms_cancelled_total")
	s.register(reg, s.expiredTotal, "easyalarm_alarms_expired_total")
	s.register(reg, s.pending, "easyalarm_alarms_pending")
	s.register(reg, s.fireDrift, "easyalarm_fire_drift_seconds")
	s.register(reg, s.recoverDuration, "easyalarm_recover_duration_seconds")
	s.register(reg, s.recoverRestored, "easyalarm_recover_restored_total")
	s.register(reg, s.recoverPurged, "easyalarm_recover_purged_total")
	s.register(reg, s.storeErrors, "easyalarm_store_errors_total")
}

func (s *PrometheusSink) initDeliveryMetrics(reg prometheus.Registerer) {
	s.deliveriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "easyalarm_deliveries_total",
		Help: "Total number of webhook deliveries, by status class.",
	}, []string{"status_class"})
	s.deliveryDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "easyalarm_delivery_duration_seconds",
		Help:    "Webhook request latency in seconds.",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})
	s.skippedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "easyalarm_deliveries_skipped_total",
		Help: "Total number of deliveries skipped because the circuit breaker was open.",
	})
	s.breakerChanges = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "easyalarm_breaker_state_changes_total",
		Help: "Total number of circuit breaker state transitions, by new state.",
	}, []string{"state"})

	s.register(reg, s.deliveriesTotal, "easyalarm_deliveries_total")
	s.register(reg, s.deliveryDuration, "easyalarm_delivery_duration_seconds")
	s.register(reg, s.skippedTotal, "easyalarm_deliveries_skipped_total")
	s.register(reg, s.breakerChanges, "easyalarm_breaker_state_changes_total")
}

func (s *PrometheusSink) initLeaderMetrics(reg prometheus.Registerer) {
	s.leaderStatus = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "easyalarm_leader_status",
		Help: "Whether this instance currently holds the leader lease (1) or not (0).",
	})
	s.leaderAcquired = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "easyalarm_leader_acquired_total",
		Help: "Total number of times this instance acquired the leader lease.",
	})
	s.leaderLost = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "easyalarm_leader_lost_total",
		Help: "Total number of times this instance lost the leader lease, by reason.",
	}, []string{"reason"})

	s.register(reg, s.leaderStatus, "easyalarm_leader_status")
	s.register(reg, s.leaderAcquired, "easyalarm_leader_acquired_total")
	s.register(reg, s.leaderLost, "easyalarm_leader_lost_total")
}

// register attempts to register a collector, logging any errors without propagating them.
func (s *PrometheusSink) register(reg prometheus.Registerer, c prometheus.Collector, name string) {
	if err := reg.Register(c); err != nil {
		log.Printf("metrics: failed to register %s: %v", name, err)
	}
}

// Manager metrics implementation

func (s *PrometheusSink) AlarmCreated() {
	s.createdTotal.Inc()
}

func (s *PrometheusSink) AlarmFired(drift time.Duration, delivered bool) {
	label := "false"
	if delivered {
		label = "true"
	}
	s.firedTotal.WithLabelValues(label).Inc()

	d := drift.Seconds()
	if d < 0 {
		d = -d
	}
	s.fireDrift.Observe(d)
}

func (s *PrometheusSink) AlarmCancelled() {
	s.cancelledTotal.Inc()
}

func (s *PrometheusSink) AlarmExpired() {
	s.expiredTotal.Inc()
}

func (s *PrometheusSink) AlarmsPending(count int) {
	s.pending.Set(float64(count))
}

func (s *PrometheusSink) RecoverCompleted(restored, purged int, duration time.Duration) {
	s.recoverRestored.Add(float64(restored))
	s.recoverPurged.Add(float64(purged))
	s.recoverDuration.Observe(duration.Seconds())
}

func (s *PrometheusSink) StoreOpError(op string) {
	s.storeErrors.WithLabelValues(op).Inc()
}

// Delivery metrics implementation

func (s *PrometheusSink) DeliveryCompleted(statusClass string, duration time.Duration) {
	s.deliveriesTotal.WithLabelValues(statusClass).Inc()
	s.deliveryDuration.Observe(duration.Seconds())
}

func (s *PrometheusSink) DeliverySkipped() {
	s.skippedTotal.Inc()
}

func (s *PrometheusSink) BreakerStateChanged(state string) {
	s.breakerChanges.WithLabelValues(state).Inc()
}

// Leader election metrics implementation

func (s *PrometheusSink) LeaderStatusChanged(leader bool) {
	v := 0.0
	if leader {
		v = 1.0
	}
	s.leaderStatus.Set(v)
}

func (s *PrometheusSink) LeaderAcquired() {
	s.leaderAcquired.Inc()
}

func (s *PrometheusSink) LeaderLost(reason string) {
	s.leaderLost.WithLabelValues(reason).Inc()
}
