package metrics

import "time"

// NoopSink is a no-op implementation of Sink.
// Used when metrics are disabled to avoid nil checks.
type NoopSink struct{}

// NewNoopSink returns a no-op metrics sink.
func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

func (n *NoopSink) AlarmCreated()                                          {}
func (n *NoopSink) AlarmFired(drift time.Duration, delivered bool)         {}
func (n *NoopSink) AlarmCancelled()                                        {}
func (n *NoopSink) AlarmExpired()                                          {}
func (n *NoopSink) AlarmsPending(count int)                                {}
func (n *NoopSink) RecoverCompleted(restored, purged int, d time.Duration) {}
func (n *NoopSink) StoreOpError(op string)                                 {}
func (n *NoopSink) DeliveryCompleted(statusClass string, d time.Duration)  {}
func (n *NoopSink) DeliverySkipped()                                       {}
func (n *NoopSink) BreakerStateChanged(state string)                       {}
func (n *NoopSink) LeaderStatusChanged(leader bool)                        {}
func (n *NoopSink) LeaderAcquired()                                        {}
func (n *NoopSink) LeaderLost(reason string)                               {}
