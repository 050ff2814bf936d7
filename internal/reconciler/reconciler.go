// Package reconciler keeps the in-memory timer table aligned with the
// durable store.
//
// A stored alarm can lose its timer (written by a previous leader, or a
// timer dropped by a crash mid-recovery), and a timer can outlive its
// usefulness when the scheduled time passed while nobody was leader.
// The reconciler periodically resyncs: missing timers are re-armed and
// past-due records purged. Resync is idempotent, so an extra cycle is
// always safe.
package reconciler

import (
	"context"
	"log"
	"time"
)

// Resyncer aligns durable records with armed timers.
type Resyncer interface {
	Resync(ctx context.Context) (restored, purged int, err error)
}

// Config holds reconciler configuration.
type Config struct {
	// Interval is how often the reconciler runs.
	// Default: 5 minutes.
	Interval time.Duration
}

// DefaultConfig returns the default reconciler configuration.
func DefaultConfig() Config {
	return Config{
		Interval: 5 * time.Minute,
	}
}

// Reconciler periodically resyncs timers against the store.
type Reconciler struct {
	config   Config
	resyncer Resyncer
}

// New creates a new Reconciler.
func New(config Config, resyncer Resyncer) *Reconciler {
	if config.Interval <= 0 {
		config.Interval = DefaultConfig().Interval
	}
	return &Reconciler{
		config:   config,
		resyncer: resyncer,
	}
}

// Run starts the reconciliation loop. It blocks until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	log.Printf("reconciler: started (interval=%s)", r.config.Interval)

	// Run immediately on startup, then on ticker
	r.runCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Println("reconciler: stopped")
			return
		case <-ticker.C:
			r.runCycle(ctx)
		}
	}
}

// runCycle executes one reconciliation cycle.
func (r *Reconciler) runCycle(ctx context.Context) {
	restored, purged, err := r.resyncer.Resync(ctx)
	if err != nil {
		// Store error: log and abort cycle. Will retry next interval.
		log.Printf("reconciler: resync failed: %v", err)
		return
	}

	if restored == 0 && purged == 0 {
		// Nothing to do. Silent success.
		return
	}

	log.Printf("reconciler: cycle complete, restored=%d, purged=%d", restored, purged)
}
