// Package leaderelection provides Redis lease-based leader election.
//
// The leader holds a Redis key written with SET NX PX. The lease carries
// a TTL and must be renewed by heartbeat; renewal and release are
// compare-and-set scripts so an instance can only touch its own lease.
// If the leader dies, the TTL expires and another instance acquires the
// key on its next attempt.
package leaderelection

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// MetricsSink defines the interface for recording leader election metrics.
// All methods must be non-blocking and fire-and-forget.
type MetricsSink interface {
	LeaderStatusChanged(isLeader bool)
	LeaderAcquired()
	LeaderLost(reason string) // reason: "shutdown", "lease_lost", "conn_lost"
}

// renewScript extends the lease only while this instance still owns it.
var renewScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
end
return 0
`)

// releaseScript deletes the lease only while this instance still owns it.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Elector manages leader election using a Redis lease.
type Elector struct {
	client            *redis.Client
	key               string
	id                string
	leaseTTL          time.Duration
	retryInterval     time.Duration // follower: how often to attempt lease acquisition
	heartbeatInterval time.Duration // leader: how often to renew the lease
	onElected         func(ctx context.Context)
	onDemoted         func()
	metrics           MetricsSink // optional, nil = disabled
}

// New creates a new Elector.
//
// onElected is called in a new goroutine when this instance acquires the lease.
// The provided context is cancelled when leadership is lost.
// onElected should start leader duties (recovery, reconciler) and return quickly.
//
// onDemoted is called synchronously when leadership is lost.
// It should stop leader duties and block until they are fully stopped.
// It must be idempotent.
func New(
	client *redis.Client,
	key string,
	leaseTTL, retryInterval, heartbeatInterval time.Duration,
	onElected func(ctx context.Context),
	onDemoted func(),
) *Elector {
	return &Elector{
		client:            client,
		key:               key,
		id:                uuid.NewString(),
		leaseTTL:          leaseTTL,
		retryInterval:     retryInterval,
		heartbeatInterval: heartbeatInterval,
		onElected:         onElected,
		onDemoted:         onDemoted,
	}
}

// WithMetrics attaches a metrics sink to the elector.
func (e *Elector) WithMetrics(sink MetricsSink) *Elector {
	e.metrics = sink
	return e
}

// Run starts the leader election loop. It blocks until ctx is cancelled.
func (e *Elector) Run(ctx context.Context) {
	log.Printf("leader: starting election loop (key=%s, lease=%s, retry=%s, heartbeat=%s)",
		e.key, e.leaseTTL, e.retryInterval, e.heartbeatInterval)

	for {
		if ctx.Err() != nil {
			log.Println("leader: election loop stopped")
			return
		}

		reason := e.runOnce(ctx)

		if ctx.Err() != nil {
			log.Println("leader: election loop stopped")
			return
		}

		if reason != "" {
			log.Printf("leader: lost leadership (reason=%s), will retry in %s", reason, e.retryInterval)
		}

		select {
		case <-ctx.Done():
			log.Println("leader: election loop stopped")
			return
		case <-time.After(e.retryInterval):
		}
	}
}

// runOnce attempts to acquire the lease and hold it.
// Returns the reason leadership was lost ("" if the lease was not acquired).
func (e *Elector) runOnce(ctx context.Context) string {
	acquired, err := e.client.SetNX(ctx, e.key, e.id, e.leaseTTL).Result()
	if err != nil {
		log.Printf("leader: lease acquisition failed: %v", err)
		return ""
	}
	if !acquired {
		log.Printf("leader: lease %s held by another instance, retrying in %s", e.key, e.retryInterval)
		return ""
	}

	log.Printf("leader: acquired lease %s", e.key)
	if e.metrics != nil {
		e.metrics.LeaderStatusChanged(true)
		e.metrics.LeaderAcquired()
	}

	leaderCtx, cancelLeader := context.WithCancel(ctx)

	go e.onElected(leaderCtx)

	reason := e.holdLease(ctx)

	cancelLeader()
	e.onDemoted()

	e.release()

	if e.metrics != nil {
		e.metrics.LeaderStatusChanged(false)
		e.metrics.LeaderLost(reason)
	}

	log.Printf("leader: released lease %s", e.key)
	return reason
}

// holdLease blocks while renewing the lease on each heartbeat.
// Returns the reason the lease was lost.
func (e *Elector) holdLease(ctx context.Context) string {
	ticker := time.NewTicker(e.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return "shutdown"
		case <-ticker.C:
			renewed, err := renewScript.Run(ctx, e.client,
				[]string{e.key}, e.id, e.leaseTTL.Milliseconds()).Int()
			if err != nil {
				if ctx.Err() != nil {
					return "shutdown"
				}
				log.Printf("leader: lease renewal failed: %v", err)
				return "conn_lost"
			}
			if renewed == 0 {
				// Someone else owns the key: the lease expired and was taken.
				log.Printf("leader: lease %s no longer owned by this instance", e.key)
				return "lease_lost"
			}
		}
	}
}

// release drops the lease if this instance still owns it. Uses a fresh
// context since the election context is usually already cancelled.
func (e *Elector) release() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, err := releaseScript.Run(ctx, e.client, []string{e.key}, e.id).Result(); err != nil {
		log.Printf("leader: lease release failed: %v", err)
	}
}
