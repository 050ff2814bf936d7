package leaderelection

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
)

const testKey = "alarm:leader"

func newTestClient(t *testing.T) (*goredis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return client, mr
}

type callbackRecorder struct {
	mu       sync.Mutex
	elected  int
	demoted  int
	electedC chan struct{}
	demotedC chan struct{}
}

func newCallbackRecorder() *callbackRecorder {
	return &callbackRecorder{
		electedC: make(chan struct{}, 10),
		demotedC: make(chan struct{}, 10),
	}
}

func (r *callbackRecorder) onElected(ctx context.Context) {
	r.mu.Lock()
	r.elected++
	r.mu.Unlock()
	r.electedC <- struct{}{}
}

func (r *callbackRecorder) onDemoted() {
	r.mu.Lock()
	r.demoted++
	r.mu.Unlock()
	r.demotedC <- struct{}{}
}

func waitSignal(t *testing.T, ch chan struct{}, msg string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for %s", msg)
	}
}

func TestElector_AcquiresFreeLeaseAndHolds(t *testing.T) {
	client, mr := newTestClient(t)
	rec := newCallbackRecorder()

	e := New(client, testKey, time.Second, 10*time.Millisecond, 20*time.Millisecond,
		rec.onElected, rec.onDemoted)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		e.Run(ctx)
		close(done)
	}()

	waitSignal(t, rec.electedC, "election")

	if got, err := mr.Get(testKey); err != nil || got != e.id {
		t.Errorf("lease value = %q (%v), want instance id %q", got, err, e.id)
	}

	cancel()
	<-done
	waitSignal(t, rec.demotedC, "demotion")

	// A clean shutdown releases the lease so a successor need not wait
	// for the TTL.
	if mr.Exists(testKey) {
		t.Error("lease not released on shutdown")
	}
}

func TestElector_HeldLeaseNotAcquired(t *testing.T) {
	client, mr := newTestClient(t)
	mr.Set(testKey, "someone-else")

	rec := newCallbackRecorder()
	e := New(client, testKey, time.Second, 10*time.Millisecond, 20*time.Millisecond,
		rec.onElected, rec.onDemoted)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	e.Run(ctx)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.elected != 0 {
		t.Errorf("elected %d times against a held lease, want 0", rec.elected)
	}
	if got, _ := mr.Get(testKey); got != "someone-else" {
		t.Errorf("foreign lease overwritten: %q", got)
	}
}

func TestElector_RenewalKeepsLeaseAlive(t *testing.T) {
	client, mr := newTestClient(t)
	rec := newCallbackRecorder()

	e := New(client, testKey, 100*time.Millisecond, 10*time.Millisecond, 20*time.Millisecond,
		rec.onElected, rec.onDemoted)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		e.Run(ctx)
		close(done)
	}()

	waitSignal(t, rec.electedC, "election")

	// Hold well past the lease TTL; heartbeats must keep it alive.
	time.Sleep(300 * time.Millisecond)
	if !mr.Exists(testKey) {
		t.Error("lease expired despite heartbeat renewal")
	}

	rec.mu.Lock()
	demotions := rec.demoted
	rec.mu.Unlock()
	if demotions != 0 {
		t.Errorf("demoted %d times while renewing, want 0", demotions)
	}

	cancel()
	<-done
}

func TestElector_StolenLeaseTriggersDemotion(t *testing.T) {
	client, mr := newTestClient(t)
	rec := newCallbackRecorder()

	e := New(client, testKey, time.Second, time.Hour, 20*time.Millisecond,
		rec.onElected, rec.onDemoted)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		e.Run(ctx)
		close(done)
	}()

	waitSignal(t, rec.electedC, "election")

	// Simulate lease expiry and takeover.
	mr.Set(testKey, "usurper")

	waitSignal(t, rec.demotedC, "demotion after lease theft")

	// The usurper's lease must survive our release.
	if got, _ := mr.Get(testKey); got != "usurper" {
		t.Errorf("usurper lease clobbered: %q", got)
	}

	cancel()
	<-done
}

func TestElector_ReacquiresAfterLoss(t *testing.T) {
	client, mr := newTestClient(t)
	rec := newCallbackRecorder()

	e := New(client, testKey, time.Second, 10*time.Millisecond, 20*time.Millisecond,
		rec.onElected, rec.onDemoted)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		e.Run(ctx)
		close(done)
	}()

	waitSignal(t, rec.electedC, "first election")

	// Steal the lease, then free it.
	mr.Set(testKey, "usurper")
	waitSignal(t, rec.demotedC, "demotion")
	mr.Del(testKey)

	waitSignal(t, rec.electedC, "re-election")

	cancel()
	<-done
}
