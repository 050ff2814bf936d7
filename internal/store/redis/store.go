// Package redis implements the durable alarm store on top of a Redis
// key-value service.
//
// The store is deliberately dumb: records are opaque JSON blobs under one
// reserved key prefix, written with a TTL so that a record a crashed
// process never cleaned up still disappears on its own. All business
// logic lives in the lifecycle manager.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/djlord-it/easy-alarm/internal/alarm"
	"github.com/djlord-it/easy-alarm/internal/domain"
)

// DefaultScanCount is the SCAN page size used when listing records.
const DefaultScanCount = 100

// Store implements alarm.Store using Redis.
type Store struct {
	client    *goredis.Client
	prefix    string
	opTimeout time.Duration
	scanCount int64
}

// New creates a Store over client. All records live under prefix; every
// Redis operation is bounded by opTimeout.
func New(client *goredis.Client, prefix string, opTimeout time.Duration) *Store {
	return &Store{
		client:    client,
		prefix:    prefix,
		opTimeout: opTimeout,
		scanCount: DefaultScanCount,
	}
}

// WithScanCount overrides the SCAN page size.
func (s *Store) WithScanCount(count int64) *Store {
	s.scanCount = count
	return s
}

// Prefix returns the reserved key namespace for alarm records.
func (s *Store) Prefix() string {
	return s.prefix
}

// PutAlarm persists a record with the given TTL. Records are immutable;
// a second put under the same key would overwrite, but the manager never
// does that.
func (s *Store) PutAlarm(ctx context.Context, a domain.Alarm, ttl time.Duration) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal alarm: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	if err := s.client.Set(ctx, a.Key, data, ttl).Err(); err != nil {
		return fmt.Errorf("set %s: %w", a.Key, err)
	}
	return nil
}

// GetAlarm fetches a single record. Returns alarm.ErrNotFound when the
// key is absent (including expired keys).
func (s *Store) GetAlarm(ctx context.Context, key string) (domain.Alarm, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return domain.Alarm{}, alarm.ErrNotFound
	}
	if err != nil {
		return domain.Alarm{}, fmt.Errorf("get %s: %w", key, err)
	}

	var a domain.Alarm
	if err := json.Unmarshal(data, &a); err != nil {
		return domain.Alarm{}, fmt.Errorf("unmarshal %s: %w", key, err)
	}
	return a, nil
}

// DeleteAlarm removes a record. Deleting an absent key is a no-op, which
// is what lets a fire and a cancel race on the same key safely.
func (s *Store) DeleteAlarm(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("del %s: %w", key, err)
	}
	return nil
}

// ListAlarms scans the full prefix namespace and returns every record
// that still parses. The cursor loop runs until Redis reports
// completion, so pagination never truncates the result. Individual
// broken keys are logged and skipped: a partial listing is preferred
// over failing the whole scan.
func (s *Store) ListAlarms(ctx context.Context) ([]domain.Alarm, error) {
	var (
		alarms []domain.Alarm
		cursor uint64
	)

	for {
		keys, next, err := s.scanPage(ctx, cursor)
		if err != nil {
			// Abort with whatever was collected; callers treat the
			// listing as best-effort.
			log.Printf("store: scan failed at cursor %d: %v", cursor, err)
			return alarms, nil
		}

		for _, key := range keys {
			a, err := s.GetAlarm(ctx, key)
			if errors.Is(err, alarm.ErrNotFound) {
				continue // expired between SCAN and GET
			}
			if err != nil {
				log.Printf("store: skipping unreadable record %s: %v", key, err)
				continue
			}
			alarms = append(alarms, a)
		}

		cursor = next
		if cursor == 0 {
			return alarms, nil
		}
	}
}

func (s *Store) scanPage(ctx context.Context, cursor uint64) ([]string, uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	return s.client.Scan(ctx, cursor, s.prefix+"*", s.scanCount).Result()
}

// Ping reports whether Redis is reachable; used by the health endpoint.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	return s.client.Ping(ctx).Err()
}
