package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DefaultKeyPrefix is the reserved Store namespace for alarm records.
// Every key produced by NewKey starts with it, which keeps alarm records
// distinguishable from anything else living in the same Redis instance.
const DefaultKeyPrefix = "alarm:clock:"

// Alarm is a one-shot future notification request. Records are immutable
// once stored: cancellation and firing both end in deletion, never in an
// update.
type Alarm struct {
	// Key is the record's identity for both the Store entry and the
	// in-memory timer. Stable for the record's lifetime.
	Key string `json:"key"`

	SetterID       string `json:"setter_id"`
	TargetID       string `json:"target_id"`
	ConversationID string `json:"conversation_id"`

	// Content is an opaque payload; the scheduler never interprets it.
	Content string `json:"content"`

	ScheduledAt time.Time `json:"scheduled_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewKey builds a collision-resistant record key under prefix: the target
// unix time and setter make keys human-greppable, the UUID makes them
// unpredictable.
func NewKey(prefix string, scheduledAt time.Time, setterID string) string {
	return fmt.Sprintf("%s%d:%s:%s", prefix, scheduledAt.Unix(), setterID, uuid.NewString())
}

// Validate checks that an alarm has the fields the scheduler depends on.
// It deliberately does not check ScheduledAt against the clock; that is
// the Manager's job at creation time.
func (a Alarm) Validate() error {
	if a.Key == "" {
		return fmt.Errorf("alarm key is required")
	}
	if a.SetterID == "" {
		return fmt.Errorf("alarm setter_id is required")
	}
	if a.TargetID == "" {
		return fmt.Errorf("alarm target_id is required")
	}
	if a.Content == "" {
		return fmt.Errorf("alarm content is required")
	}
	if a.ScheduledAt.IsZero() {
		return fmt.Errorf("alarm scheduled_at is required")
	}
	return nil
}
