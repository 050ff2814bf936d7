package domain

import "time"

// FiredEvent describes a single completed fire: the alarm whose scheduled
// time arrived, when the timer actually went off, and whether delivery
// reached the gateway. Delivery is best-effort, so Delivered=false still
// means the alarm is done; it is never re-fired.
type FiredEvent struct {
	Alarm Alarm

	ScheduledAt time.Time // intended fire time
	FiredAt     time.Time // when the timer actually fired
	Delivered   bool
}
