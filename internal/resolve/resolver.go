// Package resolve turns free-form natural-language time expressions into
// absolute timestamps.
//
// The grammar is a fixed set of matcher rules applied in a strict order:
//
//  1. relative durations ("10分钟后", "2 hours from now") — short-circuits
//     everything else;
//  2. a date component: day keyword (今天/明天/后天, today/tomorrow/day
//     after tomorrow), else YYYY-MM-DD or YYYY/MM/DD, else the
//     [YYYY年][M月]D日 calendar form, else today;
//  3. a time-of-day component on whatever text remains, defaulting to
//     08:00 when no digits are present.
//
// Each rule is a pure function over the unconsumed text, so rules are
// unit-testable in isolation. Resolve itself is pure and deterministic
// given now; rejecting past timestamps is deliberately left to the
// caller so the resolver stays clock-free.
package resolve

import (
	"errors"
	"time"
)

// ErrUnparseable is returned when no rule can derive a valid timestamp
// from the phrase. Callers surface it as a retry prompt, not a failure.
var ErrUnparseable = errors.New("cannot derive a timestamp from phrase")

// FarthestDayKeyword names the limitation callers should surface to
// users: only up to "day after tomorrow" is understood as a relative day;
// anything farther needs an explicit date.
const FarthestDayKeyword = "day after tomorrow (后天)"

// Resolver resolves phrases in one fixed canonical timezone.
type Resolver struct {
	loc *time.Location
}

// New creates a Resolver anchored to the given location. All resolved
// timestamps carry this location.
func New(loc *time.Location) *Resolver {
	return &Resolver{loc: loc}
}

// Resolve converts phrase into an absolute timestamp, relative to now.
// The result may be in the past; only syntactic validity is checked here.
func (r *Resolver) Resolve(phrase string, now time.Time) (time.Time, error) {
	if phrase == "" {
		return time.Time{}, ErrUnparseable
	}
	now = now.In(r.loc)

	// Relative durations win outright: no date or time-of-day grammar
	// is consulted for "10分钟后" or "2 hours from now".
	if at, ok := matchDuration(phrase, now); ok {
		return at, nil
	}

	// Night forms collapse to day keyword + evening marker before the
	// day rule runs, so "明晚" still contributes its day offset.
	s := normalize(phrase)

	year, month, day, rest, err := resolveDate(s, now)
	if err != nil {
		return time.Time{}, err
	}

	hour, minute := matchClockTime(rest)

	return compose(year, month, day, hour, minute, r.loc)
}

// resolveDate applies the date rules in precedence order and returns the
// resolved calendar day plus the text left over for time-of-day parsing.
func resolveDate(s string, now time.Time) (int, time.Month, int, string, error) {
	if off, rest, ok := matchDayKeyword(s); ok {
		y, m, d := now.AddDate(0, 0, off).Date()
		return y, m, d, rest, nil
	}

	if y, m, d, rest, ok := matchNumericDate(s); ok {
		return y, time.Month(m), d, rest, nil
	}

	if cal, rest, ok := matchCalendarDate(s); ok {
		if cal.malformed {
			return 0, 0, 0, "", ErrUnparseable
		}
		year := now.Year()
		if cal.hasYear {
			year = cal.year
		}
		return year, time.Month(cal.month), cal.day, rest, nil
	}

	// No date component at all: default to today's date.
	y, m, d := now.Date()
	return y, m, d, s, nil
}

// compose assembles the final timestamp, rejecting anything that is not
// a real calendar date/time (Feb 30, hour 25, minute 70).
func compose(year int, month time.Month, day, hour, minute int, loc *time.Location) (time.Time, error) {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return time.Time{}, ErrUnparseable
	}
	if month < time.January || month > time.December || day < 1 {
		return time.Time{}, ErrUnparseable
	}

	at := time.Date(year, month, day, hour, minute, 0, 0, loc)

	// time.Date normalizes overflow (Nov 31 -> Dec 1); a phrase naming a
	// day that does not exist must be rejected, not silently shifted.
	y, m, d := at.Date()
	if y != year || m != month || d != day {
		return time.Time{}, ErrUnparseable
	}
	return at, nil
}
