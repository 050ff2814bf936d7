package resolve

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	reMinutes      = regexp.MustCompile(`(\d+)\s*(?:分钟后|minutes?\s+from\s+now)`)
	reHours        = regexp.MustCompile(`(\d+)\s*(?:小时后|hours?\s+from\s+now)`)
	reNumericDate  = regexp.MustCompile(`(\d{4})[-/](\d{1,2})[-/](\d{1,2})`)
	reCalendarDate = regexp.MustCompile(`(?:(\d{4})年)?(?:(\d{1,2})月)?(\d{1,2})日`)
	reClockHM      = regexp.MustCompile(`(\d{1,2})\s*:\s*(\d{1,2})`)
	reClockH       = regexp.MustCompile(`(\d{1,2})`)
)

// durationSynonyms expand fixed colloquial amounts into "<N> minutes"
// before the duration regexes run. Longer forms first: "一个半小时"
// contains "半小时".
var durationSynonyms = [][2]string{
	{"一个半小时", "90分钟"},
	{"半小时", "30分钟"},
	{"一刻钟", "15分钟"},
	{"an hour and a half", "90 minutes"},
	{"half an hour", "30 minutes"},
	{"a quarter hour", "15 minutes"},
}

// matchDuration recognizes relative-duration phrases: "<N>分钟后",
// "<N> minutes from now" and their hour forms. Minutes are tried before
// hours so "90 minutes" never half-matches as an hour amount.
func matchDuration(s string, now time.Time) (time.Time, bool) {
	for _, syn := range durationSynonyms {
		s = strings.ReplaceAll(s, syn[0], syn[1])
	}

	if m := reMinutes.FindStringSubmatch(s); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return now.Add(time.Duration(n) * time.Minute), true
		}
	}
	if m := reHours.FindStringSubmatch(s); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return now.Add(time.Duration(n) * time.Hour), true
		}
	}
	return time.Time{}, false
}

// dayKeywords in match-priority order. The farther keyword comes first
// in each language: "day after tomorrow" contains "tomorrow".
var dayKeywords = []struct {
	keyword string
	offset  int
}{
	{"后天", 2},
	{"day after tomorrow", 2},
	{"明天", 1},
	{"tomorrow", 1},
	{"今天", 0},
	{"today", 0},
}

// matchDayKeyword finds the first relative day keyword anywhere in s and
// removes it, returning the day offset and the remaining text.
func matchDayKeyword(s string) (offset int, rest string, ok bool) {
	for _, k := range dayKeywords {
		if i := strings.Index(s, k.keyword); i >= 0 {
			rest = strings.TrimSpace(s[:i] + s[i+len(k.keyword):])
			return k.offset, rest, true
		}
	}
	return 0, s, false
}

// matchNumericDate finds a YYYY-MM-DD or YYYY/MM/DD date and removes it.
func matchNumericDate(s string) (year, month, day int, rest string, ok bool) {
	idx := reNumericDate.FindStringSubmatchIndex(s)
	if idx == nil {
		return 0, 0, 0, s, false
	}
	year, _ = strconv.Atoi(s[idx[2]:idx[3]])
	month, _ = strconv.Atoi(s[idx[4]:idx[5]])
	day, _ = strconv.Atoi(s[idx[6]:idx[7]])
	rest = strings.TrimSpace(s[:idx[0]] + s[idx[1]:])
	return year, month, day, rest, true
}

// calendarDate is the result of the [YYYY年][M月]D日 rule.
type calendarDate struct {
	year    int
	hasYear bool
	month   int
	day     int

	// malformed marks a match that names a day without a month, which
	// can never resolve to a real date.
	malformed bool
}

// matchCalendarDate finds the [YYYY年][M月]D日 calendar form (号 has
// already been normalized to 日) and removes it.
func matchCalendarDate(s string) (cal calendarDate, rest string, ok bool) {
	idx := reCalendarDate.FindStringSubmatchIndex(s)
	if idx == nil {
		return calendarDate{}, s, false
	}

	if idx[2] >= 0 {
		cal.year, _ = strconv.Atoi(s[idx[2]:idx[3]])
		cal.hasYear = true
	}
	if idx[4] >= 0 {
		cal.month, _ = strconv.Atoi(s[idx[4]:idx[5]])
	} else {
		cal.malformed = true
	}
	cal.day, _ = strconv.Atoi(s[idx[6]:idx[7]])

	rest = strings.TrimSpace(s[:idx[0]] + s[idx[1]:])
	return cal, rest, true
}

// pmMarkers set the 12-hour-clock PM flag when present anywhere in the
// remaining text.
var pmMarkers = []string{"下午", "晚上", "afternoon", "evening"}

// periodMarkers are all day-period words, removed after the PM check so
// they never collide with digit parsing. "afternoon" must be removed
// before "noon" is rewritten, hence markers first.
var periodMarkers = []string{
	"凌晨", "早上", "上午", "下午", "晚上",
	"afternoon", "evening", "morning", "dawn",
}

// matchClockTime parses the time-of-day component from the text left
// after date extraction. With no digits at all it defaults to 08:00.
// A PM marker shifts hours in [1,12) forward by twelve; noon and literal
// 24-hour hours are left alone.
func matchClockTime(s string) (hour, minute int) {
	pm := false
	for _, mk := range pmMarkers {
		if strings.Contains(s, mk) {
			pm = true
			break
		}
	}
	for _, mk := range periodMarkers {
		s = strings.ReplaceAll(s, mk, "")
	}

	s = strings.ReplaceAll(s, "中午", "12:00")
	s = strings.ReplaceAll(s, "noon", "12:00")
	s = strings.ReplaceAll(s, "半", "30")
	s = strings.ReplaceAll(s, "half", "30")

	hour, minute = 8, 0
	if m := reClockHM.FindStringSubmatch(s); m != nil {
		hour, _ = strconv.Atoi(m[1])
		minute, _ = strconv.Atoi(m[2])
	} else if m := reClockH.FindStringSubmatch(s); m != nil {
		hour, _ = strconv.Atoi(m[1])
		minute = 0
	}

	if pm && hour >= 1 && hour < 12 {
		hour += 12
	}
	return hour, minute
}
