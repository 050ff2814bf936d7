package resolve

import (
	"testing"
	"time"
)

func TestMatchDuration(t *testing.T) {
	now := time.Date(2025, 11, 20, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		phrase string
		want   time.Duration
		ok     bool
	}{
		{"10分钟后", 10 * time.Minute, true},
		{"2小时后", 2 * time.Hour, true},
		{"半小时后", 30 * time.Minute, true},
		{"一个半小时后", 90 * time.Minute, true},
		{"一刻钟后", 15 * time.Minute, true},
		{"30分钟后提醒我", 30 * time.Minute, true},
		{"10 minutes from now", 10 * time.Minute, true},
		{"1 minute from now", 1 * time.Minute, true},
		{"2 hours from now", 2 * time.Hour, true},
		{"half an hour from now", 30 * time.Minute, true},
		{"an hour and a half from now", 90 * time.Minute, true},
		{"a quarter hour from now", 15 * time.Minute, true},
		{"明天下午3点", 0, false},
		{"tomorrow 3:00", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.phrase, func(t *testing.T) {
			got, ok := matchDuration(tt.phrase, now)
			if ok != tt.ok {
				t.Fatalf("matchDuration(%q): ok=%v, want %v", tt.phrase, ok, tt.ok)
			}
			if ok && !got.Equal(now.Add(tt.want)) {
				t.Errorf("matchDuration(%q) = %v, want now+%v", tt.phrase, got, tt.want)
			}
		})
	}
}

func TestMatchDayKeyword(t *testing.T) {
	tests := []struct {
		in     string
		offset int
		rest   string
		ok     bool
	}{
		{"今天下午3:00", 0, "下午3:00", true},
		{"明天晚上8:30", 1, "晚上8:30", true},
		{"后天12:00", 2, "12:00", true},
		{"today 3:00", 0, "3:00", true},
		{"tomorrow evening 8", 1, "evening 8", true},
		{"day after tomorrow noon", 2, "noon", true},
		{"2025-11-20 20:00", 0, "2025-11-20 20:00", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			offset, rest, ok := matchDayKeyword(tt.in)
			if ok != tt.ok || offset != tt.offset || rest != tt.rest {
				t.Errorf("matchDayKeyword(%q) = (%d, %q, %v), want (%d, %q, %v)",
					tt.in, offset, rest, ok, tt.offset, tt.rest, tt.ok)
			}
		})
	}
}

func TestMatchNumericDate(t *testing.T) {
	y, m, d, rest, ok := matchNumericDate("2025-11-20 20:00")
	if !ok || y != 2025 || m != 11 || d != 20 || rest != "20:00" {
		t.Errorf("got (%d, %d, %d, %q, %v)", y, m, d, rest, ok)
	}

	y, m, d, rest, ok = matchNumericDate("2025/1/2 8:05")
	if !ok || y != 2025 || m != 1 || d != 2 || rest != "8:05" {
		t.Errorf("got (%d, %d, %d, %q, %v)", y, m, d, rest, ok)
	}

	if _, _, _, _, ok := matchNumericDate("明天3:00"); ok {
		t.Error("expected no match for keyword phrase")
	}
}

func TestMatchCalendarDate(t *testing.T) {
	tests := []struct {
		in        string
		year      int
		hasYear   bool
		month     int
		day       int
		rest      string
		ok        bool
		malformed bool
	}{
		{"2025年10月1日 16:00", 2025, true, 10, 1, "16:00", true, false},
		{"9月12日 早上7:30", 0, false, 9, 12, "早上7:30", true, false},
		// a bare day without a month can never be a real date
		{"12日 8:00", 0, false, 0, 12, "8:00", true, true},
		{"3:00", 0, false, 0, 0, "3:00", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			cal, rest, ok := matchCalendarDate(tt.in)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if !ok {
				return
			}
			if cal.malformed != tt.malformed {
				t.Fatalf("malformed = %v, want %v", cal.malformed, tt.malformed)
			}
			if cal.hasYear != tt.hasYear || cal.year != tt.year && tt.hasYear {
				t.Errorf("year = (%d, %v), want (%d, %v)", cal.year, cal.hasYear, tt.year, tt.hasYear)
			}
			if !cal.malformed && (cal.month != tt.month || cal.day != tt.day) {
				t.Errorf("date = %d/%d, want %d/%d", cal.month, cal.day, tt.month, tt.day)
			}
			if rest != tt.rest {
				t.Errorf("rest = %q, want %q", rest, tt.rest)
			}
		})
	}
}

func TestMatchClockTime(t *testing.T) {
	tests := []struct {
		in     string
		hour   int
		minute int
	}{
		{"3:00", 3, 0},
		{"下午3:00", 15, 0},
		{"afternoon 3:00", 15, 0},
		{"晚上8:30", 20, 30},
		{"evening 8:30", 20, 30},
		{"早上7:30", 7, 30},
		{"morning 7:30", 7, 30},
		{"凌晨2", 2, 0},
		{"dawn 2", 2, 0},
		// noon is literal 12:00 and PM never doubles it
		{"中午12:", 12, 0},
		{"noon", 12, 0},
		{"下午12:00", 12, 0},
		{"afternoon 12:00", 12, 0},
		// "half" as a minutes literal: normalize turned 点 into ":"
		{"3:半", 3, 30},
		{"3 : half", 3, 30},
		// 24-hour hours >= 12 are left unmodified even with a PM marker
		{"晚上20:00", 20, 0},
		// no digits at all defaults to 08:00
		{"", 8, 0},
		{"提醒我开会", 8, 0},
		// PM applies to the default hour too
		{"evening", 20, 0},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			hour, minute := matchClockTime(tt.in)
			if hour != tt.hour || minute != tt.minute {
				t.Errorf("matchClockTime(%q) = %d:%02d, want %d:%02d",
					tt.in, hour, minute, tt.hour, tt.minute)
			}
		})
	}
}
