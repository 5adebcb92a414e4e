package recurrence

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/teambition/rrule-go"
)

func date(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := ParseDate(value)
	if err != nil {
		t.Fatalf("parse date: %v", err)
	}
	return parsed
}

func formatDates(dates []time.Time) string {
	parts := make([]string, len(dates))
	for i, d := range dates {
		parts[i] = FormatDate(d)
	}
	return strings.Join(parts, ",")
}

func TestMatches(t *testing.T) {
	t.Parallel()

	monday := date(t, "2025-01-06")
	jan31 := date(t, "2025-01-31")

	cases := []struct {
		name      string
		anchor    time.Time
		candidate string
		typ       RepeatType
		days      []string
		want      bool
	}{
		{"daily always matches", monday, "2025-02-17", Daily, nil, true},
		{"weekly default same weekday", monday, "2025-01-13", Weekly, nil, true},
		{"weekly default other weekday", monday, "2025-01-14", Weekly, nil, false},
		{"weekly explicit thursday", monday, "2025-01-09", Weekly, []string{"monday", "thursday"}, true},
		{"weekly explicit excludes anchor weekday", monday, "2025-01-13", Weekly, []string{"thursday"}, false},
		{"monthly default same day", jan31, "2025-03-31", Monthly, nil, true},
		{"monthly default skips short month", jan31, "2025-04-30", Monthly, nil, false},
		{"monthly explicit days", monday, "2025-02-15", Monthly, []string{"1", "15"}, true},
		{"monthly explicit miss", monday, "2025-02-16", Monthly, []string{"1", "15"}, false},
		{"one time never matches", monday, "2025-01-06", OneTime, nil, false},
		{"unknown type never matches", monday, "2025-01-06", RepeatType("yearly"), nil, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := Matches(tc.anchor, date(t, tc.candidate), tc.typ, tc.days); got != tc.want {
				t.Fatalf("Matches() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestNormalizeRepeatDays(t *testing.T) {
	t.Parallel()

	days, err := NormalizeRepeatDays(Weekly, []string{" Monday", "THURSDAY", "monday", ""})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Join(days, ",") != "monday,thursday" {
		t.Fatalf("unexpected weekly days: %v", days)
	}

	days, err = NormalizeRepeatDays(Monthly, []string{"05", "31"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Join(days, ",") != "5,31" {
		t.Fatalf("unexpected monthly days: %v", days)
	}

	if _, err := NormalizeRepeatDays(Weekly, []string{"funday"}); !errors.Is(err, ErrInvalidRepeatDay) {
		t.Fatalf("expected ErrInvalidRepeatDay, got %v", err)
	}
	if _, err := NormalizeRepeatDays(Monthly, []string{"32"}); !errors.Is(err, ErrInvalidRepeatDay) {
		t.Fatalf("expected ErrInvalidRepeatDay, got %v", err)
	}

	days, err = NormalizeRepeatDays(Daily, []string{"monday"})
	if err != nil || days != nil {
		t.Fatalf("daily rules ignore repeat days, got %v, %v", days, err)
	}
}

func TestNewRule(t *testing.T) {
	t.Parallel()

	if _, err := NewRule("fortnightly", nil, date(t, "2025-01-01"), nil); !errors.Is(err, ErrInvalidRepeatType) {
		t.Fatalf("expected ErrInvalidRepeatType, got %v", err)
	}

	until := date(t, "2024-12-31")
	if _, err := NewRule("daily", nil, date(t, "2025-01-01"), &until); !errors.Is(err, ErrInvalidWindow) {
		t.Fatalf("expected ErrInvalidWindow, got %v", err)
	}

	rule, err := NewRule("", nil, date(t, "2025-01-01"), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rule.Recurring() {
		t.Fatal("empty repeat type should be one_time")
	}
}

func TestEngine_Dates(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, time.December, 1, 12, 0, 0, 0, time.UTC)

	t.Run("daily expansion excludes the anchor", func(t *testing.T) {
		t.Parallel()
		until := date(t, "2025-01-05")
		rule, err := NewRule("daily", nil, date(t, "2025-01-01"), &until)
		if err != nil {
			t.Fatalf("NewRule: %v", err)
		}
		dates, truncated := NewEngine(time.UTC, 0, 0).Dates(rule, now)
		if truncated {
			t.Fatal("unexpected truncation")
		}
		if got := formatDates(dates); got != "2025-01-02,2025-01-03,2025-01-04,2025-01-05" {
			t.Fatalf("unexpected dates: %s", got)
		}
	})

	t.Run("weekly explicit days", func(t *testing.T) {
		t.Parallel()
		until := date(t, "2025-01-20")
		rule, err := NewRule("weekly", []string{"monday", "thursday"}, date(t, "2025-01-06"), &until)
		if err != nil {
			t.Fatalf("NewRule: %v", err)
		}
		dates, _ := NewEngine(time.UTC, 0, 0).Dates(rule, now)
		if got := formatDates(dates); got != "2025-01-09,2025-01-13,2025-01-16,2025-01-20" {
			t.Fatalf("unexpected dates: %s", got)
		}
	})

	t.Run("monthly skips months without the anchor day", func(t *testing.T) {
		t.Parallel()
		until := date(t, "2025-06-30")
		rule, err := NewRule("monthly", nil, date(t, "2025-01-31"), &until)
		if err != nil {
			t.Fatalf("NewRule: %v", err)
		}
		dates, _ := NewEngine(time.UTC, 0, 0).Dates(rule, now)
		if got := formatDates(dates); got != "2025-03-31,2025-05-31" {
			t.Fatalf("unexpected dates: %s", got)
		}

		opt, err := rule.ROption()
		if err != nil {
			t.Fatalf("ROption: %v", err)
		}
		rr, err := rrule.NewRRule(opt)
		if err != nil {
			t.Fatalf("NewRRule: %v", err)
		}
		expanded := rr.Between(rule.Anchor.AddDate(0, 0, 1), until, true)
		if got := formatDates(expanded); got != formatDates(dates) {
			t.Fatalf("rrule expansion %s disagrees with engine %s", got, formatDates(dates))
		}
	})

	t.Run("open rules use the horizon from the day after the anchor", func(t *testing.T) {
		t.Parallel()
		rule, err := NewRule("daily", nil, date(t, "2025-01-01"), nil)
		if err != nil {
			t.Fatalf("NewRule: %v", err)
		}
		dates, _ := NewEngine(time.UTC, 30, 0).Dates(rule, now)
		if len(dates) != 31 {
			t.Fatalf("expected 31 dates, got %d", len(dates))
		}
		if FormatDate(dates[0]) != "2025-01-02" || FormatDate(dates[30]) != "2025-02-01" {
			t.Fatalf("unexpected bounds: %s..%s", FormatDate(dates[0]), FormatDate(dates[30]))
		}
	})

	t.Run("open rules slide with today", func(t *testing.T) {
		t.Parallel()
		rule, err := NewRule("daily", nil, date(t, "2025-01-01"), nil)
		if err != nil {
			t.Fatalf("NewRule: %v", err)
		}
		later := time.Date(2025, time.March, 10, 8, 0, 0, 0, time.UTC)
		dates, _ := NewEngine(time.UTC, 30, 0).Dates(rule, later)
		if FormatDate(dates[0]) != "2025-03-10" || FormatDate(dates[len(dates)-1]) != "2025-04-09" {
			t.Fatalf("unexpected sliding window: %s..%s", FormatDate(dates[0]), FormatDate(dates[len(dates)-1]))
		}
	})

	t.Run("cap truncates the expansion", func(t *testing.T) {
		t.Parallel()
		rule, err := NewRule("daily", nil, date(t, "2025-01-01"), nil)
		if err != nil {
			t.Fatalf("NewRule: %v", err)
		}
		dates, truncated := NewEngine(time.UTC, 30, 5).Dates(rule, now)
		if !truncated || len(dates) != 5 {
			t.Fatalf("expected 5 truncated dates, got %d (truncated=%v)", len(dates), truncated)
		}
	})

	t.Run("one time rules expand to nothing", func(t *testing.T) {
		t.Parallel()
		rule, err := NewRule("one_time", nil, date(t, "2025-01-01"), nil)
		if err != nil {
			t.Fatalf("NewRule: %v", err)
		}
		if dates, _ := NewEngine(time.UTC, 0, 0).Dates(rule, now); len(dates) != 0 {
			t.Fatalf("expected no dates, got %d", len(dates))
		}
	})
}

func TestDay_PinsToLocation(t *testing.T) {
	t.Parallel()

	tokyo := time.FixedZone("JST", 9*60*60)
	instant := time.Date(2025, time.January, 5, 23, 30, 0, 0, time.UTC)

	if got := FormatDate(Day(instant, tokyo)); got != "2025-01-06" {
		t.Fatalf("expected Tokyo date 2025-01-06, got %s", got)
	}
	if got := FormatDate(Day(instant, time.UTC)); got != "2025-01-05" {
		t.Fatalf("expected UTC date 2025-01-05, got %s", got)
	}
	if got := NewEngine(tokyo, 0, 0).Today(instant); !got.Equal(date(t, "2025-01-06")) {
		t.Fatalf("unexpected engine today: %s", got)
	}
}

func TestRule_RRule(t *testing.T) {
	t.Parallel()

	until := date(t, "2025-03-01")
	rule, err := NewRule("weekly", []string{"Monday", "Thursday"}, date(t, "2025-01-06"), &until)
	if err != nil {
		t.Fatalf("NewRule: %v", err)
	}
	value, err := rule.RRule()
	if err != nil {
		t.Fatalf("RRule: %v", err)
	}
	if !strings.Contains(value, "FREQ=WEEKLY") || !strings.Contains(value, "BYDAY=MO,TH") {
		t.Fatalf("unexpected rrule: %s", value)
	}
	if _, err := rrule.StrToRRule(value); err != nil {
		t.Fatalf("rendered rrule does not parse: %v", err)
	}

	oneTime, _ := NewRule("one_time", nil, date(t, "2025-01-06"), nil)
	if _, err := oneTime.RRule(); !errors.Is(err, ErrInvalidRepeatType) {
		t.Fatalf("expected ErrInvalidRepeatType, got %v", err)
	}
}

func TestAt(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("CET", 60*60)
	got := At(date(t, "2025-01-06"), "09:30", loc)
	want := time.Date(2025, time.January, 6, 9, 30, 0, 0, loc)
	if !got.Equal(want) {
		t.Fatalf("At() = %s, want %s", got, want)
	}
	if got := At(date(t, "2025-01-06"), "bogus", time.UTC); got.Hour() != 0 || got.Minute() != 0 {
		t.Fatalf("malformed clock should yield midnight, got %s", got)
	}
}
