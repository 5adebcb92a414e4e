package recurrence

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
)

const (
	// DefaultHorizonDays bounds open-ended rules to a sliding look-ahead window.
	DefaultHorizonDays = 30
	// DefaultMaxOccurrences caps a single expansion run.
	DefaultMaxOccurrences = 1000
)

// RepeatType identifies how a session recurs.
type RepeatType string

const (
	// OneTime sessions never recur and never spawn occurrences.
	OneTime RepeatType = "one_time"
	// Daily rules match every calendar day.
	Daily RepeatType = "daily"
	// Weekly rules match selected weekdays, or the anchor's weekday.
	Weekly RepeatType = "weekly"
	// Monthly rules match selected days of the month, or the anchor's day of month.
	Monthly RepeatType = "monthly"
)

var (
	// ErrInvalidRepeatType indicates the repeat type is not supported.
	ErrInvalidRepeatType = errors.New("recurrence: invalid repeat type")
	// ErrInvalidRepeatDay indicates a repeat_days entry cannot be interpreted for the rule's type.
	ErrInvalidRepeatDay = errors.New("recurrence: invalid repeat day")
	// ErrInvalidWindow indicates the end of the rule lies before its anchor.
	ErrInvalidWindow = errors.New("recurrence: end date precedes anchor date")
)

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// ParseRepeatType converts a stored repeat type into a RepeatType. The empty string is
// treated as one_time.
func ParseRepeatType(value string) (RepeatType, error) {
	switch RepeatType(strings.TrimSpace(value)) {
	case "", OneTime:
		return OneTime, nil
	case Daily:
		return Daily, nil
	case Weekly:
		return Weekly, nil
	case Monthly:
		return Monthly, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidRepeatType, value)
}

// NormalizeRepeatDays validates and canonicalises repeat_days for the given type.
// Weekly entries become lowercase English weekday names and monthly entries become
// decimal day numbers without padding. Duplicates are dropped while preserving order.
func NormalizeRepeatDays(repeatType RepeatType, days []string) ([]string, error) {
	if len(days) == 0 {
		return nil, nil
	}
	fold := cases.Fold()
	seen := make(map[string]struct{}, len(days))
	out := make([]string, 0, len(days))
	for _, raw := range days {
		value := strings.TrimSpace(raw)
		if value == "" {
			continue
		}
		switch repeatType {
		case Weekly:
			value = fold.String(value)
			if _, ok := weekdayNames[value]; !ok {
				return nil, fmt.Errorf("%w: %q is not a weekday", ErrInvalidRepeatDay, raw)
			}
		case Monthly:
			day, err := strconv.Atoi(value)
			if err != nil || day < 1 || day > 31 {
				return nil, fmt.Errorf("%w: %q is not a day of month", ErrInvalidRepeatDay, raw)
			}
			value = strconv.Itoa(day)
		case Daily, OneTime:
			// repeat_days carries no meaning for these types.
			continue
		default:
			return nil, fmt.Errorf("%w: %q", ErrInvalidRepeatType, repeatType)
		}
		if _, dup := seen[value]; dup {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

// Matches reports whether candidate is an occurrence date of a rule anchored at anchor.
//
// Both dates are read in their own location, so callers pass civil dates produced by
// Day. Unknown and one_time repeat types never match.
func Matches(anchor, candidate time.Time, repeatType RepeatType, repeatDays []string) bool {
	switch repeatType {
	case Daily:
		return true
	case Weekly:
		if len(repeatDays) == 0 {
			return candidate.Weekday() == anchor.Weekday()
		}
		name := strings.ToLower(candidate.Weekday().String())
		for _, day := range repeatDays {
			if day == name {
				return true
			}
		}
		return false
	case Monthly:
		if len(repeatDays) == 0 {
			// Months without the anchor's day are skipped.
			return candidate.Day() == anchor.Day()
		}
		dom := strconv.Itoa(candidate.Day())
		for _, day := range repeatDays {
			if day == dom {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// Rule is a validated recurrence configuration taken from a template session.
type Rule struct {
	Type   RepeatType
	Days   []string
	Anchor time.Time
	Until  *time.Time
}

// NewRule validates the raw template fields and returns a normalised Rule.
func NewRule(repeatType string, repeatDays []string, anchor time.Time, until *time.Time) (Rule, error) {
	rt, err := ParseRepeatType(repeatType)
	if err != nil {
		return Rule{}, err
	}
	days, err := NormalizeRepeatDays(rt, repeatDays)
	if err != nil {
		return Rule{}, err
	}
	rule := Rule{Type: rt, Days: days, Anchor: DateOf(anchor)}
	if until != nil {
		end := DateOf(*until)
		if end.Before(rule.Anchor) {
			return Rule{}, ErrInvalidWindow
		}
		rule.Until = &end
	}
	return rule, nil
}

// Recurring reports whether the rule spawns occurrences.
func (r Rule) Recurring() bool {
	return r.Type != OneTime && r.Type != ""
}

// Matches evaluates the rule for a civil date.
func (r Rule) Matches(candidate time.Time) bool {
	return Matches(r.Anchor, DateOf(candidate), r.Type, r.Days)
}

// Engine expands rules into concrete occurrence dates within a bounded horizon.
type Engine struct {
	location       *time.Location
	horizonDays    int
	maxOccurrences int
}

// NewEngine constructs an Engine that evaluates "today" in loc. If loc is nil, UTC is
// used. Non-positive limits fall back to DefaultHorizonDays and DefaultMaxOccurrences.
func NewEngine(loc *time.Location, horizonDays, maxOccurrences int) *Engine {
	if loc == nil {
		loc = time.UTC
	}
	if horizonDays <= 0 {
		horizonDays = DefaultHorizonDays
	}
	if maxOccurrences <= 0 {
		maxOccurrences = DefaultMaxOccurrences
	}
	return &Engine{location: loc, horizonDays: horizonDays, maxOccurrences: maxOccurrences}
}

// Location returns the timezone the engine pins evaluation to.
func (e *Engine) Location() *time.Location {
	if e == nil || e.location == nil {
		return time.UTC
	}
	return e.location
}

// Today returns the civil date of now in the engine's timezone.
func (e *Engine) Today(now time.Time) time.Time {
	return Day(now, e.Location())
}

// Window returns the inclusive candidate range for rule as of now.
//
// The window starts the day after the anchor. Rules with an end date stop there; open
// rules slide: they start no earlier than today and extend horizonDays past the start.
// ok is false when the window is empty.
func (e *Engine) Window(rule Rule, now time.Time) (start, end time.Time, ok bool) {
	start = rule.Anchor.AddDate(0, 0, 1)
	if rule.Until != nil {
		end = *rule.Until
	} else {
		if today := e.Today(now); today.After(start) {
			start = today
		}
		end = start.AddDate(0, 0, e.horizonDays)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

// Dates lists the occurrence dates of rule within its window in ascending order.
// truncated reports that the engine's occurrence cap cut the expansion short.
func (e *Engine) Dates(rule Rule, now time.Time) (dates []time.Time, truncated bool) {
	if !rule.Recurring() {
		return nil, false
	}
	start, end, ok := e.Window(rule, now)
	if !ok {
		return nil, false
	}
	for current := start; !current.After(end); current = current.AddDate(0, 0, 1) {
		if !rule.Matches(current) {
			continue
		}
		if len(dates) >= e.maxOccurrences {
			return dates, true
		}
		dates = append(dates, current)
	}
	return dates, false
}
