package recurrence

import (
	"fmt"
	"strconv"

	"github.com/teambition/rrule-go"
)

var rruleWeekdays = map[string]rrule.Weekday{
	"monday":    rrule.MO,
	"tuesday":   rrule.TU,
	"wednesday": rrule.WE,
	"thursday":  rrule.TH,
	"friday":    rrule.FR,
	"saturday":  rrule.SA,
	"sunday":    rrule.SU,
}

// ROption converts the rule into rrule-go options anchored at the rule's anchor date.
// Empty repeat days leave BYDAY/BYMONTHDAY unset so the anchor supplies them, which is
// the same defaulting Matches applies.
func (r Rule) ROption() (rrule.ROption, error) {
	opt := rrule.ROption{Dtstart: r.Anchor}
	switch r.Type {
	case Daily:
		opt.Freq = rrule.DAILY
	case Weekly:
		opt.Freq = rrule.WEEKLY
		for _, day := range r.Days {
			wd, ok := rruleWeekdays[day]
			if !ok {
				return rrule.ROption{}, fmt.Errorf("%w: %q", ErrInvalidRepeatDay, day)
			}
			opt.Byweekday = append(opt.Byweekday, wd)
		}
	case Monthly:
		opt.Freq = rrule.MONTHLY
		for _, day := range r.Days {
			dom, err := strconv.Atoi(day)
			if err != nil {
				return rrule.ROption{}, fmt.Errorf("%w: %q", ErrInvalidRepeatDay, day)
			}
			opt.Bymonthday = append(opt.Bymonthday, dom)
		}
	default:
		return rrule.ROption{}, fmt.Errorf("%w: %q has no recurrence", ErrInvalidRepeatType, r.Type)
	}
	if r.Until != nil {
		opt.Until = r.Until.AddDate(0, 0, 1).Add(-1)
	}
	return opt, nil
}

// RRule renders the rule as an RFC 5545 RRULE value (without the DTSTART line).
func (r Rule) RRule() (string, error) {
	opt, err := r.ROption()
	if err != nil {
		return "", err
	}
	if _, err := rrule.NewRRule(opt); err != nil {
		return "", fmt.Errorf("recurrence: build rrule: %w", err)
	}
	return opt.RRuleString(), nil
}
