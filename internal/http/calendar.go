package http

import (
	ics "github.com/arran4/golang-ical"

	"github.com/example/session-scheduler/internal/application"
	"github.com/example/session-scheduler/internal/scheduler"
)

const calendarProductID = "-//session-scheduler//occurrences//EN"

// renderCalendar builds an iCalendar document with one VEVENT per occurrence. Occurrences
// with a validity window become timed events; the rest are all-day events.
func renderCalendar(template application.Session, occurrences []application.Session) string {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(calendarProductID)
	cal.SetXWRCalName(template.Name)

	rrule := templateRRule(template)
	for _, occurrence := range occurrences {
		event := cal.AddEvent(occurrence.ID + "@session-scheduler")
		event.SetDtStampTime(occurrence.UpdatedAt.UTC())
		event.SetCreatedTime(occurrence.CreatedAt.UTC())
		event.SetSummary(occurrence.Name)
		if rrule != "" {
			event.SetDescription("Generated from " + template.Name + " (" + rrule + ")")
		}
		if occurrence.ValidFrom != nil && occurrence.ValidUntil != nil {
			event.SetStartAt(occurrence.ValidFrom.UTC())
			event.SetEndAt(occurrence.ValidUntil.UTC())
		} else {
			event.SetAllDayStartAt(occurrence.SessionDate)
			event.SetAllDayEndAt(occurrence.SessionDate.AddDate(0, 0, 1))
		}
		event.SetStatus(eventStatus(occurrence.Status))
	}
	return cal.Serialize()
}

func eventStatus(status scheduler.Status) ics.ObjectStatus {
	switch status {
	case scheduler.StatusCancelled:
		return ics.ObjectStatusCancelled
	case scheduler.StatusDraft, scheduler.StatusScheduled:
		return ics.ObjectStatusTentative
	}
	return ics.ObjectStatusConfirmed
}
