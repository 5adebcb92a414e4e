package access

import "time"

// Urgency buckets the time left before a session's validity window closes.
type Urgency string

const (
	UrgencyNone     Urgency = "none"
	UrgencyNormal   Urgency = "normal"
	UrgencyWarning  Urgency = "warning"
	UrgencyCritical Urgency = "critical"
	UrgencyExpired  Urgency = "expired"
)

const (
	criticalThreshold = 10 * time.Minute
	warningThreshold  = 30 * time.Minute
)

// RemainingTime returns the time left until validUntil and its urgency bucket.
// Sessions without an end bound report UrgencyNone.
func RemainingTime(validUntil *time.Time, now time.Time) (time.Duration, Urgency) {
	if validUntil == nil {
		return 0, UrgencyNone
	}
	remaining := validUntil.Sub(now)
	switch {
	case remaining <= 0:
		return 0, UrgencyExpired
	case remaining < criticalThreshold:
		return remaining, UrgencyCritical
	case remaining < warningThreshold:
		return remaining, UrgencyWarning
	default:
		return remaining, UrgencyNormal
	}
}
