package service

import (
	"time"
)

// NextMondayUTC calculates the next strictly-future Monday 00:00 UTC after
// the given time. If now falls exactly on a Monday at midnight the boundary
// advances a full week, never zero days.
func NextMondayUTC(now time.Time) time.Time {
	now = now.UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	daysAhead := (int(time.Monday) - int(now.Weekday()) + 7) % 7
	if daysAhead == 0 {
		daysAhead = 7
	}
	return midnight.AddDate(0, 0, daysAhead)
}
