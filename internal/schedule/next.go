package schedule

import (
	"time"

	"dotflow/internal/models"
)

// FallbackDelay is applied when a cron string falls outside the recognized
// preset family. This is a deliberate approximation, not an error path: the
// task keeps running roughly hourly instead of silently never running.
const FallbackDelay = time.Hour

// NextRun computes the next eligible run instant for a task given the
// current time. The second return value is false when the task will never
// become eligible (an elapsed or unparsable fixed instant).
func NextRun(task *models.AutomationTask, now time.Time, loc *time.Location) (time.Time, bool) {
	switch task.Mode() {
	case models.ModeFixed:
		at, err := time.Parse(time.RFC3339, task.FixedAt)
		if err != nil {
			// Unparsable instant: never eligible.
			return time.Time{}, false
		}
		if at.Before(now) {
			return time.Time{}, false
		}
		return at, true

	case models.ModeInterval:
		if task.LastRun == nil {
			return now, true
		}
		return task.LastRun.Add(time.Duration(task.IntervalSec) * time.Second), true

	case models.ModeCron:
		return nextCron(ParseCron(task.Schedule), now, loc), true
	}
	return time.Time{}, false
}

func nextCron(s Spec, now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	switch s.Kind {
	case SpecMinutely:
		// Built from wall-clock components: Truncate works on absolute
		// time and misfires in fractional-offset timezones.
		at := time.Date(local.Year(), local.Month(), local.Day(),
			local.Hour(), local.Minute(), 0, 0, local.Location())
		return at.Add(time.Minute)
	case SpecHourly:
		return atHour(local, local.Hour(), 0).Add(time.Hour)
	case SpecDailyAt:
		at := atHour(local, s.Hour, s.Minute)
		if !at.After(local) {
			at = at.AddDate(0, 0, 1)
		}
		return at
	case SpecWeekdaysAt:
		return nextDayMatching(local, s.Hour, s.Minute, isWeekday)
	case SpecWeekendAt:
		return nextDayMatching(local, s.Hour, s.Minute, isWeekend)
	}
	return now.Add(FallbackDelay)
}

// nextDayMatching walks forward day by day until both the hour and the
// day-type constraint hold.
func nextDayMatching(local time.Time, hour, minute int, match func(time.Weekday) bool) time.Time {
	at := atHour(local, hour, minute)
	if !at.After(local) {
		at = at.AddDate(0, 0, 1)
	}
	for !match(at.Weekday()) {
		at = at.AddDate(0, 0, 1)
	}
	return at
}

func atHour(ref time.Time, hour, minute int) time.Time {
	return time.Date(ref.Year(), ref.Month(), ref.Day(), hour, minute, 0, 0, ref.Location())
}

func isWeekday(d time.Weekday) bool { return d != time.Saturday && d != time.Sunday }

func isWeekend(d time.Weekday) bool { return d == time.Saturday || d == time.Sunday }
