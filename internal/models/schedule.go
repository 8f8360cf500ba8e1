package models

import (
	"strings"
	"time"
)

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

func parseClock(s string) (int, bool) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, false
	}
	return t.Hour()*60 + t.Minute(), true
}

// IsOpen reports whether the store accepts orders at t. A window whose close
// time is earlier than its open time runs past midnight into the next day; a
// window with equal open and close times covers the whole day.
func (s ScheduleSettings) IsOpen(t time.Time) bool {
	if s.AlwaysOpen {
		return true
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil || s.Timezone == "" {
		loc = time.UTC
	}
	local := t.In(loc)
	now := local.Hour()*60 + local.Minute()
	today := local.Weekday()
	yesterday := (today + 6) % 7

	for _, day := range s.Days {
		wd, ok := weekdays[strings.ToLower(strings.TrimSpace(day.Weekday))]
		if !ok {
			continue
		}
		open, okOpen := parseClock(day.Open)
		closing, okClose := parseClock(day.Close)
		if !okOpen || !okClose {
			continue
		}

		switch {
		case wd == today && open == closing:
			return true
		case wd == today && open < closing:
			if now >= open && now < closing {
				return true
			}
		case wd == today && open > closing:
			if now >= open {
				return true
			}
		case wd == yesterday && open > closing:
			if now < closing {
				return true
			}
		}
	}
	return false
}
