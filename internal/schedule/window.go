package schedule

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidWindow = errors.New("invalid availability window")
	ErrStaffNotFound = errors.New("staff not found")
)

// Window is a staff member's recurring open/closed range for one weekday
// (0-6, Sunday=0). Times are minutes of the business-local day.
type Window struct {
	StaffID     string
	Weekday     int
	Available   bool
	StartMinute int
	EndMinute   int
}

func (w Window) Validate() error {
	if w.Weekday < 0 || w.Weekday > 6 {
		return fmt.Errorf("%w: weekday %d out of range", ErrInvalidWindow, w.Weekday)
	}
	if !w.Available {
		return nil
	}
	if w.StartMinute < 0 || w.StartMinute >= 24*60 {
		return fmt.Errorf("%w: start minute %d out of range", ErrInvalidWindow, w.StartMinute)
	}
	if w.EndMinute <= 0 || w.EndMinute > 24*60 {
		return fmt.Errorf("%w: end minute %d out of range", ErrInvalidWindow, w.EndMinute)
	}
	if w.StartMinute >= w.EndMinute {
		return fmt.Errorf("%w: start %d not before end %d", ErrInvalidWindow, w.StartMinute, w.EndMinute)
	}
	return nil
}

// ValidateWeek checks a wholesale weekly replacement: every window valid,
// no weekday repeated. Missing weekdays are treated as closed.
func ValidateWeek(windows []Window) error {
	var seen [7]bool
	for _, w := range windows {
		if err := w.Validate(); err != nil {
			return err
		}
		if seen[w.Weekday] {
			return fmt.Errorf("%w: weekday %d appears twice", ErrInvalidWindow, w.Weekday)
		}
		seen[w.Weekday] = true
	}
	return nil
}

// DefaultWeek is the schedule seeded for new staff: Mon-Fri 09:00-17:00,
// weekend closed.
func DefaultWeek(staffID string) []Window {
	week := make([]Window, 0, 7)
	for wd := 0; wd <= 6; wd++ {
		w := Window{StaffID: staffID, Weekday: wd}
		if wd >= 1 && wd <= 5 {
			w.Available = true
			w.StartMinute = 9 * 60
			w.EndMinute = 17 * 60
		}
		week = append(week, w)
	}
	return week
}

// Bounds materializes the window on a concrete day. The day's year, month
// and date are taken from `day` in its own location.
func (w Window) Bounds(day time.Time) (time.Time, time.Time) {
	base := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	return base.Add(time.Duration(w.StartMinute) * time.Minute),
		base.Add(time.Duration(w.EndMinute) * time.Minute)
}
