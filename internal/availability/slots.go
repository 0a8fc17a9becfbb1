package availability

import "time"

type Interval struct {
	Start time.Time
	End   time.Time
}

// AvailableSlots returns slot start times within [windowStart, windowEnd) where
// a booking of length duration would keep concurrent occupancy below capacity.
// Candidates advance by step from windowStart; a candidate is dropped when its
// full [t, t+duration) does not fit the window, when t is in the past, or when
// some instant of it already has `capacity` busy intervals running.
//
// All times are expected to be in the same location (timezone).
func AvailableSlots(windowStart, windowEnd time.Time, duration, step time.Duration, busy []Interval, capacity int, now time.Time) []time.Time {
	if duration <= 0 || step <= 0 || capacity <= 0 {
		return nil
	}
	if !windowEnd.After(windowStart) {
		return nil
	}
	if windowStart.Add(duration).After(windowEnd) {
		return nil
	}

	var slots []time.Time
	for t := windowStart; !t.Add(duration).After(windowEnd); t = t.Add(step) {
		if t.Before(now) {
			continue
		}
		if MaxConcurrent(t, t.Add(duration), busy) < capacity {
			slots = append(slots, t)
		}
	}
	return slots
}

// HasCapacity reports whether a booking over [start, end) would keep
// concurrent occupancy below capacity.
func HasCapacity(start, end time.Time, busy []Interval, capacity int) bool {
	if capacity <= 0 || !end.After(start) {
		return false
	}
	return MaxConcurrent(start, end, busy) < capacity
}

// MaxConcurrent returns the highest number of busy intervals running at the
// same instant anywhere inside [start, end). Intervals are half-open, so a
// booking ending exactly at another's start never counts as concurrent.
func MaxConcurrent(start, end time.Time, busy []Interval) int {
	overlapping := busy[:0:0]
	for _, b := range busy {
		if start.Before(b.End) && b.Start.Before(end) {
			overlapping = append(overlapping, b)
		}
	}
	if len(overlapping) == 0 {
		return 0
	}

	// Occupancy only changes at interval starts, so probing each start that
	// falls inside the probe range (clamped to `start`) is exact.
	max := 0
	for _, probe := range overlapping {
		at := probe.Start
		if at.Before(start) {
			at = start
		}
		count := 0
		for _, b := range overlapping {
			if !at.Before(b.End) || b.Start.After(at) {
				continue
			}
			count++
		}
		if count > max {
			max = count
		}
	}
	return max
}

// FitsWindow reports whether [start, end) lies entirely inside
// [windowStart, windowEnd]. Partial overlap with the boundary rejects.
func FitsWindow(windowStart, windowEnd, start, end time.Time) bool {
	return !start.Before(windowStart) && !end.After(windowEnd)
}
