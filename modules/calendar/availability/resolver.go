// Package availability computes gaps and free slots from busy intervals.
// Nothing in this package performs I/O.
package availability

import (
	"sort"
	"time"

	"smartschedule/modules/calendar/entity"
)

const DefaultStepMinutes = 30

type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

func (i Interval) Overlaps(start, end time.Time) bool {
	return i.Start.Before(end) && i.End.After(start)
}

// Resolver finds gaps and candidate slots inside a working window.
type Resolver struct {
	// StepMinutes is how far successive free-slot starts advance.
	StepMinutes int
}

func NewResolver(stepMinutes int) *Resolver {
	if stepMinutes <= 0 {
		stepMinutes = DefaultStepMinutes
	}
	return &Resolver{StepMinutes: stepMinutes}
}

// BusyIntervals keeps busy events and pads each by buffer on both sides.
func BusyIntervals(events []entity.MirroredEvent, buffer time.Duration) []Interval {
	intervals := make([]Interval, 0, len(events))
	for _, ev := range events {
		if !ev.IsBusy || !ev.EndTime.After(ev.StartTime) {
			continue
		}
		intervals = append(intervals, Interval{
			Start: ev.StartTime.Add(-buffer),
			End:   ev.EndTime.Add(buffer),
		})
	}
	return intervals
}

// IsIntervalBusy reports whether any busy event strictly overlaps [start, end).
func IsIntervalBusy(events []entity.MirroredEvent, start, end time.Time) bool {
	for _, ev := range events {
		if !ev.IsBusy {
			continue
		}
		if ev.StartTime.Before(end) && ev.EndTime.After(start) {
			return true
		}
	}
	return false
}

// Window returns [startHour, endHour) on day's calendar date, in day's location.
func Window(day time.Time, startHour, endHour int) Interval {
	y, m, d := day.Date()
	loc := day.Location()
	return Interval{
		Start: time.Date(y, m, d, startHour, 0, 0, 0, loc),
		End:   time.Date(y, m, d, endHour, 0, 0, 0, loc),
	}
}

// clip sorts busy intervals by start and trims them to the window, dropping those outside it.
func clip(busy []Interval, window Interval) []Interval {
	clipped := make([]Interval, 0, len(busy))
	for _, b := range busy {
		if !b.Overlaps(window.Start, window.End) {
			continue
		}
		if b.Start.Before(window.Start) {
			b.Start = window.Start
		}
		if b.End.After(window.End) {
			b.End = window.End
		}
		clipped = append(clipped, b)
	}
	sort.SliceStable(clipped, func(i, j int) bool {
		return clipped[i].Start.Before(clipped[j].Start)
	})
	return clipped
}

// FindGaps returns the free intervals of at least minGapMinutes inside the working window.
func (r *Resolver) FindGaps(busy []Interval, day time.Time, startHour, endHour, minGapMinutes int) []Interval {
	return gaps(busy, Window(day, startHour, endHour), time.Duration(minGapMinutes)*time.Minute)
}

func gaps(busy []Interval, window Interval, minGap time.Duration) []Interval {
	result := []Interval{}
	if !window.End.After(window.Start) {
		return result
	}

	cursor := window.Start
	for _, b := range clip(busy, window) {
		if b.Start.After(cursor) && b.Start.Sub(cursor) >= minGap {
			result = append(result, Interval{Start: cursor, End: b.Start})
		}
		if b.End.After(cursor) {
			cursor = b.End
		}
	}
	if window.End.After(cursor) && window.End.Sub(cursor) >= minGap {
		result = append(result, Interval{Start: cursor, End: window.End})
	}
	return result
}

// FindFreeSlots slices each free region into durationMinutes slots whose starts
// advance by the resolver step, so consecutive slots may overlap.
func (r *Resolver) FindFreeSlots(busy []Interval, day time.Time, durationMinutes, startHour, endHour int) []Interval {
	slots := []Interval{}
	if durationMinutes <= 0 {
		return slots
	}
	duration := time.Duration(durationMinutes) * time.Minute
	step := time.Duration(r.StepMinutes) * time.Minute

	for _, region := range gaps(busy, Window(day, startHour, endHour), duration) {
		for start := region.Start; !start.Add(duration).After(region.End); start = start.Add(step) {
			slots = append(slots, Interval{Start: start, End: start.Add(duration)})
		}
	}
	return slots
}

// Merge collapses overlapping or touching intervals into a sorted, disjoint list.
func Merge(intervals []Interval) []Interval {
	if len(intervals) == 0 {
		return []Interval{}
	}
	sorted := make([]Interval, len(intervals))
	copy(sorted, intervals)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Start.Before(sorted[j].Start)
	})

	merged := []Interval{sorted[0]}
	for _, current := range sorted[1:] {
		last := &merged[len(merged)-1]
		if !current.Start.After(last.End) {
			if current.End.After(last.End) {
				last.End = current.End
			}
			continue
		}
		merged = append(merged, current)
	}
	return merged
}
