package sla

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const minutesPerDay = 24 * 60

// Window is a daily operating window in minutes after local midnight.
type Window struct {
	StartMinute int `json:"startMinute"`
	EndMinute   int `json:"endMinute"`
}

// Valid reports whether the window is non-empty and within one day.
func (w Window) Valid() bool {
	return w.StartMinute >= 0 && w.StartMinute < w.EndMinute && w.EndMinute <= minutesPerDay
}

func (w Window) String() string {
	return fmt.Sprintf("%02d:%02d-%02d:%02d", w.StartMinute/60, w.StartMinute%60, w.EndMinute/60, w.EndMinute%60)
}

// ParseWindow parses "HH:MM-HH:MM".
func ParseWindow(s string) (Window, error) {
	from, to, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok {
		return Window{}, fmt.Errorf("window %q: want HH:MM-HH:MM", s)
	}
	start, err := parseClock(from)
	if err != nil {
		return Window{}, fmt.Errorf("window %q: %w", s, err)
	}
	end, err := parseClock(to)
	if err != nil {
		return Window{}, fmt.Errorf("window %q: %w", s, err)
	}
	w := Window{StartMinute: start, EndMinute: end}
	if !w.Valid() {
		return Window{}, fmt.Errorf("window %q: start must be before end", s)
	}
	return w, nil
}

func parseClock(s string) (int, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("bad time %q", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 24 {
		return 0, fmt.Errorf("bad hour %q", hh)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("bad minute %q", mm)
	}
	return h*60 + m, nil
}

// ParseWeekdays parses a day list such as "1-5" or "1,2,3,4,5,6" where
// 0 is Sunday.
func ParseWeekdays(s string) ([]time.Weekday, error) {
	var out []time.Weekday
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lo, hi, isRange := strings.Cut(part, "-")
		a, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil || a < 0 || a > 6 {
			return nil, fmt.Errorf("bad weekday %q", part)
		}
		b := a
		if isRange {
			if b, err = strconv.Atoi(strings.TrimSpace(hi)); err != nil || b < a || b > 6 {
				return nil, fmt.Errorf("bad weekday range %q", part)
			}
		}
		for d := a; d <= b; d++ {
			out = append(out, time.Weekday(d))
		}
	}
	return out, nil
}

// Schedule is the weekly operating schedule of a scope. Weekdays missing from
// Days are closed.
type Schedule struct {
	UnitID       *int64                  `json:"unitId,omitempty"`
	DepartmentID *int64                  `json:"departmentId,omitempty"`
	Days         map[time.Weekday]Window `json:"days"`
}

// StandardSchedule returns a global schedule open w on each of days.
func StandardSchedule(w Window, days ...time.Weekday) Schedule {
	s := Schedule{Days: make(map[time.Weekday]Window, len(days))}
	for _, d := range days {
		s.Days[d] = w
	}
	return s
}

// Window returns the operating window for wd; false when closed.
func (s Schedule) Window(wd time.Weekday) (Window, bool) {
	w, ok := s.Days[wd]
	if !ok || !w.Valid() {
		return Window{}, false
	}
	return w, true
}

// Schedules resolves the schedule for a scope from a set of scoped schedules.
type Schedules struct {
	list     []Schedule
	fallback Schedule
}

// NewSchedules returns a set that falls back to fallback when no scoped
// schedule covers a query.
func NewSchedules(fallback Schedule, list ...Schedule) Schedules {
	return Schedules{list: append([]Schedule(nil), list...), fallback: fallback}
}

// For returns the most specific schedule covering scope: unit, then
// department, then global, then the fallback.
func (s Schedules) For(scope Scope) Schedule {
	best, rank := -1, -1
	for i, sc := range s.list {
		if !scope.covers(sc.UnitID, sc.DepartmentID) {
			continue
		}
		if r := specificity(sc.UnitID, sc.DepartmentID); r > rank {
			best, rank = i, r
		}
	}
	if best < 0 {
		return s.fallback
	}
	return s.list[best]
}
