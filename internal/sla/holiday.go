package sla

import (
	"fmt"
	"strings"
	"time"
)

// Holiday is a non-working day, either on a fixed date or recurring yearly.
type Holiday struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	Date           time.Time `json:"date"`
	IsRecurring    bool      `json:"isRecurring"`
	RecurrenceRule *string   `json:"recurrenceRule"`
	UnitID         *int64    `json:"unitId,omitempty"`
	DepartmentID   *int64    `json:"departmentId,omitempty"`
	IsActive       bool      `json:"isActive"`
	CreatedAt      time.Time `json:"createdAt"`
}

// HolidayInstance is a holiday occurrence on a concrete date.
type HolidayInstance struct {
	Date    time.Time `json:"date"`
	Holiday Holiday   `json:"holiday"`
}

// ValidRecurrenceRule reports whether rule is acceptable for storage. Only
// the FREQ= prefix is checked, with no surrounding whitespace, matching the
// holidays table constraint; see RecursYearly for what is honoured.
func ValidRecurrenceRule(rule string) bool {
	return strings.HasPrefix(rule, "FREQ=") && strings.TrimSpace(rule) == rule
}

// RecursYearly reports whether rule asks for yearly recurrence. Any other
// frequency is stored but never expands.
func RecursYearly(rule *string) bool {
	if rule == nil {
		return false
	}
	for _, part := range strings.Split(strings.ToUpper(*rule), ";") {
		k, v, ok := strings.Cut(part, "=")
		if ok && strings.TrimSpace(k) == "FREQ" {
			return strings.TrimSpace(v) == "YEARLY"
		}
	}
	return false
}

// OccursOn reports whether h falls on the given civil date.
func (h Holiday) OccursOn(y int, m time.Month, d int) bool {
	if !h.IsActive {
		return false
	}
	hy, hm, hd := h.Date.Date()
	if !h.IsRecurring {
		return hy == y && hm == m && hd == d
	}
	if !RecursYearly(h.RecurrenceRule) {
		return false
	}
	return hm == m && hd == d
}

type civilDate struct {
	y int
	m time.Month
	d int
}

type monthDay struct {
	m time.Month
	d int
}

// HolidayCalendar answers holiday queries over an immutable holiday list.
type HolidayCalendar struct {
	holidays []Holiday
	fixed    map[civilDate][]int
	yearly   map[monthDay][]int
}

// NewHolidayCalendar indexes holidays. Inactive holidays and recurring ones
// with an unsupported rule are dropped from the index.
func NewHolidayCalendar(holidays []Holiday) *HolidayCalendar {
	c := &HolidayCalendar{
		holidays: append([]Holiday(nil), holidays...),
		fixed:    make(map[civilDate][]int),
		yearly:   make(map[monthDay][]int),
	}
	for i, h := range c.holidays {
		if !h.IsActive {
			continue
		}
		y, m, d := h.Date.Date()
		switch {
		case !h.IsRecurring:
			k := civilDate{y, m, d}
			c.fixed[k] = append(c.fixed[k], i)
		case RecursYearly(h.RecurrenceRule):
			k := monthDay{m, d}
			c.yearly[k] = append(c.yearly[k], i)
		}
	}
	return c
}

// Holidays returns the holidays the calendar was built from.
func (c *HolidayCalendar) Holidays() []Holiday {
	return append([]Holiday(nil), c.holidays...)
}

// IsHoliday reports whether the civil date of date is a holiday for scope.
// Global and department holidays are inherited by narrower scopes.
func (c *HolidayCalendar) IsHoliday(date time.Time, scope Scope) bool {
	_, ok := c.lookup(date, scope)
	return ok
}

// HolidayOn returns the governing holiday for date, preferring unit, then
// department, then global records.
func (c *HolidayCalendar) HolidayOn(date time.Time, scope Scope) (Holiday, bool) {
	return c.lookup(date, scope)
}

func (c *HolidayCalendar) lookup(date time.Time, scope Scope) (Holiday, bool) {
	if c == nil {
		return Holiday{}, false
	}
	y, m, d := date.Date()
	best, found := -1, false
	consider := func(idx []int) {
		for _, i := range idx {
			h := c.holidays[i]
			if !scope.covers(h.UnitID, h.DepartmentID) {
				continue
			}
			if !found || better(h, c.holidays[best]) {
				best, found = i, true
			}
		}
	}
	consider(c.fixed[civilDate{y, m, d}])
	consider(c.yearly[monthDay{m, d}])
	if !found {
		return Holiday{}, false
	}
	return c.holidays[best], true
}

func better(a, b Holiday) bool {
	sa, sb := specificity(a.UnitID, a.DepartmentID), specificity(b.UnitID, b.DepartmentID)
	if sa != sb {
		return sa > sb
	}
	return a.ID < b.ID
}

// HolidaysInRange lists one instance per holiday date between start and end
// inclusive, walking civil dates in start's location.
func (c *HolidayCalendar) HolidaysInRange(start, end time.Time, scope Scope) []HolidayInstance {
	loc := start.Location()
	day := dayStart(start, loc)
	last := dayStart(end, loc)
	out := []HolidayInstance{}
	for !day.After(last) {
		if h, ok := c.lookup(day, scope); ok {
			out = append(out, HolidayInstance{Date: day, Holiday: h})
		}
		day = nextDay(day)
	}
	return out
}

// MaxRangeDays bounds the span HolidaysBetween walks.
const MaxRangeDays = 3 * 366

// HolidaysBetween parses YYYY-MM-DD bounds in loc and lists holidays between
// them. Spans longer than MaxRangeDays fail with ErrRangeTooLong.
func (c *HolidayCalendar) HolidaysBetween(start, end string, scope Scope, loc *time.Location) ([]HolidayInstance, error) {
	s, err := ParseDate(start, loc)
	if err != nil {
		return nil, err
	}
	e, err := ParseDate(end, loc)
	if err != nil {
		return nil, err
	}
	if e.After(s.AddDate(0, 0, MaxRangeDays)) {
		return nil, fmt.Errorf("%s to %s: %w", start, end, ErrRangeTooLong)
	}
	return c.HolidaysInRange(s, e, scope), nil
}
