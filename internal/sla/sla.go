package sla

import (
	"fmt"
	"math"
	"time"
)

// maxIterations bounds every calendar walk so a schedule without open days
// fails instead of looping.
const maxIterations = 366

// MaxMinutes is the largest target AddBusinessMinutes accepts, two years of
// wall-clock time.
const MaxMinutes = 2 * 365 * 24 * 60

// Calendar is the business calendar of a single scope.
type Calendar struct {
	Location *time.Location
	Schedule Schedule
	Holidays *HolidayCalendar
	Scope    Scope
}

// Remaining is the SLA time left before a due date.
type Remaining struct {
	Minutes   float64 `json:"minutes"`
	Hours     float64 `json:"hours"`
	IsOverdue bool    `json:"isOverdue"`
}

// window returns the open and close instants of day, a local midnight.
func (c *Calendar) window(day time.Time) (opens, closes time.Time, ok bool) {
	if c.Holidays.IsHoliday(day, c.Scope) {
		return time.Time{}, time.Time{}, false
	}
	w, ok := c.Schedule.Window(day.Weekday())
	if !ok {
		return time.Time{}, time.Time{}, false
	}
	y, m, d := day.Date()
	opens = time.Date(y, m, d, 0, w.StartMinute, 0, 0, c.Location)
	closes = time.Date(y, m, d, 0, w.EndMinute, 0, 0, c.Location)
	return opens, closes, true
}

// IsBusinessHours reports whether t falls inside an open window on a
// non-holiday.
func (c *Calendar) IsBusinessHours(t time.Time) bool {
	opens, closes, ok := c.window(dayStart(t, c.Location))
	return ok && !t.Before(opens) && t.Before(closes)
}

// NextBusinessStart returns t when it is already inside business hours,
// otherwise the start of the next open window.
func (c *Calendar) NextBusinessStart(t time.Time) (time.Time, error) {
	if c.IsBusinessHours(t) {
		return t.In(c.Location), nil
	}
	day := dayStart(t, c.Location)
	for i := 0; i < maxIterations; i++ {
		if opens, _, ok := c.window(day); ok && opens.After(t) {
			return opens, nil
		}
		day = nextDay(day)
	}
	return time.Time{}, fmt.Errorf("after %s: %w", t.Format(time.RFC3339), ErrNoBusinessDayFound)
}

// AddBusinessMinutes advances start by minutes. With businessHoursOnly the
// clock only runs inside open windows; otherwise it is wall-clock time.
func (c *Calendar) AddBusinessMinutes(start time.Time, minutes int, businessHoursOnly bool) (time.Time, error) {
	if minutes < 0 {
		return time.Time{}, ErrNegativeMinutes
	}
	if minutes > MaxMinutes {
		return time.Time{}, fmt.Errorf("%d above %d: %w", minutes, MaxMinutes, ErrMinutesOutOfRange)
	}
	remaining := time.Duration(minutes) * time.Minute
	if !businessHoursOnly {
		return start.Add(remaining), nil
	}
	cur, err := c.NextBusinessStart(start)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %w", ErrScheduleUnresolvable, err)
	}
	for i := 0; i < maxIterations; i++ {
		_, closes, _ := c.window(dayStart(cur, c.Location))
		avail := closes.Sub(cur)
		if remaining <= avail {
			return cur.Add(remaining), nil
		}
		remaining -= avail
		if cur, err = c.NextBusinessStart(closes); err != nil {
			return time.Time{}, fmt.Errorf("%w: %w", ErrScheduleUnresolvable, err)
		}
	}
	return time.Time{}, fmt.Errorf("%w: %d minutes left after %d days", ErrScheduleUnresolvable, int(remaining/time.Minute), maxIterations)
}

// BusinessDuration sums the business-hours overlap between start and end.
// The result is negative when end is before start.
func (c *Calendar) BusinessDuration(start, end time.Time) time.Duration {
	if end.Before(start) {
		return -c.BusinessDuration(end, start)
	}
	start = start.In(c.Location)
	end = end.In(c.Location)
	total := time.Duration(0)
	cur := start
	for cur.Before(end) {
		day := dayStart(cur, c.Location)
		next := nextDay(day)
		opens, closes, ok := c.window(day)
		if !ok {
			cur = next
			continue
		}
		if cur.Before(opens) {
			cur = opens
		}
		if !cur.Before(closes) {
			cur = next
			continue
		}
		if e := minTime(end, closes); e.After(cur) {
			total += e.Sub(cur)
		}
		cur = next
	}
	return total
}

// ElapsedBusinessMinutes returns the minutes the SLA clock runs between from
// and to; negative when to is before from.
func (c *Calendar) ElapsedBusinessMinutes(from, to time.Time, businessHoursOnly bool) float64 {
	if !businessHoursOnly {
		return to.Sub(from).Minutes()
	}
	return c.BusinessDuration(from, to).Minutes()
}

// Remaining computes the clock time left from now until due.
func (c *Calendar) Remaining(now, due time.Time, businessHoursOnly bool) Remaining {
	m := math.Max(0, c.ElapsedBusinessMinutes(now, due, businessHoursOnly))
	return Remaining{
		Minutes:   m,
		Hours:     math.Round(m/60*100) / 100,
		IsOverdue: Overdue(m, now, due),
	}
}

// Overdue classifies a remaining-minutes value. A zero remainder only counts
// once now has reached due, so time outside business hours before the due
// date is not reported as a breach.
func Overdue(remaining float64, now, due time.Time) bool {
	return remaining <= 0 && !now.Before(due)
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
