package sla

import (
	"errors"
	"testing"
	"time"
)

var wita = time.FixedZone("WITA", 8*3600)

func weekdays() []time.Weekday {
	return []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}
}

func testCalendar(holidays ...Holiday) *Calendar {
	return &Calendar{
		Location: wita,
		Schedule: StandardSchedule(Window{StartMinute: 8 * 60, EndMinute: 17 * 60}, weekdays()...),
		Holidays: NewHolidayCalendar(holidays),
	}
}

func at(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, wita)
}

func TestBusinessDurationBasic(t *testing.T) {
	cal := testCalendar()
	start := at(2024, 7, 1, 16, 0) // Mon 4pm
	end := at(2024, 7, 2, 10, 0)   // Tue 10am
	if d := cal.BusinessDuration(start, end); d != 3*time.Hour {
		t.Fatalf("expected 3h got %v", d)
	}
	if d := cal.BusinessDuration(end, start); d != -3*time.Hour {
		t.Fatalf("expected -3h for reversed range got %v", d)
	}
}

func TestBusinessDurationHoliday(t *testing.T) {
	cal := testCalendar(Holiday{ID: 1, Date: time.Date(2024, 7, 4, 0, 0, 0, 0, time.UTC), IsActive: true})
	start := at(2024, 7, 3, 16, 0)
	end := at(2024, 7, 5, 10, 0)
	if d := cal.BusinessDuration(start, end); d != 3*time.Hour {
		t.Fatalf("expected 3h got %v", d)
	}
}

func TestIsBusinessHours(t *testing.T) {
	cal := testCalendar(Holiday{ID: 1, Date: time.Date(2024, 7, 8, 0, 0, 0, 0, time.UTC), IsActive: true})
	cases := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"opening instant", at(2024, 7, 1, 8, 0), true},
		{"midday", at(2024, 7, 1, 12, 30), true},
		{"closing instant", at(2024, 7, 1, 17, 0), false},
		{"before open", at(2024, 7, 1, 7, 59), false},
		{"saturday", at(2024, 7, 6, 10, 0), false},
		{"holiday", at(2024, 7, 8, 10, 0), false},
		{"utc input", time.Date(2024, 7, 1, 1, 0, 0, 0, time.UTC), true},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			if got := cal.IsBusinessHours(tt.at); got != tt.want {
				t.Fatalf("IsBusinessHours(%v) = %v, want %v", tt.at, got, tt.want)
			}
		})
	}
}

func TestNextBusinessStart(t *testing.T) {
	cal := testCalendar(Holiday{ID: 1, Date: time.Date(2024, 7, 8, 0, 0, 0, 0, time.UTC), IsActive: true})
	cases := []struct {
		name string
		from time.Time
		want time.Time
	}{
		{"already open", at(2024, 7, 1, 9, 15), at(2024, 7, 1, 9, 15)},
		{"early morning", at(2024, 7, 1, 6, 0), at(2024, 7, 1, 8, 0)},
		{"after close", at(2024, 7, 1, 17, 0), at(2024, 7, 2, 8, 0)},
		{"friday evening skips weekend and holiday", at(2024, 7, 5, 18, 0), at(2024, 7, 9, 8, 0)},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			got, err := cal.NextBusinessStart(tt.from)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Fatalf("got %v want %v", got, tt.want)
			}
		})
	}
}

func TestNextBusinessStartNoOpenDays(t *testing.T) {
	cal := &Calendar{Location: wita, Schedule: Schedule{}}
	_, err := cal.NextBusinessStart(at(2024, 7, 1, 9, 0))
	if !errors.Is(err, ErrNoBusinessDayFound) {
		t.Fatalf("expected ErrNoBusinessDayFound, got %v", err)
	}
}

func TestAddBusinessMinutesSkipsWeekendAndHoliday(t *testing.T) {
	cal := testCalendar(Holiday{ID: 1, Name: "Monday off", Date: time.Date(2024, 7, 8, 0, 0, 0, 0, time.UTC), IsActive: true})
	got, err := cal.AddBusinessMinutes(at(2024, 7, 5, 16, 50), 20, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := at(2024, 7, 9, 8, 10); !got.Equal(want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestAddBusinessMinutesAcrossDays(t *testing.T) {
	cal := testCalendar()
	cases := []struct {
		name    string
		start   time.Time
		minutes int
		want    time.Time
	}{
		{"fits in day", at(2024, 7, 1, 9, 0), 60, at(2024, 7, 1, 10, 0)},
		{"ends at close", at(2024, 7, 1, 9, 0), 480, at(2024, 7, 1, 17, 0)},
		{"monday into tuesday", at(2024, 7, 1, 9, 0), 600, at(2024, 7, 2, 10, 0)},
		{"start before open", at(2024, 7, 1, 5, 0), 30, at(2024, 7, 1, 8, 30)},
		{"start on sunday", at(2024, 7, 7, 12, 0), 0, at(2024, 7, 8, 8, 0)},
		{"full week", at(2024, 7, 1, 8, 0), 5 * 540, at(2024, 7, 5, 17, 0)},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			got, err := cal.AddBusinessMinutes(tt.start, tt.minutes, true)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Fatalf("got %v want %v", got, tt.want)
			}
		})
	}
}

func TestAddBusinessMinutesWallClock(t *testing.T) {
	cal := testCalendar(Holiday{ID: 1, Date: time.Date(2024, 7, 8, 0, 0, 0, 0, time.UTC), IsActive: true})
	start := at(2024, 7, 5, 16, 50)
	got, err := cal.AddBusinessMinutes(start, 3*24*60, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := start.Add(72 * time.Hour); !got.Equal(want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestAddBusinessMinutesErrors(t *testing.T) {
	if _, err := testCalendar().AddBusinessMinutes(at(2024, 7, 1, 9, 0), -1, true); !errors.Is(err, ErrNegativeMinutes) {
		t.Fatalf("expected ErrNegativeMinutes, got %v", err)
	}
	closed := &Calendar{Location: wita, Schedule: Schedule{}}
	_, err := closed.AddBusinessMinutes(at(2024, 7, 1, 9, 0), 10, true)
	if !errors.Is(err, ErrScheduleUnresolvable) || !errors.Is(err, ErrNoBusinessDayFound) {
		t.Fatalf("expected ErrScheduleUnresolvable wrapping ErrNoBusinessDayFound, got %v", err)
	}
	// A year of business time does not fit in the iteration cap.
	if _, err := testCalendar().AddBusinessMinutes(at(2024, 7, 1, 8, 0), 400*540, true); !errors.Is(err, ErrScheduleUnresolvable) {
		t.Fatalf("expected ErrScheduleUnresolvable, got %v", err)
	}
}

func TestAddBusinessMinutesRange(t *testing.T) {
	cal := testCalendar()
	start := at(2024, 7, 5, 16, 50)
	for _, bho := range []bool{true, false} {
		for _, m := range []int{MaxMinutes + 1, 200000000, 1 << 40} {
			if _, err := cal.AddBusinessMinutes(start, m, bho); !errors.Is(err, ErrMinutesOutOfRange) {
				t.Fatalf("bho=%v minutes=%d: expected ErrMinutesOutOfRange, got %v", bho, m, err)
			}
		}
	}
	got, err := cal.AddBusinessMinutes(start, MaxMinutes, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := start.Add(time.Duration(MaxMinutes) * time.Minute); !got.Equal(want) || !got.After(start) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestAddElapsedInverse(t *testing.T) {
	cal := testCalendar(Holiday{ID: 1, Date: time.Date(2024, 7, 8, 0, 0, 0, 0, time.UTC), IsActive: true})
	starts := []time.Time{
		at(2024, 7, 1, 9, 0),
		at(2024, 7, 5, 16, 50),
		at(2024, 7, 6, 11, 0),
		at(2024, 7, 3, 22, 15),
	}
	for _, start := range starts {
		for _, m := range []int{0, 1, 59, 540, 541, 2000, 10000} {
			due, err := cal.AddBusinessMinutes(start, m, true)
			if err != nil {
				t.Fatalf("add %d from %v: %v", m, start, err)
			}
			if got := cal.ElapsedBusinessMinutes(start, due, true); got != float64(m) {
				t.Fatalf("elapsed(%v, %v) = %v, want %d", start, due, got, m)
			}
		}
	}
}

func TestAddBusinessMinutesMonotonicAndIdempotent(t *testing.T) {
	cal := testCalendar()
	start := at(2024, 7, 3, 15, 30)
	prev := time.Time{}
	for m := 0; m <= 3000; m += 37 {
		a, err := cal.AddBusinessMinutes(start, m, true)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		b, _ := cal.AddBusinessMinutes(start, m, true)
		if !a.Equal(b) {
			t.Fatalf("non-deterministic result for %d: %v vs %v", m, a, b)
		}
		if a.Before(prev) {
			t.Fatalf("result for %d minutes (%v) before previous %v", m, a, prev)
		}
		prev = a
	}
}

func TestElapsedWallClock(t *testing.T) {
	cal := testCalendar()
	from := at(2024, 7, 5, 16, 0)
	to := at(2024, 7, 6, 16, 0)
	if got := cal.ElapsedBusinessMinutes(from, to, false); got != 1440 {
		t.Fatalf("expected 1440, got %v", got)
	}
	if got := cal.ElapsedBusinessMinutes(from, to, true); got != 60 {
		t.Fatalf("expected 60, got %v", got)
	}
}

func TestRemaining(t *testing.T) {
	cal := testCalendar()
	cases := []struct {
		name    string
		now     time.Time
		due     time.Time
		minutes float64
		overdue bool
	}{
		{"before due", at(2024, 7, 1, 9, 0), at(2024, 7, 1, 10, 30), 90, false},
		{"at due", at(2024, 7, 1, 10, 30), at(2024, 7, 1, 10, 30), 0, true},
		{"past due", at(2024, 7, 2, 9, 0), at(2024, 7, 1, 10, 30), 0, true},
		{"weekend before monday due", at(2024, 7, 7, 9, 0), at(2024, 7, 8, 8, 0), 0, false},
		{"weekend after friday due", at(2024, 7, 6, 9, 0), at(2024, 7, 5, 17, 0), 0, true},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			r := cal.Remaining(tt.now, tt.due, true)
			if r.Minutes != tt.minutes || r.IsOverdue != tt.overdue {
				t.Fatalf("got %+v, want minutes=%v overdue=%v", r, tt.minutes, tt.overdue)
			}
		})
	}
	if r := cal.Remaining(at(2024, 7, 1, 9, 0), at(2024, 7, 1, 10, 30), true); r.Hours != 1.5 {
		t.Fatalf("expected 1.5 hours, got %v", r.Hours)
	}
}

func TestOverdueBoundary(t *testing.T) {
	due := at(2024, 7, 1, 10, 0)
	if !Overdue(0, due, due) {
		t.Fatalf("zero remaining at due should be overdue")
	}
	if Overdue(0.01, due, due) {
		t.Fatalf("0.01 remaining should not be overdue")
	}
}
