package sla

import "errors"

var (
	ErrInvalidDateFormat    = errors.New("invalid date format")
	ErrNoApplicablePolicy   = errors.New("no applicable sla policy")
	ErrNoBusinessDayFound   = errors.New("no business day found")
	ErrScheduleUnresolvable = errors.New("business hours schedule unresolvable")
	ErrNegativeMinutes      = errors.New("minutes must not be negative")
	ErrMinutesOutOfRange    = errors.New("minutes out of range")
	ErrRangeTooLong         = errors.New("date range too long")
)
