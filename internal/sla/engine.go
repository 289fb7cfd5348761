package sla

import (
	"fmt"
	"time"
)

// Ticket is the read-only ticket snapshot the engine works from.
type Ticket struct {
	ID               int64     `json:"id"`
	CreatedAt        time.Time `json:"createdAt"`
	Priority         Priority  `json:"priority"`
	ServiceItemID    *int64    `json:"serviceItemId,omitempty"`
	ServiceCatalogID *int64    `json:"serviceCatalogId,omitempty"`
	DepartmentID     *int64    `json:"departmentId,omitempty"`
	UnitID           *int64    `json:"unitId,omitempty"`
	Status           string    `json:"status"`
}

// Attributes returns the policy selectors of t.
func (t Ticket) Attributes() TicketAttributes {
	return TicketAttributes{
		ServiceItemID:    t.ServiceItemID,
		ServiceCatalogID: t.ServiceCatalogID,
		DepartmentID:     t.DepartmentID,
		Priority:         t.Priority,
	}
}

// Scope returns the calendar scope of t.
func (t Ticket) Scope() Scope {
	return Scope{UnitID: t.UnitID, DepartmentID: t.DepartmentID}
}

// Inputs is everything an Engine computes over. Callers load it; the engine
// does no I/O.
type Inputs struct {
	Location        *time.Location
	Holidays        []Holiday
	Schedules       []Schedule
	DefaultSchedule Schedule
	Policies        []Policy
}

// Engine resolves SLA policies and computes due dates. It is immutable and
// safe for concurrent use.
type Engine struct {
	loc       *time.Location
	holidays  *HolidayCalendar
	schedules Schedules
	policies  []Policy
}

// New builds an Engine from in. A nil Location means UTC.
func New(in Inputs) *Engine {
	loc := in.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Engine{
		loc:       loc,
		holidays:  NewHolidayCalendar(in.Holidays),
		schedules: NewSchedules(in.DefaultSchedule, in.Schedules...),
		policies:  append([]Policy(nil), in.Policies...),
	}
}

// Result is the outcome of ComputeDueDate.
type Result struct {
	Policy          Policy    `json:"policy"`
	Tier            Tier      `json:"tier"`
	ResponseDueDate time.Time `json:"responseDueDate"`
	DueDate         time.Time `json:"dueDate"`
	Remaining       Remaining `json:"remainingMinutes"`
}

func (e *Engine) Location() *time.Location { return e.loc }

func (e *Engine) Holidays() *HolidayCalendar { return e.holidays }

func (e *Engine) Policies() []Policy { return append([]Policy(nil), e.policies...) }

// Calendar returns the business calendar for scope.
func (e *Engine) Calendar(scope Scope) *Calendar {
	return &Calendar{
		Location: e.loc,
		Schedule: e.schedules.For(scope),
		Holidays: e.holidays,
		Scope:    scope,
	}
}

// Resolve picks the policy governing attrs among the engine's policies.
func (e *Engine) Resolve(attrs TicketAttributes) (Policy, error) {
	return Resolve(attrs, e.policies)
}

func (e *Engine) IsBusinessHours(t time.Time, scope Scope) bool {
	return e.Calendar(scope).IsBusinessHours(t)
}

func (e *Engine) NextBusinessStart(t time.Time, scope Scope) (time.Time, error) {
	return e.Calendar(scope).NextBusinessStart(t)
}

func (e *Engine) AddBusinessMinutes(start time.Time, minutes int, scope Scope, businessHoursOnly bool) (time.Time, error) {
	return e.Calendar(scope).AddBusinessMinutes(start, minutes, businessHoursOnly)
}

func (e *Engine) ElapsedBusinessMinutes(from, to time.Time, scope Scope, businessHoursOnly bool) float64 {
	return e.Calendar(scope).ElapsedBusinessMinutes(from, to, businessHoursOnly)
}

// ComputeDueDate resolves t's policy and computes its response and
// resolution due dates and the time remaining at now.
func (e *Engine) ComputeDueDate(t Ticket, now time.Time) (Result, error) {
	p, err := e.Resolve(t.Attributes())
	if err != nil {
		return Result{}, fmt.Errorf("ticket %d: %w", t.ID, err)
	}
	cal := e.Calendar(t.Scope())
	due, err := cal.AddBusinessMinutes(t.CreatedAt, p.ResolutionTimeMinutes, p.BusinessHoursOnly)
	if err != nil {
		return Result{}, fmt.Errorf("ticket %d resolution due: %w", t.ID, err)
	}
	respDue, err := cal.AddBusinessMinutes(t.CreatedAt, p.ResponseTimeMinutes, p.BusinessHoursOnly)
	if err != nil {
		return Result{}, fmt.Errorf("ticket %d response due: %w", t.ID, err)
	}
	return Result{
		Policy:          p,
		Tier:            TierOf(p),
		ResponseDueDate: respDue,
		DueDate:         due,
		Remaining:       cal.Remaining(now, due, p.BusinessHoursOnly),
	}, nil
}
