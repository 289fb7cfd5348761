package sla

import (
	"fmt"
	"sort"
	"time"
)

// Priority is a ticket priority.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Policy is an SLA policy. Nil selectors are wildcards; a policy with every
// selector nil is a global default.
type Policy struct {
	ID                    int64     `json:"id"`
	Name                  string    `json:"name"`
	ServiceItemID         *int64    `json:"serviceItemId"`
	ServiceCatalogID      *int64    `json:"serviceCatalogId"`
	DepartmentID          *int64    `json:"departmentId"`
	Priority              *Priority `json:"priority"`
	ResponseTimeMinutes   int       `json:"responseTimeMinutes"`
	ResolutionTimeMinutes int       `json:"resolutionTimeMinutes"`
	BusinessHoursOnly     bool      `json:"businessHoursOnly"`
	IsActive              bool      `json:"isActive"`
	CreatedAt             time.Time `json:"createdAt"`
}

// Validate checks the policy's time targets.
func (p Policy) Validate() error {
	if p.ResponseTimeMinutes <= 0 || p.ResolutionTimeMinutes <= 0 {
		return fmt.Errorf("policy %q: time targets must be positive", p.Name)
	}
	if p.ResolutionTimeMinutes > MaxMinutes {
		return fmt.Errorf("policy %q: resolution time above %d minutes: %w", p.Name, MaxMinutes, ErrMinutesOutOfRange)
	}
	if p.ResponseTimeMinutes >= p.ResolutionTimeMinutes {
		return fmt.Errorf("policy %q: response time must be below resolution time", p.Name)
	}
	if p.Priority != nil && !p.Priority.Valid() {
		return fmt.Errorf("policy %q: unknown priority %q", p.Name, *p.Priority)
	}
	return nil
}

// TicketAttributes are the ticket fields policy selection looks at.
type TicketAttributes struct {
	ServiceItemID    *int64   `json:"serviceItemId,omitempty"`
	ServiceCatalogID *int64   `json:"serviceCatalogId,omitempty"`
	DepartmentID     *int64   `json:"departmentId,omitempty"`
	Priority         Priority `json:"priority,omitempty"`
}

// Tier is a specificity level; lower is more specific.
type Tier int

const (
	TierItemPriority Tier = iota + 1
	TierItem
	TierDepartmentPriority
	TierDepartment
	// TierCatalog holds catalog-scoped policies without an item or department.
	TierCatalog
	TierPriority
	TierGlobal
)

var tierNames = map[Tier]string{
	TierItemPriority:       "service_item_priority",
	TierItem:               "service_item",
	TierDepartmentPriority: "department_priority",
	TierDepartment:         "department",
	TierCatalog:            "service_catalog",
	TierPriority:           "priority",
	TierGlobal:             "global",
}

func (t Tier) String() string {
	if n, ok := tierNames[t]; ok {
		return n
	}
	return fmt.Sprintf("tier(%d)", int(t))
}

// TierOf places a policy in its specificity tier.
func TierOf(p Policy) Tier {
	item := p.ServiceItemID != nil
	dept := p.DepartmentID != nil
	cat := p.ServiceCatalogID != nil
	pri := p.Priority != nil
	switch {
	case item && pri:
		return TierItemPriority
	case item:
		return TierItem
	case dept && pri:
		return TierDepartmentPriority
	case dept:
		return TierDepartment
	case cat:
		return TierCatalog
	case pri:
		return TierPriority
	}
	return TierGlobal
}

// Matches reports whether every non-nil selector of p equals the ticket's
// attribute.
func (p Policy) Matches(t TicketAttributes) bool {
	if p.ServiceItemID != nil && !sameID(p.ServiceItemID, t.ServiceItemID) {
		return false
	}
	if p.ServiceCatalogID != nil && !sameID(p.ServiceCatalogID, t.ServiceCatalogID) {
		return false
	}
	if p.DepartmentID != nil && !sameID(p.DepartmentID, t.DepartmentID) {
		return false
	}
	if p.Priority != nil && *p.Priority != t.Priority {
		return false
	}
	return true
}

func selectorCount(p Policy) int {
	n := 0
	for _, set := range []bool{p.ServiceItemID != nil, p.ServiceCatalogID != nil, p.DepartmentID != nil, p.Priority != nil} {
		if set {
			n++
		}
	}
	return n
}

// Candidates returns the active policies matching t, most specific first.
// Order: tier, then number of selectors, then newest CreatedAt, then highest ID.
func Candidates(t TicketAttributes, policies []Policy) []Policy {
	out := make([]Policy, 0, len(policies))
	for _, p := range policies {
		if p.IsActive && p.Matches(t) {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if ta, tb := TierOf(a), TierOf(b); ta != tb {
			return ta < tb
		}
		if na, nb := selectorCount(a), selectorCount(b); na != nb {
			return na > nb
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
	return out
}

// Resolve picks the single policy governing a ticket.
func Resolve(t TicketAttributes, policies []Policy) (Policy, error) {
	c := Candidates(t, policies)
	if len(c) == 0 {
		return Policy{}, ErrNoApplicablePolicy
	}
	return c[0], nil
}

func (t Tier) MarshalText() ([]byte, error) { return []byte(t.String()), nil }
