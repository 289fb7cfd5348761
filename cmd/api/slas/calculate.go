package slas

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"

	apppkg "github.com/servicedesk/sla-engine/cmd/api/app"
	"github.com/servicedesk/sla-engine/internal/sla"
	"github.com/servicedesk/sla-engine/internal/store"
)

type calculateReq struct {
	StartDate         string `json:"startDate" binding:"required"`
	SLAMinutes        *int   `json:"slaMinutes" binding:"required,min=0,max=1051200"`
	DepartmentID      *int64 `json:"departmentId" binding:"omitempty,min=1"`
	UnitID            *int64 `json:"unitId" binding:"omitempty,min=1"`
	BusinessHoursOnly *bool  `json:"businessHoursOnly"`
}

type calculateResp struct {
	DueDate           time.Time `json:"dueDate"`
	Scope             sla.Scope `json:"scope"`
	BusinessHoursOnly bool      `json:"businessHoursOnly"`
}

// Calculate adds slaMinutes to startDate on the scope's business calendar.
func Calculate(a *apppkg.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, k := begin(c, "calculate")
		var in calculateReq
		if err := c.ShouldBindJSON(&in); err != nil {
			k.bindError(err)
			return
		}
		start, err := sla.ParseInstant(in.StartDate, a.Loc)
		if err != nil {
			k.fail(err)
			return
		}
		bho := true
		if in.BusinessHoursOnly != nil {
			bho = *in.BusinessHoursOnly
		}
		scope := sla.Scope{UnitID: in.UnitID, DepartmentID: in.DepartmentID}
		k.span.SetAttributes(attribute.Int("sla.minutes", *in.SLAMinutes), attribute.Bool("sla.business_hours_only", bho))

		eng, err := a.Engine(ctx)
		if err != nil {
			k.fail(err)
			return
		}
		due, err := eng.AddBusinessMinutes(start, *in.SLAMinutes, scope, bho)
		if err != nil {
			k.fail(err)
			return
		}
		k.ok(http.StatusOK, calculateResp{DueDate: due.In(a.Loc), Scope: scope, BusinessHoursOnly: bho})
	}
}

type statusResp struct {
	CheckDate             time.Time `json:"checkDate"`
	IsBusinessHours       bool      `json:"isBusinessHours"`
	NextBusinessHourStart time.Time `json:"nextBusinessHourStart"`
	Scope                 sla.Scope `json:"scope"`
}

// BusinessHoursStatus reports whether checkDate (default now) is inside
// business hours and when business hours next start.
func BusinessHoursStatus(a *apppkg.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, k := begin(c, "business_hours_status")
		scope, bad := queryScope(c)
		if bad != nil {
			k.invalid("validation_failed", "invalid scope", bad)
			return
		}
		check := a.Clock.Now()
		if v := c.Query("checkDate"); v != "" {
			t, err := sla.ParseInstant(v, a.Loc)
			if err != nil {
				k.fail(err)
				return
			}
			check = t
		}
		eng, err := a.Engine(ctx)
		if err != nil {
			k.fail(err)
			return
		}
		next, err := eng.NextBusinessStart(check, scope)
		if err != nil {
			k.fail(err)
			return
		}
		k.ok(http.StatusOK, statusResp{
			CheckDate:             check.In(a.Loc),
			IsBusinessHours:       eng.IsBusinessHours(check, scope),
			NextBusinessHourStart: next,
			Scope:                 scope,
		})
	}
}

type remainingReq struct {
	TicketID    int64  `json:"ticketId" binding:"required,min=1"`
	CurrentDate string `json:"currentDate"`
}

type remainingResp struct {
	TicketID int64 `json:"ticketId"`
	sla.Result
}

// CalculateRemaining resolves a ticket's policy and reports its due dates
// and the time left at currentDate (default now).
func CalculateRemaining(a *apppkg.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, k := begin(c, "calculate_remaining")
		var in remainingReq
		if err := c.ShouldBindJSON(&in); err != nil {
			k.bindError(err)
			return
		}
		now := a.Clock.Now()
		if in.CurrentDate != "" {
			t, err := sla.ParseInstant(in.CurrentDate, a.Loc)
			if err != nil {
				k.fail(err)
				return
			}
			now = t
		}
		k.span.SetAttributes(attribute.Int64("ticket.id", in.TicketID))

		t, err := store.GetTicket(ctx, a.DB, in.TicketID)
		if err != nil {
			k.fail(err)
			return
		}
		eng, err := a.Engine(ctx)
		if err != nil {
			k.fail(err)
			return
		}
		res, err := eng.ComputeDueDate(t, now)
		if err != nil {
			k.fail(err)
			return
		}
		k.span.SetAttributes(attribute.Int64("sla.policy_id", res.Policy.ID), attribute.Bool("sla.overdue", res.Remaining.IsOverdue))
		res.DueDate = res.DueDate.In(a.Loc)
		res.ResponseDueDate = res.ResponseDueDate.In(a.Loc)
		k.ok(http.StatusOK, remainingResp{TicketID: t.ID, Result: res})
	}
}
