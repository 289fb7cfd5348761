package slas

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apppkg "github.com/servicedesk/sla-engine/cmd/api/app"
	"github.com/servicedesk/sla-engine/internal/sla"
	"github.com/servicedesk/sla-engine/internal/store"
)

// ListHolidays returns holiday records. Inactive rows are included with
// ?includeInactive=true.
func ListHolidays(a *apppkg.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		hs, err := store.ListHolidays(c.Request.Context(), a.DB, c.Query("includeInactive") != "true")
		if err != nil {
			apppkg.AbortError(c, http.StatusInternalServerError, "internal", err.Error(), nil)
			return
		}
		c.JSON(http.StatusOK, hs)
	}
}

// HolidaysRange lists the holidays observed between start and end
// (inclusive, YYYY-MM-DD) for a scope, one entry per date.
func HolidaysRange(a *apppkg.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, k := begin(c, "holidays_range")
		scope, bad := queryScope(c)
		if bad == nil {
			bad = map[string]string{}
		}
		start, end := c.Query("start"), c.Query("end")
		if start == "" {
			bad["start"] = "required"
		}
		if end == "" {
			bad["end"] = "required"
		}
		if len(bad) > 0 {
			k.invalid("validation_failed", "invalid range", bad)
			return
		}
		eng, err := a.Engine(ctx)
		if err != nil {
			k.fail(err)
			return
		}
		out, err := eng.Holidays().HolidaysBetween(start, end, scope, a.Loc)
		if err != nil {
			k.fail(err)
			return
		}
		k.ok(http.StatusOK, out)
	}
}

type holidayReq struct {
	Name           string  `json:"name" binding:"required,max=200"`
	Date           string  `json:"date" binding:"required,isodate"`
	IsRecurring    bool    `json:"isRecurring"`
	RecurrenceRule *string `json:"recurrenceRule" binding:"omitempty,rrule"`
	UnitID         *int64  `json:"unitId" binding:"omitempty,min=1"`
	DepartmentID   *int64  `json:"departmentId" binding:"omitempty,min=1"`
	IsActive       *bool   `json:"isActive"`
}

// CreateHoliday stores a holiday. A recurring holiday needs a FREQ= rule;
// only FREQ=YEARLY recurs.
func CreateHoliday(a *apppkg.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in holidayReq
		if err := c.ShouldBindJSON(&in); err != nil {
			if fields := apppkg.FieldErrors(err); fields != nil {
				apppkg.AbortError(c, http.StatusBadRequest, "validation_failed", "request validation failed", fields)
				return
			}
			apppkg.AbortError(c, http.StatusBadRequest, "invalid_body", "malformed request body", nil)
			return
		}
		if in.IsRecurring && in.RecurrenceRule == nil {
			apppkg.AbortError(c, http.StatusBadRequest, "validation_failed", "recurring holidays need a recurrence rule", map[string]string{"recurrenceRule": "required"})
			return
		}
		date, err := sla.ParseDate(in.Date, a.Loc)
		if err != nil {
			apppkg.AbortError(c, http.StatusBadRequest, "invalid_date", err.Error(), map[string]string{"date": "isodate"})
			return
		}
		h := sla.Holiday{
			Name:           in.Name,
			Date:           date,
			IsRecurring:    in.IsRecurring,
			RecurrenceRule: in.RecurrenceRule,
			UnitID:         in.UnitID,
			DepartmentID:   in.DepartmentID,
			IsActive:       in.IsActive == nil || *in.IsActive,
		}
		ctx := c.Request.Context()
		h, err = store.CreateHoliday(ctx, a.DB, h)
		if err != nil {
			apppkg.AbortError(c, http.StatusInternalServerError, "internal", err.Error(), nil)
			return
		}
		configChanged(ctx, a, "holiday")
		c.JSON(http.StatusCreated, h)
	}
}
