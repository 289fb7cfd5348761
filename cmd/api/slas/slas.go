// Package slas serves the SLA engine over HTTP: due-date calculation,
// business-hours status, remaining time for tickets, and the admin surface
// for holidays and policies.
package slas

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apppkg "github.com/servicedesk/sla-engine/cmd/api/app"
	authpkg "github.com/servicedesk/sla-engine/cmd/api/auth"
	"github.com/servicedesk/sla-engine/cmd/api/metrics"
	"github.com/servicedesk/sla-engine/internal/sla"
	"github.com/servicedesk/sla-engine/internal/store"
	"github.com/servicedesk/sla-engine/internal/telemetry"
)

// Register mounts the SLA routes on g. limit, when given, runs in front of
// the calculation endpoints.
func Register(g *gin.RouterGroup, a *apppkg.App, limit ...gin.HandlerFunc) {
	s := g.Group("/sla")
	calc := append(append([]gin.HandlerFunc{}, limit...), Calculate(a))
	s.POST("/calculate", calc...)
	status := append(append([]gin.HandlerFunc{}, limit...), BusinessHoursStatus(a))
	s.GET("/business-hours-status", status...)
	remaining := append(append([]gin.HandlerFunc{}, limit...), CalculateRemaining(a))
	s.POST("/calculate-remaining", remaining...)

	admin := authpkg.RequireRole(authpkg.RoleAdmin)
	s.GET("/holidays", ListHolidays(a))
	s.GET("/holidays/range", HolidaysRange(a))
	s.POST("/holidays", admin, CreateHoliday(a))
	s.GET("/policies", ListPolicies(a))
	s.GET("/policies/resolve", ResolvePolicy(a))
	s.POST("/policies", admin, CreatePolicy(a))
	s.POST("/policies/:id/deactivate", admin, DeactivatePolicy(a))
}

// statusFor maps engine and store errors to an HTTP status and error code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, sla.ErrInvalidDateFormat):
		return http.StatusBadRequest, "invalid_date"
	case errors.Is(err, sla.ErrRangeTooLong):
		return http.StatusBadRequest, "validation_failed"
	case errors.Is(err, sla.ErrNegativeMinutes), errors.Is(err, sla.ErrMinutesOutOfRange):
		return http.StatusBadRequest, "invalid_minutes"
	case errors.Is(err, sla.ErrNoApplicablePolicy):
		return http.StatusNotFound, "no_applicable_policy"
	case errors.Is(err, store.ErrTicketNotFound):
		return http.StatusNotFound, "ticket_not_found"
	case errors.Is(err, store.ErrPolicyNotFound):
		return http.StatusNotFound, "policy_not_found"
	case errors.Is(err, sla.ErrScheduleUnresolvable), errors.Is(err, sla.ErrNoBusinessDayFound):
		return http.StatusInternalServerError, "schedule_unresolvable"
	}
	return http.StatusInternalServerError, "internal"
}

type call struct {
	c        *gin.Context
	span     trace.Span
	endpoint string
	start    time.Time
}

func begin(c *gin.Context, endpoint string) (context.Context, *call) {
	ctx, span := telemetry.Tracer("sla-engine/slas").Start(c.Request.Context(), "sla."+endpoint)
	return ctx, &call{c: c, span: span, endpoint: endpoint, start: time.Now()}
}

// fail renders err through the error envelope and closes the span.
func (k *call) fail(err error) {
	status, code := statusFor(err)
	k.span.RecordError(err)
	k.span.SetStatus(codes.Error, code)
	k.span.End()
	metrics.Observe(k.endpoint, k.start, code)
	apppkg.AbortError(k.c, status, code, err.Error(), nil)
}

// invalid rejects the request before any work was done.
func (k *call) invalid(code, message string, fields map[string]string) {
	k.span.SetStatus(codes.Error, code)
	k.span.End()
	metrics.Observe(k.endpoint, k.start, code)
	apppkg.AbortError(k.c, http.StatusBadRequest, code, message, fields)
}

func (k *call) ok(status int, body any) {
	k.span.End()
	metrics.Observe(k.endpoint, k.start, "ok")
	k.c.JSON(status, body)
}

// bindError turns a ShouldBind failure into a 400.
func (k *call) bindError(err error) {
	fields := apppkg.FieldErrors(err)
	if fields == nil {
		k.invalid("invalid_body", "malformed request body", nil)
		return
	}
	k.invalid("validation_failed", "request validation failed", fields)
}

// queryID reads an optional positive integer query parameter.
func queryID(c *gin.Context, name string) (*int64, error) {
	v := c.Query(name)
	if v == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		return nil, errors.New(name + " must be a positive integer")
	}
	return &id, nil
}

// queryScope reads departmentId and unitId.
func queryScope(c *gin.Context) (sla.Scope, map[string]string) {
	var scope sla.Scope
	bad := map[string]string{}
	var err error
	if scope.DepartmentID, err = queryID(c, "departmentId"); err != nil {
		bad["departmentId"] = "invalid"
	}
	if scope.UnitID, err = queryID(c, "unitId"); err != nil {
		bad["unitId"] = "invalid"
	}
	if len(bad) > 0 {
		return sla.Scope{}, bad
	}
	return scope, nil
}

// configChanged drops the cached snapshot and asks the worker to recompute
// open tickets' due dates.
func configChanged(ctx context.Context, a *apppkg.App, kind string) {
	metrics.ConfigChangesTotal.WithLabelValues(kind).Inc()
	a.Source.Invalidate(ctx)
	if err := a.Enqueue(ctx, apppkg.JobRecalculateSLA, map[string]string{"reason": kind + "_changed"}); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("kind", kind).Msg("enqueue sla recalculation")
	}
}
