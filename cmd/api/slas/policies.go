package slas

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	apppkg "github.com/servicedesk/sla-engine/cmd/api/app"
	"github.com/servicedesk/sla-engine/internal/sla"
	"github.com/servicedesk/sla-engine/internal/store"
)

// ListPolicies returns SLA policies, newest first.
func ListPolicies(a *apppkg.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		ps, err := store.ListPolicies(c.Request.Context(), a.DB, c.Query("includeInactive") != "true")
		if err != nil {
			apppkg.AbortError(c, http.StatusInternalServerError, "internal", err.Error(), nil)
			return
		}
		c.JSON(http.StatusOK, ps)
	}
}

type policyReq struct {
	Name                  string  `json:"name" binding:"required,max=200"`
	ServiceItemID         *int64  `json:"serviceItemId" binding:"omitempty,min=1"`
	ServiceCatalogID      *int64  `json:"serviceCatalogId" binding:"omitempty,min=1"`
	DepartmentID          *int64  `json:"departmentId" binding:"omitempty,min=1"`
	Priority              *string `json:"priority" binding:"omitempty,priority"`
	ResponseTimeMinutes   int     `json:"responseTimeMinutes" binding:"required,min=1,max=1051200"`
	ResolutionTimeMinutes int     `json:"resolutionTimeMinutes" binding:"required,gtfield=ResponseTimeMinutes,max=1051200"`
	BusinessHoursOnly     *bool   `json:"businessHoursOnly"`
	IsActive              *bool   `json:"isActive"`
}

// CreatePolicy stores a policy. Selectors left out are wildcards.
func CreatePolicy(a *apppkg.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in policyReq
		if err := c.ShouldBindJSON(&in); err != nil {
			if fields := apppkg.FieldErrors(err); fields != nil {
				apppkg.AbortError(c, http.StatusBadRequest, "validation_failed", "request validation failed", fields)
				return
			}
			apppkg.AbortError(c, http.StatusBadRequest, "invalid_body", "malformed request body", nil)
			return
		}
		p := sla.Policy{
			Name:                  in.Name,
			ServiceItemID:         in.ServiceItemID,
			ServiceCatalogID:      in.ServiceCatalogID,
			DepartmentID:          in.DepartmentID,
			ResponseTimeMinutes:   in.ResponseTimeMinutes,
			ResolutionTimeMinutes: in.ResolutionTimeMinutes,
			BusinessHoursOnly:     in.BusinessHoursOnly == nil || *in.BusinessHoursOnly,
			IsActive:              in.IsActive == nil || *in.IsActive,
		}
		if in.Priority != nil {
			pr := sla.Priority(*in.Priority)
			p.Priority = &pr
		}
		if err := p.Validate(); err != nil {
			apppkg.AbortError(c, http.StatusBadRequest, "validation_failed", err.Error(), nil)
			return
		}
		ctx := c.Request.Context()
		p, err := store.CreatePolicy(ctx, a.DB, p)
		if err != nil {
			apppkg.AbortError(c, http.StatusInternalServerError, "internal", err.Error(), nil)
			return
		}
		configChanged(ctx, a, "policy")
		c.JSON(http.StatusCreated, p)
	}
}

// DeactivatePolicy soft-deletes a policy.
func DeactivatePolicy(a *apppkg.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil || id <= 0 {
			apppkg.AbortError(c, http.StatusBadRequest, "validation_failed", "invalid policy id", map[string]string{"id": "invalid"})
			return
		}
		ctx := c.Request.Context()
		if err := store.DeactivatePolicy(ctx, a.DB, id); err != nil {
			status, code := statusFor(err)
			apppkg.AbortError(c, status, code, err.Error(), nil)
			return
		}
		configChanged(ctx, a, "policy")
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

type candidate struct {
	Policy sla.Policy `json:"policy"`
	Tier   sla.Tier   `json:"tier"`
}

type resolveResp struct {
	Policy     sla.Policy  `json:"policy"`
	Tier       sla.Tier    `json:"tier"`
	Candidates []candidate `json:"candidates"`
}

// ResolvePolicy explains which policy governs a ticket with the given
// attributes, listing every matching candidate in precedence order.
func ResolvePolicy(a *apppkg.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, k := begin(c, "resolve_policy")
		var attrs sla.TicketAttributes
		bad := map[string]string{}
		var err error
		if attrs.ServiceItemID, err = queryID(c, "serviceItemId"); err != nil {
			bad["serviceItemId"] = "invalid"
		}
		if attrs.ServiceCatalogID, err = queryID(c, "serviceCatalogId"); err != nil {
			bad["serviceCatalogId"] = "invalid"
		}
		if attrs.DepartmentID, err = queryID(c, "departmentId"); err != nil {
			bad["departmentId"] = "invalid"
		}
		attrs.Priority = sla.Priority(c.Query("priority"))
		if attrs.Priority != "" && !attrs.Priority.Valid() {
			bad["priority"] = "priority"
		}
		if len(bad) > 0 {
			k.invalid("validation_failed", "invalid ticket attributes", bad)
			return
		}
		eng, err := a.Engine(ctx)
		if err != nil {
			k.fail(err)
			return
		}
		all := sla.Candidates(attrs, eng.Policies())
		if len(all) == 0 {
			k.fail(sla.ErrNoApplicablePolicy)
			return
		}
		out := resolveResp{Policy: all[0], Tier: sla.TierOf(all[0]), Candidates: make([]candidate, 0, len(all))}
		for _, p := range all {
			out.Candidates = append(out.Candidates, candidate{Policy: p, Tier: sla.TierOf(p)})
		}
		k.ok(http.StatusOK, out)
	}
}
