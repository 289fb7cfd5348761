package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apppkg "github.com/servicedesk/sla-engine/cmd/api/app"
)

// Features reports the operating calendar and optional capabilities so
// clients can render due dates in the right zone and hide what is off.
func Features(a *apppkg.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"timezone":         a.Loc.String(),
			"defaultHours":     a.Cfg.DefaultHours,
			"defaultDays":      a.Cfg.DefaultDays,
			"snapshotCache":    a.Source.Cache != nil,
			"recalculateQueue": a.Q != nil,
			"clientRateLimit":  a.Cfg.ClientRateLimit,
		})
	}
}
