// Package admin implements the admin-secret gated endpoints. The only
// operation today is triggering a catalog reconciliation.
package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/templates-hub/templates-hub/internal/apperr"
	"github.com/templates-hub/templates-hub/internal/catalog"
)

// @Summary      Trigger catalog sync
// @Description  Runs a full reconciliation of the stored catalog against the descriptor repository. Only one sync runs at a time.
// @Tags         Admin
// @Produce      json
// @Security     AdminSecret
// @Success      204  "Catalog reconciled"
// @Failure      401  {object}  map[string]interface{}  "Missing admin secret"
// @Failure      403  {object}  map[string]interface{}  "Wrong admin secret"
// @Failure      409  {object}  map[string]interface{}  "A sync is already running"
// @Failure      502  {object}  map[string]interface{}  "Descriptor repository unreachable or invalid"
// @Router       /api/v1/catalog/sync [post]
// SyncHandler triggers a synchronous catalog reconciliation
func SyncHandler(syncer *catalog.Syncer) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := syncer.Sync(c.Request.Context()); err != nil {
			if apperr.IsKind(err, apperr.KindConflict) {
				c.JSON(http.StatusConflict, gin.H{
					"error": "Catalog sync already in progress",
				})
				return
			}
			c.JSON(http.StatusBadGateway, gin.H{
				"error": "Catalog sync failed",
			})
			return
		}

		c.Status(http.StatusNoContent)
	}
}
