package templates

import (
	"database/sql"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/templates-hub/templates-hub/internal/apperr"
	"github.com/templates-hub/templates-hub/internal/db/repositories"
	"github.com/templates-hub/templates-hub/internal/middleware"
	"github.com/templates-hub/templates-hub/internal/telemetry"
)

// rateRequest is the rating request body.
type rateRequest struct {
	Score *float64 `json:"score" binding:"required"`
}

// @Summary      Rate template
// @Description  Creates or replaces the caller's score for the template. Returns the template with its recomputed aggregate score.
// @Tags         Templates
// @Accept       json
// @Produce      json
// @Param        id     path  string       true  "Template UUID"
// @Param        body   body  rateRequest  true  "Score between 0 and 5"
// @Success      200  {object}  models.Template  "Existing score replaced"
// @Success      201  {object}  models.Template  "First score by this caller; Location header set"
// @Failure      400  {object}  map[string]interface{}  "Malformed UUID or score out of range"
// @Failure      401  {object}  map[string]interface{}  "Missing or invalid token"
// @Failure      404  {object}  map[string]interface{}  "Template not found"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/templates/{id}/score [put]
// RateHandler handles score submissions
func RateHandler(db *sql.DB) gin.HandlerFunc {
	templateRepo := repositories.NewTemplateRepository(db)
	scoreRepo := repositories.NewScoreRepository(sqlx.NewDb(db, "postgres"))

	return func(c *gin.Context) {
		identity, ok := middleware.Identity(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Authentication required",
			})
			return
		}

		var req rateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Request body must contain a numeric score",
			})
			return
		}

		id := c.Param("id")
		template, err := templateRepo.GetByID(c.Request.Context(), id)
		if err != nil {
			if apperr.IsKind(err, apperr.KindValidation) {
				c.JSON(http.StatusBadRequest, gin.H{
					"error": err.Error(),
				})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to get template",
			})
			return
		}
		if template == nil {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Template not found",
			})
			return
		}

		created, err := scoreRepo.Upsert(c.Request.Context(), template.ID, identity.Subject, identity.Issuer, *req.Score)
		if err != nil {
			if apperr.IsKind(err, apperr.KindValidation) {
				c.JSON(http.StatusBadRequest, gin.H{
					"error": err.Error(),
				})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to record score",
			})
			return
		}

		// Re-read so the response carries the recomputed aggregate.
		template, err = templateRepo.GetByID(c.Request.Context(), id)
		if err != nil || template == nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to get template",
			})
			return
		}

		if created {
			telemetry.TemplateRatingsTotal.WithLabelValues("created").Inc()
			c.Header("Location", c.Request.URL.Path)
			c.JSON(http.StatusCreated, template)
			return
		}

		telemetry.TemplateRatingsTotal.WithLabelValues("updated").Inc()
		c.JSON(http.StatusOK, template)
	}
}
