package templates

import (
	"database/sql"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/templates-hub/templates-hub/internal/apperr"
	"github.com/templates-hub/templates-hub/internal/db/repositories"
)

// @Summary      Get template
// @Description  Returns a single template with its tags and aggregate score.
// @Tags         Templates
// @Produce      json
// @Param        id  path  string  true  "Template UUID"
// @Success      200  {object}  models.Template
// @Failure      400  {object}  map[string]interface{}  "Malformed UUID"
// @Failure      404  {object}  map[string]interface{}  "Template not found"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/templates/{id} [get]
// GetHandler handles single-template requests
func GetHandler(db *sql.DB) gin.HandlerFunc {
	templateRepo := repositories.NewTemplateRepository(db)

	return func(c *gin.Context) {
		template, err := templateRepo.GetByID(c.Request.Context(), c.Param("id"))
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

		c.JSON(http.StatusOK, template)
	}
}
