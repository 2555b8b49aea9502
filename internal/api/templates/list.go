// Package templates implements the public catalog read endpoints and the
// authenticated rating endpoint. Reads are intentionally unauthenticated so
// project generators can browse the catalog without credentials; rating
// requires a verified identity so each user holds at most one score per
// template.
package templates

import (
	"database/sql"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/templates-hub/templates-hub/internal/apperr"
	"github.com/templates-hub/templates-hub/internal/db/repositories"
)

// @Summary      List templates
// @Description  Returns the catalog, optionally filtered by language, tags, and keywords, sorted by the sort expression.
// @Tags         Templates
// @Produce      json
// @Param        language  query  string    false  "Exact language match"
// @Param        tags      query  []string  false  "Tags the template must carry (all of them)"
// @Param        keywords  query  []string  false  "Substrings matched against title or summary"
// @Param        sort_by   query  string    false  "Comma-separated signed sort keys, e.g. -score,+title"
// @Success      200  {array}   models.Template
// @Failure      400  {object}  map[string]interface{}  "Invalid filter or sort expression"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/templates [get]
// ListHandler handles catalog listing requests
func ListHandler(db *sql.DB) gin.HandlerFunc {
	templateRepo := repositories.NewTemplateRepository(db)

	return func(c *gin.Context) {
		filter := repositories.ListFilter{
			Language: c.Query("language"),
			Tags:     c.QueryArray("tags"),
			Keywords: c.QueryArray("keywords"),
			SortBy:   c.Query("sort_by"),
		}

		templates, err := templateRepo.List(c.Request.Context(), filter)
		if err != nil {
			if apperr.IsKind(err, apperr.KindValidation) {
				c.JSON(http.StatusBadRequest, gin.H{
					"error": err.Error(),
				})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to list templates",
			})
			return
		}

		c.JSON(http.StatusOK, templates)
	}
}
