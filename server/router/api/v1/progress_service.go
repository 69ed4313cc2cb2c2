package v1

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
)

// GetTagProgress reports review progress across the user's questions carrying
// the tag.
// GET /api/v1/progress/:tag?user=<id>
func (s *APIV1Service) GetTagProgress(c echo.Context) error {
	userID, err := queryUserID(c)
	if err != nil {
		return err
	}

	progress, err := s.Review.ProgressForTag(c.Request().Context(), userID, c.Param("tag"))
	if err != nil {
		slog.Error("failed to compute tag progress",
			"tag", c.Param("tag"), "user_id", userID, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to compute progress"})
	}
	return c.JSON(http.StatusOK, progress)
}
