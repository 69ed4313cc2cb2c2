package v1

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/bordercore/drill/server/service/review"
)

// StartSessionRequest selects the questions for a new study session.
type StartSessionRequest struct {
	UserID  int32              `json:"user_id"`
	Type    string             `json:"type"`
	DueOnly *bool              `json:"due_only,omitempty"`
	Params  review.StartParams `json:"params"`
}

// StartSessionResponse describes a freshly created study session.
type StartSessionResponse struct {
	SessionKey    string `json:"session_key"`
	FirstQuestion string `json:"first_question"`
	Total         int    `json:"total"`
}

// AdvanceSessionResponse reports the next question, or session completion.
type AdvanceSessionResponse struct {
	Question string `json:"question,omitempty"`
	Complete bool   `json:"complete"`
}

// StartSession creates a study session.
// POST /api/v1/sessions
func (s *APIV1Service) StartSession(c echo.Context) error {
	req := &StartSessionRequest{}
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "malformed request body"})
	}
	if req.UserID <= 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "user_id is required"})
	}

	// Sessions default to due questions only; type-specific browsing modes
	// can opt out.
	dueOnly := true
	if req.DueOnly != nil {
		dueOnly = *req.DueOnly
	}

	session, err := s.Review.StartSession(c.Request().Context(), req.UserID, review.SessionType(req.Type), dueOnly, req.Params)
	if err != nil {
		slog.Error("failed to start study session", "user_id", req.UserID, "error", err)
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if session == nil {
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(http.StatusOK, StartSessionResponse{
		SessionKey:    session.Key,
		FirstQuestion: session.Current,
		Total:         len(session.QuestionUIDs),
	})
}

// GetSession returns the stored session state.
// GET /api/v1/sessions/:key
func (s *APIV1Service) GetSession(c echo.Context) error {
	session, err := s.Review.GetSession(c.Request().Context(), c.Param("key"))
	if err != nil {
		slog.Error("failed to get study session", "session_key", c.Param("key"), "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to get session"})
	}
	if session == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "session not found"})
	}
	return c.JSON(http.StatusOK, session)
}

// AdvanceSession moves the session pointer to the next question.
// POST /api/v1/sessions/:key/advance
func (s *APIV1Service) AdvanceSession(c echo.Context) error {
	next, complete, err := s.Review.Advance(c.Request().Context(), c.Param("key"))
	if errors.Is(err, review.ErrSessionNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "session not found"})
	}
	if err != nil {
		slog.Error("failed to advance study session", "session_key", c.Param("key"), "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to advance session"})
	}
	return c.JSON(http.StatusOK, AdvanceSessionResponse{Question: next, Complete: complete})
}
