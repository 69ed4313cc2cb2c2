package v1

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/bordercore/drill/drill/scheduler"
	"github.com/bordercore/drill/server/service/review"
	"github.com/bordercore/drill/store"
)

// CreateQuestionRequest creates a new drill question.
type CreateQuestionRequest struct {
	UserID       int32    `json:"user_id"`
	Question     string   `json:"question"`
	Answer       string   `json:"answer"`
	Tags         []string `json:"tags,omitempty"`
	IsFavorite   bool     `json:"is_favorite,omitempty"`
	IsReversible bool     `json:"is_reversible,omitempty"`
}

// RecordResponseRequest applies a review response to a question.
type RecordResponseRequest struct {
	UserID   int32  `json:"user_id"`
	Response string `json:"response"`
}

// QuestionResponse is the API shape of a question's scheduling state.
type QuestionResponse struct {
	UID            string   `json:"uid"`
	Question       string   `json:"question"`
	Answer         string   `json:"answer"`
	IntervalDays   int32    `json:"interval_days"`
	IntervalIndex  int32    `json:"interval_index"`
	LastReviewedTs *int64   `json:"last_reviewed_ts,omitempty"`
	IsFavorite     bool     `json:"is_favorite"`
	IsReversible   bool     `json:"is_reversible"`
	Tags           []string `json:"tags,omitempty"`
}

func convertQuestion(q *store.Question) QuestionResponse {
	return QuestionResponse{
		UID:            q.UID,
		Question:       q.Question,
		Answer:         q.Answer,
		IntervalDays:   q.IntervalDays,
		IntervalIndex:  q.IntervalIndex,
		LastReviewedTs: q.LastReviewedTs,
		IsFavorite:     q.IsFavorite,
		IsReversible:   q.IsReversible,
		Tags:           q.Tags,
	}
}

// CreateQuestion creates a question with fresh scheduling state.
// POST /api/v1/questions
func (s *APIV1Service) CreateQuestion(c echo.Context) error {
	req := &CreateQuestionRequest{}
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "malformed request body"})
	}
	if req.UserID <= 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "user_id is required"})
	}
	if strings.TrimSpace(req.Question) == "" || strings.TrimSpace(req.Answer) == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "question and answer are required"})
	}

	now := time.Now().Unix()
	question, err := s.Store.CreateQuestion(c.Request().Context(), &store.Question{
		UID:          uuid.NewString(),
		CreatorID:    req.UserID,
		CreatedTs:    now,
		UpdatedTs:    now,
		Question:     req.Question,
		Answer:       req.Answer,
		IntervalDays: 1,
		IsFavorite:   req.IsFavorite,
		IsReversible: req.IsReversible,
		Tags:         req.Tags,
	})
	if err != nil {
		slog.Error("failed to create question", "user_id", req.UserID, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to create question"})
	}
	return c.JSON(http.StatusOK, convertQuestion(question))
}

// RecordResponse records a review response and returns the new scheduling
// state.
// POST /api/v1/questions/:uid/response
func (s *APIV1Service) RecordResponse(c echo.Context) error {
	req := &RecordResponseRequest{}
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "malformed request body"})
	}
	if req.UserID <= 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "user_id is required"})
	}

	question, err := s.Review.RecordResponse(c.Request().Context(), req.UserID, c.Param("uid"), scheduler.Response(req.Response))
	switch {
	case errors.Is(err, scheduler.ErrInvalidResponse):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid response label"})
	case errors.Is(err, review.ErrQuestionNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": "question not found"})
	case errors.Is(err, review.ErrConflict):
		return c.JSON(http.StatusConflict, map[string]string{"error": "concurrent update, retry"})
	case err != nil:
		slog.Error("failed to record response",
			"question_uid", c.Param("uid"), "user_id", req.UserID, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to record response"})
	}
	return c.JSON(http.StatusOK, convertQuestion(question))
}
