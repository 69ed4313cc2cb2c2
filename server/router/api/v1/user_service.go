package v1

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/bordercore/drill/drill/scheduler"
	"github.com/bordercore/drill/store"
)

// CreateUserRequest creates a new user.
type CreateUserRequest struct {
	Username string `json:"username"`
	Nickname string `json:"nickname,omitempty"`
}

// UpdateUserSettingsRequest replaces the user's drill preferences. Omitted
// fields fall back to defaults on read.
type UpdateUserSettingsRequest struct {
	IntervalLadder []int    `json:"interval_ladder,omitempty"`
	MutedTags      []string `json:"muted_tags,omitempty"`
}

// CreateUser creates a user.
// POST /api/v1/users
func (s *APIV1Service) CreateUser(c echo.Context) error {
	req := &CreateUserRequest{}
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "malformed request body"})
	}
	if strings.TrimSpace(req.Username) == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "username is required"})
	}

	user, err := s.Store.CreateUser(c.Request().Context(), &store.User{
		Username:  req.Username,
		Nickname:  req.Nickname,
		CreatedTs: time.Now().Unix(),
	})
	if err != nil {
		slog.Error("failed to create user", "username", req.Username, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to create user"})
	}
	return c.JSON(http.StatusOK, user)
}

// UpdateUserSettings replaces the user's interval ladder and muted tags.
// PUT /api/v1/users/:id/settings
func (s *APIV1Service) UpdateUserSettings(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 32)
	if err != nil || id <= 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid user id"})
	}

	req := &UpdateUserSettingsRequest{}
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "malformed request body"})
	}
	// A bad ladder must never reach storage; every later read would fail.
	if len(req.IntervalLadder) > 0 {
		if err := scheduler.Ladder(req.IntervalLadder).Validate(); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to encode settings"})
	}
	setting, err := s.Store.UpsertUserSetting(c.Request().Context(), &store.UpsertUserSetting{
		UserID:   int32(id),
		Settings: string(payload),
	})
	if err != nil {
		slog.Error("failed to update user settings", "user_id", id, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to update settings"})
	}
	return c.JSON(http.StatusOK, setting)
}
