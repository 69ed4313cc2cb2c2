package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/bordercore/drill/drill/scheduler"
)

// UserSetting holds a user's drill preferences as a JSON payload.
type UserSetting struct {
	UserID    int32
	Settings  string // JSON string
	CreatedTs int64
	UpdatedTs int64
}

// FindUserSetting specifies the conditions for finding user settings.
type FindUserSetting struct {
	UserID *int32
}

// UpsertUserSetting specifies the data for upserting user settings.
type UpsertUserSetting struct {
	UserID   int32
	Settings string // JSON string
}

// userSettingPayload is the decoded shape of UserSetting.Settings.
type userSettingPayload struct {
	IntervalLadder []int    `json:"interval_ladder,omitempty"`
	MutedTags      []string `json:"muted_tags,omitempty"`
}

// UpsertUserSetting upserts the user's settings and drops the stale cache
// entry.
func (s *Store) UpsertUserSetting(ctx context.Context, upsert *UpsertUserSetting) (*UserSetting, error) {
	setting, err := s.driver.UpsertUserSetting(ctx, upsert)
	if err != nil {
		return nil, err
	}
	s.userSettingCache.Delete(userSettingCacheKey(upsert.UserID))
	return setting, nil
}

// GetUserSetting gets the user's settings, or nil when none are stored.
func (s *Store) GetUserSetting(ctx context.Context, find *FindUserSetting) (*UserSetting, error) {
	return s.driver.GetUserSetting(ctx, find)
}

// GetIntervalLadder returns the user's configured interval ladder, falling
// back to the default ladder when none is stored.
func (s *Store) GetIntervalLadder(ctx context.Context, userID int32) (scheduler.Ladder, error) {
	payload, err := s.userSettingPayload(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(payload.IntervalLadder) == 0 {
		return scheduler.DefaultLadder, nil
	}
	ladder := scheduler.Ladder(payload.IntervalLadder)
	if err := ladder.Validate(); err != nil {
		return nil, err
	}
	return ladder, nil
}

// GetMutedTags returns the user's muted tag names. Questions carrying any of
// these tags are excluded from selection.
func (s *Store) GetMutedTags(ctx context.Context, userID int32) ([]string, error) {
	payload, err := s.userSettingPayload(ctx, userID)
	if err != nil {
		return nil, err
	}
	return payload.MutedTags, nil
}

func (s *Store) userSettingPayload(ctx context.Context, userID int32) (*userSettingPayload, error) {
	cacheKey := userSettingCacheKey(userID)
	if cached, ok := s.userSettingCache.Get(cacheKey); ok {
		if payload, ok := cached.(*userSettingPayload); ok {
			return payload, nil
		}
	}

	setting, err := s.driver.GetUserSetting(ctx, &FindUserSetting{UserID: &userID})
	if err != nil {
		return nil, err
	}
	payload := &userSettingPayload{}
	if setting != nil && setting.Settings != "" {
		if err := json.Unmarshal([]byte(setting.Settings), payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal settings for user %d: %w", userID, err)
		}
	}
	s.userSettingCache.Set(cacheKey, payload)
	return payload, nil
}

func userSettingCacheKey(userID int32) string {
	return fmt.Sprintf("user_setting:%d", userID)
}
