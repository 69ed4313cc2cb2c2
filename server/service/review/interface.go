// Package review implements the drill review flow: building a study session
// from due questions, walking the user through it, and applying scheduler
// outcomes back to storage.
package review

import (
	"context"
	"time"

	"github.com/bordercore/drill/drill/scheduler"
	"github.com/bordercore/drill/store"
)

// SessionType describes how a study session's question list was selected.
type SessionType string

const (
	// SessionTypeReview is the default selection: every due question.
	SessionTypeReview    SessionType = "review"
	SessionTypeFavorites SessionType = "favorites"
	SessionTypeRecent    SessionType = "recent"
	SessionTypeTag       SessionType = "tag"
	SessionTypeKeyword   SessionType = "keyword"
	SessionTypeRandom    SessionType = "random"
)

const (
	// DefaultRecentDays bounds a "recent" session to questions created in
	// the last week.
	DefaultRecentDays = 7
	// DefaultRandomCount caps a "random" session.
	DefaultRandomCount = 10
)

// StartParams carries the type-specific selection parameters. They are kept
// on the session afterwards for display only; selection never re-runs
// mid-session.
type StartParams struct {
	// RecentDays applies to "recent" sessions (default DefaultRecentDays).
	RecentDays int `json:"recent_days,omitempty"`
	// Tags applies to "tag" sessions; a question must carry every listed tag.
	Tags []string `json:"tags,omitempty"`
	// Keyword applies to "keyword" sessions (case-insensitive substring).
	Keyword string `json:"keyword,omitempty"`
	// Count applies to "random" sessions (default DefaultRandomCount).
	Count int `json:"count,omitempty"`
}

// StudySession is a fixed, ordered batch of question UIDs a user works
// through in one sitting. The list is immutable once the session is created:
// questions becoming due mid-session never join it.
type StudySession struct {
	Key          string      `json:"key"`
	UserID       int32       `json:"user_id"`
	Type         SessionType `json:"type"`
	QuestionUIDs []string    `json:"question_uids"`
	Current      string      `json:"current"`
	Params       StartParams `json:"params"`
	CreatedTs    int64       `json:"created_ts"`
}

// TagProgress summarizes a user's review progress for one tag. It is a
// display metric; nothing schedules off it.
type TagProgress struct {
	Count    int `json:"count"`
	DueCount int `json:"due_count"`
	// LastReviewed is nil when no question under the tag was ever reviewed.
	LastReviewed    *time.Time `json:"last_reviewed,omitempty"`
	PercentComplete int        `json:"percent_complete"`
}

// SessionStore is the transient per-user session store. Implementations must
// make Update atomic per key so concurrent advances serialize.
type SessionStore interface {
	// Get returns the stored session, or nil when the key is unknown.
	Get(ctx context.Context, key string) (*StudySession, error)
	Put(ctx context.Context, key string, session *StudySession) error
	// Update applies fn to the stored session under the key's lock and
	// persists the result. Returns ErrSessionNotFound for an unknown key.
	Update(ctx context.Context, key string, fn func(*StudySession) error) (*StudySession, error)
	Delete(ctx context.Context, key string) error
}

// Store is the interface for store operations needed by the review service.
type Store interface {
	ListQuestions(ctx context.Context, find *store.FindQuestion) ([]*store.Question, error)
	GetQuestion(ctx context.Context, find *store.FindQuestion) (*store.Question, error)
	RecordQuestionReview(ctx context.Context, update *store.UpdateQuestion, log *store.QuestionResponse) error
	GetIntervalLadder(ctx context.Context, userID int32) (scheduler.Ladder, error)
	GetMutedTags(ctx context.Context, userID int32) ([]string, error)
}

// Service defines the review session manager.
type Service interface {
	// StartSession snapshots a shuffled list of matching question UIDs into
	// a new session. Returns nil when nothing matches.
	StartSession(ctx context.Context, userID int32, sessionType SessionType, dueOnly bool, params StartParams) (*StudySession, error)

	// GetSession returns the stored session, or nil for an unknown or
	// expired key.
	GetSession(ctx context.Context, sessionKey string) (*StudySession, error)

	// Advance moves the session pointer one step. The second return value is
	// true when the session is finished, in which case the session has been
	// removed from the store.
	Advance(ctx context.Context, sessionKey string) (string, bool, error)

	// RecordResponse applies a review response to a question: new scheduling
	// state from the scheduler, a single-transaction question update plus
	// response log append, and an automatic one-shot retry on a concurrent
	// write. It never advances the session.
	RecordResponse(ctx context.Context, userID int32, questionUID string, response scheduler.Response) (*store.Question, error)

	// ProgressForTag reports review progress across the user's questions
	// carrying the tag.
	ProgressForTag(ctx context.Context, userID int32, tagName string) (*TagProgress, error)
}
