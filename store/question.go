package store

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// ErrStaleWrite is returned by an optimistic-concurrency update whose
// expected row version no longer matches the stored row.
var ErrStaleWrite = errors.New("stale write: row version mismatch")

// Question is the object representing a reviewable drill question.
type Question struct {
	ID        int32
	UID       string
	CreatorID int32
	CreatedTs int64
	UpdatedTs int64

	// Content. Opaque to the scheduling core.
	Question string
	Answer   string

	// Scheduling state, owned by the scheduler/store pair.
	IntervalDays   int32
	IntervalIndex  int32
	LastReviewedTs *int64 // nil means never reviewed

	// TimesFailed is maintained by collaborators outside this core; it is
	// carried but never mutated here.
	TimesFailed int32

	IsFavorite   bool
	IsDisabled   bool
	IsReversible bool

	// RowVersion guards concurrent read-modify-write cycles on the
	// scheduling state.
	RowVersion int32

	Tags []string
}

// Interval returns the question's review interval as a duration.
func (q *Question) Interval() time.Duration {
	return time.Duration(q.IntervalDays) * 24 * time.Hour
}

// LastReviewedTime returns the last review time, or nil if the question has
// never been reviewed.
func (q *Question) LastReviewedTime() *time.Time {
	if q.LastReviewedTs == nil {
		return nil
	}
	t := time.Unix(*q.LastReviewedTs, 0)
	return &t
}

// FindQuestion is the find condition for questions.
type FindQuestion struct {
	ID        *int32
	UID       *string
	CreatorID *int32

	ExcludeDisabled bool
	IsFavorite      *bool
	CreatedTsAfter  *int64

	// TagAll matches questions carrying every listed tag.
	TagAll []string
	// ExcludeTags drops questions carrying any listed tag.
	ExcludeTags []string
	// Keyword matches a case-insensitive substring of question or answer.
	Keyword *string

	Limit  *int
	Offset *int
}

// UpdateQuestion is the update request for a question. Nil fields are left
// untouched.
type UpdateQuestion struct {
	ID             int32
	IntervalDays   *int32
	IntervalIndex  *int32
	LastReviewedTs *int64
	TimesFailed    *int32
	IsFavorite     *bool
	IsDisabled     *bool

	// ExpectedRowVersion, when set, makes the update conditional on the
	// stored row version; a mismatch surfaces ErrStaleWrite.
	ExpectedRowVersion *int32
}

// UpdateQuestionInterval is one entry of a bulk interval-only update, used by
// the overdue reset sweep. Only the interval changes; last_reviewed and the
// ladder index are deliberately left alone.
type UpdateQuestionInterval struct {
	ID           int32
	IntervalDays int32
}

// DeleteQuestion is the delete request for a question.
type DeleteQuestion struct {
	ID int32
}

// CreateQuestion creates a new question.
func (s *Store) CreateQuestion(ctx context.Context, create *Question) (*Question, error) {
	return s.driver.CreateQuestion(ctx, create)
}

// ListQuestions lists questions with filter.
func (s *Store) ListQuestions(ctx context.Context, find *FindQuestion) ([]*Question, error) {
	return s.driver.ListQuestions(ctx, find)
}

// GetQuestion gets a single question, or nil when no row matches.
func (s *Store) GetQuestion(ctx context.Context, find *FindQuestion) (*Question, error) {
	list, err := s.driver.ListQuestions(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

// UpdateQuestion updates a question.
func (s *Store) UpdateQuestion(ctx context.Context, update *UpdateQuestion) error {
	return s.driver.UpdateQuestion(ctx, update)
}

// RecordQuestionReview persists the post-review scheduling state and appends
// the response log entry as one transaction.
func (s *Store) RecordQuestionReview(ctx context.Context, update *UpdateQuestion, log *QuestionResponse) error {
	return s.driver.RecordQuestionReview(ctx, update, log)
}

// BulkUpdateQuestionIntervals applies a buffered batch of interval updates in
// one transaction.
func (s *Store) BulkUpdateQuestionIntervals(ctx context.Context, updates []*UpdateQuestionInterval) error {
	return s.driver.BulkUpdateQuestionIntervals(ctx, updates)
}

// DeleteQuestion deletes a question.
func (s *Store) DeleteQuestion(ctx context.Context, delete *DeleteQuestion) error {
	return s.driver.DeleteQuestion(ctx, delete)
}
