package store

import "context"

// QuestionResponse is an immutable log entry recording one review action.
// Rows are only ever appended, never updated or deleted by this core.
type QuestionResponse struct {
	ID         int32
	QuestionID int32
	// Response is one of "good", "easy", "hard", "reset".
	Response  string
	CreatedTs int64
}

// FindQuestionResponse is the find condition for question responses.
type FindQuestionResponse struct {
	QuestionID *int32
	Limit      *int
}

// CreateQuestionResponse appends a response log entry.
func (s *Store) CreateQuestionResponse(ctx context.Context, create *QuestionResponse) (*QuestionResponse, error) {
	return s.driver.CreateQuestionResponse(ctx, create)
}

// ListQuestionResponses lists response log entries, newest first.
func (s *Store) ListQuestionResponses(ctx context.Context, find *FindQuestionResponse) ([]*QuestionResponse, error) {
	return s.driver.ListQuestionResponses(ctx, find)
}
