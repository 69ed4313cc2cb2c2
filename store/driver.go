package store

import (
	"context"
	"database/sql"
)

// Driver is an interface for store driver.
// It contains all methods that store database driver should implement.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	IsInitialized(ctx context.Context) (bool, error)
	Migrate(ctx context.Context) error

	// Question model related methods.
	CreateQuestion(ctx context.Context, create *Question) (*Question, error)
	ListQuestions(ctx context.Context, find *FindQuestion) ([]*Question, error)
	UpdateQuestion(ctx context.Context, update *UpdateQuestion) error
	DeleteQuestion(ctx context.Context, delete *DeleteQuestion) error

	// RecordQuestionReview updates a question's scheduling state and appends
	// the response log entry in a single transaction. Honors
	// UpdateQuestion.ExpectedRowVersion.
	RecordQuestionReview(ctx context.Context, update *UpdateQuestion, log *QuestionResponse) error

	// BulkUpdateQuestionIntervals applies interval-only updates in one
	// transaction. Used by the overdue reset sweep.
	BulkUpdateQuestionIntervals(ctx context.Context, updates []*UpdateQuestionInterval) error

	// QuestionResponse model related methods.
	CreateQuestionResponse(ctx context.Context, create *QuestionResponse) (*QuestionResponse, error)
	ListQuestionResponses(ctx context.Context, find *FindQuestionResponse) ([]*QuestionResponse, error)

	// User model related methods.
	CreateUser(ctx context.Context, create *User) (*User, error)
	ListUsers(ctx context.Context, find *FindUser) ([]*User, error)

	// UserSetting model related methods.
	UpsertUserSetting(ctx context.Context, upsert *UpsertUserSetting) (*UserSetting, error)
	GetUserSetting(ctx context.Context, find *FindUserSetting) (*UserSetting, error)
}
