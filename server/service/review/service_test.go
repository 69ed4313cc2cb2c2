package review

import (
	"context"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bordercore/drill/drill/scheduler"
	"github.com/bordercore/drill/store"
)

// mockStore is an in-memory implementation of the Store interface for testing.
type mockStore struct {
	questions []*store.Question
	ladder    scheduler.Ladder
	mutedTags []string

	// staleWrites makes the next N RecordQuestionReview calls fail with
	// ErrStaleWrite, bumping the row version as the winning writer would.
	staleWrites int

	recordedLogs []*store.QuestionResponse
}

func (m *mockStore) ListQuestions(_ context.Context, find *store.FindQuestion) ([]*store.Question, error) {
	result := make([]*store.Question, 0)
	for _, q := range m.questions {
		if find.CreatorID != nil && q.CreatorID != *find.CreatorID {
			continue
		}
		if find.UID != nil && q.UID != *find.UID {
			continue
		}
		if find.ExcludeDisabled && q.IsDisabled {
			continue
		}
		if find.IsFavorite != nil && q.IsFavorite != *find.IsFavorite {
			continue
		}
		if find.CreatedTsAfter != nil && q.CreatedTs < *find.CreatedTsAfter {
			continue
		}
		if !hasAllTags(q, find.TagAll) {
			continue
		}
		if hasAnyTag(q, find.ExcludeTags) {
			continue
		}
		if find.Keyword != nil {
			keyword := strings.ToLower(*find.Keyword)
			if !strings.Contains(strings.ToLower(q.Question), keyword) &&
				!strings.Contains(strings.ToLower(q.Answer), keyword) {
				continue
			}
		}
		result = append(result, q)
	}
	return result, nil
}

func (m *mockStore) GetQuestion(ctx context.Context, find *store.FindQuestion) (*store.Question, error) {
	list, err := m.ListQuestions(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

func (m *mockStore) RecordQuestionReview(_ context.Context, update *store.UpdateQuestion, log *store.QuestionResponse) error {
	var target *store.Question
	for _, q := range m.questions {
		if q.ID == update.ID {
			target = q
			break
		}
	}
	if target == nil {
		return store.ErrStaleWrite
	}
	if m.staleWrites > 0 {
		m.staleWrites--
		target.RowVersion++
		return store.ErrStaleWrite
	}
	if update.ExpectedRowVersion != nil && *update.ExpectedRowVersion != target.RowVersion {
		return store.ErrStaleWrite
	}
	if update.IntervalDays != nil {
		target.IntervalDays = *update.IntervalDays
	}
	if update.IntervalIndex != nil {
		target.IntervalIndex = *update.IntervalIndex
	}
	if update.LastReviewedTs != nil {
		ts := *update.LastReviewedTs
		target.LastReviewedTs = &ts
	}
	target.RowVersion++
	m.recordedLogs = append(m.recordedLogs, log)
	return nil
}

func (m *mockStore) GetIntervalLadder(context.Context, int32) (scheduler.Ladder, error) {
	if m.ladder != nil {
		return m.ladder, nil
	}
	return scheduler.DefaultLadder, nil
}

func (m *mockStore) GetMutedTags(context.Context, int32) ([]string, error) {
	return m.mutedTags, nil
}

func hasAllTags(q *store.Question, tags []string) bool {
	for _, want := range tags {
		found := false
		for _, tag := range q.Tags {
			if tag == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func hasAnyTag(q *store.Question, tags []string) bool {
	for _, want := range tags {
		for _, tag := range q.Tags {
			if tag == want {
				return true
			}
		}
	}
	return false
}

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, mock *mockStore) (Service, *MemorySessionStore) {
	t.Helper()
	sessions := NewMemorySessionStore(time.Hour)
	t.Cleanup(sessions.Close)
	svc := NewService(mock, sessions,
		WithClock(func() time.Time { return testNow }),
		WithRand(rand.New(rand.NewSource(1))),
	)
	return svc, sessions
}

// question builds a due-by-default test question.
func question(id int32, uid string, opts func(*store.Question)) *store.Question {
	q := &store.Question{
		ID:            id,
		UID:           uid,
		CreatorID:     1,
		CreatedTs:     testNow.Add(-30 * 24 * time.Hour).Unix(),
		Question:      "question " + uid,
		Answer:        "answer " + uid,
		IntervalDays:  1,
		IntervalIndex: 0,
		RowVersion:    1,
	}
	if opts != nil {
		opts(q)
	}
	return q
}

func reviewedAgo(ago time.Duration) *int64 {
	ts := testNow.Add(-ago).Unix()
	return &ts
}

func TestStartSessionDueOnly(t *testing.T) {
	day := 24 * time.Hour
	mock := &mockStore{questions: []*store.Question{
		question(1, "q1", nil), // never reviewed: due
		question(2, "q2", func(q *store.Question) { // overdue
			q.IntervalDays = 3
			q.LastReviewedTs = reviewedAgo(5 * day)
		}),
		question(3, "q3", func(q *store.Question) { // not yet due
			q.IntervalDays = 30
			q.LastReviewedTs = reviewedAgo(2 * day)
		}),
	}}
	svc, sessions := newTestService(t, mock)

	session, err := svc.StartSession(context.Background(), 1, SessionTypeReview, true, StartParams{})
	require.NoError(t, err)
	require.NotNil(t, session)

	assert.Len(t, session.QuestionUIDs, 2)
	assert.NotContains(t, session.QuestionUIDs, "q3")
	assert.Equal(t, session.QuestionUIDs[0], session.Current)

	stored, err := sessions.Get(context.Background(), session.Key)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, session.QuestionUIDs, stored.QuestionUIDs)
}

func TestStartSessionAllWhenDueOnlyDisabled(t *testing.T) {
	day := 24 * time.Hour
	mock := &mockStore{questions: []*store.Question{
		question(1, "q1", nil),
		question(2, "q2", func(q *store.Question) {
			q.IntervalDays = 30
			q.LastReviewedTs = reviewedAgo(day)
		}),
	}}
	svc, _ := newTestService(t, mock)

	session, err := svc.StartSession(context.Background(), 1, SessionTypeReview, false, StartParams{})
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Len(t, session.QuestionUIDs, 2)
}

func TestStartSessionFavorites(t *testing.T) {
	mock := &mockStore{questions: []*store.Question{
		question(1, "q1", func(q *store.Question) { q.IsFavorite = true }),
		question(2, "q2", nil),
	}}
	svc, _ := newTestService(t, mock)

	session, err := svc.StartSession(context.Background(), 1, SessionTypeFavorites, true, StartParams{})
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, []string{"q1"}, session.QuestionUIDs)
}

func TestStartSessionExcludesDisabledAndMuted(t *testing.T) {
	mock := &mockStore{
		questions: []*store.Question{
			question(1, "q1", nil),
			question(2, "q2", func(q *store.Question) { q.IsDisabled = true }),
			question(3, "q3", func(q *store.Question) { q.Tags = []string{"archived"} }),
		},
		mutedTags: []string{"archived"},
	}
	svc, _ := newTestService(t, mock)

	session, err := svc.StartSession(context.Background(), 1, SessionTypeReview, true, StartParams{})
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, []string{"q1"}, session.QuestionUIDs)
}

func TestStartSessionTagRequiresEveryTag(t *testing.T) {
	mock := &mockStore{questions: []*store.Question{
		question(1, "q1", func(q *store.Question) { q.Tags = []string{"go", "testing"} }),
		question(2, "q2", func(q *store.Question) { q.Tags = []string{"go"} }),
	}}
	svc, _ := newTestService(t, mock)

	session, err := svc.StartSession(context.Background(), 1, SessionTypeTag, true, StartParams{Tags: []string{"go", "testing"}})
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, []string{"q1"}, session.QuestionUIDs)
}

func TestStartSessionKeyword(t *testing.T) {
	mock := &mockStore{questions: []*store.Question{
		question(1, "q1", func(q *store.Question) { q.Answer = "the Monte Carlo method" }),
		question(2, "q2", nil),
	}}
	svc, _ := newTestService(t, mock)

	session, err := svc.StartSession(context.Background(), 1, SessionTypeKeyword, true, StartParams{Keyword: "monte carlo"})
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, []string{"q1"}, session.QuestionUIDs)
}

func TestStartSessionRecentDefaultWindow(t *testing.T) {
	day := 24 * time.Hour
	mock := &mockStore{questions: []*store.Question{
		question(1, "q1", func(q *store.Question) { q.CreatedTs = testNow.Add(-2 * day).Unix() }),
		question(2, "q2", func(q *store.Question) { q.CreatedTs = testNow.Add(-10 * day).Unix() }),
	}}
	svc, _ := newTestService(t, mock)

	session, err := svc.StartSession(context.Background(), 1, SessionTypeRecent, true, StartParams{})
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, []string{"q1"}, session.QuestionUIDs)
}

func TestStartSessionRandomCapsAfterShuffle(t *testing.T) {
	questions := make([]*store.Question, 0, 20)
	for i := int32(1); i <= 20; i++ {
		questions = append(questions, question(i, shortUID(i), nil))
	}
	mock := &mockStore{questions: questions}
	svc, _ := newTestService(t, mock)

	session, err := svc.StartSession(context.Background(), 1, SessionTypeRandom, true, StartParams{Count: 5})
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Len(t, session.QuestionUIDs, 5)
}

func TestStartSessionRandomDefaultCount(t *testing.T) {
	questions := make([]*store.Question, 0, 20)
	for i := int32(1); i <= 20; i++ {
		questions = append(questions, question(i, shortUID(i), nil))
	}
	mock := &mockStore{questions: questions}
	svc, _ := newTestService(t, mock)

	session, err := svc.StartSession(context.Background(), 1, SessionTypeRandom, true, StartParams{})
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Len(t, session.QuestionUIDs, DefaultRandomCount)
}

func TestStartSessionEmptyReturnsNil(t *testing.T) {
	mock := &mockStore{}
	svc, _ := newTestService(t, mock)

	session, err := svc.StartSession(context.Background(), 1, SessionTypeReview, true, StartParams{})
	require.NoError(t, err)
	assert.Nil(t, session)
}

func TestStartSessionUnknownType(t *testing.T) {
	mock := &mockStore{questions: []*store.Question{question(1, "q1", nil)}}
	svc, _ := newTestService(t, mock)

	_, err := svc.StartSession(context.Background(), 1, SessionType("bogus"), true, StartParams{})
	assert.Error(t, err)
}

func TestSessionListIsImmutable(t *testing.T) {
	questions := make([]*store.Question, 0, 5)
	for i := int32(1); i <= 5; i++ {
		questions = append(questions, question(i, shortUID(i), nil))
	}
	mock := &mockStore{questions: questions}
	svc, _ := newTestService(t, mock)

	session, err := svc.StartSession(context.Background(), 1, SessionTypeReview, true, StartParams{})
	require.NoError(t, err)
	require.Len(t, session.QuestionUIDs, 5)

	// A sixth question becoming due mid-session must not join the batch.
	mock.questions = append(mock.questions, question(6, "q6", nil))

	steps := 1 // the first question is already current
	for {
		next, complete, err := svc.Advance(context.Background(), session.Key)
		require.NoError(t, err)
		if complete {
			break
		}
		assert.NotEqual(t, "q6", next)
		steps++
	}
	assert.Equal(t, 5, steps)
}

func TestAdvanceWalksAndDeletesOnCompletion(t *testing.T) {
	mock := &mockStore{questions: []*store.Question{
		question(1, "q1", nil),
		question(2, "q2", nil),
	}}
	svc, sessions := newTestService(t, mock)

	session, err := svc.StartSession(context.Background(), 1, SessionTypeReview, true, StartParams{})
	require.NoError(t, err)
	require.Len(t, session.QuestionUIDs, 2)

	next, complete, err := svc.Advance(context.Background(), session.Key)
	require.NoError(t, err)
	assert.False(t, complete)
	assert.Equal(t, session.QuestionUIDs[1], next)

	_, complete, err = svc.Advance(context.Background(), session.Key)
	require.NoError(t, err)
	assert.True(t, complete)

	stored, err := sessions.Get(context.Background(), session.Key)
	require.NoError(t, err)
	assert.Nil(t, stored)

	// Advancing a finished (deleted) session reports not-found.
	_, _, err = svc.Advance(context.Background(), session.Key)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRecordResponseGood(t *testing.T) {
	mock := &mockStore{questions: []*store.Question{
		question(1, "q1", func(q *store.Question) {
			q.IntervalDays = 3
			q.IntervalIndex = 2
		}),
	}}
	svc, _ := newTestService(t, mock)

	updated, err := svc.RecordResponse(context.Background(), 1, "q1", scheduler.ResponseGood)
	require.NoError(t, err)
	assert.Equal(t, int32(5), updated.IntervalDays)
	assert.Equal(t, int32(3), updated.IntervalIndex)
	require.NotNil(t, updated.LastReviewedTs)
	assert.Equal(t, testNow.Unix(), *updated.LastReviewedTs)

	require.Len(t, mock.recordedLogs, 1)
	assert.Equal(t, "good", mock.recordedLogs[0].Response)
	assert.Equal(t, int32(1), mock.recordedLogs[0].QuestionID)
}

func TestRecordResponseInvalid(t *testing.T) {
	mock := &mockStore{questions: []*store.Question{question(1, "q1", nil)}}
	svc, _ := newTestService(t, mock)

	_, err := svc.RecordResponse(context.Background(), 1, "q1", scheduler.Response("meh"))
	assert.ErrorIs(t, err, scheduler.ErrInvalidResponse)
	assert.Empty(t, mock.recordedLogs)
}

func TestRecordResponseNotFound(t *testing.T) {
	mock := &mockStore{questions: []*store.Question{question(1, "q1", nil)}}
	svc, _ := newTestService(t, mock)

	_, err := svc.RecordResponse(context.Background(), 1, "nope", scheduler.ResponseGood)
	assert.ErrorIs(t, err, ErrQuestionNotFound)

	// A question owned by another user is indistinguishable from a missing
	// one.
	_, err = svc.RecordResponse(context.Background(), 2, "q1", scheduler.ResponseGood)
	assert.ErrorIs(t, err, ErrQuestionNotFound)
}

func TestRecordResponseRetriesOnceOnStaleWrite(t *testing.T) {
	mock := &mockStore{
		questions:   []*store.Question{question(1, "q1", nil)},
		staleWrites: 1,
	}
	svc, _ := newTestService(t, mock)

	updated, err := svc.RecordResponse(context.Background(), 1, "q1", scheduler.ResponseGood)
	require.NoError(t, err)
	assert.Equal(t, int32(2), updated.IntervalDays)
	require.Len(t, mock.recordedLogs, 1)
}

func TestRecordResponseConflictAfterTwoStaleWrites(t *testing.T) {
	mock := &mockStore{
		questions:   []*store.Question{question(1, "q1", nil)},
		staleWrites: 2,
	}
	svc, _ := newTestService(t, mock)

	_, err := svc.RecordResponse(context.Background(), 1, "q1", scheduler.ResponseGood)
	assert.ErrorIs(t, err, ErrConflict)
	assert.Empty(t, mock.recordedLogs)
}

func TestProgressForTag(t *testing.T) {
	day := 24 * time.Hour
	mock := &mockStore{questions: []*store.Question{
		question(1, "q1", func(q *store.Question) {
			q.Tags = []string{"go"}
			q.IntervalDays = 30
			q.LastReviewedTs = reviewedAgo(2 * day)
		}),
		question(2, "q2", func(q *store.Question) {
			q.Tags = []string{"go"}
			q.IntervalDays = 30
			q.LastReviewedTs = reviewedAgo(10 * day)
		}),
		question(3, "q3", func(q *store.Question) { q.Tags = []string{"go"} }), // due
		question(4, "q4", nil), // different tag space
	}}
	svc, _ := newTestService(t, mock)

	progress, err := svc.ProgressForTag(context.Background(), 1, "go")
	require.NoError(t, err)
	assert.Equal(t, 3, progress.Count)
	assert.Equal(t, 1, progress.DueCount)
	// 100 - 1/3*100 = 66.67 rounds to 67.
	assert.Equal(t, 67, progress.PercentComplete)
	require.NotNil(t, progress.LastReviewed)
	assert.Equal(t, testNow.Add(-2*day).Unix(), progress.LastReviewed.Unix())
}

func TestProgressForTagEmpty(t *testing.T) {
	mock := &mockStore{}
	svc, _ := newTestService(t, mock)

	progress, err := svc.ProgressForTag(context.Background(), 1, "go")
	require.NoError(t, err)
	assert.Equal(t, 0, progress.Count)
	assert.Equal(t, 0, progress.DueCount)
	assert.Equal(t, 0, progress.PercentComplete)
	assert.Nil(t, progress.LastReviewed)
}

func shortUID(i int32) string {
	return "q" + string(rune('0'+i%10)) + "-" + string(rune('a'+i%26))
}
