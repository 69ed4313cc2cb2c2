package review

import (
	"context"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/lithammer/shortuuid/v4"
	"github.com/pkg/errors"

	"github.com/bordercore/drill/drill/scheduler"
	"github.com/bordercore/drill/store"
)

// Review-specific errors that can be checked with errors.Is.
var (
	// ErrSessionNotFound is returned for an unknown or expired session key.
	ErrSessionNotFound = errors.New("study session not found")
	// ErrQuestionNotFound is returned when the question does not exist or
	// does not belong to the requesting user.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrConflict is returned when a concurrent write won twice in a row;
	// the caller may safely retry.
	ErrConflict = errors.New("conflicting concurrent update")
)

type service struct {
	store    Store
	sessions SessionStore

	// now and rng are injected for deterministic tests.
	now func() time.Time

	rngMu sync.Mutex
	rng   *rand.Rand
}

// Option configures the review service.
type Option func(*service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *service) { s.now = now }
}

// WithRand overrides the shuffle randomness source.
func WithRand(rng *rand.Rand) Option {
	return func(s *service) { s.rng = rng }
}

// NewService creates a new review service.
func NewService(store Store, sessions SessionStore, opts ...Option) Service {
	s := &service{
		store:    store,
		sessions: sessions,
		now:      time.Now,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *service) StartSession(ctx context.Context, userID int32, sessionType SessionType, dueOnly bool, params StartParams) (*StudySession, error) {
	now := s.now()

	find := &store.FindQuestion{
		CreatorID:       &userID,
		ExcludeDisabled: true,
	}

	switch sessionType {
	case SessionTypeReview, SessionTypeRandom, "":
		sessionType = normalizeType(sessionType)
	case SessionTypeFavorites:
		favorite := true
		find.IsFavorite = &favorite
	case SessionTypeRecent:
		days := params.RecentDays
		if days <= 0 {
			days = DefaultRecentDays
		}
		after := now.Add(-time.Duration(days) * 24 * time.Hour).Unix()
		find.CreatedTsAfter = &after
	case SessionTypeTag:
		find.TagAll = params.Tags
	case SessionTypeKeyword:
		if params.Keyword != "" {
			keyword := params.Keyword
			find.Keyword = &keyword
		}
	default:
		return nil, errors.Errorf("unknown session type %q", sessionType)
	}

	mutedTags, err := s.store.GetMutedTags(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load muted tags")
	}
	find.ExcludeTags = mutedTags

	candidates, err := s.store.ListQuestions(ctx, find)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list questions")
	}

	if dueOnly {
		due := candidates[:0]
		for _, q := range candidates {
			if scheduler.IsDue(q.LastReviewedTime(), q.Interval(), now) {
				due = append(due, q)
			}
		}
		candidates = due
	}

	// Uniform shuffle: session order must not leak due-ness or difficulty.
	s.shuffle(candidates)

	if sessionType == SessionTypeRandom {
		count := params.Count
		if count <= 0 {
			count = DefaultRandomCount
		}
		if len(candidates) > count {
			candidates = candidates[:count]
		}
	}

	if len(candidates) == 0 {
		return nil, nil
	}

	uids := make([]string, len(candidates))
	for i, q := range candidates {
		uids[i] = q.UID
	}

	session := &StudySession{
		Key:          shortuuid.New(),
		UserID:       userID,
		Type:         sessionType,
		QuestionUIDs: uids,
		Current:      uids[0],
		Params:       params,
		CreatedTs:    now.Unix(),
	}
	if err := s.sessions.Put(ctx, session.Key, session); err != nil {
		return nil, errors.Wrap(err, "failed to persist study session")
	}

	slog.Info("study session started",
		"session_key", session.Key,
		"user_id", userID,
		"type", string(sessionType),
		"questions", len(uids))
	return session, nil
}

func (s *service) GetSession(ctx context.Context, sessionKey string) (*StudySession, error) {
	return s.sessions.Get(ctx, sessionKey)
}

func (s *service) Advance(ctx context.Context, sessionKey string) (string, bool, error) {
	complete := false
	updated, err := s.sessions.Update(ctx, sessionKey, func(session *StudySession) error {
		idx := -1
		for i, uid := range session.QuestionUIDs {
			if uid == session.Current {
				idx = i
				break
			}
		}
		if idx < 0 || idx+1 >= len(session.QuestionUIDs) {
			complete = true
			return nil
		}
		session.Current = session.QuestionUIDs[idx+1]
		return nil
	})
	if err != nil {
		return "", false, err
	}

	if complete {
		if err := s.sessions.Delete(ctx, sessionKey); err != nil {
			return "", false, errors.Wrap(err, "failed to delete finished session")
		}
		slog.Info("study session complete", "session_key", sessionKey)
		return "", true, nil
	}
	return updated.Current, false, nil
}

func (s *service) RecordResponse(ctx context.Context, userID int32, questionUID string, response scheduler.Response) (*store.Question, error) {
	ladder, err := s.store.GetIntervalLadder(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load interval ladder")
	}

	// A stale optimistic write is retried once from fresh state; the retry
	// starts from whatever the winning writer left behind.
	for attempt := 0; attempt < 2; attempt++ {
		question, err := s.store.GetQuestion(ctx, &store.FindQuestion{UID: &questionUID, CreatorID: &userID})
		if err != nil {
			return nil, errors.Wrapf(err, "failed to get question %s", questionUID)
		}
		if question == nil {
			return nil, errors.Wrapf(ErrQuestionNotFound, "question %s", questionUID)
		}

		next, err := scheduler.NextIntervalForResponse(scheduler.State{
			IntervalDays:  int(question.IntervalDays),
			IntervalIndex: int(question.IntervalIndex),
		}, ladder, response)
		if err != nil {
			return nil, err
		}

		nowTs := s.now().Unix()
		intervalDays := int32(next.IntervalDays)
		intervalIndex := int32(next.IntervalIndex)
		expectedVersion := question.RowVersion

		err = s.store.RecordQuestionReview(ctx,
			&store.UpdateQuestion{
				ID:                 question.ID,
				IntervalDays:       &intervalDays,
				IntervalIndex:      &intervalIndex,
				LastReviewedTs:     &nowTs,
				ExpectedRowVersion: &expectedVersion,
			},
			&store.QuestionResponse{
				QuestionID: question.ID,
				Response:   string(response),
				CreatedTs:  nowTs,
			})
		if errors.Is(err, store.ErrStaleWrite) {
			slog.Warn("concurrent update on question, retrying",
				"question_uid", questionUID, "attempt", attempt+1)
			continue
		}
		if err != nil {
			return nil, errors.Wrapf(err, "failed to record response for question %s", questionUID)
		}

		question.IntervalDays = intervalDays
		question.IntervalIndex = intervalIndex
		question.LastReviewedTs = &nowTs
		question.RowVersion = expectedVersion + 1
		return question, nil
	}
	return nil, errors.Wrapf(ErrConflict, "question %s", questionUID)
}

func (s *service) ProgressForTag(ctx context.Context, userID int32, tagName string) (*TagProgress, error) {
	now := s.now()

	mutedTags, err := s.store.GetMutedTags(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load muted tags")
	}

	questions, err := s.store.ListQuestions(ctx, &store.FindQuestion{
		CreatorID:       &userID,
		ExcludeDisabled: true,
		TagAll:          []string{tagName},
		ExcludeTags:     mutedTags,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list questions for tag %s", tagName)
	}

	progress := &TagProgress{Count: len(questions)}
	for _, q := range questions {
		if scheduler.IsDue(q.LastReviewedTime(), q.Interval(), now) {
			progress.DueCount++
		}
		if t := q.LastReviewedTime(); t != nil {
			if progress.LastReviewed == nil || t.After(*progress.LastReviewed) {
				progress.LastReviewed = t
			}
		}
	}
	if progress.Count > 0 {
		progress.PercentComplete = int(math.Round(100 - float64(progress.DueCount)/float64(progress.Count)*100))
	}
	return progress, nil
}

func (s *service) shuffle(questions []*store.Question) {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	s.rng.Shuffle(len(questions), func(i, j int) {
		questions[i], questions[j] = questions[j], questions[i]
	})
}

func normalizeType(t SessionType) SessionType {
	if t == "" {
		return SessionTypeReview
	}
	return t
}
