// Package reset implements the administrative interval-reset sweep: every due
// question owned by a user gets a fresh randomized interval so a backlog
// built up during a long absence stops being due all at once.
package reset

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"github.com/pkg/errors"

	"github.com/bordercore/drill/drill/scheduler"
	"github.com/bordercore/drill/store"
)

const (
	DefaultMinDays = 1
	DefaultMaxDays = 52
	// DefaultBatchSize bounds each storage flush.
	DefaultBatchSize = 100
)

// ErrUnknownUser is returned when the target username does not exist. It is a
// configuration error: the sweep fails before touching any question.
var ErrUnknownUser = errors.New("unknown user")

// Store is the interface for store operations needed by the reset sweep.
type Store interface {
	GetUser(ctx context.Context, find *store.FindUser) (*store.User, error)
	ListQuestions(ctx context.Context, find *store.FindQuestion) ([]*store.Question, error)
	BulkUpdateQuestionIntervals(ctx context.Context, updates []*store.UpdateQuestionInterval) error
}

// Options configures one sweep run. MinDays and MaxDays are validated as
// given; defaulting unset bounds is the flag layer's job, so an explicit zero
// fails instead of being silently coerced.
type Options struct {
	Username  string
	MinDays   int
	MaxDays   int
	BatchSize int // default DefaultBatchSize
	// DryRun computes and logs every new interval without writing anything.
	DryRun bool
}

// Summary reports what one sweep run did. Per-row failures are recoverable
// and only show up here; they never abort the run.
type Summary struct {
	Found     int
	Processed int
	Skipped   int
}

// Runner executes interval-reset sweeps.
type Runner struct {
	store Store
	now   func() time.Time
	rng   *rand.Rand
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithClock overrides the time source.
func WithClock(now func() time.Time) RunnerOption {
	return func(r *Runner) { r.now = now }
}

// WithRand overrides the randomness source.
func WithRand(rng *rand.Rand) RunnerOption {
	return func(r *Runner) { r.rng = rng }
}

// NewRunner creates a new sweep runner.
func NewRunner(store Store, opts ...RunnerOption) *Runner {
	r := &Runner{
		store: store,
		now:   time.Now,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes one sweep. Configuration problems (bad bounds, unknown user)
// fail fast before any question is read or written; anything going wrong on a
// single question is logged, counted as skipped, and the run continues.
func (r *Runner) Run(ctx context.Context, opts Options) (*Summary, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if err := scheduler.ValidateResetBounds(opts.MinDays, opts.MaxDays); err != nil {
		return nil, err
	}

	user, err := r.store.GetUser(ctx, &store.FindUser{Username: &opts.Username})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to look up user %s", opts.Username)
	}
	if user == nil {
		return nil, errors.Wrapf(ErrUnknownUser, "%s", opts.Username)
	}

	now := r.now()
	candidates, err := r.store.ListQuestions(ctx, &store.FindQuestion{
		CreatorID:       &user.ID,
		ExcludeDisabled: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list questions")
	}

	due := make([]*store.Question, 0, len(candidates))
	for _, q := range candidates {
		if scheduler.IsDue(q.LastReviewedTime(), q.Interval(), now) {
			due = append(due, q)
		}
	}

	// Randomized processing order: an interrupted run should not starve the
	// same tail every time. Each reset is idempotent, so ordering has no
	// correctness impact.
	r.rng.Shuffle(len(due), func(i, j int) {
		due[i], due[j] = due[j], due[i]
	})

	summary := &Summary{Found: len(due)}
	slog.Info("interval reset sweep starting",
		"username", opts.Username,
		"found", summary.Found,
		"dry_run", opts.DryRun,
		"min_days", opts.MinDays,
		"max_days", opts.MaxDays)

	batch := make([]*store.UpdateQuestionInterval, 0, opts.BatchSize)
	iterated := 0
	for _, q := range due {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		iterated++

		days, err := r.computeReset(q, now, opts.MinDays, opts.MaxDays)
		if err != nil {
			slog.Error("failed to compute reset interval",
				"question_uid", q.UID, "error", err)
			summary.Skipped++
			continue
		}

		if opts.DryRun {
			slog.Info("would reset interval",
				"question_uid", q.UID,
				"old_days", q.IntervalDays,
				"new_days", days)
			summary.Processed++
			continue
		}

		batch = append(batch, &store.UpdateQuestionInterval{ID: q.ID, IntervalDays: int32(days)})
		if len(batch) >= opts.BatchSize {
			r.flush(ctx, batch, summary)
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		r.flush(ctx, batch, summary)
	}

	if iterated != summary.Found {
		slog.Warn("candidate count mismatch",
			"found", summary.Found, "iterated", iterated)
	}
	slog.Info("interval reset sweep finished",
		"username", opts.Username,
		"found", summary.Found,
		"processed", summary.Processed,
		"skipped", summary.Skipped)
	return summary, nil
}

// computeReset guards against corrupted rows before delegating to the
// scheduler, so one bad question cannot abort the sweep.
func (r *Runner) computeReset(q *store.Question, now time.Time, minDays, maxDays int) (int, error) {
	if q.IntervalDays < 0 {
		return 0, errors.Errorf("negative interval %d", q.IntervalDays)
	}
	if ts := q.LastReviewedTs; ts != nil && *ts > now.Unix() {
		return 0, errors.Errorf("last reviewed timestamp %d is in the future", *ts)
	}
	return scheduler.ResetOverdueInterval(q.LastReviewedTime(), now, minDays, maxDays, r.rng)
}

// flush writes one buffered batch. A failed flush skips the whole batch and
// lets the sweep continue; the rows stay due and a re-run picks them up.
func (r *Runner) flush(ctx context.Context, batch []*store.UpdateQuestionInterval, summary *Summary) {
	if err := r.store.BulkUpdateQuestionIntervals(ctx, batch); err != nil {
		slog.Error("failed to flush interval updates",
			"batch_size", len(batch), "error", err)
		summary.Skipped += len(batch)
		return
	}
	summary.Processed += len(batch)
}
