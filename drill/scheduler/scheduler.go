// Package scheduler implements the spaced-repetition scheduling rules for
// drill questions: ladder progression driven by review responses, the shared
// due predicate, and the randomized interval reset applied to long-overdue
// questions.
//
// Everything in this package is pure computation over value types. Callers
// own persistence, logging, and response bookkeeping; randomness is injected
// so results are reproducible under test.
package scheduler

import (
	"math/rand"
	"time"

	"github.com/pkg/errors"
)

// Response is a user's self-reported recall outcome for one review.
type Response string

const (
	ResponseGood  Response = "good"
	ResponseEasy  Response = "easy"
	ResponseHard  Response = "hard"
	ResponseReset Response = "reset"
)

var (
	// ErrInvalidResponse is returned for a response label outside the fixed
	// vocabulary. It is never defaulted or coerced.
	ErrInvalidResponse = errors.New("invalid response")
	// ErrInvalidConfiguration is returned for bad interval-reset bounds.
	ErrInvalidConfiguration = errors.New("invalid configuration")
)

// Ladder is a user's ordered sequence of review intervals in days.
// It must be non-empty and strictly increasing.
type Ladder []int

// DefaultLadder is used for users without a configured ladder.
var DefaultLadder = Ladder{1, 2, 3, 5, 8, 13, 21, 30}

// Validate checks the ladder invariants.
func (l Ladder) Validate() error {
	if len(l) == 0 {
		return errors.Wrap(ErrInvalidConfiguration, "interval ladder is empty")
	}
	prev := 0
	for i, days := range l {
		if days <= prev {
			return errors.Wrapf(ErrInvalidConfiguration, "interval ladder not strictly increasing at index %d", i)
		}
		prev = days
	}
	return nil
}

// State is the scheduling state of a question: its current interval in days
// and its position in the owning user's ladder.
type State struct {
	IntervalDays  int
	IntervalIndex int
}

// NextIntervalForResponse computes the question's next scheduling state for a
// review response. It does not mutate the question or write a response log
// entry; both are the caller's job.
//
// Rules:
//   - good: advance one rung, frozen once index+1 would fall off the ladder.
//   - easy: advance two rungs clamped to the last rung; if already on the
//     last rung the state is returned untouched.
//   - hard: retreat two rungs, floored at index 0; from index 0 the interval
//     is forced to exactly one day.
//   - reset: index 0, one day, unconditionally.
func NextIntervalForResponse(current State, ladder Ladder, response Response) (State, error) {
	if err := ladder.Validate(); err != nil {
		return State{}, err
	}

	switch response {
	case ResponseGood:
		if current.IntervalIndex+1 < len(ladder) {
			next := current.IntervalIndex + 1
			return State{IntervalDays: ladder[next], IntervalIndex: next}, nil
		}
		return current, nil
	case ResponseEasy:
		// Already on the last rung: keep the state exactly as it was.
		if current.IntervalIndex+1 == len(ladder) {
			return current, nil
		}
		next := current.IntervalIndex + 2
		if next > len(ladder)-1 {
			next = len(ladder) - 1
		}
		return State{IntervalDays: ladder[next], IntervalIndex: next}, nil
	case ResponseHard:
		if current.IntervalIndex > 0 {
			next := current.IntervalIndex - 2
			if next < 0 {
				next = 0
			}
			return State{IntervalDays: ladder[next], IntervalIndex: next}, nil
		}
		// Hard floor, not derived from the ladder.
		return State{IntervalDays: 1, IntervalIndex: 0}, nil
	case ResponseReset:
		return State{IntervalDays: 1, IntervalIndex: 0}, nil
	default:
		return State{}, errors.Wrapf(ErrInvalidResponse, "unknown response %q", string(response))
	}
}

// IsDue reports whether a question must be reviewed. A question is due iff it
// has never been reviewed or its interval has fully elapsed since the last
// review.
//
// Every caller that needs due-ness (session selection, tag progress, the
// batch reset sweep) must go through this predicate; reimplementing it is the
// bug class the scheduler tests guard against.
func IsDue(lastReviewed *time.Time, interval time.Duration, now time.Time) bool {
	if lastReviewed == nil {
		return true
	}
	return now.Sub(*lastReviewed) >= interval
}

// ValidateResetBounds checks the interval-reset configuration before any
// question is touched.
func ValidateResetBounds(minDays, maxDays int) error {
	if minDays < 1 {
		return errors.Wrapf(ErrInvalidConfiguration, "min interval must be >= 1, got %d", minDays)
	}
	if maxDays < 1 {
		return errors.Wrapf(ErrInvalidConfiguration, "max interval must be >= 1, got %d", maxDays)
	}
	if minDays > maxDays {
		return errors.Wrapf(ErrInvalidConfiguration, "min interval %d exceeds max interval %d", minDays, maxDays)
	}
	return nil
}

// ResetOverdueInterval computes a fresh randomized interval, in days, for a
// question that has gone unreviewed far past its due date. It is decoupled
// from the response ladder: neither last_reviewed nor the interval index is
// touched, so the next response-driven progression resumes from wherever the
// question was left.
//
// Post-condition: the returned interval always exceeds the number of days the
// question is overdue, so a reset question never registers as due immediately
// afterwards.
func ResetOverdueInterval(lastReviewed *time.Time, now time.Time, minDays, maxDays int, rng *rand.Rand) (int, error) {
	if err := ValidateResetBounds(minDays, maxDays); err != nil {
		return 0, err
	}

	randomComponent := rng.Intn(maxDays-minDays+1) + minDays
	if lastReviewed == nil {
		return randomComponent, nil
	}

	overdueDays := int(now.Sub(*lastReviewed) / (24 * time.Hour))
	cappedBase := overdueDays
	if cappedBase > maxDays*2 {
		cappedBase = maxDays * 2
	}
	days := cappedBase + randomComponent
	if days < minDays {
		days = minDays
	}
	if days <= overdueDays {
		days = overdueDays + 1
	}
	return days, nil
}
