package scheduler

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLadder = Ladder{1, 2, 3, 5, 8, 13, 21, 30}

func TestLadderValidate(t *testing.T) {
	tests := []struct {
		name    string
		ladder  Ladder
		wantErr bool
	}{
		{"default ladder", DefaultLadder, false},
		{"single rung", Ladder{7}, false},
		{"empty", Ladder{}, true},
		{"not increasing", Ladder{1, 2, 2, 5}, true},
		{"decreasing", Ladder{5, 3}, true},
		{"non-positive first rung", Ladder{0, 1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.ladder.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidConfiguration)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNextIntervalForResponse(t *testing.T) {
	tests := []struct {
		name     string
		current  State
		response Response
		want     State
	}{
		{"good advances one rung", State{3, 2}, ResponseGood, State{5, 3}},
		{"good from bottom", State{1, 0}, ResponseGood, State{2, 1}},
		{"good onto last rung", State{21, 6}, ResponseGood, State{30, 7}},
		{"good frozen on last rung", State{30, 7}, ResponseGood, State{30, 7}},
		{"easy advances two rungs", State{1, 0}, ResponseEasy, State{3, 2}},
		{"easy from index 3", State{5, 3}, ResponseEasy, State{13, 5}},
		{"easy clamped to last rung", State{21, 6}, ResponseEasy, State{30, 7}},
		{"easy unchanged on last rung", State{30, 7}, ResponseEasy, State{30, 7}},
		{"hard retreats two rungs", State{13, 5}, ResponseHard, State{5, 3}},
		{"hard clamped to bottom", State{2, 1}, ResponseHard, State{1, 0}},
		{"hard floor at index zero", State{1, 0}, ResponseHard, State{1, 0}},
		{"reset from the top", State{30, 7}, ResponseReset, State{1, 0}},
		{"reset from the bottom", State{1, 0}, ResponseReset, State{1, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextIntervalForResponse(tt.current, testLadder, tt.response)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNextIntervalForResponseHardFloorsWithoutLadderRung(t *testing.T) {
	// The one-day floor at index 0 is forced even when the ladder's first
	// rung is longer than a day.
	got, err := NextIntervalForResponse(State{7, 0}, Ladder{7, 14}, ResponseHard)
	require.NoError(t, err)
	assert.Equal(t, State{1, 0}, got)
}

func TestNextIntervalForResponseRepeatedHardReachesFloor(t *testing.T) {
	state := State{30, 7}
	for i := 0; i < 10; i++ {
		next, err := NextIntervalForResponse(state, testLadder, ResponseHard)
		require.NoError(t, err)
		require.GreaterOrEqual(t, next.IntervalIndex, 0)
		state = next
	}
	assert.Equal(t, State{1, 0}, state)

	// And it stays there.
	next, err := NextIntervalForResponse(state, testLadder, ResponseHard)
	require.NoError(t, err)
	assert.Equal(t, State{1, 0}, next)
}

func TestNextIntervalForResponseResetIsIdempotent(t *testing.T) {
	first, err := NextIntervalForResponse(State{13, 5}, testLadder, ResponseReset)
	require.NoError(t, err)
	second, err := NextIntervalForResponse(first, testLadder, ResponseReset)
	require.NoError(t, err)
	assert.Equal(t, State{1, 0}, first)
	assert.Equal(t, first, second)
}

func TestNextIntervalForResponseInvalidResponse(t *testing.T) {
	for _, response := range []Response{"", "ok", "GOOD", "again"} {
		_, err := NextIntervalForResponse(State{1, 0}, testLadder, response)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidResponse)
	}
}

func TestNextIntervalForResponseInvalidLadder(t *testing.T) {
	_, err := NextIntervalForResponse(State{1, 0}, Ladder{}, ResponseGood)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}

func TestIsDue(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	day := 24 * time.Hour
	reviewed := func(ago time.Duration) *time.Time {
		ts := now.Add(-ago)
		return &ts
	}

	tests := []struct {
		name         string
		lastReviewed *time.Time
		interval     time.Duration
		want         bool
	}{
		{"never reviewed", nil, 5 * day, true},
		{"interval exactly elapsed", reviewed(3 * day), 3 * day, true},
		{"interval exceeded", reviewed(10 * day), 3 * day, true},
		{"interval not elapsed", reviewed(2 * day), 3 * day, false},
		{"just reviewed", reviewed(0), day, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsDue(tt.lastReviewed, tt.interval, now))
		})
	}
}

func TestValidateResetBounds(t *testing.T) {
	assert.NoError(t, ValidateResetBounds(1, 52))
	assert.NoError(t, ValidateResetBounds(7, 7))
	assert.ErrorIs(t, ValidateResetBounds(0, 52), ErrInvalidConfiguration)
	assert.ErrorIs(t, ValidateResetBounds(1, 0), ErrInvalidConfiguration)
	assert.ErrorIs(t, ValidateResetBounds(10, 5), ErrInvalidConfiguration)
	assert.ErrorIs(t, ValidateResetBounds(-3, -1), ErrInvalidConfiguration)
}

func TestResetOverdueIntervalNeverReviewed(t *testing.T) {
	now := time.Now()
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 200; i++ {
		days, err := ResetOverdueInterval(nil, now, 1, 52, rng)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, days, 1)
		assert.LessOrEqual(t, days, 52)
	}
}

func TestResetOverdueIntervalExceedsOverdueDays(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	rng := rand.New(rand.NewSource(42))

	// Question last reviewed 100 days ago with minDays=1, maxDays=52:
	// cappedBase = min(100, 104) = 100, so the result is always >= 101.
	last := now.Add(-100 * 24 * time.Hour)
	for i := 0; i < 200; i++ {
		days, err := ResetOverdueInterval(&last, now, 1, 52, rng)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, days, 101)
	}
}

func TestResetOverdueIntervalCapsStaleBase(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	rng := rand.New(rand.NewSource(7))

	// Ten years overdue: base is capped at maxDays*2, but the post-condition
	// still forces the result past the overdue gap.
	last := now.Add(-3650 * 24 * time.Hour)
	days, err := ResetOverdueInterval(&last, now, 1, 52, rng)
	require.NoError(t, err)
	assert.Equal(t, 3651, days)
}

func TestResetOverdueIntervalPostcondition(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	rng := rand.New(rand.NewSource(99))

	for overdue := 0; overdue <= 150; overdue++ {
		last := now.Add(-time.Duration(overdue) * 24 * time.Hour)
		days, err := ResetOverdueInterval(&last, now, 3, 20, rng)
		require.NoError(t, err)
		assert.Greater(t, days, overdue, "overdue=%d", overdue)
		assert.GreaterOrEqual(t, days, 3)
	}
}

func TestResetOverdueIntervalDeterministicWithSeededRand(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	last := now.Add(-30 * 24 * time.Hour)

	a, err := ResetOverdueInterval(&last, now, 1, 52, rand.New(rand.NewSource(5)))
	require.NoError(t, err)
	b, err := ResetOverdueInterval(&last, now, 1, 52, rand.New(rand.NewSource(5)))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestResetOverdueIntervalRejectsBadBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	_, err := ResetOverdueInterval(nil, time.Now(), 10, 5, rng)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}
