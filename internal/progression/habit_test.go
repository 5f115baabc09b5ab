package progression

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"levelupsolo.app/server/internal/common"
	"levelupsolo.app/server/internal/model"
)

func day(n int, hour int) time.Time {
	return time.Date(2026, 3, n, hour, 0, 0, 0, shanghai)
}

func newHabit() model.Task {
	return model.Task{ID: 7, UserID: 1, Title: "读书", Category: model.CategoryHabit, Difficulty: model.DifficultyEasy}
}

func TestStateAt(t *testing.T) {
	now := day(10, 12)
	cases := []struct {
		name string
		last *time.Time
		want HabitState
	}{
		{"never", nil, NeverCompleted},
		{"today", ptr(day(10, 1)), CompletedToday},
		{"yesterday late", ptr(day(9, 23)), CompletedYesterdayNotToday},
		{"three days ago", ptr(day(7, 12)), CompletedEarlierNotToday},
		{"future clock skew", ptr(day(11, 1)), CompletedToday},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, StateAt(tc.last, now))
		})
	}
}

func TestCompleteHabit_SameDayRejected(t *testing.T) {
	h, err := CompleteHabit(newHabit(), day(5, 9))
	require.NoError(t, err)
	assert.Equal(t, 1, h.HabitStreak)

	again, err := CompleteHabit(h, day(5, 21))
	require.ErrorIs(t, err, common.ErrDuplicateCompletion)
	assert.Equal(t, h, again)
}

func TestCompleteHabit_ConsecutiveDaysIncrement(t *testing.T) {
	h, err := CompleteHabit(newHabit(), day(5, 9))
	require.NoError(t, err)

	h, err = CompleteHabit(h, day(6, 9))
	require.NoError(t, err)
	assert.Equal(t, 2, h.HabitStreak)
	assert.InDelta(t, 0.5, h.HabitValue, 1e-9)
}

func TestCompleteHabit_GapResets(t *testing.T) {
	h := newHabit()
	h.HabitStreak = 4
	last := day(5, 9)
	h.LastCompletedDate = &last

	h, err := CompleteHabit(h, day(8, 9))
	require.NoError(t, err)
	assert.Equal(t, 1, h.HabitStreak)
}

func TestCompleteHabit_ValueCapped(t *testing.T) {
	h := newHabit()
	h.HabitValue = 2.9
	h, err := CompleteHabit(h, day(5, 9))
	require.NoError(t, err)
	assert.Equal(t, 3.0, h.HabitValue)
}

func TestUncompleteHabit_SameDay(t *testing.T) {
	h, err := CompleteHabit(newHabit(), day(5, 9))
	require.NoError(t, err)

	h, err = UncompleteHabit(h, day(5, 10))
	require.NoError(t, err)
	assert.False(t, h.Completed)
	assert.Nil(t, h.LastCompletedDate)
}

func TestUncompleteHabit_OtherDayRejected(t *testing.T) {
	h, err := CompleteHabit(newHabit(), day(5, 9))
	require.NoError(t, err)

	_, err = UncompleteHabit(h, day(6, 9))
	require.ErrorIs(t, err, common.ErrInvalidUncomplete)
}

func TestAdvanceDailyStreak(t *testing.T) {
	s := model.NewUserStats(1, 18, day(1, 0))

	s = AdvanceDailyStreak(s, day(1, 10))
	assert.Equal(t, 1, s.Streak)
	s = AdvanceDailyStreak(s, day(1, 18))
	assert.Equal(t, 1, s.Streak, "второе выполнение за день серию не меняет")
	s = AdvanceDailyStreak(s, day(2, 8))
	assert.Equal(t, 2, s.Streak)
	assert.Equal(t, 2, CurrentDailyStreak(s, day(3, 8)))
	assert.Equal(t, 0, CurrentDailyStreak(s, day(5, 8)))
	s = AdvanceDailyStreak(s, day(5, 8))
	assert.Equal(t, 1, s.Streak)
}

func TestClampHabitValue(t *testing.T) {
	assert.Equal(t, -3.0, ClampHabitValue(-10, HabitValueMin))
	assert.Equal(t, 0.0, ClampHabitValue(-10, 0))
	assert.Equal(t, 3.0, ClampHabitValue(10, 0))
}

func ptr(t time.Time) *time.Time { return &t }
