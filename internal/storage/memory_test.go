package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"levelupsolo.app/server/internal/common"
	"levelupsolo.app/server/internal/model"
)

var start = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func newStore() (*MemoryStore, *common.FakeClock) {
	clock := common.NewFakeClock(start)
	return NewMemoryStore(clock), clock
}

func TestMemoryStore_EnsureStatsIsLazy(t *testing.T) {
	m, _ := newStore()
	ctx := context.Background()

	_, err := m.GetStats(ctx, -1)
	require.ErrorIs(t, err, common.ErrNotFound)

	st, err := m.EnsureStats(ctx, model.NewUserStats(-1, 18, start))
	require.NoError(t, err)
	assert.Equal(t, 18, st.EnergyBalls)

	st.EnergyBalls = 3
	require.NoError(t, m.SaveStats(ctx, st))

	again, err := m.EnsureStats(ctx, model.NewUserStats(-1, 18, start))
	require.NoError(t, err)
	assert.Equal(t, 3, again.EnergyBalls, "повторный EnsureStats не перезаписывает")
}

func TestMemoryStore_TasksScopedByUser(t *testing.T) {
	m, _ := newStore()
	ctx := context.Background()

	a, err := m.CreateTask(ctx, model.Task{UserID: -1, Title: "a", Category: model.CategoryTodo, CreatedAt: start})
	require.NoError(t, err)
	b, err := m.CreateTask(ctx, model.Task{UserID: -1, Title: "b", Category: model.CategoryHabit, CreatedAt: start})
	require.NoError(t, err)
	_, err = m.CreateTask(ctx, model.Task{UserID: -2, Title: "c", CreatedAt: start})
	require.NoError(t, err)

	list, err := m.ListTasks(ctx, -1)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, b.ID, list[0].ID, "новые первыми")

	_, err = m.GetTask(ctx, -2, a.ID)
	require.ErrorIs(t, err, common.ErrTaskNotFound)

	require.ErrorIs(t, m.DeleteTask(ctx, -2, a.ID), common.ErrTaskNotFound)
	require.NoError(t, m.DeleteTask(ctx, -1, a.ID))
	_, err = m.GetTask(ctx, -1, a.ID)
	require.ErrorIs(t, err, common.ErrTaskNotFound)
}

func TestMemoryStore_InTxRollsBackOnError(t *testing.T) {
	m, _ := newStore()
	ctx := context.Background()
	_, err := m.EnsureStats(ctx, model.NewUserStats(-1, 18, start))
	require.NoError(t, err)

	boom := errors.New("boom")
	err = m.InTx(ctx, func(tx Store) error {
		st, err := tx.GetStats(ctx, -1)
		if err != nil {
			return err
		}
		st.EnergyBalls = 0
		if err := tx.SaveStats(ctx, st); err != nil {
			return err
		}
		if _, err := tx.CreateTask(ctx, model.Task{UserID: -1, Title: "x", CreatedAt: start}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	st, err := m.GetStats(ctx, -1)
	require.NoError(t, err)
	assert.Equal(t, 18, st.EnergyBalls)
	tasks, err := m.ListTasks(ctx, -1)
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestMemoryStore_InTxCommits(t *testing.T) {
	m, _ := newStore()
	ctx := context.Background()
	_, err := m.EnsureStats(ctx, model.NewUserStats(-1, 18, start))
	require.NoError(t, err)

	err = m.InTx(ctx, func(tx Store) error {
		st, err := tx.GetStats(ctx, -1)
		if err != nil {
			return err
		}
		st.EnergyBalls = 10
		return tx.SaveStats(ctx, st)
	})
	require.NoError(t, err)

	st, err := m.GetStats(ctx, -1)
	require.NoError(t, err)
	assert.Equal(t, 10, st.EnergyBalls)
}

func TestMemoryStore_OnlyOneActivePomodoro(t *testing.T) {
	m, _ := newStore()
	ctx := context.Background()

	p := model.PomodoroSession{UserID: -1, DurationMinutes: 25, Status: model.PomodoroActive, StartedAt: start, EndsAt: start.Add(25 * time.Minute)}
	first, err := m.CreatePomodoro(ctx, p)
	require.NoError(t, err)

	_, err = m.CreatePomodoro(ctx, p)
	assert.True(t, common.IsInvalidInput(err))

	active, err := m.ActivePomodoro(ctx, -1)
	require.NoError(t, err)
	assert.Equal(t, first.ID, active.ID)

	first.Status = model.PomodoroCancelled
	require.NoError(t, m.UpdatePomodoro(ctx, first))
	_, err = m.ActivePomodoro(ctx, -1)
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestMemoryStore_ActivityNewestFirstWithLimit(t *testing.T) {
	m, _ := newStore()
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := m.AppendActivity(ctx, model.ActivityLog{UserID: -1, ExpGained: i, Action: model.ActionTaskCompleted, CreatedAt: start})
		require.NoError(t, err)
	}
	list, err := m.ListActivity(ctx, -1, 3)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, 4, list[0].ExpGained)
	assert.Equal(t, 2, list[2].ExpGained)
}

func TestMemoryStore_Maintenance(t *testing.T) {
	m, _ := newStore()
	ctx := context.Background()
	dayStart := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	now := dayStart.Add(time.Minute)

	st := model.NewUserStats(-1, 18, start)
	st.EnergyBalls = 2
	_, err := m.EnsureStats(ctx, st)
	require.NoError(t, err)

	done := start
	_, err = m.CreateTask(ctx, model.Task{UserID: -1, Category: model.CategoryDaily, Completed: true, CompletedAt: &done, CreatedAt: start})
	require.NoError(t, err)
	_, err = m.CreateTask(ctx, model.Task{UserID: -1, Category: model.CategoryHabit, LastCompletedDate: &done, CreatedAt: start})
	require.NoError(t, err)

	n, err := m.ResetEnergyAll(ctx, dayStart, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	got, err := m.GetStats(ctx, -1)
	require.NoError(t, err)
	assert.Equal(t, 18, got.EnergyBalls)

	n, err = m.ResetEnergyAll(ctx, dayStart, now)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n, "повторный сброс в тот же день ничего не делает")

	n, err = m.ResetDailyTasks(ctx, dayStart, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	pending, err := m.PendingHabits(ctx, dayStart)
	require.NoError(t, err)
	assert.Equal(t, map[int64]int{-1: 1}, pending)
}

func TestMemoryStore_CleanupIdle(t *testing.T) {
	m, clock := newStore()
	ctx := context.Background()

	idle := m.NewDemoUserID()
	_, err := m.CreateTask(ctx, model.Task{UserID: idle, Title: "old", CreatedAt: start})
	require.NoError(t, err)

	clock.Advance(3 * time.Hour)
	active := m.NewDemoUserID()
	assert.Less(t, active, idle)

	removed := m.CleanupIdle(clock.Now().Add(-2 * time.Hour))
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, m.Users())

	tasks, err := m.ListTasks(ctx, idle)
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestRouter(t *testing.T) {
	demo, _ := newStore()
	persistent, _ := newStore()
	r := NewRouter(persistent, demo)

	assert.Same(t, demo, r.For(-5))
	assert.Same(t, persistent, r.For(5))
	assert.True(t, IsDemo(-1))
	assert.False(t, IsDemo(1))

	noDB := NewRouter(nil, demo)
	assert.Same(t, demo, noDB.For(5))
}
