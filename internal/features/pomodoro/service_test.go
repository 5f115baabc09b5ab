package pomodoro

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"levelupsolo.app/server/internal/common"
	"levelupsolo.app/server/internal/events"
	"levelupsolo.app/server/internal/features/tasks"
	"levelupsolo.app/server/internal/model"
	"levelupsolo.app/server/internal/progression"
	"levelupsolo.app/server/internal/storage"
)

type eventLog struct {
	types []string
}

func (l *eventLog) Publish(_ int64, ev events.Event) { l.types = append(l.types, ev.Type) }

type env struct {
	svc   *Service
	tasks *tasks.Service
	store *storage.MemoryStore
	clock *common.FakeClock
	pub   *eventLog
	user  int64
}

func newEnv(t *testing.T) *env {
	t.Helper()
	clock := common.NewFakeClock(time.Date(2026, 6, 1, 14, 0, 0, 0, time.FixedZone("CST", 8*3600)))
	store := storage.NewMemoryStore(clock)
	router := storage.NewRouter(nil, store)
	pub := &eventLog{}
	ts := tasks.NewService(router, progression.NewResolver(progression.DefaultRewardConfig()), clock, 18, pub)
	return &env{
		svc:   NewService(router, ts, clock, pub),
		tasks: ts,
		store: store,
		clock: clock,
		pub:   pub,
		user:  store.NewDemoUserID(),
	}
}

func TestStart_Defaults(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	s, err := e.svc.Start(ctx, e.user, StartInput{})
	require.NoError(t, err)
	assert.Equal(t, model.DefaultPomodoroMinutes, s.DurationMinutes)
	assert.Equal(t, s.StartedAt.Add(25*time.Minute), s.EndsAt)
	assert.Equal(t, model.PomodoroActive, s.Status)

	_, err = e.svc.Start(ctx, e.user, StartInput{})
	assert.True(t, common.IsInvalidInput(err), "вторая активная сессия запрещена")

	ov, err := e.svc.Overview(ctx, e.user)
	require.NoError(t, err)
	require.NotNil(t, ov.Active)
	assert.Equal(t, s.ID, ov.Active.ID)
}

func TestStart_Validation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.svc.Start(ctx, e.user, StartInput{DurationMinutes: 500})
	assert.True(t, common.IsInvalidInput(err))

	missing := int64(404)
	_, err = e.svc.Start(ctx, e.user, StartInput{TaskID: &missing})
	require.ErrorIs(t, err, common.ErrTaskNotFound)
}

func TestComplete_TooEarly(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	s, err := e.svc.Start(ctx, e.user, StartInput{DurationMinutes: 25})
	require.NoError(t, err)

	e.clock.Advance(10 * time.Minute)
	_, err = e.svc.Complete(ctx, e.user, s.ID)
	assert.True(t, common.IsInvalidInput(err))
}

func TestComplete_CompletesLinkedTask(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	task, err := e.tasks.Create(ctx, e.user, tasks.CreateInput{Title: "写代码", Difficulty: "hard", EstimatedMinutes: 25}, model.SourceAI)
	require.NoError(t, err)

	s, err := e.svc.Start(ctx, e.user, StartInput{TaskID: &task.ID})
	require.NoError(t, err)

	e.clock.Advance(25 * time.Minute)
	res, err := e.svc.Complete(ctx, e.user, s.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PomodoroCompleted, res.Session.Status)
	require.NotNil(t, res.Task)
	assert.Equal(t, 35, res.Task.ExpGained)
	assert.Equal(t, 16, res.Task.Stats.EnergyBalls)
	assert.Empty(t, res.TaskError)

	assert.Equal(t, []string{events.PomodoroStarted, events.PomodoroCompleted, events.TaskCompleted}, e.pub.types)

	logs, err := e.store.ListActivity(ctx, e.user, 10)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, model.ActionPomodoroCompleted, logs[0].Action)
	assert.Equal(t, model.ActionTaskCompleted, logs[1].Action)

	_, err = e.svc.Complete(ctx, e.user, s.ID)
	assert.True(t, common.IsInvalidInput(err))
}

func TestComplete_TaskRejectedStillCountsSession(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	task, err := e.tasks.Create(ctx, e.user, tasks.CreateInput{Title: "一次性"}, model.SourceManual)
	require.NoError(t, err)
	_, err = e.tasks.Complete(ctx, e.user, task.ID)
	require.NoError(t, err)

	s, err := e.svc.Start(ctx, e.user, StartInput{TaskID: &task.ID, DurationMinutes: 5})
	require.NoError(t, err)
	e.clock.Advance(5 * time.Minute)

	res, err := e.svc.Complete(ctx, e.user, s.ID)
	require.NoError(t, err)
	assert.Nil(t, res.Task)
	assert.Equal(t, common.ErrTaskAlreadyCompleted.Error(), res.TaskError)
	assert.Equal(t, model.PomodoroCompleted, res.Session.Status)
}

func TestCancel(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	s, err := e.svc.Start(ctx, e.user, StartInput{})
	require.NoError(t, err)

	got, err := e.svc.Cancel(ctx, e.user, s.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PomodoroCancelled, got.Status)

	_, err = e.svc.Cancel(ctx, e.user, s.ID)
	assert.True(t, common.IsInvalidInput(err))

	// После отмены можно начать новую
	_, err = e.svc.Start(ctx, e.user, StartInput{})
	require.NoError(t, err)
}
