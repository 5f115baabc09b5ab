package tasks

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"levelupsolo.app/server/internal/common"
	"levelupsolo.app/server/internal/events"
	"levelupsolo.app/server/internal/model"
	"levelupsolo.app/server/internal/progression"
	"levelupsolo.app/server/internal/storage"
)

var shanghai = time.FixedZone("CST", 8*60*60)

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Publish(_ int64, ev events.Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

type fixture struct {
	svc   *Service
	store *storage.MemoryStore
	clock *common.FakeClock
	pub   *recorder
	user  int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := common.NewFakeClock(time.Date(2026, 3, 5, 10, 0, 0, 0, shanghai))
	store := storage.NewMemoryStore(clock)
	pub := &recorder{}
	svc := NewService(storage.NewRouter(nil, store), progression.NewResolver(progression.DefaultRewardConfig()), clock, 18, pub)
	return &fixture{svc: svc, store: store, clock: clock, pub: pub, user: store.NewDemoUserID()}
}

func intPtr(v int) *int { return &v }

func TestCreate_ResolvesReward(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	task, err := f.svc.Create(ctx, f.user, CreateInput{Title: "  写周报 ", Difficulty: "medium", EstimatedMinutes: 30}, model.SourceManual)
	require.NoError(t, err)
	assert.Equal(t, "写周报", task.Title)
	assert.Equal(t, model.CategoryTodo, task.Category)
	assert.Equal(t, 3, task.ExpReward)
	assert.Equal(t, 2, task.RequiredEnergyBalls)

	ai, err := f.svc.Create(ctx, f.user, CreateInput{Title: "学习Go", Difficulty: "hard", EstimatedMinutes: 60}, model.SourceAI)
	require.NoError(t, err)
	assert.Equal(t, 35, ai.ExpReward)
	assert.Equal(t, 4, ai.RequiredEnergyBalls)
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, f.user, CreateInput{Title: "   "}, model.SourceManual)
	assert.True(t, common.IsInvalidInput(err))

	_, err = f.svc.Create(ctx, f.user, CreateInput{Title: "x", Category: "weekly"}, model.SourceManual)
	assert.True(t, common.IsInvalidInput(err))

	_, err = f.svc.Create(ctx, f.user, CreateInput{Title: "x", Difficulty: "epic"}, model.SourceManual)
	assert.True(t, common.IsInvalidInput(err))

	_, err = f.svc.Create(ctx, f.user, CreateInput{Title: "x", EstimatedMinutes: -1}, model.SourceManual)
	assert.True(t, common.IsInvalidInput(err))
}

func TestComplete_SpendsEnergyAndLogs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	task, err := f.svc.Create(ctx, f.user, CreateInput{Title: "跑步", Difficulty: "medium", EstimatedMinutes: 30, Skill: "健身"}, model.SourceAI)
	require.NoError(t, err)

	res, err := f.svc.Complete(ctx, f.user, task.ID)
	require.NoError(t, err)
	assert.Equal(t, 16, res.Stats.EnergyBalls)
	assert.Equal(t, 20, res.Stats.Experience)
	assert.Equal(t, 20, res.ExpGained)
	assert.Equal(t, 2, res.EnergySpent)
	assert.True(t, res.Task.Completed)
	assert.False(t, res.LeveledUp)
	require.NotNil(t, res.Skill)
	assert.Equal(t, "健身", res.Skill.Name)
	assert.Equal(t, 20, res.Skill.Experience)

	logs, err := f.store.ListActivity(ctx, f.user, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, model.ActionTaskCompleted, logs[0].Action)
	assert.Equal(t, 20, logs[0].ExpGained)
	require.NotNil(t, logs[0].SkillID)
	assert.Equal(t, res.Skill.ID, *logs[0].SkillID)

	assert.Equal(t, []string{events.TaskCompleted}, f.pub.types())
}

func TestComplete_TodoTwiceRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	task, err := f.svc.Create(ctx, f.user, CreateInput{Title: "交房租"}, model.SourceManual)
	require.NoError(t, err)
	_, err = f.svc.Complete(ctx, f.user, task.ID)
	require.NoError(t, err)

	_, err = f.svc.Complete(ctx, f.user, task.ID)
	require.ErrorIs(t, err, common.ErrTaskAlreadyCompleted)

	st, err := f.store.GetStats(ctx, f.user)
	require.NoError(t, err)
	assert.Equal(t, 1, st.TotalTasksCompleted)
}

func TestComplete_InsufficientEnergyRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	big, err := f.svc.Create(ctx, f.user, CreateInput{Title: "马拉松", RequiredEnergyBalls: intPtr(18)}, model.SourceManual)
	require.NoError(t, err)
	small, err := f.svc.Create(ctx, f.user, CreateInput{Title: "拉伸", RequiredEnergyBalls: intPtr(1)}, model.SourceManual)
	require.NoError(t, err)

	_, err = f.svc.Complete(ctx, f.user, big.ID)
	require.NoError(t, err)

	_, err = f.svc.Complete(ctx, f.user, small.ID)
	require.ErrorIs(t, err, common.ErrInsufficientEnergy)

	got, err := f.store.GetTask(ctx, f.user, small.ID)
	require.NoError(t, err)
	assert.False(t, got.Completed)

	logs, err := f.store.ListActivity(ctx, f.user, 10)
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

func TestComplete_LevelUpPublishesEvent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	task, err := f.svc.Create(ctx, f.user, CreateInput{Title: "期末考试", ExpReward: intPtr(150), RequiredEnergyBalls: intPtr(1)}, model.SourceManual)
	require.NoError(t, err)

	res, err := f.svc.Complete(ctx, f.user, task.ID)
	require.NoError(t, err)
	assert.True(t, res.LeveledUp)
	assert.Equal(t, 2, res.NewLevel)
	assert.Equal(t, 50, res.Stats.Experience)
	assert.Equal(t, []string{events.TaskCompleted, events.LevelUp}, f.pub.types())
}

func TestComplete_OtherUsersTaskNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	task, err := f.svc.Create(ctx, f.user, CreateInput{Title: "私人任务"}, model.SourceManual)
	require.NoError(t, err)

	other := f.store.NewDemoUserID()
	_, err = f.svc.Complete(ctx, other, task.ID)
	require.ErrorIs(t, err, common.ErrTaskNotFound)
}

func TestHabit_CompleteUncompleteNextDay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	habit, err := f.svc.Create(ctx, f.user, CreateInput{Title: "冥想", Category: "habit", Difficulty: "easy", RequiredEnergyBalls: intPtr(1)}, model.SourceManual)
	require.NoError(t, err)

	_, err = f.svc.Complete(ctx, f.user, habit.ID)
	require.NoError(t, err)
	_, err = f.svc.Complete(ctx, f.user, habit.ID)
	require.ErrorIs(t, err, common.ErrDuplicateCompletion)

	undone, err := f.svc.Uncomplete(ctx, f.user, habit.ID)
	require.NoError(t, err)
	assert.False(t, undone.Completed)

	// Опыт за отменённое выполнение остаётся
	st, err := f.store.GetStats(ctx, f.user)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Experience)

	f.clock.Advance(24 * time.Hour)
	res, err := f.svc.Complete(ctx, f.user, habit.ID)
	require.NoError(t, err)
	assert.Equal(t, 17, res.Stats.EnergyBalls, "новый день: энергия восполнена и списан 1 шар")

	_, err = f.svc.Uncomplete(ctx, f.user, habit.ID)
	require.NoError(t, err)
}

func TestUncomplete_TodoRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	task, err := f.svc.Create(ctx, f.user, CreateInput{Title: "买菜"}, model.SourceManual)
	require.NoError(t, err)
	_, err = f.svc.Complete(ctx, f.user, task.ID)
	require.NoError(t, err)

	_, err = f.svc.Uncomplete(ctx, f.user, task.ID)
	require.ErrorIs(t, err, common.ErrInvalidUncomplete)
}

func TestUpdate_RecalculatesReward(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	task, err := f.svc.Create(ctx, f.user, CreateInput{Title: "读论文", Difficulty: "easy", EstimatedMinutes: 15}, model.SourceManual)
	require.NoError(t, err)
	require.Equal(t, 2, task.ExpReward)

	hard := "hard"
	minutes := 45
	got, err := f.svc.Update(ctx, f.user, task.ID, UpdateInput{Difficulty: &hard, EstimatedMinutes: &minutes})
	require.NoError(t, err)
	assert.Equal(t, 4, got.ExpReward)
	assert.Equal(t, 3, got.RequiredEnergyBalls)

	title := "读两篇论文"
	got, err = f.svc.Update(ctx, f.user, task.ID, UpdateInput{Title: &title, ExpReward: intPtr(9)})
	require.NoError(t, err)
	assert.Equal(t, title, got.Title)
	assert.Equal(t, 9, got.ExpReward)
	assert.Equal(t, 3, got.RequiredEnergyBalls, "энергия без изменений")

	value := 1.5
	_, err = f.svc.Update(ctx, f.user, task.ID, UpdateInput{HabitValue: &value})
	assert.True(t, common.IsInvalidInput(err))
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	task, err := f.svc.Create(ctx, f.user, CreateInput{Title: "临时"}, model.SourceManual)
	require.NoError(t, err)
	require.NoError(t, f.svc.Delete(ctx, f.user, task.ID))

	_, err = f.svc.Get(ctx, f.user, task.ID)
	require.ErrorIs(t, err, common.ErrTaskNotFound)
}

func TestCreate_RewardLimits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, in := range []CreateInput{
		{Title: "x", ExpReward: intPtr(math.MaxInt)},
		{Title: "x", ExpReward: intPtr(progression.MaxTaskExpReward + 1)},
		{Title: "x", RequiredEnergyBalls: intPtr(19)},
		{Title: "x", EstimatedMinutes: math.MaxInt},
	} {
		_, err := f.svc.Create(ctx, f.user, in, model.SourceManual)
		assert.True(t, common.IsInvalidInput(err), "input %+v: %v", in, err)
	}

	task, err := f.svc.Create(ctx, f.user, CreateInput{Title: "整理书架"}, model.SourceManual)
	require.NoError(t, err)
	_, err = f.svc.Update(ctx, f.user, task.ID, UpdateInput{ExpReward: intPtr(math.MaxInt)})
	assert.True(t, common.IsInvalidInput(err))

	got, err := f.store.GetTask(ctx, f.user, task.ID)
	require.NoError(t, err)
	assert.Equal(t, task.ExpReward, got.ExpReward)
}

func TestComplete_MaxRewardKeepsExperienceNormalized(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		task, err := f.svc.Create(ctx, f.user, CreateInput{
			Title: "大项目", ExpReward: intPtr(progression.MaxTaskExpReward), RequiredEnergyBalls: intPtr(1),
		}, model.SourceManual)
		require.NoError(t, err)

		res, err := f.svc.Complete(ctx, f.user, task.ID)
		require.NoError(t, err)
		require.GreaterOrEqual(t, res.Stats.Experience, 0)
		require.Less(t, res.Stats.Experience, res.Stats.ExperienceToNext)
	}
}

func TestCreate_LongTaskStaysAffordable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	task, err := f.svc.Create(ctx, f.user, CreateInput{Title: "搬家", EstimatedMinutes: 300}, model.SourceManual)
	require.NoError(t, err)
	assert.Equal(t, 18, task.RequiredEnergyBalls)

	res, err := f.svc.Complete(ctx, f.user, task.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Stats.EnergyBalls)
}

func TestList_HabitCompletedOnlyToday(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	habit, err := f.svc.Create(ctx, f.user, CreateInput{Title: "背单词", Category: "habit", RequiredEnergyBalls: intPtr(1)}, model.SourceManual)
	require.NoError(t, err)
	_, err = f.svc.Complete(ctx, f.user, habit.ID)
	require.NoError(t, err)

	list, err := f.svc.List(ctx, f.user)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].Completed)

	// Ночной сброс ещё не прошёл, но вчерашняя отметка уже не действует
	f.clock.Advance(24 * time.Hour)
	list, err = f.svc.List(ctx, f.user)
	require.NoError(t, err)
	assert.False(t, list[0].Completed)
	assert.NotNil(t, list[0].LastCompletedDate)

	got, err := f.svc.Get(ctx, f.user, habit.ID)
	require.NoError(t, err)
	assert.False(t, got.Completed)
}

// Отмена стирает дату выполнения, поэтому повторное выполнение в тот же
// день начинает серию заново и снова даёт опыт (возврата нет).
func TestHabit_RecompleteAfterUndoRestartsStreak(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	habit, err := f.svc.Create(ctx, f.user, CreateInput{Title: "冥想", Category: "habit", Difficulty: "easy", RequiredEnergyBalls: intPtr(1)}, model.SourceManual)
	require.NoError(t, err)

	_, err = f.svc.Complete(ctx, f.user, habit.ID)
	require.NoError(t, err)
	f.clock.Advance(24 * time.Hour)

	res, err := f.svc.Complete(ctx, f.user, habit.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Task.HabitStreak)

	_, err = f.svc.Uncomplete(ctx, f.user, habit.ID)
	require.NoError(t, err)

	res, err = f.svc.Complete(ctx, f.user, habit.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Task.HabitStreak)
	assert.Equal(t, 6, res.Stats.Experience)
	assert.Equal(t, 3, res.Stats.TotalTasksCompleted)
}
