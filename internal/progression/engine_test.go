package progression

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"levelupsolo.app/server/internal/common"
	"levelupsolo.app/server/internal/model"
)

func TestCompleteTask_MediumTodoScenario(t *testing.T) {
	now := day(3, 10)
	stats := model.NewUserStats(1, 18, day(3, 7))

	r := NewResolver(DefaultRewardConfig())
	reward, err := r.Resolve(RewardRequest{
		Category:         model.CategoryTodo,
		Difficulty:       model.DifficultyMedium,
		Source:           model.SourceAI,
		EstimatedMinutes: 30,
	})
	require.NoError(t, err)

	task := model.Task{
		ID: 1, UserID: 1, Category: model.CategoryTodo, Difficulty: model.DifficultyMedium,
		ExpReward: reward.Exp, RequiredEnergyBalls: reward.EnergyCost,
	}

	out, err := CompleteTask(stats, task, now)
	require.NoError(t, err)
	assert.Equal(t, 16, out.Stats.EnergyBalls)
	assert.Equal(t, 20, out.Stats.Experience)
	assert.Equal(t, 1, out.Stats.Level)
	assert.Equal(t, 100, out.Stats.ExperienceToNext)
	assert.Equal(t, 1, out.Stats.TotalTasksCompleted)
	assert.Equal(t, 1, out.Stats.Streak)
	assert.True(t, out.Task.Completed)
	assert.False(t, out.LeveledUp())
	assert.False(t, out.EnergyReset)
}

func TestCompleteTask_TodoIsTerminal(t *testing.T) {
	stats := model.NewUserStats(1, 18, day(3, 7))
	task := model.Task{Category: model.CategoryTodo, ExpReward: 3, RequiredEnergyBalls: 1}

	out, err := CompleteTask(stats, task, day(3, 10))
	require.NoError(t, err)

	_, err = CompleteTask(out.Stats, out.Task, day(3, 11))
	require.ErrorIs(t, err, common.ErrTaskAlreadyCompleted)
}

func TestCompleteTask_InsufficientEnergyLeavesStateUnchanged(t *testing.T) {
	stats := model.NewUserStats(1, 18, day(3, 7))
	stats.EnergyBalls = 1
	task := model.Task{Category: model.CategoryTodo, ExpReward: 35, RequiredEnergyBalls: 4}

	out, err := CompleteTask(stats, task, day(3, 10))
	require.ErrorIs(t, err, common.ErrInsufficientEnergy)
	assert.Equal(t, stats, out.Stats)
	assert.Equal(t, task, out.Task)
}

func TestCompleteTask_HabitTwiceSameDay(t *testing.T) {
	stats := model.NewUserStats(1, 18, day(3, 7))
	habit := newHabit()
	habit.ExpReward = 2
	habit.RequiredEnergyBalls = 1

	first, err := CompleteTask(stats, habit, day(3, 9))
	require.NoError(t, err)

	second, err := CompleteTask(first.Stats, first.Task, day(3, 20))
	require.ErrorIs(t, err, common.ErrDuplicateCompletion)
	assert.Equal(t, first.Stats, second.Stats)
	assert.Equal(t, first.Task, second.Task)
}

func TestCompleteTask_HabitNextDayAppliesDailyReset(t *testing.T) {
	stats := model.NewUserStats(1, 18, day(3, 7))
	habit := newHabit()
	habit.RequiredEnergyBalls = 2

	first, err := CompleteTask(stats, habit, day(3, 9))
	require.NoError(t, err)
	require.Equal(t, 16, first.Stats.EnergyBalls)

	next, err := CompleteTask(first.Stats, first.Task, day(4, 9))
	require.NoError(t, err)
	assert.True(t, next.EnergyReset)
	assert.Equal(t, 16, next.Stats.EnergyBalls)
	assert.Equal(t, 2, next.Task.HabitStreak)
	assert.Equal(t, 2, next.Stats.Streak)
}

func TestCompleteTask_LevelUp(t *testing.T) {
	stats := model.NewUserStats(1, 18, day(3, 7))
	stats.Experience = 90
	task := model.Task{Category: model.CategoryTodo, ExpReward: 35, RequiredEnergyBalls: 1}

	out, err := CompleteTask(stats, task, day(3, 10))
	require.NoError(t, err)
	assert.Equal(t, 2, out.Stats.Level)
	assert.Equal(t, 25, out.Stats.Experience)
	assert.Equal(t, 115, out.Stats.ExperienceToNext)
	assert.Equal(t, 1, out.LevelsGained)
}

func TestUncompleteTask_OnlyHabits(t *testing.T) {
	_, err := UncompleteTask(model.Task{Category: model.CategoryTodo, Completed: true}, day(3, 10))
	require.ErrorIs(t, err, common.ErrInvalidUncomplete)

	h, err := CompleteHabit(newHabit(), day(3, 9))
	require.NoError(t, err)
	h, err = UncompleteTask(h, day(3, 9).Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, h.Completed)
}

func TestApplySkillExperience(t *testing.T) {
	skill := model.Skill{Name: "编程", Level: 1, ExperienceToNext: 100}
	skill = ApplySkillExperience(skill, 120, day(3, 10))
	assert.Equal(t, 2, skill.Level)
	assert.Equal(t, 20, skill.Experience)
	assert.Equal(t, 115, skill.ExperienceToNext)
}
