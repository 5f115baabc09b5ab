// Package progression — engine.go собирает правила в единый поток выполнения
// задачи: стоимость → энергия → серия привычки → опыт → статистика.
package progression

import (
	"time"

	"levelupsolo.app/server/internal/common"
	"levelupsolo.app/server/internal/model"
)

// Outcome — результат выполнения задачи.
type Outcome struct {
	Stats        model.UserStats `json:"stats"`
	Task         model.Task      `json:"task"`
	ExpGained    int             `json:"expGained"`
	EnergySpent  int             `json:"energySpent"`
	LevelsGained int             `json:"levelsGained"`
	EnergyReset  bool            `json:"energyReset"` // Перед выполнением сработал ежедневный сброс
}

// LeveledUp сообщает, был ли рост уровня.
func (o Outcome) LeveledUp() bool { return o.LevelsGained > 0 }

// CompleteTask применяет выполнение задачи к статистике пользователя.
//
// Порядок:
//  1. ежедневный сброс энергии, если наступил новый день
//  2. проверка повтора (привычка сегодня / терминальная задача)
//  3. проверка и списание энергии
//  4. серия привычки (для привычек)
//  5. опыт через кривую уровней
//  6. счётчик задач и общая серия
//
// При отказе на шагах 2–3 возвращается ошибка, а задача и статистика
// остаются как были (кроме сброса энергии из шага 1, который
// идемпотентен в пределах дня).
func CompleteTask(stats model.UserStats, task model.Task, now time.Time) (Outcome, error) {
	stats, reset := DailyResetIfNeeded(stats, now)
	out := Outcome{Stats: stats, Task: task, EnergyReset: reset}

	if task.IsHabit() {
		if StateAt(task.LastCompletedDate, now) == CompletedToday {
			return out, common.ErrDuplicateCompletion
		}
	} else if task.Completed {
		return out, common.ErrTaskAlreadyCompleted
	}

	cost := task.RequiredEnergyBalls
	spent, err := Spend(stats, cost, now)
	if err != nil {
		return out, err
	}

	updated := task
	if task.IsHabit() {
		if updated, err = CompleteHabit(task, now); err != nil {
			return out, err
		}
	} else {
		completedAt := now
		updated.Completed = true
		updated.CompletedAt = &completedAt
		updated.LastCompletedDate = &completedAt
		updated.UpdatedAt = now
	}

	next := ApplyStatsExperience(spent, task.ExpReward, now)
	next.TotalTasksCompleted++
	next = AdvanceDailyStreak(next, now)

	return Outcome{
		Stats:        next,
		Task:         updated,
		ExpGained:    task.ExpReward,
		EnergySpent:  cost,
		LevelsGained: next.Level - spent.Level,
		EnergyReset:  reset,
	}, nil
}

// UncompleteTask отменяет сегодняшнее выполнение привычки.
// Опыт и энергия не возвращаются. Для обычных задач — ErrInvalidUncomplete.
func UncompleteTask(task model.Task, now time.Time) (model.Task, error) {
	if !task.IsHabit() {
		return task, common.ErrInvalidUncomplete
	}
	return UncompleteHabit(task, now)
}

// ApplyStatsExperience добавляет опыт к статистике пользователя.
func ApplyStatsExperience(stats model.UserStats, delta int, now time.Time) model.UserStats {
	if delta <= 0 {
		return stats
	}
	stats.Level, stats.Experience, stats.ExperienceToNext = ApplyExperience(stats.Level, stats.Experience, delta)
	stats.UpdatedAt = now
	return stats
}

// ApplySkillExperience добавляет опыт навыку по той же кривой.
func ApplySkillExperience(skill model.Skill, delta int, now time.Time) model.Skill {
	if delta <= 0 {
		return skill
	}
	skill.Level, skill.Experience, skill.ExperienceToNext = ApplyExperience(skill.Level, skill.Experience, delta)
	skill.UpdatedAt = now
	return skill
}
