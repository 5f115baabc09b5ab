// Package progression — habit.go отслеживает серии привычек.
//
// Состояние привычки вычисляется из даты последнего выполнения и «сегодня»
// синхронно при каждом запросе. Таймеров и фонового тиканья нет.
package progression

import (
	"math"
	"time"

	"levelupsolo.app/server/internal/common"
	"levelupsolo.app/server/internal/model"
)

// HabitState — положение привычки относительно сегодняшнего дня.
type HabitState int

const (
	NeverCompleted HabitState = iota
	CompletedToday
	CompletedYesterdayNotToday
	CompletedEarlierNotToday
)

func (s HabitState) String() string {
	switch s {
	case NeverCompleted:
		return "never_completed"
	case CompletedToday:
		return "completed_today"
	case CompletedYesterdayNotToday:
		return "completed_yesterday"
	case CompletedEarlierNotToday:
		return "completed_earlier"
	}
	return "unknown"
}

const (
	// HabitValueStep — прирост «силы» привычки за выполнение
	HabitValueStep = 0.25
	// HabitValueMax — верхняя граница силы привычки
	HabitValueMax = 3.0
	// HabitValueMin — нижняя граница силы привычки
	HabitValueMin = -3.0
)

// StateAt определяет состояние по дате последнего выполнения.
// Календарные дни считаются в часовом поясе now.
// Дата из будущего (сбитые часы клиента) считается сегодняшней.
func StateAt(lastCompleted *time.Time, now time.Time) HabitState {
	if lastCompleted == nil || lastCompleted.IsZero() {
		return NeverCompleted
	}
	switch days := common.DaysBetween(*lastCompleted, now, now.Location()); {
	case days <= 0:
		return CompletedToday
	case days == 1:
		return CompletedYesterdayNotToday
	default:
		return CompletedEarlierNotToday
	}
}

// CompleteHabit применяет выполнение к привычке.
//
// Переходы:
//   - CompletedToday → ErrDuplicateCompletion, привычка не меняется
//   - CompletedYesterdayNotToday → серия + 1
//   - NeverCompleted / CompletedEarlierNotToday → серия = 1
//
// В двух последних случаях сила растёт на 0.25 (не выше 3),
// дата последнего выполнения = now.
func CompleteHabit(task model.Task, now time.Time) (model.Task, error) {
	switch StateAt(task.LastCompletedDate, now) {
	case CompletedToday:
		return task, common.ErrDuplicateCompletion
	case CompletedYesterdayNotToday:
		task.HabitStreak++
	default:
		task.HabitStreak = 1
	}

	task.HabitValue = ClampHabitValue(task.HabitValue+HabitValueStep, 0)
	completedAt := now
	task.LastCompletedDate = &completedAt
	task.CompletedAt = &completedAt
	task.Completed = true
	task.UpdatedAt = now
	return task, nil
}

// UncompleteHabit отменяет выполнение привычки. Разрешено только в тот же
// день, иначе ErrInvalidUncomplete.
func UncompleteHabit(task model.Task, now time.Time) (model.Task, error) {
	if StateAt(task.LastCompletedDate, now) != CompletedToday {
		return task, common.ErrInvalidUncomplete
	}
	task.Completed = false
	task.LastCompletedDate = nil
	task.CompletedAt = nil
	task.UpdatedAt = now
	return task, nil
}

// ClampHabitValue держит силу привычки в [min, 3]. Поток выполнения
// использует min = 0, ручное редактирование — min = -3.
func ClampHabitValue(v, min float64) float64 {
	return math.Max(min, math.Min(v, HabitValueMax))
}

// AdvanceDailyStreak обновляет общую серию пользователя (дни подряд хотя бы
// с одним выполнением) по тем же правилам, что и серия привычки, но без
// ошибки на повтор: второе выполнение за день серию не меняет.
func AdvanceDailyStreak(stats model.UserStats, now time.Time) model.UserStats {
	switch StateAt(stats.LastActiveDate, now) {
	case CompletedToday:
		return stats
	case CompletedYesterdayNotToday:
		stats.Streak++
	default:
		stats.Streak = 1
	}
	active := now
	stats.LastActiveDate = &active
	stats.UpdatedAt = now
	return stats
}

// CurrentDailyStreak возвращает серию, которую стоит показывать сейчас:
// если последний активный день был раньше вчерашнего, серия уже прервана.
func CurrentDailyStreak(stats model.UserStats, now time.Time) int {
	switch StateAt(stats.LastActiveDate, now) {
	case CompletedToday, CompletedYesterdayNotToday:
		return stats.Streak
	}
	return 0
}
