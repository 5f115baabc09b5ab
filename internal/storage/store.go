// Package storage — слой хранения прогресса пользователя.
//
// Store — единый интерфейс для статистики, задач, целей, навыков, журнала
// активности и помидоров. Две реализации:
//   - PostgresStore — основная, на pgx
//   - MemoryStore — для демо-сессий, живёт только в памяти процесса
//
// Router выбирает реализацию по id пользователя (демо-id отрицательные).
// Сервисы не знают, с каким хранилищем работают.
package storage

import (
	"context"
	"time"

	"levelupsolo.app/server/internal/model"
)

// Store — операции хранения. Методы чтения одиночных записей возвращают
// common.ErrNotFound (для задач — common.ErrTaskNotFound), если запись
// не найдена или принадлежит другому пользователю.
//
// Внутри InTx чтения GetStats/EnsureStats/GetTask/GetGoal/GetSkillByName
// блокируют строку до конца транзакции. Параллельные выполнения задач
// одного пользователя выстраиваются в очередь.
type Store interface {
	// InTx выполняет fn как единицу работы. Ошибка из fn откатывает все
	// изменения. Внутри fn нужно пользоваться переданным Store.
	InTx(ctx context.Context, fn func(tx Store) error) error

	StatsStore
	TaskStore
	GoalStore
	SkillStore
	ActivityStore
	PomodoroStore
	MaintenanceStore
}

// StatsStore — статистика пользователя (одна запись на пользователя).
type StatsStore interface {
	// EnsureStats возвращает статистику, создавая её из defaults при первом обращении.
	EnsureStats(ctx context.Context, defaults model.UserStats) (model.UserStats, error)
	GetStats(ctx context.Context, userID int64) (model.UserStats, error)
	SaveStats(ctx context.Context, stats model.UserStats) error
}

// TaskStore — задачи.
type TaskStore interface {
	ListTasks(ctx context.Context, userID int64) ([]model.Task, error)
	GetTask(ctx context.Context, userID, taskID int64) (model.Task, error)
	CreateTask(ctx context.Context, task model.Task) (model.Task, error)
	UpdateTask(ctx context.Context, task model.Task) error
	DeleteTask(ctx context.Context, userID, taskID int64) error
}

// GoalStore — цели.
type GoalStore interface {
	ListGoals(ctx context.Context, userID int64) ([]model.Goal, error)
	GetGoal(ctx context.Context, userID, goalID int64) (model.Goal, error)
	CreateGoal(ctx context.Context, goal model.Goal) (model.Goal, error)
	UpdateGoal(ctx context.Context, goal model.Goal) error
	DeleteGoal(ctx context.Context, userID, goalID int64) error
}

// SkillStore — навыки. Имя навыка уникально в пределах пользователя.
type SkillStore interface {
	ListSkills(ctx context.Context, userID int64) ([]model.Skill, error)
	GetSkillByName(ctx context.Context, userID int64, name string) (model.Skill, error)
	CreateSkill(ctx context.Context, skill model.Skill) (model.Skill, error)
	UpdateSkill(ctx context.Context, skill model.Skill) error
}

// ActivityStore — журнал активности (только добавление).
type ActivityStore interface {
	AppendActivity(ctx context.Context, entry model.ActivityLog) (model.ActivityLog, error)
	// ListActivity возвращает последние записи, новые первыми.
	ListActivity(ctx context.Context, userID int64, limit int) ([]model.ActivityLog, error)
}

// PomodoroStore — фокус-сессии.
type PomodoroStore interface {
	CreatePomodoro(ctx context.Context, s model.PomodoroSession) (model.PomodoroSession, error)
	GetPomodoro(ctx context.Context, userID, sessionID int64) (model.PomodoroSession, error)
	// ActivePomodoro возвращает активную сессию или common.ErrNotFound.
	ActivePomodoro(ctx context.Context, userID int64) (model.PomodoroSession, error)
	UpdatePomodoro(ctx context.Context, s model.PomodoroSession) error
	ListPomodoros(ctx context.Context, userID int64, limit int) ([]model.PomodoroSession, error)
}

// MaintenanceStore — пакетные операции для cron-джобов.
// dayStart — начало текущих суток в часовом поясе приложения.
type MaintenanceStore interface {
	// ResetEnergyAll восполняет энергию всем, чей последний сброс был до dayStart.
	ResetEnergyAll(ctx context.Context, dayStart, now time.Time) (int64, error)
	// ResetDailyTasks снимает отметку с ежедневных задач и привычек,
	// выполненных до dayStart. Дата последнего выполнения привычки сохраняется.
	ResetDailyTasks(ctx context.Context, dayStart, now time.Time) (int64, error)
	// PendingHabits возвращает число невыполненных сегодня привычек по пользователям.
	PendingHabits(ctx context.Context, dayStart time.Time) (map[int64]int, error)
}

// DefaultActivityLimit — сколько записей журнала отдаётся по умолчанию.
const DefaultActivityLimit = 50
