// Package model — records.go: цели, навыки, журнал активности, помидоры и пользователи.
package model

import "time"

// Goal — долгосрочная цель. Выполнение даёт опыт, энергию не тратит.
type Goal struct {
	ID          int64      `db:"id" json:"id"`
	UserID      int64      `db:"user_id" json:"userId"`
	Title       string     `db:"title" json:"title"`
	Description string     `db:"description" json:"description"`
	Progress    int        `db:"progress" json:"progress"` // 0..100
	TargetDate  *time.Time `db:"target_date" json:"targetDate"`
	ExpReward   int        `db:"exp_reward" json:"expReward"`
	Completed   bool       `db:"completed" json:"completed"`
	CompletedAt *time.Time `db:"completed_at" json:"completedAt"`
	CreatedAt   time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updatedAt"`
}

// Skill — уровень и опыт пользователя в отдельной категории навыков.
// Растёт по той же кривой, что и общий уровень, но независимо.
type Skill struct {
	ID               int64     `db:"id" json:"id"`
	UserID           int64     `db:"user_id" json:"userId"`
	Name             string    `db:"name" json:"name"`
	Level            int       `db:"level" json:"level"`
	Experience       int       `db:"experience" json:"experience"`
	ExperienceToNext int       `db:"experience_to_next" json:"experienceToNext"`
	CreatedAt        time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time `db:"updated_at" json:"updatedAt"`
}

// Действия журнала активности.
const (
	ActionTaskCompleted     = "task_completed"
	ActionHabitCompleted    = "habit_completed"
	ActionHabitUncompleted  = "habit_uncompleted"
	ActionGoalCompleted     = "goal_completed"
	ActionEnergyRestored    = "energy_restored"
	ActionPomodoroCompleted = "pomodoro_completed"
	ActionSkillCreated      = "skill_created"
)

// ActivityLog — запись журнала. Только добавляется, никогда не меняется.
type ActivityLog struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"userId"`
	TaskID    *int64    `db:"task_id" json:"taskId"`
	SkillID   *int64    `db:"skill_id" json:"skillId"`
	ExpGained int       `db:"exp_gained" json:"expGained"`
	Action    string    `db:"action" json:"action"`
	CreatedAt time.Time `db:"created_at" json:"timestamp"`
}

// PomodoroStatus — состояние сессии помидора.
type PomodoroStatus string

const (
	PomodoroActive    PomodoroStatus = "active"
	PomodoroCompleted PomodoroStatus = "completed"
	PomodoroCancelled PomodoroStatus = "cancelled"
)

// DefaultPomodoroMinutes — длина фокус-интервала по умолчанию.
const DefaultPomodoroMinutes = 25

// PomodoroSession — фокус-интервал. Таймер считается по EndsAt,
// а не тиками, поэтому переживает приостановку клиента.
type PomodoroSession struct {
	ID              int64          `db:"id" json:"id"`
	UserID          int64          `db:"user_id" json:"userId"`
	TaskID          *int64         `db:"task_id" json:"taskId"`
	DurationMinutes int            `db:"duration_minutes" json:"durationMinutes"`
	Status          PomodoroStatus `db:"status" json:"status"`
	StartedAt       time.Time      `db:"started_at" json:"startedAt"`
	EndsAt          time.Time      `db:"ends_at" json:"endsAt"`
	CompletedAt     *time.Time     `db:"completed_at" json:"completedAt"`
}

// User — учётная запись. Демо-сессии записей User не имеют.
type User struct {
	ID                 int64      `db:"id" json:"id"`
	Email              string     `db:"email" json:"email"`
	DisplayName        string     `db:"display_name" json:"displayName"`
	PasswordHash       string     `db:"password_hash" json:"-"`
	TelegramChatID     *int64     `db:"telegram_chat_id" json:"-"`
	TelegramLinkCode   *string    `db:"telegram_link_code" json:"-"`
	TelegramLinkExpiry *time.Time `db:"telegram_link_expires_at" json:"-"`
	CreatedAt          time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updatedAt"`
}
