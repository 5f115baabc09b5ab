// Package model — task.go описывает задачи: привычки, ежедневные и разовые.
package model

import (
	"fmt"
	"strings"
	"time"
)

// Category — тип задачи.
type Category string

const (
	CategoryHabit Category = "habit" // Долгоживущая, выполняется многократно по дням
	CategoryDaily Category = "daily" // Сбрасывается ежедневным джобом
	CategoryTodo  Category = "todo"  // Выполняется один раз, дальше терминальна
)

// IsValid проверяет, что категория известна.
func (c Category) IsValid() bool {
	switch c {
	case CategoryHabit, CategoryDaily, CategoryTodo:
		return true
	}
	return false
}

// ParseCategory разбирает категорию из пользовательского ввода.
// Пустая строка означает todo.
func ParseCategory(s string) (Category, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return CategoryTodo, nil
	}
	c := Category(s)
	if !c.IsValid() {
		return "", fmt.Errorf("unknown category %q", s)
	}
	return c, nil
}

// Difficulty — сложность задачи, определяет награду в опыте.
type Difficulty string

const (
	DifficultyTrivial Difficulty = "trivial"
	DifficultyEasy    Difficulty = "easy"
	DifficultyMedium  Difficulty = "medium"
	DifficultyHard    Difficulty = "hard"
)

// Difficulties — все сложности в порядке возрастания.
var Difficulties = []Difficulty{DifficultyTrivial, DifficultyEasy, DifficultyMedium, DifficultyHard}

// IsValid проверяет, что сложность известна.
func (d Difficulty) IsValid() bool {
	switch d {
	case DifficultyTrivial, DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// ParseDifficulty разбирает сложность. Пустая строка означает medium.
func ParseDifficulty(s string) (Difficulty, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return DifficultyMedium, nil
	}
	d := Difficulty(s)
	if !d.IsValid() {
		return "", fmt.Errorf("unknown difficulty %q", s)
	}
	return d, nil
}

// TaskSource — путь, которым задача была создана.
// От него зависит таблица наград.
type TaskSource string

const (
	SourceManual TaskSource = "manual"
	SourceAI     TaskSource = "ai"
)

// Task — задача пользователя.
type Task struct {
	ID                  int64      `db:"id" json:"id"`
	UserID              int64      `db:"user_id" json:"userId"`
	Title               string     `db:"title" json:"title"`
	Description         string     `db:"description" json:"description"`
	Category            Category   `db:"category" json:"category"`
	Difficulty          Difficulty `db:"difficulty" json:"difficulty"`
	Source              TaskSource `db:"source" json:"source"`
	Skill               string     `db:"skill" json:"skill,omitempty"` // Навык, которому идёт опыт (может быть пустым)
	EstimatedMinutes    int        `db:"estimated_minutes" json:"estimatedMinutes"`
	ExpReward           int        `db:"exp_reward" json:"expReward"`
	RequiredEnergyBalls int        `db:"required_energy_balls" json:"requiredEnergyBalls"`
	Completed           bool       `db:"completed" json:"completed"`
	HabitStreak         int        `db:"habit_streak" json:"habitStreak"`
	HabitValue          float64    `db:"habit_value" json:"habitValue"`
	LastCompletedDate   *time.Time `db:"last_completed_date" json:"lastCompletedDate"`
	CompletedAt         *time.Time `db:"completed_at" json:"completedAt"`
	CreatedAt           time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt           time.Time  `db:"updated_at" json:"updatedAt"`
}

// IsHabit сообщает, что задача — привычка.
func (t Task) IsHabit() bool { return t.Category == CategoryHabit }
