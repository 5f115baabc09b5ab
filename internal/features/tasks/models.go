// Package tasks управляет задачами пользователя: создание с расчётом
// награды, редактирование, выполнение и отмена выполнения привычек.
// models.go описывает входные данные и результаты операций.
package tasks

import (
	"strings"
	"unicode/utf8"

	"levelupsolo.app/server/internal/common"
	"levelupsolo.app/server/internal/model"
)

// MaxTitleLength — предел длины заголовка в символах.
const MaxTitleLength = 200

// CreateInput — данные новой задачи.
type CreateInput struct {
	Title               string `json:"title"`
	Description         string `json:"description"`
	Category            string `json:"category"`
	Difficulty          string `json:"difficulty"`
	Skill               string `json:"skill"`
	EstimatedMinutes    int    `json:"estimatedMinutes"`
	ExpReward           *int   `json:"expReward"`
	RequiredEnergyBalls *int   `json:"requiredEnergyBalls"`
}

// UpdateInput — частичное изменение задачи. nil означает «не менять».
type UpdateInput struct {
	Title               *string  `json:"title"`
	Description         *string  `json:"description"`
	Difficulty          *string  `json:"difficulty"`
	Skill               *string  `json:"skill"`
	EstimatedMinutes    *int     `json:"estimatedMinutes"`
	ExpReward           *int     `json:"expReward"`
	RequiredEnergyBalls *int     `json:"requiredEnergyBalls"`
	HabitValue          *float64 `json:"habitValue"`
}

// CompletionResult — ответ на выполнение задачи.
type CompletionResult struct {
	Task        model.Task      `json:"task"`
	Stats       model.UserStats `json:"stats"`
	ExpGained   int             `json:"expGained"`
	EnergySpent int             `json:"energySpent"`
	LeveledUp   bool            `json:"leveledUp"`
	NewLevel    int             `json:"newLevel"`
	Skill       *model.Skill    `json:"skill,omitempty"`
}

func normalizeTitle(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", common.InvalidInput("任务标题不能为空")
	}
	if utf8.RuneCountInString(s) > MaxTitleLength {
		return "", common.InvalidInput("任务标题过长")
	}
	return s, nil
}
