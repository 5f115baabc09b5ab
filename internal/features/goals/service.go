// Package goals — долгосрочные цели пользователя.
//
// Цель не тратит энергию. Выполнение начисляет опыт в общий уровень
// через движок прогрессии и пишет запись в журнал активности.
package goals

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	log "github.com/sirupsen/logrus"

	"levelupsolo.app/server/internal/common"
	"levelupsolo.app/server/internal/events"
	"levelupsolo.app/server/internal/features/stats"
	"levelupsolo.app/server/internal/model"
	"levelupsolo.app/server/internal/progression"
	"levelupsolo.app/server/internal/storage"
)

const (
	// DefaultExpReward — награда за цель, если пользователь её не указал
	DefaultExpReward = 50
	// MaxExpReward — потолок награды за одну цель
	MaxExpReward = 1000
	maxTitleLen  = 200
)

// CreateInput — данные новой цели.
type CreateInput struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	TargetDate  *time.Time `json:"targetDate"`
	ExpReward   *int       `json:"expReward"`
}

// UpdateInput — частичное изменение цели.
type UpdateInput struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Progress    *int       `json:"progress"`
	TargetDate  *time.Time `json:"targetDate"`
	ExpReward   *int       `json:"expReward"`
}

// CompletionResult — ответ на выполнение цели.
type CompletionResult struct {
	Goal      model.Goal      `json:"goal"`
	Stats     model.UserStats `json:"stats"`
	ExpGained int             `json:"expGained"`
	LeveledUp bool            `json:"leveledUp"`
}

// Service управляет целями.
type Service struct {
	stores    *storage.Router
	clock     common.Clock
	maxEnergy int
	pub       events.Publisher
}

func NewService(stores *storage.Router, clock common.Clock, maxEnergy int, pub events.Publisher) *Service {
	if pub == nil {
		pub = events.Nop{}
	}
	return &Service{stores: stores, clock: clock, maxEnergy: maxEnergy, pub: pub}
}

func (s *Service) List(ctx context.Context, userID int64) ([]model.Goal, error) {
	return s.stores.For(userID).ListGoals(ctx, userID)
}

// Create создаёт цель.
func (s *Service) Create(ctx context.Context, userID int64, in CreateInput) (model.Goal, error) {
	title, err := validTitle(in.Title)
	if err != nil {
		return model.Goal{}, err
	}
	exp := DefaultExpReward
	if in.ExpReward != nil {
		if exp, err = validReward(*in.ExpReward); err != nil {
			return model.Goal{}, err
		}
	}

	now := s.clock.Now()
	return s.stores.For(userID).CreateGoal(ctx, model.Goal{
		UserID:      userID,
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		TargetDate:  in.TargetDate,
		ExpReward:   exp,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}

// Update меняет цель. Прогресс ограничивается диапазоном 0..100;
// достижение 100 цель не завершает, для этого есть Complete.
func (s *Service) Update(ctx context.Context, userID, goalID int64, in UpdateInput) (model.Goal, error) {
	var out model.Goal
	err := s.stores.For(userID).InTx(ctx, func(tx storage.Store) error {
		goal, err := tx.GetGoal(ctx, userID, goalID)
		if err != nil {
			return err
		}
		if goal.Completed {
			return common.ErrGoalAlreadyCompleted
		}
		if in.Title != nil {
			if goal.Title, err = validTitle(*in.Title); err != nil {
				return err
			}
		}
		if in.Description != nil {
			goal.Description = strings.TrimSpace(*in.Description)
		}
		if in.Progress != nil {
			goal.Progress = min(max(*in.Progress, 0), 100)
		}
		if in.TargetDate != nil {
			goal.TargetDate = in.TargetDate
		}
		if in.ExpReward != nil {
			if goal.ExpReward, err = validReward(*in.ExpReward); err != nil {
				return err
			}
		}
		goal.UpdatedAt = s.clock.Now()
		if err := tx.UpdateGoal(ctx, goal); err != nil {
			return err
		}
		out = goal
		return nil
	})
	return out, err
}

func (s *Service) Delete(ctx context.Context, userID, goalID int64) error {
	return s.stores.For(userID).DeleteGoal(ctx, userID, goalID)
}

// Complete завершает цель и начисляет опыт.
func (s *Service) Complete(ctx context.Context, userID, goalID int64) (CompletionResult, error) {
	now := s.clock.Now()
	var res CompletionResult

	err := s.stores.For(userID).InTx(ctx, func(tx storage.Store) error {
		st, err := stats.Load(ctx, tx, userID, s.maxEnergy, now)
		if err != nil {
			return err
		}
		goal, err := tx.GetGoal(ctx, userID, goalID)
		if err != nil {
			return err
		}
		if goal.Completed {
			return common.ErrGoalAlreadyCompleted
		}

		completedAt := now
		goal.Completed = true
		goal.CompletedAt = &completedAt
		goal.Progress = 100
		goal.UpdatedAt = now

		next := progression.ApplyStatsExperience(st, goal.ExpReward, now)
		if err := tx.SaveStats(ctx, next); err != nil {
			return err
		}
		if err := tx.UpdateGoal(ctx, goal); err != nil {
			return err
		}
		if _, err := tx.AppendActivity(ctx, model.ActivityLog{
			UserID:    userID,
			ExpGained: goal.ExpReward,
			Action:    model.ActionGoalCompleted,
			CreatedAt: now,
		}); err != nil {
			return err
		}

		res = CompletionResult{
			Goal:      goal,
			Stats:     next,
			ExpGained: goal.ExpReward,
			LeveledUp: next.Level > st.Level,
		}
		return nil
	})
	if err != nil {
		return CompletionResult{}, err
	}

	log.WithFields(log.Fields{
		"user_id": userID,
		"goal_id": goalID,
		"exp":     res.ExpGained,
	}).Info("Цель достигнута")

	s.pub.Publish(userID, events.Event{Type: events.GoalCompleted, Data: res})
	if res.LeveledUp {
		s.pub.Publish(userID, events.Event{Type: events.LevelUp, Data: map[string]int{"level": res.Stats.Level}})
	}
	return res, nil
}

func validTitle(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", common.InvalidInput("目标标题不能为空")
	}
	if utf8.RuneCountInString(s) > maxTitleLen {
		return "", common.InvalidInput("目标标题过长")
	}
	return s, nil
}

func validReward(v int) (int, error) {
	if v < 0 || v > MaxExpReward {
		return 0, common.InvalidInput("经验奖励超出范围")
	}
	return v, nil
}
