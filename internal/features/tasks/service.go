// Package tasks — service.go содержит бизнес-логику задач.
// Все изменения прогресса идут через progression и выполняются в одной
// транзакции хранилища: статистика, задача, навык и запись журнала.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"levelupsolo.app/server/internal/common"
	"levelupsolo.app/server/internal/events"
	"levelupsolo.app/server/internal/features/stats"
	"levelupsolo.app/server/internal/model"
	"levelupsolo.app/server/internal/progression"
	"levelupsolo.app/server/internal/storage"
)

// Service управляет задачами.
type Service struct {
	stores    *storage.Router
	rewards   *progression.Resolver
	clock     common.Clock
	maxEnergy int
	pub       events.Publisher
}

// NewService создаёт сервис задач.
func NewService(stores *storage.Router, rewards *progression.Resolver, clock common.Clock, maxEnergy int, pub events.Publisher) *Service {
	if pub == nil {
		pub = events.Nop{}
	}
	return &Service{stores: stores, rewards: rewards, clock: clock, maxEnergy: maxEnergy, pub: pub}
}

// List возвращает задачи пользователя, новые первыми.
func (s *Service) List(ctx context.Context, userID int64) ([]model.Task, error) {
	list, err := s.stores.For(userID).ListTasks(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	for i := range list {
		list[i] = withHabitState(list[i], now)
	}
	return list, nil
}

// Get возвращает одну задачу.
func (s *Service) Get(ctx context.Context, userID, taskID int64) (model.Task, error) {
	task, err := s.stores.For(userID).GetTask(ctx, userID, taskID)
	if err != nil {
		return model.Task{}, err
	}
	return withHabitState(task, s.clock.Now()), nil
}

// withHabitState выставляет completed привычки по дате последнего выполнения:
// вчерашняя отметка сегодня уже не считается, даже если ночной сброс ещё
// не прошёл.
func withHabitState(task model.Task, now time.Time) model.Task {
	if task.IsHabit() {
		task.Completed = progression.StateAt(task.LastCompletedDate, now) == progression.CompletedToday
	}
	return task
}

// Create создаёт задачу. source выбирает таблицу наград.
func (s *Service) Create(ctx context.Context, userID int64, in CreateInput, source model.TaskSource) (model.Task, error) {
	title, err := normalizeTitle(in.Title)
	if err != nil {
		return model.Task{}, err
	}
	category, err := model.ParseCategory(in.Category)
	if err != nil {
		return model.Task{}, common.InvalidInput(fmt.Sprintf("未知的任务类型: %s", in.Category))
	}
	difficulty, err := model.ParseDifficulty(in.Difficulty)
	if err != nil {
		return model.Task{}, common.InvalidInput(fmt.Sprintf("未知的难度: %s", in.Difficulty))
	}
	if in.EstimatedMinutes < 0 {
		return model.Task{}, common.InvalidInput("预计时长不能为负数")
	}

	reward, err := s.rewards.Resolve(progression.RewardRequest{
		Category:         category,
		Difficulty:       difficulty,
		Source:           source,
		EstimatedMinutes: in.EstimatedMinutes,
		ExpOverride:      in.ExpReward,
		EnergyOverride:   in.RequiredEnergyBalls,
		MaxEnergy:        s.maxEnergy,
	})
	if err != nil {
		return model.Task{}, err
	}

	now := s.clock.Now()
	task, err := s.stores.For(userID).CreateTask(ctx, model.Task{
		UserID:              userID,
		Title:               title,
		Description:         strings.TrimSpace(in.Description),
		Category:            category,
		Difficulty:          difficulty,
		Source:              source,
		Skill:               strings.TrimSpace(in.Skill),
		EstimatedMinutes:    in.EstimatedMinutes,
		ExpReward:           reward.Exp,
		RequiredEnergyBalls: reward.EnergyCost,
		CreatedAt:           now,
		UpdatedAt:           now,
	})
	if err != nil {
		return model.Task{}, err
	}

	log.WithFields(log.Fields{
		"user_id":  userID,
		"task_id":  task.ID,
		"category": task.Category,
		"source":   source,
		"exp":      task.ExpReward,
		"energy":   task.RequiredEnergyBalls,
	}).Debug("Задача создана")
	return task, nil
}

// Update меняет поля задачи. Смена сложности или длительности без явных
// значений пересчитывает награду по таблице источника задачи.
func (s *Service) Update(ctx context.Context, userID, taskID int64, in UpdateInput) (model.Task, error) {
	now := s.clock.Now()
	var out model.Task

	err := s.stores.For(userID).InTx(ctx, func(tx storage.Store) error {
		task, err := tx.GetTask(ctx, userID, taskID)
		if err != nil {
			return err
		}

		if in.Title != nil {
			if task.Title, err = normalizeTitle(*in.Title); err != nil {
				return err
			}
		}
		if in.Description != nil {
			task.Description = strings.TrimSpace(*in.Description)
		}
		if in.Skill != nil {
			task.Skill = strings.TrimSpace(*in.Skill)
		}

		recalc := false
		if in.Difficulty != nil {
			d, err := model.ParseDifficulty(*in.Difficulty)
			if err != nil {
				return common.InvalidInput(fmt.Sprintf("未知的难度: %s", *in.Difficulty))
			}
			recalc = recalc || d != task.Difficulty
			task.Difficulty = d
		}
		if in.EstimatedMinutes != nil {
			if *in.EstimatedMinutes < 0 {
				return common.InvalidInput("预计时长不能为负数")
			}
			recalc = recalc || *in.EstimatedMinutes != task.EstimatedMinutes
			task.EstimatedMinutes = *in.EstimatedMinutes
		}

		if recalc || in.ExpReward != nil || in.RequiredEnergyBalls != nil {
			req := progression.RewardRequest{
				Category:         task.Category,
				Difficulty:       task.Difficulty,
				Source:           task.Source,
				EstimatedMinutes: task.EstimatedMinutes,
				ExpOverride:      in.ExpReward,
				EnergyOverride:   in.RequiredEnergyBalls,
				MaxEnergy:        s.maxEnergy,
			}
			// Без пересчёта сохраняем текущие значения вместо табличных
			if !recalc {
				if req.ExpOverride == nil {
					req.ExpOverride = &task.ExpReward
				}
				if req.EnergyOverride == nil {
					req.EnergyOverride = &task.RequiredEnergyBalls
				}
			}
			reward, err := s.rewards.Resolve(req)
			if err != nil {
				return err
			}
			task.ExpReward = reward.Exp
			task.RequiredEnergyBalls = reward.EnergyCost
		}

		if in.HabitValue != nil {
			if !task.IsHabit() {
				return common.InvalidInput("只有习惯可以设置强度")
			}
			task.HabitValue = progression.ClampHabitValue(*in.HabitValue, progression.HabitValueMin)
		}

		task.UpdatedAt = now
		if err := tx.UpdateTask(ctx, task); err != nil {
			return err
		}
		out = withHabitState(task, now)
		return nil
	})
	return out, err
}

// Delete удаляет задачу.
func (s *Service) Delete(ctx context.Context, userID, taskID int64) error {
	return s.stores.For(userID).DeleteTask(ctx, userID, taskID)
}

// Complete выполняет задачу пользователя.
func (s *Service) Complete(ctx context.Context, userID, taskID int64) (CompletionResult, error) {
	now := s.clock.Now()
	var res CompletionResult

	err := s.stores.For(userID).InTx(ctx, func(tx storage.Store) error {
		var err error
		res, err = s.CompleteInTx(ctx, tx, userID, taskID, now)
		return err
	})
	if err != nil {
		return CompletionResult{}, err
	}

	s.publishCompletion(userID, res)
	return res, nil
}

// CompleteInTx выполняет задачу внутри уже открытой транзакции. События
// не публикуются: это делает вызывающий после фиксации (см. PublishCompletion).
//
// Порядок: статистика → задача (под блокировкой) → движок прогрессии →
// сохранение → опыт навыка → запись журнала.
func (s *Service) CompleteInTx(ctx context.Context, tx storage.Store, userID, taskID int64, now time.Time) (CompletionResult, error) {
	st, err := stats.Load(ctx, tx, userID, s.maxEnergy, now)
	if err != nil {
		return CompletionResult{}, err
	}
	task, err := tx.GetTask(ctx, userID, taskID)
	if err != nil {
		return CompletionResult{}, err
	}

	out, err := progression.CompleteTask(st, task, now)
	if err != nil {
		// Сброс энергии из шага 1 откатывается вместе с транзакцией,
		// он повторится при следующем обращении.
		return CompletionResult{}, err
	}

	if err := tx.SaveStats(ctx, out.Stats); err != nil {
		return CompletionResult{}, err
	}
	if err := tx.UpdateTask(ctx, out.Task); err != nil {
		return CompletionResult{}, err
	}

	skill, err := s.awardSkill(ctx, tx, userID, out.Task.Skill, out.ExpGained, now)
	if err != nil {
		return CompletionResult{}, err
	}

	action := model.ActionTaskCompleted
	if out.Task.IsHabit() {
		action = model.ActionHabitCompleted
	}
	entry := model.ActivityLog{
		UserID:    userID,
		TaskID:    &out.Task.ID,
		ExpGained: out.ExpGained,
		Action:    action,
		CreatedAt: now,
	}
	if skill != nil {
		entry.SkillID = &skill.ID
	}
	if _, err := tx.AppendActivity(ctx, entry); err != nil {
		return CompletionResult{}, err
	}

	return CompletionResult{
		Task:        out.Task,
		Stats:       out.Stats,
		ExpGained:   out.ExpGained,
		EnergySpent: out.EnergySpent,
		LeveledUp:   out.LeveledUp(),
		NewLevel:    out.Stats.Level,
		Skill:       skill,
	}, nil
}

// awardSkill начисляет опыт навыку задачи, создавая навык при первом использовании.
func (s *Service) awardSkill(ctx context.Context, tx storage.Store, userID int64, name string, exp int, now time.Time) (*model.Skill, error) {
	if name == "" {
		return nil, nil
	}
	skill, err := tx.GetSkillByName(ctx, userID, name)
	if errors.Is(err, common.ErrNotFound) {
		skill, err = tx.CreateSkill(ctx, model.Skill{
			UserID:           userID,
			Name:             name,
			Level:            model.DefaultLevel,
			ExperienceToNext: progression.ExpToNextLevel(model.DefaultLevel),
			CreatedAt:        now,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("навык %q: %w", name, err)
	}

	skill = progression.ApplySkillExperience(skill, exp, now)
	if err := tx.UpdateSkill(ctx, skill); err != nil {
		return nil, err
	}
	return &skill, nil
}

// Uncomplete отменяет сегодняшнее выполнение привычки.
// Опыт и энергия не возвращаются.
func (s *Service) Uncomplete(ctx context.Context, userID, taskID int64) (model.Task, error) {
	now := s.clock.Now()
	var out model.Task

	err := s.stores.For(userID).InTx(ctx, func(tx storage.Store) error {
		task, err := tx.GetTask(ctx, userID, taskID)
		if err != nil {
			return err
		}
		task, err = progression.UncompleteTask(task, now)
		if err != nil {
			return err
		}
		if err := tx.UpdateTask(ctx, task); err != nil {
			return err
		}
		if _, err := tx.AppendActivity(ctx, model.ActivityLog{
			UserID:    userID,
			TaskID:    &task.ID,
			Action:    model.ActionHabitUncompleted,
			CreatedAt: now,
		}); err != nil {
			return err
		}
		out = task
		return nil
	})
	if err != nil {
		return model.Task{}, err
	}

	s.pub.Publish(userID, events.Event{Type: events.TaskUncompleted, Data: out})
	return out, nil
}

// PublishCompletion рассылает события выполнения. Вызывается после фиксации.
func (s *Service) PublishCompletion(userID int64, res CompletionResult) {
	s.publishCompletion(userID, res)
}

func (s *Service) publishCompletion(userID int64, res CompletionResult) {
	s.pub.Publish(userID, events.Event{Type: events.TaskCompleted, Data: res})
	if res.LeveledUp {
		s.pub.Publish(userID, events.Event{Type: events.LevelUp, Data: map[string]int{"level": res.NewLevel}})
		log.WithFields(log.Fields{
			"user_id": userID,
			"level":   res.NewLevel,
		}).Info("Новый уровень")
	}
}
