// Package pomodoro — фокус-сессии.
//
// Таймер хранится как момент окончания (EndsAt), клиент считает остаток
// сам. Завершение сессии с привязанной задачей выполняет эту задачу
// в той же транзакции.
package pomodoro

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"levelupsolo.app/server/internal/common"
	"levelupsolo.app/server/internal/events"
	"levelupsolo.app/server/internal/features/tasks"
	"levelupsolo.app/server/internal/model"
	"levelupsolo.app/server/internal/storage"
)

const (
	MinDurationMinutes = 1
	MaxDurationMinutes = 120
	// Допуск на расхождение часов клиента и сервера при завершении
	completionGrace = 5 * time.Second
	historyLimit    = 20
)

var (
	errNotActive   = common.InvalidInput("番茄钟已结束")
	errNotFinished = common.InvalidInput("番茄钟尚未结束")
)

// StartInput — параметры новой сессии.
type StartInput struct {
	TaskID          *int64 `json:"taskId"`
	DurationMinutes int    `json:"durationMinutes"`
}

// CompletionResult — итог завершения сессии.
// Task заполнен, если привязанная задача была выполнена.
// TaskError — почему задачу выполнить не удалось (сессия при этом завершена).
type CompletionResult struct {
	Session   model.PomodoroSession   `json:"session"`
	Task      *tasks.CompletionResult `json:"task,omitempty"`
	TaskError string                  `json:"taskError,omitempty"`
}

// Overview — активная сессия и недавняя история.
type Overview struct {
	Active  *model.PomodoroSession  `json:"active"`
	History []model.PomodoroSession `json:"history"`
}

type Service struct {
	stores *storage.Router
	tasks  *tasks.Service
	clock  common.Clock
	pub    events.Publisher
}

func NewService(stores *storage.Router, taskService *tasks.Service, clock common.Clock, pub events.Publisher) *Service {
	if pub == nil {
		pub = events.Nop{}
	}
	return &Service{stores: stores, tasks: taskService, clock: clock, pub: pub}
}

// Overview возвращает активную сессию (если есть) и последние сессии.
func (s *Service) Overview(ctx context.Context, userID int64) (Overview, error) {
	st := s.stores.For(userID)
	var out Overview

	active, err := st.ActivePomodoro(ctx, userID)
	switch {
	case err == nil:
		out.Active = &active
	case !errors.Is(err, common.ErrNotFound):
		return Overview{}, err
	}

	out.History, err = st.ListPomodoros(ctx, userID, historyLimit)
	if err != nil {
		return Overview{}, err
	}
	return out, nil
}

// Start запускает сессию. Одновременно активна только одна.
func (s *Service) Start(ctx context.Context, userID int64, in StartInput) (model.PomodoroSession, error) {
	minutes := in.DurationMinutes
	if minutes == 0 {
		minutes = model.DefaultPomodoroMinutes
	}
	if minutes < MinDurationMinutes || minutes > MaxDurationMinutes {
		return model.PomodoroSession{}, common.InvalidInput("番茄钟时长需在1到120分钟之间")
	}

	now := s.clock.Now()
	var out model.PomodoroSession
	err := s.stores.For(userID).InTx(ctx, func(tx storage.Store) error {
		if in.TaskID != nil {
			if _, err := tx.GetTask(ctx, userID, *in.TaskID); err != nil {
				return err
			}
		}
		session, err := tx.CreatePomodoro(ctx, model.PomodoroSession{
			UserID:          userID,
			TaskID:          in.TaskID,
			DurationMinutes: minutes,
			Status:          model.PomodoroActive,
			StartedAt:       now,
			EndsAt:          now.Add(time.Duration(minutes) * time.Minute),
		})
		if err != nil {
			return err
		}
		out = session
		return nil
	})
	if err != nil {
		return model.PomodoroSession{}, err
	}

	s.pub.Publish(userID, events.Event{Type: events.PomodoroStarted, Data: out})
	return out, nil
}

// Complete завершает сессию, если её время вышло.
func (s *Service) Complete(ctx context.Context, userID, sessionID int64) (CompletionResult, error) {
	now := s.clock.Now()
	var res CompletionResult

	err := s.stores.For(userID).InTx(ctx, func(tx storage.Store) error {
		session, err := tx.GetPomodoro(ctx, userID, sessionID)
		if err != nil {
			return err
		}
		if session.Status != model.PomodoroActive {
			return errNotActive
		}
		if now.Add(completionGrace).Before(session.EndsAt) {
			return errNotFinished
		}

		completedAt := now
		session.Status = model.PomodoroCompleted
		session.CompletedAt = &completedAt
		if err := tx.UpdatePomodoro(ctx, session); err != nil {
			return err
		}
		res.Session = session

		if session.TaskID != nil {
			done, err := s.tasks.CompleteInTx(ctx, tx, userID, *session.TaskID, now)
			switch {
			case err == nil:
				res.Task = &done
			case isCompletionRejection(err):
				// Сессия засчитывается, даже если задачу выполнить нельзя
				res.TaskError = common.UserMessage(err)
			default:
				return err
			}
		}

		_, err = tx.AppendActivity(ctx, model.ActivityLog{
			UserID:    userID,
			TaskID:    session.TaskID,
			Action:    model.ActionPomodoroCompleted,
			CreatedAt: now,
		})
		return err
	})
	if err != nil {
		return CompletionResult{}, err
	}

	log.WithFields(log.Fields{
		"user_id":    userID,
		"session_id": sessionID,
		"minutes":    res.Session.DurationMinutes,
		"task_done":  res.Task != nil,
	}).Debug("Помидор завершён")

	s.pub.Publish(userID, events.Event{Type: events.PomodoroCompleted, Data: res})
	if res.Task != nil {
		s.tasks.PublishCompletion(userID, *res.Task)
	}
	return res, nil
}

// Cancel прерывает активную сессию без наград.
func (s *Service) Cancel(ctx context.Context, userID, sessionID int64) (model.PomodoroSession, error) {
	now := s.clock.Now()
	var out model.PomodoroSession

	err := s.stores.For(userID).InTx(ctx, func(tx storage.Store) error {
		session, err := tx.GetPomodoro(ctx, userID, sessionID)
		if err != nil {
			return err
		}
		if session.Status != model.PomodoroActive {
			return errNotActive
		}
		session.Status = model.PomodoroCancelled
		session.CompletedAt = &now
		if err := tx.UpdatePomodoro(ctx, session); err != nil {
			return err
		}
		out = session
		return nil
	})
	if err != nil {
		return model.PomodoroSession{}, err
	}

	s.pub.Publish(userID, events.Event{Type: events.PomodoroCancelled, Data: out})
	return out, nil
}

func isCompletionRejection(err error) bool {
	return errors.Is(err, common.ErrInsufficientEnergy) ||
		errors.Is(err, common.ErrDuplicateCompletion) ||
		errors.Is(err, common.ErrTaskAlreadyCompleted) ||
		errors.Is(err, common.ErrTaskNotFound)
}
