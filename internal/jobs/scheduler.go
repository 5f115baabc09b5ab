// Package jobs управляет фоновыми задачами (cron).
// scheduler.go настраивает расписание: ежедневный сброс энергии и задач,
// вечерние напоминания о привычках и очистку демо-сессий.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"levelupsolo.app/server/internal/common"
	"levelupsolo.app/server/internal/middleware"
	"levelupsolo.app/server/internal/model"
	"levelupsolo.app/server/internal/storage"
)

const (
	dailyResetSpec = "0 0 * * *"
	remindersSpec  = "0 20 * * *"
	demoCleanSpec  = "*/30 * * * *"
)

// Notifier доставляет напоминание в привязанный чат (бот-компаньон).
type Notifier interface {
	SendMessageToChat(ctx context.Context, chatID int64, text string) error
}

// LinkedUsers возвращает пользователей с привязанным Telegram.
type LinkedUsers interface {
	LinkedUsers(ctx context.Context) ([]model.User, error)
}

// Scheduler управляет фоновыми задачами.
type Scheduler struct {
	cron     *cron.Cron
	loc      *time.Location
	stores   *storage.Router
	clock    common.Clock
	demoTTL  time.Duration
	users    LinkedUsers
	notifier Notifier // nil — напоминания выключены
}

// NewScheduler создаёт планировщик в часовом поясе приложения.
func NewScheduler(loc *time.Location, stores *storage.Router, clock common.Clock, demoTTL time.Duration, users LinkedUsers, notifier Notifier) *Scheduler {
	return &Scheduler{
		cron:     cron.New(cron.WithLocation(loc)),
		loc:      loc,
		stores:   stores,
		clock:    clock,
		demoTTL:  demoTTL,
		users:    users,
		notifier: notifier,
	}
}

// Start регистрирует и запускает все фоновые задачи.
func (s *Scheduler) Start(ctx context.Context) error {
	jobs := []struct {
		spec string
		fn   func()
	}{
		{dailyResetSpec, func() {
			log.Info("[CRON] Ежедневный сброс энергии и задач")
			if err := s.DailyReset(ctx); err != nil {
				log.WithError(err).Error("[CRON] Ошибка сброса")
			}
		}},
		{remindersSpec, func() {
			log.Debug("[CRON] Проверка напоминаний")
			if err := s.SendReminders(ctx); err != nil {
				log.WithError(err).Error("[CRON] Ошибка напоминаний")
			}
		}},
		{demoCleanSpec, func() {
			if n := s.CleanupDemo(); n > 0 {
				log.WithField("sessions", n).Info("[CRON] Удалены неактивные демо-сессии")
			}
		}},
	}
	for _, j := range jobs {
		fn := j.fn
		if _, err := s.cron.AddFunc(j.spec, func() {
			defer middleware.RecoverFromPanic()
			fn()
		}); err != nil {
			return fmt.Errorf("cron %q: %w", j.spec, err)
		}
	}

	s.cron.Start()
	log.WithField("tz", s.loc.String()).Info("Планировщик задач запущен")
	return nil
}

// Stop останавливает планировщик и ждёт завершения текущих задач.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("Планировщик задач остановлен")
}

func (s *Scheduler) now() time.Time {
	return s.clock.Now().In(s.loc)
}

// DailyReset восполняет энергию и снимает отметки с ежедневных задач
// во всех хранилищах. Повторный запуск в те же сутки ничего не меняет.
func (s *Scheduler) DailyReset(ctx context.Context) error {
	now := s.now()
	dayStart := common.StartOfDay(now)

	type named struct {
		name  string
		store storage.Store
	}
	var stores []named
	if p := s.stores.Persistent(); p != nil {
		stores = append(stores, named{"postgres", p})
	}
	if d := s.stores.Demo(); d != nil {
		stores = append(stores, named{"demo", d})
	}
	for _, st := range stores {
		energy, err := st.store.ResetEnergyAll(ctx, dayStart, now)
		if err != nil {
			return fmt.Errorf("%s: сброс энергии: %w", st.name, err)
		}
		daily, err := st.store.ResetDailyTasks(ctx, dayStart, now)
		if err != nil {
			return fmt.Errorf("%s: сброс ежедневных задач: %w", st.name, err)
		}
		log.WithFields(log.Fields{
			"store":       st.name,
			"energy":      energy,
			"daily_tasks": daily,
		}).Info("Ежедневный сброс выполнен")
	}
	return nil
}

// SendReminders напоминает привязанным пользователям о невыполненных
// сегодня привычках. Ошибка доставки одному пользователю не прерывает рассылку.
func (s *Scheduler) SendReminders(ctx context.Context) error {
	store := s.stores.Persistent()
	if s.notifier == nil || s.users == nil || store == nil {
		return nil
	}

	pending, err := store.PendingHabits(ctx, common.StartOfDay(s.now()))
	if err != nil {
		return fmt.Errorf("невыполненные привычки: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}
	linked, err := s.users.LinkedUsers(ctx)
	if err != nil {
		return fmt.Errorf("привязанные пользователи: %w", err)
	}

	var sent, failed int
	for _, u := range linked {
		n := pending[u.ID]
		if n == 0 || u.TelegramChatID == nil {
			continue
		}
		text := fmt.Sprintf("⏰ 今天还有 %d 个习惯没有完成，加油！发送 /tasks 查看", n)
		if err := s.notifier.SendMessageToChat(ctx, *u.TelegramChatID, text); err != nil {
			failed++
			continue
		}
		sent++
	}
	log.WithFields(log.Fields{"sent": sent, "failed": failed}).Info("Напоминания отправлены")
	return nil
}

// CleanupDemo удаляет демо-сессии, неактивные дольше demoTTL.
func (s *Scheduler) CleanupDemo() int {
	demo := s.stores.Demo()
	if demo == nil || s.demoTTL <= 0 {
		return 0
	}
	return demo.CleanupIdle(s.clock.Now().Add(-s.demoTTL))
}
