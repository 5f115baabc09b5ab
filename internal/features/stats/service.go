// Package stats — service.go: статистика пользователя и ручное
// восстановление энергии.
package stats

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"levelupsolo.app/server/internal/common"
	"levelupsolo.app/server/internal/events"
	"levelupsolo.app/server/internal/model"
	"levelupsolo.app/server/internal/progression"
	"levelupsolo.app/server/internal/storage"
)

// Service отдаёт статистику и восстанавливает энергию.
type Service struct {
	stores    *storage.Router  // Выбор хранилища (демо / Postgres)
	clock     common.Clock     // Текущее время в поясе приложения
	maxEnergy int              // Потолок энергии для новых записей
	pub       events.Publisher // Рассылка событий клиентам
}

// NewService создаёт сервис статистики.
func NewService(stores *storage.Router, clock common.Clock, maxEnergy int, pub events.Publisher) *Service {
	if pub == nil {
		pub = events.Nop{}
	}
	return &Service{stores: stores, clock: clock, maxEnergy: maxEnergy, pub: pub}
}

// Load возвращает статистику, создавая её при первом обращении.
// Используется всеми сервисами, которые меняют прогресс, внутри своей транзакции.
func Load(ctx context.Context, st storage.StatsStore, userID int64, maxEnergy int, now time.Time) (model.UserStats, error) {
	stats, err := st.EnsureStats(ctx, model.NewUserStats(userID, maxEnergy, now))
	if err != nil {
		return model.UserStats{}, fmt.Errorf("статистика пользователя %d: %w", userID, err)
	}
	return stats, nil
}

// Get возвращает статистику. Если наступил новый день — сначала
// применяется ежедневное восполнение энергии.
// Streak в ответе — текущая серия (0, если она уже прервана).
func (s *Service) Get(ctx context.Context, userID int64) (model.UserStats, error) {
	now := s.clock.Now()
	var out model.UserStats

	err := s.stores.For(userID).InTx(ctx, func(tx storage.Store) error {
		stats, err := Load(ctx, tx, userID, s.maxEnergy, now)
		if err != nil {
			return err
		}
		stats, reset := progression.DailyResetIfNeeded(stats, now)
		if reset {
			if err := tx.SaveStats(ctx, stats); err != nil {
				return err
			}
		}
		out = stats
		return nil
	})
	if err != nil {
		return model.UserStats{}, err
	}

	out.Streak = progression.CurrentDailyStreak(out, now)
	return out, nil
}

// RestoreEnergy восполняет энергию до максимума по запросу пользователя.
func (s *Service) RestoreEnergy(ctx context.Context, userID int64) (model.UserStats, error) {
	now := s.clock.Now()
	var out model.UserStats

	err := s.stores.For(userID).InTx(ctx, func(tx storage.Store) error {
		stats, err := Load(ctx, tx, userID, s.maxEnergy, now)
		if err != nil {
			return err
		}
		restored := progression.Restore(stats, now)
		if err := tx.SaveStats(ctx, restored); err != nil {
			return err
		}
		if _, err := tx.AppendActivity(ctx, model.ActivityLog{
			UserID:    userID,
			Action:    model.ActionEnergyRestored,
			CreatedAt: now,
		}); err != nil {
			return err
		}
		out = restored
		return nil
	})
	if err != nil {
		return model.UserStats{}, err
	}

	log.WithFields(log.Fields{
		"user_id": userID,
		"energy":  common.FormatEnergy(out.EnergyBalls, out.MaxEnergyBalls),
	}).Debug("Энергия восстановлена вручную")

	s.pub.Publish(userID, events.Event{Type: events.EnergyRestored, Data: out})
	return out, nil
}
