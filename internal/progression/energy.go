// Package progression — energy.go реализует «энергетические шары»:
// ограниченный ресурс, который тратится на задачи и восполняется раз в день
// или вручную.
package progression

import (
	"fmt"
	"time"

	"levelupsolo.app/server/internal/common"
	"levelupsolo.app/server/internal/model"
)

// CanAfford сообщает, хватает ли энергии на задачу стоимостью cost.
func CanAfford(stats model.UserStats, cost int) bool {
	if cost <= 0 {
		return true
	}
	return stats.EnergyBalls >= cost
}

// Spend списывает cost шаров. Если энергии не хватает — возвращает
// ErrInsufficientEnergy и исходную статистику без изменений.
func Spend(stats model.UserStats, cost int, now time.Time) (model.UserStats, error) {
	if cost < 0 {
		cost = 0
	}
	if !CanAfford(stats, cost) {
		return stats, fmt.Errorf("нужно %d, есть %d: %w", cost, stats.EnergyBalls, common.ErrInsufficientEnergy)
	}
	stats.EnergyBalls = clampEnergy(stats.EnergyBalls-cost, stats.MaxEnergyBalls)
	stats.UpdatedAt = now
	return stats, nil
}

// Restore восполняет энергию до максимума (ручное восстановление или
// ежедневный сброс).
func Restore(stats model.UserStats, now time.Time) model.UserStats {
	stats.EnergyBalls = maxEnergy(stats)
	stats.UpdatedAt = now
	return stats
}

// DailyResetIfNeeded восполняет энергию, если последний сброс был
// в другой календарный день (в часовом поясе now). Повторный вызов в тот же
// день ничего не меняет. Второй результат сообщает, был ли сброс.
func DailyResetIfNeeded(stats model.UserStats, now time.Time) (model.UserStats, bool) {
	if !stats.LastEnergyReset.IsZero() && common.SameDay(stats.LastEnergyReset, now, now.Location()) {
		return stats, false
	}
	stats = Restore(stats, now)
	stats.LastEnergyReset = now
	return stats, true
}

// maxEnergy возвращает потолок энергии, подставляя значение по умолчанию
// для записей без него.
func maxEnergy(stats model.UserStats) int {
	if stats.MaxEnergyBalls <= 0 {
		return model.DefaultMaxEnergyBalls
	}
	return stats.MaxEnergyBalls
}

// clampEnergy держит значение в [0, max].
func clampEnergy(v, max int) int {
	if max <= 0 {
		max = model.DefaultMaxEnergyBalls
	}
	if v < 0 {
		return 0
	}
	if v > max {
		return max
	}
	return v
}
