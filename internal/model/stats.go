// Package model описывает доменные сущности Level Up Solo.
// stats.go — прогресс пользователя: уровень, опыт, энергия и серия.
package model

import "time"

// Значения по умолчанию для новой записи статистики.
const (
	DefaultLevel          = 1
	DefaultExpToNext      = 100
	DefaultMaxEnergyBalls = 18
)

// UserStats — одна запись на пользователя.
// Создаётся лениво при первом обращении (см. NewUserStats).
//
// Инварианты после нормализации:
//   - Experience < ExperienceToNext
//   - 0 <= EnergyBalls <= MaxEnergyBalls
type UserStats struct {
	UserID              int64      `db:"user_id" json:"userId"`
	Level               int        `db:"level" json:"level"`
	Experience          int        `db:"experience" json:"experience"`                 // Опыт внутри текущего уровня
	ExperienceToNext    int        `db:"experience_to_next" json:"experienceToNext"`   // Порог следующего уровня
	EnergyBalls         int        `db:"energy_balls" json:"energyBalls"`              // Текущий запас энергии
	MaxEnergyBalls      int        `db:"max_energy_balls" json:"maxEnergyBalls"`       // Потолок энергии
	Streak              int        `db:"streak" json:"streak"`                         // Дней подряд хотя бы с одним выполнением
	TotalTasksCompleted int        `db:"total_tasks_completed" json:"totalTasksCompleted"`
	LastEnergyReset     time.Time  `db:"last_energy_reset" json:"lastEnergyReset"`
	LastActiveDate      *time.Time `db:"last_active_date" json:"lastActiveDate"`       // Последний день с выполнением
	CreatedAt           time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt           time.Time  `db:"updated_at" json:"updatedAt"`
}

// NewUserStats возвращает статистику по умолчанию для нового пользователя.
// maxEnergy <= 0 означает значение по умолчанию (18).
func NewUserStats(userID int64, maxEnergy int, now time.Time) UserStats {
	if maxEnergy <= 0 {
		maxEnergy = DefaultMaxEnergyBalls
	}
	return UserStats{
		UserID:           userID,
		Level:            DefaultLevel,
		Experience:       0,
		ExperienceToNext: DefaultExpToNext,
		EnergyBalls:      maxEnergy,
		MaxEnergyBalls:   maxEnergy,
		LastEnergyReset:  now,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}
