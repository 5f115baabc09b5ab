// Package progression — reward.go определяет награду и стоимость задачи.
//
// Одна точка расчёта для всех путей: ручное создание, создание через ИИ и
// завершение помидора. Таблицы опыта по сложности различаются по источнику
// задачи и задаются конфигурацией (см. config.LoadRewards).
package progression

import (
	"fmt"

	"levelupsolo.app/server/internal/common"
	"levelupsolo.app/server/internal/model"
)

const (
	// DefaultMinutesPerEnergyBall — один шар за каждые 15 минут
	DefaultMinutesPerEnergyBall = 15
	// DefaultMinEnergyCost — минимальная стоимость задачи
	DefaultMinEnergyCost = 1

	// MaxTaskExpReward — потолок явной награды за задачу (как у целей)
	MaxTaskExpReward = 1000
	// MaxEstimatedMinutes — оценка длительности не больше суток
	MaxEstimatedMinutes = 24 * 60
)

// RewardTable — опыт по сложности.
type RewardTable map[model.Difficulty]int

// RewardConfig — таблицы наград и формула стоимости.
type RewardConfig struct {
	// Tables: источник задачи → таблица опыта
	Tables               map[model.TaskSource]RewardTable `yaml:"tables"`
	MinutesPerEnergyBall int                              `yaml:"minutes_per_energy_ball"`
	MinEnergyCost        int                              `yaml:"min_energy_cost"`
	// DefaultMinutes — оценка длительности, если пользователь её не указал
	DefaultMinutes int `yaml:"default_minutes"`
}

// DefaultRewardConfig — встроенные таблицы: «Habitica» для ручного создания
// (1/2/3/4) и «ИИ» (10/10/20/35).
func DefaultRewardConfig() RewardConfig {
	return RewardConfig{
		Tables: map[model.TaskSource]RewardTable{
			model.SourceManual: {
				model.DifficultyTrivial: 1,
				model.DifficultyEasy:    2,
				model.DifficultyMedium:  3,
				model.DifficultyHard:    4,
			},
			model.SourceAI: {
				model.DifficultyTrivial: 10,
				model.DifficultyEasy:    10,
				model.DifficultyMedium:  20,
				model.DifficultyHard:    35,
			},
		},
		MinutesPerEnergyBall: DefaultMinutesPerEnergyBall,
		MinEnergyCost:        DefaultMinEnergyCost,
		DefaultMinutes:       DefaultMinutesPerEnergyBall,
	}
}

// Validate проверяет, что каждая таблица покрывает все сложности.
func (c RewardConfig) Validate() error {
	for _, src := range []model.TaskSource{model.SourceManual, model.SourceAI} {
		table, ok := c.Tables[src]
		if !ok {
			return fmt.Errorf("нет таблицы наград для источника %q", src)
		}
		for _, d := range model.Difficulties {
			xp, ok := table[d]
			if !ok {
				return fmt.Errorf("таблица %q: нет сложности %q", src, d)
			}
			if xp < 0 {
				return fmt.Errorf("таблица %q: отрицательный опыт для %q", src, d)
			}
		}
	}
	if c.MinutesPerEnergyBall <= 0 {
		return fmt.Errorf("minutes_per_energy_ball должен быть > 0")
	}
	if c.MinEnergyCost < 0 {
		return fmt.Errorf("min_energy_cost должен быть >= 0")
	}
	return nil
}

// RewardRequest — входные данные для расчёта.
type RewardRequest struct {
	Category         model.Category
	Difficulty       model.Difficulty
	Source           model.TaskSource
	EstimatedMinutes int
	// Явные значения от пользователя имеют приоритет над таблицей
	ExpOverride    *int
	EnergyOverride *int
	// MaxEnergy — потолок энергии пользователя; 0 — без ограничения.
	// Табличная стоимость срезается до него, явная выше него отклоняется.
	MaxEnergy int
}

// Reward — итоговая пара «опыт / стоимость».
type Reward struct {
	Exp        int `json:"expReward"`
	EnergyCost int `json:"requiredEnergyBalls"`
}

// Resolver рассчитывает награды по конфигурации.
type Resolver struct {
	cfg RewardConfig
}

// NewResolver создаёт резолвер. Пустые поля конфигурации заполняются
// значениями по умолчанию.
func NewResolver(cfg RewardConfig) *Resolver {
	def := DefaultRewardConfig()
	if cfg.Tables == nil {
		cfg.Tables = def.Tables
	}
	if cfg.MinutesPerEnergyBall <= 0 {
		cfg.MinutesPerEnergyBall = def.MinutesPerEnergyBall
	}
	if cfg.DefaultMinutes <= 0 {
		cfg.DefaultMinutes = def.DefaultMinutes
	}
	return &Resolver{cfg: cfg}
}

// Config возвращает действующую конфигурацию.
func (r *Resolver) Config() RewardConfig { return r.cfg }

// Resolve возвращает награду и стоимость задачи.
func (r *Resolver) Resolve(req RewardRequest) (Reward, error) {
	if req.Category != "" && !req.Category.IsValid() {
		return Reward{}, common.InvalidInput(fmt.Sprintf("未知的任务类型: %s", req.Category))
	}
	if req.Difficulty == "" {
		req.Difficulty = model.DifficultyMedium
	}
	if !req.Difficulty.IsValid() {
		return Reward{}, common.InvalidInput(fmt.Sprintf("未知的难度: %s", req.Difficulty))
	}
	if req.Source == "" {
		req.Source = model.SourceManual
	}
	if req.EstimatedMinutes < 0 || req.EstimatedMinutes > MaxEstimatedMinutes {
		return Reward{}, common.InvalidInput(fmt.Sprintf("预计时长需在 0-%d 分钟之间", MaxEstimatedMinutes))
	}

	var out Reward
	if req.ExpOverride != nil {
		if *req.ExpOverride < 0 {
			return Reward{}, common.InvalidInput("经验奖励不能为负数")
		}
		if *req.ExpOverride > MaxTaskExpReward {
			return Reward{}, common.InvalidInput(fmt.Sprintf("经验奖励不能超过 %d", MaxTaskExpReward))
		}
		out.Exp = *req.ExpOverride
	} else {
		table, ok := r.cfg.Tables[req.Source]
		if !ok {
			table = r.cfg.Tables[model.SourceManual]
		}
		out.Exp = table[req.Difficulty]
	}

	if req.EnergyOverride != nil {
		if *req.EnergyOverride < 0 {
			return Reward{}, common.InvalidInput("能量球消耗不能为负数")
		}
		if req.MaxEnergy > 0 && *req.EnergyOverride > req.MaxEnergy {
			return Reward{}, common.InvalidInput(fmt.Sprintf("能量球消耗不能超过上限 %d", req.MaxEnergy))
		}
		out.EnergyCost = *req.EnergyOverride
	} else {
		// Длинная задача стоит не больше дневного запаса, иначе её нельзя выполнить
		out.EnergyCost = r.EnergyCost(req.EstimatedMinutes)
		if req.MaxEnergy > 0 && out.EnergyCost > req.MaxEnergy {
			out.EnergyCost = req.MaxEnergy
		}
	}
	return out, nil
}

// EnergyCost — один шар на каждый начатый 15-минутный блок, не меньше
// минимальной стоимости. Неизвестная длительность считается одним блоком.
//
// Примеры:
//
//	EnergyCost(0)  → 1
//	EnergyCost(15) → 1
//	EnergyCost(16) → 2
//	EnergyCost(30) → 2
func (r *Resolver) EnergyCost(minutes int) int {
	if minutes <= 0 {
		minutes = r.cfg.DefaultMinutes
	}
	per := r.cfg.MinutesPerEnergyBall
	cost := (minutes + per - 1) / per
	if cost < r.cfg.MinEnergyCost {
		cost = r.cfg.MinEnergyCost
	}
	return cost
}
