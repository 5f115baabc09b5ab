// Package config — progression.go загружает таблицы наград из YAML.
//
// Встроенный rewards.yaml используется, если PROGRESSION_CONFIG не задан.
// Внешний файл накладывается поверх значений по умолчанию, поэтому в нём
// достаточно указать только изменённые разделы (таблица
// источника заменяется целиком).
package config

import (
	_ "embed"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"levelupsolo.app/server/internal/progression"
)

//go:embed rewards.yaml
var defaultRewardsYAML []byte

// LoadRewards читает таблицы наград. Пустой path — встроенный файл.
func LoadRewards(path string) (progression.RewardConfig, error) {
	data := defaultRewardsYAML
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return progression.RewardConfig{}, fmt.Errorf("чтение %s: %w", path, err)
		}
		data = b
	}

	cfg, err := ParseRewards(data)
	if err != nil {
		return progression.RewardConfig{}, err
	}

	log.WithFields(log.Fields{
		"source":           sourceName(path),
		"minutes_per_ball": cfg.MinutesPerEnergyBall,
		"min_energy_cost":  cfg.MinEnergyCost,
	}).Info("Таблицы наград загружены")
	return cfg, nil
}

// ParseRewards разбирает YAML поверх DefaultRewardConfig и проверяет результат.
func ParseRewards(data []byte) (progression.RewardConfig, error) {
	cfg := progression.DefaultRewardConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return progression.RewardConfig{}, fmt.Errorf("разбор таблиц наград: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return progression.RewardConfig{}, fmt.Errorf("таблицы наград: %w", err)
	}
	return cfg, nil
}

func sourceName(path string) string {
	if path == "" {
		return "embedded"
	}
	return path
}
