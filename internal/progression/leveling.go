// Package progression — движок прогрессии: уровни, энергия, серии привычек
// и награды за задачи. Чистые функции без ввода-вывода; сервисы вызывают их
// внутри транзакции хранилища.
//
// leveling.go — кривая уровней.
package progression

import "math"

const (
	// BaseLevelExp — порог первого уровня
	BaseLevelExp = 100.0
	// LevelGrowth — множитель порога на каждый следующий уровень
	LevelGrowth = 1.15

	// levelEpsilon гасит ошибку float: 100*1.15 = 114.99999999999999
	levelEpsilon = 1e-6

	// MaxExperience — потолок опыта и порога уровня (колонки INTEGER в базе).
	// Пул опыта насыщается на нём вместо переполнения.
	MaxExperience = math.MaxInt32
)

// ExpToNextLevel возвращает порог уровня L: floor(100 * 1.15^(L-1)).
// Уровни меньше 1 считаются первым.
//
// Примеры:
//
//	ExpToNextLevel(1) → 100
//	ExpToNextLevel(2) → 115
//	ExpToNextLevel(3) → 132
func ExpToNextLevel(level int) int {
	if level < 1 {
		level = 1
	}
	v := math.Floor(BaseLevelExp*math.Pow(LevelGrowth, float64(level-1)) + levelEpsilon)
	if v >= MaxExperience {
		return MaxExperience
	}
	return int(v)
}

// ApplyExperience добавляет delta опыта к (level, exp) и нормализует результат.
//
// Алгоритм: весь опыт складывается в общий пул, затем пока пул не меньше
// порога текущего уровня — вычитаем порог и повышаем уровень. Цикл конечен,
// так как порог растёт геометрически, а пул конечен.
//
// Отрицательная delta не поддерживается и считается нулём. Пул больше
// MaxExperience срезается до него.
// Для уже нормализованных входов delta = 0 ничего не меняет.
func ApplyExperience(level, exp, delta int) (newLevel, newExp, newExpToNext int) {
	if level < 1 {
		level = 1
	}
	exp = min(max(exp, 0), MaxExperience)
	delta = max(delta, 0)

	remaining := MaxExperience
	if delta < MaxExperience-exp {
		remaining = exp + delta
	}
	threshold := ExpToNextLevel(level)
	for remaining >= threshold {
		remaining -= threshold
		level++
		threshold = ExpToNextLevel(level)
	}
	return level, remaining, threshold
}

// TotalExpForLevel возвращает суммарный опыт, нужный, чтобы дойти
// от первого уровня до level (для отображения общего прогресса).
func TotalExpForLevel(level int) int {
	total := 0
	for l := 1; l < level; l++ {
		total += ExpToNextLevel(l)
	}
	return total
}
