// Package common — format.go форматирует числа прогресса для текстовых ответов
// (Telegram-бот, логи).
package common

import (
	"fmt"
	"strings"
)

// FormatNumber форматирует число с разделителями тысяч (запятыми).
// Пример: FormatNumber(2350) → "2,350"
func FormatNumber(n int64) string {
	if n < 0 {
		return "-" + FormatNumber(-n)
	}
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	return fmt.Sprintf("%s,%03d", FormatNumber(n/1000), n%1000)
}

// FormatEnergy рисует запас энергии: "⚡ 16/18".
func FormatEnergy(balls, max int) string {
	return fmt.Sprintf("⚡ %d/%d", balls, max)
}

// FormatExp создаёт строку вида "+20 XP" или "-5 XP".
func FormatExp(amount int) string {
	if amount >= 0 {
		return fmt.Sprintf("+%s XP", FormatNumber(int64(amount)))
	}
	return fmt.Sprintf("%s XP", FormatNumber(int64(amount)))
}

// ProgressBar рисует полосу прогресса из width клеток.
// Пример: ProgressBar(20, 115, 10) → "█░░░░░░░░░"
func ProgressBar(current, total, width int) string {
	if width <= 0 {
		return ""
	}
	filled := 0
	if total > 0 && current > 0 {
		filled = current * width / total
	}
	if filled > width {
		filled = width
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}
