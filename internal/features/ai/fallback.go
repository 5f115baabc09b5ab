// Package ai — fallback.go: детерминированные ответы без модели.
package ai

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"levelupsolo.app/server/internal/model"
)

// ParsedTask — задача, извлечённая из свободного текста.
type ParsedTask struct {
	Title            string `json:"title"`
	Description      string `json:"description"`
	Category         string `json:"category"`
	Difficulty       string `json:"difficulty"`
	EstimatedMinutes int    `json:"estimatedMinutes"`
	Skill            string `json:"skill"`
}

const (
	maxEstimatedMinutes = 8 * 60
	maxParsedTitle      = 100
)

var durationRe = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(个小时|小时|分钟|分|(?:minutes?|mins?|hours?|hrs?|m|h)\b)`)

type keywordRule struct {
	words []string
	value string
}

var categoryRules = []keywordRule{
	{[]string{"每天", "每日", "daily", "every day"}, string(model.CategoryDaily)},
	{[]string{"习惯", "坚持", "habit"}, string(model.CategoryHabit)},
}

var difficultyRules = []keywordRule{
	{[]string{"很简单", "顺手", "trivial"}, string(model.DifficultyTrivial)},
	{[]string{"简单", "容易", "easy"}, string(model.DifficultyEasy)},
	{[]string{"困难", "很难", "挑战", "hard"}, string(model.DifficultyHard)},
}

var skillRules = []keywordRule{
	{[]string{"跑步", "健身", "运动", "锻炼", "run", "gym", "workout"}, "健身"},
	{[]string{"编程", "代码", "写程序", "code", "coding"}, "编程"},
	{[]string{"读书", "阅读", "看书", "read"}, "阅读"},
	{[]string{"学习", "复习", "背单词", "study", "learn"}, "学习"},
	{[]string{"冥想", "meditat"}, "冥想"},
	{[]string{"写作", "日记", "write", "journal"}, "写作"},
}

func matchKeyword(text string, rules []keywordRule, def string) string {
	lower := strings.ToLower(text)
	for _, r := range rules {
		for _, w := range r.words {
			if strings.Contains(lower, w) {
				return r.value
			}
		}
	}
	return def
}

// ParseFallback разбирает ввод по ключевым словам: тип задачи, сложность,
// длительность и навык. Заголовок — ввод без фрагмента длительности.
func ParseFallback(input string) ParsedTask {
	input = strings.TrimSpace(input)
	out := ParsedTask{
		Category:   matchKeyword(input, categoryRules, string(model.CategoryTodo)),
		Difficulty: matchKeyword(input, difficultyRules, string(model.DifficultyMedium)),
		Skill:      matchKeyword(input, skillRules, ""),
	}

	title := input
	if m := durationRe.FindStringSubmatchIndex(input); m != nil {
		value, _ := strconv.ParseFloat(input[m[2]:m[3]], 64)
		unit := strings.ToLower(input[m[4]:m[5]])
		if strings.Contains(unit, "小时") || strings.HasPrefix(unit, "h") {
			value *= 60
		}
		out.EstimatedMinutes = int(value)
		title = strings.TrimSpace(input[:m[0]] + input[m[1]:])
	}
	out.EstimatedMinutes = min(max(out.EstimatedMinutes, 0), maxEstimatedMinutes)

	title = strings.Trim(title, " ,，。.;；")
	if title == "" {
		title = input
	}
	if utf8.RuneCountInString(title) > maxParsedTitle {
		title = string([]rune(title)[:maxParsedTitle])
	}
	out.Title = title
	return out
}

// cannedSuggestions — подсказки на случай недоступной модели.
func cannedSuggestions() []ParsedTask {
	return []ParsedTask{
		{Title: "阅读30分钟", Category: string(model.CategoryHabit), Difficulty: string(model.DifficultyEasy), EstimatedMinutes: 30, Skill: "阅读"},
		{Title: "整理今天的待办清单", Category: string(model.CategoryDaily), Difficulty: string(model.DifficultyTrivial), EstimatedMinutes: 10},
		{Title: "完成一次45分钟的锻炼", Category: string(model.CategoryTodo), Difficulty: string(model.DifficultyMedium), EstimatedMinutes: 45, Skill: "健身"},
	}
}

const cannedReply = "AI助手暂时不可用。先从一个15分钟就能完成的小任务开始吧，完成后就能获得经验值！"
