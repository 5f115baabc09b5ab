// Package bot — commands.go: разбор и обработка команд.
package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"levelupsolo.app/server/internal/bot/filters"
	"levelupsolo.app/server/internal/common"
	"levelupsolo.app/server/internal/model"
	"levelupsolo.app/server/internal/progression"
)

const helpText = `Level Up Solo 助手
/link 绑定码 — 绑定网页账号
/stats — 查看等级与能量
/tasks — 任务列表
/done ID — 完成任务
/undo ID — 取消今天完成的习惯
/restore — 恢复能量`

const notLinkedText = "请先在网页端生成绑定码，然后发送 /link 绑定码"

// Команды, доступные без привязки аккаунта
var publicCommands = map[string]bool{"start": true, "help": true, "link": true}

// routeCommand маршрутизирует команду к нужному обработчику.
func (b *Bot) routeCommand(ctx context.Context, chatID int64, access filters.Access, cmd string, args []string) {
	if !access.Linked && !publicCommands[cmd] {
		b.sendMessage(ctx, chatID, notLinkedText)
		return
	}

	switch cmd {
	case "start", "help":
		text := helpText
		if !access.Linked {
			text += "\n\n" + notLinkedText
		}
		b.sendMessage(ctx, chatID, text)

	case "link":
		b.handleLink(ctx, chatID, args)

	case "stats":
		b.handleStats(ctx, chatID, access.UserID)

	case "tasks":
		b.handleTasks(ctx, chatID, access.UserID)

	case "done":
		b.handleDone(ctx, chatID, access.UserID, args)

	case "undo":
		b.handleUndo(ctx, chatID, access.UserID, args)

	case "restore":
		b.handleRestore(ctx, chatID, access.UserID)

	default:
		b.sendMessage(ctx, chatID, "未知命令，发送 /help 查看帮助")
	}
}

func (b *Bot) replyError(ctx context.Context, chatID int64, err error) {
	if !common.IsUserFacing(err) {
		log.WithError(err).WithField("chat_id", chatID).Error("Ошибка обработки команды")
	}
	b.sendMessage(ctx, chatID, "❌ "+common.UserMessage(err))
}

func (b *Bot) handleLink(ctx context.Context, chatID int64, args []string) {
	if len(args) != 1 {
		b.sendMessage(ctx, chatID, "用法: /link 绑定码")
		return
	}
	user, err := b.accounts.LinkTelegram(ctx, args[0], chatID)
	if err != nil {
		b.replyError(ctx, chatID, err)
		return
	}
	b.sendMessage(ctx, chatID, fmt.Sprintf("✅ 已绑定账号 %s", user.DisplayName))
}

func (b *Bot) handleStats(ctx context.Context, chatID, userID int64) {
	st, err := b.stats.Get(ctx, userID)
	if err != nil {
		b.replyError(ctx, chatID, err)
		return
	}
	b.sendMessage(ctx, chatID, formatStats(st))
}

func (b *Bot) handleTasks(ctx context.Context, chatID, userID int64) {
	list, err := b.tasks.List(ctx, userID)
	if err != nil {
		b.replyError(ctx, chatID, err)
		return
	}
	b.sendMessage(ctx, chatID, formatTasks(list, b.clock.Now()))
}

func (b *Bot) handleDone(ctx context.Context, chatID, userID int64, args []string) {
	id, ok := parseTaskID(args)
	if !ok {
		b.sendMessage(ctx, chatID, "用法: /done 任务ID")
		return
	}
	res, err := b.tasks.Complete(ctx, userID, id)
	if err != nil {
		b.replyError(ctx, chatID, err)
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "✅ %s\n%s  %s", res.Task.Title, common.FormatExp(res.ExpGained),
		common.FormatEnergy(res.Stats.EnergyBalls, res.Stats.MaxEnergyBalls))
	if res.Task.IsHabit() {
		fmt.Fprintf(&sb, "\n🔥 连续 %d 天", res.Task.HabitStreak)
	}
	if res.LeveledUp {
		fmt.Fprintf(&sb, "\n🎉 升级！现在是 %d 级", res.NewLevel)
	}
	b.sendMessage(ctx, chatID, sb.String())
}

func (b *Bot) handleUndo(ctx context.Context, chatID, userID int64, args []string) {
	id, ok := parseTaskID(args)
	if !ok {
		b.sendMessage(ctx, chatID, "用法: /undo 任务ID")
		return
	}
	task, err := b.tasks.Uncomplete(ctx, userID, id)
	if err != nil {
		b.replyError(ctx, chatID, err)
		return
	}
	b.sendMessage(ctx, chatID, fmt.Sprintf("↩️ 已取消: %s", task.Title))
}

func (b *Bot) handleRestore(ctx context.Context, chatID, userID int64) {
	st, err := b.stats.RestoreEnergy(ctx, userID)
	if err != nil {
		b.replyError(ctx, chatID, err)
		return
	}
	b.sendMessage(ctx, chatID, "🔋 能量已恢复 "+common.FormatEnergy(st.EnergyBalls, st.MaxEnergyBalls))
}

func parseTaskID(args []string) (int64, bool) {
	if len(args) != 1 {
		return 0, false
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(args[0], "#"), 10, 64)
	return id, err == nil && id > 0
}

func formatStats(st model.UserStats) string {
	return fmt.Sprintf("⭐ 等级 %d\n%s %d/%d XP\n%s\n🔥 连续 %d 天 · 已完成 %s 个任务",
		st.Level,
		common.ProgressBar(st.Experience, st.ExperienceToNext, 10), st.Experience, st.ExperienceToNext,
		common.FormatEnergy(st.EnergyBalls, st.MaxEnergyBalls),
		st.Streak, common.FormatNumber(int64(st.TotalTasksCompleted)),
	)
}

// formatTasks выводит невыполненные задачи и привычки с отметкой за сегодня.
func formatTasks(list []model.Task, now time.Time) string {
	var sb strings.Builder
	for _, t := range list {
		mark := "⬜"
		switch {
		case t.IsHabit():
			if progression.StateAt(t.LastCompletedDate, now) == progression.CompletedToday {
				mark = "✅"
			}
		case t.Completed:
			continue
		}
		fmt.Fprintf(&sb, "%s #%d %s (%s, ⚡%d)\n", mark, t.ID, t.Title, common.FormatExp(t.ExpReward), t.RequiredEnergyBalls)
	}
	if sb.Len() == 0 {
		return "🎉 没有待办任务"
	}
	return "📋 任务列表\n" + strings.TrimRight(sb.String(), "\n")
}

// CommandParser парсит команды с префиксами / и !.
type CommandParser struct {
	validPrefixes []string
}

// NewCommandParser создаёт парсер команд.
func NewCommandParser() *CommandParser {
	return &CommandParser{
		validPrefixes: []string{"/", "!"},
	}
}

// ParseCommand разбирает текст на команду и аргументы.
// Суффикс @имя_бота у команды отбрасывается (/stats@LevelUpBot).
func (p *CommandParser) ParseCommand(text string) (string, []string, bool) {
	text = strings.TrimSpace(text)

	hasPrefix := false
	for _, prefix := range p.validPrefixes {
		if strings.HasPrefix(text, prefix) {
			text = strings.TrimPrefix(text, prefix)
			hasPrefix = true
			break
		}
	}
	if !hasPrefix {
		return "", nil, false
	}

	parts := strings.Fields(text)
	if len(parts) == 0 {
		return "", nil, false
	}

	command := strings.ToLower(parts[0])
	if i := strings.IndexByte(command, '@'); i >= 0 {
		command = command[:i]
	}
	if command == "" {
		return "", nil, false
	}

	var args []string
	if len(parts) > 1 {
		args = parts[1:]
	}
	return command, args, true
}
