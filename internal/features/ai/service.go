// Package ai — service.go: сценарии помощника.
package ai

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	log "github.com/sirupsen/logrus"

	"levelupsolo.app/server/internal/common"
	"levelupsolo.app/server/internal/features/tasks"
	"levelupsolo.app/server/internal/model"
)

const (
	// RequestTimeout — сколько ждём модель, прежде чем уйти в заглушку
	RequestTimeout = 20 * time.Second
	maxInputLength = 1000
	maxSuggestions = 5
)

const parseSystemPrompt = `你是一个任务规划助手。把用户的描述转换为一个任务，只返回JSON对象：
{"title":string,"description":string,"category":"habit"|"daily"|"todo","difficulty":"trivial"|"easy"|"medium"|"hard","estimatedMinutes":number,"skill":string}`

const suggestSystemPrompt = `你是一个个人成长教练。根据用户现有的任务，推荐3个新任务，只返回JSON对象：
{"suggestions":[{"title":string,"description":string,"category":"habit"|"daily"|"todo","difficulty":"trivial"|"easy"|"medium"|"hard","estimatedMinutes":number,"skill":string}]}`

const chatSystemPrompt = `你是Level Up Solo的成长助手。用简短、鼓励的中文回答，给出具体可执行的建议。`

// Meta — происхождение ответа.
type Meta struct {
	AIGenerated bool `json:"aiGenerated"`
	Fallback    bool `json:"fallback"`
}

type ChatResponse struct {
	Reply string `json:"reply"`
	Meta
}

type ParseResponse struct {
	Task ParsedTask `json:"task"`
	Meta
}

type SuggestionsResponse struct {
	Suggestions []ParsedTask `json:"suggestions"`
	Meta
}

type CreateTaskResponse struct {
	Task   model.Task `json:"task"`
	Parsed ParsedTask `json:"parsed"`
	Meta
}

var (
	aiMeta       = Meta{AIGenerated: true}
	fallbackMeta = Meta{Fallback: true}
)

// Service — сценарии помощника.
type Service struct {
	client  ChatCompleter // nil — только заглушки
	model   string
	tasks   *tasks.Service
	timeout time.Duration
}

func NewService(client ChatCompleter, modelName string, taskService *tasks.Service) *Service {
	return &Service{client: client, model: modelName, tasks: taskService, timeout: RequestTimeout}
}

// Enabled сообщает, подключена ли модель.
func (s *Service) Enabled() bool { return s.client != nil }

func (s *Service) ask(ctx context.Context, system, user string, jsonMode bool) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return complete(ctx, s.client, s.model, system, user, jsonMode)
}

func (s *Service) degrade(scenario string, err error) {
	log.WithFields(log.Fields{
		"component": "ai",
		"scenario":  scenario,
	}).WithError(err).Warn("Модель недоступна, используем заглушку")
}

func validInput(input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", common.InvalidInput("输入不能为空")
	}
	if utf8.RuneCountInString(input) > maxInputLength {
		return "", common.InvalidInput("输入过长")
	}
	return input, nil
}

// Chat отвечает на сообщение пользователя.
func (s *Service) Chat(ctx context.Context, message string) (ChatResponse, error) {
	message, err := validInput(message)
	if err != nil {
		return ChatResponse{}, err
	}
	if s.client == nil {
		return ChatResponse{Reply: cannedReply, Meta: fallbackMeta}, nil
	}
	reply, err := s.ask(ctx, chatSystemPrompt, message, false)
	if err != nil {
		s.degrade("chat", err)
		return ChatResponse{Reply: cannedReply, Meta: fallbackMeta}, nil
	}
	return ChatResponse{Reply: reply, Meta: aiMeta}, nil
}

// ParseInput превращает свободный текст в задачу.
func (s *Service) ParseInput(ctx context.Context, input string) (ParseResponse, error) {
	input, err := validInput(input)
	if err != nil {
		return ParseResponse{}, err
	}
	if s.client == nil {
		return ParseResponse{Task: ParseFallback(input), Meta: fallbackMeta}, nil
	}

	content, err := s.ask(ctx, parseSystemPrompt, input, true)
	if err == nil {
		var parsed ParsedTask
		if err = decodeStrict(content, &parsed); err == nil {
			if parsed, err = sanitize(parsed); err == nil {
				return ParseResponse{Task: parsed, Meta: aiMeta}, nil
			}
		}
	}
	s.degrade("parse-input", err)
	return ParseResponse{Task: ParseFallback(input), Meta: fallbackMeta}, nil
}

// Suggestions предлагает новые задачи с учётом существующих.
func (s *Service) Suggestions(ctx context.Context, userID int64) (SuggestionsResponse, error) {
	if s.client == nil {
		return SuggestionsResponse{Suggestions: cannedSuggestions(), Meta: fallbackMeta}, nil
	}

	existing, err := s.tasks.List(ctx, userID)
	if err != nil {
		return SuggestionsResponse{}, err
	}
	var b strings.Builder
	b.WriteString("现有任务：\n")
	for i, t := range existing {
		if i == 20 {
			break
		}
		fmt.Fprintf(&b, "- %s (%s, %s)\n", t.Title, t.Category, t.Difficulty)
	}
	if len(existing) == 0 {
		b.WriteString("（暂无）\n")
	}

	content, err := s.ask(ctx, suggestSystemPrompt, b.String(), true)
	if err == nil {
		var payload struct {
			Suggestions []ParsedTask `json:"suggestions"`
		}
		if err = decodeStrict(content, &payload); err == nil {
			out := make([]ParsedTask, 0, len(payload.Suggestions))
			for _, p := range payload.Suggestions {
				if clean, perr := sanitize(p); perr == nil {
					out = append(out, clean)
				}
				if len(out) == maxSuggestions {
					break
				}
			}
			if len(out) > 0 {
				return SuggestionsResponse{Suggestions: out, Meta: aiMeta}, nil
			}
			err = errEmptyReply
		}
	}
	s.degrade("suggestions", err)
	return SuggestionsResponse{Suggestions: cannedSuggestions(), Meta: fallbackMeta}, nil
}

// CreateTask разбирает ввод и создаёт задачу по таблице наград ИИ.
func (s *Service) CreateTask(ctx context.Context, userID int64, input string) (CreateTaskResponse, error) {
	parsed, err := s.ParseInput(ctx, input)
	if err != nil {
		return CreateTaskResponse{}, err
	}
	task, err := s.tasks.Create(ctx, userID, tasks.CreateInput{
		Title:            parsed.Task.Title,
		Description:      parsed.Task.Description,
		Category:         parsed.Task.Category,
		Difficulty:       parsed.Task.Difficulty,
		Skill:            parsed.Task.Skill,
		EstimatedMinutes: parsed.Task.EstimatedMinutes,
	}, model.SourceAI)
	if err != nil {
		return CreateTaskResponse{}, err
	}
	return CreateTaskResponse{Task: task, Parsed: parsed.Task, Meta: parsed.Meta}, nil
}

// sanitize проверяет задачу из ответа модели и приводит поля к допустимым.
func sanitize(p ParsedTask) (ParsedTask, error) {
	p.Title = strings.TrimSpace(p.Title)
	if p.Title == "" {
		return ParsedTask{}, fmt.Errorf("пустой заголовок")
	}
	if utf8.RuneCountInString(p.Title) > maxParsedTitle {
		p.Title = string([]rune(p.Title)[:maxParsedTitle])
	}
	c, err := model.ParseCategory(p.Category)
	if err != nil {
		return ParsedTask{}, err
	}
	d, err := model.ParseDifficulty(p.Difficulty)
	if err != nil {
		return ParsedTask{}, err
	}
	p.Category, p.Difficulty = string(c), string(d)
	p.EstimatedMinutes = min(max(p.EstimatedMinutes, 0), maxEstimatedMinutes)
	p.Skill = strings.TrimSpace(p.Skill)
	p.Description = strings.TrimSpace(p.Description)
	return p, nil
}
