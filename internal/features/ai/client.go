// Package ai — помощник на базе OpenAI: разбор свободного ввода в задачу,
// подсказки задач и чат. При любой проблеме с моделью (нет ключа, сеть,
// ответ не JSON) отвечает детерминированной заглушкой и помечает ответ
// флагом fallback. Повторных попыток нет.
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// ChatCompleter — часть клиента OpenAI, которой пользуется сервис.
// *openai.Client подходит как есть, в тестах подменяется.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// NewClient создаёт клиента OpenAI. Пустой ключ — nil (режим заглушек).
func NewClient(apiKey string) ChatCompleter {
	if apiKey == "" {
		return nil
	}
	return openai.NewClient(apiKey)
}

var errEmptyReply = errors.New("пустой ответ модели")

// complete отправляет один запрос и возвращает текст первого варианта.
// jsonMode просит модель вернуть JSON-объект.
func complete(ctx context.Context, c ChatCompleter, model, system, user string, jsonMode bool) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: 0.4,
		MaxTokens:   600,
	}
	if jsonMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}

	resp, err := c.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("запрос к модели: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errEmptyReply
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", errEmptyReply
	}
	return content, nil
}

// decodeStrict разбирает JSON-ответ модели, отвергая лишние поля и хвосты.
func decodeStrict(content string, v any) error {
	// Модели иногда оборачивают JSON в ```json ... ```
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	dec := json.NewDecoder(strings.NewReader(content))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("ответ модели не JSON: %w", err)
	}
	if dec.More() {
		return errors.New("лишние данные после JSON")
	}
	return nil
}
