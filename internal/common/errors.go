// Package common — errors.go определяет ошибки, общие для всех модулей.
// Обработчики (HTTP и бот) различают их через errors.Is и отдают
// пользователю понятное сообщение вместо внутренней ошибки.
package common

import "errors"

// Ошибки движка прогрессии
var (
	// ErrInsufficientEnergy — энергии меньше, чем стоит задача
	ErrInsufficientEnergy = errors.New("能量球不足")
	// ErrDuplicateCompletion — привычка уже выполнена сегодня
	ErrDuplicateCompletion = errors.New("今天已经完成过")
	// ErrInvalidUncomplete — отменить можно только сегодняшнее выполнение
	ErrInvalidUncomplete = errors.New("只能取消今天完成的习惯")
	// ErrTaskAlreadyCompleted — разовая/ежедневная задача уже выполнена
	ErrTaskAlreadyCompleted = errors.New("任务已经完成")
	// ErrGoalAlreadyCompleted — цель уже достигнута
	ErrGoalAlreadyCompleted = errors.New("目标已经完成")
)

// Ошибки доступа и поиска
var (
	// ErrNotFound — запись не найдена (или принадлежит другому пользователю)
	ErrNotFound = errors.New("未找到")
	// ErrTaskNotFound — задача не найдена
	ErrTaskNotFound = errors.New("任务不存在")
	// ErrUnauthorized — нет токена или он недействителен
	ErrUnauthorized = errors.New("未授权")
	// ErrWrongCredentials — неверный email или пароль
	ErrWrongCredentials = errors.New("邮箱或密码错误")
	// ErrEmailTaken — email уже зарегистрирован
	ErrEmailTaken = errors.New("该邮箱已注册")
	// ErrDemoUnsupported — операция недоступна в демо-режиме
	ErrDemoUnsupported = errors.New("演示模式不支持此操作")
	// ErrLinkCodeInvalid — код привязки Telegram неверный или истёк
	ErrLinkCodeInvalid = errors.New("绑定码无效或已过期")
	// ErrRateLimited — слишком много запросов за окно
	ErrRateLimited = errors.New("请求过于频繁，请稍后再试")
)

// ErrInvalidInput — ошибка валидации с текстом для пользователя.
type ErrInvalidInput struct {
	Message string
}

func (e *ErrInvalidInput) Error() string { return e.Message }

// InvalidInput создаёт ошибку валидации.
func InvalidInput(msg string) error {
	return &ErrInvalidInput{Message: msg}
}

// IsInvalidInput сообщает, является ли ошибка ошибкой валидации.
func IsInvalidInput(err error) bool {
	var ie *ErrInvalidInput
	return errors.As(err, &ie)
}

// IsUserFacing сообщает, что текст ошибки можно показать пользователю как есть.
func IsUserFacing(err error) bool {
	switch {
	case errors.Is(err, ErrInsufficientEnergy),
		errors.Is(err, ErrDuplicateCompletion),
		errors.Is(err, ErrInvalidUncomplete),
		errors.Is(err, ErrTaskAlreadyCompleted),
		errors.Is(err, ErrGoalAlreadyCompleted),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrTaskNotFound),
		errors.Is(err, ErrUnauthorized),
		errors.Is(err, ErrWrongCredentials),
		errors.Is(err, ErrEmailTaken),
		errors.Is(err, ErrDemoUnsupported),
		errors.Is(err, ErrLinkCodeInvalid),
		errors.Is(err, ErrRateLimited),
		IsInvalidInput(err):
		return true
	}
	return false
}

// userFacing — сентинелы, текст которых отдаётся пользователю.
var userFacing = []error{
	ErrInsufficientEnergy, ErrDuplicateCompletion, ErrInvalidUncomplete,
	ErrTaskAlreadyCompleted, ErrGoalAlreadyCompleted, ErrNotFound, ErrTaskNotFound,
	ErrUnauthorized, ErrWrongCredentials, ErrEmailTaken, ErrDemoUnsupported,
	ErrLinkCodeInvalid, ErrRateLimited,
}

// UserMessage возвращает текст для пользователя: сообщение сентинела без
// внутренних подробностей из обёрток. Для внутренних ошибок — общий текст.
func UserMessage(err error) string {
	var ie *ErrInvalidInput
	if errors.As(err, &ie) {
		return ie.Message
	}
	for _, s := range userFacing {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "服务器内部错误"
}
