// Package events — рассылка событий прогресса клиентам пользователя.
//
// Сервисы публикуют события (выполнение задачи, рост уровня, восстановление
// энергии, помидор), Hub раздаёт их всем websocket-соединениям этого
// пользователя. Hub никогда не блокирует публикацию: медленный клиент
// теряет сообщения.
package events

import (
	"encoding/json"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Типы событий
const (
	TaskCompleted     = "task_completed"
	TaskUncompleted   = "task_uncompleted"
	LevelUp           = "level_up"
	EnergyRestored    = "energy_restored"
	GoalCompleted     = "goal_completed"
	PomodoroStarted   = "pomodoro_started"
	PomodoroCompleted = "pomodoro_completed"
	PomodoroCancelled = "pomodoro_cancelled"
)

// Event — сообщение клиенту.
type Event struct {
	Type string    `json:"type"`
	Data any       `json:"data,omitempty"`
	At   time.Time `json:"at"`
}

// Publisher — то, чем пользуются сервисы.
type Publisher interface {
	Publish(userID int64, ev Event)
}

// Nop — издатель, который ничего не делает.
type Nop struct{}

func (Nop) Publish(int64, Event) {}

// Hub хранит активные подключения по пользователям.
type Hub struct {
	mu      sync.RWMutex
	clients map[int64]map[*Client]struct{}
	now     func() time.Time
}

// NewHub создаёт пустой Hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[int64]map[*Client]struct{}),
		now:     time.Now,
	}
}

// Register добавляет клиента.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.userID]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[c.userID] = set
	}
	set[c] = struct{}{}
}

// Unregister удаляет клиента и закрывает его канал отправки.
// Повторный вызов безопасен.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.userID]
	if !ok {
		return
	}
	if _, ok := set[c]; ok {
		delete(set, c)
		close(c.send)
	}
	if len(set) == 0 {
		delete(h.clients, c.userID)
	}
}

// Publish отправляет событие всем клиентам пользователя.
func (h *Hub) Publish(userID int64, ev Event) {
	if ev.At.IsZero() {
		ev.At = h.now()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		log.WithError(err).WithField("type", ev.Type).Error("Не удалось сериализовать событие")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients[userID] {
		select {
		case c.send <- data:
		default:
			// Буфер клиента полон — событие теряется, запрос не ждёт
			log.WithFields(log.Fields{
				"component": "events",
				"user_id":   userID,
				"type":      ev.Type,
			}).Debug("Событие отброшено для медленного клиента")
		}
	}
}

// ClientCount возвращает число подключений пользователя.
func (h *Hub) ClientCount(userID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}
