// Package common содержит общие утилиты, используемые во всём проекте:
// работа с календарными датами в часовом поясе приложения и часы.
package common

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// DefaultTimezone — часовой пояс по умолчанию (основная аудитория — Китай).
const DefaultTimezone = "Asia/Shanghai"

// LoadLocation загружает часовой пояс по имени.
// Если tzdata недоступна — используем UTC+8 вручную, как и для Шанхая.
func LoadLocation(name string) *time.Location {
	if name == "" {
		name = DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		log.WithError(err).WithField("tz", name).Warn("Не удалось загрузить часовой пояс, используем UTC+8")
		return time.FixedZone("CST", 8*60*60)
	}
	return loc
}

// StartOfDay возвращает полночь календарного дня t в его же часовом поясе.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// SameDay сообщает, что a и b попадают в один календарный день в loc.
func SameDay(a, b time.Time, loc *time.Location) bool {
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}

// DaysBetween возвращает число календарных дней от a до b в loc
// (0 — тот же день, 1 — b на следующий день после a).
func DaysBetween(a, b time.Time, loc *time.Location) int {
	ad := StartOfDay(a.In(loc))
	bd := StartOfDay(b.In(loc))
	// Через UTC-даты, чтобы переход на летнее время не давал 23/25 часов
	au := time.Date(ad.Year(), ad.Month(), ad.Day(), 0, 0, 0, 0, time.UTC)
	bu := time.Date(bd.Year(), bd.Month(), bd.Day(), 0, 0, 0, 0, time.UTC)
	return int(bu.Sub(au).Hours() / 24)
}

// FormatDate форматирует дату как "2006-01-02" в loc.
func FormatDate(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02")
}

// Clock — источник текущего времени. В тестах подменяется FakeClock.
type Clock interface {
	Now() time.Time
}

// RealClock возвращает системное время в заданном часовом поясе.
type RealClock struct {
	Location *time.Location
}

func (c RealClock) Now() time.Time {
	if c.Location == nil {
		return time.Now()
	}
	return time.Now().In(c.Location)
}

// FakeClock — детерминированные часы для тестов.
type FakeClock struct {
	mu sync.Mutex
	t  time.Time
}

// NewFakeClock создаёт часы, стоящие на start.
func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{t: start}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

// Set переставляет часы.
func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

// Advance сдвигает часы вперёд на d.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}
