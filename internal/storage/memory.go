// Package storage — memory.go: хранилище демо-сессий в памяти процесса.
//
// Данные теряются при перезапуске. Транзакция работает на копии состояния
// и подменяет его целиком при успехе, поэтому ошибка в середине InTx ничего
// не оставляет после себя. На время транзакции хранилище заблокировано.
package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"levelupsolo.app/server/internal/common"
	"levelupsolo.app/server/internal/model"
)

type memState struct {
	seq       int64
	demoSeq   int64
	stats     map[int64]model.UserStats
	tasks     map[int64]model.Task
	goals     map[int64]model.Goal
	skills    map[int64]model.Skill
	activity  []model.ActivityLog
	pomodoros map[int64]model.PomodoroSession
	touched   map[int64]time.Time // Последнее обращение по пользователю
}

func newMemState() *memState {
	return &memState{
		stats:     make(map[int64]model.UserStats),
		tasks:     make(map[int64]model.Task),
		goals:     make(map[int64]model.Goal),
		skills:    make(map[int64]model.Skill),
		pomodoros: make(map[int64]model.PomodoroSession),
		touched:   make(map[int64]time.Time),
	}
}

func (st *memState) clone() *memState {
	c := &memState{
		seq:       st.seq,
		demoSeq:   st.demoSeq,
		stats:     make(map[int64]model.UserStats, len(st.stats)),
		tasks:     make(map[int64]model.Task, len(st.tasks)),
		goals:     make(map[int64]model.Goal, len(st.goals)),
		skills:    make(map[int64]model.Skill, len(st.skills)),
		activity:  append([]model.ActivityLog(nil), st.activity...),
		pomodoros: make(map[int64]model.PomodoroSession, len(st.pomodoros)),
		touched:   make(map[int64]time.Time, len(st.touched)),
	}
	for k, v := range st.stats {
		c.stats[k] = v
	}
	for k, v := range st.tasks {
		c.tasks[k] = v
	}
	for k, v := range st.goals {
		c.goals[k] = v
	}
	for k, v := range st.skills {
		c.skills[k] = v
	}
	for k, v := range st.pomodoros {
		c.pomodoros[k] = v
	}
	for k, v := range st.touched {
		c.touched[k] = v
	}
	return c
}

func (st *memState) nextID() int64 {
	st.seq++
	return st.seq
}

// MemoryStore — реализация Store в памяти.
type MemoryStore struct {
	mu    *sync.Mutex
	st    *memState
	clock common.Clock
	inTx  bool
}

// NewMemoryStore создаёт пустое хранилище. clock используется для учёта
// активности демо-пользователей.
func NewMemoryStore(clock common.Clock) *MemoryStore {
	if clock == nil {
		clock = common.RealClock{}
	}
	return &MemoryStore{mu: &sync.Mutex{}, st: newMemState(), clock: clock}
}

// lock берёт мьютекс, если мы не внутри транзакции (там он уже взят).
func (m *MemoryStore) lock() func() {
	if m.inTx {
		return func() {}
	}
	m.mu.Lock()
	return m.mu.Unlock
}

func (m *MemoryStore) touch(userID int64) {
	m.st.touched[userID] = m.clock.Now()
}

// InTx выполняет fn на копии состояния и фиксирует её при успехе.
func (m *MemoryStore) InTx(ctx context.Context, fn func(tx Store) error) error {
	if m.inTx {
		return fn(m)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	draft := m.st.clone()
	tx := &MemoryStore{mu: m.mu, st: draft, clock: m.clock, inTx: true}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.st = draft
	return nil
}

// NewDemoUserID выдаёт очередной отрицательный id для демо-сессии.
func (m *MemoryStore) NewDemoUserID() int64 {
	defer m.lock()()
	m.st.demoSeq++
	id := -m.st.demoSeq
	m.touch(id)
	return id
}

// Users возвращает число демо-пользователей с данными.
func (m *MemoryStore) Users() int {
	defer m.lock()()
	return len(m.st.touched)
}

// CleanupIdle удаляет данные пользователей, не обращавшихся с olderThan.
// Возвращает число удалённых пользователей.
func (m *MemoryStore) CleanupIdle(olderThan time.Time) int {
	defer m.lock()()

	stale := make(map[int64]bool)
	for userID, at := range m.st.touched {
		if at.Before(olderThan) {
			stale[userID] = true
			delete(m.st.touched, userID)
		}
	}
	if len(stale) == 0 {
		return 0
	}

	for userID := range stale {
		delete(m.st.stats, userID)
	}
	for id, t := range m.st.tasks {
		if stale[t.UserID] {
			delete(m.st.tasks, id)
		}
	}
	for id, g := range m.st.goals {
		if stale[g.UserID] {
			delete(m.st.goals, id)
		}
	}
	for id, s := range m.st.skills {
		if stale[s.UserID] {
			delete(m.st.skills, id)
		}
	}
	for id, p := range m.st.pomodoros {
		if stale[p.UserID] {
			delete(m.st.pomodoros, id)
		}
	}
	kept := m.st.activity[:0]
	for _, e := range m.st.activity {
		if !stale[e.UserID] {
			kept = append(kept, e)
		}
	}
	m.st.activity = kept
	return len(stale)
}

// --- Статистика ---

func (m *MemoryStore) EnsureStats(ctx context.Context, defaults model.UserStats) (model.UserStats, error) {
	defer m.lock()()
	m.touch(defaults.UserID)
	if st, ok := m.st.stats[defaults.UserID]; ok {
		return st, nil
	}
	m.st.stats[defaults.UserID] = defaults
	return defaults, nil
}

func (m *MemoryStore) GetStats(ctx context.Context, userID int64) (model.UserStats, error) {
	defer m.lock()()
	m.touch(userID)
	st, ok := m.st.stats[userID]
	if !ok {
		return model.UserStats{}, common.ErrNotFound
	}
	return st, nil
}

func (m *MemoryStore) SaveStats(ctx context.Context, stats model.UserStats) error {
	defer m.lock()()
	if _, ok := m.st.stats[stats.UserID]; !ok {
		return common.ErrNotFound
	}
	m.touch(stats.UserID)
	m.st.stats[stats.UserID] = stats
	return nil
}

// --- Задачи ---

func (m *MemoryStore) ListTasks(ctx context.Context, userID int64) ([]model.Task, error) {
	defer m.lock()()
	m.touch(userID)
	out := make([]model.Task, 0)
	for _, t := range m.st.tasks {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	// Новые первыми, как в PostgresStore
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *MemoryStore) GetTask(ctx context.Context, userID, taskID int64) (model.Task, error) {
	defer m.lock()()
	t, ok := m.st.tasks[taskID]
	if !ok || t.UserID != userID {
		return model.Task{}, common.ErrTaskNotFound
	}
	m.touch(userID)
	return t, nil
}

func (m *MemoryStore) CreateTask(ctx context.Context, task model.Task) (model.Task, error) {
	defer m.lock()()
	task.ID = m.st.nextID()
	task.UpdatedAt = task.CreatedAt
	m.st.tasks[task.ID] = task
	m.touch(task.UserID)
	return task, nil
}

func (m *MemoryStore) UpdateTask(ctx context.Context, task model.Task) error {
	defer m.lock()()
	cur, ok := m.st.tasks[task.ID]
	if !ok || cur.UserID != task.UserID {
		return common.ErrTaskNotFound
	}
	task.Source = cur.Source
	task.CreatedAt = cur.CreatedAt
	m.st.tasks[task.ID] = task
	m.touch(task.UserID)
	return nil
}

func (m *MemoryStore) DeleteTask(ctx context.Context, userID, taskID int64) error {
	defer m.lock()()
	t, ok := m.st.tasks[taskID]
	if !ok || t.UserID != userID {
		return common.ErrTaskNotFound
	}
	delete(m.st.tasks, taskID)
	// Как ON DELETE SET NULL в схеме
	for i, e := range m.st.activity {
		if e.TaskID != nil && *e.TaskID == taskID {
			m.st.activity[i].TaskID = nil
		}
	}
	m.touch(userID)
	return nil
}

// --- Цели ---

func (m *MemoryStore) ListGoals(ctx context.Context, userID int64) ([]model.Goal, error) {
	defer m.lock()()
	m.touch(userID)
	out := make([]model.Goal, 0)
	for _, g := range m.st.goals {
		if g.UserID == userID {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *MemoryStore) GetGoal(ctx context.Context, userID, goalID int64) (model.Goal, error) {
	defer m.lock()()
	g, ok := m.st.goals[goalID]
	if !ok || g.UserID != userID {
		return model.Goal{}, common.ErrNotFound
	}
	m.touch(userID)
	return g, nil
}

func (m *MemoryStore) CreateGoal(ctx context.Context, goal model.Goal) (model.Goal, error) {
	defer m.lock()()
	goal.ID = m.st.nextID()
	goal.UpdatedAt = goal.CreatedAt
	m.st.goals[goal.ID] = goal
	m.touch(goal.UserID)
	return goal, nil
}

func (m *MemoryStore) UpdateGoal(ctx context.Context, goal model.Goal) error {
	defer m.lock()()
	cur, ok := m.st.goals[goal.ID]
	if !ok || cur.UserID != goal.UserID {
		return common.ErrNotFound
	}
	goal.CreatedAt = cur.CreatedAt
	m.st.goals[goal.ID] = goal
	m.touch(goal.UserID)
	return nil
}

func (m *MemoryStore) DeleteGoal(ctx context.Context, userID, goalID int64) error {
	defer m.lock()()
	g, ok := m.st.goals[goalID]
	if !ok || g.UserID != userID {
		return common.ErrNotFound
	}
	delete(m.st.goals, goalID)
	m.touch(userID)
	return nil
}

// --- Навыки ---

func (m *MemoryStore) ListSkills(ctx context.Context, userID int64) ([]model.Skill, error) {
	defer m.lock()()
	m.touch(userID)
	out := make([]model.Skill, 0)
	for _, s := range m.st.skills {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Level != out[j].Level {
			return out[i].Level > out[j].Level
		}
		if out[i].Experience != out[j].Experience {
			return out[i].Experience > out[j].Experience
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (m *MemoryStore) GetSkillByName(ctx context.Context, userID int64, name string) (model.Skill, error) {
	defer m.lock()()
	for _, s := range m.st.skills {
		if s.UserID == userID && s.Name == name {
			m.touch(userID)
			return s, nil
		}
	}
	return model.Skill{}, common.ErrNotFound
}

func (m *MemoryStore) CreateSkill(ctx context.Context, skill model.Skill) (model.Skill, error) {
	defer m.lock()()
	for _, s := range m.st.skills {
		if s.UserID == skill.UserID && s.Name == skill.Name {
			return model.Skill{}, common.InvalidInput("技能已存在")
		}
	}
	skill.ID = m.st.nextID()
	skill.UpdatedAt = skill.CreatedAt
	m.st.skills[skill.ID] = skill
	m.touch(skill.UserID)
	return skill, nil
}

func (m *MemoryStore) UpdateSkill(ctx context.Context, skill model.Skill) error {
	defer m.lock()()
	cur, ok := m.st.skills[skill.ID]
	if !ok || cur.UserID != skill.UserID {
		return common.ErrNotFound
	}
	cur.Level = skill.Level
	cur.Experience = skill.Experience
	cur.ExperienceToNext = skill.ExperienceToNext
	cur.UpdatedAt = skill.UpdatedAt
	m.st.skills[skill.ID] = cur
	m.touch(skill.UserID)
	return nil
}

// --- Журнал ---

func (m *MemoryStore) AppendActivity(ctx context.Context, entry model.ActivityLog) (model.ActivityLog, error) {
	defer m.lock()()
	entry.ID = m.st.nextID()
	m.st.activity = append(m.st.activity, entry)
	m.touch(entry.UserID)
	return entry, nil
}

func (m *MemoryStore) ListActivity(ctx context.Context, userID int64, limit int) ([]model.ActivityLog, error) {
	if limit <= 0 {
		limit = DefaultActivityLimit
	}
	defer m.lock()()
	m.touch(userID)
	out := make([]model.ActivityLog, 0)
	// Журнал хранится в порядке добавления — идём с конца
	for i := len(m.st.activity) - 1; i >= 0 && len(out) < limit; i-- {
		if m.st.activity[i].UserID == userID {
			out = append(out, m.st.activity[i])
		}
	}
	return out, nil
}

// --- Помидоры ---

func (m *MemoryStore) CreatePomodoro(ctx context.Context, s model.PomodoroSession) (model.PomodoroSession, error) {
	defer m.lock()()
	if s.Status == model.PomodoroActive {
		for _, p := range m.st.pomodoros {
			if p.UserID == s.UserID && p.Status == model.PomodoroActive {
				return model.PomodoroSession{}, common.InvalidInput("已有进行中的番茄钟")
			}
		}
	}
	s.ID = m.st.nextID()
	m.st.pomodoros[s.ID] = s
	m.touch(s.UserID)
	return s, nil
}

func (m *MemoryStore) GetPomodoro(ctx context.Context, userID, sessionID int64) (model.PomodoroSession, error) {
	defer m.lock()()
	p, ok := m.st.pomodoros[sessionID]
	if !ok || p.UserID != userID {
		return model.PomodoroSession{}, common.ErrNotFound
	}
	m.touch(userID)
	return p, nil
}

func (m *MemoryStore) ActivePomodoro(ctx context.Context, userID int64) (model.PomodoroSession, error) {
	defer m.lock()()
	for _, p := range m.st.pomodoros {
		if p.UserID == userID && p.Status == model.PomodoroActive {
			m.touch(userID)
			return p, nil
		}
	}
	return model.PomodoroSession{}, common.ErrNotFound
}

func (m *MemoryStore) UpdatePomodoro(ctx context.Context, s model.PomodoroSession) error {
	defer m.lock()()
	cur, ok := m.st.pomodoros[s.ID]
	if !ok || cur.UserID != s.UserID {
		return common.ErrNotFound
	}
	cur.Status = s.Status
	cur.CompletedAt = s.CompletedAt
	m.st.pomodoros[s.ID] = cur
	m.touch(s.UserID)
	return nil
}

func (m *MemoryStore) ListPomodoros(ctx context.Context, userID int64, limit int) ([]model.PomodoroSession, error) {
	if limit <= 0 {
		limit = DefaultActivityLimit
	}
	defer m.lock()()
	m.touch(userID)
	out := make([]model.PomodoroSession, 0)
	for _, p := range m.st.pomodoros {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// --- Обслуживание ---

func (m *MemoryStore) ResetEnergyAll(ctx context.Context, dayStart, now time.Time) (int64, error) {
	defer m.lock()()
	var n int64
	for id, st := range m.st.stats {
		if st.LastEnergyReset.Before(dayStart) {
			st.EnergyBalls = st.MaxEnergyBalls
			st.LastEnergyReset = now
			st.UpdatedAt = now
			m.st.stats[id] = st
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) ResetDailyTasks(ctx context.Context, dayStart, now time.Time) (int64, error) {
	defer m.lock()()
	var n int64
	for id, t := range m.st.tasks {
		if !t.Completed {
			continue
		}
		var last *time.Time
		switch t.Category {
		case model.CategoryDaily:
			last = t.CompletedAt
		case model.CategoryHabit:
			last = t.LastCompletedDate
		default:
			continue
		}
		if last != nil && !last.Before(dayStart) {
			continue
		}
		// У привычки остаётся LastCompletedDate: по ней считается серия
		t.Completed = false
		t.CompletedAt = nil
		t.UpdatedAt = now
		m.st.tasks[id] = t
		n++
	}
	return n, nil
}

func (m *MemoryStore) PendingHabits(ctx context.Context, dayStart time.Time) (map[int64]int, error) {
	defer m.lock()()
	out := make(map[int64]int)
	for _, t := range m.st.tasks {
		if t.Category != model.CategoryHabit {
			continue
		}
		if t.LastCompletedDate == nil || t.LastCompletedDate.Before(dayStart) {
			out[t.UserID]++
		}
	}
	return out, nil
}
