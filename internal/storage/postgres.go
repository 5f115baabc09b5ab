// Package storage — postgres.go: основная реализация Store поверх pgx.
// Запросы пишутся вручную с параметрами $n, строки сканируются в модели по
// тегам db.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"levelupsolo.app/server/internal/common"
	"levelupsolo.app/server/internal/db/postgres"
	"levelupsolo.app/server/internal/model"
)

const (
	statsColumns = `user_id, level, experience, experience_to_next, energy_balls, max_energy_balls,
		streak, total_tasks_completed, last_energy_reset, last_active_date, created_at, updated_at`
	taskColumns = `id, user_id, title, description, category, difficulty, source, skill,
		estimated_minutes, exp_reward, required_energy_balls, completed, habit_streak, habit_value,
		last_completed_date, completed_at, created_at, updated_at`
	goalColumns = `id, user_id, title, description, progress, target_date, exp_reward,
		completed, completed_at, created_at, updated_at`
	skillColumns    = `id, user_id, name, level, experience, experience_to_next, created_at, updated_at`
	activityColumns = `id, user_id, task_id, skill_id, exp_gained, action, created_at`
	pomodoroColumns = `id, user_id, task_id, duration_minutes, status, started_at, ends_at, completed_at`
)

// PostgresStore хранит данные в PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
	q    postgres.Querier
	inTx bool
}

// NewPostgresStore создаёт хранилище поверх пула.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, q: pool}
}

// InTx открывает транзакцию. Вложенный вызов выполняется в уже открытой.
func (s *PostgresStore) InTx(ctx context.Context, fn func(tx Store) error) error {
	if s.inTx {
		return fn(s)
	}
	return postgres.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(&PostgresStore{pool: s.pool, q: tx, inTx: true})
	})
}

// lock добавляет FOR UPDATE к чтению внутри транзакции.
func (s *PostgresStore) lock() string {
	if s.inTx {
		return " FOR UPDATE"
	}
	return ""
}

func notFound(err, sentinel error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return sentinel
	}
	return err
}

// --- Статистика ---

func (s *PostgresStore) EnsureStats(ctx context.Context, defaults model.UserStats) (model.UserStats, error) {
	_, err := s.q.Exec(ctx, `
		INSERT INTO user_stats (user_id, level, experience, experience_to_next, energy_balls,
			max_energy_balls, streak, total_tasks_completed, last_energy_reset, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 0, 0, $7, $8, $8)
		ON CONFLICT (user_id) DO NOTHING
	`, defaults.UserID, defaults.Level, defaults.Experience, defaults.ExperienceToNext,
		defaults.EnergyBalls, defaults.MaxEnergyBalls, defaults.LastEnergyReset, defaults.CreatedAt)
	if err != nil {
		return model.UserStats{}, fmt.Errorf("ошибка создания статистики: %w", err)
	}
	return s.GetStats(ctx, defaults.UserID)
}

func (s *PostgresStore) GetStats(ctx context.Context, userID int64) (model.UserStats, error) {
	rows, err := s.q.Query(ctx, `SELECT `+statsColumns+` FROM user_stats WHERE user_id = $1`+s.lock(), userID)
	if err != nil {
		return model.UserStats{}, fmt.Errorf("ошибка получения статистики: %w", err)
	}
	stats, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[model.UserStats])
	if err != nil {
		return model.UserStats{}, notFound(err, common.ErrNotFound)
	}
	return stats, nil
}

func (s *PostgresStore) SaveStats(ctx context.Context, st model.UserStats) error {
	tag, err := s.q.Exec(ctx, `
		UPDATE user_stats
		SET level = $2, experience = $3, experience_to_next = $4, energy_balls = $5,
			max_energy_balls = $6, streak = $7, total_tasks_completed = $8,
			last_energy_reset = $9, last_active_date = $10, updated_at = $11
		WHERE user_id = $1
	`, st.UserID, st.Level, st.Experience, st.ExperienceToNext, st.EnergyBalls, st.MaxEnergyBalls,
		st.Streak, st.TotalTasksCompleted, st.LastEnergyReset, st.LastActiveDate, st.UpdatedAt)
	if err != nil {
		return fmt.Errorf("ошибка сохранения статистики: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return common.ErrNotFound
	}
	return nil
}

// --- Задачи ---

func (s *PostgresStore) ListTasks(ctx context.Context, userID int64) ([]model.Task, error) {
	rows, err := s.q.Query(ctx, `SELECT `+taskColumns+` FROM tasks WHERE user_id = $1 ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения задач: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowToStructByName[model.Task])
}

func (s *PostgresStore) GetTask(ctx context.Context, userID, taskID int64) (model.Task, error) {
	rows, err := s.q.Query(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1 AND user_id = $2`+s.lock(), taskID, userID)
	if err != nil {
		return model.Task{}, fmt.Errorf("ошибка получения задачи: %w", err)
	}
	task, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[model.Task])
	if err != nil {
		return model.Task{}, notFound(err, common.ErrTaskNotFound)
	}
	return task, nil
}

func (s *PostgresStore) CreateTask(ctx context.Context, t model.Task) (model.Task, error) {
	err := s.q.QueryRow(ctx, `
		INSERT INTO tasks (user_id, title, description, category, difficulty, source, skill,
			estimated_minutes, exp_reward, required_energy_balls, completed, habit_streak, habit_value,
			last_completed_date, completed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $16)
		RETURNING id
	`, t.UserID, t.Title, t.Description, t.Category, t.Difficulty, t.Source, t.Skill,
		t.EstimatedMinutes, t.ExpReward, t.RequiredEnergyBalls, t.Completed, t.HabitStreak, t.HabitValue,
		t.LastCompletedDate, t.CompletedAt, t.CreatedAt).Scan(&t.ID)
	if err != nil {
		return model.Task{}, fmt.Errorf("ошибка создания задачи: %w", err)
	}
	t.UpdatedAt = t.CreatedAt
	return t, nil
}

func (s *PostgresStore) UpdateTask(ctx context.Context, t model.Task) error {
	tag, err := s.q.Exec(ctx, `
		UPDATE tasks
		SET title = $3, description = $4, category = $5, difficulty = $6, skill = $7,
			estimated_minutes = $8, exp_reward = $9, required_energy_balls = $10, completed = $11,
			habit_streak = $12, habit_value = $13, last_completed_date = $14, completed_at = $15,
			updated_at = $16
		WHERE id = $1 AND user_id = $2
	`, t.ID, t.UserID, t.Title, t.Description, t.Category, t.Difficulty, t.Skill,
		t.EstimatedMinutes, t.ExpReward, t.RequiredEnergyBalls, t.Completed,
		t.HabitStreak, t.HabitValue, t.LastCompletedDate, t.CompletedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("ошибка обновления задачи: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return common.ErrTaskNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteTask(ctx context.Context, userID, taskID int64) error {
	tag, err := s.q.Exec(ctx, `DELETE FROM tasks WHERE id = $1 AND user_id = $2`, taskID, userID)
	if err != nil {
		return fmt.Errorf("ошибка удаления задачи: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return common.ErrTaskNotFound
	}
	return nil
}

// --- Цели ---

func (s *PostgresStore) ListGoals(ctx context.Context, userID int64) ([]model.Goal, error) {
	rows, err := s.q.Query(ctx, `SELECT `+goalColumns+` FROM goals WHERE user_id = $1 ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения целей: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowToStructByName[model.Goal])
}

func (s *PostgresStore) GetGoal(ctx context.Context, userID, goalID int64) (model.Goal, error) {
	rows, err := s.q.Query(ctx, `SELECT `+goalColumns+` FROM goals WHERE id = $1 AND user_id = $2`+s.lock(), goalID, userID)
	if err != nil {
		return model.Goal{}, fmt.Errorf("ошибка получения цели: %w", err)
	}
	goal, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[model.Goal])
	if err != nil {
		return model.Goal{}, notFound(err, common.ErrNotFound)
	}
	return goal, nil
}

func (s *PostgresStore) CreateGoal(ctx context.Context, g model.Goal) (model.Goal, error) {
	err := s.q.QueryRow(ctx, `
		INSERT INTO goals (user_id, title, description, progress, target_date, exp_reward,
			completed, completed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		RETURNING id
	`, g.UserID, g.Title, g.Description, g.Progress, g.TargetDate, g.ExpReward,
		g.Completed, g.CompletedAt, g.CreatedAt).Scan(&g.ID)
	if err != nil {
		return model.Goal{}, fmt.Errorf("ошибка создания цели: %w", err)
	}
	g.UpdatedAt = g.CreatedAt
	return g, nil
}

func (s *PostgresStore) UpdateGoal(ctx context.Context, g model.Goal) error {
	tag, err := s.q.Exec(ctx, `
		UPDATE goals
		SET title = $3, description = $4, progress = $5, target_date = $6, exp_reward = $7,
			completed = $8, completed_at = $9, updated_at = $10
		WHERE id = $1 AND user_id = $2
	`, g.ID, g.UserID, g.Title, g.Description, g.Progress, g.TargetDate, g.ExpReward,
		g.Completed, g.CompletedAt, g.UpdatedAt)
	if err != nil {
		return fmt.Errorf("ошибка обновления цели: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteGoal(ctx context.Context, userID, goalID int64) error {
	tag, err := s.q.Exec(ctx, `DELETE FROM goals WHERE id = $1 AND user_id = $2`, goalID, userID)
	if err != nil {
		return fmt.Errorf("ошибка удаления цели: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return common.ErrNotFound
	}
	return nil
}

// --- Навыки ---

func (s *PostgresStore) ListSkills(ctx context.Context, userID int64) ([]model.Skill, error) {
	rows, err := s.q.Query(ctx, `SELECT `+skillColumns+` FROM skills WHERE user_id = $1 ORDER BY level DESC, experience DESC, name`, userID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения навыков: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowToStructByName[model.Skill])
}

func (s *PostgresStore) GetSkillByName(ctx context.Context, userID int64, name string) (model.Skill, error) {
	rows, err := s.q.Query(ctx, `SELECT `+skillColumns+` FROM skills WHERE user_id = $1 AND name = $2`+s.lock(), userID, name)
	if err != nil {
		return model.Skill{}, fmt.Errorf("ошибка получения навыка: %w", err)
	}
	skill, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[model.Skill])
	if err != nil {
		return model.Skill{}, notFound(err, common.ErrNotFound)
	}
	return skill, nil
}

func (s *PostgresStore) CreateSkill(ctx context.Context, sk model.Skill) (model.Skill, error) {
	err := s.q.QueryRow(ctx, `
		INSERT INTO skills (user_id, name, level, experience, experience_to_next, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		RETURNING id
	`, sk.UserID, sk.Name, sk.Level, sk.Experience, sk.ExperienceToNext, sk.CreatedAt).Scan(&sk.ID)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return model.Skill{}, common.InvalidInput("技能已存在")
		}
		return model.Skill{}, fmt.Errorf("ошибка создания навыка: %w", err)
	}
	sk.UpdatedAt = sk.CreatedAt
	return sk, nil
}

func (s *PostgresStore) UpdateSkill(ctx context.Context, sk model.Skill) error {
	tag, err := s.q.Exec(ctx, `
		UPDATE skills SET level = $3, experience = $4, experience_to_next = $5, updated_at = $6
		WHERE id = $1 AND user_id = $2
	`, sk.ID, sk.UserID, sk.Level, sk.Experience, sk.ExperienceToNext, sk.UpdatedAt)
	if err != nil {
		return fmt.Errorf("ошибка обновления навыка: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return common.ErrNotFound
	}
	return nil
}

// --- Журнал ---

func (s *PostgresStore) AppendActivity(ctx context.Context, e model.ActivityLog) (model.ActivityLog, error) {
	err := s.q.QueryRow(ctx, `
		INSERT INTO activity_logs (user_id, task_id, skill_id, exp_gained, action, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, e.UserID, e.TaskID, e.SkillID, e.ExpGained, e.Action, e.CreatedAt).Scan(&e.ID)
	if err != nil {
		return model.ActivityLog{}, fmt.Errorf("ошибка записи в журнал: %w", err)
	}
	return e, nil
}

func (s *PostgresStore) ListActivity(ctx context.Context, userID int64, limit int) ([]model.ActivityLog, error) {
	if limit <= 0 {
		limit = DefaultActivityLimit
	}
	rows, err := s.q.Query(ctx, `
		SELECT `+activityColumns+` FROM activity_logs
		WHERE user_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения журнала: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowToStructByName[model.ActivityLog])
}

// --- Помидоры ---

func (s *PostgresStore) CreatePomodoro(ctx context.Context, p model.PomodoroSession) (model.PomodoroSession, error) {
	err := s.q.QueryRow(ctx, `
		INSERT INTO pomodoro_sessions (user_id, task_id, duration_minutes, status, started_at, ends_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, p.UserID, p.TaskID, p.DurationMinutes, p.Status, p.StartedAt, p.EndsAt, p.CompletedAt).Scan(&p.ID)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return model.PomodoroSession{}, common.InvalidInput("已有进行中的番茄钟")
		}
		return model.PomodoroSession{}, fmt.Errorf("ошибка создания помидора: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) GetPomodoro(ctx context.Context, userID, sessionID int64) (model.PomodoroSession, error) {
	rows, err := s.q.Query(ctx, `SELECT `+pomodoroColumns+` FROM pomodoro_sessions WHERE id = $1 AND user_id = $2`+s.lock(), sessionID, userID)
	if err != nil {
		return model.PomodoroSession{}, fmt.Errorf("ошибка получения помидора: %w", err)
	}
	p, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[model.PomodoroSession])
	if err != nil {
		return model.PomodoroSession{}, notFound(err, common.ErrNotFound)
	}
	return p, nil
}

func (s *PostgresStore) ActivePomodoro(ctx context.Context, userID int64) (model.PomodoroSession, error) {
	rows, err := s.q.Query(ctx, `SELECT `+pomodoroColumns+` FROM pomodoro_sessions WHERE user_id = $1 AND status = 'active'`+s.lock(), userID)
	if err != nil {
		return model.PomodoroSession{}, fmt.Errorf("ошибка получения помидора: %w", err)
	}
	p, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[model.PomodoroSession])
	if err != nil {
		return model.PomodoroSession{}, notFound(err, common.ErrNotFound)
	}
	return p, nil
}

func (s *PostgresStore) UpdatePomodoro(ctx context.Context, p model.PomodoroSession) error {
	tag, err := s.q.Exec(ctx, `
		UPDATE pomodoro_sessions SET status = $3, completed_at = $4
		WHERE id = $1 AND user_id = $2
	`, p.ID, p.UserID, p.Status, p.CompletedAt)
	if err != nil {
		return fmt.Errorf("ошибка обновления помидора: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListPomodoros(ctx context.Context, userID int64, limit int) ([]model.PomodoroSession, error) {
	if limit <= 0 {
		limit = DefaultActivityLimit
	}
	rows, err := s.q.Query(ctx, `
		SELECT `+pomodoroColumns+` FROM pomodoro_sessions
		WHERE user_id = $1 ORDER BY started_at DESC, id DESC LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения помидоров: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowToStructByName[model.PomodoroSession])
}

// --- Обслуживание ---

// ResetEnergyAll повторяет правило progression.DailyResetIfNeeded одним
// UPDATE: сброс был до начала текущих суток. Согласованность правил
// проверяет jobs/scheduler_test.go.
func (s *PostgresStore) ResetEnergyAll(ctx context.Context, dayStart, now time.Time) (int64, error) {
	tag, err := s.q.Exec(ctx, `
		UPDATE user_stats
		SET energy_balls = max_energy_balls, last_energy_reset = $2, updated_at = $2
		WHERE last_energy_reset < $1
	`, dayStart, now)
	if err != nil {
		return 0, fmt.Errorf("ошибка сброса энергии: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) ResetDailyTasks(ctx context.Context, dayStart, now time.Time) (int64, error) {
	tag, err := s.q.Exec(ctx, `
		UPDATE tasks
		SET completed = FALSE, completed_at = NULL, updated_at = $2
		WHERE completed AND (
			(category = 'daily' AND (completed_at IS NULL OR completed_at < $1))
			OR (category = 'habit' AND (last_completed_date IS NULL OR last_completed_date < $1))
		)
	`, dayStart, now)
	if err != nil {
		return 0, fmt.Errorf("ошибка сброса ежедневных задач: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) PendingHabits(ctx context.Context, dayStart time.Time) (map[int64]int, error) {
	rows, err := s.q.Query(ctx, `
		SELECT user_id, COUNT(*) FROM tasks
		WHERE category = 'habit' AND (last_completed_date IS NULL OR last_completed_date < $1)
		GROUP BY user_id
	`, dayStart)
	if err != nil {
		return nil, fmt.Errorf("ошибка подсчёта привычек: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]int)
	for rows.Next() {
		var userID int64
		var n int
		if err := rows.Scan(&userID, &n); err != nil {
			return nil, err
		}
		out[userID] = n
	}
	return out, rows.Err()
}
