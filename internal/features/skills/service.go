// Package skills — навыки пользователя. Опыт навыку начисляется при
// выполнении задачи с указанным навыком (см. tasks), здесь только
// просмотр и явное создание.
package skills

import (
	"context"
	"strings"
	"unicode/utf8"

	"levelupsolo.app/server/internal/common"
	"levelupsolo.app/server/internal/model"
	"levelupsolo.app/server/internal/progression"
	"levelupsolo.app/server/internal/storage"
)

const maxNameLen = 50

// CreateInput — данные нового навыка.
type CreateInput struct {
	Name string `json:"name"`
}

type Service struct {
	stores *storage.Router
	clock  common.Clock
}

func NewService(stores *storage.Router, clock common.Clock) *Service {
	return &Service{stores: stores, clock: clock}
}

func (s *Service) List(ctx context.Context, userID int64) ([]model.Skill, error) {
	return s.stores.For(userID).ListSkills(ctx, userID)
}

// Create создаёт навык первого уровня. Повторное имя — ошибка валидации.
func (s *Service) Create(ctx context.Context, userID int64, in CreateInput) (model.Skill, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return model.Skill{}, common.InvalidInput("技能名称不能为空")
	}
	if utf8.RuneCountInString(name) > maxNameLen {
		return model.Skill{}, common.InvalidInput("技能名称过长")
	}

	now := s.clock.Now()
	var out model.Skill
	err := s.stores.For(userID).InTx(ctx, func(tx storage.Store) error {
		skill, err := tx.CreateSkill(ctx, model.Skill{
			UserID:           userID,
			Name:             name,
			Level:            model.DefaultLevel,
			ExperienceToNext: progression.ExpToNextLevel(model.DefaultLevel),
			CreatedAt:        now,
			UpdatedAt:        now,
		})
		if err != nil {
			return err
		}
		if _, err := tx.AppendActivity(ctx, model.ActivityLog{
			UserID:    userID,
			SkillID:   &skill.ID,
			Action:    model.ActionSkillCreated,
			CreatedAt: now,
		}); err != nil {
			return err
		}
		out = skill
		return nil
	})
	return out, err
}
