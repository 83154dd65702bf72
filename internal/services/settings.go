package services

import (
	"context"

	"github.com/shopspring/decimal"

	"bank-backoffice/internal/interest"
	"bank-backoffice/internal/utils"
)

type SettingsService struct {
	store Store
}

func NewSettingsService(store Store) *SettingsService {
	return &SettingsService{store: store}
}

func (s *SettingsService) GetSavingsRate(ctx context.Context) (decimal.Decimal, error) {
	return s.store.Repos().Settings.GetSavingsRate(ctx)
}

// SetSavingsRate меняет годовую ставку сберегательных счетов (доля, 0.02 = 2%).
// Новая ставка действует со следующего прохода начисления.
func (s *SettingsService) SetSavingsRate(ctx context.Context, actor Actor, rate decimal.Decimal) error {
	if !actor.IsAdmin() {
		return ErrForbiddenRole
	}
	if err := interest.ValidateRate(rate); err != nil {
		return err
	}
	if err := s.store.Repos().Settings.SetSavingsRate(ctx, rate); err != nil {
		utils.LogError("SettingsService", "Ошибка сохранения ставки", err)
		return err
	}
	utils.LogSuccess("SettingsService", "Ставка сберегательных счетов изменена на %s администратором %s", rate.String(), actor.UserID)
	return nil
}
