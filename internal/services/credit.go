package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"bank-backoffice/internal/cache"
	"bank-backoffice/internal/credit"
	"bank-backoffice/internal/ledger"
	"bank-backoffice/internal/metrics"
	"bank-backoffice/internal/models"
	"bank-backoffice/internal/repository"
	"bank-backoffice/internal/utils"
	"bank-backoffice/internal/worker"
)

var ErrAccountOwnerMismatch = errors.New("счёт не принадлежит клиенту кредита")

const (
	DisbursementLabel = "Credit disbursement"
	RepaymentLabel    = "Credit repayment"
)

// PaymentResult: итог записи ежемесячного платежа.
type PaymentResult struct {
	Credit  models.Credit
	Payment credit.Payment
	Account models.Account
}

type CreditService struct {
	store   Store
	policy  ledger.OverdraftPolicy
	metrics *metrics.Metrics
	now     Clock
	invalidator
}

func NewCreditService(store Store, policy ledger.OverdraftPolicy, m *metrics.Metrics, clock Clock, redisCache *cache.RedisCache, pool *worker.WorkerPool) *CreditService {
	if clock == nil {
		clock = SystemClock(nil)
	}
	return &CreditService{
		store:       store,
		policy:      policy,
		metrics:     m,
		now:         clock,
		invalidator: invalidator{cache: redisCache, pool: pool},
	}
}

// Create оформляет кредит в статусе pending. Доступно консультантам и администраторам.
func (s *CreditService) Create(ctx context.Context, actor Actor, req models.CreateCreditRequest) (models.Credit, error) {
	if !actor.IsStaff() {
		return models.Credit{}, ErrForbiddenRole
	}
	utils.LogInfo("CreditService", "Оформление кредита %s на счёт %s консультантом %s",
		req.Amount.StringFixed(2), req.AccountID, actor.UserID)

	repos := s.store.Repos()
	account, err := repos.Accounts.GetByID(ctx, req.AccountID)
	if err != nil {
		return models.Credit{}, err
	}
	if account.ClientID != req.ClientID {
		return models.Credit{}, ErrAccountOwnerMismatch
	}
	if account.IsClosed {
		return models.Credit{}, ledger.ErrAccountClosed
	}

	c, err := credit.New(credit.Terms{
		ClientID:           req.ClientID,
		AdvisorID:          actor.UserID,
		AccountID:          req.AccountID,
		Amount:             req.Amount,
		AnnualInterestRate: req.AnnualInterestRate,
		InsuranceRate:      req.InsuranceRate,
		DurationMonths:     req.DurationMonths,
	}, s.now())
	if err != nil {
		return models.Credit{}, err
	}

	if err := repos.Credits.Create(ctx, c); err != nil {
		utils.LogError("CreditService", "Ошибка сохранения кредита", err)
		return models.Credit{}, err
	}

	utils.LogSuccess("CreditService", "Кредит %s оформлен: платёж %s, страховка %s",
		c.ID, c.MonthlyPayment.StringFixed(2), c.InsuranceMonthlyAmount.StringFixed(2))
	return c, nil
}

// Activate переводит кредит в active и зачисляет сумму кредита на счёт.
func (s *CreditService) Activate(ctx context.Context, actor Actor, creditID string) (models.Credit, error) {
	if !actor.IsStaff() {
		return models.Credit{}, ErrForbiddenRole
	}

	var (
		activated models.Credit
		account   models.Account
	)
	err := s.store.WithTx(ctx, func(ctx context.Context, r repository.Repos) error {
		c, err := r.Credits.GetByIDForUpdate(ctx, creditID)
		if err != nil {
			return err
		}
		now := s.now()
		activated, err = credit.Activate(c, now)
		if err != nil {
			return err
		}

		acc, err := r.Accounts.GetByIDForUpdate(ctx, c.AccountID)
		if err != nil {
			return err
		}
		account, err = ledger.Credit(acc, c.Amount)
		if err != nil {
			return err
		}

		if err := r.Credits.Update(ctx, activated); err != nil {
			return err
		}
		if err := r.Accounts.Update(ctx, account); err != nil {
			return err
		}
		return r.Transactions.Insert(ctx, models.Transaction{
			ID:        uuid.NewString(),
			AccountID: account.ID,
			Type:      models.TransactionTypeTransferIn,
			Amount:    c.Amount,
			Label:     DisbursementLabel,
			CreatedAt: now,
		})
	})
	if err != nil {
		utils.LogWarning("CreditService", "Активация кредита %s отклонена: %v", creditID, err)
		return models.Credit{}, err
	}

	s.invalidate(ctx, "credit-activate-"+creditID, cache.AccountKeys(account.ID, account.ClientID)...)
	utils.LogSuccess("CreditService", "Кредит %s активирован, зачислено %s на счёт %s",
		creditID, activated.Amount.StringFixed(2), account.ID)
	return activated, nil
}

// RecordPayment списывает очередной платёж со счёта кредита.
func (s *CreditService) RecordPayment(ctx context.Context, actor Actor, creditID string) (PaymentResult, error) {
	var result PaymentResult
	err := s.store.WithTx(ctx, func(ctx context.Context, r repository.Repos) error {
		c, err := r.Credits.GetByIDForUpdate(ctx, creditID)
		if err != nil {
			return err
		}
		if !actor.CanAccess(c.ClientID) {
			return ErrUnauthorizedAccess
		}

		next, payment, err := credit.RecordMonthlyPayment(c)
		if err != nil {
			return err
		}

		acc, err := r.Accounts.GetByIDForUpdate(ctx, c.AccountID)
		if err != nil {
			return err
		}
		debited, err := ledger.Debit(acc, payment.Total, s.policy)
		if err != nil {
			return err
		}

		if err := r.Credits.Update(ctx, next); err != nil {
			return err
		}
		if err := r.Accounts.Update(ctx, debited); err != nil {
			return err
		}
		err = r.Transactions.Insert(ctx, models.Transaction{
			ID:        uuid.NewString(),
			AccountID: debited.ID,
			Type:      models.TransactionTypeTransferOut,
			Amount:    payment.Total,
			Label:     fmt.Sprintf("%s %d/%d", RepaymentLabel, next.PaidMonths, next.DurationMonths),
			CreatedAt: s.now(),
		})
		if err != nil {
			return err
		}

		result = PaymentResult{Credit: next, Payment: payment, Account: debited}
		return nil
	})
	s.metrics.ObserveCreditPayment(err)
	if err != nil {
		utils.LogWarning("CreditService", "Платёж по кредиту %s отклонён: %v", creditID, err)
		return PaymentResult{}, err
	}

	s.invalidate(ctx, "credit-payment-"+creditID, cache.AccountKeys(result.Account.ID, result.Account.ClientID)...)
	utils.LogSuccess("CreditService", "Платёж %d/%d по кредиту %s: проценты %s, капитал %s, страховка %s, остаток %s",
		result.Credit.PaidMonths, result.Credit.DurationMonths, creditID,
		result.Payment.Interest.StringFixed(2),
		result.Payment.Capital.StringFixed(2),
		result.Payment.Insurance.StringFixed(2),
		result.Payment.RemainingCapital.StringFixed(2))
	return result, nil
}

func (s *CreditService) Cancel(ctx context.Context, actor Actor, creditID string) (models.Credit, error) {
	if !actor.IsStaff() {
		return models.Credit{}, ErrForbiddenRole
	}

	var cancelled models.Credit
	err := s.store.WithTx(ctx, func(ctx context.Context, r repository.Repos) error {
		c, err := r.Credits.GetByIDForUpdate(ctx, creditID)
		if err != nil {
			return err
		}
		cancelled, err = credit.Cancel(c)
		if err != nil {
			return err
		}
		return r.Credits.Update(ctx, cancelled)
	})
	if err != nil {
		return models.Credit{}, err
	}

	utils.LogSuccess("CreditService", "Кредит %s отменён", creditID)
	return cancelled, nil
}

func (s *CreditService) Get(ctx context.Context, actor Actor, creditID string) (models.Credit, error) {
	c, err := s.store.Repos().Credits.GetByID(ctx, creditID)
	if err != nil {
		return models.Credit{}, err
	}
	if !actor.CanAccess(c.ClientID) {
		return models.Credit{}, ErrUnauthorizedAccess
	}
	return c, nil
}

// List: клиент видит свои кредиты, консультант оформленные им, администратор все.
func (s *CreditService) List(ctx context.Context, actor Actor) ([]models.Credit, error) {
	credits := s.store.Repos().Credits
	switch actor.Role {
	case models.RoleAdmin:
		return credits.ListAll(ctx)
	case models.RoleAdvisor:
		return credits.ListByAdvisor(ctx, actor.UserID)
	default:
		return credits.ListByClient(ctx, actor.UserID)
	}
}

func (s *CreditService) Schedule(ctx context.Context, actor Actor, creditID string) ([]credit.ScheduleRow, error) {
	c, err := s.Get(ctx, actor, creditID)
	if err != nil {
		return nil, err
	}
	return credit.Schedule(c, s.now()), nil
}
