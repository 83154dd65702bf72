package services

import (
	"context"
	"errors"

	"bank-backoffice/internal/cache"
	"bank-backoffice/internal/iban"
	"bank-backoffice/internal/ledger"
	"bank-backoffice/internal/metrics"
	"bank-backoffice/internal/models"
	"bank-backoffice/internal/repository"
	"bank-backoffice/internal/utils"
	"bank-backoffice/internal/worker"
)

var ErrInvalidIBAN = errors.New("некорректный IBAN")

type TransactionService struct {
	store   Store
	policy  ledger.OverdraftPolicy
	metrics *metrics.Metrics
	now     Clock
	invalidator
}

func NewTransactionService(store Store, policy ledger.OverdraftPolicy, m *metrics.Metrics, clock Clock, redisCache *cache.RedisCache, pool *worker.WorkerPool) *TransactionService {
	if clock == nil {
		clock = SystemClock(nil)
	}
	return &TransactionService{
		store:       store,
		policy:      policy,
		metrics:     m,
		now:         clock,
		invalidator: invalidator{cache: redisCache, pool: pool},
	}
}

// Transfer переводит средства между счетами. Оба баланса и обе записи
// журнала сохраняются одной транзакцией БД.
func (s *TransactionService) Transfer(ctx context.Context, actor Actor, req models.TransferRequest) (ledger.TransferResult, error) {
	utils.LogInfo("TransactionService", "Перевод от пользователя %s: %s → %s%s (сумма: %s)",
		actor.UserID, req.FromAccountID, req.ToAccountID, req.ToIBAN, req.Amount.StringFixed(2))

	result, err := s.transfer(ctx, actor, req)
	s.metrics.ObserveTransfer(err)
	if err != nil {
		utils.LogWarning("TransactionService", "Перевод отклонён: %v", err)
		return ledger.TransferResult{}, err
	}

	s.invalidate(ctx, "transfer-"+result.Out.ID,
		append(cache.AccountKeys(result.From.ID, result.From.ClientID), cache.AccountKeys(result.To.ID, result.To.ClientID)...)...)

	utils.LogSuccess("TransactionService", "Перевод %s выполнен: %s → %s", result.Out.ID, result.From.ID, result.To.ID)
	return result, nil
}

func (s *TransactionService) transfer(ctx context.Context, actor Actor, req models.TransferRequest) (ledger.TransferResult, error) {
	if !ledger.ValidAmount(req.Amount) {
		return ledger.TransferResult{}, ledger.ErrInvalidAmount
	}

	var result ledger.TransferResult
	err := s.store.WithTx(ctx, func(ctx context.Context, r repository.Repos) error {
		toID, err := s.resolveDestination(ctx, r, req)
		if err != nil {
			return err
		}
		if toID == req.FromAccountID {
			return ledger.ErrSameAccount
		}

		from, to, err := lockPair(ctx, r, req.FromAccountID, toID)
		if err != nil {
			return err
		}
		if !actor.IsAdmin() && from.ClientID != actor.UserID {
			return ErrUnauthorizedAccess
		}

		fromName, err := clientName(ctx, r, from.ClientID)
		if err != nil {
			return err
		}
		toName, err := clientName(ctx, r, to.ClientID)
		if err != nil {
			return err
		}

		result, err = ledger.Transfer(ledger.TransferInput{
			From:           &from,
			To:             &to,
			FromClientName: fromName,
			ToClientName:   toName,
			Amount:         req.Amount,
			Label:          req.Label,
			Policy:         s.policy,
			Now:            s.now(),
		})
		if err != nil {
			return err
		}

		if err := r.Accounts.Update(ctx, result.From); err != nil {
			return err
		}
		if err := r.Accounts.Update(ctx, result.To); err != nil {
			return err
		}
		return r.Transactions.Insert(ctx, result.Out, result.In)
	})
	if err != nil {
		return ledger.TransferResult{}, err
	}
	return result, nil
}

func (s *TransactionService) resolveDestination(ctx context.Context, r repository.Repos, req models.TransferRequest) (string, error) {
	if req.ToAccountID != "" {
		return req.ToAccountID, nil
	}
	code := iban.Normalize(req.ToIBAN)
	if !iban.Validate(code) {
		return "", ErrInvalidIBAN
	}
	account, err := r.Accounts.GetByIBAN(ctx, code)
	if err != nil {
		return "", err
	}
	return account.ID, nil
}

// lockPair блокирует два счёта в порядке id, чтобы встречные переводы
// не приводили к взаимной блокировке.
func lockPair(ctx context.Context, r repository.Repos, fromID, toID string) (models.Account, models.Account, error) {
	first, second := fromID, toID
	if second < first {
		first, second = second, first
	}

	a, err := r.Accounts.GetByIDForUpdate(ctx, first)
	if err != nil {
		return models.Account{}, models.Account{}, err
	}
	b, err := r.Accounts.GetByIDForUpdate(ctx, second)
	if err != nil {
		return models.Account{}, models.Account{}, err
	}

	if a.ID == fromID {
		return a, b, nil
	}
	return b, a, nil
}

// clientName: отображаемое имя владельца счёта для записи журнала.
func clientName(ctx context.Context, r repository.Repos, clientID string) (string, error) {
	user, err := r.Users.GetByID(ctx, clientID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return user.Name, nil
}
