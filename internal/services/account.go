package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"bank-backoffice/internal/cache"
	"bank-backoffice/internal/iban"
	"bank-backoffice/internal/ledger"
	"bank-backoffice/internal/models"
	"bank-backoffice/internal/repository"
	"bank-backoffice/internal/utils"
	"bank-backoffice/internal/worker"
)

var ErrInvalidAccountType = errors.New("неизвестный тип счёта")

const maxIBANAttempts = 10

type AccountService struct {
	store      Store
	cache      *cache.RedisCache
	ibanParams iban.Params
	invalidator
}

func NewAccountService(store Store, ibanParams iban.Params, redisCache *cache.RedisCache, pool *worker.WorkerPool) *AccountService {
	return &AccountService{
		store:       store,
		cache:       redisCache,
		ibanParams:  ibanParams,
		invalidator: invalidator{cache: redisCache, pool: pool},
	}
}

// Create открывает счёт с нулевым балансом и новым уникальным IBAN.
func (s *AccountService) Create(ctx context.Context, actor Actor, req models.CreateAccountRequest) (models.Account, error) {
	utils.LogInfo("AccountService", "Открытие счёта %q (%s) для клиента %s", req.Name, req.Type, actor.UserID)

	if !req.Type.IsValid() {
		return models.Account{}, ErrInvalidAccountType
	}
	name := strings.TrimSpace(req.Name)
	if len([]rune(name)) < 2 {
		return models.Account{}, ledger.ErrInvalidName
	}

	repos := s.store.Repos()
	for attempt := 0; attempt < maxIBANAttempts; attempt++ {
		code, err := iban.Generate(s.ibanParams)
		if err != nil {
			return models.Account{}, fmt.Errorf("ошибка генерации IBAN: %w", err)
		}

		exists, err := repos.Accounts.IBANExists(ctx, code)
		if err != nil {
			return models.Account{}, err
		}
		if exists {
			utils.LogWarning("AccountService", "Коллизия IBAN %s, попытка %d/%d", code, attempt+1, maxIBANAttempts)
			continue
		}

		account := models.Account{
			ID:       uuid.NewString(),
			ClientID: actor.UserID,
			IBAN:     code,
			Name:     name,
			Balance:  decimal.Zero,
			Type:     req.Type,
		}
		err = repos.Accounts.Create(ctx, &account)
		if errors.Is(err, repository.ErrIBANTaken) {
			continue
		}
		if err != nil {
			utils.LogError("AccountService", "Ошибка создания счёта", err)
			return models.Account{}, err
		}

		s.invalidate(ctx, "account-create-"+account.ID, cache.ClientAccountsKey(actor.UserID))
		utils.LogSuccess("AccountService", "Счёт %s открыт (IBAN %s)", account.ID, iban.Format(account.IBAN))
		return account, nil
	}

	return models.Account{}, errors.New("не удалось сгенерировать уникальный IBAN после нескольких попыток")
}

// List возвращает счета клиента, а сотрудникам банка все счета.
func (s *AccountService) List(ctx context.Context, actor Actor) ([]models.Account, error) {
	repos := s.store.Repos()
	if actor.IsStaff() {
		return repos.Accounts.ListAll(ctx)
	}

	key := cache.ClientAccountsKey(actor.UserID)
	var cached []models.Account
	gen, hit := s.readCache(ctx, key, &cached)
	if hit {
		utils.LogDebug("Cache", "HIT: счета клиента %s (%d)", actor.UserID, len(cached))
		return cached, nil
	}

	accounts, err := repos.Accounts.ListByClient(ctx, actor.UserID)
	if err != nil {
		utils.LogError("AccountService", "Ошибка получения счетов клиента "+actor.UserID, err)
		return nil, err
	}

	s.writeCache(ctx, key, gen, accounts, cache.ClientAccountsTTL)
	return accounts, nil
}

func (s *AccountService) Get(ctx context.Context, actor Actor, accountID string) (models.Account, error) {
	account, err := s.load(ctx, accountID)
	if err != nil {
		return models.Account{}, err
	}
	if !actor.CanAccess(account.ClientID) {
		utils.LogWarning("AccountService", "Попытка доступа к чужому счёту %s пользователем %s", accountID, actor.UserID)
		return models.Account{}, ErrUnauthorizedAccess
	}
	return account, nil
}

func (s *AccountService) load(ctx context.Context, accountID string) (models.Account, error) {
	key := cache.AccountInfoKey(accountID)
	var cached models.Account
	gen, hit := s.readCache(ctx, key, &cached)
	if hit {
		return cached, nil
	}

	account, err := s.store.Repos().Accounts.GetByID(ctx, accountID)
	if err != nil {
		return models.Account{}, err
	}

	s.writeCache(ctx, key, gen, account, cache.AccountInfoTTL)
	return account, nil
}

// readCache читает ключ. При промахе возвращает счётчик изменений,
// снятый до похода в базу.
func (s *AccountService) readCache(ctx context.Context, key string, dest interface{}) (string, bool) {
	if s.cache == nil {
		return "", false
	}
	err := s.cache.GetJSON(ctx, key, dest)
	if err == nil {
		return "", true
	}
	if !cache.IsMiss(err) {
		utils.LogWarning("Cache", "Ошибка чтения из кеша: %v", err)
	}
	gen, err := s.cache.Generation(ctx, key)
	if err != nil {
		utils.LogWarning("Cache", "Ошибка чтения счётчика изменений: %v", err)
		return "", false
	}
	return gen, false
}

// writeCache не кеширует значение, если ключ инвалидировали после чтения gen.
func (s *AccountService) writeCache(ctx context.Context, key, gen string, value interface{}, ttl time.Duration) {
	if s.cache == nil || gen == "" {
		return
	}
	if err := s.cache.SetJSONIfUnchanged(ctx, key, gen, value, ttl); err != nil {
		utils.LogWarning("Cache", "Не удалось сохранить в кеш: %v", err)
	}
}

func (s *AccountService) Rename(ctx context.Context, actor Actor, accountID, name string) (models.Account, error) {
	return s.mutate(ctx, actor, accountID, "rename", func(a models.Account) (models.Account, error) {
		return ledger.Rename(a, name)
	})
}

// Close закрывает счёт. Баланс должен быть нулевым.
func (s *AccountService) Close(ctx context.Context, actor Actor, accountID string) (models.Account, error) {
	return s.mutate(ctx, actor, accountID, "close", ledger.Close)
}

func (s *AccountService) mutate(ctx context.Context, actor Actor, accountID, op string, fn func(models.Account) (models.Account, error)) (models.Account, error) {
	utils.LogInfo("AccountService", "Операция %s над счётом %s пользователем %s", op, accountID, actor.UserID)

	var updated models.Account
	err := s.store.WithTx(ctx, func(ctx context.Context, r repository.Repos) error {
		account, err := r.Accounts.GetByIDForUpdate(ctx, accountID)
		if err != nil {
			return err
		}
		if !actor.CanAccess(account.ClientID) {
			return ErrUnauthorizedAccess
		}
		updated, err = fn(account)
		if err != nil {
			return err
		}
		return r.Accounts.Update(ctx, updated)
	})
	if err != nil {
		utils.LogWarning("AccountService", "Операция %s над счётом %s отклонена: %v", op, accountID, err)
		return models.Account{}, err
	}

	s.invalidate(ctx, op+"-"+accountID, cache.AccountKeys(updated.ID, updated.ClientID)...)
	utils.LogSuccess("AccountService", "Операция %s над счётом %s выполнена", op, accountID)
	return updated, nil
}

// Transactions: журнал операций по счёту, новые первыми.
func (s *AccountService) Transactions(ctx context.Context, actor Actor, accountID string) ([]models.Transaction, error) {
	if _, err := s.Get(ctx, actor, accountID); err != nil {
		return nil, err
	}
	return s.store.Repos().Transactions.ListByAccountIDs(ctx, []string{accountID})
}
