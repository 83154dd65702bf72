package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"bank-backoffice/internal/models"
)

// DBTX: общее подмножество pgxpool.Pool и pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type AccountStore interface {
	Create(ctx context.Context, account *models.Account) error
	GetByID(ctx context.Context, id string) (models.Account, error)
	GetByIDForUpdate(ctx context.Context, id string) (models.Account, error)
	GetByIBAN(ctx context.Context, iban string) (models.Account, error)
	ListByClient(ctx context.Context, clientID string) ([]models.Account, error)
	ListAll(ctx context.Context) ([]models.Account, error)
	ListSavingsForUpdate(ctx context.Context) ([]models.Account, error)
	Update(ctx context.Context, account models.Account) error
	IBANExists(ctx context.Context, iban string) (bool, error)
}

type TransactionStore interface {
	Insert(ctx context.Context, txs ...models.Transaction) error
	ListByAccountIDs(ctx context.Context, accountIDs []string) ([]models.Transaction, error)
	LastInterestDates(ctx context.Context, accountIDs []string) (map[string]time.Time, error)
}

type CreditStore interface {
	Create(ctx context.Context, credit models.Credit) error
	GetByID(ctx context.Context, id string) (models.Credit, error)
	GetByIDForUpdate(ctx context.Context, id string) (models.Credit, error)
	ListByClient(ctx context.Context, clientID string) ([]models.Credit, error)
	ListByAdvisor(ctx context.Context, advisorID string) ([]models.Credit, error)
	ListAll(ctx context.Context) ([]models.Credit, error)
	Update(ctx context.Context, credit models.Credit) error
}

type SettingsStore interface {
	GetSavingsRate(ctx context.Context) (decimal.Decimal, error)
	SetSavingsRate(ctx context.Context, rate decimal.Decimal) error
}

type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByName(ctx context.Context, name string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
}

type InterestRunStore interface {
	Insert(ctx context.Context, run models.InterestRun) error
	ExistsForDate(ctx context.Context, kind models.InterestRunKind, day time.Time) (bool, error)
	ListRecent(ctx context.Context, limit int) ([]models.InterestRun, error)
}

// Repos: набор репозиториев, привязанных к одному соединению или транзакции.
type Repos struct {
	Accounts     AccountStore
	Transactions TransactionStore
	Credits      CreditStore
	Settings     SettingsStore
	Users        UserStore
	InterestRuns InterestRunStore
}

// UnitOfWork выполняет fn атомарно: при ошибке все изменения откатываются.
type UnitOfWork interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, r Repos) error) error
}

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Repos возвращает репозитории поверх пула, без транзакции.
func (s *Store) Repos() Repos {
	return bind(s.pool)
}

// WithTx открывает транзакцию ReadCommitted. Строки, которые меняются,
// блокируются явно через SELECT ... FOR UPDATE.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, r Repos) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(ctx, bind(tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("ошибка подтверждения транзакции: %w", err)
	}
	return nil
}

func bind(db DBTX) Repos {
	return Repos{
		Accounts:     NewAccountRepository(db),
		Transactions: NewTransactionRepository(db),
		Credits:      NewCreditRepository(db),
		Settings:     NewSettingsRepository(db),
		Users:        NewUserRepository(db),
		InterestRuns: NewInterestRunRepository(db),
	}
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
