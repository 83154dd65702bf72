package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"bank-backoffice/internal/ledger"
	"bank-backoffice/internal/models"
	"bank-backoffice/internal/utils"
)

var ErrIBANTaken = errors.New("IBAN уже используется")

const accountColumns = `id, client_id, iban, name, balance, is_closed, account_type, created_at`

type AccountRepository struct {
	db DBTX
}

func NewAccountRepository(db DBTX) *AccountRepository {
	return &AccountRepository{db: db}
}

func scanAccount(row pgx.Row) (models.Account, error) {
	var account models.Account
	err := row.Scan(
		&account.ID,
		&account.ClientID,
		&account.IBAN,
		&account.Name,
		&account.Balance,
		&account.IsClosed,
		&account.Type,
		&account.CreatedAt,
	)
	return account, err
}

func (r *AccountRepository) Create(ctx context.Context, account *models.Account) error {
	query := `
		INSERT INTO accounts (id, client_id, iban, name, balance, is_closed, account_type, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING created_at
	`

	utils.LogDB("CREATE ACCOUNT", fmt.Sprintf("Создание счёта %s для клиента %s", account.IBAN, account.ClientID))

	err := r.db.QueryRow(ctx, query,
		account.ID,
		account.ClientID,
		account.IBAN,
		account.Name,
		account.Balance,
		account.IsClosed,
		account.Type,
	).Scan(&account.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrIBANTaken
		}
		return fmt.Errorf("ошибка создания счёта: %w", err)
	}
	return nil
}

func (r *AccountRepository) get(ctx context.Context, query string, arg string) (models.Account, error) {
	account, err := scanAccount(r.db.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Account{}, ledger.ErrAccountNotFound
		}
		return models.Account{}, fmt.Errorf("ошибка получения счёта: %w", err)
	}
	return account, nil
}

func (r *AccountRepository) GetByID(ctx context.Context, id string) (models.Account, error) {
	return r.get(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
}

// GetByIDForUpdate блокирует строку счёта до конца транзакции.
func (r *AccountRepository) GetByIDForUpdate(ctx context.Context, id string) (models.Account, error) {
	return r.get(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, id)
}

func (r *AccountRepository) GetByIBAN(ctx context.Context, iban string) (models.Account, error) {
	return r.get(ctx, `SELECT `+accountColumns+` FROM accounts WHERE iban = $1`, iban)
}

func (r *AccountRepository) list(ctx context.Context, query string, args ...any) ([]models.Account, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка счетов: %w", err)
	}
	defer rows.Close()

	var accounts []models.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования счёта: %w", err)
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения счетов: %w", err)
	}
	return accounts, nil
}

func (r *AccountRepository) ListByClient(ctx context.Context, clientID string) ([]models.Account, error) {
	return r.list(ctx, `SELECT `+accountColumns+` FROM accounts WHERE client_id = $1 ORDER BY created_at DESC`, clientID)
}

func (r *AccountRepository) ListAll(ctx context.Context) ([]models.Account, error) {
	return r.list(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY created_at DESC`)
}

// ListSavingsForUpdate блокирует открытые сберегательные счета в порядке id.
func (r *AccountRepository) ListSavingsForUpdate(ctx context.Context) ([]models.Account, error) {
	query := `SELECT ` + accountColumns + `
		FROM accounts
		WHERE account_type = $1 AND is_closed = FALSE
		ORDER BY id
		FOR UPDATE`
	return r.list(ctx, query, models.AccountTypeSavings)
}

// Update сохраняет изменяемые поля снимка: имя, баланс и признак закрытия.
func (r *AccountRepository) Update(ctx context.Context, account models.Account) error {
	query := `
		UPDATE accounts
		SET name = $1, balance = $2, is_closed = $3
		WHERE id = $4
	`

	result, err := r.db.Exec(ctx, query, account.Name, account.Balance, account.IsClosed, account.ID)
	if err != nil {
		return fmt.Errorf("ошибка обновления счёта: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ledger.ErrAccountNotFound
	}
	return nil
}

func (r *AccountRepository) IBANExists(ctx context.Context, iban string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM accounts WHERE iban = $1)", iban).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("ошибка проверки уникальности IBAN: %w", err)
	}
	return exists, nil
}
