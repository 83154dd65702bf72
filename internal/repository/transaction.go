package repository

import (
	"context"
	"fmt"
	"time"

	"bank-backoffice/internal/interest"
	"bank-backoffice/internal/models"
)

type TransactionRepository struct {
	db DBTX
}

func NewTransactionRepository(db DBTX) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) Insert(ctx context.Context, txs ...models.Transaction) error {
	query := `
		INSERT INTO transactions (
			id, account_id, type, amount, label,
			related_account_id, related_client_name, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	for _, t := range txs {
		_, err := r.db.Exec(ctx, query,
			t.ID,
			t.AccountID,
			t.Type,
			t.Amount,
			t.Label,
			t.RelatedAccountID,
			t.RelatedClientName,
			t.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("ошибка записи транзакции %s: %w", t.ID, err)
		}
	}
	return nil
}

func (r *TransactionRepository) ListByAccountIDs(ctx context.Context, accountIDs []string) ([]models.Transaction, error) {
	if len(accountIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT id, account_id, type, amount, label,
		       related_account_id, related_client_name, created_at
		FROM transactions
		WHERE account_id = ANY($1)
		ORDER BY created_at DESC, id
	`

	rows, err := r.db.Query(ctx, query, accountIDs)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения транзакций: %w", err)
	}
	defer rows.Close()

	var transactions []models.Transaction
	for rows.Next() {
		var t models.Transaction
		err := rows.Scan(
			&t.ID,
			&t.AccountID,
			&t.Type,
			&t.Amount,
			&t.Label,
			&t.RelatedAccountID,
			&t.RelatedClientName,
			&t.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования транзакции: %w", err)
		}
		transactions = append(transactions, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения транзакций: %w", err)
	}
	return transactions, nil
}

// LastInterestDates возвращает дату последнего начисления процентов по
// каждому счёту. Счета без начислений в карту не попадают. Начисление
// не имеет счёта-отправителя, поэтому переводы с похожим назначением
// не учитываются.
func (r *TransactionRepository) LastInterestDates(ctx context.Context, accountIDs []string) (map[string]time.Time, error) {
	result := make(map[string]time.Time, len(accountIDs))
	if len(accountIDs) == 0 {
		return result, nil
	}

	query := `
		SELECT account_id, MAX(created_at)
		FROM transactions
		WHERE account_id = ANY($1)
		  AND type = $2
		  AND related_account_id IS NULL
		  AND (label LIKE $3 OR label LIKE $4)
		GROUP BY account_id
	`

	rows, err := r.db.Query(ctx, query,
		accountIDs,
		models.TransactionTypeTransferIn,
		interest.DailyLabelPrefix+"%",
		interest.CatchUpLabelPrefix+"%",
	)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения дат начисления процентов: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			accountID string
			last      time.Time
		)
		if err := rows.Scan(&accountID, &last); err != nil {
			return nil, fmt.Errorf("ошибка сканирования даты начисления: %w", err)
		}
		result[accountID] = last
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения дат начисления: %w", err)
	}
	return result, nil
}
