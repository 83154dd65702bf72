package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"bank-backoffice/internal/credit"
	"bank-backoffice/internal/models"
)

const creditColumns = `id, client_id, advisor_id, account_id, amount, annual_interest_rate,
	insurance_rate, duration_months, monthly_payment, insurance_monthly_amount,
	remaining_capital, paid_months, start_date, next_payment_date, status, created_at`

type CreditRepository struct {
	db DBTX
}

func NewCreditRepository(db DBTX) *CreditRepository {
	return &CreditRepository{db: db}
}

func scanCredit(row pgx.Row) (models.Credit, error) {
	var c models.Credit
	err := row.Scan(
		&c.ID,
		&c.ClientID,
		&c.AdvisorID,
		&c.AccountID,
		&c.Amount,
		&c.AnnualInterestRate,
		&c.InsuranceRate,
		&c.DurationMonths,
		&c.MonthlyPayment,
		&c.InsuranceMonthlyAmount,
		&c.RemainingCapital,
		&c.PaidMonths,
		&c.StartDate,
		&c.NextPaymentDate,
		&c.Status,
		&c.CreatedAt,
	)
	return c, err
}

func (r *CreditRepository) Create(ctx context.Context, c models.Credit) error {
	query := `INSERT INTO credits (` + creditColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	_, err := r.db.Exec(ctx, query,
		c.ID,
		c.ClientID,
		c.AdvisorID,
		c.AccountID,
		c.Amount,
		c.AnnualInterestRate,
		c.InsuranceRate,
		c.DurationMonths,
		c.MonthlyPayment,
		c.InsuranceMonthlyAmount,
		c.RemainingCapital,
		c.PaidMonths,
		c.StartDate,
		c.NextPaymentDate,
		c.Status,
		c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("ошибка создания кредита: %w", err)
	}
	return nil
}

func (r *CreditRepository) get(ctx context.Context, query, id string) (models.Credit, error) {
	c, err := scanCredit(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Credit{}, credit.ErrCreditNotFound
		}
		return models.Credit{}, fmt.Errorf("ошибка получения кредита: %w", err)
	}
	return c, nil
}

func (r *CreditRepository) GetByID(ctx context.Context, id string) (models.Credit, error) {
	return r.get(ctx, `SELECT `+creditColumns+` FROM credits WHERE id = $1`, id)
}

func (r *CreditRepository) GetByIDForUpdate(ctx context.Context, id string) (models.Credit, error) {
	return r.get(ctx, `SELECT `+creditColumns+` FROM credits WHERE id = $1 FOR UPDATE`, id)
}

func (r *CreditRepository) list(ctx context.Context, query string, args ...any) ([]models.Credit, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка кредитов: %w", err)
	}
	defer rows.Close()

	var credits []models.Credit
	for rows.Next() {
		c, err := scanCredit(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования кредита: %w", err)
		}
		credits = append(credits, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения кредитов: %w", err)
	}
	return credits, nil
}

func (r *CreditRepository) ListByClient(ctx context.Context, clientID string) ([]models.Credit, error) {
	return r.list(ctx, `SELECT `+creditColumns+` FROM credits WHERE client_id = $1 ORDER BY created_at DESC`, clientID)
}

func (r *CreditRepository) ListByAdvisor(ctx context.Context, advisorID string) ([]models.Credit, error) {
	return r.list(ctx, `SELECT `+creditColumns+` FROM credits WHERE advisor_id = $1 ORDER BY created_at DESC`, advisorID)
}

func (r *CreditRepository) ListAll(ctx context.Context) ([]models.Credit, error) {
	return r.list(ctx, `SELECT `+creditColumns+` FROM credits ORDER BY created_at DESC`)
}

// Update сохраняет состояние погашения и статус.
func (r *CreditRepository) Update(ctx context.Context, c models.Credit) error {
	query := `
		UPDATE credits
		SET remaining_capital = $1, paid_months = $2, start_date = $3,
		    next_payment_date = $4, status = $5
		WHERE id = $6
	`

	result, err := r.db.Exec(ctx, query,
		c.RemainingCapital,
		c.PaidMonths,
		c.StartDate,
		c.NextPaymentDate,
		c.Status,
		c.ID,
	)
	if err != nil {
		return fmt.Errorf("ошибка обновления кредита: %w", err)
	}
	if result.RowsAffected() == 0 {
		return credit.ErrCreditNotFound
	}
	return nil
}
