package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"bank-backoffice/internal/interest"
	"bank-backoffice/internal/models"
)

type SettingsRepository struct {
	db DBTX
}

func NewSettingsRepository(db DBTX) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// GetSavingsRate читает ставку из единственной строки настроек.
// Пока строки нет, ставка нулевая.
func (r *SettingsRepository) GetSavingsRate(ctx context.Context) (decimal.Decimal, error) {
	var rate decimal.Decimal
	err := r.db.QueryRow(ctx, `SELECT savings_rate FROM bank_settings WHERE id = 1`).Scan(&rate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, nil
		}
		return decimal.Zero, fmt.Errorf("ошибка получения ставки: %w", err)
	}
	return rate, nil
}

func (r *SettingsRepository) SetSavingsRate(ctx context.Context, rate decimal.Decimal) error {
	if err := interest.ValidateRate(rate); err != nil {
		return err
	}

	query := `
		INSERT INTO bank_settings (id, savings_rate, updated_at)
		VALUES (1, $1, NOW())
		ON CONFLICT (id) DO UPDATE SET savings_rate = EXCLUDED.savings_rate, updated_at = NOW()
	`
	if _, err := r.db.Exec(ctx, query, rate); err != nil {
		return fmt.Errorf("ошибка сохранения ставки: %w", err)
	}
	return nil
}

// ErrDailyRunExists: дневной проход за эту дату уже записан.
var ErrDailyRunExists = errors.New("дневной проход за эту дату уже выполнен")

type InterestRunRepository struct {
	db DBTX
}

func NewInterestRunRepository(db DBTX) *InterestRunRepository {
	return &InterestRunRepository{db: db}
}

func (r *InterestRunRepository) Insert(ctx context.Context, run models.InterestRun) error {
	query := `
		INSERT INTO interest_runs (id, kind, run_date, savings_rate, accounts_processed, total_interest, created_at)
		VALUES ($1, $2, $3::date, $4, $5, $6, $7)
	`
	_, err := r.db.Exec(ctx, query,
		run.ID,
		run.Kind,
		run.RunDate.Format("2006-01-02"),
		run.SavingsRate,
		run.AccountsProcessed,
		run.TotalInterest,
		run.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDailyRunExists
		}
		return fmt.Errorf("ошибка записи прохода начисления: %w", err)
	}
	return nil
}

// ExistsForDate проверяет, был ли проход kind за календарную дату day.
// Дата берётся в часовом поясе самого day.
func (r *InterestRunRepository) ExistsForDate(ctx context.Context, kind models.InterestRunKind, day time.Time) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM interest_runs WHERE kind = $1 AND run_date = $2::date)`

	var exists bool
	if err := r.db.QueryRow(ctx, query, kind, day.Format("2006-01-02")).Scan(&exists); err != nil {
		return false, fmt.Errorf("ошибка проверки прохода начисления: %w", err)
	}
	return exists, nil
}

func (r *InterestRunRepository) ListRecent(ctx context.Context, limit int) ([]models.InterestRun, error) {
	query := `
		SELECT id, kind, run_date, savings_rate, accounts_processed, total_interest, created_at
		FROM interest_runs
		ORDER BY created_at DESC
		LIMIT $1
	`
	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения проходов начисления: %w", err)
	}
	defer rows.Close()

	var runs []models.InterestRun
	for rows.Next() {
		var run models.InterestRun
		if err := rows.Scan(
			&run.ID,
			&run.Kind,
			&run.RunDate,
			&run.SavingsRate,
			&run.AccountsProcessed,
			&run.TotalInterest,
			&run.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования прохода: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения проходов: %w", err)
	}
	return runs, nil
}
