package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// BankSettings: единственная строка настроек банка.
// SavingsRate: годовая ставка в долях (0.02 = 2%).
type BankSettings struct {
	SavingsRate decimal.Decimal `json:"savings_rate"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type SavingsRateRequest struct {
	SavingsRate decimal.Decimal `json:"savings_rate"`
}

type InterestRunKind string

const (
	InterestRunDaily   InterestRunKind = "daily"
	InterestRunMissing InterestRunKind = "missing"
)

// InterestRun: отметка об одном проходе начисления процентов.
type InterestRun struct {
	ID                string          `json:"id"`
	Kind              InterestRunKind `json:"kind"`
	RunDate           time.Time       `json:"run_date"`
	SavingsRate       decimal.Decimal `json:"savings_rate"`
	AccountsProcessed int             `json:"accounts_processed"`
	TotalInterest     decimal.Decimal `json:"total_interest"`
	CreatedAt         time.Time       `json:"created_at"`
}

type InterestRunResponse struct {
	Kind              InterestRunKind `json:"kind"`
	SavingsRate       string          `json:"savings_rate"`
	AccountsProcessed int             `json:"accounts_processed"`
	TotalInterest     string          `json:"total_interest"`
}
