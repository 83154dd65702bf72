package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type CreditStatus string

const (
	CreditStatusPending   CreditStatus = "pending"
	CreditStatusActive    CreditStatus = "active"
	CreditStatusCompleted CreditStatus = "completed"
	CreditStatusCancelled CreditStatus = "cancelled"
)

func (s CreditStatus) IsValid() bool {
	switch s {
	case CreditStatusPending, CreditStatusActive, CreditStatusCompleted, CreditStatusCancelled:
		return true
	}
	return false
}

// IsTerminal сообщает, что из статуса больше нет переходов.
func (s CreditStatus) IsTerminal() bool {
	return s == CreditStatusCompleted || s == CreditStatusCancelled
}

// Credit: потребительский кредит. AnnualInterestRate и InsuranceRate
// хранятся в процентах (3 означает 3%).
type Credit struct {
	ID                     string          `json:"id"`
	ClientID               string          `json:"client_id"`
	AdvisorID              string          `json:"advisor_id"`
	AccountID              string          `json:"account_id"`
	Amount                 decimal.Decimal `json:"amount"`
	AnnualInterestRate     decimal.Decimal `json:"annual_interest_rate"`
	InsuranceRate          decimal.Decimal `json:"insurance_rate"`
	DurationMonths         int             `json:"duration_months"`
	MonthlyPayment         decimal.Decimal `json:"monthly_payment"`
	InsuranceMonthlyAmount decimal.Decimal `json:"insurance_monthly_amount"`
	RemainingCapital       decimal.Decimal `json:"remaining_capital"`
	PaidMonths             int             `json:"paid_months"`
	StartDate              *time.Time      `json:"start_date,omitempty"`
	NextPaymentDate        *time.Time      `json:"next_payment_date,omitempty"`
	Status                 CreditStatus    `json:"status"`
	CreatedAt              time.Time       `json:"created_at"`
}

type CreateCreditRequest struct {
	ClientID           string          `json:"client_id" validate:"required"`
	AccountID          string          `json:"account_id" validate:"required"`
	Amount             decimal.Decimal `json:"amount"`
	AnnualInterestRate decimal.Decimal `json:"annual_interest_rate"`
	InsuranceRate      decimal.Decimal `json:"insurance_rate"`
	DurationMonths     int             `json:"duration_months" validate:"required,gt=0,lte=600"`
}

type CreditResponse struct {
	ID                     string       `json:"id"`
	ClientID               string       `json:"client_id"`
	AdvisorID              string       `json:"advisor_id"`
	AccountID              string       `json:"account_id"`
	Amount                 string       `json:"amount"`
	AnnualInterestRate     string       `json:"annual_interest_rate"`
	InsuranceRate          string       `json:"insurance_rate"`
	DurationMonths         int          `json:"duration_months"`
	MonthlyPayment         string       `json:"monthly_payment"`
	InsuranceMonthlyAmount string       `json:"insurance_monthly_amount"`
	RemainingCapital       string       `json:"remaining_capital"`
	PaidMonths             int          `json:"paid_months"`
	StartDate              string       `json:"start_date,omitempty"`
	NextPaymentDate        string       `json:"next_payment_date,omitempty"`
	Status                 CreditStatus `json:"status"`
	TotalInterest          string       `json:"total_interest"`
	TotalInsurance         string       `json:"total_insurance"`
	TotalCost              string       `json:"total_cost"`
	CreatedAt              string       `json:"created_at"`
}

type PaymentResponse struct {
	CreditID         string       `json:"credit_id"`
	Interest         string       `json:"interest"`
	Capital          string       `json:"capital"`
	Insurance        string       `json:"insurance"`
	Total            string       `json:"total"`
	RemainingCapital string       `json:"remaining_capital"`
	PaidMonths       int          `json:"paid_months"`
	Status           CreditStatus `json:"status"`
	AccountBalance   string       `json:"account_balance"`
}

type ScheduleRowResponse struct {
	Month            int    `json:"month"`
	DueDate          string `json:"due_date"`
	Interest         string `json:"interest"`
	Capital          string `json:"capital"`
	Insurance        string `json:"insurance"`
	Total            string `json:"total"`
	RemainingCapital string `json:"remaining_capital"`
}
