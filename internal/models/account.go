package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type AccountType string

const (
	AccountTypeChecking AccountType = "checking"
	AccountTypeSavings  AccountType = "savings"
)

func (t AccountType) IsValid() bool {
	switch t {
	case AccountTypeChecking, AccountTypeSavings:
		return true
	}
	return false
}

type Account struct {
	ID        string          `json:"id"`
	ClientID  string          `json:"client_id"`
	IBAN      string          `json:"iban"`
	Name      string          `json:"name"`
	Balance   decimal.Decimal `json:"balance"`
	IsClosed  bool            `json:"is_closed"`
	Type      AccountType     `json:"account_type"`
	CreatedAt time.Time       `json:"created_at"`
}

type CreateAccountRequest struct {
	Name string      `json:"name" validate:"required,min=2,max=100"`
	Type AccountType `json:"account_type" validate:"required,oneof=checking savings"`
}

type RenameAccountRequest struct {
	Name string `json:"name" validate:"required"`
}

type AccountResponse struct {
	ID        string      `json:"id"`
	IBAN      string      `json:"iban"`
	Name      string      `json:"name"`
	Balance   string      `json:"balance"`
	Type      AccountType `json:"account_type"`
	IsClosed  bool        `json:"is_closed"`
	CreatedAt string      `json:"created_at"`
}

type AccountListResponse struct {
	Accounts    []AccountResponse `json:"accounts"`
	Total       int               `json:"total"`
	OpenCount   int               `json:"open_count"`
	ClosedCount int               `json:"closed_count"`
}

func NewAccountResponse(a Account) AccountResponse {
	return AccountResponse{
		ID:        a.ID,
		IBAN:      a.IBAN,
		Name:      a.Name,
		Balance:   a.Balance.StringFixed(2),
		Type:      a.Type,
		IsClosed:  a.IsClosed,
		CreatedAt: a.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}
