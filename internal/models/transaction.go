package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionTypeTransferIn  TransactionType = "transfer_in"
	TransactionTypeTransferOut TransactionType = "transfer_out"
)

func (t TransactionType) IsValid() bool {
	return t == TransactionTypeTransferIn || t == TransactionTypeTransferOut
}

// Transaction: неизменяемая запись журнала по одному счёту.
// Amount всегда положительный, направление задаёт Type.
type Transaction struct {
	ID                string          `json:"id"`
	AccountID         string          `json:"account_id"`
	Type              TransactionType `json:"type"`
	Amount            decimal.Decimal `json:"amount"`
	Label             string          `json:"label"`
	RelatedAccountID  *string         `json:"related_account_id,omitempty"`
	RelatedClientName *string         `json:"related_client_name,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
}

type TransferRequest struct {
	FromAccountID string          `json:"from_account_id" validate:"required"`
	ToAccountID   string          `json:"to_account_id" validate:"required_without=ToIBAN"`
	ToIBAN        string          `json:"to_iban" validate:"required_without=ToAccountID"`
	Amount        decimal.Decimal `json:"amount"`
	Label         string          `json:"label" validate:"max=140"`
}

type TransferResponse struct {
	FromAccountID  string `json:"from_account_id"`
	ToAccountID    string `json:"to_account_id"`
	Amount         string `json:"amount"`
	FromBalance    string `json:"from_balance"`
	ToBalance      string `json:"to_balance"`
	OutTransaction string `json:"out_transaction_id"`
	InTransaction  string `json:"in_transaction_id"`
}

type TransactionResponse struct {
	ID                string          `json:"id"`
	AccountID         string          `json:"account_id"`
	Type              TransactionType `json:"type"`
	Amount            string          `json:"amount"`
	Label             string          `json:"label"`
	RelatedAccountID  *string         `json:"related_account_id,omitempty"`
	RelatedClientName *string         `json:"related_client_name,omitempty"`
	CreatedAt         string          `json:"created_at"`
}

type TransactionListResponse struct {
	Transactions []TransactionResponse `json:"transactions"`
	Total        int                   `json:"total"`
	AccountID    string                `json:"account_id,omitempty"`
}

func NewTransactionResponse(t Transaction) TransactionResponse {
	return TransactionResponse{
		ID:                t.ID,
		AccountID:         t.AccountID,
		Type:              t.Type,
		Amount:            t.Amount.StringFixed(2),
		Label:             t.Label,
		RelatedAccountID:  t.RelatedAccountID,
		RelatedClientName: t.RelatedClientName,
		CreatedAt:         t.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}
