package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"bank-backoffice/internal/models"
)

const defaultTransferLabel = "Transfer"

type TransferInput struct {
	From           *models.Account
	To             *models.Account
	FromClientName string
	ToClientName   string
	Amount         decimal.Decimal
	Label          string
	Policy         OverdraftPolicy
	Now            time.Time
}

// TransferResult: всё, что нужно сохранить одной транзакцией БД.
type TransferResult struct {
	From models.Account
	To   models.Account
	Out  models.Transaction
	In   models.Transaction
}

// Transfer списывает с одного счёта и зачисляет на другой. При любой ошибке
// исходные счета не изменяются и результат пустой.
func Transfer(in TransferInput) (TransferResult, error) {
	if !in.Amount.IsPositive() {
		return TransferResult{}, ErrInvalidAmount
	}
	if in.From == nil || in.To == nil {
		return TransferResult{}, ErrAccountNotFound
	}
	if in.From.ID == in.To.ID {
		return TransferResult{}, ErrSameAccount
	}

	from, err := Debit(*in.From, in.Amount, in.Policy)
	if err != nil {
		return TransferResult{}, err
	}
	to, err := Credit(*in.To, in.Amount)
	if err != nil {
		return TransferResult{}, err
	}

	label := in.Label
	if label == "" {
		label = defaultTransferLabel
	}
	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}

	fromID, toID := from.ID, to.ID
	fromName, toName := in.FromClientName, in.ToClientName

	out := models.Transaction{
		ID:                uuid.NewString(),
		AccountID:         from.ID,
		Type:              models.TransactionTypeTransferOut,
		Amount:            in.Amount,
		Label:             label,
		RelatedAccountID:  &toID,
		RelatedClientName: optional(toName),
		CreatedAt:         now,
	}
	incoming := models.Transaction{
		ID:                uuid.NewString(),
		AccountID:         to.ID,
		Type:              models.TransactionTypeTransferIn,
		Amount:            in.Amount,
		Label:             label,
		RelatedAccountID:  &fromID,
		RelatedClientName: optional(fromName),
		CreatedAt:         now,
	}

	return TransferResult{From: from, To: to, Out: out, In: incoming}, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
