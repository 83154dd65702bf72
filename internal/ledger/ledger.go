// Package ledger содержит правила изменения баланса счёта.
// Функции не меняют переданный снимок счёта, а возвращают новый.
package ledger

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"bank-backoffice/internal/models"
)

var (
	ErrInvalidAmount     = errors.New("сумма должна быть больше 0")
	ErrInvalidName       = errors.New("название счёта должно содержать не менее 2 символов")
	ErrAccountClosed     = errors.New("счёт закрыт")
	ErrAlreadyClosed     = errors.New("счёт уже закрыт")
	ErrNonZeroBalance    = errors.New("нельзя закрыть счёт с ненулевым балансом")
	ErrInsufficientFunds = errors.New("недостаточно средств")
	ErrAccountNotFound   = errors.New("счёт не найден")
	ErrSameAccount       = errors.New("нельзя переводить на тот же счёт")
)

const minNameLength = 2

// OverdraftPolicy задаёт, насколько баланс может уйти в минус при списании.
type OverdraftPolicy struct {
	Unlimited bool
	Limit     decimal.Decimal
}

var (
	NoOverdraft        = OverdraftPolicy{}
	UnlimitedOverdraft = OverdraftPolicy{Unlimited: true}
)

func OverdraftUpTo(limit decimal.Decimal) OverdraftPolicy {
	return OverdraftPolicy{Limit: limit.Abs()}
}

// Allows проверяет, допустим ли итоговый баланс.
func (p OverdraftPolicy) Allows(balanceAfter decimal.Decimal) bool {
	if p.Unlimited {
		return true
	}
	return balanceAfter.GreaterThanOrEqual(p.Limit.Neg())
}

func Debit(a models.Account, amount decimal.Decimal, policy OverdraftPolicy) (models.Account, error) {
	if !amount.IsPositive() {
		return a, ErrInvalidAmount
	}
	if a.IsClosed {
		return a, ErrAccountClosed
	}
	balance := a.Balance.Sub(amount)
	if !policy.Allows(balance) {
		return a, ErrInsufficientFunds
	}
	a.Balance = balance
	return a, nil
}

func Credit(a models.Account, amount decimal.Decimal) (models.Account, error) {
	if !amount.IsPositive() {
		return a, ErrInvalidAmount
	}
	if a.IsClosed {
		return a, ErrAccountClosed
	}
	a.Balance = a.Balance.Add(amount)
	return a, nil
}

func Rename(a models.Account, name string) (models.Account, error) {
	if a.IsClosed {
		return a, ErrAccountClosed
	}
	trimmed := strings.TrimSpace(name)
	if len([]rune(trimmed)) < minNameLength {
		return a, ErrInvalidName
	}
	a.Name = trimmed
	return a, nil
}

// Close переводит счёт в закрытое состояние. Обратного перехода нет.
func Close(a models.Account) (models.Account, error) {
	if a.IsClosed {
		return a, ErrAlreadyClosed
	}
	if !a.Balance.IsZero() {
		return a, ErrNonZeroBalance
	}
	a.IsClosed = true
	return a, nil
}

// ValidAmount: положительная сумма с точностью не больше копейки.
func ValidAmount(amount decimal.Decimal) bool {
	return amount.IsPositive() && amount.Equal(amount.Round(2))
}
