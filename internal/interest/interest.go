// Package interest начисляет проценты на сберегательные счета.
//
// Ставка передаётся явно и фиксируется на весь проход. Повторный запуск
// прохода в тот же день не отслеживается здесь: это задача планировщика.
package interest

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"bank-backoffice/internal/ledger"
	"bank-backoffice/internal/models"
)

const (
	DailyLabelPrefix   = "Daily interest"
	CatchUpLabelPrefix = "Interest catch-up"
)

var ErrInvalidRate = errors.New("ставка должна быть в диапазоне [0, 1] и не точнее шести знаков")

var daysInYear = decimal.NewFromInt(365)

// Posting: одно начисление: обновлённый счёт и запись в журнал.
type Posting struct {
	Account     models.Account
	Transaction models.Transaction
	Interest    decimal.Decimal
	Days        int
}

type Result struct {
	Postings          []Posting
	AccountsProcessed int
	TotalInterest     decimal.Decimal
}

// ratePlaces совпадает с колонкой savings_rate NUMERIC(7,6).
const ratePlaces = 6

func ValidateRate(rate decimal.Decimal) error {
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) || !rate.Equal(rate.Round(ratePlaces)) {
		return ErrInvalidRate
	}
	return nil
}

// Qualifies: только открытые сберегательные счета с положительным балансом.
func Qualifies(a models.Account) bool {
	return a.Type == models.AccountTypeSavings && !a.IsClosed && a.Balance.IsPositive()
}

// DailyInterest = balance × rate / 365, без округления.
func DailyInterest(balance, rate decimal.Decimal) decimal.Decimal {
	return balance.Mul(rate).Div(daysInYear)
}

// IsInterestLabel распознаёт записи ежедневных и догоняющих начислений.
func IsInterestLabel(label string) bool {
	return strings.HasPrefix(label, DailyLabelPrefix) || strings.HasPrefix(label, CatchUpLabelPrefix)
}

func AccrueDaily(accounts []models.Account, rate decimal.Decimal, now time.Time) (Result, error) {
	if err := ValidateRate(rate); err != nil {
		return Result{}, err
	}
	res := Result{TotalInterest: decimal.Zero}
	for _, acc := range accounts {
		if !Qualifies(acc) {
			continue
		}
		amount := DailyInterest(acc.Balance, rate).Round(2)
		if !amount.IsPositive() {
			continue
		}
		label := fmt.Sprintf("%s (%s%%)", DailyLabelPrefix, formatRate(rate))
		posting, err := post(acc, amount, label, now)
		if err != nil {
			return Result{}, err
		}
		posting.Days = 1
		res.add(posting)
	}
	return res, nil
}

// AccrueMissing догоняет дни без начисления. lastInterest содержит дату
// последнего начисления по счёту; без неё отсчёт идёт от даты открытия.
//
// Приближение: за все пропущенные дни берётся текущий баланс, а не
// исторический баланс каждого дня.
func AccrueMissing(accounts []models.Account, lastInterest map[string]time.Time, rate decimal.Decimal, now time.Time) (Result, error) {
	if err := ValidateRate(rate); err != nil {
		return Result{}, err
	}
	today := midnight(now, now.Location())
	res := Result{TotalInterest: decimal.Zero}
	for _, acc := range accounts {
		if !Qualifies(acc) {
			continue
		}
		start := midnight(acc.CreatedAt, now.Location())
		if last, ok := lastInterest[acc.ID]; ok {
			start = midnight(last, now.Location()).AddDate(0, 0, 1)
		}
		days := DaysBetween(start, today)
		if days <= 0 {
			continue
		}
		amount := DailyInterest(acc.Balance, rate).Mul(decimal.NewFromInt(int64(days))).Round(2)
		if !amount.IsPositive() {
			continue
		}
		label := fmt.Sprintf("%s: %d days (%s%%)", CatchUpLabelPrefix, days, formatRate(rate))
		posting, err := post(acc, amount, label, now)
		if err != nil {
			return Result{}, err
		}
		posting.Days = days
		res.add(posting)
	}
	return res, nil
}

// DaysBetween: целое число календарных дней от from до to.
func DaysBetween(from, to time.Time) int {
	fy, fm, fd := from.Date()
	ty, tm, td := to.Date()
	a := time.Date(fy, fm, fd, 0, 0, 0, 0, time.UTC)
	b := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}

func post(acc models.Account, amount decimal.Decimal, label string, now time.Time) (Posting, error) {
	credited, err := ledger.Credit(acc, amount)
	if err != nil {
		return Posting{}, err
	}
	return Posting{
		Account: credited,
		Transaction: models.Transaction{
			ID:        uuid.NewString(),
			AccountID: acc.ID,
			Type:      models.TransactionTypeTransferIn,
			Amount:    amount,
			Label:     label,
			CreatedAt: now,
		},
		Interest: amount,
	}, nil
}

func (r *Result) add(p Posting) {
	r.Postings = append(r.Postings, p)
	r.AccountsProcessed++
	r.TotalInterest = r.TotalInterest.Add(p.Interest)
}

func midnight(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

func formatRate(rate decimal.Decimal) string {
	return rate.Mul(decimal.NewFromInt(100)).StringFixed(2)
}
