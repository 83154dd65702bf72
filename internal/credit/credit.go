// Package credit рассчитывает аннуитетный платёж, график погашения и
// переходы состояний кредита. Пакет не выполняет ввод-вывод.
package credit

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"bank-backoffice/internal/ledger"
	"bank-backoffice/internal/models"
)

var (
	ErrInvalidPrincipal = errors.New("сумма кредита должна быть больше 0")
	ErrInvalidRate      = errors.New("некорректная ставка")
	ErrInvalidDuration  = errors.New("срок кредита должен быть больше 0 месяцев")
	ErrNotPending       = errors.New("кредит не в статусе pending")
	ErrNotActive        = errors.New("кредит не активен")
	ErrAlreadyPaidOff   = errors.New("кредит уже погашен")
	ErrCreditNotFound   = errors.New("кредит не найден")
)

var (
	hundred     = decimal.NewFromInt(100)
	twelve      = decimal.NewFromInt(12)
	one         = decimal.NewFromInt(1)
	calcPlaces  = int32(18)
	moneyPlaces = int32(2)

	// Пределы колонок: amount NUMERIC(15,2), ставки NUMERIC(7,4).
	ratePlaces = int32(4)
	maxRate    = decimal.NewFromInt(1000)
	maxAmount  = decimal.New(1, 13)
)

// Terms: условия нового кредита. Ставки в процентах.
type Terms struct {
	ClientID           string
	AdvisorID          string
	AccountID          string
	Amount             decimal.Decimal
	AnnualInterestRate decimal.Decimal
	InsuranceRate      decimal.Decimal
	DurationMonths     int
}

// Payment: разбивка одного ежемесячного платежа.
type Payment struct {
	Interest         decimal.Decimal
	Capital          decimal.Decimal
	Insurance        decimal.Decimal
	Total            decimal.Decimal
	RemainingCapital decimal.Decimal
}

// MonthlyRate переводит годовую ставку в процентах в месячную долю.
func MonthlyRate(annualRatePercent decimal.Decimal) decimal.Decimal {
	return annualRatePercent.Div(hundred).Div(twelve)
}

// CalculateMonthlyPayment: аннуитетный платёж P·r(1+r)^n / ((1+r)^n − 1),
// округлённый до копеек. При нулевой ставке principal / months.
func CalculateMonthlyPayment(principal, annualRatePercent decimal.Decimal, months int) (decimal.Decimal, error) {
	if !principal.IsPositive() {
		return decimal.Zero, ErrInvalidPrincipal
	}
	if annualRatePercent.IsNegative() {
		return decimal.Zero, ErrInvalidRate
	}
	if months <= 0 {
		return decimal.Zero, ErrInvalidDuration
	}

	r := MonthlyRate(annualRatePercent)
	n := decimal.NewFromInt(int64(months))
	if r.IsZero() {
		return principal.DivRound(n, moneyPlaces), nil
	}

	factor := compound(one.Add(r), months)
	payment := principal.Mul(r).Mul(factor).DivRound(factor.Sub(one), calcPlaces)
	return payment.Round(moneyPlaces), nil
}

// InsuranceMonthlyAmount = principal × insuranceRate / 100 / 12, до копеек.
func InsuranceMonthlyAmount(principal, insuranceRatePercent decimal.Decimal) decimal.Decimal {
	return principal.Mul(insuranceRatePercent).Div(hundred).Div(twelve).Round(moneyPlaces)
}

// New создаёт кредит в статусе pending. Платёж и страховка считаются один раз.
// Сумма должна быть в копейках, ставки не точнее четырёх знаков.
func New(t Terms, now time.Time) (models.Credit, error) {
	if !ledger.ValidAmount(t.Amount) || !t.Amount.LessThan(maxAmount) {
		return models.Credit{}, ErrInvalidPrincipal
	}
	if !validRate(t.AnnualInterestRate) || !validRate(t.InsuranceRate) {
		return models.Credit{}, ErrInvalidRate
	}
	payment, err := CalculateMonthlyPayment(t.Amount, t.AnnualInterestRate, t.DurationMonths)
	if err != nil {
		return models.Credit{}, err
	}
	return models.Credit{
		ID:                     uuid.NewString(),
		ClientID:               t.ClientID,
		AdvisorID:              t.AdvisorID,
		AccountID:              t.AccountID,
		Amount:                 t.Amount,
		AnnualInterestRate:     t.AnnualInterestRate,
		InsuranceRate:          t.InsuranceRate,
		DurationMonths:         t.DurationMonths,
		MonthlyPayment:         payment,
		InsuranceMonthlyAmount: InsuranceMonthlyAmount(t.Amount, t.InsuranceRate),
		RemainingCapital:       t.Amount,
		Status:                 models.CreditStatusPending,
		CreatedAt:              now,
	}, nil
}

func validRate(rate decimal.Decimal) bool {
	return !rate.IsNegative() && rate.LessThan(maxRate) && rate.Equal(rate.Round(ratePlaces))
}

func Activate(c models.Credit, now time.Time) (models.Credit, error) {
	if c.Status != models.CreditStatusPending {
		return c, ErrNotPending
	}
	start := now
	next := AddMonths(start, 1)
	c.Status = models.CreditStatusActive
	c.StartDate = &start
	c.NextPaymentDate = &next
	c.RemainingCapital = c.Amount
	c.PaidMonths = 0
	return c, nil
}

// RecordMonthlyPayment делит очередной платёж на проценты, капитал и
// страховку. Последний плановый платёж гасит весь остаток капитала.
func RecordMonthlyPayment(c models.Credit) (models.Credit, Payment, error) {
	if c.Status != models.CreditStatusActive {
		return c, Payment{}, ErrNotActive
	}
	if !c.RemainingCapital.IsPositive() {
		return c, Payment{}, ErrAlreadyPaidOff
	}

	p := split(c, c.RemainingCapital, c.PaidMonths+1)

	c.RemainingCapital = p.RemainingCapital
	c.PaidMonths++
	if c.StartDate != nil {
		next := AddMonths(*c.StartDate, c.PaidMonths+1)
		c.NextPaymentDate = &next
	}
	if !c.RemainingCapital.IsPositive() {
		c.Status = models.CreditStatusCompleted
		c.NextPaymentDate = nil
	}
	return c, p, nil
}

func Cancel(c models.Credit) (models.Credit, error) {
	if c.Status != models.CreditStatusPending {
		return c, ErrNotPending
	}
	c.Status = models.CreditStatusCancelled
	return c, nil
}

// split считает платёж номер installment при заданном остатке.
func split(c models.Credit, remaining decimal.Decimal, installment int) Payment {
	interest := remaining.Mul(MonthlyRate(c.AnnualInterestRate)).Round(moneyPlaces)
	capital := c.MonthlyPayment.Sub(interest).Sub(c.InsuranceMonthlyAmount).Round(moneyPlaces)
	if capital.IsNegative() {
		capital = decimal.Zero
	}
	if capital.GreaterThan(remaining) || installment >= c.DurationMonths {
		capital = remaining
	}

	left := remaining.Sub(capital).Round(moneyPlaces)
	if left.IsNegative() {
		left = decimal.Zero
	}
	return Payment{
		Interest:         interest,
		Capital:          capital,
		Insurance:        c.InsuranceMonthlyAmount,
		Total:            interest.Add(capital).Add(c.InsuranceMonthlyAmount),
		RemainingCapital: left,
	}
}

// TotalInterest: проценты по номинальному графику.
func TotalInterest(c models.Credit) decimal.Decimal {
	months := decimal.NewFromInt(int64(c.DurationMonths))
	return c.MonthlyPayment.Mul(months).Sub(c.Amount).Round(moneyPlaces)
}

func TotalInsurance(c models.Credit) decimal.Decimal {
	return c.InsuranceMonthlyAmount.Mul(decimal.NewFromInt(int64(c.DurationMonths))).Round(moneyPlaces)
}

func TotalCost(c models.Credit) decimal.Decimal {
	return c.Amount.Add(TotalInterest(c)).Add(TotalInsurance(c))
}

// compound возводит base в целую степень n быстрым возведением,
// ограничивая точность промежуточных результатов.
func compound(base decimal.Decimal, n int) decimal.Decimal {
	result := one
	for n > 0 {
		if n&1 == 1 {
			result = result.Mul(base).Round(calcPlaces)
		}
		base = base.Mul(base).Round(calcPlaces)
		n >>= 1
	}
	return result
}

// AddMonths прибавляет месяцы, прижимая день к концу целевого месяца
// (31 января + 1 месяц = 28/29 февраля).
func AddMonths(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(months), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	last := first.AddDate(0, 1, -1).Day()
	if d > last {
		d = last
	}
	return first.AddDate(0, 0, d-1)
}
