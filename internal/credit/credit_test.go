package credit

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bank-backoffice/internal/models"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

var activationDay = time.Date(2026, 1, 31, 9, 0, 0, 0, time.UTC)

func newActive(t *testing.T, amount, rate, insurance string, months int) models.Credit {
	t.Helper()
	c, err := New(Terms{
		ClientID:           "client",
		AdvisorID:          "advisor",
		AccountID:          "account",
		Amount:             d(amount),
		AnnualInterestRate: d(rate),
		InsuranceRate:      d(insurance),
		DurationMonths:     months,
	}, activationDay)
	require.NoError(t, err)
	c, err = Activate(c, activationDay)
	require.NoError(t, err)
	return c
}

func TestCalculateMonthlyPayment(t *testing.T) {
	cases := []struct {
		principal string
		rate      string
		months    int
		want      string
	}{
		{"10000", "3", 12, "846.94"},
		{"1000", "0", 3, "333.33"},
		{"1200", "0", 12, "100"},
		{"20000", "4.5", 60, "372.86"},
		{"15000", "5", 36, "449.56"},
	}
	for _, tc := range cases {
		got, err := CalculateMonthlyPayment(d(tc.principal), d(tc.rate), tc.months)
		require.NoError(t, err)
		assert.Truef(t, got.Equal(d(tc.want)), "%s @ %s%% / %d: got %s want %s", tc.principal, tc.rate, tc.months, got, tc.want)
	}
}

func TestCalculateMonthlyPaymentValidation(t *testing.T) {
	_, err := CalculateMonthlyPayment(d("0"), d("3"), 12)
	assert.ErrorIs(t, err, ErrInvalidPrincipal)
	_, err = CalculateMonthlyPayment(d("-1"), d("3"), 12)
	assert.ErrorIs(t, err, ErrInvalidPrincipal)
	_, err = CalculateMonthlyPayment(d("1000"), d("-0.1"), 12)
	assert.ErrorIs(t, err, ErrInvalidRate)
	_, err = CalculateMonthlyPayment(d("1000"), d("3"), 0)
	assert.ErrorIs(t, err, ErrInvalidDuration)
}

func TestCalculateMonthlyPaymentAlwaysPositive(t *testing.T) {
	for _, principal := range []string{"100", "999.99", "250000"} {
		for _, rate := range []string{"0", "0.5", "3", "19.9"} {
			for _, months := range []int{1, 7, 12, 84, 300} {
				got, err := CalculateMonthlyPayment(d(principal), d(rate), months)
				require.NoError(t, err)
				assert.Truef(t, got.IsPositive(), "%s %s %d", principal, rate, months)
			}
		}
	}
}

func TestNewComputesInsuranceOnce(t *testing.T) {
	c, err := New(Terms{Amount: d("20000"), AnnualInterestRate: d("4.5"), InsuranceRate: d("0.3"), DurationMonths: 60}, activationDay)
	require.NoError(t, err)
	assert.Equal(t, models.CreditStatusPending, c.Status)
	assert.True(t, c.InsuranceMonthlyAmount.Equal(d("5")))
	assert.True(t, c.MonthlyPayment.Equal(d("372.86")))
	assert.True(t, c.RemainingCapital.Equal(d("20000")))
	assert.Nil(t, c.StartDate)

	_, err = New(Terms{Amount: d("20000"), AnnualInterestRate: d("4.5"), InsuranceRate: d("-1"), DurationMonths: 60}, activationDay)
	assert.ErrorIs(t, err, ErrInvalidRate)
}

func TestNewRejectsUnstorablePrecision(t *testing.T) {
	cases := []struct {
		name                    string
		amount, rate, insurance string
		want                    error
	}{
		{"сумма точнее копейки", "1000.005", "3", "0", ErrInvalidPrincipal},
		{"сумма больше колонки", "10000000000000", "3", "0", ErrInvalidPrincipal},
		{"ставка точнее четырёх знаков", "1000", "3.00001", "0", ErrInvalidRate},
		{"страховка точнее четырёх знаков", "1000", "3", "0.12345", ErrInvalidRate},
		{"ставка больше колонки", "1000", "1000", "0", ErrInvalidRate},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(Terms{Amount: d(tc.amount), AnnualInterestRate: d(tc.rate), InsuranceRate: d(tc.insurance), DurationMonths: 12}, activationDay)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	_, err := New(Terms{Amount: d("1000.01"), AnnualInterestRate: d("3.1234"), InsuranceRate: d("0.0001"), DurationMonths: 12}, activationDay)
	assert.NoError(t, err)
}

func TestActivate(t *testing.T) {
	c := newActive(t, "10000", "3", "0", 12)
	assert.Equal(t, models.CreditStatusActive, c.Status)
	require.NotNil(t, c.StartDate)
	assert.Equal(t, activationDay, *c.StartDate)
	require.NotNil(t, c.NextPaymentDate)
	assert.Equal(t, time.Date(2026, 2, 28, 9, 0, 0, 0, time.UTC), *c.NextPaymentDate)

	_, err := Activate(c, activationDay)
	assert.ErrorIs(t, err, ErrNotPending)
}

func TestFirstPaymentSplit(t *testing.T) {
	c := newActive(t, "10000", "3", "0", 12)

	next, p, err := RecordMonthlyPayment(c)
	require.NoError(t, err)
	assert.True(t, p.Interest.Equal(d("25.00")))
	assert.True(t, p.Capital.Equal(d("821.94")))
	assert.True(t, p.Insurance.IsZero())
	assert.True(t, p.Total.Equal(d("846.94")))
	assert.True(t, next.RemainingCapital.Equal(d("9178.06")))
	assert.Equal(t, 1, next.PaidMonths)
	assert.Equal(t, time.Date(2026, 3, 31, 9, 0, 0, 0, time.UTC), *next.NextPaymentDate)

	assert.True(t, c.RemainingCapital.Equal(d("10000")), "исходный снимок не должен меняться")
}

func TestAmortizationConverges(t *testing.T) {
	cases := []struct {
		amount, rate, insurance string
		months                  int
		lastCapital             string
		lastTotal               string
	}{
		{"10000", "3", "0", 12, "844.80", ""},
		{"1000", "0", "0", 3, "333.34", ""},
		{"15000", "5", "0", 36, "447.84", ""},
		{"20000", "4.5", "0.3", 60, "701.01", ""},
		// Страховка вычитается из капитала, недоплата уходит в последний платёж.
		{"250000", "4.2", "0.36", 300, "", "41039.67"},
	}
	for _, tc := range cases {
		c := newActive(t, tc.amount, tc.rate, tc.insurance, tc.months)
		previous := c.RemainingCapital
		var last Payment
		for i := 0; i < tc.months; i++ {
			require.Equal(t, models.CreditStatusActive, c.Status, "кредит завершился раньше срока на платеже %d", i+1)
			var err error
			c, last, err = RecordMonthlyPayment(c)
			require.NoError(t, err)
			assert.True(t, c.RemainingCapital.LessThanOrEqual(previous), "остаток капитала вырос")
			previous = c.RemainingCapital
		}
		assert.True(t, c.RemainingCapital.IsZero())
		assert.Equal(t, models.CreditStatusCompleted, c.Status)
		assert.Equal(t, tc.months, c.PaidMonths)
		if tc.lastCapital != "" {
			assert.Truef(t, last.Capital.Equal(d(tc.lastCapital)), "последний платёж: %s", last.Capital)
		}
		if tc.lastTotal != "" {
			assert.Truef(t, last.Total.Equal(d(tc.lastTotal)), "последний платёж: %s", last.Total)
			assert.True(t, last.Total.GreaterThan(c.MonthlyPayment.Mul(decimal.NewFromInt(10))))
		}
		assert.Nil(t, c.NextPaymentDate)

		_, _, err := RecordMonthlyPayment(c)
		assert.ErrorIs(t, err, ErrNotActive)
	}
}

func TestRecordPaymentPreconditions(t *testing.T) {
	pending, err := New(Terms{Amount: d("1000"), AnnualInterestRate: d("1"), DurationMonths: 10}, activationDay)
	require.NoError(t, err)
	_, _, err = RecordMonthlyPayment(pending)
	assert.ErrorIs(t, err, ErrNotActive)

	active := newActive(t, "1000", "1", "0", 10)
	active.RemainingCapital = decimal.Zero
	_, _, err = RecordMonthlyPayment(active)
	assert.ErrorIs(t, err, ErrAlreadyPaidOff)
}

func TestCancel(t *testing.T) {
	pending, err := New(Terms{Amount: d("1000"), AnnualInterestRate: d("1"), DurationMonths: 10}, activationDay)
	require.NoError(t, err)

	cancelled, err := Cancel(pending)
	require.NoError(t, err)
	assert.Equal(t, models.CreditStatusCancelled, cancelled.Status)

	_, err = Cancel(cancelled)
	assert.ErrorIs(t, err, ErrNotPending)

	_, err = Cancel(newActive(t, "1000", "1", "0", 10))
	assert.ErrorIs(t, err, ErrNotPending)

	_, err = Activate(cancelled, activationDay)
	assert.ErrorIs(t, err, ErrNotPending)
}

func TestTotals(t *testing.T) {
	c := newActive(t, "20000", "4.5", "0.3", 60)
	assert.True(t, TotalInterest(c).Equal(d("2371.60")))
	assert.True(t, TotalInsurance(c).Equal(d("300")))
	assert.True(t, TotalCost(c).Equal(d("22671.60")))

	// Итоги считаются по номинальному графику и не зависят от выплат.
	paid, _, err := RecordMonthlyPayment(c)
	require.NoError(t, err)
	assert.True(t, TotalInterest(paid).Equal(TotalInterest(c)))
}

func TestSchedule(t *testing.T) {
	c := newActive(t, "10000", "3", "0", 12)
	rows := Schedule(c, time.Now())
	require.Len(t, rows, 12)
	assert.True(t, rows[0].Interest.Equal(d("25.00")))
	assert.Equal(t, time.Date(2026, 2, 28, 9, 0, 0, 0, time.UTC), rows[0].DueDate)
	assert.True(t, rows[11].RemainingCapital.IsZero())

	total := decimal.Zero
	for _, row := range rows {
		total = total.Add(row.Capital)
	}
	assert.True(t, total.Equal(d("10000")))

	// График совпадает с реальными платежами.
	for _, row := range rows {
		var p Payment
		var err error
		c, p, err = RecordMonthlyPayment(c)
		require.NoError(t, err)
		assert.True(t, p.Capital.Equal(row.Capital))
		assert.True(t, p.RemainingCapital.Equal(row.RemainingCapital))
	}
}

func TestAddMonths(t *testing.T) {
	jan31 := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), AddMonths(jan31, 1))
	assert.Equal(t, time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC), AddMonths(jan31, 2))
	assert.Equal(t, time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC), AddMonths(jan31, 12))
	assert.Equal(t, time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC), AddMonths(time.Date(2024, 5, 15, 0, 0, 0, 0, time.UTC), 1))
}
