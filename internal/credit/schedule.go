package credit

import (
	"time"

	"github.com/shopspring/decimal"

	"bank-backoffice/internal/models"
)

// ScheduleRow: одна строка номинального графика погашения.
type ScheduleRow struct {
	Month            int
	DueDate          time.Time
	Interest         decimal.Decimal
	Capital          decimal.Decimal
	Insurance        decimal.Decimal
	Total            decimal.Decimal
	RemainingCapital decimal.Decimal
}

// Schedule строит полный график от выдачи кредита по тем же правилам,
// что и RecordMonthlyPayment. Для неактивированного кредита отсчёт идёт от now.
func Schedule(c models.Credit, now time.Time) []ScheduleRow {
	start := now
	if c.StartDate != nil {
		start = *c.StartDate
	}

	rows := make([]ScheduleRow, 0, c.DurationMonths)
	remaining := c.Amount
	for month := 1; month <= c.DurationMonths && remaining.IsPositive(); month++ {
		p := split(c, remaining, month)
		rows = append(rows, ScheduleRow{
			Month:            month,
			DueDate:          AddMonths(start, month),
			Interest:         p.Interest,
			Capital:          p.Capital,
			Insurance:        p.Insurance,
			Total:            p.Total,
			RemainingCapital: p.RemainingCapital,
		})
		remaining = p.RemainingCapital
	}
	return rows
}
