package forecast

import (
	"fmt"
	"sort"
	"time"

	"github.com/Veraticus/the-budget-must-balance/internal/model"
	"github.com/shopspring/decimal"
)

// Alert kinds and severities.
const (
	AlertLowBalance  = "low_balance"
	AlertBillDue     = "bill_due"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// AlertConfig holds the thresholds for Alerts and UpcomingBills.
type AlertConfig struct {
	MinBalanceWarning  decimal.Decimal
	AlertDaysBeforeDue int
}

// DefaultAlertConfig warns below 1000 and a week ahead of due dates.
func DefaultAlertConfig() AlertConfig {
	return AlertConfig{
		MinBalanceWarning:  decimal.NewFromInt(1000),
		AlertDaysBeforeDue: 7,
	}
}

// Alerts flags every projected month whose balance drops below the warning
// threshold. Negative balances are critical.
func Alerts(points []model.ForecastPoint, cfg AlertConfig) []model.Alert {
	var alerts []model.Alert
	for _, p := range points {
		if !p.Balance.LessThan(cfg.MinBalanceWarning) {
			continue
		}
		severity := SeverityWarning
		if p.Balance.IsNegative() {
			severity = SeverityCritical
		}
		alerts = append(alerts, model.Alert{
			Month:    p.Month,
			Kind:     AlertLowBalance,
			Severity: severity,
			Message: fmt.Sprintf("balance %s in %s is below %s",
				p.Balance.StringFixed(2), p.Month.Format("2006-01"), cfg.MinBalanceWarning.StringFixed(2)),
		})
	}
	return alerts
}

// DueBill is an unpaid bill with its next due date.
type DueBill struct {
	Due      time.Time
	Bill     model.Bill
	DaysLeft int
}

// UpcomingBills returns unpaid bills falling due within days of now,
// soonest first. Recurring bills are rolled forward to their next due date.
func UpcomingBills(bills []model.Bill, now time.Time, days int) []DueBill {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	horizon := today.AddDate(0, 0, days)

	var due []DueBill
	for _, b := range bills {
		if b.Paid && !b.Recurring {
			continue
		}
		next, ok := nextDue(b, today)
		if !ok || next.After(horizon) {
			continue
		}
		due = append(due, DueBill{
			Bill:     b,
			Due:      next,
			DaysLeft: int(next.Sub(today).Hours() / 24),
		})
	}

	sort.SliceStable(due, func(i, j int) bool {
		if !due[i].Due.Equal(due[j].Due) {
			return due[i].Due.Before(due[j].Due)
		}
		return due[i].Bill.Name < due[j].Bill.Name
	})
	return due
}

// BillAlerts turns upcoming bills into alerts.
func BillAlerts(due []DueBill) []model.Alert {
	alerts := make([]model.Alert, 0, len(due))
	for _, d := range due {
		severity := SeverityWarning
		if d.DaysLeft <= 1 {
			severity = SeverityCritical
		}
		alerts = append(alerts, model.Alert{
			Month:    model.MonthStart(d.Due),
			Kind:     AlertBillDue,
			Severity: severity,
			Message: fmt.Sprintf("%s (%s) due %s",
				d.Bill.Name, d.Bill.Amount.StringFixed(2), d.Due.Format("2006-01-02")),
		})
	}
	return alerts
}

// nextDue returns the first due date on or after today.
func nextDue(b model.Bill, today time.Time) (time.Time, bool) {
	due := time.Date(b.DueDate.Year(), b.DueDate.Month(), b.DueDate.Day(), 0, 0, 0, 0, time.UTC)
	if !due.Before(today) {
		return due, true
	}
	if !b.Recurring {
		return time.Time{}, false
	}

	for n := 1; due.Before(today); n++ {
		switch b.Frequency {
		case model.FrequencyWeekly:
			due = b.DueDate.AddDate(0, 0, 7*n)
		case model.FrequencyMonthly:
			due = b.DueDate.AddDate(0, n, 0)
		case model.FrequencyQuarterly:
			due = b.DueDate.AddDate(0, 3*n, 0)
		case model.FrequencyYearly:
			due = b.DueDate.AddDate(n, 0, 0)
		default:
			return time.Time{}, false
		}
		due = time.Date(due.Year(), due.Month(), due.Day(), 0, 0, 0, 0, time.UTC)
	}
	return due, true
}
