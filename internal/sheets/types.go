package sheets

import (
	"context"
	"sort"
	"time"

	"github.com/Veraticus/the-budget-must-balance/internal/forecast"
	"github.com/Veraticus/the-budget-must-balance/internal/model"
	"github.com/shopspring/decimal"
)

// Tab names.
const (
	ForecastTab     = "Forecast"
	TransactionsTab = "Transactions"
	SplitTab        = "Split"
)

// ReportWriter exports a Report and returns the spreadsheet ID.
type ReportWriter interface {
	Write(ctx context.Context, report *Report) (string, error)
}

// Report is everything one export can carry. Empty sections produce no tab.
type Report struct {
	GeneratedAt  time.Time
	Forecasts    map[string][]model.ForecastPoint // keyed by scenario
	Shares       map[string]decimal.Decimal       // keyed by person
	Transactions []model.Transaction
}

// tab is one sheet's worth of values. moneyCols are zero-based column
// indexes that get a number format.
type tab struct {
	name      string
	values    [][]any
	moneyCols []int64
}

func (r *Report) tabs() []tab {
	var tabs []tab
	if len(r.Forecasts) > 0 {
		tabs = append(tabs, tab{name: ForecastTab, values: forecastValues(r.Forecasts), moneyCols: []int64{2, 3, 4}})
	}
	if len(r.Transactions) > 0 {
		tabs = append(tabs, tab{name: TransactionsTab, values: transactionValues(r.Transactions), moneyCols: []int64{3}})
	}
	if len(r.Shares) > 0 {
		tabs = append(tabs, tab{name: SplitTab, values: splitValues(r.Shares), moneyCols: []int64{1}})
	}
	return tabs
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// forecastValues lists every scenario month by month, baseline first.
func forecastValues(results map[string][]model.ForecastPoint) [][]any {
	values := [][]any{{"Scenario", "Month", "Income", "Expenses", "Balance", "Confidence"}}
	for _, summary := range forecast.Summarize(results) {
		for _, p := range results[summary.Name] {
			values = append(values, []any{
				summary.Name,
				p.Month.Format("2006-01"),
				money(p.Income),
				money(p.Expenses),
				money(p.Balance),
				decimal.NewFromFloat(p.Confidence).StringFixed(2),
			})
		}
	}
	return values
}

// transactionValues lists transactions newest first.
func transactionValues(txns []model.Transaction) [][]any {
	sorted := make([]model.Transaction, len(txns))
	copy(sorted, txns)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.After(sorted[j].Date)
	})

	values := make([][]any, 0, len(sorted)+1)
	values = append(values, []any{"Date", "Account", "Description", "Amount", "Currency", "Category", "Confidence", "Review"})
	for _, t := range sorted {
		review := ""
		if t.NeedsReview {
			review = "yes"
		}
		values = append(values, []any{
			t.Date.Format("2006-01-02"),
			t.AccountName,
			t.Description,
			money(t.Amount),
			t.Currency,
			t.Category,
			decimal.NewFromFloat(t.Confidence).StringFixed(2),
			review,
		})
	}
	return values
}

func splitValues(shares map[string]decimal.Decimal) [][]any {
	names := make([]string, 0, len(shares))
	for name := range shares {
		names = append(names, name)
	}
	sort.Strings(names)

	values := [][]any{{"Person", "Share"}}
	for _, name := range names {
		values = append(values, []any{name, money(shares[name])})
	}
	return values
}
