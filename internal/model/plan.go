package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Frequency is how often a recurring bill or income repeats.
type Frequency string

// Supported frequencies.
const (
	FrequencyWeekly    Frequency = "weekly"
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
	FrequencyYearly    Frequency = "yearly"
)

// Validate rejects unknown frequencies.
func (f Frequency) Validate() error {
	switch f {
	case FrequencyWeekly, FrequencyMonthly, FrequencyQuarterly, FrequencyYearly:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidFrequency, string(f))
	}
}

// MonthStart truncates t to the first day of its month in UTC.
func MonthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func dayStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func monthsBetween(from, to time.Time) int {
	return (to.Year()-from.Year())*12 + int(to.Month()) - int(from.Month())
}

// Occurrences counts how many times an entry anchored at anchor falls in the
// calendar month starting at month. Non-recurring entries occur once, in the
// anchor's own month.
func Occurrences(anchor time.Time, recurring bool, freq Frequency, month time.Time) int {
	month = MonthStart(month)
	anchorMonth := MonthStart(anchor)
	diff := monthsBetween(anchorMonth, month)
	if diff < 0 {
		return 0
	}
	if !recurring {
		if diff == 0 {
			return 1
		}
		return 0
	}

	switch freq {
	case FrequencyMonthly:
		return 1
	case FrequencyQuarterly:
		if diff%3 == 0 {
			return 1
		}
		return 0
	case FrequencyYearly:
		if diff%12 == 0 {
			return 1
		}
		return 0
	case FrequencyWeekly:
		end := month.AddDate(0, 1, 0)
		next := dayStart(anchor)
		if next.Before(month) {
			days := int(month.Sub(next).Hours() / 24)
			weeks := (days + 6) / 7
			next = next.AddDate(0, 0, 7*weeks)
		}
		count := 0
		for ; next.Before(end); next = next.AddDate(0, 0, 7) {
			count++
		}
		return count
	default:
		return 0
	}
}

// Bill is a known outgoing payment.
type Bill struct {
	DueDate     time.Time
	PaymentDate *time.Time
	Amount      decimal.Decimal
	Name        string
	Category    string
	Frequency   Frequency
	ID          int64
	Recurring   bool
	Paid        bool
}

// Validate checks the bill before it is stored or simulated.
func (b *Bill) Validate() error {
	if strings.TrimSpace(b.Name) == "" {
		return fmt.Errorf("%w: bill name is empty", ErrInvalidTransaction)
	}
	if !b.Amount.IsPositive() {
		return fmt.Errorf("%w: bill %s has amount %s", ErrInvalidAmount, b.Name, b.Amount.String())
	}
	if b.DueDate.IsZero() {
		return fmt.Errorf("%w: bill %s has no due date", ErrInvalidDates, b.Name)
	}
	if b.Recurring {
		if err := b.Frequency.Validate(); err != nil {
			return err
		}
	}
	if b.PaymentDate != nil && dayStart(*b.PaymentDate).Before(dayStart(b.DueDate)) {
		return fmt.Errorf("%w: bill %s paid before its due date", ErrInvalidDates, b.Name)
	}
	return nil
}

// OccurrencesIn counts the bill's instances in month. A paid one-off bill
// no longer occurs.
func (b *Bill) OccurrencesIn(month time.Time) int {
	if b.Paid && !b.Recurring {
		return 0
	}
	return Occurrences(b.DueDate, b.Recurring, b.Frequency, month)
}

// Income is a known incoming payment for a person.
type Income struct {
	Date      time.Time
	Amount    decimal.Decimal
	Person    string
	Source    string
	Category  string
	Frequency Frequency
	ID        int64
	Recurring bool
}

// Validate checks the income before it is stored or simulated.
func (i *Income) Validate() error {
	if strings.TrimSpace(i.Person) == "" {
		return fmt.Errorf("%w: income has no person", ErrInvalidTransaction)
	}
	if !i.Amount.IsPositive() {
		return fmt.Errorf("%w: income %s/%s has amount %s", ErrInvalidAmount, i.Person, i.Source, i.Amount.String())
	}
	if i.Date.IsZero() {
		return fmt.Errorf("%w: income %s has no date", ErrInvalidDates, i.Person)
	}
	if i.Recurring {
		if err := i.Frequency.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// OccurrencesIn counts the income's instances in month.
func (i *Income) OccurrencesIn(month time.Time) int {
	return Occurrences(i.Date, i.Recurring, i.Frequency, month)
}
