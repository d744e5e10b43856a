package importer

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Veraticus/the-budget-must-balance/internal/common"
	"github.com/Veraticus/the-budget-must-balance/internal/model"
	"github.com/shopspring/decimal"
)

type column int

const (
	colDate column = iota
	colAmount
	colDescription
	colCurrency
)

// headerAliases maps lowercased header names to the column they fill.
// Earlier aliases win when a file carries several, e.g. both
// Bokföringsdatum and Transaktionsdatum.
var headerAliases = []struct {
	name string
	col  column
}{
	{"bokföringsdatum", colDate},
	{"transaktionsdatum", colDate},
	{"datum", colDate},
	{"date", colDate},
	{"belopp", colAmount},
	{"amount", colAmount},
	{"rubrik", colDescription},
	{"beskrivning", colDescription},
	{"text", colDescription},
	{"description", colDescription},
	{"meddelande", colDescription},
	{"valuta", colCurrency},
	{"currency", colCurrency},
}

var dateLayouts = []string{"2006-01-02", "2006/01/02", "20060102"}

// CSVParser reads Swedish bank CSV exports.
type CSVParser struct {
	currency string
}

// NewCSVParser creates a parser that stamps currency on rows without one.
func NewCSVParser(currency string) *CSVParser {
	if currency == "" {
		currency = model.DefaultCurrency
	}
	return &CSVParser{currency: currency}
}

// Parse reads a header row followed by transaction rows.
func (p *CSVParser) Parse(ctx context.Context, data []byte) (*Statement, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = detectDelimiter(data)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	cols, err := mapHeader(header)
	if err != nil {
		return nil, err
	}

	stmt := &Statement{}
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row: %w", err)
		}
		if blank(record) {
			continue
		}

		line, _ := r.FieldPos(0)
		txn, err := p.row(record, cols)
		if err != nil {
			return nil, common.WrapValidation(fmt.Sprintf("line %d", line), err)
		}
		stmt.Transactions = append(stmt.Transactions, txn)
	}
	return stmt, nil
}

func (p *CSVParser) row(record []string, cols map[column]int) (model.Transaction, error) {
	field := func(c column) string {
		i, ok := cols[c]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	date, err := ParseDate(field(colDate))
	if err != nil {
		return model.Transaction{}, err
	}
	amount, err := ParseAmount(field(colAmount))
	if err != nil {
		return model.Transaction{}, err
	}
	currency := strings.ToUpper(field(colCurrency))
	if currency == "" {
		currency = p.currency
	}

	txn := model.Transaction{
		Date:        date,
		Amount:      amount,
		Description: strings.Join(strings.Fields(field(colDescription)), " "),
		Currency:    currency,
		Status:      model.StatusUnclassified,
	}
	if err := txn.Validate(); err != nil {
		return model.Transaction{}, err
	}
	return txn, nil
}

func detectDelimiter(data []byte) rune {
	first := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		first = data[:i]
	}
	best, bestCount := ',', bytes.Count(first, []byte{','})
	for _, d := range []rune{';', '\t'} {
		if n := bytes.Count(first, []byte(string(d))); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}

func mapHeader(header []string) (map[column]int, error) {
	index := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.Trim(strings.TrimSpace(h), `"`))
		if _, dup := index[name]; !dup {
			index[name] = i
		}
	}

	cols := make(map[column]int)
	for _, alias := range headerAliases {
		if _, done := cols[alias.col]; done {
			continue
		}
		if i, ok := index[alias.name]; ok {
			cols[alias.col] = i
		}
	}

	var missing []string
	for _, req := range []struct {
		name string
		col  column
	}{{"date", colDate}, {"amount", colAmount}, {"description", colDescription}} {
		if _, ok := cols[req.col]; !ok {
			missing = append(missing, req.name)
		}
	}
	if len(missing) > 0 {
		return nil, common.NewValidationError("header", "no %s column in %q", strings.Join(missing, ", "), strings.Join(header, ","))
	}
	return cols, nil
}

func blank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// ParseAmount accepts "1 234,50", "-350.50", "1.234,50" and "1,234.50".
func ParseAmount(raw string) (decimal.Decimal, error) {
	s := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\u00a0', '\u202f', '\'':
			return -1
		case '\u2212':
			return '-'
		}
		return r
	}, raw)
	s = strings.TrimSuffix(strings.TrimSuffix(strings.ToLower(s), "kr"), "sek")

	comma, dot := strings.LastIndex(s, ","), strings.LastIndex(s, ".")
	switch {
	case comma >= 0 && dot >= 0 && comma > dot:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case comma >= 0 && dot >= 0:
		s = strings.ReplaceAll(s, ",", "")
	case comma >= 0:
		s = strings.Replace(s, ",", ".", 1)
	}

	if s == "" {
		return decimal.Zero, fmt.Errorf("%w: empty amount", model.ErrInvalidTransaction)
	}
	amount, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: unparseable amount %q", model.ErrInvalidTransaction, raw)
	}
	return amount, nil
}

// ParseDate accepts 2006-01-02, 2006/01/02 and 20060102.
func ParseDate(raw string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: unrecognized date %q", model.ErrInvalidDates, raw)
}
