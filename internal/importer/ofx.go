package importer

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/Veraticus/the-budget-must-balance/internal/model"
	"github.com/aclindsa/ofxgo"
	"github.com/shopspring/decimal"
)

var (
	severityPattern = regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)</SEVERITY>`)
	// SGML-style files sometimes drop the closing bracket of a bare tag.
	openTagPattern = regexp.MustCompile(`(?m)^(\s*<[A-Z][A-Z0-9._]*[A-Z0-9])$`)
	// Card terminals often prefix the payee with the purchase date.
	leadingDatePattern = regexp.MustCompile(`^\d{2}[/.]\d{2}\s+`)
)

var cardPrefixes = []string{
	"KORTKÖP ",
	"KORTKOP ",
	"POS PURCHASE ",
	"DEBIT CARD PURCHASE ",
	"CHECK CARD ",
	"VISA PURCHASE ",
	"MC PURCHASE ",
	"CARD PURCHASE ",
}

var genericNames = map[string]struct{}{
	"DEBIT":           {},
	"CREDIT":          {},
	"PURCHASE":        {},
	"PAYMENT":         {},
	"KORTKÖP":         {},
	"BETALNING":       {},
	"POS TRANSACTION": {},
	"CARD PURCHASE":   {},
}

// OFXParser reads OFX and QFX statements, bank and credit card alike.
type OFXParser struct {
	currency string
}

// NewOFXParser creates a parser that falls back to currency when a
// statement has no CURDEF.
func NewOFXParser(currency string) *OFXParser {
	if currency == "" {
		currency = model.DefaultCurrency
	}
	return &OFXParser{currency: currency}
}

func (p *OFXParser) preprocess(data []byte) []byte {
	data = bytes.TrimLeft(data, " \t\r\n")
	data = severityPattern.ReplaceAllFunc(data, bytes.ToUpper)
	return openTagPattern.ReplaceAll(data, []byte("$1>"))
}

// Parse converts every statement in the file. The closing ledger balance of
// the last statement, when present, is reported on the Statement.
func (p *OFXParser) Parse(ctx context.Context, data []byte) (*Statement, error) {
	resp, err := ofxgo.ParseResponse(bytes.NewReader(p.preprocess(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse OFX: %w", err)
	}

	stmt := &Statement{}
	var bankStmts, ccStmts int

	for _, msg := range resp.Bank {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		bank, ok := msg.(*ofxgo.StatementResponse)
		if !ok {
			continue
		}
		bankStmts++
		stmt.AccountID = string(bank.BankAcctFrom.AcctID)
		currency := p.currencyOf(bank.CurDef)
		if bank.BankTranList != nil {
			for _, t := range bank.BankTranList.Transactions {
				stmt.Transactions = append(stmt.Transactions, p.convert(t, currency))
			}
		}
		p.setBalance(stmt, bank.BalAmt, bank.DtAsOf)
	}

	for _, msg := range resp.CreditCard {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		card, ok := msg.(*ofxgo.CCStatementResponse)
		if !ok {
			continue
		}
		ccStmts++
		stmt.AccountID = string(card.CCAcctFrom.AcctID)
		currency := p.currencyOf(card.CurDef)
		if card.BankTranList != nil {
			for _, t := range card.BankTranList.Transactions {
				stmt.Transactions = append(stmt.Transactions, p.convert(t, currency))
			}
		}
		p.setBalance(stmt, card.BalAmt, card.DtAsOf)
	}

	slog.Debug("Parsed OFX statement",
		"transactions", len(stmt.Transactions),
		"bank_statements", bankStmts,
		"cc_statements", ccStmts)
	return stmt, nil
}

func (p *OFXParser) currencyOf(sym ofxgo.CurrSymbol) string {
	if s := sym.String(); s != "" && s != "XXX" {
		return s
	}
	return p.currency
}

func (p *OFXParser) setBalance(stmt *Statement, amt ofxgo.Amount, asOf ofxgo.Date) {
	if asOf.IsZero() {
		return
	}
	balance := decimal.NewFromBigRat(&amt.Rat, 2)
	date := dateOnly(asOf.Time)
	stmt.Balance = &balance
	stmt.BalanceDate = &date
}

// convert keeps the sign of TRNAMT: negative is money out.
func (p *OFXParser) convert(t ofxgo.Transaction, currency string) model.Transaction {
	return model.Transaction{
		Date:        dateOnly(t.DtPosted.Time),
		Amount:      decimal.NewFromBigRat(&t.TrnAmt.Rat, 2),
		Description: payeeName(t),
		Currency:    currency,
		Status:      model.StatusUnclassified,
	}
}

// payeeName prefers PAYEE, then NAME, then MEMO when NAME says nothing.
func payeeName(t ofxgo.Transaction) string {
	if t.Payee != nil && t.Payee.Name != "" {
		return strings.TrimSpace(string(t.Payee.Name))
	}

	name := strings.TrimSpace(string(t.Name))
	if _, generic := genericNames[strings.ToUpper(name)]; (generic || name == "") && t.Memo != "" {
		name = strings.TrimSpace(string(t.Memo))
	}

	upper := strings.ToUpper(name)
	for _, prefix := range cardPrefixes {
		if strings.HasPrefix(upper, prefix) {
			name = name[len(prefix):]
			break
		}
	}
	name = leadingDatePattern.ReplaceAllString(name, "")
	return strings.Join(strings.Fields(name), " ")
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
