package importer

import (
	"context"
	"testing"

	"github.com/Veraticus/the-budget-must-balance/internal/common"
	"github.com/Veraticus/the-budget-must-balance/internal/model"
	"github.com/Veraticus/the-budget-must-balance/internal/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{raw: "-350,50", want: "-350.50"},
		{raw: "-350.50", want: "-350.50"},
		{raw: "25 000,00", want: "25000"},
		{raw: "25\u00a0000,00", want: "25000"},
		{raw: "1.234,50", want: "1234.50"},
		{raw: "1,234.50", want: "1234.50"},
		{raw: "\u2212120,00", want: "-120"},
		{raw: "99 kr", want: "99"},
		{raw: "", wantErr: true},
		{raw: "abc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseAmount(tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, model.ErrInvalidTransaction)
				return
			}
			require.NoError(t, err)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "got %s", got)
		})
	}
}

func TestParseDate(t *testing.T) {
	for _, raw := range []string{"2025-11-03", "2025/11/03", "20251103"} {
		got, err := ParseDate(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, testutil.Date(2025, 11, 3), got)
	}

	_, err := ParseDate("03.11.2025")
	assert.ErrorIs(t, err, model.ErrInvalidDates)
}

func TestCSVParser_SwedishExport(t *testing.T) {
	stmt, err := NewCSVParser("").Parse(context.Background(), []byte(testutil.StatementCSV))
	require.NoError(t, err)

	want := testutil.StatementRows()
	require.Len(t, stmt.Transactions, len(want))
	for i := range want {
		assert.Equal(t, want[i].Digest(), stmt.Transactions[i].Digest(), "row %d", i)
		assert.Equal(t, model.StatusUnclassified, stmt.Transactions[i].Status)
	}
	assert.Nil(t, stmt.Balance)
}

func TestCSVParser_HeaderVariants(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{
			name: "comma delimited english",
			data: "Date,Amount,Description,Currency\n2025-11-01,-350.50,ICA Maxi,sek\n",
		},
		{
			name: "tab delimited",
			data: "Transaktionsdatum\tBelopp\tText\n20251101\t-350,50\tICA Maxi\n",
		},
		{
			name: "byte order mark and quoted fields",
			data: "\xef\xbb\xbf\"Datum\";\"Belopp\";\"Beskrivning\"\n\"2025/11/01\";\"-350,50\";\"ICA  Maxi\"\n",
		},
		{
			name: "booking date wins over transaction date",
			data: "Transaktionsdatum;Bokföringsdatum;Belopp;Meddelande\n2025-10-30;2025-11-01;-350,50;ICA Maxi\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmt, err := NewCSVParser("SEK").Parse(context.Background(), []byte(tt.data))
			require.NoError(t, err)
			require.Len(t, stmt.Transactions, 1)

			txn := stmt.Transactions[0]
			assert.Equal(t, testutil.Date(2025, 11, 1), txn.Date)
			assert.True(t, decimal.RequireFromString("-350.50").Equal(txn.Amount))
			assert.Equal(t, "ICA Maxi", txn.Description)
			assert.Equal(t, "SEK", txn.Currency)
		})
	}
}

func TestCSVParser_SkipsEmptyRows(t *testing.T) {
	data := "Bokföringsdatum;Belopp;Rubrik\n2025-11-01;-350,50;ICA Maxi\n\n;;\n2025-11-02;-120,00;Circle K\n"
	stmt, err := NewCSVParser("").Parse(context.Background(), []byte(data))
	require.NoError(t, err)
	assert.Len(t, stmt.Transactions, 2)
}

func TestCSVParser_Errors(t *testing.T) {
	tests := []struct {
		name     string
		data     string
		contains string
	}{
		{
			name:     "missing amount column",
			data:     "Datum;Rubrik\n2025-11-01;ICA\n",
			contains: "amount",
		},
		{
			name:     "bad amount reports line",
			data:     "Datum;Belopp;Rubrik\n2025-11-01;-10,00;ICA\n2025-11-02;tio;Coop\n",
			contains: "line 3",
		},
		{
			name:     "bad date",
			data:     "Datum;Belopp;Rubrik\n1 nov;-10,00;ICA\n",
			contains: "line 2",
		},
		{
			name:     "zero amount",
			data:     "Datum;Belopp;Rubrik\n2025-11-01;0,00;ICA\n",
			contains: "line 2",
		},
		{
			name:     "missing description",
			data:     "Datum;Belopp;Rubrik\n2025-11-01;-10,00;\n",
			contains: "line 2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCSVParser("").Parse(context.Background(), []byte(tt.data))
			require.Error(t, err)
			assert.ErrorIs(t, err, common.ErrValidation)
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestParse_ChoosesParserByExtension(t *testing.T) {
	ctx := context.Background()

	stmt, err := Parse(ctx, "/tmp/Lönekonto - 2025-11-01.CSV", []byte(testutil.StatementCSV), "SEK")
	require.NoError(t, err)
	require.Len(t, stmt.Transactions, 3)
	assert.Equal(t, "Lönekonto - 2025-11-01.CSV", stmt.Transactions[0].Source)

	stmt, err = Parse(ctx, "kort.qfx", []byte(sampleCreditCardOFX), "SEK")
	require.NoError(t, err)
	assert.Len(t, stmt.Transactions, 1)

	_, err = Parse(ctx, "statement.xlsx", []byte("x"), "SEK")
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = Parse(ctx, "empty.csv", []byte("  \n"), "SEK")
	assert.ErrorIs(t, err, common.ErrValidation)
}
