package sheets

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Veraticus/the-budget-must-balance/internal/common"
	"github.com/Veraticus/the-budget-must-balance/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// fakeSheets serves the handful of Sheets endpoints the writer calls.
type fakeSheets struct {
	tabs         map[string]int64
	cleared      []string
	updates      map[string][][]any
	inputOptions []string
	formatting   []*sheets.Request
	created      *sheets.Spreadsheet
	failNext     int // respond 503 to this many requests
	failFormat   bool
	nextID       int64
	mu           sync.Mutex
}

func newFakeSheets(existing ...string) *fakeSheets {
	f := &fakeSheets{tabs: map[string]int64{}, updates: map[string][][]any{}, nextID: 100}
	for _, name := range existing {
		f.tabs[name] = f.nextID
		f.nextID++
	}
	return f
}

func (f *fakeSheets) spreadsheet() *sheets.Spreadsheet {
	ss := &sheets.Spreadsheet{SpreadsheetId: "sheet-1"}
	for name, id := range f.tabs {
		ss.Sheets = append(ss.Sheets, &sheets.Sheet{Properties: &sheets.SheetProperties{Title: name, SheetId: id}})
	}
	return ss
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failNext > 0 {
		f.failNext--
		http.Error(w, `{"error":{"code":503,"message":"backend unavailable"}}`, http.StatusServiceUnavailable)
		return
	}

	body, _ := io.ReadAll(r.Body)
	path := strings.TrimPrefix(r.URL.Path, "/v4/spreadsheets")
	reply := func(v any) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(v)
	}

	switch {
	case r.Method == http.MethodPost && path == "":
		var ss sheets.Spreadsheet
		_ = json.Unmarshal(body, &ss)
		f.created = &ss
		for _, s := range ss.Sheets {
			f.tabs[s.Properties.Title] = f.nextID
			f.nextID++
		}
		reply(f.spreadsheet())

	case r.Method == http.MethodGet && path == "/sheet-1":
		reply(f.spreadsheet())

	case r.Method == http.MethodPost && path == "/sheet-1:batchUpdate":
		var req sheets.BatchUpdateSpreadsheetRequest
		_ = json.Unmarshal(body, &req)
		resp := &sheets.BatchUpdateSpreadsheetResponse{SpreadsheetId: "sheet-1"}
		for _, q := range req.Requests {
			if q.AddSheet == nil {
				if f.failFormat {
					http.Error(w, `{"error":{"code":400,"message":"bad format"}}`, http.StatusBadRequest)
					return
				}
				f.formatting = append(f.formatting, q)
				continue
			}
			props := &sheets.SheetProperties{Title: q.AddSheet.Properties.Title, SheetId: f.nextID}
			f.tabs[props.Title] = f.nextID
			f.nextID++
			resp.Replies = append(resp.Replies, &sheets.Response{AddSheet: &sheets.AddSheetResponse{Properties: props}})
		}
		reply(resp)

	case r.Method == http.MethodPost && strings.HasSuffix(path, ":clear"):
		f.cleared = append(f.cleared, strings.TrimSuffix(strings.TrimPrefix(path, "/sheet-1/values/"), ":clear"))
		reply(&sheets.ClearValuesResponse{})

	case r.Method == http.MethodPut && strings.HasPrefix(path, "/sheet-1/values/"):
		f.inputOptions = append(f.inputOptions, r.URL.Query().Get("valueInputOption"))
		var vr sheets.ValueRange
		_ = json.Unmarshal(body, &vr)
		f.updates[strings.TrimPrefix(path, "/sheet-1/values/")] = vr.Values
		reply(&sheets.UpdateValuesResponse{})

	default:
		http.Error(w, "unexpected "+r.Method+" "+r.URL.Path, http.StatusNotFound)
	}
}

func newTestWriter(t *testing.T, fake *fakeSheets, cfg Config) *Writer {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	svc, err := sheets.NewService(context.Background(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)
	return newWriter(cfg, svc, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// inspect runs fn with the fake locked.
func (f *fakeSheets) inspect(fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn()
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.RetryAttempts = 2
	cfg.RetryDelay = time.Millisecond
	return cfg
}

func testReport() *Report {
	month := time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)
	point := func(m time.Time, bal string) model.ForecastPoint {
		return model.ForecastPoint{
			Month:      m,
			Income:     decimal.NewFromInt(25000),
			Expenses:   decimal.NewFromInt(21000),
			Balance:    decimal.RequireFromString(bal),
			Confidence: 0.95,
		}
	}
	return &Report{
		GeneratedAt: month,
		Forecasts: map[string][]model.ForecastPoint{
			"spara mer": {point(month, "3000")},
			"baseline":  {point(month, "4000"), point(month.AddDate(0, 1, 0), "8000")},
		},
		Shares: map[string]decimal.Decimal{
			"Kim":  decimal.RequireFromString("6000"),
			"Alex": decimal.RequireFromString("4000"),
		},
		Transactions: []model.Transaction{
			{Date: time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC), AccountName: "Lönekonto", Description: "ICA", Amount: decimal.RequireFromString("-350.5"), Currency: "SEK", Category: "Mat", Confidence: 0.9},
			{Date: time.Date(2025, 11, 3, 0, 0, 0, 0, time.UTC), AccountName: "Lönekonto", Description: "Okänd", Amount: decimal.RequireFromString("-99"), Currency: "SEK", Category: model.Uncategorized, NeedsReview: true},
		},
	}
}

func TestReport_Values(t *testing.T) {
	tabs := testReport().tabs()
	require.Len(t, tabs, 3)
	assert.Equal(t, []string{ForecastTab, TransactionsTab, SplitTab}, []string{tabs[0].name, tabs[1].name, tabs[2].name})

	forecastRows := tabs[0].values
	require.Len(t, forecastRows, 4)
	assert.Equal(t, "Scenario", forecastRows[0][0])
	assert.Equal(t, []any{"baseline", "2025-12", "25000.00", "21000.00", "4000.00", "0.95"}, forecastRows[1])
	assert.Equal(t, "baseline", forecastRows[2][0])
	assert.Equal(t, "spara mer", forecastRows[3][0])

	txnRows := tabs[1].values
	require.Len(t, txnRows, 3)
	assert.Equal(t, []any{"2025-11-03", "Lönekonto", "Okänd", "-99.00", "SEK", model.Uncategorized, "0.00", "yes"}, txnRows[1])
	assert.Equal(t, "-350.50", txnRows[2][3])

	assert.Equal(t, [][]any{{"Person", "Share"}, {"Alex", "4000.00"}, {"Kim", "6000.00"}}, tabs[2].values)
}

func TestReport_EmptySectionsHaveNoTab(t *testing.T) {
	r := &Report{Shares: map[string]decimal.Decimal{"Kim": decimal.NewFromInt(1)}}
	tabs := r.tabs()
	require.Len(t, tabs, 1)
	assert.Equal(t, SplitTab, tabs[0].name)
	assert.Empty(t, (&Report{}).tabs())
}

func TestWriter_CreatesSpreadsheet(t *testing.T) {
	fake := newFakeSheets()
	w := newTestWriter(t, fake, testConfig())

	id, err := w.Write(context.Background(), testReport())
	require.NoError(t, err)
	assert.Equal(t, "sheet-1", id)

	fake.inspect(func() {
		require.NotNil(t, fake.created)
		assert.Equal(t, "Budget", fake.created.Properties.Title)
		assert.Equal(t, "Europe/Stockholm", fake.created.Properties.TimeZone)
		assert.Len(t, fake.created.Sheets, 3)

		assert.ElementsMatch(t, []string{"Forecast!A:Z", "Transactions!A:Z", "Split!A:Z"}, fake.cleared)
		assert.Contains(t, fake.updates, "Split!A1")
		assert.Len(t, fake.updates["Forecast!A1"], 4)
		assert.Equal(t, []string{"USER_ENTERED", "USER_ENTERED", "USER_ENTERED"}, fake.inputOptions)
		assert.NotEmpty(t, fake.formatting)
		fake.created = nil
	})

	// A second export goes to the same spreadsheet.
	_, err = w.Write(context.Background(), testReport())
	require.NoError(t, err)
	fake.inspect(func() { assert.Nil(t, fake.created) })
}

func TestWriter_AddsMissingTabs(t *testing.T) {
	fake := newFakeSheets(ForecastTab)
	cfg := testConfig()
	cfg.SpreadsheetID = "sheet-1"
	cfg.EnableFormatting = false
	w := newTestWriter(t, fake, cfg)

	_, err := w.Write(context.Background(), testReport())
	require.NoError(t, err)

	fake.inspect(func() {
		assert.Nil(t, fake.created)
		assert.Contains(t, fake.tabs, TransactionsTab)
		assert.Contains(t, fake.tabs, SplitTab)
		assert.Empty(t, fake.formatting)
	})
}

func TestWriter_Batches(t *testing.T) {
	fake := newFakeSheets()
	cfg := testConfig()
	cfg.BatchSize = 2
	w := newTestWriter(t, fake, cfg)

	_, err := w.Write(context.Background(), &Report{Transactions: testReport().Transactions})
	require.NoError(t, err)

	fake.inspect(func() {
		assert.Len(t, fake.updates["Transactions!A1"], 2)
		assert.Len(t, fake.updates["Transactions!A3"], 1)
	})
}

func TestWriter_RetriesServerErrors(t *testing.T) {
	fake := newFakeSheets()
	fake.failNext = 1
	w := newTestWriter(t, fake, testConfig())

	_, err := w.Write(context.Background(), testReport())
	require.NoError(t, err)
	fake.inspect(func() { assert.NotNil(t, fake.created) })
}

func TestWriter_FormattingFailureIsNotFatal(t *testing.T) {
	fake := newFakeSheets()
	fake.failFormat = true
	w := newTestWriter(t, fake, testConfig())

	id, err := w.Write(context.Background(), testReport())
	require.NoError(t, err)
	assert.Equal(t, "sheet-1", id)
	fake.inspect(func() { assert.Len(t, fake.updates, 3) })
}

func TestWriter_EmptyReport(t *testing.T) {
	w := newTestWriter(t, newFakeSheets(), testConfig())

	_, err := w.Write(context.Background(), &Report{})
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestMockWriter(t *testing.T) {
	var rw ReportWriter = NewMockWriter()
	id, err := rw.Write(context.Background(), testReport())
	require.NoError(t, err)
	assert.Equal(t, "mock-spreadsheet", id)
	assert.Len(t, rw.(*MockWriter).Calls(), 1)
}
