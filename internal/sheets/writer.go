package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/Veraticus/the-budget-must-balance/internal/common"
	"github.com/Veraticus/the-budget-must-balance/internal/service"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// Writer exports reports to one Google spreadsheet, one tab per section.
type Writer struct {
	service *sheets.Service
	logger  *slog.Logger
	config  Config
}

// NewWriter authenticates and creates a Writer.
func NewWriter(ctx context.Context, config Config, logger *slog.Logger) (*Writer, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid sheets config: %w", err)
	}

	srv, err := createSheetsService(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}
	return newWriter(config, srv, logger), nil
}

func newWriter(config Config, srv *sheets.Service, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{config: config, service: srv, logger: logger}
}

func createSheetsService(ctx context.Context, config Config) (*sheets.Service, error) {
	var tokenSource oauth2.TokenSource

	if config.ServiceAccountPath != "" {
		jsonKey, err := os.ReadFile(config.ServiceAccountPath)
		if err != nil {
			return nil, fmt.Errorf("unable to read service account key file: %w", err)
		}
		jwtConfig, err := google.JWTConfigFromJSON(jsonKey, sheets.SpreadsheetsScope)
		if err != nil {
			return nil, fmt.Errorf("unable to parse service account key: %w", err)
		}
		tokenSource = jwtConfig.TokenSource(ctx)
	} else {
		oauthConfig := OAuth2Config{ClientID: config.ClientID, ClientSecret: config.ClientSecret}.oauth2()
		tokenSource = oauthConfig.TokenSource(ctx, &oauth2.Token{
			RefreshToken: config.RefreshToken,
			TokenType:    "Bearer",
		})
	}

	return sheets.NewService(ctx, option.WithHTTPClient(oauth2.NewClient(ctx, tokenSource)))
}

// Write replaces the content of every tab the report fills and returns the
// spreadsheet ID. Tabs the report leaves empty are not touched.
func (w *Writer) Write(ctx context.Context, report *Report) (string, error) {
	tabs := report.tabs()
	if len(tabs) == 0 {
		return "", common.NewValidationError("report", "nothing to export")
	}

	names := make([]string, len(tabs))
	for i, t := range tabs {
		names[i] = t.name
	}

	retryOpts := service.RetryOptions{
		MaxAttempts:  max(1, w.config.RetryAttempts),
		InitialDelay: w.config.RetryDelay,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}

	var (
		spreadsheetID string
		sheetIDs      map[string]int64
	)
	err := common.WithRetry(ctx, func() error {
		var err error
		spreadsheetID, sheetIDs, err = w.prepareSpreadsheet(ctx, names)
		return classify(err)
	}, retryOpts)
	if err != nil {
		return "", fmt.Errorf("failed to prepare spreadsheet: %w", err)
	}

	for _, t := range tabs {
		err := common.WithRetry(ctx, func() error {
			return classify(w.writeTab(ctx, spreadsheetID, t))
		}, retryOpts)
		if err != nil {
			return spreadsheetID, fmt.Errorf("failed to write %s tab: %w", t.name, err)
		}
	}

	if w.config.EnableFormatting {
		err := common.WithRetry(ctx, func() error {
			return classify(w.applyFormatting(ctx, spreadsheetID, sheetIDs, tabs))
		}, retryOpts)
		if err != nil {
			// Formatting is cosmetic; the data is already written.
			w.logger.Warn("failed to apply formatting", "error", err)
		}
	}

	w.logger.Info("report exported",
		"spreadsheet_id", spreadsheetID,
		"tabs", len(tabs))
	return spreadsheetID, nil
}

// classify marks quota and server errors from the API as retryable.
func classify(err error) error {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return err
	}
	switch {
	case apiErr.Code == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %w", common.ErrRateLimit, err)
	case apiErr.Code >= http.StatusInternalServerError:
		return &common.RetryableError{Err: err, Retryable: true}
	}
	return err
}

// prepareSpreadsheet opens or creates the spreadsheet and adds any missing
// tabs. It returns the sheet ID of every tab by title.
func (w *Writer) prepareSpreadsheet(ctx context.Context, tabs []string) (string, map[string]int64, error) {
	var ss *sheets.Spreadsheet
	var err error

	if w.config.SpreadsheetID != "" {
		ss, err = w.service.Spreadsheets.Get(w.config.SpreadsheetID).Context(ctx).Do()
		if err != nil {
			return "", nil, fmt.Errorf("unable to access spreadsheet %s: %w", w.config.SpreadsheetID, err)
		}
	} else {
		newSheets := make([]*sheets.Sheet, len(tabs))
		for i, name := range tabs {
			newSheets[i] = &sheets.Sheet{Properties: &sheets.SheetProperties{Title: name}}
		}
		ss, err = w.service.Spreadsheets.Create(&sheets.Spreadsheet{
			Properties: &sheets.SpreadsheetProperties{
				Title:    w.config.SpreadsheetName,
				TimeZone: w.config.TimeZone,
			},
			Sheets: newSheets,
		}).Context(ctx).Do()
		if err != nil {
			return "", nil, fmt.Errorf("unable to create spreadsheet: %w", err)
		}
		// Later exports reuse the new spreadsheet.
		w.config.SpreadsheetID = ss.SpreadsheetId
		w.logger.Info("created spreadsheet", "id", ss.SpreadsheetId, "url", ss.SpreadsheetUrl)
	}

	ids := make(map[string]int64, len(ss.Sheets))
	for _, s := range ss.Sheets {
		if s.Properties != nil {
			ids[s.Properties.Title] = s.Properties.SheetId
		}
	}

	var add []*sheets.Request
	for _, name := range tabs {
		if _, ok := ids[name]; !ok {
			add = append(add, &sheets.Request{AddSheet: &sheets.AddSheetRequest{
				Properties: &sheets.SheetProperties{Title: name},
			}})
		}
	}
	if len(add) == 0 {
		return ss.SpreadsheetId, ids, nil
	}

	resp, err := w.service.Spreadsheets.BatchUpdate(ss.SpreadsheetId, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: add,
	}).Context(ctx).Do()
	if err != nil {
		return "", nil, fmt.Errorf("unable to add tabs: %w", err)
	}
	for _, reply := range resp.Replies {
		if reply.AddSheet != nil && reply.AddSheet.Properties != nil {
			ids[reply.AddSheet.Properties.Title] = reply.AddSheet.Properties.SheetId
		}
	}
	return ss.SpreadsheetId, ids, nil
}

func (w *Writer) writeTab(ctx context.Context, spreadsheetID string, t tab) error {
	_, err := w.service.Spreadsheets.Values.Clear(spreadsheetID, t.name+"!A:Z", &sheets.ClearValuesRequest{}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to clear: %w", err)
	}

	for i := 0; i < len(t.values); i += w.config.BatchSize {
		end := min(i+w.config.BatchSize, len(t.values))
		batch := t.values[i:end]

		_, err := w.service.Spreadsheets.Values.Update(spreadsheetID, fmt.Sprintf("%s!A%d", t.name, i+1), &sheets.ValueRange{
			Values: batch,
		}).ValueInputOption("USER_ENTERED").Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("failed to write batch starting at row %d: %w", i+1, err)
		}
		w.logger.Debug("wrote batch", "tab", t.name, "start_row", i+1, "rows", len(batch))
	}
	return nil
}

func (w *Writer) applyFormatting(ctx context.Context, spreadsheetID string, sheetIDs map[string]int64, tabs []tab) error {
	var requests []*sheets.Request
	for _, t := range tabs {
		id, ok := sheetIDs[t.name]
		if !ok {
			continue
		}
		requests = append(requests,
			&sheets.Request{RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{SheetId: id, StartRowIndex: 0, EndRowIndex: 1},
				Cell: &sheets.CellData{UserEnteredFormat: &sheets.CellFormat{
					TextFormat: &sheets.TextFormat{Bold: true},
				}},
				Fields: "userEnteredFormat.textFormat",
			}},
			&sheets.Request{UpdateSheetProperties: &sheets.UpdateSheetPropertiesRequest{
				Properties: &sheets.SheetProperties{
					SheetId:        id,
					GridProperties: &sheets.GridProperties{FrozenRowCount: 1},
				},
				Fields: "gridProperties.frozenRowCount",
			}},
		)
		for _, col := range t.moneyCols {
			requests = append(requests, &sheets.Request{RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{
					SheetId:          id,
					StartRowIndex:    1,
					EndRowIndex:      int64(len(t.values)),
					StartColumnIndex: col,
					EndColumnIndex:   col + 1,
				},
				Cell: &sheets.CellData{UserEnteredFormat: &sheets.CellFormat{
					NumberFormat: &sheets.NumberFormat{Type: "NUMBER", Pattern: "#,##0.00"},
				}},
				Fields: "userEnteredFormat.numberFormat",
			}})
		}
		requests = append(requests, &sheets.Request{AutoResizeDimensions: &sheets.AutoResizeDimensionsRequest{
			Dimensions: &sheets.DimensionRange{
				SheetId:    id,
				Dimension:  "COLUMNS",
				StartIndex: 0,
				EndIndex:   int64(len(t.values[0])),
			},
		}})
	}

	_, err := w.service.Spreadsheets.BatchUpdate(spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: requests,
	}).Context(ctx).Do()
	return err
}
