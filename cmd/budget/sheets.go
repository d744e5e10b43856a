package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/Veraticus/the-budget-must-balance/internal/cli"
	"github.com/Veraticus/the-budget-must-balance/internal/common"
	"github.com/Veraticus/the-budget-must-balance/internal/config"
	"github.com/Veraticus/the-budget-must-balance/internal/sheets"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultTokenFile = "$HOME/.config/budget/sheets-token.json"

// newReportWriter builds the Sheets exporter. Tests swap it for a mock.
var newReportWriter = func(ctx context.Context, cfg sheets.Config) (sheets.ReportWriter, error) {
	return sheets.NewWriter(ctx, cfg, slog.Default())
}

func tokenFile() string {
	path := viper.GetString("sheets.token_file")
	if path == "" {
		path = defaultTokenFile
	}
	return config.ExpandPath(path)
}

// exportReport sends report to Google Sheets. A token saved by
// 'budget sheets auth' stands in for a configured refresh token.
func exportReport(cmd *cobra.Command, report *sheets.Report) error {
	if sheetsSetting("sheets.refresh_token", "GOOGLE_SHEETS_REFRESH_TOKEN") == "" &&
		sheetsSetting("sheets.service_account_path", "GOOGLE_SHEETS_SERVICE_ACCOUNT_PATH") == "" {
		if token, err := sheets.LoadToken(tokenFile()); err == nil && token.RefreshToken != "" {
			viper.Set("sheets.refresh_token", token.RefreshToken)
		}
	}

	cfg, err := config.LoadSheetsConfig(viper.GetViper())
	if err != nil {
		return common.NewUserError("Google Sheets is not configured; see 'budget sheets auth --help'", err)
	}

	writer, err := newReportWriter(cmd.Context(), *cfg)
	if err != nil {
		return err
	}
	id, err := writer.Write(cmd.Context(), report)
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}
	printLine(cmd, cli.FormatSuccess("Exported to https://docs.google.com/spreadsheets/d/"+id))
	return nil
}

func sheetsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sheets",
		Short: "Google Sheets export setup",
	}
	cmd.AddCommand(sheetsAuthCmd())
	return cmd
}

func sheetsAuthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "auth",
		Short: "Authorize exports with your Google account",
		Long: `Run the OAuth2 browser flow for a desktop client and save the token.

Set sheets.client_id and sheets.client_secret (or GOOGLE_SHEETS_CLIENT_ID and
GOOGLE_SHEETS_CLIENT_SECRET) first. The token is saved to sheets.token_file,
default ` + defaultTokenFile + `. Alternatively set
sheets.service_account_path and skip this command.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := sheets.OAuth2Config{
				ClientID:     sheetsSetting("sheets.client_id", "GOOGLE_SHEETS_CLIENT_ID"),
				ClientSecret: sheetsSetting("sheets.client_secret", "GOOGLE_SHEETS_CLIENT_SECRET"),
				TokenFile:    tokenFile(),
			}
			if cfg.ClientID == "" || cfg.ClientSecret == "" {
				return common.NewUserError("sheets.client_id and sheets.client_secret are required", common.ErrMissingConfig)
			}

			printLine(cmd, cli.FormatInfo("Open the URL printed below; the callback listens on "+sheets.ListenAddr))
			token, err := sheets.GetOrCreateToken(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			if token.RefreshToken == "" {
				return common.NewUserError("Google returned no refresh token; revoke the app's access and retry", nil)
			}
			printLine(cmd, cli.FormatSuccess("Authorized; token saved to "+cfg.TokenFile))
			return nil
		},
	}
}

// sheetsSetting reads key from viper, falling back to the GOOGLE_SHEETS_*
// variable the way config.LoadSheetsConfig does.
func sheetsSetting(key, envVar string) string {
	if v := viper.GetString(key); v != "" {
		return v
	}
	return os.Getenv(envVar)
}
