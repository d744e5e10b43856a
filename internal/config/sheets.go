package config

import (
	"os"

	"github.com/Veraticus/the-budget-must-balance/internal/sheets"
	"github.com/spf13/viper"
)

// sheetsKeys pairs each viper key with its GOOGLE_SHEETS_* fallback.
var sheetsKeys = []struct {
	set    func(c *sheets.Config, v string)
	key    string
	envVar string
}{
	{key: "sheets.service_account_path", envVar: "GOOGLE_SHEETS_SERVICE_ACCOUNT_PATH", set: func(c *sheets.Config, v string) { c.ServiceAccountPath = ExpandPath(v) }},
	{key: "sheets.client_id", envVar: "GOOGLE_SHEETS_CLIENT_ID", set: func(c *sheets.Config, v string) { c.ClientID = v }},
	{key: "sheets.client_secret", envVar: "GOOGLE_SHEETS_CLIENT_SECRET", set: func(c *sheets.Config, v string) { c.ClientSecret = v }},
	{key: "sheets.refresh_token", envVar: "GOOGLE_SHEETS_REFRESH_TOKEN", set: func(c *sheets.Config, v string) { c.RefreshToken = v }},
	{key: "sheets.spreadsheet_id", envVar: "GOOGLE_SHEETS_SPREADSHEET_ID", set: func(c *sheets.Config, v string) { c.SpreadsheetID = v }},
	{key: "sheets.spreadsheet_name", envVar: "GOOGLE_SHEETS_SPREADSHEET_NAME", set: func(c *sheets.Config, v string) { c.SpreadsheetName = v }},
	{key: "sheets.time_zone", envVar: "GOOGLE_SHEETS_TIME_ZONE", set: func(c *sheets.Config, v string) { c.TimeZone = v }},
}

// LoadSheetsConfig builds the export configuration. Values from v (config
// file or BUDGET_ env vars) win over the GOOGLE_SHEETS_* variables, which win
// over defaults.
func LoadSheetsConfig(v *viper.Viper) (*sheets.Config, error) {
	if v == nil {
		v = viper.GetViper()
	}
	cfg := sheets.DefaultConfig()

	for _, k := range sheetsKeys {
		if val := v.GetString(k.key); val != "" {
			k.set(&cfg, val)
			continue
		}
		if val := os.Getenv(k.envVar); val != "" {
			k.set(&cfg, val)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
