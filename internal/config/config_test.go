package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("HOME", "/home/tester")

	cfg, err := Load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "/home/tester/.local/share/budget/budget.db", cfg.Database.Path)
	assert.InDelta(t, 0.95, cfg.Classifier.RuleConfidence, 1e-9)
	assert.InDelta(t, 0.7, cfg.Classifier.ReviewThreshold, 1e-9)
	assert.Equal(t, 2, cfg.Classifier.MinExamplesPerCategory)
	assert.False(t, cfg.Classifier.AutoTrain)
	assert.Equal(t, 6, cfg.Forecast.WindowMonths)
	assert.Equal(t, 7, cfg.Forecast.AlertDaysBeforeDue)
	assert.Equal(t, "equal", cfg.Splitter.Policy)
	assert.Equal(t, []string{"Boende", "Mat", "Hem"}, cfg.Splitter.SharedCategories)
	assert.Equal(t, "SEK", cfg.Import.Currency)
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
database:
  path: ` + filepath.Join(dir, "budget.db") + `
classifier:
  review_threshold: 0.8
  min_examples_per_category: 3
  auto_train: true
forecast:
  window_months: 3
splitter:
  policy: income-based
import:
  currency: eur
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "budget.db"), cfg.Database.Path)
	assert.InDelta(t, 0.8, cfg.Classifier.ReviewThreshold, 1e-9)
	assert.Equal(t, 3, cfg.Classifier.MinExamplesPerCategory)
	assert.True(t, cfg.Classifier.AutoTrain)
	assert.Equal(t, 3, cfg.Forecast.WindowMonths)
	assert.Equal(t, "income-based", cfg.Splitter.Policy)
	assert.Equal(t, "EUR", cfg.Import.Currency)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		key   string
		value any
		want  string
	}{
		{key: "classifier.review_threshold", value: 1.5, want: "classifier.review_threshold"},
		{key: "classifier.min_examples_per_category", value: 0, want: "min_examples_per_category"},
		{key: "forecast.window_months", value: 0, want: "window_months"},
		{key: "forecast.decay_rate", value: 1.0, want: "decay_rate"},
		{key: "splitter.policy", value: "random", want: "splitter.policy"},
		{key: "import.currency", value: "kronor", want: "import.currency"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			v := viper.New()
			v.Set(tt.key, tt.value)

			_, err := Load(v)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalid)
			assert.True(t, strings.Contains(err.Error(), tt.want), err.Error())
		})
	}
}

func TestExpandPath(t *testing.T) {
	t.Setenv("HOME", "/home/tester")
	t.Setenv("BUDGET_DIR", "/data")

	assert.Equal(t, "", ExpandPath(""))
	assert.Equal(t, "/home/tester", ExpandPath("~"))
	assert.Equal(t, "/home/tester/rules.yaml", ExpandPath("~/rules.yaml"))
	assert.Equal(t, "/data/budget.db", ExpandPath("$BUDGET_DIR/budget.db"))
}

func TestLoadSheetsConfig(t *testing.T) {
	t.Setenv("GOOGLE_SHEETS_CLIENT_ID", "env-client")
	t.Setenv("GOOGLE_SHEETS_CLIENT_SECRET", "env-secret")
	t.Setenv("GOOGLE_SHEETS_REFRESH_TOKEN", "env-token")
	t.Setenv("GOOGLE_SHEETS_SERVICE_ACCOUNT_PATH", "")

	v := viper.New()
	v.Set("sheets.client_id", "viper-client")
	v.Set("sheets.spreadsheet_name", "Budget 2026")

	cfg, err := LoadSheetsConfig(v)
	require.NoError(t, err)
	assert.Equal(t, "viper-client", cfg.ClientID)
	assert.Equal(t, "env-secret", cfg.ClientSecret)
	assert.Equal(t, "Budget 2026", cfg.SpreadsheetName)
}
