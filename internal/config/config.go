// Package config provides configuration utilities for the application.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Defaults.
const (
	DefaultDatabasePath    = "$HOME/.local/share/budget/budget.db"
	DefaultRuleConfidence  = 0.95
	DefaultReviewThreshold = 0.7
	DefaultMinConfidence   = 0.3
	DefaultMinExamples     = 2
	DefaultWindowMonths    = 6
	DefaultDecayRate       = 0.05
	DefaultMinForecastConf = 0.1
	DefaultMinBalanceWarn  = 1000.0
	DefaultAlertDays       = 7
	DefaultCurrency        = "SEK"
)

// ErrInvalid is returned when a loaded configuration fails validation.
var ErrInvalid = errors.New("invalid configuration")

// DatabaseConfig locates the SQLite file.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// ClassifierConfig tunes the hybrid classifier.
type ClassifierConfig struct {
	RulesFile              string  `mapstructure:"rules_file"`
	RuleConfidence         float64 `mapstructure:"rule_confidence"`
	ReviewThreshold        float64 `mapstructure:"review_threshold"`
	MinConfidence          float64 `mapstructure:"min_confidence"`
	MinExamplesPerCategory int     `mapstructure:"min_examples_per_category"`
	AutoTrain              bool    `mapstructure:"auto_train"`
}

// ForecastConfig tunes the simulator and its alerts.
type ForecastConfig struct {
	WindowMonths       int     `mapstructure:"window_months"`
	DecayRate          float64 `mapstructure:"decay_rate"`
	MinConfidence      float64 `mapstructure:"min_confidence"`
	MinBalanceWarning  float64 `mapstructure:"min_balance_warning"`
	AlertDaysBeforeDue int     `mapstructure:"alert_days_before_due"`
}

// SplitterConfig holds the default split policy.
type SplitterConfig struct {
	Policy           string   `mapstructure:"policy"`
	SharedCategories []string `mapstructure:"shared_categories"`
}

// ImportConfig holds importer defaults.
type ImportConfig struct {
	Currency string `mapstructure:"currency"`
}

// LoggingConfig selects slog level and handler.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Config is the typed application configuration.
type Config struct {
	Logging    LoggingConfig    `mapstructure:"logging"`
	Import     ImportConfig     `mapstructure:"import"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	Splitter   SplitterConfig   `mapstructure:"splitter"`
	Forecast   ForecastConfig   `mapstructure:"forecast"`
}

// SetDefaults registers every recognized key with its default value.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.path", DefaultDatabasePath)

	v.SetDefault("classifier.rules_file", "")
	v.SetDefault("classifier.rule_confidence", DefaultRuleConfidence)
	v.SetDefault("classifier.review_threshold", DefaultReviewThreshold)
	v.SetDefault("classifier.min_confidence", DefaultMinConfidence)
	v.SetDefault("classifier.min_examples_per_category", DefaultMinExamples)
	v.SetDefault("classifier.auto_train", false)

	v.SetDefault("forecast.window_months", DefaultWindowMonths)
	v.SetDefault("forecast.decay_rate", DefaultDecayRate)
	v.SetDefault("forecast.min_confidence", DefaultMinForecastConf)
	v.SetDefault("forecast.min_balance_warning", DefaultMinBalanceWarn)
	v.SetDefault("forecast.alert_days_before_due", DefaultAlertDays)

	v.SetDefault("splitter.policy", "equal")
	v.SetDefault("splitter.shared_categories", []string{"Boende", "Mat", "Hem"})

	v.SetDefault("import.currency", DefaultCurrency)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// Load reads a typed Config out of v, applying defaults and validating it.
func Load(v *viper.Viper) (*Config, error) {
	if v == nil {
		v = viper.GetViper()
	}
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.Database.Path = ExpandPath(cfg.Database.Path)
	cfg.Classifier.RulesFile = ExpandPath(cfg.Classifier.RulesFile)
	cfg.Import.Currency = strings.ToUpper(strings.TrimSpace(cfg.Import.Currency))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values the components cannot work with.
func (c *Config) Validate() error {
	var problems []string

	inUnit := func(name string, v float64) {
		if v < 0 || v > 1 {
			problems = append(problems, fmt.Sprintf("%s must be within [0,1], got %v", name, v))
		}
	}

	if strings.TrimSpace(c.Database.Path) == "" {
		problems = append(problems, "database.path is empty")
	}

	inUnit("classifier.rule_confidence", c.Classifier.RuleConfidence)
	inUnit("classifier.review_threshold", c.Classifier.ReviewThreshold)
	inUnit("classifier.min_confidence", c.Classifier.MinConfidence)
	if c.Classifier.MinExamplesPerCategory < 1 {
		problems = append(problems, "classifier.min_examples_per_category must be at least 1")
	}

	if c.Forecast.WindowMonths < 1 {
		problems = append(problems, "forecast.window_months must be at least 1")
	}
	if c.Forecast.DecayRate < 0 || c.Forecast.DecayRate >= 1 {
		problems = append(problems, fmt.Sprintf("forecast.decay_rate must be within [0,1), got %v", c.Forecast.DecayRate))
	}
	inUnit("forecast.min_confidence", c.Forecast.MinConfidence)
	if c.Forecast.AlertDaysBeforeDue < 0 {
		problems = append(problems, "forecast.alert_days_before_due cannot be negative")
	}

	switch c.Splitter.Policy {
	case "equal", "income-based", "custom", "needs-based":
	default:
		problems = append(problems, fmt.Sprintf("splitter.policy %q is not recognized", c.Splitter.Policy))
	}

	if len(c.Import.Currency) != 3 {
		problems = append(problems, fmt.Sprintf("import.currency %q is not an ISO code", c.Import.Currency))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}
