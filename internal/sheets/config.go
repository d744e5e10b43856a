// Package sheets exports forecasts, transactions and splits to Google Sheets.
package sheets

import (
	"errors"
	"time"
)

// Configuration errors.
var (
	ErrNoAuth       = errors.New("no authentication method configured")
	ErrMultipleAuth = errors.New("multiple authentication methods configured; use either OAuth2 or service account")
)

// Config holds the configuration for the Google Sheets writer.
type Config struct {
	ClientID           string
	ClientSecret       string
	RefreshToken       string
	ServiceAccountPath string
	SpreadsheetID      string
	SpreadsheetName    string
	TimeZone           string
	BatchSize          int
	RetryAttempts      int
	RetryDelay         time.Duration
	EnableFormatting   bool
}

// DefaultConfig returns a Config for a Stockholm household budget.
func DefaultConfig() Config {
	return Config{
		EnableFormatting: true,
		SpreadsheetName:  "Budget",
		TimeZone:         "Europe/Stockholm",
		BatchSize:        1000,
		RetryAttempts:    3,
		RetryDelay:       time.Second,
	}
}

// HasAuth reports whether any credentials are present.
func (c *Config) HasAuth() bool {
	return c.ServiceAccountPath != "" || c.ClientID != "" || c.ClientSecret != "" || c.RefreshToken != ""
}

// Validate checks that exactly one authentication method is configured and
// that the batching and retry settings are usable.
func (c *Config) Validate() error {
	hasOAuth := c.ClientID != "" && c.ClientSecret != "" && c.RefreshToken != ""
	hasServiceAccount := c.ServiceAccountPath != ""

	switch {
	case !hasOAuth && !hasServiceAccount:
		return ErrNoAuth
	case hasOAuth && hasServiceAccount:
		return ErrMultipleAuth
	case c.BatchSize <= 0:
		return errors.New("batch size must be positive")
	case c.RetryAttempts < 0:
		return errors.New("retry attempts cannot be negative")
	case c.RetryDelay < 0:
		return errors.New("retry delay cannot be negative")
	}
	return nil
}
