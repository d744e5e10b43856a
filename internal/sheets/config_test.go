package sheets

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConfig_Validate(t *testing.T) {
	oauth := func(c Config) Config {
		c.ClientID, c.ClientSecret, c.RefreshToken = "client", "secret", "refresh"
		return c
	}
	base := Config{BatchSize: 100, RetryAttempts: 3, RetryDelay: time.Second}

	tests := []struct {
		name    string
		errMsg  string
		config  Config
		wantErr bool
	}{
		{name: "oauth", config: oauth(base)},
		{
			name:   "service account",
			config: Config{ServiceAccountPath: "/path/to/key.json", BatchSize: 100},
		},
		{
			name:    "no auth",
			config:  base,
			wantErr: true,
			errMsg:  "no authentication method configured",
		},
		{
			name: "partial oauth credentials",
			config: Config{
				ClientID:     "client",
				RefreshToken: "refresh",
				BatchSize:    100,
			},
			wantErr: true,
			errMsg:  "no authentication method configured",
		},
		{
			name: "both auth methods",
			config: func() Config {
				c := oauth(base)
				c.ServiceAccountPath = "/path/to/key.json"
				return c
			}(),
			wantErr: true,
			errMsg:  "multiple authentication methods",
		},
		{
			name:    "zero batch size",
			config:  oauth(Config{RetryAttempts: 3}),
			wantErr: true,
			errMsg:  "batch size must be positive",
		},
		{
			name:    "negative retries",
			config:  oauth(Config{BatchSize: 10, RetryAttempts: -1}),
			wantErr: true,
			errMsg:  "retry attempts cannot be negative",
		},
		{
			name:    "negative retry delay",
			config:  oauth(Config{BatchSize: 10, RetryDelay: -time.Second}),
			wantErr: true,
			errMsg:  "retry delay cannot be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "Europe/Stockholm", cfg.TimeZone)
	assert.True(t, cfg.EnableFormatting)
	assert.False(t, cfg.HasAuth())
	assert.ErrorIs(t, cfg.Validate(), ErrNoAuth)
}
