package sheets

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestCallbackHandler(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		wantCode string
		wantErr  string
	}{
		{name: "code", query: "state=s1&code=abc", wantCode: "abc"},
		{name: "wrong state", query: "state=other&code=abc", wantErr: "state mismatch"},
		{name: "denied", query: "state=s1&error=access_denied", wantErr: "access_denied"},
		{name: "missing code", query: "state=s1", wantErr: "no authorization code"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			codes := make(chan string, 1)
			errs := make(chan error, 1)
			h := callbackHandler("s1", codes, errs)

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?"+tt.query, nil))

			if tt.wantErr != "" {
				assert.Equal(t, http.StatusBadRequest, rec.Code)
				require.Len(t, errs, 1)
				assert.Contains(t, (<-errs).Error(), tt.wantErr)
				assert.Empty(t, codes)
				return
			}
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Contains(t, rec.Body.String(), "successful")
			assert.Equal(t, tt.wantCode, <-codes)
		})
	}
}

func TestCallbackHandler_SecondRedirectDoesNotBlock(t *testing.T) {
	codes := make(chan string, 1)
	h := callbackHandler("s1", codes, make(chan error, 1))

	for range 2 {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state=s1&code=abc", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
	assert.Len(t, codes, 1)
}

func TestSaveLoadToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "token.json")
	token := &oauth2.Token{
		AccessToken:  "access",
		RefreshToken: "refresh",
		TokenType:    "Bearer",
		Expiry:       time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, SaveToken(path, token))

	got, err := LoadToken(path)
	require.NoError(t, err)
	assert.Equal(t, "refresh", got.RefreshToken)
	assert.True(t, token.Expiry.Equal(got.Expiry))

	_, err = LoadToken(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestOAuth2Config(t *testing.T) {
	cfg := OAuth2Config{ClientID: "id", ClientSecret: "secret"}.oauth2()
	assert.Equal(t, "http://"+ListenAddr+"/callback", cfg.RedirectURL)
	assert.Contains(t, cfg.AuthCodeURL("xyz", oauth2.AccessTypeOffline), "state=xyz")
}
