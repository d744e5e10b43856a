package classification

import (
	"path/filepath"
	"testing"

	"github.com/Veraticus/the-budget-must-balance/internal/model"
	"github.com/Veraticus/the-budget-must-balance/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Hemköp Södermalm!", "hemkop sodermalm"},
		{"  ICA   Maxi\tStockholm ", "ica maxi stockholm"},
		{"SL-ACCESS*12", "sl access 12"},
		{"Vårdcentralen Åre", "vardcentralen are"},
		{"H&M", "h m"},
		{"---", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestTerms(t *testing.T) {
	assert.Equal(t, []string{"ica", "maxi", "ica_maxi"}, terms("ica maxi"))
	assert.Equal(t, []string{"lon"}, terms("lon"))
	assert.Nil(t, terms(""))
}

func TestNewRules(t *testing.T) {
	tests := []struct {
		name    string
		rules   []model.CategoryRule
		wantErr bool
	}{
		{
			name:  "swedish fixture",
			rules: testutil.SwedishRules(),
		},
		{
			name:  "defaults",
			rules: DefaultRules(),
		},
		{
			name:    "duplicate category",
			rules:   []model.CategoryRule{{ID: "Mat", Keywords: []string{"ica"}}, {ID: "Mat", Keywords: []string{"coop"}}},
			wantErr: true,
		},
		{
			name:    "keyword of punctuation only",
			rules:   []model.CategoryRule{{ID: "Mat", Keywords: []string{"--"}}},
			wantErr: true,
		},
		{
			name:    "missing keywords",
			rules:   []model.CategoryRule{{ID: "Mat"}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewRules(tt.rules)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, model.ErrInvalidRule)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, len(tt.rules), r.Len())
		})
	}
}

func TestRules_Match(t *testing.T) {
	rules := MustRules(testutil.SwedishRules())

	tests := []struct {
		description string
		category    string
		keyword     string
		matched     bool
	}{
		{"ICA Maxi Stockholm", "Mat", "ica", true},
		{"HEMKÖP CITY", "Mat", "hemkop", true},
		{"Hemkop city", "Mat", "hemkop", true},
		{"SL Access Årskort", "Transport", "sl access", true},
		{"Circle K Solna", "Transport", "circle k", true},
		{"Lön november", "Inkomst", "lon", true},
		{"Vattenfall AB", "Boende", "vattenfall", true},
		{"Okänd handlare", "", "", false},
		{"", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			m, ok := rules.Match(tt.description)
			assert.Equal(t, tt.matched, ok)
			assert.Equal(t, tt.category, m.Category)
			assert.Equal(t, tt.keyword, m.Keyword)
		})
	}
}

func TestRules_FirstCategoryWins(t *testing.T) {
	rules := MustRules([]model.CategoryRule{
		{ID: "Transport", Keywords: []string{"circle k"}},
		{ID: "Mat", Keywords: []string{"circle"}},
	})

	m, ok := rules.Match("Circle K Kungens Kurva")
	require.True(t, ok)
	assert.Equal(t, "Transport", m.Category)

	reversed := MustRules([]model.CategoryRule{
		{ID: "Mat", Keywords: []string{"circle"}},
		{ID: "Transport", Keywords: []string{"circle k"}},
	})
	m, ok = reversed.Match("Circle K Kungens Kurva")
	require.True(t, ok)
	assert.Equal(t, "Mat", m.Category)
}

func TestRules_Categories(t *testing.T) {
	rules := MustRules(testutil.SwedishRules())
	assert.Equal(t, []string{"Mat", "Transport", "Boende", "Inkomst"}, rules.Categories())
}

func TestDefaultRules_CoverSwedishCategories(t *testing.T) {
	rules := MustRules(DefaultRules())
	assert.Equal(t,
		[]string{"Mat", "Transport", "Boende", "Nöje", "Hälsa", "Kläder", "Hem", "Sparande", "Inkomst"},
		rules.Categories())
}

func TestLoadSaveRules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "rules.yaml")
	require.NoError(t, SaveRules(path, testutil.SwedishRules()))

	loaded, err := LoadRules(path)
	require.NoError(t, err)
	assert.Equal(t, testutil.SwedishRules(), loaded)

	_, err = LoadRules(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	assert.Error(t, SaveRules(path, nil))
}
