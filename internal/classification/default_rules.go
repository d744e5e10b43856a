package classification

import "github.com/Veraticus/the-budget-must-balance/internal/model"

// DefaultRules returns the built-in Swedish rule table. Order matters: a
// description matching keywords from two categories lands in the earlier one.
func DefaultRules() []model.CategoryRule {
	return []model.CategoryRule{
		{
			ID:         "Mat",
			Keywords:   []string{"ica", "coop", "willys", "hemköp", "lidl", "city gross", "mathem"},
			Confidence: model.DefaultRuleConfidence,
		},
		{
			ID:         "Transport",
			Keywords:   []string{"sl access", "uber", "bensin", "circle k", "preem", "okq8", "bolt"},
			Confidence: model.DefaultRuleConfidence,
		},
		{
			ID:         "Boende",
			Keywords:   []string{"hyra", "vattenfall", "ellevio", "bredband", "hemförsäkring", "brf"},
			Confidence: model.DefaultRuleConfidence,
		},
		{
			ID:         "Nöje",
			Keywords:   []string{"spotify", "netflix", "hbo", "filmstaden", "restaurang", "systembolaget"},
			Confidence: model.DefaultRuleConfidence,
		},
		{
			ID:         "Hälsa",
			Keywords:   []string{"apotek", "vårdcentral", "tandläkare", "friskis", "sats"},
			Confidence: model.DefaultRuleConfidence,
		},
		{
			ID:         "Kläder",
			Keywords:   []string{"lindex", "kappahl", "zalando", "dressmann"},
			Confidence: model.DefaultRuleConfidence,
		},
		{
			ID:         "Hem",
			Keywords:   []string{"ikea", "jula", "clas ohlson", "bauhaus", "biltema"},
			Confidence: model.DefaultRuleConfidence,
		},
		{
			ID:         "Sparande",
			Keywords:   []string{"avanza", "nordnet", "sparkonto"},
			Confidence: model.DefaultRuleConfidence,
		},
		// Income last so "lön" never shadows a merchant name
		{
			ID:         "Inkomst",
			Keywords:   []string{"lön", "försäkringskassan", "skatteverket återbetalning"},
			Confidence: model.DefaultRuleConfidence,
		},
	}
}
