package ledger

import (
	"path/filepath"
	"regexp"
	"strings"
)

var (
	// "Lönekonto - 2025-11-01" → "Lönekonto"
	namedDatePattern = regexp.MustCompile(`^(.+?)\s*-\s*\d{4}[-/]\d{2}[-/]\d{2}`)
	// Swedish clearing + account number, e.g. "1234-56-78901".
	accountNumberPattern = regexp.MustCompile(`\d{4}[\s-]\d{2}[\s-]\d{5}`)
	dateSuffixPattern    = regexp.MustCompile(`\s*[-_]\s*\d{4}[-/]\d{2}[-/]\d{2}.*$`)
	compactDatePattern   = regexp.MustCompile(`\s*[-_]\s*\d{8}.*$`)
)

// ResolveAccount derives the canonical account name from a statement
// filename. It is pure: the same filename always yields the same name. When
// no pattern applies the base name without extension is used.
func ResolveAccount(filename string) string {
	base := filepath.Base(strings.TrimSpace(filename))
	if base == "." || base == string(filepath.Separator) {
		return ""
	}
	stem := strings.TrimSuffix(base, filepath.Ext(base))

	if m := namedDatePattern.FindStringSubmatch(stem); m != nil {
		if name := strings.TrimSpace(m[1]); name != "" {
			return name
		}
	}

	if loc := accountNumberPattern.FindStringIndex(stem); loc != nil {
		prefix := strings.TrimRight(strings.TrimSpace(stem[:loc[0]]), "-_ ")
		if prefix != "" {
			return prefix
		}
		return stem[loc[0]:loc[1]]
	}

	for _, re := range []*regexp.Regexp{dateSuffixPattern, compactDatePattern} {
		if stripped := strings.TrimSpace(re.ReplaceAllString(stem, "")); stripped != "" && stripped != stem {
			return stripped
		}
	}

	if stem == "" {
		return base
	}
	return strings.TrimSpace(stem)
}

// AccountNumber extracts a Swedish account number from a filename, if any.
func AccountNumber(filename string) string {
	return accountNumberPattern.FindString(filepath.Base(filename))
}
