package util

import (
	"strings"
	"unicode"
)

// ApplyCountryCode prefixes raw with countryCode unless it already starts with it.
// This is a plain string-prefix test: a local number that happens to begin with the
// country code digits is left untouched.
func ApplyCountryCode(raw, countryCode string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, countryCode) {
		return s
	}
	return countryCode + s
}

// IsDigits reports whether s is non-empty and made of ASCII digits only.
func IsDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r > unicode.MaxASCII || !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
