package utils

import (
	"regexp"
	"strings"
)

// ISIN format: 2 letter country code + 9 alphanumeric characters + 1 check digit = 12 total.
var isinPattern = regexp.MustCompile(`^[A-Z]{2}[A-Z0-9]{10}$`)

// NormalizeISIN trims whitespace and uppercases an ISIN.
func NormalizeISIN(isin string) string {
	return strings.ToUpper(strings.TrimSpace(isin))
}

// ValidateISIN reports whether the (normalized) ISIN matches the standard format.
func ValidateISIN(isin string) bool {
	return isinPattern.MatchString(NormalizeISIN(isin))
}
