package vin

import (
	"fmt"
	"regexp"
	"strings"

	contractx "github.com/warrantix/warrantix/agent/contract"
)

// A VIN is 17 characters from the I/O/Q-free alphanumeric alphabet.
const Length = 17

var (
	vinPattern     = regexp.MustCompile(`^[A-HJ-NPR-Z0-9]{17}$`)
	vinScanPattern = regexp.MustCompile(`\b[A-HJ-NPR-Z0-9]{17}\b`)
)

// Normalize trims surrounding whitespace and uppercases the candidate.
func Normalize(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// Validate reports whether s is a well-formed VIN after normalization.
func Validate(s string) error {
	candidate := Normalize(s)
	if candidate == "" {
		return fmt.Errorf("%w: vin is empty", contractx.ErrValidation)
	}
	if len(candidate) != Length {
		return fmt.Errorf("%w: vin must be %d characters, got %d", contractx.ErrValidation, Length, len(candidate))
	}
	if !vinPattern.MatchString(candidate) {
		return fmt.Errorf("%w: vin contains invalid characters (I, O and Q are not allowed)", contractx.ErrValidation)
	}
	return nil
}

// Extract returns the first VIN-shaped token found in free text, or "" when
// none is present. The text is uppercased before scanning so lowercase VINs
// are still found.
func Extract(text string) string {
	return vinScanPattern.FindString(strings.ToUpper(text))
}
